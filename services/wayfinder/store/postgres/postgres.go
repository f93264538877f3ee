// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package postgres reads node and edge records from the map database's
// nodes and edges tables. It never writes.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/AleutianAI/wayfinder/pkg/validation"
	"github.com/AleutianAI/wayfinder/services/wayfinder/graph"
)

// Schema creates the tables this source reads. Deployments normally manage
// the schema with their own migrations; it is provided for tests and local
// setups.
const Schema = `
CREATE TABLE IF NOT EXISTS nodes (
	id         VARCHAR(50) PRIMARY KEY,
	name       VARCHAR(100) NOT NULL,
	detail     VARCHAR(200),
	floor      INTEGER NOT NULL,
	x          DOUBLE PRECISION,
	y          DOUBLE PRECISION,
	node_type  VARCHAR(20) DEFAULT 'other',
	created_at TIMESTAMPTZ DEFAULT now(),
	updated_at TIMESTAMPTZ DEFAULT now()
);
CREATE TABLE IF NOT EXISTS edges (
	id           SERIAL PRIMARY KEY,
	from_node_id VARCHAR(50) NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	to_node_id   VARCHAR(50) NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	weight       DOUBLE PRECISION NOT NULL DEFAULT 1.0,
	edge_type    VARCHAR(20) NOT NULL DEFAULT 'normal',
	is_vertical  BOOLEAN DEFAULT FALSE,
	created_at   TIMESTAMPTZ DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_from_to ON edges (from_node_id, to_node_id);
CREATE INDEX IF NOT EXISTS idx_to_from ON edges (to_node_id, from_node_id);
`

// ErrNilDB is returned by NewSource for a nil handle.
var ErrNilDB = errors.New("db must not be nil")

// Options names the tables to read.
type Options struct {
	NodesTable string
	EdgesTable string
}

// DefaultOptions reads the nodes and edges tables.
func DefaultOptions() Options {
	return Options{NodesTable: "nodes", EdgesTable: "edges"}
}

// Source is a reload source over a PostgreSQL database.
//
// Thread Safety: Safe for concurrent use.
type Source struct {
	db        *sql.DB
	name      string
	nodesStmt string
	edgesStmt string
}

// Open connects with a lib/pq DSN and verifies the connection.
func Open(ctx context.Context, dsn string, opts Options) (*Source, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewSource(db, opts)
}

// NewSource wraps an existing handle.
func NewSource(db *sql.DB, opts Options) (*Source, error) {
	if db == nil {
		return nil, ErrNilDB
	}
	def := DefaultOptions()
	if opts.NodesTable == "" {
		opts.NodesTable = def.NodesTable
	}
	if opts.EdgesTable == "" {
		opts.EdgesTable = def.EdgesTable
	}

	nodes, err := quoteTable(opts.NodesTable)
	if err != nil {
		return nil, err
	}
	edges, err := quoteTable(opts.EdgesTable)
	if err != nil {
		return nil, err
	}

	return &Source{
		db:   db,
		name: "postgres:" + opts.NodesTable + "+" + opts.EdgesTable,
		nodesStmt: fmt.Sprintf(
			"SELECT id, name, detail, floor, x, y, node_type FROM %s ORDER BY id", nodes),
		edgesStmt: fmt.Sprintf(
			"SELECT from_node_id, to_node_id, weight, edge_type, is_vertical FROM %s ORDER BY id", edges),
	}, nil
}

// quoteTable validates a possibly schema-qualified table name and quotes
// each part.
func quoteTable(name string) (string, error) {
	parts, err := validation.SplitQualified(name)
	if err != nil {
		return "", err
	}
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(parts, "."), nil
}

// Name identifies the source.
func (s *Source) Name() string { return s.name }

// Close closes the database handle.
func (s *Source) Close() error { return s.db.Close() }

// Load reads both tables inside one read-only repeatable-read transaction
// so nodes and edges come from the same database state.
func (s *Source) Load(ctx context.Context) (graph.RecordSet, error) {
	var set graph.RecordSet

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return set, fmt.Errorf("begin read: %w", err)
	}
	defer tx.Rollback()

	if set.Nodes, err = s.loadNodes(ctx, tx); err != nil {
		return set, err
	}
	if set.Edges, err = s.loadEdges(ctx, tx); err != nil {
		return set, err
	}
	return set, tx.Commit()
}

func (s *Source) loadNodes(ctx context.Context, tx *sql.Tx) ([]graph.NodeRecord, error) {
	rows, err := tx.QueryContext(ctx, s.nodesStmt)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	var out []graph.NodeRecord
	for rows.Next() {
		var (
			n            graph.NodeRecord
			detail, kind sql.NullString
			x, y         sql.NullFloat64
		)
		if err := rows.Scan(&n.ID, &n.Name, &detail, &n.Floor, &x, &y, &kind); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		n.Detail = detail.String
		n.Category = kind.String
		if x.Valid {
			n.X = &x.Float64
		}
		if y.Valid {
			n.Y = &y.Float64
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read nodes: %w", err)
	}
	return out, nil
}

func (s *Source) loadEdges(ctx context.Context, tx *sql.Tx) ([]graph.EdgeRecord, error) {
	rows, err := tx.QueryContext(ctx, s.edgesStmt)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	var out []graph.EdgeRecord
	for rows.Next() {
		var (
			e        graph.EdgeRecord
			kind     sql.NullString
			vertical sql.NullBool
		)
		if err := rows.Scan(&e.From, &e.To, &e.Weight, &kind, &vertical); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		e.Category = kind.String
		e.Vertical = vertical.Bool
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read edges: %w", err)
	}
	return out, nil
}
