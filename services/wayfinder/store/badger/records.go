// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/AleutianAI/wayfinder/services/wayfinder/graph"
)

// Key layout:
//
//	node/<node id>   -> JSON graph.NodeRecord
//	edge/<uuid v7>   -> JSON graph.EdgeRecord
//
// Edge keys are time-ordered so Load returns edges in insertion order.
const (
	nodePrefix = "node/"
	edgePrefix = "edge/"
)

var (
	// ErrNilDB is returned by NewRecordStore for a nil database.
	ErrNilDB = errors.New("db must not be nil")

	// ErrEmptyNodeID is returned when a node record has no id.
	ErrEmptyNodeID = errors.New("node id must not be empty")
)

// RecordStore persists raw records. It performs no graph validation; that
// happens when the coordinator builds a snapshot from Load.
//
// Thread Safety: Safe for concurrent use.
type RecordStore struct {
	db *DB
}

// NewRecordStore wraps db.
func NewRecordStore(db *DB) (*RecordStore, error) {
	if db == nil {
		return nil, ErrNilDB
	}
	return &RecordStore{db: db}, nil
}

// Name identifies the store as a reload source.
func (s *RecordStore) Name() string {
	if s.db.InMemory() {
		return "badger:memory"
	}
	return "badger:" + s.db.Path()
}

// PutNodes inserts or overwrites nodes by id.
func (s *RecordStore) PutNodes(ctx context.Context, nodes ...graph.NodeRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, n := range nodes {
		if n.ID == "" {
			return ErrEmptyNodeID
		}
		val, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("encode node %s: %w", n.ID, err)
		}
		if err := wb.Set([]byte(nodePrefix+n.ID), val); err != nil {
			return fmt.Errorf("write node %s: %w", n.ID, err)
		}
	}
	return wb.Flush()
}

// PutEdges appends edges and returns their generated keys.
func (s *RecordStore) PutEdges(ctx context.Context, edges ...graph.EdgeRecord) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate edge id: %w", err)
		}
		val, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("encode edge %s -> %s: %w", e.From, e.To, err)
		}
		if err := wb.Set([]byte(edgePrefix+id.String()), val); err != nil {
			return nil, fmt.Errorf("write edge: %w", err)
		}
		ids = append(ids, id.String())
	}
	if err := wb.Flush(); err != nil {
		return nil, err
	}
	return ids, nil
}

// DeleteNode removes a node and every edge that touches it. It returns the
// number of edges removed.
func (s *RecordStore) DeleteNode(ctx context.Context, id string) (int, error) {
	removed := 0
	err := s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		var doomed [][]byte
		err := scan(txn, edgePrefix, func(key, val []byte) error {
			var e graph.EdgeRecord
			if err := json.Unmarshal(val, &e); err != nil {
				return fmt.Errorf("decode edge %s: %w", key, err)
			}
			if e.From == id || e.To == id {
				doomed = append(doomed, key)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, key := range doomed {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		removed = len(doomed)
		return txn.Delete([]byte(nodePrefix + id))
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// ReplaceAll discards every stored record and writes set in its place.
//
// Every record is encoded before the store is touched, and the deletes and
// writes commit in one transaction, so a failure leaves the previous
// records intact. A set too large for one transaction fails with
// badger.ErrTxnTooBig and also changes nothing.
func (s *RecordStore) ReplaceAll(ctx context.Context, set graph.RecordSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := encodeSet(set)
	if err != nil {
		return err
	}
	err = s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return replaceIn(txn, entries)
	})
	if err != nil {
		return fmt.Errorf("replace records (%d nodes, %d edges): %w", len(set.Nodes), len(set.Edges), err)
	}
	return nil
}

type entry struct {
	key, val []byte
}

// encodeSet turns set into keyed values without writing anything.
func encodeSet(set graph.RecordSet) ([]entry, error) {
	entries := make([]entry, 0, len(set.Nodes)+len(set.Edges))
	for _, n := range set.Nodes {
		if n.ID == "" {
			return nil, ErrEmptyNodeID
		}
		val, err := json.Marshal(n)
		if err != nil {
			return nil, fmt.Errorf("encode node %s: %w", n.ID, err)
		}
		entries = append(entries, entry{key: []byte(nodePrefix + n.ID), val: val})
	}
	for _, e := range set.Edges {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate edge id: %w", err)
		}
		val, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("encode edge %s -> %s: %w", e.From, e.To, err)
		}
		entries = append(entries, entry{key: []byte(edgePrefix + id.String()), val: val})
	}
	return entries, nil
}

// replaceIn stages the removal of every node and edge key followed by
// entries. Nothing is visible until txn commits.
func replaceIn(txn *badger.Txn, entries []entry) error {
	for _, prefix := range []string{nodePrefix, edgePrefix} {
		for _, key := range scanKeys(txn, prefix) {
			if err := txn.Delete(key); err != nil {
				return fmt.Errorf("delete %s: %w", key, err)
			}
		}
	}
	for _, e := range entries {
		if err := txn.Set(e.key, e.val); err != nil {
			return fmt.Errorf("write %s: %w", e.key, err)
		}
	}
	return nil
}

// Load reads every node (ordered by id) and edge (in insertion order).
func (s *RecordStore) Load(ctx context.Context) (graph.RecordSet, error) {
	var set graph.RecordSet
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		err := scan(txn, nodePrefix, func(key, val []byte) error {
			var n graph.NodeRecord
			if err := json.Unmarshal(val, &n); err != nil {
				return fmt.Errorf("decode node %s: %w", key, err)
			}
			set.Nodes = append(set.Nodes, n)
			return nil
		})
		if err != nil {
			return err
		}
		return scan(txn, edgePrefix, func(key, val []byte) error {
			var e graph.EdgeRecord
			if err := json.Unmarshal(val, &e); err != nil {
				return fmt.Errorf("decode edge %s: %w", key, err)
			}
			set.Edges = append(set.Edges, e)
			return nil
		})
	})
	return set, err
}

// scan calls fn with a copy of every key and value under prefix.
func scan(txn *badger.Txn, prefix string, fn func(key, val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(item.KeyCopy(nil), val); err != nil {
			return err
		}
	}
	return nil
}

// scanKeys returns a copy of every key under prefix without reading values.
func scanKeys(txn *badger.Txn, prefix string) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}
