// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package reload owns the current graph snapshot and replaces it atomically.
//
// Readers call Current and keep the returned snapshot for the duration of
// their query. A reload builds a candidate off to the side and publishes it
// with a single pointer store; a failed build leaves the current snapshot
// untouched.
package reload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/wayfinder/services/wayfinder/graph"
)

var (
	// ErrNilContext is returned when a nil context is passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrNilSource is returned by ReloadFrom for a nil source.
	ErrNilSource = errors.New("source must not be nil")

	// ErrSourceLoad wraps failures reading records from a source.
	ErrSourceLoad = errors.New("load records from source")
)

// Source supplies a complete record set. Implementations live in the store
// packages.
type Source interface {
	// Name identifies the source in logs and deduplicates concurrent loads.
	Name() string

	// Load reads every node and edge record.
	Load(ctx context.Context) (graph.RecordSet, error)
}

// Result describes a successful reload.
type Result struct {
	NodeCount  int           `json:"nodes_count"`
	EdgeCount  int           `json:"edges_count"`
	Generation uint64        `json:"generation"`
	Duration   time.Duration `json:"-"`
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBuildOptions passes options such as capacity limits to every build.
func WithBuildOptions(opts ...graph.BuildOption) Option {
	return func(c *Coordinator) {
		c.buildOpts = append(c.buildOpts, opts...)
	}
}

// Coordinator holds the published snapshot.
//
// Thread Safety: Current never blocks. Reloads are serialized against each
// other so generations are published in increasing order.
type Coordinator struct {
	current atomic.Pointer[graph.Snapshot]

	mu         sync.Mutex
	generation uint64

	group     singleflight.Group
	logger    *slog.Logger
	buildOpts []graph.BuildOption

	subsMu sync.RWMutex
	subs   []func(*graph.Snapshot)
}

// NewCoordinator returns a coordinator serving an empty generation-0
// snapshot until the first successful reload.
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	c.current.Store(graph.Empty())
	return c
}

// Current returns the published snapshot. The result is immutable and stays
// valid after later reloads.
func (c *Coordinator) Current() *graph.Snapshot {
	return c.current.Load()
}

// OnPublish registers fn to run after every successful publish. fn runs on
// the reloading goroutine while reloads are serialized, so it must not call
// Reload.
func (c *Coordinator) OnPublish(fn func(*graph.Snapshot)) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	c.subs = append(c.subs, fn)
}

// Reload builds a snapshot from nodes and edges and publishes it.
//
// Description:
//
//	Builds a candidate with the next generation number. On failure the
//	*graph.BuildError is returned and the current snapshot keeps serving.
//	On success the candidate is published with one atomic store and
//	subscribers are notified.
//
// Inputs:
//
//	ctx - Used for tracing and metrics only. Must not be nil.
//	nodes, edges - The complete replacement record set.
//
// Outputs:
//
//	Result - Counts and generation of the published snapshot.
//	error - A *graph.BuildError (inspect with errors.As), or ErrNilContext.
//
// Thread Safety: Safe for concurrent use. Concurrent reloads run one at a
// time; queries are never blocked.
func (c *Coordinator) Reload(ctx context.Context, nodes []graph.NodeRecord, edges []graph.EdgeRecord) (Result, error) {
	if ctx == nil {
		return Result{}, ErrNilContext
	}

	ctx, span := startReloadSpan(ctx, len(nodes), len(edges))
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	next := c.generation + 1
	opts := append(append([]graph.BuildOption(nil), c.buildOpts...), graph.WithGeneration(next))

	snap, err := graph.Build(nodes, edges, opts...)
	elapsed := time.Since(start)
	if err != nil {
		recordReloadMetrics(ctx, elapsed, 0, 0, false)
		setReloadSpanError(span, err)
		c.logger.Warn("graph reload rejected",
			slog.Int("nodes", len(nodes)),
			slog.Int("edges", len(edges)),
			slog.Uint64("serving_generation", c.generation),
			slog.String("error", err.Error()),
		)
		return Result{}, err
	}

	c.generation = next
	c.current.Store(snap)
	recordReloadMetrics(ctx, elapsed, snap.NodeCount(), snap.EdgeCount(), true)
	setReloadSpanResult(span, snap)

	c.logger.Info("graph reloaded",
		slog.Int("nodes", snap.NodeCount()),
		slog.Int("edges", snap.EdgeCount()),
		slog.Uint64("generation", next),
		slog.Duration("duration", elapsed),
	)

	c.subsMu.RLock()
	subs := c.subs
	c.subsMu.RUnlock()
	for _, fn := range subs {
		fn(snap)
	}

	return Result{
		NodeCount:  snap.NodeCount(),
		EdgeCount:  snap.EdgeCount(),
		Generation: next,
		Duration:   elapsed,
	}, nil
}

// ReloadFrom loads a record set from src and reloads it. Concurrent calls
// for a source with the same name share one load and build.
func (c *Coordinator) ReloadFrom(ctx context.Context, src Source) (Result, error) {
	if ctx == nil {
		return Result{}, ErrNilContext
	}
	if src == nil {
		return Result{}, ErrNilSource
	}

	v, err, shared := c.group.Do(src.Name(), func() (any, error) {
		set, err := src.Load(ctx)
		if err != nil {
			recordSourceFailure()
			return Result{}, fmt.Errorf("%w %s: %w", ErrSourceLoad, src.Name(), err)
		}
		return c.Reload(ctx, set.Nodes, set.Edges)
	})
	if shared {
		c.logger.Debug("reload shared with concurrent caller", slog.String("source", src.Name()))
	}
	res, _ := v.(Result)
	return res, err
}
