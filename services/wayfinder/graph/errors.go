// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph compiles raw building node and edge records into immutable,
// indexed snapshots.
//
// A Snapshot is built once by Build and never mutated afterwards. Route
// queries read it without locking; a reload replaces it wholesale.
package graph

import "errors"

// Build errors. Every issue reported by a BuildError wraps exactly one of
// these, so callers can test with errors.Is.
var (
	// ErrDuplicateNodeID is returned when two node records share an id.
	ErrDuplicateNodeID = errors.New("duplicate node id")

	// ErrDanglingEdgeReference is returned when an edge names a node id
	// that is not part of the same record set.
	ErrDanglingEdgeReference = errors.New("edge references unknown node")

	// ErrInvalidWeight is returned when an edge weight is zero, negative,
	// NaN or infinite.
	ErrInvalidWeight = errors.New("edge weight must be positive and finite")

	// ErrInvalidCoordinates is returned when a node carries only one of x/y
	// or a coordinate that is not finite.
	ErrInvalidCoordinates = errors.New("invalid node coordinates")

	// ErrInvalidRecord is returned when a record fails field validation
	// (missing id or name, over-long fields).
	ErrInvalidRecord = errors.New("invalid record")

	// ErrMaxNodesExceeded is returned when the node set exceeds the
	// configured capacity.
	ErrMaxNodesExceeded = errors.New("maximum node count exceeded")

	// ErrMaxEdgesExceeded is returned when the edge set exceeds the
	// configured capacity.
	ErrMaxEdgesExceeded = errors.New("maximum edge count exceeded")
)

// ErrNodeNotFound is returned by snapshot lookups for an unknown id.
var ErrNodeNotFound = errors.New("node not found")

// issueKinds gives each build sentinel a stable machine-readable name.
var issueKinds = map[error]string{
	ErrDuplicateNodeID:       "duplicate_node_id",
	ErrDanglingEdgeReference: "dangling_edge_reference",
	ErrInvalidWeight:         "invalid_weight",
	ErrInvalidCoordinates:    "invalid_coordinates",
	ErrInvalidRecord:         "invalid_record",
	ErrMaxNodesExceeded:      "max_nodes_exceeded",
	ErrMaxEdgesExceeded:      "max_edges_exceeded",
}
