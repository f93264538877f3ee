// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package routing finds shortest weighted paths over a graph snapshot.
//
// FindPath resolves the endpoints, runs A* with a planar heuristic that is
// scaled to stay admissible, and reports the outcome as data. Expected
// failures such as an unknown node or an unreachable target are Outcome
// values, never Go errors.
package routing

import (
	"github.com/AleutianAI/wayfinder/services/wayfinder/graph"
)

// Outcome is the terminal status of a route query.
type Outcome int

const (
	// Found means a path was returned.
	Found Outcome = iota

	// NodeNotFound means the start id, or a target given as an id, is not
	// in the snapshot.
	NodeNotFound

	// NameResolutionFailed means no node name matched the target text.
	NameResolutionFailed

	// PathNotFound means both endpoints exist but are not connected.
	PathNotFound

	// SearchBudgetExceeded means the expansion ceiling was hit before the
	// goal was reached.
	SearchBudgetExceeded
)

var outcomeNames = map[Outcome]string{
	Found:                "found",
	NodeNotFound:         "node_not_found",
	NameResolutionFailed: "name_resolution_failed",
	PathNotFound:         "path_not_found",
	SearchBudgetExceeded: "search_budget_exceeded",
}

// String returns the snake_case name of the outcome.
func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// TargetKind says how a Target's text is interpreted.
type TargetKind int

const (
	// TargetID treats the text as a node id.
	TargetID TargetKind = iota

	// TargetName resolves the text against node names.
	TargetName

	// TargetAuto uses the text as an id when one matches exactly and
	// falls back to name resolution otherwise.
	TargetAuto
)

// Target identifies the goal of a route query.
type Target struct {
	Kind  TargetKind
	Value string
}

// ByID targets a node id.
func ByID(id string) Target { return Target{Kind: TargetID, Value: id} }

// ByName targets free text resolved against node names.
func ByName(name string) Target { return Target{Kind: TargetName, Value: name} }

// Auto targets an id if one matches, otherwise a name.
func Auto(text string) Target { return Target{Kind: TargetAuto, Value: text} }

// Heuristic selects the A* estimate.
type Heuristic int

const (
	// HeuristicPlanar uses the snapshot's scaled same-floor Euclidean
	// distance.
	HeuristicPlanar Heuristic = iota

	// HeuristicNone uses zero everywhere, which makes the search Dijkstra.
	HeuristicNone
)

// DefaultMaxExpansions bounds the work of a single query.
const DefaultMaxExpansions = 1_000_000

// Options configures FindPath.
type Options struct {
	// MaxExpansions is the node-expansion ceiling. Default: DefaultMaxExpansions.
	MaxExpansions int

	// Heuristic selects the estimate. Default: HeuristicPlanar.
	Heuristic Heuristic
}

// Option is a functional option for FindPath.
type Option func(*Options)

// WithMaxExpansions sets the expansion ceiling. Values below 1 are ignored.
func WithMaxExpansions(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxExpansions = n
		}
	}
}

// WithHeuristic selects the heuristic.
func WithHeuristic(h Heuristic) Option {
	return func(o *Options) {
		o.Heuristic = h
	}
}

// PathResult is the outcome of one route query.
//
// Path, Nodes, TotalDistance and Floors are populated only when Outcome is
// Found.
type PathResult struct {
	Outcome       Outcome      `json:"outcome"`
	StartID       string       `json:"start_id"`
	GoalID        string       `json:"goal_id,omitempty"`
	Path          []string     `json:"path,omitempty"`
	Nodes         []graph.Node `json:"nodes,omitempty"`
	TotalDistance float64      `json:"total_distance"`
	Floors        []int        `json:"floors,omitempty"`
	Expansions    int          `json:"expansions"`
	Generation    uint64       `json:"generation"`
	Message       string       `json:"message"`
}

// Found reports whether a path was returned.
func (r *PathResult) Found() bool {
	return r.Outcome == Found
}
