// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package wayfinder

import (
	"github.com/AleutianAI/wayfinder/services/wayfinder/graph"
	"github.com/AleutianAI/wayfinder/services/wayfinder/instructions"
)

// RouteRequest asks for a route from a start node to a target.
//
// Exactly one target field must be set. TargetNodeID is matched as an id,
// TargetName is resolved against node names, and Target is tried as an id
// first and as a name otherwise.
type RouteRequest struct {
	StartNodeID  string `json:"start_node_id"`
	TargetNodeID string `json:"target_node_id,omitempty"`
	TargetName   string `json:"target_name,omitempty"`
	Target       string `json:"target,omitempty"`
}

// RouteResponse is the result of ComputeRoute.
//
// Success is false for the expected outcomes (unknown node, unresolved
// name, no path, search budget exceeded). Code then carries the outcome
// and Message explains it.
type RouteResponse struct {
	// Success is true when a path was found.
	Success bool `json:"success"`

	// Code is the upper-case outcome, e.g. "FOUND" or "PATH_NOT_FOUND".
	Code string `json:"code"`

	// Path lists node ids from start to goal.
	Path []string `json:"path,omitempty"`

	// PathNodes holds the node details for Path, in the same order.
	PathNodes []graph.Node `json:"path_nodes,omitempty"`

	// TotalDistance is the sum of traversed edge weights.
	TotalDistance float64 `json:"total_distance"`

	// Steps are the turn-by-turn instructions, one per edge.
	Steps []instructions.Step `json:"steps,omitempty"`

	// FloorsInvolved lists the floors visited, in order of first visit.
	FloorsInvolved []int `json:"floors_involved,omitempty"`

	// Message is a human-readable summary.
	Message string `json:"message"`

	// DistanceText and EstimatedTime render TotalDistance for display.
	DistanceText  string `json:"distance_text,omitempty"`
	EstimatedTime string `json:"estimated_time,omitempty"`

	// Expansions is the number of nodes the search expanded.
	Expansions int `json:"expansions"`

	// Generation identifies the graph the route was computed against.
	Generation uint64 `json:"generation"`

	// Cached is true when the response was served from the route cache.
	Cached bool `json:"cached"`
}

// NodeListResponse is returned by SearchNodes and ListNodes.
type NodeListResponse struct {
	Nodes []graph.Node `json:"nodes"`
	Total int          `json:"total"`
}

// ReloadResponse describes a published graph.
type ReloadResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	NodeCount  int    `json:"nodes_count"`
	EdgeCount  int    `json:"edges_count"`
	Generation uint64 `json:"generation"`
	DurationMs int64  `json:"duration_ms"`
}

// StatsResponse is returned by GET /debug/graph/stats.
type StatsResponse struct {
	Graph graph.Stats `json:"graph"`
	Cache CacheStats  `json:"cache"`
}

// CacheStats reports route cache effectiveness.
type CacheStats struct {
	Enabled   bool  `json:"enabled"`
	Entries   int   `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code.
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`

	// Issues lists graph defects when a build was rejected.
	Issues []graph.Issue `json:"issues,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse is returned by GET /ready.
type ReadyResponse struct {
	Ready      bool   `json:"ready"`
	NodeCount  int    `json:"nodes_count"`
	Generation uint64 `json:"generation"`
	Source     string `json:"source,omitempty"`
}
