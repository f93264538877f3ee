// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"math"
	"strings"
	"time"
)

// NodeCategory classifies a location in the building.
type NodeCategory string

// Node categories.
const (
	NodeRoom      NodeCategory = "room"
	NodeStairs    NodeCategory = "stairs"
	NodeLift      NodeCategory = "lift"
	NodeEscalator NodeCategory = "escalator"
	NodeCorridor  NodeCategory = "corridor"
	NodeOther     NodeCategory = "other"
)

// nodeCategoryNames maps accepted record spellings to categories. The
// legacy classroom/restroom/entrance types still appear in older exports.
var nodeCategoryNames = map[string]NodeCategory{
	"room":      NodeRoom,
	"classroom": NodeRoom,
	"stairs":    NodeStairs,
	"lift":      NodeLift,
	"lifts":     NodeLift,
	"escalator": NodeEscalator,
	"corridor":  NodeCorridor,
	"restroom":  NodeOther,
	"entrance":  NodeOther,
	"other":     NodeOther,
}

// ParseNodeCategory normalizes a record's node_type. Empty and unknown
// values map to NodeOther.
func ParseNodeCategory(s string) NodeCategory {
	if c, ok := nodeCategoryNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return c
	}
	return NodeOther
}

// EdgeCategory describes how an edge is traversed.
//
// Values outside the four known categories are preserved verbatim so that
// instruction text can fall back to a generic phrase for them.
type EdgeCategory string

// Edge categories.
const (
	EdgeNormal    EdgeCategory = "normal"
	EdgeStairs    EdgeCategory = "stairs"
	EdgeLifts     EdgeCategory = "lifts"
	EdgeEscalator EdgeCategory = "escalator"
)

// Known reports whether c is one of the four built-in edge categories.
func (c EdgeCategory) Known() bool {
	switch c {
	case EdgeNormal, EdgeStairs, EdgeLifts, EdgeEscalator:
		return true
	}
	return false
}

// ParseEdgeCategory normalizes a record's edge_type. Empty maps to
// EdgeNormal and "lift" is accepted for EdgeLifts.
func ParseEdgeCategory(s string) EdgeCategory {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "":
		return EdgeNormal
	case "lift":
		return EdgeLifts
	}
	return EdgeCategory(v)
}

// NodeRecord is the raw, unvalidated form of a node as it arrives from a
// record source. Field names follow the nodes table.
type NodeRecord struct {
	ID       string   `json:"id" yaml:"id" validate:"required,max=50"`
	Name     string   `json:"name" yaml:"name" validate:"required,max=100"`
	Detail   string   `json:"detail,omitempty" yaml:"detail,omitempty" validate:"max=200"`
	Floor    int      `json:"floor" yaml:"floor"`
	X        *float64 `json:"x,omitempty" yaml:"x,omitempty"`
	Y        *float64 `json:"y,omitempty" yaml:"y,omitempty"`
	Category string   `json:"node_type,omitempty" yaml:"node_type,omitempty" validate:"max=20"`
}

// EdgeRecord is the raw form of an undirected edge. Field names follow the
// edges table.
type EdgeRecord struct {
	From     string  `json:"from_node_id" yaml:"from_node_id" validate:"required,max=50"`
	To       string  `json:"to_node_id" yaml:"to_node_id" validate:"required,max=50"`
	Weight   float64 `json:"weight" yaml:"weight"`
	Category string  `json:"edge_type,omitempty" yaml:"edge_type,omitempty" validate:"max=20"`
	Vertical bool    `json:"is_vertical" yaml:"is_vertical"`
}

// RecordSet is a complete collection of node and edge records, the unit a
// record source hands to a reload.
type RecordSet struct {
	Nodes []NodeRecord `json:"nodes" yaml:"nodes"`
	Edges []EdgeRecord `json:"edges" yaml:"edges"`
}

// Point is a planar position on a floor image, in pixels. Y grows downward.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Node is a validated location held by a Snapshot.
type Node struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Detail   string       `json:"detail,omitempty"`
	Floor    int          `json:"floor"`
	Pos      *Point       `json:"position,omitempty"`
	Category NodeCategory `json:"category"`
}

// HasCoordinates reports whether the node has a planar position.
func (n *Node) HasCoordinates() bool {
	return n.Pos != nil
}

// Arc is one direction of an edge in the compiled adjacency. To is the index
// of the neighbor in the snapshot's node arena.
type Arc struct {
	To       int
	Weight   float64
	Category EdgeCategory
	Vertical bool
}

// Neighbor is the id-addressed view of an Arc.
type Neighbor struct {
	ID       string       `json:"id"`
	Weight   float64      `json:"weight"`
	Category EdgeCategory `json:"category"`
	Vertical bool         `json:"vertical"`
}

// Default capacity limits.
const (
	DefaultMaxNodes = 1_000_000
	DefaultMaxEdges = 10_000_000
)

// BuildOptions configures Build.
type BuildOptions struct {
	// MaxNodes caps the node set. Default: DefaultMaxNodes.
	MaxNodes int

	// MaxEdges caps the edge set. Default: DefaultMaxEdges.
	MaxEdges int

	// Generation is stamped on the snapshot so readers can tell versions
	// apart.
	Generation uint64

	// Now supplies the build timestamp. Default: time.Now.
	Now func() time.Time
}

// BuildOption is a functional option for Build.
type BuildOption func(*BuildOptions)

// WithMaxNodes sets the node capacity. Non-positive values are ignored.
func WithMaxNodes(n int) BuildOption {
	return func(o *BuildOptions) {
		if n > 0 {
			o.MaxNodes = n
		}
	}
}

// WithMaxEdges sets the edge capacity. Non-positive values are ignored.
func WithMaxEdges(n int) BuildOption {
	return func(o *BuildOptions) {
		if n > 0 {
			o.MaxEdges = n
		}
	}
}

// WithGeneration stamps the snapshot with a generation number.
func WithGeneration(g uint64) BuildOption {
	return func(o *BuildOptions) {
		o.Generation = g
	}
}

// WithClock overrides the build timestamp source.
func WithClock(now func() time.Time) BuildOption {
	return func(o *BuildOptions) {
		if now != nil {
			o.Now = now
		}
	}
}

func defaultBuildOptions() BuildOptions {
	return BuildOptions{
		MaxNodes: DefaultMaxNodes,
		MaxEdges: DefaultMaxEdges,
		Now:      time.Now,
	}
}

// Stats summarizes a snapshot.
type Stats struct {
	NodeCount      int         `json:"node_count"`
	EdgeCount      int         `json:"edge_count"`
	ArcCount       int         `json:"arc_count"`
	Floors         []int       `json:"floors"`
	NodesPerFloor  map[int]int `json:"nodes_per_floor"`
	Generation     uint64      `json:"generation"`
	BuiltAtMilli   int64       `json:"built_at_milli"`
	HeuristicScale float64     `json:"heuristic_scale"`
}
