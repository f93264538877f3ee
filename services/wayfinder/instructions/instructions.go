// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package instructions turns a node path into numbered, human-readable
// navigation steps.
package instructions

import (
	"errors"
	"fmt"
	"math"

	"github.com/AleutianAI/wayfinder/services/wayfinder/graph"
)

var (
	// ErrEmptyPath is returned for a path with no nodes.
	ErrEmptyPath = errors.New("empty path")

	// ErrUnknownNode is returned when a path names a node the snapshot
	// does not contain.
	ErrUnknownNode = errors.New("path references unknown node")

	// ErrNoEdge is returned when two consecutive path nodes are not joined
	// by an edge.
	ErrNoEdge = errors.New("consecutive path nodes are not connected")
)

// Step is one traversed edge of a route.
type Step struct {
	Number      int                `json:"step"`
	Instruction string             `json:"instruction"`
	FromID      string             `json:"from_node_id"`
	ToID        string             `json:"to_node_id"`
	Distance    float64            `json:"distance"`
	Category    graph.EdgeCategory `json:"edge_type"`

	// FloorDelta is target floor minus source floor, set only for
	// vertical edges.
	FloorDelta *int `json:"floor_change,omitempty"`
}

// Itinerary is the description of a whole path.
type Itinerary struct {
	Steps         []Step  `json:"steps"`
	TotalDistance float64 `json:"total_distance"`
	Floors        []int   `json:"floors_involved"`
}

// Describe produces one step per edge of path.
//
// Description:
//
//	Looks up the cheapest edge between each pair of consecutive nodes and
//	phrases it according to its category. Corridor steps carry a turn
//	direction when the surrounding nodes share a floor and have
//	coordinates. Floors are listed in order of first appearance.
//
// Inputs:
//
//	snap - The snapshot the path was computed against.
//	path - Node ids from start to goal.
//
// Outputs:
//
//	*Itinerary - Steps, total distance and floors.
//	error - ErrEmptyPath, ErrUnknownNode or ErrNoEdge, wrapped with the
//	offending ids.
//
// Thread Safety: Pure function.
func Describe(snap *graph.Snapshot, path []string) (*Itinerary, error) {
	if len(path) == 0 {
		return nil, ErrEmptyPath
	}

	idx := make([]int, len(path))
	for k, id := range path {
		i, ok := snap.Index(id)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownNode, id)
		}
		idx[k] = i
	}

	it := &Itinerary{Steps: make([]Step, 0, len(path)-1)}
	seen := make(map[int]bool)
	for _, i := range idx {
		if f := snap.NodeAt(i).Floor; !seen[f] {
			seen[f] = true
			it.Floors = append(it.Floors, f)
		}
	}

	var prevArc *graph.Arc
	for k := 1; k < len(idx); k++ {
		from, to := snap.NodeAt(idx[k-1]), snap.NodeAt(idx[k])
		arc, ok := snap.CheapestArc(idx[k-1], idx[k])
		if !ok {
			return nil, fmt.Errorf("%w: %q -> %q", ErrNoEdge, from.ID, to.ID)
		}

		var prev *graph.Node
		if k >= 2 && prevArc != nil && prevArc.Category == graph.EdgeNormal {
			prev = snap.NodeAt(idx[k-2])
		}

		step := Step{
			Number:      k,
			Instruction: phrase(prev, from, to, arc),
			FromID:      from.ID,
			ToID:        to.ID,
			Distance:    arc.Weight,
			Category:    arc.Category,
		}
		if arc.Vertical {
			delta := to.Floor - from.Floor
			step.FloorDelta = &delta
		}
		it.Steps = append(it.Steps, step)
		it.TotalDistance += arc.Weight
		prevArc = &arc
	}
	return it, nil
}

func phrase(prev, from, to *graph.Node, arc graph.Arc) string {
	switch arc.Category {
	case graph.EdgeStairs:
		return vertical("Take the stairs", from, to)
	case graph.EdgeLifts:
		return vertical("Take the lift", from, to)
	case graph.EdgeEscalator:
		return vertical("Take the escalator", from, to)

	case graph.EdgeNormal:
		tail := fmt.Sprintf("about %.0f m to %s", arc.Weight, label(to))
		switch turnBetween(prev, from, to) {
		case turnLeft:
			return "Turn left and walk " + tail
		case turnRight:
			return "Turn right and walk " + tail
		case turnStraight:
			return "Continue straight for " + tail
		case turnAround:
			return "Turn around and walk " + tail
		}
		return "Walk " + tail
	}
	return "Continue to " + label(to)
}

// vertical appends direction and level to a stairs, lift or escalator
// phrase. A connector that stays on one floor names its target instead.
func vertical(verb string, from, to *graph.Node) string {
	delta := to.Floor - from.Floor
	switch {
	case delta > 0:
		return fmt.Sprintf("%s up %s to Level %d", verb, floors(delta), to.Floor)
	case delta < 0:
		return fmt.Sprintf("%s down %s to Level %d", verb, floors(-delta), to.Floor)
	}
	return verb + " to " + label(to)
}

func label(n *graph.Node) string {
	name := n.Name
	if name == "" {
		name = n.ID
	}
	if n.Detail != "" {
		return fmt.Sprintf("%s (%s)", name, n.Detail)
	}
	return name
}

func floors(n int) string {
	if n == 1 {
		return "1 floor"
	}
	return fmt.Sprintf("%d floors", n)
}

type turn int

const (
	turnUnknown turn = iota
	turnStraight
	turnLeft
	turnRight
	turnAround
)

// turnBetween classifies the heading change at from. Coordinates are image
// pixels, so y grows downward and a positive cross product is a right turn.
func turnBetween(prev, from, to *graph.Node) turn {
	if prev == nil || prev.Pos == nil || from.Pos == nil || to.Pos == nil {
		return turnUnknown
	}
	if prev.Floor != from.Floor || from.Floor != to.Floor {
		return turnUnknown
	}
	ax, ay := from.Pos.X-prev.Pos.X, from.Pos.Y-prev.Pos.Y
	bx, by := to.Pos.X-from.Pos.X, to.Pos.Y-from.Pos.Y
	if (ax == 0 && ay == 0) || (bx == 0 && by == 0) {
		return turnUnknown
	}

	cross := ax*by - ay*bx
	dot := ax*bx + ay*by
	angle := math.Atan2(math.Abs(cross), dot) * 180 / math.Pi
	switch {
	case angle < 30:
		return turnStraight
	case angle > 150:
		return turnAround
	case cross > 0:
		return turnRight
	}
	return turnLeft
}
