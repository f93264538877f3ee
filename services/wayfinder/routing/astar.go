// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routing

import (
	"fmt"
	"math"

	"github.com/AleutianAI/wayfinder/services/wayfinder/graph"
)

// FindPath computes the shortest weighted path from startID to target.
//
// Description:
//
//	Resolves the goal (by id, by name, or automatically), then runs A*
//	over the snapshot's adjacency. The heuristic is the planar distance to
//	the goal scaled by the snapshot's heuristic scale when the node and
//	the goal share a floor and both have coordinates, and zero otherwise.
//	Nodes whose cost improves after expansion are re-opened, so the first
//	time the goal is popped its cost is optimal.
//
// Inputs:
//
//	snap - The snapshot to search. Must not be nil.
//	startID - Id of the start node. Never resolved by name.
//	target - The goal, see ByID, ByName and Auto.
//	opts - Expansion ceiling and heuristic selection.
//
// Outputs:
//
//	*PathResult - Never nil. Outcome reports success or the reason for
//	failure.
//
// Thread Safety: Safe for concurrent use. All state is local to the call.
func FindPath(snap *graph.Snapshot, startID string, target Target, opts ...Option) *PathResult {
	options := Options{MaxExpansions: DefaultMaxExpansions, Heuristic: HeuristicPlanar}
	for _, opt := range opts {
		opt(&options)
	}

	res := &PathResult{StartID: startID, Generation: snap.Generation()}

	start, ok := snap.Index(startID)
	if !ok {
		res.Outcome = NodeNotFound
		res.Message = fmt.Sprintf("start node %q not found", startID)
		return res
	}

	goal, outcome, msg := resolveTarget(snap, target)
	if outcome != Found {
		res.Outcome = outcome
		res.Message = msg
		return res
	}
	res.GoalID = snap.NodeAt(goal).ID

	if start == goal {
		fill(snap, res, []int{start}, 0)
		res.Message = "already at destination"
		return res
	}

	s := newSearch(snap, goal, options)
	return s.run(res, start)
}

func resolveTarget(snap *graph.Snapshot, target Target) (int, Outcome, string) {
	switch target.Kind {
	case TargetID:
		if i, ok := snap.Index(target.Value); ok {
			return i, Found, ""
		}
		return 0, NodeNotFound, fmt.Sprintf("target node %q not found", target.Value)

	case TargetAuto:
		if i, ok := snap.Index(target.Value); ok {
			return i, Found, ""
		}
	}

	if i, ok := snap.ResolveName(target.Value); ok {
		return i, Found, ""
	}
	return 0, NameResolutionFailed, fmt.Sprintf("no location matches %q", target.Value)
}

type search struct {
	snap      *graph.Snapshot
	goal      int
	goalFloor int
	goalPos   *graph.Point
	scale     float64
	maxExp    int

	g      []float64
	parent []int
	open   *openSet
}

func newSearch(snap *graph.Snapshot, goal int, options Options) *search {
	n := snap.NodeCount()
	s := &search{
		snap:      snap,
		goal:      goal,
		goalFloor: snap.NodeAt(goal).Floor,
		goalPos:   snap.NodeAt(goal).Pos,
		maxExp:    options.MaxExpansions,
		g:         make([]float64, n),
		parent:    make([]int, n),
		open:      &openSet{snap: snap},
	}
	if options.Heuristic == HeuristicPlanar {
		s.scale = snap.HeuristicScaleFor(goal)
	}
	for i := range s.g {
		s.g[i] = math.Inf(1)
		s.parent[i] = -1
	}
	return s
}

func (s *search) h(i int) float64 {
	if s.scale == 0 || s.goalPos == nil {
		return 0
	}
	n := s.snap.NodeAt(i)
	if n.Floor != s.goalFloor || n.Pos == nil {
		return 0
	}
	return s.scale * n.Pos.Dist(*s.goalPos)
}

func (s *search) run(res *PathResult, start int) *PathResult {
	s.g[start] = 0
	s.open.push(openEntry{node: start, g: 0, f: s.h(start)})

	expansions := 0
	for s.open.Len() > 0 {
		cur := s.open.pop()
		if cur.g > s.g[cur.node] {
			continue
		}
		if cur.node == s.goal {
			fill(s.snap, res, s.reconstruct(), s.g[s.goal])
			res.Expansions = expansions + 1
			res.Message = "path found"
			return res
		}
		if expansions >= s.maxExp {
			res.Outcome = SearchBudgetExceeded
			res.Expansions = expansions
			res.Message = fmt.Sprintf("search stopped after %d expansions", expansions)
			return res
		}
		expansions++

		for _, arc := range s.snap.ArcsOf(cur.node) {
			ng := cur.g + arc.Weight
			if ng >= s.g[arc.To] {
				continue
			}
			s.g[arc.To] = ng
			s.parent[arc.To] = cur.node
			s.open.push(openEntry{node: arc.To, g: ng, f: ng + s.h(arc.To)})
		}
	}

	res.Outcome = PathNotFound
	res.Expansions = expansions
	res.Message = fmt.Sprintf("no path from %q to %q", res.StartID, res.GoalID)
	return res
}

func (s *search) reconstruct() []int {
	var rev []int
	for at := s.goal; at != -1; at = s.parent[at] {
		rev = append(rev, at)
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}

// fill writes a found path into res. Floors are listed in order of first
// appearance along the path.
func fill(snap *graph.Snapshot, res *PathResult, path []int, dist float64) {
	res.Outcome = Found
	res.Path = make([]string, len(path))
	res.Nodes = make([]graph.Node, len(path))
	seen := make(map[int]bool)
	for k, i := range path {
		n := snap.NodeAt(i)
		res.Path[k] = n.ID
		res.Nodes[k] = *n
		if !seen[n.Floor] {
			seen[n.Floor] = true
			res.Floors = append(res.Floors, n.Floor)
		}
	}
	res.TotalDistance = dist
}
