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
	"strings"
	"time"
	"unicode/utf8"
)

// Snapshot is an immutable, indexed building graph.
//
// Nodes live in a flat arena addressed by index; adjacency is stored in
// compressed sparse row form where the arcs of node i are
// arcs[firstOut[i]:firstOut[i+1]].
//
// Thread Safety: All methods are safe for concurrent use. Slices returned by
// ArcsOf alias internal storage and must not be modified.
type Snapshot struct {
	nodes      []Node
	index      map[string]int
	firstOut   []int
	arcs       []Arc
	names      []string
	exactNames map[string]int
	floors     []int
	byFloor    map[int][]int
	edgeCount  int

	component      []int
	componentScale []float64
	heuristicScale float64
	generation     uint64
	builtAt        time.Time
}

// Empty returns a snapshot with no nodes, generation 0.
func Empty() *Snapshot {
	return &Snapshot{
		index:      map[string]int{},
		firstOut:   []int{0},
		exactNames: map[string]int{},
		byFloor:    map[int][]int{},
		builtAt:    time.Now(),
	}
}

// NodeCount returns the number of nodes.
func (s *Snapshot) NodeCount() int { return len(s.nodes) }

// EdgeCount returns the number of edge records compiled into the snapshot.
func (s *Snapshot) EdgeCount() int { return s.edgeCount }

// Generation returns the generation stamped at build time.
func (s *Snapshot) Generation() uint64 { return s.generation }

// BuiltAt returns the build timestamp.
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// HeuristicScale returns the smallest per-component heuristic factor, 1
// for a graph without edges. See heuristicScales.
func (s *Snapshot) HeuristicScale() float64 { return s.heuristicScale }

// HeuristicScaleFor returns the factor applied to planar distance when
// routing to node i, which is the factor of i's connected component. It is
// 0 for an index outside the snapshot.
func (s *Snapshot) HeuristicScaleFor(i int) float64 {
	if i < 0 || i >= len(s.component) {
		return 0
	}
	return s.componentScale[s.component[i]]
}

// Index returns the arena index of a node id.
func (s *Snapshot) Index(id string) (int, bool) {
	i, ok := s.index[id]
	return i, ok
}

// NodeAt returns the node at arena index i. It panics if i is out of range.
func (s *Snapshot) NodeAt(i int) *Node {
	return &s.nodes[i]
}

// Node returns the node with the given id.
func (s *Snapshot) Node(id string) (Node, bool) {
	i, ok := s.index[id]
	if !ok {
		return Node{}, false
	}
	return s.nodes[i], true
}

// Nodes returns a copy of all nodes in record order.
func (s *Snapshot) Nodes() []Node {
	out := make([]Node, len(s.nodes))
	copy(out, s.nodes)
	return out
}

// NodesOnFloor returns the nodes on a floor in record order.
func (s *Snapshot) NodesOnFloor(floor int) []Node {
	idx := s.byFloor[floor]
	out := make([]Node, len(idx))
	for i, n := range idx {
		out[i] = s.nodes[n]
	}
	return out
}

// Floors returns the distinct floors in ascending order.
func (s *Snapshot) Floors() []int {
	out := make([]int, len(s.floors))
	copy(out, s.floors)
	return out
}

// ArcsOf returns the outgoing arcs of the node at index i.
func (s *Snapshot) ArcsOf(i int) []Arc {
	return s.arcs[s.firstOut[i]:s.firstOut[i+1]]
}

// Neighbors returns the arcs leaving id, addressed by neighbor id.
func (s *Snapshot) Neighbors(id string) ([]Neighbor, error) {
	i, ok := s.index[id]
	if !ok {
		return nil, ErrNodeNotFound
	}
	arcs := s.ArcsOf(i)
	out := make([]Neighbor, len(arcs))
	for k, a := range arcs {
		out[k] = Neighbor{
			ID:       s.nodes[a.To].ID,
			Weight:   a.Weight,
			Category: a.Category,
			Vertical: a.Vertical,
		}
	}
	return out, nil
}

// CheapestArc returns the lowest-weight arc from index from to index to.
// When parallel edges tie, the first one in record order wins.
func (s *Snapshot) CheapestArc(from, to int) (Arc, bool) {
	var best Arc
	found := false
	for _, a := range s.ArcsOf(from) {
		if a.To != to {
			continue
		}
		if !found || a.Weight < best.Weight {
			best = a
			found = true
		}
	}
	return best, found
}

// Search returns nodes whose id, name or detail contains keyword,
// case-insensitively, in record order. A blank keyword matches nothing.
func (s *Snapshot) Search(keyword string) []Node {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return nil
	}
	var out []Node
	for i := range s.nodes {
		n := &s.nodes[i]
		if strings.Contains(strings.ToLower(n.ID), kw) ||
			strings.Contains(s.names[i], kw) ||
			strings.Contains(strings.ToLower(n.Detail), kw) {
			out = append(out, *n)
		}
	}
	return out
}

// ResolveName maps free text to a node index.
//
// An exact case-insensitive match on the full name wins. Otherwise the
// node with the shortest name containing the text is chosen. Ties in
// either step go to the lowest node id.
func (s *Snapshot) ResolveName(text string) (int, bool) {
	q := NormalizeName(text)
	if q == "" {
		return 0, false
	}
	if i, ok := s.exactNames[q]; ok {
		return i, true
	}

	best, bestLen := -1, 0
	for i, name := range s.names {
		if !strings.Contains(name, q) {
			continue
		}
		l := utf8.RuneCountInString(name)
		if best < 0 || l < bestLen || (l == bestLen && s.nodes[i].ID < s.nodes[best].ID) {
			best, bestLen = i, l
		}
	}
	return best, best >= 0
}

// Stats summarizes the snapshot.
func (s *Snapshot) Stats() Stats {
	perFloor := make(map[int]int, len(s.byFloor))
	for f, idx := range s.byFloor {
		perFloor[f] = len(idx)
	}
	return Stats{
		NodeCount:      len(s.nodes),
		EdgeCount:      s.edgeCount,
		ArcCount:       len(s.arcs),
		Floors:         s.Floors(),
		NodesPerFloor:  perFloor,
		Generation:     s.generation,
		BuiltAtMilli:   s.builtAt.UnixMilli(),
		HeuristicScale: s.heuristicScale,
	}
}
