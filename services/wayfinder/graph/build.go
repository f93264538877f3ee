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
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Build validates raw records and compiles them into a Snapshot.
//
// Description:
//
//	Checks every record for field validity, duplicate node ids, dangling
//	edge endpoints, non-positive weights and malformed coordinates. All
//	defects are collected into a single *BuildError. On success the node
//	arena, id index, bidirectional CSR adjacency, name index and floor
//	index are built.
//
// Inputs:
//
//	nodes - Node records. Order is preserved in the snapshot.
//	edges - Edge records. Each produces an arc in both directions.
//	opts - Capacity limits, generation and clock.
//
// Outputs:
//
//	*Snapshot - The compiled snapshot. Nil on error.
//	error - A *BuildError when any record is defective.
//
// Thread Safety: Pure function. Safe for concurrent use; inputs are not
// retained or modified.
func Build(nodes []NodeRecord, edges []EdgeRecord, opts ...BuildOption) (*Snapshot, error) {
	options := defaultBuildOptions()
	for _, opt := range opts {
		opt(&options)
	}

	var issues []Issue
	if len(nodes) > options.MaxNodes {
		issues = append(issues, newIssue(ErrMaxNodesExceeded, -1,
			fmt.Sprintf("%d nodes, limit %d", len(nodes), options.MaxNodes)))
	}
	if len(edges) > options.MaxEdges {
		issues = append(issues, newIssue(ErrMaxEdgesExceeded, -1,
			fmt.Sprintf("%d edges, limit %d", len(edges), options.MaxEdges)))
	}
	if len(issues) > 0 {
		return nil, &BuildError{Issues: issues}
	}

	index := make(map[string]int, len(nodes))
	for i := range nodes {
		rec := &nodes[i]
		if err := validate.Struct(rec); err != nil {
			issue := newIssue(ErrInvalidRecord, i, describeValidation(err))
			issue.NodeID = rec.ID
			issues = append(issues, issue)
		}
		if detail, ok := checkCoordinates(rec); !ok {
			issue := newIssue(ErrInvalidCoordinates, i, detail)
			issue.NodeID = rec.ID
			issues = append(issues, issue)
		}
		if rec.ID == "" {
			continue
		}
		if first, dup := index[rec.ID]; dup {
			issue := newIssue(ErrDuplicateNodeID, i, fmt.Sprintf("first defined at index %d", first))
			issue.NodeID = rec.ID
			issues = append(issues, issue)
			continue
		}
		index[rec.ID] = i
	}

	for i := range edges {
		rec := &edges[i]
		if err := validate.Struct(rec); err != nil {
			issues = append(issues, edgeIssue(ErrInvalidRecord, i, rec, describeValidation(err)))
		}
		if rec.Weight <= 0 || math.IsNaN(rec.Weight) || math.IsInf(rec.Weight, 0) {
			issues = append(issues, edgeIssue(ErrInvalidWeight, i, rec, fmt.Sprintf("weight %v", rec.Weight)))
		}
		var missing []string
		if _, ok := index[rec.From]; !ok && rec.From != "" {
			missing = append(missing, rec.From)
		}
		if _, ok := index[rec.To]; !ok && rec.To != "" && rec.To != rec.From {
			missing = append(missing, rec.To)
		}
		if len(missing) > 0 {
			issues = append(issues, edgeIssue(ErrDanglingEdgeReference, i, rec,
				"unknown "+strings.Join(missing, ", ")))
		}
	}

	if len(issues) > 0 {
		return nil, &BuildError{Issues: issues}
	}

	return compile(nodes, edges, index, options), nil
}

// compile assembles a snapshot from records that have already passed
// validation.
func compile(nodes []NodeRecord, edges []EdgeRecord, index map[string]int, options BuildOptions) *Snapshot {
	s := &Snapshot{
		nodes:      make([]Node, len(nodes)),
		index:      index,
		names:      make([]string, len(nodes)),
		exactNames: make(map[string]int, len(nodes)),
		byFloor:    make(map[int][]int),
		edgeCount:  len(edges),
		generation: options.Generation,
		builtAt:    options.Now(),
	}

	for i := range nodes {
		rec := &nodes[i]
		n := Node{
			ID:       rec.ID,
			Name:     strings.TrimSpace(rec.Name),
			Detail:   strings.TrimSpace(rec.Detail),
			Floor:    rec.Floor,
			Category: ParseNodeCategory(rec.Category),
		}
		if rec.X != nil && rec.Y != nil {
			n.Pos = &Point{X: *rec.X, Y: *rec.Y}
		}
		s.nodes[i] = n

		key := NormalizeName(n.Name)
		s.names[i] = key
		if prev, ok := s.exactNames[key]; !ok || n.ID < s.nodes[prev].ID {
			s.exactNames[key] = i
		}

		if _, seen := s.byFloor[n.Floor]; !seen {
			s.floors = append(s.floors, n.Floor)
		}
		s.byFloor[n.Floor] = append(s.byFloor[n.Floor], i)
	}
	sort.Ints(s.floors)

	// Compressed sparse row adjacency. Self-loops never shorten a path and
	// are counted as edges but produce no arcs.
	s.firstOut = make([]int, len(nodes)+1)
	for i := range edges {
		from, to := index[edges[i].From], index[edges[i].To]
		if from == to {
			continue
		}
		s.firstOut[from+1]++
		s.firstOut[to+1]++
	}
	for i := 1; i < len(s.firstOut); i++ {
		s.firstOut[i] += s.firstOut[i-1]
	}
	s.arcs = make([]Arc, s.firstOut[len(nodes)])
	cursor := make([]int, len(nodes))
	copy(cursor, s.firstOut[:len(nodes)])

	for i := range edges {
		rec := &edges[i]
		from, to := index[rec.From], index[rec.To]
		if from == to {
			continue
		}
		category := ParseEdgeCategory(rec.Category)
		s.arcs[cursor[from]] = Arc{To: to, Weight: rec.Weight, Category: category, Vertical: rec.Vertical}
		cursor[from]++
		s.arcs[cursor[to]] = Arc{To: from, Weight: rec.Weight, Category: category, Vertical: rec.Vertical}
		cursor[to]++
	}

	s.component, s.componentScale = heuristicScales(s.nodes, edges, index)
	s.heuristicScale = 1
	for _, k := range s.componentScale {
		s.heuristicScale = math.Min(s.heuristicScale, k)
	}
	return s
}

// heuristicScales groups nodes into connected components, ignoring edge
// direction, and returns each node's component with the largest factor k
// per component such that k times the planar distance between the
// endpoints never exceeds the weight of any edge in that component.
//
// Every path lies inside one component, so scaling the Euclidean estimate
// by the goal component's k keeps it a lower bound on path cost whatever
// units the coordinates use. Factors are capped at 1. A component is 0
// when one of its edges touches a node without coordinates, since no
// planar bound holds across such a node.
func heuristicScales(nodes []Node, edges []EdgeRecord, index map[string]int) ([]int, []float64) {
	parent := make([]int, len(nodes))
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	for i := range edges {
		a, b := find(index[edges[i].From]), find(index[edges[i].To])
		if a != b {
			parent[a] = b
		}
	}

	component := make([]int, len(nodes))
	ids := make(map[int]int)
	for i := range nodes {
		root := find(i)
		c, ok := ids[root]
		if !ok {
			c = len(ids)
			ids[root] = c
		}
		component[i] = c
	}

	scales := make([]float64, len(ids))
	for c := range scales {
		scales[c] = 1
	}
	for i := range edges {
		fi := index[edges[i].From]
		c := component[fi]
		if scales[c] == 0 {
			continue
		}
		from, to := &nodes[fi], &nodes[index[edges[i].To]]
		if !from.HasCoordinates() || !to.HasCoordinates() {
			scales[c] = 0
			continue
		}
		d := from.Pos.Dist(*to.Pos)
		if d == 0 {
			continue
		}
		if r := edges[i].Weight / d; r < scales[c] {
			scales[c] = r
		}
	}
	return component, scales
}

func checkCoordinates(rec *NodeRecord) (string, bool) {
	if (rec.X == nil) != (rec.Y == nil) {
		return "x and y must both be set or both be empty", false
	}
	if rec.X == nil {
		return "", true
	}
	for _, v := range []float64{*rec.X, *rec.Y} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Sprintf("non-finite coordinate %v", v), false
		}
	}
	return "", true
}

func edgeIssue(sentinel error, index int, rec *EdgeRecord, detail string) Issue {
	issue := newIssue(sentinel, index, detail)
	issue.FromID = rec.From
	issue.ToID = rec.To
	return issue
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, ", ")
}

// NormalizeName folds case and collapses whitespace so that name lookups
// ignore formatting differences.
func NormalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
