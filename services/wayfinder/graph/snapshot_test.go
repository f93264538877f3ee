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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func campusSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	nodes := []NodeRecord{
		{ID: "LT50", Name: "Lecture Theater 50", Detail: "NS4-01-01", Floor: 1},
		{ID: "LT5", Name: "Lecture Theater 5", Detail: "NS2-02-07", Floor: 2},
		{ID: "TR1", Name: "Tutorial Room", Floor: 2},
		{ID: "TR0", Name: "tutorial  room", Floor: 3},
		{ID: "LIB", Name: "Library", Detail: "Lee Wee Nam", Floor: 1},
	}
	edges := []EdgeRecord{
		{From: "LT50", To: "LIB", Weight: 40},
		{From: "LT50", To: "LIB", Weight: 30},
		{From: "LT50", To: "LIB", Weight: 30, Category: "ramp"},
		{From: "LIB", To: "LT5", Weight: 12, Category: "lifts", Vertical: true},
	}
	s, err := Build(nodes, edges)
	require.NoError(t, err)
	return s
}

func TestSnapshot_ResolveName(t *testing.T) {
	s := campusSnapshot(t)

	tests := []struct {
		name  string
		query string
		want  string
		found bool
	}{
		{"exact beats substring", "Lecture Theater 5", "LT5", true},
		{"exact other", "lecture theater 50", "LT50", true},
		{"substring picks shortest name", "lecture theater", "LT5", true},
		{"substring partial word", "theater 5", "LT5", true},
		{"whitespace and case folded", "  LIBRARY ", "LIB", true},
		{"exact tie goes to lowest id", "Tutorial Room", "TR0", true},
		{"no match", "Cafeteria", "", false},
		{"blank", "   ", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i, ok := s.ResolveName(tt.query)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.want, s.NodeAt(i).ID)
			}
		})
	}
}

func TestSnapshot_ResolveNameSubstringTieGoesToLowestID(t *testing.T) {
	s, err := Build([]NodeRecord{
		{ID: "R9", Name: "Seminar Room A", Floor: 3},
		{ID: "R5", Name: "Seminar Room Annex", Floor: 3},
		{ID: "R2", Name: "Seminar Room B", Floor: 3},
	}, nil)
	require.NoError(t, err)

	i, ok := s.ResolveName("seminar room")
	require.True(t, ok)
	assert.Equal(t, "R2", s.NodeAt(i).ID)

	i, ok = s.ResolveName("room an")
	require.True(t, ok)
	assert.Equal(t, "R5", s.NodeAt(i).ID)
}

func TestSnapshot_Search(t *testing.T) {
	s := campusSnapshot(t)

	ids := func(nodes []Node) []string {
		out := make([]string, len(nodes))
		for i, n := range nodes {
			out[i] = n.ID
		}
		return out
	}

	assert.Equal(t, []string{"LT50", "LT5"}, ids(s.Search("theater")))
	assert.Equal(t, []string{"LT5"}, ids(s.Search("ns2")), "detail is searched")
	assert.Equal(t, []string{"LIB"}, ids(s.Search("lib")), "id is searched")
	assert.Equal(t, []string{"TR1", "TR0"}, ids(s.Search("tutorial room")))
	assert.Empty(t, s.Search(""))
	assert.Empty(t, s.Search("gym"))
}

func TestSnapshot_CheapestArc(t *testing.T) {
	s := campusSnapshot(t)
	lt50, _ := s.Index("LT50")
	lib, _ := s.Index("LIB")
	lt5, _ := s.Index("LT5")

	a, ok := s.CheapestArc(lt50, lib)
	require.True(t, ok)
	assert.Equal(t, 30.0, a.Weight)
	assert.Equal(t, EdgeNormal, a.Category, "first of equal-weight parallel edges wins")

	back, ok := s.CheapestArc(lib, lt50)
	require.True(t, ok)
	assert.Equal(t, 30.0, back.Weight)

	_, ok = s.CheapestArc(lt50, lt5)
	assert.False(t, ok)
}

func TestSnapshot_Stats(t *testing.T) {
	s := campusSnapshot(t)
	st := s.Stats()
	assert.Equal(t, 5, st.NodeCount)
	assert.Equal(t, 4, st.EdgeCount)
	assert.Equal(t, 8, st.ArcCount)
	assert.Equal(t, []int{1, 2, 3}, st.Floors)
	assert.Equal(t, map[int]int{1: 2, 2: 2, 3: 1}, st.NodesPerFloor)
	assert.Equal(t, 0.0, st.HeuristicScale)
}

func TestSnapshot_NodesReturnsCopy(t *testing.T) {
	s := campusSnapshot(t)
	nodes := s.Nodes()
	nodes[0].Name = "changed"
	n, _ := s.Node("LT50")
	assert.Equal(t, "Lecture Theater 50", n.Name)
}

func TestEmpty(t *testing.T) {
	s := Empty()
	assert.Equal(t, 0, s.NodeCount())
	assert.Equal(t, uint64(0), s.Generation())
	_, ok := s.ResolveName("anything")
	assert.False(t, ok)
	assert.Empty(t, s.Search("a"))
	assert.Empty(t, s.Floors())
}
