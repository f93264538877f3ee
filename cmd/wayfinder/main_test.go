// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/wayfinder/services/wayfinder"
	"github.com/AleutianAI/wayfinder/services/wayfinder/graph"
	"github.com/AleutianAI/wayfinder/services/wayfinder/store/badger"
	"github.com/AleutianAI/wayfinder/services/wayfinder/store/file"
)

func writeCampus(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "campus.json")
	require.NoError(t, file.Write(path, graph.RecordSet{
		Nodes: []graph.NodeRecord{
			{ID: "A", Name: "Entrance", Floor: 1},
			{ID: "B", Name: "Stairs North", Floor: 1, Category: "stairs"},
			{ID: "C", Name: "Lecture Theater 5", Detail: "NS2-02-07", Floor: 2, Category: "classroom"},
			{ID: "D", Name: "Lecture Theater 50", Floor: 2, Category: "classroom"},
		},
		Edges: []graph.EdgeRecord{
			{From: "A", To: "B", Weight: 10, Category: "normal"},
			{From: "B", To: "C", Weight: 5, Category: "stairs", Vertical: true},
		},
	}))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRouteCmd(t *testing.T) {
	path := writeCampus(t)

	t.Run("plain", func(t *testing.T) {
		out, err := run(t, "route", "A", "Lecture Theater 5", "--graph", path)
		require.NoError(t, err)
		assert.Contains(t, out, "Route from A to Lecture Theater 5")
		assert.Contains(t, out, "1. ")
		assert.Contains(t, out, "2. ")
		assert.Contains(t, out, "15 m")
		assert.Contains(t, out, "About 13 seconds")
	})

	t.Run("json", func(t *testing.T) {
		out, err := run(t, "route", "A", "C", "--graph", path, "--json", "--dijkstra")
		require.NoError(t, err)

		var resp wayfinder.RouteResponse
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, []string{"A", "B", "C"}, resp.Path)
		assert.Equal(t, 15.0, resp.TotalDistance)
	})

	t.Run("unreachable", func(t *testing.T) {
		_, err := run(t, "route", "A", "D", "--graph", path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "path_not_found")
	})

	t.Run("unknown start", func(t *testing.T) {
		_, err := run(t, "route", "Z", "C", "--graph", path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "node_not_found")
	})

	t.Run("names match, details do not", func(t *testing.T) {
		out, err := run(t, "route", "A", "theater 5", "--graph", path, "--by-name", "--json")
		require.NoError(t, err)
		var resp wayfinder.RouteResponse
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		assert.Equal(t, "C", resp.Path[len(resp.Path)-1])

		_, err = run(t, "route", "A", "NS2-02-07", "--graph", path, "--by-name")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "name_resolution_failed")
	})

	t.Run("missing graph flag", func(t *testing.T) {
		_, err := run(t, "route", "A", "C")
		require.Error(t, err)
	})
}

func TestValidateCmd(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		out, err := run(t, "validate", writeCampus(t))
		require.NoError(t, err)
		assert.Contains(t, out, "is valid")
		assert.Contains(t, out, "Nodes:  4")
	})

	t.Run("dangling edge", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, file.Write(path, graph.RecordSet{
			Nodes: []graph.NodeRecord{{ID: "A", Name: "Entrance"}},
			Edges: []graph.EdgeRecord{{From: "A", To: "X", Weight: 1}},
		}))

		out, err := run(t, "validate", path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 issue(s)")
		assert.Contains(t, out, `"X"`)
	})
}

func TestNodesAndSearchCmd(t *testing.T) {
	path := writeCampus(t)

	out, err := run(t, "nodes", "--graph", path, "--floor", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Entrance")
	assert.NotContains(t, out, "Lecture")
	assert.Contains(t, out, "2 location(s)")

	out, err = run(t, "search", "lecture", "--graph", path, "--json")
	require.NoError(t, err)
	var list wayfinder.NodeListResponse
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	assert.Equal(t, 2, list.Total)

	out, err = run(t, "search", "nowhere", "--graph", path)
	require.NoError(t, err)
	assert.Contains(t, out, "no matching locations")
}

func TestImportCmd(t *testing.T) {
	path := writeCampus(t)
	dbDir := filepath.Join(t.TempDir(), "db")

	out, err := run(t, "import", path, "--db", dbDir)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 4 nodes and 2 edges")

	db, err := badger.Open(badger.DefaultConfig(dbDir))
	require.NoError(t, err)
	defer db.Close()
	store, err := badger.NewRecordStore(db)
	require.NoError(t, err)

	set, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, set.Nodes, 4)
	assert.Len(t, set.Edges, 2)
}
