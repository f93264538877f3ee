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
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/wayfinder/services/wayfinder/graph"
	"github.com/AleutianAI/wayfinder/services/wayfinder/reload"
)

var quiet = slog.New(slog.DiscardHandler)

// campus is the A-B-C example plus an unconnected lecture theater.
func campus() graph.RecordSet {
	return graph.RecordSet{
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
	}
}

type staticSource struct {
	set graph.RecordSet
	err error
}

func (s *staticSource) Name() string { return "static" }

func (s *staticSource) Load(context.Context) (graph.RecordSet, error) {
	return s.set, s.err
}

func newTestService(t *testing.T, src reload.Source, cfg ServiceConfig) (*Service, *reload.Coordinator) {
	t.Helper()
	coord := reload.NewCoordinator(reload.WithLogger(quiet))
	cfg.Logger = quiet
	svc, err := NewService(coord, src, cfg)
	require.NoError(t, err)
	return svc, coord
}

func loadedService(t *testing.T) *Service {
	t.Helper()
	svc, _ := newTestService(t, nil, DefaultServiceConfig())
	_, err := svc.LoadOrReload(context.Background(), campus())
	require.NoError(t, err)
	return svc
}

func TestNewService_NilCoordinator(t *testing.T) {
	_, err := NewService(nil, nil, DefaultServiceConfig())
	assert.ErrorIs(t, err, ErrNilCoordinator)
}

func TestComputeRoute_Found(t *testing.T) {
	svc := loadedService(t)

	resp, err := svc.ComputeRoute(context.Background(), RouteRequest{StartNodeID: "A", TargetNodeID: "C"})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "FOUND", resp.Code)
	assert.Equal(t, []string{"A", "B", "C"}, resp.Path)
	assert.Equal(t, 15.0, resp.TotalDistance)
	assert.Equal(t, []int{1, 2}, resp.FloorsInvolved)
	require.Len(t, resp.PathNodes, 3)
	assert.Equal(t, "NS2-02-07", resp.PathNodes[2].Detail)
	require.Len(t, resp.Steps, 2)
	assert.Contains(t, resp.Steps[1].Instruction, "stairs")
	require.NotNil(t, resp.Steps[1].FloorDelta)
	assert.Equal(t, 1, *resp.Steps[1].FloorDelta)
	assert.Equal(t, "15 m", resp.DistanceText)
	assert.Equal(t, "About 13 seconds", resp.EstimatedTime)
	assert.Equal(t, uint64(1), resp.Generation)
	assert.False(t, resp.Cached)
}

func TestComputeRoute_Targets(t *testing.T) {
	svc := loadedService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		req      RouteRequest
		wantCode string
		wantGoal string
	}{
		{"exact name beats longer name", RouteRequest{StartNodeID: "A", TargetName: "lecture theater 5"}, "FOUND", "C"},
		{"auto falls back to name", RouteRequest{StartNodeID: "A", Target: "Stairs North"}, "FOUND", "B"},
		{"auto matches id", RouteRequest{StartNodeID: "A", Target: "C"}, "FOUND", "C"},
		{"unknown start", RouteRequest{StartNodeID: "Z", TargetNodeID: "C"}, "NODE_NOT_FOUND", ""},
		{"unknown target id", RouteRequest{StartNodeID: "A", TargetNodeID: "Z"}, "NODE_NOT_FOUND", ""},
		{"unresolved name", RouteRequest{StartNodeID: "A", TargetName: "Cafeteria"}, "NAME_RESOLUTION_FAILED", ""},
		{"disconnected", RouteRequest{StartNodeID: "A", TargetNodeID: "D"}, "PATH_NOT_FOUND", ""},
		{"already there", RouteRequest{StartNodeID: "B", TargetNodeID: "B"}, "FOUND", "B"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.ComputeRoute(ctx, tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, resp.Code, resp.Message)
			assert.Equal(t, tt.wantCode == "FOUND", resp.Success)
			assert.NotEmpty(t, resp.Message)
			if tt.wantGoal != "" {
				require.NotEmpty(t, resp.Path)
				assert.Equal(t, tt.wantGoal, resp.Path[len(resp.Path)-1])
			} else {
				assert.Empty(t, resp.Path)
				assert.Empty(t, resp.Steps)
			}
		})
	}
}

func TestComputeRoute_InvalidRequests(t *testing.T) {
	svc := loadedService(t)
	ctx := context.Background()

	_, err := svc.ComputeRoute(ctx, RouteRequest{TargetNodeID: "C"})
	assert.ErrorIs(t, err, ErrMissingStart)

	_, err = svc.ComputeRoute(ctx, RouteRequest{StartNodeID: "A"})
	assert.ErrorIs(t, err, ErrMissingTarget)

	_, err = svc.ComputeRoute(ctx, RouteRequest{StartNodeID: "A", TargetNodeID: "C", TargetName: "Entrance"})
	assert.ErrorIs(t, err, ErrAmbiguousTarget)
}

func TestComputeRoute_BudgetExceeded(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.MaxExpansions = 1
	svc, _ := newTestService(t, nil, cfg)
	_, err := svc.LoadOrReload(context.Background(), campus())
	require.NoError(t, err)

	resp, err := svc.ComputeRoute(context.Background(), RouteRequest{StartNodeID: "A", TargetNodeID: "C"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "SEARCH_BUDGET_EXCEEDED", resp.Code)
}

func TestComputeRoute_CacheAndPurge(t *testing.T) {
	svc := loadedService(t)
	ctx := context.Background()
	req := RouteRequest{StartNodeID: "A", TargetNodeID: "C"}

	first, err := svc.ComputeRoute(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := svc.ComputeRoute(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Path, second.Path)
	assert.False(t, first.Cached, "cached copy must not alias the first response")

	stats := svc.Stats().Cache
	assert.True(t, stats.Enabled)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(1), stats.Hits)

	// A shorter corridor appears; the reload must invalidate the cached route.
	set := campus()
	set.Edges = append(set.Edges, graph.EdgeRecord{From: "A", To: "C", Weight: 3, Category: "lifts", Vertical: true})
	_, err = svc.LoadOrReload(ctx, set)
	require.NoError(t, err)
	assert.Equal(t, 0, svc.Stats().Cache.Entries)

	third, err := svc.ComputeRoute(ctx, req)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, []string{"A", "C"}, third.Path)
	assert.Equal(t, uint64(2), third.Generation)
}

func TestComputeRoute_CacheDisabled(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.CacheSize = 0
	svc, _ := newTestService(t, nil, cfg)
	_, err := svc.LoadOrReload(context.Background(), campus())
	require.NoError(t, err)

	for range 2 {
		resp, err := svc.ComputeRoute(context.Background(), RouteRequest{StartNodeID: "A", TargetNodeID: "C"})
		require.NoError(t, err)
		assert.False(t, resp.Cached)
	}
	assert.False(t, svc.Stats().Cache.Enabled)
}

func TestSearchAndListNodes(t *testing.T) {
	svc := loadedService(t)
	ctx := context.Background()

	found := svc.SearchNodes(ctx, "theater")
	assert.Equal(t, 2, found.Total)
	assert.Equal(t, "C", found.Nodes[0].ID)

	found = svc.SearchNodes(ctx, "ns2-02")
	assert.Equal(t, 1, found.Total)

	none := svc.SearchNodes(ctx, "  ")
	assert.Equal(t, 0, none.Total)
	assert.NotNil(t, none.Nodes)

	all := svc.ListNodes(ctx, nil)
	assert.Equal(t, 4, all.Total)

	floor := 2
	upstairs := svc.ListNodes(ctx, &floor)
	assert.Equal(t, 2, upstairs.Total)

	floor = 9
	assert.Equal(t, 0, svc.ListNodes(ctx, &floor).Total)
}

func TestLoadOrReload_Rejected(t *testing.T) {
	svc := loadedService(t)
	ctx := context.Background()

	bad := campus()
	bad.Nodes = append(bad.Nodes, graph.NodeRecord{ID: "A", Name: "Duplicate"})
	bad.Edges = append(bad.Edges, graph.EdgeRecord{From: "A", To: "Q", Weight: 1})

	_, err := svc.LoadOrReload(ctx, bad)
	var buildErr *graph.BuildError
	require.True(t, errors.As(err, &buildErr))
	assert.ErrorIs(t, err, graph.ErrDuplicateNodeID)
	assert.ErrorIs(t, err, graph.ErrDanglingEdgeReference)

	// The previous graph keeps answering.
	resp, err := svc.ComputeRoute(ctx, RouteRequest{StartNodeID: "A", TargetNodeID: "C"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, uint64(1), resp.Generation)
}

func TestReloadFromSource(t *testing.T) {
	ctx := context.Background()

	svc, _ := newTestService(t, nil, DefaultServiceConfig())
	_, err := svc.ReloadFromSource(ctx)
	assert.ErrorIs(t, err, ErrNoSource)
	assert.False(t, svc.Ready().Ready)

	src := &staticSource{set: campus()}
	svc, _ = newTestService(t, src, DefaultServiceConfig())
	resp, err := svc.ReloadFromSource(ctx)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 4, resp.NodeCount)
	assert.Equal(t, 2, resp.EdgeCount)
	assert.Equal(t, uint64(1), resp.Generation)

	ready := svc.Ready()
	assert.True(t, ready.Ready)
	assert.Equal(t, "static", ready.Source)

	src.err = errors.New("database down")
	_, err = svc.ReloadFromSource(ctx)
	assert.ErrorIs(t, err, reload.ErrSourceLoad)
	assert.Equal(t, uint64(1), svc.Stats().Graph.Generation)
}
