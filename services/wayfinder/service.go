// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package wayfinder provides the indoor navigation service.
//
// The service exposes operations for:
//   - Computing routes between locations, with step-by-step instructions
//   - Searching and listing locations
//   - Replacing the building graph, from a request body or a configured source
//
// Handlers and RegisterRoutes expose the same operations over HTTP.
package wayfinder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/wayfinder/services/wayfinder/graph"
	"github.com/AleutianAI/wayfinder/services/wayfinder/instructions"
	"github.com/AleutianAI/wayfinder/services/wayfinder/reload"
	"github.com/AleutianAI/wayfinder/services/wayfinder/routing"
)

// ServiceVersion is the wayfinder service version.
const ServiceVersion = "1.0.0"

// ServiceConfig configures the service.
type ServiceConfig struct {
	// MaxExpansions bounds each route search.
	// Default: routing.DefaultMaxExpansions
	MaxExpansions int

	// CacheSize is the number of route responses kept. Zero disables the
	// cache.
	// Default: 1024
	CacheSize int

	// WalkingSpeed in metres per second, used for time estimates.
	// Default: instructions.DefaultWalkingSpeed
	WalkingSpeed float64

	// Heuristic selects the search estimate. HeuristicNone turns the search
	// into plain Dijkstra.
	// Default: routing.HeuristicPlanar
	Heuristic routing.Heuristic

	// Logger receives service logs. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultServiceConfig returns sensible defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxExpansions: routing.DefaultMaxExpansions,
		CacheSize:     1024,
		WalkingSpeed:  instructions.DefaultWalkingSpeed,
	}
}

// Service answers navigation queries against the coordinator's current
// snapshot.
//
// Thread Safety:
//
//	Service is safe for concurrent use. Queries read one snapshot each and
//	never wait for a reload.
type Service struct {
	config ServiceConfig
	coord  *reload.Coordinator
	source reload.Source
	cache  *lruCache[routeKey, RouteResponse]
	logger *slog.Logger
}

// NewService creates a service over coord.
//
// Description:
//
//	Wires the route cache to the coordinator so that every published
//	snapshot clears it. source may be nil, in which case ReloadFromSource
//	returns ErrNoSource.
//
// Inputs:
//
//	coord - Owns the published graph. Must not be nil.
//	source - Where ReloadFromSource reads records. May be nil.
//	cfg - Service configuration. Zero fields take defaults.
//
// Outputs:
//
//	*Service - The service.
//	error - ErrNilCoordinator.
func NewService(coord *reload.Coordinator, source reload.Source, cfg ServiceConfig) (*Service, error) {
	if coord == nil {
		return nil, ErrNilCoordinator
	}
	def := DefaultServiceConfig()
	if cfg.MaxExpansions <= 0 {
		cfg.MaxExpansions = def.MaxExpansions
	}
	if cfg.WalkingSpeed <= 0 {
		cfg.WalkingSpeed = def.WalkingSpeed
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Service{
		config: cfg,
		coord:  coord,
		source: source,
		cache:  newLRUCache[routeKey, RouteResponse](cfg.CacheSize),
		logger: cfg.Logger,
	}
	coord.OnPublish(func(*graph.Snapshot) { s.cache.Purge() })
	return s, nil
}

// ComputeRoute finds the shortest route for req.
//
// Description:
//
//	Resolves the target, runs A* against the current snapshot and turns
//	the path into instructions. Responses are cached per graph generation.
//
// Inputs:
//
//	ctx - Used for tracing.
//	req - Start node id and exactly one target.
//
// Outputs:
//
//	*RouteResponse - Always non-nil when error is nil. Success is false
//	for the expected outcomes.
//	error - ErrMissingStart, ErrMissingTarget or ErrAmbiguousTarget for
//	malformed requests. Unexpected internal failures are wrapped.
//
// Thread Safety: Safe for concurrent use.
func (s *Service) ComputeRoute(ctx context.Context, req RouteRequest) (*RouteResponse, error) {
	target, err := req.target()
	if err != nil {
		return nil, err
	}

	ctx, span := startRouteSpan(ctx, req)
	defer span.End()

	start := time.Now()
	snap := s.coord.Current()
	key := routeKey{
		generation: snap.Generation(),
		start:      req.StartNodeID,
		kind:       target.Kind,
		target:     target.Value,
	}

	if cached, ok := s.cache.Get(key); ok {
		cached.Cached = true
		recordRouteMetrics(ctx, outcomeOf(&cached), cached.Expansions, time.Since(start), true)
		setRouteSpanResult(span, &cached)
		return &cached, nil
	}

	res := routing.FindPath(snap, req.StartNodeID, target,
		routing.WithMaxExpansions(s.config.MaxExpansions),
		routing.WithHeuristic(s.config.Heuristic),
	)
	resp, err := s.buildResponse(snap, res)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.cache.Set(key, *resp)
	recordRouteMetrics(ctx, res.Outcome, res.Expansions, time.Since(start), false)
	setRouteSpanResult(span, resp)

	s.logger.Debug("route computed",
		slog.String("start", req.StartNodeID),
		slog.String("target", target.Value),
		slog.String("code", resp.Code),
		slog.Int("expansions", res.Expansions),
		slog.Uint64("generation", res.Generation),
	)
	return resp, nil
}

func (s *Service) buildResponse(snap *graph.Snapshot, res *routing.PathResult) (*RouteResponse, error) {
	resp := &RouteResponse{
		Success:    res.Found(),
		Code:       strings.ToUpper(res.Outcome.String()),
		Message:    res.Message,
		Expansions: res.Expansions,
		Generation: res.Generation,
	}
	if !res.Found() {
		return resp, nil
	}

	it, err := instructions.Describe(snap, res.Path)
	if err != nil {
		return nil, fmt.Errorf("describe route: %w", err)
	}

	resp.Path = res.Path
	resp.PathNodes = res.Nodes
	resp.TotalDistance = res.TotalDistance
	resp.Steps = it.Steps
	resp.FloorsInvolved = res.Floors
	resp.DistanceText = instructions.FormatDistance(res.TotalDistance)
	resp.EstimatedTime = instructions.EstimateWalkingTime(res.TotalDistance, s.config.WalkingSpeed)
	return resp, nil
}

// outcomeOf recovers the routing outcome from a response code.
func outcomeOf(resp *RouteResponse) routing.Outcome {
	for _, o := range []routing.Outcome{
		routing.Found,
		routing.NodeNotFound,
		routing.NameResolutionFailed,
		routing.PathNotFound,
		routing.SearchBudgetExceeded,
	} {
		if strings.EqualFold(o.String(), resp.Code) {
			return o
		}
	}
	return routing.PathNotFound
}

func (r RouteRequest) target() (routing.Target, error) {
	if strings.TrimSpace(r.StartNodeID) == "" {
		return routing.Target{}, ErrMissingStart
	}

	var set int
	var t routing.Target
	if r.TargetNodeID != "" {
		set++
		t = routing.ByID(r.TargetNodeID)
	}
	if r.TargetName != "" {
		set++
		t = routing.ByName(r.TargetName)
	}
	if r.Target != "" {
		set++
		t = routing.Auto(r.Target)
	}

	switch set {
	case 0:
		return routing.Target{}, ErrMissingTarget
	case 1:
		return t, nil
	default:
		return routing.Target{}, ErrAmbiguousTarget
	}
}

// SearchNodes returns nodes whose id, name or detail contains keyword,
// ignoring case. A blank keyword matches nothing.
func (s *Service) SearchNodes(_ context.Context, keyword string) NodeListResponse {
	return listResponse(s.coord.Current().Search(keyword))
}

// ListNodes returns every node, or only those on floor when it is non-nil.
func (s *Service) ListNodes(_ context.Context, floor *int) NodeListResponse {
	snap := s.coord.Current()
	if floor != nil {
		return listResponse(snap.NodesOnFloor(*floor))
	}
	return listResponse(snap.Nodes())
}

func listResponse(nodes []graph.Node) NodeListResponse {
	if nodes == nil {
		nodes = []graph.Node{}
	}
	return NodeListResponse{Nodes: nodes, Total: len(nodes)}
}

// LoadOrReload replaces the graph with set.
//
// Outputs:
//
//	*ReloadResponse - Counts and generation of the published graph.
//	error - A *graph.BuildError when the records are rejected. The
//	previous graph keeps serving.
func (s *Service) LoadOrReload(ctx context.Context, set graph.RecordSet) (*ReloadResponse, error) {
	res, err := s.coord.Reload(ctx, set.Nodes, set.Edges)
	if err != nil {
		return nil, err
	}
	return reloadResponse(res), nil
}

// ReloadFromSource replaces the graph with the configured source's records.
func (s *Service) ReloadFromSource(ctx context.Context) (*ReloadResponse, error) {
	if s.source == nil {
		return nil, ErrNoSource
	}
	res, err := s.coord.ReloadFrom(ctx, s.source)
	if err != nil {
		return nil, err
	}
	return reloadResponse(res), nil
}

func reloadResponse(res reload.Result) *ReloadResponse {
	return &ReloadResponse{
		Success:    true,
		Message:    fmt.Sprintf("graph loaded: %d nodes, %d edges", res.NodeCount, res.EdgeCount),
		NodeCount:  res.NodeCount,
		EdgeCount:  res.EdgeCount,
		Generation: res.Generation,
		DurationMs: res.Duration.Milliseconds(),
	}
}

// SourceName returns the configured source's name, or "" when there is none.
func (s *Service) SourceName() string {
	if s.source == nil {
		return ""
	}
	return s.source.Name()
}

// Stats reports the current graph and the route cache.
func (s *Service) Stats() StatsResponse {
	return StatsResponse{
		Graph: s.coord.Current().Stats(),
		Cache: s.cache.Stats(),
	}
}

// Ready reports whether a non-empty graph has been published.
func (s *Service) Ready() ReadyResponse {
	snap := s.coord.Current()
	resp := ReadyResponse{
		Ready:      snap.NodeCount() > 0,
		NodeCount:  snap.NodeCount(),
		Generation: snap.Generation(),
	}
	resp.Source = s.SourceName()
	return resp
}
