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
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/wayfinder/services/wayfinder/routing"
)

var (
	tracer = otel.Tracer("wayfinder.service")
	meter  = otel.Meter("wayfinder.service")
)

var (
	routeLatency    metric.Float64Histogram
	routeExpansions metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

var (
	routesByOutcome = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wayfinder_routes_total",
		Help: "Route queries by outcome",
	}, []string{"outcome", "cached"})
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		routeLatency, err = meter.Float64Histogram(
			"route_duration_seconds",
			metric.WithDescription("Duration of route computations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		routeExpansions, err = meter.Int64Histogram(
			"route_expansions",
			metric.WithDescription("Nodes expanded per route search"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordRouteMetrics(ctx context.Context, outcome routing.Outcome, expansions int, duration time.Duration, cached bool) {
	cachedLabel := "false"
	if cached {
		cachedLabel = "true"
	}
	routesByOutcome.WithLabelValues(outcome.String(), cachedLabel).Inc()

	if cached {
		return
	}
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome.String()))
	routeLatency.Record(ctx, duration.Seconds(), attrs)
	routeExpansions.Record(ctx, int64(expansions), attrs)
}

func startRouteSpan(ctx context.Context, req RouteRequest) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Service.ComputeRoute",
		trace.WithAttributes(
			attribute.String("route.start", req.StartNodeID),
		),
	)
}

func setRouteSpanResult(span trace.Span, resp *RouteResponse) {
	span.SetAttributes(
		attribute.String("route.code", resp.Code),
		attribute.Int("route.expansions", resp.Expansions),
		attribute.Int("route.path_length", len(resp.Path)),
		attribute.Bool("route.cached", resp.Cached),
		attribute.Int64("graph.generation", int64(resp.Generation)),
	)
}
