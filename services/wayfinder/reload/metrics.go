// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reload

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/wayfinder/services/wayfinder/graph"
)

var (
	tracer = otel.Tracer("wayfinder.reload")
	meter  = otel.Meter("wayfinder.reload")
)

var (
	reloadLatency metric.Float64Histogram
	reloadTotal   metric.Int64Counter
	graphNodes    metric.Int64Gauge
	graphEdges    metric.Int64Gauge

	metricsOnce sync.Once
	metricsErr  error
)

var (
	reloadsByOutcome = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wayfinder_graph_reloads_total",
		Help: "Graph reload attempts by outcome",
	}, []string{"outcome"})

	publishedGeneration = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wayfinder_graph_generation",
		Help: "Generation of the currently published graph snapshot",
	})
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		reloadLatency, err = meter.Float64Histogram(
			"graph_reload_duration_seconds",
			metric.WithDescription("Duration of graph snapshot builds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		reloadTotal, err = meter.Int64Counter(
			"graph_reload_total",
			metric.WithDescription("Total number of graph reload attempts"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		graphNodes, err = meter.Int64Gauge(
			"graph_nodes",
			metric.WithDescription("Nodes in the published snapshot"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		graphEdges, err = meter.Int64Gauge(
			"graph_edges",
			metric.WithDescription("Edges in the published snapshot"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordReloadMetrics(ctx context.Context, duration time.Duration, nodeCount, edgeCount int, success bool) {
	if success {
		reloadsByOutcome.WithLabelValues("success").Inc()
	} else {
		reloadsByOutcome.WithLabelValues("rejected").Inc()
	}

	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))
	reloadLatency.Record(ctx, duration.Seconds(), attrs)
	reloadTotal.Add(ctx, 1, attrs)

	if success {
		graphNodes.Record(ctx, int64(nodeCount))
		graphEdges.Record(ctx, int64(edgeCount))
	}
}

func recordSourceFailure() {
	reloadsByOutcome.WithLabelValues("source_error").Inc()
}

func startReloadSpan(ctx context.Context, nodeCount, edgeCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Coordinator.Reload",
		trace.WithAttributes(
			attribute.Int("graph.input_nodes", nodeCount),
			attribute.Int("graph.input_edges", edgeCount),
		),
	)
}

func setReloadSpanResult(span trace.Span, snap *graph.Snapshot) {
	publishedGeneration.Set(float64(snap.Generation()))
	span.SetAttributes(
		attribute.Int("graph.node_count", snap.NodeCount()),
		attribute.Int("graph.edge_count", snap.EdgeCount()),
		attribute.Int64("graph.generation", int64(snap.Generation())),
	)
}

func setReloadSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, "build rejected")
}
