// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import (
	"context"
	"log/slog"
	"time"
)

// Audit event types.
const (
	EventGraphReplace = "graph.replace"
	EventGraphReload  = "graph.reload"
	EventAuthDenied   = "auth.denied"
)

// Audit outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDenied  = "denied"
)

// AuditEvent records one security-relevant action, such as a graph being
// replaced or a token being rejected.
//
// Example:
//
//	event := AuditEvent{
//	    EventType:  EventGraphReload,
//	    UserID:     info.UserID,
//	    ResourceID: "file:/srv/campus.json",
//	    Outcome:    OutcomeSuccess,
//	    Metadata: map[string]any{
//	        "generation": 7,
//	        "nodes":      412,
//	    },
//	}
type AuditEvent struct {
	// EventType categorizes the event.
	// Format: "category.action" (e.g., "graph.reload", "auth.denied")
	EventType string

	// Timestamp is when the event occurred (always use UTC).
	// If zero, implementations should set to time.Now().UTC().
	Timestamp time.Time

	// UserID identifies who performed the action.
	// Use "anonymous" if unknown.
	UserID string

	// RequestID correlates the event with access logs.
	RequestID string

	// ResourceID names what was acted on, typically a record source.
	ResourceID string

	// Outcome indicates the result of the action.
	// Values: OutcomeSuccess, OutcomeFailure, OutcomeDenied
	Outcome string

	// Metadata holds additional event-specific data.
	//
	// Common metadata keys:
	//   - "error": error message if Outcome is not success
	//   - "generation": the published graph generation
	//   - "nodes", "edges": published record counts
	Metadata map[string]any
}

// AuditLogger records audit events.
//
// Implementations must be safe for concurrent use by multiple goroutines.
// Log should return quickly; it runs on the request path.
type AuditLogger interface {
	// Log records an event.
	//
	// Implementations should:
	//   1. Set Timestamp if zero
	//   2. Persist or transmit the event
	//   3. Return quickly
	Log(ctx context.Context, event AuditEvent) error

	// Flush ensures all buffered events are persisted.
	// Call this before application shutdown to prevent event loss.
	Flush(ctx context.Context) error
}

// NopAuditLogger is the default audit logger. It discards all events.
//
// Thread-safe: This implementation has no mutable state.
type NopAuditLogger struct{}

// Log discards the event without recording it.
func (l *NopAuditLogger) Log(context.Context, AuditEvent) error { return nil }

// Flush is a no-op since nothing is buffered.
func (l *NopAuditLogger) Flush(context.Context) error { return nil }

// SlogAuditLogger writes events as structured log records under an "audit"
// group, so log shippers can route them separately.
//
// Thread-safe: slog handlers are safe for concurrent use.
type SlogAuditLogger struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewSlogAuditLogger returns an audit logger writing to logger.
func NewSlogAuditLogger(logger *slog.Logger) *SlogAuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAuditLogger{logger: logger, now: time.Now}
}

// Log writes event at INFO, or WARN when the outcome is not success.
func (l *SlogAuditLogger) Log(ctx context.Context, event AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now().UTC()
	}

	attrs := []any{
		slog.String("event", event.EventType),
		slog.Time("at", event.Timestamp),
		slog.String("user", event.UserID),
		slog.String("outcome", event.Outcome),
	}
	if event.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", event.RequestID))
	}
	if event.ResourceID != "" {
		attrs = append(attrs, slog.String("resource", event.ResourceID))
	}
	for k, v := range event.Metadata {
		attrs = append(attrs, slog.Any(k, v))
	}

	level := slog.LevelInfo
	if event.Outcome != OutcomeSuccess {
		level = slog.LevelWarn
	}
	l.logger.Log(ctx, level, "audit", slog.Group("audit", attrs...))
	return nil
}

// Flush is a no-op; records are written synchronously.
func (l *SlogAuditLogger) Flush(context.Context) error { return nil }

// Compile-time interface compliance checks.
var (
	_ AuditLogger = (*NopAuditLogger)(nil)
	_ AuditLogger = (*SlogAuditLogger)(nil)
)
