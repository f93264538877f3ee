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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/wayfinder/pkg/extensions"
	"github.com/AleutianAI/wayfinder/services/wayfinder/graph"
	"github.com/AleutianAI/wayfinder/services/wayfinder/reload"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestRouter(svc *Service) *gin.Engine {
	return NewRouter(svc, RouterConfig{})
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHandlers_HandleHealth(t *testing.T) {
	svc, _ := newTestService(t, nil, DefaultServiceConfig())
	w := doJSON(t, setupTestRouter(svc), http.MethodGet, "/v1/navigation/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode[HealthResponse](t, w)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, ServiceVersion, resp.Version)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestHandlers_RequestIDEchoed(t *testing.T) {
	svc, _ := newTestService(t, nil, DefaultServiceConfig())
	req := httptest.NewRequest(http.MethodGet, "/v1/navigation/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	setupTestRouter(svc).ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestHandlers_HandleReady(t *testing.T) {
	svc, _ := newTestService(t, nil, DefaultServiceConfig())
	router := setupTestRouter(svc)

	w := doJSON(t, router, http.MethodGet, "/v1/navigation/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "5", w.Header().Get("Retry-After"))
	assert.False(t, decode[ReadyResponse](t, w).Ready)

	w = doJSON(t, router, http.MethodPut, "/v1/navigation/graph", campus())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodGet, "/v1/navigation/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 4, decode[ReadyResponse](t, w).NodeCount)
}

func TestHandlers_HandleRoute(t *testing.T) {
	router := setupTestRouter(loadedService(t))

	t.Run("found", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/navigation/route",
			RouteRequest{StartNodeID: "A", TargetName: "Lecture Theater 5"})
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[RouteResponse](t, w)
		assert.True(t, resp.Success)
		assert.Equal(t, []string{"A", "B", "C"}, resp.Path)
		assert.Equal(t, []int{1, 2}, resp.FloorsInvolved)

		var raw map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
		steps := raw["steps"].([]any)
		first := steps[0].(map[string]any)
		assert.Equal(t, 1.0, first["step"])
		assert.Equal(t, "normal", first["edge_type"])
	})

	t.Run("business outcome is still 200", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/navigation/route",
			RouteRequest{StartNodeID: "A", TargetNodeID: "D"})
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[RouteResponse](t, w)
		assert.False(t, resp.Success)
		assert.Equal(t, "PATH_NOT_FOUND", resp.Code)
	})

	t.Run("missing target", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/navigation/route", RouteRequest{StartNodeID: "A"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_REQUEST", decode[ErrorResponse](t, w).Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/navigation/route", bytes.NewBufferString("{"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandlers_HandleSearchAndNodes(t *testing.T) {
	router := setupTestRouter(loadedService(t))

	w := doJSON(t, router, http.MethodGet, "/v1/navigation/search?keyword=stairs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	found := decode[NodeListResponse](t, w)
	assert.Equal(t, 1, found.Total)
	assert.Equal(t, "B", found.Nodes[0].ID)

	w = doJSON(t, router, http.MethodGet, "/v1/navigation/search", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MISSING_KEYWORD", decode[ErrorResponse](t, w).Code)

	w = doJSON(t, router, http.MethodGet, "/v1/navigation/nodes?floor=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decode[NodeListResponse](t, w).Total)

	w = doJSON(t, router, http.MethodGet, "/v1/navigation/nodes", nil)
	assert.Equal(t, 4, decode[NodeListResponse](t, w).Total)

	w = doJSON(t, router, http.MethodGet, "/v1/navigation/nodes?floor=ground", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_FLOOR", decode[ErrorResponse](t, w).Code)
}

func TestHandlers_HandlePutGraph_Rejected(t *testing.T) {
	router := setupTestRouter(loadedService(t))

	bad := campus()
	bad.Edges = append(bad.Edges,
		graph.EdgeRecord{From: "A", To: "X", Weight: 1},
		graph.EdgeRecord{From: "A", To: "B", Weight: -2},
	)
	w := doJSON(t, router, http.MethodPut, "/v1/navigation/graph", bad)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	resp := decode[ErrorResponse](t, w)
	assert.Equal(t, "GRAPH_REJECTED", resp.Code)
	require.Len(t, resp.Issues, 2)
	kinds := []string{resp.Issues[0].Kind, resp.Issues[1].Kind}
	assert.ElementsMatch(t, []string{"dangling_edge_reference", "invalid_weight"}, kinds)

	// Still serving generation 1.
	w = doJSON(t, router, http.MethodGet, "/v1/navigation/debug/graph/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uint64(1), decode[StatsResponse](t, w).Graph.Generation)
}

func TestHandlers_HandleReload(t *testing.T) {
	t.Run("no source", func(t *testing.T) {
		svc, _ := newTestService(t, nil, DefaultServiceConfig())
		w := doJSON(t, setupTestRouter(svc), http.MethodPost, "/v1/navigation/reload", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "NO_SOURCE", decode[ErrorResponse](t, w).Code)
	})

	t.Run("source", func(t *testing.T) {
		src := &staticSource{set: campus()}
		svc, _ := newTestService(t, src, DefaultServiceConfig())
		router := setupTestRouter(svc)

		w := doJSON(t, router, http.MethodPost, "/v1/navigation/reload", nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[ReloadResponse](t, w)
		assert.Equal(t, 4, resp.NodeCount)
		assert.Equal(t, uint64(1), resp.Generation)

		src.err = errors.New("connection refused")
		w = doJSON(t, router, http.MethodPost, "/v1/navigation/reload", nil)
		assert.Equal(t, http.StatusBadGateway, w.Code)

		src.err = nil
		src.set.Edges = append(src.set.Edges, graph.EdgeRecord{From: "A", To: "GONE", Weight: 1})
		w = doJSON(t, router, http.MethodPost, "/v1/navigation/reload", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestRateLimit(t *testing.T) {
	svc, _ := newTestService(t, nil, DefaultServiceConfig())
	router := NewRouter(svc, RouterConfig{RateLimit: 0.001, RateBurst: 2})

	codes := make([]int, 0, 3)
	for range 3 {
		codes = append(codes, doJSON(t, router, http.MethodGet, "/v1/navigation/health", nil).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestNewRouter_Metrics(t *testing.T) {
	svc, _ := newTestService(t, nil, DefaultServiceConfig())
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# HELP wayfinder_routes_total\n"))
	})
	router := NewRouter(svc, RouterConfig{Metrics: metrics})

	w := doJSON(t, router, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "wayfinder_routes_total")
}

var _ reload.Source = (*staticSource)(nil)

type recordingAudit struct {
	mu     sync.Mutex
	events []extensions.AuditEvent
}

func (r *recordingAudit) Log(_ context.Context, ev extensions.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingAudit) Flush(context.Context) error { return nil }

func (r *recordingAudit) snapshot() []extensions.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]extensions.AuditEvent(nil), r.events...)
}

type funcAuth func(ctx context.Context, token string) (*extensions.AuthInfo, error)

func (f funcAuth) Validate(ctx context.Context, token string) (*extensions.AuthInfo, error) {
	return f(ctx, token)
}

func doAuth(router http.Handler, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequireAdmin(t *testing.T) {
	audit := &recordingAudit{}
	svc, _ := newTestService(t, &staticSource{set: campus()}, DefaultServiceConfig())
	router := NewRouter(svc, RouterConfig{
		Extensions: extensions.ServiceOptions{
			AuthProvider: extensions.NewStaticTokenProvider("s3cret"),
			AuditLogger:  audit,
		},
	})

	w := doAuth(router, http.MethodPost, "/v1/navigation/reload", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", decode[ErrorResponse](t, w).Code)
	assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))

	w = doAuth(router, http.MethodPost, "/v1/navigation/reload", "Bearer guess")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doAuth(router, http.MethodPut, "/v1/navigation/graph", "Basic s3cret")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doAuth(router, http.MethodPost, "/v1/navigation/reload", "bearer s3cret")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Queries stay open.
	w = doJSON(t, router, http.MethodPost, "/v1/navigation/route", RouteRequest{StartNodeID: "A", TargetNodeID: "C"})
	assert.Equal(t, http.StatusOK, w.Code)

	events := audit.snapshot()
	require.Len(t, events, 4)
	for _, ev := range events[:3] {
		assert.Equal(t, extensions.EventAuthDenied, ev.EventType)
		assert.Equal(t, extensions.OutcomeDenied, ev.Outcome)
	}
	last := events[3]
	assert.Equal(t, extensions.EventGraphReload, last.EventType)
	assert.Equal(t, extensions.OutcomeSuccess, last.Outcome)
	assert.Equal(t, "admin-token", last.UserID)
	assert.Equal(t, "static", last.ResourceID)
	assert.Equal(t, 4, last.Metadata["nodes"])
}

func TestRequireAdmin_ProviderOutcomes(t *testing.T) {
	svc, _ := newTestService(t, nil, DefaultServiceConfig())

	t.Run("not admin", func(t *testing.T) {
		router := NewRouter(svc, RouterConfig{Extensions: extensions.ServiceOptions{
			AuthProvider: funcAuth(func(context.Context, string) (*extensions.AuthInfo, error) {
				return &extensions.AuthInfo{UserID: "kiosk", Roles: []string{"viewer"}}, nil
			}),
		}})
		w := doAuth(router, http.MethodPost, "/v1/navigation/reload", "Bearer x")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "FORBIDDEN", decode[ErrorResponse](t, w).Code)
	})

	t.Run("provider failure", func(t *testing.T) {
		router := NewRouter(svc, RouterConfig{Extensions: extensions.ServiceOptions{
			AuthProvider: funcAuth(func(context.Context, string) (*extensions.AuthInfo, error) {
				return nil, errors.New("idp timeout")
			}),
		}})
		w := doAuth(router, http.MethodPost, "/v1/navigation/reload", "Bearer x")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "AUTH_FAILED", decode[ErrorResponse](t, w).Code)
	})
}

func TestHandlers_AuditsFailedReplace(t *testing.T) {
	audit := &recordingAudit{}
	svc, _ := newTestService(t, nil, DefaultServiceConfig())
	router := NewRouter(svc, RouterConfig{Extensions: extensions.ServiceOptions{AuditLogger: audit}})

	bad := graph.RecordSet{Nodes: []graph.NodeRecord{{ID: "A", Name: "Entrance"}, {ID: "A", Name: "Again"}}}
	w := doJSON(t, router, http.MethodPut, "/v1/navigation/graph", bad)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	events := audit.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, extensions.EventGraphReplace, events[0].EventType)
	assert.Equal(t, extensions.OutcomeFailure, events[0].Outcome)
	assert.Equal(t, "local-user", events[0].UserID)
	assert.Contains(t, events[0].Metadata["error"], "duplicate")
}

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"":              "",
		"Bearer abc":    "abc",
		"bearer  abc ":  "abc",
		"Basic abc":     "",
		"Bearer":        "",
		"Token abc def": "",
	}
	for header, want := range tests {
		assert.Equal(t, want, bearerToken(header), "header %q", header)
	}
}
