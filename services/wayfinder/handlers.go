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
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/wayfinder/pkg/extensions"
	"github.com/AleutianAI/wayfinder/services/wayfinder/graph"
	"github.com/AleutianAI/wayfinder/services/wayfinder/reload"
)

// maxGraphBodySize bounds PUT /graph request bodies.
const maxGraphBodySize = 16 << 20

// Handlers contains the HTTP handlers for the navigation API.
type Handlers struct {
	svc  *Service
	opts extensions.ServiceOptions
}

// NewHandlers creates handlers for the given service. Nil fields of opts
// take the open defaults.
func NewHandlers(svc *Service, opts extensions.ServiceOptions) *Handlers {
	return &Handlers{svc: svc, opts: opts.Normalize()}
}

// HandleRoute handles POST /v1/navigation/route.
//
// Description:
//
//	Computes a route. Unknown nodes, unresolved names, disconnected
//	endpoints and exhausted search budgets are normal answers: they return
//	200 with success=false and the outcome in code.
//
// Request Body:
//
//	RouteRequest
//
// Response:
//
//	200 OK: RouteResponse
//	400 Bad Request: Malformed body, missing start or target
//	500 Internal Server Error: Processing error
func (h *Handlers) HandleRoute(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleRoute")

	var req RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	resp, err := h.svc.ComputeRoute(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, ErrMissingStart) || errors.Is(err, ErrMissingTarget) || errors.Is(err, ErrAmbiguousTarget) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: err.Error(),
				Code:  "INVALID_REQUEST",
			})
			return
		}
		logger.Error("Route computation failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "route computation failed",
			Code:  "ROUTE_FAILED",
		})
		return
	}

	logger.Info("Route answered",
		"start", req.StartNodeID,
		"code", resp.Code,
		"steps", len(resp.Steps),
		"cached", resp.Cached)

	c.JSON(http.StatusOK, resp)
}

// HandleSearch handles GET /v1/navigation/search.
//
// Query Parameters:
//
//	keyword: Text matched against node ids, names and details (required)
//
// Response:
//
//	200 OK: NodeListResponse
//	400 Bad Request: Missing keyword
func (h *Handlers) HandleSearch(c *gin.Context) {
	keyword := c.Query("keyword")
	if strings.TrimSpace(keyword) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "keyword is required",
			Code:  "MISSING_KEYWORD",
		})
		return
	}
	c.JSON(http.StatusOK, h.svc.SearchNodes(c.Request.Context(), keyword))
}

// HandleNodes handles GET /v1/navigation/nodes.
//
// Query Parameters:
//
//	floor: Only list nodes on this floor (optional)
//
// Response:
//
//	200 OK: NodeListResponse
//	400 Bad Request: floor is not an integer
func (h *Handlers) HandleNodes(c *gin.Context) {
	var floor *int
	if raw, ok := c.GetQuery("floor"); ok {
		f, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "floor must be an integer",
				Code:    "INVALID_FLOOR",
				Details: raw,
			})
			return
		}
		floor = &f
	}
	c.JSON(http.StatusOK, h.svc.ListNodes(c.Request.Context(), floor))
}

// HandlePutGraph handles PUT /v1/navigation/graph.
//
// Description:
//
//	Replaces the whole graph with the posted records. A rejected graph
//	leaves the current one serving.
//
// Request Body:
//
//	graph.RecordSet
//
// Response:
//
//	200 OK: ReloadResponse
//	400 Bad Request: Malformed body
//	422 Unprocessable Entity: ErrorResponse listing every defect
func (h *Handlers) HandlePutGraph(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandlePutGraph")

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxGraphBodySize)
	var set graph.RecordSet
	if err := c.ShouldBindJSON(&set); err != nil {
		logger.Warn("Invalid graph body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		})
		return
	}

	resp, err := h.svc.LoadOrReload(c.Request.Context(), set)
	h.auditReload(c, extensions.EventGraphReplace, "request", resp, err)
	if err != nil {
		h.writeReloadError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleReload handles POST /v1/navigation/reload.
//
// Response:
//
//	200 OK: ReloadResponse
//	422 Unprocessable Entity: The source's records were rejected
//	502 Bad Gateway: The source could not be read
//	503 Service Unavailable: No source configured
func (h *Handlers) HandleReload(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleReload")

	resp, err := h.svc.ReloadFromSource(c.Request.Context())
	h.auditReload(c, extensions.EventGraphReload, h.svc.SourceName(), resp, err)
	if err != nil {
		h.writeReloadError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) auditReload(c *gin.Context, event, resource string, resp *ReloadResponse, err error) {
	ev := extensions.AuditEvent{
		EventType:  event,
		UserID:     callerID(c),
		RequestID:  getOrCreateRequestID(c),
		ResourceID: resource,
		Outcome:    extensions.OutcomeSuccess,
	}
	if err != nil {
		ev.Outcome = extensions.OutcomeFailure
		ev.Metadata = map[string]any{"error": err.Error()}
	} else {
		ev.Metadata = map[string]any{
			"generation": resp.Generation,
			"nodes":      resp.NodeCount,
			"edges":      resp.EdgeCount,
		}
	}
	if aerr := h.opts.AuditLogger.Log(c.Request.Context(), ev); aerr != nil {
		slog.Warn("Audit log failed", "request_id", ev.RequestID, "error", aerr)
	}
}

func (h *Handlers) writeReloadError(c *gin.Context, logger *slog.Logger, err error) {
	var buildErr *graph.BuildError
	switch {
	case errors.As(err, &buildErr):
		logger.Warn("Graph rejected", "issues", len(buildErr.Issues))
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:  "graph rejected",
			Code:   "GRAPH_REJECTED",
			Issues: buildErr.Issues,
		})
	case errors.Is(err, ErrNoSource):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: err.Error(),
			Code:  "NO_SOURCE",
		})
	case errors.Is(err, reload.ErrSourceLoad):
		logger.Error("Source load failed", "error", err)
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "graph source unavailable",
			Code:    "SOURCE_UNAVAILABLE",
			Details: err.Error(),
		})
	default:
		logger.Error("Reload failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "reload failed",
			Code:  "RELOAD_FAILED",
		})
	}
}

// HandleHealth handles GET /v1/navigation/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// HandleReady handles GET /v1/navigation/ready.
//
// Response:
//
//	200 OK: ReadyResponse (Ready=true) - A non-empty graph is published
//	503 Service Unavailable: ReadyResponse (Ready=false)
func (h *Handlers) HandleReady(c *gin.Context) {
	resp := h.svc.Ready()
	if !resp.Ready {
		c.Header("Retry-After", "5")
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleGetGraphStats handles GET /v1/navigation/debug/graph/stats.
func (h *Handlers) HandleGetGraphStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Stats())
}
