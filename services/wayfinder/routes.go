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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/wayfinder/pkg/extensions"
)

// RegisterRoutes registers all navigation routes with the router.
//
// Description:
//
//	Registers all /v1/navigation/* endpoints with the given Gin router
//	group. The router group should already have any required middleware
//	applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/navigation/route - Compute a route with instructions
//	GET  /v1/navigation/search - Search nodes by keyword
//	GET  /v1/navigation/nodes - List nodes, optionally by floor
//	PUT  /v1/navigation/graph - Replace the graph (admin)
//	POST /v1/navigation/reload - Reload the graph from the configured source (admin)
//	GET  /v1/navigation/health - Health check
//	GET  /v1/navigation/ready - Readiness check
//	GET  /v1/navigation/debug/graph/stats - Graph and cache statistics
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	nav := rg.Group("/navigation")
	{
		nav.POST("/route", handlers.HandleRoute)
		nav.GET("/search", handlers.HandleSearch)
		nav.GET("/nodes", handlers.HandleNodes)

		admin := nav.Group("", RequireAdmin(handlers.opts.AuthProvider, handlers.opts.AuditLogger))
		{
			admin.PUT("/graph", handlers.HandlePutGraph)
			admin.POST("/reload", handlers.HandleReload)
		}

		nav.GET("/health", handlers.HandleHealth)
		nav.GET("/ready", handlers.HandleReady)

		debug := nav.Group("/debug")
		{
			debug.GET("/graph/stats", handlers.HandleGetGraphStats)
		}
	}
}

// RouterConfig configures NewRouter.
type RouterConfig struct {
	// ServiceName labels spans created by the tracing middleware.
	ServiceName string

	// RateLimit and RateBurst configure the token bucket. Zero RateLimit
	// disables limiting.
	RateLimit float64
	RateBurst int

	// Metrics, when non-nil, is served at /metrics.
	Metrics http.Handler

	// Logger receives access logs. Nil disables access logging.
	Logger *slog.Logger

	// Extensions guards and audits the graph-changing endpoints. The zero
	// value leaves them open and unaudited.
	Extensions extensions.ServiceOptions
}

// NewRouter builds the complete HTTP handler: recovery, request ids,
// tracing, access logs, rate limiting and the /v1 routes.
func NewRouter(svc *Service, cfg RouterConfig) *gin.Engine {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "wayfinder"
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	if cfg.Logger != nil {
		router.Use(AccessLog(cfg.Logger))
	}

	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	v1 := router.Group("/v1")
	v1.Use(RateLimit(cfg.RateLimit, cfg.RateBurst))
	RegisterRoutes(v1, NewHandlers(svc, cfg.Extensions))
	return router
}
