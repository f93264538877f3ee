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
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/wayfinder/pkg/extensions"
)

const (
	requestIDKey = "request_id"
	authInfoKey  = "auth_info"
)

// RequestID assigns every request an id, taken from X-Request-ID when the
// client sent one, and echoes it in the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		getOrCreateRequestID(c)
		c.Next()
	}
}

func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetString(requestIDKey); id != "" {
		return id
	}
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDKey, requestID)
	c.Header("X-Request-ID", requestID)
	return requestID
}

// RateLimit rejects requests beyond a token-bucket budget of perSecond
// sustained requests with bursts of burst. A non-positive perSecond
// disables limiting.
//
// Rejected requests get 429 with a Retry-After hint.
func RateLimit(perSecond float64, burst int) gin.HandlerFunc {
	if perSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	retryAfter := strconv.Itoa(max(1, int(1/perSecond)))

	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "rate limit exceeded",
				Code:  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}

// AccessLog logs one line per request.
func AccessLog(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			slog.String("request_id", c.GetString(requestIDKey)),
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}

// RequireAdmin authenticates the bearer token with provider and rejects
// callers without the admin role. Rejections are audited.
//
// Responses:
//
//	401 Unauthorized: Missing or invalid token
//	403 Forbidden: Valid token without the admin role
//	500 Internal Server Error: The provider itself failed
func RequireAdmin(provider extensions.AuthProvider, audit extensions.AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := getOrCreateRequestID(c)
		token := bearerToken(c.GetHeader("Authorization"))

		info, err := provider.Validate(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, extensions.ErrUnauthorized) {
				slog.Error("Auth provider failed", "request_id", requestID, "error", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
					Error: "authentication unavailable",
					Code:  "AUTH_FAILED",
				})
				return
			}
			logDenied(c, audit, "anonymous", requestID, err)
			c.Header("WWW-Authenticate", `Bearer realm="wayfinder"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error: "unauthorized",
				Code:  "UNAUTHORIZED",
			})
			return
		}
		if !info.HasRole(extensions.RoleAdmin) {
			logDenied(c, audit, info.UserID, requestID, errors.New("missing admin role"))
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Error: "admin role required",
				Code:  "FORBIDDEN",
			})
			return
		}

		c.Set(authInfoKey, info)
		c.Next()
	}
}

func logDenied(c *gin.Context, audit extensions.AuditLogger, user, requestID string, err error) {
	_ = audit.Log(c.Request.Context(), extensions.AuditEvent{
		EventType:  extensions.EventAuthDenied,
		UserID:     user,
		RequestID:  requestID,
		ResourceID: c.Request.Method + " " + c.FullPath(),
		Outcome:    extensions.OutcomeDenied,
		Metadata:   map[string]any{"error": err.Error()},
	})
}

// bearerToken extracts the token from an Authorization header value.
func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// callerID returns the authenticated user for audit events.
func callerID(c *gin.Context) string {
	if v, ok := c.Get(authInfoKey); ok {
		if info, ok := v.(*extensions.AuthInfo); ok {
			return info.UserID
		}
	}
	return "anonymous"
}
