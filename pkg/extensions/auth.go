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
	"crypto/subtle"
	"errors"
	"fmt"
	"slices"
)

// ErrUnauthorized is returned when authentication fails.
// Implementations should wrap this error with additional context.
//
// Example:
//
//	if !validToken {
//	    return nil, fmt.Errorf("invalid token format: %w", extensions.ErrUnauthorized)
//	}
var ErrUnauthorized = errors.New("unauthorized")

// RoleAdmin may replace and reload the graph.
const RoleAdmin = "admin"

// AuthInfo contains identity information returned after successful authentication.
//
// Required fields (always populated):
//   - UserID: Unique identifier for the caller
//
// Optional fields (may be empty):
//   - Roles: List of roles the caller holds
type AuthInfo struct {
	// UserID is the unique identifier for the authenticated caller.
	// This is the only required field and must never be empty.
	UserID string

	// Roles contains the caller's role memberships.
	Roles []string
}

// HasRole checks if the caller has a specific role.
//
//	if !authInfo.HasRole(extensions.RoleAdmin) {
//	    return ErrUnauthorized
//	}
func (a *AuthInfo) HasRole(role string) bool {
	return slices.Contains(a.Roles, role)
}

// AuthProvider validates authentication tokens and returns caller identity.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type AuthProvider interface {
	// Validate checks if the token is valid and returns the caller's identity.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - token: The bearer token, without the "Bearer " prefix. May be empty.
	//
	// Returns:
	//   - *AuthInfo: Caller identity information if valid
	//   - error: ErrUnauthorized (or wrapped) if invalid, other errors for failures
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// NopAuthProvider is the default authentication provider.
//
// It always returns a valid local user with admin privileges.
//
// Thread-safe: This implementation has no mutable state.
type NopAuthProvider struct{}

// Validate always returns a valid local user with admin privileges.
//
// The token parameter is ignored; any value (including empty string)
// results in successful authentication.
func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{
		UserID: "local-user",
		Roles:  []string{RoleAdmin},
	}, nil
}

// StaticTokenProvider accepts exactly one shared admin token.
//
// Thread-safe: The token is never modified after construction.
//
// Example:
//
//	provider := extensions.NewStaticTokenProvider(os.Getenv("WAYFINDER_ADMIN_TOKEN"))
//	info, err := provider.Validate(ctx, token)
type StaticTokenProvider struct {
	token []byte
}

// NewStaticTokenProvider returns a provider for token. An empty token
// yields a NopAuthProvider so that unconfigured deployments stay open.
func NewStaticTokenProvider(token string) AuthProvider {
	if token == "" {
		return &NopAuthProvider{}
	}
	return &StaticTokenProvider{token: []byte(token)}
}

// Validate compares token with the configured one in constant time.
func (p *StaticTokenProvider) Validate(_ context.Context, token string) (*AuthInfo, error) {
	if token == "" {
		return nil, fmt.Errorf("missing token: %w", ErrUnauthorized)
	}
	if subtle.ConstantTimeCompare([]byte(token), p.token) != 1 {
		return nil, fmt.Errorf("token mismatch: %w", ErrUnauthorized)
	}
	return &AuthInfo{
		UserID: "admin-token",
		Roles:  []string{RoleAdmin},
	}, nil
}

// Compile-time interface compliance checks.
var (
	_ AuthProvider = (*NopAuthProvider)(nil)
	_ AuthProvider = (*StaticTokenProvider)(nil)
)
