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

import "errors"

// Sentinel errors for the wayfinder service.
var (
	// ErrMissingStart indicates a route request without a start node id.
	ErrMissingStart = errors.New("start_node_id is required")

	// ErrMissingTarget indicates a route request naming no target.
	ErrMissingTarget = errors.New("one of target_node_id, target_name or target is required")

	// ErrAmbiguousTarget indicates a route request naming more than one target.
	ErrAmbiguousTarget = errors.New("only one of target_node_id, target_name or target may be set")

	// ErrNoSource indicates a reload from source was requested but none is
	// configured.
	ErrNoSource = errors.New("no graph source configured")

	// ErrNilCoordinator is returned by NewService for a nil coordinator.
	ErrNilCoordinator = errors.New("coordinator must not be nil")
)
