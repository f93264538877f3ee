// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for configuration values that end up in
// SQL text, such as table names read from config files or the environment.
// Quoting alone keeps such names from breaking out of the statement, but a
// name that fails these checks is almost always a configuration mistake, so
// it is rejected before any query is built.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidIdentifier is returned for names that fail ValidateIdentifier.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// identifierPattern matches an optionally schema-qualified SQL name.
// Allows: letters, digits, underscores, one dot between schema and table
// Max length: 63 characters per part (PostgreSQL NAMEDATALEN - 1)
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}(\.[A-Za-z_][A-Za-z0-9_]{0,62})?$`)

// ValidateIdentifier validates a table name before it is placed in a query.
//
// Valid examples: "nodes", "campus_edges", "nav.nodes"
// Invalid examples: "", "1nodes", "nodes; DROP TABLE edges", "a.b.c"
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidIdentifier)
	}

	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %q (must be letters, digits or underscores, optionally schema-qualified)", ErrInvalidIdentifier, name)
	}

	return nil
}

// ValidateIdentifiers validates multiple names.
// Returns an error listing all invalid names if any fail validation.
func ValidateIdentifiers(names ...string) error {
	var invalid []string
	for _, n := range names {
		if err := ValidateIdentifier(n); err != nil {
			invalid = append(invalid, n)
		}
	}

	if len(invalid) > 0 {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, invalid)
	}
	return nil
}

// SplitQualified normalizes and validates a name and returns its parts.
// An unqualified name yields a single part.
//
// Use this when you need both validation and the pieces for quoting:
//
//	parts, err := validation.SplitQualified(cfg.NodesTable)
//	if err != nil {
//	    return err
//	}
func SplitQualified(name string) ([]string, error) {
	normalized := strings.TrimSpace(name)
	if err := ValidateIdentifier(normalized); err != nil {
		return nil, err
	}
	return strings.Split(normalized, "."), nil
}
