// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"errors"
	"fmt"
	"strings"
)

// Issue is a single integrity defect found while building a snapshot.
//
// Issue implements error and unwraps to one of the package sentinels, so a
// BuildError can be inspected with errors.Is for any kind it contains.
type Issue struct {
	// Kind is the machine-readable name of the defect.
	Kind string `json:"kind"`

	// Index is the position of the offending record in its input slice,
	// or -1 for whole-set issues such as capacity limits.
	Index int `json:"index"`

	// NodeID is set for node defects.
	NodeID string `json:"node_id,omitempty"`

	// FromID and ToID are set for edge defects.
	FromID string `json:"from_node_id,omitempty"`
	ToID   string `json:"to_node_id,omitempty"`

	// Detail is a human-readable explanation.
	Detail string `json:"detail,omitempty"`

	err error
}

func newIssue(sentinel error, index int, detail string) Issue {
	return Issue{
		Kind:   issueKinds[sentinel],
		Index:  index,
		Detail: detail,
		err:    sentinel,
	}
}

// Error implements the error interface.
func (i Issue) Error() string {
	var subject string
	switch {
	case i.NodeID != "":
		subject = fmt.Sprintf("node %q", i.NodeID)
	case i.FromID != "" || i.ToID != "":
		subject = fmt.Sprintf("edge %q -> %q", i.FromID, i.ToID)
	}

	msg := i.err.Error()
	if subject != "" {
		msg = subject + ": " + msg
	}
	if i.Detail != "" {
		msg += " (" + i.Detail + ")"
	}
	return msg
}

// Unwrap returns the sentinel this issue represents.
func (i Issue) Unwrap() error {
	return i.err
}

// BuildError aggregates every defect found in one build attempt.
//
// Build never stops at the first problem: a caller fixing a data set sees
// all dangling edges at once rather than one per attempt.
type BuildError struct {
	Issues []Issue `json:"issues"`
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	if len(e.Issues) == 1 {
		return "graph build failed: " + e.Issues[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "graph build failed: %d issues", len(e.Issues))
	for i, issue := range e.Issues {
		if i == 5 {
			fmt.Fprintf(&sb, "; and %d more", len(e.Issues)-i)
			break
		}
		sb.WriteString("; ")
		sb.WriteString(issue.Error())
	}
	return sb.String()
}

// Unwrap exposes the individual issues to errors.Is and errors.As.
func (e *BuildError) Unwrap() []error {
	errs := make([]error, len(e.Issues))
	for i, issue := range e.Issues {
		errs[i] = issue
	}
	return errs
}

// Filter returns the issues that match target.
func (e *BuildError) Filter(target error) []Issue {
	var out []Issue
	for _, issue := range e.Issues {
		if errors.Is(issue, target) {
			out = append(out, issue)
		}
	}
	return out
}
