// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package file reads and writes graph record sets as JSON or YAML files.
//
// The document shape is the one produced by the map import tooling:
//
//	{"nodes": [{"id": "LT5", "name": "Lecture Theater 5", "floor": 2, ...}],
//	 "edges": [{"from_node_id": "LT5", "to_node_id": "C2", "weight": 12, ...}]}
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/wayfinder/services/wayfinder/graph"
)

// MaxFileSize bounds how much a graph file may contain.
const MaxFileSize = 16 << 20

var (
	// ErrUnsupportedFormat is returned for extensions other than .json,
	// .yaml and .yml.
	ErrUnsupportedFormat = errors.New("unsupported graph file format")

	// ErrFileTooLarge is returned when a file exceeds MaxFileSize.
	ErrFileTooLarge = errors.New("graph file too large")
)

// Format is a file encoding.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor infers the format from a path's extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// Source is a reload source backed by one file.
type Source struct {
	path string
}

// NewSource returns a source reading path on every Load.
func NewSource(path string) *Source {
	return &Source{path: path}
}

// Name identifies the source.
func (s *Source) Name() string { return "file:" + s.path }

// Path returns the file path.
func (s *Source) Path() string { return s.path }

// Load reads the file.
func (s *Source) Load(ctx context.Context) (graph.RecordSet, error) {
	if err := ctx.Err(); err != nil {
		return graph.RecordSet{}, err
	}
	return Read(s.path)
}

// Read decodes the record set stored at path.
func Read(path string) (graph.RecordSet, error) {
	format, err := FormatFor(path)
	if err != nil {
		return graph.RecordSet{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return graph.RecordSet{}, fmt.Errorf("open graph file: %w", err)
	}
	defer f.Close()

	return Decode(f, format)
}

// Decode reads a record set from r.
func Decode(r io.Reader, format Format) (graph.RecordSet, error) {
	var set graph.RecordSet
	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return set, fmt.Errorf("read graph file: %w", err)
	}
	if len(data) > MaxFileSize {
		return set, fmt.Errorf("%w: limit %d bytes", ErrFileTooLarge, MaxFileSize)
	}

	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &set)
	case FormatYAML:
		err = yaml.Unmarshal(data, &set)
	default:
		return set, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return set, fmt.Errorf("decode %s graph file: %w", format, err)
	}
	return set, nil
}

// Write encodes set to path in the format implied by its extension.
func Write(path string, set graph.RecordSet) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}
	var data []byte
	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(set, "", "  ")
	case FormatYAML:
		data, err = yaml.Marshal(set)
	}
	if err != nil {
		return fmt.Errorf("encode graph file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
