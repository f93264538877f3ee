// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the wayfinder service configuration.
//
// Configuration is layered: built-in defaults, then an optional YAML file,
// then a .env file, then WAYFINDER_* environment variables. The result is
// validated before use.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/wayfinder/services/wayfinder/graph"
	"github.com/AleutianAI/wayfinder/services/wayfinder/routing"
	"github.com/AleutianAI/wayfinder/services/wayfinder/telemetry"
)

// MaxYAMLFileSize bounds the config file size.
const MaxYAMLFileSize = 1 << 20

var (
	// ErrConfigTooLarge is returned when the config file exceeds MaxYAMLFileSize.
	ErrConfigTooLarge = errors.New("config file too large")

	// ErrInvalidConfig wraps validation failures.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrInvalidEnv is returned when an environment override cannot be parsed.
	ErrInvalidEnv = errors.New("invalid environment override")
)

// Source kinds.
const (
	SourceNone     = ""
	SourceFile     = "file"
	SourceBadger   = "badger"
	SourcePostgres = "postgres"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Source    SourceConfig     `yaml:"source"`
	Routing   RoutingConfig    `yaml:"routing"`
	Graph     GraphConfig      `yaml:"graph"`
	Logging   LoggingConfig    `yaml:"logging"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port            int           `yaml:"port" validate:"gte=1,lte=65535"`
	Debug           bool          `yaml:"debug"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`

	// RateLimit is the sustained request rate per second. Zero disables
	// limiting.
	RateLimit float64 `yaml:"rate_limit" validate:"gte=0"`
	RateBurst int     `yaml:"rate_burst" validate:"gte=0"`

	// AdminToken, when set, is required as a bearer token on the
	// graph-changing endpoints. Prefer WAYFINDER_ADMIN_TOKEN over the file.
	AdminToken string `yaml:"admin_token"`
}

// SourceConfig selects where graph records are loaded from.
type SourceConfig struct {
	Kind       string        `yaml:"kind" validate:"omitempty,oneof=file badger postgres"`
	Path       string        `yaml:"path" validate:"required_if=Kind file,required_if=Kind badger"`
	DSN        string        `yaml:"dsn" validate:"required_if=Kind postgres"`
	NodesTable string        `yaml:"nodes_table"`
	EdgesTable string        `yaml:"edges_table"`
	Watch      bool          `yaml:"watch"`
	Debounce   time.Duration `yaml:"debounce" validate:"gte=0"`
}

// RoutingConfig tunes route computation.
type RoutingConfig struct {
	MaxExpansions int     `yaml:"max_expansions" validate:"gte=1"`
	CacheSize     int     `yaml:"cache_size" validate:"gte=0"`
	WalkingSpeed  float64 `yaml:"walking_speed" validate:"gt=0"`
}

// GraphConfig bounds accepted graphs.
type GraphConfig struct {
	MaxNodes int `yaml:"max_nodes" validate:"gte=1"`
	MaxEdges int `yaml:"max_edges" validate:"gte=1"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn warning error"`
	JSON  bool   `yaml:"json"`
	Dir   string `yaml:"dir"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            12345,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       50,
			RateBurst:       100,
		},
		Source: SourceConfig{
			Debounce: 250 * time.Millisecond,
		},
		Routing: RoutingConfig{
			MaxExpansions: routing.DefaultMaxExpansions,
			CacheSize:     1024,
			WalkingSpeed:  1.2,
		},
		Graph: GraphConfig{
			MaxNodes: graph.DefaultMaxNodes,
			MaxEdges: graph.DefaultMaxEdges,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// Load builds the configuration.
//
// Description:
//
//	Starts from Default, decodes the YAML file at path over it (unknown
//	keys are rejected), loads .env from the working directory if present,
//	applies WAYFINDER_* overrides and validates the result.
//
// Inputs:
//
//	path - YAML file. Empty skips the file layer.
//
// Outputs:
//
//	Config - The validated configuration.
//	error - Read, decode, override or validation failure.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return cfg, err
		}
	}
	if err := LoadDotEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) mergeFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxYAMLFileSize+1))
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if len(data) > MaxYAMLFileSize {
		return fmt.Errorf("%w: %s", ErrConfigTooLarge, path)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// LoadDotEnv loads the named .env files (default ".env") into the process
// environment. Missing files are ignored and variables that are already
// set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from WAYFINDER_* environment variables.
func (c *Config) ApplyEnv() error {
	var errs []error

	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s=%q", ErrInvalidEnv, key, v))
				return
			}
			*dst = n
		}
	}
	setBool := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s=%q", ErrInvalidEnv, key, v))
				return
			}
			*dst = b
		}
	}
	setFloat := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(key); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s=%q", ErrInvalidEnv, key, v))
				return
			}
			*dst = f
		}
	}

	setInt("WAYFINDER_PORT", &c.Server.Port)
	setBool("WAYFINDER_DEBUG", &c.Server.Debug)
	setFloat("WAYFINDER_RATE_LIMIT", &c.Server.RateLimit)
	setString("WAYFINDER_ADMIN_TOKEN", &c.Server.AdminToken)
	setString("WAYFINDER_SOURCE_KIND", &c.Source.Kind)
	setString("WAYFINDER_SOURCE_PATH", &c.Source.Path)
	setString("WAYFINDER_DATABASE_URL", &c.Source.DSN)
	setBool("WAYFINDER_WATCH", &c.Source.Watch)
	setInt("WAYFINDER_MAX_EXPANSIONS", &c.Routing.MaxExpansions)
	setInt("WAYFINDER_CACHE_SIZE", &c.Routing.CacheSize)
	setString("WAYFINDER_LOG_LEVEL", &c.Logging.Level)
	setString("WAYFINDER_LOG_DIR", &c.Logging.Dir)

	return errors.Join(errs...)
}

var validate = validator.New()

// Validate checks field constraints.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag())
		if p := fe.Param(); p != "" {
			msg += "=" + p
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

// Addr is the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return ":" + strconv.Itoa(s.Port)
}
