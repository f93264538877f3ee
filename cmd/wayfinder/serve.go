// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/wayfinder/pkg/extensions"
	"github.com/AleutianAI/wayfinder/pkg/logging"
	"github.com/AleutianAI/wayfinder/services/wayfinder"
	"github.com/AleutianAI/wayfinder/services/wayfinder/config"
	"github.com/AleutianAI/wayfinder/services/wayfinder/graph"
	"github.com/AleutianAI/wayfinder/services/wayfinder/reload"
	"github.com/AleutianAI/wayfinder/services/wayfinder/telemetry"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the navigation HTTP server",
		Long: `Run the navigation HTTP server.

Configuration is read from --config (YAML), then .env, then WAYFINDER_*
environment variables. The graph is loaded from the configured source at
startup; if that fails the server still starts and reports not ready until
a graph is loaded through POST /v1/navigation/reload or PUT /v1/navigation/graph.`,
		Example: `  wayfinder serve --config wayfinder.yaml
  WAYFINDER_SOURCE_KIND=file WAYFINDER_SOURCE_PATH=campus.json wayfinder serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Logging.Level = opts.logLevel
			}
			if cmd.Flags().Changed("json-logs") {
				cfg.Logging.JSON = opts.jsonLogs
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	return cmd
}

// runServer wires the configured source, coordinator and HTTP server and
// blocks until ctx is cancelled.
func runServer(ctx context.Context, cfg config.Config) error {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	logs := logging.New(logging.Config{
		Level:   level,
		Service: cfg.Telemetry.ServiceName,
		JSON:    cfg.Logging.JSON,
		LogDir:  cfg.Logging.Dir,
	})
	defer logs.Close()
	logger := logs.Slog()
	slog.SetDefault(logger)

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logger.Warn("telemetry shutdown", slog.String("error", err.Error()))
		}
	}()

	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	source, closeSource, err := openSource(ctx, cfg.Source, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	coord := reload.NewCoordinator(
		reload.WithLogger(logger),
		reload.WithBuildOptions(
			graph.WithMaxNodes(cfg.Graph.MaxNodes),
			graph.WithMaxEdges(cfg.Graph.MaxEdges),
		),
	)

	svc, err := wayfinder.NewService(coord, source, wayfinder.ServiceConfig{
		MaxExpansions: cfg.Routing.MaxExpansions,
		CacheSize:     cfg.Routing.CacheSize,
		WalkingSpeed:  cfg.Routing.WalkingSpeed,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	if source != nil {
		if res, err := svc.ReloadFromSource(ctx); err != nil {
			logger.Warn("initial graph load failed, serving empty graph",
				slog.String("source", source.Name()),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("initial graph loaded",
				slog.Int("nodes", res.NodeCount),
				slog.Int("edges", res.EdgeCount),
			)
		}
	}

	if cfg.Source.Kind == config.SourceFile && cfg.Source.Watch {
		watcher, err := reload.NewWatcher(coord, source, cfg.Source.Path, &reload.WatcherOptions{
			Debounce: cfg.Source.Debounce,
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		defer watcher.Stop()
	}

	ext := extensions.DefaultOptions().
		WithAuth(extensions.NewStaticTokenProvider(cfg.Server.AdminToken)).
		WithAudit(extensions.NewSlogAuditLogger(logger))
	if cfg.Server.AdminToken == "" {
		logger.Warn("no admin token configured, graph endpoints are open")
	}

	router := wayfinder.NewRouter(svc, wayfinder.RouterConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		RateLimit:   cfg.Server.RateLimit,
		RateBurst:   cfg.Server.RateBurst,
		Metrics:     telemetry.MetricsHandler(),
		Logger:      logger,
		Extensions:  ext,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting wayfinder server",
			slog.String("addr", srv.Addr),
			slog.String("version", wayfinder.ServiceVersion),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down wayfinder server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
