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
	"fmt"
	"log/slog"

	"github.com/AleutianAI/wayfinder/services/wayfinder/config"
	"github.com/AleutianAI/wayfinder/services/wayfinder/reload"
	"github.com/AleutianAI/wayfinder/services/wayfinder/store/badger"
	"github.com/AleutianAI/wayfinder/services/wayfinder/store/file"
	"github.com/AleutianAI/wayfinder/services/wayfinder/store/postgres"
)

// openSource builds the record source named by cfg. The returned closer is
// always non-nil. A SourceNone config yields a nil source.
func openSource(ctx context.Context, cfg config.SourceConfig, logger *slog.Logger) (reload.Source, func(), error) {
	noop := func() {}

	switch cfg.Kind {
	case config.SourceNone:
		return nil, noop, nil

	case config.SourceFile:
		return file.NewSource(cfg.Path), noop, nil

	case config.SourceBadger:
		bcfg := badger.DefaultConfig(cfg.Path)
		bcfg.Logger = logger
		db, err := badger.Open(bcfg)
		if err != nil {
			return nil, noop, fmt.Errorf("open badger store: %w", err)
		}
		store, err := badger.NewRecordStore(db)
		if err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		return store, func() {
			if err := db.Close(); err != nil {
				logger.Warn("close badger store", slog.String("error", err.Error()))
			}
		}, nil

	case config.SourcePostgres:
		opts := postgres.DefaultOptions()
		if cfg.NodesTable != "" {
			opts.NodesTable = cfg.NodesTable
		}
		if cfg.EdgesTable != "" {
			opts.EdgesTable = cfg.EdgesTable
		}
		src, err := postgres.Open(ctx, cfg.DSN, opts)
		if err != nil {
			return nil, noop, fmt.Errorf("open postgres source: %w", err)
		}
		return src, func() {
			if err := src.Close(); err != nil {
				logger.Warn("close postgres source", slog.String("error", err.Error()))
			}
		}, nil
	}
	return nil, noop, fmt.Errorf("unknown source kind %q", cfg.Kind)
}
