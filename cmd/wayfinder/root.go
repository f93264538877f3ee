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
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/wayfinder/pkg/logging"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	logLevel string
	jsonLogs bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "wayfinder",
		Short: "Indoor multi-floor route planning",
		Long: `Wayfinder computes shortest walking routes through multi-floor buildings
and turns them into step-by-step directions.

Run "wayfinder serve" for the HTTP API, or query a graph file directly with
"wayfinder route", "wayfinder search" and "wayfinder nodes".`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&opts.jsonLogs, "json-logs", false, "emit logs as JSON")

	root.AddCommand(
		newServeCmd(opts),
		newRouteCmd(opts),
		newValidateCmd(opts),
		newImportCmd(opts),
		newNodesCmd(opts),
		newSearchCmd(opts),
	)
	return root
}

// logger builds the process logger for offline commands. Logs go to w,
// normally the command's stderr, so they never mix with results.
func (o *globalOptions) logger(w io.Writer) *slog.Logger {
	level, err := logging.ParseLevel(o.logLevel)
	if err != nil {
		level = logging.LevelWarn
	}
	return logging.New(logging.Config{
		Level:   level,
		Service: "wayfinder",
		JSON:    o.jsonLogs,
		Output:  w,
	}).Slog()
}
