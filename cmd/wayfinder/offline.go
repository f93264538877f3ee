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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/wayfinder/pkg/ux"
	"github.com/AleutianAI/wayfinder/services/wayfinder"
	"github.com/AleutianAI/wayfinder/services/wayfinder/graph"
	"github.com/AleutianAI/wayfinder/services/wayfinder/instructions"
	"github.com/AleutianAI/wayfinder/services/wayfinder/reload"
	"github.com/AleutianAI/wayfinder/services/wayfinder/routing"
	"github.com/AleutianAI/wayfinder/services/wayfinder/store/badger"
	"github.com/AleutianAI/wayfinder/services/wayfinder/store/file"
)

// loadService builds a service over the graph file at path.
func loadService(ctx context.Context, path string, logger *slog.Logger, cfg wayfinder.ServiceConfig) (*wayfinder.Service, error) {
	if path == "" {
		return nil, errors.New("--graph is required")
	}
	coord := reload.NewCoordinator(reload.WithLogger(logger))
	cfg.Logger = logger
	svc, err := wayfinder.NewService(coord, file.NewSource(path), cfg)
	if err != nil {
		return nil, err
	}
	if _, err := svc.ReloadFromSource(ctx); err != nil {
		return nil, err
	}
	return svc, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRouteCmd(opts *globalOptions) *cobra.Command {
	var (
		graphPath     string
		asJSON        bool
		dijkstra      bool
		byName        bool
		maxExpansions int
	)

	cmd := &cobra.Command{
		Use:   "route START TARGET",
		Short: "Compute a route between two locations",
		Long: `Compute the shortest route from START to TARGET in a graph file.

START is a node id. TARGET is tried as a node id first and then as a
location name. A name matches case-insensitively, either exactly or as a
substring of the shortest containing name; details such as room codes are
not matched. Use --by-name to skip the id lookup.`,
		Example: `  wayfinder route ENT "Lecture Theater 5" --graph campus.json
  wayfinder route ENT LT5 --graph campus.yaml --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			scfg := wayfinder.DefaultServiceConfig()
			scfg.CacheSize = 0
			if maxExpansions > 0 {
				scfg.MaxExpansions = maxExpansions
			}
			if dijkstra {
				scfg.Heuristic = routing.HeuristicNone
			}
			svc, err := loadService(cmd.Context(), graphPath, opts.logger(cmd.ErrOrStderr()), scfg)
			if err != nil {
				return err
			}

			req := wayfinder.RouteRequest{StartNodeID: args[0], Target: args[1]}
			if byName {
				req = wayfinder.RouteRequest{StartNodeID: args[0], TargetName: args[1]}
			}
			resp, err := svc.ComputeRoute(cmd.Context(), req)
			if err != nil {
				return err
			}

			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), resp); err != nil {
					return err
				}
			} else {
				printRoute(ux.NewPrinter(cmd.OutOrStdout()), args[0], args[1], resp)
			}
			if !resp.Success {
				return fmt.Errorf("%s: %s", strings.ToLower(resp.Code), resp.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&graphPath, "graph", "g", "", "graph file (.json, .yaml)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the response as JSON")
	cmd.Flags().BoolVar(&dijkstra, "dijkstra", false, "search without the distance estimate")
	cmd.Flags().BoolVar(&byName, "by-name", false, "treat TARGET as a location name only")
	cmd.Flags().IntVar(&maxExpansions, "max-expansions", 0, "search budget (default 1000000)")
	_ = cmd.MarkFlagRequired("graph")
	return cmd
}

func printRoute(p *ux.Printer, start, target string, resp *wayfinder.RouteResponse) {
	if !resp.Success {
		return
	}
	p.Title(fmt.Sprintf("Route from %s to %s", start, target))
	for _, step := range resp.Steps {
		p.Step(step.Number, stepIcon(step), step.Instruction)
	}

	floors := make([]string, len(resp.FloorsInvolved))
	for i, f := range resp.FloorsInvolved {
		floors[i] = strconv.Itoa(f)
	}
	p.KeyValues("Summary", [][2]string{
		{"Distance", resp.DistanceText},
		{"Time", resp.EstimatedTime},
		{"Floors", strings.Join(floors, ", ")},
		{"Expanded", strconv.Itoa(resp.Expansions)},
	})
}

func stepIcon(step instructions.Step) ux.Icon {
	switch step.Category {
	case graph.EdgeStairs, graph.EdgeLifts, graph.EdgeEscalator:
		return ux.IconStairs
	}
	if step.FloorDelta != nil {
		return ux.IconStairs
	}
	return ux.IconArrow
}

func newValidateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Check a graph file without loading it anywhere",
		Long: `Build the graph in FILE and report every defect found: duplicate ids,
edges referencing missing nodes, bad weights and malformed coordinates.
Exits non-zero when the file would be rejected by a reload.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := ux.NewPrinter(cmd.OutOrStdout())
			logger := opts.logger(cmd.ErrOrStderr())

			set, err := file.Read(args[0])
			if err != nil {
				return err
			}
			snap, err := graph.Build(set.Nodes, set.Edges)
			var buildErr *graph.BuildError
			if errors.As(err, &buildErr) {
				for _, issue := range buildErr.Issues {
					p.Error(issue.Error())
				}
				logger.Debug("graph rejected", slog.Int("issues", len(buildErr.Issues)))
				return fmt.Errorf("%s: %d issue(s)", args[0], len(buildErr.Issues))
			}
			if err != nil {
				return err
			}

			stats := snap.Stats()
			p.Success(fmt.Sprintf("%s is valid", args[0]))
			p.KeyValues("", [][2]string{
				{"Nodes", strconv.Itoa(stats.NodeCount)},
				{"Edges", strconv.Itoa(stats.EdgeCount)},
				{"Floors", strconv.Itoa(len(stats.Floors))},
			})
			return nil
		},
	}
}

func newImportCmd(opts *globalOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Replace the records in a Badger store with a graph file",
		Long: `Validate FILE and, if it builds, replace every record in the Badger
store at --db with it. A server configured with source.kind=badger picks
the new records up on its next reload.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := ux.NewPrinter(cmd.OutOrStdout())
			logger := opts.logger(cmd.ErrOrStderr())

			set, err := file.Read(args[0])
			if err != nil {
				return err
			}
			if _, err := graph.Build(set.Nodes, set.Edges); err != nil {
				return err
			}

			bcfg := badger.DefaultConfig(dbPath)
			bcfg.Logger = logger
			bcfg.GCInterval = 0
			db, err := badger.Open(bcfg)
			if err != nil {
				return err
			}
			defer db.Close()

			store, err := badger.NewRecordStore(db)
			if err != nil {
				return err
			}
			if err := store.ReplaceAll(cmd.Context(), set); err != nil {
				return err
			}
			p.Success(fmt.Sprintf("imported %d nodes and %d edges into %s", len(set.Nodes), len(set.Edges), dbPath))
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "Badger data directory")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}

func newNodesCmd(opts *globalOptions) *cobra.Command {
	var (
		graphPath string
		floor     int
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "List locations in a graph file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := loadService(cmd.Context(), graphPath, opts.logger(cmd.ErrOrStderr()), wayfinder.DefaultServiceConfig())
			if err != nil {
				return err
			}
			var filter *int
			if cmd.Flags().Changed("floor") {
				filter = &floor
			}
			return printNodes(cmd, svc.ListNodes(cmd.Context(), filter), asJSON)
		},
	}

	cmd.Flags().StringVarP(&graphPath, "graph", "g", "", "graph file (.json, .yaml)")
	cmd.Flags().IntVar(&floor, "floor", 0, "only list nodes on this floor")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the list as JSON")
	_ = cmd.MarkFlagRequired("graph")
	return cmd
}

func newSearchCmd(opts *globalOptions) *cobra.Command {
	var (
		graphPath string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "search KEYWORD",
		Short: "Find locations whose id, name or detail contains KEYWORD",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadService(cmd.Context(), graphPath, opts.logger(cmd.ErrOrStderr()), wayfinder.DefaultServiceConfig())
			if err != nil {
				return err
			}
			return printNodes(cmd, svc.SearchNodes(cmd.Context(), args[0]), asJSON)
		},
	}

	cmd.Flags().StringVarP(&graphPath, "graph", "g", "", "graph file (.json, .yaml)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the matches as JSON")
	_ = cmd.MarkFlagRequired("graph")
	return cmd
}

func printNodes(cmd *cobra.Command, list wayfinder.NodeListResponse, asJSON bool) error {
	if asJSON {
		return writeJSON(cmd.OutOrStdout(), list)
	}
	p := ux.NewPrinter(cmd.OutOrStdout())
	if list.Total == 0 {
		p.Warning("no matching locations")
		return nil
	}
	for _, n := range list.Nodes {
		name := n.Name
		if n.Detail != "" {
			name += " (" + n.Detail + ")"
		}
		p.Info(fmt.Sprintf("%-10s L%-3d %s", n.ID, n.Floor, name))
	}
	p.Info(fmt.Sprintf("%d location(s)", list.Total))
	return nil
}
