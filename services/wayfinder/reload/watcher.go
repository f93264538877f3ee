// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reload

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrWatcherStopped is returned when Start is called after Stop.
var ErrWatcherStopped = errors.New("watcher stopped")

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	// Debounce is how long the file must be quiet before a reload runs.
	// Default: 250ms.
	Debounce time.Duration

	// Logger receives reload outcomes. Default: slog.Default().
	Logger *slog.Logger

	// OnReload, if set, is called after every watcher-triggered reload.
	OnReload func(Result, error)
}

// DefaultWatcherOptions returns sensible defaults.
func DefaultWatcherOptions() WatcherOptions {
	return WatcherOptions{
		Debounce: 250 * time.Millisecond,
		Logger:   slog.Default(),
	}
}

// Watcher reloads the coordinator whenever a graph data file changes.
//
// The parent directory is watched rather than the file itself so that
// editors and deploy tools that replace the file by rename are still seen.
// Bursts of events are collapsed into one reload.
//
// Thread Safety: Start and Stop are safe for concurrent use.
type Watcher struct {
	path     string
	coord    *Coordinator
	source   Source
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger
	onReload func(Result, error)

	signal   chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	watching bool
	stopped  bool
}

// NewWatcher creates a watcher for path that reloads coord from src.
func NewWatcher(coord *Coordinator, src Source, path string, opts *WatcherOptions) (*Watcher, error) {
	if coord == nil || src == nil {
		return nil, ErrNilSource
	}
	if opts == nil {
		defaults := DefaultWatcherOptions()
		opts = &defaults
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultWatcherOptions().Debounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		path:     abs,
		coord:    coord,
		source:   src,
		watcher:  fw,
		debounce: debounce,
		logger:   logger.With(slog.String("path", abs)),
		onReload: opts.OnReload,
		signal:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. It returns immediately; events are processed in
// background goroutines until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return ErrWatcherStopped
	}
	if w.watching {
		return nil
	}

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.watching = true

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)

	w.logger.Info("watching graph file")
	return nil
}

// Stop ends watching. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()

		w.mu.Lock()
		w.watching = false
		w.stopped = true
		w.mu.Unlock()
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			select {
			case w.signal <- struct{}{}:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-w.signal:
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer, timerC = nil, nil
			w.reload(ctx)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	res, err := w.coord.ReloadFrom(ctx, w.source)
	if err != nil {
		w.logger.Error("graph file reload failed, keeping previous snapshot",
			slog.String("error", err.Error()))
	} else {
		w.logger.Info("graph file reloaded",
			slog.Uint64("generation", res.Generation),
			slog.Int("nodes", res.NodeCount),
			slog.Int("edges", res.EdgeCount))
	}
	if w.onReload != nil {
		w.onReload(res, err)
	}
}
