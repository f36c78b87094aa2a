// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jeranaias/aideck/internal/debounce"
)

// =============================================================================
// CONFIG WATCHER
// =============================================================================

// DefaultReloadDelay coalesces the burst of events an editor save produces.
const DefaultReloadDelay = 200 * time.Millisecond

// ReloadFunc receives each reloaded config, or the error that stopped it
// from loading.
type ReloadFunc func(cfg *Config, err error)

// Watcher reloads the config when its file changes.
type Watcher struct {
	dir     string
	names   map[string]bool
	delay   atomic.Int64
	onLoad  ReloadFunc
	logger  *slog.Logger
	watcher *fsnotify.Watcher
	sched   *debounce.Scheduler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher watches the config directory. The directory is watched rather
// than the file so that atomic saves, which replace the file, are seen.
func NewWatcher(onLoad ReloadFunc, logger *slog.Logger) (*Watcher, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	if err := EnsureConfigDir(); err != nil {
		return nil, fmt.Errorf("config: create dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: new watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", dir, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		dir:     dir,
		names:   map[string]bool{"config.toml": true, "config.json": true},
		onLoad:  onLoad,
		logger:  logger,
		watcher: fw,
		sched:   debounce.New(),
		ctx:     ctx,
		cancel:  cancel,
	}
	w.delay.Store(int64(DefaultReloadDelay))

	w.wg.Add(1)
	go w.processEvents()
	return w, nil
}

// SetDelay changes the coalescing window for later events.
func (w *Watcher) SetDelay(d time.Duration) {
	w.delay.Store(int64(d))
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.names[filepath.Base(event.Name)] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.sched.Schedule("reload", time.Duration(w.delay.Load()), w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config: watch error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	if w.ctx.Err() != nil {
		return
	}
	cfg, err := Load()
	if err != nil {
		w.logger.Warn("config: reload failed", "error", err)
	} else {
		w.logger.Info("config: reloaded", "dir", w.dir)
		SetGlobal(cfg)
	}
	if w.onLoad != nil {
		w.onLoad(cfg, err)
	}
}

// Close stops watching. Pending reloads are dropped.
func (w *Watcher) Close() error {
	w.cancel()
	w.sched.Stop()
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}
