// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package poller refreshes algorithm configs from the backend on a fixed
// interval while a view is active.
//
// Polling is best effort: a failed fetch is logged and the next tick tries
// again. Errors never reach the user.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jeranaias/aideck/internal/settings"
)

// DefaultInterval is the time between polls.
const DefaultInterval = 5000 * time.Millisecond

// Fetcher reads every algorithm config from the backend.
type Fetcher interface {
	FetchAlgorithmStats(ctx context.Context) ([]settings.AlgorithmConfig, error)
}

// Sink receives each successful poll result.
type Sink interface {
	MergeAll(configs []settings.AlgorithmConfig)
}

// Observer is told about every poll outcome. Optional.
type Observer func(n int, err error)

// Config holds poller options. Zero values get defaults.
type Config struct {
	Interval time.Duration
	Logger   *slog.Logger
	Observer Observer
}

// =============================================================================
// POLLER
// =============================================================================

// Poller periodically fetches configs and merges them into a Sink.
type Poller struct {
	fetcher Fetcher
	sink    Sink
	logger  *slog.Logger
	observe Observer

	group singleflight.Group

	mu       sync.Mutex
	interval time.Duration
	reset    chan time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a stopped Poller.
func New(f Fetcher, sink Sink, cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Poller{
		fetcher:  f,
		sink:     sink,
		logger:   cfg.Logger,
		observe:  cfg.Observer,
		interval: cfg.Interval,
	}
}

// Start begins polling: one fetch right away, then one per interval. It
// does nothing if the poller is already running. The loop ends when ctx is
// cancelled or Stop is called.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.reset = make(chan time.Duration, 1)

	go p.loop(ctx, p.interval, p.reset, p.done)
}

// Stop ends polling and waits for the loop to exit. Safe to call any number
// of times.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done, p.reset = nil, nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// SetInterval changes the poll interval, taking effect on the running loop
// at once.
func (p *Poller) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.interval = d
	if p.reset == nil {
		return
	}
	select {
	case p.reset <- d:
	default:
		// Drop the stale request and queue the newest one.
		select {
		case <-p.reset:
		default:
		}
		p.reset <- d
	}
}

func (p *Poller) loop(ctx context.Context, interval time.Duration, reset <-chan time.Duration, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	_ = p.Refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-reset:
			ticker.Reset(d)
		case <-ticker.C:
			_ = p.Refresh(ctx)
		}
	}
}

// Refresh fetches once and merges the result. Concurrent calls share a
// single fetch. The error is returned for callers that want it; the loop
// only logs it.
func (p *Poller) Refresh(ctx context.Context) error {
	res, err, _ := p.group.Do("stats", func() (any, error) {
		return p.fetcher.FetchAlgorithmStats(ctx)
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.Warn("poller: fetch failed", "error", err)
		p.notify(0, err)
		return err
	}

	configs := res.([]settings.AlgorithmConfig)
	p.sink.MergeAll(configs)
	p.logger.Debug("poller: merged", "algorithms", len(configs))
	p.notify(len(configs), nil)
	return nil
}

func (p *Poller) notify(n int, err error) {
	if p.observe != nil {
		p.observe(n, err)
	}
}
