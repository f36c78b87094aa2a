// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package settings

import (
	"fmt"
	"sync"
	"time"

	"github.com/jeranaias/aideck/internal/debounce"
)

// =============================================================================
// REGISTRY
// =============================================================================

// Registry holds one Store per algorithm.
//
// The registry lock only guards the map. Each Store serializes its own
// mutations, so work on one algorithm never waits for another.
type Registry struct {
	mu     sync.RWMutex
	stores map[string]*Store
	order  []string

	writer   Writer
	opts     StoreOptions
	ownSched bool

	listenMu  sync.RWMutex
	listeners []func(AlgorithmConfig)
}

// NewRegistry creates an empty registry whose stores write through w.
// opts.OnChange is chained after the registry's own listeners.
func NewRegistry(w Writer, opts StoreOptions) *Registry {
	r := &Registry{
		stores: make(map[string]*Store),
		writer: w,
	}
	if opts.Scheduler == nil {
		opts.Scheduler = debounce.New()
		r.ownSched = true
	}
	userChange := opts.OnChange
	opts.OnChange = func(cfg AlgorithmConfig) {
		r.emit(cfg)
		if userChange != nil {
			userChange(cfg)
		}
	}
	r.opts = opts
	return r
}

// OnChange registers fn to receive every config change from any store.
func (r *Registry) OnChange(fn func(AlgorithmConfig)) {
	r.listenMu.Lock()
	r.listeners = append(r.listeners, fn)
	r.listenMu.Unlock()
}

func (r *Registry) emit(cfg AlgorithmConfig) {
	r.listenMu.RLock()
	listeners := r.listeners
	r.listenMu.RUnlock()
	for _, fn := range listeners {
		fn(cfg)
	}
}

// Get returns the store for id.
func (r *Registry) Get(id string) (*Store, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[id]
	return s, ok
}

// MustGet returns the store for id or an error wrapping ErrUnknownAlgorithm.
func (r *Registry) MustGet(id string) (*Store, error) {
	s, ok := r.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, id)
	}
	return s, nil
}

// IDs returns the algorithm ids in the order the backend last reported them.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Configs returns a snapshot of every config in backend order.
func (r *Registry) Configs() []AlgorithmConfig {
	r.mu.RLock()
	stores := make([]*Store, 0, len(r.order))
	for _, id := range r.order {
		stores = append(stores, r.stores[id])
	}
	r.mu.RUnlock()

	out := make([]AlgorithmConfig, 0, len(stores))
	for _, s := range stores {
		out = append(out, s.Config())
	}
	return out
}

// MergeAll folds a full poll result into the registry. Unknown algorithms
// get a new store; algorithms missing from the result are closed and
// dropped.
func (r *Registry) MergeAll(configs []AlgorithmConfig) {
	seen := make(map[string]bool, len(configs))
	var merge []*Store
	var remote []AlgorithmConfig
	var created []AlgorithmConfig
	var dropped []*Store

	r.mu.Lock()
	order := make([]string, 0, len(configs))
	for _, cfg := range configs {
		if cfg.AlgorithmID == "" || seen[cfg.AlgorithmID] {
			continue
		}
		seen[cfg.AlgorithmID] = true
		order = append(order, cfg.AlgorithmID)

		if s, ok := r.stores[cfg.AlgorithmID]; ok {
			merge = append(merge, s)
			remote = append(remote, cfg)
			continue
		}
		r.stores[cfg.AlgorithmID] = NewStore(cfg, r.writer, r.opts)
		created = append(created, cfg)
	}
	for id, s := range r.stores {
		if !seen[id] {
			dropped = append(dropped, s)
			delete(r.stores, id)
		}
	}
	r.order = order
	r.mu.Unlock()

	for i, s := range merge {
		s.MergeRemoteSnapshot(remote[i])
	}
	for _, s := range dropped {
		s.Close()
	}
	for _, cfg := range created {
		r.opts.OnChange(cfg.Clone())
	}
}

// Close closes every store.
func (r *Registry) Close() {
	r.mu.Lock()
	stores := make([]*Store, 0, len(r.stores))
	for _, s := range r.stores {
		stores = append(stores, s)
	}
	r.mu.Unlock()

	for _, s := range stores {
		s.Close()
	}
	if r.ownSched {
		r.opts.Scheduler.Stop()
	}
}

// SetDebounce changes the edit window of every current and future store.
func (r *Registry) SetDebounce(d time.Duration) {
	r.mu.Lock()
	r.opts.Debounce = d
	stores := make([]*Store, 0, len(r.stores))
	for _, s := range r.stores {
		stores = append(stores, s)
	}
	r.mu.Unlock()

	for _, s := range stores {
		s.SetDebounce(d)
	}
}
