// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package debounce

import (
	"strings"
	"sync"
	"time"
)

// =============================================================================
// SCHEDULER
// =============================================================================

// entry is one pending action. gen identifies the Schedule call that created
// it so a timer that lost the race with a newer Schedule does nothing.
type entry struct {
	timer  *time.Timer
	action func()
	gen    uint64
}

// Scheduler runs the last action registered for a key once the key has been
// quiet for its delay.
//
// The zero value is not usable; create one with New.
type Scheduler struct {
	mu      sync.Mutex
	pending map[string]*entry
	gen     uint64
	stopped bool
}

// New creates an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{
		pending: make(map[string]*entry),
	}
}

// Schedule registers action for key, replacing any pending action for the
// same key and restarting its timer. Calls made after Stop are ignored.
//
// The action runs on its own goroutine, outside the scheduler lock.
func (s *Scheduler) Schedule(key string, delay time.Duration, action func()) {
	if action == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	if old, ok := s.pending[key]; ok {
		old.timer.Stop()
	}

	s.gen++
	e := &entry{action: action, gen: s.gen}
	gen := s.gen
	e.timer = time.AfterFunc(delay, func() {
		s.fire(key, gen)
	})
	s.pending[key] = e
}

// fire runs the action for key if the entry is still the one generation gen
// created.
func (s *Scheduler) fire(key string, gen uint64) {
	s.mu.Lock()
	e, ok := s.pending[key]
	if !ok || e.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.pending, key)
	s.mu.Unlock()

	e.action()
}

// Cancel discards the pending action for key without running it.
// It reports whether an action was pending.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.pending[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.pending, key)
	return true
}

// CancelPrefix discards every pending action whose key starts with prefix
// and returns how many were dropped.
func (s *Scheduler) CancelPrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key, e := range s.pending {
		if strings.HasPrefix(key, prefix) {
			e.timer.Stop()
			delete(s.pending, key)
			n++
		}
	}
	return n
}

// Flush runs the pending action for key immediately on the calling
// goroutine. It reports whether an action ran.
func (s *Scheduler) Flush(key string) bool {
	s.mu.Lock()
	e, ok := s.pending[key]
	if !ok {
		s.mu.Unlock()
		return false
	}
	e.timer.Stop()
	delete(s.pending, key)
	s.mu.Unlock()

	e.action()
	return true
}

// Pending reports whether key has an action waiting to run.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}

// Len returns the number of pending actions.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stop cancels every pending action. Later Schedule calls are ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.pending {
		e.timer.Stop()
		delete(s.pending, key)
	}
	s.stopped = true
}
