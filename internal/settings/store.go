// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package settings

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/aideck/internal/debounce"
)

// DefaultDebounce is the quiet window before a numeric edit is written.
const DefaultDebounce = 1000 * time.Millisecond

// =============================================================================
// COLLABORATORS
// =============================================================================

// Writer persists a full algorithm config. Implementations must accept the
// same payload repeatedly.
type Writer interface {
	UpdateAlgorithmSettings(ctx context.Context, algorithmID string, cfg AlgorithmConfig) (AlgorithmConfig, error)
}

// WriteResult describes one confirmed write attempt.
type WriteResult struct {
	AlgorithmID string
	Settings    []string
	Config      AlgorithmConfig
	Err         error
}

// OK reports whether the write succeeded.
func (r WriteResult) OK() bool { return r.Err == nil }

// StoreOptions configures a Store. Zero values get defaults.
type StoreOptions struct {
	// Debounce is the quiet window for numeric and string edits.
	Debounce time.Duration

	// Scheduler is shared between stores; keys are prefixed with the
	// algorithm id. When nil the store creates and owns one.
	Scheduler *debounce.Scheduler

	// OnWrite is called after every confirmed write, successful or not.
	OnWrite func(WriteResult)

	// OnChange is called with a snapshot after every local or remote change.
	OnChange func(AlgorithmConfig)

	// Context bounds debounced writes. Close cancels it.
	Context context.Context

	Logger *slog.Logger
	Now    func() time.Time
}

// =============================================================================
// STORE
// =============================================================================

// Store owns one algorithm's configuration and its pending edits.
//
// mu guards cfg and pending. writeMu serializes backend writes so a later
// write always carries a later snapshot.
type Store struct {
	mu      sync.Mutex
	cfg     AlgorithmConfig
	pending map[string]PendingEdit
	seq     uint64
	closed  bool

	writeMu sync.Mutex
	writer  Writer

	sched    *debounce.Scheduler
	ownSched bool
	window   time.Duration

	onWrite  func(WriteResult)
	onChange func(AlgorithmConfig)

	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a Store seeded with cfg.
func NewStore(cfg AlgorithmConfig, w Writer, opts StoreOptions) *Store {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}

	ctx, cancel := context.WithCancel(opts.Context)
	s := &Store{
		cfg:      cfg.Clone(),
		pending:  make(map[string]PendingEdit),
		writer:   w,
		sched:    opts.Scheduler,
		window:   opts.Debounce,
		onWrite:  opts.OnWrite,
		onChange: opts.OnChange,
		ctx:      ctx,
		cancel:   cancel,
		logger:   opts.Logger.With("algorithm_id", cfg.AlgorithmID),
		now:      opts.Now,
	}
	if s.sched == nil {
		s.sched = debounce.New()
		s.ownSched = true
	}
	return s
}

// ID returns the algorithm id.
func (s *Store) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.AlgorithmID
}

// Config returns a snapshot of the current configuration.
func (s *Store) Config() AlgorithmConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Clone()
}

// PendingEdits returns a copy of the outstanding edits.
func (s *Store) PendingEdits() map[string]PendingEdit {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]PendingEdit, len(s.pending))
	for k, v := range s.pending {
		out[k] = v
	}
	return out
}

// HasPending reports whether name has an unconfirmed edit.
func (s *Store) HasPending(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[name]
	return ok
}

// SetDebounce changes the quiet window for edits made from now on.
func (s *Store) SetDebounce(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	s.window = d
	s.mu.Unlock()
}

// ApplyLocalEdit validates value and applies it immediately.
//
// Boolean edits are written before ApplyLocalEdit returns and the write
// error, if any, is returned. Other kinds schedule a debounced write and
// return nil; their outcome goes to OnWrite. A *ValidationError leaves the
// config untouched and never reaches the network.
func (s *Store) ApplyLocalEdit(ctx context.Context, name string, value any) error {
	name = norm.NFC.String(strings.TrimSpace(name))

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	cur, _, ok := s.cfg.Setting(name)
	if !ok {
		s.mu.Unlock()
		return &ValidationError{Setting: name, Value: value, Reason: "unknown setting"}
	}
	v, err := Validate(cur, value)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	s.cfg = s.cfg.WithValue(name, v)
	seq := s.recordLocked(name, v)
	snapshot := s.cfg.Clone()
	window := s.window
	key := s.keyLocked(name)
	s.mu.Unlock()

	s.notify(snapshot)

	if cur.Kind == KindBool {
		s.sched.Cancel(key)
		return s.confirm(ctx, []string{name})
	}

	s.sched.Schedule(key, window, func() {
		_ = s.confirmEdit(s.ctx, name, seq)
	})
	return nil
}

// ConfirmWrite sends the full current config to the backend on behalf of
// the named setting. On success the setting's pending edit is cleared,
// unless a newer edit arrived while the write was in flight. On failure the
// edit stays pending and the error is returned.
func (s *Store) ConfirmWrite(ctx context.Context, name string) error {
	return s.confirm(ctx, []string{name})
}

// ConfirmKeys writes the full config once. names are the settings the
// write is reported for.
func (s *Store) ConfirmKeys(ctx context.Context, names ...string) error {
	return s.confirm(ctx, names)
}

func (s *Store) confirm(ctx context.Context, names []string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.writeLocked(ctx, names)
}

// confirmEdit is the debounced write for one edit. It does nothing when
// another write already carried the edit or a newer edit replaced it.
func (s *Store) confirmEdit(ctx context.Context, name string, seq uint64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	e, ok := s.pending[name]
	s.mu.Unlock()
	if !ok || e.seq != seq {
		return nil
	}
	return s.writeLocked(ctx, []string{name})
}

// writeLocked sends the full config. Every write carries every pending
// edit, so on success all edits in the snapshot are cleared and their
// debounced writes cancelled. writeMu must be held.
func (s *Store) writeLocked(ctx context.Context, names []string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	snapshot := s.cfg.Clone()
	carried := make(map[string]uint64, len(s.pending))
	for n, e := range s.pending {
		carried[n] = e.seq
	}
	s.mu.Unlock()

	id := snapshot.AlgorithmID
	updated, err := s.writer.UpdateAlgorithmSettings(ctx, id, snapshot)
	if err != nil {
		err = fmt.Errorf("settings: update %s: %w", id, err)
		s.logger.Warn("settings: write failed", "settings", names, "error", err)
		s.report(WriteResult{AlgorithmID: id, Settings: names, Config: snapshot, Err: err})
		return err
	}

	s.mu.Lock()
	for n, seq := range carried {
		if e, ok := s.pending[n]; ok && e.seq == seq {
			delete(s.pending, n)
			s.sched.Cancel(s.keyLocked(n))
		}
	}
	if updated.AlgorithmID != "" || len(updated.Settings) > 0 {
		s.mergeLocked(updated)
	}
	result := s.cfg.Clone()
	s.mu.Unlock()

	s.logger.Debug("settings: write confirmed", "settings", names)
	s.notify(result)
	s.report(WriteResult{AlgorithmID: id, Settings: names, Config: result})
	return nil
}

// MergeRemoteSnapshot folds a polled config into the store. Settings with
// pending edits keep their local value.
func (s *Store) MergeRemoteSnapshot(remote AlgorithmConfig) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	before := s.cfg
	s.mergeLocked(remote)
	changed := !configsEqual(before, s.cfg)
	snapshot := s.cfg.Clone()
	s.mu.Unlock()

	if changed {
		s.notify(snapshot)
	}
}

func (s *Store) mergeLocked(remote AlgorithmConfig) {
	merged := MergeSnapshot(s.cfg, s.pending, remote)
	for _, name := range orphanedEdits(merged, s.pending) {
		delete(s.pending, name)
		s.sched.Cancel(s.keyLocked(name))
	}
	s.cfg = merged
}

// Update applies fn to a copy of the config under the store lock. fn
// returns the new config and the names of the settings it changed; those
// become pending edits and lose any scheduled debounced write. No write is
// made; follow with ConfirmKeys.
func (s *Store) Update(fn func(AlgorithmConfig) (AlgorithmConfig, []string, error)) ([]string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	next, changed, err := fn(s.cfg.Clone())
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	next.AlgorithmID = s.cfg.AlgorithmID
	s.cfg = next
	for _, name := range changed {
		if set, _, ok := next.Setting(name); ok {
			s.recordLocked(name, set.Value)
		}
		s.sched.Cancel(s.keyLocked(name))
	}
	snapshot := s.cfg.Clone()
	s.mu.Unlock()

	s.notify(snapshot)
	return changed, nil
}

// Close cancels this store's scheduled writes and in-flight debounced
// writes. It is safe to call more than once.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	prefix := s.keyPrefixLocked()
	s.mu.Unlock()

	s.cancel()
	if s.ownSched {
		s.sched.Stop()
	} else {
		s.sched.CancelPrefix(prefix)
	}
}

func (s *Store) recordLocked(name string, v any) uint64 {
	s.seq++
	s.pending[name] = PendingEdit{
		AlgorithmID: s.cfg.AlgorithmID,
		SettingName: name,
		NewValue:    v,
		IssuedAt:    s.now(),
		seq:         s.seq,
	}
	return s.seq
}

// keyPrefixLocked is the scheduler key prefix of this store. The id is
// escaped so that no other algorithm's keys share the prefix.
func (s *Store) keyPrefixLocked() string {
	return url.PathEscape(s.cfg.AlgorithmID) + "/"
}

func (s *Store) keyLocked(name string) string {
	return s.keyPrefixLocked() + name
}

func (s *Store) notify(cfg AlgorithmConfig) {
	if s.onChange != nil {
		s.onChange(cfg)
	}
}

func (s *Store) report(r WriteResult) {
	if s.onWrite != nil {
		s.onWrite(r)
	}
}

// configsEqual compares everything a merge can change.
func configsEqual(a, b AlgorithmConfig) bool {
	if a.Algorithm != b.Algorithm || a.ExecutionLog != b.ExecutionLog {
		return false
	}
	if len(a.Settings) != len(b.Settings) || !EqualValues(a.Settings, b.Settings) {
		return false
	}
	if (a.Proposed == nil) != (b.Proposed == nil) {
		return false
	}
	return EqualValues(a.Proposed, b.Proposed)
}
