// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package proposal compares an algorithm's active settings with the settings
// its backend proposes, and adopts a proposal on request.
package proposal

import (
	"context"
	"errors"
	"fmt"

	"github.com/jeranaias/aideck/internal/settings"
)

// ErrNoProposal is returned by Adopt when there is nothing to adopt.
var ErrNoProposal = errors.New("no proposed settings to adopt")

// Change is one setting whose proposed value differs from the active one.
type Change struct {
	Name string
	Old  any
	New  any

	// Added is set when the proposal introduces a setting that is not
	// active yet. Old is nil in that case.
	Added bool
}

// String renders the change as "name: old -> new".
func (c Change) String() string {
	return fmt.Sprintf("%s: %s -> %s", c.Name, settings.FormatValue(c.Old), settings.FormatValue(c.New))
}

// HasProposal reports whether cfg carries a proposal that differs in value
// from its active settings.
func HasProposal(cfg settings.AlgorithmConfig) bool {
	if cfg.Proposed == nil {
		return false
	}
	return !settings.EqualValues(cfg.Settings, cfg.Proposed)
}

// Diff lists the differing settings in active order, followed by settings
// only the proposal has. Active settings the proposal omits are not
// reported.
func Diff(cfg settings.AlgorithmConfig) []Change {
	if cfg.Proposed == nil {
		return nil
	}

	proposed := make(map[string]any, len(cfg.Proposed))
	for _, s := range cfg.Proposed {
		proposed[s.Name] = s.Value
	}

	var out []Change
	active := make(map[string]bool, len(cfg.Settings))
	for _, s := range cfg.Settings {
		active[s.Name] = true
		nv, ok := proposed[s.Name]
		if !ok || settings.ValuesEqual(s.Value, nv) {
			continue
		}
		out = append(out, Change{Name: s.Name, Old: s.Value, New: nv})
	}
	for _, s := range cfg.Proposed {
		if !active[s.Name] {
			out = append(out, Change{Name: s.Name, New: s.Value, Added: true})
		}
	}
	return out
}

// Adopt replaces the store's settings with its proposal, clears the
// proposal and writes the result at once, skipping the debounce window.
//
// The replacement happens under the store lock. If the write fails the
// adopted values stay in place as pending edits, the same as any other
// failed write, and the error is returned.
func Adopt(ctx context.Context, store *settings.Store) error {
	changed, err := store.Update(func(cfg settings.AlgorithmConfig) (settings.AlgorithmConfig, []string, error) {
		if !HasProposal(cfg) {
			return cfg, nil, ErrNoProposal
		}
		var names []string
		for _, c := range Diff(cfg) {
			names = append(names, c.Name)
		}
		cfg.Settings = cfg.Clone().Proposed
		cfg.Proposed = nil
		return cfg, names, nil
	})
	if err != nil {
		return err
	}
	return store.ConfirmKeys(ctx, changed...)
}
