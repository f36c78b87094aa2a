// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package settings

import "time"

// =============================================================================
// PENDING EDITS
// =============================================================================

// PendingEdit is a local change that the backend has not confirmed yet.
// A newer edit to the same setting replaces it.
type PendingEdit struct {
	AlgorithmID string
	SettingName string
	NewValue    any
	IssuedAt    time.Time

	// seq orders edits within a Store so a write only clears the edit it
	// carried.
	seq uint64
}

// =============================================================================
// MERGE
// =============================================================================

// MergeSnapshot reconciles local state with a remote snapshot.
//
// The result takes its structure, metadata, proposal and execution log from
// remote. Settings with a pending edit keep the edit's value; every other
// setting takes the remote value. Pending edits for settings the remote no
// longer has are ignored.
//
// MergeSnapshot does not modify its inputs.
func MergeSnapshot(local AlgorithmConfig, pending map[string]PendingEdit, remote AlgorithmConfig) AlgorithmConfig {
	merged := remote.Clone()
	if merged.AlgorithmID == "" {
		merged.AlgorithmID = local.AlgorithmID
	}

	for i, s := range merged.Settings {
		edit, ok := pending[s.Name]
		if !ok {
			continue
		}
		merged.Settings[i].Value = edit.NewValue
	}
	return merged
}

// orphanedEdits returns the names of pending edits whose setting is not in
// cfg.
func orphanedEdits(cfg AlgorithmConfig, pending map[string]PendingEdit) []string {
	var out []string
	for name := range pending {
		if _, _, ok := cfg.Setting(name); !ok {
			out = append(out, name)
		}
	}
	return out
}
