// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package settings holds AI algorithm configurations and keeps local edits
// consistent with the backend.
//
// # Key Types
//
//   - Setting: one named, typed value with optional numeric bounds
//   - AlgorithmConfig: the settings of one algorithm plus backend-owned
//     proposal and execution log
//   - PendingEdit: an optimistic local change not yet confirmed
//   - Store: one algorithm's config, its pending edits, and the write path
//   - Registry: every Store, keyed by algorithm id
//
// # Edit Flow
//
// ApplyLocalEdit validates and applies a value immediately. Numeric and
// string edits are coalesced through a debounce.Scheduler and written once
// the setting has been quiet for the debounce window; boolean edits are
// written at once. A failed write keeps the PendingEdit so the view still
// shows what the user asked for. Nothing is retried automatically.
//
// Background polls go through MergeSnapshot, which never lets a remote value
// replace a setting that has a pending edit.
package settings
