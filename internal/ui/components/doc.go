// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides reusable pieces of the aideck TUI: toasts
// for write and stream failures, syntax highlighted code blocks, markdown
// rendering for assistant replies, and width-aware text helpers.
package components
