// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui is the root of the aideck terminal dashboard.
//
// It hosts two views, plugins (algorithm settings) and chat (workflow
// assistant), plus the toast stack and a status bar. Dashboard callbacks
// run on background goroutines; a Bridge turns them into program messages.
package ui
