// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the workflow assistant view of the TUI.
//
// The view owns no conversation state. It re-reads the session on every
// chat event and renders it; fragments are coalesced and painted at most
// 30 times a second.
//
// Every call into the Backend runs inside a tea.Cmd. Backend calls emit
// events synchronously, and those events reach the program through
// Program.Send, which must never be called from Update.
package chat
