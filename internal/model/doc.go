// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for assistant conversations.
//
// # Key Types
//
//   - Message: one user or assistant turn, streaming or complete
//   - Conversation: the ordered list of messages of one chat view
//
// Messages are appended in insertion order. Once a message is complete its
// content never changes.
package model
