// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// MaxMessages bounds a conversation. The oldest messages are dropped first.
const MaxMessages = 1000

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is the ordered message list of one chat view.
//
// Conversation is not safe for concurrent use; its owner serializes access.
type Conversation struct {
	ID        string
	CreatedAt time.Time
	messages  []*Message
}

// NewConversation creates an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
	}
}

// Add appends msg.
func (c *Conversation) Add(msg *Message) {
	c.messages = append(c.messages, msg)
	c.prune()
}

// AddUserMessage appends a complete user message.
func (c *Conversation) AddUserMessage(content string) *Message {
	msg := NewUserMessage(content)
	c.Add(msg)
	return msg
}

// AddAssistantPlaceholder appends an empty streaming assistant message.
func (c *Conversation) AddAssistantPlaceholder() *Message {
	msg := NewAssistantPlaceholder()
	c.Add(msg)
	return msg
}

// Get returns the message with id, or nil.
func (c *Conversation) Get(id string) *Message {
	for _, m := range c.messages {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// Last returns the newest message, or nil.
func (c *Conversation) Last() *Message {
	if len(c.messages) == 0 {
		return nil
	}
	return c.messages[len(c.messages)-1]
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// Snapshot returns value copies of every message.
func (c *Conversation) Snapshot() []Message {
	out := make([]Message, len(c.messages))
	for i, m := range c.messages {
		out[i] = m.Snapshot()
	}
	return out
}

// History returns the complete, non-empty messages as role/content pairs,
// oldest first. Streaming placeholders are left out.
func (c *Conversation) History() []HistoryEntry {
	out := make([]HistoryEntry, 0, len(c.messages))
	for _, m := range c.messages {
		if m.IsStreaming() || m.IsEmpty() {
			continue
		}
		out = append(out, HistoryEntry{Role: m.Role, Content: m.Content})
	}
	return out
}

// HistoryEntry is one past turn sent back to the assistant.
type HistoryEntry struct {
	Role    Role
	Content string
}

// Clear removes every message.
func (c *Conversation) Clear() {
	c.messages = nil
}

func (c *Conversation) prune() {
	if over := len(c.messages) - MaxMessages; over > 0 {
		c.messages = append([]*Message(nil), c.messages[over:]...)
	}
}
