// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// STATUS TYPE
// =============================================================================

// Status is the lifecycle state of a message.
type Status string

const (
	StatusStreaming Status = "streaming"
	StatusComplete  Status = "complete"
)

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single turn in a conversation.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content"`
	Status    Status    `json:"status"`

	// Failed marks an assistant reply that ended in an error. Content holds
	// whatever arrived before the failure.
	Failed    bool   `json:"failed,omitempty"`
	ErrorText string `json:"error,omitempty"`

	// Canceled marks a reply the user stopped.
	Canceled bool `json:"canceled,omitempty"`

	// PERFORMANCE: strings.Builder avoids quadratic allocations during streaming
	streamContent *strings.Builder
}

// NewUserMessage creates a complete user message.
func NewUserMessage(content string) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Role:      RoleUser,
		Timestamp: time.Now(),
		Content:   content,
		Status:    StatusComplete,
	}
}

// NewAssistantPlaceholder creates an empty streaming assistant message.
func NewAssistantPlaceholder() *Message {
	return &Message{
		ID:            uuid.New().String(),
		Role:          RoleAssistant,
		Timestamp:     time.Now(),
		Status:        StatusStreaming,
		streamContent: &strings.Builder{},
	}
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// IsStreaming reports whether the message still accepts tokens.
func (m *Message) IsStreaming() bool {
	return m.Status == StatusStreaming
}

// AppendToken appends a fragment to a streaming message. Complete messages
// ignore it.
func (m *Message) AppendToken(token string) {
	if !m.IsStreaming() {
		return
	}
	if m.streamContent == nil {
		m.streamContent = &strings.Builder{}
		m.streamContent.WriteString(m.Content)
	}
	m.streamContent.WriteString(token)
}

// FinalizeStream moves streamed content into Content and marks the message
// complete. Calling it again does nothing.
func (m *Message) FinalizeStream() {
	if !m.IsStreaming() {
		return
	}
	if m.streamContent != nil {
		m.Content = m.streamContent.String()
		m.streamContent = nil
	}
	m.Status = StatusComplete
}

// Cancel finalizes the message with the content received so far.
func (m *Message) Cancel() {
	if !m.IsStreaming() {
		return
	}
	m.FinalizeStream()
	m.Canceled = true
}

// Fail finalizes the message with the content received so far and flags it.
func (m *Message) Fail(reason string) {
	if !m.IsStreaming() {
		return
	}
	m.FinalizeStream()
	m.Failed = true
	m.ErrorText = reason
}

// DisplayContent returns the content to render, including tokens still
// streaming.
func (m *Message) DisplayContent() string {
	if m.IsStreaming() && m.streamContent != nil {
		return m.streamContent.String()
	}
	return m.Content
}

// Snapshot returns a value copy safe to hand to another goroutine.
func (m *Message) Snapshot() Message {
	out := *m
	out.Content = m.DisplayContent()
	out.streamContent = nil
	return out
}

// Preview returns the first line of the content, cut to maxLen runes.
func (m *Message) Preview(maxLen int) string {
	content := m.DisplayContent()
	if i := strings.IndexByte(content, '\n'); i >= 0 {
		content = content[:i]
	}
	runes := []rune(content)
	if maxLen > 3 && len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return content
}

// IsEmpty reports whether the message has no content.
func (m *Message) IsEmpty() bool {
	return strings.TrimSpace(m.DisplayContent()) == ""
}
