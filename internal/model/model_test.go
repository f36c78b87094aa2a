// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"testing"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestAssistantPlaceholderStreaming(t *testing.T) {
	msg := NewAssistantPlaceholder()
	if !msg.IsStreaming() {
		t.Fatal("Expected placeholder to be streaming")
	}

	msg.AppendToken("Hel")
	msg.AppendToken("lo")
	if msg.DisplayContent() != "Hello" {
		t.Errorf("Expected display content 'Hello', got %q", msg.DisplayContent())
	}
	if msg.Content != "" {
		t.Errorf("Expected Content to stay empty until finalized, got %q", msg.Content)
	}

	msg.FinalizeStream()
	if msg.Status != StatusComplete {
		t.Errorf("Expected status complete, got %s", msg.Status)
	}
	if msg.Content != "Hello" {
		t.Errorf("Expected content 'Hello', got %q", msg.Content)
	}
}

func TestCompleteMessageIsImmutable(t *testing.T) {
	msg := NewAssistantPlaceholder()
	msg.AppendToken("done")
	msg.FinalizeStream()

	msg.AppendToken(" more")
	msg.Fail("late error")

	if msg.Content != "done" {
		t.Errorf("Expected content 'done', got %q", msg.Content)
	}
	if msg.Failed {
		t.Error("Fail should not change a complete message")
	}
}

func TestFailKeepsPartialContent(t *testing.T) {
	msg := NewAssistantPlaceholder()
	msg.AppendToken("partial")
	msg.Fail("backend error")

	if msg.Content != "partial" || !msg.Failed || msg.ErrorText != "backend error" {
		t.Errorf("Unexpected failed message: %+v", msg.Snapshot())
	}
}

func TestCancelKeepsPartialContent(t *testing.T) {
	msg := NewAssistantPlaceholder()
	msg.AppendToken("half")
	msg.Cancel()

	if msg.Content != "half" || !msg.Canceled || msg.Status != StatusComplete {
		t.Errorf("Unexpected canceled message: %+v", msg.Snapshot())
	}
}

func TestPreview(t *testing.T) {
	msg := NewUserMessage("first line that is quite long\nsecond")
	if got := msg.Preview(10); got != "first l..." {
		t.Errorf("Expected 'first l...', got %q", got)
	}
	if got := msg.Preview(100); got != "first line that is quite long" {
		t.Errorf("Unexpected preview %q", got)
	}
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestConversationHistorySkipsPlaceholders(t *testing.T) {
	c := NewConversation()
	c.AddUserMessage("hi")
	a := c.AddAssistantPlaceholder()
	a.AppendToken("hello")
	a.FinalizeStream()
	c.AddUserMessage("again")
	c.AddAssistantPlaceholder()

	h := c.History()
	if len(h) != 3 {
		t.Fatalf("Expected 3 history entries, got %d", len(h))
	}
	if h[1].Role != RoleAssistant || h[1].Content != "hello" {
		t.Errorf("Unexpected entry %+v", h[1])
	}
}

func TestConversationSnapshotIsCopy(t *testing.T) {
	c := NewConversation()
	a := c.AddAssistantPlaceholder()
	a.AppendToken("x")

	snap := c.Snapshot()
	a.AppendToken("y")

	if snap[0].Content != "x" {
		t.Errorf("Snapshot changed after append: %q", snap[0].Content)
	}
	if c.Get(a.ID) != a {
		t.Error("Get should find the message by id")
	}
}

func TestConversationPrune(t *testing.T) {
	c := NewConversation()
	for i := 0; i < MaxMessages+5; i++ {
		c.AddUserMessage("m")
	}
	if c.Len() != MaxMessages {
		t.Errorf("Expected %d messages, got %d", MaxMessages, c.Len())
	}
}

func TestConversationClear(t *testing.T) {
	c := NewConversation()
	c.AddUserMessage("hi")
	c.Clear()
	if c.Len() != 0 || c.Last() != nil {
		t.Error("Expected empty conversation after Clear")
	}
}
