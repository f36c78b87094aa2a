// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/aideck/internal/chatsession"
	"github.com/jeranaias/aideck/internal/dashboard"
	"github.com/jeranaias/aideck/internal/model"
	"github.com/jeranaias/aideck/internal/stream"
	"github.com/jeranaias/aideck/internal/ui/components"
	"github.com/jeranaias/aideck/internal/ui/styles"
)

type fakeBackend struct {
	mu        sync.Mutex
	submitted []string
	cancels   int
	resets    int
	state     chatsession.State
	err       error
	messages  []model.Message
}

func (f *fakeBackend) SubmitChatTurn(text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, text)
	return "req-1", nil
}

func (f *fakeBackend) CancelChatTurn() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	if !f.state.Active() {
		return dashboard.ErrNoActiveTurn
	}
	return nil
}

func (f *fakeBackend) ResetChat() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	f.messages = nil
	return nil
}

func (f *fakeBackend) ChatState() (chatsession.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, f.err
}

func (f *fakeBackend) Messages() []model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Message, len(f.messages))
	copy(out, f.messages)
	return out
}

func newTestModel(b *fakeBackend) Model {
	m := New(b, styles.NewThemeFor("dark"), false)
	m.SetSize(80, 30)
	return m
}

func TestSubmitRunsInCommand(t *testing.T) {
	b := &fakeBackend{}
	m := newTestModel(b)
	m.input.SetValue("  what does this node do?  ")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("enter should return a command")
	}
	if len(b.submitted) != 0 {
		t.Fatal("backend must not be called from Update")
	}
	if m.input.Value() != "" {
		t.Errorf("input should be cleared, got %q", m.input.Value())
	}

	msg := cmd()
	if am, ok := msg.(actionMsg); !ok || am.err != nil {
		t.Fatalf("cmd() = %#v, want successful actionMsg", msg)
	}
	if len(b.submitted) != 1 || b.submitted[0] != "what does this node do?" {
		t.Errorf("submitted = %q", b.submitted)
	}
}

func TestEmptySubmitIgnored(t *testing.T) {
	b := &fakeBackend{}
	m := newTestModel(b)
	m.input.SetValue("   ")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Error("blank input should not submit")
	}
}

func TestFragmentsAreCoalesced(t *testing.T) {
	b := &fakeBackend{state: chatsession.StateStreaming}
	b.messages = []model.Message{
		{Role: model.RoleUser, Content: "hi", Status: model.StatusComplete},
		{Role: model.RoleAssistant, Content: "Hel", Status: model.StatusStreaming},
	}
	m := newTestModel(b)

	m, cmd := m.Update(EventMsg{Event: chatsession.Event{Kind: chatsession.EventFragment, Fragment: "Hel"}})
	if cmd == nil || !m.ticking || !m.dirty {
		t.Fatal("first fragment should start the render tick")
	}

	b.messages[1].Content = "Hello"
	m, cmd = m.Update(EventMsg{Event: chatsession.Event{Kind: chatsession.EventFragment, Fragment: "lo"}})
	if cmd != nil {
		t.Error("second fragment should not start another tick")
	}

	m, _ = m.Update(renderTickMsg{})
	if m.dirty {
		t.Error("tick should paint pending fragments")
	}
	if !strings.Contains(m.viewport.View(), "Hello") {
		t.Errorf("viewport missing streamed text:\n%s", m.viewport.View())
	}
}

func TestTickStopsWhenIdle(t *testing.T) {
	b := &fakeBackend{state: chatsession.StateIdle}
	m := newTestModel(b)
	m.ticking = true

	m, cmd := m.Update(renderTickMsg{})
	if cmd != nil || m.ticking {
		t.Error("tick should stop once the turn is over")
	}
}

func TestFailedEventShowsToast(t *testing.T) {
	b := &fakeBackend{state: chatsession.StateError}
	m := newTestModel(b)

	_, cmd := m.Update(EventMsg{Event: chatsession.Event{
		Kind: chatsession.EventFailed,
		Err:  &stream.Error{Reason: "model crashed"},
	}})
	if cmd == nil {
		t.Fatal("failure should produce a toast command")
	}
	tm, ok := cmd().(components.ToastMsg)
	if !ok {
		t.Fatalf("expected ToastMsg")
	}
	if tm.Toast.Kind != components.ToastKindError {
		t.Errorf("kind = %v, want error", tm.Toast.Kind)
	}
}

func TestCancelOnlyWhileStreaming(t *testing.T) {
	b := &fakeBackend{}
	m := newTestModel(b)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd != nil {
		t.Error("esc while idle should do nothing")
	}

	b.state = chatsession.StateStreaming
	m, _ = m.Update(EventMsg{Event: chatsession.Event{Kind: chatsession.EventSubmitted}})
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatal("esc while streaming should cancel")
	}
	cmd()
	if b.cancels != 1 {
		t.Errorf("cancels = %d, want 1", b.cancels)
	}
}

func TestRenderFailedAndCanceled(t *testing.T) {
	b := &fakeBackend{}
	b.messages = []model.Message{
		{Role: model.RoleUser, Content: "first", Status: model.StatusComplete},
		{Role: model.RoleAssistant, Content: "partial", Status: model.StatusComplete, Failed: true, ErrorText: "boom"},
		{Role: model.RoleUser, Content: "second", Status: model.StatusComplete},
		{Role: model.RoleAssistant, Content: "cut", Status: model.StatusComplete, Canceled: true},
	}
	m := newTestModel(b)
	m.SetSize(80, 60)
	m, _ = m.Update(EventMsg{Event: chatsession.Event{Kind: chatsession.EventDone}})

	out := m.renderMessages()
	for _, want := range []string{"first", "partial", "reply failed: boom", "(stopped)"} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q", want)
		}
	}
}

func TestBlurIgnoresKeys(t *testing.T) {
	b := &fakeBackend{}
	m := newTestModel(b)
	m.Blur()
	m.input.SetValue("hello")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Error("blurred view should ignore keys")
	}
}
