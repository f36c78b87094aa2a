// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/aideck/internal/chatsession"
	"github.com/jeranaias/aideck/internal/model"
	"github.com/jeranaias/aideck/internal/proposal"
	"github.com/jeranaias/aideck/internal/settings"
	"github.com/jeranaias/aideck/internal/telemetry"
	"github.com/jeranaias/aideck/internal/ui/chat"
	"github.com/jeranaias/aideck/internal/ui/components"
	"github.com/jeranaias/aideck/internal/ui/plugins"
	"github.com/jeranaias/aideck/internal/ui/styles"
)

type fakeBackend struct {
	mu      sync.Mutex
	polling bool
	starts  int
	stops   int
	stats   telemetry.SessionStats
}

func (f *fakeBackend) Configs() []settings.AlgorithmConfig {
	return []settings.AlgorithmConfig{{
		AlgorithmID: "corr",
		Algorithm:   settings.Metadata{Name: "Correlation"},
		Settings:    []settings.Setting{{Name: "Enabled", Kind: settings.KindBool, Value: true}},
	}}
}
func (f *fakeBackend) PendingEdits(string) (map[string]settings.PendingEdit, error) { return nil, nil }
func (f *fakeBackend) SubmitEditText(context.Context, string, string, string) error { return nil }
func (f *fakeBackend) NudgeSetting(context.Context, string, string, int) error      { return nil }
func (f *fakeBackend) ToggleSetting(context.Context, string, string) error          { return nil }
func (f *fakeBackend) FlushEdits(context.Context, string) error                     { return nil }
func (f *fakeBackend) ProposalDiff(string) ([]proposal.Change, error)               { return nil, proposal.ErrNoProposal }
func (f *fakeBackend) AdoptProposal(context.Context, string) error                  { return nil }
func (f *fakeBackend) Refresh(context.Context) error                                { return nil }
func (f *fakeBackend) SubmitChatTurn(string) (string, error)                        { return "id", nil }
func (f *fakeBackend) CancelChatTurn() error                                        { return nil }
func (f *fakeBackend) ResetChat() error                                             { return nil }
func (f *fakeBackend) ChatState() (chatsession.State, error)                        { return chatsession.StateIdle, nil }
func (f *fakeBackend) Messages() []model.Message                                    { return nil }

func (f *fakeBackend) StartPolling() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polling = true
	f.starts++
	return nil
}

func (f *fakeBackend) StopPolling() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polling = false
	f.stops++
	return nil
}

func (f *fakeBackend) Stats() telemetry.SessionStats { return f.stats }

func newTestModel(b *fakeBackend) Model {
	m := New(context.Background(), b, Options{Theme: styles.NewThemeFor("dark")})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model)
}

// drain runs cmd and every command it batches, returning the messages.
func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, drain(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func TestSwitchViewTogglesPolling(t *testing.T) {
	b := &fakeBackend{}
	m := newTestModel(b)
	if m.ActiveView() != ViewPlugins {
		t.Fatal("should start on plugins")
	}

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	m = next.(Model)
	if m.ActiveView() != ViewChat {
		t.Fatal("ctrl+t should switch to chat")
	}
	cmd()
	if b.stops != 1 || b.polling {
		t.Error("leaving plugins should stop polling")
	}

	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	m = next.(Model)
	cmd()
	if m.ActiveView() != ViewPlugins || !b.polling {
		t.Error("returning to plugins should restart polling")
	}
}

func TestInitStartsPolling(t *testing.T) {
	b := &fakeBackend{}
	m := newTestModel(b)
	drain(m.Init())
	if b.starts != 1 {
		t.Errorf("starts = %d, want 1", b.starts)
	}
}

func TestQuitKeys(t *testing.T) {
	m := newTestModel(&fakeBackend{})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q on plugins should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected QuitMsg")
	}

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	m = next.(Model)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if next.(Model).ActiveView() != ViewChat {
		t.Error("q in chat must stay in chat")
	}

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c should quit from any view")
	}
}

func TestToastLifecycle(t *testing.T) {
	m := newTestModel(&fakeBackend{})

	next, cmd := m.Update(components.ToastMsg{Toast: components.NewToast(components.ToastKindError, "write failed")})
	m = next.(Model)
	if cmd == nil {
		t.Fatal("first toast should start the ticker")
	}
	if !strings.Contains(m.View(), "write failed") {
		t.Error("toast should render")
	}

	_, cmd = m.Update(components.ToastMsg{Toast: components.NewToast(components.ToastKindStatus, "second")})
	if cmd != nil {
		t.Error("ticker already running")
	}

	next, cmd = m.Update(components.ToastTickMsg{Time: time.Now().Add(time.Minute)})
	m = next.(Model)
	if cmd != nil || m.toastTicker {
		t.Error("ticker should stop once every toast expired")
	}
}

func TestDismissToast(t *testing.T) {
	m := newTestModel(&fakeBackend{})
	next, _ := m.Update(components.ToastMsg{Toast: components.NewToast(components.ToastKindStatus, "hello")})
	m = next.(Model)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlX})
	m = next.(Model)
	if len(m.toasts.Toasts()) != 0 {
		t.Error("ctrl+x should dismiss the newest toast")
	}
}

func TestStatusBarStats(t *testing.T) {
	b := &fakeBackend{stats: telemetry.SessionStats{WritesOK: 3, WritesFailed: 1, Polls: 7, ChatTurns: map[string]int{"done": 2}}}
	m := newTestModel(b)

	next, _ := m.Update(plugins.PollMsg{N: 1})
	m = next.(Model)
	out := m.View()
	for _, want := range []string{"3 saved", "1 failed", "polls 7", "chat turns 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("status bar missing %q", want)
		}
	}
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (r *recordingSender) Send(msg tea.Msg) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func TestBridge(t *testing.T) {
	b := NewBridge()
	b.OnPoll(1, nil) // dropped: nothing attached

	s := &recordingSender{}
	b.Attach(s)
	b.OnConfig(settings.AlgorithmConfig{AlgorithmID: "corr"})
	b.OnWrite(settings.WriteResult{AlgorithmID: "corr"})
	b.OnPoll(2, nil)
	b.OnChat(chatsession.Event{Kind: chatsession.EventDone})
	b.Detach()
	b.OnPoll(3, nil)

	if len(s.msgs) != 4 {
		t.Fatalf("got %d messages, want 4", len(s.msgs))
	}
	if _, ok := s.msgs[0].(plugins.ConfigMsg); !ok {
		t.Errorf("msgs[0] = %T", s.msgs[0])
	}
	if _, ok := s.msgs[3].(chat.EventMsg); !ok {
		t.Errorf("msgs[3] = %T", s.msgs[3])
	}
}
