// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/aideck/internal/chatsession"
	"github.com/jeranaias/aideck/internal/model"
	"github.com/jeranaias/aideck/internal/ui/components"
	"github.com/jeranaias/aideck/internal/ui/styles"
)

// Backend is the chat side of the dashboard.
type Backend interface {
	SubmitChatTurn(text string) (string, error)
	CancelChatTurn() error
	ResetChat() error
	ChatState() (chatsession.State, error)
	Messages() []model.Message
}

// =============================================================================
// MESSAGES
// =============================================================================

// EventMsg carries a session event into the program.
type EventMsg struct {
	Event chatsession.Event
}

// actionMsg reports the outcome of a backend call.
type actionMsg struct {
	err error
}

// renderTickMsg paints coalesced fragments.
type renderTickMsg struct{}

// renderInterval caps streaming repaints at ~30fps.
const renderInterval = 33 * time.Millisecond

func renderTick() tea.Cmd {
	return tea.Tick(renderInterval, func(time.Time) tea.Msg { return renderTickMsg{} })
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the chat view.
type Model struct {
	backend Backend
	theme   *styles.Theme
	keys    KeyMap
	help    help.Model
	md      *components.Markdown

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model

	messages []model.Message
	state    chatsession.State
	lastErr  error

	// dirty is set when fragments arrived since the last paint.
	dirty   bool
	ticking bool
	focused bool

	width  int
	height int
}

// New creates a chat view. markdown enables rendering of finished replies.
func New(backend Backend, theme *styles.Theme, markdown bool) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask about this workflow..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 8192
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = theme.Spinner

	vp := viewport.New(80, 20)

	return Model{
		backend:  backend,
		theme:    theme,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		md:       components.NewMarkdown(theme.GlamourStyle(), markdown),
		viewport: vp,
		input:    ta,
		spinner:  sp,
		focused:  true,
		width:    80,
		height:   24,
	}
}

// Init loads the current conversation.
func (m Model) Init() tea.Cmd {
	return func() tea.Msg { return EventMsg{Event: chatsession.Event{Kind: chatsession.EventReset}} }
}

// Focus gives the input keyboard focus.
func (m *Model) Focus() {
	m.focused = true
	m.input.Focus()
}

// Blur releases keyboard focus.
func (m *Model) Blur() {
	m.focused = false
	m.input.Blur()
}

// Streaming reports whether a reply is in flight.
func (m Model) Streaming() bool {
	return m.state.Active()
}

// SetSize resizes the view.
func (m *Model) SetSize(width, height int) {
	m.width, m.height = width, height
	m.input.SetWidth(width - 2)

	vpHeight := height - m.input.Height() - 4
	if vpHeight < 3 {
		vpHeight = 3
	}
	m.viewport.Width = width
	m.viewport.Height = vpHeight
	m.render()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case EventMsg:
		return m.handleEvent(msg.Event)

	case renderTickMsg:
		if m.dirty {
			m.dirty = false
			m.render()
		}
		if m.state.Active() {
			return m, renderTick()
		}
		m.ticking = false
		return m, nil

	case spinner.TickMsg:
		if !m.state.Active() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case actionMsg:
		return m, components.ShowError(msg.err)

	case tea.KeyMsg:
		if !m.focused {
			return m, nil
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Submit):
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.input.Reset()
		return m, m.call(func(b Backend) error {
			_, err := b.SubmitChatTurn(text)
			return err
		})

	case key.Matches(msg, m.keys.Cancel):
		if !m.state.Active() {
			return m, nil
		}
		return m, m.call(Backend.CancelChatTurn)

	case key.Matches(msg, m.keys.Reset):
		return m, m.call(Backend.ResetChat)

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// call runs fn off the update loop.
func (m Model) call(fn func(Backend) error) tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		return actionMsg{err: fn(b)}
	}
}

func (m Model) handleEvent(ev chatsession.Event) (Model, tea.Cmd) {
	m.refresh()

	if ev.Kind == chatsession.EventFragment {
		m.dirty = true
		if m.ticking {
			return m, nil
		}
		m.ticking = true
		return m, renderTick()
	}

	m.dirty = false
	m.render()

	switch ev.Kind {
	case chatsession.EventSubmitted:
		return m, m.spinner.Tick
	case chatsession.EventFailed:
		return m, components.ShowError(ev.Err)
	}
	return m, nil
}

func (m *Model) refresh() {
	m.messages = m.backend.Messages()
	m.state, m.lastErr = m.backend.ChatState()
}
