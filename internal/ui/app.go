// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/aideck/internal/telemetry"
	"github.com/jeranaias/aideck/internal/ui/chat"
	"github.com/jeranaias/aideck/internal/ui/components"
	"github.com/jeranaias/aideck/internal/ui/plugins"
	"github.com/jeranaias/aideck/internal/ui/styles"
)

// Backend is everything the dashboard UI needs. *dashboard.Dashboard
// satisfies it.
type Backend interface {
	plugins.Backend
	chat.Backend
	StartPolling() error
	StopPolling() error
	Stats() telemetry.SessionStats
}

// View identifies a top-level view.
type View int

const (
	ViewPlugins View = iota
	ViewChat
)

func (v View) String() string {
	if v == ViewChat {
		return "Assistant"
	}
	return "Plugins"
}

// Options configures the root model.
type Options struct {
	Theme     *styles.Theme
	Markdown  bool
	StartView View
}

// keyMap holds the global bindings.
type keyMap struct {
	Switch  key.Binding
	Quit    key.Binding
	QuitAlt key.Binding
	Dismiss key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Switch:  key.NewBinding(key.WithKeys("ctrl+t", "f2"), key.WithHelp("C-t", "switch view")),
		Quit:    key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("C-c", "quit")),
		QuitAlt: key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		Dismiss: key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("C-x", "dismiss toast")),
	}
}

// pollingMsg reports a polling start or stop.
type pollingMsg struct {
	err error
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the root of the program.
type Model struct {
	backend Backend
	theme   *styles.Theme
	keys    keyMap

	plugins plugins.Model
	chat    chat.Model
	view    View

	toasts      *components.ToastManager
	toastTicker bool

	stats  telemetry.SessionStats
	width  int
	height int
}

// New creates the root model.
func New(ctx context.Context, backend Backend, opts Options) Model {
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme()
	}
	m := Model{
		backend: backend,
		theme:   opts.Theme,
		keys:    defaultKeyMap(),
		plugins: plugins.New(ctx, backend, opts.Theme),
		chat:    chat.New(backend, opts.Theme, opts.Markdown),
		view:    opts.StartView,
		toasts:  components.NewToastManager(),
		width:   80,
		height:  24,
	}
	m.applyFocus()
	return m
}

// Init loads both views and starts polling when plugins is shown.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.plugins.Init(), m.chat.Init()}
	if m.view == ViewPlugins {
		cmds = append(cmds, m.setPolling(true))
	}
	return tea.Batch(cmds...)
}

// ActiveView returns the view shown.
func (m Model) ActiveView() View { return m.view }

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		bodyHeight := msg.Height - 2
		m.plugins.SetSize(msg.Width, bodyHeight)
		m.chat.SetSize(msg.Width, bodyHeight)
		return m, nil

	case components.ToastMsg:
		m.toasts.Add(msg.Toast)
		if m.toastTicker {
			return m, nil
		}
		m.toastTicker = true
		return m, components.ToastTickCmd()

	case components.ToastTickMsg:
		if len(m.toasts.Tick(msg.Time)) == 0 {
			m.toastTicker = false
			return m, nil
		}
		return m, components.ToastTickCmd()

	case pollingMsg:
		return m, components.ShowError(msg.err)

	case plugins.WriteMsg, plugins.PollMsg:
		m.stats = m.backend.Stats()

	case chat.EventMsg:
		m.stats = m.backend.Stats()
		var cmd tea.Cmd
		m.chat, cmd = m.chat.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var pcmd, ccmd tea.Cmd
	m.plugins, pcmd = m.plugins.Update(msg)
	m.chat, ccmd = m.chat.Update(msg)
	return m, tea.Batch(pcmd, ccmd)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Switch):
		return m.switchView()
	case key.Matches(msg, m.keys.Dismiss):
		m.toasts.DismissNewest()
		return m, nil
	case key.Matches(msg, m.keys.QuitAlt) && m.view == ViewPlugins && !m.plugins.Editing():
		return m, tea.Quit
	}

	var cmd tea.Cmd
	if m.view == ViewChat {
		m.chat, cmd = m.chat.Update(msg)
	} else {
		m.plugins, cmd = m.plugins.Update(msg)
	}
	return m, cmd
}

// switchView flips views. Polling only runs while plugins is shown.
func (m Model) switchView() (tea.Model, tea.Cmd) {
	if m.view == ViewPlugins {
		m.view = ViewChat
	} else {
		m.view = ViewPlugins
	}
	m.applyFocus()
	return m, m.setPolling(m.view == ViewPlugins)
}

func (m *Model) applyFocus() {
	if m.view == ViewChat {
		m.plugins.Blur()
		m.chat.Focus()
		return
	}
	m.chat.Blur()
	m.plugins.Focus()
}

func (m Model) setPolling(on bool) tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		if on {
			return pollingMsg{err: b.StartPolling()}
		}
		return pollingMsg{err: b.StopPolling()}
	}
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the header, the active view, toasts and the status bar.
func (m Model) View() string {
	var body string
	if m.view == ViewChat {
		body = m.chat.View()
	} else {
		body = m.plugins.View()
	}

	parts := []string{m.header(), body}
	if toasts := m.toasts.Toasts(); len(toasts) > 0 {
		stack := components.RenderToastStack(toasts, m.width, time.Now())
		parts = append(parts, lipgloss.PlaceHorizontal(m.width, lipgloss.Right, stack))
	}
	parts = append(parts, m.statusBar())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) header() string {
	tabs := make([]string, 0, 2)
	for _, v := range []View{ViewPlugins, ViewChat} {
		if v == m.view {
			tabs = append(tabs, m.theme.TabActive.Render(v.String()))
		} else {
			tabs = append(tabs, m.theme.Tab.Render(v.String()))
		}
	}
	title := m.theme.HeaderTitle.Render("aideck")
	return m.theme.Header.Width(m.width).Render(lipgloss.JoinHorizontal(lipgloss.Center, append([]string{title, "  "}, tabs...)...))
}

func (m Model) statusBar() string {
	s := m.stats
	turns := 0
	for _, n := range s.ChatTurns {
		turns += n
	}

	writes := m.theme.StatusOK.Render(fmt.Sprintf("%d saved", s.WritesOK))
	if s.WritesFailed > 0 {
		writes += " " + m.theme.StatusError.Render(fmt.Sprintf("%d failed", s.WritesFailed))
	}
	text := fmt.Sprintf("%s | polls %d | chat turns %d | ", writes, s.Polls, turns) +
		m.theme.ShortcutKey.Render("C-t") + m.theme.ShortcutDesc.Render(" switch  ") +
		m.theme.ShortcutKey.Render("C-c") + m.theme.ShortcutDesc.Render(" quit")
	return m.theme.StatusBar.Width(m.width).Render(text)
}

// =============================================================================
// RUN
// =============================================================================

// Run starts the dashboard UI and blocks until the user quits or ctx ends.
// The bridge is attached for the lifetime of the program.
func Run(ctx context.Context, backend Backend, bridge *Bridge, opts Options) error {
	p := tea.NewProgram(New(ctx, backend, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	bridge.Attach(p)
	defer bridge.Detach()

	_, err := p.Run()
	return err
}
