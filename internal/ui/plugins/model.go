// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package plugins provides the algorithm settings view of the TUI.
//
// The view lists every algorithm the backend reports, shows the selected
// one's settings with their pending state, and lets the user edit, nudge,
// toggle, and adopt proposals. Edits go through the dashboard; the view
// re-reads configs whenever the dashboard reports a change.
package plugins

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/aideck/internal/proposal"
	"github.com/jeranaias/aideck/internal/settings"
	"github.com/jeranaias/aideck/internal/ui/components"
	"github.com/jeranaias/aideck/internal/ui/styles"
)

// Backend is the settings side of the dashboard.
type Backend interface {
	Configs() []settings.AlgorithmConfig
	PendingEdits(algorithmID string) (map[string]settings.PendingEdit, error)
	SubmitEditText(ctx context.Context, algorithmID, name, text string) error
	NudgeSetting(ctx context.Context, algorithmID, name string, steps int) error
	ToggleSetting(ctx context.Context, algorithmID, name string) error
	FlushEdits(ctx context.Context, algorithmID string) error
	ProposalDiff(algorithmID string) ([]proposal.Change, error)
	AdoptProposal(ctx context.Context, algorithmID string) error
	Refresh(ctx context.Context) error
}

// =============================================================================
// MESSAGES
// =============================================================================

// ConfigMsg reports that an algorithm's config changed.
type ConfigMsg struct {
	Config settings.AlgorithmConfig
}

// WriteMsg reports a confirmed write.
type WriteMsg struct {
	Result settings.WriteResult
}

// PollMsg reports a poll outcome.
type PollMsg struct {
	N   int
	Err error
}

// actionMsg reports a backend call. success, when set, is shown on nil err.
type actionMsg struct {
	err     error
	success string
}

// diffMsg carries a proposal diff for review.
type diffMsg struct {
	algorithmID string
	changes     []proposal.Change
	err         error
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the plugins view.
type Model struct {
	ctx     context.Context
	backend Backend
	theme   *styles.Theme
	keys    KeyMap
	help    help.Model

	configs  []settings.AlgorithmConfig
	pending  map[string]settings.PendingEdit
	selected string // algorithm id
	row      int

	editing bool
	editor  textinput.Model

	diff     []proposal.Change
	diffFor  string
	showDiff bool

	lastPoll time.Time
	pollErr  error
	focused  bool

	width  int
	height int
}

// New creates a plugins view. ctx bounds every backend call it makes.
func New(ctx context.Context, backend Backend, theme *styles.Theme) Model {
	ti := textinput.New()
	ti.Prompt = "= "
	ti.CharLimit = 256

	return Model{
		ctx:     ctx,
		backend: backend,
		theme:   theme,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		editor:  ti,
		focused: true,
		width:   80,
		height:  24,
	}
}

// Init loads the current configs.
func (m Model) Init() tea.Cmd {
	return func() tea.Msg { return ConfigMsg{} }
}

// Focus gives the view keyboard focus.
func (m *Model) Focus() { m.focused = true }

// Blur releases keyboard focus.
func (m *Model) Blur() { m.focused = false }

// Editing reports whether the value editor has focus.
func (m Model) Editing() bool { return m.editing || m.showDiff }

// SetSize resizes the view.
func (m *Model) SetSize(width, height int) {
	m.width, m.height = width, height
	m.editor.Width = width / 3
}

// Selected returns the selected algorithm's config.
func (m Model) Selected() (settings.AlgorithmConfig, bool) {
	for _, c := range m.configs {
		if c.AlgorithmID == m.selected {
			return c, true
		}
	}
	return settings.AlgorithmConfig{}, false
}

func (m Model) selectedSetting() (settings.Setting, bool) {
	cfg, ok := m.Selected()
	if !ok || m.row < 0 || m.row >= len(cfg.Settings) {
		return settings.Setting{}, false
	}
	return cfg.Settings[m.row], true
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case ConfigMsg:
		m.reload()
		return m, nil

	case WriteMsg:
		m.reload()
		if msg.Result.Err != nil {
			return m, components.ShowError(msg.Result.Err)
		}
		return m, nil

	case PollMsg:
		if msg.Err == nil {
			m.lastPoll = time.Now()
		}
		m.pollErr = msg.Err
		return m, nil

	case actionMsg:
		m.reload()
		if msg.err != nil {
			return m, components.ShowError(msg.err)
		}
		if msg.success != "" {
			return m, components.ShowToast(components.ToastKindSuccess, msg.success)
		}
		return m, nil

	case diffMsg:
		if msg.err != nil {
			return m, components.ShowError(msg.err)
		}
		m.diff, m.diffFor, m.showDiff = msg.changes, msg.algorithmID, true
		return m, nil

	case tea.KeyMsg:
		if !m.focused {
			return m, nil
		}
		switch {
		case m.showDiff:
			return m.handleDiffKey(msg)
		case m.editing:
			return m.handleEditKey(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	cfg, ok := m.Selected()

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.row > 0 {
			m.row--
		}
	case key.Matches(msg, m.keys.Down):
		if ok && m.row < len(cfg.Settings)-1 {
			m.row++
		}
	case key.Matches(msg, m.keys.NextAlgo):
		m.moveAlgorithm(1)
	case key.Matches(msg, m.keys.PrevAlgo):
		m.moveAlgorithm(-1)

	case key.Matches(msg, m.keys.Refresh):
		return m, m.call(func(ctx context.Context, b Backend) error { return b.Refresh(ctx) }, "")

	case !ok:
		return m, nil

	case key.Matches(msg, m.keys.Toggle):
		cmd := m.toggleOrEdit(cfg, true)
		return m, cmd
	case key.Matches(msg, m.keys.Edit):
		cmd := m.toggleOrEdit(cfg, false)
		return m, cmd
	case key.Matches(msg, m.keys.Increase):
		return m, m.nudge(cfg, 1)
	case key.Matches(msg, m.keys.Decrease):
		return m, m.nudge(cfg, -1)
	case key.Matches(msg, m.keys.Flush):
		id := cfg.AlgorithmID
		return m, m.call(func(ctx context.Context, b Backend) error { return b.FlushEdits(ctx, id) }, "saved "+cfg.DisplayName())
	case key.Matches(msg, m.keys.Adopt):
		id := cfg.AlgorithmID
		b := m.backend
		return m, func() tea.Msg {
			changes, err := b.ProposalDiff(id)
			return diffMsg{algorithmID: id, changes: changes, err: err}
		}
	}
	return m, nil
}

// toggleOrEdit flips a boolean setting, or opens the editor for others.
// Space only toggles.
func (m *Model) toggleOrEdit(cfg settings.AlgorithmConfig, toggleOnly bool) tea.Cmd {
	s, ok := m.selectedSetting()
	if !ok {
		return nil
	}
	id, name := cfg.AlgorithmID, s.Name
	if s.Kind == settings.KindBool {
		return m.call(func(ctx context.Context, b Backend) error { return b.ToggleSetting(ctx, id, name) }, "")
	}
	if toggleOnly {
		return nil
	}
	m.editing = true
	m.editor.SetValue(settings.FormatValue(s.Value))
	m.editor.CursorEnd()
	return m.editor.Focus()
}

func (m Model) nudge(cfg settings.AlgorithmConfig, steps int) tea.Cmd {
	s, ok := m.selectedSetting()
	if !ok || !s.Kind.Numeric() {
		return nil
	}
	id, name := cfg.AlgorithmID, s.Name
	return m.call(func(ctx context.Context, b Backend) error { return b.NudgeSetting(ctx, id, name, steps) }, "")
}

func (m Model) handleEditKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.editing = false
		m.editor.Blur()
		return m, nil
	case tea.KeyEnter:
		m.editing = false
		m.editor.Blur()
		s, ok := m.selectedSetting()
		if !ok {
			return m, nil
		}
		id, name, text := m.selected, s.Name, m.editor.Value()
		return m, m.call(func(ctx context.Context, b Backend) error { return b.SubmitEditText(ctx, id, name, text) }, "")
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

func (m Model) handleDiffKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.showDiff = false
		id := m.diffFor
		return m, m.call(func(ctx context.Context, b Backend) error { return b.AdoptProposal(ctx, id) }, "proposal adopted")
	case key.Matches(msg, m.keys.Close):
		m.showDiff = false
	}
	return m, nil
}

// call runs fn off the update loop and reports through actionMsg.
func (m Model) call(fn func(context.Context, Backend) error, success string) tea.Cmd {
	ctx, b := m.ctx, m.backend
	return func() tea.Msg {
		return actionMsg{err: fn(ctx, b), success: success}
	}
}

func (m *Model) moveAlgorithm(delta int) {
	if len(m.configs) == 0 {
		return
	}
	idx := 0
	for i, c := range m.configs {
		if c.AlgorithmID == m.selected {
			idx = i
			break
		}
	}
	idx = (idx + delta + len(m.configs)) % len(m.configs)
	m.selected = m.configs[idx].AlgorithmID
	m.row = 0
	m.loadPending()
}

// reload re-reads configs, keeping the selection by id.
func (m *Model) reload() {
	m.configs = m.backend.Configs()

	if _, ok := m.Selected(); !ok {
		m.selected, m.row = "", 0
		if len(m.configs) > 0 {
			m.selected = m.configs[0].AlgorithmID
		}
	}
	if cfg, ok := m.Selected(); ok && m.row >= len(cfg.Settings) {
		m.row = max(0, len(cfg.Settings)-1)
	}
	m.loadPending()
}

func (m *Model) loadPending() {
	m.pending = nil
	if m.selected == "" {
		return
	}
	if p, err := m.backend.PendingEdits(m.selected); err == nil {
		m.pending = p
	}
}
