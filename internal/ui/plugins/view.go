// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package plugins

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/aideck/internal/proposal"
	"github.com/jeranaias/aideck/internal/settings"
	"github.com/jeranaias/aideck/internal/ui/components"
	"github.com/jeranaias/aideck/internal/ui/styles"
)

const (
	listWidth   = 26
	nameWidth   = 26
	sliderWidth = 20
)

// View renders the plugin list beside the selected algorithm.
func (m Model) View() string {
	if len(m.configs) == 0 {
		return m.theme.Description.Render("No algorithms reported by the backend yet.") + "\n" + m.footer()
	}

	detailWidth := m.width - listWidth - 6
	if detailWidth < 30 {
		detailWidth = 30
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.theme.ListPanel.Width(listWidth).Render(m.renderList()),
		m.theme.DetailPanel.Width(detailWidth).Render(m.renderDetail(detailWidth-2)),
	)
	if m.showDiff {
		body = lipgloss.JoinVertical(lipgloss.Left, body, m.renderDiff())
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, m.footer())
}

func (m Model) renderList() string {
	lines := make([]string, 0, len(m.configs))
	for _, c := range m.configs {
		name := components.Truncate(c.DisplayName(), listWidth-4)
		if proposal.HasProposal(c) {
			name += " " + m.theme.PendingMark.Render("*")
		}
		if c.AlgorithmID == m.selected {
			lines = append(lines, m.theme.ListItemSelected.Render("> "+name))
			continue
		}
		lines = append(lines, m.theme.ListItem.Render("  "+name))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderDetail(width int) string {
	cfg, ok := m.Selected()
	if !ok {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.theme.AlgorithmName.Render(cfg.DisplayName()))
	b.WriteString("\n")
	if cfg.Algorithm.Description != "" {
		b.WriteString(m.theme.Description.Render(components.Wrap(cfg.Algorithm.Description, width)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	for i, s := range cfg.Settings {
		b.WriteString(m.renderSetting(s, i == m.row))
		b.WriteString("\n")
	}

	if m.editing {
		b.WriteString("\n" + m.editor.View() + "\n")
	}

	if proposal.HasProposal(cfg) {
		n := len(proposal.Diff(cfg))
		b.WriteString("\n" + m.theme.ProposalHint.Render(fmt.Sprintf("The algorithm proposes %d change(s). Press a to review.", n)) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(m.theme.LogBox.Width(width - 2).Render(components.Wrap(cfg.Log(), width-4)))
	return b.String()
}

func (m Model) renderSetting(s settings.Setting, selected bool) string {
	marker := "  "
	if selected {
		marker = "> "
	}

	line := marker + m.theme.SettingName.Render(components.PadRight(s.Name, nameWidth)) + " " +
		m.theme.SettingValue.Render(renderValue(s))
	if s.Kind.Numeric() {
		if bar := m.slider(s); bar != "" {
			line += "  " + bar
		}
	}
	if _, ok := m.pending[s.Name]; ok {
		line += "  " + m.theme.PendingMark.Render(styles.StatusIndicators.Pending+" saving")
	}

	if selected {
		return m.theme.SettingSelected.Render(line)
	}
	return m.theme.SettingRow.Render(line)
}

func renderValue(s settings.Setting) string {
	if s.Kind == settings.KindBool {
		if b, _ := s.Value.(bool); b {
			return "[on] "
		}
		return "[off]"
	}
	return settings.FormatValue(s.Value)
}

// slider draws the value's position within its bounds. Settings without
// both bounds get no slider.
func (m Model) slider(s settings.Setting) string {
	lo, hi, ok := s.Bounds()
	if !ok || math.IsInf(lo, 0) || math.IsInf(hi, 0) || hi <= lo {
		return ""
	}
	var v float64
	switch x := s.Value.(type) {
	case int64:
		v = float64(x)
	case float64:
		v = x
	default:
		return ""
	}

	filled := int(math.Round((v - lo) / (hi - lo) * sliderWidth))
	filled = min(max(filled, 0), sliderWidth)
	return m.theme.SliderFilled.Render(strings.Repeat("=", filled)) +
		m.theme.SliderEmpty.Render(strings.Repeat("-", sliderWidth-filled))
}

func (m Model) renderDiff() string {
	var b strings.Builder
	b.WriteString(m.theme.DiffTitle.Render("Proposed changes"))
	b.WriteString("\n\n")
	if len(m.diff) == 0 {
		b.WriteString(m.theme.Description.Render("No differences."))
	}
	for _, c := range m.diff {
		old := "(new)"
		if !c.Added {
			old = settings.FormatValue(c.Old)
		}
		b.WriteString(fmt.Sprintf("%s  %s -> %s\n",
			components.PadRight(c.Name, nameWidth),
			m.theme.DiffOld.Render(old),
			m.theme.DiffNew.Render(settings.FormatValue(c.New)),
		))
	}
	b.WriteString("\n" + m.theme.ShortcutKey.Render("y") + m.theme.ShortcutDesc.Render(" adopt  ") +
		m.theme.ShortcutKey.Render("n") + m.theme.ShortcutDesc.Render(" keep current"))
	return m.theme.DiffBox.Render(b.String())
}

func (m Model) footer() string {
	var status string
	switch {
	case m.pollErr != nil:
		status = m.theme.StatusError.Render("backend unreachable, retrying")
	case !m.lastPoll.IsZero():
		status = m.theme.StatusOK.Render("synced " + m.lastPoll.Format(time.Kitchen))
	}
	return lipgloss.JoinVertical(lipgloss.Left, status, m.help.View(m.keys))
}
