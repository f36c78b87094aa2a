// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds every styled element of the dashboard.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// HEADER AND TABS
	// ==========================================================================

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	Tab         lipgloss.Style
	TabActive   lipgloss.Style

	// ==========================================================================
	// PLUGIN LIST AND SETTINGS PANEL
	// ==========================================================================

	ListPanel        lipgloss.Style
	ListItem         lipgloss.Style
	ListItemSelected lipgloss.Style
	DetailPanel      lipgloss.Style
	AlgorithmName    lipgloss.Style
	Description      lipgloss.Style
	SettingName      lipgloss.Style
	SettingValue     lipgloss.Style
	SettingRow       lipgloss.Style
	SettingSelected  lipgloss.Style
	PendingMark      lipgloss.Style
	SliderFilled     lipgloss.Style
	SliderEmpty      lipgloss.Style
	ProposalHint     lipgloss.Style
	LogBox           lipgloss.Style

	// ==========================================================================
	// PROPOSAL DIFF
	// ==========================================================================

	DiffBox   lipgloss.Style
	DiffTitle lipgloss.Style
	DiffOld   lipgloss.Style
	DiffNew   lipgloss.Style

	// ==========================================================================
	// CHAT
	// ==========================================================================

	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	RoleLabel       lipgloss.Style
	FailedNote      lipgloss.Style
	CanceledNote    lipgloss.Style
	InputContainer  lipgloss.Style
	Spinner         lipgloss.Style
	ThinkingText    lipgloss.Style

	// ==========================================================================
	// STATUS BAR
	// ==========================================================================

	StatusBar    lipgloss.Style
	StatusOK     lipgloss.Style
	StatusError  lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style
}

// NewTheme detects the terminal background and builds a theme.
func NewTheme() *Theme {
	return NewThemeFor("auto")
}

// NewThemeFor builds a theme for "dark", "light", or "auto" (detect).
func NewThemeFor(mode string) *Theme {
	colorProfile := termenv.ColorProfile()

	isDark := true
	switch strings.ToLower(mode) {
	case "light":
		isDark = false
	case "auto", "":
		isDark = termenv.HasDarkBackground()
	}
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{
		IsDark:       isDark,
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}
	t.initStyles()
	return t
}

// GlamourStyle returns the markdown style name matching the background.
func (t *Theme) GlamourStyle() string {
	if t.ColorProfile == termenv.Ascii {
		return "notty"
	}
	if t.IsDark {
		return "dark"
	}
	return "light"
}

func (t *Theme) initStyles() {
	// Header
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.Tab = lipgloss.NewStyle().
		Foreground(TextMuted).
		Padding(0, 1)

	t.TabActive = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Cyan).
		Bold(true).
		Padding(0, 1)

	// Plugin list
	t.ListPanel = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.ListItem = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.ListItemSelected = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	// Settings panel
	t.DetailPanel = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(0, 1)

	t.AlgorithmName = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.Description = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	t.SettingName = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.SettingValue = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.SettingRow = lipgloss.NewStyle()

	t.SettingSelected = lipgloss.NewStyle().
		Background(SelectionBg)

	t.PendingMark = lipgloss.NewStyle().
		Foreground(Amber)

	t.SliderFilled = lipgloss.NewStyle().
		Foreground(Cyan)

	t.SliderEmpty = lipgloss.NewStyle().
		Foreground(OverlayDim)

	t.ProposalHint = lipgloss.NewStyle().
		Foreground(Amber).
		Italic(true)

	t.LogBox = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(Overlay).
		BorderLeft(true).
		PaddingLeft(1)

	// Proposal diff
	t.DiffBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(Amber).
		Padding(0, 2)

	t.DiffTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Amber)

	t.DiffOld = lipgloss.NewStyle().
		Foreground(Rose).
		Strikethrough(true)

	t.DiffNew = lipgloss.NewStyle().
		Foreground(Emerald).
		Bold(true)

	// Chat
	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(UserBubbleBorder).
		Padding(0, 1).
		MarginLeft(4)

	t.AssistantBubble = lipgloss.NewStyle().
		Foreground(AssistantBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(AssistantBubbleBorder).
		Padding(0, 1).
		MarginRight(4)

	t.RoleLabel = lipgloss.NewStyle().
		Foreground(TextMuted).
		Bold(true)

	t.FailedNote = lipgloss.NewStyle().
		Foreground(Rose).
		Italic(true)

	t.CanceledNote = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay)

	t.Spinner = lipgloss.NewStyle().
		Foreground(Purple)

	t.ThinkingText = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.StatusOK = lipgloss.NewStyle().
		Foreground(Emerald)

	t.StatusError = lipgloss.NewStyle().
		Foreground(Rose)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)
}
