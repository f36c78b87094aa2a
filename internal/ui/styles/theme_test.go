// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestNewThemeFor(t *testing.T) {
	dark := NewThemeFor("dark")
	if !dark.IsDark {
		t.Error("dark theme should report IsDark")
	}

	light := NewThemeFor("light")
	if light.IsDark {
		t.Error("light theme should not report IsDark")
	}
}

func TestThemeStylesInitialized(t *testing.T) {
	theme := NewThemeFor("dark")

	styles := []struct {
		name  string
		style lipgloss.Style
	}{
		{"Header", theme.Header},
		{"DetailPanel", theme.DetailPanel},
		{"SettingSelected", theme.SettingSelected},
		{"DiffBox", theme.DiffBox},
		{"UserBubble", theme.UserBubble},
		{"AssistantBubble", theme.AssistantBubble},
		{"StatusBar", theme.StatusBar},
	}

	for _, s := range styles {
		if s.style.Render("test") == "" {
			t.Errorf("%s style should render", s.name)
		}
	}
}

func TestGlamourStyle(t *testing.T) {
	theme := NewThemeFor("light")
	got := theme.GlamourStyle()
	if got != "light" && got != "notty" {
		t.Errorf("GlamourStyle() = %q, want light or notty", got)
	}
}

func TestRenderStatusIndicators(t *testing.T) {
	if !strings.Contains(RenderStatus(true, "saved"), StatusIndicators.Success) {
		t.Error("success status should carry the success indicator")
	}
	if !strings.Contains(RenderStatus(false, "failed"), StatusIndicators.Error) {
		t.Error("error status should carry the error indicator")
	}
	if !strings.Contains(RenderWarning("pending"), "pending") {
		t.Error("warning should keep its message")
	}
}
