// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// Markdown renders assistant replies. Renderers are rebuilt only when the
// wrap width changes.
type Markdown struct {
	style   string
	enabled bool

	mu       sync.Mutex
	width    int
	renderer *glamour.TermRenderer
}

// NewMarkdown creates a renderer using a glamour standard style ("dark",
// "light", "notty"). When enabled is false text is only wrapped.
func NewMarkdown(style string, enabled bool) *Markdown {
	return &Markdown{style: style, enabled: enabled}
}

// Render formats text for width cells. Rendering errors fall back to
// plain wrapped text.
func (m *Markdown) Render(text string, width int) string {
	if width < 20 {
		width = 20
	}
	if !m.enabled || strings.TrimSpace(text) == "" {
		return Wrap(text, width)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.renderer == nil || m.width != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(m.style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return Wrap(text, width)
		}
		m.renderer, m.width = r, width
	}

	out, err := m.renderer.Render(text)
	if err != nil {
		return Wrap(text, width)
	}
	return strings.Trim(out, "\n")
}
