// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/aideck/internal/chatsession"
	"github.com/jeranaias/aideck/internal/model"
	"github.com/jeranaias/aideck/internal/ui/components"
)

// View renders the conversation, the state line and the input.
func (m Model) View() string {
	parts := []string{
		m.viewport.View(),
		m.statusLine(),
		m.theme.InputContainer.Width(m.width).Render(m.input.View()),
		m.help.View(m.keys),
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) statusLine() string {
	switch m.state {
	case chatsession.StateAwaitingFirstToken:
		return m.spinner.View() + " " + m.theme.ThinkingText.Render("thinking...")
	case chatsession.StateStreaming:
		return m.spinner.View() + " " + m.theme.ThinkingText.Render("replying (esc to stop)")
	case chatsession.StateError:
		reason := "reply failed"
		if m.lastErr != nil {
			reason = m.lastErr.Error()
		}
		return m.theme.FailedNote.Render(components.Truncate(reason, m.width))
	}
	return ""
}

// render rebuilds the viewport content, keeping the scroll pinned to the
// bottom if it was there.
func (m *Model) render() {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderMessages())
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m Model) renderMessages() string {
	if len(m.messages) == 0 {
		return m.theme.ThinkingText.Render("Ask the assistant about the workflow you have loaded.")
	}

	bubbleWidth := m.width - 8
	if bubbleWidth < 20 {
		bubbleWidth = 20
	}

	blocks := make([]string, 0, len(m.messages))
	for _, msg := range m.messages {
		blocks = append(blocks, m.renderMessage(msg, bubbleWidth))
	}
	return strings.Join(blocks, "\n")
}

func (m Model) renderMessage(msg model.Message, width int) string {
	label := m.theme.RoleLabel.Render(msg.Role.DisplayName())

	if msg.Role == model.RoleUser {
		body := components.Wrap(msg.Content, width-4)
		return label + "\n" + m.theme.UserBubble.Render(body)
	}

	var body string
	switch {
	case msg.IsStreaming():
		// Partial markdown renders badly; wrap until the reply is complete.
		body = components.Wrap(msg.Content, width-4)
		if body == "" {
			body = m.spinner.View()
		}
	default:
		body = m.md.Render(msg.Content, width-4)
	}

	switch {
	case msg.Failed:
		body += "\n" + m.theme.FailedNote.Render("reply failed: "+msg.ErrorText)
	case msg.Canceled:
		body += "\n" + m.theme.CanceledNote.Render("(stopped)")
	}
	return label + "\n" + m.theme.AssistantBubble.Render(body)
}
