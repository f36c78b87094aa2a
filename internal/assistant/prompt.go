// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package assistant

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SystemPrompt builds the workflow builder assistant's instructions from
// the current context.
func SystemPrompt(c WorkflowContext) string {
	def := "null"
	if c.WorkflowDefinition != nil {
		if b, err := json.MarshalIndent(c.WorkflowDefinition, "", "  "); err == nil {
			def = string(b)
		}
	}

	providers := make([]string, 0, len(c.InstalledProviders))
	for _, p := range c.InstalledProviders {
		providers = append(providers, fmt.Sprintf("- %s: %s", p.Type, p.ID))
	}

	var b strings.Builder
	b.WriteString("You are a helpful assistant for Keep AIOps platform workflow builder.\n")
	b.WriteString("You help users create and debug workflows.\n\n")
	b.WriteString("Current workflow definition:\n")
	b.WriteString(def)
	b.WriteString("\n\nAvailable providers:\n")
	b.WriteString(strings.Join(providers, "\n"))
	b.WriteString("\n\nProvide concise, actionable responses. ")
	b.WriteString("When suggesting workflow changes, format them as YAML code blocks.")
	return b.String()
}

// SystemPromptJSON decodes an opaque chat context and builds the prompt.
// It matches stream.SystemPromptFunc.
func SystemPromptJSON(raw json.RawMessage) (string, error) {
	c, err := DecodeContext(raw)
	if err != nil {
		return "", err
	}
	return SystemPrompt(c), nil
}
