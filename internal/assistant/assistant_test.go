// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package assistant

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationIssueWireForms(t *testing.T) {
	raw := `{"workflowDefinition":{"summary":"s","validationErrors":{
		"b":["missing trigger","error"],
		"a":"step has no provider"
	}}}`

	c, err := DecodeContext(json.RawMessage(raw))
	require.NoError(t, err)

	issues := c.Issues()
	require.Len(t, issues, 2)
	assert.Equal(t, "step has no provider", issues[0].Message)
	assert.Equal(t, ValidationIssue{Message: "missing trigger", Severity: "error"}, issues[1])

	b, err := json.Marshal(issues[0])
	require.NoError(t, err)
	assert.JSONEq(t, `["step has no provider","error"]`, string(b))
}

func TestSystemPrompt(t *testing.T) {
	c := WorkflowContext{
		WorkflowDefinition: &WorkflowDefinition{Summary: "alert -> slack"},
		InstalledProviders: []Provider{{ID: "slack-prod", Type: "slack"}, {ID: "pd", Type: "pagerduty"}},
	}

	p := SystemPrompt(c)
	assert.True(t, strings.HasPrefix(p, "You are a helpful assistant for Keep AIOps platform workflow builder."))
	assert.Contains(t, p, `"summary": "alert -> slack"`)
	assert.Contains(t, p, "- slack: slack-prod\n- pagerduty: pd")
	assert.True(t, strings.HasSuffix(p, "format them as YAML code blocks."))
}

func TestSystemPromptJSONEmptyContext(t *testing.T) {
	p, err := SystemPromptJSON(nil)
	require.NoError(t, err)
	assert.Contains(t, p, "Current workflow definition:\nnull")
}

func TestLoadContextYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
workflow:
  id: notify-on-critical
  triggers:
    - type: alert
summary: critical alerts go to slack
providers:
  - id: slack-prod
    type: slack
`), 0o600))

	c, err := LoadContext(path)
	require.NoError(t, err)
	require.NotNil(t, c.WorkflowDefinition)
	assert.Equal(t, "notify-on-critical", c.WorkflowDefinition.Properties["id"])
	assert.Equal(t, "critical alerts go to slack", c.WorkflowDefinition.Summary)
	assert.Equal(t, []Provider{{ID: "slack-prod", Type: "slack"}}, c.InstalledProviders)
}

func TestLoadContextBareYAMLWorkflow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wf.yml")
	require.NoError(t, os.WriteFile(path, []byte("id: bare\nsteps: []\n"), 0o600))

	c, err := LoadContext(path)
	require.NoError(t, err)
	assert.Equal(t, "bare", c.WorkflowDefinition.Properties["id"])
}

func TestLoadContextJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctx.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"installedProviders":[{"id":"x","type":"webhook"}]}`), 0o600))

	c, err := LoadContext(path)
	require.NoError(t, err)
	assert.Len(t, c.InstalledProviders, 1)
	assert.Nil(t, c.WorkflowDefinition)
}
