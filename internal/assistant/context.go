// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package assistant describes the workflow builder context sent with each
// chat turn and turns it into the assistant's system prompt.
package assistant

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// WORKFLOW CONTEXT
// =============================================================================

// Severity of a validation issue.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// ValidationIssue is one problem the workflow editor found. On the wire it
// is either a bare message or a [message, severity] pair.
type ValidationIssue struct {
	Message  string
	Severity string
}

// UnmarshalJSON accepts both wire forms.
func (v *ValidationIssue) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) > 0 {
			v.Message = pair[0]
		}
		if len(pair) > 1 {
			v.Severity = pair[1]
		}
		return nil
	}
	var msg string
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("validation issue: expected string or [message, severity]: %w", err)
	}
	v.Message = msg
	return nil
}

// MarshalJSON writes the pair form.
func (v ValidationIssue) MarshalJSON() ([]byte, error) {
	sev := v.Severity
	if sev == "" {
		sev = SeverityError
	}
	return json.Marshal([]string{v.Message, sev})
}

// WorkflowDefinition is the editor's view of the workflow being built.
type WorkflowDefinition struct {
	Summary          string                     `json:"summary,omitempty" yaml:"summary"`
	Properties       map[string]any             `json:"properties,omitempty" yaml:"properties"`
	ValidationErrors map[string]ValidationIssue `json:"validationErrors,omitempty" yaml:"-"`
	SelectedNode     string                     `json:"selectedNode,omitempty" yaml:"-"`
	SelectedEdge     string                     `json:"selectedEdge,omitempty" yaml:"-"`
}

// Provider is an installed integration the workflow can use.
type Provider struct {
	ID   string `json:"id" yaml:"id"`
	Type string `json:"type" yaml:"type"`
}

// WorkflowContext travels with every chat turn. The chat session treats it
// as opaque JSON.
type WorkflowContext struct {
	WorkflowDefinition *WorkflowDefinition `json:"workflowDefinition,omitempty"`
	InstalledProviders []Provider          `json:"installedProviders,omitempty"`
}

// Encode returns the context as a JSON object.
func (c WorkflowContext) Encode() (json.RawMessage, error) {
	return json.Marshal(c)
}

// DecodeContext parses an opaque chat context. Empty input yields an empty
// context.
func DecodeContext(raw json.RawMessage) (WorkflowContext, error) {
	var c WorkflowContext
	if len(strings.TrimSpace(string(raw))) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("assistant: decode context: %w", err)
	}
	return c, nil
}

// Issues returns the validation issues sorted by key.
func (c WorkflowContext) Issues() []ValidationIssue {
	if c.WorkflowDefinition == nil {
		return nil
	}
	keys := make([]string, 0, len(c.WorkflowDefinition.ValidationErrors))
	for k := range c.WorkflowDefinition.ValidationErrors {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]ValidationIssue, 0, len(keys))
	for _, k := range keys {
		out = append(out, c.WorkflowDefinition.ValidationErrors[k])
	}
	return out
}

// =============================================================================
// LOADING
// =============================================================================

// contextFile is the on-disk form of a workflow context. A YAML file may
// also be a bare workflow, in which case it becomes the definition's
// properties.
type contextFile struct {
	Workflow  map[string]any `yaml:"workflow"`
	Summary   string         `yaml:"summary"`
	Providers []Provider     `yaml:"providers"`
}

// LoadContext reads a workflow context from path. JSON files hold a
// WorkflowContext; YAML files hold a workflow definition, optionally with
// summary and providers alongside it.
func LoadContext(path string) (WorkflowContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return WorkflowContext{}, fmt.Errorf("assistant: read context: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseYAMLContext(data)
	default:
		return DecodeContext(data)
	}
}

func parseYAMLContext(data []byte) (WorkflowContext, error) {
	var f contextFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return WorkflowContext{}, fmt.Errorf("assistant: parse yaml context: %w", err)
	}

	props := f.Workflow
	if props == nil {
		// A bare workflow file.
		if err := yaml.Unmarshal(data, &props); err != nil {
			return WorkflowContext{}, fmt.Errorf("assistant: parse yaml workflow: %w", err)
		}
	}
	return WorkflowContext{
		WorkflowDefinition: &WorkflowDefinition{Summary: f.Summary, Properties: props},
		InstalledProviders: f.Providers,
	}, nil
}
