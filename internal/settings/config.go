// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package settings

// =============================================================================
// ALGORITHM CONFIG
// =============================================================================

// Metadata describes an algorithm for display.
type Metadata struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// AlgorithmConfig is the full configuration of one algorithm as exchanged
// with the backend.
//
// AlgorithmConfig values are treated as immutable: every change goes through
// Clone or WithValue and produces a new value, so a config handed to the
// poller or a renderer is never modified underneath it.
type AlgorithmConfig struct {
	AlgorithmID  string    `json:"algorithm_id"`
	Algorithm    Metadata  `json:"algorithm"`
	Settings     []Setting `json:"settings"`
	Proposed     []Setting `json:"settings_proposed_by_algorithm,omitempty"`
	ExecutionLog string    `json:"feedback_logs,omitempty"`
}

// NotExecutedLog is shown in place of an empty execution log.
const NotExecutedLog = "Algorithm not executed yet."

// DisplayName returns the algorithm name, falling back to its id.
func (c AlgorithmConfig) DisplayName() string {
	if c.Algorithm.Name != "" {
		return c.Algorithm.Name
	}
	return c.AlgorithmID
}

// Log returns the execution log or NotExecutedLog when there is none.
func (c AlgorithmConfig) Log() string {
	if c.ExecutionLog == "" {
		return NotExecutedLog
	}
	return c.ExecutionLog
}

// Clone returns a deep copy of c. Setting values are scalars, so copying
// the slices is enough.
func (c AlgorithmConfig) Clone() AlgorithmConfig {
	out := c
	out.Settings = cloneSettings(c.Settings)
	out.Proposed = cloneSettings(c.Proposed)
	return out
}

func cloneSettings(in []Setting) []Setting {
	if in == nil {
		return nil
	}
	out := make([]Setting, len(in))
	for i, s := range in {
		out[i] = s
		if s.Min != nil {
			lo := *s.Min
			out[i].Min = &lo
		}
		if s.Max != nil {
			hi := *s.Max
			out[i].Max = &hi
		}
	}
	return out
}

// Setting looks up a setting by name.
func (c AlgorithmConfig) Setting(name string) (Setting, int, bool) {
	for i, s := range c.Settings {
		if s.Name == name {
			return s, i, true
		}
	}
	return Setting{}, -1, false
}

// WithValue returns a copy of c with the named setting set to v. The value
// is stored as given; callers validate first. Unknown names return c
// unchanged.
func (c AlgorithmConfig) WithValue(name string, v any) AlgorithmConfig {
	_, i, ok := c.Setting(name)
	if !ok {
		return c
	}
	out := c.Clone()
	out.Settings[i].Value = v
	return out
}

// Values returns the settings as a name to value map.
func (c AlgorithmConfig) Values() map[string]any {
	m := make(map[string]any, len(c.Settings))
	for _, s := range c.Settings {
		m[s.Name] = s.Value
	}
	return m
}

// EqualValues reports whether a and b hold the same names with equal
// values. Order does not matter. A list that repeats a name never equals
// another.
func EqualValues(a, b []Setting) bool {
	if len(a) != len(b) {
		return false
	}
	idx := make(map[string]any, len(b))
	for _, s := range b {
		idx[s.Name] = s.Value
	}
	if len(idx) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, s := range a {
		v, ok := idx[s.Name]
		if !ok || seen[s.Name] || !ValuesEqual(s.Value, v) {
			return false
		}
		seen[s.Name] = true
	}
	return true
}
