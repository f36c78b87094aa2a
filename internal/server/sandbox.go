// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/jeranaias/aideck/internal/settings"
)

// ============================================================================
// SANDBOX BACKEND
// ============================================================================

// ErrNotFound is returned for unknown algorithm ids.
var ErrNotFound = errors.New("algorithm not found")

// Sandbox is an in-memory stand-in for the AI backend.
type Sandbox struct {
	mu      sync.RWMutex
	configs []settings.AlgorithmConfig
}

// NewSandbox seeds a sandbox with configs.
func NewSandbox(seed []settings.AlgorithmConfig) *Sandbox {
	s := &Sandbox{configs: make([]settings.AlgorithmConfig, 0, len(seed))}
	for _, c := range seed {
		s.configs = append(s.configs, c.Clone())
	}
	return s
}

// LoadSeed reads a stats document ({"algorithm_configs": [...]}) or a bare
// array of configs.
func LoadSeed(path string) ([]settings.AlgorithmConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server: read seed: %w", err)
	}

	var doc StatsResponse
	if err := json.Unmarshal(data, &doc); err == nil && doc.AlgorithmConfigs != nil {
		return doc.AlgorithmConfigs, nil
	}
	var list []settings.AlgorithmConfig
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("server: parse seed: %w", err)
	}
	return list, nil
}

// DefaultSeed is served when no seed file is configured.
func DefaultSeed() []settings.AlgorithmConfig {
	f := func(v float64) *float64 { return &v }
	return []settings.AlgorithmConfig{
		{
			AlgorithmID: "alert-correlation",
			Algorithm: settings.Metadata{
				Name:        "Alert Correlation",
				Description: "Groups related alerts into incidents.",
			},
			Settings: []settings.Setting{
				{Name: "Enabled", Kind: settings.KindBool, Value: true},
				{Name: "Similarity threshold", Description: "Minimum score to join an incident.", Kind: settings.KindFloat, Value: 0.5, Min: f(0), Max: f(1)},
				{Name: "Time window (minutes)", Kind: settings.KindInt, Value: int64(30), Min: f(1), Max: f(1440)},
			},
			Proposed: []settings.Setting{
				{Name: "Enabled", Kind: settings.KindBool, Value: true},
				{Name: "Similarity threshold", Description: "Minimum score to join an incident.", Kind: settings.KindFloat, Value: 0.9, Min: f(0), Max: f(1)},
				{Name: "Time window (minutes)", Kind: settings.KindInt, Value: int64(30), Min: f(1), Max: f(1440)},
			},
			ExecutionLog: "Correlated 412 alerts into 37 incidents.",
		},
		{
			AlgorithmID: "summarizer",
			Algorithm:   settings.Metadata{Name: "Incident Summarizer"},
			Settings: []settings.Setting{
				{Name: "Enabled", Kind: settings.KindBool, Value: false},
				{Name: "Model", Kind: settings.KindString, Value: "small"},
			},
		},
	}
}

// Configs returns a copy of every config.
func (s *Sandbox) Configs() []settings.AlgorithmConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]settings.AlgorithmConfig, len(s.configs))
	for i, c := range s.configs {
		out[i] = c.Clone()
	}
	return out
}

// Update validates cfg against the stored setting schema and replaces the
// algorithm's values. Proposals and logs are kept.
func (s *Sandbox) Update(id string, cfg settings.AlgorithmConfig) (settings.AlgorithmConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.configs {
		if s.configs[i].AlgorithmID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return settings.AlgorithmConfig{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	cur := s.configs[idx]
	next := cur.Clone()
	for _, in := range cfg.Settings {
		schema, _, ok := cur.Setting(in.Name)
		if !ok {
			return settings.AlgorithmConfig{}, &settings.ValidationError{Setting: in.Name, Value: in.Value, Reason: "unknown setting"}
		}
		v, err := settings.Validate(schema, in.Value)
		if err != nil {
			return settings.AlgorithmConfig{}, err
		}
		next = next.WithValue(in.Name, v)
	}
	if cfg.Proposed == nil {
		// An adopted proposal is cleared by the writer.
		next.Proposed = nil
	}

	s.configs[idx] = next
	return next.Clone(), nil
}
