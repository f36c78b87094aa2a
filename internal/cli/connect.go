// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/jeranaias/aideck/internal/assistant"
	"github.com/jeranaias/aideck/internal/backend"
	"github.com/jeranaias/aideck/internal/chatsession"
	"github.com/jeranaias/aideck/internal/config"
	"github.com/jeranaias/aideck/internal/dashboard"
	"github.com/jeranaias/aideck/internal/ollama"
	"github.com/jeranaias/aideck/internal/settings"
	"github.com/jeranaias/aideck/internal/stream"
	"github.com/jeranaias/aideck/internal/telemetry"
)

// Hooks receive dashboard notifications. Any of them may be nil.
type Hooks struct {
	OnConfig func(settings.AlgorithmConfig)
	OnWrite  func(settings.WriteResult)
	OnChat   func(chatsession.Event)
	OnPoll   func(n int, err error)

	// WorkflowFile reports the workflow file for each chat turn. When nil
	// the file named by cfg at Dial time is used.
	WorkflowFile func() string
}

// Connection is everything Dial builds.
type Connection struct {
	Dashboard *dashboard.Dashboard
	Client    *backend.Client
	Transport stream.Transport
}

// Close stops the dashboard.
func (c *Connection) Close() {
	c.Dashboard.Close()
}

// Dial builds a dashboard for cfg without fetching anything. Call Open on
// the dashboard to load the first snapshot.
func Dial(cfg *config.Config, logger *slog.Logger, rec *telemetry.Recorder, hooks Hooks) (*Connection, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := backend.NewClient(&backend.ClientConfig{
		BaseURL:   cfg.Backend.URL,
		APIKey:    cfg.Backend.APIKey,
		Timeout:   cfg.BackendTimeout(),
		WriteRate: writeRate(cfg.Backend.WriteRate),
	})
	if err != nil {
		return nil, &ConfigError{Err: err}
	}

	transport, probe, err := ChatTransport(cfg)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}

	workflowFile := hooks.WorkflowFile
	if workflowFile == nil {
		path := cfg.Chat.WorkflowFile
		workflowFile = func() string { return path }
	}

	d := dashboard.New(dashboard.Options{
		Backend:      client,
		Transport:    transport,
		Debounce:     cfg.DebounceWindow(),
		PollInterval: cfg.PollInterval(),
		ChatContext:  workflowContext(workflowFile, logger),
		Probe:        probe,
		Recorder:     rec,
		OnConfig:     hooks.OnConfig,
		OnWrite:      hooks.OnWrite,
		OnChat:       hooks.OnChat,
		OnPoll:       hooks.OnPoll,
		Logger:       logger,
	})
	return &Connection{Dashboard: d, Client: client, Transport: transport}, nil
}

// writeRate maps the config's 0 (unlimited) onto the client's negative.
func writeRate(r float64) float64 {
	if r == 0 {
		return -1
	}
	return r
}

// ChatTransport builds the chat transport selected by [chat] and a probe
// that checks it is reachable.
func ChatTransport(cfg *config.Config) (stream.Transport, func(context.Context) error, error) {
	switch strings.ToLower(cfg.Chat.Transport) {
	case "", "http":
		t := stream.NewHTTPTransport(cfg.Chat.URL)
		if cfg.Backend.APIKey != "" {
			t.Header = http.Header{}
			t.Header.Set("X-API-KEY", cfg.Backend.APIKey)
		}
		return t, nil, nil

	case "ollama":
		client := ollama.NewClientWithConfig(&ollama.ClientConfig{
			BaseURL:      cfg.Chat.OllamaURL,
			DefaultModel: cfg.Chat.Model,
		})
		t := &stream.OllamaTransport{
			Client:       client,
			Model:        cfg.Chat.Model,
			SystemPrompt: assistant.SystemPromptJSON,
		}
		return t, ollamaProbe(client, cfg.Chat.OllamaURL, cfg.Chat.Model), nil

	default:
		return nil, nil, fmt.Errorf("unknown chat transport %q (want http or ollama)", cfg.Chat.Transport)
	}
}

// ollamaProbe checks that Ollama answers at url and has model installed.
func ollamaProbe(client *ollama.Client, url, model string) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := client.CheckRunning(ctx); err != nil {
			if ollama.IsNotRunning(err) {
				return fmt.Errorf("ollama is not running at %s (start it with 'ollama serve'): %w", url, err)
			}
			return err
		}
		if model == "" {
			return nil
		}
		models, err := client.ListModels(ctx)
		if err != nil {
			return err
		}
		for _, m := range models {
			if m.Name == model || m.Name == model+":latest" {
				return nil
			}
		}
		return fmt.Errorf("model %q is not installed (run 'ollama pull %s'): %w", model, model, ollama.ErrModelNotFound)
	}
}

// workflowContext returns a ChatContext func that re-reads the workflow file
// on every turn, so edits to the file, or a reload that names another one,
// reach the next question. A read failure falls back to the last good
// context for that file.
func workflowContext(file func() string, logger *slog.Logger) func() json.RawMessage {
	var (
		mu       sync.Mutex
		last     json.RawMessage
		lastPath string
	)
	return func() json.RawMessage {
		path := file()
		if path == "" {
			return nil
		}

		mu.Lock()
		defer mu.Unlock()
		if path != lastPath {
			last, lastPath = nil, path
		}

		wc, err := assistant.LoadContext(path)
		if err == nil {
			var raw json.RawMessage
			if raw, err = wc.Encode(); err == nil {
				last = raw
				return last
			}
		}
		logger.Warn("chat: workflow context unavailable", "path", path, "error", err)
		return last
	}
}
