// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jeranaias/aideck/internal/backend"
	"github.com/jeranaias/aideck/internal/config"
	"github.com/jeranaias/aideck/internal/logging"
	"github.com/jeranaias/aideck/internal/server"
	"github.com/jeranaias/aideck/internal/settings"
	"github.com/jeranaias/aideck/internal/stream"
)

// =============================================================================
// ARG PARSER TESTS
// =============================================================================

func TestArgParser(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		bools    []string
		validate func(*testing.T, *ArgParser)
	}{
		{
			name: "flag with value",
			args: []string{"serve", "--addr", "127.0.0.1:9000"},
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("addr") != "127.0.0.1:9000" {
					t.Errorf("Flag(addr) = %q", p.Flag("addr"))
				}
				if p.PositionalCount() != 1 {
					t.Errorf("PositionalCount() = %d, want 1", p.PositionalCount())
				}
			},
		},
		{
			name: "flag with equals",
			args: []string{"serve", "--seed=seed.json"},
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("seed") != "seed.json" {
					t.Errorf("Flag(seed) = %q", p.Flag("seed"))
				}
			},
		},
		{
			name:  "known boolean does not swallow the command",
			args:  []string{"--json", "plugins"},
			bools: []string{"json"},
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("json") {
					t.Error("BoolFlag(json) should be true")
				}
				if p.Subcommand() != "plugins" {
					t.Errorf("Subcommand() = %q, want plugins", p.Subcommand())
				}
			},
		},
		{
			name: "negative numbers are positional",
			args: []string{"set", "algo", "offset", "-1.5"},
			validate: func(t *testing.T, p *ArgParser) {
				if p.Positional(3) != "-1.5" {
					t.Errorf("Positional(3) = %q, want -1.5", p.Positional(3))
				}
			},
		},
		{
			name: "double dash ends flags",
			args: []string{"set", "algo", "name", "--", "--literal"},
			validate: func(t *testing.T, p *ArgParser) {
				if got := strings.Join(p.PositionalFrom(3), " "); got != "--literal" {
					t.Errorf("PositionalFrom(3) = %q", got)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.validate(t, NewArgParser(tt.args, tt.bools...))
		})
	}
}

// =============================================================================
// PARSE TESTS
// =============================================================================

func TestParse(t *testing.T) {
	tests := []struct {
		argv    []string
		want    Command
		wantErr bool
		check   func(*testing.T, Args)
	}{
		{argv: nil, want: CmdTUI},
		{argv: []string{"--view", "chat"}, want: CmdTUI, check: func(t *testing.T, a Args) {
			if a.Flag("view") != "chat" {
				t.Errorf("view = %q", a.Flag("view"))
			}
		}},
		{argv: []string{"plugins", "--json"}, want: CmdPlugins, check: func(t *testing.T, a Args) {
			if !a.JSON {
				t.Error("JSON should be set")
			}
		}},
		{argv: []string{"show", "alert-correlation"}, want: CmdShow, check: func(t *testing.T, a Args) {
			if a.AlgorithmID != "alert-correlation" {
				t.Errorf("AlgorithmID = %q", a.AlgorithmID)
			}
		}},
		{argv: []string{"show"}, want: CmdShow, wantErr: true},
		{argv: []string{"set", "a", "Similarity threshold", "0.7"}, want: CmdSet, check: func(t *testing.T, a Args) {
			if a.Setting != "Similarity threshold" || a.Value != "0.7" {
				t.Errorf("Setting/Value = %q/%q", a.Setting, a.Value)
			}
		}},
		{argv: []string{"set", "a", "b"}, want: CmdSet, wantErr: true},
		{argv: []string{"adopt", "a"}, want: CmdAdopt},
		{argv: []string{"chat"}, want: CmdChat},
		{argv: []string{"serve", "--addr", ":0"}, want: CmdServe},
		{argv: []string{"config"}, want: CmdConfig, check: func(t *testing.T, a Args) {
			if a.Subcommand != "show" {
				t.Errorf("Subcommand = %q, want show", a.Subcommand)
			}
		}},
		{argv: []string{"config", "set", "chat.model", "llama3"}, want: CmdConfig, check: func(t *testing.T, a Args) {
			if a.ConfigKey != "chat.model" || a.ConfigVal != "llama3" {
				t.Errorf("ConfigKey/Val = %q/%q", a.ConfigKey, a.ConfigVal)
			}
		}},
		{argv: []string{"config", "frob"}, want: CmdConfig, wantErr: true},
		{argv: []string{"--version"}, want: CmdVersion},
		{argv: []string{"-h"}, want: CmdHelp},
		{argv: []string{"frobnicate"}, want: CmdHelp, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.argv, " "), func(t *testing.T) {
			cmd, args, err := Parse(tt.argv)
			if cmd != tt.want {
				t.Errorf("Parse() command = %v, want %v", cmd, tt.want)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && ExitCode(err) != ExitUsageError {
				t.Errorf("usage errors should exit %d", ExitUsageError)
			}
			if tt.check != nil {
				tt.check(t, args)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"usage", &UsageError{Reason: "x"}, ExitUsageError},
		{"config", &ConfigError{Err: errors.New("bad toml")}, ExitConfigError},
		{"unauthorized", &backend.ClientError{Type: backend.ErrTypeUnauthorized}, ExitAuthError},
		{"conflict", &backend.ClientError{Type: backend.ErrTypeConflict}, ExitConflictError},
		{"network", wrap(CmdSet, "x", &backend.ClientError{Type: backend.ErrTypeNetwork}), ExitNetworkError},
		{"unknown algorithm", fmt.Errorf("show: %w", settings.ErrUnknownAlgorithm), ExitNotFoundError},
		{"validation", &settings.ValidationError{Setting: "x", Reason: "out of range"}, ExitUsageError},
		{"other", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

// =============================================================================
// COMMANDS AGAINST THE SANDBOX
// =============================================================================

type testEnv struct {
	env     Env
	sandbox *server.Sandbox
	stdout  *bytes.Buffer
	stderr  *bytes.Buffer
}

func newTestEnv(t *testing.T, chat stream.Transport) *testEnv {
	t.Helper()
	ForceColorsEnabled(false)

	sandbox := server.NewSandbox(server.DefaultSeed())
	srv := server.New(server.Options{Sandbox: sandbox, Chat: chat, Logger: logging.Discard()})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	cfg := config.Default()
	cfg.Backend.URL = ts.URL
	cfg.Backend.WriteRate = 0
	cfg.Chat.URL = ts.URL + "/api/ai/chat"
	cfg.UI.Markdown = false

	te := &testEnv{sandbox: sandbox, stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	te.env = Env{
		Config: cfg,
		Logger: logging.Discard(),
		Stdout: te.stdout,
		Stderr: te.stderr,
	}
	return te
}

func (te *testEnv) setting(t *testing.T, algo, name string) any {
	t.Helper()
	for _, c := range te.sandbox.Configs() {
		if c.AlgorithmID != algo {
			continue
		}
		if s, _, ok := c.Setting(name); ok {
			return s.Value
		}
	}
	t.Fatalf("no setting %s.%s", algo, name)
	return nil
}

func TestHandlePlugins(t *testing.T) {
	te := newTestEnv(t, nil)
	if err := HandlePlugins(context.Background(), Args{}, te.env); err != nil {
		t.Fatalf("HandlePlugins() error = %v", err)
	}
	out := te.stdout.String()
	for _, want := range []string{"alert-correlation", "Alert Correlation", "summarizer", "[proposal]"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestHandlePluginsJSON(t *testing.T) {
	te := newTestEnv(t, nil)
	if err := HandlePlugins(context.Background(), Args{JSON: true}, te.env); err != nil {
		t.Fatalf("HandlePlugins() error = %v", err)
	}

	var resp struct {
		Success bool            `json:"success"`
		Data    []pluginSummary `json:"data"`
	}
	if err := json.Unmarshal(te.stdout.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !resp.Success || len(resp.Data) != 2 {
		t.Fatalf("resp = %+v", resp)
	}
	if !resp.Data[0].HasProposal || resp.Data[1].HasProposal {
		t.Error("only alert-correlation has a proposal")
	}
	if resp.Data[1].Enabled == nil || *resp.Data[1].Enabled {
		t.Error("summarizer should report enabled=false")
	}
}

func TestHandleShow(t *testing.T) {
	te := newTestEnv(t, nil)
	err := HandleShow(context.Background(), Args{AlgorithmID: "alert-correlation"}, te.env)
	if err != nil {
		t.Fatalf("HandleShow() error = %v", err)
	}
	out := te.stdout.String()
	for _, want := range []string{"Similarity threshold", "[0, 1]", "- Similarity threshold: 0.5", "+ Similarity threshold: 0.9", "Correlated 412 alerts"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestHandleShowUnknown(t *testing.T) {
	te := newTestEnv(t, nil)
	err := HandleShow(context.Background(), Args{AlgorithmID: "nope"}, te.env)
	if ExitCode(err) != ExitNotFoundError {
		t.Errorf("ExitCode(%v) = %d, want %d", err, ExitCode(err), ExitNotFoundError)
	}
}

func TestHandleSet(t *testing.T) {
	te := newTestEnv(t, nil)
	args := Args{AlgorithmID: "alert-correlation", Setting: "Similarity threshold", Value: "0.7"}
	if err := HandleSet(context.Background(), args, te.env); err != nil {
		t.Fatalf("HandleSet() error = %v", err)
	}
	if got := te.setting(t, "alert-correlation", "Similarity threshold"); got != 0.7 {
		t.Errorf("backend value = %v, want 0.7", got)
	}
	if !strings.Contains(te.stdout.String(), "Settings updated") {
		t.Errorf("missing confirmation: %s", te.stdout.String())
	}
}

func TestHandleSetBool(t *testing.T) {
	te := newTestEnv(t, nil)
	args := Args{AlgorithmID: "summarizer", Setting: "Enabled", Value: "true", Quiet: true}
	if err := HandleSet(context.Background(), args, te.env); err != nil {
		t.Fatalf("HandleSet() error = %v", err)
	}
	if got := te.setting(t, "summarizer", "Enabled"); got != true {
		t.Errorf("backend value = %v, want true", got)
	}
	if te.stdout.Len() != 0 {
		t.Errorf("quiet set printed %q", te.stdout.String())
	}
}

func TestHandleSetRejectsOutOfRange(t *testing.T) {
	te := newTestEnv(t, nil)
	args := Args{AlgorithmID: "alert-correlation", Setting: "Similarity threshold", Value: "3"}
	err := HandleSet(context.Background(), args, te.env)
	if !settings.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := te.setting(t, "alert-correlation", "Similarity threshold"); got != 0.5 {
		t.Errorf("backend value changed to %v", got)
	}
}

func TestHandleAdopt(t *testing.T) {
	te := newTestEnv(t, nil)
	if err := HandleAdopt(context.Background(), Args{AlgorithmID: "alert-correlation"}, te.env); err != nil {
		t.Fatalf("HandleAdopt() error = %v", err)
	}
	if got := te.setting(t, "alert-correlation", "Similarity threshold"); got != 0.9 {
		t.Errorf("backend value = %v, want 0.9", got)
	}
	if !strings.Contains(te.stdout.String(), "Adopted 1 change(s)") {
		t.Errorf("output = %q", te.stdout.String())
	}
}

func TestHandleAdoptWithoutProposal(t *testing.T) {
	te := newTestEnv(t, nil)
	err := HandleAdopt(context.Background(), Args{AlgorithmID: "summarizer"}, te.env)
	if err == nil {
		t.Fatal("expected an error for an algorithm without a proposal")
	}
	if ExitCode(err) != ExitUsageError {
		t.Errorf("ExitCode() = %d, want %d", ExitCode(err), ExitUsageError)
	}
}

func TestHandleChatPiped(t *testing.T) {
	reply := stream.Func(func(ctx context.Context, req stream.Request) (stream.Handle, error) {
		return stream.NewHandle(ctx, req.ID, func(ctx context.Context, emit func(string) bool) error {
			emit("Hi")
			emit(" there")
			return nil
		}), nil
	})
	te := newTestEnv(t, reply)
	te.env.Stdin = strings.NewReader("hello\n\n/reset\n/quit\n")

	if err := HandleChat(context.Background(), Args{}, te.env); err != nil {
		t.Fatalf("HandleChat() error = %v", err)
	}
	out := te.stdout.String()
	if !strings.Contains(out, "Hi there") {
		t.Errorf("reply missing from output:\n%s", out)
	}
	if !strings.Contains(out, "Conversation cleared.") {
		t.Errorf("/reset not handled:\n%s", out)
	}
}

func TestHandleChatStreamFailure(t *testing.T) {
	failing := stream.Func(func(ctx context.Context, req stream.Request) (stream.Handle, error) {
		return stream.NewHandle(ctx, req.ID, func(ctx context.Context, emit func(string) bool) error {
			emit("partial")
			return &stream.Error{Reason: "model crashed"}
		}), nil
	})
	te := newTestEnv(t, failing)
	te.env.Stdin = strings.NewReader("hello\n")

	if err := HandleChat(context.Background(), Args{}, te.env); err != nil {
		t.Fatalf("a failed turn should not end the REPL: %v", err)
	}
	if !strings.Contains(te.stdout.String(), "partial") {
		t.Errorf("partial reply missing: %q", te.stdout.String())
	}
	if !strings.Contains(te.stderr.String(), "model crashed") {
		t.Errorf("failure not reported: %q", te.stderr.String())
	}
}

// =============================================================================
// CONFIG COMMAND
// =============================================================================

func TestHandleConfigSetGet(t *testing.T) {
	t.Setenv("AIDECK_HOME", t.TempDir())
	config.ResetGlobalForTesting()

	var out bytes.Buffer
	env := Env{Config: config.Default(), Stdout: &out, Stderr: &out}

	err := HandleConfig(Args{Subcommand: "set", ConfigKey: "settings.debounce_ms", ConfigVal: "250"}, env)
	if err != nil {
		t.Fatalf("config set error = %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Settings.DebounceMS != 250 {
		t.Errorf("DebounceMS = %d, want 250", cfg.Settings.DebounceMS)
	}

	out.Reset()
	env.Config = cfg
	if err := HandleConfig(Args{Subcommand: "get", ConfigKey: "settings.debounce_ms"}, env); err != nil {
		t.Fatalf("config get error = %v", err)
	}
	if strings.TrimSpace(out.String()) != "250" {
		t.Errorf("config get = %q, want 250", out.String())
	}
}

func TestHandleConfigSetUnknownKey(t *testing.T) {
	t.Setenv("AIDECK_HOME", t.TempDir())
	env := Env{Config: config.Default(), Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}
	err := HandleConfig(Args{Subcommand: "set", ConfigKey: "nope.key", ConfigVal: "1"}, env)
	if ExitCode(err) != ExitUsageError {
		t.Errorf("ExitCode(%v) = %d, want %d", err, ExitCode(err), ExitUsageError)
	}
}

func TestHandleConfigShowMasksAPIKey(t *testing.T) {
	cfg := config.Default()
	cfg.Backend.APIKey = "sk-0123456789abcd"
	var out bytes.Buffer
	if err := HandleConfig(Args{Subcommand: "show"}, Env{Config: cfg, Stdout: &out}); err != nil {
		t.Fatalf("config show error = %v", err)
	}
	if strings.Contains(out.String(), "sk-0123456789abcd") {
		t.Error("API key printed in clear")
	}
	if !strings.Contains(out.String(), "****abcd") {
		t.Errorf("masked key missing:\n%s", out.String())
	}
}
