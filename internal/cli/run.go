// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/aideck/internal/config"
	"github.com/jeranaias/aideck/internal/telemetry"
)

// Env carries what every command needs.
type Env struct {
	Config   *config.Config
	Logger   *slog.Logger
	Recorder *telemetry.Recorder
	Stdout   io.Writer
	Stderr   io.Writer

	// Stdin feeds the chat REPL when it is not a terminal. Nil means the
	// REPL reads the terminal through liner.
	Stdin io.Reader

	// TUI runs the dashboard. main supplies it.
	TUI func(ctx context.Context, args Args) error
}

// Run executes cmd.
func Run(ctx context.Context, cmd Command, args Args, env Env) error {
	if args.NoColor {
		ForceColorsEnabled(false)
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	switch cmd {
	case CmdTUI:
		if env.TUI == nil {
			return &UsageError{Reason: "dashboard unavailable"}
		}
		return env.TUI(ctx, args)
	case CmdPlugins:
		return HandlePlugins(ctx, args, env)
	case CmdShow:
		return HandleShow(ctx, args, env)
	case CmdSet:
		return HandleSet(ctx, args, env)
	case CmdAdopt:
		return HandleAdopt(ctx, args, env)
	case CmdChat:
		return HandleChat(ctx, args, env)
	case CmdServe:
		return HandleServe(ctx, args, env)
	case CmdConfig:
		return HandleConfig(args, env)
	case CmdVersion:
		if args.JSON {
			return outputJSON(env.Stdout, "version", map[string]string{
				"version": Version, "commit": GitCommit, "built": BuildDate,
			}, nil)
		}
		PrintVersion(env.Stdout)
		return nil
	default:
		PrintUsage(env.Stdout)
		return nil
	}
}

// connect dials and loads the first snapshot.
func connect(ctx context.Context, env Env, hooks Hooks) (*Connection, error) {
	conn, err := Dial(env.Config, env.Logger, env.Recorder, hooks)
	if err != nil {
		return nil, err
	}
	if err := conn.Dashboard.Open(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}
