// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// aideck - terminal dashboard for algorithm settings and the workflow
// assistant.
//
// Usage:
//
//	aideck                     Open the dashboard
//	aideck plugins             List algorithms
//	aideck show <id>           Show settings and pending proposal
//	aideck set <id> <s> <v>    Change one setting
//	aideck adopt <id>          Adopt the proposal
//	aideck chat                Ask the workflow assistant
//	aideck serve               Run the sandbox backend
//	aideck config [show|get|set|path]
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jeranaias/aideck/internal/cli"
	"github.com/jeranaias/aideck/internal/config"
	"github.com/jeranaias/aideck/internal/logging"
	"github.com/jeranaias/aideck/internal/telemetry"
	"github.com/jeranaias/aideck/internal/ui"
	"github.com/jeranaias/aideck/internal/ui/styles"
)

// Version information, set at build time via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	os.Exit(run())
}

func run() int {
	cmd, args, err := cli.Parse(os.Args[1:])
	if err != nil {
		cli.PrintError(os.Stderr, err)
		return cli.ExitCode(err)
	}

	cfg, err := config.Load()
	if cfg == nil {
		cli.PrintError(os.Stderr, &cli.ConfigError{Err: err})
		return cli.ExitCode(&cli.ConfigError{Err: err})
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v (using defaults)\n", err)
	}
	config.SetGlobal(cfg)

	logger, closer, err := setupLogging(cmd, args, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		logger = logging.Discard()
	} else {
		defer closer.Close()
	}

	// The chat REPL handles Ctrl+C itself to stop a reply in progress.
	signals := []os.Signal{syscall.SIGTERM}
	if cmd != cli.CmdChat {
		signals = append(signals, os.Interrupt)
	}
	ctx, stop := signal.NotifyContext(context.Background(), signals...)
	defer stop()

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry.OTLPEndpoint, "aideck", Version, cfg.Telemetry.Insecure)
	if err != nil {
		logger.Warn("telemetry: disabled", "error", err)
		shutdown = func(context.Context) error { return nil }
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			logger.Warn("telemetry: shutdown", "error", err)
		}
	}()

	rec, err := telemetry.NewRecorder(telemetry.Meter("aideck"))
	if err != nil {
		logger.Warn("telemetry: recorder", "error", err)
		rec = nil
	}

	env := cli.Env{
		Config:   cfg,
		Logger:   logger,
		Recorder: rec,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		TUI: func(ctx context.Context, args cli.Args) error {
			return runTUI(ctx, args, cfg, logger, rec)
		},
	}

	err = cli.Run(ctx, cmd, args, env)
	if err != nil {
		cli.PrintError(os.Stderr, err)
	}
	return cli.ExitCode(err)
}

// setupLogging picks the log destination for cmd. The dashboard owns the
// terminal, so it logs to a file. The server logs JSON to stderr. Line
// commands keep stderr quiet unless --verbose is given.
func setupLogging(cmd cli.Command, args cli.Args, cfg *config.Config) (*slog.Logger, io.Closer, error) {
	opts := logging.Options{Level: cfg.Log.Level, File: cfg.Log.File}
	switch cmd {
	case cli.CmdTUI:
		if opts.File == "" {
			dir, err := config.ConfigDir()
			if err != nil {
				return nil, nil, err
			}
			opts.File = filepath.Join(dir, "aideck.log")
		}
	case cli.CmdServe:
		opts.JSON = true
	default:
		if cfg.Log.File == "" {
			opts.Level = "warn"
		}
	}
	if args.Verbose {
		opts.Level = "debug"
	}
	return logging.Setup(opts)
}

// workflowFile follows chat.workflow_file across config reloads.
func workflowFile() string {
	return config.Global().Chat.WorkflowFile
}

// runTUI connects to the backend and runs the dashboard until the user
// quits. Config file edits adjust the poll interval, the debounce window and
// the workflow file while it runs.
func runTUI(ctx context.Context, args cli.Args, cfg *config.Config, logger *slog.Logger, rec *telemetry.Recorder) error {
	bridge := ui.NewBridge()
	conn, err := cli.Dial(cfg, logger, rec, cli.Hooks{
		OnConfig:     bridge.OnConfig,
		OnWrite:      bridge.OnWrite,
		OnChat:       bridge.OnChat,
		OnPoll:       bridge.OnPoll,
		WorkflowFile: workflowFile,
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	// A failed first load is shown by the plugins view, not fatal.
	openCtx, cancel := context.WithTimeout(ctx, cfg.BackendTimeout())
	if err := conn.Dashboard.Open(openCtx); err != nil {
		logger.Warn("dashboard: initial load failed", "error", err)
	}
	cancel()

	watcher, err := config.NewWatcher(func(next *config.Config, err error) {
		if err != nil {
			logger.Warn("config: reload failed", "error", err)
			return
		}
		conn.Dashboard.SetPollInterval(next.PollInterval())
		conn.Dashboard.SetDebounce(next.DebounceWindow())
	}, logger)
	if err != nil {
		logger.Warn("config: watch disabled", "error", err)
	} else {
		defer watcher.Close()
	}

	view := ui.ViewPlugins
	if args.Flag("view") == "chat" {
		view = ui.ViewChat
	}
	return ui.Run(ctx, conn.Dashboard, bridge, ui.Options{
		Theme:     styles.NewThemeFor(cfg.UI.Theme),
		Markdown:  cfg.UI.Markdown,
		StartView: view,
	})
}
