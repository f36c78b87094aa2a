// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"runtime"
	"strings"
)

// Version information (overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdPlugins
	CmdShow
	CmdSet
	CmdAdopt
	CmdChat
	CmdServe
	CmdConfig
	CmdVersion
	CmdHelp
)

// String returns the command name as typed.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdPlugins:
		return "plugins"
	case CmdShow:
		return "show"
	case CmdSet:
		return "set"
	case CmdAdopt:
		return "adopt"
	case CmdChat:
		return "chat"
	case CmdServe:
		return "serve"
	case CmdConfig:
		return "config"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	JSON    bool
	Quiet   bool
	Verbose bool
	NoColor bool

	// Command-specific
	AlgorithmID string
	Setting     string
	Value       string
	Subcommand  string
	ConfigKey   string
	ConfigVal   string

	// Flags holds the remaining string flags (--addr, --seed, --view).
	Flags map[string]string
}

// Flag returns a command flag, or "".
func (a Args) Flag(name string) string {
	return a.Flags[name]
}

var boolFlags = []string{"json", "quiet", "q", "verbose", "v", "no-color", "help", "h", "version"}

const usageText = `aideck - terminal client for AIOps AI plugins

Usage:
  aideck                           Start the dashboard (default)
  aideck plugins                   List algorithms and their state
  aideck show <algo>               Show an algorithm's settings and proposal
  aideck set <algo> <name> <value> Change one setting and write it now
  aideck adopt <algo>              Adopt the algorithm's proposed settings
  aideck chat                      Chat with the workflow assistant
  aideck serve                     Run the sandbox backend and chat route
  aideck config [show|get|set|path]
  aideck version
  aideck help

Global flags:
  --json          Machine-readable output (plugins, show, config show)
  -q, --quiet     Only print errors
  -v, --verbose   Debug logging
  --no-color      Disable colors (NO_COLOR is honored too)

Dashboard flags:
  --view plugins|chat   View to open first

Serve flags:
  --addr HOST:PORT      Listen address (default from [server])
  --seed FILE           Sandbox algorithm configs (JSON)

Examples:
  aideck set alert-correlation "Similarity threshold" 0.7
  aideck config set settings.debounce_ms 500
  aideck serve --addr 127.0.0.1:9000

Keys (dashboard):
  C-t       switch between plugins and assistant
  tab       next algorithm
  space     toggle a boolean setting
  enter     edit the selected setting
  left/right  move a slider by one step
  a         review and adopt the algorithm's proposal
  C-c       quit
`

// PrintUsage writes the help text.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, usageText)
}

// PrintVersion writes version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "aideck %s\n", Version)
	fmt.Fprintf(w, "  commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  built:  %s\n", BuildDate)
	fmt.Fprintf(w, "  go:     %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Parse parses argv (without the program name).
func Parse(argv []string) (Command, Args, error) {
	p := NewArgParser(argv, boolFlags...)
	args := Args{
		JSON:    p.BoolFlag("json"),
		Quiet:   p.BoolFlag("quiet") || p.BoolFlag("q"),
		Verbose: p.BoolFlag("verbose") || p.BoolFlag("v"),
		NoColor: p.BoolFlag("no-color"),
		Flags:   p.flags,
	}

	if p.BoolFlag("help") || p.BoolFlag("h") {
		return CmdHelp, args, nil
	}
	if p.BoolFlag("version") {
		return CmdVersion, args, nil
	}
	if p.PositionalCount() == 0 {
		return CmdTUI, args, nil
	}

	rest := p.PositionalFrom(1)
	switch cmd := strings.ToLower(p.Subcommand()); cmd {
	case "tui", "dash", "dashboard":
		return CmdTUI, args, nil

	case "plugins", "ls", "list":
		return CmdPlugins, args, nil

	case "show":
		if len(rest) != 1 {
			return CmdShow, args, usage("show <algo>")
		}
		args.AlgorithmID = rest[0]
		return CmdShow, args, nil

	case "set":
		if len(rest) != 3 {
			return CmdSet, args, usage("set <algo> <setting> <value>")
		}
		args.AlgorithmID, args.Setting, args.Value = rest[0], rest[1], rest[2]
		return CmdSet, args, nil

	case "adopt":
		if len(rest) != 1 {
			return CmdAdopt, args, usage("adopt <algo>")
		}
		args.AlgorithmID = rest[0]
		return CmdAdopt, args, nil

	case "chat":
		return CmdChat, args, nil

	case "serve", "server":
		return CmdServe, args, nil

	case "config":
		return parseConfigArgs(args, rest)

	case "version":
		return CmdVersion, args, nil

	case "help":
		return CmdHelp, args, nil

	default:
		return CmdHelp, args, &UsageError{Reason: fmt.Sprintf("unknown command %q", cmd)}
	}
}

func parseConfigArgs(args Args, rest []string) (Command, Args, error) {
	if len(rest) == 0 {
		args.Subcommand = "show"
		return CmdConfig, args, nil
	}
	args.Subcommand = strings.ToLower(rest[0])
	switch args.Subcommand {
	case "show", "path":
		return CmdConfig, args, nil
	case "get":
		if len(rest) != 2 {
			return CmdConfig, args, usage("config get <key>")
		}
		args.ConfigKey = rest[1]
		return CmdConfig, args, nil
	case "set":
		if len(rest) < 3 {
			return CmdConfig, args, usage("config set <key> <value>")
		}
		args.ConfigKey = rest[1]
		args.ConfigVal = strings.Join(rest[2:], " ")
		return CmdConfig, args, nil
	default:
		return CmdConfig, args, &UsageError{Reason: fmt.Sprintf("unknown config subcommand %q", args.Subcommand), Usage: "config [show|get|set|path]"}
	}
}

func usage(form string) error {
	return &UsageError{Reason: "wrong number of arguments", Usage: form}
}
