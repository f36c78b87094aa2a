// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli parses the aideck command line and runs the line commands.
//
// # Usage
//
//	cmd, args, err := cli.Parse(os.Args[1:])
//	err = cli.Run(ctx, cmd, args, cli.Env{Config: cfg, Logger: logger, ...})
//	os.Exit(cli.ExitCode(err))
//
// # Commands
//
//   - plugins, show, set, adopt: read and change algorithm settings
//   - chat: line REPL for the workflow assistant
//   - serve: sandbox backend and chat route
//   - config: show, get, set and locate the config file
//
// plugins, show, set, adopt, version and config support --json.
// Commands return errors; main prints them and exits with ExitCode.
package cli
