// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for aideck.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// .env files, environment variable overrides, and validation.
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (AIDECK_*), including those set by ./.env
//   - ~/.aideck/config.toml
//   - ~/.aideck/config.json
//   - Built-in defaults
//
// AIDECK_HOME moves the configuration directory.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	poll := cfg.PollInterval()
//
// Watch for edits:
//
//	w, err := config.NewWatcher(func(cfg *config.Config, err error) {
//	    if err == nil {
//	        dash.SetPollInterval(cfg.PollInterval())
//	    }
//	}, logger)
//	defer w.Close()
package config
