// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - "aideck config".
//
// Subcommands:
//
//	show (default)      Display the effective configuration
//	get <key>           Print one value
//	set <key> <value>   Change one value and save the file
//	path                Show the configuration file path
//
// Keys use dot notation, e.g. settings.debounce_ms or chat.transport.

package cli

import (
	"fmt"
	"strings"

	"github.com/jeranaias/aideck/internal/config"
)

// HandleConfig dispatches the config subcommands.
func HandleConfig(args Args, env Env) error {
	switch args.Subcommand {
	case "get":
		return handleConfigGet(args, env)
	case "set":
		return handleConfigSet(args, env)
	case "path":
		return handleConfigPath(args, env)
	default:
		return handleConfigShow(args, env)
	}
}

func handleConfigShow(args Args, env Env) error {
	cfg := env.Config
	if args.JSON {
		values := make(map[string]any, len(config.GetAllKeys()))
		for _, key := range config.GetAllKeys() {
			v, _ := cfg.Get(key)
			values[key] = maskIfSecret(key, v)
		}
		return outputJSON(env.Stdout, "config", values, nil)
	}

	out := env.Stdout
	fmt.Fprintln(out, TitleStyle.Render("aideck configuration"))
	section := ""
	for _, key := range config.GetAllKeys() {
		sec, name, _ := strings.Cut(key, ".")
		if sec != section {
			section = sec
			fmt.Fprintln(out, SectionStyle.Render("["+sec+"]"))
		}
		v, err := cfg.Get(key)
		if err != nil {
			continue
		}
		fmt.Fprintf(out, "  %s%s\n", RenderLabel(name), ValueStyle.Render(fmt.Sprint(maskIfSecret(key, v))))
	}

	if path, err := config.ConfigPathTOML(); err == nil {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "%s %s\n", DimStyle.Render("Config file:"), path)
	}
	return nil
}

func handleConfigGet(args Args, env Env) error {
	v, err := env.Config.Get(args.ConfigKey)
	if err != nil {
		return &UsageError{Reason: err.Error(), Usage: "config get <key>"}
	}
	if args.JSON {
		return outputJSON(env.Stdout, "config", map[string]any{args.ConfigKey: v}, nil)
	}
	fmt.Fprintln(env.Stdout, v)
	return nil
}

// handleConfigSet reloads the file rather than editing env.Config, which
// may carry flag adjustments.
func handleConfigSet(args Args, env Env) error {
	cfg, err := config.Load()
	if err != nil {
		return &ConfigError{Err: err}
	}
	if err := cfg.Set(args.ConfigKey, args.ConfigVal); err != nil {
		return &UsageError{Reason: err.Error(), Usage: "config set <key> <value>"}
	}
	if err := cfg.Validate(); err != nil {
		return &ConfigError{Err: err}
	}
	if err := config.Save(cfg); err != nil {
		return &ConfigError{Err: err}
	}

	if !args.Quiet {
		v, _ := cfg.Get(args.ConfigKey)
		fmt.Fprintf(env.Stdout, "%s %s = %v\n", SuccessStyle.Render("Saved"), args.ConfigKey, maskIfSecret(args.ConfigKey, v))
	}
	return nil
}

func handleConfigPath(args Args, env Env) error {
	path, err := config.ConfigPathTOML()
	if err != nil {
		return &ConfigError{Err: err}
	}
	if args.JSON {
		return outputJSON(env.Stdout, "config", map[string]string{"path": path}, nil)
	}
	fmt.Fprintln(env.Stdout, path)
	return nil
}

// maskIfSecret hides API keys, keeping the last four characters.
func maskIfSecret(key string, v any) any {
	if !strings.HasSuffix(key, "api_key") {
		return v
	}
	s, _ := v.(string)
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
