// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/aideck/internal/proposal"
	"github.com/jeranaias/aideck/internal/settings"
	"github.com/jeranaias/aideck/internal/ui/components"
)

// =============================================================================
// PLUGINS
// =============================================================================

// pluginSummary is one row of `aideck plugins --json`.
type pluginSummary struct {
	ID          string `json:"algorithm_id"`
	Name        string `json:"name"`
	Enabled     *bool  `json:"enabled,omitempty"`
	Settings    int    `json:"settings"`
	HasProposal bool   `json:"has_proposal"`
}

// HandlePlugins lists every algorithm the backend reports.
func HandlePlugins(ctx context.Context, args Args, env Env) error {
	conn, err := connect(ctx, env, Hooks{})
	if err != nil {
		if args.JSON {
			return outputJSON(env.Stdout, "plugins", nil, err)
		}
		return wrap(CmdPlugins, "fetch", err)
	}
	defer conn.Close()

	cfgs := conn.Dashboard.Configs()
	if args.JSON {
		rows := make([]pluginSummary, 0, len(cfgs))
		for _, c := range cfgs {
			rows = append(rows, pluginSummary{
				ID:          c.AlgorithmID,
				Name:        c.DisplayName(),
				Enabled:     enabledFlag(c),
				Settings:    len(c.Settings),
				HasProposal: proposal.HasProposal(c),
			})
		}
		return outputJSON(env.Stdout, "plugins", rows, nil)
	}

	if len(cfgs) == 0 {
		fmt.Fprintln(env.Stdout, DimStyle.Render("No algorithms reported by "+conn.Client.BaseURL()))
		return nil
	}

	fmt.Fprintln(env.Stdout, TitleStyle.Render("Algorithms"))
	width := 0
	for _, c := range cfgs {
		width = max(width, len(c.AlgorithmID))
	}
	for _, c := range cfgs {
		state := DimStyle.Render("-")
		if on := enabledFlag(c); on != nil {
			if *on {
				state = SuccessStyle.Render("on ")
			} else {
				state = DimStyle.Render("off")
			}
		}
		line := fmt.Sprintf("  %s  %s  %s", state, components.PadRight(c.AlgorithmID, width), c.DisplayName())
		if proposal.HasProposal(c) {
			line += "  " + WarningStyle.Render("[proposal]")
		}
		fmt.Fprintln(env.Stdout, line)
	}
	return nil
}

// enabledFlag returns the value of a boolean setting named "enabled", if
// the algorithm has one.
func enabledFlag(c settings.AlgorithmConfig) *bool {
	for _, s := range c.Settings {
		if s.Kind == settings.KindBool && strings.EqualFold(s.Name, "enabled") {
			b, _ := s.Value.(bool)
			return &b
		}
	}
	return nil
}

// =============================================================================
// SHOW
// =============================================================================

type showOutput struct {
	Config  settings.AlgorithmConfig `json:"config"`
	Changes []changeOutput           `json:"proposal"`
}

type changeOutput struct {
	Name  string `json:"name"`
	Old   any    `json:"old"`
	New   any    `json:"new"`
	Added bool   `json:"added,omitempty"`
}

// HandleShow prints one algorithm's settings, proposal and log.
func HandleShow(ctx context.Context, args Args, env Env) error {
	conn, err := connect(ctx, env, Hooks{})
	if err != nil {
		if args.JSON {
			return outputJSON(env.Stdout, "show", nil, err)
		}
		return wrap(CmdShow, "fetch", err)
	}
	defer conn.Close()

	cfg, err := conn.Dashboard.Config(args.AlgorithmID)
	if err != nil {
		if args.JSON {
			return outputJSON(env.Stdout, "show", nil, err)
		}
		return wrap(CmdShow, args.AlgorithmID, err)
	}
	changes, err := conn.Dashboard.ProposalDiff(args.AlgorithmID)
	if err != nil && !errors.Is(err, proposal.ErrNoProposal) {
		return wrap(CmdShow, args.AlgorithmID, err)
	}

	if args.JSON {
		out := showOutput{Config: cfg, Changes: make([]changeOutput, 0, len(changes))}
		for _, c := range changes {
			out.Changes = append(out.Changes, changeOutput{Name: c.Name, Old: c.Old, New: c.New, Added: c.Added})
		}
		return outputJSON(env.Stdout, "show", out, nil)
	}

	renderConfig(env.Stdout, cfg, changes)
	return nil
}

func renderConfig(w io.Writer, cfg settings.AlgorithmConfig, changes []proposal.Change) {
	fmt.Fprintf(w, "%s %s\n", TitleStyle.Render(cfg.DisplayName()), DimStyle.Render("("+cfg.AlgorithmID+")"))
	if cfg.Algorithm.Description != "" {
		fmt.Fprintln(w, components.Wrap(cfg.Algorithm.Description, GetTerminalWidth()-2))
	}

	fmt.Fprintln(w, SectionStyle.Render("Settings"))
	for _, s := range cfg.Settings {
		fmt.Fprintf(w, "  %s%s%s\n",
			RenderLabel(components.Truncate(s.Name, 21)),
			ValueStyle.Render(settings.FormatValue(s.Value)),
			DimStyle.Render(settingHint(s)))
	}

	if len(changes) > 0 {
		fmt.Fprintln(w, SectionStyle.Render(fmt.Sprintf("Proposal (%d change(s), adopt with: aideck adopt %s)", len(changes), cfg.AlgorithmID)))
		diff := proposalDiffText(changes)
		if ColorsEnabled() {
			block := components.NewCodeBlock("diff", diff)
			block.MaxWidth = GetTerminalWidth()
			diff = block.Render()
		}
		fmt.Fprintln(w, strings.TrimRight(diff, "\n"))
	}

	fmt.Fprintln(w, SectionStyle.Render("Execution log"))
	fmt.Fprintln(w, DimStyle.Render(cfg.Log()))
}

// settingHint describes the kind and range of s.
func settingHint(s settings.Setting) string {
	hint := "  " + string(s.Kind)
	if lo, hi, ok := s.Bounds(); ok {
		hint += fmt.Sprintf(" [%s, %s]", settings.FormatValue(lo), settings.FormatValue(hi))
	}
	if s.Description != "" {
		hint += "  " + s.Description
	}
	return hint
}

// proposalDiffText renders changes as a unified-diff style block.
func proposalDiffText(changes []proposal.Change) string {
	var b strings.Builder
	for _, c := range changes {
		if !c.Added {
			fmt.Fprintf(&b, "- %s: %s\n", c.Name, settings.FormatValue(c.Old))
		}
		fmt.Fprintf(&b, "+ %s: %s\n", c.Name, settings.FormatValue(c.New))
	}
	return b.String()
}

// =============================================================================
// SET
// =============================================================================

// HandleSet changes one setting and writes it immediately instead of
// waiting for the debounce window.
func HandleSet(ctx context.Context, args Args, env Env) error {
	conn, err := connect(ctx, env, Hooks{})
	if err != nil {
		return wrap(CmdSet, "fetch", err)
	}
	defer conn.Close()

	d := conn.Dashboard
	if err := d.SubmitEditText(ctx, args.AlgorithmID, args.Setting, args.Value); err != nil {
		return wrap(CmdSet, args.Setting, err)
	}
	if err := d.FlushEdits(ctx, args.AlgorithmID); err != nil {
		return wrap(CmdSet, args.Setting, err)
	}

	cfg, err := d.Config(args.AlgorithmID)
	if err != nil {
		return wrap(CmdSet, args.Setting, err)
	}
	if args.JSON {
		return outputJSON(env.Stdout, "set", cfg, nil)
	}
	if !args.Quiet {
		s, _, _ := cfg.Setting(args.Setting)
		fmt.Fprintf(env.Stdout, "%s %s.%s = %s\n", SuccessStyle.Render("Settings updated"),
			cfg.AlgorithmID, s.Name, settings.FormatValue(s.Value))
	}
	return nil
}

// =============================================================================
// ADOPT
// =============================================================================

// HandleAdopt replaces an algorithm's settings with its proposal.
func HandleAdopt(ctx context.Context, args Args, env Env) error {
	conn, err := connect(ctx, env, Hooks{})
	if err != nil {
		return wrap(CmdAdopt, "fetch", err)
	}
	defer conn.Close()

	d := conn.Dashboard
	changes, err := d.ProposalDiff(args.AlgorithmID)
	if err != nil {
		return wrap(CmdAdopt, args.AlgorithmID, err)
	}
	if err := d.AdoptProposal(ctx, args.AlgorithmID); err != nil {
		return wrap(CmdAdopt, args.AlgorithmID, err)
	}

	if args.JSON {
		cfg, _ := d.Config(args.AlgorithmID)
		return outputJSON(env.Stdout, "adopt", cfg, nil)
	}
	if !args.Quiet {
		fmt.Fprintf(env.Stdout, "%s %d change(s) to %s\n", SuccessStyle.Render("Adopted"), len(changes), args.AlgorithmID)
		for _, c := range changes {
			fmt.Fprintln(env.Stdout, "  "+c.String())
		}
	}
	return nil
}
