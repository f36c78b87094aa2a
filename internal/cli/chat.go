// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - the "aideck chat" line REPL.
//
// Interactive commands:
//
//	/help, /h      Show available commands
//	/reset, /c     Clear the conversation
//	/context       Show the workflow context sent with each question
//	/stats         Show session counters
//	/quit, /q      Exit
//	Ctrl+C         Stop the reply in progress (exits at the prompt)
//	Ctrl+D         Exit

package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/aideck/internal/chatsession"
	"github.com/jeranaias/aideck/internal/config"
	"github.com/jeranaias/aideck/internal/dashboard"
	"github.com/jeranaias/aideck/internal/model"
	"github.com/jeranaias/aideck/internal/ui/components"
	"github.com/jeranaias/aideck/internal/ui/styles"
	"github.com/jeranaias/aideck/internal/util"
)

// =============================================================================
// INPUT
// =============================================================================

// lineReader reads one line of user input.
type lineReader interface {
	ReadLine(prompt string) (string, error)
	Close()
}

// linerInput provides history and line editing on a terminal.
type linerInput struct {
	line        *liner.State
	historyFile string
}

func newLinerInput() *linerInput {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	in := &linerInput{line: line, historyFile: filepath.Join(dir, "chat_history")}
	if f, err := os.Open(in.historyFile); err == nil {
		_, _ = in.line.ReadHistory(f)
		f.Close()
	}
	return in
}

func (in *linerInput) ReadLine(prompt string) (string, error) {
	s, err := in.line.Prompt(prompt)
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", io.EOF
		}
		return "", err
	}
	if strings.TrimSpace(s) != "" {
		in.line.AppendHistory(s)
	}
	return s, nil
}

// Close saves history with owner-only permissions and restores the
// terminal.
func (in *linerInput) Close() {
	var buf bytes.Buffer
	if _, err := in.line.WriteHistory(&buf); err == nil {
		_ = util.WriteFileAtomic(in.historyFile, buf.Bytes(), 0600, 0700)
	}
	in.line.Close()
}

// scannerInput reads piped input. Prompts are not echoed.
type scannerInput struct {
	sc *bufio.Scanner
}

func (in *scannerInput) ReadLine(string) (string, error) {
	if !in.sc.Scan() {
		if err := in.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return in.sc.Text(), nil
}

func (in *scannerInput) Close() {}

// =============================================================================
// REPL
// =============================================================================

type chatREPL struct {
	env    Env
	d      *dashboard.Dashboard
	events chan chatsession.Event
	in     lineReader
	md     *components.Markdown
	width  int
}

// HandleChat runs the chat REPL until the user quits or ctx ends.
func HandleChat(ctx context.Context, args Args, env Env) error {
	events := make(chan chatsession.Event, 1024)
	conn, err := Dial(env.Config, env.Logger, env.Recorder, Hooks{
		OnChat: func(ev chatsession.Event) { events <- ev },
	})
	if err != nil {
		return wrap(CmdChat, "connect", err)
	}
	defer conn.Close()

	r := &chatREPL{
		env:    env,
		d:      conn.Dashboard,
		events: events,
		width:  GetTerminalWidth(),
	}

	interactive := env.Stdin == nil && IsTTY()
	if interactive {
		r.in = newLinerInput()
	} else {
		src := env.Stdin
		if src == nil {
			src = os.Stdin
		}
		r.in = &scannerInput{sc: bufio.NewScanner(src)}
	}
	defer r.in.Close()

	if interactive && env.Config.UI.Markdown && ColorsEnabled() {
		style := styles.NewThemeFor(env.Config.UI.Theme).GlamourStyle()
		r.md = components.NewMarkdown(style, true)
	}

	if !args.Quiet && interactive {
		fmt.Fprintln(env.Stdout, TitleStyle.Render("aideck assistant"))
		fmt.Fprintln(env.Stdout, DimStyle.Render("Ask about the workflow. /help for commands, Ctrl+D to exit."))
	}
	return r.loop(ctx)
}

func (r *chatREPL) loop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		input, err := r.in.ReadLine(PromptStyle.Render("you> "))
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(r.env.Stdout)
				return nil
			}
			return wrap(CmdChat, "read", err)
		}

		input = strings.TrimSpace(input)
		switch {
		case input == "":
			continue
		case strings.HasPrefix(input, "/"):
			if quit := r.command(input); quit {
				return nil
			}
			continue
		case strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit"):
			return nil
		}

		if err := r.turn(ctx, input); err != nil {
			PrintError(r.env.Stderr, err)
		}
	}
}

// command runs a slash command and reports whether the REPL should exit.
func (r *chatREPL) command(input string) bool {
	out := r.env.Stdout
	switch cmd := strings.Fields(input)[0]; strings.ToLower(cmd) {
	case "/quit", "/q", "/exit":
		return true
	case "/help", "/h":
		fmt.Fprintln(out, "  /reset    clear the conversation")
		fmt.Fprintln(out, "  /context  show the workflow context")
		fmt.Fprintln(out, "  /stats    show session counters")
		fmt.Fprintln(out, "  /quit     exit")
	case "/reset", "/clear", "/c":
		_ = r.d.ResetChat()
		fmt.Fprintln(out, DimStyle.Render("Conversation cleared."))
	case "/context":
		r.showContext()
	case "/stats":
		s := r.d.Stats()
		turns := 0
		for _, n := range s.ChatTurns {
			turns += n
		}
		fmt.Fprintf(out, "  %s%d\n", RenderLabel("chat turns"), turns)
		for outcome, n := range s.ChatTurns {
			fmt.Fprintf(out, "  %s%d\n", RenderLabel("  "+outcome), n)
		}
	default:
		fmt.Fprintf(r.env.Stderr, "%s unknown command %s (try /help)\n", WarningStyle.Render("?"), cmd)
	}
	return false
}

// showContext prints the workflow file, highlighted when colors are on.
func (r *chatREPL) showContext() {
	path := r.env.Config.Chat.WorkflowFile
	if path == "" {
		fmt.Fprintln(r.env.Stdout, DimStyle.Render("No workflow context. Set chat.workflow_file to send one."))
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		PrintError(r.env.Stderr, err)
		return
	}

	text := strings.TrimRight(string(data), "\n")
	if ColorsEnabled() {
		lang := "json"
		if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
			lang = "yaml"
		}
		text = components.Highlight(text, lang)
	}
	fmt.Fprintln(r.env.Stdout, DimStyle.Render(path))
	fmt.Fprintln(r.env.Stdout, text)
}

// turn submits one question and prints the reply as it streams. With
// markdown on, the reply is rendered once it is complete.
func (r *chatREPL) turn(ctx context.Context, text string) error {
	id, err := r.d.SubmitChatTurn(text)
	if err != nil {
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)

	out := r.env.Stdout
	fmt.Fprint(out, AssistantStyle.Render("assistant")+" ")
	received := 0

	for {
		select {
		case <-ctx.Done():
			_ = r.d.CancelChatTurn()
			fmt.Fprintln(out)
			return nil

		case <-sig:
			_ = r.d.CancelChatTurn()

		case ev := <-r.events:
			if ev.RequestID != id {
				continue
			}
			switch ev.Kind {
			case chatsession.EventFragment:
				received += len(ev.Fragment)
				if r.md != nil {
					fmt.Fprintf(out, "\r%s %s", AssistantStyle.Render("assistant"), DimStyle.Render(fmt.Sprintf("receiving %d chars", received)))
				} else {
					fmt.Fprint(out, ev.Fragment)
				}

			case chatsession.EventDone:
				r.finishReply()
				return nil

			case chatsession.EventCanceled:
				r.finishReply()
				fmt.Fprintln(out, WarningStyle.Render("(stopped)"))
				return nil

			case chatsession.EventFailed:
				r.finishReply()
				return ev.Err
			}
		}
	}
}

// finishReply ends the reply line, rendering markdown when enabled.
func (r *chatREPL) finishReply() {
	out := r.env.Stdout
	if r.md == nil {
		fmt.Fprintln(out)
		return
	}

	msg := r.lastAssistant()
	fmt.Fprint(out, "\r\033[K")
	fmt.Fprintln(out, AssistantStyle.Render("assistant"))
	if msg != nil && msg.Content != "" {
		fmt.Fprintln(out, strings.TrimRight(r.md.Render(msg.Content, r.width-2), "\n"))
	}
}

func (r *chatREPL) lastAssistant() *model.Message {
	msgs := r.d.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == model.RoleAssistant {
			return &msgs[i]
		}
	}
	return nil
}
