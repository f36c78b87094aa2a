// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/aideck/internal/assistant"
	"github.com/jeranaias/aideck/internal/ollama"
	"github.com/jeranaias/aideck/internal/server"
	"github.com/jeranaias/aideck/internal/settings"
	"github.com/jeranaias/aideck/internal/stream"
)

// shutdownTimeout bounds how long open chat streams may take to finish.
const shutdownTimeout = 10 * time.Second

// HandleServe runs the sandbox backend and chat route until ctx ends.
func HandleServe(ctx context.Context, args Args, env Env) error {
	cfg := env.Config

	seed := server.DefaultSeed()
	seedFile := args.Flag("seed")
	if seedFile == "" {
		seedFile = cfg.Server.SeedFile
	}
	if seedFile != "" {
		var err error
		if seed, err = server.LoadSeed(seedFile); err != nil {
			return &ConfigError{Err: err}
		}
	}

	addr := args.Flag("addr")
	if addr == "" {
		addr = cfg.Addr()
	}

	srv := server.New(server.Options{
		Addr:      addr,
		Version:   Version,
		Chat:      serverTransport(cfg.Chat.OllamaURL, cfg.Chat.Model),
		Sandbox:   server.NewSandbox(seed),
		APIKey:    cfg.Backend.APIKey,
		RateLimit: cfg.Server.RateLimit,
		RateBurst: cfg.Server.RateBurst,
		Logger:    env.Logger,
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return wrap(CmdServe, "listen", err)
	}
	if !args.Quiet {
		printServeBanner(env, ln.Addr().String(), seed)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(ln)
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// serverTransport streams chat replies from Ollama with the workflow
// assistant's system prompt.
func serverTransport(ollamaURL, model string) stream.Transport {
	client := ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: ollamaURL, DefaultModel: model})
	return &stream.OllamaTransport{
		Client:       client,
		Model:        model,
		SystemPrompt: assistant.SystemPromptJSON,
	}
}

func printServeBanner(env Env, addr string, seed []settings.AlgorithmConfig) {
	out := env.Stdout
	fmt.Fprintf(out, "%s listening on http://%s\n", TitleStyle.Render("aideck serve"), addr)
	fmt.Fprintf(out, "  %s%d algorithm(s)\n", RenderLabel("sandbox"), len(seed))
	fmt.Fprintf(out, "  %s%s (%s)\n", RenderLabel("chat"), env.Config.Chat.Model, env.Config.Chat.OllamaURL)
	if env.Config.Backend.APIKey != "" {
		fmt.Fprintf(out, "  %s%s\n", RenderLabel("auth"), "X-API-KEY required")
	}
}
