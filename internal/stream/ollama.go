// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/jeranaias/aideck/internal/ollama"
)

// =============================================================================
// OLLAMA TRANSPORT
// =============================================================================

// SystemPromptFunc builds a system prompt from a request's opaque context.
type SystemPromptFunc func(context json.RawMessage) (string, error)

// OllamaTransport streams replies from a local Ollama model.
type OllamaTransport struct {
	Client *ollama.Client
	Model  string

	// SystemPrompt, when set, is prepended as a system message.
	SystemPrompt SystemPromptFunc

	Options *ollama.Options
}

// Open returns a handle that streams the model's reply.
func (t *OllamaTransport) Open(ctx context.Context, req Request) (Handle, error) {
	msgs := make([]ollama.Message, 0, len(req.Messages)+1)
	if t.SystemPrompt != nil {
		prompt, err := t.SystemPrompt(req.Context)
		if err != nil {
			return nil, err
		}
		if prompt != "" {
			msgs = append(msgs, ollama.Message{Role: RoleSystem, Content: prompt})
		}
	}
	for _, m := range req.Messages {
		msgs = append(msgs, ollama.Message{Role: m.Role, Content: m.Content})
	}

	chat := ollama.ChatRequest{Model: t.Model, Messages: msgs, Options: t.Options}
	return NewHandle(ctx, req.ID, func(ctx context.Context, emit func(string) bool) error {
		reader, body, err := t.Client.OpenChatStream(ctx, chat)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if ollama.IsModelNotFound(err) {
				return &Error{Reason: "model not installed", Cause: err}
			}
			return &Error{Reason: "open model stream", Cause: err}
		}
		defer body.Close()

		for {
			chunk, err := reader.Next()
			if errors.Is(err, io.EOF) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return &Error{Reason: ReasonUnfinished}
			}
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return &Error{Reason: "model stream", Cause: err}
			}
			if !emit(chunk.Content) {
				return ctx.Err()
			}
			if chunk.Done {
				return nil
			}
		}
	}), nil
}
