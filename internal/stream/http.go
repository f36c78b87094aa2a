// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// =============================================================================
// HTTP TRANSPORT
// =============================================================================

// HTTPTransport posts the conversation to a chat route and decodes its data
// stream response.
type HTTPTransport struct {
	// URL is the chat route, e.g. http://127.0.0.1:8787/api/ai/chat.
	URL string

	// Client sends the request. It should not set a Timeout; the stream is
	// bounded by its context.
	Client *http.Client

	// Header is added to every request.
	Header http.Header
}

// NewHTTPTransport creates a transport for url.
func NewHTTPTransport(url string) *HTTPTransport {
	return &HTTPTransport{URL: url, Client: &http.Client{}}
}

// Open builds the request body and returns a handle. The HTTP call itself
// happens lazily on the handle's goroutine, so connection failures surface
// from Next as a *Error.
func (t *HTTPTransport) Open(ctx context.Context, req Request) (Handle, error) {
	body, err := EncodeBody(req)
	if err != nil {
		return nil, err
	}

	return NewHandle(ctx, req.ID, func(ctx context.Context, emit func(string) bool) error {
		return t.produce(ctx, body, emit)
	}), nil
}

func (t *HTTPTransport) produce(ctx context.Context, body []byte, emit func(string) bool) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(body))
	if err != nil {
		return &Error{Reason: "build request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, vs := range t.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &Error{Reason: "connect", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		reason := resp.Status
		if s := strings.TrimSpace(string(snippet)); s != "" {
			reason += ": " + s
		}
		return &Error{Reason: reason}
	}

	reader := NewDataStreamReader(resp.Body)
	for {
		part, err := reader.Next()
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
			return &Error{Reason: "read stream", Cause: err}
		}

		switch part.Code {
		case PartText:
			if !emit(part.Text) {
				return ctx.Err()
			}
		case PartError:
			return &Error{Reason: part.Text}
		case PartFinish:
			return nil
		}
	}
}

// EncodeBody merges the message history into the request's opaque context
// object, producing the JSON body the chat route expects.
func EncodeBody(req Request) ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(req.Context)) > 0 {
		if err := json.Unmarshal(req.Context, &fields); err != nil {
			return nil, fmt.Errorf("stream: context must be a JSON object: %w", err)
		}
	}

	msgs, err := json.Marshal(req.Messages)
	if err != nil {
		return nil, err
	}
	fields["messages"] = msgs
	if req.ID != "" {
		id, _ := json.Marshal(req.ID)
		fields["id"] = id
	}
	return json.Marshal(fields)
}

// DecodeBody splits a chat route body back into messages and the remaining
// context object.
func DecodeBody(body []byte) (Request, error) {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return Request{}, fmt.Errorf("stream: decode body: %w", err)
	}

	var req Request
	if raw, ok := fields["messages"]; ok {
		if err := json.Unmarshal(raw, &req.Messages); err != nil {
			return Request{}, fmt.Errorf("stream: decode messages: %w", err)
		}
		delete(fields, "messages")
	}
	if raw, ok := fields["id"]; ok {
		_ = json.Unmarshal(raw, &req.ID)
		delete(fields, "id")
	}

	ctxJSON, err := json.Marshal(fields)
	if err != nil {
		return Request{}, err
	}
	req.Context = ctxJSON
	return req, nil
}
