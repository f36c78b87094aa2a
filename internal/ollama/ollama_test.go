// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// =============================================================================
// STREAM READER TESTS
// =============================================================================

func TestStreamReaderNext(t *testing.T) {
	body := strings.Join([]string{
		`{"model":"m","message":{"role":"assistant","content":"Hel"},"done":false}`,
		``,
		`not json`,
		`{"model":"m","message":{"role":"assistant","content":"lo"},"done":false}`,
		`{"model":"m","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","eval_count":2}`,
		`{"model":"m","message":{"role":"assistant","content":"ignored"},"done":false}`,
	}, "\n")

	r := NewStreamReader(strings.NewReader(body))

	var got strings.Builder
	var last StreamChunk
	for {
		chunk, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		got.WriteString(chunk.Content)
		last = chunk
	}

	if got.String() != "Hello" {
		t.Errorf("Expected content 'Hello', got %q", got.String())
	}
	if !last.Done || last.DoneReason != "stop" {
		t.Errorf("Expected final done chunk, got %+v", last)
	}
	if last.CompletionTokens != 2 {
		t.Errorf("Expected 2 completion tokens, got %d", last.CompletionTokens)
	}
}

func TestStreamReaderErrorLine(t *testing.T) {
	r := NewStreamReader(strings.NewReader(`{"error":"model crashed"}` + "\n"))
	_, err := r.Next()
	if err == nil || !strings.Contains(err.Error(), "model crashed") {
		t.Errorf("Expected model crashed error, got %v", err)
	}
}

// =============================================================================
// CLIENT TESTS
// =============================================================================

func TestOpenChatStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("Expected /api/chat, got %s", r.URL.Path)
		}
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if !req.Stream {
			t.Error("Expected stream=true")
		}
		if req.Model != "test-model" {
			t.Errorf("Expected default model, got %q", req.Model)
		}
		io.WriteString(w, `{"message":{"content":"a"},"done":false}`+"\n")
		io.WriteString(w, `{"message":{"content":"b"},"done":true}`+"\n")
	}))
	defer srv.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL, DefaultModel: "test-model"})

	reader, body, err := c.OpenChatStream(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("OpenChatStream() error = %v", err)
	}
	defer body.Close()

	var got []string
	for {
		chunk, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		got = append(got, chunk.Content)
	}
	if strings.Join(got, "") != "ab" {
		t.Errorf("Expected chunks a,b got %v", got)
	}
}

func TestOpenChatStreamModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL})
	_, _, err := c.OpenChatStream(context.Background(), ChatRequest{})
	if !IsModelNotFound(err) {
		t.Errorf("Expected model not found, got %v", err)
	}
}

func TestOpenChatStreamServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":"out of memory"}`)
	}))
	defer srv.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL})
	_, _, err := c.OpenChatStream(context.Background(), ChatRequest{})
	if err == nil || !strings.Contains(err.Error(), "out of memory") {
		t.Errorf("Expected server error message, got %v", err)
	}
}

func TestCheckRunningUnreachable(t *testing.T) {
	c := NewClientWithConfig(&ClientConfig{BaseURL: "http://127.0.0.1:1"})
	if err := c.CheckRunning(context.Background()); !IsNotRunning(err) {
		t.Errorf("Expected not running, got %v", err)
	}
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"models":[{"name":"qwen2.5-coder:7b","size":42}]}`)
	}))
	defer srv.Close()

	models, err := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL}).ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(models) != 1 || models[0].Name != "qwen2.5-coder:7b" {
		t.Errorf("Unexpected models: %+v", models)
	}
}

func TestClientErrorUnwrap(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	err := &ClientError{Type: ErrTypeConnection, Message: "read failed", Cause: cause}
	if err.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}
	if err.Error() != "read failed: unexpected EOF" {
		t.Errorf("Unexpected message %q", err.Error())
	}
}
