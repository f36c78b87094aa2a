// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jeranaias/aideck/internal/logging"
	"github.com/jeranaias/aideck/internal/ollama"
)

func TestWorkflowContextFollowsFile(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.yml")
	second := filepath.Join(dir, "second.yml")
	if err := os.WriteFile(first, []byte("id: first\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(second, []byte("id: second\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	current := ""
	ctx := workflowContext(func() string { return current }, logging.Discard())

	if got := ctx(); got != nil {
		t.Errorf("no workflow file: got %s, want nil", got)
	}

	current = first
	if got := string(ctx()); !strings.Contains(got, "first") {
		t.Errorf("first file: got %s", got)
	}

	current = second
	if got := string(ctx()); !strings.Contains(got, "second") || strings.Contains(got, "first") {
		t.Errorf("after switching files: got %s", got)
	}

	// A failed read keeps the last good context of the same file.
	if err := os.Remove(second); err != nil {
		t.Fatal(err)
	}
	if got := string(ctx()); !strings.Contains(got, "second") {
		t.Errorf("after remove: got %s", got)
	}

	// It never carries one file's context over to another.
	current = filepath.Join(dir, "missing.yml")
	if got := ctx(); got != nil {
		t.Errorf("missing file: got %s, want nil", got)
	}
}

func ollamaServer(t *testing.T, tags string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			io.WriteString(w, "Ollama is running")
		case "/api/tags":
			io.WriteString(w, tags)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaProbe(t *testing.T) {
	srv := ollamaServer(t, `{"models":[{"name":"llama3:latest"},{"name":"qwen2.5-coder:7b"}]}`)
	client := ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: srv.URL})

	tests := []struct {
		model        string
		wantNotFound bool
	}{
		{"qwen2.5-coder:7b", false},
		{"llama3", false},
		{"", false},
		{"mistral", true},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			err := ollamaProbe(client, srv.URL, tt.model)(context.Background())
			if tt.wantNotFound {
				if !ollama.IsModelNotFound(err) {
					t.Fatalf("probe error = %v, want model not found", err)
				}
				if !strings.Contains(err.Error(), "ollama pull "+tt.model) {
					t.Errorf("error %q should name the pull command", err)
				}
				return
			}
			if err != nil {
				t.Errorf("probe error = %v", err)
			}
		})
	}
}

func TestOllamaProbeNotRunning(t *testing.T) {
	url := "http://127.0.0.1:1"
	client := ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: url})

	err := ollamaProbe(client, url, "llama3")(context.Background())
	if !ollama.IsNotRunning(err) {
		t.Fatalf("probe error = %v, want not running", err)
	}
	if !strings.Contains(err.Error(), "ollama serve") || !strings.Contains(err.Error(), url) {
		t.Errorf("error %q should say how to start ollama", err)
	}
}

func TestOllamaProbeTagsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		io.WriteString(w, "Ollama is running")
	}))
	defer srv.Close()
	client := ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: srv.URL})

	err := ollamaProbe(client, srv.URL, "llama3")(context.Background())
	var clientErr *ollama.ClientError
	if !errors.As(err, &clientErr) || ollama.IsModelNotFound(err) {
		t.Errorf("probe error = %v, want a list failure", err)
	}
}
