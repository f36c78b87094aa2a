// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/aideck/internal/backend"
	"github.com/jeranaias/aideck/internal/settings"
	"github.com/jeranaias/aideck/internal/stream"
)

// =============================================================================
// TOAST TESTS
// =============================================================================

func TestToastManagerNewestFirst(t *testing.T) {
	m := NewToastManager()
	first := m.Add(NewToast(ToastKindStatus, "one"))
	second := m.Add(NewToast(ToastKindStatus, "two"))

	if first == second {
		t.Fatal("ids should be unique")
	}
	toasts := m.Toasts()
	if len(toasts) != 2 || toasts[0].Message != "two" {
		t.Fatalf("Toasts() = %+v, want newest first", toasts)
	}

	m.DismissNewest()
	if got := m.Toasts(); len(got) != 1 || got[0].Message != "one" {
		t.Errorf("after DismissNewest: %+v", got)
	}
}

func TestToastManagerLimit(t *testing.T) {
	m := NewToastManager()
	for i := 0; i < MaxToasts+3; i++ {
		m.Add(NewToast(ToastKindStatus, "x"))
	}
	if got := len(m.Toasts()); got != MaxToasts {
		t.Errorf("len = %d, want %d", got, MaxToasts)
	}
}

func TestToastExpiry(t *testing.T) {
	m := NewToastManager()
	start := time.Now()
	toast := NewToast(ToastKindStatus, "short")
	toast.CreatedAt = start
	m.Add(toast)

	if got := m.Tick(start.Add(time.Second)); len(got) != 1 {
		t.Errorf("toast expired early")
	}
	if got := m.Tick(start.Add(DefaultToastDuration)); len(got) != 0 {
		t.Errorf("toast should expire after its duration")
	}
}

func TestToastForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		ok   bool
		kind ToastKind
	}{
		{"nil", nil, false, 0},
		{"validation", &settings.ValidationError{Setting: "x", Reason: "too big"}, true, ToastKindWarning},
		{"conflict", &backend.ClientError{Type: backend.ErrTypeConflict, Message: "stale"}, true, ToastKindWarning},
		{"stream", &stream.Error{Reason: "model crashed"}, true, ToastKindError},
		{"other", errors.New("dial tcp: refused"), true, ToastKindError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toast, ok := ToastForError(tt.err)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && toast.Kind != tt.kind {
				t.Errorf("kind = %v, want %v", toast.Kind, tt.kind)
			}
		})
	}
}

func TestRenderToastStack(t *testing.T) {
	now := time.Now()
	toasts := []Toast{
		{Message: "newest", Kind: ToastKindError, CreatedAt: now, Duration: time.Minute},
		{Message: "oldest", Kind: ToastKindSuccess, CreatedAt: now, Duration: time.Minute},
	}
	out := RenderToastStack(toasts, 100, now)
	if strings.Index(out, "oldest") > strings.Index(out, "newest") {
		t.Error("oldest toast should render first")
	}
	if RenderToastStack(nil, 100, now) != "" {
		t.Error("empty stack should render nothing")
	}
}

// =============================================================================
// TEXT TESTS
// =============================================================================

func TestTruncate(t *testing.T) {
	if got := Truncate("hello world", 8); got != "hello..." {
		t.Errorf("Truncate = %q", got)
	}
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate = %q", got)
	}
	if w := runewidth.StringWidth(Truncate("日本語テキスト", 7)); w > 7 {
		t.Errorf("wide runes overflowed: width %d", w)
	}
}

func TestPadRight(t *testing.T) {
	if got := PadRight("ab", 5); got != "ab   " {
		t.Errorf("PadRight = %q", got)
	}
}

func TestWrap(t *testing.T) {
	got := Wrap("the quick brown fox jumps", 10)
	for _, line := range strings.Split(got, "\n") {
		if runewidth.StringWidth(line) > 10 {
			t.Errorf("line %q wider than 10", line)
		}
	}
	if !strings.Contains(Wrap("a\n\nb", 10), "\n\n") {
		t.Error("blank lines should be kept")
	}
}

// =============================================================================
// RENDERING TESTS
// =============================================================================

func TestHighlightKeepsText(t *testing.T) {
	out := Highlight("name: threshold\nvalue: 0.5", "yaml")
	if !strings.Contains(out, "threshold") {
		t.Errorf("highlighted output lost content: %q", out)
	}
}

func TestCodeBlockRender(t *testing.T) {
	cb := NewCodeBlock("diff", "- threshold: 0.5\n+ threshold: 0.9\n")
	out := cb.Render()
	if !strings.Contains(out, "diff") {
		t.Error("language caption missing")
	}
	if !strings.Contains(out, "0.9") {
		t.Errorf("diff body missing: %q", out)
	}
}

func TestMarkdownDisabledWraps(t *testing.T) {
	md := NewMarkdown("notty", false)
	out := md.Render("**bold** text", 40)
	if out != "**bold** text" {
		t.Errorf("disabled markdown should pass text through, got %q", out)
	}
}

func TestMarkdownRender(t *testing.T) {
	md := NewMarkdown("notty", true)
	out := md.Render("# Title\n\nSome *text*.", 40)
	if !strings.Contains(out, "Title") || !strings.Contains(out, "text") {
		t.Errorf("markdown output lost content: %q", out)
	}
}
