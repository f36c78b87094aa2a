// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatsession

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/aideck/internal/model"
	"github.com/jeranaias/aideck/internal/stream"
)

// =============================================================================
// TEST TRANSPORT
// =============================================================================

// script feeds one handle from the test.
type script struct {
	frags chan string
	end   chan error
}

func newScript() *script {
	return &script{frags: make(chan string, 16), end: make(chan error, 1)}
}

func (s *script) produce(ctx context.Context, emit func(string) bool) error {
	for {
		select {
		case f := <-s.frags:
			if !emit(f) {
				return ctx.Err()
			}
		case err := <-s.end:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

type fakeTransport struct {
	mu       sync.Mutex
	requests []stream.Request
	scripts  []*script
	openErr  error
}

func (f *fakeTransport) Open(ctx context.Context, req stream.Request) (stream.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	s := newScript()
	f.requests = append(f.requests, req)
	f.scripts = append(f.scripts, s)
	return stream.NewHandle(ctx, req.ID, s.produce), nil
}

func (f *fakeTransport) script(i int) *script {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scripts[i]
}

func (f *fakeTransport) request(i int) stream.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[i]
}

func newController(t *testing.T, tr stream.Transport, opts Options) *Controller {
	t.Helper()
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(tr, opts)
}

func lastMessage(c *Controller) model.Message {
	msgs := c.Messages()
	return msgs[len(msgs)-1]
}

func waitState(t *testing.T, c *Controller, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return c.State() == want }, time.Second, 2*time.Millisecond,
		"state never became %s (now %s)", want, c.State())
}

func waitContent(t *testing.T, c *Controller, want string) {
	t.Helper()
	require.Eventually(t, func() bool { return lastMessage(c).Content == want }, time.Second, 2*time.Millisecond)
}

// =============================================================================
// TESTS
// =============================================================================

func TestSubmitStreamsToCompletion(t *testing.T) {
	tr := &fakeTransport{}
	var turns []Turn
	var mu sync.Mutex
	c := newController(t, tr, Options{OnFinish: func(turn Turn) {
		mu.Lock()
		turns = append(turns, turn)
		mu.Unlock()
	}})

	id, err := c.Submit(context.Background(), "  build me a workflow ", nil)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingFirstToken, c.State())
	assert.Equal(t, id, c.ActiveRequestID())

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "build me a workflow", msgs[0].Content)
	assert.Equal(t, model.StatusComplete, msgs[0].Status)
	assert.Equal(t, model.StatusStreaming, msgs[1].Status)

	s := tr.script(0)
	s.frags <- "Hel"
	waitState(t, c, StateStreaming)
	s.frags <- "lo"
	waitContent(t, c, "Hello")
	s.end <- nil

	waitState(t, c, StateIdle)
	last := lastMessage(c)
	assert.Equal(t, "Hello", last.Content)
	assert.Equal(t, model.StatusComplete, last.Status)
	assert.Empty(t, c.ActiveRequestID())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(turns) == 1
	}, time.Second, 2*time.Millisecond)
	mu.Lock()
	assert.Equal(t, OutcomeDone, turns[0].Outcome)
	mu.Unlock()
}

func TestCancelKeepsReceivedFragments(t *testing.T) {
	tr := &fakeTransport{}
	c := newController(t, tr, Options{})

	_, err := c.Submit(context.Background(), "hi", nil)
	require.NoError(t, err)

	s := tr.script(0)
	s.frags <- "par"
	waitContent(t, c, "par")

	assert.True(t, c.Cancel())
	assert.False(t, c.Cancel(), "second cancel is a no-op")

	s.frags <- "tial"
	time.Sleep(20 * time.Millisecond)

	last := lastMessage(c)
	assert.Equal(t, "par", last.Content)
	assert.Equal(t, model.StatusComplete, last.Status)
	assert.True(t, last.Canceled)
	assert.Equal(t, StateIdle, c.State())
}

func TestNewSubmitSupersedesPreviousTurn(t *testing.T) {
	tr := &fakeTransport{}
	c := newController(t, tr, Options{})

	_, err := c.Submit(context.Background(), "first", nil)
	require.NoError(t, err)
	first := tr.script(0)
	first.frags <- "a"
	waitContent(t, c, "a")

	_, err = c.Submit(context.Background(), "second", nil)
	require.NoError(t, err)

	first.frags <- "LATE"
	second := tr.script(1)
	second.frags <- "b"
	second.end <- nil
	waitState(t, c, StateIdle)

	msgs := c.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "a", msgs[1].Content, "superseded reply is kept as complete")
	assert.Equal(t, model.StatusComplete, msgs[1].Status)
	assert.Equal(t, "b", msgs[3].Content, "late fragments never reach the new reply")

	req := tr.request(1)
	require.Len(t, req.Messages, 3, "history carries prior turns")
	assert.Equal(t, "second", req.Messages[2].Content)
}

func TestStreamErrorPreservesPartial(t *testing.T) {
	tr := &fakeTransport{}
	c := newController(t, tr, Options{})

	_, err := c.Submit(context.Background(), "hi", nil)
	require.NoError(t, err)

	s := tr.script(0)
	s.frags <- "par"
	waitContent(t, c, "par")
	s.end <- errors.New("upstream 500")

	waitState(t, c, StateError)
	last := lastMessage(c)
	assert.Equal(t, "par", last.Content)
	assert.True(t, last.Failed)
	assert.True(t, stream.IsStreamError(c.Err()))

	_, err = c.Submit(context.Background(), "retry", nil)
	require.NoError(t, err, "a failed turn does not block the next one")
	assert.Equal(t, StateAwaitingFirstToken, c.State())
}

func TestSubmitRejectsBlankInput(t *testing.T) {
	tr := &fakeTransport{}
	c := newController(t, tr, Options{})

	_, err := c.Submit(context.Background(), " \n\t ", nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Empty(t, c.Messages())
	assert.Empty(t, tr.requests)
}

func TestSubmitOpenFailure(t *testing.T) {
	tr := &fakeTransport{openErr: errors.New("bad context")}
	c := newController(t, tr, Options{})

	_, err := c.Submit(context.Background(), "hi", nil)
	require.Error(t, err)
	assert.True(t, stream.IsStreamError(err))
	assert.Equal(t, StateError, c.State())
	assert.True(t, lastMessage(c).Failed)
}

func TestSubmitPassesContextThrough(t *testing.T) {
	tr := &fakeTransport{}
	c := newController(t, tr, Options{})

	opaque := json.RawMessage(`{"workflowDefinition":{"summary":"x"}}`)
	_, err := c.Submit(context.Background(), "hi", opaque)
	require.NoError(t, err)

	assert.JSONEq(t, string(opaque), string(tr.request(0).Context))
	c.Cancel()
}

func TestResetClearsConversation(t *testing.T) {
	tr := &fakeTransport{}
	var events []EventKind
	var mu sync.Mutex
	c := newController(t, tr, Options{OnEvent: func(ev Event) {
		mu.Lock()
		events = append(events, ev.Kind)
		mu.Unlock()
	}})

	_, err := c.Submit(context.Background(), "hi", nil)
	require.NoError(t, err)
	c.Reset()

	assert.Empty(t, c.Messages())
	assert.Equal(t, StateIdle, c.State())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []EventKind{EventSubmitted, EventCanceled, EventReset}, events)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "awaiting_first_token", StateAwaitingFirstToken.String())
	assert.True(t, StateStreaming.Active())
	assert.False(t, StateError.Active())
}
