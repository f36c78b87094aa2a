// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chatsession drives one assistant conversation over a streaming
// transport.
//
// A Controller owns the conversation and at most one open stream. Submitting
// a new turn cancels the previous stream first; fragments that arrive late
// from a superseded stream are dropped by request id and never reach the
// new reply.
package chatsession

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/aideck/internal/model"
	"github.com/jeranaias/aideck/internal/stream"
)

// ErrEmptyInput is returned by Submit for blank text.
var ErrEmptyInput = errors.New("message is empty")

// =============================================================================
// STATE
// =============================================================================

// State is the controller's position in the turn lifecycle.
type State int

const (
	StateIdle State = iota
	StateAwaitingFirstToken
	StateStreaming
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingFirstToken:
		return "awaiting_first_token"
	case StateStreaming:
		return "streaming"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Active reports whether a turn is in flight.
func (s State) Active() bool {
	return s == StateAwaitingFirstToken || s == StateStreaming
}

// =============================================================================
// EVENTS
// =============================================================================

// EventKind identifies what changed.
type EventKind int

const (
	EventSubmitted EventKind = iota
	EventFragment
	EventDone
	EventCanceled
	EventFailed
	EventReset
)

// Event reports a change to the conversation. Renderers re-read Messages on
// each event; the fields identify the turn.
type Event struct {
	Kind      EventKind
	RequestID string
	MessageID string
	Fragment  string
	State     State
	Err       error
}

// Outcome is how a turn ended.
type Outcome string

const (
	OutcomeDone     Outcome = "done"
	OutcomeCanceled Outcome = "canceled"
	OutcomeFailed   Outcome = "failed"
)

// Turn summarizes a finished turn.
type Turn struct {
	RequestID string
	MessageID string
	Outcome   Outcome
	Chars     int
}

// Options configures a Controller.
type Options struct {
	Logger *slog.Logger

	// OnEvent receives every change. It is called without the controller
	// lock held and may call back into the controller.
	OnEvent func(Event)

	// OnFinish is called once per turn when it ends.
	OnFinish func(Turn)
}

// =============================================================================
// CONTROLLER
// =============================================================================

// turn is the in-flight request.
type turn struct {
	id        string
	messageID string
	handle    stream.Handle
}

// Controller is the state machine of one conversation view.
type Controller struct {
	transport stream.Transport
	logger    *slog.Logger
	onEvent   func(Event)
	onFinish  func(Turn)

	mu      sync.Mutex
	conv    *model.Conversation
	state   State
	active  *turn
	lastErr error
}

// New creates an idle controller.
func New(t stream.Transport, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Controller{
		transport: t,
		logger:    opts.Logger,
		onEvent:   opts.OnEvent,
		onFinish:  opts.OnFinish,
		conv:      model.NewConversation(),
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error that moved the controller into StateError.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// ActiveRequestID returns the in-flight request id, or "".
func (c *Controller) ActiveRequestID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return ""
	}
	return c.active.id
}

// Messages returns a snapshot of the conversation.
func (c *Controller) Messages() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conv.Snapshot()
}

// Submit starts a new turn with text and the caller's opaque context, and
// returns its request id. Any turn in flight is cancelled first and its
// partial reply kept. ctx bounds the whole stream, not just this call.
func (c *Controller) Submit(ctx context.Context, text string, opaque json.RawMessage) (string, error) {
	text = norm.NFC.String(strings.TrimSpace(text))
	if text == "" {
		return "", ErrEmptyInput
	}

	c.mu.Lock()
	prev, prevTurn := c.detachLocked()
	c.conv.AddUserMessage(text)
	history := toStreamMessages(c.conv.History())
	placeholder := c.conv.AddAssistantPlaceholder()

	t := &turn{id: uuid.New().String(), messageID: placeholder.ID}
	c.active = t
	c.state = StateAwaitingFirstToken
	c.lastErr = nil
	c.mu.Unlock()

	if prev != nil {
		c.closeTurn(prev, prevTurn)
	}
	c.emit(Event{Kind: EventSubmitted, RequestID: t.id, MessageID: t.messageID, State: StateAwaitingFirstToken})

	h, err := c.transport.Open(ctx, stream.Request{ID: t.id, Messages: history, Context: opaque})
	if err != nil {
		if !stream.IsStreamError(err) {
			err = &stream.Error{Reason: "open stream", Cause: err}
		}
		c.finish(t.id, err)
		return t.id, err
	}

	c.mu.Lock()
	if c.active != t {
		// Cancelled or superseded while opening.
		c.mu.Unlock()
		h.Cancel()
		return t.id, nil
	}
	t.handle = h
	c.mu.Unlock()

	go c.pump(t.id, h)
	return t.id, nil
}

// Cancel stops the turn in flight, keeping its partial reply as a complete
// message. It reports whether there was anything to cancel.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	t, summary := c.detachLocked()
	c.mu.Unlock()

	if t == nil {
		return false
	}
	c.closeTurn(t, summary)
	return true
}

// Reset cancels any turn in flight and clears the conversation.
func (c *Controller) Reset() {
	c.mu.Lock()
	t, summary := c.detachLocked()
	c.conv.Clear()
	c.state = StateIdle
	c.lastErr = nil
	c.mu.Unlock()

	if t != nil {
		c.closeTurn(t, summary)
	}
	c.emit(Event{Kind: EventReset, State: StateIdle})
}

// detachLocked finalizes the active turn's message as cancelled and clears
// it. The caller must invoke closeTurn on the result after unlocking.
func (c *Controller) detachLocked() (*turn, Turn) {
	t := c.active
	if t == nil {
		return nil, Turn{}
	}
	c.active = nil
	c.state = StateIdle

	summary := Turn{RequestID: t.id, MessageID: t.messageID, Outcome: OutcomeCanceled}
	if msg := c.conv.Get(t.messageID); msg != nil {
		msg.Cancel()
		summary.Chars = len(msg.Content)
	}
	return t, summary
}

// closeTurn releases a detached turn's stream and reports it.
func (c *Controller) closeTurn(t *turn, summary Turn) {
	if t.handle != nil {
		t.handle.Cancel()
	}
	c.logger.Debug("chat: turn canceled", "request_id", t.id)
	c.emit(Event{Kind: EventCanceled, RequestID: t.id, MessageID: t.messageID, State: StateIdle})
	c.report(summary)
}

// pump moves fragments from h into the turn's message until the stream ends.
func (c *Controller) pump(id string, h stream.Handle) {
	for {
		frag, err := h.Next(context.Background())
		if err != nil {
			c.finish(id, err)
			return
		}
		if !c.apply(id, frag) {
			h.Cancel()
			return
		}
	}
}

// apply appends frag to the turn's message. It reports false when the turn
// is no longer active, in which case frag is dropped.
func (c *Controller) apply(id, frag string) bool {
	c.mu.Lock()
	t := c.active
	if t == nil || t.id != id {
		c.mu.Unlock()
		return false
	}
	msg := c.conv.Get(t.messageID)
	if msg == nil {
		c.mu.Unlock()
		return false
	}
	msg.AppendToken(frag)
	c.state = StateStreaming
	c.mu.Unlock()

	c.emit(Event{Kind: EventFragment, RequestID: id, MessageID: t.messageID, Fragment: frag, State: StateStreaming})
	return true
}

// finish ends the turn id with the stream's terminal error.
func (c *Controller) finish(id string, err error) {
	if errors.Is(err, stream.ErrCanceled) {
		return
	}

	c.mu.Lock()
	t := c.active
	if t == nil || t.id != id {
		c.mu.Unlock()
		return
	}
	c.active = nil

	msg := c.conv.Get(t.messageID)
	summary := Turn{RequestID: id, MessageID: t.messageID}
	ev := Event{RequestID: id, MessageID: t.messageID}

	if errors.Is(err, io.EOF) {
		if msg != nil {
			msg.FinalizeStream()
		}
		c.state = StateIdle
		summary.Outcome = OutcomeDone
		ev.Kind = EventDone
	} else {
		if msg != nil {
			msg.Fail(err.Error())
		}
		c.state = StateError
		c.lastErr = err
		summary.Outcome = OutcomeFailed
		ev.Kind = EventFailed
		ev.Err = err
	}
	if msg != nil {
		summary.Chars = len(msg.Content)
	}
	ev.State = c.state
	c.mu.Unlock()

	if ev.Err != nil {
		c.logger.Warn("chat: turn failed", "request_id", id, "error", ev.Err)
	} else {
		c.logger.Debug("chat: turn done", "request_id", id, "chars", summary.Chars)
	}
	c.emit(ev)
	c.report(summary)
}

func (c *Controller) emit(ev Event) {
	if c.onEvent != nil {
		c.onEvent(ev)
	}
}

func (c *Controller) report(t Turn) {
	if c.onFinish != nil {
		c.onFinish(t)
	}
}

func toStreamMessages(h []model.HistoryEntry) []stream.Message {
	out := make([]stream.Message, len(h))
	for i, e := range h {
		out[i] = stream.Message{Role: string(e.Role), Content: e.Content}
	}
	return out
}
