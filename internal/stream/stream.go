// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
)

// =============================================================================
// TYPES
// =============================================================================

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation turn sent to the backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is everything a transport needs to open a stream.
type Request struct {
	// ID correlates the stream with the session that opened it.
	ID string

	// Messages is the full history, oldest first.
	Messages []Message

	// Context is passed through to the backend untouched. It must be a JSON
	// object or empty.
	Context json.RawMessage
}

// Transport opens streams.
type Transport interface {
	Open(ctx context.Context, req Request) (Handle, error)
}

// Handle is one in-flight stream.
type Handle interface {
	// ID returns the request id the handle was opened for.
	ID() string

	// Next blocks for the next fragment. It returns io.EOF once the stream
	// is done, a *Error if the backend failed, ErrCanceled after Cancel, or
	// ctx.Err() if ctx ends first.
	Next(ctx context.Context) (string, error)

	// Cancel stops delivery and releases the stream's resources.
	Cancel()
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrCanceled is returned by Next after Cancel.
var ErrCanceled = errors.New("stream canceled")

// ReasonUnfinished is the Error reason for a body that ended before the
// backend sent its finish or error part.
const ReasonUnfinished = "stream ended without finish"

// Error is a backend or transport failure that ended a stream.
type Error struct {
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return "stream: " + e.Reason + ": " + e.Cause.Error()
	}
	return "stream: " + e.Reason
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsStreamError reports whether err is or wraps a *Error.
func IsStreamError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}

// =============================================================================
// PIPE HANDLE
// =============================================================================

// Producer writes fragments through emit until the stream ends. emit
// returns false once the handle is cancelled; the producer should return
// promptly after that.
type Producer func(ctx context.Context, emit func(string) bool) error

// pipe is a Handle fed by a Producer goroutine over an unbuffered channel,
// so nothing is read from the backend ahead of the consumer.
type pipe struct {
	id     string
	frags  chan string
	ctx    context.Context
	cancel context.CancelFunc

	once     sync.Once
	canceled chan struct{}

	// err is written before frags is closed.
	err error
}

// NewHandle starts produce on its own goroutine and returns a Handle over
// its output. The producer's context ends when parent ends or the handle is
// cancelled.
func NewHandle(parent context.Context, id string, produce Producer) Handle {
	ctx, cancel := context.WithCancel(parent)
	p := &pipe{
		id:       id,
		frags:    make(chan string),
		ctx:      ctx,
		cancel:   cancel,
		canceled: make(chan struct{}),
	}
	go p.run(produce)
	return p
}

func (p *pipe) run(produce Producer) {
	defer close(p.frags)
	p.err = produce(p.ctx, p.emit)
}

func (p *pipe) emit(frag string) bool {
	if frag == "" {
		return p.ctx.Err() == nil
	}
	select {
	case p.frags <- frag:
		return true
	case <-p.ctx.Done():
		return false
	}
}

func (p *pipe) ID() string { return p.id }

func (p *pipe) Next(ctx context.Context) (string, error) {
	if p.isCanceled() {
		return "", ErrCanceled
	}

	select {
	case frag, ok := <-p.frags:
		if p.isCanceled() {
			return "", ErrCanceled
		}
		if !ok {
			return "", p.final()
		}
		return frag, nil
	case <-p.canceled:
		return "", ErrCanceled
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// final converts the producer's result into Next's terminal error.
func (p *pipe) final() error {
	switch {
	case p.err == nil:
		return io.EOF
	case errors.Is(p.err, context.Canceled) && p.isCanceled():
		return ErrCanceled
	case IsStreamError(p.err):
		return p.err
	}
	return &Error{Reason: "transport failed", Cause: p.err}
}

func (p *pipe) Cancel() {
	p.once.Do(func() {
		close(p.canceled)
		p.cancel()
	})
}

func (p *pipe) isCanceled() bool {
	select {
	case <-p.canceled:
		return true
	default:
		return false
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// Collect drains h and returns the concatenated text. On error the text
// received so far is returned with it.
func Collect(ctx context.Context, h Handle) (string, error) {
	var b []byte
	for {
		frag, err := h.Next(ctx)
		if errors.Is(err, io.EOF) {
			return string(b), nil
		}
		if err != nil {
			return string(b), err
		}
		b = append(b, frag...)
	}
}

// Func adapts a function to Transport.
type Func func(ctx context.Context, req Request) (Handle, error)

// Open calls f.
func (f Func) Open(ctx context.Context, req Request) (Handle, error) {
	return f(ctx, req)
}
