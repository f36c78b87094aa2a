// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// EventChatMessageSubmitted is captured once per finished chat turn.
const EventChatMessageSubmitted = "workflow_chat_message_submitted"

// =============================================================================
// SESSION STATS
// =============================================================================

// SessionStats summarizes one dashboard session.
type SessionStats struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"start_time"`

	WritesOK     int `json:"writes_ok"`
	WritesFailed int `json:"writes_failed"`

	Polls      int       `json:"polls"`
	PollErrors int       `json:"poll_errors"`
	LastPoll   time.Time `json:"last_poll"`

	// ChatTurns counts finished turns by outcome.
	ChatTurns map[string]int `json:"chat_turns"`

	Events map[string]int `json:"events"`
}

// =============================================================================
// RECORDER
// =============================================================================

// Recorder counts dashboard activity. It is safe for concurrent use.
type Recorder struct {
	mu    sync.RWMutex
	stats SessionStats

	writes     metric.Int64Counter
	polls      metric.Int64Counter
	configs    metric.Int64Gauge
	turns      metric.Int64Counter
	turnLength metric.Int64Histogram
	events     metric.Int64Counter
}

// NewRecorder creates a recorder that also reports to meter.
func NewRecorder(meter metric.Meter) (*Recorder, error) {
	r := &Recorder{
		stats: SessionStats{
			ID:        uuid.NewString(),
			StartTime: time.Now(),
			ChatTurns: make(map[string]int),
			Events:    make(map[string]int),
		},
	}

	var err error
	if r.writes, err = meter.Int64Counter("aideck.settings.writes",
		metric.WithDescription("Settings writes by result")); err != nil {
		return nil, fmt.Errorf("telemetry: writes counter: %w", err)
	}
	if r.polls, err = meter.Int64Counter("aideck.poll.fetches",
		metric.WithDescription("Backend stats fetches by result")); err != nil {
		return nil, fmt.Errorf("telemetry: polls counter: %w", err)
	}
	if r.configs, err = meter.Int64Gauge("aideck.poll.configs",
		metric.WithDescription("Algorithm configs in the last snapshot")); err != nil {
		return nil, fmt.Errorf("telemetry: configs gauge: %w", err)
	}
	if r.turns, err = meter.Int64Counter("aideck.chat.turns",
		metric.WithDescription("Chat turns by outcome")); err != nil {
		return nil, fmt.Errorf("telemetry: turns counter: %w", err)
	}
	if r.turnLength, err = meter.Int64Histogram("aideck.chat.reply_chars",
		metric.WithDescription("Assistant reply length in characters")); err != nil {
		return nil, fmt.Errorf("telemetry: reply histogram: %w", err)
	}
	if r.events, err = meter.Int64Counter("aideck.events",
		metric.WithDescription("Named product events")); err != nil {
		return nil, fmt.Errorf("telemetry: events counter: %w", err)
	}
	return r, nil
}

// RecordWrite counts one settings write.
func (r *Recorder) RecordWrite(ctx context.Context, algorithmID string, ok bool) {
	r.mu.Lock()
	if ok {
		r.stats.WritesOK++
	} else {
		r.stats.WritesFailed++
	}
	r.mu.Unlock()

	r.writes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("algorithm_id", algorithmID),
		attribute.Bool("ok", ok),
	))
}

// RecordPoll counts one backend fetch that returned n configs.
func (r *Recorder) RecordPoll(ctx context.Context, n int, err error) {
	r.mu.Lock()
	r.stats.Polls++
	if err != nil {
		r.stats.PollErrors++
	} else {
		r.stats.LastPoll = time.Now()
	}
	r.mu.Unlock()

	r.polls.Add(ctx, 1, metric.WithAttributes(attribute.Bool("ok", err == nil)))
	if err == nil {
		r.configs.Record(ctx, int64(n))
	}
}

// RecordTurn counts one finished chat turn.
func (r *Recorder) RecordTurn(ctx context.Context, outcome string, chars int) {
	r.mu.Lock()
	r.stats.ChatTurns[outcome]++
	r.mu.Unlock()

	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	r.turns.Add(ctx, 1, attrs)
	r.turnLength.Record(ctx, int64(chars), attrs)
}

// Capture counts a named product event.
func (r *Recorder) Capture(ctx context.Context, event string) {
	r.mu.Lock()
	r.stats.Events[event]++
	r.mu.Unlock()

	r.events.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}

// Stats returns a copy of the session stats.
func (r *Recorder) Stats() SessionStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := r.stats
	out.ChatTurns = make(map[string]int, len(r.stats.ChatTurns))
	for k, v := range r.stats.ChatTurns {
		out.ChatTurns[k] = v
	}
	out.Events = make(map[string]int, len(r.stats.Events))
	for k, v := range r.stats.Events {
		out.Events[k] = v
	}
	return out
}
