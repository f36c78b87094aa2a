// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dashboard is the single entry point the user interfaces drive.
// It owns the settings registry, the stats poller, the chat controller,
// and the usage recorder, and keeps them in step.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/aideck/internal/chatsession"
	"github.com/jeranaias/aideck/internal/model"
	"github.com/jeranaias/aideck/internal/poller"
	"github.com/jeranaias/aideck/internal/proposal"
	"github.com/jeranaias/aideck/internal/settings"
	"github.com/jeranaias/aideck/internal/stream"
	"github.com/jeranaias/aideck/internal/telemetry"
)

// Backend is the AI backend the dashboard reads from and writes to.
type Backend interface {
	poller.Fetcher
	settings.Writer
}

// Options configures a Dashboard. Zero values get defaults.
type Options struct {
	Backend   Backend
	Transport stream.Transport

	Debounce     time.Duration
	PollInterval time.Duration

	// ChatContext supplies the opaque context sent with each chat turn.
	ChatContext func() json.RawMessage

	// Probe checks the chat backend during Open. Optional.
	Probe func(ctx context.Context) error

	// Recorder counts activity. Optional.
	Recorder *telemetry.Recorder

	// OnConfig receives every config change.
	OnConfig func(settings.AlgorithmConfig)
	// OnWrite receives every confirmed write outcome.
	OnWrite func(settings.WriteResult)
	// OnChat receives every chat event.
	OnChat func(chatsession.Event)
	// OnPoll receives every poll outcome.
	OnPoll func(n int, err error)

	Logger *slog.Logger
}

// Dashboard wires the settings and chat cores together.
type Dashboard struct {
	registry *settings.Registry
	poller   *poller.Poller
	chat     *chatsession.Controller
	recorder *telemetry.Recorder
	logger   *slog.Logger

	chatContext func() json.RawMessage
	probe       func(ctx context.Context) error

	// ctx outlives individual calls; debounced writes and chat streams
	// run under it.
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
}

// New builds a dashboard. Nothing is fetched until Open or StartPolling.
func New(opts Options) *Dashboard {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	d := &Dashboard{
		recorder:    opts.Recorder,
		logger:      opts.Logger,
		chatContext: opts.ChatContext,
		probe:       opts.Probe,
		ctx:         ctx,
		cancel:      cancel,
	}

	d.registry = settings.NewRegistry(opts.Backend, settings.StoreOptions{
		Debounce: opts.Debounce,
		Context:  ctx,
		Logger:   opts.Logger,
		OnChange: opts.OnConfig,
		OnWrite: func(r settings.WriteResult) {
			if d.recorder != nil {
				d.recorder.RecordWrite(ctx, r.AlgorithmID, r.OK())
			}
			if opts.OnWrite != nil {
				opts.OnWrite(r)
			}
		},
	})

	d.poller = poller.New(opts.Backend, d.registry, poller.Config{
		Interval: opts.PollInterval,
		Logger:   opts.Logger,
		Observer: func(n int, err error) {
			if d.recorder != nil {
				d.recorder.RecordPoll(ctx, n, err)
			}
			if opts.OnPoll != nil {
				opts.OnPoll(n, err)
			}
		},
	})

	d.chat = chatsession.New(opts.Transport, chatsession.Options{
		Logger:  opts.Logger,
		OnEvent: opts.OnChat,
		OnFinish: func(t chatsession.Turn) {
			if d.recorder == nil {
				return
			}
			d.recorder.RecordTurn(ctx, string(t.Outcome), t.Chars)
			d.recorder.Capture(ctx, telemetry.EventChatMessageSubmitted)
		},
	})
	return d
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Open loads the first snapshot and probes the chat backend concurrently.
// A probe failure is logged and does not fail Open; chat turns will report
// it themselves.
func (d *Dashboard) Open(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.poller.Refresh(gctx)
	})
	if d.probe != nil {
		g.Go(func() error {
			if err := d.probe(gctx); err != nil {
				d.logger.Warn("dashboard: chat backend unavailable", "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// StartPolling begins background refreshes. It is a no-op while running.
func (d *Dashboard) StartPolling() error {
	if d.ctx.Err() != nil {
		return settings.ErrClosed
	}
	d.poller.Start(d.ctx)
	return nil
}

// StopPolling stops background refreshes and waits for the loop to exit.
func (d *Dashboard) StopPolling() error {
	d.poller.Stop()
	return nil
}

// Polling reports whether background refreshes are running.
func (d *Dashboard) Polling() bool {
	return d.poller.Running()
}

// Refresh fetches one snapshot now.
func (d *Dashboard) Refresh(ctx context.Context) error {
	return d.poller.Refresh(ctx)
}

// SetPollInterval changes the poll interval.
func (d *Dashboard) SetPollInterval(iv time.Duration) {
	d.poller.SetInterval(iv)
}

// SetDebounce changes the quiet window for future edits.
func (d *Dashboard) SetDebounce(w time.Duration) {
	d.registry.SetDebounce(w)
}

// Close stops polling, cancels the chat turn, and drops pending debounced
// writes.
func (d *Dashboard) Close() {
	d.closeOnce.Do(func() {
		d.poller.Stop()
		d.chat.Cancel()
		d.registry.Close()
		d.cancel()
	})
}

// =============================================================================
// SETTINGS
// =============================================================================

// Configs returns every known algorithm config in backend order.
func (d *Dashboard) Configs() []settings.AlgorithmConfig {
	return d.registry.Configs()
}

// Config returns one algorithm's config.
func (d *Dashboard) Config(algorithmID string) (settings.AlgorithmConfig, error) {
	s, err := d.registry.MustGet(algorithmID)
	if err != nil {
		return settings.AlgorithmConfig{}, err
	}
	return s.Config(), nil
}

// PendingEdits returns the unconfirmed edits of one algorithm.
func (d *Dashboard) PendingEdits(algorithmID string) (map[string]settings.PendingEdit, error) {
	s, err := d.registry.MustGet(algorithmID)
	if err != nil {
		return nil, err
	}
	return s.PendingEdits(), nil
}

// SubmitEdit applies a setting edit. Boolean edits are written at once and
// their error returned; other kinds are debounced and report through
// OnWrite.
func (d *Dashboard) SubmitEdit(ctx context.Context, algorithmID, name string, value any) error {
	s, err := d.registry.MustGet(algorithmID)
	if err != nil {
		return err
	}
	return s.ApplyLocalEdit(ctx, name, value)
}

// SubmitEditText parses text according to the setting's kind and submits
// it.
func (d *Dashboard) SubmitEditText(ctx context.Context, algorithmID, name, text string) error {
	s, err := d.registry.MustGet(algorithmID)
	if err != nil {
		return err
	}
	cur, _, ok := s.Config().Setting(name)
	if !ok {
		return &settings.ValidationError{Setting: name, Value: text, Reason: "unknown setting"}
	}
	v, err := settings.ParseValue(cur.Kind, text)
	if err != nil {
		return &settings.ValidationError{Setting: name, Value: text, Reason: err.Error()}
	}
	return s.ApplyLocalEdit(ctx, name, v)
}

// NudgeSetting moves a numeric setting by steps slider increments.
func (d *Dashboard) NudgeSetting(ctx context.Context, algorithmID, name string, steps int) error {
	s, err := d.registry.MustGet(algorithmID)
	if err != nil {
		return err
	}
	cur, _, ok := s.Config().Setting(name)
	if !ok {
		return &settings.ValidationError{Setting: name, Reason: "unknown setting"}
	}
	v, err := cur.Nudge(steps)
	if err != nil {
		return err
	}
	return s.ApplyLocalEdit(ctx, name, v)
}

// ToggleSetting flips a boolean setting.
func (d *Dashboard) ToggleSetting(ctx context.Context, algorithmID, name string) error {
	s, err := d.registry.MustGet(algorithmID)
	if err != nil {
		return err
	}
	cur, _, ok := s.Config().Setting(name)
	if !ok || cur.Kind != settings.KindBool {
		return &settings.ValidationError{Setting: name, Value: cur.Value, Reason: "not a boolean setting"}
	}
	b, _ := cur.Value.(bool)
	return s.ApplyLocalEdit(ctx, name, !b)
}

// FlushEdits writes every pending edit of an algorithm now instead of
// waiting for the debounce window.
func (d *Dashboard) FlushEdits(ctx context.Context, algorithmID string) error {
	s, err := d.registry.MustGet(algorithmID)
	if err != nil {
		return err
	}
	pending := s.PendingEdits()
	if len(pending) == 0 {
		return nil
	}
	names := make([]string, 0, len(pending))
	for name := range pending {
		names = append(names, name)
	}
	return s.ConfirmKeys(ctx, names...)
}

// ProposalDiff lists what adopting the algorithm's proposal would change.
func (d *Dashboard) ProposalDiff(algorithmID string) ([]proposal.Change, error) {
	cfg, err := d.Config(algorithmID)
	if err != nil {
		return nil, err
	}
	if !proposal.HasProposal(cfg) {
		return nil, proposal.ErrNoProposal
	}
	return proposal.Diff(cfg), nil
}

// AdoptProposal replaces the algorithm's settings with its proposal and
// writes them at once.
func (d *Dashboard) AdoptProposal(ctx context.Context, algorithmID string) error {
	s, err := d.registry.MustGet(algorithmID)
	if err != nil {
		return err
	}
	if err := proposal.Adopt(ctx, s); err != nil {
		return fmt.Errorf("adopt %s: %w", algorithmID, err)
	}
	return nil
}

// =============================================================================
// CHAT
// =============================================================================

// SubmitChatTurn starts a chat turn with the current chat context and
// returns its request id.
func (d *Dashboard) SubmitChatTurn(text string) (string, error) {
	var opaque json.RawMessage
	if d.chatContext != nil {
		opaque = d.chatContext()
	}
	return d.chat.Submit(d.ctx, text, opaque)
}

// CancelChatTurn stops the turn in flight, keeping its partial reply.
func (d *Dashboard) CancelChatTurn() error {
	if !d.chat.Cancel() {
		return ErrNoActiveTurn
	}
	return nil
}

// ResetChat clears the conversation.
func (d *Dashboard) ResetChat() error {
	d.chat.Reset()
	return nil
}

// ChatState returns the chat controller's state and last error.
func (d *Dashboard) ChatState() (chatsession.State, error) {
	return d.chat.State(), d.chat.Err()
}

// Messages returns a snapshot of the conversation.
func (d *Dashboard) Messages() []model.Message {
	return d.chat.Messages()
}

// Stats returns the session usage counters, or a zero value without a
// recorder.
func (d *Dashboard) Stats() telemetry.SessionStats {
	if d.recorder == nil {
		return telemetry.SessionStats{}
	}
	return d.recorder.Stats()
}
