// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package proposal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/aideck/internal/settings"
)

type recordingWriter struct {
	mu    sync.Mutex
	calls []settings.AlgorithmConfig
	err   error
}

func (w *recordingWriter) UpdateAlgorithmSettings(_ context.Context, _ string, cfg settings.AlgorithmConfig) (settings.AlgorithmConfig, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, cfg)
	if w.err != nil {
		return settings.AlgorithmConfig{}, w.err
	}
	return cfg, nil
}

func thresholdConfig(active, proposed float64) settings.AlgorithmConfig {
	return settings.AlgorithmConfig{
		AlgorithmID: "anomaly",
		Settings:    []settings.Setting{{Name: "threshold", Kind: settings.KindFloat, Value: active}},
		Proposed:    []settings.Setting{{Name: "threshold", Kind: settings.KindFloat, Value: proposed}},
	}
}

func TestHasProposal(t *testing.T) {
	assert.True(t, HasProposal(thresholdConfig(0.5, 0.9)))
	assert.False(t, HasProposal(thresholdConfig(0.5, 0.5)), "equal values are not a proposal")

	cfg := thresholdConfig(0.5, 0.9)
	cfg.Proposed = nil
	assert.False(t, HasProposal(cfg))
}

func TestHasProposalIgnoresOrder(t *testing.T) {
	cfg := settings.AlgorithmConfig{
		Settings: []settings.Setting{{Name: "a", Value: 1.0}, {Name: "b", Value: true}},
		Proposed: []settings.Setting{{Name: "b", Value: true}, {Name: "a", Value: 1.0}},
	}
	assert.False(t, HasProposal(cfg))
}

func TestDiff(t *testing.T) {
	changes := Diff(thresholdConfig(0.5, 0.9))
	require.Len(t, changes, 1)
	assert.Equal(t, Change{Name: "threshold", Old: 0.5, New: 0.9}, changes[0])
	assert.Equal(t, "threshold: 0.5 -> 0.9", changes[0].String())
}

func TestDiffReportsAddedSettings(t *testing.T) {
	cfg := thresholdConfig(0.5, 0.5)
	cfg.Proposed = append(cfg.Proposed, settings.Setting{Name: "window", Kind: settings.KindInt, Value: int64(30)})

	changes := Diff(cfg)
	require.Len(t, changes, 1)
	assert.True(t, changes[0].Added)
	assert.Nil(t, changes[0].Old)
}

func TestAdopt(t *testing.T) {
	w := &recordingWriter{}
	store := settings.NewStore(thresholdConfig(0.5, 0.9), w, settings.StoreOptions{Debounce: time.Hour})
	defer store.Close()

	require.NoError(t, Adopt(context.Background(), store))

	cfg := store.Config()
	require.Len(t, cfg.Settings, 1)
	assert.Equal(t, 0.9, cfg.Settings[0].Value)
	assert.Nil(t, cfg.Proposed)
	assert.False(t, HasProposal(cfg))

	require.Len(t, w.calls, 1, "adopt writes exactly once")
	assert.Equal(t, 0.9, w.calls[0].Settings[0].Value)
	assert.Nil(t, w.calls[0].Proposed)
	assert.Empty(t, store.PendingEdits())
}

func TestAdoptFailedWriteDoesNotRevert(t *testing.T) {
	w := &recordingWriter{err: errors.New("503 service unavailable")}
	store := settings.NewStore(thresholdConfig(0.5, 0.9), w, settings.StoreOptions{Debounce: time.Hour})
	defer store.Close()

	err := Adopt(context.Background(), store)
	require.Error(t, err)

	cfg := store.Config()
	assert.Equal(t, 0.9, cfg.Settings[0].Value)
	assert.Nil(t, cfg.Proposed)
	assert.True(t, store.HasPending("threshold"))
}

func TestAdoptWithoutProposal(t *testing.T) {
	w := &recordingWriter{}
	store := settings.NewStore(thresholdConfig(0.5, 0.5), w, settings.StoreOptions{Debounce: time.Hour})
	defer store.Close()

	assert.ErrorIs(t, Adopt(context.Background(), store), ErrNoProposal)
	assert.Empty(t, w.calls)
}

func TestAdoptCancelsDebouncedEdit(t *testing.T) {
	w := &recordingWriter{}
	store := settings.NewStore(thresholdConfig(0.5, 0.9), w, settings.StoreOptions{Debounce: 30 * time.Millisecond})
	defer store.Close()

	require.NoError(t, store.ApplyLocalEdit(context.Background(), "threshold", 0.6))
	require.NoError(t, Adopt(context.Background(), store))

	time.Sleep(80 * time.Millisecond)

	w.mu.Lock()
	defer w.mu.Unlock()
	require.Len(t, w.calls, 1, "the debounced write is superseded by adopt")
	assert.Equal(t, 0.9, store.Config().Settings[0].Value)
}
