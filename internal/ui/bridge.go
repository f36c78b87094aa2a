// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/aideck/internal/chatsession"
	"github.com/jeranaias/aideck/internal/settings"
	"github.com/jeranaias/aideck/internal/ui/chat"
	"github.com/jeranaias/aideck/internal/ui/plugins"
)

// Sender delivers messages to a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Bridge forwards dashboard callbacks to the program. Callbacks made
// while no program is attached are dropped; the views re-read state when
// they start.
type Bridge struct {
	mu     sync.RWMutex
	sender Sender
}

// NewBridge creates a detached bridge.
func NewBridge() *Bridge {
	return &Bridge{}
}

// Attach starts forwarding to s.
func (b *Bridge) Attach(s Sender) {
	b.mu.Lock()
	b.sender = s
	b.mu.Unlock()
}

// Detach stops forwarding.
func (b *Bridge) Detach() {
	b.Attach(nil)
}

func (b *Bridge) send(msg tea.Msg) {
	b.mu.RLock()
	s := b.sender
	b.mu.RUnlock()
	if s != nil {
		s.Send(msg)
	}
}

// OnConfig is a dashboard.Options.OnConfig callback.
func (b *Bridge) OnConfig(cfg settings.AlgorithmConfig) {
	b.send(plugins.ConfigMsg{Config: cfg})
}

// OnWrite is a dashboard.Options.OnWrite callback.
func (b *Bridge) OnWrite(r settings.WriteResult) {
	b.send(plugins.WriteMsg{Result: r})
}

// OnPoll is a dashboard.Options.OnPoll callback.
func (b *Bridge) OnPoll(n int, err error) {
	b.send(plugins.PollMsg{N: n, Err: err})
}

// OnChat is a dashboard.Options.OnChat callback.
func (b *Bridge) OnChat(ev chatsession.Event) {
	b.send(chat.EventMsg{Event: ev})
}
