// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package plugins

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the plugins view bindings.
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	NextAlgo key.Binding
	PrevAlgo key.Binding
	Toggle   key.Binding
	Edit     key.Binding
	Increase key.Binding
	Decrease key.Binding
	Flush    key.Binding
	Refresh  key.Binding
	Adopt    key.Binding
	Confirm  key.Binding
	Close    key.Binding
}

// DefaultKeyMap returns the default plugins bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("up/k", "prev setting"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("down/j", "next setting"),
		),
		NextAlgo: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("Tab", "next plugin"),
		),
		PrevAlgo: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("S-Tab", "prev plugin"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" ", "space"),
			key.WithHelp("Space", "toggle"),
		),
		Edit: key.NewBinding(
			key.WithKeys("enter", "e"),
			key.WithHelp("Enter", "edit"),
		),
		Increase: key.NewBinding(
			key.WithKeys("right", "l", "+", "="),
			key.WithHelp("right/+", "increase"),
		),
		Decrease: key.NewBinding(
			key.WithKeys("left", "h", "-"),
			key.WithHelp("left/-", "decrease"),
		),
		Flush: key.NewBinding(
			key.WithKeys("w"),
			key.WithHelp("w", "save now"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Adopt: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "review proposal"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y", "enter"),
			key.WithHelp("y", "adopt"),
		),
		Close: key.NewBinding(
			key.WithKeys("n", "esc"),
			key.WithHelp("n/Esc", "close"),
		),
	}
}

// ShortHelp returns the bindings shown in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextAlgo, k.Edit, k.Increase, k.Decrease, k.Adopt}
}

// FullHelp returns every binding, grouped.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.NextAlgo, k.PrevAlgo},
		{k.Toggle, k.Edit, k.Increase, k.Decrease},
		{k.Flush, k.Refresh, k.Adopt},
	}
}
