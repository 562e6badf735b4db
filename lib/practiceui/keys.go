// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package practiceui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all key bindings for the practice overlay. Printable
// keys go to the text input, so every binding uses a control or
// navigation key.
type KeyMap struct {
	ToggleSession key.Binding // Start a session, or stop the live one.
	Send          key.Binding // Send the text input as a user message.

	// Practice settings.
	NextLanguage  key.Binding
	NextLevel     key.Binding
	ApplySettings key.Binding

	// Event log scrolling.
	PageUp   key.Binding
	PageDown key.Binding

	Quit key.Binding
}

// DefaultKeyMap is the built-in key binding set.
var DefaultKeyMap = KeyMap{
	ToggleSession: key.NewBinding(
		key.WithKeys("ctrl+s"),
		key.WithHelp("ctrl+s", "start/stop"),
	),
	Send: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "send"),
	),
	NextLanguage: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "language"),
	),
	NextLevel: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("shift+tab", "level"),
	),
	ApplySettings: key.NewBinding(
		key.WithKeys("ctrl+a"),
		key.WithHelp("ctrl+a", "apply"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("pgup", "older"),
	),
	PageDown: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("pgdn", "newer"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "esc"),
		key.WithHelp("esc", "quit"),
	),
}

// helpBindings is the order bindings appear in the status bar help.
func (keys KeyMap) helpBindings() []key.Binding {
	return []key.Binding{
		keys.ToggleSession,
		keys.Send,
		keys.NextLanguage,
		keys.NextLevel,
		keys.ApplySettings,
		keys.PageUp,
		keys.PageDown,
		keys.Quit,
	}
}
