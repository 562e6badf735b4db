// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"github.com/bureau-foundation/parley/lib/clock"
	"github.com/bureau-foundation/parley/realtime"
)

// ToolOutput is the most recent palette tool call. Err is set when the
// arguments did not match the tool schema; Palette is then empty.
type ToolOutput struct {
	CallID    string
	Name      string
	Arguments string
	Palette   realtime.Palette
	Err       error
}

// State is the processor's derived view of the session.
type State struct {
	SessionActive   bool
	CurrentLanguage string
	ToolOutput      *ToolOutput

	// SettingsApplied is set once language settings were sent in this
	// session and cleared when the session goes inactive.
	SettingsApplied bool

	// Transcript accumulates the model's speech for the current response.
	Transcript string

	// LastError is the most recent data channel error.
	LastError error
}

func defaultState() State {
	return State{CurrentLanguage: realtime.UnknownLanguage}
}

// Snapshot is a consistent copy of the state and the event log.
type Snapshot struct {
	State
	Events []realtime.Event

	// Generation is the log generation Events belong to. It changes
	// when a new session clears the log.
	Generation uint64
}

// configState is the per-session configuration push state. It only
// moves forward.
type configState int

const (
	configPending configState = iota
	configSent
)

// sessionScope is state that lives exactly as long as one open data
// channel.
type sessionScope struct {
	config       configState
	handledCalls map[string]bool
	timers       []*clock.Timer
}

func newSessionScope() *sessionScope {
	return &sessionScope{handledCalls: make(map[string]bool)}
}

func (s *sessionScope) cancelTimers() {
	for _, timer := range s.timers {
		timer.Stop()
	}
	s.timers = nil
}
