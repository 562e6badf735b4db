// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"sync"

	"github.com/bureau-foundation/parley/realtime"
)

// Log is the unbounded, most-recent-first record of events that crossed
// the data channel. It implements transport.Recorder.
type Log struct {
	mu         sync.Mutex
	events     []realtime.Event
	generation uint64
	onChange   func()
}

// Record prepends event.
func (l *Log) Record(event realtime.Event) {
	l.mu.Lock()
	l.events = append(l.events, realtime.Event{})
	copy(l.events[1:], l.events)
	l.events[0] = event
	onChange := l.onChange
	l.mu.Unlock()

	if onChange != nil {
		onChange()
	}
}

// Reset empties the log and starts a new generation.
func (l *Log) Reset() {
	l.mu.Lock()
	l.events = nil
	l.generation++
	onChange := l.onChange
	l.mu.Unlock()

	if onChange != nil {
		onChange()
	}
}

// Events returns a copy of the log, most recent first.
func (l *Log) Events() []realtime.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	events := make([]realtime.Event, len(l.events))
	copy(events, l.events)
	return events
}

// Generation counts resets. Events recorded under different
// generations belong to different sessions.
func (l *Log) Generation() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.generation
}

func (l *Log) snapshot() ([]realtime.Event, uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	events := make([]realtime.Event, len(l.events))
	copy(events, l.events)
	return events, l.generation
}

// Len returns the number of recorded events.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}
