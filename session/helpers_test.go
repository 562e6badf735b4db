// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/parley/lib/clock"
	"github.com/bureau-foundation/parley/lib/testutil"
	"github.com/bureau-foundation/parley/realtime"
	"github.com/bureau-foundation/parley/transport"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// wireChannel stands in for a pion data channel and keeps what was sent.
type wireChannel struct {
	mu     sync.Mutex
	sent   []realtime.Event
	closed bool

	// rejectType makes sends of that event type fail.
	rejectType string
}

func (w *wireChannel) Label() string { return "oai-events" }

func (w *wireChannel) SendText(text string) error {
	event, err := realtime.ParseEvent([]byte(text))
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if event.Type == w.rejectType {
		return errors.New("sctp: stream closed")
	}
	w.sent = append(w.sent, event)
	return nil
}

func (w *wireChannel) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

// Sent returns the events sent so far, oldest first.
func (w *wireChannel) Sent() []realtime.Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]realtime.Event(nil), w.sent...)
}

func (w *wireChannel) sentOfType(eventType string) []realtime.Event {
	var matching []realtime.Event
	for _, event := range w.Sent() {
		if event.Type == eventType {
			matching = append(matching, event)
		}
	}
	return matching
}

var testEpoch = time.Date(2026, 3, 14, 15, 4, 5, 0, time.Local)

// harness drives a Processor by hand: each inbound callback is followed
// by applying exactly the update it queued.
type harness struct {
	t         *testing.T
	clock     *clock.FakeClock
	wire      *wireChannel
	channel   *transport.EventChannel
	processor *Processor
}

func newProcessor(t *testing.T, fake *clock.FakeClock) *Processor {
	t.Helper()
	processor, err := NewProcessor(ProcessorConfig{
		FeedbackDelay: 500 * time.Millisecond,
		Clock:         fake,
		Logger:        testLogger(),
	})
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}
	return processor
}

func newChannel(processor *Processor, fake *clock.FakeClock) (*wireChannel, *transport.EventChannel) {
	wire := &wireChannel{}
	channel := transport.NewEventChannel(wire, transport.ChannelConfig{
		Recorder: processor.Log(),
		Clock:    fake,
		Logger:   testLogger(),
	})
	return wire, channel
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fake := clock.Fake(testEpoch)
	processor := newProcessor(t, fake)
	wire, channel := newChannel(processor, fake)
	processor.attach(channel)
	return &harness{t: t, clock: fake, wire: wire, channel: channel, processor: processor}
}

func (h *harness) step() {
	h.t.Helper()
	update := testutil.RequireReceive(h.t, h.channel.Updates(), time.Second, "waiting for queued update")
	h.processor.apply(h.channel, update)
}

func (h *harness) open() {
	h.t.Helper()
	h.channel.HandleOpen()
	h.step()
}

// reopen replaces the channel with a fresh one, as a new session does,
// and opens it.
func (h *harness) reopen() {
	h.t.Helper()
	h.wire, h.channel = newChannel(h.processor, h.clock)
	h.processor.attach(h.channel)
	h.open()
}

func (h *harness) receive(payload any) {
	h.t.Helper()
	data, ok := payload.(string)
	if !ok {
		encoded, err := json.Marshal(payload)
		if err != nil {
			h.t.Fatalf("encoding inbound payload: %v", err)
		}
		data = string(encoded)
	}
	h.channel.HandleMessage([]byte(data))
	h.step()
}

func (h *harness) close() {
	h.t.Helper()
	h.channel.HandleClose()
	h.step()
}

// paletteDone builds a response.done carrying one palette call.
func paletteDone(responseID, callID, arguments string) map[string]any {
	return map[string]any{
		"type": realtime.TypeResponseDone,
		"response": map[string]any{
			"id":     responseID,
			"status": "completed",
			"output": []map[string]any{
				{"type": "message", "id": "item_text"},
				{
					"type":      realtime.OutputTypeFunctionCall,
					"name":      realtime.ColorPaletteTool,
					"call_id":   callID,
					"arguments": arguments,
				},
			},
		},
	}
}

// waitFor blocks until condition holds, re-checking on every change
// notification.
func waitFor(t *testing.T, changes <-chan struct{}, condition func() bool, description string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for !condition() {
		select {
		case <-changes:
		case <-deadline:
			t.Fatalf("timed out waiting for %s", description)
		}
	}
}
