// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"

	"github.com/bureau-foundation/parley/lib/clock"
	"github.com/bureau-foundation/parley/realtime"
)

// TimestampLayout formats the client-local time stamped on recorded
// events, e.g. "3:04:05 PM".
const TimestampLayout = "3:04:05 PM"

// updateQueueSize is the capacity of the update queue. pion callbacks
// block once it is full.
const updateQueueSize = 256

// TextChannel is the part of a pion data channel the EventChannel uses.
type TextChannel interface {
	Label() string
	SendText(text string) error
	Close() error
}

// Compile-time interface check.
var _ TextChannel = (*webrtc.DataChannel)(nil)

// Recorder receives every event that crossed the channel, already
// stamped. Reset is called when the channel opens.
type Recorder interface {
	Record(event realtime.Event)
	Reset()
}

// UpdateKind distinguishes the updates an EventChannel emits.
type UpdateKind int

const (
	UpdateOpened UpdateKind = iota
	UpdateMessage
	UpdateClosed
	UpdateErrored
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateOpened:
		return "opened"
	case UpdateMessage:
		return "message"
	case UpdateClosed:
		return "closed"
	case UpdateErrored:
		return "errored"
	default:
		return fmt.Sprintf("UpdateKind(%d)", int(k))
	}
}

// Update is one item on the channel's update queue. Event is set for
// UpdateMessage, Err for UpdateErrored.
type Update struct {
	Kind  UpdateKind
	Event realtime.Event
	Err   error
}

// ChannelConfig configures NewEventChannel.
type ChannelConfig struct {
	// Recorder receives sent and received events. Nil records nothing.
	Recorder Recorder

	// Clock stamps timestamps. Nil uses the real clock.
	Clock clock.Clock

	Logger *slog.Logger
}

// EventChannel carries realtime events over a data channel.
//
// The Handle methods are the adapter surface: the Negotiator binds
// pion's callbacks to them, and tests drive them directly.
type EventChannel struct {
	channel  TextChannel
	recorder Recorder
	clock    clock.Clock
	logger   *slog.Logger

	// sendMu serializes sends so batches are not interleaved.
	sendMu sync.Mutex
	open   atomic.Bool

	updates   chan Update
	done      chan struct{}
	openOnce  sync.Once
	closeOnce sync.Once
}

// NewEventChannel wraps channel. The channel starts closed for sending
// until HandleOpen or the first HandleMessage.
func NewEventChannel(channel TextChannel, config ChannelConfig) *EventChannel {
	recorder := config.Recorder
	if recorder == nil {
		recorder = discardRecorder{}
	}
	source := config.Clock
	if source == nil {
		source = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &EventChannel{
		channel:  channel,
		recorder: recorder,
		clock:    source,
		logger:   logger.With("channel", channel.Label()),
		updates:  make(chan Update, updateQueueSize),
		done:     make(chan struct{}),
	}
}

// bindDataChannel routes pion's callbacks into ec.
func bindDataChannel(dataChannel *webrtc.DataChannel, ec *EventChannel) {
	dataChannel.OnOpen(ec.HandleOpen)
	dataChannel.OnMessage(func(message webrtc.DataChannelMessage) {
		ec.HandleMessage(message.Data)
	})
	dataChannel.OnClose(ec.HandleClose)
	dataChannel.OnError(ec.HandleError)
}

// Label returns the data channel label.
func (ec *EventChannel) Label() string { return ec.channel.Label() }

// Open reports whether sends are currently possible.
func (ec *EventChannel) Open() bool { return ec.open.Load() }

// Updates returns the update queue. Exactly one goroutine should
// consume it.
func (ec *EventChannel) Updates() <-chan Update { return ec.updates }

// Done is closed when the channel has been closed by either side.
func (ec *EventChannel) Done() <-chan struct{} { return ec.done }

// Send transmits event. An empty EventID is replaced with a fresh one;
// the caller's Timestamp, if any, goes on the wire unchanged. After a
// successful send the recorder receives a copy stamped with the local
// time when it had no timestamp.
func (ec *EventChannel) Send(event realtime.Event) error {
	ec.sendMu.Lock()
	defer ec.sendMu.Unlock()
	return ec.sendLocked(event)
}

// SendAll transmits events in order with no other send in between. It
// stops at the first failure and returns how many events were sent.
func (ec *EventChannel) SendAll(events ...realtime.Event) (int, error) {
	ec.sendMu.Lock()
	defer ec.sendMu.Unlock()
	for index, event := range events {
		if err := ec.sendLocked(event); err != nil {
			return index, err
		}
	}
	return len(events), nil
}

func (ec *EventChannel) sendLocked(event realtime.Event) error {
	if !ec.open.Load() {
		return &ChannelError{EventType: event.Type, Err: ErrChannelUnavailable}
	}
	if event.EventID == "" {
		event.EventID = realtime.NewEventID()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return &ChannelError{EventType: event.Type, Err: fmt.Errorf("encoding: %w", err)}
	}
	if err := ec.channel.SendText(string(data)); err != nil {
		return &ChannelError{EventType: event.Type, Err: fmt.Errorf("%w: %w", ErrChannelUnavailable, err)}
	}

	recorded := event.Clone()
	ec.stamp(&recorded)
	ec.recorder.Record(recorded)

	ec.logger.Debug("event sent", "type", event.Type, "event_id", event.EventID)
	return nil
}

func (ec *EventChannel) stamp(event *realtime.Event) {
	if event.Timestamp == "" {
		event.Timestamp = ec.clock.Now().Format(TimestampLayout)
	}
}

// Close closes the data channel and the Done channel. Further sends
// fail. Safe to call more than once.
func (ec *EventChannel) Close() error {
	ec.open.Store(false)
	var err error
	ec.closeOnce.Do(func() {
		close(ec.done)
		err = ec.channel.Close()
	})
	return err
}

// HandleOpen marks the channel open, clears the recorder, and queues
// UpdateOpened. Only the first call has any effect.
func (ec *EventChannel) HandleOpen() {
	ec.markOpen()
}

// markOpen runs the open transition once. pion may deliver messages
// before it runs the open handler, so HandleMessage calls this too;
// UpdateOpened always precedes the first UpdateMessage.
func (ec *EventChannel) markOpen() {
	ec.openOnce.Do(func() {
		select {
		case <-ec.done:
			return
		default:
		}
		ec.recorder.Reset()
		ec.open.Store(true)
		ec.logger.Info("data channel opened")
		ec.push(Update{Kind: UpdateOpened})
	})
}

// HandleMessage parses one inbound payload, records it, and queues it.
// Payloads that are not valid events are logged and dropped. A message
// arriving before HandleOpen opens the channel first.
func (ec *EventChannel) HandleMessage(data []byte) {
	ec.markOpen()
	event, err := realtime.ParseEvent(data)
	if err != nil {
		ec.logger.Warn("dropping malformed inbound event",
			"error", err,
			"bytes", len(data),
		)
		return
	}
	ec.stamp(&event)
	ec.recorder.Record(event.Clone())
	ec.push(Update{Kind: UpdateMessage, Event: event})
}

// HandleClose marks the channel closed and queues UpdateClosed.
func (ec *EventChannel) HandleClose() {
	ec.open.Store(false)
	ec.logger.Info("data channel closed")
	ec.push(Update{Kind: UpdateClosed})
	ec.closeOnce.Do(func() { close(ec.done) })
}

// HandleError queues UpdateErrored. The channel state is unchanged.
func (ec *EventChannel) HandleError(err error) {
	ec.logger.Warn("data channel error", "error", err)
	ec.push(Update{Kind: UpdateErrored, Err: err})
}

func (ec *EventChannel) push(update Update) {
	select {
	case ec.updates <- update:
	case <-ec.done:
		ec.logger.Debug("update dropped after close", "kind", update.Kind.String())
	}
}

type discardRecorder struct{}

func (discardRecorder) Record(realtime.Event) {}
func (discardRecorder) Reset()                {}
