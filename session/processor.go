// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/parley/lib/clock"
	"github.com/bureau-foundation/parley/realtime"
	"github.com/bureau-foundation/parley/transport"
)

// DefaultFeedbackDelay is how long after a palette call the feedback
// request is sent.
const DefaultFeedbackDelay = 500 * time.Millisecond

// ProcessorConfig configures NewProcessor.
type ProcessorConfig struct {
	// SessionUpdate is pushed once per session after session.created.
	// A zero Event uses realtime.LoadSessionUpdate("").
	SessionUpdate realtime.Event

	// FeedbackDelay defaults to DefaultFeedbackDelay.
	FeedbackDelay time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// Processor consumes one EventChannel's updates at a time and maintains
// the derived session state.
type Processor struct {
	sessionUpdate realtime.Event
	feedbackDelay time.Duration
	clock         clock.Clock
	logger        *slog.Logger

	log     *Log
	changes chan struct{}

	mu      sync.Mutex
	state   State
	scope   *sessionScope
	channel *transport.EventChannel
}

// NewProcessor creates a Processor with no channel attached.
func NewProcessor(config ProcessorConfig) (*Processor, error) {
	sessionUpdate := config.SessionUpdate
	if sessionUpdate.Type == "" {
		loaded, err := realtime.LoadSessionUpdate("")
		if err != nil {
			return nil, fmt.Errorf("loading default session update: %w", err)
		}
		sessionUpdate = loaded
	}
	if sessionUpdate.Type != realtime.TypeSessionUpdate {
		return nil, fmt.Errorf("session update event has type %q", sessionUpdate.Type)
	}
	delay := config.FeedbackDelay
	if delay <= 0 {
		delay = DefaultFeedbackDelay
	}
	source := config.Clock
	if source == nil {
		source = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	processor := &Processor{
		sessionUpdate: sessionUpdate,
		feedbackDelay: delay,
		clock:         source,
		logger:        logger,
		log:           &Log{},
		changes:       make(chan struct{}, 1),
		state:         defaultState(),
	}
	processor.log.onChange = processor.notify
	return processor, nil
}

// Log returns the event log. Pass it as the transport Recorder.
func (p *Processor) Log() *Log { return p.log }

// Changes returns a channel that receives a value after state or log
// changes. Notifications coalesce: one receive may cover many changes.
func (p *Processor) Changes() <-chan struct{} { return p.changes }

func (p *Processor) notify() {
	select {
	case p.changes <- struct{}{}:
	default:
	}
}

// State returns a copy of the derived state.
func (p *Processor) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Snapshot returns the state and a copy of the log.
func (p *Processor) Snapshot() Snapshot {
	state := p.State()
	events, generation := p.log.snapshot()
	return Snapshot{State: state, Events: events, Generation: generation}
}

// Run consumes channel's updates until the channel closes or ctx is
// done. It is the only consumer of the queue.
func (p *Processor) Run(ctx context.Context, channel *transport.EventChannel) error {
	p.attach(channel)
	defer p.detach(channel)

	for {
		select {
		case update := <-channel.Updates():
			p.apply(channel, update)
		case <-channel.Done():
			p.drain(channel)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// drain applies updates queued before the channel closed.
func (p *Processor) drain(channel *transport.EventChannel) {
	for {
		select {
		case update := <-channel.Updates():
			p.apply(channel, update)
		default:
			return
		}
	}
}

func (p *Processor) attach(channel *transport.EventChannel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channel = channel
}

// detach deactivates the session if channel is still the current one.
func (p *Processor) detach(channel *transport.EventChannel) {
	p.mu.Lock()
	if p.channel != channel {
		p.mu.Unlock()
		return
	}
	p.deactivateLocked()
	p.channel = nil
	p.mu.Unlock()
	p.notify()
}

// Deactivate marks the session inactive and cancels pending feedback.
// Called when the session is stopped.
func (p *Processor) Deactivate() {
	p.mu.Lock()
	p.deactivateLocked()
	p.channel = nil
	p.mu.Unlock()
	p.notify()
}

func (p *Processor) deactivateLocked() {
	p.state.SessionActive = false
	p.state.SettingsApplied = false
	if p.scope != nil {
		p.scope.cancelTimers()
		p.scope = nil
	}
}

// apply reduces one update. Sends happen after the state lock is
// released.
func (p *Processor) apply(channel *transport.EventChannel, update transport.Update) {
	switch update.Kind {
	case transport.UpdateOpened:
		p.mu.Lock()
		if p.scope != nil {
			p.scope.cancelTimers()
		}
		p.state = defaultState()
		p.state.SessionActive = true
		p.scope = newSessionScope()
		p.mu.Unlock()
		p.logger.Info("session active", "channel", channel.Label())

	case transport.UpdateMessage:
		p.handleEvent(channel, update.Event)

	case transport.UpdateClosed:
		p.mu.Lock()
		p.deactivateLocked()
		p.mu.Unlock()
		p.logger.Info("session inactive", "channel", channel.Label())

	case transport.UpdateErrored:
		p.mu.Lock()
		p.state.LastError = update.Err
		p.mu.Unlock()
		p.logger.Warn("data channel error", "error", update.Err)
	}
	p.notify()
}

func (p *Processor) handleEvent(channel *transport.EventChannel, event realtime.Event) {
	switch event.Type {
	case realtime.TypeSessionCreated:
		p.pushConfiguration(channel)

	case realtime.TypeResponseCreated:
		p.mu.Lock()
		p.state.Transcript = ""
		p.mu.Unlock()

	case realtime.TypeResponseAudioTranscript:
		delta := event.TranscriptDelta()
		if delta == "" {
			return
		}
		p.mu.Lock()
		p.state.Transcript += delta
		p.mu.Unlock()
		p.logger.Info("model speech", "delta", delta)

	case realtime.TypeResponseDone:
		p.handleResponseDone(channel, event)

	case realtime.TypeError:
		var detail struct {
			Type    string `json:"type"`
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if _, err := event.Decode("error", &detail); err != nil {
			p.logger.Warn("server error event with undecodable detail", "error", err)
			return
		}
		p.logger.Warn("server reported an error",
			"error_type", detail.Type,
			"code", detail.Code,
			"message", detail.Message,
		)
	}
}

// pushConfiguration sends the session update once per session. The scope
// only moves to configSent when the send succeeds.
func (p *Processor) pushConfiguration(channel *transport.EventChannel) {
	p.mu.Lock()
	scope := p.scope
	pending := scope != nil && scope.config == configPending
	p.mu.Unlock()
	if !pending {
		return
	}

	if err := channel.Send(p.sessionUpdate.Clone()); err != nil {
		p.logger.Error("sending session configuration", "error", err)
		return
	}

	p.mu.Lock()
	if p.scope == scope {
		scope.config = configSent
	}
	p.mu.Unlock()
	p.logger.Info("session configuration sent",
		"tools", realtime.ToolNames(p.sessionUpdate),
	)
}

// handleResponseDone records palette calls and schedules one feedback
// request per call.
func (p *Processor) handleResponseDone(channel *transport.EventChannel, event realtime.Event) {
	response, err := event.ResponseDone()
	if err != nil {
		p.logger.Warn("ignoring response.done", "error", err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	scope := p.scope
	if scope == nil {
		return
	}

	for index, item := range response.Output {
		if item.Type != realtime.OutputTypeFunctionCall || item.Name != realtime.ColorPaletteTool {
			continue
		}
		key := callKey(item.CallID, response.ID, event.EventID, index)
		if key != "" {
			if scope.handledCalls[key] {
				continue
			}
			scope.handledCalls[key] = true
		}

		output := &ToolOutput{CallID: item.CallID, Name: item.Name, Arguments: item.Arguments}
		palette, err := realtime.ParsePaletteArguments(item.Arguments)
		if err != nil {
			output.Err = err
			p.state.ToolOutput = output
			p.logger.Warn("palette call with malformed arguments",
				"call_id", item.CallID,
				"error", err,
			)
			continue
		}
		output.Palette = palette
		p.state.ToolOutput = output
		p.logger.Info("palette displayed",
			"call_id", item.CallID,
			"theme", palette.Theme,
			"colors", len(palette.Colors),
		)

		callID := key
		timer := p.clock.AfterFunc(p.feedbackDelay, func() {
			p.sendFeedback(channel, scope, callID)
		})
		scope.timers = append(scope.timers, timer)
	}
}

// callKey identifies a palette call for deduplication: the call_id,
// else the output position within the response or, without a response
// id, within the inbound event. It returns "" when nothing stable
// identifies the call; such calls are never deduplicated.
func callKey(callID, responseID, eventID string, index int) string {
	switch {
	case callID != "":
		return callID
	case responseID != "":
		return fmt.Sprintf("%s#%d", responseID, index)
	case eventID != "":
		return fmt.Sprintf("event:%s#%d", eventID, index)
	default:
		return ""
	}
}

func (p *Processor) sendFeedback(channel *transport.EventChannel, scope *sessionScope, callID string) {
	p.mu.Lock()
	current := p.scope == scope
	p.mu.Unlock()
	if !current {
		return
	}
	if err := channel.Send(realtime.NewResponseCreate(realtime.FeedbackInstructions)); err != nil {
		p.logger.Warn("sending palette feedback request", "call_id", callID, "error", err)
		return
	}
	p.logger.Debug("palette feedback requested", "call_id", callID)
}

// Send transmits event on the current channel. Outbound response.create
// instructions are scanned for a language directive once sent.
func (p *Processor) Send(event realtime.Event) error {
	channel, err := p.currentChannel(event.Type)
	if err != nil {
		return err
	}
	if err := channel.Send(event); err != nil {
		return err
	}
	p.observeOutbound(event)
	return nil
}

// SendAll transmits events as one uninterrupted batch. When the batch
// fails partway, the events already sent are still observed.
func (p *Processor) SendAll(events ...realtime.Event) error {
	if len(events) == 0 {
		return nil
	}
	channel, err := p.currentChannel(events[0].Type)
	if err != nil {
		return err
	}
	sent, err := channel.SendAll(events...)
	for _, event := range events[:sent] {
		p.observeOutbound(event)
	}
	return err
}

func (p *Processor) currentChannel(eventType string) (*transport.EventChannel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel == nil {
		return nil, &transport.ChannelError{EventType: eventType, Err: transport.ErrChannelUnavailable}
	}
	return p.channel, nil
}

func (p *Processor) observeOutbound(event realtime.Event) {
	if event.Type != realtime.TypeResponseCreate {
		return
	}
	language, ok := realtime.ParseLanguageDirective(event.Instructions())
	if !ok {
		return
	}
	p.mu.Lock()
	changed := p.state.CurrentLanguage != language
	p.state.CurrentLanguage = language
	p.mu.Unlock()
	if changed {
		p.logger.Info("practice language detected", "language", language)
		p.notify()
	}
}

// ClearSettingsApplied records that the chosen language settings no
// longer match what was sent.
func (p *Processor) ClearSettingsApplied() {
	p.mu.Lock()
	changed := p.state.SettingsApplied
	p.state.SettingsApplied = false
	p.mu.Unlock()
	if changed {
		p.notify()
	}
}

// MarkSettingsApplied records that language settings were sent in the
// active session.
func (p *Processor) MarkSettingsApplied() {
	p.mu.Lock()
	if p.state.SessionActive {
		p.state.SettingsApplied = true
	}
	p.mu.Unlock()
	p.notify()
}
