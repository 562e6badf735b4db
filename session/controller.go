// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/parley/realtime"
	"github.com/bureau-foundation/parley/transport"
)

// Negotiator starts and stops the transport session.
// *transport.Negotiator implements it.
type Negotiator interface {
	Start(ctx context.Context) (*transport.Session, error)
	Stop()
}

// Compile-time interface check.
var _ Negotiator = (*transport.Negotiator)(nil)

// Controller is the overlay's entry point to the session.
type Controller struct {
	negotiator Negotiator
	processor  *Processor
	logger     *slog.Logger

	mu        sync.Mutex
	cancelRun context.CancelFunc
	runDone   chan struct{}
}

// NewController pairs a negotiator with the processor that consumes its
// sessions. The negotiator should record into processor.Log().
func NewController(negotiator Negotiator, processor *Processor, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{negotiator: negotiator, processor: processor, logger: logger}
}

// StartSession negotiates a session and starts processing its updates.
// The session becomes active when the data channel opens, after
// StartSession returns.
func (c *Controller) StartSession(ctx context.Context) error {
	session, err := c.negotiator.Start(ctx)
	if err != nil {
		return err
	}
	channel := session.Channel()

	runContext, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.mu.Lock()
	previousCancel, previousDone := c.cancelRun, c.runDone
	c.cancelRun, c.runDone = cancel, done
	c.mu.Unlock()

	if previousCancel != nil {
		previousCancel()
		<-previousDone
	}

	go func() {
		defer close(done)
		err := c.processor.Run(runContext, channel)
		switch {
		case err == nil:
			c.logger.Info("data channel closed, releasing session")
			c.negotiator.Stop()
		case !errors.Is(err, context.Canceled):
			c.logger.Error("session processing stopped", "error", err)
		}
	}()
	return nil
}

// StopSession tears down the session at any stage. Safe to call with no
// session and more than once.
func (c *Controller) StopSession() {
	c.mu.Lock()
	cancel, done := c.cancelRun, c.runDone
	c.cancelRun, c.runDone = nil, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	c.negotiator.Stop()
	c.processor.Deactivate()
}

// Send transmits a client event. Without an open session it fails with
// transport.ErrChannelUnavailable and the log is unchanged.
func (c *Controller) Send(event realtime.Event) error {
	return c.processor.Send(event)
}

// SendTextMessage sends text as user input followed by a response
// request, with no other send between them.
func (c *Controller) SendTextMessage(text string) error {
	return c.processor.SendAll(
		realtime.NewConversationItemCreate(text),
		realtime.NewResponseCreate(""),
	)
}

// ApplyLanguageSettings asks the model to tutor languageID at levelID.
func (c *Controller) ApplyLanguageSettings(languageID, levelID string) error {
	language, ok := realtime.LookupLanguage(languageID)
	if !ok {
		return fmt.Errorf("unknown language %q", languageID)
	}
	level, ok := realtime.LookupLevel(levelID)
	if !ok {
		return fmt.Errorf("unknown level %q", levelID)
	}
	if err := c.processor.Send(realtime.NewResponseCreate(realtime.TutorInstructions(language, level))); err != nil {
		return err
	}
	c.processor.MarkSettingsApplied()
	c.logger.Info("language settings applied", "language", language.ID, "level", level.ID)
	return nil
}

// ClearSettingsApplied marks the applied settings stale after the user
// picks a different language or level.
func (c *Controller) ClearSettingsApplied() { c.processor.ClearSettingsApplied() }

// Snapshot returns the current state and event log.
func (c *Controller) Snapshot() Snapshot { return c.processor.Snapshot() }

// Changes notifies after state or log changes.
func (c *Controller) Changes() <-chan struct{} { return c.processor.Changes() }
