// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionExists is returned by Start while a session is being
	// negotiated or is active.
	ErrSessionExists = errors.New("session already exists")

	// ErrMediaAccessDenied is returned by a CaptureSource that cannot
	// provide a local audio track. The Negotiator continues without one.
	ErrMediaAccessDenied = errors.New("media access denied")

	// ErrChannelUnavailable is matched by every error from sending on a
	// data channel that is not open.
	ErrChannelUnavailable = errors.New("data channel unavailable")
)

// NegotiationError reports the stage at which Start failed.
type NegotiationError struct {
	Stage Stage
	Err   error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("session negotiation failed while %s: %v", e.Stage.Activity(), e.Err)
}

func (e *NegotiationError) Unwrap() error { return e.Err }

// ChannelError reports a send that did not reach the wire.
type ChannelError struct {
	EventType string
	Err       error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("sending %s: %v", e.EventType, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }
