// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package session turns the transport's update queue into observable
// session state and drives the language-practice overlay protocol.
//
// A [Processor] is the single consumer of an EventChannel's updates. Its
// reducer keeps a [State] (session activity, the practice language
// detected from outbound instructions, the latest palette tool output,
// the model's speech transcript) and performs the protocol's reactions:
// pushing the session configuration once per session after
// session.created, and requesting feedback one delay after each palette
// tool call. Every event that crosses the channel is kept in a [Log],
// most recent first, cleared whenever the channel opens.
//
// A [Controller] is the facade the overlay uses. It starts and stops
// sessions through a [Negotiator], runs the Processor for each session,
// and exposes sends, language settings, and snapshots.
package session
