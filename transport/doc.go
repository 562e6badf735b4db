// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport establishes and carries one realtime voice session
// over WebRTC.
//
// A [Negotiator] runs the session setup chain: it acquires a short-lived
// credential, builds a pion PeerConnection with a receive-capable audio
// transceiver and (when a [CaptureSource] provides one) a local audio
// track, opens the ordered "oai-events" data channel, gathers every ICE
// candidate (vanilla ICE), and exchanges the complete SDP offer for an
// answer through a [Signaler]. [HTTPSignaler] performs that exchange as a
// single POST of application/sdp authenticated with the credential.
//
// The Negotiator holds at most one session. Its state is one of three
// variants (no session, negotiating, active); starting while a session
// exists fails with [ErrSessionExists], and Stop tears down whatever
// exists at any point of the chain. A failed Start returns a
// [*NegotiationError] naming the [Stage] that failed, after releasing
// everything created so far.
//
// [EventChannel] wraps the data channel. Sends are serialized and assign
// an event_id when the caller left it empty; the sent copy is stamped and
// handed to a [Recorder]. pion's callbacks (open, message, close, error)
// are converted into [Update] values on one buffered queue consumed by a
// single processing loop, so downstream state sees events in delivery
// order without sharing pion's goroutines.
//
// Remote audio is routed to an [AudioSink]. [DiscardSink] drains and
// counts RTP packets; [SilenceSource] provides an Opus silence track for
// clients without a microphone.
package transport
