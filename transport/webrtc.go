// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
)

// newPeerConnection creates a pion PeerConnection with the default
// codecs and interceptors (NACK, RTCP reports) registered.
func newPeerConnection(ice ICEConfig) (*webrtc.PeerConnection, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("registering codecs: %w", err)
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, fmt.Errorf("registering interceptors: %w", err)
	}

	// Loopback candidates are required for same-machine endpoints and
	// test environments where loopback is the only interface.
	settingEngine := webrtc.SettingEngine{}
	settingEngine.SetIncludeLoopbackCandidate(true)

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(registry),
		webrtc.WithSettingEngine(settingEngine),
	)
	return api.NewPeerConnection(webrtc.Configuration{ICEServers: ice.Servers})
}

// gatherLocalDescription creates the offer, applies it, and waits for
// ICE gathering to finish so the returned SDP carries every candidate.
func gatherLocalDescription(ctx context.Context, peer *webrtc.PeerConnection, timeout time.Duration) (string, error) {
	offer, err := peer.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("creating SDP offer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(peer)
	if err := peer.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("setting local description: %w", err)
	}

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	select {
	case <-gatherComplete:
	case <-deadline:
		return "", fmt.Errorf("ICE gathering timed out after %s", timeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}

	description := peer.LocalDescription()
	if description == nil {
		return "", fmt.Errorf("local description missing after gathering")
	}
	return description.SDP, nil
}

// drainRTCP reads RTCP for a sender until it closes. Interceptors only
// process RTCP that is read.
func drainRTCP(sender *webrtc.RTPSender) {
	buffer := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buffer); err != nil {
			return
		}
	}
}

// Session is one negotiated (or negotiating) connection: the peer
// connection, its event channel, and the optional capture track.
type Session struct {
	mu       sync.Mutex
	peer     *webrtc.PeerConnection
	channel  *EventChannel
	capture  CaptureTrack
	released bool
	logger   *slog.Logger
}

// NewSession wraps an event channel created outside a Negotiator, such
// as one over an alternate transport. Release closes the channel.
func NewSession(channel *EventChannel) *Session {
	return &Session{channel: channel, logger: slog.Default()}
}

// Channel returns the event channel, or nil before it was created.
func (s *Session) Channel() *EventChannel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

// CaptureActive reports whether a local audio track is being sent.
func (s *Session) CaptureActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capture != nil && !s.released
}

// ConnectionState returns the peer connection state, or
// PeerConnectionStateClosed when none exists.
func (s *Session) ConnectionState() webrtc.PeerConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peer == nil || s.released {
		return webrtc.PeerConnectionStateClosed
	}
	return s.peer.ConnectionState()
}

// attachPeer stores peer. Returns false when the session was already
// released; the caller then owns peer.
func (s *Session) attachPeer(peer *webrtc.PeerConnection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return false
	}
	s.peer = peer
	return true
}

func (s *Session) attachCapture(capture CaptureTrack) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return false
	}
	s.capture = capture
	return true
}

func (s *Session) attachChannel(channel *EventChannel) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return false
	}
	s.channel = channel
	return true
}

// Release stops capture, closes the data channel, and closes the peer
// connection. Safe to call more than once and concurrently with
// negotiation.
func (s *Session) Release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	peer, channel, capture := s.peer, s.channel, s.capture
	s.mu.Unlock()

	if capture != nil {
		capture.Stop()
	}
	if channel != nil {
		if err := channel.Close(); err != nil {
			s.logger.Debug("closing data channel", "error", err)
		}
	}
	if peer != nil {
		if err := peer.Close(); err != nil {
			s.logger.Warn("closing peer connection", "error", err)
		}
	}
}
