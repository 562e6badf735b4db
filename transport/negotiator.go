// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/bureau-foundation/parley/credential"
	"github.com/bureau-foundation/parley/lib/clock"
)

// CredentialSource issues the credential for one negotiation.
type CredentialSource interface {
	Fetch(ctx context.Context) (*credential.Credential, error)
}

// Compile-time interface check.
var _ CredentialSource = (*credential.Fetcher)(nil)

// NegotiatorConfig wires a Negotiator to its collaborators.
type NegotiatorConfig struct {
	Credentials CredentialSource
	Signaler    Signaler

	// Capture provides the local audio track. Nil negotiates output-only.
	Capture CaptureSource

	// Sink receives remote audio. Nil uses a DiscardSink.
	Sink AudioSink

	// Recorder receives every event sent or received on the channel.
	Recorder Recorder

	ICE ICEConfig

	// DataChannelLabel names the event channel. Default: oai-events.
	DataChannelLabel string

	// NegotiationTimeout bounds the whole Start chain. Zero means only
	// the caller's context bounds it.
	NegotiationTimeout time.Duration

	// ICEGatherTimeout bounds candidate gathering. Zero means only the
	// negotiation context bounds it.
	ICEGatherTimeout time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// DefaultDataChannelLabel is the label the realtime endpoint expects.
const DefaultDataChannelLabel = "oai-events"

// negotiatorState is the sealed session state: noSession, *negotiating,
// or *active.
type negotiatorState interface {
	isNegotiatorState()
}

type noSession struct{}

type negotiating struct {
	session *Session
	cancel  context.CancelFunc
}

type active struct {
	session *Session
}

func (noSession) isNegotiatorState()    {}
func (*negotiating) isNegotiatorState() {}
func (*active) isNegotiatorState()      {}

// Negotiator owns the process's single realtime session.
type Negotiator struct {
	config NegotiatorConfig
	logger *slog.Logger

	mu        sync.Mutex
	state     negotiatorState
	stage     Stage
	observers []func(Stage)
}

// NewNegotiator creates a Negotiator with no session.
func NewNegotiator(config NegotiatorConfig) *Negotiator {
	if config.DataChannelLabel == "" {
		config.DataChannelLabel = DefaultDataChannelLabel
	}
	if config.Sink == nil {
		config.Sink = &DiscardSink{Logger: config.Logger}
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Negotiator{
		config: config,
		logger: logger,
		state:  noSession{},
		stage:  Idle,
	}
}

// Stage returns the current negotiation stage.
func (n *Negotiator) Stage() Stage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stage
}

// OnStageChange registers fn to be called with every stage transition.
// fn runs on the goroutine causing the transition and must not call
// Start or Stop.
func (n *Negotiator) OnStageChange(fn func(Stage)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.observers = append(n.observers, fn)
}

// Active returns the established session, or nil.
func (n *Negotiator) Active() *Session {
	n.mu.Lock()
	defer n.mu.Unlock()
	if state, ok := n.state.(*active); ok {
		return state.session
	}
	return nil
}

// Start negotiates a new session. It fails with ErrSessionExists while
// another session is negotiating or active, and with *NegotiationError
// when any step fails; in that case everything created so far has been
// released. A successful Start means signaling completed; the channel's
// UpdateOpened arrives later.
func (n *Negotiator) Start(ctx context.Context) (*Session, error) {
	ctx, cancel := context.WithCancel(ctx)
	if n.config.NegotiationTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, n.config.NegotiationTimeout)
		parentCancel := cancel
		cancel = func() {
			cancelTimeout()
			parentCancel()
		}
	}
	defer cancel()

	session := &Session{logger: n.logger}
	attempt := &negotiating{session: session, cancel: cancel}

	n.mu.Lock()
	switch n.state.(type) {
	case *negotiating, *active:
		n.mu.Unlock()
		return nil, ErrSessionExists
	}
	n.state = attempt
	n.mu.Unlock()

	stage, err := n.negotiate(ctx, attempt)

	n.mu.Lock()
	current := n.state == negotiatorState(attempt)
	if err == nil && !current {
		err = context.Canceled
	}
	if err == nil {
		n.state = &active{session: session}
	} else if current {
		n.state = noSession{}
	}
	n.mu.Unlock()

	if err != nil {
		session.Release()
		if current {
			n.setStage(Failed)
			n.logger.Error("session negotiation failed",
				"stage", stage.String(),
				"error", err,
			)
		} else {
			n.logger.Info("session negotiation abandoned", "stage", stage.String())
		}
		return nil, &NegotiationError{Stage: stage, Err: err}
	}

	n.setStage(Established)
	n.logger.Info("session established",
		"channel", n.config.DataChannelLabel,
		"capture", session.CaptureActive(),
	)
	return session, nil
}

// negotiate runs the chain for attempt and returns the stage it reached.
func (n *Negotiator) negotiate(ctx context.Context, attempt *negotiating) (Stage, error) {
	session := attempt.session

	if err := n.enterStage(ctx, attempt, AcquiringCredential); err != nil {
		return AcquiringCredential, err
	}
	token, err := n.config.Credentials.Fetch(ctx)
	if err != nil {
		return AcquiringCredential, err
	}
	defer token.Close()

	if err := n.enterStage(ctx, attempt, ConnectingTransport); err != nil {
		return ConnectingTransport, err
	}
	if err := n.connect(ctx, session); err != nil {
		return ConnectingTransport, err
	}

	if err := n.enterStage(ctx, attempt, AwaitingLocalDescription); err != nil {
		return AwaitingLocalDescription, err
	}
	offer, err := gatherLocalDescription(ctx, session.peer, n.config.ICEGatherTimeout)
	if err != nil {
		return AwaitingLocalDescription, err
	}

	if err := n.enterStage(ctx, attempt, ExchangingDescription); err != nil {
		return ExchangingDescription, err
	}
	answer, err := n.config.Signaler.Exchange(ctx, offer, token)
	if err != nil {
		return ExchangingDescription, err
	}
	if err := token.Close(); err != nil {
		n.logger.Warn("zeroing credential", "error", err)
	}

	if err := n.enterStage(ctx, attempt, AwaitingRemoteDescription); err != nil {
		return AwaitingRemoteDescription, err
	}
	if err := session.peer.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer,
	}); err != nil {
		return AwaitingRemoteDescription, fmt.Errorf("setting remote description: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return AwaitingRemoteDescription, err
	}
	return Established, nil
}

// connect builds the peer connection, audio routing, and data channel
// on session.
func (n *Negotiator) connect(ctx context.Context, session *Session) error {
	peer, err := newPeerConnection(n.config.ICE)
	if err != nil {
		return fmt.Errorf("creating PeerConnection: %w", err)
	}
	if !session.attachPeer(peer) {
		peer.Close()
		return context.Canceled
	}

	sink := n.config.Sink
	peer.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		go sink.Consume(track)
	})
	peer.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		n.logger.Info("peer connection state change", "state", state.String())
	})

	if _, err := peer.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		return fmt.Errorf("adding audio transceiver: %w", err)
	}

	if err := n.attachCapture(ctx, session, peer); err != nil {
		return err
	}

	ordered := true
	dataChannel, err := peer.CreateDataChannel(n.config.DataChannelLabel, &webrtc.DataChannelInit{
		Ordered: &ordered,
	})
	if err != nil {
		return fmt.Errorf("creating data channel %s: %w", n.config.DataChannelLabel, err)
	}
	channel := NewEventChannel(dataChannel, ChannelConfig{
		Recorder: n.config.Recorder,
		Clock:    n.config.Clock,
		Logger:   n.logger,
	})
	bindDataChannel(dataChannel, channel)
	if !session.attachChannel(channel) {
		channel.Close()
		return context.Canceled
	}
	return nil
}

// attachCapture adds the local audio track when one is available. A
// capture failure degrades the session to output-only.
func (n *Negotiator) attachCapture(ctx context.Context, session *Session, peer *webrtc.PeerConnection) error {
	if n.config.Capture == nil {
		n.logger.Info("no capture source configured, session is output-only")
		return nil
	}
	capture, err := n.config.Capture.OpenCapture(ctx)
	if err != nil {
		if !errors.Is(err, ErrMediaAccessDenied) {
			err = fmt.Errorf("%w: %w", ErrMediaAccessDenied, err)
		}
		n.logger.Warn("audio capture unavailable, session is output-only", "error", err)
		return nil
	}
	if !session.attachCapture(capture) {
		capture.Stop()
		return context.Canceled
	}
	sender, err := peer.AddTrack(capture.Track())
	if err != nil {
		return fmt.Errorf("adding capture track: %w", err)
	}
	go drainRTCP(sender)
	return nil
}

// enterStage records the transition when attempt is still current and
// the context is live.
func (n *Negotiator) enterStage(ctx context.Context, attempt *negotiating, stage Stage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	current := n.state == negotiatorState(attempt)
	n.mu.Unlock()
	if !current {
		return context.Canceled
	}
	n.setStage(stage)
	n.logger.Debug("negotiation stage", "stage", stage.String())
	return nil
}

func (n *Negotiator) setStage(stage Stage) {
	n.mu.Lock()
	n.stage = stage
	observers := make([]func(Stage), len(n.observers))
	copy(observers, n.observers)
	n.mu.Unlock()

	for _, observer := range observers {
		observer(stage)
	}
}

// Stop tears down the session at whatever stage it is in. An in-flight
// Start is cancelled and returns a *NegotiationError. Safe to call with
// no session and more than once.
func (n *Negotiator) Stop() {
	n.mu.Lock()
	var session *Session
	var cancel context.CancelFunc
	switch state := n.state.(type) {
	case noSession:
		n.mu.Unlock()
		return
	case *negotiating:
		session = state.session
		cancel = state.cancel
	case *active:
		session = state.session
	}
	n.state = noSession{}
	n.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	session.Release()
	n.setStage(Stopped)
	n.logger.Info("session stopped")
}
