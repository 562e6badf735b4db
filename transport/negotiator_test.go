// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/bureau-foundation/parley/credential"
	"github.com/bureau-foundation/parley/lib/testutil"
	"github.com/bureau-foundation/parley/realtime"
)

// staticCredentials issues a fresh credential per Fetch and remembers
// each one so tests can check it was zeroed.
type staticCredentials struct {
	mu     sync.Mutex
	err    error
	issued []*credential.Credential
}

func (s *staticCredentials) Fetch(context.Context) (*credential.Credential, error) {
	if s.err != nil {
		return nil, s.err
	}
	token, err := credential.New("ek_loopback_token", time.Time{})
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.issued = append(s.issued, token)
	s.mu.Unlock()
	return token, nil
}

func (s *staticCredentials) allClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, token := range s.issued {
		if !token.Closed() {
			return false
		}
	}
	return len(s.issued) > 0
}

// loopbackAnswerer is a signaling endpoint backed by a pion peer. It
// answers each offer, and on data channel open sends session.created.
type loopbackAnswerer struct {
	t        *testing.T
	server   *httptest.Server
	received chan string

	mu    sync.Mutex
	peers []*webrtc.PeerConnection
}

func newLoopbackAnswerer(t *testing.T) *loopbackAnswerer {
	t.Helper()
	answerer := &loopbackAnswerer{t: t, received: make(chan string, 16)}
	answerer.server = httptest.NewServer(http.HandlerFunc(answerer.serveOffer))
	t.Cleanup(func() {
		answerer.server.Close()
		answerer.mu.Lock()
		defer answerer.mu.Unlock()
		for _, peer := range answerer.peers {
			peer.Close()
		}
	})
	return answerer
}

func (a *loopbackAnswerer) signaler() *HTTPSignaler {
	return &HTTPSignaler{BaseURL: a.server.URL + "/v1/realtime", Model: "loopback", Logger: testLogger()}
}

func (a *loopbackAnswerer) serveOffer(writer http.ResponseWriter, request *http.Request) {
	offer, err := io.ReadAll(request.Body)
	if err != nil {
		http.Error(writer, err.Error(), http.StatusBadRequest)
		return
	}

	peer, err := newPeerConnection(ICEConfig{})
	if err != nil {
		http.Error(writer, err.Error(), http.StatusInternalServerError)
		return
	}
	a.mu.Lock()
	a.peers = append(a.peers, peer)
	a.mu.Unlock()

	peer.OnDataChannel(func(dataChannel *webrtc.DataChannel) {
		dataChannel.OnOpen(func() {
			dataChannel.SendText(`{"type":"session.created","event_id":"event_server_1"}`)
		})
		dataChannel.OnMessage(func(message webrtc.DataChannelMessage) {
			a.received <- string(message.Data)
		})
	})

	if err := peer.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: string(offer)}); err != nil {
		http.Error(writer, err.Error(), http.StatusBadRequest)
		return
	}
	answer, err := peer.CreateAnswer(nil)
	if err != nil {
		http.Error(writer, err.Error(), http.StatusInternalServerError)
		return
	}
	gatherComplete := webrtc.GatheringCompletePromise(peer)
	if err := peer.SetLocalDescription(answer); err != nil {
		http.Error(writer, err.Error(), http.StatusInternalServerError)
		return
	}
	<-gatherComplete

	writer.Header().Set("Content-Type", "application/sdp")
	writer.WriteHeader(http.StatusCreated)
	io.WriteString(writer, peer.LocalDescription().SDP)
}

func newTestNegotiator(credentials CredentialSource, signaler Signaler, capture CaptureSource) *Negotiator {
	return NewNegotiator(NegotiatorConfig{
		Credentials:        credentials,
		Signaler:           signaler,
		Capture:            capture,
		Recorder:           &memoryRecorder{},
		NegotiationTimeout: 20 * time.Second,
		ICEGatherTimeout:   10 * time.Second,
		Logger:             testLogger(),
	})
}

// TestNegotiator_StartAndExchange negotiates against a loopback pion
// answerer and round-trips events over the data channel.
func TestNegotiator_StartAndExchange(t *testing.T) {
	answerer := newLoopbackAnswerer(t)
	credentials := &staticCredentials{}
	recorder := &memoryRecorder{}
	negotiator := NewNegotiator(NegotiatorConfig{
		Credentials:        credentials,
		Signaler:           answerer.signaler(),
		Capture:            &SilenceSource{},
		Recorder:           recorder,
		NegotiationTimeout: 20 * time.Second,
		ICEGatherTimeout:   10 * time.Second,
		Logger:             testLogger(),
	})
	defer negotiator.Stop()

	var stagesMu sync.Mutex
	var stages []Stage
	negotiator.OnStageChange(func(stage Stage) {
		stagesMu.Lock()
		defer stagesMu.Unlock()
		stages = append(stages, stage)
	})

	session, err := negotiator.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if negotiator.Stage() != Established {
		t.Errorf("Stage() = %s, want established", negotiator.Stage())
	}
	if negotiator.Active() != session {
		t.Error("Active() does not return the started session")
	}
	if !session.CaptureActive() {
		t.Error("silence capture not attached")
	}
	if !credentials.allClosed() {
		t.Error("credential not zeroed after signaling")
	}

	stagesMu.Lock()
	want := []Stage{AcquiringCredential, ConnectingTransport, AwaitingLocalDescription,
		ExchangingDescription, AwaitingRemoteDescription, Established}
	if !slices.Equal(stages, want) {
		t.Errorf("stages = %v, want %v", stages, want)
	}
	stagesMu.Unlock()

	channel := session.Channel()
	if channel.Label() != DefaultDataChannelLabel {
		t.Errorf("label = %q", channel.Label())
	}
	// pion may deliver session.created before running the open handler;
	// the channel queues UpdateOpened first either way.
	update := testutil.RequireReceive(t, channel.Updates(), 15*time.Second, "waiting for data channel open")
	if update.Kind != UpdateOpened {
		t.Fatalf("first update = %s, want opened", update.Kind)
	}
	update = testutil.RequireReceive(t, channel.Updates(), 10*time.Second, "waiting for session.created")
	if update.Kind != UpdateMessage || update.Event.Type != realtime.TypeSessionCreated {
		t.Fatalf("update = %+v, want session.created", update)
	}
	if !channel.Open() {
		t.Error("Open() = false after session.created")
	}
	recorded, resets := recorder.snapshot()
	if resets != 1 {
		t.Errorf("recorder reset %d times, want 1", resets)
	}
	if len(recorded) != 1 || recorded[0].Type != realtime.TypeSessionCreated {
		t.Errorf("recorded = %+v, want session.created", recorded)
	}

	if err := channel.Send(realtime.NewResponseCreate("")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	payload := testutil.RequireReceive(t, answerer.received, 10*time.Second, "waiting for answerer to receive")
	event, err := realtime.ParseEvent([]byte(payload))
	if err != nil {
		t.Fatalf("answerer received malformed payload %q: %v", payload, err)
	}
	if event.Type != realtime.TypeResponseCreate || event.EventID == "" {
		t.Errorf("answerer received %+v", event)
	}

	negotiator.Stop()
	testutil.RequireClosed(t, channel.Done(), 5*time.Second, "waiting for channel close after Stop")
	if negotiator.Stage() != Stopped {
		t.Errorf("Stage() after Stop = %s", negotiator.Stage())
	}
	if negotiator.Active() != nil {
		t.Error("Active() non-nil after Stop")
	}
}

func TestNegotiator_StartWhileActive(t *testing.T) {
	answerer := newLoopbackAnswerer(t)
	negotiator := newTestNegotiator(&staticCredentials{}, answerer.signaler(), nil)
	defer negotiator.Stop()

	if _, err := negotiator.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := negotiator.Start(context.Background()); !errors.Is(err, ErrSessionExists) {
		t.Fatalf("second Start error = %v, want ErrSessionExists", err)
	}

	negotiator.Stop()
	session, err := negotiator.Start(context.Background())
	if err != nil {
		t.Fatalf("Start after Stop failed: %v", err)
	}
	if session.CaptureActive() {
		t.Error("capture active with no capture source")
	}
}

func TestNegotiator_StopIdempotent(t *testing.T) {
	negotiator := newTestNegotiator(&staticCredentials{}, &HTTPSignaler{}, nil)
	negotiator.Stop()
	negotiator.Stop()
	if negotiator.Stage() != Idle {
		t.Errorf("Stage() = %s, want idle after Stop with no session", negotiator.Stage())
	}

	answerer := newLoopbackAnswerer(t)
	negotiator = newTestNegotiator(&staticCredentials{}, answerer.signaler(), nil)
	if _, err := negotiator.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	negotiator.Stop()
	negotiator.Stop()
	if negotiator.Stage() != Stopped {
		t.Errorf("Stage() = %s, want stopped", negotiator.Stage())
	}
}

func TestNegotiator_CaptureDenied(t *testing.T) {
	answerer := newLoopbackAnswerer(t)
	negotiator := newTestNegotiator(&staticCredentials{}, answerer.signaler(), DeniedCapture{})
	defer negotiator.Stop()

	session, err := negotiator.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed with denied capture: %v", err)
	}
	if session.CaptureActive() {
		t.Error("CaptureActive() = true with denied capture")
	}
}

// signalerFunc adapts a function to Signaler.
type signalerFunc func(ctx context.Context, offer string, token *credential.Credential) (string, error)

func (f signalerFunc) Exchange(ctx context.Context, offer string, token *credential.Credential) (string, error) {
	return f(ctx, offer, token)
}

func TestNegotiator_FailureStages(t *testing.T) {
	issuerDown := errors.New("issuer down")
	tests := []struct {
		name        string
		credentials *staticCredentials
		signaler    Signaler
		wantStage   Stage
		wantErr     error
	}{
		{
			name:        "credential",
			credentials: &staticCredentials{err: errors.Join(credential.ErrUnavailable, issuerDown)},
			signaler:    signalerFunc(func(context.Context, string, *credential.Credential) (string, error) { return "", nil }),
			wantStage:   AcquiringCredential,
			wantErr:     credential.ErrUnavailable,
		},
		{
			name:        "signaling",
			credentials: &staticCredentials{},
			signaler: signalerFunc(func(context.Context, string, *credential.Credential) (string, error) {
				return "", issuerDown
			}),
			wantStage: ExchangingDescription,
			wantErr:   issuerDown,
		},
		{
			name:        "remote description",
			credentials: &staticCredentials{},
			signaler: signalerFunc(func(context.Context, string, *credential.Credential) (string, error) {
				return "this is not SDP", nil
			}),
			wantStage: AwaitingRemoteDescription,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			negotiator := newTestNegotiator(test.credentials, test.signaler, nil)
			defer negotiator.Stop()

			session, err := negotiator.Start(context.Background())
			if session != nil {
				t.Error("Start returned a session alongside an error")
			}
			var negotiationError *NegotiationError
			if !errors.As(err, &negotiationError) {
				t.Fatalf("Start error = %v, want *NegotiationError", err)
			}
			if negotiationError.Stage != test.wantStage {
				t.Errorf("failed stage = %s, want %s", negotiationError.Stage, test.wantStage)
			}
			if test.wantErr != nil && !errors.Is(err, test.wantErr) {
				t.Errorf("error %v does not wrap %v", err, test.wantErr)
			}
			if negotiator.Stage() != Failed {
				t.Errorf("Stage() = %s, want failed", negotiator.Stage())
			}
			if len(test.credentials.issued) > 0 && !test.credentials.allClosed() {
				t.Error("credential not zeroed after failure")
			}

			// The failed attempt left no session behind.
			if _, err := negotiator.Start(context.Background()); errors.Is(err, ErrSessionExists) {
				t.Error("Start after failure reports an existing session")
			}
		})
	}
}

func TestNegotiator_StopDuringSignaling(t *testing.T) {
	entered := make(chan struct{})
	signaler := signalerFunc(func(ctx context.Context, _ string, _ *credential.Credential) (string, error) {
		close(entered)
		<-ctx.Done()
		return "", ctx.Err()
	})
	credentials := &staticCredentials{}
	negotiator := newTestNegotiator(credentials, signaler, &SilenceSource{})

	result := make(chan error, 1)
	go func() {
		_, err := negotiator.Start(context.Background())
		result <- err
	}()

	testutil.RequireClosed(t, entered, 15*time.Second, "waiting for signaling")
	if _, err := negotiator.Start(context.Background()); !errors.Is(err, ErrSessionExists) {
		t.Errorf("Start during negotiation = %v, want ErrSessionExists", err)
	}
	negotiator.Stop()

	err := testutil.RequireReceive(t, result, 10*time.Second, "waiting for Start to return")
	var negotiationError *NegotiationError
	if !errors.As(err, &negotiationError) || negotiationError.Stage != ExchangingDescription {
		t.Fatalf("Start error = %v, want *NegotiationError at exchanging-description", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error %v does not wrap context.Canceled", err)
	}
	if negotiator.Stage() != Stopped {
		t.Errorf("Stage() = %s, want stopped", negotiator.Stage())
	}
	if !credentials.allClosed() {
		t.Error("credential not zeroed after Stop")
	}
}

// A context that ends once the answer is in hand fails the attempt at
// the remote description stage, never at established.
func TestNegotiator_CanceledAfterExchange(t *testing.T) {
	answerer := newLoopbackAnswerer(t)
	upstream := answerer.signaler()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signaler := signalerFunc(func(exchangeContext context.Context, offer string, token *credential.Credential) (string, error) {
		answer, err := upstream.Exchange(exchangeContext, offer, token)
		cancel()
		return answer, err
	})
	negotiator := newTestNegotiator(&staticCredentials{}, signaler, nil)
	defer negotiator.Stop()

	_, err := negotiator.Start(ctx)
	var negotiationError *NegotiationError
	if !errors.As(err, &negotiationError) {
		t.Fatalf("Start error = %v, want *NegotiationError", err)
	}
	if negotiationError.Stage != AwaitingRemoteDescription {
		t.Errorf("failed stage = %s, want %s", negotiationError.Stage, AwaitingRemoteDescription)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error %v does not wrap context.Canceled", err)
	}
	if negotiator.Active() != nil {
		t.Error("Active() non-nil after canceled Start")
	}
}

func TestNegotiator_Timeout(t *testing.T) {
	signaler := signalerFunc(func(ctx context.Context, _ string, _ *credential.Credential) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	negotiator := NewNegotiator(NegotiatorConfig{
		Credentials:        &staticCredentials{},
		Signaler:           signaler,
		NegotiationTimeout: 3 * time.Second,
		Logger:             testLogger(),
	})

	_, err := negotiator.Start(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Start error = %v, want context.DeadlineExceeded", err)
	}
}
