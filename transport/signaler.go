// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bureau-foundation/parley/credential"
	"github.com/bureau-foundation/parley/lib/netutil"
)

// Signaler exchanges a complete SDP offer for the remote answer.
//
// The signaling model is vanilla ICE: all ICE candidates are gathered
// before the offer is sent, so connection establishment requires exactly
// one round-trip.
type Signaler interface {
	// Exchange sends offer, authenticated with credential, and returns
	// the answer SDP. The credential stays owned by the caller.
	Exchange(ctx context.Context, offer string, credential *credential.Credential) (string, error)
}

// Compile-time interface check.
var _ Signaler = (*HTTPSignaler)(nil)

// HTTPSignaler posts the offer to the realtime endpoint.
type HTTPSignaler struct {
	// BaseURL receives the POST, e.g. https://api.openai.com/v1/realtime.
	BaseURL string

	// Model is sent as the model query parameter. Empty omits it.
	Model string

	// Client performs the request. Nil uses a client with a 30 second
	// timeout.
	Client *http.Client

	Logger *slog.Logger
}

// Endpoint returns the URL the offer is posted to.
func (s *HTTPSignaler) Endpoint() (string, error) {
	endpoint, err := url.Parse(s.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing signaling URL: %w", err)
	}
	if s.Model != "" {
		query := endpoint.Query()
		query.Set("model", s.Model)
		endpoint.RawQuery = query.Encode()
	}
	return endpoint.String(), nil
}

// Exchange POSTs offer as application/sdp with a bearer token and
// returns the response body. Any 2xx status is accepted; the realtime
// API answers 201 Created.
func (s *HTTPSignaler) Exchange(ctx context.Context, offer string, credential *credential.Credential) (string, error) {
	endpoint, err := s.Endpoint()
	if err != nil {
		return "", err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(offer))
	if err != nil {
		return "", fmt.Errorf("building signaling request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+credential.Bearer())
	request.Header.Set("Content-Type", "application/sdp")

	s.logger().Debug("sending SDP offer",
		"endpoint", endpoint,
		"offer_bytes", len(offer),
		"credential", credential,
	)

	response, err := s.client().Do(request)
	if err != nil {
		return "", fmt.Errorf("posting SDP offer: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return "", fmt.Errorf("signaling endpoint returned HTTP %d: %s",
			response.StatusCode, netutil.ErrorBody(response.Body))
	}

	answer, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return "", fmt.Errorf("reading SDP answer: %w", err)
	}
	if len(strings.TrimSpace(string(answer))) == 0 {
		return "", fmt.Errorf("signaling endpoint returned an empty SDP answer")
	}
	return string(answer), nil
}

func (s *HTTPSignaler) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (s *HTTPSignaler) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
