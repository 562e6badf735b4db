// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bureau-foundation/parley/lib/clock"
	"github.com/bureau-foundation/parley/lib/netutil"
	"github.com/bureau-foundation/parley/lib/secret"
)

// ErrUnavailable is matched by every error Fetch returns.
var ErrUnavailable = errors.New("credential unavailable")

// Fetcher retrieves credentials from an issuer endpoint.
type Fetcher struct {
	// URL is the issuer endpoint, e.g. http://localhost:3000/token.
	URL string

	// Client performs the request. Nil uses a client with a 10 second
	// timeout.
	Client *http.Client

	// Clock decides whether a returned credential has already expired.
	// Nil uses the real clock.
	Clock clock.Clock

	Logger *slog.Logger
}

// issuerResponse is the issuer's JSON envelope.
type issuerResponse struct {
	ClientSecret *struct {
		Value     string `json:"value"`
		ExpiresAt int64  `json:"expires_at"`
	} `json:"client_secret"`
}

// Fetch performs one GET against the issuer and returns the credential.
// The caller owns the result and must Close it.
func (f *Fetcher) Fetch(ctx context.Context) (*Credential, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrUnavailable, err)
	}
	request.Header.Set("Accept", "application/json")

	response, err := f.client().Do(request)
	if err != nil {
		return nil, fmt.Errorf("%w: requesting %s: %w", ErrUnavailable, f.URL, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, fmt.Errorf("%w: issuer returned HTTP %d: %s",
			ErrUnavailable, response.StatusCode, netutil.ErrorBody(response.Body))
	}

	var envelope issuerResponse
	if err := netutil.DecodeResponse(response.Body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decoding issuer response: %v", ErrUnavailable, err)
	}
	if envelope.ClientSecret == nil || envelope.ClientSecret.Value == "" {
		return nil, fmt.Errorf("%w: issuer response has no client_secret.value", ErrUnavailable)
	}

	var expiresAt time.Time
	if envelope.ClientSecret.ExpiresAt > 0 {
		expiresAt = time.Unix(envelope.ClientSecret.ExpiresAt, 0)
		if !expiresAt.After(f.clock().Now()) {
			return nil, fmt.Errorf("%w: credential expired at %s",
				ErrUnavailable, expiresAt.UTC().Format(time.RFC3339))
		}
	}

	token, err := secret.NewFromString(envelope.ClientSecret.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	credential := &Credential{token: token, expiresAt: expiresAt}

	f.logger().Debug("credential issued",
		"issuer", f.URL,
		"credential", credential,
	)
	return credential, nil
}

func (f *Fetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (f *Fetcher) clock() clock.Clock {
	if f.Clock != nil {
		return f.Clock
	}
	return clock.Real()
}

func (f *Fetcher) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}
