// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"log/slog"
	"time"

	"github.com/bureau-foundation/parley/lib/secret"
)

// Credential is an issued bearer token. The zero value is not usable;
// obtain one from a Fetcher or New.
type Credential struct {
	token     *secret.Buffer
	expiresAt time.Time
}

// New wraps an already-obtained token. Used by tests and by callers that
// receive the token out of band.
func New(token string, expiresAt time.Time) (*Credential, error) {
	buffer, err := secret.NewFromString(token)
	if err != nil {
		return nil, err
	}
	return &Credential{token: buffer, expiresAt: expiresAt}, nil
}

// Bearer returns the token for an Authorization header. Panics after
// Close.
func (c *Credential) Bearer() string {
	return c.token.String()
}

// ExpiresAt returns the issuer-reported expiry, or the zero time when
// the issuer did not report one.
func (c *Credential) ExpiresAt() time.Time {
	return c.expiresAt
}

// String returns a redacted form safe for logs.
func (c *Credential) String() string {
	return c.token.Hint()
}

// LogValue implements slog.LogValuer.
func (c *Credential) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("hint", c.token.Hint())}
	if !c.expiresAt.IsZero() {
		attrs = append(attrs, slog.Time("expires_at", c.expiresAt))
	}
	return slog.GroupValue(attrs...)
}

// Close zeroes the token. Safe to call more than once.
func (c *Credential) Close() error {
	return c.token.Close()
}

// Closed reports whether Close has been called.
func (c *Credential) Closed() bool {
	return c.token.Closed()
}
