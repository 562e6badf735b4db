// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/parley/lib/clock"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func issuer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetch(t *testing.T) {
	server := issuer(t, http.StatusOK, `{"client_secret":{"value":"ek_abcdef123456","expires_at":1900000000}}`)
	fetcher := &Fetcher{
		URL:    server.URL,
		Clock:  clock.Fake(time.Unix(1800000000, 0)),
		Logger: discardLogger(),
	}

	credential, err := fetcher.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	defer credential.Close()

	if got := credential.Bearer(); got != "ek_abcdef123456" {
		t.Errorf("Bearer() = %q", got)
	}
	if got := credential.ExpiresAt(); !got.Equal(time.Unix(1900000000, 0)) {
		t.Errorf("ExpiresAt() = %v", got)
	}
	if strings.Contains(credential.String(), "123456") {
		t.Errorf("String() = %q reveals the token", credential.String())
	}
}

func TestFetchWithoutExpiry(t *testing.T) {
	server := issuer(t, http.StatusOK, `{"client_secret":{"value":"ek_token_value"}}`)
	fetcher := &Fetcher{URL: server.URL, Logger: discardLogger()}

	credential, err := fetcher.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	defer credential.Close()
	if !credential.ExpiresAt().IsZero() {
		t.Errorf("ExpiresAt() = %v, want zero", credential.ExpiresAt())
	}
}

func TestFetchUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"upstream down"}`},
		{"unauthorized", http.StatusUnauthorized, ``},
		{"not json", http.StatusOK, `<html>`},
		{"missing client_secret", http.StatusOK, `{"token":"x"}`},
		{"empty value", http.StatusOK, `{"client_secret":{"value":""}}`},
		{"expired", http.StatusOK, `{"client_secret":{"value":"ek_expired_token","expires_at":1700000000}}`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			server := issuer(t, test.status, test.body)
			fetcher := &Fetcher{
				URL:    server.URL,
				Clock:  clock.Fake(time.Unix(1800000000, 0)),
				Logger: discardLogger(),
			}
			credential, err := fetcher.Fetch(context.Background())
			if !errors.Is(err, ErrUnavailable) {
				t.Fatalf("Fetch error = %v, want ErrUnavailable", err)
			}
			if credential != nil {
				t.Error("Fetch returned a credential alongside an error")
			}
		})
	}
}

func TestFetchUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	fetcher := &Fetcher{URL: url, Logger: discardLogger()}
	if _, err := fetcher.Fetch(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Fetch error = %v, want ErrUnavailable", err)
	}
}

func TestFetchCanceled(t *testing.T) {
	server := issuer(t, http.StatusOK, `{"client_secret":{"value":"ek_token_value"}}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &Fetcher{URL: server.URL, Logger: discardLogger()}
	_, err := fetcher.Fetch(ctx)
	if !errors.Is(err, ErrUnavailable) || !errors.Is(err, context.Canceled) {
		t.Fatalf("Fetch error = %v, want ErrUnavailable wrapping context.Canceled", err)
	}
}

func TestCredentialClose(t *testing.T) {
	credential, err := New("ek_closing_token", time.Time{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := credential.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := credential.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if !credential.Closed() {
		t.Error("Closed() = false after Close")
	}
	if got := credential.String(); got != "[closed]" {
		t.Errorf("String() after Close = %q", got)
	}
}
