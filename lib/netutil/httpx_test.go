// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"testing"
)

func TestReadResponse(t *testing.T) {
	t.Run("sdp body", func(t *testing.T) {
		data, err := ReadResponse(strings.NewReader("v=0\r\n"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != "v=0\r\n" {
			t.Fatalf("got %q, want %q", data, "v=0\r\n")
		}
	})

	t.Run("truncated at limit", func(t *testing.T) {
		oversized := bytes.Repeat([]byte("a"), int(MaxResponseSize)+10)
		data, err := ReadResponse(bytes.NewReader(oversized))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if int64(len(data)) != MaxResponseSize {
			t.Fatalf("len = %d, want %d", len(data), MaxResponseSize)
		}
	})

	t.Run("read error propagates", func(t *testing.T) {
		if _, err := ReadResponse(&failReader{}); err == nil {
			t.Fatal("expected error from failing reader")
		}
	})
}

func TestDecodeResponse(t *testing.T) {
	var envelope struct {
		ClientSecret struct {
			Value string `json:"value"`
		} `json:"client_secret"`
	}
	body := strings.NewReader(`{"client_secret":{"value":"ek_abc"}}`)
	if err := DecodeResponse(body, &envelope); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if envelope.ClientSecret.Value != "ek_abc" {
		t.Fatalf("value = %q, want %q", envelope.ClientSecret.Value, "ek_abc")
	}

	if err := DecodeResponse(strings.NewReader("<html>"), &envelope); err == nil {
		t.Fatal("expected error for non-JSON body")
	}
}

func TestErrorBodyTruncates(t *testing.T) {
	long := strings.Repeat("x", 2*maxErrorBody)
	if got := ErrorBody(strings.NewReader(long)); len(got) != maxErrorBody {
		t.Fatalf("len(ErrorBody) = %d, want %d", len(got), maxErrorBody)
	}
}

func TestIsExpectedCloseError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{io.EOF, true},
		{fmt.Errorf("reading rtp: %w", io.EOF), true},
		{io.ErrClosedPipe, true},
		{net.ErrClosed, true},
		{syscall.EPIPE, true},
		{syscall.ECONNRESET, true},
		{errors.New("dtls: handshake failed"), false},
	}
	for _, test := range tests {
		if got := IsExpectedCloseError(test.err); got != test.want {
			t.Errorf("IsExpectedCloseError(%v) = %v, want %v", test.err, got, test.want)
		}
	}
}

type failReader struct{}

func (*failReader) Read([]byte) (int, error) {
	return 0, fmt.Errorf("simulated read failure")
}
