// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides bounded HTTP body reads and connection error
// classification for the credential and signaling clients.
//
// Both remote endpoints return small bodies (a JSON credential envelope,
// an SDP answer of a few kilobytes). Reads are capped at MaxResponseSize
// so a misbehaving server cannot exhaust memory.
package netutil

import (
	"encoding/json"
	"fmt"
	"io"
)

// MaxResponseSize bounds every response body read: 1 MiB. An SDP answer
// with a full candidate list is well under 16 KiB.
const MaxResponseSize int64 = 1 << 20

// maxErrorBody bounds how much of an error response is quoted back in
// an error message.
const maxErrorBody = 512

// ReadResponse reads a response body up to MaxResponseSize bytes.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// DecodeResponse reads a body (up to MaxResponseSize) and JSON-decodes it
// into v.
func DecodeResponse(body io.Reader, v any) error {
	data, err := ReadResponse(body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	return json.Unmarshal(data, v)
}

// ErrorBody returns the start of an error response body for diagnostics.
// Read errors are ignored; a partial body is still useful.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
	return string(data)
}
