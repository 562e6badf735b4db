// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package credential obtains the short-lived bearer token that
// authorizes one realtime session.
//
// A [Fetcher] performs a single GET against the token issuer and
// extracts client_secret.value from the JSON envelope. The token is
// moved straight into a [secret.Buffer] so it lives in locked memory
// for the few seconds between issue and signaling. Every failure
// (network error, non-2xx status, unparseable body, missing or empty
// value, already-expired token) matches [ErrUnavailable].
//
// Fetch does not retry. The caller decides whether another session
// attempt is worthwhile.
package credential
