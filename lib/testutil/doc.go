// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive] and [RequireClosed] encapsulate the timeout safety
// valve (select with a time.After fallback) so that tests waiting on
// pion callbacks or processor updates never hang the suite. They are the
// only place tests use real wall-clock timeouts; everything else drives
// time through clock.Fake.
//
// All helpers call t.Fatalf on failure.
package testutil
