// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used by the session
// layer for event timestamps, the delayed tool feedback request, and the
// silence capture pacing.
//
// Production code holds a [Clock] field set to [Real]. Tests set it to
// [Fake] and drive timers deterministically:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	processor := session.NewProcessor(session.ProcessorConfig{Clock: fake})
//	// ... deliver a tool call ...
//	fake.WaitForTimers(1)                  // feedback timer registered
//	fake.Advance(500 * time.Millisecond)  // fires it synchronously
//
// WaitForTimers removes the race between a goroutine registering a timer
// and the test advancing the clock.
package clock
