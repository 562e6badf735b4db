// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds short-lived bearer credentials in memory that the
// Go runtime never sees.
//
// [Buffer] allocates with mmap(MAP_ANONYMOUS), locks the pages with mlock
// so they cannot be swapped, and marks them MADV_DONTDUMP so they stay out
// of core dumps. Close zeroes, unlocks, and unmaps the region. Access goes
// through [Buffer.String], which makes a heap copy and should only be
// called at the boundary that needs the value (the signaling request's
// Authorization header). After Close any access panics; Close is
// idempotent.
//
// Depends on golang.org/x/sys/unix.
package secret
