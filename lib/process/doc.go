// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the binary entrypoint error handler. It is the
// one place raw stderr output is allowed before the structured logger
// exists.
package process
