// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for parley.
//
// Configuration comes from a single file named by the PARLEY_CONFIG
// environment variable (via [Load]) or a --config flag (via [LoadFile]).
// Every value has a default in [Default], so a client with no file talks
// to the stock issuer path and the public realtime endpoint. Environment
// variables never override individual values; the only expansion is
// ${HOME} and ${VAR:-default} in file path fields.
//
// The file may carry development and production sections that override
// base values when [Config].Environment matches. Production tightens
// the negotiation timeout and raises the default log level to warn.
//
// Key exports:
//
//   - [Config] -- Issuer, Signaling, Transport, Tools, Logging
//   - [Default] -- development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Config.Validate] -- aggregated field errors
package config
