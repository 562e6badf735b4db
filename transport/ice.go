// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"github.com/pion/webrtc/v4"

	"github.com/bureau-foundation/parley/lib/config"
)

// ICEConfig holds ICE server configuration for the PeerConnection.
type ICEConfig struct {
	// Servers is the list of ICE servers (STUN + TURN) to use during
	// candidate gathering. Empty means host candidates only.
	Servers []webrtc.ICEServer
}

// ICEConfigFromSettings converts the configured server list. Entries
// without URLs are skipped.
func ICEConfigFromSettings(servers []config.ICEServerConfig) ICEConfig {
	var result ICEConfig
	for _, server := range servers {
		if len(server.URLs) == 0 {
			continue
		}
		entry := webrtc.ICEServer{URLs: server.URLs}
		if server.Username != "" || server.Credential != "" {
			entry.Username = server.Username
			entry.Credential = server.Credential
		}
		result.Servers = append(result.Servers, entry)
	}
	return result
}
