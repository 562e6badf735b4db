// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"testing"

	"github.com/bureau-foundation/parley/lib/config"
)

func TestICEConfigFromSettings_Empty(t *testing.T) {
	ice := ICEConfigFromSettings(nil)
	if len(ice.Servers) != 0 {
		t.Errorf("expected no ICE servers, got %d", len(ice.Servers))
	}
}

func TestICEConfigFromSettings_SkipsEmptyURLs(t *testing.T) {
	ice := ICEConfigFromSettings([]config.ICEServerConfig{
		{URLs: nil, Username: "user", Credential: "pass"},
		{URLs: []string{"stun:stun.l.google.com:19302"}},
	})
	if len(ice.Servers) != 1 {
		t.Fatalf("expected 1 ICE server, got %d", len(ice.Servers))
	}
	if ice.Servers[0].Username != "" || ice.Servers[0].Credential != nil {
		t.Errorf("STUN entry carries credentials: %+v", ice.Servers[0])
	}
}

func TestICEConfigFromSettings_WithCredentials(t *testing.T) {
	ice := ICEConfigFromSettings([]config.ICEServerConfig{{
		URLs:       []string{"turn:turn.example.net:3478?transport=udp", "turn:turn.example.net:3478?transport=tcp"},
		Username:   "1234:user",
		Credential: "secret",
	}})
	if len(ice.Servers) != 1 {
		t.Fatalf("expected 1 ICE server entry, got %d", len(ice.Servers))
	}
	server := ice.Servers[0]
	if len(server.URLs) != 2 {
		t.Errorf("expected 2 URLs, got %d", len(server.URLs))
	}
	if server.Username != "1234:user" {
		t.Errorf("username = %q, want %q", server.Username, "1234:user")
	}
	if server.Credential != "secret" {
		t.Errorf("credential = %v, want %q", server.Credential, "secret")
	}
}

func TestStageStrings(t *testing.T) {
	tests := []struct {
		stage    Stage
		name     string
		terminal bool
	}{
		{Idle, "idle", false},
		{AcquiringCredential, "acquiring-credential", false},
		{ExchangingDescription, "exchanging-description", false},
		{Established, "established", true},
		{Stopped, "stopped", true},
		{Failed, "failed", true},
		{Stage(42), "unknown", false},
	}
	for _, test := range tests {
		if got := test.stage.String(); got != test.name {
			t.Errorf("Stage(%d).String() = %q, want %q", int(test.stage), got, test.name)
		}
		if got := test.stage.Terminal(); got != test.terminal {
			t.Errorf("Stage(%d).Terminal() = %v, want %v", int(test.stage), got, test.terminal)
		}
	}
}
