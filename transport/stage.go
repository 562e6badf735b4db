// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

// Stage is a step of the negotiation chain.
type Stage int

const (
	Idle Stage = iota
	AcquiringCredential
	ConnectingTransport
	AwaitingLocalDescription
	ExchangingDescription
	AwaitingRemoteDescription
	Established

	// Stopped and Failed are terminal for one attempt. The Negotiator
	// accepts a new Start from either.
	Stopped
	Failed
)

var stageNames = [...]string{
	Idle:                      "idle",
	AcquiringCredential:       "acquiring-credential",
	ConnectingTransport:       "connecting-transport",
	AwaitingLocalDescription:  "awaiting-local-description",
	ExchangingDescription:     "exchanging-description",
	AwaitingRemoteDescription: "awaiting-remote-description",
	Established:               "established",
	Stopped:                   "stopped",
	Failed:                    "failed",
}

var stageActivities = [...]string{
	Idle:                      "idle",
	AcquiringCredential:       "acquiring a credential",
	ConnectingTransport:       "building the peer connection",
	AwaitingLocalDescription:  "gathering ICE candidates",
	ExchangingDescription:     "exchanging session descriptions",
	AwaitingRemoteDescription: "applying the remote description",
	Established:               "established",
	Stopped:                   "stopped",
	Failed:                    "failed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// Activity describes the stage as an in-progress action, for errors.
func (s Stage) Activity() string {
	if s < 0 || int(s) >= len(stageActivities) {
		return "unknown"
	}
	return stageActivities[s]
}

// Terminal reports whether the stage ends an attempt.
func (s Stage) Terminal() bool {
	return s == Established || s == Stopped || s == Failed
}
