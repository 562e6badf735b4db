// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package practiceui

import (
	"fmt"
	"strings"

	"github.com/bureau-foundation/parley/realtime"
)

// FormatEvent renders event as one unstyled log line: timestamp,
// direction, type, and a short detail when the payload has one.
func FormatEvent(event realtime.Event) string {
	direction := "server"
	if isClientEvent(event) {
		direction = "client"
	}
	line := fmt.Sprintf("%-11s  %s  %s", event.Timestamp, direction, event.Type)
	if detail := describeEvent(event); detail != "" {
		line += "  " + detail
	}
	return line
}

// isClientEvent reports whether event was sent by this client. Server
// event IDs carry an "event_" prefix; client IDs are UUIDs.
func isClientEvent(event realtime.Event) bool {
	return !strings.HasPrefix(event.EventID, "event_")
}

// describeEvent returns a short detail string for events whose payload
// is worth a glance in the log.
func describeEvent(event realtime.Event) string {
	switch event.Type {
	case realtime.TypeConversationItemCreate:
		if text := event.ItemText(); text != "" {
			return fmt.Sprintf("%q", text)
		}
	case realtime.TypeResponseCreate:
		if language, ok := realtime.ParseLanguageDirective(event.Instructions()); ok {
			return "tutor: " + language
		}
	case realtime.TypeError:
		var payload struct {
			Message string `json:"message"`
		}
		if found, err := event.Decode("error", &payload); found && err == nil {
			return payload.Message
		}
	}
	return ""
}
