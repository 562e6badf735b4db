// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package practiceui implements the terminal overlay for a language
// practice session. Built on bubbletea (Elm architecture), it shows the
// session status, the practice language selection, the latest color
// palette tool call, the model's speech transcript, and the event log,
// with a text input for typed messages.
//
// The model talks to the session through the [Controller] interface;
// [session.Controller] implements it. State arrives by polling
// Controller.Snapshot after each notification on Controller.Changes, so
// the model never shares memory with the processor goroutine.
//
// Data flow:
//
//	[session.Processor] --Changes--> [Model] <- bubbletea event loop
//	        ^                           |
//	        +------ Controller calls ---+
//	                                    |
//	                           [terminal output]
package practiceui
