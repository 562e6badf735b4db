// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package realtime defines the application protocol carried over the
// session's data channel: one UTF-8 JSON object per message, each with a
// required "type" field.
//
// [Event] is the envelope. It exposes the three fields the session layer
// manages (type, event_id, timestamp) and keeps every other field as raw
// JSON so unknown server events pass through untouched. [ParseEvent]
// rejects payloads that are not JSON objects or lack a type with
// [ErrMalformedEvent].
//
// Outbound builders cover the client events the session layer sends:
// [NewConversationItemCreate], [NewResponseCreate], and the
// session.update registration built by [LoadSessionUpdate] from a JSONC
// definition (embedded by default, replaceable by file). Inbound decoders
// cover the events the session layer reacts to: [Event.ResponseDone] and
// [Event.TranscriptDelta].
//
// The language-practice overlay lives here too: [ParseLanguageDirective]
// is a fixed-grammar scanner for "practice <Language> at" in instruction
// text, [TutorInstructions] renders the instruction template for a
// language and level, and [ParsePaletteArguments] validates the
// display_color_palette tool's arguments.
package realtime
