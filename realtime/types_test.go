// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package realtime

import (
	"encoding/json"
	"testing"
)

func TestNewResponseCreateWithoutInstructions(t *testing.T) {
	encoded, err := json.Marshal(NewResponseCreate(""))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(encoded) != `{"type":"response.create"}` {
		t.Errorf("encoded = %s", encoded)
	}
}

func TestNewResponseCreateWithInstructions(t *testing.T) {
	event := NewResponseCreate("practice French at Beginner level")
	if got := event.Instructions(); got != "practice French at Beginner level" {
		t.Errorf("Instructions() = %q", got)
	}
}

func TestNewConversationItemCreate(t *testing.T) {
	event := NewConversationItemCreate("Hola")
	encoded, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"item":{"type":"message","role":"user","content":[{"type":"input_text","text":"Hola"}]},"type":"conversation.item.create"}`
	if string(encoded) != want {
		t.Errorf("encoded = %s\nwant    %s", encoded, want)
	}
	if got := event.ItemText(); got != "Hola" {
		t.Errorf("ItemText() = %q", got)
	}
}

func TestResponseDone(t *testing.T) {
	event, err := ParseEvent([]byte(`{
		"type": "response.done",
		"response": {
			"id": "resp_1",
			"status": "completed",
			"output": [
				{"type": "message", "id": "item_1"},
				{"type": "function_call", "name": "display_color_palette", "call_id": "call_1",
				 "arguments": "{\"theme\":\"sunset\",\"colors\":[\"#ff0000\"]}"}
			]
		}
	}`))
	if err != nil {
		t.Fatalf("ParseEvent failed: %v", err)
	}
	response, err := event.ResponseDone()
	if err != nil {
		t.Fatalf("ResponseDone failed: %v", err)
	}
	if response.ID != "resp_1" || len(response.Output) != 2 {
		t.Fatalf("response = %+v", response)
	}
	call := response.Output[1]
	if call.Type != OutputTypeFunctionCall || call.Name != ColorPaletteTool || call.CallID != "call_1" {
		t.Errorf("call = %+v", call)
	}

	if _, err := NewEvent(TypeResponseDone).ResponseDone(); err == nil {
		t.Error("ResponseDone without response object succeeded")
	}
	if _, err := NewEvent(TypeSessionCreated).ResponseDone(); err == nil {
		t.Error("ResponseDone on session.created succeeded")
	}
}

func TestTranscriptDelta(t *testing.T) {
	tests := []struct {
		data string
		want string
	}{
		{`{"type":"response.audio_transcript.delta","delta":"Bonjour"}`, "Bonjour"},
		{`{"type":"response.audio_transcript.delta","text":"Hola"}`, "Hola"},
		{`{"type":"response.audio_transcript.delta"}`, ""},
		{`{"type":"response.created","delta":"ignored"}`, ""},
	}
	for _, test := range tests {
		event, err := ParseEvent([]byte(test.data))
		if err != nil {
			t.Fatalf("ParseEvent(%s) failed: %v", test.data, err)
		}
		if got := event.TranscriptDelta(); got != test.want {
			t.Errorf("TranscriptDelta(%s) = %q, want %q", test.data, got, test.want)
		}
	}
}
