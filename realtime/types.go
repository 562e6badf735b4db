// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package realtime

import "fmt"

// Server event types the session layer reacts to or logs.
const (
	TypeSessionCreated          = "session.created"
	TypeSessionUpdated          = "session.updated"
	TypeResponseCreated         = "response.created"
	TypeResponseChunk           = "response.chunk"
	TypeResponseAudioTranscript = "response.audio_transcript.delta"
	TypeResponseDone            = "response.done"
	TypeError                   = "error"
)

// Client event types.
const (
	TypeSessionUpdate          = "session.update"
	TypeConversationItemCreate = "conversation.item.create"
	TypeResponseCreate         = "response.create"
)

// OutputTypeFunctionCall tags a response output item that invokes a tool.
const OutputTypeFunctionCall = "function_call"

// Response is the "response" object of response.created/response.done
// server events and the optional parameters of a response.create client
// event.
type Response struct {
	ID           string       `json:"id,omitempty"`
	Status       string       `json:"status,omitempty"`
	Instructions string       `json:"instructions,omitempty"`
	Output       []OutputItem `json:"output,omitempty"`
}

// OutputItem is one element of response.output.
type OutputItem struct {
	ID        string `json:"id,omitempty"`
	Type      string `json:"type"`
	Status    string `json:"status,omitempty"`
	Name      string `json:"name,omitempty"`
	CallID    string `json:"call_id,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// ConversationItem is the "item" of a conversation.item.create event.
type ConversationItem struct {
	Type    string        `json:"type"`
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart is one piece of conversation item content.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// NewConversationItemCreate returns a conversation.item.create event
// carrying text as user input.
func NewConversationItemCreate(text string) Event {
	event := NewEvent(TypeConversationItemCreate)
	// ConversationItem always encodes.
	_ = event.SetField("item", ConversationItem{
		Type: "message",
		Role: "user",
		Content: []ContentPart{
			{Type: "input_text", Text: text},
		},
	})
	return event
}

// NewResponseCreate returns a response.create event. Empty instructions
// produce an event with no response object at all.
func NewResponseCreate(instructions string) Event {
	event := NewEvent(TypeResponseCreate)
	if instructions != "" {
		_ = event.SetField("response", Response{Instructions: instructions})
	}
	return event
}

// Response decodes the "response" field. The boolean is false when the
// event has none.
func (e Event) Response() (Response, bool, error) {
	var response Response
	present, err := e.Decode("response", &response)
	return response, present, err
}

// Instructions returns response.instructions of a response.create event,
// or "" when absent or undecodable.
func (e Event) Instructions() string {
	if e.Type != TypeResponseCreate {
		return ""
	}
	response, _, err := e.Response()
	if err != nil {
		return ""
	}
	return response.Instructions
}

// ResponseDone decodes the response of a response.done event.
func (e Event) ResponseDone() (Response, error) {
	if e.Type != TypeResponseDone {
		return Response{}, fmt.Errorf("event type %q is not %s", e.Type, TypeResponseDone)
	}
	response, present, err := e.Response()
	if err != nil {
		return Response{}, err
	}
	if !present {
		return Response{}, fmt.Errorf("%s without response", TypeResponseDone)
	}
	return response, nil
}

// TranscriptDelta returns the text of a response.audio_transcript.delta
// event. Servers send it as "delta"; older builds used "text".
func (e Event) TranscriptDelta() string {
	if e.Type != TypeResponseAudioTranscript {
		return ""
	}
	for _, name := range []string{"delta", "text"} {
		var text string
		if present, err := e.Decode(name, &text); present && err == nil && text != "" {
			return text
		}
	}
	return ""
}

// ItemText returns the input_text of a conversation.item.create event.
func (e Event) ItemText() string {
	var item ConversationItem
	if present, err := e.Decode("item", &item); !present || err != nil {
		return ""
	}
	for _, part := range item.Content {
		if part.Type == "input_text" {
			return part.Text
		}
	}
	return ""
}
