// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"

	"github.com/google/uuid"
)

// ErrMalformedEvent is returned by ParseEvent for payloads that are not
// a JSON object with a non-empty string "type".
var ErrMalformedEvent = errors.New("malformed event")

// Envelope field names managed by the session layer.
const (
	fieldType      = "type"
	fieldEventID   = "event_id"
	fieldTimestamp = "timestamp"
)

// Event is one message on the data channel. Type is required; EventID
// and Timestamp are optional and filled in by the transport when empty.
// All other fields are kept as raw JSON.
//
// Event values share their field storage; use Clone before handing an
// Event to code that may call SetField.
type Event struct {
	Type      string
	EventID   string
	Timestamp string

	fields map[string]json.RawMessage
}

// NewEvent returns an Event of the given type with no payload.
func NewEvent(eventType string) Event {
	return Event{Type: eventType}
}

// NewEventID returns a fresh random event identifier.
func NewEventID() string {
	return uuid.New().String()
}

// ParseEvent decodes one data channel message.
func ParseEvent(data []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		if errors.Is(err, ErrMalformedEvent) {
			return Event{}, err
		}
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return event, nil
}

// SetField stores value, JSON-encoded, under name. The envelope names
// (type, event_id, timestamp) are rejected; set the struct fields
// instead.
func (e *Event) SetField(name string, value any) error {
	switch name {
	case fieldType, fieldEventID, fieldTimestamp:
		return fmt.Errorf("field %q is part of the envelope", name)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding field %q: %w", name, err)
	}
	if e.fields == nil {
		e.fields = make(map[string]json.RawMessage)
	}
	e.fields[name] = raw
	return nil
}

// Field returns the raw JSON stored under name.
func (e Event) Field(name string) (json.RawMessage, bool) {
	raw, ok := e.fields[name]
	return raw, ok
}

// Decode unmarshals the field stored under name into v. A missing field
// leaves v untouched and returns false.
func (e Event) Decode(name string, v any) (bool, error) {
	raw, ok := e.fields[name]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decoding %s.%s: %w", e.Type, name, err)
	}
	return true, nil
}

// Clone returns a deep copy.
func (e Event) Clone() Event {
	clone := e
	if e.fields != nil {
		clone.fields = make(map[string]json.RawMessage, len(e.fields))
		for name, raw := range e.fields {
			clone.fields[name] = bytes.Clone(raw)
		}
	}
	return clone
}

// FieldNames returns the payload field names, unordered.
func (e Event) FieldNames() []string {
	names := make([]string, 0, len(e.fields))
	for name := range maps.Keys(e.fields) {
		names = append(names, name)
	}
	return names
}

// MarshalJSON flattens the envelope and payload into one object. Empty
// EventID and Timestamp are omitted.
func (e Event) MarshalJSON() ([]byte, error) {
	object := make(map[string]json.RawMessage, len(e.fields)+3)
	maps.Copy(object, e.fields)

	encoded, err := json.Marshal(e.Type)
	if err != nil {
		return nil, err
	}
	object[fieldType] = encoded

	if e.EventID != "" {
		encoded, err := json.Marshal(e.EventID)
		if err != nil {
			return nil, err
		}
		object[fieldEventID] = encoded
	}
	if e.Timestamp != "" {
		encoded, err := json.Marshal(e.Timestamp)
		if err != nil {
			return nil, err
		}
		object[fieldTimestamp] = encoded
	}
	return json.Marshal(object)
}

// UnmarshalJSON splits an object into envelope and payload. A timestamp
// that is not a JSON string is kept as its literal text so a preset value
// is never replaced.
func (e *Event) UnmarshalJSON(data []byte) error {
	var object map[string]json.RawMessage
	if err := json.Unmarshal(data, &object); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if object == nil {
		return fmt.Errorf("%w: not an object", ErrMalformedEvent)
	}

	var decoded Event
	raw, ok := object[fieldType]
	if !ok {
		return fmt.Errorf("%w: missing type", ErrMalformedEvent)
	}
	if err := json.Unmarshal(raw, &decoded.Type); err != nil || decoded.Type == "" {
		return fmt.Errorf("%w: type must be a non-empty string", ErrMalformedEvent)
	}
	delete(object, fieldType)

	if raw, ok := object[fieldEventID]; ok {
		if err := json.Unmarshal(raw, &decoded.EventID); err != nil {
			return fmt.Errorf("%w: event_id must be a string", ErrMalformedEvent)
		}
		delete(object, fieldEventID)
	}

	if raw, ok := object[fieldTimestamp]; ok {
		if err := json.Unmarshal(raw, &decoded.Timestamp); err != nil {
			decoded.Timestamp = string(raw)
		}
		delete(object, fieldTimestamp)
	}

	if len(object) > 0 {
		decoded.fields = object
	}
	*e = decoded
	return nil
}
