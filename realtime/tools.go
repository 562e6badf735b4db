// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package realtime

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"
)

// ColorPaletteTool is the function name the model calls to show a palette.
const ColorPaletteTool = "display_color_palette"

// MaxPaletteColors bounds the colors array of a palette call.
const MaxPaletteColors = 5

// FeedbackInstructions is sent as a response.create after a palette is
// shown, asking the model to check whether the learner likes it.
const FeedbackInstructions = "ask for feedback about the color palette - don't repeat the colors, just ask if they like the colors."

// ErrMalformedToolArguments is returned for palette arguments that do not
// match the tool schema.
var ErrMalformedToolArguments = errors.New("malformed tool arguments")

//go:embed session_update.jsonc
var defaultSessionUpdate []byte

var hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Palette is the decoded argument object of a display_color_palette call.
type Palette struct {
	Theme  string   `json:"theme"`
	Colors []string `json:"colors"`
}

// ParsePaletteArguments decodes and validates a palette call's arguments:
// a theme string and 1..MaxPaletteColors hex colors (#rgb or #rrggbb).
func ParsePaletteArguments(arguments string) (Palette, error) {
	var raw struct {
		Theme  *string  `json:"theme"`
		Colors []string `json:"colors"`
	}
	if err := json.Unmarshal([]byte(arguments), &raw); err != nil {
		return Palette{}, fmt.Errorf("%w: %v", ErrMalformedToolArguments, err)
	}
	if raw.Theme == nil {
		return Palette{}, fmt.Errorf("%w: missing theme", ErrMalformedToolArguments)
	}
	if len(raw.Colors) == 0 {
		return Palette{}, fmt.Errorf("%w: no colors", ErrMalformedToolArguments)
	}
	if len(raw.Colors) > MaxPaletteColors {
		return Palette{}, fmt.Errorf("%w: %d colors, at most %d allowed",
			ErrMalformedToolArguments, len(raw.Colors), MaxPaletteColors)
	}
	for index, color := range raw.Colors {
		if !hexColorPattern.MatchString(color) {
			return Palette{}, fmt.Errorf("%w: colors[%d] %q is not a hex color",
				ErrMalformedToolArguments, index, color)
		}
	}
	return Palette{Theme: *raw.Theme, Colors: raw.Colors}, nil
}

// LoadSessionUpdate builds the session.update event from a JSONC file
// holding the "session" object. An empty path uses the embedded
// definition that registers ColorPaletteTool.
func LoadSessionUpdate(path string) (Event, error) {
	data := defaultSessionUpdate
	source := "embedded session update"
	if path != "" {
		fileData, err := os.ReadFile(path)
		if err != nil {
			return Event{}, fmt.Errorf("reading session update: %w", err)
		}
		data = fileData
		source = path
	}
	return ParseSessionUpdate(data, source)
}

// ParseSessionUpdate strips JSONC comments and trailing commas from data
// and wraps the resulting object in a session.update event. source names
// the input in errors.
func ParseSessionUpdate(data []byte, source string) (Event, error) {
	stripped := jsonc.ToJSON(data)

	var session map[string]json.RawMessage
	if err := json.Unmarshal(stripped, &session); err != nil {
		return Event{}, fmt.Errorf("parsing %s: %w", source, err)
	}
	if session == nil {
		return Event{}, fmt.Errorf("parsing %s: session must be an object", source)
	}

	if raw, ok := session["tools"]; ok {
		var tools []struct {
			Type string `json:"type"`
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &tools); err != nil {
			return Event{}, fmt.Errorf("parsing %s: tools: %w", source, err)
		}
		for index, tool := range tools {
			if tool.Type == "function" && strings.TrimSpace(tool.Name) == "" {
				return Event{}, fmt.Errorf("parsing %s: tools[%d] has no name", source, index)
			}
		}
	}

	event := NewEvent(TypeSessionUpdate)
	if err := event.SetField("session", json.RawMessage(stripped)); err != nil {
		return Event{}, err
	}
	return event, nil
}

// ToolNames returns the function names registered by a session.update
// event.
func ToolNames(sessionUpdate Event) []string {
	var session struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	if present, err := sessionUpdate.Decode("session", &session); !present || err != nil {
		return nil
	}
	names := make([]string, 0, len(session.Tools))
	for _, tool := range session.Tools {
		names = append(names, tool.Name)
	}
	return names
}
