// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package realtime

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestParsePaletteArguments(t *testing.T) {
	palette, err := ParsePaletteArguments(`{"theme":"sunset","colors":["#ff0000","#ff7700","#ffaa00","#aa00ff","#000033"]}`)
	if err != nil {
		t.Fatalf("ParsePaletteArguments failed: %v", err)
	}
	if palette.Theme != "sunset" {
		t.Errorf("Theme = %q", palette.Theme)
	}
	want := []string{"#ff0000", "#ff7700", "#ffaa00", "#aa00ff", "#000033"}
	if !slices.Equal(palette.Colors, want) {
		t.Errorf("Colors = %v, want %v", palette.Colors, want)
	}
}

func TestParsePaletteArgumentsMalformed(t *testing.T) {
	tests := []struct {
		name      string
		arguments string
	}{
		{"not json", `{"theme":`},
		{"missing theme", `{"colors":["#fff"]}`},
		{"no colors", `{"theme":"ocean","colors":[]}`},
		{"too many colors", `{"theme":"ocean","colors":["#000","#111","#222","#333","#444","#555"]}`},
		{"named color", `{"theme":"ocean","colors":["blue"]}`},
		{"short hex", `{"theme":"ocean","colors":["#12"]}`},
		{"colors not array", `{"theme":"ocean","colors":"#fff"}`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ParsePaletteArguments(test.arguments)
			if !errors.Is(err, ErrMalformedToolArguments) {
				t.Fatalf("error = %v, want ErrMalformedToolArguments", err)
			}
		})
	}
}

func TestLoadSessionUpdateEmbedded(t *testing.T) {
	event, err := LoadSessionUpdate("")
	if err != nil {
		t.Fatalf("LoadSessionUpdate failed: %v", err)
	}
	if event.Type != TypeSessionUpdate {
		t.Errorf("Type = %q", event.Type)
	}
	if names := ToolNames(event); !slices.Equal(names, []string{ColorPaletteTool}) {
		t.Errorf("ToolNames = %v", names)
	}
	var session struct {
		ToolChoice string `json:"tool_choice"`
	}
	if _, err := event.Decode("session", &session); err != nil || session.ToolChoice != "auto" {
		t.Errorf("tool_choice = %q (err %v)", session.ToolChoice, err)
	}
}

func TestLoadSessionUpdateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools.jsonc")
	content := `{
		// no tools, voice only
		"voice": "alloy",
		"tools": [],
	}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing file: %v", err)
	}
	event, err := LoadSessionUpdate(path)
	if err != nil {
		t.Fatalf("LoadSessionUpdate failed: %v", err)
	}
	if names := ToolNames(event); len(names) != 0 {
		t.Errorf("ToolNames = %v, want none", names)
	}

	if _, err := LoadSessionUpdate(filepath.Join(t.TempDir(), "missing.jsonc")); err == nil {
		t.Error("missing file succeeded")
	}
}

func TestParseSessionUpdateRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"array", `[]`},
		{"unnamed function", `{"tools":[{"type":"function"}]}`},
		{"tools not array", `{"tools":{}}`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := ParseSessionUpdate([]byte(test.data), test.name); err == nil {
				t.Error("ParseSessionUpdate succeeded")
			}
		})
	}
}
