// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package practiceui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/bureau-foundation/parley/realtime"
	"github.com/bureau-foundation/parley/session"
)

// swatchWidth is the cell width of one rendered color block.
const swatchWidth = 4

// expandHex rewrites #rgb as #rrggbb and lowercases the result. Other
// input is returned lowercased and otherwise unchanged.
func expandHex(color string) string {
	color = strings.ToLower(color)
	if len(color) != 4 || color[0] != '#' {
		return color
	}
	return string([]byte{'#', color[1], color[1], color[2], color[2], color[3], color[3]})
}

// renderSwatch renders one palette color as a filled block followed by
// its hex value. Without color support only the hex value is shown.
func renderSwatch(renderer *lipgloss.Renderer, color string) string {
	hex := expandHex(color)
	if renderer.ColorProfile() == termenv.Ascii {
		return "[" + hex + "]"
	}
	block := renderer.NewStyle().
		Background(lipgloss.Color(hex)).
		Render(strings.Repeat(" ", swatchWidth))
	return block + " " + hex
}

// renderPalette renders a palette as its theme name followed by
// swatches.
func renderPalette(renderer *lipgloss.Renderer, palette realtime.Palette) string {
	parts := make([]string, 0, len(palette.Colors)+1)
	parts = append(parts, palette.Theme)
	for _, color := range palette.Colors {
		parts = append(parts, renderSwatch(renderer, color))
	}
	return strings.Join(parts, "  ")
}

// describeToolOutput renders the palette line body for the latest tool
// output, or "none" before the first call.
func describeToolOutput(renderer *lipgloss.Renderer, output *session.ToolOutput) string {
	switch {
	case output == nil:
		return "none"
	case output.Err != nil:
		return "malformed arguments (" + output.Err.Error() + ")"
	default:
		return renderPalette(renderer, output.Palette)
	}
}
