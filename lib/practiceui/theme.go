// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package practiceui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme defines the colors of the practice overlay. All colors use
// lipgloss ANSI 256-color codes for broad terminal compatibility.
type Theme struct {
	// Text colors.
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Session status.
	SessionActive   lipgloss.Color
	SessionInactive lipgloss.Color
	SessionPending  lipgloss.Color

	// Event log direction markers.
	ClientEvent lipgloss.Color
	ServerEvent lipgloss.Color

	// Status bar notices, by log level.
	NoticeInfo  lipgloss.Color
	NoticeWarn  lipgloss.Color
	NoticeError lipgloss.Color

	// UI chrome.
	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color
}

// DefaultTheme is the built-in dark-terminal color scheme.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	SessionActive:   lipgloss.Color("114"), // green
	SessionInactive: lipgloss.Color("245"), // gray
	SessionPending:  lipgloss.Color("220"), // amber

	ClientEvent: lipgloss.Color("75"),  // blue
	ServerEvent: lipgloss.Color("141"), // light purple

	NoticeInfo:  lipgloss.Color("252"),
	NoticeWarn:  lipgloss.Color("220"),
	NoticeError: lipgloss.Color("196"),

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),
}

// NewRenderer returns a lipgloss renderer for output whose color
// profile honors NO_COLOR and CLICOLOR_FORCE. Palette swatches need at
// least ANSI256 to show real colors; below that they fall back to hex
// labels.
func NewRenderer(output *os.File) *lipgloss.Renderer {
	profile := termenv.NewOutput(output).EnvColorProfile()
	return lipgloss.NewRenderer(output, termenv.WithProfile(profile))
}
