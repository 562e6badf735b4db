// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/bureau-foundation/parley/lib/practiceui"
	"github.com/bureau-foundation/parley/realtime"
	"github.com/bureau-foundation/parley/session"
)

const lineHelp = `commands:
  /start                      negotiate a session
  /stop                       end the session
  /lang <language> [level]    ask the tutor to use a language (default level: %s)
  /languages                  list languages and levels
  /state                      print the session state
  /help                       show this help
  /quit                       stop and exit
anything else is sent as a typed message
`

// runLineMode reads one command or message per line from input until
// EOF, /quit, or ctx ends, printing new events to output as they
// arrive. The session is stopped on return.
func runLineMode(ctx context.Context, controller practiceui.Controller, input io.Reader, output io.Writer) error {
	defer controller.StopSession()

	done := make(chan struct{})
	defer close(done)

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(input)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	printer := &eventPrinter{output: output}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-controller.Changes():
			printer.print(controller.Snapshot())
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			if quit := runLineCommand(ctx, controller, line, output); quit {
				return nil
			}
			// Sends are recorded synchronously; show them without
			// waiting for the next notification.
			printer.print(controller.Snapshot())
		}
	}
}

// runLineCommand executes one input line and reports whether it asked
// to quit.
func runLineCommand(ctx context.Context, controller practiceui.Controller, line string, output io.Writer) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		if err := controller.SendTextMessage(line); err != nil {
			fmt.Fprintf(output, "send failed: %v\n", err)
		}
		return false
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true

	case "/start":
		if err := controller.StartSession(ctx); err != nil {
			fmt.Fprintf(output, "start failed: %v\n", err)
			return false
		}
		fmt.Fprintln(output, "session negotiated; waiting for the data channel")

	case "/stop":
		controller.StopSession()
		fmt.Fprintln(output, "session stopped")

	case "/lang":
		if len(fields) < 2 || len(fields) > 3 {
			fmt.Fprintln(output, "usage: /lang <language> [level]")
			return false
		}
		level := realtime.Levels[0].ID
		if len(fields) == 3 {
			level = fields[2]
		}
		if err := controller.ApplyLanguageSettings(fields[1], level); err != nil {
			fmt.Fprintf(output, "language settings failed: %v\n", err)
			return false
		}
		fmt.Fprintf(output, "tutor set to %s (%s)\n", fields[1], level)

	case "/languages":
		for _, language := range realtime.Languages {
			fmt.Fprintf(output, "  %s %s\n", language.Flag, language.ID)
		}
		levels := make([]string, len(realtime.Levels))
		for index, level := range realtime.Levels {
			levels[index] = level.ID
		}
		fmt.Fprintf(output, "levels: %s\n", strings.Join(levels, ", "))

	case "/state":
		printState(output, controller.Snapshot())

	case "/help":
		fmt.Fprintf(output, lineHelp, realtime.Levels[0].ID)

	default:
		fmt.Fprintf(output, "unknown command %s (try /help)\n", fields[0])
	}
	return false
}

func printState(output io.Writer, snapshot session.Snapshot) {
	fmt.Fprintf(output, "session active: %t\n", snapshot.SessionActive)
	fmt.Fprintf(output, "speaking: %s\n", snapshot.CurrentLanguage)
	fmt.Fprintf(output, "settings applied: %t\n", snapshot.SettingsApplied)
	if palette := paletteLine(snapshot.ToolOutput); palette != "" {
		fmt.Fprintln(output, palette)
	}
	if snapshot.Transcript != "" {
		fmt.Fprintf(output, "tutor: %s\n", snapshot.Transcript)
	}
	if snapshot.LastError != nil {
		fmt.Fprintf(output, "last error: %v\n", snapshot.LastError)
	}
	fmt.Fprintf(output, "events: %d\n", len(snapshot.Events))
}

// paletteLine renders the latest tool output, or "" before the first.
func paletteLine(output *session.ToolOutput) string {
	switch {
	case output == nil:
		return ""
	case output.Err != nil:
		return fmt.Sprintf("palette: malformed arguments (%v)", output.Err)
	default:
		return fmt.Sprintf("palette: %s %s", output.Palette.Theme, strings.Join(output.Palette.Colors, " "))
	}
}

// eventPrinter prints events not yet printed, oldest first. The log
// is newest first and restarts empty with each session.
type eventPrinter struct {
	output     io.Writer
	generation uint64
	printed    int
	lastCallID string
}

func (p *eventPrinter) print(snapshot session.Snapshot) {
	events := snapshot.Events
	if snapshot.Generation != p.generation || len(events) < p.printed {
		p.generation = snapshot.Generation
		p.printed = 0
	}
	for index := len(events) - p.printed - 1; index >= 0; index-- {
		event := events[index]
		fmt.Fprintln(p.output, practiceui.FormatEvent(event))
		if event.Type == realtime.TypeResponseDone && snapshot.Transcript != "" {
			fmt.Fprintf(p.output, "tutor: %s\n", snapshot.Transcript)
		}
	}
	p.printed = len(events)

	if tool := snapshot.ToolOutput; tool != nil && tool.CallID != p.lastCallID {
		p.lastCallID = tool.CallID
		fmt.Fprintln(p.output, paletteLine(tool))
	}
}
