// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package practiceui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/parley/realtime"
	"github.com/bureau-foundation/parley/session"
	"github.com/bureau-foundation/parley/transport"
)

// Controller is the session surface the overlay drives. Every method
// must be safe to call from any goroutine.
type Controller interface {
	StartSession(ctx context.Context) error
	StopSession()
	SendTextMessage(text string) error
	ApplyLanguageSettings(languageID, levelID string) error
	ClearSettingsApplied()
	Snapshot() session.Snapshot
	Changes() <-chan struct{}
}

var _ Controller = (*session.Controller)(nil)

// StageMsg reports a negotiation stage change. Deliver it with
// program.Send from the negotiator's stage callback.
type StageMsg struct {
	Stage transport.Stage
}

// changedMsg is produced when the controller signals a state change.
type changedMsg struct{}

// startResultMsg carries the outcome of StartSession.
type startResultMsg struct {
	err error
}

// actionResultMsg carries the outcome of a controller call made on the
// user's behalf.
type actionResultMsg struct {
	action string
	err    error
}

// noticeFadeMsg clears the status bar notice if no newer notice has
// replaced it.
type noticeFadeMsg struct {
	sequence int
}

// noticeFadeDelay is how long notices stay visible before the status
// bar returns to the keyboard help line.
const noticeFadeDelay = 5 * time.Second

// fixedRows is the number of rows outside the event log viewport:
// header, practice settings, palette, transcript, event log divider,
// text input, status bar.
const fixedRows = 7

// Model is the bubbletea model for the practice overlay.
type Model struct {
	controller Controller
	keys       KeyMap
	theme      Theme
	renderer   *lipgloss.Renderer

	input  textinput.Model
	events viewport.Model

	snapshot session.Snapshot
	stage    transport.Stage
	starting bool

	languageIndex int
	levelIndex    int

	notice         string
	noticeLevel    slog.Level
	noticeSequence int

	width  int
	height int
	ready  bool
}

// NewModel creates the overlay for controller. A nil renderer uses the
// lipgloss default.
func NewModel(controller Controller, renderer *lipgloss.Renderer) Model {
	if renderer == nil {
		renderer = lipgloss.DefaultRenderer()
	}

	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "Type a message and press enter"
	input.CharLimit = 4000
	input.Focus()

	return Model{
		controller: controller,
		keys:       DefaultKeyMap,
		theme:      DefaultTheme,
		renderer:   renderer,
		input:      input,
		snapshot:   controller.Snapshot(),
	}
}

// Init starts the cursor blink and the change subscription.
func (model Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForChange(model.controller.Changes()))
}

// waitForChange blocks until the next change notification.
func waitForChange(changes <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-changes
		return changedMsg{}
	}
}

// Update handles one bubbletea message.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.KeyMsg:
		return model.handleKey(message)

	case changedMsg:
		model.refresh()
		return model, waitForChange(model.controller.Changes())

	case StageMsg:
		model.stage = message.Stage

	case startResultMsg:
		model.starting = false
		if message.err != nil && !errors.Is(message.err, context.Canceled) {
			return model.showNotice(slog.LevelError, "start session: "+message.err.Error())
		}

	case actionResultMsg:
		if message.err != nil {
			return model.showNotice(slog.LevelError, message.action+": "+message.err.Error())
		}

	case logRecordMsg:
		return model.showNotice(message.Level, message.Summary)

	case noticeFadeMsg:
		if message.sequence == model.noticeSequence {
			model.notice = ""
		}

	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.ready = true
		model.layout()
	}
	return model, nil
}

func (model Model) handleKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Quit):
		return model, tea.Quit

	case key.Matches(message, model.keys.ToggleSession):
		return model.toggleSession()

	case key.Matches(message, model.keys.Send):
		text := strings.TrimSpace(model.input.Value())
		if text == "" {
			return model, nil
		}
		model.input.SetValue("")
		controller := model.controller
		return model, runAction("send message", func() error {
			return controller.SendTextMessage(text)
		})

	case key.Matches(message, model.keys.NextLanguage):
		model.languageIndex = (model.languageIndex + 1) % len(realtime.Languages)
		return model.selectionChanged()

	case key.Matches(message, model.keys.NextLevel):
		model.levelIndex = (model.levelIndex + 1) % len(realtime.Levels)
		return model.selectionChanged()

	case key.Matches(message, model.keys.ApplySettings):
		language, level := model.selection()
		controller := model.controller
		return model, runAction("apply settings", func() error {
			return controller.ApplyLanguageSettings(language.ID, level.ID)
		})

	case key.Matches(message, model.keys.PageUp):
		model.events.LineUp(max(1, model.events.Height-1))

	case key.Matches(message, model.keys.PageDown):
		model.events.LineDown(max(1, model.events.Height-1))

	default:
		var command tea.Cmd
		model.input, command = model.input.Update(message)
		return model, command
	}
	return model, nil
}

// selectionChanged marks the applied settings stale; they describe the
// previous selection.
func (model Model) selectionChanged() (tea.Model, tea.Cmd) {
	model.snapshot.SettingsApplied = false
	controller := model.controller
	return model, runAction("select settings", func() error {
		controller.ClearSettingsApplied()
		return nil
	})
}

// sessionLive reports whether a session is negotiating or open.
func (model Model) sessionLive() bool {
	if model.starting || model.snapshot.SessionActive {
		return true
	}
	switch model.stage {
	case transport.Idle, transport.Stopped, transport.Failed:
		return false
	}
	return true
}

func (model Model) toggleSession() (tea.Model, tea.Cmd) {
	controller := model.controller
	if model.sessionLive() {
		return model, runAction("stop session", func() error {
			controller.StopSession()
			return nil
		})
	}
	model.starting = true
	return model, func() tea.Msg {
		return startResultMsg{err: controller.StartSession(context.Background())}
	}
}

// runAction runs call off the event loop and reports its error.
func runAction(action string, call func() error) tea.Cmd {
	return func() tea.Msg {
		return actionResultMsg{action: action, err: call()}
	}
}

func (model Model) showNotice(level slog.Level, text string) (tea.Model, tea.Cmd) {
	model.noticeSequence++
	model.notice = text
	model.noticeLevel = level
	sequence := model.noticeSequence
	return model, tea.Tick(noticeFadeDelay, func(time.Time) tea.Msg {
		return noticeFadeMsg{sequence: sequence}
	})
}

// refresh pulls a new snapshot and rebuilds the event log.
func (model *Model) refresh() {
	model.snapshot = model.controller.Snapshot()
	model.events.SetContent(model.renderEvents())
}

func (model *Model) layout() {
	model.events.Width = model.width
	model.events.Height = max(1, model.height-fixedRows)
	model.input.Width = max(1, model.width-len(model.input.Prompt)-1)
	model.events.SetContent(model.renderEvents())
}

func (model Model) selection() (realtime.Language, realtime.Level) {
	return realtime.Languages[model.languageIndex], realtime.Levels[model.levelIndex]
}

// View renders the overlay.
func (model Model) View() string {
	if !model.ready {
		return "Loading..."
	}

	line := model.renderer.NewStyle().MaxWidth(model.width)
	label := model.renderer.NewStyle().Foreground(model.theme.FaintText)
	divider := model.renderer.NewStyle().Foreground(model.theme.BorderColor)

	transcript := model.snapshot.Transcript
	if transcript == "" {
		transcript = label.Render("…")
	}

	rows := []string{
		line.Render(model.renderHeader()),
		line.Render(model.renderSettings()),
		line.Render(label.Render("Palette: ") + describeToolOutput(model.renderer, model.snapshot.ToolOutput)),
		line.Render(label.Render("Tutor: ") + transcript),
		divider.Render(fmt.Sprintf("── Events (%d) ", len(model.snapshot.Events)) +
			strings.Repeat("─", max(0, model.width-16))),
		model.events.View(),
		model.input.View(),
		line.Render(model.renderStatus()),
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (model Model) renderHeader() string {
	title := model.renderer.NewStyle().Bold(true).Foreground(model.theme.HeaderForeground).Render("parley")

	var status string
	switch {
	case model.snapshot.SessionActive:
		status = model.renderer.NewStyle().Foreground(model.theme.SessionActive).Render("● session active")
	case model.sessionLive():
		status = model.renderer.NewStyle().Foreground(model.theme.SessionPending).Render("◌ connecting")
	default:
		status = model.renderer.NewStyle().Foreground(model.theme.SessionInactive).Render("○ no session")
	}

	faint := model.renderer.NewStyle().Foreground(model.theme.FaintText)
	return title + "  " + status +
		faint.Render("  stage: ") + model.stage.String() +
		faint.Render("  speaking: ") + model.snapshot.CurrentLanguage
}

func (model Model) renderSettings() string {
	language, level := model.selection()
	faint := model.renderer.NewStyle().Foreground(model.theme.FaintText)

	settings := faint.Render("Practice: ") + language.Flag + " " + language.Label + " · " + level.ID
	if model.snapshot.SettingsApplied {
		settings += model.renderer.NewStyle().Foreground(model.theme.SessionActive).Render("  (applied)")
	}
	return settings
}

func (model Model) renderStatus() string {
	if model.notice != "" {
		color := model.theme.NoticeInfo
		switch {
		case model.noticeLevel >= slog.LevelError:
			color = model.theme.NoticeError
		case model.noticeLevel >= slog.LevelWarn:
			color = model.theme.NoticeWarn
		}
		return model.renderer.NewStyle().Foreground(color).Render(model.notice)
	}

	var parts []string
	for _, binding := range model.keys.helpBindings() {
		help := binding.Help()
		parts = append(parts, help.Key+" "+help.Desc)
	}
	return model.renderer.NewStyle().Foreground(model.theme.HelpText).Render(strings.Join(parts, "  "))
}

// renderEvents renders the log newest first, one event per line.
func (model Model) renderEvents() string {
	if len(model.snapshot.Events) == 0 {
		return model.renderer.NewStyle().Foreground(model.theme.FaintText).Render("No events yet")
	}

	client := model.renderer.NewStyle().Foreground(model.theme.ClientEvent)
	server := model.renderer.NewStyle().Foreground(model.theme.ServerEvent)
	faint := model.renderer.NewStyle().Foreground(model.theme.FaintText)

	lines := make([]string, 0, len(model.snapshot.Events))
	for _, event := range model.snapshot.Events {
		direction := server.Render("server")
		if isClientEvent(event) {
			direction = client.Render("client")
		}
		entry := fmt.Sprintf("%-11s  %s  %s", event.Timestamp, direction, event.Type)
		if detail := describeEvent(event); detail != "" {
			entry += "  " + faint.Render(detail)
		}
		lines = append(lines, entry)
	}
	return strings.Join(lines, "\n")
}
