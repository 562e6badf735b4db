// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// parley is a voice language-practice client for the realtime speech
// API. It fetches an ephemeral credential from the configured issuer,
// negotiates a WebRTC session, and overlays the practice protocol on
// the session's event data channel: tool registration, language
// settings, color palette tool calls, and follow-up feedback requests.
//
// Two modes of operation:
//
// Overlay mode (default when stdin and stdout are terminals): a
// bubbletea interface with the session status, the event log, the
// latest palette, and a text input.
//
// Line mode (--line, or when either end is not a terminal): reads
// commands and messages from stdin, one per line, and prints events as
// they arrive. Suited to scripting and to terminals without cursor
// control.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/parley/credential"
	"github.com/bureau-foundation/parley/lib/clock"
	"github.com/bureau-foundation/parley/lib/config"
	"github.com/bureau-foundation/parley/lib/practiceui"
	"github.com/bureau-foundation/parley/lib/process"
	"github.com/bureau-foundation/parley/lib/version"
	"github.com/bureau-foundation/parley/realtime"
	"github.com/bureau-foundation/parley/session"
	"github.com/bureau-foundation/parley/transport"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

// options holds the parsed command line.
type options struct {
	configPath string
	logOutput  string
	lineMode   bool
	noCapture  bool
}

func run() error {
	var opts options

	flagSet := pflag.NewFlagSet("parley", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "path to parley.yaml (default: $PARLEY_CONFIG, else built-in development defaults)")
	flagSet.StringVar(&opts.logOutput, "log-output", "", "write JSON log records to this file (overrides logging.file)")
	flagSet.BoolVar(&opts.lineMode, "line", false, "read commands from stdin instead of running the terminal overlay")
	flagSet.BoolVar(&opts.noCapture, "no-capture", false, "negotiate without a local audio track (output-only session)")
	flagSet.BoolP("help", "h", false, "show help")

	// Handle --version before flag parsing to match the other binaries.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("parley")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.logOutput != "" {
		cfg.Logging.File = opts.logOutput
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	interactive := !opts.lineMode &&
		term.IsTerminal(int(os.Stdin.Fd())) &&
		term.IsTerminal(int(os.Stdout.Fd()))
	if interactive {
		return runOverlay(ctx, cfg, opts)
	}
	return runLine(ctx, cfg, opts)
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `parley: voice language practice over the realtime speech API.

Fetches a credential from the issuer, negotiates a WebRTC session, and
runs the practice overlay on the session's event channel.

Usage:
  parley [flags]

Examples:
  # Overlay against a local token server with development defaults
  parley

  # Line mode with a production config, logging to a file
  parley --config /etc/parley/parley.yaml --line --log-output parley.jsonl

Line mode commands:
  /start, /stop, /lang <language> [level], /languages, /state, /help, /quit
  Any other line is sent as a typed message.

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}

// loadConfig reads path, else $PARLEY_CONFIG, else the defaults, and
// validates the result.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case path != "":
		cfg, err = config.LoadFile(path)
	case os.Getenv("PARLEY_CONFIG") != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// stack is the wired session layer shared by both modes.
type stack struct {
	negotiator *transport.Negotiator
	controller *session.Controller
}

// buildStack wires the credential fetcher, signaler, negotiator,
// processor, and controller from cfg.
func buildStack(cfg *config.Config, opts options, logger *slog.Logger) (*stack, error) {
	clk := clock.Real()

	var sessionUpdate realtime.Event
	if cfg.Tools.SessionUpdateFile != "" {
		loaded, err := realtime.LoadSessionUpdate(cfg.Tools.SessionUpdateFile)
		if err != nil {
			return nil, err
		}
		sessionUpdate = loaded
	}

	processor, err := session.NewProcessor(session.ProcessorConfig{
		SessionUpdate: sessionUpdate,
		FeedbackDelay: cfg.Tools.FeedbackDelay,
		Clock:         clk,
		Logger:        logger.With("component", "processor"),
	})
	if err != nil {
		return nil, err
	}

	var capture transport.CaptureSource = &transport.SilenceSource{Clock: clk}
	if opts.noCapture {
		capture = transport.DeniedCapture{}
	}

	negotiator := transport.NewNegotiator(transport.NegotiatorConfig{
		Credentials: &credential.Fetcher{
			URL:    cfg.Issuer.URL,
			Client: &http.Client{Timeout: cfg.Issuer.Timeout},
			Clock:  clk,
			Logger: logger.With("component", "credential"),
		},
		Signaler: &transport.HTTPSignaler{
			BaseURL: cfg.Signaling.BaseURL,
			Model:   cfg.Signaling.Model,
			Logger:  logger.With("component", "signaling"),
		},
		Capture:            capture,
		Sink:               &transport.DiscardSink{Logger: logger.With("component", "audio")},
		Recorder:           processor.Log(),
		ICE:                transport.ICEConfigFromSettings(cfg.Transport.ICEServers),
		DataChannelLabel:   cfg.Transport.DataChannelLabel,
		NegotiationTimeout: cfg.Transport.NegotiationTimeout,
		ICEGatherTimeout:   cfg.Transport.ICEGatherTimeout,
		Clock:              clk,
		Logger:             logger.With("component", "transport"),
	})

	return &stack{
		negotiator: negotiator,
		controller: session.NewController(negotiator, processor, logger.With("component", "controller")),
	}, nil
}

// runOverlay runs the bubbletea overlay. Logs go to the status bar and,
// when configured, to a JSON file; stderr belongs to the terminal.
func runOverlay(ctx context.Context, cfg *config.Config, opts options) error {
	level, err := parseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}

	tuiHandler := practiceui.NewTUILogHandler(max(level, slog.LevelWarn))
	var handler slog.Handler = tuiHandler
	if cfg.Logging.File != "" {
		fileHandler, fileCloser, err := openFileLogHandler(cfg.Logging.File, level)
		if err != nil {
			return fmt.Errorf("cannot open log file %s: %w", cfg.Logging.File, err)
		}
		defer fileCloser()
		handler = fanoutHandler{tuiHandler, fileHandler}
	}
	logger := slog.New(handler)

	wired, err := buildStack(cfg, opts, logger)
	if err != nil {
		return err
	}
	defer wired.controller.StopSession()

	model := practiceui.NewModel(wired.controller, practiceui.NewRenderer(os.Stdout))
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	tuiHandler.SetProgram(program)
	wired.negotiator.OnStageChange(func(stage transport.Stage) {
		program.Send(practiceui.StageMsg{Stage: stage})
	})

	_, err = program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// runLine runs line mode on stdin and stdout. Logs go to stderr.
func runLine(ctx context.Context, cfg *config.Config, opts options) error {
	handler, closer, err := newLogHandler(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}
	defer closer()
	logger := slog.New(handler)

	wired, err := buildStack(cfg, opts, logger)
	if err != nil {
		return err
	}
	wired.negotiator.OnStageChange(func(stage transport.Stage) {
		logger.Debug("negotiation stage", "stage", stage)
	})

	return runLineMode(ctx, wired.controller, os.Stdin, os.Stdout)
}
