// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/bureau-foundation/parley/lib/config"
)

// parseLevel converts a logging.level value to a slog level.
func parseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}

// newLogHandler builds the line-mode handler. With logging.file set,
// records go to that file as JSON. Otherwise they go to stderr: text
// for a terminal, JSON when redirected, unless logging.format forces
// one. The returned function releases the file, if any.
func newLogHandler(cfg config.LoggingConfig, stderr *os.File) (slog.Handler, func(), error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	if cfg.File != "" {
		handler, closer, err := openFileLogHandler(cfg.File, level)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot open log file %s: %w", cfg.File, err)
		}
		return handler, closer, nil
	}

	options := &slog.HandlerOptions{Level: level}
	useText := cfg.Format == "text" ||
		(cfg.Format != "json" && term.IsTerminal(int(stderr.Fd())))
	if useText {
		return slog.NewTextHandler(stderr, options), func() {}, nil
	}
	return slog.NewJSONHandler(stderr, options), func() {}, nil
}

// openFileLogHandler creates a slog.JSONHandler that writes to the
// given file path. Returns the handler, a cleanup function to close
// the file, and any error. The file is created or truncated.
func openFileLogHandler(path string, level slog.Level) (slog.Handler, func(), error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return handler, func() { file.Close() }, nil
}

// fanoutHandler is a slog.Handler that sends each record to multiple
// underlying handlers. A record is enabled if any sub-handler is
// enabled for that level.
type fanoutHandler []slog.Handler

func (handlers fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (handlers fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range handlers {
		if handler.Enabled(ctx, record.Level) {
			if err := handler.Handle(ctx, record.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (handlers fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := make(fanoutHandler, len(handlers))
	for index, handler := range handlers {
		derived[index] = handler.WithAttrs(attrs)
	}
	return derived
}

func (handlers fanoutHandler) WithGroup(name string) slog.Handler {
	derived := make(fanoutHandler, len(handlers))
	for index, handler := range handlers {
		derived[index] = handler.WithGroup(name)
	}
	return derived
}
