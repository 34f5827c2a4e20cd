// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package logger provides the structured logger used throughout waybar-navigation.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps a slog.Logger so that packages share a single logger type.
type Logger struct {
	*slog.Logger
}

// New returns a Logger that writes text formatted log lines to stderr.
func New(level slog.Level) *Logger {
	return NewLogger(level)
}

// NewLogger returns a Logger for the given level. If no output is given, the logger writes
// to stderr. Multiple outputs are combined into a single writer.
func NewLogger(level slog.Level, output ...io.Writer) *Logger {
	var out io.Writer = os.Stderr
	switch len(output) {
	case 0:
	case 1:
		out = output[0]
	default:
		out = io.MultiWriter(output...)
	}
	return &Logger{slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))}
}

// Err returns a slog attribute for the given error.
func Err(err error) slog.Attr {
	return slog.Any("error", err)
}
