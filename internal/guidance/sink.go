// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package guidance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/wneessen/waybar-navigation/internal/logger"
)

// CommandQueueSize is the number of phrases a CommandSink buffers while a previous phrase is
// still being spoken.
const CommandQueueSize = 8

// ErrEmptyCommand is returned if a CommandSink is created without a command.
var ErrEmptyCommand = errors.New("speech command must not be empty")

// Sink receives the phrases of an Announcer. Say must not block the caller for longer than it
// takes to hand the phrase off.
type Sink interface {
	Say(text string)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(text string)

// Say calls f(text).
func (f SinkFunc) Say(text string) {
	f(text)
}

// NopSink discards all phrases.
type NopSink struct{}

func (NopSink) Say(string) {}

// LogSink writes every phrase to the logger.
type LogSink struct {
	logger *logger.Logger
}

// NewLogSink returns a Sink that logs phrases at info level.
func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{logger: log}
}

func (s *LogSink) Say(text string) {
	s.logger.Info("announcement", slog.String("text", text))
}

// WriterSink writes one phrase per line to an io.Writer.
type WriterSink struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewWriterSink returns a Sink that writes to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{writer: w}
}

func (s *WriterSink) Say(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintln(s.writer, text)
}

// MultiSink hands every phrase to all of its sinks in order.
type MultiSink []Sink

func (m MultiSink) Say(text string) {
	for _, sink := range m {
		if sink != nil {
			sink.Say(text)
		}
	}
}

// CommandSink speaks phrases with an external text-to-speech program such as espeak-ng. The
// phrase is appended as last argument. Phrases are spoken one after another by a single worker;
// if the queue is full, the phrase is dropped.
type CommandSink struct {
	logger  *logger.Logger
	name    string
	args    []string
	queue   chan string
	runFunc func(ctx context.Context, name string, args ...string) error
}

// NewCommandSink returns a CommandSink for the given command line. The worker stops when ctx
// is canceled.
func NewCommandSink(ctx context.Context, log *logger.Logger, command string) (*CommandSink, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, ErrEmptyCommand
	}
	if _, err := exec.LookPath(fields[0]); err != nil {
		return nil, fmt.Errorf("speech command %q not found: %w", fields[0], err)
	}

	sink := &CommandSink{
		logger:  log,
		name:    fields[0],
		args:    fields[1:],
		queue:   make(chan string, CommandQueueSize),
		runFunc: runCommand,
	}
	go sink.run(ctx)
	return sink, nil
}

func (s *CommandSink) Say(text string) {
	select {
	case s.queue <- text:
	default:
		s.logger.Warn("speech queue is full, dropping announcement", slog.String("text", text))
	}
}

func (s *CommandSink) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-s.queue:
			args := append(append(make([]string, 0, len(s.args)+1), s.args...), text)
			if err := s.runFunc(ctx, s.name, args...); err != nil && ctx.Err() == nil {
				s.logger.Error("failed to run speech command", logger.Err(err),
					slog.String("command", s.name))
			}
		}
	}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}
