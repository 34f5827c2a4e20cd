// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/wneessen/waybar-navigation/internal/logger"
)

const (
	loginInterface   = "org.freedesktop.login1.Manager"
	prepareForSleep  = "PrepareForSleep"
	debounceWindow   = 2 // seconds
	signalBufferSize = 8

	busRetryDelay      = 5 * time.Second
	networkWakeupDelay = 10 * time.Second
)

// monitorSleepResume watches logind for resume events and refreshes the output after each
// resume. A lost bus connection is re-established until the context is canceled.
func (s *Service) monitorSleepResume(ctx context.Context) {
	var lastResumeUnix int64

	for {
		if err := s.watchSleepSignals(ctx, &lastResumeUnix); err != nil {
			s.logger.Debug("sleep monitoring interrupted", logger.Err(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(busRetryDelay):
		}
	}
}

// watchSleepSignals subscribes to PrepareForSleep on the system bus and handles signals until
// the connection is lost or the context is canceled.
func (s *Service) watchSleepSignals(ctx context.Context, lastResumeUnix *int64) error {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("failed to connect to system bus: %w", err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer func() {
		if stop() {
			if err := conn.Close(); err != nil {
				s.logger.Error("failed to close system bus connection", logger.Err(err))
			}
		}
	}()

	if err = conn.AddMatchSignal(dbus.WithMatchInterface(loginInterface),
		dbus.WithMatchMember(prepareForSleep)); err != nil {
		return fmt.Errorf("failed to subscribe to %s.%s: %w", loginInterface, prepareForSleep, err)
	}

	sigCh := make(chan *dbus.Signal, signalBufferSize)
	conn.Signal(sigCh)
	defer conn.RemoveSignal(sigCh)
	s.logger.Debug("subscribed to dbus signal", slog.String("interface", loginInterface),
		slog.String("member", prepareForSleep))

	s.handleSleepSignals(ctx, sigCh, lastResumeUnix)
	return nil
}

// handleSleepSignals processes PrepareForSleep signals until the channel is closed or the
// context is canceled.
func (s *Service) handleSleepSignals(ctx context.Context, sigCh chan *dbus.Signal, lastResumeUnix *int64) {
	for {
		select {
		case <-ctx.Done():
			return
		case sgn, ok := <-sigCh:
			if !ok {
				// connection likely closed; try to reconnect
				return
			}
			s.processSleepSignal(ctx, sgn, lastResumeUnix)
		}
	}
}

// processSleepSignal triggers a refresh when the signal reports a resume.
func (s *Service) processSleepSignal(ctx context.Context, sgn *dbus.Signal, lastResumeUnix *int64) {
	if len(sgn.Body) != 1 {
		return
	}
	sleeping, ok := sgn.Body[0].(bool)
	if !ok || sleeping {
		return
	}
	s.handleResumeEvent(ctx, lastResumeUnix)
}

// handleResumeEvent refreshes the output after the system woke up. The last fix is likely stale
// after a suspend, so the street is looked up again with the next fix. Multiple consecutive
// resume events are debounced.
func (s *Service) handleResumeEvent(ctx context.Context, lastResumeUnix *int64) {
	now := time.Now().Unix()

	// debounce in case of multiple resume events
	if now-atomic.LoadInt64(lastResumeUnix) < debounceWindow {
		return
	}
	atomic.StoreInt64(lastResumeUnix, now)

	// Give the system time to wake up and establish network connection
	select {
	case <-ctx.Done():
		return
	case <-time.After(networkWakeupDelay):
	}

	s.logger.Debug("resuming from sleep, refreshing navigation status")
	s.resetAddress()
	s.printStatus(ctx)
}
