// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

type signalSource interface {
	Notify(c chan<- os.Signal, sig ...os.Signal)
	Stop(c chan<- os.Signal)
}

type stdLibSignalSource struct{}

func (stdLibSignalSource) Notify(c chan<- os.Signal, sig ...os.Signal) {
	signal.Notify(c, sig...)
}

func (stdLibSignalSource) Stop(c chan<- os.Signal) {
	signal.Stop(c)
}

// HandleSignals toggles the voice guidance on SIGUSR1 and logs the current navigation status
// on SIGUSR2.
func (s *Service) HandleSignals(ctx context.Context, sigChan chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigChan:
			switch sig {
			case syscall.SIGUSR1:
				enabled := !s.announcer.Enabled()
				s.announcer.SetEnabled(enabled)
				s.logger.Info("voice guidance toggled", slog.Bool("enabled", enabled))
				s.printStatus(ctx)
			case syscall.SIGUSR2:
				status := s.trip.Status()
				addr := s.currentAddress()
				s.logger.Info("current navigation status", slog.String("state", string(status.State)),
					slog.String("session", status.SessionID), slog.String("address", addr.DisplayName),
					slog.Int("step", status.Update.StepIndex), slog.String("distance", status.RemainingDistance.String()))
			}
		}
	}
}
