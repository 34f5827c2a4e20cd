// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/vorlif/spreak"

	"github.com/wneessen/waybar-navigation/internal/config"
	"github.com/wneessen/waybar-navigation/internal/feed"
	"github.com/wneessen/waybar-navigation/internal/geo"
	"github.com/wneessen/waybar-navigation/internal/geocode"
	"github.com/wneessen/waybar-navigation/internal/guidance"
	"github.com/wneessen/waybar-navigation/internal/location"
	"github.com/wneessen/waybar-navigation/internal/logger"
	"github.com/wneessen/waybar-navigation/internal/navigation"
	"github.com/wneessen/waybar-navigation/internal/presenter"
	"github.com/wneessen/waybar-navigation/internal/route"
	"github.com/wneessen/waybar-navigation/internal/trip"
)

const (
	cacheHitTTL      = time.Hour * 24
	cacheMissTTL     = time.Minute * 10
	subscriptionSize = 32
)

type Service struct {
	config    *config.Config
	logger    *logger.Logger
	localizer *spreak.Localizer
	scheduler gocron.Scheduler
	presenter *presenter.Presenter
	geocoder  geocode.Geocoder
	router    route.Provider
	bus       *location.Bus
	feed      *feed.Server
	announcer *guidance.Announcer
	trip      *trip.Trip
	SignalSrc signalSource
	output    io.Writer
	stop      context.CancelFunc

	destination geo.Point
	started     atomic.Bool
	rerouting   atomic.Bool
	lastAttempt time.Time

	outputLock sync.Mutex
	lastState  trip.State

	addressLock  sync.RWMutex
	address      geocode.Address
	addressPoint geo.Point
	addressTime  time.Time
}

func New(conf *config.Config, log *logger.Logger, localizer *spreak.Localizer) (*Service, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	pres, err := presenter.New(conf, localizer)
	if err != nil {
		return nil, fmt.Errorf("failed to create presenter: %w", err)
	}

	service := &Service{
		config:    conf,
		logger:    log,
		localizer: localizer,
		scheduler: scheduler,
		presenter: pres,
		bus:       location.NewBus(log, conf.Location.MaxAccuracy),
		SignalSrc: stdLibSignalSource{},
		output:    os.Stdout,
		stop:      func() {},
	}

	if service.geocoder, err = service.selectGeocodeProvider(); err != nil {
		return nil, fmt.Errorf("failed to create geocode provider: %w", err)
	}
	if service.router, err = service.selectRouteProvider(); err != nil {
		return nil, fmt.Errorf("failed to create routing provider: %w", err)
	}
	if conf.Feed.Listen != "" {
		service.feed = feed.New(log, conf.Feed.Listen, conf.Feed.AllowedOrigins)
	}

	return service, nil
}

// Run starts the navigation session and blocks until the context is canceled or, with
// exit_on_arrival set, the destination is reached.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.stop = cancel

	if err := s.setup(ctx); err != nil {
		return err
	}

	var err error
	if s.destination, err = geocode.Resolve(ctx, s.geocoder, s.config.Navigation.Destination); err != nil {
		return fmt.Errorf("failed to resolve destination: %w", err)
	}

	// With a configured origin the route is fetched right away, otherwise the first fix is used
	var data *route.Data
	if s.config.Navigation.Origin != "" {
		origin, err := geocode.Resolve(ctx, s.geocoder, s.config.Navigation.Origin)
		if err != nil {
			return fmt.Errorf("failed to resolve origin: %w", err)
		}
		if data, err = s.startNavigation(ctx, origin); err != nil {
			return err
		}
	}

	providers, err := s.selectLocationProviders(data)
	if err != nil {
		return fmt.Errorf("failed to create location providers: %w", err)
	}

	if err = s.createScheduledJob(ctx, s.config.Intervals.Output, s.printStatus,
		"navigation_output_job"); err != nil {
		return err
	}
	s.scheduler.Start()

	if s.feed != nil {
		go func() {
			if err := s.feed.ListenAndServe(ctx); err != nil {
				s.logger.Error("websocket feed stopped", logger.Err(err))
			}
		}()
	}

	sub, unsub := s.bus.Subscribe(subscriptionSize)
	go s.processFixes(ctx, sub)
	go s.bus.NewOrchestrator(providers).Track(ctx)
	go s.monitorSleepResume(ctx)

	sigChan := make(chan os.Signal, 1)
	s.SignalSrc.Notify(sigChan, syscall.SIGUSR1, syscall.SIGUSR2)
	go s.HandleSignals(ctx, sigChan)

	s.printStatus(ctx)

	// Wait for the context to cancel
	<-ctx.Done()
	s.SignalSrc.Stop(sigChan)
	unsub()
	s.trip.End()
	return s.scheduler.Shutdown()
}

// setup creates the announcer and the navigation session. The speech command worker is bound
// to ctx.
func (s *Service) setup(ctx context.Context) error {
	sinks := guidance.MultiSink{}
	if s.config.Guidance.Log {
		sinks = append(sinks, guidance.NewLogSink(s.logger))
	}
	if s.config.Guidance.Command != "" {
		cmdSink, err := guidance.NewCommandSink(ctx, s.logger, s.config.Guidance.Command)
		if err != nil {
			return fmt.Errorf("failed to create speech output: %w", err)
		}
		sinks = append(sinks, cmdSink)
	}

	var observer trip.Observer = trip.NopObserver{}
	if s.feed != nil {
		sinks = append(sinks, s.feed)
		observer = s.feed
	}

	s.announcer = guidance.New(sinks, s.localizer)
	s.announcer.SetEnabled(!s.config.Guidance.Disabled)
	s.trip = trip.New(s.logger, navigation.New(s.logger), s.announcer, observer, trip.Options{
		RerouteConfirmations: s.config.Navigation.RerouteConfirmations,
		RerouteCooldown:      s.config.Navigation.RerouteCooldown,
		RerouteCorridor:      s.config.Navigation.RerouteCorridor,
	})
	return nil
}

func (s *Service) createScheduledJob(ctx context.Context, interval time.Duration, task func(context.Context),
	jobName string,
) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithContext(ctx),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName(jobName),
	)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", jobName, err)
	}
	return nil
}

// printStatus renders the current navigation status and writes it as a single line of JSON to
// the output.
func (s *Service) printStatus(context.Context) {
	if s.trip == nil {
		return
	}

	status := s.trip.Status()
	ctx := s.presenter.BuildContext(status, s.currentAddress(), s.announcer.Enabled())
	output, err := s.presenter.Render(ctx, time.Now())
	if err != nil {
		s.logger.Error("failed to render navigation status", logger.Err(err))
		return
	}

	s.outputLock.Lock()
	defer s.outputLock.Unlock()
	s.lastState = status.State
	if err = json.NewEncoder(s.output).Encode(output); err != nil {
		s.logger.Error("failed to encode navigation status", logger.Err(err))
	}
}

// printOnChange prints the status if the state differs from the last printed one.
func (s *Service) printOnChange(ctx context.Context, status trip.Status) {
	s.outputLock.Lock()
	changed := s.lastState != status.State
	s.outputLock.Unlock()
	if changed {
		s.logger.Debug("navigation state changed", slog.String("state", string(status.State)))
		s.printStatus(ctx)
	}
}

func (s *Service) currentAddress() geocode.Address {
	s.addressLock.RLock()
	defer s.addressLock.RUnlock()
	return s.address
}
