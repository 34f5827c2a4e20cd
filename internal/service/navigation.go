// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/waybar-navigation/internal/geo"
	"github.com/wneessen/waybar-navigation/internal/location"
	"github.com/wneessen/waybar-navigation/internal/logger"
	"github.com/wneessen/waybar-navigation/internal/route"
)

const (
	// RouteRetryDelay is the minimum time between two attempts to fetch the initial route
	// from a location fix.
	RouteRetryDelay = time.Second * 30

	addressMinDistance = 25.0
	addressMaxAge      = time.Second * 30
	geocodeTimeout     = time.Second * 10
)

// startNavigation fetches a route from origin to the destination and begins the session.
func (s *Service) startNavigation(ctx context.Context, origin geo.Point) (*route.Data, error) {
	s.logger.Debug("requesting route", slog.String("provider", s.router.Name()),
		slog.String("origin", origin.String()), slog.String("destination", s.destination.String()))
	data, err := s.fetchRoute(ctx, origin)
	if err != nil {
		return nil, err
	}

	s.trip.Begin(data)
	s.started.Store(true)
	s.printStatus(ctx)
	return data, nil
}

// fetchRoute requests a route and writes its GeoJSON export, if configured.
func (s *Service) fetchRoute(ctx context.Context, origin geo.Point) (*route.Data, error) {
	ctxRoute, cancel := context.WithTimeout(ctx, s.config.Routing.Timeout)
	defer cancel()

	data, err := s.router.Route(ctxRoute, origin, s.destination)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch route from %s: %w", s.router.Name(), err)
	}
	if len(data.Steps) == 0 {
		return nil, fmt.Errorf("failed to fetch route from %s: %w", s.router.Name(), route.ErrNoRoute)
	}
	data.Summarize()

	if path := s.config.Navigation.GeoJSONFile; path != "" {
		if err = data.WriteGeoJSON(path); err != nil {
			s.logger.Error("failed to write route GeoJSON", logger.Err(err), slog.String("path", path))
		}
	}
	return data, nil
}

// reroute replaces the route of the running session with one starting at from. Only one
// request runs at a time.
func (s *Service) reroute(ctx context.Context, from geo.Point) {
	if !s.rerouting.CompareAndSwap(false, true) {
		return
	}
	defer s.rerouting.Store(false)

	data, err := s.fetchRoute(ctx, from)
	if err != nil {
		s.logger.Error("failed to reroute", logger.Err(err))
		s.trip.AbortReroute()
		s.printStatus(ctx)
		return
	}
	s.trip.Reroute(data)
	s.logger.Info("route replaced", slog.Int("steps", len(data.Steps)),
		slog.Float64("distance", data.Distance))
	s.printStatus(ctx)
}

// processFixes hands every fix of the subscription to the navigation session. Fixes are handled
// one after another.
func (s *Service) processFixes(ctx context.Context, sub <-chan location.Fix) {
	for {
		select {
		case <-ctx.Done():
			return
		case fix, ok := <-sub:
			if !ok {
				return
			}
			s.handleFix(ctx, fix)
		}
	}
}

func (s *Service) handleFix(ctx context.Context, fix location.Fix) {
	s.logger.Debug("received location fix", slog.String("location", fix.Point.String()),
		slog.Float64("accuracy", fix.Accuracy), slog.String("source", fix.Source))

	if !s.started.Load() && time.Since(s.lastAttempt) >= RouteRetryDelay {
		s.lastAttempt = time.Now()
		if _, err := s.startNavigation(ctx, fix.Point); err != nil {
			s.logger.Error("failed to start navigation", logger.Err(err))
		}
	}

	status := s.trip.Handle(fix)
	s.updateAddress(ctx, fix.Point)

	if status.RerouteRequested {
		go s.reroute(ctx, fix.Point)
	}
	s.printOnChange(ctx, status)

	if status.Arrived && s.config.Navigation.ExitOnArrival {
		s.logger.Info("destination reached, exiting")
		s.stop()
	}
}

// updateAddress resolves the street at the position. Lookups are skipped while the position
// stays close to the last resolved one and the address is fresh.
func (s *Service) updateAddress(ctx context.Context, point geo.Point) {
	if s.geocoder == nil {
		return
	}
	s.addressLock.RLock()
	fresh := !s.addressTime.IsZero() && time.Since(s.addressTime) < addressMaxAge &&
		geo.Distance(point, s.addressPoint) < addressMinDistance
	s.addressLock.RUnlock()
	if fresh {
		return
	}

	ctxGeocode, cancel := context.WithTimeout(ctx, geocodeTimeout)
	defer cancel()
	addr, err := s.geocoder.Reverse(ctxGeocode, point)
	if err != nil {
		s.logger.Error("failed to reverse geocode location", logger.Err(err),
			slog.String("location", point.String()))
		return
	}

	s.addressLock.Lock()
	s.address = addr
	s.addressPoint = point
	s.addressTime = time.Now()
	s.addressLock.Unlock()
	s.logger.Debug("address successfully resolved", slog.String("address", addr.DisplayName),
		slog.Bool("cache_hit", addr.CacheHit))
}

// resetAddress forces a new address lookup on the next fix.
func (s *Service) resetAddress() {
	s.addressLock.Lock()
	defer s.addressLock.Unlock()
	s.addressTime = time.Time{}
}
