// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"errors"
	"fmt"

	"github.com/wneessen/waybar-navigation/internal/geocode"
	nominatim "github.com/wneessen/waybar-navigation/internal/geocode/provider/osm-nominatim"
	"github.com/wneessen/waybar-navigation/internal/http"
	"github.com/wneessen/waybar-navigation/internal/location"
	"github.com/wneessen/waybar-navigation/internal/location/provider/geoclue"
	"github.com/wneessen/waybar-navigation/internal/location/provider/gpsd"
	"github.com/wneessen/waybar-navigation/internal/location/provider/simulate"
	"github.com/wneessen/waybar-navigation/internal/route"
	"github.com/wneessen/waybar-navigation/internal/route/provider/file"
	"github.com/wneessen/waybar-navigation/internal/route/provider/google"
	"github.com/wneessen/waybar-navigation/internal/route/provider/osrm"
	"github.com/wneessen/waybar-navigation/internal/route/provider/valhalla"
)

// ErrSimulationNeedsOrigin is returned if the location simulation is enabled without an origin,
// since the simulation drives along the initial route.
var ErrSimulationNeedsOrigin = errors.New("location simulation requires a configured origin")

func (s *Service) selectLocationProviders(data *route.Data) ([]location.Provider, error) {
	var provider []location.Provider

	if s.config.Location.Simulate {
		if data == nil {
			return nil, ErrSimulationNeedsOrigin
		}
		sim, err := simulate.New(s.logger, data, s.config.Location.SimulateSpeed,
			s.config.Location.SimulateInterval)
		if err != nil {
			return nil, fmt.Errorf("failed to create location simulation: %w", err)
		}
		// The simulation replaces all real location sources
		return append(provider, sim), nil
	}

	if !s.config.Location.DisableGPSD {
		provider = append(provider, gpsd.New(s.logger, s.config.Location.GPSDAddress, s.config.Location.GPSDMode,
			s.config.Intervals.GPSDPoll))
	}
	if !s.config.Location.DisableGeoClue {
		provider = append(provider, geoclue.New(s.logger))
	}
	if s.feed != nil {
		provider = append(provider, s.feed)
	}
	if len(provider) == 0 {
		return nil, fmt.Errorf("no location providers enabled")
	}

	return provider, nil
}

func (s *Service) selectGeocodeProvider() (geocode.Geocoder, error) {
	if s.config.GeoCoder.Disabled {
		return nil, nil
	}

	switch s.config.GeoCoder.Provider {
	case "nominatim":
		return geocode.NewCachedGeocoder(nominatim.New(http.New(s.logger), s.localizer.Language()),
			cacheHitTTL, cacheMissTTL), nil
	default:
		return nil, fmt.Errorf("unsupported geocoder type: %s", s.config.GeoCoder.Provider)
	}
}

func (s *Service) selectRouteProvider() (route.Provider, error) {
	conf := s.config.Routing
	switch conf.Provider {
	case "osrm":
		return osrm.New(http.New(s.logger), conf.BaseURL, conf.Profile, conf.Timeout), nil
	case "valhalla":
		return valhalla.New(http.New(s.logger), conf.BaseURL, conf.Profile, s.localizer.Language(),
			conf.Timeout), nil
	case "google":
		provider, err := google.New(http.New(s.logger), conf.APIKey, s.localizer.Language(), conf.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create Google directions provider: %w", err)
		}
		return provider, nil
	case "file":
		return file.New(conf.File), nil
	default:
		return nil, fmt.Errorf("unsupported routing provider: %s", conf.Provider)
	}
}
