// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	const (
		expectRoutingProvider  = "osrm"
		expectGeocoder         = "nominatim"
		expectLogLevel         = slog.LevelInfo
		expectConfirmations    = 3
		expectRerouteCooldown  = time.Second * 30
		expectMaxAccuracy      = 100.0
		expectIntervalOutput   = time.Second * 2
		expectIntervalGPSDPoll = time.Second * 2
	)
	t.Run("new config with all defaults set", func(t *testing.T) {
		conf, err := New()
		if err != nil {
			t.Fatalf("failed to load config: %s", err)
		}
		if conf.Routing.Provider != expectRoutingProvider {
			t.Errorf("expected routing provider to be: %s, got %s", expectRoutingProvider, conf.Routing.Provider)
		}
		if conf.GeoCoder.Provider != expectGeocoder {
			t.Errorf("expected geocoder to be: %s, got %s", expectGeocoder, conf.GeoCoder.Provider)
		}
		if conf.LogLevel != expectLogLevel {
			t.Errorf("expected log level to be: %s, got %s", expectLogLevel, conf.LogLevel)
		}
		if conf.Navigation.RerouteConfirmations != expectConfirmations {
			t.Errorf("expected reroute confirmations to be: %d, got %d", expectConfirmations,
				conf.Navigation.RerouteConfirmations)
		}
		if conf.Navigation.RerouteCooldown != expectRerouteCooldown {
			t.Errorf("expected reroute cooldown to be: %s, got %s", expectRerouteCooldown,
				conf.Navigation.RerouteCooldown)
		}
		if conf.Location.MaxAccuracy != expectMaxAccuracy {
			t.Errorf("expected max accuracy to be: %g, got %g", expectMaxAccuracy, conf.Location.MaxAccuracy)
		}
		if conf.Location.GPSDMode != "watch" {
			t.Errorf("expected gpsd mode to be: watch, got %s", conf.Location.GPSDMode)
		}
		if conf.Intervals.Output != expectIntervalOutput {
			t.Errorf("expected output interval to be: %s, got %s", expectIntervalOutput, conf.Intervals.Output)
		}
		if conf.Intervals.GPSDPoll != expectIntervalGPSDPoll {
			t.Errorf("expected gpsd poll interval to be: %s, got %s", expectIntervalGPSDPoll,
				conf.Intervals.GPSDPoll)
		}
		if conf.Templates.Text != DefaultTextTpl {
			t.Errorf("expected default text template, got %q", conf.Templates.Text)
		}
		if conf.Templates.Tooltip != DefaultTooltipTpl {
			t.Errorf("expected default tooltip template, got %q", conf.Templates.Tooltip)
		}
	})
	t.Run("values from env override defaults", func(t *testing.T) {
		t.Setenv("WAYBARNAV_ROUTING_PROVIDER", "Valhalla")
		t.Setenv("WAYBARNAV_NAVIGATION_DESTINATION", "Alexanderplatz, Berlin")
		t.Setenv("WAYBARNAV_GUIDANCE_DISABLED", "true")
		conf, err := New()
		if err != nil {
			t.Fatalf("failed to load config: %s", err)
		}
		if conf.Routing.Provider != "valhalla" {
			t.Errorf("expected routing provider to be normalized to valhalla, got %s", conf.Routing.Provider)
		}
		if conf.Navigation.Destination != "Alexanderplatz, Berlin" {
			t.Errorf("unexpected destination: %s", conf.Navigation.Destination)
		}
		if !conf.Guidance.Disabled {
			t.Error("expected guidance to be disabled")
		}
	})
	t.Run("locale is taken from LC_MESSAGES", func(t *testing.T) {
		t.Setenv("LC_MESSAGES", "de_DE.UTF-8")
		conf, err := New()
		if err != nil {
			t.Fatalf("failed to load config: %s", err)
		}
		if conf.Locale != "de-DE" {
			t.Errorf("expected locale to be de-DE, got %s", conf.Locale)
		}
	})
	t.Run("new config with invalid values from env", func(t *testing.T) {
		t.Setenv("WAYBARNAV_LOGLEVEL", "invalid")
		_, err := New()
		if err == nil {
			t.Error("expected config to fail, but didn't")
		}
	})
	t.Run("config validation", func(t *testing.T) {
		tests := []struct {
			name  string
			key   string
			value string
		}{
			{"unsupported routing provider", "WAYBARNAV_ROUTING_PROVIDER", "mapquest"},
			{"zero routing timeout", "WAYBARNAV_ROUTING_TIMEOUT", "0s"},
			{"unsupported geocoder", "WAYBARNAV_GEOCODER_PROVIDER", "invalid"},
			{"zero reroute confirmations", "WAYBARNAV_NAVIGATION_REROUTE_CONFIRMATIONS", "0"},
			{"negative reroute corridor", "WAYBARNAV_NAVIGATION_REROUTE_CORRIDOR", "-1"},
			{"zero max accuracy", "WAYBARNAV_LOCATION_MAX_ACCURACY", "0"},
			{"unsupported gpsd mode", "WAYBARNAV_LOCATION_GPSD_MODE", "push"},
			{"zero output interval", "WAYBARNAV_INTERVALS_OUTPUT", "0s"},
			{"zero gpsd poll interval", "WAYBARNAV_INTERVALS_GPSD_POLL", "0s"},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				t.Setenv(tc.key, tc.value)
				_, err := New()
				if err == nil {
					t.Error("expected config to fail, but didn't")
				}
			})
		}
	})
	t.Run("file routing provider requires a file", func(t *testing.T) {
		t.Setenv("WAYBARNAV_ROUTING_PROVIDER", "file")
		if _, err := New(); err == nil {
			t.Error("expected config to fail, but didn't")
		}
		t.Setenv("WAYBARNAV_ROUTING_FILE", "/tmp/route.json")
		if _, err := New(); err != nil {
			t.Errorf("failed to load config: %s", err)
		}
	})
	t.Run("simulation requires a positive speed", func(t *testing.T) {
		t.Setenv("WAYBARNAV_LOCATION_SIMULATE", "true")
		t.Setenv("WAYBARNAV_LOCATION_SIMULATE_SPEED", "0")
		if _, err := New(); err == nil {
			t.Error("expected config to fail, but didn't")
		}
	})
}

func TestConfig_Override(t *testing.T) {
	t.Run("command line values replace the configured ones", func(t *testing.T) {
		conf, err := New()
		if err != nil {
			t.Fatalf("failed to load config: %s", err)
		}
		conf.Navigation.Destination = "Berlin"
		if err = conf.Override("52.5,13.4", "52.4,13.3", true); err != nil {
			t.Fatalf("failed to apply overrides: %s", err)
		}
		if conf.Navigation.Destination != "52.5,13.4" {
			t.Errorf("expected destination to be: 52.5,13.4, got %s", conf.Navigation.Destination)
		}
		if conf.Navigation.Origin != "52.4,13.3" {
			t.Errorf("expected origin to be: 52.4,13.3, got %s", conf.Navigation.Origin)
		}
		if !conf.Location.Simulate {
			t.Error("expected simulation to be enabled")
		}
	})
	t.Run("empty values keep the configured ones", func(t *testing.T) {
		conf, err := New()
		if err != nil {
			t.Fatalf("failed to load config: %s", err)
		}
		conf.Navigation.Destination = "Berlin"
		if err = conf.Override("", "", false); err != nil {
			t.Fatalf("failed to apply overrides: %s", err)
		}
		if conf.Navigation.Destination != "Berlin" {
			t.Errorf("expected destination to be: Berlin, got %s", conf.Navigation.Destination)
		}
		if conf.Location.Simulate {
			t.Error("expected simulation to stay disabled")
		}
	})
	t.Run("enabling the simulation validates its interval", func(t *testing.T) {
		conf, err := New()
		if err != nil {
			t.Fatalf("failed to load config: %s", err)
		}
		conf.Location.SimulateInterval = 0
		if err = conf.Validate(); err != nil {
			t.Fatalf("expected an unused simulation interval to be accepted: %s", err)
		}
		if err = conf.Override("", "", true); err == nil {
			t.Error("expected overrides to fail, but didn't")
		}
	})
}

func TestNewFromFile(t *testing.T) {
	t.Run("reading config from valid file succeeds", func(t *testing.T) {
		conf, err := NewFromFile("../../etc", "config.toml")
		if err != nil {
			t.Fatalf("failed to load config: %s", err)
		}
		if conf.Locale != "en" {
			t.Errorf("expected locale to be: en, got %s", conf.Locale)
		}
		if conf.Navigation.Destination != "52.520008,13.404954" {
			t.Errorf("unexpected destination: %s", conf.Navigation.Destination)
		}
		if conf.Routing.BaseURL != "https://router.project-osrm.org" {
			t.Errorf("unexpected routing base URL: %s", conf.Routing.BaseURL)
		}
		if conf.Guidance.Command != "espeak-ng -v en" {
			t.Errorf("unexpected guidance command: %s", conf.Guidance.Command)
		}
		if !conf.Guidance.Log {
			t.Error("expected guidance logging to be enabled")
		}
		if conf.Navigation.RerouteCorridor != 50 {
			t.Errorf("expected reroute corridor to be 50, got %g", conf.Navigation.RerouteCorridor)
		}
	})
	t.Run("reading config from non-existent file fails", func(t *testing.T) {
		_, err := NewFromFile("../../etc", "non-existent.toml")
		if err == nil {
			t.Error("expected config to fail, but didn't")
		}
	})
	t.Run("reading invalid config file fails", func(t *testing.T) {
		_, err := NewFromFile("../../testdata", "invalid.toml")
		if err == nil {
			t.Error("expected config to fail, but didn't")
		}
	})
}
