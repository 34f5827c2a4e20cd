// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kkyr/fig"
)

const (
	configEnv      = "WAYBARNAV"
	DefaultTextTpl = "{{iconWithSpace .Icon}}{{if .Navigating}}{{distance .DistanceToNextTurn}} " +
		"{{.Instruction}}{{else}}{{.StateText}}{{end}}"
	DefaultTooltipTpl = "{{if .Navigating}}{{loc \"Next\"}}: {{.NextInstruction}}\n" +
		"{{loc \"Remaining\"}}: {{distance .RemainingDistance}}, {{duration .RemainingDuration}}\n" +
		"{{loc \"Arrival\"}}: {{localizedTime .ETA}}\n{{end}}" +
		"{{loc \"Current street\"}}: {{.Street}}\n" +
		"{{loc \"Voice guidance\"}}: {{if .GuidanceEnabled}}{{loc \"on\"}}{{else}}{{loc \"off\"}}{{end}}"
)

var (
	routingProviders  = []string{"osrm", "valhalla", "google", "file"}
	geocoderProviders = []string{"nominatim"}
	gpsdModes         = []string{"watch", "poll"}
)

// Config represents the application's configuration structure.
type Config struct {
	Locale   string     `fig:"locale"`
	LogLevel slog.Level `fig:"loglevel" default:"0"`

	Navigation struct {
		// Origin and Destination are either "lat,lon" literals or addresses resolved by the
		// geocoder. An empty origin uses the first location fix.
		Origin               string        `fig:"origin"`
		Destination          string        `fig:"destination"`
		GeoJSONFile          string        `fig:"geojson_file"`
		ExitOnArrival        bool          `fig:"exit_on_arrival"`
		RerouteConfirmations uint          `fig:"reroute_confirmations" default:"3"`
		RerouteCooldown      time.Duration `fig:"reroute_cooldown" default:"30s"`
		RerouteCorridor      float64       `fig:"reroute_corridor" default:"50"`
	} `fig:"navigation"`

	Routing struct {
		// Allowed values: osrm, valhalla, google, file
		Provider string        `fig:"provider" default:"osrm"`
		BaseURL  string        `fig:"base_url"`
		APIKey   string        `fig:"apikey"`
		Profile  string        `fig:"profile" default:"driving"`
		File     string        `fig:"file"`
		Timeout  time.Duration `fig:"timeout" default:"15s"`
	} `fig:"routing"`

	GeoCoder struct {
		// Allowed values: nominatim
		Provider string `fig:"provider" default:"nominatim"`
		Disabled bool   `fig:"disabled"`
	} `fig:"geocoder"`

	Guidance struct {
		Disabled bool   `fig:"disabled"`
		Command  string `fig:"command"`
		Log      bool   `fig:"log"`
	} `fig:"guidance"`

	Location struct {
		// MaxAccuracy is the worst accepted horizontal accuracy in meters.
		MaxAccuracy      float64       `fig:"max_accuracy" default:"100"`
		DisableGPSD      bool          `fig:"disable_gpsd"`
		GPSDAddress      string        `fig:"gpsd_address" default:"localhost:2947"`
		GPSDMode         string        `fig:"gpsd_mode" default:"watch"`
		DisableGeoClue   bool          `fig:"disable_geoclue"`
		Simulate         bool          `fig:"simulate"`
		SimulateSpeed    float64       `fig:"simulate_speed" default:"13.9"`
		SimulateInterval time.Duration `fig:"simulate_interval" default:"1s"`
	} `fig:"location"`

	Feed struct {
		Listen         string   `fig:"listen"`
		AllowedOrigins []string `fig:"allowed_origins"`
	} `fig:"feed"`

	Intervals struct {
		Output   time.Duration `fig:"output" default:"2s"`
		GPSDPoll time.Duration `fig:"gpsd_poll" default:"2s"`
	} `fig:"intervals"`

	Templates struct {
		Text    string `fig:"text"`
		Tooltip string `fig:"tooltip"`
	} `fig:"templates"`
}

func NewFromFile(path, file string) (*Config, error) {
	conf := new(Config)
	_, err := os.Stat(filepath.Join(path, file))
	if err != nil {
		return conf, fmt.Errorf("failed to read Config: %w", err)
	}
	if err = fig.Load(conf, fig.Dirs(path), fig.File(file), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

func New() (*Config, error) {
	conf := new(Config)
	if err := fig.Load(conf, fig.AllowNoFile(), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

// Override applies the command line settings to the config and validates the result. Empty
// values keep the configured ones.
func (c *Config) Override(destination, origin string, simulate bool) error {
	if destination != "" {
		c.Navigation.Destination = destination
	}
	if origin != "" {
		c.Navigation.Origin = origin
	}
	if simulate {
		c.Location.Simulate = true
	}
	return c.Validate()
}

func (c *Config) Validate() error {
	if c.Locale == "" {
		c.Locale = getLocale()
	}

	c.Routing.Provider = strings.ToLower(c.Routing.Provider)
	if !oneOf(c.Routing.Provider, routingProviders) {
		return fmt.Errorf("invalid routing provider: %s", c.Routing.Provider)
	}
	if c.Routing.Provider == "file" && c.Routing.File == "" {
		return fmt.Errorf("routing provider file requires a route file")
	}
	if c.Routing.Timeout <= 0 {
		return fmt.Errorf("invalid routing timeout: %s", c.Routing.Timeout)
	}

	c.GeoCoder.Provider = strings.ToLower(c.GeoCoder.Provider)
	if !oneOf(c.GeoCoder.Provider, geocoderProviders) {
		return fmt.Errorf("invalid geocoder provider: %s", c.GeoCoder.Provider)
	}

	if c.Navigation.RerouteConfirmations < 1 {
		return fmt.Errorf("invalid reroute confirmations: %d", c.Navigation.RerouteConfirmations)
	}
	if c.Navigation.RerouteCorridor < 0 {
		return fmt.Errorf("invalid reroute corridor: %g", c.Navigation.RerouteCorridor)
	}

	if c.Location.MaxAccuracy <= 0 {
		return fmt.Errorf("invalid maximum location accuracy: %g", c.Location.MaxAccuracy)
	}
	c.Location.GPSDMode = strings.ToLower(c.Location.GPSDMode)
	if !oneOf(c.Location.GPSDMode, gpsdModes) {
		return fmt.Errorf("invalid gpsd mode: %s", c.Location.GPSDMode)
	}
	if c.Location.Simulate && (c.Location.SimulateSpeed <= 0 || c.Location.SimulateInterval <= 0) {
		return fmt.Errorf("invalid simulation speed or interval: %g m/s every %s", c.Location.SimulateSpeed,
			c.Location.SimulateInterval)
	}

	if c.Intervals.Output <= 0 {
		return fmt.Errorf("invalid output interval: %s", c.Intervals.Output)
	}
	if c.Intervals.GPSDPoll <= 0 {
		return fmt.Errorf("invalid gpsd poll interval: %s", c.Intervals.GPSDPoll)
	}

	if c.Templates.Text == "" {
		c.Templates.Text = DefaultTextTpl
	}
	if c.Templates.Tooltip == "" {
		c.Templates.Tooltip = DefaultTooltipTpl
	}

	return nil
}

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

func getLocale() string {
	locale := os.Getenv("LC_MESSAGES")
	if idx := strings.Index(locale, "."); idx != -1 {
		lang := locale[:idx]
		return strings.ReplaceAll(lang, "_", "-")
	}
	return locale
}
