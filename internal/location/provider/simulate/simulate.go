// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package simulate implements a location provider that drives along a route at a constant speed.
// It is meant for demonstrations and for testing a setup without a GPS receiver.
package simulate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/wneessen/waybar-navigation/internal/geo"
	"github.com/wneessen/waybar-navigation/internal/location"
	"github.com/wneessen/waybar-navigation/internal/logger"
	"github.com/wneessen/waybar-navigation/internal/route"
)

const (
	name     = "simulate"
	accuracy = 5.0
)

var (
	// ErrEmptyPath is returned when the route has no geometry to drive along.
	ErrEmptyPath = errors.New("route has no coordinates to simulate")
	// ErrInvalidPace is returned for a speed or interval that is not positive.
	ErrInvalidPace = errors.New("simulation speed and interval must be positive")
)

// Provider emits fixes along a path. The position survives restarts of the stream, so a
// restarted provider continues where it left off.
type Provider struct {
	logger   *logger.Logger
	speed    float64
	interval time.Duration

	mu       sync.Mutex
	path     []geo.Point
	segment  int
	traveled float64
}

// New returns a simulation Provider for the given route. Speed is in meters per second. The
// route geometry is used if present, otherwise the step end points.
func New(log *logger.Logger, data *route.Data, speed float64, interval time.Duration) (*Provider, error) {
	if speed <= 0 || interval <= 0 {
		return nil, ErrInvalidPace
	}
	path := Path(data)
	if len(path) == 0 {
		return nil, ErrEmptyPath
	}
	return &Provider{
		logger:   log,
		speed:    speed,
		interval: interval,
		path:     path,
	}, nil
}

// Path returns the points the simulation drives along for the given route.
func Path(data *route.Data) []geo.Point {
	if data == nil {
		return nil
	}
	if len(data.Coordinates) > 0 {
		return data.Coordinates
	}
	path := make([]geo.Point, 0, len(data.Steps)+1)
	for i, step := range data.Steps {
		if i == 0 {
			path = append(path, step.Start)
		}
		path = append(path, step.End)
	}
	return path
}

func (p *Provider) Name() string {
	return name
}

// LookupStream emits the current position and then advances it once per interval. After the
// end of the path is reached, the provider keeps reporting the final position at speed 0.
func (p *Provider) LookupStream(ctx context.Context) <-chan location.Fix {
	out := make(chan location.Fix)

	go func() {
		defer close(out)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.logger.Debug("starting location simulation", slog.Float64("speed", p.speed),
			slog.Int("points", len(p.path)))
		for {
			select {
			case <-ctx.Done():
				return
			case out <- p.current():
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.advance(p.speed * p.interval.Seconds())
			}
		}
	}()

	return out
}

// current returns the fix for the current position.
func (p *Provider) current() location.Fix {
	p.mu.Lock()
	defer p.mu.Unlock()

	fix := location.Fix{
		Accuracy: accuracy,
		Source:   name,
		At:       time.Now(),
		TTL:      p.interval * 3,
	}
	if p.segment >= len(p.path)-1 {
		fix.Point = p.path[len(p.path)-1]
		fix.Speed.Set(0)
		return fix
	}

	from, to := p.path[p.segment], p.path[p.segment+1]
	fraction := 0.0
	if length := geo.Distance(from, to); length > 0 {
		fraction = p.traveled / length
	}
	fix.Point = geo.Point{
		Lat: from.Lat + (to.Lat-from.Lat)*fraction,
		Lon: from.Lon + (to.Lon-from.Lon)*fraction,
	}
	fix.Heading.Set(geo.Bearing(from, to))
	fix.Speed.Set(p.speed)
	return fix
}

// advance moves the position meters along the path.
func (p *Provider) advance(meters float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.traveled += meters
	for p.segment < len(p.path)-1 {
		length := geo.Distance(p.path[p.segment], p.path[p.segment+1])
		if p.traveled < length {
			return
		}
		p.traveled -= length
		p.segment++
	}
	p.traveled = 0
}

// Finished reports whether the end of the path has been reached.
func (p *Provider) Finished() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.segment >= len(p.path)-1
}
