// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package route holds the route model produced by the directions providers and consumed by the
// navigation tracker.
package route

import (
	"context"
	"errors"
	"time"

	"github.com/wneessen/waybar-navigation/internal/geo"
)

// ErrNoRoute is returned by providers when the directions service did not find a route.
var ErrNoRoute = errors.New("no route found")

// Provider is implemented by each directions backend.
type Provider interface {
	Name() string
	Route(ctx context.Context, origin, destination geo.Point) (*Data, error)
}

// Step is a single maneuver segment of a route. Instruction is plain text.
type Step struct {
	Instruction string    `json:"instruction" toml:"instruction"`
	Distance    float64   `json:"distance" toml:"distance"`
	Duration    float64   `json:"duration" toml:"duration"`
	Start       geo.Point `json:"start_location" toml:"start_location"`
	End         geo.Point `json:"end_location" toml:"end_location"`
}

// Data is a complete route as returned by a Provider. It is replaced wholesale on reroute.
type Data struct {
	Coordinates []geo.Point `json:"coordinates" toml:"coordinates"`
	Distance    float64     `json:"distance" toml:"distance"`
	Duration    float64     `json:"duration" toml:"duration"`
	Steps       []Step      `json:"steps" toml:"steps"`
}

// DurationTime returns the duration of the step as time.Duration.
func (s Step) DurationTime() time.Duration {
	return seconds(s.Duration)
}

// DurationTime returns the total duration of the route as time.Duration.
func (d *Data) DurationTime() time.Duration {
	return seconds(d.Duration)
}

// Destination returns the end location of the last step, falling back to the last coordinate
// of the route geometry.
func (d *Data) Destination() (geo.Point, bool) {
	if len(d.Steps) > 0 {
		return d.Steps[len(d.Steps)-1].End, true
	}
	if len(d.Coordinates) > 0 {
		return d.Coordinates[len(d.Coordinates)-1], true
	}
	return geo.Point{}, false
}

// Summarize fills in the total distance and duration from the steps, if the provider did not
// report them.
func (d *Data) Summarize() {
	if d.Distance > 0 && d.Duration > 0 {
		return
	}
	var dist, dur float64
	for _, step := range d.Steps {
		dist += step.Distance
		dur += step.Duration
	}
	if d.Distance <= 0 {
		d.Distance = dist
	}
	if d.Duration <= 0 {
		d.Duration = dur
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
