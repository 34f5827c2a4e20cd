// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package navigation

import (
	"log/slog"
	"math"
	"testing"

	"github.com/wneessen/waybar-navigation/internal/geo"
	"github.com/wneessen/waybar-navigation/internal/logger"
	"github.com/wneessen/waybar-navigation/internal/route"
)

// equatorRoute returns a route of n steps heading east along the equator. Every step is
// 0.01 degrees (~1.1km) long and starts where the previous one ended.
func equatorRoute(n int) []route.Step {
	steps := make([]route.Step, 0, n)
	for i := range n {
		steps = append(steps, route.Step{
			Instruction: "Continue east",
			Distance:    1112,
			Duration:    60,
			Start:       geo.Point{Lat: 0, Lon: float64(i) * 0.01},
			End:         geo.Point{Lat: 0, Lon: float64(i+1) * 0.01},
		})
	}
	return steps
}

// pointAt returns a point south of target on the same meridian whose distance to target is
// exactly meters. The target must be on the equator, where latitude offsets are fine-grained
// enough to hit the distance without rounding error.
func pointAt(t *testing.T, target geo.Point, meters float64) geo.Point {
	t.Helper()
	lat := target.Lat - meters/geo.EarthRadius*180/math.Pi
	down, up := lat, lat
	for range 100000 {
		for _, candidate := range []float64{down, up} {
			point := geo.Point{Lat: candidate, Lon: target.Lon}
			if geo.Distance(point, target) == meters {
				return point
			}
		}
		down = math.Nextafter(down, math.Inf(-1))
		up = math.Nextafter(up, math.Inf(1))
	}
	t.Fatalf("unable to find a point exactly %f meters from %s", meters, target)
	return geo.Point{}
}

// pointNear returns a point south of target on the same meridian, approximately meters away.
func pointNear(target geo.Point, meters float64) geo.Point {
	return geo.Point{Lat: target.Lat - meters/geo.EarthRadius*180/math.Pi, Lon: target.Lon}
}

type stepEvent struct {
	step  route.Step
	index int
}

// recorder is a Listener that records all events.
type recorder struct {
	steps     []stepEvent
	completed int
	rerouted  [][]route.Step
	offRoute  []float64
}

func (r *recorder) StepChanged(step route.Step, index int) {
	r.steps = append(r.steps, stepEvent{step: step, index: index})
}

func (r *recorder) NavigationComplete() {
	r.completed++
}

func (r *recorder) Rerouted(steps []route.Step) {
	r.rerouted = append(r.rerouted, steps)
}

func (r *recorder) OffRoute(_ geo.Point, distance float64) {
	r.offRoute = append(r.offRoute, distance)
}

func testTracker(t *testing.T, steps []route.Step) (*Tracker, *recorder) {
	t.Helper()
	tracker := New(logger.New(slog.LevelError))
	tracker.SetRoute(steps)
	rec := &recorder{}
	tracker.Start(rec)
	return tracker, rec
}
