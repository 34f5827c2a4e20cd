// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package navigation

import (
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/wneessen/waybar-navigation/internal/geo"
	"github.com/wneessen/waybar-navigation/internal/logger"
	"github.com/wneessen/waybar-navigation/internal/route"
)

func TestNew(t *testing.T) {
	t.Run("new tracker is inert", func(t *testing.T) {
		tracker := New(logger.New(slog.LevelError))
		if tracker == nil {
			t.Fatal("expected tracker to be non-nil")
		}
		if tracker.Active() {
			t.Error("expected new tracker to be inactive")
		}
		if _, ok := tracker.CurrentStep(); ok {
			t.Error("expected new tracker to have no current step")
		}
		update := tracker.Update(geo.Point{})
		if update.Navigating || update.StepIndex != 0 || update.DistanceToNextTurn.IsSet() {
			t.Errorf("expected inactive update, got %+v", update)
		}
	})
}

func TestTracker_Update(t *testing.T) {
	t.Run("empty route reports inactive", func(t *testing.T) {
		tracker, rec := testTracker(t, nil)
		update := tracker.Update(geo.Point{})
		if update.Navigating || update.StepIndex != 0 {
			t.Errorf("expected inactive update, got %+v", update)
		}
		if len(rec.steps) != 0 || rec.completed != 0 {
			t.Error("expected no events for an empty route")
		}
	})
	t.Run("update before start reports inactive", func(t *testing.T) {
		tracker := New(logger.New(slog.LevelError))
		tracker.SetRoute(equatorRoute(3))
		update := tracker.Update(tracker.Steps()[0].End)
		if update.Navigating || tracker.StepIndex() != 0 {
			t.Errorf("expected inactive update, got %+v", update)
		}
	})
	t.Run("far from the turn reports the distance without advancing", func(t *testing.T) {
		steps := equatorRoute(3)
		tracker, rec := testTracker(t, steps)
		location := pointNear(steps[0].End, 500)
		update := tracker.Update(location)
		if !update.Navigating {
			t.Fatal("expected to be navigating")
		}
		if update.StepIndex != 0 {
			t.Errorf("expected step index 0, got %d", update.StepIndex)
		}
		if !update.DistanceToNextTurn.IsSet() || math.Abs(update.DistanceToNextTurn.Value()-500) > 1e-6 {
			t.Errorf("expected distance to next turn to be 500, got %s", update.DistanceToNextTurn)
		}
		if len(rec.steps) != 0 {
			t.Errorf("expected no step change, got %d", len(rec.steps))
		}
	})
	t.Run("advance threshold is strict", func(t *testing.T) {
		tests := []struct {
			name      string
			distance  float64
			wantIndex int
		}{
			{"49 meters advances", 49, 1},
			{"49.999 meters advances", 49.999, 1},
			{"exactly 50 meters does not advance", 50, 0},
			{"50.001 meters does not advance", 50.001, 0},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				steps := equatorRoute(3)
				tracker, rec := testTracker(t, steps)
				update := tracker.Update(pointAt(t, steps[0].End, tc.distance))
				if update.StepIndex != tc.wantIndex {
					t.Errorf("expected step index %d, got %d", tc.wantIndex, update.StepIndex)
				}
				if !update.Navigating {
					t.Error("expected to be navigating")
				}
				if tc.wantIndex == 1 && len(rec.steps) != 1 {
					t.Errorf("expected one step change event, got %d", len(rec.steps))
				}
			})
		}
	})
	t.Run("arrival threshold is strict", func(t *testing.T) {
		tests := []struct {
			name           string
			distance       float64
			wantNavigating bool
			wantCompleted  int
		}{
			{"19 meters completes", 19, false, 1},
			{"exactly 20 meters does not complete", 20, true, 0},
			{"21 meters does not complete", 21, true, 0},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				steps := equatorRoute(1)
				tracker, rec := testTracker(t, steps)
				update := tracker.Update(pointAt(t, steps[0].End, tc.distance))
				if update.Navigating != tc.wantNavigating {
					t.Errorf("expected navigating to be %t, got %t", tc.wantNavigating, update.Navigating)
				}
				if rec.completed != tc.wantCompleted {
					t.Errorf("expected %d completion events, got %d", tc.wantCompleted, rec.completed)
				}
				if tracker.Active() != tc.wantNavigating {
					t.Errorf("expected tracker active state to be %t", tc.wantNavigating)
				}
			})
		}
	})
	t.Run("the last step never advances", func(t *testing.T) {
		steps := equatorRoute(2)
		tracker, rec := testTracker(t, steps)
		tracker.Update(pointAt(t, steps[0].End, 30))
		update := tracker.Update(pointAt(t, steps[1].End, 30))
		if update.StepIndex != 1 || !update.Navigating {
			t.Errorf("expected to stay on the last step, got %+v", update)
		}
		if len(rec.steps) != 1 {
			t.Errorf("expected one step change event, got %d", len(rec.steps))
		}
	})
	t.Run("only one step is advanced per update", func(t *testing.T) {
		steps := []route.Step{
			{Start: geo.Point{Lat: 0, Lon: 0}, End: geo.Point{Lat: 0, Lon: 0.001}},
			{Start: geo.Point{Lat: 0, Lon: 0.001}, End: geo.Point{Lat: 0, Lon: 0.0011}},
			{Start: geo.Point{Lat: 0, Lon: 0.0011}, End: geo.Point{Lat: 0, Lon: 0.01}},
		}
		tracker, rec := testTracker(t, steps)
		location := steps[0].End
		update := tracker.Update(location)
		if update.StepIndex != 1 {
			t.Fatalf("expected step index 1, got %d", update.StepIndex)
		}
		want := geo.Distance(location, steps[1].End)
		if want >= AdvanceThreshold {
			t.Fatalf("test route is broken: next step end is %f meters away", want)
		}
		if update.DistanceToNextTurn.Value() != want {
			t.Errorf("expected distance relative to the new step (%f), got %f", want,
				update.DistanceToNextTurn.Value())
		}
		if len(rec.steps) != 1 {
			t.Errorf("expected exactly one step change, got %d", len(rec.steps))
		}
		update = tracker.Update(location)
		if update.StepIndex != 2 {
			t.Errorf("expected the next update to advance to step 2, got %d", update.StepIndex)
		}
	})
	t.Run("landing on step ends completes on the way to the last step", func(t *testing.T) {
		for _, n := range []int{1, 2, 3, 5} {
			steps := equatorRoute(n)
			tracker, rec := testTracker(t, steps)
			var update Update
			for _, step := range steps {
				update = tracker.Update(step.End)
				if !update.Navigating {
					break
				}
			}
			if len(rec.steps) != n-1 {
				t.Errorf("route of %d steps: expected %d step changes, got %d", n, n-1, len(rec.steps))
			}
			for i, ev := range rec.steps {
				if ev.index != i+1 || ev.step != steps[i+1] {
					t.Errorf("route of %d steps: unexpected step change event %d: %+v", n, i, ev)
				}
			}
			if rec.completed != 1 {
				t.Errorf("route of %d steps: expected one completion, got %d", n, rec.completed)
			}
			if update.Navigating {
				t.Errorf("route of %d steps: expected navigation to be finished", n)
			}
			if update.StepIndex != n-1 {
				t.Errorf("route of %d steps: expected final index %d, got %d", n, n-1, update.StepIndex)
			}
			update = tracker.Update(steps[n-1].End)
			if update.Navigating || update.StepIndex != 0 {
				t.Errorf("route of %d steps: expected inactive update after completion, got %+v", n, update)
			}
			if rec.completed != 1 {
				t.Errorf("route of %d steps: expected completion to fire only once, got %d", n, rec.completed)
			}
		}
	})
	t.Run("arrival is checked against the distance before the advance", func(t *testing.T) {
		steps := equatorRoute(2)
		if steps[0].End != (geo.Point{Lat: 0, Lon: 0.01}) {
			t.Fatalf("test route is broken: first step ends at %s", steps[0].End)
		}
		tracker, rec := testTracker(t, steps)
		update := tracker.Update(pointAt(t, steps[0].End, 10))
		if len(rec.steps) != 1 || rec.steps[0].index != 1 {
			t.Errorf("expected StepChanged to step 1, got %+v", rec.steps)
		}
		if rec.completed != 1 {
			t.Errorf("expected navigation to complete, got %d completions", rec.completed)
		}
		if update.Navigating || update.StepIndex != 1 {
			t.Errorf("expected a finished update on step 1, got %+v", update)
		}
		if tracker.Active() {
			t.Error("expected tracker to be stopped after arrival")
		}
	})
	t.Run("advancing outside the arrival radius keeps navigating", func(t *testing.T) {
		steps := equatorRoute(2)
		tracker, rec := testTracker(t, steps)
		location := pointAt(t, steps[0].End, 30)
		update := tracker.Update(location)
		if !update.Navigating || update.StepIndex != 1 {
			t.Fatalf("expected to navigate on step 1, got %+v", update)
		}
		if rec.completed != 0 {
			t.Errorf("expected no completion, got %d", rec.completed)
		}
		want := geo.Distance(location, steps[1].End)
		if update.DistanceToNextTurn.Value() != want {
			t.Errorf("expected distance to next turn to be %f, got %f", want, update.DistanceToNextTurn.Value())
		}
	})
	t.Run("end to end: approach, advance, arrive", func(t *testing.T) {
		steps := equatorRoute(2)
		tracker, rec := testTracker(t, steps)

		update := tracker.Update(pointNear(steps[0].End, 50.1))
		if update.StepIndex != 0 || !update.Navigating || len(rec.steps) != 0 {
			t.Fatalf("expected no advance at 50.1m, got %+v", update)
		}

		update = tracker.Update(pointAt(t, steps[0].End, 49.9))
		if update.StepIndex != 1 || !update.Navigating {
			t.Fatalf("expected advance to step 1 at 49.9m, got %+v", update)
		}
		if len(rec.steps) != 1 || rec.steps[0].index != 1 || rec.steps[0].step != steps[1] {
			t.Fatalf("expected StepChanged(stepB, 1), got %+v", rec.steps)
		}
		if rec.completed != 0 {
			t.Fatal("expected no completion yet")
		}

		update = tracker.Update(pointAt(t, steps[1].End, 19.9))
		if update.Navigating {
			t.Error("expected navigation to be finished")
		}
		if update.StepIndex != 1 {
			t.Errorf("expected the final update to carry the last step index, got %d", update.StepIndex)
		}
		if rec.completed != 1 {
			t.Errorf("expected one completion, got %d", rec.completed)
		}
		if tracker.StepIndex() != 0 || tracker.Active() {
			t.Error("expected tracker to be reset after completion")
		}
	})
	t.Run("step index is monotonic while active", func(t *testing.T) {
		steps := equatorRoute(4)
		tracker, _ := testTracker(t, steps)
		locations := []geo.Point{
			steps[0].End, steps[0].Start, steps[1].End, steps[0].End, steps[0].Start, pointNear(steps[2].End, 300),
		}
		last := 0
		for _, location := range locations {
			update := tracker.Update(location)
			if update.StepIndex < last {
				t.Fatalf("step index went backwards from %d to %d", last, update.StepIndex)
			}
			last = update.StepIndex
		}
		if last != 2 {
			t.Errorf("expected to end on step 2, got %d", last)
		}
	})
}

func TestTracker_Lifecycle(t *testing.T) {
	t.Run("set route resets the index of an active session", func(t *testing.T) {
		steps := equatorRoute(3)
		tracker, _ := testTracker(t, steps)
		tracker.Update(steps[0].End)
		if tracker.StepIndex() != 1 {
			t.Fatalf("expected step index 1, got %d", tracker.StepIndex())
		}
		tracker.SetRoute(equatorRoute(4))
		if tracker.StepIndex() != 0 || !tracker.Active() {
			t.Errorf("expected an active session on step 0, got index %d", tracker.StepIndex())
		}
	})
	t.Run("set route does not start a session", func(t *testing.T) {
		tracker := New(logger.New(slog.LevelError))
		tracker.SetRoute(equatorRoute(3))
		if tracker.Active() {
			t.Error("expected session to be inactive")
		}
	})
	t.Run("stop resets the index and clears the listener", func(t *testing.T) {
		steps := equatorRoute(3)
		tracker, rec := testTracker(t, steps)
		tracker.Update(steps[0].End)
		tracker.Stop()
		if tracker.Active() || tracker.StepIndex() != 0 {
			t.Error("expected stopped session on step 0")
		}
		tracker.Reroute(equatorRoute(2))
		if len(rec.rerouted) != 0 {
			t.Error("expected no events after stop")
		}
	})
	t.Run("start resets the index", func(t *testing.T) {
		steps := equatorRoute(3)
		tracker, _ := testTracker(t, steps)
		tracker.Update(steps[0].End)
		tracker.Start(nil)
		if tracker.StepIndex() != 0 {
			t.Errorf("expected step index 0, got %d", tracker.StepIndex())
		}
	})
	t.Run("nil listener is tolerated", func(t *testing.T) {
		steps := equatorRoute(2)
		tracker := New(logger.New(slog.LevelError))
		tracker.SetRoute(steps)
		tracker.Start(nil)
		tracker.Update(pointNear(steps[0].End, 30))
		tracker.CheckForRerouting(pointNear(steps[1].Start, 1000))
		tracker.Reroute(equatorRoute(3))
		update := tracker.Update(tracker.Steps()[0].End)
		if update.StepIndex != 1 {
			t.Errorf("expected step index 1, got %d", update.StepIndex)
		}
		tracker.Update(tracker.Steps()[1].End)
		update = tracker.Update(tracker.Steps()[2].End)
		if update.Navigating {
			t.Error("expected navigation to be complete")
		}
	})
	t.Run("reroute replaces the route and informs the listener", func(t *testing.T) {
		steps := equatorRoute(3)
		tracker, rec := testTracker(t, steps)
		tracker.Update(steps[0].End)
		replacement := equatorRoute(5)
		tracker.Reroute(replacement)
		if len(rec.rerouted) != 1 || len(rec.rerouted[0]) != 5 {
			t.Fatalf("expected one reroute event with 5 steps, got %+v", rec.rerouted)
		}
		if tracker.StepIndex() != 0 || !tracker.Active() {
			t.Error("expected active session on step 0 after reroute")
		}
	})
	t.Run("reroute on an inactive session only installs the route", func(t *testing.T) {
		tracker := New(logger.New(slog.LevelError))
		tracker.Reroute(equatorRoute(2))
		if tracker.Active() || len(tracker.Steps()) != 2 {
			t.Error("expected inactive session with the new route")
		}
	})
}

func TestTracker_CurrentStep(t *testing.T) {
	steps := equatorRoute(3)
	tracker, _ := testTracker(t, steps)
	step, ok := tracker.CurrentStep()
	if !ok || step != steps[0] {
		t.Errorf("expected current step to be the first step")
	}
	tracker.Update(steps[0].End)
	step, ok = tracker.CurrentStep()
	if !ok || step != steps[1] {
		t.Errorf("expected current step to be the second step")
	}
	tracker.SetRoute(nil)
	if _, ok = tracker.CurrentStep(); ok {
		t.Error("expected no current step for an empty route")
	}
}

func TestTracker_NextSteps(t *testing.T) {
	steps := equatorRoute(5)
	tracker, _ := testTracker(t, steps)

	tests := []struct {
		name    string
		advance int
		count   int
		want    []route.Step
	}{
		{"three after the first", 0, 3, steps[1:4]},
		{"fewer near the end", 2, 3, steps[3:5]},
		{"none on the last step", 4, 3, []route.Step{}},
		{"zero count", 0, 0, []route.Step{}},
		{"negative count", 0, -1, []route.Step{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tracker.Start(nil)
			for i := range tc.advance {
				tracker.Update(pointNear(steps[i].End, 30))
			}
			got := tracker.NextSteps(tc.count)
			if len(got) != len(tc.want) {
				t.Fatalf("expected %d steps, got %d", len(tc.want), len(got))
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("expected step %d to be %+v, got %+v", i, tc.want[i], got[i])
				}
			}
		})
	}
	t.Run("returned steps are a copy", func(t *testing.T) {
		tracker.Start(nil)
		got := tracker.NextSteps(1)
		got[0].Instruction = "changed"
		if tracker.Steps()[1].Instruction == "changed" {
			t.Error("expected NextSteps to return a copy")
		}
	})
}

func TestTracker_CheckForRerouting(t *testing.T) {
	t.Run("deviation threshold is strict", func(t *testing.T) {
		tests := []struct {
			name     string
			distance float64
			want     bool
		}{
			{"close to the start", 10, false},
			{"exactly 200 meters", 200, false},
			{"200.5 meters", 200.5, true},
			{"far away", 5000, true},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				steps := equatorRoute(3)
				tracker, rec := testTracker(t, steps)
				got := tracker.CheckForRerouting(pointAt(t, steps[0].Start, tc.distance))
				if got != tc.want {
					t.Errorf("expected rerouting check to return %t, got %t", tc.want, got)
				}
				if tc.want && (len(rec.offRoute) != 1 || math.Abs(rec.offRoute[0]-tc.distance) > 1e-6) {
					t.Errorf("expected one off-route event with %f meters, got %v", tc.distance, rec.offRoute)
				}
				if !tc.want && len(rec.offRoute) != 0 {
					t.Errorf("expected no off-route events, got %v", rec.offRoute)
				}
			})
		}
	})
	t.Run("deviation is measured against the current step", func(t *testing.T) {
		steps := equatorRoute(3)
		tracker, _ := testTracker(t, steps)
		tracker.Update(steps[0].End)
		if tracker.CheckForRerouting(pointNear(steps[1].Start, 150)) {
			t.Error("expected no rerouting close to the start of the current step")
		}
		if !tracker.CheckForRerouting(steps[0].Start) {
			t.Error("expected rerouting far from the start of the current step")
		}
	})
	t.Run("no rerouting when not navigating", func(t *testing.T) {
		tracker := New(logger.New(slog.LevelError))
		tracker.SetRoute(equatorRoute(3))
		if tracker.CheckForRerouting(geo.Point{Lat: 45, Lon: 45}) {
			t.Error("expected no rerouting for an inactive session")
		}
		tracker.Start(nil)
		tracker.Stop()
		if tracker.CheckForRerouting(geo.Point{Lat: 45, Lon: 45}) {
			t.Error("expected no rerouting for a stopped session")
		}
	})
	t.Run("no rerouting without a current step", func(t *testing.T) {
		tracker, _ := testTracker(t, nil)
		if tracker.CheckForRerouting(geo.Point{Lat: 45, Lon: 45}) {
			t.Error("expected no rerouting for an empty route")
		}
	})
}

func TestRemaining(t *testing.T) {
	steps := []route.Step{
		{Distance: 1000, Duration: 100},
		{Distance: 500, Duration: 50},
		{Distance: 250, Duration: 25},
	}
	tests := []struct {
		name         string
		index        int
		distance     float64
		wantDistance float64
		wantDuration time.Duration
	}{
		{"start of the route", 0, 1000, 1750, time.Second * 175},
		{"half way through the first step", 0, 500, 1250, time.Second * 125},
		{"last step", 2, 100, 100, time.Second * 10},
		{"distance beyond the step length", 1, 800, 1050, time.Second * 75},
		{"index out of range", 3, 100, 0, 0},
		{"negative index", -1, 100, 0, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			distance, duration := Remaining(steps, tc.index, tc.distance)
			if distance != tc.wantDistance {
				t.Errorf("expected remaining distance %f, got %f", tc.wantDistance, distance)
			}
			if duration != tc.wantDuration {
				t.Errorf("expected remaining duration %s, got %s", tc.wantDuration, duration)
			}
		})
	}
	t.Run("step without distance counts its full duration", func(t *testing.T) {
		_, duration := Remaining([]route.Step{{Duration: 30}}, 0, 10)
		if duration != time.Second*30 {
			t.Errorf("expected 30s, got %s", duration)
		}
	})
}
