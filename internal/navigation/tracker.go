// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package navigation implements the turn-by-turn navigation state tracker. The tracker consumes
// location fixes and decides which maneuver of the route is active, how far away the next turn
// is, whether a step or the whole route is complete, and whether the traveler left the route.
package navigation

import (
	"log/slog"

	"github.com/wneessen/waybar-navigation/internal/geo"
	"github.com/wneessen/waybar-navigation/internal/logger"
	"github.com/wneessen/waybar-navigation/internal/route"
	"github.com/wneessen/waybar-navigation/internal/vartype"
)

const (
	// AdvanceThreshold is the distance in meters to the end of a step within which the tracker
	// moves on to the next step.
	AdvanceThreshold = 50.0
	// ArrivalThreshold is the distance in meters to the end of the last step within which the
	// route is complete.
	ArrivalThreshold = 20.0
	// DeviationThreshold is the distance in meters to the start of the current step beyond
	// which the traveler is considered off-route.
	DeviationThreshold = 200.0
)

// Listener receives the events of a navigation session.
type Listener interface {
	// StepChanged is called after the tracker advanced to the step at index.
	StepChanged(step route.Step, index int)
	// NavigationComplete is called once the final step has been reached.
	NavigationComplete()
	// Rerouted is called after an active session received a replacement route.
	Rerouted(steps []route.Step)
	// OffRoute is called when CheckForRerouting detected a deviation.
	OffRoute(location geo.Point, distance float64)
}

// NopListener implements Listener and ignores all events. It can be embedded by types that are
// only interested in some of the events.
type NopListener struct{}

func (NopListener) StepChanged(route.Step, int) {}
func (NopListener) NavigationComplete() {}
func (NopListener) Rerouted([]route.Step) {}
func (NopListener) OffRoute(geo.Point, float64) {}

// Update is the result of a single location update.
type Update struct {
	Navigating         bool               `json:"navigating"`
	StepIndex          int                `json:"step_index"`
	DistanceToNextTurn vartype.VarFloat64 `json:"distance_to_next_turn"`
}

// sessionState is either inactive or active. Only an active session carries a step index, so
// leaving the active state always discards the index.
type sessionState interface {
	stepIndex() int
}

type inactive struct{}

func (inactive) stepIndex() int { return 0 }

type active struct {
	index int
}

func (a active) stepIndex() int { return a.index }

// Tracker is the navigation state machine. It is not safe for concurrent use; the owner must
// serialize calls, which is the natural consequence of a single location source.
type Tracker struct {
	logger   *logger.Logger
	steps    []route.Step
	state    sessionState
	listener Listener
}

// New returns an inert Tracker without a route.
func New(log *logger.Logger) *Tracker {
	return &Tracker{
		logger:   log,
		state:    inactive{},
		listener: NopListener{},
	}
}

// SetRoute installs a new ordered list of steps and resets the step index to 0. It does not
// start the session.
func (t *Tracker) SetRoute(steps []route.Step) {
	t.steps = steps
	if _, ok := t.state.(active); ok {
		t.state = active{index: 0}
	}
}

// Start marks the session active, resets the step index and registers the listener. A nil
// listener is replaced by a NopListener.
func (t *Tracker) Start(listener Listener) {
	if listener == nil {
		listener = NopListener{}
	}
	t.listener = listener
	t.state = active{index: 0}
	t.logger.Debug("navigation started", slog.Int("steps", len(t.steps)))
}

// Stop marks the session inactive, resets the step index and clears the listener.
func (t *Tracker) Stop() {
	t.state = inactive{}
	t.listener = NopListener{}
}

// Reroute replaces the route of an active session. The step index is reset to 0 and the
// listener is informed about the new steps. On an inactive session, Reroute behaves like
// SetRoute.
func (t *Tracker) Reroute(steps []route.Step) {
	t.SetRoute(steps)
	if !t.Active() {
		return
	}
	t.logger.Debug("route replaced", slog.Int("steps", len(steps)))
	t.listener.Rerouted(steps)
}

// Active reports whether a navigation session is in progress.
func (t *Tracker) Active() bool {
	_, ok := t.state.(active)
	return ok
}

// StepIndex returns the current step index. It is 0 for an inactive session.
func (t *Tracker) StepIndex() int {
	return t.state.stepIndex()
}

// Steps returns the installed route steps.
func (t *Tracker) Steps() []route.Step {
	return t.steps
}

// Update consumes a single location fix and returns the resulting navigation state.
func (t *Tracker) Update(location geo.Point) Update {
	state, ok := t.state.(active)
	if !ok || len(t.steps) == 0 {
		return Update{}
	}
	index := state.index
	if index < 0 || index >= len(t.steps) {
		return Update{}
	}
	last := len(t.steps) - 1

	distance := geo.Distance(location, t.steps[index].End)
	toTurn := distance
	if distance < AdvanceThreshold && index < last {
		index++
		t.state = active{index: index}
		t.logger.Debug("advanced to next step", slog.Int("index", index),
			slog.Float64("distance", distance))
		t.listener.StepChanged(t.steps[index], index)

		// distances are always reported relative to the step the traveler is now on
		distance = geo.Distance(location, t.steps[index].End)
	}

	// arrival uses the distance measured before any advance
	if index == last && toTurn < ArrivalThreshold {
		listener := t.listener
		t.Stop()
		t.logger.Debug("navigation complete", slog.Int("index", index))
		listener.NavigationComplete()
		return Update{StepIndex: index}
	}

	return Update{
		Navigating:         true,
		StepIndex:          index,
		DistanceToNextTurn: vartype.NewVariable(distance),
	}
}

// CurrentStep returns the step at the current index. The boolean is false if there is none.
func (t *Tracker) CurrentStep() (route.Step, bool) {
	index := t.state.stepIndex()
	if index < 0 || index >= len(t.steps) {
		return route.Step{}, false
	}
	return t.steps[index], true
}

// NextSteps returns up to count steps following the current one.
func (t *Tracker) NextSteps(count int) []route.Step {
	next := t.state.stepIndex() + 1
	if count <= 0 || next >= len(t.steps) {
		return []route.Step{}
	}
	end := min(next+count, len(t.steps))
	steps := make([]route.Step, end-next)
	copy(steps, t.steps[next:end])
	return steps
}

// CheckForRerouting reports whether the traveler deviated from the route. The deviation is the
// distance between the location and the start of the current step, which is a simplified
// heuristic and not a distance to the route geometry. A deviation beyond DeviationThreshold
// triggers the OffRoute event. Recomputing the route is left to the owner of the tracker.
func (t *Tracker) CheckForRerouting(location geo.Point) bool {
	if !t.Active() {
		return false
	}
	step, ok := t.CurrentStep()
	if !ok {
		return false
	}

	deviation := geo.Distance(location, step.Start)
	if deviation <= DeviationThreshold {
		return false
	}
	t.triggerRerouting(location, deviation)
	return true
}

func (t *Tracker) triggerRerouting(location geo.Point, deviation float64) {
	t.logger.Info("rerouting needed", slog.Float64("lat", location.Lat), slog.Float64("lon", location.Lon),
		slog.Float64("deviation", deviation))
	t.listener.OffRoute(location, deviation)
}
