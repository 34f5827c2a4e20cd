// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package trip ties a navigation tracker and a guidance announcer into a navigation session. It
// turns location fixes into a Status, announces maneuvers and decides when a new route should
// be requested.
package trip

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wneessen/waybar-navigation/internal/geo"
	"github.com/wneessen/waybar-navigation/internal/guidance"
	"github.com/wneessen/waybar-navigation/internal/location"
	"github.com/wneessen/waybar-navigation/internal/logger"
	"github.com/wneessen/waybar-navigation/internal/navigation"
	"github.com/wneessen/waybar-navigation/internal/route"
	"github.com/wneessen/waybar-navigation/internal/vartype"
)

// DefaultNextSteps is the number of upcoming steps included in a Status.
const DefaultNextSteps = 2

// State is the coarse state of a session.
type State string

const (
	StateIdle       State = "idle"
	StateNavigating State = "navigating"
	StateRerouting  State = "rerouting"
	StateArrived    State = "arrived"
)

// Options control when a reroute is requested.
type Options struct {
	// RerouteConfirmations is the number of consecutive off-route fixes required.
	RerouteConfirmations uint
	// RerouteCooldown is the minimum time between two reroute requests.
	RerouteCooldown time.Duration
	// RerouteCorridor is the slack in meters a fix may have off the current step before it
	// counts as off-route. See Trip.outsideCorridor.
	RerouteCorridor float64
	// NextSteps is the number of upcoming steps reported in a Status.
	NextSteps int
}

// Status is a snapshot of the session after a fix was handled.
type Status struct {
	SessionID         string             `json:"session_id"`
	State             State              `json:"state"`
	Update            navigation.Update  `json:"update"`
	Step              *route.Step        `json:"step,omitempty"`
	NextSteps         []route.Step       `json:"next_steps"`
	RemainingDistance vartype.VarFloat64 `json:"remaining_distance"`
	RemainingDuration time.Duration      `json:"remaining_duration"`
	ETA               time.Time          `json:"eta"`
	RerouteRequested  bool               `json:"reroute_requested"`
	Arrived           bool               `json:"arrived"`
	Fix               *location.Fix      `json:"fix,omitempty"`
}

// Trip is a navigation session. It owns exactly one tracker and one announcer. All methods are
// safe for concurrent use, but fixes are expected to be handled by a single goroutine.
type Trip struct {
	logger    *logger.Logger
	tracker   *navigation.Tracker
	announcer *guidance.Announcer
	observer  Observer
	opts      Options

	mu            sync.RWMutex
	sessionID     string
	data          *route.Data
	state         State
	offRouteCount uint
	lastReroute   time.Time
	status        Status
}

// New returns an idle Trip. A nil observer is replaced by a NopObserver.
func New(log *logger.Logger, tracker *navigation.Tracker, announcer *guidance.Announcer, observer Observer,
	opts Options,
) *Trip {
	if observer == nil {
		observer = NopObserver{}
	}
	if opts.NextSteps <= 0 {
		opts.NextSteps = DefaultNextSteps
	}
	if opts.RerouteConfirmations == 0 {
		opts.RerouteConfirmations = 1
	}
	trip := &Trip{
		logger:    log,
		tracker:   tracker,
		announcer: announcer,
		observer:  observer,
		opts:      opts,
		state:     StateIdle,
	}
	trip.status = Status{State: StateIdle, NextSteps: []route.Step{}}
	return trip
}

// Begin starts a new session on the given route with a fresh session ID.
func (t *Trip) Begin(data *route.Data) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sessionID = uuid.NewString()
	t.data = data
	t.state = StateNavigating
	t.offRouteCount = 0
	t.lastReroute = time.Time{}

	t.tracker.SetRoute(data.Steps)
	t.tracker.Start(t)
	t.status = t.idleStatus(nil)
	t.logger.Info("navigation session started", slog.String("session", t.sessionID),
		slog.Int("steps", len(data.Steps)), slog.Float64("distance", data.Distance))

	// observers learn the new session ID before the first announcement is spoken
	if step, ok := t.tracker.CurrentStep(); ok {
		t.observer.Event(t.newEvent(EventStep, withStep(step, 0)))
	}
	t.announcer.Reset()
	t.announcer.AnnounceNavigationStart()
}

// Handle feeds a fix into the session and returns the resulting Status.
func (t *Trip) Handle(fix location.Fix) Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.tracker.Active() {
		t.status = t.idleStatus(&fix)
		return t.status
	}

	update := t.tracker.Update(fix.Point)
	if !update.Navigating {
		// the tracker stopped itself, NavigationComplete has already been called
		t.status = t.idleStatus(&fix)
		t.status.Update = update
		return t.status
	}

	step, _ := t.tracker.CurrentStep()
	t.announcer.AnnounceInstruction(step, update.StepIndex, update.DistanceToNextTurn.Value())

	requested := t.checkReroute(fix)
	status := t.navigatingStatus(&fix, update, step)
	status.RerouteRequested = requested
	t.status = status
	t.observer.Event(t.newEvent(EventStatus, withStatus(status)))

	return status
}

// Reroute installs a replacement route for the running session.
func (t *Trip) Reroute(data *route.Data) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.data = data
	t.offRouteCount = 0
	if t.state == StateRerouting {
		t.state = StateNavigating
	}
	t.tracker.Reroute(data.Steps)
}

// AbortReroute leaves the rerouting state after a replacement route could not be fetched. The
// cooldown still applies to the next request.
func (t *Trip) AbortReroute() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateRerouting {
		t.state = StateNavigating
		t.status.State = StateNavigating
	}
}

// End stops the session.
func (t *Trip) End() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.tracker.Stop()
	t.announcer.Reset()
	if t.state != StateArrived {
		t.state = StateIdle
	}
	t.status = t.idleStatus(t.status.Fix)
	t.logger.Info("navigation session ended", slog.String("session", t.sessionID))
}

// Status returns the status of the last handled fix.
func (t *Trip) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Route returns the route of the session.
func (t *Trip) Route() *route.Data {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.data
}

// SessionID returns the ID of the current session. It is empty before Begin.
func (t *Trip) SessionID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sessionID
}

// StepChanged implements navigation.Listener.
func (t *Trip) StepChanged(step route.Step, index int) {
	t.logger.Debug("next maneuver", slog.Int("index", index), slog.String("instruction", step.Instruction))
	t.observer.Event(t.newEvent(EventStep, withStep(step, index)))
}

// NavigationComplete implements navigation.Listener.
func (t *Trip) NavigationComplete() {
	t.state = StateArrived
	t.announcer.AnnounceNavigationComplete()
	t.announcer.Reset()
	t.logger.Info("destination reached", slog.String("session", t.sessionID))
	t.observer.Event(t.newEvent(EventArrived))
}

// Rerouted implements navigation.Listener.
func (t *Trip) Rerouted(steps []route.Step) {
	t.announcer.Reset()
	t.announcer.AnnounceRerouting()
	t.observer.Event(t.newEvent(EventReroute, withSteps(steps)))
}

// OffRoute implements navigation.Listener.
func (t *Trip) OffRoute(location geo.Point, distance float64) {
	t.offRouteCount++
	t.logger.Debug("off route", slog.String("location", location.String()),
		slog.Float64("distance", distance), slog.Uint64("count", uint64(t.offRouteCount)))
}

// checkReroute decides if the fix warrants a new route. The tracker's deviation check only
// measures the distance to the start of the step, so fixes within the corridor around the
// step do not count. A reroute is requested after enough consecutive off-route fixes, but not
// more often than the cooldown allows.
func (t *Trip) checkReroute(fix location.Fix) bool {
	if t.state == StateRerouting {
		return false
	}
	step, ok := t.tracker.CurrentStep()
	if !ok {
		return false
	}
	if !t.outsideCorridor(fix.Point, step) || !t.tracker.CheckForRerouting(fix.Point) {
		t.offRouteCount = 0
		return false
	}
	if t.offRouteCount < t.opts.RerouteConfirmations {
		return false
	}
	if !t.lastReroute.IsZero() && time.Since(t.lastReroute) < t.opts.RerouteCooldown {
		return false
	}

	t.offRouteCount = 0
	t.lastReroute = time.Now()
	t.state = StateRerouting
	t.logger.Info("requesting a new route", slog.String("session", t.sessionID),
		slog.String("location", fix.Point.String()))
	return true
}

// outsideCorridor reports whether p lies outside the ellipse around the step whose foci are the
// start and end of the step. The detour via p must exceed the step length by more than the
// corridor width.
func (t *Trip) outsideCorridor(p geo.Point, step route.Step) bool {
	length := max(step.Distance, geo.Distance(step.Start, step.End))
	detour := geo.Distance(p, step.Start) + geo.Distance(p, step.End)
	return detour-length > t.opts.RerouteCorridor
}

func (t *Trip) idleStatus(fix *location.Fix) Status {
	return Status{
		SessionID: t.sessionID,
		State:     t.state,
		NextSteps: []route.Step{},
		Arrived:   t.state == StateArrived,
		Fix:       fix,
	}
}

func (t *Trip) navigatingStatus(fix *location.Fix, update navigation.Update, step route.Step) Status {
	distance, duration := navigation.Remaining(t.tracker.Steps(), update.StepIndex,
		update.DistanceToNextTurn.Value())
	return Status{
		SessionID:         t.sessionID,
		State:             t.state,
		Update:            update,
		Step:              &step,
		NextSteps:         t.tracker.NextSteps(t.opts.NextSteps),
		RemainingDistance: vartype.NewVariable(distance),
		RemainingDuration: duration,
		ETA:               time.Now().Add(duration),
		Fix:               fix,
	}
}
