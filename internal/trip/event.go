// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package trip

import (
	"time"

	"github.com/wneessen/waybar-navigation/internal/route"
)

// EventType names the kind of an Event.
type EventType string

const (
	EventStep         EventType = "step"
	EventReroute      EventType = "reroute"
	EventArrived      EventType = "arrived"
	EventStatus       EventType = "status"
	EventAnnouncement EventType = "announcement"
)

// Event is emitted to an Observer whenever something happens in a session.
type Event struct {
	Type      EventType    `json:"type"`
	SessionID string       `json:"session_id,omitempty"`
	Time      time.Time    `json:"time"`
	StepIndex int          `json:"step_index,omitempty"`
	Step      *route.Step  `json:"step,omitempty"`
	Steps     []route.Step `json:"steps,omitempty"`
	Status    *Status      `json:"status,omitempty"`
	Text      string       `json:"text,omitempty"`
}

// Observer receives session events. Event is called synchronously from the goroutine that
// handles the fixes and must not block.
type Observer interface {
	Event(event Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) Event(event Event) { f(event) }

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) Event(Event) {}

// NewAnnouncement returns an announcement event for text.
func NewAnnouncement(sessionID, text string) Event {
	return Event{Type: EventAnnouncement, SessionID: sessionID, Time: time.Now(), Text: text}
}

type eventOption func(*Event)

func withStep(step route.Step, index int) eventOption {
	return func(e *Event) {
		e.Step = &step
		e.StepIndex = index
	}
}

func withSteps(steps []route.Step) eventOption {
	return func(e *Event) {
		e.Steps = steps
	}
}

func withStatus(status Status) eventOption {
	return func(e *Event) {
		e.Status = &status
	}
}

func (t *Trip) newEvent(eventType EventType, opts ...eventOption) Event {
	event := Event{Type: eventType, SessionID: t.sessionID, Time: time.Now()}
	for _, opt := range opts {
		opt(&event)
	}
	return event
}
