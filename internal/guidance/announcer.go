// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package guidance turns navigation progress into spoken or written announcements.
package guidance

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/vorlif/spreak"
	"github.com/vorlif/spreak/localize"

	"github.com/wneessen/waybar-navigation/internal/route"
)

const (
	// FarBand is the upper bound in meters of the distance band in which a maneuver is announced
	// ahead of time.
	FarBand = 50.0
	// NearBand is the distance in meters at or below which the bare instruction is announced.
	NearBand = 20.0
)

const (
	msgInstructionAhead  localize.MsgID = "In %d meters, %s"
	msgRerouting         localize.MsgID = "Recalculating route"
	msgNavigationStarted localize.MsgID = "Navigation started"
	msgArrived           localize.MsgID = "You have arrived at your destination"
)

var markupTag = regexp.MustCompile(`<[^>]*>`)

// Announcer decides when a maneuver is announced and hands the phrase to a Sink. Each step index
// is announced at most once until Reset is called.
type Announcer struct {
	sink          Sink
	localizer     *spreak.Localizer
	lastAnnounced int

	// enabled may be toggled from a signal handler while fixes are processed.
	enabled atomic.Bool
}

// New returns an enabled Announcer that speaks through sink. A nil localizer yields the English
// phrases.
func New(sink Sink, localizer *spreak.Localizer) *Announcer {
	if sink == nil {
		sink = NopSink{}
	}
	announcer := &Announcer{
		sink:          sink,
		localizer:     localizer,
		lastAnnounced: -1,
	}
	announcer.enabled.Store(true)
	return announcer
}

// AnnounceInstruction announces step at index if the distance to its maneuver falls into one of
// the announcement bands and the index was not announced yet. Between NearBand and FarBand the
// phrase carries the rounded distance, at or below NearBand only the instruction is spoken.
func (a *Announcer) AnnounceInstruction(step route.Step, index int, distance float64) {
	if !a.Enabled() || index == a.lastAnnounced {
		return
	}

	instruction := CleanInstruction(step.Instruction)
	switch {
	case distance <= NearBand:
		a.say(instruction)
	case distance <= FarBand:
		a.say(a.getf(msgInstructionAhead, int(math.Round(distance)), instruction))
	default:
		return
	}
	a.lastAnnounced = index
}

// AnnounceRerouting announces that a new route is being calculated.
func (a *Announcer) AnnounceRerouting() {
	if a.Enabled() {
		a.say(a.get(msgRerouting))
	}
}

// AnnounceNavigationStart announces the start of a navigation session.
func (a *Announcer) AnnounceNavigationStart() {
	if a.Enabled() {
		a.say(a.get(msgNavigationStarted))
	}
}

// AnnounceNavigationComplete announces the arrival at the destination.
func (a *Announcer) AnnounceNavigationComplete() {
	if a.Enabled() {
		a.say(a.get(msgArrived))
	}
}

// Reset forgets the last announced step so that every step can be announced again.
func (a *Announcer) Reset() {
	a.lastAnnounced = -1
}

// SetEnabled turns announcements on or off. Disabling does not forget the last announced step.
func (a *Announcer) SetEnabled(enabled bool) {
	a.enabled.Store(enabled)
}

// Enabled reports whether announcements are turned on.
func (a *Announcer) Enabled() bool {
	return a.enabled.Load()
}

// LastAnnounced returns the index of the last announced step or -1.
func (a *Announcer) LastAnnounced() int {
	return a.lastAnnounced
}

func (a *Announcer) say(text string) {
	if text == "" {
		return
	}
	a.sink.Say(text)
}

func (a *Announcer) get(msg localize.MsgID) string {
	if a.localizer == nil {
		return msg
	}
	return a.localizer.Get(msg)
}

func (a *Announcer) getf(msg localize.MsgID, vars ...any) string {
	if a.localizer == nil {
		return fmt.Sprintf(msg, vars...)
	}
	return a.localizer.Getf(msg, vars...)
}

// CleanInstruction removes markup tags from a routing instruction, replaces non-breaking space
// entities with plain spaces and trims surrounding whitespace. Applying it twice yields the same
// result as applying it once.
func CleanInstruction(instruction string) string {
	cleaned := markupTag.ReplaceAllString(instruction, "")
	cleaned = strings.ReplaceAll(cleaned, "&nbsp;", " ")
	return strings.TrimSpace(cleaned)
}
