// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package presenter renders the navigation status into the JSON output format of a waybar
// custom module.
package presenter

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/nathan-osman/go-sunrise"
	"github.com/vorlif/humanize"
	"github.com/vorlif/humanize/locale/de"
	"github.com/vorlif/spreak"

	"github.com/wneessen/waybar-navigation/internal/config"
	"github.com/wneessen/waybar-navigation/internal/geocode"
	"github.com/wneessen/waybar-navigation/internal/trip"
	"github.com/wneessen/waybar-navigation/internal/vartype"
)

const (
	OutputClass = "waybar-navigation"
	ClassNight  = "night"
	ClassMuted  = "muted"
)

// Output is a single line of waybar output.
type Output struct {
	Text    string   `json:"text"`
	Tooltip string   `json:"tooltip"`
	Alt     string   `json:"alt"`
	Class   []string `json:"class"`
}

// Context is the data the text and tooltip templates are executed with.
type Context struct {
	Icon       string
	State      trip.State
	StateText  string
	Navigating bool
	SessionID  string

	Instruction        string
	NextInstruction    string
	DistanceToNextTurn float64
	RemainingDistance  float64
	RemainingDuration  time.Duration
	ETA                time.Time

	HasFix    bool
	Latitude  float64
	Longitude float64
	Speed     vartype.VarFloat64
	Heading   vartype.VarFloat64
	Accuracy  float64
	Source    string
	Address   geocode.Address
	Street    string

	GuidanceEnabled bool
	UpdateTime      time.Time
}

type Presenter struct {
	text      *template.Template
	tooltip   *template.Template
	localizer *spreak.Localizer
	humanizer *humanize.Humanizer
}

// New parses the configured templates and verifies that they can be executed.
func New(conf *config.Config, localizer *spreak.Localizer) (*Presenter, error) {
	collection, err := humanize.New(humanize.WithLocale(de.New()))
	if err != nil {
		return nil, fmt.Errorf("failed to create humanizer: %w", err)
	}
	pres := &Presenter{
		localizer: localizer,
		humanizer: collection.CreateHumanizer(localizer.Language()),
	}

	if pres.text, err = template.New("text").Funcs(pres.templateFuncMap()).Parse(conf.Templates.Text); err != nil {
		return nil, fmt.Errorf("failed to parse text template: %w", err)
	}
	if pres.tooltip, err = template.New("tooltip").Funcs(pres.templateFuncMap()).
		Parse(conf.Templates.Tooltip); err != nil {
		return nil, fmt.Errorf("failed to parse tooltip template: %w", err)
	}

	if _, err = pres.Render(Context{}, time.Now()); err != nil {
		return nil, err
	}
	return pres, nil
}

// BuildContext creates the template context for a trip status.
func (p *Presenter) BuildContext(status trip.Status, addr geocode.Address, guidanceEnabled bool) Context {
	ctx := Context{
		State:           status.State,
		SessionID:       status.SessionID,
		Navigating:      status.State == trip.StateNavigating && status.Update.Navigating,
		Address:         addr,
		Street:          addr.StreetLine(),
		GuidanceEnabled: guidanceEnabled,
		UpdateTime:      time.Now(),
	}
	if status.Fix != nil {
		ctx.HasFix = true
		ctx.Latitude = status.Fix.Point.Lat
		ctx.Longitude = status.Fix.Point.Lon
		ctx.Speed = status.Fix.Speed
		ctx.Heading = status.Fix.Heading
		ctx.Accuracy = status.Fix.Accuracy
		ctx.Source = status.Fix.Source
		ctx.UpdateTime = status.Fix.At
	}
	if status.Step != nil {
		ctx.Instruction = status.Step.Instruction
	}
	if len(status.NextSteps) > 0 {
		ctx.NextInstruction = status.NextSteps[0].Instruction
	}
	if status.Update.DistanceToNextTurn.IsSet() {
		ctx.DistanceToNextTurn = status.Update.DistanceToNextTurn.Value()
	}
	if status.RemainingDistance.IsSet() {
		ctx.RemainingDistance = status.RemainingDistance.Value()
		ctx.RemainingDuration = status.RemainingDuration
		ctx.ETA = status.ETA
	}

	switch {
	case ctx.Navigating:
		ctx.Icon = ManeuverIcon(ctx.Instruction)
	case status.State == trip.StateArrived:
		ctx.Icon = StateIcons[trip.StateArrived]
		ctx.StateText = p.localizer.Get(msgArrived)
	case status.State == trip.StateRerouting:
		ctx.Icon = StateIcons[trip.StateRerouting]
		ctx.StateText = p.localizer.Get(msgRerouting)
	case !ctx.HasFix || status.State == trip.StateNavigating:
		ctx.Icon = StateIcons[trip.StateIdle]
		ctx.StateText = p.localizer.Get(msgWaiting)
	default:
		ctx.Icon = StateIcons[trip.StateIdle]
		ctx.StateText = p.localizer.Get(msgNoRoute)
	}

	return ctx
}

// Render executes the templates for the context. The CSS classes mark the state, the night at
// the current position and disabled voice guidance.
func (p *Presenter) Render(ctx Context, now time.Time) (Output, error) {
	textBuf := bytes.NewBuffer(nil)
	if err := p.text.Execute(textBuf, ctx); err != nil {
		return Output{}, fmt.Errorf("failed to render text template: %w", err)
	}
	tooltipBuf := bytes.NewBuffer(nil)
	if err := p.tooltip.Execute(tooltipBuf, ctx); err != nil {
		return Output{}, fmt.Errorf("failed to render tooltip template: %w", err)
	}

	state := ctx.State
	if state == "" {
		state = trip.StateIdle
	}
	output := Output{
		Text:    textBuf.String(),
		Tooltip: tooltipBuf.String(),
		Alt:     string(state),
		Class:   []string{OutputClass, string(state)},
	}
	if ctx.HasFix && IsNight(ctx.Latitude, ctx.Longitude, now) {
		output.Class = append(output.Class, ClassNight)
	}
	if !ctx.GuidanceEnabled {
		output.Class = append(output.Class, ClassMuted)
	}
	return output, nil
}

// IsNight reports whether the sun is down at the given position and time. During polar day and
// night there is no sunrise, which counts as day.
func IsNight(lat, lon float64, now time.Time) bool {
	now = now.UTC()
	rise, set := sunrise.SunriseSunset(lat, lon, now.Year(), now.Month(), now.Day())
	if rise.IsZero() || set.IsZero() {
		return false
	}
	return now.Before(rise) || now.After(set)
}
