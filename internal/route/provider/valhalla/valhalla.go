// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package valhalla implements a route provider backed by the Valhalla routing engine.
package valhalla

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/wneessen/waybar-navigation/internal/geo"
	"github.com/wneessen/waybar-navigation/internal/http"
	"github.com/wneessen/waybar-navigation/internal/route"
)

const (
	DefaultBaseURL = "https://valhalla1.openstreetmap.de"
	APITimeout     = time.Second * 15
	name           = "valhalla"

	// kilometers is the unit Valhalla reports lengths in.
	kilometers = 1000.0
)

// noRouteErrors are the Valhalla error codes for unroutable locations.
var noRouteErrors = map[int]bool{
	170: true, // locations are in unconnected regions
	171: true, // no suitable edges near location
	442: true, // no path could be found for input
}

type Valhalla struct {
	http    *http.Client
	baseURL string
	costing string
	lang    language.Tag
	timeout time.Duration
}

type location struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Type string  `json:"type"`
}

type request struct {
	Locations        []location        `json:"locations"`
	Costing          string            `json:"costing"`
	Units            string            `json:"units"`
	DirectionsOption map[string]string `json:"directions_options,omitempty"`
}

type Maneuver struct {
	Type            int      `json:"type"`
	Instruction     string   `json:"instruction"`
	Length          float64  `json:"length"`
	Time            float64  `json:"time"`
	BeginShapeIndex int      `json:"begin_shape_index"`
	EndShapeIndex   int      `json:"end_shape_index"`
	StreetNames     []string `json:"street_names"`
}

type summary struct {
	Length float64 `json:"length"`
	Time   float64 `json:"time"`
}

type APIResult struct {
	ErrorCode int    `json:"error_code"`
	Error     string `json:"error"`
	Trip      struct {
		Status        int     `json:"status"`
		StatusMessage string  `json:"status_message"`
		Summary       summary `json:"summary"`
		Legs          []struct {
			Maneuvers []Maneuver `json:"maneuvers"`
			Shape     string     `json:"shape"`
			Summary   summary    `json:"summary"`
		} `json:"legs"`
	} `json:"trip"`
}

// New returns a Valhalla provider. The profile uses the same names as OSRM (driving, cycling,
// walking) and is mapped to a Valhalla costing model.
func New(client *http.Client, baseURL, profile string, lang language.Tag, timeout time.Duration) *Valhalla {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = APITimeout
	}
	return &Valhalla{
		http:    client,
		baseURL: strings.TrimRight(baseURL, "/"),
		costing: Costing(profile),
		lang:    lang,
		timeout: timeout,
	}
}

func (v *Valhalla) Name() string {
	return name
}

// Route requests a route from origin to destination. Maneuver positions are taken from the route
// shape via the begin and end shape indices.
func (v *Valhalla) Route(ctx context.Context, origin, destination geo.Point) (*route.Data, error) {
	var result APIResult

	payload := request{
		Locations: []location{
			{Lat: origin.Lat, Lon: origin.Lon, Type: "break"},
			{Lat: destination.Lat, Lon: destination.Lon, Type: "break"},
		},
		Costing: v.costing,
		Units:   "kilometers",
	}
	if v.lang != language.Und {
		payload.DirectionsOption = map[string]string{"language": v.lang.String()}
	}

	status, err := v.http.PostJSON(ctx, v.baseURL+"/route", &result, payload, v.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch route from Valhalla API: %w", err)
	}
	if result.ErrorCode != 0 {
		if noRouteErrors[result.ErrorCode] {
			return nil, fmt.Errorf("%w: %s", route.ErrNoRoute, result.Error)
		}
		return nil, fmt.Errorf("valhalla API error %d (HTTP %d): %s", result.ErrorCode, status, result.Error)
	}
	if len(result.Trip.Legs) == 0 {
		return nil, route.ErrNoRoute
	}

	leg := result.Trip.Legs[0]
	shape, err := route.DecodePolyline(leg.Shape, route.PrecisionValhalla)
	if err != nil {
		return nil, err
	}

	data := &route.Data{
		Coordinates: shape,
		Distance:    result.Trip.Summary.Length * kilometers,
		Duration:    result.Trip.Summary.Time,
		Steps:       make([]route.Step, 0, len(leg.Maneuvers)),
	}
	for i, m := range leg.Maneuvers {
		if m.BeginShapeIndex < 0 || m.BeginShapeIndex >= len(shape) ||
			m.EndShapeIndex < 0 || m.EndShapeIndex >= len(shape) {
			return nil, fmt.Errorf("maneuver %d: shape index out of range", i)
		}
		data.Steps = append(data.Steps, route.Step{
			Instruction: m.Instruction,
			Distance:    m.Length * kilometers,
			Duration:    m.Time,
			Start:       shape[m.BeginShapeIndex],
			End:         shape[m.EndShapeIndex],
		})
	}
	data.Summarize()

	return data, nil
}

// Costing maps a routing profile name to the Valhalla costing model.
func Costing(profile string) string {
	switch strings.ToLower(profile) {
	case "cycling", "bike", "bicycle":
		return "bicycle"
	case "walking", "foot", "pedestrian":
		return "pedestrian"
	case "truck":
		return "truck"
	default:
		return "auto"
	}
}
