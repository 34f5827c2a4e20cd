// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package osrm implements a route provider backed by the OSRM HTTP API.
package osrm

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wneessen/waybar-navigation/internal/geo"
	"github.com/wneessen/waybar-navigation/internal/http"
	"github.com/wneessen/waybar-navigation/internal/route"
)

const (
	DefaultBaseURL = "https://router.project-osrm.org"
	DefaultProfile = "driving"
	APITimeout     = time.Second * 15
	name           = "osrm"
)

type OSRM struct {
	http    *http.Client
	baseURL string
	profile string
	timeout time.Duration
}

type Maneuver struct {
	Type     string    `json:"type"`
	Modifier string    `json:"modifier"`
	Location []float64 `json:"location"`
	Exit     int       `json:"exit"`
}

type Step struct {
	Distance float64  `json:"distance"`
	Duration float64  `json:"duration"`
	Name     string   `json:"name"`
	Ref      string   `json:"ref"`
	Maneuver Maneuver `json:"maneuver"`
}

type APIResult struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Geometry string  `json:"geometry"`
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Legs     []struct {
			Steps []Step `json:"steps"`
		} `json:"legs"`
	} `json:"routes"`
}

func New(client *http.Client, baseURL, profile string, timeout time.Duration) *OSRM {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if profile == "" {
		profile = DefaultProfile
	}
	if timeout <= 0 {
		timeout = APITimeout
	}
	return &OSRM{
		http:    client,
		baseURL: strings.TrimRight(baseURL, "/"),
		profile: profile,
		timeout: timeout,
	}
}

func (o *OSRM) Name() string {
	return name
}

// Route requests a route from origin to destination with turn-by-turn steps.
func (o *OSRM) Route(ctx context.Context, origin, destination geo.Point) (*route.Data, error) {
	var result APIResult

	endpoint := fmt.Sprintf("%s/route/v1/%s/%s;%s", o.baseURL, url.PathEscape(o.profile),
		lonLat(origin), lonLat(destination))
	query := url.Values{}
	query.Set("steps", "true")
	query.Set("geometries", "polyline")
	query.Set("overview", "full")

	status, err := o.http.GetWithTimeout(ctx, endpoint, &result, query, nil, o.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch route from OSRM API: %w", err)
	}
	switch result.Code {
	case "Ok":
	case "NoRoute", "NoSegment":
		return nil, fmt.Errorf("%w: %s", route.ErrNoRoute, result.Message)
	default:
		return nil, fmt.Errorf("OSRM API error (HTTP %d): %s: %s", status, result.Code, result.Message)
	}
	if len(result.Routes) == 0 || len(result.Routes[0].Legs) == 0 {
		return nil, route.ErrNoRoute
	}

	apiRoute := result.Routes[0]
	coordinates, err := route.DecodePolyline(apiRoute.Geometry, route.PrecisionGoogle)
	if err != nil {
		return nil, err
	}

	steps := apiRoute.Legs[0].Steps
	data := &route.Data{
		Coordinates: coordinates,
		Distance:    apiRoute.Distance,
		Duration:    apiRoute.Duration,
		Steps:       make([]route.Step, 0, len(steps)),
	}
	for i, step := range steps {
		start, err := maneuverPoint(step.Maneuver)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		end := start
		if i+1 < len(steps) {
			if end, err = maneuverPoint(steps[i+1].Maneuver); err != nil {
				return nil, fmt.Errorf("step %d: %w", i+1, err)
			}
		}
		data.Steps = append(data.Steps, route.Step{
			Instruction: Instruction(step),
			Distance:    step.Distance,
			Duration:    step.Duration,
			Start:       start,
			End:         end,
		})
	}
	data.Summarize()

	return data, nil
}

// Instruction composes a readable instruction from the maneuver type, its modifier and the name
// of the road.
func Instruction(step Step) string {
	m := step.Maneuver
	road := step.Name
	if road == "" {
		road = step.Ref
	}

	var text string
	switch m.Type {
	case "depart":
		text = "Depart"
		if m.Modifier != "" && m.Modifier != "straight" {
			text = "Depart and turn " + m.Modifier
		}
		if road != "" {
			return text + " on " + road
		}
		return text
	case "arrive":
		switch m.Modifier {
		case "left", "sharp left", "slight left":
			return "You have arrived, your destination is on the left"
		case "right", "sharp right", "slight right":
			return "You have arrived, your destination is on the right"
		}
		return "You have arrived at your destination"
	case "turn", "end of road":
		switch m.Modifier {
		case "uturn":
			text = "Make a U-turn"
		case "straight":
			text = "Go straight"
		default:
			text = "Turn " + m.Modifier
		}
		if m.Type == "end of road" {
			text += " at the end of the road"
		}
	case "continue", "new name":
		text = "Continue"
		if m.Modifier == "uturn" {
			text = "Make a U-turn"
		} else if m.Modifier != "" && m.Modifier != "straight" {
			text = "Continue " + m.Modifier
		}
	case "merge":
		text = "Merge " + m.Modifier
	case "on ramp":
		text = "Take the ramp on the " + m.Modifier
	case "off ramp":
		text = "Take the exit on the " + m.Modifier
	case "fork":
		text = "Keep " + m.Modifier + " at the fork"
	case "roundabout", "rotary":
		text = "Enter the roundabout"
		if m.Exit > 0 {
			text += " and take the " + ordinal(m.Exit) + " exit"
		}
	case "exit roundabout", "exit rotary":
		text = "Exit the roundabout"
	default:
		text = "Continue"
	}

	text = strings.Join(strings.Fields(text), " ")
	if road != "" {
		text += " onto " + road
	}
	return text
}

func maneuverPoint(m Maneuver) (geo.Point, error) {
	if len(m.Location) != 2 {
		return geo.Point{}, fmt.Errorf("invalid maneuver location: %v", m.Location)
	}
	return geo.Point{Lat: m.Location[1], Lon: m.Location[0]}, nil
}

func lonLat(p geo.Point) string {
	return strconv.FormatFloat(p.Lon, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lat, 'f', 6, 64)
}

func ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}
