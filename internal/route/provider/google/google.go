// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package google implements a route provider backed by the Google Directions API.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/text/language"

	"github.com/wneessen/waybar-navigation/internal/geo"
	"github.com/wneessen/waybar-navigation/internal/guidance"
	"github.com/wneessen/waybar-navigation/internal/http"
	"github.com/wneessen/waybar-navigation/internal/route"
)

const (
	APIEndpoint = "https://maps.googleapis.com/maps/api/directions/json"
	APITimeout  = time.Second * 15
	name        = "google"
)

// ErrAPIKeyRequired is returned if the provider is created without an API key.
var ErrAPIKeyRequired = errors.New("google directions API requires an API key")

type Google struct {
	http    *http.Client
	apiKey  string
	lang    language.Tag
	timeout time.Duration
}

type value struct {
	Value float64 `json:"value"`
}

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (l latLng) point() geo.Point {
	return geo.Point{Lat: l.Lat, Lon: l.Lng}
}

type APIResult struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Routes       []struct {
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
		Legs []struct {
			Distance value `json:"distance"`
			Duration value `json:"duration"`
			Steps    []struct {
				HTMLInstructions string `json:"html_instructions"`
				Distance         value  `json:"distance"`
				Duration         value  `json:"duration"`
				StartLocation    latLng `json:"start_location"`
				EndLocation      latLng `json:"end_location"`
			} `json:"steps"`
		} `json:"legs"`
	} `json:"routes"`
}

func New(client *http.Client, apiKey string, lang language.Tag, timeout time.Duration) (*Google, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}
	if timeout <= 0 {
		timeout = APITimeout
	}
	return &Google{
		http:    client,
		apiKey:  apiKey,
		lang:    lang,
		timeout: timeout,
	}, nil
}

func (g *Google) Name() string {
	return name
}

// Route requests driving directions from origin to destination. Only the first leg of the first
// route is used.
func (g *Google) Route(ctx context.Context, origin, destination geo.Point) (*route.Data, error) {
	var result APIResult

	query := url.Values{}
	query.Set("origin", origin.String())
	query.Set("destination", destination.String())
	query.Set("mode", "driving")
	query.Set("units", "metric")
	query.Set("language", g.lang.String())
	query.Set("key", g.apiKey)

	if _, err := g.http.GetWithTimeout(ctx, APIEndpoint, &result, query, nil, g.timeout); err != nil {
		return nil, fmt.Errorf("failed to fetch directions from Google API: %w", err)
	}

	switch result.Status {
	case "OK":
	case "ZERO_RESULTS", "NOT_FOUND":
		return nil, fmt.Errorf("%w: directions API status %s", route.ErrNoRoute, result.Status)
	default:
		if result.ErrorMessage != "" {
			return nil, fmt.Errorf("directions API error: %s: %s", result.Status, result.ErrorMessage)
		}
		return nil, fmt.Errorf("directions API error: %s", result.Status)
	}
	if len(result.Routes) == 0 || len(result.Routes[0].Legs) == 0 {
		return nil, route.ErrNoRoute
	}

	apiRoute := result.Routes[0]
	leg := apiRoute.Legs[0]
	coordinates, err := route.DecodePolyline(apiRoute.OverviewPolyline.Points, route.PrecisionGoogle)
	if err != nil {
		return nil, err
	}

	data := &route.Data{
		Coordinates: coordinates,
		Distance:    leg.Distance.Value,
		Duration:    leg.Duration.Value,
		Steps:       make([]route.Step, 0, len(leg.Steps)),
	}
	for _, step := range leg.Steps {
		data.Steps = append(data.Steps, route.Step{
			Instruction: guidance.CleanInstruction(step.HTMLInstructions),
			Distance:    step.Distance.Value,
			Duration:    step.Duration.Value,
			Start:       step.StartLocation.point(),
			End:         step.EndLocation.point(),
		})
	}
	data.Summarize()

	return data, nil
}
