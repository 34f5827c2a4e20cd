// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package geocode resolves addresses to coordinates and coordinates to addresses.
package geocode

import (
	"context"
	"errors"
	"strings"

	"github.com/wneessen/waybar-navigation/internal/geo"
)

// ErrNotFound is returned by Search if no coordinates match the query.
var ErrNotFound = errors.New("no coordinates found for address")

type Address struct {
	AddressFound bool
	CacheHit     bool
	Location     geo.Point
	DisplayName  string
	Country      string
	State        string
	Municipality string
	CityDistrict string
	Postcode     string
	City         string
	Suburb       string
	Street       string
	HouseNumber  string
}

// StreetLine returns the street with house number, or the display name if the street is unknown.
func (a Address) StreetLine() string {
	if a.Street == "" {
		return a.DisplayName
	}
	return strings.TrimSpace(a.Street + " " + a.HouseNumber)
}

type Geocoder interface {
	Name() string
	Search(ctx context.Context, query string) (geo.Point, error)
	Reverse(ctx context.Context, location geo.Point) (Address, error)
}

// Resolve returns the point for value. Values of the form "lat,lon" are parsed directly, all
// other values are looked up with the geocoder.
func Resolve(ctx context.Context, coder Geocoder, value string) (geo.Point, error) {
	if point, err := geo.ParsePoint(value); err == nil {
		return point, nil
	}
	if coder == nil {
		return geo.Point{}, errors.New("address lookup requires a geocoder")
	}
	return coder.Search(ctx, value)
}
