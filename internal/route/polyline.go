// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package route

import (
	"fmt"

	"github.com/twpayne/go-polyline"

	"github.com/wneessen/waybar-navigation/internal/geo"
)

const (
	// PrecisionGoogle is the polyline precision used by Google and OSRM.
	PrecisionGoogle = 5
	// PrecisionValhalla is the polyline precision used by Valhalla.
	PrecisionValhalla = 6
)

// DecodePolyline decodes an encoded polyline with the given precision into a list of points.
func DecodePolyline(encoded string, precision int) ([]geo.Point, error) {
	if encoded == "" {
		return nil, nil
	}
	codec := polyline.Codec{Dim: 2, Scale: scale(precision)}
	coords, rest, err := codec.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode polyline: %w", err)
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("failed to decode polyline: %d trailing bytes", len(rest))
	}

	points := make([]geo.Point, 0, len(coords))
	for _, c := range coords {
		points = append(points, geo.Point{Lat: c[0], Lon: c[1]})
	}
	return points, nil
}

// EncodePolyline encodes a list of points with the given precision.
func EncodePolyline(points []geo.Point, precision int) string {
	coords := make([][]float64, 0, len(points))
	for _, p := range points {
		coords = append(coords, []float64{p.Lat, p.Lon})
	}
	codec := polyline.Codec{Dim: 2, Scale: scale(precision)}
	return string(codec.EncodeCoords(nil, coords))
}

func scale(precision int) float64 {
	s := 1.0
	for range precision {
		s *= 10
	}
	return s
}
