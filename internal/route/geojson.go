// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package route

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// GeoJSON returns the route as a GeoJSON feature collection: one LineString for the route
// geometry followed by one Point per maneuver.
func (d *Data) GeoJSON() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	line := make(orb.LineString, 0, len(d.Coordinates))
	for _, c := range d.Coordinates {
		line = append(line, orb.Point{c.Lon, c.Lat})
	}
	if len(line) > 0 {
		feature := geojson.NewFeature(line)
		feature.Properties["distance"] = d.Distance
		feature.Properties["duration"] = d.Duration
		fc.Append(feature)
	}

	for i, step := range d.Steps {
		feature := geojson.NewFeature(orb.Point{step.Start.Lon, step.Start.Lat})
		feature.Properties["index"] = i
		feature.Properties["instruction"] = step.Instruction
		feature.Properties["distance"] = step.Distance
		feature.Properties["duration"] = step.Duration
		fc.Append(feature)
	}

	return fc
}

// WriteGeoJSON writes the GeoJSON representation of the route to the given file.
func (d *Data) WriteGeoJSON(path string) error {
	data, err := d.GeoJSON().MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode route as GeoJSON: %w", err)
	}
	if err = os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write GeoJSON file: %w", err)
	}
	return nil
}
