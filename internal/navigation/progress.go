// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package navigation

import (
	"time"

	"github.com/wneessen/waybar-navigation/internal/route"
)

// Remaining returns the remaining distance in meters and the remaining travel time of a route,
// given the current step index and the distance to the end of the current step. The duration
// of the current step is pro-rated by the share of its distance that is still ahead.
func Remaining(steps []route.Step, index int, distanceToTurn float64) (float64, time.Duration) {
	if index < 0 || index >= len(steps) {
		return 0, 0
	}

	current := steps[index]
	distance := distanceToTurn
	seconds := current.Duration
	if current.Distance > 0 {
		seconds = current.Duration * min(distanceToTurn/current.Distance, 1)
	}
	for _, step := range steps[index+1:] {
		distance += step.Distance
		seconds += step.Duration
	}

	return distance, time.Duration(seconds * float64(time.Second))
}
