// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"strings"

	"github.com/vorlif/spreak/localize"

	"github.com/wneessen/waybar-navigation/internal/trip"
)

const (
	msgArrived   localize.MsgID = "Arrived"
	msgRerouting localize.MsgID = "Rerouting"
	msgWaiting   localize.MsgID = "Waiting for GPS fix"
	msgNoRoute   localize.MsgID = "No active route"
)

// i18nVars maps the lowercase keys accepted by the loc template function to message IDs.
var i18nVars = map[string]localize.MsgID{
	"next":           "Next",
	"remaining":      "Remaining",
	"arrival":        "Arrival",
	"current street": "Current street",
	"voice guidance": "Voice guidance",
	"on":             "on",
	"off":            "off",
	"speed":          "Speed",
	"accuracy":       "Accuracy",
	"arrived":        msgArrived,
	"rerouting":      msgRerouting,
}

// StateIcons maps the session states to the icon shown while no maneuver is active.
var StateIcons = map[trip.State]string{
	trip.StateIdle:       "📡",
	trip.StateNavigating: "🧭",
	trip.StateRerouting:  "🔄",
	trip.StateArrived:    "🏁",
}

// maneuverIcons maps maneuver keywords to icons. The keyword found first in an instruction
// wins; on a tie the earlier entry wins.
var maneuverIcons = []struct {
	keyword string
	icon    string
}{
	{"u-turn", "↩"},
	{"uturn", "↩"},
	{"roundabout", "⟳"},
	{"rotary", "⟳"},
	{"arrive", "🏁"},
	{"destination", "🏁"},
	{"slight left", "↖"},
	{"keep left", "↖"},
	{"slight right", "↗"},
	{"keep right", "↗"},
	{"left", "←"},
	{"right", "→"},
	{"merge", "⤨"},
	{"ramp", "⤴"},
	{"exit", "⤴"},
}

// ManeuverIcon returns an arrow for the maneuver described by an instruction. Instructions
// without a known maneuver get a straight arrow.
func ManeuverIcon(instruction string) string {
	lower := strings.ToLower(instruction)
	icon, first := "↑", -1
	for _, entry := range maneuverIcons {
		idx := strings.Index(lower, entry.keyword)
		if idx >= 0 && (first < 0 || idx < first) {
			icon, first = entry.icon, idx
		}
	}
	return icon
}
