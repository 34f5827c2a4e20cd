// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package gpspoll

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/wneessen/waybar-navigation/internal/vartype"
)

const (
	fallbackAccuracy3DFix = 10  // ~10 m typical consumer GPS in open sky
	fallbackAccuracy2DFix = 25  // worse than 3D, but still accurate enough
	fallbackAccuracyNoFix = 1e6 // effectively unusable
	watchTimeout          = time.Second * 2
)

// Client is a minimal GPSd client
type Client struct {
	Addr string
}

// Fix represents a single GPS fix from gpsd. Track is the course over ground in degrees from
// true north, Speed is the speed over ground in meters per second. Both are unset if gpsd
// did not report them.
type Fix struct {
	Lat   float64
	Lon   float64
	Alt   float64
	Acc   float64
	Mode  int
	Track vartype.VarFloat64
	Speed vartype.VarFloat64
}

// tpvReport matches the subset of gpsd's TPV report we care about.
type tpvReport struct {
	Class string   `json:"class"`
	Lat   float64  `json:"lat"`
	Lon   float64  `json:"lon"`
	Alt   float64  `json:"alt"`
	Mode  int      `json:"mode"`
	Epx   float64  `json:"epx"`
	Epy   float64  `json:"epy"`
	Eph   float64  `json:"eph"`
	Epv   float64  `json:"epv"`
	Track *float64 `json:"track"`
	Speed *float64 `json:"speed"`
}

// New constructs a new Client for the given gpsd address in host:port notation.
func New(addr string) *Client {
	return &Client{Addr: addr}
}

// Poll connects to gpsd, enables WATCH mode and returns the first TPV report it receives. The
// connection is closed before returning.
func (c *Client) Poll(ctx context.Context) (Fix, error) {
	var zero Fix

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return zero, fmt.Errorf("gpspoll: dial gpsd: %w", err)
	}
	defer func() {
		_ = conn.Close()
	}()

	// Respect context deadline if present, otherwise we add a safety net so we don't hang
	// forever if ctx has no deadline.
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(watchTimeout))
	}

	// Request a WATCH.
	if _, err = fmt.Fprint(conn, `?WATCH={"enable":true,"json":true}`+"\n"); err != nil {
		return zero, fmt.Errorf("gpspoll: write POLL: %w", err)
	}

	// Wait for a TPV response or timeout.
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var resp tpvReport

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if err = json.Unmarshal(line, &resp); err != nil {
			continue
		}
		if resp.Class != "TPV" {
			continue
		}

		fix := Fix{
			Lat:  resp.Lat,
			Lon:  resp.Lon,
			Alt:  resp.Alt,
			Acc:  HorizontalAccuracy(resp.Mode, resp.Eph, resp.Epx, resp.Epy),
			Mode: resp.Mode,
		}
		if resp.Track != nil {
			fix.Track.Set(*resp.Track)
		}
		if resp.Speed != nil {
			fix.Speed.Set(*resp.Speed)
		}
		return fix, nil
	}

	if err = scanner.Err(); err != nil {
		return zero, fmt.Errorf("failed to scan GPSd response: %w", err)
	}

	return zero, fmt.Errorf("no TPV response received from GPSd")
}

// Has2DFix reports whether the fix has at least a 2D fix.
func (f Fix) Has2DFix() bool {
	return f.Mode >= 2
}

// HorizontalAccuracy estimates the horizontal accuracy in meters from the error estimates of a
// TPV report. Without any estimate, a typical value for the fix mode is returned.
func HorizontalAccuracy(mode int, eph, epx, epy float64) float64 {
	switch {
	case eph > 0:
		return eph
	case epx > 0 && epy > 0:
		// sqrt(epx² + epy²)
		return math.Hypot(epx, epy)
	default:
		return horizontalAccuracyFallback(mode)
	}
}

func horizontalAccuracyFallback(mode int) float64 {
	switch mode {
	case 3:
		return fallbackAccuracy3DFix
	case 2:
		return fallbackAccuracy2DFix
	default:
		return fallbackAccuracyNoFix
	}
}
