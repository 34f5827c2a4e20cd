// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package gpsd

import (
	"context"
	"log/slog"
	"time"

	"github.com/stratoberry/go-gpsd"

	"github.com/wneessen/waybar-navigation/internal/geo"
	"github.com/wneessen/waybar-navigation/internal/gpspoll"
	"github.com/wneessen/waybar-navigation/internal/location"
	"github.com/wneessen/waybar-navigation/internal/logger"
)

const (
	name = "gpsd"

	// ModeWatch streams TPV reports over a single gpsd session.
	ModeWatch = "watch"
	// ModePoll opens a short gpsd session per interval and takes the first TPV report.
	ModePoll = "poll"

	// minCourseSpeed is the speed in m/s below which the course over ground is just noise.
	minCourseSpeed = 0.5
	ttl            = time.Second * 10
	pollTimeout    = time.Second * 5
)

// Provider reads location fixes from a gpsd daemon.
type Provider struct {
	logger   *logger.Logger
	addr     string
	mode     string
	period   time.Duration
	ttl      time.Duration
	locateFn func(ctx context.Context) (gpspoll.Fix, error)
}

// New returns a gpsd Provider for the daemon at addr. In ModePoll, period is the poll interval;
// in ModeWatch, it is the delay before reconnecting to a lost session.
func New(log *logger.Logger, addr, mode string, period time.Duration) *Provider {
	if mode != ModePoll {
		mode = ModeWatch
	}
	provider := &Provider{
		logger: log,
		addr:   addr,
		mode:   mode,
		period: period,
		ttl:    ttl,
	}
	client := gpspoll.New(addr)
	provider.locateFn = func(ctx context.Context) (gpspoll.Fix, error) {
		ctxPoll, cancel := context.WithTimeout(ctx, pollTimeout)
		defer cancel()
		return client.Poll(ctxPoll)
	}
	return provider
}

func (p *Provider) Name() string {
	return name
}

func (p *Provider) LookupStream(ctx context.Context) <-chan location.Fix {
	out := make(chan location.Fix)
	go func() {
		defer close(out)
		if p.mode == ModePoll {
			p.poll(ctx, out)
			return
		}
		p.watch(ctx, out)
	}()
	return out
}

// poll queries gpsd once per period and emits every fix with at least a 2D position.
func (p *Provider) poll(ctx context.Context, out chan<- location.Fix) {
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	for {
		fix, err := p.locateFn(ctx)
		switch {
		case err != nil:
			p.logger.Debug("failed to poll gpsd", slog.String("address", p.addr), logger.Err(err))
		case !fix.Has2DFix():
			p.logger.Debug("gpsd has no position fix yet", slog.Int("mode", fix.Mode))
		default:
			result := p.createResult(fix.Lat, fix.Lon, fix.Acc)
			result.Speed = fix.Speed
			if fix.Speed.Value() >= minCourseSpeed {
				result.Heading = fix.Track
			}
			select {
			case <-ctx.Done():
				return
			case out <- result:
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// watch keeps a gpsd session open and emits a fix for every TPV report with at least a 2D
// position. A lost session is re-established after the configured period.
func (p *Provider) watch(ctx context.Context, out chan<- location.Fix) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		session, err := gpsd.Dial(p.addr)
		if err != nil {
			p.logger.Debug("failed to connect to gpsd", slog.String("address", p.addr), logger.Err(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.period):
				continue
			}
		}

		session.AddFilter("TPV", func(r interface{}) {
			tpv, ok := r.(*gpsd.TPVReport)
			if !ok || tpv.Mode < gpsd.Mode2D {
				return
			}

			acc := gpspoll.HorizontalAccuracy(int(tpv.Mode), 0, tpv.Epx, tpv.Epy)
			result := p.createResult(tpv.Lat, tpv.Lon, acc)
			result.Speed.Set(tpv.Speed)
			if tpv.Speed >= minCourseSpeed {
				result.Heading.Set(tpv.Track)
			}

			select {
			case <-ctx.Done():
			case out <- result:
			}
		})

		// Watch returns a channel that is closed when the session ends
		done := session.Watch()
		select {
		case <-ctx.Done():
			// go-gpsd has no Close(), the connection is torn down with the process
			return
		case <-done:
			p.logger.Debug("gpsd session ended, reconnecting", slog.Duration("delay", p.period))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.period):
		}
	}
}

func (p *Provider) createResult(lat, lon, acc float64) location.Fix {
	return location.Fix{
		Point:    geo.Point{Lat: lat, Lon: lon},
		Accuracy: acc,
		Source:   name,
		At:       time.Now(),
		TTL:      p.ttl,
	}
}
