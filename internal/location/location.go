// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package location fans in the location fixes of several providers and hands the best one to
// its subscribers.
package location

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wneessen/waybar-navigation/internal/geo"
	"github.com/wneessen/waybar-navigation/internal/logger"
	"github.com/wneessen/waybar-navigation/internal/vartype"
)

const (
	accuracyEpsilon = 1e-6
	initialBackoff  = time.Second
	maxBackoff      = 30 * time.Second
)

// Provider defines an interface for location sources. LookupStream returns a channel of fixes
// that is closed once the source gives up or the context is canceled.
type Provider interface {
	Name() string
	LookupStream(ctx context.Context) <-chan Fix
}

// Fix is a single location sample. Heading (degrees clockwise from north) and Speed (meters per
// second) are optional. Accuracy is the horizontal accuracy in meters.
type Fix struct {
	Point    geo.Point          `json:"location"`
	Heading  vartype.VarFloat64 `json:"heading"`
	Speed    vartype.VarFloat64 `json:"speed"`
	Accuracy float64            `json:"accuracy"`
	Source   string             `json:"source"`
	At       time.Time          `json:"at"`
	TTL      time.Duration      `json:"-"`
}

// BetterThan reports whether the fix is more accurate than prev without being older.
func (f Fix) BetterThan(prev Fix) bool {
	if prev.Source == "" {
		return true
	}
	if f.At.Before(prev.At) {
		return false
	}
	return f.Accuracy < prev.Accuracy-accuracyEpsilon
}

// IsExpired checks if the fix has exceeded its time-to-live.
func (f Fix) IsExpired() bool {
	return f.TTL > 0 && time.Since(f.At) > f.TTL
}

// Bus coordinates the publishing and subscribing of location fixes between providers and
// consumers.
type Bus struct {
	mu          sync.RWMutex
	logger      *logger.Logger
	maxAccuracy float64
	best        Fix
	subscribers map[chan Fix]struct{}
}

// NewBus returns a Bus that drops every fix with an accuracy worse than maxAccuracy meters. A
// maxAccuracy of 0 disables the check.
func NewBus(log *logger.Logger, maxAccuracy float64) *Bus {
	return &Bus{
		logger:      log,
		maxAccuracy: maxAccuracy,
		subscribers: make(map[chan Fix]struct{}),
	}
}

// NewOrchestrator returns an Orchestrator that publishes the fixes of providers to the bus.
func (b *Bus) NewOrchestrator(providers []Provider) *Orchestrator {
	return &Orchestrator{
		Bus:       b,
		Providers: providers,
	}
}

// Subscribe adds a subscriber with the given buffer size, returning a fix channel and an
// unsubscribe function. A current, non-expired fix is delivered right away.
func (b *Bus) Subscribe(size int) (<-chan Fix, func()) {
	fixChan := make(chan Fix, max(size, 1))
	b.mu.Lock()
	b.subscribers[fixChan] = struct{}{}
	if b.best.Source != "" && !b.best.IsExpired() {
		fixChan <- b.best
	}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, fixChan)
			b.mu.Unlock()
			close(fixChan)
		})
	}

	return fixChan, unsub
}

// Publish offers a fix to the bus and reports whether it was accepted. A fix replaces the
// current one if there is none, if the current one expired, if it comes from the same source
// or if it is more accurate. Accepted fixes are broadcast to all subscribers without blocking.
func (b *Bus) Publish(f Fix) bool {
	if !f.Point.Valid() || f.Accuracy <= 0 {
		return false
	}
	if b.maxAccuracy > 0 && f.Accuracy > b.maxAccuracy {
		b.logger.Debug("dropping inaccurate location fix", slog.String("source", f.Source),
			slog.Float64("accuracy", f.Accuracy), slog.Float64("max_accuracy", b.maxAccuracy))
		return false
	}
	if f.At.IsZero() {
		f.At = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	prev := b.best
	if prev.Source != "" && !prev.IsExpired() && prev.Source != f.Source && !f.BetterThan(prev) {
		return false
	}
	if prev.Source != f.Source {
		b.logger.Debug("location source changed", slog.String("source", f.Source),
			slog.Float64("accuracy", f.Accuracy))
	}
	b.best = f
	b.broadcast(f)
	return true
}

func (b *Bus) broadcast(f Fix) {
	for ch := range b.subscribers {
		select {
		case ch <- f:
		default:
		}
	}
}

// Best returns the current fix if it has not expired.
func (b *Bus) Best() (Fix, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.best, b.best.Source != "" && !b.best.IsExpired()
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d *= 2; d > maxBackoff {
		return maxBackoff
	}
	return d
}
