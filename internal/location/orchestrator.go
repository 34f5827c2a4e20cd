// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package location

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wneessen/waybar-navigation/internal/logger"
)

// Orchestrator runs a set of providers and publishes their fixes through a Bus.
type Orchestrator struct {
	Bus       *Bus
	Providers []Provider
}

// Track runs every provider concurrently until the context is canceled.
func (o *Orchestrator) Track(ctx context.Context) {
	var wg sync.WaitGroup
	for _, p := range o.Providers {
		wg.Add(1)
		go func(p Provider) {
			defer wg.Done()
			o.trackProvider(ctx, p)
		}(p)
	}
	<-ctx.Done()
	wg.Wait()
}

// trackProvider restarts the stream of a provider whenever it ends, backing off exponentially
// while it keeps failing.
func (o *Orchestrator) trackProvider(ctx context.Context, p Provider) {
	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		lookupChan, err := o.safeLookup(ctx, p)
		if err != nil {
			o.Bus.logger.Warn("location provider failed to start", slog.String("provider", p.Name()),
				logger.Err(err))
			if !sleepOrDone(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}

	stream:
		for {
			select {
			case <-ctx.Done():
				return
			case f, ok := <-lookupChan:
				if !ok {
					o.Bus.logger.Debug("location provider stream ended", slog.String("provider", p.Name()),
						slog.Duration("backoff", backoff))
					if !sleepOrDone(ctx, backoff) {
						return
					}
					backoff = nextBackoff(backoff)
					break stream
				}
				if f.Source == "" {
					f.Source = p.Name()
				}
				o.Bus.Publish(f)
				backoff = initialBackoff
			}
		}
	}
}

// safeLookup invokes LookupStream and turns a panicking provider into an error.
func (o *Orchestrator) safeLookup(ctx context.Context, provider Provider) (ch <-chan Fix, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider %s panicked: %v", provider.Name(), r)
		}
	}()
	if ch = provider.LookupStream(ctx); ch == nil {
		return nil, fmt.Errorf("provider %s returned no stream", provider.Name())
	}
	return ch, nil
}
