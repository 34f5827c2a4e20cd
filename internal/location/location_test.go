// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package location

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/wneessen/waybar-navigation/internal/geo"
	"github.com/wneessen/waybar-navigation/internal/logger"
)

var testPoint = geo.Point{Lat: 52.520008, Lon: 13.404954}

func testBus(maxAccuracy float64) *Bus {
	return NewBus(logger.NewLogger(slog.LevelDebug, io.Discard), maxAccuracy)
}

func TestFix_BetterThan(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		fix  Fix
		prev Fix
		want bool
	}{
		{"empty previous fix", Fix{Accuracy: 50, At: now}, Fix{}, true},
		{"more accurate", Fix{Accuracy: 5, At: now}, Fix{Source: "a", Accuracy: 10, At: now}, true},
		{"less accurate", Fix{Accuracy: 15, At: now}, Fix{Source: "a", Accuracy: 10, At: now}, false},
		{"equally accurate", Fix{Accuracy: 10, At: now}, Fix{Source: "a", Accuracy: 10, At: now}, false},
		{"older but more accurate", Fix{Accuracy: 1, At: now.Add(-time.Second)}, Fix{Source: "a", Accuracy: 10, At: now}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.fix.BetterThan(tc.prev); got != tc.want {
				t.Errorf("expected BetterThan to return %t, got %t", tc.want, got)
			}
		})
	}
}

func TestFix_IsExpired(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		fix := Fix{At: time.Now(), TTL: time.Second * 10}
		if fix.IsExpired() {
			t.Fatal("expected fresh fix not to be expired")
		}
		time.Sleep(time.Second * 11)
		if !fix.IsExpired() {
			t.Error("expected fix to be expired after its TTL")
		}
		fix.TTL = 0
		if fix.IsExpired() {
			t.Error("expected fix without TTL never to expire")
		}
	})
}

func TestBus_Publish(t *testing.T) {
	t.Run("invalid fixes are dropped", func(t *testing.T) {
		tests := []struct {
			name string
			fix  Fix
		}{
			{"zero accuracy", Fix{Point: testPoint, Source: "gpsd"}},
			{"negative accuracy", Fix{Point: testPoint, Accuracy: -1, Source: "gpsd"}},
			{"latitude out of range", Fix{Point: geo.Point{Lat: 91, Lon: 13}, Accuracy: 5, Source: "gpsd"}},
			{"longitude out of range", Fix{Point: geo.Point{Lat: 52, Lon: 181}, Accuracy: 5, Source: "gpsd"}},
			{"worse than max accuracy", Fix{Point: testPoint, Accuracy: 150, Source: "geoclue"}},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				bus := testBus(100)
				if bus.Publish(tc.fix) {
					t.Fatal("expected fix to be dropped")
				}
				if _, ok := bus.Best(); ok {
					t.Error("expected no best fix")
				}
			})
		}
	})
	t.Run("max accuracy of zero accepts everything", func(t *testing.T) {
		bus := testBus(0)
		if !bus.Publish(Fix{Point: testPoint, Accuracy: 5000, Source: "geoclue"}) {
			t.Error("expected fix to be accepted")
		}
	})
	t.Run("missing timestamp is set", func(t *testing.T) {
		bus := testBus(100)
		bus.Publish(Fix{Point: testPoint, Accuracy: 5, Source: "gpsd"})
		best, ok := bus.Best()
		if !ok {
			t.Fatal("expected a best fix")
		}
		if best.At.IsZero() {
			t.Error("expected timestamp to be set")
		}
	})
	t.Run("source arbitration", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			bus := testBus(100)
			gpsdFix := Fix{Point: testPoint, Accuracy: 5, Source: "gpsd", TTL: time.Second * 10}
			if !bus.Publish(gpsdFix) {
				t.Fatal("expected first fix to be accepted")
			}

			geoclueFix := Fix{Point: testPoint, Accuracy: 40, Source: "geoclue", TTL: time.Second * 30}
			if bus.Publish(geoclueFix) {
				t.Error("expected less accurate source to be rejected")
			}

			gpsdFix.Accuracy = 25
			if !bus.Publish(gpsdFix) {
				t.Error("expected the current source to always be accepted")
			}

			time.Sleep(time.Second * 11)
			if _, ok := bus.Best(); ok {
				t.Error("expected best fix to be expired")
			}
			if !bus.Publish(geoclueFix) {
				t.Error("expected other source to take over after expiry")
			}
			best, _ := bus.Best()
			if best.Source != "geoclue" {
				t.Errorf("expected best source to be geoclue, got %s", best.Source)
			}

			gpsdFix.Accuracy = 5
			gpsdFix.At = time.Time{}
			if !bus.Publish(gpsdFix) {
				t.Error("expected more accurate source to take over")
			}
		})
	})
}

func TestBus_Subscribe(t *testing.T) {
	t.Run("subscribers receive accepted fixes", func(t *testing.T) {
		bus := testBus(100)
		first, unsubFirst := bus.Subscribe(4)
		defer unsubFirst()
		second, unsubSecond := bus.Subscribe(4)
		defer unsubSecond()

		bus.Publish(Fix{Point: testPoint, Accuracy: 5, Source: "gpsd"})
		for _, ch := range []<-chan Fix{first, second} {
			select {
			case fix := <-ch:
				if fix.Point != testPoint {
					t.Errorf("expected point %s, got %s", testPoint, fix.Point)
				}
			default:
				t.Error("expected subscriber to receive the fix")
			}
		}
	})
	t.Run("late subscribers receive the current fix", func(t *testing.T) {
		bus := testBus(100)
		bus.Publish(Fix{Point: testPoint, Accuracy: 5, Source: "gpsd"})
		ch, unsub := bus.Subscribe(1)
		defer unsub()
		select {
		case <-ch:
		default:
			t.Error("expected current fix to be delivered on subscribe")
		}
	})
	t.Run("full subscribers do not block publishing", func(t *testing.T) {
		bus := testBus(100)
		ch, unsub := bus.Subscribe(1)
		defer unsub()
		for i := range 5 {
			bus.Publish(Fix{Point: testPoint, Accuracy: float64(10 - i), Source: "gpsd"})
		}
		if len(ch) != 1 {
			t.Errorf("expected one buffered fix, got %d", len(ch))
		}
	})
	t.Run("unsubscribe closes the channel", func(t *testing.T) {
		bus := testBus(100)
		ch, unsub := bus.Subscribe(1)
		unsub()
		unsub()
		if _, ok := <-ch; ok {
			t.Error("expected channel to be closed")
		}
		bus.Publish(Fix{Point: testPoint, Accuracy: 5, Source: "gpsd"})
	})
}

type testProvider struct {
	name   string
	calls  atomic.Int32
	lookup func(ctx context.Context, call int32) <-chan Fix
}

func (p *testProvider) Name() string { return p.name }

func (p *testProvider) LookupStream(ctx context.Context) <-chan Fix {
	return p.lookup(ctx, p.calls.Add(1))
}

func TestOrchestrator_Track(t *testing.T) {
	t.Run("panicking and closing providers are restarted", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			provider := &testProvider{name: "test"}
			provider.lookup = func(ctx context.Context, call int32) <-chan Fix {
				switch call {
				case 1:
					panic("intentionally panicking")
				case 2:
					return nil
				}
				out := make(chan Fix, 1)
				out <- Fix{Point: testPoint, Accuracy: float64(call)}
				close(out)
				return out
			}

			bus := testBus(100)
			fixes, unsub := bus.Subscribe(4)
			defer unsub()

			done := make(chan struct{})
			go func() {
				bus.NewOrchestrator([]Provider{provider}).Track(ctx)
				close(done)
			}()

			var fix Fix
			select {
			case fix = <-fixes:
			case <-time.After(time.Minute):
				t.Fatal("expected a fix from the provider")
			}
			if fix.Source != "test" {
				t.Errorf("expected source to default to the provider name, got %q", fix.Source)
			}
			if fix.Accuracy != 3 {
				t.Errorf("expected fix of the third lookup, got accuracy %f", fix.Accuracy)
			}

			cancel()
			<-done
		})
	})
}

func TestNextBackoff(t *testing.T) {
	tests := []struct {
		in, want time.Duration
	}{
		{time.Second, time.Second * 2},
		{time.Second * 8, time.Second * 16},
		{time.Second * 16, maxBackoff},
		{maxBackoff, maxBackoff},
	}
	for _, tc := range tests {
		if got := nextBackoff(tc.in); got != tc.want {
			t.Errorf("expected backoff %s after %s, got %s", tc.want, tc.in, got)
		}
	}
}
