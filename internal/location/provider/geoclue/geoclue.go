// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package geoclue implements a location provider that talks to GeoClue2 over the system D-Bus.
package geoclue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/wneessen/waybar-navigation/internal/geo"
	"github.com/wneessen/waybar-navigation/internal/location"
	"github.com/wneessen/waybar-navigation/internal/logger"
)

const (
	name = "geoclue"

	dbusDest            = "org.freedesktop.GeoClue2"
	dbusManagerPath     = "/org/freedesktop/GeoClue2/Manager"
	dbusManagerIface    = "org.freedesktop.GeoClue2.Manager"
	dbusClientIface     = "org.freedesktop.GeoClue2.Client"
	dbusLocationIface   = "org.freedesktop.GeoClue2.Location"
	dbusPropertiesIface = "org.freedesktop.DBus.Properties"
	dbusWatchMember     = "LocationUpdated"

	// accuracyLevelExact is GCLUE_ACCURACY_LEVEL_EXACT.
	accuracyLevelExact uint32 = 8
	signalBufferSize          = 8
	ttl                       = time.Second * 30
)

// DesktopID is the desktop file ID GeoClue uses to authorize the client.
var DesktopID = "waybar-navigation"

// ErrMissingProperty is returned when a GeoClue location object lacks a required property.
var ErrMissingProperty = errors.New("geoclue location is missing a property")

// Provider streams location updates of a GeoClue2 client.
type Provider struct {
	logger *logger.Logger
	ttl    time.Duration
}

// New returns a GeoClue2 Provider.
func New(log *logger.Logger) *Provider {
	return &Provider{
		logger: log,
		ttl:    ttl,
	}
}

func (p *Provider) Name() string {
	return name
}

// LookupStream registers a GeoClue2 client and emits a fix for every LocationUpdated signal.
// The stream is closed when the bus connection is lost, so the orchestrator can restart it.
func (p *Provider) LookupStream(ctx context.Context) <-chan location.Fix {
	out := make(chan location.Fix)

	go func() {
		defer close(out)

		conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
		if err != nil {
			p.logger.Debug("failed to connect to system bus", logger.Err(err))
			return
		}
		defer func() {
			if closeErr := conn.Close(); closeErr != nil {
				p.logger.Debug("failed to close system bus connection", logger.Err(closeErr))
			}
		}()

		client, err := p.startClient(ctx, conn)
		if err != nil {
			p.logger.Warn("failed to start geoclue client", logger.Err(err))
			return
		}
		defer func() {
			_ = client.Call(dbusClientIface+".Stop", 0).Err
		}()

		sigCh := make(chan *dbus.Signal, signalBufferSize)
		conn.Signal(sigCh)
		defer conn.RemoveSignal(sigCh)

		for {
			select {
			case <-ctx.Done():
				return
			case sgn, ok := <-sigCh:
				if !ok {
					return
				}
				fix, err := p.readSignal(ctx, conn, sgn)
				if err != nil {
					p.logger.Debug("failed to read geoclue location", logger.Err(err))
					continue
				}
				select {
				case <-ctx.Done():
					return
				case out <- fix:
				}
			}
		}
	}()

	return out
}

// startClient creates a GeoClue2 client, subscribes to its LocationUpdated signal and starts it.
func (p *Provider) startClient(ctx context.Context, conn *dbus.Conn) (dbus.BusObject, error) {
	var clientPath dbus.ObjectPath
	manager := conn.Object(dbusDest, dbusManagerPath)
	if err := manager.CallWithContext(ctx, dbusManagerIface+".GetClient", 0).Store(&clientPath); err != nil {
		return nil, fmt.Errorf("failed to get geoclue client: %w", err)
	}

	client := conn.Object(dbusDest, clientPath)
	if err := client.SetProperty(dbusClientIface+".DesktopId", dbus.MakeVariant(DesktopID)); err != nil {
		return nil, fmt.Errorf("failed to set desktop id: %w", err)
	}
	if err := client.SetProperty(dbusClientIface+".RequestedAccuracyLevel",
		dbus.MakeVariant(accuracyLevelExact)); err != nil {
		return nil, fmt.Errorf("failed to set requested accuracy level: %w", err)
	}

	if err := conn.AddMatchSignal(dbus.WithMatchObjectPath(clientPath),
		dbus.WithMatchInterface(dbusClientIface),
		dbus.WithMatchMember(dbusWatchMember),
	); err != nil {
		return nil, fmt.Errorf("failed to subscribe to dbus signal: %w", err)
	}

	if err := client.CallWithContext(ctx, dbusClientIface+".Start", 0).Err; err != nil {
		return nil, fmt.Errorf("failed to start geoclue client: %w", err)
	}
	p.logger.Debug("geoclue client started", slog.String("path", string(clientPath)))
	return client, nil
}

// readSignal fetches the properties of the new location object announced by a LocationUpdated
// signal.
func (p *Provider) readSignal(ctx context.Context, conn *dbus.Conn, sgn *dbus.Signal) (location.Fix, error) {
	if sgn.Name != dbusClientIface+"."+dbusWatchMember || len(sgn.Body) != 2 {
		return location.Fix{}, fmt.Errorf("unexpected signal %q", sgn.Name)
	}
	path, ok := sgn.Body[1].(dbus.ObjectPath)
	if !ok {
		return location.Fix{}, fmt.Errorf("unexpected location path type %T", sgn.Body[1])
	}

	props := make(map[string]dbus.Variant)
	obj := conn.Object(dbusDest, path)
	if err := obj.CallWithContext(ctx, dbusPropertiesIface+".GetAll", 0, dbusLocationIface).
		Store(&props); err != nil {
		return location.Fix{}, fmt.Errorf("failed to read location properties: %w", err)
	}
	return p.fixFromProperties(props)
}

// fixFromProperties converts the properties of a GeoClue2 location object into a Fix. GeoClue
// reports a negative heading or speed when the value is unknown.
func (p *Provider) fixFromProperties(props map[string]dbus.Variant) (location.Fix, error) {
	lat, err := float64Property(props, "Latitude")
	if err != nil {
		return location.Fix{}, err
	}
	lon, err := float64Property(props, "Longitude")
	if err != nil {
		return location.Fix{}, err
	}
	acc, err := float64Property(props, "Accuracy")
	if err != nil {
		return location.Fix{}, err
	}

	fix := location.Fix{
		Point:    geo.Point{Lat: lat, Lon: lon},
		Accuracy: acc,
		Source:   name,
		At:       time.Now(),
		TTL:      p.ttl,
	}
	if heading, err := float64Property(props, "Heading"); err == nil && heading >= 0 {
		fix.Heading.Set(heading)
	}
	if speed, err := float64Property(props, "Speed"); err == nil && speed >= 0 {
		fix.Speed.Set(speed)
	}
	return fix, nil
}

func float64Property(props map[string]dbus.Variant, key string) (float64, error) {
	variant, ok := props[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingProperty, key)
	}
	val, ok := variant.Value().(float64)
	if !ok {
		return 0, fmt.Errorf("property %s has unexpected type %s", key, variant.Signature())
	}
	return val, nil
}
