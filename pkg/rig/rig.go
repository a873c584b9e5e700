// Package rig attaches the DW1000 radios described by a deployment file
package rig

import (
	"fmt"
	"log/slog"

	"github.com/google/gousb"

	"github.com/herlein/gouwb/pkg/ch341"
	"github.com/herlein/gouwb/pkg/config"
	"github.com/herlein/gouwb/pkg/dw1000"
	"github.com/herlein/gouwb/pkg/radio"
)

// Rig holds one DW1000 driver per role and the buses behind them
type Rig struct {
	Radios [len(radio.Identities)]*dw1000.Device

	buses map[radio.Identity]dw1000.Bus
	usb   *gousb.Context
}

// Open opens the bus of every role and wraps it in a DW1000 driver. CH341
// bridges are enumerated once for all roles so index selectors stay stable.
func Open(cfg *config.Config, log *slog.Logger) (*Rig, error) {
	r := &Rig{buses: make(map[radio.Identity]dw1000.Bus, len(radio.Identities))}

	var (
		bridgeRoles []radio.Identity
		selectors   []ch341.DeviceSelector
	)
	for _, id := range radio.Identities {
		rc := cfg.Radios.Get(id)
		switch rc.Bus {
		case config.BusCH341:
			bridgeRoles = append(bridgeRoles, id)
			selectors = append(selectors, ch341.DeviceSelector(rc.Device))
		case config.BusSPI:
			bus, err := dw1000.OpenSPI(rc.Device, rc.SpeedHz)
			if err != nil {
				r.Close()
				return nil, fmt.Errorf("%s: %w", id, err)
			}
			r.buses[id] = bus
		default:
			r.Close()
			return nil, fmt.Errorf("%w: %s: unknown bus %q", config.ErrInvalidConfig, id, rc.Bus)
		}
	}

	if len(selectors) > 0 {
		r.usb = gousb.NewContext()
		bridges, err := ch341.SelectDevices(r.usb, selectors...)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("failed to open CH341A bridges: %w", err)
		}
		for i, id := range bridgeRoles {
			r.buses[id] = bridges[i]
		}
	}

	for _, id := range radio.Identities {
		rc := cfg.Radios.Get(id)
		dc := rc.DeviceConfig(id)
		dc.Logger = log

		var err error
		if dc.ResetPin, err = dw1000.Pin(rc.ResetPin); err == nil {
			dc.IRQPin, err = dw1000.Pin(rc.IRQPin)
		}
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("%s: %w", id, err)
		}

		r.Radios[id] = dw1000.New(r.buses[id], dc)
		if log != nil {
			log.Debug("radio attached", "role", id, "bus", rc.Bus, "device", rc.Device)
		}
	}

	return r, nil
}

// Endpoints returns the radios in sequencer order
func (r *Rig) Endpoints() (tag, anchorB, anchorC radio.Endpoint) {
	return r.Radios[radio.Tag], r.Radios[radio.AnchorB], r.Radios[radio.AnchorC]
}

// Close releases every bus and the USB context
func (r *Rig) Close() error {
	var firstErr error
	for id, bus := range r.buses {
		if err := bus.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", id, err)
		}
	}
	r.buses = map[radio.Identity]dw1000.Bus{}
	if r.usb != nil {
		if err := r.usb.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		r.usb = nil
	}
	return firstErr
}
