// Package ch341 drives a CH341A USB bridge as an SPI master so a DW1000
// module can be attached to any USB host.
package ch341

import (
	"context"
	"fmt"
	"math/bits"
	"strings"
	"sync"
	"time"

	"github.com/google/gousb"
)

// Device represents a CH341A USB-SPI bridge
type Device struct {
	usbDevice    *gousb.Device
	usbConfig    *gousb.Config
	usbInterface *gousb.Interface
	epIn         *gousb.InEndpoint
	epOut        *gousb.OutEndpoint
	Serial       string
	Manufacturer string
	Product      string
	Bus          int
	Address      int
	mu           sync.Mutex
}

// FindAllDevices finds all connected CH341A bridges
func FindAllDevices(context *gousb.Context) ([]*Device, error) {
	devices := []*Device{}

	usbDevices, err := context.OpenDevices(func(descriptor *gousb.DeviceDesc) bool {
		return descriptor.Vendor == gousb.ID(VendorID) && descriptor.Product == gousb.ID(ProductID)
	})
	if err != nil && len(usbDevices) == 0 {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	for _, usbDev := range usbDevices {
		device, err := wrapDevice(usbDev)
		if err != nil {
			usbDev.Close()
			continue
		}
		devices = append(devices, device)
	}

	return devices, nil
}

func wrapDevice(usbDev *gousb.Device) (*Device, error) {
	manufacturer, _ := usbDev.Manufacturer()
	product, _ := usbDev.Product()
	serial, _ := usbDev.SerialNumber()

	usbDev.SetAutoDetach(true)

	config, err := usbDev.Config(1)
	if err != nil {
		return nil, fmt.Errorf("failed to get configuration: %w", err)
	}

	iface, err := config.Interface(0, 0)
	if err != nil {
		config.Close()
		return nil, fmt.Errorf("failed to claim interface: %w", err)
	}

	epIn, err := iface.InEndpoint(BulkEndpoint)
	if err != nil {
		iface.Close()
		config.Close()
		return nil, fmt.Errorf("failed to get IN endpoint: %w", err)
	}

	epOut, err := iface.OutEndpoint(BulkEndpoint)
	if err != nil {
		iface.Close()
		config.Close()
		return nil, fmt.Errorf("failed to get OUT endpoint: %w", err)
	}

	desc := usbDev.Desc
	device := &Device{
		usbDevice:    usbDev,
		usbConfig:    config,
		usbInterface: iface,
		epIn:         epIn,
		epOut:        epOut,
		Serial:       serial,
		Manufacturer: manufacturer,
		Product:      product,
		Bus:          desc.Bus,
		Address:      desc.Address,
	}

	if err := device.setup(Speed750K); err != nil {
		device.Close()
		return nil, err
	}

	return device, nil
}

// setup programs the clock and drives every SPI line to its idle level
func (d *Device) setup(speed Speed) error {
	if err := d.send([]byte{CmdI2CStream, I2CStmSet | uint8(speed), I2CStmEnd}); err != nil {
		return fmt.Errorf("failed to set speed: %w", err)
	}
	if err := d.send(uioPacket(pinsIdle, true)); err != nil {
		return fmt.Errorf("failed to configure pins: %w", err)
	}
	return nil
}

// Close deselects the chip and releases all resources
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.epOut != nil {
		d.send(uioPacket(pinsIdle, false))
	}

	d.epIn, d.epOut = nil, nil

	if d.usbInterface != nil {
		d.usbInterface.Close()
		d.usbInterface = nil
	}
	if d.usbConfig != nil {
		d.usbConfig.Close()
		d.usbConfig = nil
	}
	if d.usbDevice != nil {
		err := d.usbDevice.Close()
		d.usbDevice = nil
		return err
	}
	return nil
}

// Reset performs a USB port reset
func (d *Device) Reset() error {
	if d.usbDevice == nil {
		return fmt.Errorf("device closed")
	}
	return d.usbDevice.Reset()
}

// String returns a human-readable description of the device
func (d *Device) String() string {
	return fmt.Sprintf("%s %s (Serial: %s, %d:%d)", d.Manufacturer, d.Product, d.Serial, d.Bus, d.Address)
}

// Tx runs one chip-selected full-duplex transfer. r may be nil.
func (d *Device) Tx(w, r []byte) error {
	if r != nil && len(r) != len(w) {
		return fmt.Errorf("tx length mismatch: write %d, read %d", len(w), len(r))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.epOut == nil {
		return fmt.Errorf("device closed")
	}
	if err := d.send(uioPacket(pinsSelect, false)); err != nil {
		return fmt.Errorf("chip select: %w", err)
	}
	defer d.send(uioPacket(pinsIdle, false))

	buf := make([]byte, SPIChunk)
	for off, pkt := range spiPackets(w) {
		n := len(pkt) - 1
		if err := d.send(pkt); err != nil {
			return err
		}
		if err := d.recv(buf[:n]); err != nil {
			return err
		}
		if r != nil {
			for i := 0; i < n; i++ {
				r[off*SPIChunk+i] = bits.Reverse8(buf[i])
			}
		}
	}
	return nil
}

func (d *Device) send(packet []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), USBDefaultTimeout)
	defer cancel()

	n, err := d.epOut.WriteContext(ctx, packet)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("write timeout: %w", err)
		}
		return fmt.Errorf("failed to write to EP2: %w", err)
	}
	if n != len(packet) {
		return fmt.Errorf("short write: wrote %d of %d bytes", n, len(packet))
	}
	return nil
}

// recv fills buf from the IN endpoint
func (d *Device) recv(buf []byte) error {
	deadline := time.Now().Add(USBDefaultTimeout)
	got := 0
	for got < len(buf) {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("timeout waiting for %d SPI bytes (got %d)", len(buf), got)
		}

		ctx, cancel := context.WithTimeout(context.Background(), remaining)
		n, err := d.epIn.ReadContext(ctx, buf[got:])
		cancel()
		if err != nil {
			if ctx.Err() != nil || strings.Contains(strings.ToLower(err.Error()), "timeout") {
				continue
			}
			return fmt.Errorf("failed to read from EP2: %w", err)
		}
		got += n
	}
	return nil
}

// spiPackets splits a transfer into SPI stream packets. The bridge shifts
// LSB first, so every byte is bit-reversed.
func spiPackets(w []byte) [][]byte {
	var packets [][]byte
	for off := 0; off < len(w); off += SPIChunk {
		chunk := w[off:min(off+SPIChunk, len(w))]
		pkt := make([]byte, 1+len(chunk))
		pkt[0] = CmdSPIStream
		for i, b := range chunk {
			pkt[1+i] = bits.Reverse8(b)
		}
		packets = append(packets, pkt)
	}
	return packets
}

// uioPacket sets the D0-D5 output levels, optionally with the direction
// mask
func uioPacket(pins uint8, withDir bool) []byte {
	if withDir {
		return []byte{CmdUIOStream, UIOStmOut | pins, UIOStmDir | pinsDir, UIOStmEnd}
	}
	return []byte{CmdUIOStream, UIOStmOut | pins, UIOStmEnd}
}
