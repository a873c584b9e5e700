package dw1000

import (
	"encoding/binary"
	"fmt"
)

// Bus is a full-duplex SPI transport with the DW1000 chip select framing
// each call. w and r have the same length; r may be nil for writes.
type Bus interface {
	Tx(w, r []byte) error
	Close() error
}

// header builds the 1-3 byte transaction header for a register file and
// sub-address
func header(reg uint8, sub uint16, write bool) []byte {
	b0 := reg & 0x3F
	if write {
		b0 |= headerWrite
	}
	if sub == 0 {
		return []byte{b0}
	}
	b0 |= headerSub
	if sub < 0x80 {
		return []byte{b0, uint8(sub)}
	}
	return []byte{b0, headerExtSub | uint8(sub&0x7F), uint8(sub >> 7)}
}

func (d *Device) read(reg uint8, sub uint16, n int) ([]byte, error) {
	hdr := header(reg, sub, false)
	w := make([]byte, len(hdr)+n)
	copy(w, hdr)
	r := make([]byte, len(w))
	if err := d.bus.Tx(w, r); err != nil {
		return nil, fmt.Errorf("read reg 0x%02X:0x%04X: %w", reg, sub, err)
	}
	return r[len(hdr):], nil
}

func (d *Device) write(reg uint8, sub uint16, data []byte) error {
	hdr := header(reg, sub, true)
	w := make([]byte, len(hdr)+len(data))
	copy(w, hdr)
	copy(w[len(hdr):], data)
	if err := d.bus.Tx(w, nil); err != nil {
		return fmt.Errorf("write reg 0x%02X:0x%04X: %w", reg, sub, err)
	}
	return nil
}

func (d *Device) read32(reg uint8, sub uint16) (uint32, error) {
	b, err := d.read(reg, sub, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// read40 reads a 40-bit little-endian value such as a timestamp or SYS_STATUS
func (d *Device) read40(reg uint8, sub uint16) (uint64, error) {
	b, err := d.read(reg, sub, 5)
	if err != nil {
		return 0, err
	}
	var buf [8]byte
	copy(buf[:], b)
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func (d *Device) write8(reg uint8, sub uint16, v uint8) error {
	return d.write(reg, sub, []byte{v})
}

func (d *Device) write16(reg uint8, sub uint16, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return d.write(reg, sub, b[:])
}

func (d *Device) write32(reg uint8, sub uint16, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return d.write(reg, sub, b[:])
}

func (d *Device) write40(reg uint8, sub uint16, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return d.write(reg, sub, b[:5])
}

// regWrite is one entry of a register programming table
type regWrite struct {
	name  string
	reg   uint8
	sub   uint16
	size  int
	value uint32
}

func (d *Device) apply(table []regWrite) error {
	for _, w := range table {
		var err error
		switch w.size {
		case 1:
			err = d.write8(w.reg, w.sub, uint8(w.value))
		case 2:
			err = d.write16(w.reg, w.sub, uint16(w.value))
		default:
			err = d.write32(w.reg, w.sub, w.value)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", w.name, err)
		}
	}
	return nil
}
