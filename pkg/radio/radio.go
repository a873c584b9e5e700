// Package radio defines the capability set the ranging core needs from one
// physical UWB radio, plus the identities and timestamp units shared by every
// adapter.
package radio

import (
	"fmt"
	"strings"
)

// Identity names the role a physical radio plays in a ranging round
type Identity uint8

const (
	Tag Identity = iota
	AnchorB
	AnchorC
)

// Identities lists every role in the fixed reset/initialise order
var Identities = [...]Identity{Tag, AnchorB, AnchorC}

func (id Identity) String() string {
	switch id {
	case Tag:
		return "tag"
	case AnchorB:
		return "anchor-b"
	case AnchorC:
		return "anchor-c"
	default:
		return fmt.Sprintf("identity(%d)", uint8(id))
	}
}

// ParseIdentity accepts the names produced by Identity.String
func ParseIdentity(s string) (Identity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tag":
		return Tag, nil
	case "anchor-b", "b":
		return AnchorB, nil
	case "anchor-c", "c":
		return AnchorC, nil
	}
	return 0, fmt.Errorf("unknown radio identity %q", s)
}

// Tick period and derived constants.
const (
	// ChipClockHz is the DW1000 timestamp clock, 128 x 499.2 MHz.
	ChipClockHz = 128 * 499.2e6

	// TickSeconds is one timestamp unit (~15.65 ps).
	TickSeconds = 1.0 / ChipClockHz

	// LightSpeed is the propagation speed used for ranging (m/s).
	LightSpeed = 299702547.0

	// TickDistance is the distance radio waves travel in one tick (~4.69 mm).
	TickDistance = LightSpeed * TickSeconds

	// TimestampBits is the width of the hardware timestamp counter.
	TimestampBits = 40

	// TimestampMask keeps the counter bits of a raw register value.
	TimestampMask = (uint64(1) << TimestampBits) - 1
)

// Timestamp is a hardware tick count. Only differences between values read
// from the same radio carry meaning.
type Timestamp uint64

// Sub returns t - u in ticks, modulo the 40-bit counter width.
func (t Timestamp) Sub(u Timestamp) int64 {
	return int64((uint64(t) - uint64(u)) & TimestampMask)
}

// Seconds converts the raw tick count to seconds since counter zero
func (t Timestamp) Seconds() float64 {
	return float64(t) * TickSeconds
}

// Status is an opaque diagnostic snapshot of a radio's status register.
type Status struct {
	Raw   uint64
	Flags []string
}

func (s Status) String() string {
	if len(s.Flags) == 0 {
		return fmt.Sprintf("status=0x%010X", s.Raw)
	}
	return fmt.Sprintf("status=0x%010X [%s]", s.Raw, strings.Join(s.Flags, " "))
}

// Endpoint is the per-radio capability set consumed by the ranging sequencer.
//
// Receive blocks up to an adapter-internal timeout and returns ErrNoFrame when
// nothing arrived. The timestamp getters return the most recent hardware
// register values, which stay stale until the next respective event.
// ClearEventFlag must be called after a consumed reception before the radio
// is armed again.
type Endpoint interface {
	Reset() error
	SoftReset() error
	Initialise() error
	ArmReceive() error
	Transmit(data []byte) error
	Receive() ([]byte, error)
	LastTransmitTimestamp() (Timestamp, error)
	LastReceiveTimestamp() (Timestamp, error)
	Status() (Status, error)
	ClearEventFlag() error
}
