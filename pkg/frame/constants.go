package frame

import "github.com/herlein/gouwb/pkg/radio"

// Blink frame layout: Control(1) | Seq(1) | TagID(8), little-endian, packed.
const (
	BlinkControl = 0xC5
	BlinkSize    = 1 + 1 + 8
)

// Data frame header layout:
// Control(2) | Seq(1) | PanID(2) | Dest(8) | Source(8), little-endian, packed.
const (
	HeaderControl = 0xCC41
	HeaderSize    = 2 + 1 + 2 + 8 + 8
)

// Tag identifiers carried in each radio's blink frames. These must match
// between independently built tag and anchor firmware.
const (
	TagIDTag     uint64 = 0x0101010101010101
	TagIDAnchorB uint64 = 0x0202020202020202
	TagIDAnchorC uint64 = 0x0303030303030303
)

// InitialSeq is the first sequence number an encoder emits
const InitialSeq = 1

// TagID returns the blink identifier for a radio identity
func TagID(id radio.Identity) uint64 {
	switch id {
	case radio.AnchorB:
		return TagIDAnchorB
	case radio.AnchorC:
		return TagIDAnchorC
	default:
		return TagIDTag
	}
}
