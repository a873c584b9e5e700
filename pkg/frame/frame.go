// Package frame encodes the fixed-layout UWB frames exchanged during ranging.
package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/herlein/gouwb/pkg/radio"
)

// Blink is the short broadcast frame that triggers a timestamped reception
type Blink struct {
	Control uint8
	Seq     uint8
	TagID   uint64
}

// Bytes serializes the blink frame
func (b *Blink) Bytes() []byte {
	data := make([]byte, BlinkSize)
	data[0] = b.Control
	data[1] = b.Seq
	binary.LittleEndian.PutUint64(data[2:10], b.TagID)
	return data
}

// DecodeBlink parses a received blink frame. Trailing bytes are ignored.
func DecodeBlink(data []byte) (*Blink, error) {
	if len(data) < BlinkSize {
		return nil, fmt.Errorf("%w: blink needs %d bytes, got %d", ErrShortFrame, BlinkSize, len(data))
	}
	if data[0] != BlinkControl {
		return nil, fmt.Errorf("%w: 0x%02X", ErrFrameControl, data[0])
	}
	return &Blink{
		Control: data[0],
		Seq:     data[1],
		TagID:   binary.LittleEndian.Uint64(data[2:10]),
	}, nil
}

// Header is the data frame header. It is reserved for data exchange and is
// not used by the ranging exchange itself.
type Header struct {
	Control uint16
	Seq     uint8
	PanID   uint16
	Dest    uint64
	Source  uint64
}

// Bytes serializes the header
func (h *Header) Bytes() []byte {
	data := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint16(data[0:2], h.Control)
	data[2] = h.Seq
	binary.LittleEndian.PutUint16(data[3:5], h.PanID)
	binary.LittleEndian.PutUint64(data[5:13], h.Dest)
	binary.LittleEndian.PutUint64(data[13:21], h.Source)
	return data
}

// DecodeHeader parses a data frame header
func DecodeHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: header needs %d bytes, got %d", ErrShortFrame, HeaderSize, len(data))
	}
	h := &Header{
		Control: binary.LittleEndian.Uint16(data[0:2]),
		Seq:     data[2],
		PanID:   binary.LittleEndian.Uint16(data[3:5]),
		Dest:    binary.LittleEndian.Uint64(data[5:13]),
		Source:  binary.LittleEndian.Uint64(data[13:21]),
	}
	if h.Control != HeaderControl {
		return nil, fmt.Errorf("%w: 0x%04X", ErrFrameControl, h.Control)
	}
	return h, nil
}

// Encoder produces successive blink frames for one radio identity. The
// sequence number is its only mutable state.
type Encoder struct {
	blink Blink
}

// NewEncoder returns an encoder carrying the identity's tag id
func NewEncoder(id radio.Identity) *Encoder {
	return NewEncoderWithTagID(TagID(id), InitialSeq)
}

// NewEncoderWithTagID returns an encoder for an arbitrary tag id and start sequence
func NewEncoderWithTagID(tagID uint64, seq uint8) *Encoder {
	return &Encoder{blink: Blink{Control: BlinkControl, Seq: seq, TagID: tagID}}
}

// Encode returns the current frame bytes, then advances the sequence number
// (wrapping from 255 to 0).
func (e *Encoder) Encode() []byte {
	data := e.blink.Bytes()
	e.blink.Seq++
	return data
}

// Seq returns the sequence number the next Encode will carry
func (e *Encoder) Seq() uint8 {
	return e.blink.Seq
}

// TagID returns the identifier carried by every frame of this encoder
func (e *Encoder) TagID() uint64 {
	return e.blink.TagID
}
