package ranging

import (
	"errors"
	"fmt"

	"github.com/herlein/gouwb/pkg/radio"
)

// stamps holds the per-step timestamp script for one radio: tx and rx value
// by step number.
type stamps struct {
	tx map[int]radio.Timestamp
	rx map[int]radio.Timestamp
}

// mockRig scripts the three radios of an exchange. Each round's timestamps
// are the script values plus roundStride times the round number, so every
// round reads fresh registers while the intervals stay fixed.
type mockRig struct {
	radios   [3]*mockEndpoint
	script   [3]stamps
	drop     func(round, step int, id radio.Identity) bool
	payload  func(sender radio.Identity, data []byte) []byte
	round    int
	lastStep int
	history  []int
	log      []string
}

const roundStride = 1_000_000

// newFixedRig scripts the link intervals used by the reference scenario:
// round_B=200000 roundTag_B=200010 reply_B=50000 replyTag_B=50005, and
// round_C=170000 roundTag_C=230000 reply_C=80000 replyTag_C=20015.
func newFixedRig() *mockRig {
	rig := &mockRig{}
	rig.script[radio.Tag] = stamps{
		tx: map[int]radio.Timestamp{1: 1000, 4: 251015},
		rx: map[int]radio.Timestamp{2: 201010, 3: 231000},
	}
	rig.script[radio.AnchorB] = stamps{
		tx: map[int]radio.Timestamp{2: 55000},
		rx: map[int]radio.Timestamp{1: 5000, 4: 255000},
	}
	rig.script[radio.AnchorC] = stamps{
		tx: map[int]radio.Timestamp{3: 89000},
		rx: map[int]radio.Timestamp{1: 9000, 4: 259000},
	}
	for _, id := range radio.Identities {
		rig.radios[id] = &mockEndpoint{id: id, rig: rig}
	}
	return rig
}

func (r *mockRig) endpoints() (radio.Endpoint, radio.Endpoint, radio.Endpoint) {
	return r.radios[radio.Tag], r.radios[radio.AnchorB], r.radios[radio.AnchorC]
}

// stepFor infers the exchange step from the transmitting radio
func (r *mockRig) stepFor(sender radio.Identity) int {
	switch sender {
	case radio.AnchorB:
		return 2
	case radio.AnchorC:
		return 3
	}
	if r.lastStep == 3 {
		return 4
	}
	return 1
}

func (r *mockRig) transmit(sender radio.Identity, data []byte) {
	step := r.stepFor(sender)
	if step == 1 {
		r.round++
	}
	r.lastStep = step
	r.history = append(r.history, step)
	base := radio.Timestamp(r.round * roundStride)

	src := r.radios[sender]
	src.txStamp = base + r.script[sender].tx[step]

	for _, id := range radio.Identities {
		ep := r.radios[id]
		if id == sender || !ep.armed {
			continue
		}
		ep.armed = false
		if r.drop != nil && r.drop(r.round, step, id) {
			// the sequencer aborts, so the next tag blink opens a new round
			r.lastStep = 0
			continue
		}
		if rx, ok := r.script[id].rx[step]; ok {
			ep.rxStamp = base + rx
		}
		payload := data
		if r.payload != nil {
			payload = r.payload(sender, data)
		}
		ep.pending = append([]byte(nil), payload...)
	}
}

type mockEndpoint struct {
	id  radio.Identity
	rig *mockRig

	armed   bool
	pending []byte
	flag    bool

	txStamp radio.Timestamp
	rxStamp radio.Timestamp

	frozenTx bool
	initErr  error

	resets, softResets, inits, clears int
}

func (m *mockEndpoint) record(op string) {
	m.rig.log = append(m.rig.log, fmt.Sprintf("%s:%s", m.id, op))
}

func (m *mockEndpoint) Reset() error {
	m.resets++
	m.record("reset")
	return nil
}

func (m *mockEndpoint) SoftReset() error {
	m.softResets++
	m.record("softreset")
	return nil
}

func (m *mockEndpoint) Initialise() error {
	m.inits++
	m.record("initialise")
	return m.initErr
}

func (m *mockEndpoint) ArmReceive() error {
	if m.flag {
		return errors.New("armed with event flag still set")
	}
	m.armed = true
	return nil
}

func (m *mockEndpoint) Transmit(data []byte) error {
	prev := m.txStamp
	m.rig.transmit(m.id, data)
	if m.frozenTx {
		m.txStamp = prev
	}
	return nil
}

func (m *mockEndpoint) Receive() ([]byte, error) {
	if m.pending == nil {
		return nil, radio.ErrNoFrame
	}
	data := m.pending
	m.pending = nil
	m.flag = true
	return data, nil
}

func (m *mockEndpoint) LastTransmitTimestamp() (radio.Timestamp, error) {
	return m.txStamp, nil
}

func (m *mockEndpoint) LastReceiveTimestamp() (radio.Timestamp, error) {
	return m.rxStamp, nil
}

func (m *mockEndpoint) Status() (radio.Status, error) {
	return radio.Status{Raw: 0x02, Flags: []string{"CPLOCK"}}, nil
}

func (m *mockEndpoint) ClearEventFlag() error {
	m.clears++
	m.flag = false
	return nil
}

// referenceConfig disables calibration and widens the plausible interval so
// the scripted ticks resolve to their raw distances.
func referenceConfig() *Config {
	config := DefaultConfig()
	config.CalibrationB = 0
	config.CalibrationC = 0
	config.MaxDistance = 1000
	config.ProgressInterval = 0
	return config
}
