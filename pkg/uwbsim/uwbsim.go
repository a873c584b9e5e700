// Package uwbsim simulates three DW1000 radios sharing one air medium. Each
// radio has its own free-running 40-bit clock with offset and drift, and
// every frame picks up flight time plus the sender's and receiver's
// antenna delays.
package uwbsim

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/herlein/gouwb/pkg/position"
	"github.com/herlein/gouwb/pkg/radio"
)

var ErrNotInitialised = errors.New("radio not initialised")

// RadioConfig describes one simulated radio
type RadioConfig struct {
	Position     position.Point `yaml:"position"`
	ClockOffset  uint64         `yaml:"clock_offset"`  // ticks at simulation start
	DriftPPM     float64        `yaml:"drift_ppm"`     // clock rate error
	AntennaDelay float64        `yaml:"antenna_delay"` // ticks, paid on both tx and rx
}

// Config describes the simulated rig
type Config struct {
	Radios          [3]RadioConfig `yaml:"radios"`
	Turnaround      time.Duration  `yaml:"turnaround"` // time between consecutive transmissions
	DropProbability float64        `yaml:"drop_probability"`
	Seed            int64          `yaml:"seed"`
}

// DefaultConfig places the tag 1.5 m in front of a 1.2 m anchor baseline.
// The antenna delays match the default range calibration.
func DefaultConfig() Config {
	return Config{
		Radios: [3]RadioConfig{
			radio.Tag:     {Position: position.Point{X: 0.4, Y: 1.5}, ClockOffset: 0x12_3456_7890, DriftPPM: 4, AntennaDelay: 16480},
			radio.AnchorB: {Position: position.Point{X: 0, Y: 0}, ClockOffset: 0xFF_FFF0_0000, DriftPPM: -11, AntennaDelay: 16503},
			radio.AnchorC: {Position: position.Point{X: 1.2, Y: 0}, ClockOffset: 0x80_0000_0000, DriftPPM: 17, AntennaDelay: 16417},
		},
		Turnaround: 300 * time.Microsecond,
		Seed:       1,
	}
}

// Air is the shared medium. All radios advance on one true time line,
// measured in ideal ticks.
type Air struct {
	mu         sync.Mutex
	config     Config
	radios     [3]*Radio
	now        float64
	turnaround float64
	rng        *rand.Rand
	dropNext   [3]bool
}

// NewAir creates the medium and its three radios
func NewAir(config Config) *Air {
	if config.Turnaround == 0 {
		config.Turnaround = DefaultConfig().Turnaround
	}
	a := &Air{
		config:     config,
		turnaround: config.Turnaround.Seconds() * radio.ChipClockHz,
		rng:        rand.New(rand.NewSource(config.Seed)),
	}
	for _, id := range radio.Identities {
		a.radios[id] = &Radio{id: id, air: a}
	}
	return a
}

// Radio returns the simulated radio playing a role
func (a *Air) Radio(id radio.Identity) *Radio {
	return a.radios[id]
}

// Endpoints returns the three radios in sequencer order
func (a *Air) Endpoints() (tag, anchorB, anchorC radio.Endpoint) {
	return a.radios[radio.Tag], a.radios[radio.AnchorB], a.radios[radio.AnchorC]
}

// MoveTag relocates the tag
func (a *Air) MoveTag(p position.Point) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.config.Radios[radio.Tag].Position = p
}

// Distance returns the true distance between two radios in meters
func (a *Air) Distance(x, y radio.Identity) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.config.Radios[x].Position.Distance(a.config.Radios[y].Position)
}

// DropNext loses the next frame addressed to a radio
func (a *Air) DropNext(id radio.Identity) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dropNext[id] = true
}

// local converts true time to a radio's 40-bit clock reading
func (a *Air) local(id radio.Identity, t float64) radio.Timestamp {
	rc := a.config.Radios[id]
	ticks := uint64(math.Floor(t * (1 + rc.DriftPPM*1e-6)))
	return radio.Timestamp((rc.ClockOffset + ticks) & radio.TimestampMask)
}

func (a *Air) dropped(id radio.Identity) bool {
	if a.dropNext[id] {
		a.dropNext[id] = false
		return true
	}
	return a.config.DropProbability > 0 && a.rng.Float64() < a.config.DropProbability
}

// transmit puts a frame on the air and delivers it to every armed radio
func (a *Air) transmit(sender *Radio, data []byte) {
	a.now += a.turnaround
	txTrue := a.now
	sender.txStamp = a.local(sender.id, txTrue)

	src := a.config.Radios[sender.id]
	for _, r := range a.radios {
		if r == sender || !r.armed {
			continue
		}
		r.armed = false
		if a.dropped(r.id) {
			continue
		}

		dst := a.config.Radios[r.id]
		flight := src.Position.Distance(dst.Position) / radio.TickDistance
		arrival := txTrue + src.AntennaDelay + flight + dst.AntennaDelay

		r.rxStamp = a.local(r.id, arrival)
		r.pending = append([]byte(nil), data...)
	}
}

// Radio is one simulated DW1000 implementing radio.Endpoint
type Radio struct {
	id  radio.Identity
	air *Air

	initialised bool
	armed       bool
	pending     []byte
	flag        bool
	txStamp     radio.Timestamp
	rxStamp     radio.Timestamp

	initErr error

	Resets, SoftResets, Inits int
}

func (r *Radio) String() string {
	return fmt.Sprintf("sim %s", r.id)
}

// FailInitialise makes every later Initialise return err; nil clears it
func (r *Radio) FailInitialise(err error) {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	r.initErr = err
}

func (r *Radio) clear() {
	r.initialised = false
	r.armed = false
	r.pending = nil
	r.flag = false
}

func (r *Radio) Reset() error {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	r.Resets++
	r.clear()
	return nil
}

func (r *Radio) SoftReset() error {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	r.SoftResets++
	r.clear()
	return nil
}

func (r *Radio) Initialise() error {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	r.Inits++
	if r.initErr != nil {
		return r.initErr
	}
	r.initialised = true
	return nil
}

func (r *Radio) ArmReceive() error {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	if !r.initialised {
		return ErrNotInitialised
	}
	r.armed = true
	r.pending = nil
	return nil
}

func (r *Radio) Transmit(data []byte) error {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	if !r.initialised {
		return ErrNotInitialised
	}
	r.air.transmit(r, data)
	return nil
}

func (r *Radio) Receive() ([]byte, error) {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	if r.pending == nil {
		r.armed = false
		return nil, radio.ErrNoFrame
	}
	data := r.pending
	r.pending = nil
	r.flag = true
	return data, nil
}

func (r *Radio) LastTransmitTimestamp() (radio.Timestamp, error) {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	return r.txStamp, nil
}

func (r *Radio) LastReceiveTimestamp() (radio.Timestamp, error) {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	return r.rxStamp, nil
}

func (r *Radio) Status() (radio.Status, error) {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	st := radio.Status{Raw: 1 << 1, Flags: []string{"CPLOCK"}}
	if r.flag {
		st.Raw |= 1<<13 | 1<<14
		st.Flags = append(st.Flags, "RXDFR", "RXFCG")
	}
	return st, nil
}

func (r *Radio) ClearEventFlag() error {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	r.flag = false
	return nil
}

var _ radio.Endpoint = (*Radio)(nil)
