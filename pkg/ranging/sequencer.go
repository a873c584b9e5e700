package ranging

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/herlein/gouwb/pkg/frame"
	"github.com/herlein/gouwb/pkg/radio"
)

// step is one request/response message of the exchange
type step struct {
	number    int
	sender    radio.Identity
	receivers []radio.Identity
}

// exchange is the fixed four-message order of a ranging round
var exchange = [numSteps]step{
	{1, radio.Tag, []radio.Identity{radio.AnchorB, radio.AnchorC}},
	{2, radio.AnchorB, []radio.Identity{radio.Tag}},
	{3, radio.AnchorC, []radio.Identity{radio.Tag}},
	{4, radio.Tag, []radio.Identity{radio.AnchorB, radio.AnchorC}},
}

// Sequencer drives the three radios through the four-message exchange. It
// exclusively owns the endpoints; nothing else may command them.
type Sequencer struct {
	endpoints [len(radio.Identities)]radio.Endpoint
	encoders  [len(radio.Identities)]*frame.Encoder

	// last timestamp read per radio and direction, for stale detection
	last [len(radio.Identities)][2]radio.Timestamp
	seen [len(radio.Identities)][2]bool

	rounds       uint64
	verifyFrames bool
	log          *slog.Logger
}

// NewSequencer binds one endpoint to each identity
func NewSequencer(tag, anchorB, anchorC radio.Endpoint, config *Config) *Sequencer {
	s := &Sequencer{
		endpoints:    [len(radio.Identities)]radio.Endpoint{tag, anchorB, anchorC},
		verifyFrames: config.VerifyFrames,
		log:          config.logger(),
	}
	for _, id := range radio.Identities {
		s.encoders[id] = frame.NewEncoder(id)
	}
	return s
}

// Endpoint returns the radio bound to an identity
func (s *Sequencer) Endpoint(id radio.Identity) radio.Endpoint {
	return s.endpoints[id]
}

// Start hard resets and initialises every radio in the fixed order
func (s *Sequencer) Start() error {
	for _, id := range radio.Identities {
		if err := s.endpoints[id].Reset(); err != nil {
			return fmt.Errorf("%s: reset: %w", id, err)
		}
	}
	for _, id := range radio.Identities {
		if err := s.endpoints[id].Initialise(); err != nil {
			return fmt.Errorf("%s: initialise: %w", id, err)
		}
	}
	s.forget()
	return nil
}

// Reinitialise soft resets and initialises Tag, AnchorB and AnchorC in turn
func (s *Sequencer) Reinitialise() error {
	for _, id := range radio.Identities {
		ep := s.endpoints[id]
		if err := ep.SoftReset(); err != nil {
			return fmt.Errorf("%s: soft reset: %w", id, err)
		}
		if err := ep.Initialise(); err != nil {
			return fmt.Errorf("%s: initialise: %w", id, err)
		}
	}
	s.forget()
	return nil
}

// Snapshot reads a radio's status register for failure diagnostics
func (s *Sequencer) Snapshot(id radio.Identity) (radio.Status, error) {
	return s.endpoints[id].Status()
}

func (s *Sequencer) forget() {
	s.seen = [len(radio.Identities)][2]bool{}
}

// Execute runs one ranging round. It returns a complete round or an error;
// a round that failed any step is discarded and never returned.
func (s *Sequencer) Execute() (*Round, error) {
	s.rounds++
	round := NewRound(s.rounds)

	for _, st := range exchange {
		if err := s.runStep(round, st); err != nil {
			return nil, err
		}
	}

	if !round.Complete() {
		return nil, ErrIncompleteRound
	}

	s.log.Debug("round timestamps",
		"round", round.Index,
		"tag_tx1", round.stamp(1, radio.Tag, Tx),
		"b_rx1", round.stamp(1, radio.AnchorB, Rx),
		"c_rx1", round.stamp(1, radio.AnchorC, Rx),
		"b_tx2", round.stamp(2, radio.AnchorB, Tx),
		"tag_rx2", round.stamp(2, radio.Tag, Rx),
		"c_tx3", round.stamp(3, radio.AnchorC, Tx),
		"tag_rx3", round.stamp(3, radio.Tag, Rx),
		"tag_tx4", round.stamp(4, radio.Tag, Tx),
		"b_rx4", round.stamp(4, radio.AnchorB, Rx),
		"c_rx4", round.stamp(4, radio.AnchorC, Rx))

	return round, nil
}

// runStep arms the receivers, transmits the sender's blink, waits for every
// reception and records the step's timestamps. Event flags are cleared on
// each receiver that got a frame, whether or not the step succeeds.
func (s *Sequencer) runStep(round *Round, st step) error {
	fail := func(id radio.Identity, err error) error {
		return &StepError{Step: st.number, Identity: id, Err: err}
	}

	for _, id := range st.receivers {
		if err := s.endpoints[id].ArmReceive(); err != nil {
			return fail(id, fmt.Errorf("arm receive: %w", err))
		}
	}

	if err := s.endpoints[st.sender].Transmit(s.encoders[st.sender].Encode()); err != nil {
		return fail(st.sender, fmt.Errorf("transmit: %w", err))
	}

	// Poll every armed receiver so a late responder's flag is still cleared
	var failed error
	received := make([]radio.Identity, 0, len(st.receivers))
	for _, id := range st.receivers {
		data, err := s.endpoints[id].Receive()
		if err != nil {
			if failed == nil {
				failed = fail(id, err)
			}
			continue
		}
		received = append(received, id)
		if err := s.checkSender(st.sender, data); err != nil && failed == nil {
			failed = fail(id, err)
		}
	}

	if failed == nil {
		failed = s.recordStamps(round, st, received)
	}

	for _, id := range received {
		if err := s.endpoints[id].ClearEventFlag(); err != nil && failed == nil {
			failed = fail(id, fmt.Errorf("clear event flag: %w", err))
		}
	}

	return failed
}

// recordStamps reads the step's timestamps straight from the radios that
// produced them
func (s *Sequencer) recordStamps(round *Round, st step, receivers []radio.Identity) error {
	ts, err := s.readStamp(st.sender, Tx)
	if err != nil {
		return &StepError{Step: st.number, Identity: st.sender, Err: err}
	}
	round.Set(st.number, st.sender, Tx, ts)

	for _, id := range receivers {
		ts, err := s.readStamp(id, Rx)
		if err != nil {
			return &StepError{Step: st.number, Identity: id, Err: err}
		}
		round.Set(st.number, id, Rx, ts)
	}
	return nil
}

// readStamp reads one timestamp register and rejects a value identical to
// the previous read of the same register
func (s *Sequencer) readStamp(id radio.Identity, dir Direction) (radio.Timestamp, error) {
	var (
		ts  radio.Timestamp
		err error
	)
	if dir == Tx {
		ts, err = s.endpoints[id].LastTransmitTimestamp()
	} else {
		ts, err = s.endpoints[id].LastReceiveTimestamp()
	}
	if err != nil {
		return 0, fmt.Errorf("read %s timestamp: %w", dir, err)
	}

	if s.seen[id][dir] && s.last[id][dir] == ts {
		return 0, fmt.Errorf("%w: %s %s 0x%010X", ErrStaleTimestamp, id, dir, uint64(ts))
	}
	s.last[id][dir] = ts
	s.seen[id][dir] = true
	return ts, nil
}

// checkSender confirms a reception is the blink of the expected sender
func (s *Sequencer) checkSender(sender radio.Identity, data []byte) error {
	if !s.verifyFrames {
		return nil
	}
	blink, err := frame.DecodeBlink(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFrameMismatch, err)
	}
	if want := s.encoders[sender].TagID(); blink.TagID != want {
		return fmt.Errorf("%w: tag id 0x%016X, want 0x%016X", ErrFrameMismatch, blink.TagID, want)
	}
	return nil
}

// IsStepError reports whether err came from a failed exchange step and
// returns it
func IsStepError(err error) (*StepError, bool) {
	var se *StepError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
