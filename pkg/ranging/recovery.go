package ranging

import (
	"fmt"
	"log/slog"
)

// RecoveryState is the recovery controller state
type RecoveryState uint8

const (
	StateNormal RecoveryState = iota
	StateResetting
)

func (s RecoveryState) String() string {
	if s == StateResetting {
		return "RESETTING"
	}
	return "NORMAL"
}

// Recovery counts consecutive round failures of any cause and resets and
// reinitialises the radios once the streak exceeds the threshold.
type Recovery struct {
	threshold int
	failures  int
	resets    int
	state     RecoveryState
	reinit    func() error
	log       *slog.Logger
}

// NewRecovery creates a controller that calls reinit when more than
// threshold consecutive failures have been recorded
func NewRecovery(threshold int, reinit func() error, log *slog.Logger) *Recovery {
	if log == nil {
		log = slog.Default()
	}
	return &Recovery{threshold: threshold, reinit: reinit, log: log}
}

// Failure records a failed round. It reports whether a reset was performed;
// a reset that fails returns an error wrapping ErrReinitialise.
func (r *Recovery) Failure() (bool, error) {
	r.failures++
	if r.failures <= r.threshold {
		return false, nil
	}

	r.state = StateResetting
	r.log.Warn("consecutive failure threshold exceeded, resetting radios",
		"failures", r.failures,
		"threshold", r.threshold)

	if err := r.reinit(); err != nil {
		return true, fmt.Errorf("%w: %w", ErrReinitialise, err)
	}

	r.resets++
	r.failures = 0
	r.state = StateNormal
	return true, nil
}

// Success records a fully successful round
func (r *Recovery) Success() {
	r.failures = 0
}

// Failures returns the current failure streak
func (r *Recovery) Failures() int {
	return r.failures
}

// Resets returns how many reset cycles completed
func (r *Recovery) Resets() int {
	return r.resets
}

// State returns the controller state
func (r *Recovery) State() RecoveryState {
	return r.state
}
