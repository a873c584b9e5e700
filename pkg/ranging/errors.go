package ranging

import (
	"errors"
	"fmt"

	"github.com/herlein/gouwb/pkg/radio"
)

// Ranging errors
var (
	// ErrStaleTimestamp indicates a timestamp register still holds the value
	// read during an earlier step
	ErrStaleTimestamp = errors.New("stale timestamp")

	// ErrFrameMismatch indicates a reception that did not come from the
	// expected sender
	ErrFrameMismatch = errors.New("frame mismatch")

	// ErrIncompleteRound indicates a round missing required timestamps
	ErrIncompleteRound = errors.New("incomplete ranging round")

	// ErrDegenerateRound indicates the SDS-TWR denominator is zero
	ErrDegenerateRound = errors.New("degenerate ranging round")

	// ErrImplausibleDistance indicates a resolved distance outside the
	// configured plausible interval
	ErrImplausibleDistance = errors.New("implausible distance")

	// ErrReinitialise indicates the radios could not be reset and
	// reinitialised; ranging cannot continue
	ErrReinitialise = errors.New("radio reinitialisation failed")

	// ErrInvalidConfig indicates invalid ranging configuration
	ErrInvalidConfig = errors.New("invalid ranging configuration")
)

// StepError reports which step of the exchange failed and on which radio
type StepError struct {
	Step     int
	Identity radio.Identity
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Step, e.Identity, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Cause classifies a round failure for diagnostics
type Cause uint8

const (
	CauseNone Cause = iota
	CauseTimeout
	CauseStale
	CauseMismatch
	CauseImplausible
	CauseDegenerate
	CauseFault
)

func (c Cause) String() string {
	switch c {
	case CauseNone:
		return "none"
	case CauseTimeout:
		return "timeout"
	case CauseStale:
		return "stale"
	case CauseMismatch:
		return "mismatch"
	case CauseImplausible:
		return "implausible"
	case CauseDegenerate:
		return "degenerate"
	default:
		return "fault"
	}
}

// Classify maps a round error to its failure cause
func Classify(err error) Cause {
	switch {
	case err == nil:
		return CauseNone
	case errors.Is(err, radio.ErrNoFrame):
		return CauseTimeout
	case errors.Is(err, ErrStaleTimestamp):
		return CauseStale
	case errors.Is(err, ErrFrameMismatch):
		return CauseMismatch
	case errors.Is(err, ErrImplausibleDistance):
		return CauseImplausible
	case errors.Is(err, ErrDegenerateRound), errors.Is(err, ErrIncompleteRound):
		return CauseDegenerate
	default:
		return CauseFault
	}
}
