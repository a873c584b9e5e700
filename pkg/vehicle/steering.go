package vehicle

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/herlein/gouwb/pkg/position"
	"github.com/herlein/gouwb/pkg/ranging"
)

// Steering turns each distance pair into a velocity command
type Steering struct {
	baseline   float64
	dispatcher Dispatcher
	session    string
	seq        uint64
	now        func() time.Time
	log        *slog.Logger
}

// NewSteering creates a steering consumer for anchors baseline meters apart
func NewSteering(baseline float64, dispatcher Dispatcher, log *slog.Logger) *Steering {
	if log == nil {
		log = slog.Default()
	}
	return &Steering{
		baseline:   baseline,
		dispatcher: dispatcher,
		session:    uuid.NewString(),
		now:        time.Now,
		log:        log,
	}
}

// Session returns the id stamped on every message of this run
func (s *Steering) Session() string {
	return s.session
}

func (s *Steering) HandleDistances(ctx context.Context, pair ranging.Pair) error {
	est, err := position.Locate(pair.B, pair.C, s.baseline)
	if err != nil {
		return err
	}
	if est.Clamped {
		s.log.Debug("distances do not intersect", "b", pair.B, "c", pair.C)
	}

	cmd := position.Steer(pair.B, pair.C)
	s.seq++
	msg := Message{
		Session:   s.session,
		Seq:       s.seq,
		Round:     pair.Round,
		Time:      s.now(),
		DistanceB: pair.B,
		DistanceC: pair.C,
		X:         est.X,
		Y:         est.Y,
		Linear:    cmd.Linear,
		Angular:   cmd.Angular,
	}
	s.log.Debug("steer", "seq", msg.Seq, "x", est.X, "y", est.Y, "linear", cmd.Linear, "angular", cmd.Angular)
	return s.dispatcher.Dispatch(ctx, msg)
}
