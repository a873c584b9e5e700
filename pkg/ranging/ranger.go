package ranging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Consumer receives the smoothed distance pair of every accepted round. Its
// error is logged and never affects ranging.
type Consumer interface {
	HandleDistances(ctx context.Context, pair Pair) error
}

// ConsumerFunc adapts a function to the Consumer interface
type ConsumerFunc func(ctx context.Context, pair Pair) error

func (f ConsumerFunc) HandleDistances(ctx context.Context, pair Pair) error {
	return f(ctx, pair)
}

// Stats counts loop outcomes
type Stats struct {
	Rounds      uint64
	Accepted    uint64
	Timeouts    uint64
	Stale       uint64
	Mismatched  uint64
	Implausible uint64
	Degenerate  uint64
	Faults      uint64
	Resets      uint64
	Started     time.Time
}

// Failed returns the number of rejected rounds of any cause
func (s Stats) Failed() uint64 {
	return s.Rounds - s.Accepted
}

// Ranger runs ranging rounds back-to-back on a single goroutine
type Ranger struct {
	config   *Config
	seq      *Sequencer
	resolver *Resolver
	smoother *Smoother
	recovery *Recovery
	consumer Consumer
	log      *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// New creates a Ranger. A nil config uses DefaultConfig; a nil consumer
// discards results.
func New(seq *Sequencer, config *Config, consumer Consumer) *Ranger {
	if config == nil {
		config = DefaultConfig()
	}
	if consumer == nil {
		consumer = ConsumerFunc(func(context.Context, Pair) error { return nil })
	}

	r := &Ranger{
		config:   config,
		seq:      seq,
		resolver: NewResolver(config),
		smoother: NewSmoother(config.WindowSize),
		consumer: consumer,
		log:      config.logger(),
	}
	r.recovery = NewRecovery(config.FailureThreshold, seq.Reinitialise, r.log)
	return r
}

// Recovery returns the loop's recovery controller
func (r *Ranger) Recovery() *Recovery {
	return r.recovery
}

// Smoother returns the loop's smoothing filter
func (r *Ranger) Smoother() *Smoother {
	return r.smoother
}

// Stats returns a copy of the loop counters. Safe to call from any goroutine.
func (r *Ranger) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Run ranges until the context is cancelled, StopAfter rounds are accepted,
// or the radios cannot be reinitialised. Cancellation is only observed
// between rounds.
func (r *Ranger) Run(ctx context.Context) error {
	if err := r.config.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	r.stats.Started = time.Now()
	r.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if _, err := r.RangeOnce(ctx); err != nil {
			return err
		}

		if r.config.StopAfter > 0 && r.Stats().Accepted >= uint64(r.config.StopAfter) {
			return nil
		}
	}
}

// RangeOnce runs one loop iteration. It returns the smoothed pair of an
// accepted round, nil for a failure absorbed by the loop, and an error only
// when recovery could not reinitialise the radios.
func (r *Ranger) RangeOnce(ctx context.Context) (*Pair, error) {
	round, err := r.seq.Execute()
	if err != nil {
		return nil, r.fail(err)
	}

	b, c, err := r.resolver.Resolve(round)
	if err != nil {
		return nil, r.fail(err)
	}

	pair := r.smoother.Add(b, c)
	r.recovery.Success()

	r.mu.Lock()
	r.stats.Rounds++
	r.stats.Accepted++
	accepted := r.stats.Accepted
	r.mu.Unlock()

	r.log.Debug("round accepted",
		"round", round.Index,
		"raw_b", b.Meters,
		"raw_c", c.Meters,
		"avg_b", pair.B,
		"avg_c", pair.C)

	if err := r.consumer.HandleDistances(ctx, pair); err != nil {
		r.log.Warn("consumer failed", "round", round.Index, "error", err)
	}

	if r.config.Progress != nil && r.config.ProgressInterval > 0 &&
		accepted%uint64(r.config.ProgressInterval) == 0 {
		fmt.Fprintf(r.config.Progress, "%d ", accepted)
		if f, ok := r.config.Progress.(interface{ Sync() error }); ok {
			f.Sync()
		}
	}

	return &pair, nil
}

// fail logs and counts a failed round and applies the recovery policy
func (r *Ranger) fail(err error) error {
	cause := Classify(err)

	r.mu.Lock()
	r.stats.Rounds++
	switch cause {
	case CauseTimeout:
		r.stats.Timeouts++
	case CauseStale:
		r.stats.Stale++
	case CauseMismatch:
		r.stats.Mismatched++
	case CauseImplausible:
		r.stats.Implausible++
	case CauseDegenerate:
		r.stats.Degenerate++
	default:
		r.stats.Faults++
	}
	r.mu.Unlock()

	if se, ok := IsStepError(err); ok {
		status, serr := r.seq.Snapshot(se.Identity)
		if serr != nil {
			r.log.Warn("round failed", "cause", cause, "error", err, "status_error", serr)
		} else {
			r.log.Warn("round failed", "cause", cause, "error", err, "radio", se.Identity, "status", status.String())
		}
	} else {
		r.log.Info("round rejected", "cause", cause, "error", err)
	}

	reset, rerr := r.recovery.Failure()
	if reset && rerr == nil {
		r.mu.Lock()
		r.stats.Resets++
		r.mu.Unlock()
		r.log.Info("radios reinitialised", "resets", r.recovery.Resets())
	}
	return rerr
}

// WriteSummary prints the loop counters in the style of the command line tools
func (r *Ranger) WriteSummary(w io.Writer) {
	s := r.Stats()
	fmt.Fprintf(w, "\n\nAccepted %d of %d rounds in %v\n", s.Accepted, s.Rounds, time.Since(s.Started).Round(time.Second))
	fmt.Fprintf(w, "  timeouts=%d stale=%d mismatched=%d implausible=%d degenerate=%d faults=%d resets=%d\n",
		s.Timeouts, s.Stale, s.Mismatched, s.Implausible, s.Degenerate, s.Faults, s.Resets)
}
