package ranging

import (
	"fmt"

	"github.com/herlein/gouwb/pkg/radio"
)

// SDSTWR returns the one-way time of flight in ticks for one link using the
// symmetric double-sided two-way ranging estimator
//
//	tof = (round*roundTag - reply*replyTag) / (round + roundTag + reply + replyTag)
//
// which cancels first-order clock offset between the two radios.
func SDSTWR(iv Intervals) (float64, error) {
	round := float64(iv.Round)
	reply := float64(iv.Reply)
	roundTag := float64(iv.RoundTag)
	replyTag := float64(iv.ReplyTag)

	denominator := round + roundTag + reply + replyTag
	if denominator == 0 {
		return 0, ErrDegenerateRound
	}
	return (round*roundTag - reply*replyTag) / denominator, nil
}

// Resolver turns complete rounds into calibrated, plausible distances
type Resolver struct {
	calibration [numLinks]float64
	min, max    float64
}

// NewResolver creates a resolver from the ranging configuration
func NewResolver(config *Config) *Resolver {
	return &Resolver{
		calibration: [numLinks]float64{config.CalibrationB, config.CalibrationC},
		min:         config.MinDistance,
		max:         config.MaxDistance,
	}
}

// Plausible reports whether a distance lies inside the open interval
func (r *Resolver) Plausible(meters float64) bool {
	return meters > r.min && meters < r.max
}

// Distance converts one link of a round to meters without the plausibility check
func (r *Resolver) Distance(round *Round, link Link) (float64, error) {
	iv, err := round.Intervals(link)
	if err != nil {
		return 0, err
	}
	tof, err := SDSTWR(iv)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", link, err)
	}
	return tof*radio.TickDistance - r.calibration[link], nil
}

// Resolve computes both link distances. The round is rejected unless both
// fall inside the plausible interval.
func (r *Resolver) Resolve(round *Round) (b, c Sample, err error) {
	var meters [numLinks]float64
	for link := LinkB; link < numLinks; link++ {
		meters[link], err = r.Distance(round, link)
		if err != nil {
			return Sample{}, Sample{}, err
		}
	}

	for link := LinkB; link < numLinks; link++ {
		if !r.Plausible(meters[link]) {
			return Sample{}, Sample{}, fmt.Errorf("%w: %s %.3f m outside (%.3f, %.3f)",
				ErrImplausibleDistance, link, meters[link], r.min, r.max)
		}
	}

	b = Sample{Link: LinkB, Meters: meters[LinkB], Round: round.Index}
	c = Sample{Link: LinkC, Meters: meters[LinkC], Round: round.Index}
	return b, c, nil
}
