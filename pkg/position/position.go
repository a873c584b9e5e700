// Package position turns a pair of anchor distances into a coarse tag
// position and a steering decision.
package position

import (
	"errors"
	"math"
)

// ErrBaseline is returned for a non-positive anchor separation
var ErrBaseline = errors.New("anchor baseline must be positive")

// Point is a position in meters. AnchorB sits at the origin and AnchorC on
// the +x axis.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Distance returns the Euclidean distance between two points
func (p Point) Distance(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Estimate is a tag position derived from one distance pair
type Estimate struct {
	Point
	// Clamped is set when the distances do not intersect and y was forced to 0
	Clamped bool
}

// Locate trilaterates the tag from its distances to AnchorB at (0,0) and
// AnchorC at (baseline,0), assuming the tag is on the +y side
func Locate(dB, dC, baseline float64) (Estimate, error) {
	if baseline <= 0 {
		return Estimate{}, ErrBaseline
	}

	x := (dB*dB - dC*dC + baseline*baseline) / (2 * baseline)
	y2 := dB*dB - x*x
	if y2 < 0 {
		return Estimate{Point: Point{X: x}, Clamped: true}, nil
	}
	return Estimate{Point: Point{X: x, Y: math.Sqrt(y2)}}, nil
}

// Steering speeds
const (
	Linear  = 0.05 // m/s
	Angular = 0.3  // rad/s
)

// Command is a velocity request for the vehicle
type Command struct {
	Linear  float64 `json:"linear" msgpack:"linear"`
	Angular float64 `json:"angular" msgpack:"angular"`
}

// Steer drives forward and turns left (positive angular) when the tag is
// farther from AnchorB than from AnchorC, right otherwise
func Steer(dB, dC float64) Command {
	if dB > dC {
		return Command{Linear: Linear, Angular: Angular}
	}
	return Command{Linear: Linear, Angular: -Angular}
}
