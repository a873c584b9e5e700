// Package vehicle consumes smoothed distance pairs: it prints them, turns
// them into steering commands and ships those commands to the vehicle.
package vehicle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/herlein/gouwb/pkg/ranging"
)

// Message is one steering update sent to the vehicle
type Message struct {
	Session string    `json:"session" msgpack:"session"`
	Seq     uint64    `json:"seq" msgpack:"seq"`
	Round   uint64    `json:"round" msgpack:"round"`
	Time    time.Time `json:"time" msgpack:"time"`

	DistanceB float64 `json:"distance_b" msgpack:"distance_b"`
	DistanceC float64 `json:"distance_c" msgpack:"distance_c"`
	X         float64 `json:"x" msgpack:"x"`
	Y         float64 `json:"y" msgpack:"y"`

	Linear  float64 `json:"linear" msgpack:"linear"`
	Angular float64 `json:"angular" msgpack:"angular"`
}

// Dispatcher delivers steering messages to a transport
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
	Close() error
}

// Trace prints one "dB dC" line per accepted round
type Trace struct {
	w io.Writer
}

// NewTrace creates a trace writer, typically on stdout
func NewTrace(w io.Writer) *Trace {
	return &Trace{w: w}
}

func (t *Trace) HandleDistances(_ context.Context, pair ranging.Pair) error {
	_, err := fmt.Fprintf(t.w, "%7.3f %7.3f\n", pair.B, pair.C)
	return err
}

// Fanout hands each pair to every consumer and joins their errors
type Fanout []ranging.Consumer

func (f Fanout) HandleDistances(ctx context.Context, pair ranging.Pair) error {
	var errs []error
	for _, c := range f {
		if err := c.HandleDistances(ctx, pair); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Multi dispatches each message to every dispatcher
type Multi []Dispatcher

func (m Multi) Dispatch(ctx context.Context, msg Message) error {
	var errs []error
	for _, d := range m {
		if err := d.Dispatch(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, d := range m {
		if err := d.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
