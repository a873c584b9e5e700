package ranging

import (
	"fmt"

	"github.com/herlein/gouwb/pkg/radio"
)

// Direction distinguishes transmit and receive timestamps
type Direction uint8

const (
	Tx Direction = iota
	Rx
)

func (d Direction) String() string {
	if d == Tx {
		return "tx"
	}
	return "rx"
}

// Link is a tag-anchor pair whose distance is estimated
type Link uint8

const (
	LinkB Link = iota
	LinkC
	numLinks
)

func (l Link) String() string {
	switch l {
	case LinkB:
		return "tag-anchor-b"
	case LinkC:
		return "tag-anchor-c"
	default:
		return fmt.Sprintf("link(%d)", uint8(l))
	}
}

// Anchor returns the anchor radio at the far end of the link
func (l Link) Anchor() radio.Identity {
	if l == LinkC {
		return radio.AnchorC
	}
	return radio.AnchorB
}

// replyStep is the step in which the link's anchor transmits
func (l Link) replyStep() int {
	if l == LinkC {
		return 3
	}
	return 2
}

type stampKey struct {
	step int
	id   radio.Identity
	dir  Direction
}

// requiredStamps lists every timestamp a complete round carries
var requiredStamps = []stampKey{
	{1, radio.Tag, Tx}, {1, radio.AnchorB, Rx}, {1, radio.AnchorC, Rx},
	{2, radio.AnchorB, Tx}, {2, radio.Tag, Rx},
	{3, radio.AnchorC, Tx}, {3, radio.Tag, Rx},
	{4, radio.Tag, Tx}, {4, radio.AnchorB, Rx}, {4, radio.AnchorC, Rx},
}

// Round holds the timestamps produced by one four-message exchange, keyed
// by step (1-4), radio identity and direction.
type Round struct {
	Index uint64

	stamps  [numSteps][len(radio.Identities)][2]radio.Timestamp
	present [numSteps][len(radio.Identities)][2]bool
}

// NewRound returns an empty round
func NewRound(index uint64) *Round {
	return &Round{Index: index}
}

func (r *Round) valid(step int, id radio.Identity) bool {
	return step >= 1 && step <= numSteps && int(id) < len(radio.Identities)
}

// Set records a timestamp. Out-of-range keys are ignored.
func (r *Round) Set(step int, id radio.Identity, dir Direction, ts radio.Timestamp) {
	if !r.valid(step, id) {
		return
	}
	r.stamps[step-1][id][dir] = ts
	r.present[step-1][id][dir] = true
}

// Get returns a recorded timestamp and whether it is present
func (r *Round) Get(step int, id radio.Identity, dir Direction) (radio.Timestamp, bool) {
	if !r.valid(step, id) {
		return 0, false
	}
	return r.stamps[step-1][id][dir], r.present[step-1][id][dir]
}

// Complete reports whether every required timestamp is present
func (r *Round) Complete() bool {
	for _, k := range requiredStamps {
		if _, ok := r.Get(k.step, k.id, k.dir); !ok {
			return false
		}
	}
	return true
}

// stamp returns a recorded timestamp, zero when absent. Callers check
// Complete first.
func (r *Round) stamp(step int, id radio.Identity, dir Direction) radio.Timestamp {
	ts, _ := r.Get(step, id, dir)
	return ts
}

// Intervals are the four spans, in ticks, that feed the SDS-TWR estimator.
// Round and Reply are measured on the anchor, RoundTag and ReplyTag on the
// tag.
type Intervals struct {
	Round    int64 // anchor: own tx -> rx of the closing tag blink
	Reply    int64 // anchor: rx of the opening tag blink -> own tx
	RoundTag int64 // tag: opening tx -> rx of the anchor blink
	ReplyTag int64 // tag: rx of the anchor blink -> closing tx
}

// Intervals derives the link's spans from a complete round. Each span is a
// difference between two timestamps of the same radio.
func (r *Round) Intervals(link Link) (Intervals, error) {
	if !r.Complete() {
		return Intervals{}, ErrIncompleteRound
	}

	anchor := link.Anchor()
	step := link.replyStep()

	tagTx1 := r.stamp(1, radio.Tag, Tx)
	tagRx := r.stamp(step, radio.Tag, Rx)
	tagTx4 := r.stamp(4, radio.Tag, Tx)
	anchorRx1 := r.stamp(1, anchor, Rx)
	anchorTx := r.stamp(step, anchor, Tx)
	anchorRx4 := r.stamp(4, anchor, Rx)

	return Intervals{
		Round:    anchorRx4.Sub(anchorTx),
		Reply:    anchorTx.Sub(anchorRx1),
		RoundTag: tagRx.Sub(tagTx1),
		ReplyTag: tagTx4.Sub(tagRx),
	}, nil
}

// Sample is one resolved, plausible distance
type Sample struct {
	Link   Link
	Meters float64
	Round  uint64
}

// Pair is the smoothed distance pair handed to the downstream consumer
type Pair struct {
	Round uint64
	B     float64 // meters, tag to anchor B
	C     float64 // meters, tag to anchor C
}
