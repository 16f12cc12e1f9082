// Package segment implements silence-based partitioning of a recording into
// candidate commercial segments. A Sequencer folds silence-end timestamps
// into contiguous Segments; a Window classifies each Segment by duration.
package segment

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNonIncreasingTimestamp is returned when a silence-end timestamp does not
// advance past the previous segment boundary. Timestamps must be strictly
// increasing for segments to tile the recording.
var ErrNonIncreasingTimestamp = errors.New("segment: non-increasing timestamp")

// Segment is the audio span between two consecutive silence-end boundaries,
// or between the start of the recording and the first one. Segments are
// ephemeral: each one is classified and optionally materialized before the
// next is created.
type Segment struct {
	// Index is the zero-based sequence number. It advances once per observed
	// silence-end event whether or not the segment is accepted.
	Index int
	// Start is the span start in seconds (the previous boundary, or 0).
	Start decimal.Decimal
	// End is the span end in seconds (the observed silence-end timestamp).
	End decimal.Decimal
}

// Duration returns End - Start in seconds.
func (s Segment) Duration() decimal.Decimal {
	return s.End.Sub(s.Start)
}

// OutputName returns the canonical output filename for the segment,
// e.g. "segment_00007.wav". The name depends only on the index, so re-running
// the same input reproduces the same files.
func (s Segment) OutputName() string {
	return fmt.Sprintf("segment_%05d.wav", s.Index)
}

// Sequencer folds a stream of silence-end timestamps into Segments. It
// carries the two scalars of segmentation state (the previous boundary and
// the next index) as struct fields; there is no package-level state.
//
// The zero value starts at time 0 with index 0, which is the correct state
// for a fresh recording.
type Sequencer struct {
	start decimal.Decimal
	next  int
}

// Next consumes one silence-end timestamp and returns the segment it closes.
// The returned segment spans [previous boundary, end); the sequencer then
// advances so the following segment starts exactly at end.
func (q *Sequencer) Next(end decimal.Decimal) (Segment, error) {
	if end.Cmp(q.start) <= 0 {
		return Segment{}, fmt.Errorf("%w: %s after %s", ErrNonIncreasingTimestamp, end, q.start)
	}

	seg := Segment{
		Index: q.next,
		Start: q.start,
		End:   end,
	}
	q.start = end
	q.next++
	return seg, nil
}

// Count returns how many segments have been produced so far.
func (q *Sequencer) Count() int {
	return q.next
}
