// Package silence models the silence-boundary event stream produced by an
// external audio-analysis pass (ffmpeg's silencedetect filter). The analysis
// process writes text lines to stderr; lines carrying silence_start or
// silence_end markers become Events, everything else is noise.
package silence

import "github.com/shopspring/decimal"

// Kind distinguishes the two boundary observations.
type Kind int

const (
	// Start marks a transition from active audio into a silent region.
	Start Kind = iota
	// End marks a transition from a silent region back to active audio.
	End
)

// String returns the marker name as it appears in the analysis output.
func (k Kind) String() string {
	if k == Start {
		return "silence_start"
	}
	return "silence_end"
}

// Event is a single silence-boundary observation.
//
// Timestamps are kept as exact decimals: boundary comparisons against the
// duration window must not flake at values exactly equal to the bounds, and
// float64 accumulates drift over long recordings.
type Event struct {
	// Kind is the boundary direction.
	Kind Kind
	// Time is the boundary timestamp in seconds from the start of the recording.
	Time decimal.Decimal
	// SilenceDuration is the length of the silent region in seconds.
	// Only present on End events; zero otherwise.
	SilenceDuration decimal.Decimal
}
