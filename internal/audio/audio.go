// Package audio provides interfaces and ffmpeg-based implementations for
// silence analysis and lossless segment extraction.
package audio

import (
	"context"
	"io"

	"github.com/shopspring/decimal"
)

// DetectOpts configures the silence-analysis filter.
type DetectOpts struct {
	// NoiseDB is the volume threshold in dB below which audio is considered
	// silence. Default: -100 dB.
	NoiseDB int

	// MinSilenceSec is the minimum silence length in seconds for a region to
	// count as a boundary. Default: 0.8 seconds.
	MinSilenceSec float64
}

// DefaultDetectOpts returns the default silence-analysis options.
func DefaultDetectOpts() DetectOpts {
	return DetectOpts{
		NoiseDB:       -100,
		MinSilenceSec: 0.8,
	}
}

// Analysis is a running silence-analysis pass over a recording.
type Analysis interface {
	// Output is the raw analysis event stream (text lines). It delivers
	// lines as the analysis produces them; reading blocks until the next
	// line or end of stream.
	Output() io.Reader

	// Wait reaps the analysis process after Output is exhausted.
	Wait() error

	// Close abandons the analysis, terminating the underlying process.
	Close() error
}

// Analyzer starts a silence-analysis pass over an input recording.
type Analyzer interface {
	Analyze(ctx context.Context, input string, opts DetectOpts) (Analysis, error)
}

// Cutter extracts a time range of a recording into a new file without
// re-encoding.
type Cutter interface {
	// Extract copies the audio of [start, end) from input into output.
	// The audio stream is copied verbatim.
	Extract(ctx context.Context, input, output string, start, end decimal.Decimal) error
}
