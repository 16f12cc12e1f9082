// Package extractor implements the segment extraction run: it consumes the
// silence-analysis event stream, folds it into contiguous segments, keeps the
// ones with plausibly-commercial durations, and materializes each kept
// segment as a lossless copy of the source recording.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/commcut/commcut/internal/audio"
	"github.com/commcut/commcut/internal/segment"
	"github.com/commcut/commcut/internal/silence"
)

// ErrOutputDirUnwritable is returned when the output directory cannot be
// created or written to. This is checked before any processing starts.
var ErrOutputDirUnwritable = errors.New("extractor: output directory is not writable")

// Sink receives segments that were accepted and successfully materialized.
// Sink failures are reported but never abort the run.
type Sink interface {
	Accepted(ctx context.Context, seg segment.Segment, filePath string) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, seg segment.Segment, filePath string) error

// Accepted implements Sink.
func (f SinkFunc) Accepted(ctx context.Context, seg segment.Segment, filePath string) error {
	return f(ctx, seg, filePath)
}

// Summary reports the outcome of one extraction run.
type Summary struct {
	// Total is the number of segments observed (accepted or not).
	Total int
	// Accepted is the number of segments materialized to files.
	Accepted int
	// Rejected is the number of segments outside the duration window.
	Rejected int
	// Failed is the number of accepted segments whose extraction failed.
	Failed int
}

// Extractor runs silence-based segment extraction over a recording.
type Extractor struct {
	analyzer audio.Analyzer
	cutter   audio.Cutter
	window   segment.Window
	opts     audio.DetectOpts
	logger   *slog.Logger
	sinks    []Sink
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithDetectOpts overrides the silence-analysis options.
func WithDetectOpts(opts audio.DetectOpts) Option {
	return func(e *Extractor) {
		e.opts = opts
	}
}

// WithSinks registers sinks for accepted segments.
func WithSinks(sinks ...Sink) Option {
	return func(e *Extractor) {
		e.sinks = append(e.sinks, sinks...)
	}
}

// New creates an Extractor.
func New(analyzer audio.Analyzer, cutter audio.Cutter, window segment.Window, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Extractor{
		analyzer: analyzer,
		cutter:   cutter,
		window:   window,
		opts:     audio.DefaultDetectOpts(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run extracts commercial-length segments from input into outputDir.
// It returns once the analysis stream ends. A malformed event or a
// non-increasing timestamp aborts the run; a single segment's extraction
// failure does not.
func (e *Extractor) Run(ctx context.Context, input, outputDir string) (Summary, error) {
	var sum Summary

	if err := ensureWritableDir(outputDir); err != nil {
		return sum, err
	}

	analysis, err := e.analyzer.Analyze(ctx, input, e.opts)
	if err != nil {
		return sum, fmt.Errorf("start analysis: %w", err)
	}

	e.logger.Info("analyzing recording",
		slog.String("input", input),
		slog.String("output_dir", outputDir),
		slog.String("window", e.window.String()),
		slog.Int("noise_db", e.opts.NoiseDB),
		slog.Float64("min_silence_sec", e.opts.MinSilenceSec),
	)

	var seq segment.Sequencer
	sc := silence.NewScanner(analysis.Output())

	for sc.Scan() {
		ev := sc.Event()
		if ev.Kind != silence.End {
			continue
		}

		seg, err := seq.Next(ev.Time)
		if err != nil {
			_ = analysis.Close()
			return sum, err
		}
		sum.Total++

		if err := e.handle(ctx, input, outputDir, seg, &sum); err != nil {
			_ = analysis.Close()
			return sum, err
		}
	}

	if err := sc.Err(); err != nil {
		_ = analysis.Close()
		return sum, err
	}
	if err := ctx.Err(); err != nil {
		_ = analysis.Close()
		return sum, err
	}

	if err := analysis.Wait(); err != nil {
		return sum, fmt.Errorf("analysis process: %w", err)
	}

	e.logger.Info("extraction complete",
		slog.Int("segments", sum.Total),
		slog.Int("accepted", sum.Accepted),
		slog.Int("rejected", sum.Rejected),
		slog.Int("failed", sum.Failed),
	)

	return sum, nil
}

// handle classifies one segment and materializes it when accepted.
func (e *Extractor) handle(ctx context.Context, input, outputDir string, seg segment.Segment, sum *Summary) error {
	duration := seg.Duration()

	if !e.window.Contains(duration) {
		sum.Rejected++
		e.logger.Info("segment outside duration window, skipping",
			slog.Int("index", seg.Index),
			slog.String("duration_sec", duration.String()),
		)
		return nil
	}

	outputPath := filepath.Join(outputDir, seg.OutputName())
	if err := e.cutter.Extract(ctx, input, outputPath, seg.Start, seg.End); err != nil {
		// A partially written file is invalid; remove it before moving on.
		_ = os.Remove(outputPath)
		if ctx.Err() != nil {
			return fmt.Errorf("extraction cancelled: %w", ctx.Err())
		}
		sum.Failed++
		e.logger.Warn("segment extraction failed, continuing",
			slog.Int("index", seg.Index),
			slog.String("error", err.Error()),
		)
		return nil
	}

	sum.Accepted++
	e.logger.Info("saved segment",
		slog.Int("index", seg.Index),
		slog.String("duration_sec", duration.String()),
		slog.String("file", outputPath),
	)

	for _, sink := range e.sinks {
		if err := sink.Accepted(ctx, seg, outputPath); err != nil {
			e.logger.Warn("segment sink failed, continuing",
				slog.Int("index", seg.Index),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}

// ensureWritableDir creates dir if absent and verifies it is writable by
// creating and removing a probe file.
func ensureWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputDirUnwritable, err)
	}

	probe, err := os.CreateTemp(dir, ".probe_*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOutputDirUnwritable, err)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	return nil
}
