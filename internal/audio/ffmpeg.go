package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strconv"

	"github.com/shopspring/decimal"
)

// FFmpeg implements Analyzer and Cutter using the ffmpeg CLI.
type FFmpeg struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
}

// NewFFmpeg creates a new FFmpeg wrapper.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpeg(ffmpegPath string) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpeg{ffmpegPath: ffmpegPath}
}

// Compile-time interface checks.
var (
	_ Analyzer = (*FFmpeg)(nil)
	_ Cutter   = (*FFmpeg)(nil)
)

// ffmpegAnalysis wraps a running silencedetect process.
type ffmpegAnalysis struct {
	cmd    *exec.Cmd
	stderr io.ReadCloser
}

func (a *ffmpegAnalysis) Output() io.Reader { return a.stderr }

func (a *ffmpegAnalysis) Wait() error { return a.cmd.Wait() }

func (a *ffmpegAnalysis) Close() error {
	_ = a.stderr.Close()
	if a.cmd.Process != nil {
		_ = a.cmd.Process.Kill()
	}
	return a.cmd.Wait()
}

// Analyze starts a silencedetect pass over the input recording and returns
// the live event stream. ffmpeg writes filter output to stderr, so the stream
// is the process's stderr pipe; no audio output is produced.
func (f *FFmpeg) Analyze(ctx context.Context, input string, opts DetectOpts) (Analysis, error) {
	if _, err := os.Stat(input); err != nil {
		return nil, fmt.Errorf("input recording: %w", err)
	}

	filter := fmt.Sprintf("silencedetect=noise=%ddB:d=%s",
		opts.NoiseDB,
		strconv.FormatFloat(opts.MinSilenceSec, 'f', -1, 64),
	)

	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, f.ffmpegPath,
		"-hide_banner",
		"-nostats",
		"-i", input,
		"-af", filter,
		"-f", "null",
		"-",
	)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start analysis: %w", err)
	}

	return &ffmpegAnalysis{cmd: cmd, stderr: stderr}, nil
}

// Extract copies the audio of [start, end) from input into output using
// stream copy, with no re-encoding.
func (f *FFmpeg) Extract(ctx context.Context, input, output string, start, end decimal.Decimal) error {
	args := []string{
		"-y",
		"-ss", start.String(),
		"-to", end.String(),
		"-i", input,
		"-c", "copy",
		output,
	}

	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// Probe returns the duration in seconds of a media file using ffprobe.
// Useful for input validation and diagnostics.
func (f *FFmpeg) Probe(ctx context.Context, path string) (decimal.Decimal, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return decimal.Zero, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return decimal.Zero, fmt.Errorf("ffprobe: %w, stderr: %s", err, stderr.String())
	}

	d, err := decimal.NewFromString(durationRe.FindString(stdout.String()))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse duration: %w", err)
	}

	return d, nil
}

var durationRe = regexp.MustCompile(`[\d.]+`)

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
