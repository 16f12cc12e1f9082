package extractor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commcut/commcut/internal/audio"
	"github.com/commcut/commcut/internal/segment"
	"github.com/commcut/commcut/internal/silence"
)

// fakeAnalysis serves a canned event stream.
type fakeAnalysis struct {
	r io.Reader
}

func (f *fakeAnalysis) Output() io.Reader { return f.r }
func (f *fakeAnalysis) Wait() error       { return nil }
func (f *fakeAnalysis) Close() error      { return nil }

// fakeAnalyzer yields silence_end lines for the given timestamps, in the
// shape the silencedetect filter emits them.
type fakeAnalyzer struct {
	lines []string
}

func analyzerWithEnds(ends ...string) *fakeAnalyzer {
	a := &fakeAnalyzer{}
	for _, end := range ends {
		a.lines = append(a.lines,
			fmt.Sprintf("[silencedetect @ 0x7f8e4] silence_end: %s | silence_duration: 0.9", end))
	}
	return a
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _ string, _ audio.DetectOpts) (audio.Analysis, error) {
	return &fakeAnalysis{r: strings.NewReader(strings.Join(f.lines, "\n"))}, nil
}

// cut records one extraction call.
type cut struct {
	output string
	start  decimal.Decimal
	end    decimal.Decimal
}

// fakeCutter records extractions and writes a marker file per call.
// Indices listed in failAt produce a partial file and an error.
type fakeCutter struct {
	cuts   []cut
	failAt map[string]bool
}

func (f *fakeCutter) Extract(_ context.Context, _, output string, start, end decimal.Decimal) error {
	f.cuts = append(f.cuts, cut{output: output, start: start, end: end})
	if err := os.WriteFile(output, []byte("audio"), 0600); err != nil {
		return err
	}
	if f.failAt[filepath.Base(output)] {
		return fmt.Errorf("corrupt source range")
	}
	return nil
}

func testWindow(t *testing.T) segment.Window {
	t.Helper()
	w, err := segment.NewWindow(decimal.RequireFromString("10.0"), decimal.RequireFromString("31.0"))
	require.NoError(t, err)
	return w
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun_SingleAcceptedSegment(t *testing.T) {
	// One boundary at 12.0s inside the [10, 31] window.
	outDir := t.TempDir()
	cutter := &fakeCutter{}
	ex := New(analyzerWithEnds("12.0"), cutter, testWindow(t), testLogger())

	sum, err := ex.Run(context.Background(), "recording.wav", outDir)
	require.NoError(t, err)

	assert.Equal(t, Summary{Total: 1, Accepted: 1}, sum)
	require.Len(t, cutter.cuts, 1)
	assert.Equal(t, filepath.Join(outDir, "segment_00000.wav"), cutter.cuts[0].output)
	assert.True(t, cutter.cuts[0].start.IsZero())
	assert.True(t, cutter.cuts[0].end.Equal(decimal.RequireFromString("12.0")))
	assert.FileExists(t, filepath.Join(outDir, "segment_00000.wav"))
}

func TestRun_ShortSegmentRejected(t *testing.T) {
	// 5.0s is below the window; no file, but the index is consumed.
	outDir := t.TempDir()
	cutter := &fakeCutter{}
	ex := New(analyzerWithEnds("5.0"), cutter, testWindow(t), testLogger())

	sum, err := ex.Run(context.Background(), "recording.wav", outDir)
	require.NoError(t, err)

	assert.Equal(t, Summary{Total: 1, Rejected: 1}, sum)
	assert.Empty(t, cutter.cuts)
	assert.NoFileExists(t, filepath.Join(outDir, "segment_00000.wav"))
}

func TestRun_MixedAcceptAndReject(t *testing.T) {
	// Segment 0 is [0, 15.0) = 15.0s (accepted); segment 1 is
	// [15.0, 47.0) = 32.0s (rejected, exceeds max).
	outDir := t.TempDir()
	cutter := &fakeCutter{}
	ex := New(analyzerWithEnds("15.0", "47.0"), cutter, testWindow(t), testLogger())

	sum, err := ex.Run(context.Background(), "recording.wav", outDir)
	require.NoError(t, err)

	assert.Equal(t, Summary{Total: 2, Accepted: 1, Rejected: 1}, sum)
	require.Len(t, cutter.cuts, 1)
	assert.Equal(t, filepath.Join(outDir, "segment_00000.wav"), cutter.cuts[0].output)
	assert.NoFileExists(t, filepath.Join(outDir, "segment_00001.wav"))
}

func TestRun_RejectedSegmentsStillConsumeIndices(t *testing.T) {
	// reject, accept, reject, accept: accepted files keep their stream
	// indices, with no renumbering.
	outDir := t.TempDir()
	cutter := &fakeCutter{}
	ex := New(analyzerWithEnds("5.0", "20.0", "60.0", "75.0"), cutter, testWindow(t), testLogger())

	sum, err := ex.Run(context.Background(), "recording.wav", outDir)
	require.NoError(t, err)

	assert.Equal(t, Summary{Total: 4, Accepted: 2, Rejected: 2}, sum)
	require.Len(t, cutter.cuts, 2)
	assert.Equal(t, filepath.Join(outDir, "segment_00001.wav"), cutter.cuts[0].output)
	assert.Equal(t, filepath.Join(outDir, "segment_00003.wav"), cutter.cuts[1].output)
}

func TestRun_BoundaryDurationsAccepted(t *testing.T) {
	t.Run("exactly minimum", func(t *testing.T) {
		outDir := t.TempDir()
		cutter := &fakeCutter{}
		ex := New(analyzerWithEnds("10.0"), cutter, testWindow(t), testLogger())

		sum, err := ex.Run(context.Background(), "recording.wav", outDir)
		require.NoError(t, err)
		assert.Equal(t, Summary{Total: 1, Accepted: 1}, sum)
	})

	t.Run("exactly maximum", func(t *testing.T) {
		outDir := t.TempDir()
		cutter := &fakeCutter{}
		ex := New(analyzerWithEnds("31.0"), cutter, testWindow(t), testLogger())

		sum, err := ex.Run(context.Background(), "recording.wav", outDir)
		require.NoError(t, err)
		assert.Equal(t, Summary{Total: 1, Accepted: 1}, sum)
	})
}

func TestRun_MalformedTimestampAborts(t *testing.T) {
	outDir := t.TempDir()
	cutter := &fakeCutter{}
	analyzer := &fakeAnalyzer{lines: []string{
		"[silencedetect @ 0x7f8e4] silence_end: 12.0 | silence_duration: 0.9",
		"[silencedetect @ 0x7f8e4] silence_end: garbage | silence_duration: 0.9",
		"[silencedetect @ 0x7f8e4] silence_end: 47.0 | silence_duration: 0.9",
	}}
	ex := New(analyzer, cutter, testWindow(t), testLogger())

	sum, err := ex.Run(context.Background(), "recording.wav", outDir)
	require.Error(t, err)
	assert.ErrorIs(t, err, silence.ErrMalformedTimestamp)

	// The segment before the corruption was processed; nothing after it was.
	assert.Equal(t, Summary{Total: 1, Accepted: 1}, sum)
	require.Len(t, cutter.cuts, 1)
}

func TestRun_NonIncreasingTimestampAborts(t *testing.T) {
	outDir := t.TempDir()
	cutter := &fakeCutter{}
	ex := New(analyzerWithEnds("15.0", "15.0"), cutter, testWindow(t), testLogger())

	_, err := ex.Run(context.Background(), "recording.wav", outDir)
	assert.ErrorIs(t, err, segment.ErrNonIncreasingTimestamp)
}

func TestRun_ExtractionFailureContinues(t *testing.T) {
	// Segment 0 fails to cut; segments 1 and 2 still come through, and the
	// partial file from the failure is removed.
	outDir := t.TempDir()
	cutter := &fakeCutter{failAt: map[string]bool{"segment_00000.wav": true}}
	ex := New(analyzerWithEnds("12.0", "24.0", "36.0"), cutter, testWindow(t), testLogger())

	sum, err := ex.Run(context.Background(), "recording.wav", outDir)
	require.NoError(t, err)

	assert.Equal(t, Summary{Total: 3, Accepted: 2, Failed: 1}, sum)
	assert.NoFileExists(t, filepath.Join(outDir, "segment_00000.wav"))
	assert.FileExists(t, filepath.Join(outDir, "segment_00001.wav"))
	assert.FileExists(t, filepath.Join(outDir, "segment_00002.wav"))
}

func TestRun_SinkReceivesAcceptedSegments(t *testing.T) {
	outDir := t.TempDir()
	cutter := &fakeCutter{}

	var got []string
	sink := SinkFunc(func(_ context.Context, seg segment.Segment, filePath string) error {
		got = append(got, fmt.Sprintf("%d:%s", seg.Index, filepath.Base(filePath)))
		return nil
	})

	ex := New(analyzerWithEnds("5.0", "20.0"), cutter, testWindow(t), testLogger(), WithSinks(sink))

	_, err := ex.Run(context.Background(), "recording.wav", outDir)
	require.NoError(t, err)

	// Only the accepted segment reaches the sink.
	assert.Equal(t, []string{"1:segment_00001.wav"}, got)
}

func TestRun_SinkFailureDoesNotAbort(t *testing.T) {
	outDir := t.TempDir()
	cutter := &fakeCutter{}
	sink := SinkFunc(func(_ context.Context, _ segment.Segment, _ string) error {
		return fmt.Errorf("service unavailable")
	})
	ex := New(analyzerWithEnds("12.0", "24.0"), cutter, testWindow(t), testLogger(), WithSinks(sink))

	sum, err := ex.Run(context.Background(), "recording.wav", outDir)
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 2, Accepted: 2}, sum)
}

func TestRun_OutputDirCreatedIfAbsent(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "nested", "segments")
	cutter := &fakeCutter{}
	ex := New(analyzerWithEnds("12.0"), cutter, testWindow(t), testLogger())

	_, err := ex.Run(context.Background(), "recording.wav", outDir)
	require.NoError(t, err)
	assert.DirExists(t, outDir)
}

func TestRun_UnusableOutputDirFailsBeforeProcessing(t *testing.T) {
	// A regular file where the output directory should be makes MkdirAll
	// fail; no analysis must have been started.
	tmpDir := t.TempDir()
	blocker := filepath.Join(tmpDir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	cutter := &fakeCutter{}
	ex := New(analyzerWithEnds("12.0"), cutter, testWindow(t), testLogger())

	_, err := ex.Run(context.Background(), "recording.wav", blocker)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOutputDirUnwritable)
	assert.Empty(t, cutter.cuts)
}

func TestRun_Idempotent(t *testing.T) {
	// Re-running the same stream reproduces the same boundaries and names.
	cutter1 := &fakeCutter{}
	cutter2 := &fakeCutter{}
	outDir1 := t.TempDir()
	outDir2 := t.TempDir()

	ends := []string{"12.0", "24.5", "60.0", "80.0"}
	ex1 := New(analyzerWithEnds(ends...), cutter1, testWindow(t), testLogger())
	ex2 := New(analyzerWithEnds(ends...), cutter2, testWindow(t), testLogger())

	sum1, err := ex1.Run(context.Background(), "recording.wav", outDir1)
	require.NoError(t, err)
	sum2, err := ex2.Run(context.Background(), "recording.wav", outDir2)
	require.NoError(t, err)

	assert.Equal(t, sum1, sum2)
	require.Equal(t, len(cutter1.cuts), len(cutter2.cuts))
	for i := range cutter1.cuts {
		assert.Equal(t, filepath.Base(cutter1.cuts[i].output), filepath.Base(cutter2.cuts[i].output))
		assert.True(t, cutter1.cuts[i].start.Equal(cutter2.cuts[i].start))
		assert.True(t, cutter1.cuts[i].end.Equal(cutter2.cuts[i].end))
	}
}
