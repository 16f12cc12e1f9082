package silence

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrMalformedTimestamp is returned when a matched marker line carries a
// non-numeric timestamp. This is fatal to the stream: continuing with a
// guessed boundary would silently misplace every following segment.
var ErrMalformedTimestamp = errors.New("silence: malformed timestamp")

// Marker line shapes, as emitted by the silencedetect filter:
//
//	[silencedetect @ 0x...] silence_start: 123.456
//	[silencedetect @ 0x...] silence_end: 135.042 | silence_duration: 11.586
var (
	startRe    = regexp.MustCompile(`silence_start:\s*(\S+)`)
	endRe      = regexp.MustCompile(`silence_end:\s*(\S+)`)
	durationRe = regexp.MustCompile(`silence_duration:\s*(\S+)`)
)

// Scanner reads an analysis output stream line by line and yields silence
// boundary Events. Lines without a marker are skipped. Consumption is lazy:
// Scan blocks on the underlying reader, so a Scanner can follow a live
// analysis process as it runs.
type Scanner struct {
	sc    *bufio.Scanner
	event Event
	err   error
}

// NewScanner creates a Scanner over r.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{sc: bufio.NewScanner(r)}
}

// Scan advances to the next boundary event. It returns false when the stream
// ends or a fatal parse error occurs; check Err to distinguish.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}
	for s.sc.Scan() {
		line := s.sc.Text()

		ev, matched, err := parseLine(line)
		if err != nil {
			s.err = err
			return false
		}
		if matched {
			s.event = ev
			return true
		}
	}
	s.err = s.sc.Err()
	return false
}

// Event returns the event produced by the last successful Scan.
func (s *Scanner) Event() Event {
	return s.event
}

// Err returns the first fatal error encountered, if any.
func (s *Scanner) Err() error {
	return s.err
}

// parseLine extracts a boundary event from a single output line.
// matched is false for lines carrying no marker.
func parseLine(line string) (ev Event, matched bool, err error) {
	if strings.Contains(line, "silence_end:") {
		m := endRe.FindStringSubmatch(line)
		if len(m) < 2 {
			return Event{}, false, fmt.Errorf("%w: %q", ErrMalformedTimestamp, line)
		}
		t, err := decimal.NewFromString(m[1])
		if err != nil || t.IsNegative() {
			return Event{}, false, fmt.Errorf("%w: %q", ErrMalformedTimestamp, line)
		}
		ev = Event{Kind: End, Time: t}
		if dm := durationRe.FindStringSubmatch(line); len(dm) >= 2 {
			d, err := decimal.NewFromString(dm[1])
			if err != nil {
				return Event{}, false, fmt.Errorf("%w: %q", ErrMalformedTimestamp, line)
			}
			ev.SilenceDuration = d
		}
		return ev, true, nil
	}

	if strings.Contains(line, "silence_start:") {
		m := startRe.FindStringSubmatch(line)
		if len(m) < 2 {
			return Event{}, false, fmt.Errorf("%w: %q", ErrMalformedTimestamp, line)
		}
		t, err := decimal.NewFromString(m[1])
		if err != nil || t.IsNegative() {
			return Event{}, false, fmt.Errorf("%w: %q", ErrMalformedTimestamp, line)
		}
		return Event{Kind: Start, Time: t}, true, nil
	}

	return Event{}, false, nil
}
