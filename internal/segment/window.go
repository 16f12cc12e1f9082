package segment

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Static errors for window construction.
var (
	// ErrWindowInverted is returned when the minimum bound exceeds the maximum.
	ErrWindowInverted = errors.New("segment: window minimum exceeds maximum")
	// ErrWindowNegative is returned when a bound is negative.
	ErrWindowNegative = errors.New("segment: window bounds must be non-negative")
)

// Window is the inclusive duration range used to classify a segment as
// plausibly commercial-length.
type Window struct {
	min decimal.Decimal
	max decimal.Decimal
}

// NewWindow builds a Window from inclusive bounds in seconds.
func NewWindow(min, max decimal.Decimal) (Window, error) {
	if min.IsNegative() || max.IsNegative() {
		return Window{}, ErrWindowNegative
	}
	if min.Cmp(max) > 0 {
		return Window{}, fmt.Errorf("%w: %s > %s", ErrWindowInverted, min, max)
	}
	return Window{min: min, max: max}, nil
}

// Contains reports whether d falls inside the window. Both bounds are
// inclusive: a duration exactly equal to the minimum or maximum is accepted.
func (w Window) Contains(d decimal.Decimal) bool {
	return d.Cmp(w.min) >= 0 && d.Cmp(w.max) <= 0
}

// Min returns the inclusive lower bound.
func (w Window) Min() decimal.Decimal { return w.min }

// Max returns the inclusive upper bound.
func (w Window) Max() decimal.Decimal { return w.max }

func (w Window) String() string {
	return fmt.Sprintf("[%ss, %ss]", w.min, w.max)
}
