// Package timerange provides half-open time intervals [Start, End) and
// the overlap math shared by slot generation and booking. All
// comparisons are instant-based; callers resolve wall-clock inputs to
// absolute instants before this layer.
package timerange

import (
	"errors"
	"time"
)

var ErrInvalidRange = errors.New("range start must be before end")

type Range struct {
	Start time.Time
	End   time.Time
}

func New(start, end time.Time) (Range, error) {
	if !start.Before(end) {
		return Range{}, ErrInvalidRange
	}
	return Range{Start: start, End: end}, nil
}

// Overlaps reports whether the two half-open intervals intersect.
// Ranges that merely touch (a.End == b.Start) do not overlap.
func (r Range) Overlaps(o Range) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

// Contains reports whether t falls inside [Start, End).
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

func (r Range) Shift(d time.Duration) Range {
	return Range{Start: r.Start.Add(d), End: r.End.Add(d)}
}

func (r Range) Duration() time.Duration {
	return r.End.Sub(r.Start)
}
