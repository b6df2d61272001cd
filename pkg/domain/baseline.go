package domain

import "fmt"

// BaselineCorrect subtracts the line through the signal at b.Start and b.End
// from the whole trace. Corrections accumulate in Baseline. Peaks keep their
// index bounds and are rebuilt on the corrected signal.
func (t *Trace) BaselineCorrect(b Bounds) (Result, error) {
	n := t.Len()
	if n == 0 {
		return Result{}, ErrEmptyTrace
	}
	if err := checkIndex(b.Start, n); err != nil {
		return Result{}, fmt.Errorf("baseline start: %w", err)
	}
	if err := checkIndex(b.End, n); err != nil {
		return Result{}, fmt.Errorf("baseline end: %w", err)
	}
	if b.Start == b.End {
		return Result{}, fmt.Errorf("%w: baseline needs two distinct points, got %d twice", ErrInvalidBounds, b.Start)
	}
	s0 := t.SignalSeries[b.Start]
	sf := t.SignalSeries[b.End]
	slope := (sf - s0) / float64(b.End-b.Start)
	for i := range t.SignalSeries {
		line := slope*float64(i-b.Start) + s0
		t.Baseline[i] += line
		t.SignalSeries[i] -= line
	}
	return t.rederive()
}

// BaselineCorrectAt is BaselineCorrect with time coordinates.
func (t *Trace) BaselineCorrectAt(t0, tf float64) (Result, error) {
	return t.BaselineCorrect(t.BoundsAt(t0, tf))
}
