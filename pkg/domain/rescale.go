package domain

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// TimeKind says how a time scale factor is expressed.
type TimeKind string

const (
	// TimePeriod is minutes per sample.
	TimePeriod TimeKind = "period"
	// TimeFrequency is samples per second.
	TimeFrequency TimeKind = "frequency"
)

// Dimension selects the peak quantity used for normalization.
type Dimension string

const (
	DimensionArea   Dimension = "area"
	DimensionHeight Dimension = "height"
)

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// ScaleSignal multiplies the signal scale by factor, or sets it when set is
// true. The signal is always recomputed from the raw samples. A zero factor
// is rejected and leaves the trace untouched.
func (t *Trace) ScaleSignal(factor float64, set bool) (Result, error) {
	if factor == 0 {
		return blocked(IssueZeroScale, t.ID,
			fmt.Sprintf("cannot scale %s by 0: the original magnitude would be lost", t.label())), nil
	}
	if !finite(factor) {
		return blocked(IssueInvalidFactor, t.ID,
			fmt.Sprintf("cannot scale %s by %v", t.label(), factor)), nil
	}
	old := t.SignalScale
	next := factor
	if !set {
		next = old * factor
	}
	// The baseline follows the signal so a correction survives rescaling.
	floats.Scale(next/old, t.Baseline)
	t.SignalScale = next
	floats.ScaleTo(t.SignalSeries, next, t.RawSamples)
	floats.Sub(t.SignalSeries, t.Baseline)
	return t.rederive()
}

// ShiftTime moves the time axis by shift minutes, or sets the shift when set
// is true. Index bounds do not move; only time labels change.
func (t *Trace) ShiftTime(shift float64, set bool) (Result, error) {
	if !finite(shift) {
		return blocked(IssueInvalidFactor, t.ID,
			fmt.Sprintf("cannot shift %s by %v", t.label(), shift)), nil
	}
	if set {
		t.TimeShift = shift
	} else {
		t.TimeShift += shift
	}
	t.regenerateTime()
	return t.rederive()
}

// ScaleTime changes minutes per sample. A period factor applies directly; a
// frequency factor is in samples per second and converts to 1/(60*factor)
// when set, or divides the period when applied cumulatively.
func (t *Trace) ScaleTime(factor float64, kind TimeKind, set bool) (Result, error) {
	if kind != TimePeriod && kind != TimeFrequency {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownTimeKind, kind)
	}
	if !finite(factor) || factor <= 0 {
		return blocked(IssueInvalidFactor, t.ID,
			fmt.Sprintf("time scale factor for %s must be positive, got %v", t.label(), factor)), nil
	}
	switch {
	case kind == TimePeriod && set:
		t.TimeScale = factor
	case kind == TimePeriod:
		t.TimeScale *= factor
	case set:
		t.TimeScale = 1 / (60 * factor)
	default:
		t.TimeScale /= factor
	}
	t.regenerateTime()
	return t.rederive()
}

// Normalize rescales the signal so the peak at pos has the target area or
// height, and makes it the reference peak.
func (t *Trace) Normalize(pos int, dim Dimension, target float64) (Result, error) {
	p, err := t.Peak(pos)
	if err != nil {
		return Result{}, err
	}
	var current float64
	switch dim {
	case DimensionArea:
		current = p.Area
	case DimensionHeight:
		current = p.Height
	default:
		return Result{}, fmt.Errorf("domain: unknown normalization dimension %q", dim)
	}
	if current == 0 {
		return blocked(IssueInvalidFactor, t.ID,
			fmt.Sprintf("reference peak %d in %s has zero %s", pos+1, t.label(), dim)), nil
	}
	// The peak was measured at the current scale, so the factor is relative.
	res, err := t.ScaleSignal(target/current, false)
	if err != nil || res.HasBlocking() {
		return res, err
	}
	ref := p.Bounds()
	t.Reference = &ref
	return res, nil
}

// NormalizeToReference is Normalize on the trace's reference peak. A trace
// without one is reported and left untouched.
func (t *Trace) NormalizeToReference(dim Dimension, target float64) (Result, error) {
	ref, ok := t.ReferencePeak()
	if !ok {
		return blocked(IssueNoReference, t.ID,
			fmt.Sprintf("%s has no reference peak; normalize or shift by a peak first", t.label())), nil
	}
	for pos, p := range t.Peaks {
		if p.Bounds() == ref.Bounds() {
			return t.Normalize(pos, dim, target)
		}
	}
	return Result{}, fmt.Errorf("%w: reference %+v", ErrPeakNotFound, ref.Bounds())
}

// ShiftByReference shifts the time axis so the peak at pos elutes at zero and
// makes it the reference peak.
func (t *Trace) ShiftByReference(pos int) (Result, error) {
	p, err := t.Peak(pos)
	if err != nil {
		return Result{}, err
	}
	res, err := t.ShiftTime(-p.RetentionTime, false)
	if err != nil || res.HasBlocking() {
		return res, err
	}
	ref := p.Bounds()
	t.Reference = &ref
	return res, nil
}
