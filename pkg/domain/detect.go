package domain

import (
	"errors"
	"fmt"
	"math"
)

// slopeState is the detector's position on a feature while sweeping.
type slopeState int

const (
	// stateTop is a plateau: derivative within the noise tolerance.
	stateTop slopeState = iota
	// stateLeft is the rising side of a feature.
	stateLeft
	// stateRight is the falling side of a feature.
	stateRight
)

func (s slopeState) String() string {
	switch s {
	case stateLeft:
		return "left"
	case stateRight:
		return "right"
	default:
		return "top"
	}
}

type slope int

const (
	slopeFlat slope = iota
	slopeRising
	slopeFalling
)

func classify(d, tol float64) slope {
	switch {
	case math.Abs(d) <= tol:
		return slopeFlat
	case d > 0:
		return slopeRising
	default:
		return slopeFalling
	}
}

// tolerance scales the configured noise tolerance with the signal so the
// setting stays meaningful after rescaling.
func (t *Trace) tolerance() float64 {
	return t.NoiseTolerance * math.Abs(t.SignalScale)
}

// DetectBounds finds the bounds of the feature containing seed by sweeping
// the derivative outward until it flattens. The result always satisfies
// Start < seed < End.
func (t *Trace) DetectBounds(seed int) (Bounds, error) {
	n := t.Len()
	if n == 0 {
		return Bounds{}, ErrEmptyTrace
	}
	if err := checkIndex(seed, n); err != nil {
		return Bounds{}, fmt.Errorf("seed: %w", err)
	}
	tol := t.tolerance()
	initial := stateTop
	switch classify(t.DerivativeSeries[seed], tol) {
	case slopeRising:
		initial = stateLeft
	case slopeFalling:
		initial = stateRight
	}

	lo, hi := 0, n-2 // n-1 holds the sentinel
	if t.SearchRadius > 0 {
		lo = max(lo, seed-t.SearchRadius)
		hi = min(hi, seed+t.SearchRadius)
	}

	left, err := t.sweepLeft(seed, initial, tol, lo)
	if err != nil {
		return Bounds{}, err
	}
	right, err := t.sweepRight(seed, initial, tol, hi)
	if err != nil {
		return Bounds{}, err
	}
	if left >= seed {
		left = seed - 1
	}
	if right <= seed {
		right = seed + 1
	}
	if left < 0 || right > n-1 {
		return Bounds{}, fmt.Errorf("%w: seed %d sits on the trace edge", ErrBoundsNotFound, seed)
	}
	return Bounds{Start: left, End: right}, nil
}

// sweepLeft walks d[i] for i below seed. d[i] spans samples i and i+1, so a
// stop at i puts the bound on i+1.
func (t *Trace) sweepLeft(seed int, state slopeState, tol float64, lo int) (int, error) {
	for i := seed - 1; i >= lo; i-- {
		s := classify(t.DerivativeSeries[i], tol)
		switch state {
		case stateLeft:
			if s != slopeRising {
				return i + 1, nil
			}
		case stateTop:
			switch s {
			case slopeRising:
				state = stateLeft
			case slopeFalling:
				state = stateRight
			}
		case stateRight:
			switch s {
			case slopeRising:
				state = stateLeft
			case slopeFlat:
				state = stateTop
			}
		}
	}
	return 0, fmt.Errorf("%w: left of %d (stopped in %s)", ErrBoundsNotFound, seed, state)
}

func (t *Trace) sweepRight(seed int, state slopeState, tol float64, hi int) (int, error) {
	for i := seed; i <= hi; i++ {
		s := classify(t.DerivativeSeries[i], tol)
		switch state {
		case stateRight:
			if s != slopeFalling {
				return i, nil
			}
		case stateTop:
			switch s {
			case slopeFalling:
				state = stateRight
			case slopeRising:
				state = stateLeft
			}
		case stateLeft:
			switch s {
			case slopeFalling:
				state = stateRight
			case slopeFlat:
				state = stateTop
			}
		}
	}
	return 0, fmt.Errorf("%w: right of %d (stopped in %s)", ErrBoundsNotFound, seed, state)
}

// OnePointPeak detects the feature around seed and adds it as a peak.
func (t *Trace) OnePointPeak(seed int, mode AreaMode) (Result, error) {
	b, err := t.DetectBounds(seed)
	if err != nil {
		return Result{}, err
	}
	return t.AddPeak(b, mode)
}

// ThresholdAutopick seeds a feature at every upward crossing of threshold and
// lets DetectBounds find its extent. Seeds already covered by a peak are
// skipped. A failed search is reported and the scan carries on.
func (t *Trace) ThresholdAutopick(threshold float64, mode AreaMode) (Result, error) {
	if _, err := ParseAreaMode(string(mode)); err != nil {
		return Result{}, err
	}
	var seeds []int
	above := false
	for i, s := range t.SignalSeries {
		switch {
		case !above && s > threshold:
			seeds = append(seeds, i)
			above = true
		case above && s < threshold:
			above = false
		}
	}

	var res Result
	if len(seeds) == 0 {
		res.Add(Issue{
			Code:     IssueNoSamples,
			Severity: SeverityLog,
			Message:  fmt.Sprintf("no signal above %g in %s", threshold, t.label()),
			Trace:    t.ID,
		})
		return res, nil
	}
	added := 0
	for _, seed := range seeds {
		if t.covered(seed) {
			continue
		}
		b, err := t.DetectBounds(seed)
		if errors.Is(err, ErrBoundsNotFound) {
			res.Add(Issue{
				Code:     IssueBoundsNotFound,
				Severity: SeverityWarn,
				Message:  fmt.Sprintf("no feature bounds around sample %d in %s", seed, t.label()),
				Trace:    t.ID,
			})
			continue
		}
		if err != nil {
			return Result{}, err
		}
		pres, err := t.appendPeak(b, mode)
		if err != nil {
			return Result{}, err
		}
		res.Merge(pres)
		added++
	}
	if added > 0 {
		res.Merge(t.update())
	}
	return res, nil
}

func (t *Trace) covered(i int) bool {
	for _, p := range t.Peaks {
		if p.Bounds().Contains(i) {
			return true
		}
	}
	return false
}
