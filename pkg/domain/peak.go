package domain

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// AreaMode selects the linear correction subtracted from a peak's summed signal.
type AreaMode string

// Supported integration modes.
const (
	// AreaBaseBase integrates down to zero on both sides.
	AreaBaseBase AreaMode = "bb"
	// AreaValleyValley drops a line between the two endpoint signals.
	AreaValleyValley AreaMode = "vv"
	// AreaBaseValley drops a line from zero at the start to the end signal.
	AreaBaseValley AreaMode = "bv"
	// AreaValleyBase drops a line from the start signal to zero at the end.
	AreaValleyBase AreaMode = "vb"
)

// AreaModes lists every supported mode in display order.
var AreaModes = []AreaMode{AreaBaseBase, AreaValleyValley, AreaBaseValley, AreaValleyBase}

// ParseAreaMode validates a mode string. Empty selects AreaBaseBase.
func ParseAreaMode(s string) (AreaMode, error) {
	if s == "" {
		return AreaBaseBase, nil
	}
	for _, m := range AreaModes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAreaMode, s)
}

// AreaSet holds one value per integration mode.
type AreaSet struct {
	BB float64 `json:"bb"`
	VV float64 `json:"vv"`
	BV float64 `json:"bv"`
	VB float64 `json:"vb"`
}

// Get returns the value for mode.
func (a AreaSet) Get(mode AreaMode) float64 {
	switch mode {
	case AreaValleyValley:
		return a.VV
	case AreaBaseValley:
		return a.BV
	case AreaValleyBase:
		return a.VB
	default:
		return a.BB
	}
}

// Bounds is an inclusive pair of sample indices.
type Bounds struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether index i lies within the bounds.
func (b Bounds) Contains(i int) bool { return i >= b.Start && i <= b.End }

// Peak is a bounded feature of a trace. It is never mutated after
// construction apart from RetentionIndex, which only reordering assigns.
type Peak struct {
	I0 int     `json:"i0"`
	IF int     `json:"if"`
	T0 float64 `json:"t0"`
	TF float64 `json:"tf"`

	TimeSeries   []float64 `json:"time_series"`
	SignalSeries []float64 `json:"signal_series"`

	Height      float64  `json:"height"`
	AreaMode    AreaMode `json:"area_mode"`
	Area        float64  `json:"area"`
	Areas       AreaSet  `json:"areas"`
	Corrections AreaSet  `json:"corrections"`

	RetentionTime float64 `json:"retention_time"`
	// WidthHH and Plates are zero when Degenerate is set.
	WidthHH    float64 `json:"width_hh"`
	Plates     float64 `json:"plates"`
	Degenerate bool    `json:"degenerate"`

	RetentionIndex int `json:"retention_index"`
}

// NewPeak builds a peak from the trace's current series restricted to b.
// A peak without a computable half-height width is still returned; the
// condition is reported in the Result.
func NewPeak(t *Trace, b Bounds, mode AreaMode) (Peak, Result, error) {
	n := len(t.SignalSeries)
	if n == 0 {
		return Peak{}, Result{}, ErrEmptyTrace
	}
	if err := checkIndex(b.Start, n); err != nil {
		return Peak{}, Result{}, fmt.Errorf("peak start: %w", err)
	}
	if err := checkIndex(b.End, n); err != nil {
		return Peak{}, Result{}, fmt.Errorf("peak end: %w", err)
	}
	if b.Start >= b.End {
		return Peak{}, Result{}, fmt.Errorf("%w: start %d must precede end %d", ErrInvalidBounds, b.Start, b.End)
	}
	mode, err := ParseAreaMode(string(mode))
	if err != nil {
		return Peak{}, Result{}, err
	}

	p := Peak{
		I0:           b.Start,
		IF:           b.End,
		T0:           t.TimeSeries[b.Start],
		TF:           t.TimeSeries[b.End],
		TimeSeries:   append([]float64(nil), t.TimeSeries[b.Start:b.End+1]...),
		SignalSeries: append([]float64(nil), t.SignalSeries[b.Start:b.End+1]...),
		AreaMode:     mode,
	}
	p.Height = floats.Max(p.SignalSeries)
	p.integrate()
	p.locateRetention()

	var res Result
	if !p.measureWidth() {
		res.Add(Issue{
			Code:     IssueDegeneratePeak,
			Severity: SeverityWarn,
			Message:  fmt.Sprintf("peak [%d, %d] in %s: half-height width unavailable, plate count not computed", p.I0, p.IF, t.label()),
			Trace:    t.ID,
		})
	}
	return p, res, nil
}

// Bounds returns the peak's index bounds.
func (p Peak) Bounds() Bounds { return Bounds{Start: p.I0, End: p.IF} }

// integrate computes the raw sum and the four corrections. Each correction is
// the discrete sum of a line running from a at the first sample to b at the
// last, which is n*(a+b)/2.
func (p *Peak) integrate() {
	n := float64(len(p.SignalSeries))
	s0 := p.SignalSeries[0]
	sf := p.SignalSeries[len(p.SignalSeries)-1]
	line := func(a, b float64) float64 { return n * (a + b) / 2 }

	p.Corrections = AreaSet{
		BB: 0,
		VV: line(s0, sf),
		BV: line(0, sf),
		VB: line(s0, 0),
	}
	sum := floats.Sum(p.SignalSeries)
	p.Areas = AreaSet{
		BB: sum - p.Corrections.BB,
		VV: sum - p.Corrections.VV,
		BV: sum - p.Corrections.BV,
		VB: sum - p.Corrections.VB,
	}
	p.Area = p.Areas.Get(p.AreaMode)
}

// locateRetention uses the middle of a run of tied maxima, which happens when
// the detector saturates.
func (p *Peak) locateRetention() {
	var tied []int
	for i, s := range p.SignalSeries {
		if s == p.Height {
			tied = append(tied, i)
		}
	}
	p.RetentionTime = p.TimeSeries[tied[(len(tied)-1)/2]]
}

func (p *Peak) measureWidth() bool {
	half := p.Height / 2
	first, last := -1, -1
	for i, s := range p.SignalSeries {
		if s > half {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 || first == last {
		p.Degenerate = true
		return false
	}
	w := p.TimeSeries[last] - p.TimeSeries[first]
	if w == 0 {
		p.Degenerate = true
		return false
	}
	p.WidthHH = w
	ratio := p.RetentionTime / w
	p.Plates = 5.54 * ratio * ratio
	return true
}

func (p Peak) clone() Peak {
	cp := p
	cp.TimeSeries = append([]float64(nil), p.TimeSeries...)
	cp.SignalSeries = append([]float64(nil), p.SignalSeries...)
	return cp
}
