// Package domain defines the chromatogram trace and peak entities, the
// analysis operations over them, and the undo history over sets of traces.
package domain

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Defaults applied when TraceOptions leaves a field at zero.
const (
	DefaultNoiseTolerance = 50.0
	// DefaultSamplingRate is in samples per minute.
	DefaultSamplingRate = 600.0384
)

// TraceOptions configures a new trace.
type TraceOptions struct {
	Name  string
	Color string
	// TimeScale is minutes per sample. Zero derives it from DefaultSamplingRate.
	TimeScale      float64
	NoiseTolerance float64
	// SearchRadius caps the bound search in samples each way. Zero searches the whole trace.
	SearchRadius int
}

// Trace is a chromatogram: raw detector counts, the series derived from them
// and the peaks picked on it.
type Trace struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Color  string `json:"color"`
	Hidden bool   `json:"hidden"`

	RawSamples       []float64 `json:"raw_samples"`
	SignalSeries     []float64 `json:"signal_series"`
	Baseline         []float64 `json:"baseline"`
	TimeSeries       []float64 `json:"time_series"`
	DerivativeSeries []float64 `json:"derivative_series"`

	TimeScale   float64 `json:"time_scale"`
	TimeShift   float64 `json:"time_shift"`
	SignalScale float64 `json:"signal_scale"`

	NoiseTolerance float64 `json:"noise_tolerance"`
	SearchRadius   int     `json:"search_radius"`

	// Peaks are kept in ascending retention time.
	Peaks []Peak `json:"peaks"`
	// Reference names a peak by its bounds; it does not own the peak.
	Reference *Bounds   `json:"reference,omitempty"`
	Table     []PeakRow `json:"peak_table"`
}

// NewTrace builds a trace from raw samples.
func NewTrace(samples []float64, opts TraceOptions) (*Trace, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyTrace
	}
	for i, v := range samples {
		if !finite(v) {
			return nil, fmt.Errorf("%w: sample %d is %v", ErrInvalidSample, i, v)
		}
	}
	if opts.TimeScale < 0 || !finite(opts.TimeScale) {
		return nil, fmt.Errorf("%w: time scale %v", ErrInvalidFactor, opts.TimeScale)
	}
	if opts.TimeScale == 0 {
		opts.TimeScale = 1 / DefaultSamplingRate
	}
	if opts.NoiseTolerance == 0 {
		opts.NoiseTolerance = DefaultNoiseTolerance
	}
	n := len(samples)
	t := &Trace{
		ID:             uuid.NewString(),
		Name:           opts.Name,
		Color:          opts.Color,
		RawSamples:     append([]float64(nil), samples...),
		SignalSeries:   append([]float64(nil), samples...),
		Baseline:       make([]float64, n),
		TimeSeries:     make([]float64, n),
		TimeScale:      opts.TimeScale,
		SignalScale:    1,
		NoiseTolerance: opts.NoiseTolerance,
		SearchRadius:   opts.SearchRadius,
		Peaks:          []Peak{},
		Table:          []PeakRow{},
	}
	t.regenerateTime()
	t.update()
	return t, nil
}

// NewTraceFromCounts builds a trace from integer detector counts.
func NewTraceFromCounts(counts []int, opts TraceOptions) (*Trace, error) {
	samples := make([]float64, len(counts))
	for i, c := range counts {
		samples[i] = float64(c)
	}
	return NewTrace(samples, opts)
}

// Len returns the number of samples.
func (t *Trace) Len() int { return len(t.RawSamples) }

// TimeAt returns the time label of sample i.
func (t *Trace) TimeAt(i int) (float64, error) {
	if err := checkIndex(i, t.Len()); err != nil {
		return 0, err
	}
	return t.TimeSeries[i], nil
}

// IndexAt converts a time to the nearest sample index. The result is not
// range checked.
func (t *Trace) IndexAt(time float64) int {
	return int(math.Round((time - t.TimeShift) / t.TimeScale))
}

// BoundsAt converts a pair of times to index bounds, ordered.
func (t *Trace) BoundsAt(t0, tf float64) Bounds {
	i0, i1 := t.IndexAt(t0), t.IndexAt(tf)
	if i1 < i0 {
		i0, i1 = i1, i0
	}
	return Bounds{Start: i0, End: i1}
}

// Peak returns the peak at 0-based position pos.
func (t *Trace) Peak(pos int) (Peak, error) {
	if pos < 0 || pos >= len(t.Peaks) {
		return Peak{}, fmt.Errorf("%w: position %d of %d", ErrPeakNotFound, pos, len(t.Peaks))
	}
	return t.Peaks[pos], nil
}

// AddPeak constructs a peak over b and refreshes the derived state.
func (t *Trace) AddPeak(b Bounds, mode AreaMode) (Result, error) {
	res, err := t.appendPeak(b, mode)
	if err != nil {
		return Result{}, err
	}
	res.Merge(t.update())
	return res, nil
}

// AddPeakAt is AddPeak with time coordinates.
func (t *Trace) AddPeakAt(t0, tf float64, mode AreaMode) (Result, error) {
	return t.AddPeak(t.BoundsAt(t0, tf), mode)
}

func (t *Trace) appendPeak(b Bounds, mode AreaMode) (Result, error) {
	p, res, err := NewPeak(t, b, mode)
	if err != nil {
		return Result{}, err
	}
	res = t.tagPeak(res, len(t.Peaks)+1)
	t.Peaks = append(t.Peaks, p)
	return res, nil
}

// RemovePeak drops the peak at position pos. A reference to it is cleared.
func (t *Trace) RemovePeak(pos int) (Result, error) {
	p, err := t.Peak(pos)
	if err != nil {
		return Result{}, err
	}
	if t.Reference != nil && *t.Reference == p.Bounds() {
		t.Reference = nil
	}
	t.Peaks = append(t.Peaks[:pos], t.Peaks[pos+1:]...)
	return t.update(), nil
}

// SetPeakAreaMode replaces the peak at pos with one integrated in mode.
func (t *Trace) SetPeakAreaMode(pos int, mode AreaMode) (Result, error) {
	old, err := t.Peak(pos)
	if err != nil {
		return Result{}, err
	}
	p, res, err := NewPeak(t, old.Bounds(), mode)
	if err != nil {
		return Result{}, err
	}
	t.Peaks[pos] = p
	res = t.tagPeak(res, pos+1)
	res.Merge(t.update())
	return res, nil
}

// ReferencePeak returns the current peak matching the stored reference bounds.
func (t *Trace) ReferencePeak() (Peak, bool) {
	if t.Reference == nil {
		return Peak{}, false
	}
	for _, p := range t.Peaks {
		if p.Bounds() == *t.Reference {
			return p, true
		}
	}
	return Peak{}, false
}

// Refresh recomputes the derivative, peak order and table.
func (t *Trace) Refresh() Result { return t.update() }

func (t *Trace) update() Result {
	t.computeDerivative()
	res := t.ReindexPeaks()
	t.rebuildTable()
	return res
}

// computeDerivative stores the right-handed slope. The final element is a
// zero sentinel so the series length matches the signal.
func (t *Trace) computeDerivative() {
	n := len(t.SignalSeries)
	if cap(t.DerivativeSeries) < n {
		t.DerivativeSeries = make([]float64, n)
	}
	t.DerivativeSeries = t.DerivativeSeries[:n]
	for i := 0; i < n-1; i++ {
		t.DerivativeSeries[i] = t.SignalSeries[i+1] - t.SignalSeries[i]
	}
	t.DerivativeSeries[n-1] = 0
}

func (t *Trace) regenerateTime() {
	for i := range t.TimeSeries {
		t.TimeSeries[i] = float64(i)*t.TimeScale + t.TimeShift
	}
}

// rederive rebuilds every peak from its stored index bounds and mode.
func (t *Trace) rederive() (Result, error) {
	var res Result
	for i, old := range t.Peaks {
		p, pres, err := NewPeak(t, old.Bounds(), old.AreaMode)
		if err != nil {
			return Result{}, fmt.Errorf("rederive peak %d: %w", i+1, err)
		}
		t.Peaks[i] = p
		res.Merge(t.tagPeak(pres, i+1))
	}
	res.Merge(t.update())
	return res, nil
}

func (t *Trace) tagPeak(res Result, pos int) Result {
	for i := range res.Issues {
		res.Issues[i].Peak = pos
	}
	return res
}

func (t *Trace) label() string {
	if t.Name != "" {
		return t.Name
	}
	return "trace " + t.ID
}

// Clone returns a deep copy sharing no series with t.
func (t *Trace) Clone() *Trace {
	if t == nil {
		return nil
	}
	cp := *t
	cp.RawSamples = append([]float64(nil), t.RawSamples...)
	cp.SignalSeries = append([]float64(nil), t.SignalSeries...)
	cp.Baseline = append([]float64(nil), t.Baseline...)
	cp.TimeSeries = append([]float64(nil), t.TimeSeries...)
	cp.DerivativeSeries = append([]float64(nil), t.DerivativeSeries...)
	cp.Peaks = make([]Peak, len(t.Peaks))
	for i, p := range t.Peaks {
		cp.Peaks[i] = p.clone()
	}
	if t.Reference != nil {
		ref := *t.Reference
		cp.Reference = &ref
	}
	cp.Table = append([]PeakRow(nil), t.Table...)
	return &cp
}
