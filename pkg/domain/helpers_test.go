package domain

import (
	"math"
	"testing"
)

// scenarioSamples is the reference pulse: detect_bounds(4) must give [1,7].
var scenarioSamples = []float64{0, 0, 100, 500, 1000, 500, 100, 0, 0}

func newUnitTrace(t *testing.T, samples []float64) *Trace {
	t.Helper()
	tr, err := NewTrace(samples, TraceOptions{Name: "test", TimeScale: 1})
	if err != nil {
		t.Fatalf("new trace: %v", err)
	}
	return tr
}

func approx(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func assertLengths(t *testing.T, tr *Trace) {
	t.Helper()
	n := len(tr.RawSamples)
	for name, got := range map[string]int{
		"signal":     len(tr.SignalSeries),
		"baseline":   len(tr.Baseline),
		"time":       len(tr.TimeSeries),
		"derivative": len(tr.DerivativeSeries),
	} {
		if got != n {
			t.Fatalf("%s length %d, want %d", name, got, n)
		}
	}
	if tr.DerivativeSeries[n-1] != 0 {
		t.Fatalf("derivative sentinel = %v, want 0", tr.DerivativeSeries[n-1])
	}
}
