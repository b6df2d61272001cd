package domain

import (
	"errors"
	"testing"
)

func TestScenarioPeak(t *testing.T) {
	tr := newUnitTrace(t, scenarioSamples)
	res, err := tr.AddPeak(Bounds{Start: 1, End: 7}, AreaBaseBase)
	if err != nil {
		t.Fatalf("add peak: %v", err)
	}
	p := tr.Peaks[0]
	if p.Height != 1000 {
		t.Fatalf("height = %v, want 1000", p.Height)
	}
	if p.Area != 2200 || p.Areas.BB != 2200 {
		t.Fatalf("area = %v (bb %v), want 2200", p.Area, p.Areas.BB)
	}
	if p.RetentionTime != 4 {
		t.Fatalf("retention time = %v, want 4", p.RetentionTime)
	}
	if p.T0 != 1 || p.TF != 7 {
		t.Fatalf("time bounds = %v,%v", p.T0, p.TF)
	}
	// Only the crest exceeds half height, so width is unavailable.
	if !p.Degenerate || !res.Has(IssueDegeneratePeak) {
		t.Fatalf("expected degenerate peak report, got %+v", res)
	}
	if res.HasBlocking() {
		t.Fatalf("degenerate peak must not block")
	}
}

func TestPeakAreaModes(t *testing.T) {
	tr := newUnitTrace(t, []float64{10, 10, 100, 500, 1000, 500, 100, 30, 30})
	b := Bounds{Start: 1, End: 7}
	want := map[AreaMode]float64{
		AreaBaseBase:     2240,
		AreaValleyValley: 2100,
		AreaBaseValley:   2135,
		AreaValleyBase:   2205,
	}
	for mode, area := range want {
		p, _, err := NewPeak(tr, b, mode)
		if err != nil {
			t.Fatalf("%s: %v", mode, err)
		}
		if !approx(p.Area, area) {
			t.Fatalf("%s area = %v, want %v", mode, p.Area, area)
		}
		if p.Areas.Get(mode) != p.Area {
			t.Fatalf("%s: Areas.Get disagrees with Area", mode)
		}
	}
}

func TestPeakBaseBaseHasNoCorrection(t *testing.T) {
	tr := newUnitTrace(t, []float64{3, 7, 40, 90, 41, 8, 2})
	p, _, err := NewPeak(tr, Bounds{Start: 0, End: 6}, AreaBaseBase)
	if err != nil {
		t.Fatalf("new peak: %v", err)
	}
	if p.Corrections.BB != 0 || p.Area != 191 {
		t.Fatalf("bb correction %v area %v, want 0 and 191", p.Corrections.BB, p.Area)
	}
}

func TestPeakPlateauRetentionUsesMiddle(t *testing.T) {
	tr := newUnitTrace(t, []float64{0, 0, 100, 600, 1000, 1000, 1000, 600, 100, 0, 0})
	p, res, err := NewPeak(tr, Bounds{Start: 1, End: 9}, AreaBaseBase)
	if err != nil {
		t.Fatalf("new peak: %v", err)
	}
	if len(res.Issues) != 0 {
		t.Fatalf("unexpected issues: %+v", res.Issues)
	}
	if p.RetentionTime != 5 {
		t.Fatalf("retention time = %v, want 5", p.RetentionTime)
	}
	if p.WidthHH != 4 {
		t.Fatalf("width = %v, want 4", p.WidthHH)
	}
	if !approx(p.Plates, 5.54*(5.0/4)*(5.0/4)) {
		t.Fatalf("plates = %v", p.Plates)
	}
}

func TestPeakEvenPlateauTakesLowerMiddle(t *testing.T) {
	tr := newUnitTrace(t, []float64{0, 1000, 1000, 0})
	p, _, err := NewPeak(tr, Bounds{Start: 0, End: 3}, AreaBaseBase)
	if err != nil {
		t.Fatalf("new peak: %v", err)
	}
	if p.RetentionTime != 1 {
		t.Fatalf("retention time = %v, want 1", p.RetentionTime)
	}
}

func TestPeakAllZeroIsDegenerate(t *testing.T) {
	tr := newUnitTrace(t, []float64{0, 0, 0, 0})
	p, res, err := NewPeak(tr, Bounds{Start: 0, End: 3}, AreaBaseBase)
	if err != nil {
		t.Fatalf("new peak: %v", err)
	}
	if !p.Degenerate || p.Plates != 0 || p.WidthHH != 0 {
		t.Fatalf("expected unset width/plates, got %+v", p)
	}
	if !res.Has(IssueDegeneratePeak) {
		t.Fatalf("expected degenerate report")
	}
}

func TestPeakBoundsValidation(t *testing.T) {
	tr := newUnitTrace(t, scenarioSamples)
	cases := []struct {
		name string
		b    Bounds
		want error
	}{
		{"negative start", Bounds{Start: -1, End: 3}, ErrIndexOutOfRange},
		{"end past trace", Bounds{Start: 1, End: 9}, ErrIndexOutOfRange},
		{"reversed", Bounds{Start: 5, End: 2}, ErrInvalidBounds},
		{"single sample", Bounds{Start: 4, End: 4}, ErrInvalidBounds},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := NewPeak(tr, tc.b, AreaBaseBase)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
	var ie IndexError
	if _, _, err := NewPeak(tr, Bounds{Start: 0, End: 12}, AreaBaseBase); !errors.As(err, &ie) || ie.Index != 12 || ie.Len != 9 {
		t.Fatalf("expected IndexError{12, 9}, got %v", err)
	}
}

func TestParseAreaMode(t *testing.T) {
	if m, err := ParseAreaMode(""); err != nil || m != AreaBaseBase {
		t.Fatalf("empty mode: %v %v", m, err)
	}
	if m, err := ParseAreaMode("vb"); err != nil || m != AreaValleyBase {
		t.Fatalf("vb: %v %v", m, err)
	}
	if _, err := ParseAreaMode("trapezoid"); !errors.Is(err, ErrUnknownAreaMode) {
		t.Fatalf("expected unknown mode, got %v", err)
	}
	tr := newUnitTrace(t, scenarioSamples)
	if _, err := tr.AddPeak(Bounds{Start: 1, End: 7}, "xx"); !errors.Is(err, ErrUnknownAreaMode) {
		t.Fatalf("add peak with bad mode: %v", err)
	}
	if len(tr.Peaks) != 0 {
		t.Fatalf("failed add must not append")
	}
}

func TestPeakSlicesAreSnapshots(t *testing.T) {
	tr := newUnitTrace(t, scenarioSamples)
	p, _, err := NewPeak(tr, Bounds{Start: 1, End: 7}, AreaBaseBase)
	if err != nil {
		t.Fatalf("new peak: %v", err)
	}
	tr.SignalSeries[4] = -1
	tr.TimeSeries[4] = -1
	if p.SignalSeries[3] != 1000 || p.TimeSeries[3] != 4 {
		t.Fatalf("peak slices must be copies")
	}
}
