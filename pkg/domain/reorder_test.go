package domain

import "testing"

var twinSamples = []float64{0, 0, 100, 500, 1000, 500, 100, 0, 0, 0, 100, 500, 1000, 500, 100, 0, 0}

func TestReindexPeaksSortsByRetention(t *testing.T) {
	tr := newUnitTrace(t, twinSamples)
	for _, b := range []Bounds{{Start: 9, End: 15}, {Start: 1, End: 7}} {
		if _, err := tr.AddPeak(b, AreaBaseBase); err != nil {
			t.Fatalf("add %+v: %v", b, err)
		}
	}
	for i, p := range tr.Peaks {
		if p.RetentionIndex != i+1 {
			t.Fatalf("peak %d has index %d", i, p.RetentionIndex)
		}
		if i > 0 && tr.Peaks[i-1].RetentionTime > p.RetentionTime {
			t.Fatalf("retention times out of order: %v then %v", tr.Peaks[i-1].RetentionTime, p.RetentionTime)
		}
	}
	if tr.Peaks[0].RetentionTime != 4 || tr.Peaks[1].RetentionTime != 12 {
		t.Fatalf("unexpected order: %v, %v", tr.Peaks[0].RetentionTime, tr.Peaks[1].RetentionTime)
	}
	if tr.Table[0].RetentionTime != 4 || tr.Table[1].RetentionIndex != 2 {
		t.Fatalf("table not rebuilt: %+v", tr.Table)
	}
}

func TestReindexPeaksSmallLists(t *testing.T) {
	tr := newUnitTrace(t, scenarioSamples)
	if res := tr.ReindexPeaks(); len(res.Issues) != 0 || len(tr.Peaks) != 0 {
		t.Fatalf("empty reindex: %+v", res)
	}
	if _, err := tr.AddPeak(Bounds{Start: 1, End: 7}, AreaBaseBase); err != nil {
		t.Fatalf("add: %v", err)
	}
	tr.Peaks[0].RetentionIndex = 0
	tr.ReindexPeaks()
	if len(tr.Peaks) != 1 || tr.Peaks[0].RetentionIndex != 1 {
		t.Fatalf("single peak: %+v", tr.Peaks)
	}
}

func TestReindexPeaksDuplicateRetention(t *testing.T) {
	tr := newUnitTrace(t, scenarioSamples)
	if _, err := tr.AddPeak(Bounds{Start: 1, End: 7}, AreaBaseBase); err != nil {
		t.Fatalf("add: %v", err)
	}
	res, err := tr.AddPeak(Bounds{Start: 2, End: 6}, AreaBaseBase)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !res.Has(IssueDuplicateRetention) || res.HasBlocking() {
		t.Fatalf("expected duplicate warning, got %+v", res)
	}
	// Ties keep insertion order.
	if tr.Peaks[0].Bounds() != (Bounds{Start: 1, End: 7}) || tr.Peaks[1].RetentionIndex != 2 {
		t.Fatalf("tie order: %+v", tr.Peaks)
	}
}
