package domain

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPeakRowValues(t *testing.T) {
	row := PeakRow{RetentionIndex: 2, RetentionTime: 5, Area: 4321.5, Height: 1000, Width: 4, PlateCount: 8.65625}
	want := []string{"2", "5", "4321.5", "1000", "4", "8.65625"}
	if diff := cmp.Diff(want, row.Values()); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
	row.Degenerate = true
	if got := row.Values(); got[4] != "" || got[5] != "" {
		t.Fatalf("degenerate row should blank width and plates: %v", got)
	}
	if len(PeakTableColumns) != len(want) {
		t.Fatalf("column count %d", len(PeakTableColumns))
	}
}

func TestPeakTableCopies(t *testing.T) {
	tr := scenarioWithPeak(t)
	rows := tr.PeakTable()
	if len(rows) != 1 || rows[0].Area != 2200 || rows[0].RetentionIndex != 1 || !rows[0].Degenerate {
		t.Fatalf("rows = %+v", rows)
	}
	rows[0].Area = 0
	if tr.PeakTable()[0].Area != 2200 {
		t.Fatalf("PeakTable must return a copy")
	}
}
