package domain

import "strconv"

// PeakTableColumns is the fixed column order of the peak summary.
var PeakTableColumns = []string{
	"Retention Index",
	"Retention Time",
	"Area",
	"Height",
	"Width",
	"Plate Count",
}

// PeakRow is one line of a trace's peak summary.
type PeakRow struct {
	RetentionIndex int     `json:"retention_index"`
	RetentionTime  float64 `json:"retention_time"`
	Area           float64 `json:"area"`
	Height         float64 `json:"height"`
	Width          float64 `json:"width"`
	PlateCount     float64 `json:"plate_count"`
	// Degenerate rows leave Width and PlateCount blank when rendered.
	Degenerate bool `json:"degenerate"`
}

// Values renders the row in PeakTableColumns order.
func (r PeakRow) Values() []string {
	width, plates := "", ""
	if !r.Degenerate {
		width = formatFloat(r.Width)
		plates = formatFloat(r.PlateCount)
	}
	return []string{
		strconv.Itoa(r.RetentionIndex),
		formatFloat(r.RetentionTime),
		formatFloat(r.Area),
		formatFloat(r.Height),
		width,
		plates,
	}
}

// PeakTable returns a copy of the trace's peak summary.
func (t *Trace) PeakTable() []PeakRow {
	return append([]PeakRow(nil), t.Table...)
}

func (t *Trace) rebuildTable() {
	rows := make([]PeakRow, 0, len(t.Peaks))
	for _, p := range t.Peaks {
		rows = append(rows, PeakRow{
			RetentionIndex: p.RetentionIndex,
			RetentionTime:  p.RetentionTime,
			Area:           p.Area,
			Height:         p.Height,
			Width:          p.WidthHH,
			PlateCount:     p.Plates,
			Degenerate:     p.Degenerate,
		})
	}
	t.Table = rows
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
