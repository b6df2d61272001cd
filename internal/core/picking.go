package core

import (
	"fmt"
	"sort"
)

// GestureMode is the operation a picking gesture resolves to.
type GestureMode string

const (
	GestureIdle GestureMode = ""
	// GesturePeakBounds takes two times and adds the peak between them.
	GesturePeakBounds GestureMode = "peak_bounds"
	// GesturePeakCrest takes one time and detects the peak around it.
	GesturePeakCrest GestureMode = "peak_crest"
	// GestureBaseline takes two times and subtracts the line through them.
	GestureBaseline GestureMode = "baseline"
)

// Gesture is the pending picking state between clicks. The zero value is idle.
type Gesture struct {
	Mode     GestureMode
	Expected int
	Points   []float64
}

// NewGesture starts a gesture of the given mode.
func NewGesture(mode GestureMode) (Gesture, error) {
	switch mode {
	case GesturePeakBounds, GestureBaseline:
		return Gesture{Mode: mode, Expected: 2}, nil
	case GesturePeakCrest:
		return Gesture{Mode: mode, Expected: 1}, nil
	default:
		return Gesture{}, fmt.Errorf("unknown gesture mode %q", mode)
	}
}

// Idle reports whether no gesture is pending.
func (g Gesture) Idle() bool { return g.Mode == GestureIdle || g.Expected == 0 }

// Cancel drops any buffered points.
func (g Gesture) Cancel() Gesture { return Gesture{} }

// add buffers x and reports whether the gesture is complete. Completed
// two-point gestures have their points in ascending order.
func (g Gesture) add(x float64) (Gesture, bool) {
	pts := append(append([]float64(nil), g.Points...), x)
	g.Points = pts
	if len(pts) < g.Expected {
		return g, false
	}
	sort.Float64s(g.Points)
	return g, true
}
