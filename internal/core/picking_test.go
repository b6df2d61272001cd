package core

import "testing"

func TestNewGestureExpectations(t *testing.T) {
	cases := map[GestureMode]int{
		GesturePeakBounds: 2,
		GesturePeakCrest:  1,
		GestureBaseline:   2,
	}
	for mode, want := range cases {
		g, err := NewGesture(mode)
		if err != nil {
			t.Fatalf("%s: %v", mode, err)
		}
		if g.Expected != want || g.Idle() {
			t.Fatalf("%s: %+v", mode, g)
		}
	}
	if _, err := NewGesture("lasso"); err == nil {
		t.Fatal("expected unknown mode error")
	}
	if !(Gesture{}).Idle() {
		t.Fatal("zero gesture not idle")
	}
}

func TestGestureAddSortsAndCopies(t *testing.T) {
	g, _ := NewGesture(GestureBaseline)
	first, done := g.add(9)
	if done || len(first.Points) != 1 {
		t.Fatalf("first = %+v done %v", first, done)
	}
	second, done := first.add(3)
	if !done || second.Points[0] != 3 || second.Points[1] != 9 {
		t.Fatalf("second = %+v done %v", second, done)
	}
	if len(first.Points) != 1 || first.Points[0] != 9 {
		t.Fatalf("earlier gesture mutated: %+v", first)
	}
	if c := second.Cancel(); !c.Idle() || len(c.Points) != 0 {
		t.Fatalf("cancel = %+v", c)
	}
}
