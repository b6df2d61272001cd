package domain

import (
	"context"
	"fmt"
)

// SaveState is an independent copy of every trace plus the active selection.
type SaveState struct {
	Traces      []*Trace `json:"traces"`
	ActiveIndex int      `json:"active_index"`
}

// Clone returns a deep copy of the state.
func (s SaveState) Clone() SaveState {
	cp := SaveState{ActiveIndex: s.ActiveIndex, Traces: make([]*Trace, len(s.Traces))}
	for i, tr := range s.Traces {
		cp.Traces[i] = tr.Clone()
	}
	return cp
}

// Active returns the selected trace.
func (s *SaveState) Active() (*Trace, error) {
	if len(s.Traces) == 0 {
		return nil, ErrNoActiveTrace
	}
	if err := checkIndex(s.ActiveIndex, len(s.Traces)); err != nil {
		return nil, fmt.Errorf("active trace: %w", err)
	}
	return s.Traces[s.ActiveIndex], nil
}

// History is a stack of save states with a cursor. Index 0 always holds the
// initial state.
type History struct {
	states  []SaveState
	present int
	// pending holds the redo states cut by the last Save until the next
	// Save, Undo or Redo commits it.
	pending []SaveState
}

// NewHistory returns a history holding one empty state.
func NewHistory() *History {
	return &History{states: []SaveState{{Traces: []*Trace{}}}}
}

// Save drops any redo states and pushes a copy of the present state, which
// becomes the new present. Call it before a mutation that should be undoable.
func (h *History) Save() {
	h.pending = append([]SaveState(nil), h.states[h.present+1:]...)
	h.states = append(h.states[:h.present+1:h.present+1], h.states[h.present].Clone())
	h.present++
}

// Discard drops the present state and steps back, restoring any redo states
// the matching Save cut. It undoes a Save whose mutation failed.
func (h *History) Discard() {
	if h.present == 0 {
		return
	}
	h.states = append(h.states[:h.present], h.pending...)
	h.present--
	h.pending = nil
}

// Present returns the current state. The pointer is invalidated by Save.
func (h *History) Present() *SaveState { return &h.states[h.present] }

// PresentIndex returns the cursor position.
func (h *History) PresentIndex() int { return h.present }

// Len returns the number of stored states.
func (h *History) Len() int { return len(h.states) }

// Undo steps back one state. At the bottom of the stack it reports and does nothing.
func (h *History) Undo() Result {
	if h.present == 0 {
		return blocked(IssueNothingToUndo, "", "Nothing to undo!")
	}
	h.present--
	h.pending = nil
	return Result{}
}

// Redo steps forward one state. At the top of the stack it reports and does nothing.
func (h *History) Redo() Result {
	if h.present >= len(h.states)-1 {
		return blocked(IssueNothingToRedo, "", "Nothing to redo!")
	}
	h.present++
	h.pending = nil
	return Result{}
}

// HistorySnapshot is the persisted form of a History.
type HistorySnapshot struct {
	States  []SaveState `json:"states"`
	Present int         `json:"present"`
}

// Snapshot returns a deep copy of the history.
func (h *History) Snapshot() HistorySnapshot {
	snap := HistorySnapshot{Present: h.present, States: make([]SaveState, len(h.states))}
	for i, st := range h.states {
		snap.States[i] = st.Clone()
	}
	return snap
}

// RestoreHistory rebuilds a history from a snapshot, refreshing each trace's
// derived state.
func RestoreHistory(snap HistorySnapshot) (*History, error) {
	if len(snap.States) == 0 {
		return NewHistory(), nil
	}
	if err := checkIndex(snap.Present, len(snap.States)); err != nil {
		return nil, fmt.Errorf("history cursor: %w", err)
	}
	h := &History{present: snap.Present, states: make([]SaveState, len(snap.States))}
	for i, st := range snap.States {
		cp := st.Clone()
		if cp.Traces == nil {
			cp.Traces = []*Trace{}
		}
		if len(cp.Traces) > 0 {
			if err := checkIndex(cp.ActiveIndex, len(cp.Traces)); err != nil {
				return nil, fmt.Errorf("state %d active trace: %w", i, err)
			}
		}
		for _, tr := range cp.Traces {
			if tr == nil {
				return nil, fmt.Errorf("state %d: nil trace", i)
			}
			if err := tr.validateShape(); err != nil {
				return nil, fmt.Errorf("state %d: %w", i, err)
			}
			tr.Refresh()
		}
		h.states[i] = cp
	}
	return h, nil
}

func (t *Trace) validateShape() error {
	n := len(t.RawSamples)
	if n == 0 {
		return ErrEmptyTrace
	}
	if len(t.SignalSeries) != n || len(t.Baseline) != n || len(t.TimeSeries) != n {
		return fmt.Errorf("trace %s: series lengths disagree with %d raw samples", t.ID, n)
	}
	if t.TimeScale <= 0 || t.SignalScale == 0 {
		return fmt.Errorf("%w: trace %s has time scale %v and signal scale %v", ErrInvalidFactor, t.ID, t.TimeScale, t.SignalScale)
	}
	for i, p := range t.Peaks {
		if err := checkIndex(p.I0, n); err != nil {
			return fmt.Errorf("trace %s peak %d start: %w", t.ID, i+1, err)
		}
		if err := checkIndex(p.IF, n); err != nil {
			return fmt.Errorf("trace %s peak %d end: %w", t.ID, i+1, err)
		}
		if p.I0 >= p.IF {
			return fmt.Errorf("%w: trace %s peak %d spans [%d, %d]", ErrInvalidBounds, t.ID, i+1, p.I0, p.IF)
		}
	}
	return nil
}

// SessionStore persists a whole history between runs.
type SessionStore interface {
	// Save replaces the stored history.
	Save(ctx context.Context, snap HistorySnapshot) error
	// Load returns the stored history, or false when nothing was saved yet.
	Load(ctx context.Context) (HistorySnapshot, bool, error)
	Close() error
}
