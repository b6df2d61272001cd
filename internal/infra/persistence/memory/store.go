// Package memory keeps a session history in process memory. The SQL stores
// embed it as their read cache and share its bucket codec.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"mchroma/pkg/domain"
)

var _ domain.SessionStore = (*Store)(nil)

// Snapshot buckets, in write order.
const (
	BucketStates  = "states"
	BucketPresent = "present"
)

// Buckets lists every bucket a snapshot is split into.
var Buckets = []string{BucketStates, BucketPresent}

// Store holds the last saved history.
type Store struct {
	mu    sync.RWMutex
	snap  domain.HistorySnapshot
	saved bool
}

// NewStore returns an empty store.
func NewStore() *Store { return &Store{} }

// Save replaces the stored history with a deep copy of snap.
func (s *Store) Save(_ context.Context, snap domain.HistorySnapshot) error {
	if err := validateCursor(snap); err != nil {
		return err
	}
	s.Import(snap)
	return nil
}

// Load returns a deep copy of the stored history.
func (s *Store) Load(_ context.Context) (domain.HistorySnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.saved {
		return domain.HistorySnapshot{}, false, nil
	}
	return cloneSnapshot(s.snap), true, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Import seeds the store without validation, e.g. from an already decoded
// database snapshot.
func (s *Store) Import(snap domain.HistorySnapshot) {
	cp := cloneSnapshot(snap)
	s.mu.Lock()
	s.snap, s.saved = cp, true
	s.mu.Unlock()
}

// EncodeBuckets renders snap as one JSON payload per bucket.
func EncodeBuckets(snap domain.HistorySnapshot) (map[string][]byte, error) {
	if err := validateCursor(snap); err != nil {
		return nil, err
	}
	states, err := json.Marshal(snap.States)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", BucketStates, err)
	}
	present, err := json.Marshal(snap.Present)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", BucketPresent, err)
	}
	return map[string][]byte{BucketStates: states, BucketPresent: present}, nil
}

// DecodeBuckets is the inverse of EncodeBuckets. It reports false when no
// states bucket exists. Unknown buckets are ignored.
func DecodeBuckets(payloads map[string][]byte) (domain.HistorySnapshot, bool, error) {
	var snap domain.HistorySnapshot
	raw, ok := payloads[BucketStates]
	if !ok {
		return snap, false, nil
	}
	if err := json.Unmarshal(raw, &snap.States); err != nil {
		return domain.HistorySnapshot{}, false, fmt.Errorf("decode %s: %w", BucketStates, err)
	}
	if p, ok := payloads[BucketPresent]; ok {
		if err := json.Unmarshal(p, &snap.Present); err != nil {
			return domain.HistorySnapshot{}, false, fmt.Errorf("decode %s: %w", BucketPresent, err)
		}
	}
	if err := validateCursor(snap); err != nil {
		return domain.HistorySnapshot{}, false, err
	}
	return snap, true, nil
}

func validateCursor(snap domain.HistorySnapshot) error {
	if len(snap.States) == 0 && snap.Present == 0 {
		return nil
	}
	if snap.Present < 0 || snap.Present >= len(snap.States) {
		return fmt.Errorf("history cursor %d outside %d states", snap.Present, len(snap.States))
	}
	return nil
}

func cloneSnapshot(snap domain.HistorySnapshot) domain.HistorySnapshot {
	cp := domain.HistorySnapshot{Present: snap.Present, States: make([]domain.SaveState, len(snap.States))}
	for i, st := range snap.States {
		cp.States[i] = st.Clone()
	}
	return cp
}
