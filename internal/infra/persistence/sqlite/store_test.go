package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"mchroma/pkg/domain"
)

func sampleSnapshot(t *testing.T, names ...string) domain.HistorySnapshot {
	t.Helper()
	h := domain.NewHistory()
	for _, name := range names {
		tr, err := domain.NewTrace([]float64{0, 5, 20, 5, 0}, domain.TraceOptions{Name: name, TimeScale: 1})
		if err != nil {
			t.Fatalf("new trace: %v", err)
		}
		h.Save()
		h.Present().Traces = append(h.Present().Traces, tr)
	}
	return h.Snapshot()
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.db")
	store, err := NewStore(ctx, path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if store.Path() != path {
		t.Fatalf("path = %s", store.Path())
	}
	if _, ok, err := store.Load(ctx); err != nil || ok {
		t.Fatalf("fresh db load: ok=%v err=%v", ok, err)
	}
	if err := store.Save(ctx, sampleSnapshot(t, "a")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, sampleSnapshot(t, "a", "b")); err != nil {
		t.Fatalf("second save: %v", err)
	}
	var rows int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 2 {
		t.Fatalf("expected upserted buckets, found %d rows", rows)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })
	snap, ok, err := reopened.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if snap.Present != 2 || len(snap.States[2].Traces) != 2 || snap.States[2].Traces[1].Name != "b" {
		t.Fatalf("unexpected snapshot present=%d states=%d", snap.Present, len(snap.States))
	}
	if _, err := domain.RestoreHistory(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
}

func TestStoreRejectsCorruptPayload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "corrupt.db")
	store, err := NewStore(ctx, path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := store.DB().Exec(`INSERT INTO state(bucket,payload) VALUES('states', ?)`, []byte("{")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_ = store.Close()
	if _, err := NewStore(ctx, path); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestStoreSaveRejectsBadCursorWithoutWriting(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(ctx, filepath.Join(t.TempDir(), "s.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	snap := sampleSnapshot(t, "a")
	snap.Present = -1
	if err := store.Save(ctx, snap); err == nil {
		t.Fatalf("expected cursor error")
	}
	var rows int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&rows); err != nil || rows != 0 {
		t.Fatalf("rows=%d err=%v", rows, err)
	}
}
