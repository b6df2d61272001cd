package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"mchroma/internal/infra/persistence/postgres/testutil"
	"mchroma/pkg/domain"
)

func sampleSnapshot(t *testing.T) domain.HistorySnapshot {
	t.Helper()
	tr, err := domain.NewTrace([]float64{0, 5, 20, 5, 0}, domain.TraceOptions{Name: "pg-run", TimeScale: 1})
	if err != nil {
		t.Fatalf("new trace: %v", err)
	}
	h := domain.NewHistory()
	h.Save()
	h.Present().Traces = append(h.Present().Traces, tr)
	return h.Snapshot()
}

func openStub(t *testing.T, conn *testutil.StubConn) (*Store, error) {
	t.Helper()
	restore := OverrideSQLOpen(func(driverName, _ string) (*sql.DB, error) {
		if driverName != defaultDriver {
			t.Fatalf("driver = %s", driverName)
		}
		return conn.Open(), nil
	})
	defer restore()
	return NewStore(context.Background(), "")
}

func TestStoreSaveAndReload(t *testing.T) {
	ctx := context.Background()
	_, conn := testutil.NewStubDB()
	store, err := openStub(t, conn)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if !strings.Contains(conn.Execs[0], "JSONB") {
		t.Fatalf("expected state table DDL first, got %q", conn.Execs[0])
	}
	if _, ok, _ := store.Load(ctx); ok {
		t.Fatalf("expected empty store")
	}
	snap := sampleSnapshot(t)
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("resave: %v", err)
	}
	if n := len(conn.Tables["state"]); n != 2 {
		t.Fatalf("expected two bucket rows, got %d", n)
	}
	_ = store.Close()

	reopened, err := openStub(t, conn)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	got, ok, err := reopened.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.Present != 1 || got.States[1].Traces[0].Name != "pg-run" {
		t.Fatalf("unexpected snapshot %+v", got.Present)
	}
}

func TestStoreOpenFailures(t *testing.T) {
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, errors.New("no driver") })
	if _, err := NewStore(context.Background(), "postgres://x"); err == nil {
		t.Fatalf("expected open error")
	}
	restore()

	_, conn := testutil.NewStubDB()
	conn.FailPing = true
	if _, err := openStub(t, conn); err == nil || !strings.Contains(err.Error(), "ping") {
		t.Fatalf("expected ping error, got %v", err)
	}
	conn.FailPing = false
	conn.FailExec = true
	if _, err := openStub(t, conn); err == nil || !strings.Contains(err.Error(), "state table") {
		t.Fatalf("expected ddl error, got %v", err)
	}
	conn.FailExec = false
	conn.Tables["state"] = []map[string]any{{"bucket": "states", "payload": []byte("{")}}
	if _, err := openStub(t, conn); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestStoreSaveFailuresKeepCache(t *testing.T) {
	ctx := context.Background()
	_, conn := testutil.NewStubDB()
	store, err := openStub(t, conn)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()
	snap := sampleSnapshot(t)

	conn.FailBegin = true
	if err := store.Save(ctx, snap); err == nil {
		t.Fatalf("expected begin error")
	}
	conn.FailBegin = false
	conn.FailTables = map[string]bool{"state": true}
	if err := store.Save(ctx, snap); err == nil {
		t.Fatalf("expected upsert error")
	}
	conn.FailTables = nil
	conn.FailCommit = true
	if err := store.Save(ctx, snap); err == nil {
		t.Fatalf("expected commit error")
	}
	if _, ok, _ := store.Load(ctx); ok {
		t.Fatalf("failed saves must not update the cache")
	}
}
