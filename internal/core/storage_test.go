package core

import (
	"context"
	"path/filepath"
	"testing"

	"mchroma/internal/config"
	"mchroma/internal/infra/persistence/memory"
	"mchroma/internal/infra/persistence/sqlite"
)

func TestOpenSessionStoreDrivers(t *testing.T) {
	ctx := context.Background()

	store, err := OpenSessionStore(ctx, config.StorageSettings{})
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("default store = %T, want memory", store)
	}

	path := filepath.Join(t.TempDir(), "session.db")
	store, err = OpenSessionStore(ctx, config.StorageSettings{Driver: "sqlite", SQLitePath: path})
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer store.Close()
	if s, ok := store.(*sqlite.Store); !ok || s.Path() != path {
		t.Fatalf("sqlite store = %T", store)
	}

	if _, err := OpenSessionStore(ctx, config.StorageSettings{Driver: "redis"}); err == nil {
		t.Fatal("expected unknown driver error")
	}
}

func TestServiceRestoresFromSQLite(t *testing.T) {
	ctx := context.Background()
	settings := config.StorageSettings{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "session.db")}

	store, err := OpenSessionStore(ctx, settings)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	svc := newTestService(t, WithSessionStore(store))
	importPulse(t, svc, pulseExport)
	if _, err := svc.AddPeak(ctx, 1, 7, ""); err != nil {
		t.Fatalf("add peak: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenSessionStore(ctx, settings)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	restored := newTestService(t, WithSessionStore(reopened))
	rows, err := restored.PeakTable()
	if err != nil || len(rows) != 1 {
		t.Fatalf("rows = %d %v", len(rows), err)
	}
}
