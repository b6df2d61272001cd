package peaktable

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"mchroma/internal/blob"
	"mchroma/pkg/domain"
)

func sampleTables() []Table {
	return []Table{
		{Trace: "std", Rows: []domain.PeakRow{
			{RetentionIndex: 1, RetentionTime: 1.5, Area: 100, Height: 40, Width: 0.25, PlateCount: 199.44},
		}},
		{Trace: "unknown", Rows: []domain.PeakRow{
			{RetentionIndex: 1, RetentionTime: 0.5, Area: 5, Height: 5, Degenerate: true},
			{RetentionIndex: 2, RetentionTime: 2, Area: 60, Height: 30, Width: 0.5, PlateCount: 88.64},
		}},
	}
}

func TestWriteConcatenatesTables(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleTables(), Options{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := strings.Join([]string{
		"Retention Index,Retention Time,Area,Height,Width,Plate Count",
		"1,1.5,100,40,0.25,199.44",
		"1,0.5,5,5,,",
		"2,2,60,30,0.5,88.64",
		"",
	}, "\n")
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Fatalf("csv (-want +got):\n%s", diff)
	}
}

func TestWriteWithTraceColumn(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleTables(), Options{IncludeTrace: true}); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 || !strings.HasPrefix(lines[0], "Trace,") || !strings.HasPrefix(lines[3], "unknown,2,") {
		t.Fatalf("unexpected lines %q", lines)
	}
}

func TestWriteEmptyHasHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, nil, Options{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if strings.Count(buf.String(), "\n") != 1 {
		t.Fatalf("expected header only, got %q", buf.String())
	}
}

func TestMaterializeAndPublish(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.FixedZone("x", 3600))
	art, err := Materialize(sampleTables(), Options{IncludeTrace: true}, "exports/", now)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if !strings.HasPrefix(art.Key, "exports/20240506T060809Z-") || !strings.HasSuffix(art.Key, ".csv") {
		t.Fatalf("key = %s", art.Key)
	}
	if art.Metadata["traces"] != "std,unknown" || art.Metadata["rows"] != "3" || art.ContentType != blob.ContentTypeCSV {
		t.Fatalf("metadata = %+v", art.Metadata)
	}

	store := blob.NewMemory()
	info, err := Publish(ctx, store, art)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if info.Size != int64(len(art.Payload)) {
		t.Fatalf("size = %d", info.Size)
	}
	_, rc, err := store.Get(ctx, art.Key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if !bytes.Equal(body, art.Payload) {
		t.Fatalf("stored payload differs")
	}
	if _, err := Publish(ctx, store, art); !errors.Is(err, blob.ErrExists) {
		t.Fatalf("expected ErrExists on republish, got %v", err)
	}
}

func TestFromTrace(t *testing.T) {
	tr, err := domain.NewTrace([]float64{0, 0, 10, 40, 10, 0, 0}, domain.TraceOptions{Name: "run", TimeScale: 1})
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	tbl := FromTrace(tr)
	if tbl.Trace != "run" || len(tbl.Rows) != 0 {
		t.Fatalf("unexpected table %+v", tbl)
	}
}
