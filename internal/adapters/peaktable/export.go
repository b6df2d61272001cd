// Package peaktable renders peak summaries as CSV and publishes them to a
// blob store.
package peaktable

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"mchroma/internal/blob"
	"mchroma/pkg/domain"
)

// TraceColumn is the optional leading column naming each row's trace.
const TraceColumn = "Trace"

// Table is one trace's peak summary.
type Table struct {
	Trace string
	Rows  []domain.PeakRow
}

// FromTrace captures tr's current summary.
func FromTrace(tr *domain.Trace) Table {
	return Table{Trace: tr.Name, Rows: tr.PeakTable()}
}

// Options controls rendering.
type Options struct {
	// IncludeTrace prepends the TraceColumn to every record.
	IncludeTrace bool
}

// Header returns the header record for opts.
func Header(opts Options) []string {
	cols := append([]string(nil), domain.PeakTableColumns...)
	if opts.IncludeTrace {
		cols = append([]string{TraceColumn}, cols...)
	}
	return cols
}

// Write renders a single header followed by every table's rows in order.
func Write(w io.Writer, tables []Table, opts Options) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(opts)); err != nil {
		return err
	}
	for _, tbl := range tables {
		for _, row := range tbl.Rows {
			record := row.Values()
			if opts.IncludeTrace {
				record = append([]string{tbl.Trace}, record...)
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// Artifact is a rendered export ready to store.
type Artifact struct {
	Key         string
	ContentType string
	Payload     []byte
	Metadata    map[string]string
	CreatedAt   time.Time
}

// Materialize renders tables under a key below prefix. Keys embed the
// creation time and a random suffix so repeated exports never collide.
func Materialize(tables []Table, opts Options, prefix string, now time.Time) (Artifact, error) {
	buf := &bytes.Buffer{}
	if err := Write(buf, tables, opts); err != nil {
		return Artifact{}, fmt.Errorf("render peak table: %w", err)
	}
	names := make([]string, 0, len(tables))
	rows := 0
	for _, tbl := range tables {
		names = append(names, tbl.Trace)
		rows += len(tbl.Rows)
	}
	now = now.UTC()
	key := fmt.Sprintf("%s%s-%s.csv", prefix, now.Format("20060102T150405Z"), uuid.NewString()[:8])
	return Artifact{
		Key:         key,
		ContentType: blob.ContentTypeCSV,
		Payload:     buf.Bytes(),
		Metadata: map[string]string{
			"traces": strings.Join(names, ","),
			"rows":   strconv.Itoa(rows),
		},
		CreatedAt: now,
	}, nil
}

// Publish stores the artifact and returns the stored blob's info.
func Publish(ctx context.Context, store blob.Store, art Artifact) (blob.Info, error) {
	info, err := store.Put(ctx, art.Key, bytes.NewReader(art.Payload), blob.PutOptions{
		ContentType: art.ContentType,
		Metadata:    art.Metadata,
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("publish %s: %w", art.Key, err)
	}
	return info, nil
}
