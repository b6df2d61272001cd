package core

import (
	"context"
	"time"
)

// MetricsRecorder receives one observation per service operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer opens a span around each service operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is closed with the operation's error, nil on success.
type TraceSpan interface {
	End(err error)
}

// AuditStatus is the outcome recorded in an AuditEntry.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntity names what an operation acts on.
type AuditEntity string

const (
	EntityTrace   AuditEntity = "trace"
	EntityPeak    AuditEntity = "peak"
	EntitySession AuditEntity = "session"
	EntityExport  AuditEntity = "export"
)

// AuditAction classifies an operation.
type AuditAction string

const (
	ActionCreate AuditAction = "create"
	ActionUpdate AuditAction = "update"
	ActionDelete AuditAction = "delete"
	ActionRead   AuditAction = "read"
	ActionRevert AuditAction = "revert"
)

// AuditEntry describes one completed mutating operation.
type AuditEntry struct {
	Operation string
	Entity    AuditEntity
	Action    AuditAction
	EntityID  string
	Status    AuditStatus
	Duration  time.Duration
	Timestamp time.Time
	// Issues holds the messages reported by the operation, if any.
	Issues []string
}

// AuditRecorder stores audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock. Times are returned in UTC.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f().UTC()
}

type operationMeta struct {
	entity AuditEntity
	action AuditAction
}

// auditedOperations lists the operations that produce audit entries.
var auditedOperations = map[string]operationMeta{
	"import_trace":           {EntityTrace, ActionCreate},
	"import_blob":            {EntityTrace, ActionCreate},
	"import_file":            {EntityTrace, ActionCreate},
	"set_active":             {EntitySession, ActionUpdate},
	"add_peak":               {EntityPeak, ActionCreate},
	"one_point_peak":         {EntityPeak, ActionCreate},
	"threshold_autopick":     {EntityPeak, ActionCreate},
	"remove_peak":            {EntityPeak, ActionDelete},
	"set_peak_area_mode":     {EntityPeak, ActionUpdate},
	"baseline_correct":       {EntityTrace, ActionUpdate},
	"scale_signal":           {EntityTrace, ActionUpdate},
	"shift_time":             {EntityTrace, ActionUpdate},
	"scale_time":             {EntityTrace, ActionUpdate},
	"normalize":              {EntityTrace, ActionUpdate},
	"shift_by_reference":     {EntityTrace, ActionUpdate},
	"normalize_to_reference": {EntityTrace, ActionUpdate},
	"set_hidden":             {EntityTrace, ActionUpdate},
	"rename":                 {EntityTrace, ActionUpdate},
	"set_color":              {EntityTrace, ActionUpdate},
	"undo":                   {EntitySession, ActionRevert},
	"redo":                   {EntitySession, ActionRevert},
	"publish_csv":            {EntityExport, ActionCreate},
	"delete_export":          {EntityExport, ActionDelete},
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}
