// Package core runs an interactive analysis session: an undoable history of
// traces, the operations that mutate it, persistence of the history and
// export of peak tables.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"mchroma/internal/adapters/chromtext"
	"mchroma/internal/adapters/peaktable"
	"mchroma/internal/blob"
	"mchroma/internal/config"
	"mchroma/pkg/domain"
)

var (
	// ErrNoBlobStore is returned by blob-backed operations on a service built without one.
	ErrNoBlobStore = errors.New("core: no blob store configured")
	// ErrNoSessionStore is returned by Persist on a service built without one.
	ErrNoSessionStore = errors.New("core: no session store configured")
	// ErrNotExport is returned when a key lies outside the export prefix.
	ErrNotExport = errors.New("core: key is not an export")

	errNotText = errors.New("blob is not a text export")
)

// Service owns a session history. Every mutating method saves a snapshot,
// applies the change to the present state and discards the snapshot when the
// change fails or is blocked. Applied changes are persisted when a session
// store is configured. Methods are safe for concurrent use.
type Service struct {
	mu         sync.Mutex
	history    *domain.History
	opts       serviceOptions
	colorIndex int
}

// NewService builds a service, restoring the history held by the session
// store if there is one.
func NewService(ctx context.Context, opts ...ServiceOption) (*Service, error) {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	s := &Service{history: domain.NewHistory(), opts: o}
	if o.sessions == nil {
		return s, nil
	}
	snap, ok, err := o.sessions.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if ok {
		h, err := domain.RestoreHistory(snap)
		if err != nil {
			return nil, fmt.Errorf("restore session: %w", err)
		}
		s.history = h
		s.colorIndex = len(h.Present().Traces)
		o.logger.Info("session restored", "states", h.Len(), "present", h.PresentIndex())
	}
	return s, nil
}

// Settings returns the analysis settings in use.
func (s *Service) Settings() config.Settings { return s.opts.settings }

// State returns a copy of the present state.
func (s *Service) State() domain.SaveState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Present().Clone()
}

// Snapshot returns a copy of the whole history.
func (s *Service) Snapshot() domain.HistorySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Snapshot()
}

func (s *Service) run(ctx context.Context, op string, fn func(context.Context) (domain.Result, error)) (domain.Result, error) {
	ctx, span := s.opts.tracer.Start(ctx, op)
	start := s.opts.clock.Now()
	res, err := fn(ctx)
	duration := s.opts.clock.Now().Sub(start)

	outcome := err
	if outcome == nil && res.HasBlocking() {
		outcome = fmt.Errorf("%s blocked: %s", op, res.Messages())
	}
	span.End(outcome)
	s.opts.metrics.Observe(ctx, op, outcome == nil, duration)
	s.recordAudit(ctx, op, duration, res, outcome)
	logIssues(s.opts.logger, op, res)
	if err != nil {
		s.opts.logger.Error("operation failed", "operation", op, "error", err)
	} else {
		s.opts.logger.Debug("operation completed", "operation", op, "duration", duration)
	}
	return res, err
}

func (s *Service) recordAudit(ctx context.Context, op string, duration time.Duration, res domain.Result, outcome error) {
	meta, ok := auditedOperations[op]
	if !ok {
		return
	}
	status := AuditStatusSuccess
	if outcome != nil {
		status = AuditStatusError
	}
	entry := AuditEntry{
		Operation: op,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  s.activeID(),
		Status:    status,
		Duration:  duration,
		Timestamp: s.opts.clock.Now(),
	}
	for _, is := range res.Issues {
		entry.Issues = append(entry.Issues, is.Message)
	}
	s.opts.audit.Record(ctx, entry)
}

func (s *Service) activeID() string {
	tr, err := s.history.Present().Active()
	if err != nil {
		return ""
	}
	return tr.ID
}

// mutate runs fn on a fresh snapshot of the present state. Callers hold s.mu.
func (s *Service) mutate(ctx context.Context, op string, fn func(*domain.SaveState) (domain.Result, error)) (domain.Result, error) {
	return s.run(ctx, op, func(ctx context.Context) (domain.Result, error) {
		s.history.Save()
		res, err := fn(s.history.Present())
		if err != nil || res.HasBlocking() {
			s.history.Discard()
			return res, err
		}
		return res, s.persist(ctx)
	})
}

func (s *Service) mutateActive(ctx context.Context, op string, fn func(*domain.Trace) (domain.Result, error)) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutate(ctx, op, func(st *domain.SaveState) (domain.Result, error) {
		tr, err := st.Active()
		if err != nil {
			return domain.Result{}, err
		}
		return fn(tr)
	})
}

func (s *Service) mutateTrace(ctx context.Context, op string, index int, fn func(*domain.Trace)) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutate(ctx, op, func(st *domain.SaveState) (domain.Result, error) {
		if index < 0 || index >= len(st.Traces) {
			return domain.Result{}, fmt.Errorf("trace: %w", domain.IndexError{Index: index, Len: len(st.Traces)})
		}
		fn(st.Traces[index])
		return domain.Result{}, nil
	})
}

func (s *Service) persist(ctx context.Context) error {
	if s.opts.sessions == nil {
		return nil
	}
	if err := s.opts.sessions.Save(ctx, s.history.Snapshot()); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

func (s *Service) areaMode(mode domain.AreaMode) domain.AreaMode {
	if mode == "" {
		return s.opts.settings.DefaultAreaMode()
	}
	return mode
}

type opener func(context.Context) (io.ReadCloser, error)

// importFrom appends the trace read by open and makes it active. A missing
// source or a source without samples is reported, not returned.
func (s *Service) importFrom(ctx context.Context, op, source, name string, open opener) (string, domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var id string
	res, err := s.mutate(ctx, op, func(st *domain.SaveState) (domain.Result, error) {
		rc, err := open(ctx)
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, blob.ErrNotFound) {
			return domain.Blocked(domain.IssueMissingSource, "", fmt.Sprintf("Please select a file! %s was not found", source)), nil
		}
		if errors.Is(err, errNotText) {
			return domain.Blocked(domain.IssueUnsupportedContent, "", fmt.Sprintf("%s: %v", source, err)), nil
		}
		if err != nil {
			return domain.Result{}, err
		}
		f, err := chromtext.Parse(rc)
		_ = rc.Close()
		if err != nil {
			return domain.Result{}, err
		}
		if len(f.Counts) == 0 {
			return domain.Blocked(domain.IssueNoSamples, "", fmt.Sprintf("no samples found in %s", source)), nil
		}
		tr, err := f.Trace(s.opts.settings.TraceOptions(name, s.colorIndex))
		if err != nil {
			return domain.Result{}, err
		}
		st.Traces = append(st.Traces, tr)
		st.ActiveIndex = len(st.Traces) - 1
		s.colorIndex++
		id = tr.ID
		return domain.Result{}, nil
	})
	return id, res, err
}

// ImportTrace reads a detector export from r. An empty name keeps the name
// found in the export. It returns the new trace's ID.
func (s *Service) ImportTrace(ctx context.Context, r io.Reader, name string) (string, domain.Result, error) {
	return s.importFrom(ctx, "import_trace", "input", name, func(context.Context) (io.ReadCloser, error) {
		if r == nil {
			return nil, fs.ErrNotExist
		}
		return io.NopCloser(r), nil
	})
}

// ImportFile reads a detector export from path.
func (s *Service) ImportFile(ctx context.Context, path, name string) (string, domain.Result, error) {
	return s.importFrom(ctx, "import_file", path, name, func(context.Context) (io.ReadCloser, error) {
		// #nosec G304 -- the operator chooses which export to analyse
		return os.Open(path)
	})
}

// ImportBlob reads a detector export stored under key in the blob store. A
// blob stored with a content type other than text is reported, not read.
func (s *Service) ImportBlob(ctx context.Context, key, name string) (string, domain.Result, error) {
	return s.importFrom(ctx, "import_blob", key, name, func(ctx context.Context) (io.ReadCloser, error) {
		if s.opts.blobs == nil {
			return nil, ErrNoBlobStore
		}
		info, err := s.opts.blobs.Head(ctx, key)
		if err != nil {
			return nil, err
		}
		if info.ContentType != "" && !strings.HasPrefix(info.ContentType, blob.ContentTypeText) {
			return nil, fmt.Errorf("%w: stored as %s", errNotText, info.ContentType)
		}
		_, rc, err := s.opts.blobs.Get(ctx, key)
		return rc, err
	})
}

// SetActive selects the trace that peak and rescale operations apply to.
func (s *Service) SetActive(ctx context.Context, index int) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutate(ctx, "set_active", func(st *domain.SaveState) (domain.Result, error) {
		if index < 0 || index >= len(st.Traces) {
			return domain.Result{}, fmt.Errorf("set active: %w", domain.IndexError{Index: index, Len: len(st.Traces)})
		}
		st.ActiveIndex = index
		return domain.Result{}, nil
	})
}

// AddPeak adds the peak between times t0 and tf. An empty mode uses the
// configured default area mode.
func (s *Service) AddPeak(ctx context.Context, t0, tf float64, mode domain.AreaMode) (domain.Result, error) {
	return s.mutateActive(ctx, "add_peak", func(tr *domain.Trace) (domain.Result, error) {
		return tr.AddPeakAt(t0, tf, s.areaMode(mode))
	})
}

// OnePointPeak detects and adds the peak around time t.
func (s *Service) OnePointPeak(ctx context.Context, t float64, mode domain.AreaMode) (domain.Result, error) {
	return s.mutateActive(ctx, "one_point_peak", func(tr *domain.Trace) (domain.Result, error) {
		return tr.OnePointPeak(tr.IndexAt(t), s.areaMode(mode))
	})
}

// ThresholdAutopick adds a peak at every rise of the signal above threshold.
func (s *Service) ThresholdAutopick(ctx context.Context, threshold float64, mode domain.AreaMode) (domain.Result, error) {
	return s.mutateActive(ctx, "threshold_autopick", func(tr *domain.Trace) (domain.Result, error) {
		return tr.ThresholdAutopick(threshold, s.areaMode(mode))
	})
}

// BaselineCorrect subtracts the line through the signal at times t0 and tf.
func (s *Service) BaselineCorrect(ctx context.Context, t0, tf float64) (domain.Result, error) {
	return s.mutateActive(ctx, "baseline_correct", func(tr *domain.Trace) (domain.Result, error) {
		return tr.BaselineCorrectAt(t0, tf)
	})
}

func (s *Service) ScaleSignal(ctx context.Context, factor float64, set bool) (domain.Result, error) {
	return s.mutateActive(ctx, "scale_signal", func(tr *domain.Trace) (domain.Result, error) {
		return tr.ScaleSignal(factor, set)
	})
}

func (s *Service) ShiftTime(ctx context.Context, shift float64, set bool) (domain.Result, error) {
	return s.mutateActive(ctx, "shift_time", func(tr *domain.Trace) (domain.Result, error) {
		return tr.ShiftTime(shift, set)
	})
}

func (s *Service) ScaleTime(ctx context.Context, factor float64, kind domain.TimeKind, set bool) (domain.Result, error) {
	return s.mutateActive(ctx, "scale_time", func(tr *domain.Trace) (domain.Result, error) {
		return tr.ScaleTime(factor, kind, set)
	})
}

// Normalize rescales the active trace so the peak at pos reaches target.
func (s *Service) Normalize(ctx context.Context, pos int, dim domain.Dimension, target float64) (domain.Result, error) {
	return s.mutateActive(ctx, "normalize", func(tr *domain.Trace) (domain.Result, error) {
		return tr.Normalize(pos, dim, target)
	})
}

// NormalizeToReference rescales the active trace so its reference peak reaches target.
func (s *Service) NormalizeToReference(ctx context.Context, dim domain.Dimension, target float64) (domain.Result, error) {
	return s.mutateActive(ctx, "normalize_to_reference", func(tr *domain.Trace) (domain.Result, error) {
		return tr.NormalizeToReference(dim, target)
	})
}

func (s *Service) ShiftByReference(ctx context.Context, pos int) (domain.Result, error) {
	return s.mutateActive(ctx, "shift_by_reference", func(tr *domain.Trace) (domain.Result, error) {
		return tr.ShiftByReference(pos)
	})
}

func (s *Service) RemovePeak(ctx context.Context, pos int) (domain.Result, error) {
	return s.mutateActive(ctx, "remove_peak", func(tr *domain.Trace) (domain.Result, error) {
		return tr.RemovePeak(pos)
	})
}

func (s *Service) SetPeakAreaMode(ctx context.Context, pos int, mode domain.AreaMode) (domain.Result, error) {
	return s.mutateActive(ctx, "set_peak_area_mode", func(tr *domain.Trace) (domain.Result, error) {
		return tr.SetPeakAreaMode(pos, mode)
	})
}

// SetHidden hides or shows the trace at index. Hidden traces are left out of exports.
func (s *Service) SetHidden(ctx context.Context, index int, hidden bool) (domain.Result, error) {
	return s.mutateTrace(ctx, "set_hidden", index, func(tr *domain.Trace) { tr.Hidden = hidden })
}

func (s *Service) Rename(ctx context.Context, index int, name string) (domain.Result, error) {
	return s.mutateTrace(ctx, "rename", index, func(tr *domain.Trace) { tr.Name = name })
}

func (s *Service) SetColor(ctx context.Context, index int, color string) (domain.Result, error) {
	return s.mutateTrace(ctx, "set_color", index, func(tr *domain.Trace) { tr.Color = color })
}

// Undo steps the history back. At the initial state it reports and does nothing.
func (s *Service) Undo(ctx context.Context) (domain.Result, error) {
	return s.step(ctx, "undo", s.history.Undo)
}

// Redo steps the history forward. At the newest state it reports and does nothing.
func (s *Service) Redo(ctx context.Context) (domain.Result, error) {
	return s.step(ctx, "redo", s.history.Redo)
}

func (s *Service) step(ctx context.Context, op string, move func() domain.Result) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run(ctx, op, func(ctx context.Context) (domain.Result, error) {
		res := move()
		if res.HasBlocking() {
			return res, nil
		}
		return res, s.persist(ctx)
	})
}

// PeakTable returns the active trace's peak summary.
func (s *Service) PeakTable() ([]domain.PeakRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tr, err := s.history.Present().Active()
	if err != nil {
		return nil, err
	}
	return tr.PeakTable(), nil
}

func (s *Service) visibleTables() []peaktable.Table {
	var tables []peaktable.Table
	for _, tr := range s.history.Present().Traces {
		if !tr.Hidden {
			tables = append(tables, peaktable.FromTrace(tr))
		}
	}
	return tables
}

// ExportCSV writes the peak tables of every visible trace to w.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, opts peaktable.Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.run(ctx, "export_csv", func(context.Context) (domain.Result, error) {
		return domain.Result{}, peaktable.Write(w, s.visibleTables(), opts)
	})
	return err
}

// PublishCSV stores the visible peak tables under the configured export prefix.
func (s *Service) PublishCSV(ctx context.Context, opts peaktable.Options) (blob.Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var info blob.Info
	_, err := s.run(ctx, "publish_csv", func(ctx context.Context) (domain.Result, error) {
		if s.opts.blobs == nil {
			return domain.Result{}, ErrNoBlobStore
		}
		art, err := peaktable.Materialize(s.visibleTables(), opts, s.opts.settings.Blob.ExportPrefix, s.opts.clock.Now())
		if err != nil {
			return domain.Result{}, err
		}
		info, err = peaktable.Publish(ctx, s.opts.blobs, art)
		return domain.Result{}, err
	})
	return info, err
}

func (s *Service) exportStore(key string) (blob.Store, error) {
	if s.opts.blobs == nil {
		return nil, ErrNoBlobStore
	}
	if !strings.HasPrefix(key, s.opts.settings.Blob.ExportPrefix) {
		return nil, fmt.Errorf("%w: %s", ErrNotExport, key)
	}
	return s.opts.blobs, nil
}

// ListExports returns the published peak tables, oldest first.
func (s *Service) ListExports(ctx context.Context) ([]blob.Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var infos []blob.Info
	_, err := s.run(ctx, "list_exports", func(ctx context.Context) (domain.Result, error) {
		prefix := s.opts.settings.Blob.ExportPrefix
		store, err := s.exportStore(prefix)
		if err != nil {
			return domain.Result{}, err
		}
		infos, err = store.List(ctx, prefix)
		return domain.Result{}, err
	})
	return infos, err
}

// ExportURL returns a GET URL for the published export at key.
func (s *Service) ExportURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var u string
	_, err := s.run(ctx, "export_url", func(ctx context.Context) (domain.Result, error) {
		store, err := s.exportStore(key)
		if err != nil {
			return domain.Result{}, err
		}
		if _, err := store.Head(ctx, key); err != nil {
			return domain.Result{}, err
		}
		u, err = store.PresignURL(ctx, key, blob.SignedURLOptions{Method: http.MethodGet, Expiry: expiry})
		return domain.Result{}, err
	})
	return u, err
}

// DeleteExport removes the published export at key and reports whether it existed.
func (s *Service) DeleteExport(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var existed bool
	_, err := s.run(ctx, "delete_export", func(ctx context.Context) (domain.Result, error) {
		store, err := s.exportStore(key)
		if err != nil {
			return domain.Result{}, err
		}
		existed, err = store.Delete(ctx, key)
		return domain.Result{}, err
	})
	return existed, err
}

// PruneExports deletes all but the newest keep exports and returns the
// deleted keys. Export keys start with their UTC creation time, so key order
// is age order.
func (s *Service) PruneExports(ctx context.Context, keep int) ([]string, error) {
	if keep < 0 {
		return nil, fmt.Errorf("prune exports: keep must not be negative, got %d", keep)
	}
	infos, err := s.ListExports(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	var deleted []string
	for _, info := range infos[:max(0, len(infos)-keep)] {
		ok, err := s.DeleteExport(ctx, info.Key)
		if err != nil {
			return deleted, err
		}
		if ok {
			deleted = append(deleted, info.Key)
		}
	}
	return deleted, nil
}

// HandleClick feeds one picking coordinate (a time) into g. While points are
// still expected the buffered gesture is returned. Once complete the gesture's
// operation runs on the active trace and an idle gesture is returned, whatever
// the outcome. Clicks on an idle gesture are ignored.
func (s *Service) HandleClick(ctx context.Context, g Gesture, x float64) (Gesture, domain.Result, error) {
	if g.Idle() {
		return g, domain.Result{}, nil
	}
	next, done := g.add(x)
	if !done {
		return next, domain.Result{}, nil
	}
	var (
		res domain.Result
		err error
	)
	switch next.Mode {
	case GesturePeakBounds:
		res, err = s.AddPeak(ctx, next.Points[0], next.Points[1], "")
	case GesturePeakCrest:
		res, err = s.OnePointPeak(ctx, next.Points[0], "")
	case GestureBaseline:
		res, err = s.BaselineCorrect(ctx, next.Points[0], next.Points[1])
	default:
		err = fmt.Errorf("unknown gesture mode %q", next.Mode)
	}
	return Gesture{}, res, err
}

// Persist writes the whole history to the session store.
func (s *Service) Persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opts.sessions == nil {
		return ErrNoSessionStore
	}
	_, err := s.run(ctx, "persist", func(ctx context.Context) (domain.Result, error) {
		return domain.Result{}, s.persist(ctx)
	})
	return err
}
