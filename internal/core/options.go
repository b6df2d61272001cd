package core

import (
	"mchroma/internal/blob"
	"mchroma/internal/config"
	"mchroma/pkg/domain"
)

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	clock    Clock
	logger   Logger
	audit    AuditRecorder
	metrics  MetricsRecorder
	tracer   Tracer
	sessions domain.SessionStore
	blobs    blob.Store
	settings config.Settings
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		clock:    ClockFunc(nil),
		logger:   noopLogger{},
		audit:    noopAuditRecorder{},
		metrics:  noopMetricsRecorder{},
		tracer:   noopTracer{},
		settings: config.Default(),
	}
}

// WithLogger sets the logger. Nil keeps the no-op logger.
func WithLogger(l Logger) ServiceOption {
	return func(o *serviceOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithMetricsRecorder(m MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

func WithTracer(t Tracer) ServiceOption {
	return func(o *serviceOptions) {
		if t != nil {
			o.tracer = t
		}
	}
}

func WithAuditRecorder(a AuditRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if a != nil {
			o.audit = a
		}
	}
}

// WithClock overrides the time source used for audit timestamps and durations.
func WithClock(c Clock) ServiceOption {
	return func(o *serviceOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithSessionStore persists the history after every applied mutation and
// restores it when the service is created.
func WithSessionStore(s domain.SessionStore) ServiceOption {
	return func(o *serviceOptions) { o.sessions = s }
}

// WithBlobStore enables ImportBlob and PublishCSV.
func WithBlobStore(b blob.Store) ServiceOption {
	return func(o *serviceOptions) { o.blobs = b }
}

// WithSettings replaces the default analysis settings.
func WithSettings(s config.Settings) ServiceOption {
	return func(o *serviceOptions) { o.settings = s }
}
