package core

import (
	"go.uber.org/zap"

	"mchroma/pkg/domain"
)

// Logger is the structured logging surface the service writes to. Arguments
// after msg are alternating keys and values.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ZapLogger adapts a zap logger to Logger.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger wraps l. A nil logger yields a no-op zap logger.
func NewZapLogger(l *zap.Logger) *ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapLogger{sugar: l.Sugar()}
}

func (z *ZapLogger) Debug(msg string, args ...any) { z.sugar.Debugw(msg, args...) }
func (z *ZapLogger) Info(msg string, args ...any)  { z.sugar.Infow(msg, args...) }
func (z *ZapLogger) Warn(msg string, args ...any)  { z.sugar.Warnw(msg, args...) }
func (z *ZapLogger) Error(msg string, args ...any) { z.sugar.Errorw(msg, args...) }

// logIssues writes each issue at the level matching its severity.
func logIssues(l Logger, op string, res domain.Result) {
	for _, is := range res.Issues {
		kv := []any{"operation", op, "code", string(is.Code), "trace", is.Trace}
		if is.Peak > 0 {
			kv = append(kv, "peak", is.Peak)
		}
		switch is.Severity {
		case domain.SeverityBlock:
			l.Error(is.Message, kv...)
		case domain.SeverityWarn:
			l.Warn(is.Message, kv...)
		default:
			l.Info(is.Message, kv...)
		}
	}
}
