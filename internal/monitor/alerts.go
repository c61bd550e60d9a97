package monitor

import (
	"context"

	"go.uber.org/zap"
)

// AlertSink delivers alerts somewhere an operator will see them.
type AlertSink interface {
	Send(ctx context.Context, a Alert) error
}

// LogSink writes alerts to the structured log at a level matching severity.
type LogSink struct {
	Log *zap.SugaredLogger
}

func (s LogSink) Send(_ context.Context, a Alert) error {
	kv := []any{"account", a.AccountID, "event", a.Event, "severity", a.Severity}
	switch a.Severity {
	case SeverityCritical:
		s.Log.Errorw(a.Message, kv...)
	case SeverityWarning:
		s.Log.Warnw(a.Message, kv...)
	default:
		s.Log.Infow(a.Message, kv...)
	}
	return nil
}

// SinkFunc adapts a function to AlertSink.
type SinkFunc func(ctx context.Context, a Alert) error

func (f SinkFunc) Send(ctx context.Context, a Alert) error { return f(ctx, a) }
