// Package monitor holds the service's prometheus collectors and turns account
// events into operator alerts.
package monitor

import (
	"context"

	"signal-executor/internal/events"
	"signal-executor/pkg/logging"

	"go.uber.org/zap"
)

// Monitor watches the event bus and forwards alerts to its sinks.
type Monitor struct {
	Bus    *events.Bus
	Rules  []Rule
	Sinks  []AlertSink
	Logger *zap.SugaredLogger
}

// Start subscribes to every account topic and returns a channel that is
// closed once the watcher exits after ctx is done.
func (m *Monitor) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	log := logging.OrNop(m.Logger).Named("monitor")
	if m.Bus == nil || len(m.Sinks) == 0 {
		log.Warnw("monitor not fully configured; skipping")
		close(done)
		return done
	}
	rules := m.Rules
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	stream, unsub := m.Bus.Subscribe(events.EventAll, 256)
	go func() {
		defer close(done)
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-stream:
				if !ok {
					return
				}
				ev, ok := msg.(events.AccountEvent)
				if !ok {
					continue
				}
				m.dispatch(ctx, log, rules, ev)
			}
		}
	}()
	return done
}

func (m *Monitor) dispatch(ctx context.Context, log *zap.SugaredLogger, rules []Rule, ev events.AccountEvent) {
	for _, rule := range rules {
		a, ok := rule(ev)
		if !ok {
			continue
		}
		for _, s := range m.Sinks {
			if err := s.Send(ctx, a); err != nil {
				log.Warnw("alert delivery failed", "account", a.AccountID, "event", a.Event, "error", err)
			}
		}
	}
}
