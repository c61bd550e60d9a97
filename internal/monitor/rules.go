package monitor

import (
	"fmt"

	"signal-executor/internal/events"
	"signal-executor/internal/executor"
)

// Severity orders alerts.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is a human-readable notification derived from an account event.
type Alert struct {
	Severity  Severity     `json:"severity"`
	AccountID string       `json:"account_id"`
	Event     events.Event `json:"event"`
	Message   string       `json:"message"`
}

// Rule turns an event into an alert, or reports false to ignore it.
type Rule func(ev events.AccountEvent) (Alert, bool)

// DefaultRules alert on breaker trips, failed placements and operator
// trading changes.
func DefaultRules() []Rule {
	return []Rule{breakerRule, failedTradeRule, tradingStateRule}
}

func breakerRule(ev events.AccountEvent) (Alert, bool) {
	trip, ok := ev.Data.(events.BreakerTrip)
	if ev.Type != events.EventBreakerTripped || !ok {
		return Alert{}, false
	}
	return Alert{
		Severity:  SeverityCritical,
		AccountID: ev.AccountID,
		Event:     ev.Type,
		Message: fmt.Sprintf("balance breaker tripped: equity %s below %s, %d positions flattened, trading disabled",
			trip.Equity, trip.Threshold, trip.Flattened),
	}, true
}

func failedTradeRule(ev events.AccountEvent) (Alert, bool) {
	rec, ok := ev.Data.(executor.TradeRecord)
	if ev.Type != events.EventTradeFailed || !ok {
		return Alert{}, false
	}
	return Alert{
		Severity:  SeverityWarning,
		AccountID: ev.AccountID,
		Event:     ev.Type,
		Message:   fmt.Sprintf("%s %s order failed: %s", rec.Side, rec.Symbol, rec.Error),
	}, true
}

func tradingStateRule(ev events.AccountEvent) (Alert, bool) {
	st, ok := ev.Data.(events.StateChange)
	if ev.Type != events.EventTradingState || !ok {
		return Alert{}, false
	}
	state := "disabled"
	if st.Enabled {
		state = "enabled"
	}
	return Alert{
		Severity:  SeverityInfo,
		AccountID: ev.AccountID,
		Event:     ev.Type,
		Message:   fmt.Sprintf("trading %s by %s", state, st.Reason),
	}, true
}
