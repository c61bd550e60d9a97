package events

import "time"

// Event enumerates topics published by account executors.
type Event string

const (
	// EventAll is a subscription-only wildcard.
	EventAll Event = "*"

	EventTradePlaced    Event = "trade.placed"
	EventTradeFailed    Event = "trade.failed"
	EventProfitLock     Event = "profit.lock"
	EventBreakerTripped Event = "breaker.tripped"
	EventTradingState   Event = "account.trading"
	EventMonitoring     Event = "account.monitoring"
)

// AccountEvent is the payload of every account topic.
type AccountEvent struct {
	Type      Event     `json:"type"`
	AccountID string    `json:"account_id"`
	Time      time.Time `json:"time"`
	Data      any       `json:"data,omitempty"`
}

// StateChange is the Data of EventTradingState and EventMonitoring.
type StateChange struct {
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason,omitempty"`
}

// BreakerTrip is the Data of EventBreakerTripped.
type BreakerTrip struct {
	Equity    string `json:"equity"`
	Threshold string `json:"threshold"`
	Flattened int    `json:"flattened"`
}

var now = time.Now
