package db

import "time"

// Trade outcomes.
const (
	OutcomePlaced = "placed"
	OutcomeFailed = "failed"
)

// TradeRecord is one placement attempt.
type TradeRecord struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	Outcome     string    `json:"outcome"`
	Symbol      string    `json:"symbol"`
	Side        string    `json:"side"`
	Size        string    `json:"size"`
	EntryPrice  string    `json:"entry_price"`
	TakeProfit  string    `json:"take_profit"`
	StopLoss    string    `json:"stop_loss"`
	TPKind      string    `json:"tp_kind"`
	SLKind      string    `json:"sl_kind"`
	OrderID     string    `json:"order_id"`
	OrderStatus string    `json:"order_status"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProfitLock is one trailing-stop update.
type ProfitLock struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	Symbol      string    `json:"symbol"`
	ProfitPct   string    `json:"profit_pct"`
	NewStop     string    `json:"new_stop"`
	StopOrderID string    `json:"stop_order_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// AccountEvent is a state transition of an account (breaker, pause, resume).
type AccountEvent struct {
	ID        int64     `json:"id"`
	AccountID string    `json:"account_id"`
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}
