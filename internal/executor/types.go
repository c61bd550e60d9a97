package executor

import (
	"fmt"
	"strings"
	"time"

	"signal-executor/pkg/config"
	"signal-executor/pkg/exchanges/common"

	"github.com/shopspring/decimal"
)

// dust is the position size at or below which a position is treated as flat.
var dust = decimal.RequireFromString("0.00001")

// Config is the immutable per-account configuration.
type Config struct {
	AccountID                   string
	RiskPercentage              decimal.Decimal // percent of equity
	Leverage                    int
	ProfitLockThreshold         decimal.Decimal // fraction of leveraged return
	InitialStopLossPercentage   decimal.Decimal // fraction
	InitialTakeProfitPercentage decimal.Decimal // fraction
	BalanceThreshold            decimal.Decimal // quote currency
	MonitoringActive            bool
	MonitorInterval             time.Duration
	CancelReplacedStops         bool
}

// ConfigFromAccount converts a loaded account entry.
func ConfigFromAccount(a config.Account) Config {
	return Config{
		AccountID:                   a.ID,
		RiskPercentage:              decimal.NewFromFloat(a.RiskPercentage),
		Leverage:                    a.Leverage,
		ProfitLockThreshold:         decimal.NewFromFloat(a.ProfitLockThreshold),
		InitialStopLossPercentage:   decimal.NewFromFloat(a.InitialStopLossPercentage),
		InitialTakeProfitPercentage: decimal.NewFromFloat(a.InitialTakeProfitPercentage),
		BalanceThreshold:            decimal.NewFromFloat(a.BalanceThreshold),
		MonitoringActive:            a.MonitoringActive,
		MonitorInterval:             a.MonitorInterval,
		CancelReplacedStops:         a.CancelReplacedStops,
	}
}

// Signal is a normalized trade instruction.
type Signal struct {
	Symbol string
	Side   common.PositionSide
	TPKind common.OrderKind
	SLKind common.OrderKind
}

// ParseSignal validates raw webhook fields. Take-profit legs default to
// limit and stop-loss legs to market.
func ParseSignal(symbol, side, tpKind, slKind string) (Signal, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Signal{}, fmt.Errorf("%w: symbol is required", ErrInvalidSignal)
	}
	ps, ok := common.ParsePositionSide(side)
	if !ok {
		return Signal{}, fmt.Errorf("%w: side %q must be long, short, buy or sell", ErrInvalidSignal, side)
	}
	tp, ok := common.ParseOrderKind(tpKind, common.KindLimit)
	if !ok {
		return Signal{}, fmt.Errorf("%w: tpOrderType %q must be market or limit", ErrInvalidSignal, tpKind)
	}
	sl, ok := common.ParseOrderKind(slKind, common.KindMarket)
	if !ok {
		return Signal{}, fmt.Errorf("%w: slOrderType %q must be market or limit", ErrInvalidSignal, slKind)
	}
	return Signal{Symbol: symbol, Side: ps, TPKind: tp, SLKind: sl}, nil
}

// ResultStatus is the outcome of one placement.
type ResultStatus string

const (
	StatusSuccess  ResultStatus = "success"
	StatusError    ResultStatus = "error"
	StatusDisabled ResultStatus = "disabled"
)

// OrderResult is what PlaceOrder reports back to the caller.
type OrderResult struct {
	Status  ResultStatus `json:"status"`
	Message string       `json:"message,omitempty"`
	Trade   *TradeRecord `json:"trade,omitempty"`
}

// TradeRecord is an immutable entry of tradeHistory or failedTrades.
type TradeRecord struct {
	ID          string              `json:"id"`
	Time        time.Time           `json:"timestamp"`
	Symbol      string              `json:"symbol"`
	Side        common.PositionSide `json:"side"`
	Size        decimal.Decimal     `json:"size"`
	EntryPrice  decimal.Decimal     `json:"entry_price"`
	TakeProfit  decimal.Decimal     `json:"take_profit"`
	StopLoss    decimal.Decimal     `json:"stop_loss"`
	TPKind      common.OrderKind    `json:"tp_order_type"`
	SLKind      common.OrderKind    `json:"sl_order_type"`
	OrderID     string              `json:"order_id,omitempty"`
	OrderStatus common.OrderStatus  `json:"order_status,omitempty"`
	Error       string              `json:"error,omitempty"`
}

// ProfitLockEvent records one trailing-stop update.
type ProfitLockEvent struct {
	ID               string          `json:"id"`
	Time             time.Time       `json:"timestamp"`
	Symbol           string          `json:"symbol"`
	ProfitPercentage decimal.Decimal `json:"profit_percentage"`
	NewStop          decimal.Decimal `json:"new_stop"`
	StopOrderID      string          `json:"stop_order_id,omitempty"`
}

// Status is a read-only snapshot of AccountState.
type Status struct {
	AccountID        string          `json:"account_id"`
	TradingEnabled   bool            `json:"trading_enabled"`
	MonitoringActive bool            `json:"monitoring_active"`
	MonitorRunning   bool            `json:"monitor_running"`
	BreakerTripped   bool            `json:"breaker_tripped"`
	TradeCount       int             `json:"trade_count"`
	FailedCount      int             `json:"failed_count"`
	TotalProfitLocks int             `json:"total_profit_locks"`
	LastEquity       decimal.Decimal `json:"last_equity"`
}

// Metrics receives executor counters.
type Metrics interface {
	TradePlaced(accountID string, side common.PositionSide)
	TradeFailed(accountID, reason string)
	ProfitLock(accountID, symbol string)
	BreakerTripped(accountID string)
	Equity(accountID string, equity decimal.Decimal)
	MonitorTick(accountID string, d time.Duration, err error)
}

type noopMetrics struct{}

func (noopMetrics) TradePlaced(string, common.PositionSide) {}
func (noopMetrics) TradeFailed(string, string) {}
func (noopMetrics) ProfitLock(string, string) {}
func (noopMetrics) BreakerTripped(string) {}
func (noopMetrics) Equity(string, decimal.Decimal) {}
func (noopMetrics) MonitorTick(string, time.Duration, error) {}
