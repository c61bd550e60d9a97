package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"signal-executor/pkg/exchanges/common"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// fakeGateway records every call and serves canned state.
type fakeGateway struct {
	mu           sync.Mutex
	equity       decimal.Decimal
	equityErr    error
	price        decimal.Decimal
	precision    common.Precision
	positions    []common.Position
	positionsErr error
	leverageErr  error
	submitErr    error
	stopErr      error
	cancelErr    error

	calls        map[string]int
	marketOrders []common.MarketOrderRequest
	stopOrders   []common.StopOrderRequest
	cancels      []string
	nextID       int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		equity: d("1000"),
		price:  d("100"),
		precision: common.Precision{
			AmountStep: d("0.001"),
			PriceStep:  d("0.01"),
			MinAmount:  d("0.001"),
		},
		calls: make(map[string]int),
	}
}

func (f *fakeGateway) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeGateway) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeGateway) set(fn func(f *fakeGateway)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeGateway) FetchEquity(ctx context.Context) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["equity"]++
	return f.equity, f.equityErr
}

func (f *fakeGateway) FetchTicker(ctx context.Context, symbol string) (common.Ticker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ticker"]++
	return common.Ticker{Symbol: symbol, Last: f.price, Mark: f.price}, nil
}

func (f *fakeGateway) FetchPositions(ctx context.Context, symbols ...string) ([]common.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["positions"]++
	if f.positionsErr != nil {
		return nil, f.positionsErr
	}
	var out []common.Position
	for _, p := range f.positions {
		if len(symbols) == 0 || p.Symbol == symbols[0] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeGateway) MarketPrecision(ctx context.Context, symbol string) (common.Precision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["precision"]++
	return f.precision, nil
}

func (f *fakeGateway) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["leverage"]++
	return f.leverageErr
}

func (f *fakeGateway) SubmitMarketOrder(ctx context.Context, req common.MarketOrderRequest) (common.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["market"]++
	if f.submitErr != nil {
		return common.OrderResult{}, f.submitErr
	}
	f.marketOrders = append(f.marketOrders, req)
	f.nextID++
	return common.OrderResult{ExchangeOrderID: fmt.Sprintf("m%d", f.nextID), ClientID: req.ClientID, Status: common.StatusNew}, nil
}

func (f *fakeGateway) SubmitStopOrder(ctx context.Context, req common.StopOrderRequest) (common.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["stop"]++
	if f.stopErr != nil {
		return common.OrderResult{}, f.stopErr
	}
	f.stopOrders = append(f.stopOrders, req)
	f.nextID++
	return common.OrderResult{ExchangeOrderID: fmt.Sprintf("s%d", f.nextID), Status: common.StatusUntrigger}, nil
}

func (f *fakeGateway) CancelOrder(ctx context.Context, symbol, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["cancel"]++
	f.cancels = append(f.cancels, id)
	return f.cancelErr
}

// fakeMetrics counts metric calls.
type fakeMetrics struct {
	mu       sync.Mutex
	placed   int
	failed   map[string]int
	locks    int
	breakers int
	ticks    int
}

func newFakeMetrics() *fakeMetrics { return &fakeMetrics{failed: make(map[string]int)} }

func (m *fakeMetrics) TradePlaced(string, common.PositionSide) {
	m.mu.Lock()
	m.placed++
	m.mu.Unlock()
}

func (m *fakeMetrics) TradeFailed(_, reason string) {
	m.mu.Lock()
	m.failed[reason]++
	m.mu.Unlock()
}

func (m *fakeMetrics) ProfitLock(string, string) {
	m.mu.Lock()
	m.locks++
	m.mu.Unlock()
}

func (m *fakeMetrics) BreakerTripped(string) {
	m.mu.Lock()
	m.breakers++
	m.mu.Unlock()
}

func (m *fakeMetrics) Equity(string, decimal.Decimal) {}

func (m *fakeMetrics) MonitorTick(string, time.Duration, error) {
	m.mu.Lock()
	m.ticks++
	m.mu.Unlock()
}

func testConfig() Config {
	return Config{
		AccountID:                   "acct1",
		RiskPercentage:              d("1"),
		Leverage:                    5,
		ProfitLockThreshold:         d("0.1"),
		InitialStopLossPercentage:   d("0.05"),
		InitialTakeProfitPercentage: d("0.3"),
		BalanceThreshold:            d("100"),
		MonitoringActive:            false,
		MonitorInterval:             time.Hour,
	}
}
