package common

import (
	"context"

	"github.com/shopspring/decimal"
)

// Gateway abstracts the trading venue for a single account.
type Gateway interface {
	FetchEquity(ctx context.Context) (decimal.Decimal, error)
	FetchTicker(ctx context.Context, symbol string) (Ticker, error)
	// FetchPositions returns open positions, optionally filtered by symbol.
	FetchPositions(ctx context.Context, symbols ...string) ([]Position, error)
	MarketPrecision(ctx context.Context, symbol string) (Precision, error)
	// SetLeverage returns ErrLeverageNotModified when nothing changed.
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	SubmitMarketOrder(ctx context.Context, req MarketOrderRequest) (OrderResult, error)
	SubmitStopOrder(ctx context.Context, req StopOrderRequest) (OrderResult, error)
	CancelOrder(ctx context.Context, symbol, exchangeOrderID string) error
}
