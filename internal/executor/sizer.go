package executor

import (
	"context"
	"errors"
	"fmt"

	"signal-executor/pkg/exchanges/common"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type sizing struct {
	size      decimal.Decimal
	price     decimal.Decimal
	precision common.Precision
}

// ComputeSize returns the order size and the reference price it was computed
// from. The size risks riskPercentage of equity at the account's leverage,
// scaled by multiplier and truncated to the instrument's amount step.
func (e *Executor) ComputeSize(ctx context.Context, symbol string, multiplier decimal.Decimal) (size, price decimal.Decimal, err error) {
	s, err := e.computeSize(ctx, symbol, multiplier)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return s.size, s.price, nil
}

func (e *Executor) computeSize(ctx context.Context, symbol string, multiplier decimal.Decimal) (sizing, error) {
	equity, err := e.CheckAndEnforceThreshold(ctx)
	if errors.Is(err, ErrInsufficientBalance) {
		return sizing{}, err
	}
	if err != nil {
		return sizing{}, fmt.Errorf("%w: %w", ErrSizing, err)
	}

	ticker, err := e.gw.FetchTicker(ctx, symbol)
	if err != nil {
		return sizing{}, fmt.Errorf("%w: %w: fetch ticker %s: %w", ErrSizing, ErrGateway, symbol, err)
	}
	price := ticker.Last
	if !price.IsPositive() {
		return sizing{}, fmt.Errorf("%w: no reference price for %s", ErrSizing, symbol)
	}

	precision, err := e.gw.MarketPrecision(ctx, symbol)
	if err != nil {
		return sizing{}, fmt.Errorf("%w: %w: market precision %s: %w", ErrSizing, ErrGateway, symbol, err)
	}

	risk := equity.Mul(e.cfg.RiskPercentage.Div(hundred)).Mul(decimal.NewFromInt(int64(e.cfg.Leverage)))
	raw := risk.Div(price).Mul(multiplier)
	size := common.FloorToStep(raw, precision.AmountStep)

	if !size.IsPositive() {
		return sizing{}, fmt.Errorf("%w: size %s below minimum step %s", ErrSizing, raw, precision.AmountStep)
	}
	if precision.MinAmount.IsPositive() && size.LessThan(precision.MinAmount) {
		return sizing{}, fmt.Errorf("%w: size %s below minimum order %s", ErrSizing, size, precision.MinAmount)
	}
	return sizing{size: size, price: price, precision: precision}, nil
}
