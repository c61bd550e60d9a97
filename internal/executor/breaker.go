package executor

import (
	"context"
	"fmt"

	"signal-executor/internal/events"
	"signal-executor/pkg/exchanges/common"

	"github.com/shopspring/decimal"
)

// CheckAndEnforceThreshold fetches equity and, when it is below the balance
// threshold, flattens every open position and disables trading. It then
// returns the equity together with ErrInsufficientBalance. Flatten failures
// are logged and never prevent the disable.
//
// Trading is never re-enabled here. Repeated calls while tripped keep
// flattening residual exposure, but the breaker event and metric fire only on
// the first transition.
func (e *Executor) CheckAndEnforceThreshold(ctx context.Context) (decimal.Decimal, error) {
	equity, err := e.gw.FetchEquity(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: fetch equity: %w", ErrGateway, err)
	}
	e.mu.Lock()
	e.lastEquity = equity
	e.mu.Unlock()
	e.metrics.Equity(e.cfg.AccountID, equity)

	if !equity.LessThan(e.cfg.BalanceThreshold) {
		return equity, nil
	}

	e.log.Warnw("equity below threshold, flattening", "equity", equity, "threshold", e.cfg.BalanceThreshold)
	flattened := e.flattenAll(ctx)

	e.mu.Lock()
	first := !e.breakerTripped
	e.breakerTripped = true
	e.tradingEnabled = false
	e.mu.Unlock()

	if first {
		e.log.Errorw("balance breaker tripped, trading disabled", "equity", equity,
			"threshold", e.cfg.BalanceThreshold, "flattened", flattened)
		e.metrics.BreakerTripped(e.cfg.AccountID)
		e.publish(events.EventBreakerTripped, events.BreakerTrip{
			Equity:    equity.String(),
			Threshold: e.cfg.BalanceThreshold.String(),
			Flattened: flattened,
		})
	}
	return equity, fmt.Errorf("%w: equity %s below threshold %s", ErrInsufficientBalance, equity, e.cfg.BalanceThreshold)
}

// flattenAll closes every open position with a reduce-only market order and
// reports how many closes were accepted.
func (e *Executor) flattenAll(ctx context.Context) int {
	positions, err := e.gw.FetchPositions(ctx)
	if err != nil {
		e.log.Errorw("flatten: fetch positions failed", "error", err)
		return 0
	}
	n := 0
	for _, p := range positions {
		if !p.Size.Abs().GreaterThan(dust) {
			continue
		}
		res, err := e.gw.SubmitMarketOrder(ctx, common.MarketOrderRequest{
			Symbol:     p.Symbol,
			Side:       p.Side.ExitSide(),
			Qty:        p.Size.Abs(),
			ReduceOnly: true,
			ClientID:   e.newID(),
		})
		if err != nil {
			e.log.Errorw("flatten: close failed", "symbol", p.Symbol, "side", p.Side, "size", p.Size, "error", err)
			continue
		}
		n++
		e.log.Infow("flatten: position closed", "symbol", p.Symbol, "side", p.Side, "size", p.Size, "order_id", res.ExchangeOrderID)
	}
	return n
}
