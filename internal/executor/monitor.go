package executor

import (
	"context"
	"time"

	"signal-executor/internal/events"
	"signal-executor/pkg/exchanges/common"

	"github.com/shopspring/decimal"
)

var (
	longTrail  = decimal.RequireFromString("0.99")
	shortTrail = decimal.RequireFromString("1.001")
)

// startMonitorLocked spawns the loop unless one is already running. Caller holds mu.
func (e *Executor) startMonitorLocked() {
	if e.stopCh == nil {
		e.stopCh = make(chan struct{})
	}
	if e.running || e.ctx == nil {
		return
	}
	e.running = true
	e.done = make(chan struct{})
	go e.runMonitor(e.ctx, e.done)
}

// stopMonitorLocked wakes a sleeping loop so it sees monitoringActive is
// cleared. Caller holds mu.
func (e *Executor) stopMonitorLocked() {
	if e.stopCh != nil {
		close(e.stopCh)
		e.stopCh = nil
	}
}

func (e *Executor) runMonitor(ctx context.Context, done chan struct{}) {
	defer close(done)
	e.log.Infow("profit monitor started", "interval", e.cfg.MonitorInterval)
	for {
		e.mu.Lock()
		if !e.monitoringActive || ctx.Err() != nil {
			e.running = false
			e.mu.Unlock()
			e.log.Infow("profit monitor stopped")
			return
		}
		stop := e.stopCh
		e.mu.Unlock()

		e.monitorTick(ctx)

		t := time.NewTimer(e.cfg.MonitorInterval)
		select {
		case <-ctx.Done():
		case <-stop:
		case <-t.C:
		}
		t.Stop()
	}
}

// monitorTick runs one pass over all open positions. Errors are logged and
// retried by the next tick.
func (e *Executor) monitorTick(ctx context.Context) {
	start := time.Now()
	positions, err := e.gw.FetchPositions(ctx)
	if err != nil {
		e.log.Warnw("monitor: fetch positions failed", "error", err)
		e.metrics.MonitorTick(e.cfg.AccountID, time.Since(start), err)
		return
	}
	threshold := e.cfg.ProfitLockThreshold.Mul(hundred)
	for _, p := range positions {
		if !p.Size.Abs().GreaterThan(dust) {
			continue
		}
		pct, ok := e.profitPercentage(p)
		if !ok {
			continue
		}
		if pct.GreaterThanOrEqual(threshold) {
			e.lockProfit(ctx, p, pct)
		}
	}
	e.metrics.MonitorTick(e.cfg.AccountID, time.Since(start), nil)
}

// profitPercentage is the leveraged return on the position's entry notional.
func (e *Executor) profitPercentage(p common.Position) (decimal.Decimal, bool) {
	notional := p.EntryPrice.Mul(p.Size.Abs())
	if notional.IsZero() {
		return decimal.Zero, false
	}
	return p.UnrealizedPnL.Div(notional).Mul(hundred).Mul(decimal.NewFromInt(int64(e.cfg.Leverage))), true
}

// trailingStop is 1% below mark for longs and 0.1% above mark for shorts.
func trailingStop(p common.Position) decimal.Decimal {
	if p.Side == common.PositionShort {
		return p.MarkPrice.Mul(shortTrail)
	}
	return p.MarkPrice.Mul(longTrail)
}

// lockProfit submits a new reduce-only protective stop for the full position
// and records the profit lock. The lock is recorded even if the stop fails.
func (e *Executor) lockProfit(ctx context.Context, p common.Position, pct decimal.Decimal) {
	newStop := trailingStop(p)
	if prec, err := e.gw.MarketPrecision(ctx, p.Symbol); err == nil {
		newStop = common.RoundToStep(newStop, prec.PriceStep)
	} else {
		e.log.Warnw("monitor: precision lookup failed, stop left unrounded", "symbol", p.Symbol, "error", err)
	}

	if e.cfg.CancelReplacedStops {
		e.cancelPreviousStop(ctx, p.Symbol)
	}

	stopID := ""
	res, err := e.gw.SubmitStopOrder(ctx, common.StopOrderRequest{
		Symbol:       p.Symbol,
		Side:         p.Side.ExitSide(),
		Qty:          p.Size.Abs(),
		TriggerPrice: newStop,
		TriggerBy:    common.TriggerMarkPrice,
		ReduceOnly:   true,
		ClientID:     e.newID(),
	})
	if err != nil {
		e.log.Errorw("monitor: trailing stop submit failed", "symbol", p.Symbol, "stop", newStop, "error", err)
	} else {
		stopID = res.ExchangeOrderID
		e.log.Infow("trailing stop updated", "symbol", p.Symbol, "side", p.Side, "stop", newStop,
			"profit_pct", pct.StringFixed(2), "order_id", stopID)
	}

	ev := ProfitLockEvent{
		ID:               e.newID(),
		Time:             e.now(),
		Symbol:           p.Symbol,
		ProfitPercentage: pct,
		NewStop:          newStop,
		StopOrderID:      stopID,
	}
	e.mu.Lock()
	e.profitLocks[p.Symbol] = append(e.profitLocks[p.Symbol], ev)
	e.totalProfitLocks++
	total := e.totalProfitLocks
	if stopID != "" {
		e.lastStops[p.Symbol] = stopID
	}
	e.mu.Unlock()

	e.log.Infow("profit lock recorded", "symbol", p.Symbol, "total", total)
	e.metrics.ProfitLock(e.cfg.AccountID, p.Symbol)
	e.publish(events.EventProfitLock, ev)
}

// cancelPreviousStop cancels the last protective stop submitted for symbol.
func (e *Executor) cancelPreviousStop(ctx context.Context, symbol string) {
	e.mu.Lock()
	prev, ok := e.lastStops[symbol]
	delete(e.lastStops, symbol)
	e.mu.Unlock()
	if !ok {
		return
	}
	if err := e.gw.CancelOrder(ctx, symbol, prev); err != nil {
		e.log.Warnw("monitor: cancel replaced stop failed", "symbol", symbol, "order_id", prev, "error", err)
	}
}
