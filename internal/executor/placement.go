package executor

import (
	"context"
	"errors"
	"fmt"

	"signal-executor/internal/events"
	"signal-executor/pkg/exchanges/common"

	"github.com/shopspring/decimal"
)

var (
	one = decimal.NewFromInt(1)
	two = decimal.NewFromInt(2)
)

// PlaceOrder runs the placement protocol for one signal. It never returns an
// error: failures are reported in the result and journaled in failedTrades.
func (e *Executor) PlaceOrder(ctx context.Context, sig Signal) OrderResult {
	e.mu.Lock()
	enabled := e.tradingEnabled
	e.mu.Unlock()
	if !enabled {
		e.log.Infow("signal ignored, trading disabled", "symbol", sig.Symbol, "side", sig.Side)
		return OrderResult{Status: StatusDisabled, Message: "trading disabled"}
	}

	rec := TradeRecord{
		ID:     e.newID(),
		Time:   e.now(),
		Symbol: sig.Symbol,
		Side:   sig.Side,
		TPKind: sig.TPKind,
		SLKind: sig.SLKind,
	}
	if err := e.place(ctx, sig, &rec); err != nil {
		return e.fail(rec, err)
	}
	return e.succeed(rec)
}

func (e *Executor) place(ctx context.Context, sig Signal, rec *TradeRecord) error {
	multiplier, err := e.sizeMultiplier(ctx, sig)
	if err != nil {
		return err
	}

	if err := e.gw.SetLeverage(ctx, sig.Symbol, e.cfg.Leverage); err != nil && !errors.Is(err, common.ErrLeverageNotModified) {
		e.log.Warnw("set leverage failed, continuing", "symbol", sig.Symbol, "leverage", e.cfg.Leverage, "error", err)
	}

	s, err := e.computeSize(ctx, sig.Symbol, multiplier)
	if err != nil {
		return err
	}
	rec.Size, rec.EntryPrice = s.size, s.price
	rec.TakeProfit, rec.StopLoss = e.brackets(sig.Side, s.price, s.precision.PriceStep)

	res, err := e.gw.SubmitMarketOrder(ctx, common.MarketOrderRequest{
		Symbol:      sig.Symbol,
		Side:        sig.Side.EntrySide(),
		Qty:         s.size,
		TakeProfit:  rec.TakeProfit,
		StopLoss:    rec.StopLoss,
		TPKind:      sig.TPKind,
		SLKind:      sig.SLKind,
		TPTriggerBy: common.TriggerLastPrice,
		SLTriggerBy: common.TriggerLastPrice,
		ReduceOnly:  false,
		ClientID:    rec.ID,
	})
	if err != nil {
		return fmt.Errorf("%w: submit market order: %w", ErrGateway, err)
	}
	rec.OrderID, rec.OrderStatus = res.ExchangeOrderID, res.Status
	return nil
}

// sizeMultiplier is 2 when an opposite-side position is open on the symbol,
// so the order closes it and opens the requested exposure in one fill.
func (e *Executor) sizeMultiplier(ctx context.Context, sig Signal) (decimal.Decimal, error) {
	positions, err := e.gw.FetchPositions(ctx, sig.Symbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: fetch positions %s: %w", ErrGateway, sig.Symbol, err)
	}
	for _, p := range positions {
		if p.Symbol == sig.Symbol && p.Size.Abs().GreaterThan(dust) && p.Side != sig.Side {
			e.log.Infow("opposite position open, doubling size", "symbol", sig.Symbol, "existing", p.Side, "size", p.Size)
			return two, nil
		}
	}
	return one, nil
}

// brackets returns take-profit and stop-loss prices around price, rounded to step.
func (e *Executor) brackets(side common.PositionSide, price, step decimal.Decimal) (tp, sl decimal.Decimal) {
	tpPct, slPct := e.cfg.InitialTakeProfitPercentage, e.cfg.InitialStopLossPercentage
	if side == common.PositionShort {
		tp = price.Mul(one.Sub(tpPct))
		sl = price.Mul(one.Add(slPct))
	} else {
		tp = price.Mul(one.Add(tpPct))
		sl = price.Mul(one.Sub(slPct))
	}
	return common.RoundToStep(tp, step), common.RoundToStep(sl, step)
}

func (e *Executor) succeed(rec TradeRecord) OrderResult {
	e.mu.Lock()
	e.tradeHistory = append(e.tradeHistory, rec)
	e.mu.Unlock()

	e.log.Infow("order placed", "id", rec.ID, "symbol", rec.Symbol, "side", rec.Side, "size", rec.Size,
		"price", rec.EntryPrice, "take_profit", rec.TakeProfit, "stop_loss", rec.StopLoss, "order_id", rec.OrderID)
	e.metrics.TradePlaced(e.cfg.AccountID, rec.Side)
	e.publish(events.EventTradePlaced, rec)
	return OrderResult{Status: StatusSuccess, Trade: &rec}
}

func (e *Executor) fail(rec TradeRecord, err error) OrderResult {
	rec.Error = err.Error()
	e.mu.Lock()
	e.failedTrades = append(e.failedTrades, rec)
	e.mu.Unlock()

	e.log.Errorw("order placement failed", "id", rec.ID, "symbol", rec.Symbol, "side", rec.Side, "error", err)
	e.metrics.TradeFailed(e.cfg.AccountID, failureReason(err))
	e.publish(events.EventTradeFailed, rec)
	return OrderResult{Status: StatusError, Message: rec.Error, Trade: &rec}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrSizing):
		return "sizing"
	case errors.Is(err, ErrGateway):
		return "gateway"
	default:
		return "other"
	}
}
