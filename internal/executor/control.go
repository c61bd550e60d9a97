package executor

import (
	"signal-executor/internal/events"
)

// EnableTrading re-enables placements. After a breaker trip this is the
// explicit operator reset and also clears the breaker flag.
func (e *Executor) EnableTrading() {
	e.mu.Lock()
	wasTripped := e.breakerTripped
	e.tradingEnabled = true
	e.breakerTripped = false
	e.mu.Unlock()
	e.log.Infow("trading enabled", "breaker_reset", wasTripped)
	e.publish(events.EventTradingState, events.StateChange{Enabled: true, Reason: "operator"})
}

// DisableTrading stops future placements; in-flight ones finish.
func (e *Executor) DisableTrading() {
	e.mu.Lock()
	e.tradingEnabled = false
	e.mu.Unlock()
	e.log.Infow("trading disabled")
	e.publish(events.EventTradingState, events.StateChange{Enabled: false, Reason: "operator"})
}

// SetMonitoring turns the profit monitor on or off. Turning it on when a
// loop is already running does not start a second one; turning it off lets
// the running loop exit at its next check.
func (e *Executor) SetMonitoring(active bool) {
	e.mu.Lock()
	changed := e.setMonitoringLocked(active)
	e.mu.Unlock()
	e.announceMonitoring(changed, active)
}

// ToggleMonitoring flips monitoring and returns the new value.
func (e *Executor) ToggleMonitoring() bool {
	e.mu.Lock()
	next := !e.monitoringActive
	changed := e.setMonitoringLocked(next)
	e.mu.Unlock()
	e.announceMonitoring(changed, next)
	return next
}

func (e *Executor) setMonitoringLocked(active bool) bool {
	changed := e.monitoringActive != active
	e.monitoringActive = active
	if active {
		e.startMonitorLocked()
	} else {
		e.stopMonitorLocked()
	}
	return changed
}

func (e *Executor) announceMonitoring(changed, active bool) {
	if !changed {
		return
	}
	e.log.Infow("monitoring changed", "active", active)
	e.publish(events.EventMonitoring, events.StateChange{Enabled: active, Reason: "operator"})
}

// Status returns a snapshot of the account state.
func (e *Executor) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		AccountID:        e.cfg.AccountID,
		TradingEnabled:   e.tradingEnabled,
		MonitoringActive: e.monitoringActive,
		MonitorRunning:   e.running,
		BreakerTripped:   e.breakerTripped,
		TradeCount:       len(e.tradeHistory),
		FailedCount:      len(e.failedTrades),
		TotalProfitLocks: e.totalProfitLocks,
		LastEquity:       e.lastEquity,
	}
}

// Trades returns copies of the trade history and the failed trades.
func (e *Executor) Trades() (history, failed []TradeRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	history = append([]TradeRecord(nil), e.tradeHistory...)
	failed = append([]TradeRecord(nil), e.failedTrades...)
	return history, failed
}

// ProfitLocks returns a copy of the per-symbol profit locks and their total.
func (e *Executor) ProfitLocks() (map[string][]ProfitLockEvent, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string][]ProfitLockEvent, len(e.profitLocks))
	for sym, evs := range e.profitLocks {
		out[sym] = append([]ProfitLockEvent(nil), evs...)
	}
	return out, e.totalProfitLocks
}
