package main

import (
	"context"
	"log"
	"time"

	"signal-executor/internal/events"
	"signal-executor/internal/executor"
	"signal-executor/pkg/config"
	"signal-executor/pkg/exchanges/paper"
	"signal-executor/pkg/logging"

	"github.com/shopspring/decimal"
)

// dry_run_demo walks one executor through a realistic flow on an in-memory
// paper account. It does not touch the exchange or database.
//
// Usage:
//
//	go run ./scripts/dry_run_demo
//
// It will:
//  1. Open a long on BTCUSDT with bracket orders.
//  2. Push the price up until the monitor trails a protective stop.
//  3. Reverse into a short at double size.
//  4. Squeeze the short until equity falls below the floor and the breaker trips.
func main() {
	log.Println("=== DRY-RUN demo starting ===")

	zlog, _, err := logging.New(logging.Options{Level: "info", Format: "console"})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	symbol := "BTCUSDT"
	start := decimal.NewFromInt(65000)
	gw := paper.New(paper.SimConfig{
		InitialBalance: decimal.NewFromInt(10000),
		FeeRate:        decimal.RequireFromString("0.0004"),
		Prices:         map[string]decimal.Decimal{symbol: start},
		Logger:         zlog,
	})

	acct := config.DefaultAccount()
	acct.ID = "demo"
	acct.Leverage = 10
	acct.RiskPercentage = 20
	acct.BalanceThreshold = 10400
	acct.MonitorInterval = 200 * time.Millisecond

	bus := events.NewBus()
	feed, unsub := bus.Subscribe(events.EventAll, 64)
	defer unsub()
	go func() {
		for msg := range feed {
			if ev, ok := msg.(events.AccountEvent); ok {
				log.Printf("[EVENT] %s %s %+v", ev.Type, ev.AccountID, ev.Data)
			}
		}
	}()

	exec := executor.New(executor.ConfigFromAccount(acct), gw, executor.Deps{Logger: zlog, Bus: bus})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	exec.Start(ctx)
	defer exec.Stop()

	log.Printf("[SCENARIO 1] Long %s", symbol)
	report(exec.PlaceOrder(ctx, executor.Signal{Symbol: symbol, Side: "long", TPKind: "limit", SLKind: "market"}))

	log.Printf("[SCENARIO 2] Rally so the monitor trails a stop")
	for _, pct := range []string{"1.01", "1.02", "1.03"} {
		gw.SetPrice(symbol, start.Mul(decimal.RequireFromString(pct)))
		time.Sleep(300 * time.Millisecond)
	}

	log.Printf("[SCENARIO 3] Reverse into a short")
	report(exec.PlaceOrder(ctx, executor.Signal{Symbol: symbol, Side: "short", TPKind: "limit", SLKind: "market"}))

	log.Printf("[SCENARIO 4] Squeeze until equity breaks the floor")
	for _, pct := range []string{"1.035", "1.045"} {
		gw.SetPrice(symbol, start.Mul(decimal.RequireFromString(pct)))
		time.Sleep(300 * time.Millisecond)
	}
	if _, err := exec.CheckAndEnforceThreshold(ctx); err != nil {
		log.Printf("threshold check error: %v", err)
	}

	st := exec.Status()
	log.Printf("[SCENARIO DONE] trading=%v breaker=%v trades=%d failed=%d locks=%d equity=%s",
		st.TradingEnabled, st.BreakerTripped, st.TradeCount, st.FailedCount, st.TotalProfitLocks, st.LastEquity)
	log.Println("=== DRY-RUN demo finished ===")
}

func report(res executor.OrderResult) {
	if res.Trade == nil {
		log.Printf("  -> %s: %s", res.Status, res.Message)
		return
	}
	log.Printf("  -> %s: %s %s size=%s entry=%s tp=%s sl=%s", res.Status, res.Trade.Symbol, res.Trade.Side,
		res.Trade.Size, res.Trade.EntryPrice, res.Trade.TakeProfit, res.Trade.StopLoss)
}
