package main

import (
	"context"
	"log"
	"os"
	"time"

	"signal-executor/pkg/config"
	"signal-executor/pkg/exchanges/bybit"
	"signal-executor/pkg/exchanges/common"
	"signal-executor/pkg/logging"
)

// gateway_check exercises the read-only Bybit calls of every account in the
// account file so credentials and connectivity can be confirmed before
// serving signals. No orders are placed.
//
// Usage:
//
//	go run ./scripts/gateway_check
//
// Environment:
//
//	ACCOUNTS_FILE          (default "accounts.yaml")
//	MASTER_ENCRYPTION_KEY  required when the file holds sealed credentials
//	CHECK_SYMBOL           (default "BTCUSDT")
func main() {
	log.Println("=== Gateway check starting ===")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	symbol := getenv("CHECK_SYMBOL", "BTCUSDT")

	accounts, err := config.LoadAccounts(cfg.AccountsFile, config.LoadOptions{RequireCredentials: true})
	if err != nil {
		log.Fatalf("accounts: %v", err)
	}

	zlog, _, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: "console"})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	failed := 0
	for _, a := range accounts {
		client := bybit.NewClient(bybit.Config{
			APIKey:    a.APIKey,
			APISecret: a.APISecret,
			Testnet:   a.IsTestnet,
			Logger:    zlog.With("account", a.ID),
		})
		if !checkAccount(a.ID, client, symbol) {
			failed++
		}
	}

	log.Printf("=== Gateway check finished: %d/%d accounts OK ===", len(accounts)-failed, len(accounts))
	if failed > 0 {
		os.Exit(1)
	}
}

func checkAccount(id string, gw common.Gateway, symbol string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	ok := true

	if eq, err := gw.FetchEquity(ctx); err != nil {
		log.Printf("[%s] FetchEquity error: %v", id, err)
		ok = false
	} else {
		log.Printf("[%s] equity: %s USDT", id, eq)
	}

	if t, err := gw.FetchTicker(ctx, symbol); err != nil {
		log.Printf("[%s] FetchTicker(%s) error: %v", id, symbol, err)
		ok = false
	} else {
		log.Printf("[%s] %s last=%s mark=%s", id, symbol, t.Last, t.Mark)
	}

	if p, err := gw.MarketPrecision(ctx, symbol); err != nil {
		log.Printf("[%s] MarketPrecision(%s) error: %v", id, symbol, err)
		ok = false
	} else {
		log.Printf("[%s] %s amountStep=%s priceStep=%s minAmount=%s", id, symbol, p.AmountStep, p.PriceStep, p.MinAmount)
	}

	positions, err := gw.FetchPositions(ctx)
	if err != nil {
		log.Printf("[%s] FetchPositions error: %v", id, err)
		return false
	}
	log.Printf("[%s] open positions: %d", id, len(positions))
	for _, p := range positions {
		log.Printf("[%s]   %s %s size=%s entry=%s uPnL=%s", id, p.Symbol, p.Side, p.Size, p.EntryPrice, p.UnrealizedPnL)
	}
	return ok
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
