package paper

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Walk drives every known symbol with a random walk of up to stepPct percent
// per tick until ctx ends.
func (g *Gateway) Walk(ctx context.Context, interval time.Duration, stepPct float64) {
	if interval <= 0 {
		interval = time.Second
	}
	if stepPct <= 0 {
		stepPct = 0.05
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				for _, sym := range g.Symbols() {
					g.step(sym, stepPct)
				}
			}
		}
	}()
}

func (g *Gateway) step(symbol string, stepPct float64) {
	g.mu.Lock()
	price := g.prices[symbol]
	move := (g.rng.Float64()*2 - 1) * stepPct / 100
	g.mu.Unlock()
	next := price.Mul(decimal.NewFromFloat(1 + move)).Round(8)
	if next.IsPositive() {
		g.SetPrice(symbol, next)
	}
}
