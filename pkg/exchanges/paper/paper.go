// Package paper is an in-memory Gateway used for dry runs. Fills happen at the
// current simulated price; attached brackets and stops become conditional
// orders that fire as prices move.
package paper

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"signal-executor/pkg/exchanges/common"
	"signal-executor/pkg/logging"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var _ common.Gateway = (*Gateway)(nil)

// SimConfig tunes the simulation.
type SimConfig struct {
	InitialBalance decimal.Decimal
	FeeRate        decimal.Decimal // e.g. 0.0004 = 4 bps
	SlippageBps    float64         // max adverse slippage applied on market fills
	Precision      common.Precision
	Prices         map[string]decimal.Decimal // starting prices
	Logger         *zap.SugaredLogger
}

type position struct {
	side  common.PositionSide
	size  decimal.Decimal
	entry decimal.Decimal
}

type conditional struct {
	id         string
	symbol     string
	side       common.Side
	qty        decimal.Decimal // zero closes the whole position
	trigger    decimal.Decimal
	rising     bool // fires when price rises to trigger, else when it falls to it
	reduceOnly bool
}

func (o conditional) fires(price decimal.Decimal) bool {
	if o.rising {
		return price.GreaterThanOrEqual(o.trigger)
	}
	return price.LessThanOrEqual(o.trigger)
}

// Gateway simulates a single futures account.
type Gateway struct {
	mu        sync.Mutex
	cfg       SimConfig
	balance   decimal.Decimal
	prices    map[string]decimal.Decimal
	positions map[string]*position
	leverage  map[string]int
	pending   []conditional
	rng       *rand.Rand
	log       *zap.SugaredLogger
}

// New creates a paper account with cfg.InitialBalance of quote currency.
func New(cfg SimConfig) *Gateway {
	if cfg.Precision.AmountStep.IsZero() {
		cfg.Precision.AmountStep = decimal.RequireFromString("0.001")
	}
	if cfg.Precision.PriceStep.IsZero() {
		cfg.Precision.PriceStep = decimal.RequireFromString("0.01")
	}
	if cfg.Precision.MinAmount.IsZero() {
		cfg.Precision.MinAmount = cfg.Precision.AmountStep
	}
	g := &Gateway{
		cfg:       cfg,
		balance:   cfg.InitialBalance,
		prices:    make(map[string]decimal.Decimal),
		positions: make(map[string]*position),
		leverage:  make(map[string]int),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		log:       logging.OrNop(cfg.Logger).Named("paper"),
	}
	for s, p := range cfg.Prices {
		g.prices[s] = p
	}
	return g
}

// SetPrice moves the simulated price of symbol and fires any conditional
// orders it crosses.
func (g *Gateway) SetPrice(symbol string, price decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prices[symbol] = price

	remaining := g.pending[:0]
	var fired []conditional
	for _, o := range g.pending {
		if o.symbol == symbol && o.fires(price) {
			fired = append(fired, o)
			continue
		}
		remaining = append(remaining, o)
	}
	g.pending = remaining
	for _, o := range fired {
		if _, err := g.fill(o.symbol, o.side, o.qty, o.reduceOnly, false); err != nil {
			g.log.Debugw("conditional order skipped", "id", o.id, "symbol", o.symbol, "error", err)
			continue
		}
		g.log.Infow("conditional order filled", "id", o.id, "symbol", o.symbol, "side", o.side, "trigger", o.trigger)
	}
}

// Symbols lists symbols with a known price.
func (g *Gateway) Symbols() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.prices))
	for s := range g.prices {
		out = append(out, s)
	}
	return out
}

// PendingOrders returns the number of untriggered conditional orders.
func (g *Gateway) PendingOrders() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

func (g *Gateway) FetchEquity(ctx context.Context) (decimal.Decimal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	eq := g.balance
	for sym, p := range g.positions {
		eq = eq.Add(g.unrealized(p, g.prices[sym]))
	}
	return eq, nil
}

func (g *Gateway) FetchTicker(ctx context.Context, symbol string) (common.Ticker, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.prices[symbol]
	if !ok {
		return common.Ticker{}, fmt.Errorf("paper: no price for %s", symbol)
	}
	return common.Ticker{Symbol: symbol, Last: p, Mark: p}, nil
}

func (g *Gateway) FetchPositions(ctx context.Context, symbols ...string) ([]common.Position, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	want := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		want[s] = true
	}
	var out []common.Position
	for sym, p := range g.positions {
		if len(want) > 0 && !want[sym] {
			continue
		}
		mark := g.prices[sym]
		out = append(out, common.Position{
			Symbol:        sym,
			Side:          p.side,
			Size:          p.size,
			EntryPrice:    p.entry,
			MarkPrice:     mark,
			UnrealizedPnL: g.unrealized(p, mark),
		})
	}
	return out, nil
}

func (g *Gateway) MarketPrecision(ctx context.Context, symbol string) (common.Precision, error) {
	return g.cfg.Precision, nil
}

func (g *Gateway) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.leverage[symbol] == leverage {
		return common.ErrLeverageNotModified
	}
	g.leverage[symbol] = leverage
	return nil
}

func (g *Gateway) SubmitMarketOrder(ctx context.Context, req common.MarketOrderRequest) (common.OrderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !req.Qty.IsPositive() {
		return common.OrderResult{}, fmt.Errorf("paper: invalid qty %s", req.Qty)
	}
	price, err := g.fill(req.Symbol, req.Side, req.Qty, req.ReduceOnly, true)
	if err != nil {
		return common.OrderResult{}, err
	}
	// Attached legs: a long takes profit above and stops out below, a short the reverse.
	exit := req.Side.Opposite()
	long := req.Side == common.SideBuy
	if req.TakeProfit.IsPositive() {
		g.pending = append(g.pending, conditional{
			id: uuid.NewString(), symbol: req.Symbol, side: exit, trigger: req.TakeProfit, rising: long, reduceOnly: true,
		})
	}
	if req.StopLoss.IsPositive() {
		g.pending = append(g.pending, conditional{
			id: uuid.NewString(), symbol: req.Symbol, side: exit, trigger: req.StopLoss, rising: !long, reduceOnly: true,
		})
	}
	id := uuid.NewString()
	g.log.Infow("market order filled", "id", id, "symbol", req.Symbol, "side", req.Side,
		"qty", req.Qty, "price", price, "balance", g.balance)
	return common.OrderResult{ExchangeOrderID: id, ClientID: req.ClientID, Status: common.StatusFilled}, nil
}

func (g *Gateway) SubmitStopOrder(ctx context.Context, req common.StopOrderRequest) (common.OrderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !req.Qty.IsPositive() || !req.TriggerPrice.IsPositive() {
		return common.OrderResult{}, fmt.Errorf("paper: invalid stop qty=%s trigger=%s", req.Qty, req.TriggerPrice)
	}
	id := uuid.NewString()
	g.pending = append(g.pending, conditional{
		id:         id,
		symbol:     req.Symbol,
		side:       req.Side,
		qty:        req.Qty,
		trigger:    req.TriggerPrice,
		rising:     req.Side == common.SideBuy,
		reduceOnly: req.ReduceOnly,
	})
	return common.OrderResult{ExchangeOrderID: id, ClientID: req.ClientID, Status: common.StatusUntrigger}, nil
}

func (g *Gateway) CancelOrder(ctx context.Context, symbol, exchangeOrderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, o := range g.pending {
		if o.id == exchangeOrderID && o.symbol == symbol {
			g.pending = append(g.pending[:i], g.pending[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("paper: order %s not found", exchangeOrderID)
}

// fill executes qty at the current price. Reduce-only fills are clamped to
// the open position and a zero qty means the whole position. Caller holds mu.
func (g *Gateway) fill(symbol string, side common.Side, qty decimal.Decimal, reduceOnly, slip bool) (decimal.Decimal, error) {
	price, ok := g.prices[symbol]
	if !ok || !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("paper: no price for %s", symbol)
	}
	if slip {
		price = g.slippage(price, side)
	}

	pos := g.positions[symbol]
	if reduceOnly {
		if pos == nil || pos.side.ExitSide() != side {
			return decimal.Zero, fmt.Errorf("paper: reduce-only %s %s has no position to reduce", side, symbol)
		}
		if qty.IsZero() || qty.GreaterThan(pos.size) {
			qty = pos.size
		}
	}
	g.balance = g.balance.Sub(qty.Mul(price).Mul(g.cfg.FeeRate))

	if pos == nil {
		g.positions[symbol] = &position{side: sideFor(side), size: qty, entry: price}
		return price, nil
	}
	if pos.side.EntrySide() == side {
		notional := pos.size.Mul(pos.entry).Add(qty.Mul(price))
		pos.size = pos.size.Add(qty)
		pos.entry = notional.Div(pos.size)
		return price, nil
	}

	closed := decimal.Min(qty, pos.size)
	g.balance = g.balance.Add(g.unrealized(&position{side: pos.side, size: closed, entry: pos.entry}, price))
	pos.size = pos.size.Sub(closed)
	rest := qty.Sub(closed)
	if pos.size.IsZero() {
		delete(g.positions, symbol)
		g.dropConditionals(symbol)
		if rest.IsPositive() {
			g.positions[symbol] = &position{side: sideFor(side), size: rest, entry: price}
		}
	}
	return price, nil
}

func (g *Gateway) dropConditionals(symbol string) {
	remaining := g.pending[:0]
	for _, o := range g.pending {
		if o.symbol != symbol || !o.reduceOnly {
			remaining = append(remaining, o)
		}
	}
	g.pending = remaining
}

func (g *Gateway) slippage(price decimal.Decimal, side common.Side) decimal.Decimal {
	if g.cfg.SlippageBps <= 0 {
		return price
	}
	noise := decimal.NewFromFloat(g.rng.Float64() * g.cfg.SlippageBps / 10000)
	if side == common.SideBuy {
		return price.Mul(decimal.NewFromInt(1).Add(noise))
	}
	return price.Mul(decimal.NewFromInt(1).Sub(noise))
}

func (g *Gateway) unrealized(p *position, mark decimal.Decimal) decimal.Decimal {
	diff := mark.Sub(p.entry).Mul(p.size)
	if p.side == common.PositionShort {
		return diff.Neg()
	}
	return diff
}

func sideFor(s common.Side) common.PositionSide {
	if s == common.SideSell {
		return common.PositionShort
	}
	return common.PositionLong
}
