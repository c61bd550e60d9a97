package common

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrLeverageNotModified is returned by SetLeverage when the venue reports the
// requested leverage is already in effect.
var ErrLeverageNotModified = errors.New("leverage not modified")

// Side denotes order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns SELL for BUY and BUY for SELL.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// PositionSide is the direction of an open position.
type PositionSide string

const (
	PositionLong  PositionSide = "long"
	PositionShort PositionSide = "short"
)

// EntrySide is the order side that opens or adds to a position of this direction.
func (p PositionSide) EntrySide() Side {
	if p == PositionShort {
		return SideSell
	}
	return SideBuy
}

// ExitSide is the order side that reduces a position of this direction.
func (p PositionSide) ExitSide() Side {
	return p.EntrySide().Opposite()
}

// ParsePositionSide accepts long/short/buy/sell in any case.
func ParsePositionSide(s string) (PositionSide, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long", "buy":
		return PositionLong, true
	case "short", "sell":
		return PositionShort, true
	default:
		return "", false
	}
}

// OrderKind is the execution style of an attached take-profit or stop-loss leg.
type OrderKind string

const (
	KindMarket OrderKind = "market"
	KindLimit  OrderKind = "limit"
)

// ParseOrderKind normalizes market/limit, falling back to def when s is empty.
func ParseOrderKind(s string, def OrderKind) (OrderKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return def, true
	case "market":
		return KindMarket, true
	case "limit":
		return KindLimit, true
	default:
		return "", false
	}
}

// TriggerBy selects the reference price a conditional order watches.
type TriggerBy string

const (
	TriggerLastPrice TriggerBy = "LastPrice"
	TriggerMarkPrice TriggerBy = "MarkPrice"
)

// OrderStatus normalizes exchange status into a small set.
type OrderStatus string

const (
	StatusNew       OrderStatus = "NEW"
	StatusPartial   OrderStatus = "PARTIAL"
	StatusFilled    OrderStatus = "FILLED"
	StatusCanceled  OrderStatus = "CANCELED"
	StatusRejected  OrderStatus = "REJECTED"
	StatusUntrigger OrderStatus = "UNTRIGGERED"
	StatusUnknown   OrderStatus = "UNKNOWN"
)

// Ticker carries the reference prices for a symbol.
type Ticker struct {
	Symbol string
	Last   decimal.Decimal
	Mark   decimal.Decimal
}

// Position is a venue position snapshot; never cached between polls.
type Position struct {
	Symbol        string
	Side          PositionSide
	Size          decimal.Decimal // contracts, always non-negative
	EntryPrice    decimal.Decimal
	MarkPrice     decimal.Decimal
	UnrealizedPnL decimal.Decimal
}

// Precision describes an instrument's order granularity.
type Precision struct {
	AmountStep decimal.Decimal
	PriceStep  decimal.Decimal
	MinAmount  decimal.Decimal
}

// MarketOrderRequest is a market entry with optional attached TP/SL triggers.
type MarketOrderRequest struct {
	Symbol      string
	Side        Side
	Qty         decimal.Decimal
	TakeProfit  decimal.Decimal // zero means none
	StopLoss    decimal.Decimal // zero means none
	TPKind      OrderKind
	SLKind      OrderKind
	TPTriggerBy TriggerBy
	SLTriggerBy TriggerBy
	ReduceOnly  bool
	ClientID    string
}

// StopOrderRequest is a conditional market order that fires at TriggerPrice.
type StopOrderRequest struct {
	Symbol       string
	Side         Side
	Qty          decimal.Decimal
	TriggerPrice decimal.Decimal
	TriggerBy    TriggerBy
	ReduceOnly   bool
	ClientID     string
}

// OrderResult returns the exchange ack.
type OrderResult struct {
	ExchangeOrderID string      `json:"order_id"`
	ClientID        string      `json:"client_id,omitempty"`
	Status          OrderStatus `json:"status"`
}
