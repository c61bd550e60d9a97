package bybit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"signal-executor/pkg/exchanges/common"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var _ common.Gateway = (*Client)(nil)

// FetchEquity returns the USDT equity of the unified trading account.
func (c *Client) FetchEquity(ctx context.Context) (eq decimal.Decimal, err error) {
	defer func(start time.Time) { c.observe("fetch_equity", start, err) }(time.Now())

	params := url.Values{}
	params.Set("accountType", "UNIFIED")
	params.Set("coin", "USDT")
	var out walletBalanceResult
	if err = c.doSigned(ctx, http.MethodGet, "/v5/account/wallet-balance", params, nil, &out); err != nil {
		return decimal.Zero, err
	}
	if len(out.List) == 0 {
		return decimal.Zero, errors.New("bybit: empty wallet balance")
	}
	acct := out.List[0]
	for _, coin := range acct.Coin {
		if coin.Coin == "USDT" {
			return dec(coin.Equity), nil
		}
	}
	return dec(acct.TotalEquity), nil
}

// FetchTicker returns last and mark price of a linear contract.
func (c *Client) FetchTicker(ctx context.Context, symbol string) (t common.Ticker, err error) {
	defer func(start time.Time) { c.observe("fetch_ticker", start, err) }(time.Now())

	params := url.Values{}
	params.Set("category", category)
	params.Set("symbol", symbol)
	var out tickersResult
	if err = c.doPublic(ctx, "/v5/market/tickers", params, &out); err != nil {
		return common.Ticker{}, err
	}
	for _, row := range out.List {
		if row.Symbol == symbol {
			return common.Ticker{Symbol: symbol, Last: dec(row.LastPrice), Mark: dec(row.MarkPrice)}, nil
		}
	}
	return common.Ticker{}, fmt.Errorf("bybit: no ticker for %s", symbol)
}

// FetchPositions lists open positions. With no symbols every USDT-settled
// position is returned, following pagination.
func (c *Client) FetchPositions(ctx context.Context, symbols ...string) (positions []common.Position, err error) {
	defer func(start time.Time) { c.observe("fetch_positions", start, err) }(time.Now())

	if len(symbols) == 0 {
		return c.listPositions(ctx, url.Values{"settleCoin": {"USDT"}})
	}
	for _, s := range symbols {
		ps, err := c.listPositions(ctx, url.Values{"symbol": {s}})
		if err != nil {
			return nil, err
		}
		positions = append(positions, ps...)
	}
	return positions, nil
}

func (c *Client) listPositions(ctx context.Context, filter url.Values) ([]common.Position, error) {
	var positions []common.Position
	cursor := ""
	for {
		params := url.Values{}
		params.Set("category", category)
		params.Set("limit", "200")
		for k, v := range filter {
			params[k] = v
		}
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		var out positionListResult
		if err := c.doSigned(ctx, http.MethodGet, "/v5/position/list", params, nil, &out); err != nil {
			return nil, err
		}
		for _, row := range out.List {
			if p, ok := toPosition(row); ok {
				positions = append(positions, p)
			}
		}
		if out.NextPageCursor == "" || out.NextPageCursor == cursor || len(out.List) == 0 {
			return positions, nil
		}
		cursor = out.NextPageCursor
	}
}

func toPosition(row positionRow) (common.Position, bool) {
	var side common.PositionSide
	switch row.Side {
	case "Buy":
		side = common.PositionLong
	case "Sell":
		side = common.PositionShort
	default:
		return common.Position{}, false
	}
	return common.Position{
		Symbol:        row.Symbol,
		Side:          side,
		Size:          dec(row.Size).Abs(),
		EntryPrice:    dec(row.AvgPrice),
		MarkPrice:     dec(row.MarkPrice),
		UnrealizedPnL: dec(row.UnrealisedPnl),
	}, true
}

// MarketPrecision returns lot and tick sizes, cached per symbol.
func (c *Client) MarketPrecision(ctx context.Context, symbol string) (p common.Precision, err error) {
	defer func(start time.Time) { c.observe("market_precision", start, err) }(time.Now())

	return c.precision.GetOrLoad(symbol, func() (common.Precision, error) {
		params := url.Values{}
		params.Set("category", category)
		params.Set("symbol", symbol)
		var out instrumentsResult
		if err := c.doPublic(ctx, "/v5/market/instruments-info", params, &out); err != nil {
			return common.Precision{}, err
		}
		for _, row := range out.List {
			if row.Symbol == symbol {
				return common.Precision{
					AmountStep: dec(row.LotSizeFilter.QtyStep),
					PriceStep:  dec(row.PriceFilter.TickSize),
					MinAmount:  dec(row.LotSizeFilter.MinOrderQty),
				}, nil
			}
		}
		return common.Precision{}, fmt.Errorf("bybit: unknown instrument %s", symbol)
	})
}

// SetLeverage sets the same leverage for both sides of symbol.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) (err error) {
	defer func(start time.Time) { c.observe("set_leverage", start, err) }(time.Now())

	lev := strconv.Itoa(leverage)
	err = c.doSigned(ctx, http.MethodPost, "/v5/position/set-leverage", nil, setLeverageReq{
		Category:     category,
		Symbol:       symbol,
		BuyLeverage:  lev,
		SellLeverage: lev,
	}, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == retCodeLeverageNotModified {
		return common.ErrLeverageNotModified
	}
	return err
}

// SubmitMarketOrder places a market order, attaching TP/SL when set.
func (c *Client) SubmitMarketOrder(ctx context.Context, req common.MarketOrderRequest) (res common.OrderResult, err error) {
	defer func(start time.Time) { c.observe("submit_market_order", start, err) }(time.Now())

	body := createOrderReq{
		Category:    category,
		Symbol:      req.Symbol,
		Side:        venueSide(req.Side),
		OrderType:   "Market",
		Qty:         req.Qty.String(),
		ReduceOnly:  req.ReduceOnly,
		OrderLinkID: clientID(req.ClientID),
	}
	applyBrackets(&body, req)
	return c.createOrder(ctx, body, common.StatusNew)
}

// applyBrackets fills the attached take-profit/stop-loss fields. Limit legs
// need partial mode, which is the only mode that accepts limit TP/SL.
func applyBrackets(body *createOrderReq, req common.MarketOrderRequest) {
	hasTP := req.TakeProfit.IsPositive()
	hasSL := req.StopLoss.IsPositive()
	if !hasTP && !hasSL {
		return
	}
	if hasTP {
		body.TakeProfit = req.TakeProfit.String()
		body.TPTriggerBy = string(triggerOr(req.TPTriggerBy))
	}
	if hasSL {
		body.StopLoss = req.StopLoss.String()
		body.SLTriggerBy = string(triggerOr(req.SLTriggerBy))
	}
	limitLeg := (hasTP && req.TPKind == common.KindLimit) || (hasSL && req.SLKind == common.KindLimit)
	if !limitLeg {
		body.TPSLMode = "Full"
		return
	}
	body.TPSLMode = "Partial"
	if hasTP {
		body.TPOrderType = venueKind(req.TPKind)
		if req.TPKind == common.KindLimit {
			body.TPLimitPrice = body.TakeProfit
		}
	}
	if hasSL {
		body.SLOrderType = venueKind(req.SLKind)
		if req.SLKind == common.KindLimit {
			body.SLLimitPrice = body.StopLoss
		}
	}
}

// SubmitStopOrder places a conditional market order. A sell stop fires on a
// falling price and a buy stop on a rising one.
func (c *Client) SubmitStopOrder(ctx context.Context, req common.StopOrderRequest) (res common.OrderResult, err error) {
	defer func(start time.Time) { c.observe("submit_stop_order", start, err) }(time.Now())

	direction := 1
	if req.Side == common.SideSell {
		direction = 2
	}
	body := createOrderReq{
		Category:         category,
		Symbol:           req.Symbol,
		Side:             venueSide(req.Side),
		OrderType:        "Market",
		Qty:              req.Qty.String(),
		ReduceOnly:       req.ReduceOnly,
		OrderLinkID:      clientID(req.ClientID),
		TriggerPrice:     req.TriggerPrice.String(),
		TriggerBy:        string(triggerOr(req.TriggerBy)),
		TriggerDirection: direction,
	}
	return c.createOrder(ctx, body, common.StatusUntrigger)
}

func (c *Client) createOrder(ctx context.Context, body createOrderReq, status common.OrderStatus) (common.OrderResult, error) {
	var out orderResp
	if err := c.doSigned(ctx, http.MethodPost, "/v5/order/create", nil, body, &out); err != nil {
		return common.OrderResult{}, err
	}
	return common.OrderResult{
		ExchangeOrderID: out.OrderID,
		ClientID:        out.OrderLinkID,
		Status:          status,
	}, nil
}

// CancelOrder cancels an open or untriggered order.
func (c *Client) CancelOrder(ctx context.Context, symbol, exchangeOrderID string) (err error) {
	defer func(start time.Time) { c.observe("cancel_order", start, err) }(time.Now())

	return c.doSigned(ctx, http.MethodPost, "/v5/order/cancel", nil, cancelOrderReq{
		Category: category,
		Symbol:   symbol,
		OrderID:  exchangeOrderID,
	}, nil)
}

func venueSide(s common.Side) string {
	if s == common.SideSell {
		return "Sell"
	}
	return "Buy"
}

func venueKind(k common.OrderKind) string {
	if k == common.KindLimit {
		return "Limit"
	}
	return "Market"
}

func triggerOr(t common.TriggerBy) common.TriggerBy {
	if t == "" {
		return common.TriggerLastPrice
	}
	return t
}

func clientID(id string) string {
	if strings.TrimSpace(id) != "" {
		return id
	}
	return uuid.NewString()
}
