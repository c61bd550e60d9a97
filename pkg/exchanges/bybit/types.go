package bybit

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
	Time    int64           `json:"time"`
}

type walletBalanceResult struct {
	List []struct {
		AccountType string `json:"accountType"`
		TotalEquity string `json:"totalEquity"`
		Coin        []struct {
			Coin   string `json:"coin"`
			Equity string `json:"equity"`
		} `json:"coin"`
	} `json:"list"`
}

type tickersResult struct {
	List []struct {
		Symbol    string `json:"symbol"`
		LastPrice string `json:"lastPrice"`
		MarkPrice string `json:"markPrice"`
	} `json:"list"`
}

type positionRow struct {
	Symbol        string `json:"symbol"`
	Side          string `json:"side"` // Buy, Sell, or empty when flat
	Size          string `json:"size"`
	AvgPrice      string `json:"avgPrice"`
	MarkPrice     string `json:"markPrice"`
	UnrealisedPnl string `json:"unrealisedPnl"`
}

type positionListResult struct {
	List           []positionRow `json:"list"`
	NextPageCursor string        `json:"nextPageCursor"`
}

type instrumentsResult struct {
	List []struct {
		Symbol        string `json:"symbol"`
		LotSizeFilter struct {
			QtyStep     string `json:"qtyStep"`
			MinOrderQty string `json:"minOrderQty"`
		} `json:"lotSizeFilter"`
		PriceFilter struct {
			TickSize string `json:"tickSize"`
		} `json:"priceFilter"`
	} `json:"list"`
}

type setLeverageReq struct {
	Category     string `json:"category"`
	Symbol       string `json:"symbol"`
	BuyLeverage  string `json:"buyLeverage"`
	SellLeverage string `json:"sellLeverage"`
}

// createOrderReq is the /v5/order/create body. Empty fields are omitted so
// market entries, attached brackets and conditional stops share one shape.
type createOrderReq struct {
	Category         string `json:"category"`
	Symbol           string `json:"symbol"`
	Side             string `json:"side"`
	OrderType        string `json:"orderType"`
	Qty              string `json:"qty"`
	ReduceOnly       bool   `json:"reduceOnly"`
	OrderLinkID      string `json:"orderLinkId,omitempty"`
	TakeProfit       string `json:"takeProfit,omitempty"`
	StopLoss         string `json:"stopLoss,omitempty"`
	TPTriggerBy      string `json:"tpTriggerBy,omitempty"`
	SLTriggerBy      string `json:"slTriggerBy,omitempty"`
	TPSLMode         string `json:"tpslMode,omitempty"`
	TPOrderType      string `json:"tpOrderType,omitempty"`
	SLOrderType      string `json:"slOrderType,omitempty"`
	TPLimitPrice     string `json:"tpLimitPrice,omitempty"`
	SLLimitPrice     string `json:"slLimitPrice,omitempty"`
	TriggerPrice     string `json:"triggerPrice,omitempty"`
	TriggerBy        string `json:"triggerBy,omitempty"`
	TriggerDirection int    `json:"triggerDirection,omitempty"`
}

type cancelOrderReq struct {
	Category string `json:"category"`
	Symbol   string `json:"symbol"`
	OrderID  string `json:"orderId"`
}

type orderResp struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}

// dec parses a venue numeric string; blanks and garbage read as zero.
func dec(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
