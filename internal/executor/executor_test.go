package executor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"signal-executor/internal/events"
	"signal-executor/pkg/exchanges/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T, cfg Config, gw *fakeGateway) (*Executor, *fakeMetrics, *events.Bus) {
	t.Helper()
	m := newFakeMetrics()
	bus := events.NewBus()
	e := New(cfg, gw, Deps{Bus: bus, Metrics: m})
	t.Cleanup(e.Stop)
	return e, m, bus
}

func longSignal(symbol string) Signal {
	return Signal{Symbol: symbol, Side: common.PositionLong, TPKind: common.KindLimit, SLKind: common.KindMarket}
}

func shortSignal(symbol string) Signal {
	return Signal{Symbol: symbol, Side: common.PositionShort, TPKind: common.KindLimit, SLKind: common.KindMarket}
}

func TestPlaceOrderDisabledMakesNoGatewayCalls(t *testing.T) {
	gw := newFakeGateway()
	e, m, _ := newTestExecutor(t, testConfig(), gw)
	e.DisableTrading()

	res := e.PlaceOrder(context.Background(), longSignal("BTCUSDT"))

	assert.Equal(t, StatusDisabled, res.Status)
	assert.Nil(t, res.Trade)
	assert.Zero(t, gw.totalCalls())
	history, failed := e.Trades()
	assert.Empty(t, history)
	assert.Empty(t, failed)
	assert.Zero(t, m.placed)
}

func TestPlaceOrderSuccessRecordsOnce(t *testing.T) {
	gw := newFakeGateway()
	e, m, _ := newTestExecutor(t, testConfig(), gw)

	res := e.PlaceOrder(context.Background(), longSignal("BTCUSDT"))

	require.Equal(t, StatusSuccess, res.Status, res.Message)
	require.NotNil(t, res.Trade)
	history, failed := e.Trades()
	require.Len(t, history, 1)
	assert.Empty(t, failed)
	assert.Equal(t, 1, m.placed)

	rec := history[0]
	assert.Equal(t, "m1", rec.OrderID)
	assert.Equal(t, common.StatusNew, rec.OrderStatus)
	assert.True(t, d("0.5").Equal(rec.Size), rec.Size.String())
	assert.True(t, d("100").Equal(rec.EntryPrice))

	require.Len(t, gw.marketOrders, 1)
	req := gw.marketOrders[0]
	assert.Equal(t, common.SideBuy, req.Side)
	assert.False(t, req.ReduceOnly)
	assert.Equal(t, rec.ID, req.ClientID)
	assert.Equal(t, common.TriggerLastPrice, req.TPTriggerBy)
	assert.Equal(t, common.TriggerLastPrice, req.SLTriggerBy)
	assert.Equal(t, common.KindLimit, req.TPKind)
	assert.Equal(t, common.KindMarket, req.SLKind)
	assert.Equal(t, 1, gw.count("leverage"))
}

func TestPlaceOrderFailureRecordsOnce(t *testing.T) {
	gw := newFakeGateway()
	gw.submitErr = errors.New("exchange down")
	e, m, _ := newTestExecutor(t, testConfig(), gw)

	res := e.PlaceOrder(context.Background(), longSignal("BTCUSDT"))

	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Message, "exchange down")
	history, failed := e.Trades()
	assert.Empty(t, history)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].Error, "exchange down")
	assert.Equal(t, 1, m.failed["gateway"])
	assert.Zero(t, m.placed)
}

func TestPlaceOrderBrackets(t *testing.T) {
	tests := []struct {
		name   string
		sig    Signal
		side   common.Side
		tp, sl string
	}{
		{"long", longSignal("BTCUSDT"), common.SideBuy, "130", "95"},
		{"short", shortSignal("BTCUSDT"), common.SideSell, "70", "105"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newFakeGateway()
			e, _, _ := newTestExecutor(t, testConfig(), gw)

			res := e.PlaceOrder(context.Background(), tt.sig)
			require.Equal(t, StatusSuccess, res.Status, res.Message)

			assert.True(t, d(tt.tp).Equal(res.Trade.TakeProfit), res.Trade.TakeProfit.String())
			assert.True(t, d(tt.sl).Equal(res.Trade.StopLoss), res.Trade.StopLoss.String())
			req := gw.marketOrders[0]
			assert.Equal(t, tt.side, req.Side)
			assert.True(t, d(tt.tp).Equal(req.TakeProfit))
			assert.True(t, d(tt.sl).Equal(req.StopLoss))
		})
	}
}

func TestPlaceOrderBracketsRoundToPriceStep(t *testing.T) {
	gw := newFakeGateway()
	gw.price = d("123.45")
	gw.precision.PriceStep = d("0.5")
	e, _, _ := newTestExecutor(t, testConfig(), gw)

	res := e.PlaceOrder(context.Background(), longSignal("ETHUSDT"))
	require.Equal(t, StatusSuccess, res.Status, res.Message)

	// 123.45*1.3 = 160.485, 123.45*0.95 = 117.2775
	assert.True(t, d("160.5").Equal(res.Trade.TakeProfit), res.Trade.TakeProfit.String())
	assert.True(t, d("117.5").Equal(res.Trade.StopLoss), res.Trade.StopLoss.String())
}

func TestPlaceOrderOppositeSideDoublesSize(t *testing.T) {
	tests := []struct {
		name     string
		existing common.PositionSide
		size     string
		sig      Signal
		want     string
	}{
		{"opposite long to short", common.PositionLong, "0.5", shortSignal("BTCUSDT"), "1"},
		{"same side", common.PositionLong, "0.5", longSignal("BTCUSDT"), "0.5"},
		{"dust opposite ignored", common.PositionShort, "0.000001", longSignal("BTCUSDT"), "0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newFakeGateway()
			gw.positions = []common.Position{{Symbol: "BTCUSDT", Side: tt.existing, Size: d(tt.size), EntryPrice: d("100")}}
			e, _, _ := newTestExecutor(t, testConfig(), gw)

			res := e.PlaceOrder(context.Background(), tt.sig)
			require.Equal(t, StatusSuccess, res.Status, res.Message)
			assert.True(t, d(tt.want).Equal(gw.marketOrders[0].Qty), gw.marketOrders[0].Qty.String())
		})
	}
}

func TestPlaceOrderOtherSymbolPositionDoesNotDouble(t *testing.T) {
	gw := newFakeGateway()
	gw.positions = []common.Position{{Symbol: "ETHUSDT", Side: common.PositionShort, Size: d("3")}}
	e, _, _ := newTestExecutor(t, testConfig(), gw)

	res := e.PlaceOrder(context.Background(), longSignal("BTCUSDT"))
	require.Equal(t, StatusSuccess, res.Status, res.Message)
	assert.True(t, d("0.5").Equal(gw.marketOrders[0].Qty))
}

func TestPlaceOrderToleratesLeverageErrors(t *testing.T) {
	for _, err := range []error{common.ErrLeverageNotModified, errors.New("leverage locked by venue")} {
		gw := newFakeGateway()
		gw.leverageErr = err
		e, _, _ := newTestExecutor(t, testConfig(), gw)

		res := e.PlaceOrder(context.Background(), longSignal("BTCUSDT"))
		assert.Equal(t, StatusSuccess, res.Status, res.Message)
		assert.Equal(t, 1, gw.count("market"))
	}
}

func TestPlaceOrderPositionsErrorFails(t *testing.T) {
	gw := newFakeGateway()
	gw.positionsErr = errors.New("timeout")
	e, m, _ := newTestExecutor(t, testConfig(), gw)

	res := e.PlaceOrder(context.Background(), longSignal("BTCUSDT"))
	assert.Equal(t, StatusError, res.Status)
	assert.Zero(t, gw.count("market"))
	assert.Equal(t, 1, m.failed["gateway"])
}

func TestComputeSizeTruncatesToStep(t *testing.T) {
	gw := newFakeGateway()
	gw.price = d("30000")
	e, _, _ := newTestExecutor(t, testConfig(), gw)

	// 1000 * 1% * 5 / 30000 = 0.0016666..
	size, price, err := e.ComputeSize(context.Background(), "BTCUSDT", one)
	require.NoError(t, err)
	assert.True(t, d("0.001").Equal(size), size.String())
	assert.True(t, d("30000").Equal(price))

	size, _, err = e.ComputeSize(context.Background(), "BTCUSDT", two)
	require.NoError(t, err)
	assert.True(t, d("0.003").Equal(size), size.String())
}

func TestComputeSizeBelowStepIsSizingError(t *testing.T) {
	gw := newFakeGateway()
	gw.price = d("100000")
	e, m, _ := newTestExecutor(t, testConfig(), gw)

	_, _, err := e.ComputeSize(context.Background(), "BTCUSDT", one)
	require.ErrorIs(t, err, ErrSizing)

	res := e.PlaceOrder(context.Background(), longSignal("BTCUSDT"))
	assert.Equal(t, StatusError, res.Status)
	assert.Zero(t, gw.count("market"))
	_, failed := e.Trades()
	assert.Len(t, failed, 1)
	assert.Equal(t, 1, m.failed["sizing"])
}

func TestComputeSizeBelowMinAmount(t *testing.T) {
	gw := newFakeGateway()
	gw.precision.MinAmount = d("1")
	e, _, _ := newTestExecutor(t, testConfig(), gw)

	_, _, err := e.ComputeSize(context.Background(), "BTCUSDT", one)
	require.ErrorIs(t, err, ErrSizing)
	assert.Contains(t, err.Error(), "below minimum order")
}

func TestComputeSizeEquityErrorIsGatewaySizingError(t *testing.T) {
	gw := newFakeGateway()
	gw.equityErr = errors.New("auth failed")
	e, _, _ := newTestExecutor(t, testConfig(), gw)

	_, _, err := e.ComputeSize(context.Background(), "BTCUSDT", one)
	require.ErrorIs(t, err, ErrSizing)
	require.ErrorIs(t, err, ErrGateway)
	assert.NotErrorIs(t, err, ErrInsufficientBalance)
}

func TestPlaceOrderBelowThresholdTripsBreaker(t *testing.T) {
	gw := newFakeGateway()
	gw.equity = d("50")
	e, m, _ := newTestExecutor(t, testConfig(), gw)

	res := e.PlaceOrder(context.Background(), longSignal("BTCUSDT"))
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, 1, m.failed["insufficient_balance"])
	assert.False(t, e.Status().TradingEnabled)

	res = e.PlaceOrder(context.Background(), longSignal("BTCUSDT"))
	assert.Equal(t, StatusDisabled, res.Status)
	_, failed := e.Trades()
	assert.Len(t, failed, 1)
}

func TestPlaceOrderPublishesEvents(t *testing.T) {
	gw := newFakeGateway()
	e, _, bus := newTestExecutor(t, testConfig(), gw)
	ch, unsub := bus.Subscribe(events.EventTradePlaced, 1)
	defer unsub()

	res := e.PlaceOrder(context.Background(), longSignal("BTCUSDT"))
	require.Equal(t, StatusSuccess, res.Status)

	select {
	case got := <-ch:
		ev, ok := got.(events.AccountEvent)
		require.True(t, ok)
		assert.Equal(t, "acct1", ev.AccountID)
		rec, ok := ev.Data.(TradeRecord)
		require.True(t, ok)
		assert.Equal(t, res.Trade.ID, rec.ID)
	default:
		t.Fatal("no trade.placed event")
	}
}

func TestConcurrentPlacementsKeepEveryRecord(t *testing.T) {
	gw := newFakeGateway()
	gw.positions = []common.Position{{
		Symbol: "ETHUSDT", Side: common.PositionLong, Size: d("10"),
		EntryPrice: d("100"), MarkPrice: d("103"), UnrealizedPnL: d("30"),
	}}
	e, _, _ := newTestExecutor(t, testConfig(), gw)

	const placements, ticks = 25, 25
	var wg sync.WaitGroup
	for i := 0; i < placements; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.PlaceOrder(context.Background(), longSignal("BTCUSDT"))
		}()
	}
	for i := 0; i < ticks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.monitorTick(context.Background())
		}()
	}
	wg.Wait()

	history, failed := e.Trades()
	assert.Len(t, history, placements)
	assert.Empty(t, failed)
	locks, total := e.ProfitLocks()
	assert.Equal(t, ticks, total)
	assert.Len(t, locks["ETHUSDT"], ticks)

	ids := make(map[string]bool)
	for _, r := range history {
		ids[r.ID] = true
	}
	assert.Len(t, ids, placements)
}

func TestParseSignal(t *testing.T) {
	tests := []struct {
		name                 string
		symbol, side, tp, sl string
		want                 Signal
		wantErr              bool
	}{
		{"defaults", "btcusdt", "buy", "", "", Signal{Symbol: "BTCUSDT", Side: common.PositionLong, TPKind: common.KindLimit, SLKind: common.KindMarket}, false},
		{"short explicit kinds", "ETHUSDT", "Short", "market", "LIMIT", Signal{Symbol: "ETHUSDT", Side: common.PositionShort, TPKind: common.KindMarket, SLKind: common.KindLimit}, false},
		{"sell is short", "SOLUSDT", "sell", "", "", Signal{Symbol: "SOLUSDT", Side: common.PositionShort, TPKind: common.KindLimit, SLKind: common.KindMarket}, false},
		{"missing symbol", " ", "long", "", "", Signal{}, true},
		{"bad side", "BTCUSDT", "up", "", "", Signal{}, true},
		{"bad tp kind", "BTCUSDT", "long", "stop", "", Signal{}, true},
		{"bad sl kind", "BTCUSDT", "long", "", "trailing", Signal{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSignal(tt.symbol, tt.side, tt.tp, tt.sl)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidSignal)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
