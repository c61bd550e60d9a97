package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"signal-executor/internal/events"
	"signal-executor/internal/executor"
	"signal-executor/internal/monitor"
	"signal-executor/internal/registry"
	"signal-executor/pkg/config"
	"signal-executor/pkg/db"
	"signal-executor/pkg/exchanges/common"
	"signal-executor/pkg/exchanges/paper"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	srv *Server
	reg *registry.Registry
	bus *events.Bus
}

func newTestEnv(t *testing.T, balance int64, mutate func(*Options)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	bus := events.NewBus()
	var accounts []config.Account
	for _, id := range []string{"alpha", "beta"} {
		a := config.DefaultAccount()
		a.ID = id
		a.MonitoringActive = false
		accounts = append(accounts, a)
	}
	reg, err := registry.FromAccounts(accounts, func(config.Account) (common.Gateway, error) {
		return paper.New(paper.SimConfig{
			InitialBalance: decimal.NewFromInt(balance),
			Prices:         map[string]decimal.Decimal{"BTCUSDT": decimal.NewFromInt(100)},
		}), nil
	}, executor.Deps{Bus: bus}, registry.Options{})
	require.NoError(t, err)

	opts := Options{Bus: bus, Metrics: monitor.NewMetrics("")}
	if mutate != nil {
		mutate(&opts)
	}
	return &testEnv{srv: NewServer(reg, opts), reg: reg, bus: bus}
}

func (env *testEnv) do(t *testing.T, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	env.srv.Router.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestWebhookValidation(t *testing.T) {
	env := newTestEnv(t, 10000, nil)

	tests := []struct {
		name string
		body any
		code string
	}{
		{"missing side", map[string]string{"symbol": "BTCUSDT"}, "MISSING_FIELDS"},
		{"missing symbol", map[string]string{"side": "buy"}, "MISSING_FIELDS"},
		{"bad side", map[string]string{"symbol": "BTCUSDT", "side": "up"}, "INVALID_SIGNAL"},
		{"bad tp kind", map[string]string{"symbol": "BTCUSDT", "side": "buy", "tpOrderType": "stop"}, "INVALID_SIGNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := env.do(t, http.MethodPost, "/webhook", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "error", body["status"])
			assert.Equal(t, tt.code, body["code"])
		})
	}
	for _, id := range env.reg.IDs() {
		e, _ := env.reg.Get(id)
		assert.Zero(t, e.Status().TradeCount+e.Status().FailedCount)
	}
}

func TestWebhookFansOut(t *testing.T) {
	env := newTestEnv(t, 10000, nil)

	rec, body := env.do(t, http.MethodPost, "/webhook", map[string]string{"symbol": "btcusdt", "side": "buy"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "success", body["status"])
	responses := body["responses"].(map[string]any)
	require.Len(t, responses, 2)
	for id, r := range responses {
		res := r.(map[string]any)
		assert.Equal(t, "success", res["status"], id)
		trade := res["trade"].(map[string]any)
		assert.Equal(t, "BTCUSDT", trade["symbol"])
		assert.Equal(t, "limit", trade["tp_order_type"])
		assert.Equal(t, "market", trade["sl_order_type"])
	}
}

func TestWebhookPassphrase(t *testing.T) {
	hash, err := HashPassphrase("s3cret")
	require.NoError(t, err)
	env := newTestEnv(t, 10000, func(o *Options) { o.PassphraseHash = hash })

	rec, body := env.do(t, http.MethodPost, "/webhook", map[string]string{"symbol": "BTCUSDT", "side": "sell", "passphrase": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_PASSPHRASE", body["code"])

	rec, _ = env.do(t, http.MethodPost, "/webhook", map[string]string{"symbol": "BTCUSDT", "side": "sell", "passphrase": "s3cret"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListAccounts(t *testing.T) {
	env := newTestEnv(t, 10000, nil)

	rec, body := env.do(t, http.MethodGet, "/accounts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	accounts := body["accounts"].(map[string]any)
	require.Len(t, accounts, 2)
	alpha := accounts["alpha"].(map[string]any)
	assert.Equal(t, true, alpha["trading_enabled"])
	assert.Equal(t, float64(0), alpha["total_trades"])
}

func TestAccountStatus(t *testing.T) {
	env := newTestEnv(t, 10000, nil)

	rec, _ := env.do(t, http.MethodGet, "/account/nobody/status", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body := env.do(t, http.MethodGet, "/account/alpha/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "10000", data["balance"])
	assert.Equal(t, true, data["trading_enabled"])
	assert.Equal(t, "alpha", data["account_id"])
}

func TestAccountStatusRunsBreaker(t *testing.T) {
	env := newTestEnv(t, 50, nil)

	rec, body := env.do(t, http.MethodGet, "/account/alpha/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "50", data["balance"])
	assert.Equal(t, false, data["trading_enabled"])
	assert.Equal(t, true, data["breaker_tripped"])
	assert.Contains(t, data["balance_error"], "insufficient balance")
}

func TestAccountTradesAndProfitLocks(t *testing.T) {
	env := newTestEnv(t, 10000, nil)

	rec, body := env.do(t, http.MethodGet, "/account/alpha/trades", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, []any{}, data["trade_history"])
	assert.Equal(t, []any{}, data["failed_trades"])

	env.do(t, http.MethodPost, "/webhook", map[string]string{"symbol": "BTCUSDT", "side": "long"})
	_, body = env.do(t, http.MethodGet, "/account/alpha/trades", nil)
	assert.Len(t, body["data"].(map[string]any)["trade_history"], 1)

	rec, body = env.do(t, http.MethodGet, "/account/beta/profit-locks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), body["data"].(map[string]any)["total_profit_locks"])
}

func TestAccountControl(t *testing.T) {
	env := newTestEnv(t, 10000, nil)
	alpha, _ := env.reg.Get("alpha")

	rec, body := env.do(t, http.MethodPost, "/account/alpha/control", map[string]string{"action": "pause"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Trading paused", body["message"])
	assert.False(t, alpha.Status().TradingEnabled)

	_, body = env.do(t, http.MethodPost, "/webhook", map[string]string{"symbol": "BTCUSDT", "side": "long"})
	responses := body["responses"].(map[string]any)
	assert.Equal(t, "disabled", responses["alpha"].(map[string]any)["status"])
	assert.Equal(t, "success", responses["beta"].(map[string]any)["status"])

	_, body = env.do(t, http.MethodPost, "/account/alpha/control", map[string]string{"action": "resume"})
	assert.Equal(t, "Trading resumed", body["message"])
	assert.True(t, alpha.Status().TradingEnabled)

	_, body = env.do(t, http.MethodPost, "/account/alpha/control", map[string]string{"action": "toggle_monitor"})
	assert.Equal(t, "Monitoring enabled", body["message"])
	assert.True(t, alpha.Status().MonitoringActive)

	rec, body = env.do(t, http.MethodPost, "/account/alpha/control", map[string]string{"action": "explode"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_ACTION", body["code"])

	rec, _ = env.do(t, http.MethodPost, "/account/ghost/control", map[string]string{"action": "pause"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAccountControlRequiresToken(t *testing.T) {
	env := newTestEnv(t, 10000, func(o *Options) { o.JWTSecret = "operator-secret" })

	rec, body := env.do(t, http.MethodPost, "/account/alpha/control", map[string]string{"action": "pause"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "MISSING_TOKEN", body["code"])

	bad, _, err := GenerateToken("other-secret", "ops", time.Hour)
	require.NoError(t, err)
	rec, _ = env.do(t, http.MethodPost, "/account/alpha/control", map[string]string{"action": "pause"}, "Authorization", "Bearer "+bad)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	expired, _, err := GenerateToken("operator-secret", "ops", -time.Minute)
	require.NoError(t, err)
	rec, _ = env.do(t, http.MethodPost, "/account/alpha/control", map[string]string{"action": "pause"}, "Authorization", "Bearer "+expired)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	good, exp, err := GenerateToken("operator-secret", "ops", time.Hour)
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))
	rec, _ = env.do(t, http.MethodPost, "/account/alpha/control", map[string]string{"action": "pause"}, "Authorization", "Bearer "+good)
	assert.Equal(t, http.StatusOK, rec.Code)

	// read-only endpoints stay open
	rec, _ = env.do(t, http.MethodGet, "/account/alpha/trades", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	env := newTestEnv(t, 10000, nil)

	rec, body := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(2), body["accounts"])
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "SAMEORIGIN", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "1; mode=block", rec.Header().Get("X-XSS-Protection"))
	assert.Contains(t, rec.Header().Get("Strict-Transport-Security"), "max-age=31536000")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec, _ = env.do(t, http.MethodGet, "/health", nil, "X-Request-ID", "req-42")
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, 10000, func(o *Options) {
		o.RateLimitRPS = 0.001
		o.RateLimitBurst = 2
	})

	for i := 0; i < 2; i++ {
		rec, _ := env.do(t, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	rec, body := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", body["code"])
}

func TestIPRateLimiterSweep(t *testing.T) {
	l := newIPRateLimiter(1, 1)
	l.get("1.2.3.4")
	l.sweep(time.Hour)
	assert.Len(t, l.limiters, 1)
	l.sweep(-time.Second)
	assert.Empty(t, l.limiters)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, 10000, nil)
	env.do(t, http.MethodPost, "/webhook", map[string]string{"symbol": "BTCUSDT", "side": "buy"})

	rec, _ := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `signal_executor_api_signals_total{outcome="accepted"} 1`)
}

func TestAccountJournal(t *testing.T) {
	env := newTestEnv(t, 10000, nil)
	rec, body := env.do(t, http.MethodGet, "/account/alpha/journal", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "JOURNAL_DISABLED", body["code"])

	database, err := db.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.ApplyMigrations(database))
	require.NoError(t, database.InsertTrade(context.Background(), db.TradeRecord{
		ID: "t1", AccountID: "alpha", Outcome: db.OutcomeFailed, Symbol: "BTCUSDT", Side: "long",
		Error: "sizing error", CreatedAt: time.Now(),
	}))
	env = newTestEnv(t, 10000, func(o *Options) { o.DB = database })

	rec, body = env.do(t, http.MethodGet, "/account/alpha/journal?kind=failed&limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := body["data"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "sizing error", rows[0].(map[string]any)["error"])

	rec, body = env.do(t, http.MethodGet, "/account/alpha/journal?kind=trades", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, body["data"])

	rec, _ = env.do(t, http.MethodGet, "/account/alpha/journal?kind=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebsocketStreamsAccountEvents(t *testing.T) {
	env := newTestEnv(t, 10000, nil)
	ts := httptest.NewServer(env.srv.Router)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?account=beta"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The subscription is registered asynchronously; keep publishing until it lands.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				env.bus.PublishAccount(events.EventMonitoring, "alpha", events.StateChange{Enabled: true})
				env.bus.PublishAccount(events.EventTradingState, "beta", events.StateChange{Enabled: false, Reason: "operator"})
			}
		}
	}()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev map[string]any
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "beta", ev["account_id"])
	assert.Equal(t, "account.trading", ev["type"])
}
