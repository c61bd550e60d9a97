// Package bybit implements the common.Gateway for Bybit v5 USDT linear perpetuals.
package bybit

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"signal-executor/pkg/cache"
	"signal-executor/pkg/exchanges/common"
	"signal-executor/pkg/logging"

	"go.uber.org/zap"
)

const (
	mainnetURL = "https://api.bybit.com"
	testnetURL = "https://api-testnet.bybit.com"

	category = "linear"

	retCodeLeverageNotModified = 110043
)

// Config holds Bybit credentials and client tuning.
type Config struct {
	APIKey     string
	APISecret  string
	Testnet    bool
	RecvWindow int64  // ms
	BaseURL    string // overrides the mainnet/testnet host, used by tests
	Logger     *zap.SugaredLogger
	// OnCall observes every gateway operation; may be nil.
	OnCall func(op string, d time.Duration, err error)
}

// Client talks to the Bybit v5 REST API for one account.
type Client struct {
	cfg         Config
	baseURL     string
	httpClient  *http.Client
	timeSync    *common.TimeSync
	rateLimiter *common.RateLimiter
	precision   *cache.Sharded[common.Precision]
	log         *zap.SugaredLogger
}

// APIError is a non-zero retCode returned inside a 200 response.
type APIError struct {
	Path string
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bybit %s: retCode %d: %s", e.Path, e.Code, e.Msg)
}

// NewClient creates a client. Call Start to begin clock synchronization.
func NewClient(cfg Config) *Client {
	base := mainnetURL
	if cfg.Testnet {
		base = testnetURL
	}
	if cfg.BaseURL != "" {
		base = cfg.BaseURL
	}
	if cfg.RecvWindow == 0 {
		cfg.RecvWindow = 5000
	}
	log := logging.OrNop(cfg.Logger).Named("bybit")
	c := &Client{
		cfg:         cfg,
		baseURL:     base,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		rateLimiter: common.NewRateLimiter(log),
		precision:   cache.NewSharded[common.Precision](time.Hour),
		log:         log,
	}
	c.timeSync = common.NewTimeSync(c.GetServerTime, log)
	return c
}

// Start syncs the local clock with the venue and keeps it synced until ctx ends.
func (c *Client) Start(ctx context.Context) {
	c.timeSync.Start(ctx)
}

// GetServerTime fetches the venue clock in milliseconds.
func (c *Client) GetServerTime(ctx context.Context) (int64, error) {
	var out struct {
		TimeSecond string `json:"timeSecond"`
		TimeNano   string `json:"timeNano"`
	}
	if err := c.doPublic(ctx, "/v5/market/time", nil, &out); err != nil {
		return 0, err
	}
	if ns, err := strconv.ParseInt(out.TimeNano, 10, 64); err == nil && ns > 0 {
		return ns / int64(time.Millisecond), nil
	}
	sec, err := strconv.ParseInt(out.TimeSecond, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode server time: %w", err)
	}
	return sec * 1000, nil
}

func (c *Client) now() int64 {
	if c.timeSync != nil && c.timeSync.Offset() != 0 {
		return c.timeSync.Now()
	}
	return time.Now().UnixMilli()
}

func (c *Client) observe(op string, start time.Time, err error) {
	if c.cfg.OnCall != nil {
		c.cfg.OnCall(op, time.Since(start), err)
	}
}

// doPublic sends an unsigned GET and decodes the envelope result into out.
func (c *Client) doPublic(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.send(req, path, out)
}

// doSigned signs and sends a private request. GET params go in the query
// string; POST bodies are JSON.
func (c *Client) doSigned(ctx context.Context, method, path string, params url.Values, body any, out any) error {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return errors.New("bybit: API key/secret required")
	}
	if err := c.waitForBudget(ctx); err != nil {
		return err
	}

	var (
		payload string
		reader  io.Reader
	)
	endpoint := c.baseURL + path
	if method == http.MethodGet {
		payload = params.Encode()
		if payload != "" {
			endpoint += "?" + payload
		}
	} else {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		payload = string(b)
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	ts := strconv.FormatInt(c.now(), 10)
	recv := strconv.FormatInt(c.cfg.RecvWindow, 10)
	req.Header.Set("X-BAPI-API-KEY", c.cfg.APIKey)
	req.Header.Set("X-BAPI-TIMESTAMP", ts)
	req.Header.Set("X-BAPI-RECV-WINDOW", recv)
	req.Header.Set("X-BAPI-SIGN", sign(ts+c.cfg.APIKey+recv+payload, c.cfg.APISecret))
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, path, out)
}

func (c *Client) send(req *http.Request, path string, out any) error {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	c.rateLimiter.UpdateFromHeaders(
		res.Header.Get("X-Bapi-Limit-Status"),
		res.Header.Get("X-Bapi-Limit"),
		res.Header.Get("X-Bapi-Limit-Reset-Timestamp"),
	)

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if res.StatusCode >= 300 {
		return fmt.Errorf("bybit %s %s status %d: %s", req.Method, path, res.StatusCode, string(body))
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	if env.RetCode != 0 {
		return &APIError{Path: path, Code: env.RetCode, Msg: env.RetMsg}
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", path, err)
	}
	return nil
}

// waitForBudget backs off until the reported window resets when the last
// response showed the request budget nearly spent.
func (c *Client) waitForBudget(ctx context.Context) error {
	if !c.rateLimiter.ShouldDelay() {
		return nil
	}
	wait := c.rateLimiter.ResetIn()
	if wait <= 0 {
		return nil
	}
	if wait > time.Second {
		wait = time.Second
	}
	c.log.Debugw("rate limit backoff", "wait", wait)
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func sign(payload, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
