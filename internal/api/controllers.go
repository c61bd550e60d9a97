package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"signal-executor/internal/executor"
	"signal-executor/pkg/db"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type webhookRequest struct {
	Symbol      string `json:"symbol" binding:"required"`
	Side        string `json:"side" binding:"required"`
	TPOrderType string `json:"tpOrderType"`
	SLOrderType string `json:"slOrderType"`
	Passphrase  string `json:"passphrase"`
}

type controlRequest struct {
	Action string `json:"action" binding:"required"`
}

type journalQuery struct {
	Kind  string `form:"kind"`
	Limit int    `form:"limit"`
}

func (q *journalQuery) normalize() {
	if q.Kind == "" {
		q.Kind = "trades"
	}
	if q.Limit <= 0 {
		q.Limit = 100
	}
	if q.Limit > 500 {
		q.Limit = 500
	}
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{
		"status":  "error",
		"code":    code,
		"message": msg,
	})
}

func (s *Server) signalOutcome(outcome string) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.Signal(outcome)
	}
}

// webhook fans a signal out to every enabled account.
func (s *Server) webhook(c *gin.Context) {
	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.signalOutcome("rejected")
		respondError(c, http.StatusBadRequest, "MISSING_FIELDS", "Missing required fields: [side symbol]")
		return
	}
	if s.opts.PassphraseHash != "" {
		if err := checkPassphrase(s.opts.PassphraseHash, req.Passphrase); err != nil {
			s.signalOutcome("unauthorized")
			s.log.Warnw("webhook rejected, bad passphrase", "ip", c.ClientIP(), "request_id", c.GetString(requestIDKey))
			respondError(c, http.StatusUnauthorized, "INVALID_PASSPHRASE", "invalid passphrase")
			return
		}
	}
	sig, err := executor.ParseSignal(req.Symbol, req.Side, req.TPOrderType, req.SLOrderType)
	if err != nil {
		s.signalOutcome("rejected")
		respondError(c, http.StatusBadRequest, "INVALID_SIGNAL", err.Error())
		return
	}

	s.log.Infow("received webhook", "symbol", sig.Symbol, "side", sig.Side, "tp_kind", sig.TPKind,
		"sl_kind", sig.SLKind, "request_id", c.GetString(requestIDKey))
	s.signalOutcome("accepted")

	// Placements outlive a client that hangs up mid-request.
	responses := s.Registry.Dispatch(context.WithoutCancel(c.Request.Context()), sig)
	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"responses": responses,
	})
}

func (s *Server) executorFor(c *gin.Context) (*executor.Executor, bool) {
	id := c.Param("id")
	e, ok := s.Registry.Get(id)
	if !ok {
		respondError(c, http.StatusNotFound, "ACCOUNT_NOT_FOUND", fmt.Sprintf("Account %s not found", id))
	}
	return e, ok
}

func (s *Server) listAccounts(c *gin.Context) {
	accounts := make(map[string]gin.H, s.Registry.Len())
	for _, a := range s.Registry.List() {
		accounts[a.ID] = gin.H{
			"enabled":            a.Enabled,
			"testnet":            a.Testnet,
			"trading_enabled":    a.Status.TradingEnabled,
			"monitoring_active":  a.Status.MonitoringActive,
			"breaker_tripped":    a.Status.BreakerTripped,
			"total_trades":       a.Status.TradeCount,
			"total_profit_locks": a.Status.TotalProfitLocks,
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"accounts": accounts,
	})
}

type statusView struct {
	executor.Status
	Balance      *decimal.Decimal `json:"balance"`
	BalanceError string           `json:"balance_error,omitempty"`
}

// accountStatus reads live equity, which runs the balance breaker.
func (s *Server) accountStatus(c *gin.Context) {
	e, ok := s.executorFor(c)
	if !ok {
		return
	}
	var view statusView
	equity, err := e.CheckAndEnforceThreshold(c.Request.Context())
	switch {
	case err == nil, errors.Is(err, executor.ErrInsufficientBalance):
		view.Balance = &equity
		if err != nil {
			view.BalanceError = err.Error()
		}
	default:
		view.BalanceError = err.Error()
	}
	view.Status = e.Status()
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   view,
	})
}

func (s *Server) accountTrades(c *gin.Context) {
	e, ok := s.executorFor(c)
	if !ok {
		return
	}
	history, failed := e.Trades()
	if history == nil {
		history = []executor.TradeRecord{}
	}
	if failed == nil {
		failed = []executor.TradeRecord{}
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"trade_history": history,
			"failed_trades": failed,
		},
	})
}

func (s *Server) accountProfitLocks(c *gin.Context) {
	e, ok := s.executorFor(c)
	if !ok {
		return
	}
	locks, total := e.ProfitLocks()
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"total_profit_locks": total,
			"profit_locks":       locks,
		},
	})
}

func (s *Server) accountControl(c *gin.Context) {
	e, ok := s.executorFor(c)
	if !ok {
		return
	}
	var req controlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
		return
	}

	var message string
	switch req.Action {
	case "pause":
		e.DisableTrading()
		message = "Trading paused"
	case "resume":
		e.EnableTrading()
		message = "Trading resumed"
	case "toggle_monitor":
		if e.ToggleMonitoring() {
			message = "Monitoring enabled"
		} else {
			message = "Monitoring disabled"
		}
	default:
		respondError(c, http.StatusBadRequest, "INVALID_ACTION", "Invalid action")
		return
	}

	s.log.Infow("account control", "account", e.ID(), "action", req.Action, "operator", CurrentOperator(c))
	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"message":    message,
		"account_id": e.ID(),
	})
}

// accountJournal reads persisted history, which survives restarts unlike
// the in-memory trade lists.
func (s *Server) accountJournal(c *gin.Context) {
	e, ok := s.executorFor(c)
	if !ok {
		return
	}
	if s.opts.DB == nil {
		respondError(c, http.StatusServiceUnavailable, "JOURNAL_DISABLED", "journal is not enabled")
		return
	}
	var q journalQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_QUERY", "invalid query parameters")
		return
	}
	q.normalize()

	ctx := c.Request.Context()
	var (
		rows any
		err  error
	)
	switch q.Kind {
	case "trades":
		rows, err = s.opts.DB.ListTrades(ctx, e.ID(), db.OutcomePlaced, q.Limit)
	case "failed":
		rows, err = s.opts.DB.ListTrades(ctx, e.ID(), db.OutcomeFailed, q.Limit)
	case "profit-locks":
		rows, err = s.opts.DB.ListProfitLocks(ctx, e.ID(), q.Limit)
	case "events":
		rows, err = s.opts.DB.ListAccountEvents(ctx, e.ID(), q.Limit)
	default:
		respondError(c, http.StatusBadRequest, "INVALID_KIND", "kind must be trades, failed, profit-locks or events")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"kind":   q.Kind,
		"limit":  q.Limit,
		"data":   rows,
	})
}
