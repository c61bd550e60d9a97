// Package api is the HTTP surface: signal ingestion, account status and
// control, health, metrics and a websocket stream of account events.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"signal-executor/internal/events"
	"signal-executor/internal/monitor"
	"signal-executor/internal/registry"
	"signal-executor/pkg/db"
	"signal-executor/pkg/logging"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Options carries the server's collaborators. Only Registry is required.
type Options struct {
	Bus            *events.Bus
	DB             *db.Database // optional journal, read by /journal
	Metrics        *monitor.Metrics
	Logger         *zap.SugaredLogger
	JWTSecret      string // empty leaves /control open
	PassphraseHash string // bcrypt hash; empty accepts any webhook
	RateLimitRPS   float64
	RateLimitBurst int
	RequestTimeout time.Duration
	Meta           SystemMeta
}

// SystemMeta describes the runtime exposed on /health.
type SystemMeta struct {
	DryRun  bool   `json:"dry_run"`
	Venue   string `json:"venue"`
	Version string `json:"version"`
}

// Server wires HTTP endpoints around the account registry.
type Server struct {
	Router   *gin.Engine
	Registry *registry.Registry
	opts     Options
	limiter  *ipRateLimiter
	log      *zap.SugaredLogger
}

// NewServer builds the router.
func NewServer(reg *registry.Registry, opts Options) *Server {
	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = 20
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 50
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	log := logging.OrNop(opts.Logger).Named("api")

	r := gin.New()
	s := &Server{
		Router:   r,
		Registry: reg,
		opts:     opts,
		limiter:  newIPRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
		log:      log,
	}

	// Middleware stack (order matters!)
	r.Use(RecoveryMiddleware(log))
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(log))
	r.Use(SecurityHeadersMiddleware())
	r.Use(RateLimitMiddleware(s.limiter, log))

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)
	if s.opts.Metrics != nil {
		s.Router.GET("/metrics", gin.WrapH(s.opts.Metrics.Handler()))
	}

	api := s.Router.Group("")
	api.Use(TimeoutMiddleware(s.opts.RequestTimeout))
	{
		api.POST("/webhook", s.webhook)
		api.GET("/accounts", s.listAccounts)

		account := api.Group("/account/:id")
		{
			account.GET("/status", s.accountStatus)
			account.GET("/trades", s.accountTrades)
			account.GET("/profit-locks", s.accountProfitLocks)
			account.GET("/journal", s.accountJournal)

			control := account.Group("")
			if s.opts.JWTSecret != "" {
				control.Use(AuthMiddleware(s.opts.JWTSecret))
			}
			control.POST("/control", s.accountControl)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	body := gin.H{
		"status":   "ok",
		"accounts": s.Registry.Len(),
		"meta":     s.opts.Meta,
	}
	if s.opts.Metrics != nil {
		body["metrics"] = s.opts.Metrics.GetSnapshot()
	}
	c.JSON(http.StatusOK, body)
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go s.limiter.sweepEvery(ctx, 5*time.Minute, 10*time.Minute)

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Infow("http server stopped")
	return nil
}
