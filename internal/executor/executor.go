// Package executor runs one account: it sizes and places bracketed orders for
// incoming signals, ratchets protective stops once a position is in profit,
// and halts the account when equity falls below its floor.
//
// All AccountState lives behind a single mutex per Executor. The mutex is
// never held across a gateway call, so a slow venue stalls only the caller.
package executor

import (
	"context"
	"sync"
	"time"

	"signal-executor/internal/events"
	"signal-executor/pkg/exchanges/common"
	"signal-executor/pkg/logging"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultMonitorInterval = 5 * time.Second

// Deps are the optional collaborators of an Executor.
type Deps struct {
	Logger  *zap.SugaredLogger
	Bus     *events.Bus
	Metrics Metrics
}

// Executor is the per-account decision and supervision engine.
type Executor struct {
	cfg     Config
	gw      common.Gateway
	log     *zap.SugaredLogger
	bus     *events.Bus
	metrics Metrics
	newID   func() string
	now     func() time.Time

	mu               sync.Mutex
	tradingEnabled   bool
	monitoringActive bool
	breakerTripped   bool
	lastEquity       decimal.Decimal
	tradeHistory     []TradeRecord
	failedTrades     []TradeRecord
	profitLocks      map[string][]ProfitLockEvent
	totalProfitLocks int
	lastStops        map[string]string // symbol -> protective stop order id

	// monitor lifecycle, guarded by mu
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	stopCh  chan struct{}
	done    chan struct{}
}

// New builds an executor. Monitoring does not begin until Start.
func New(cfg Config, gw common.Gateway, deps Deps) *Executor {
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = defaultMonitorInterval
	}
	m := deps.Metrics
	if m == nil {
		m = noopMetrics{}
	}
	return &Executor{
		cfg:              cfg,
		gw:               gw,
		log:              logging.OrNop(deps.Logger).Named("executor").With("account", cfg.AccountID),
		bus:              deps.Bus,
		metrics:          m,
		newID:            func() string { return ulid.Make().String() },
		now:              time.Now,
		tradingEnabled:   true,
		monitoringActive: cfg.MonitoringActive,
		profitLocks:      make(map[string][]ProfitLockEvent),
		lastStops:        make(map[string]string),
	}
}

// ID returns the account id.
func (e *Executor) ID() string { return e.cfg.AccountID }

// Config returns the account configuration.
func (e *Executor) Config() Config { return e.cfg }

// Start binds the executor to ctx and launches the monitor loop if monitoring
// is active. Calling Start twice is a no-op.
func (e *Executor) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx != nil {
		return
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	if e.monitoringActive {
		e.startMonitorLocked()
	}
}

// Stop ends the monitor loop and waits for it to exit.
func (e *Executor) Stop() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (e *Executor) publish(ev events.Event, data any) {
	e.bus.PublishAccount(ev, e.cfg.AccountID, data)
}
