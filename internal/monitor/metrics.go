package monitor

import (
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"signal-executor/internal/executor"
	"signal-executor/pkg/exchanges/common"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

var _ executor.Metrics = (*Metrics)(nil)

// Metrics holds the service's prometheus collectors on a private registry,
// plus sliding-window latency histograms for the health snapshot.
type Metrics struct {
	registry *prometheus.Registry

	tradesPlaced    *prometheus.CounterVec
	tradesFailed    *prometheus.CounterVec
	profitLocks     *prometheus.CounterVec
	breakerTrips    *prometheus.CounterVec
	equity          *prometheus.GaugeVec
	monitorTicks    *prometheus.CounterVec
	monitorDuration *prometheus.HistogramVec
	gatewayLatency  *prometheus.HistogramVec
	signals         *prometheus.CounterVec
	journalWrites   *prometheus.CounterVec

	GatewayLatency *LatencyHistogram
	MonitorLatency *LatencyHistogram
	JournalLatency *LatencyHistogram
}

// NewMetrics creates and registers all collectors.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "signal_executor"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		tradesPlaced: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "trades_placed_total",
			Help:      "Orders accepted by the venue",
		}, []string{"account", "side"}),
		tradesFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "trades_failed_total",
			Help:      "Placements that ended in failedTrades, by reason",
		}, []string{"account", "reason"}),
		profitLocks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "profit_locks_total",
			Help:      "Trailing stop updates",
		}, []string{"account", "symbol"}),
		breakerTrips: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "breaker_trips_total",
			Help:      "Balance breaker transitions to tripped",
		}, []string{"account"}),
		equity: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "equity",
			Help:      "Last observed account equity in quote currency",
		}, []string{"account"}),
		monitorTicks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "ticks_total",
			Help:      "Profit monitor passes by result",
		}, []string{"account", "result"}),
		monitorDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "tick_duration_seconds",
			Help:      "Duration of one profit monitor pass",
			Buckets:   prometheus.DefBuckets,
		}, []string{"account"}),
		gatewayLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Venue REST call latency",
			Buckets:   []float64{.025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"op", "result"}),
		signals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "signals_total",
			Help:      "Webhook signals received by outcome",
		}, []string{"outcome"}),
		journalWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "rows_total",
			Help:      "Journal rows flushed by result",
		}, []string{"result"}),

		GatewayLatency: NewLatencyHistogram(1000),
		MonitorLatency: NewLatencyHistogram(1000),
		JournalLatency: NewLatencyHistogram(1000),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) TradePlaced(accountID string, side common.PositionSide) {
	m.tradesPlaced.WithLabelValues(accountID, string(side)).Inc()
}

func (m *Metrics) TradeFailed(accountID, reason string) {
	m.tradesFailed.WithLabelValues(accountID, reason).Inc()
}

func (m *Metrics) ProfitLock(accountID, symbol string) {
	m.profitLocks.WithLabelValues(accountID, symbol).Inc()
}

func (m *Metrics) BreakerTripped(accountID string) {
	m.breakerTrips.WithLabelValues(accountID).Inc()
}

func (m *Metrics) Equity(accountID string, equity decimal.Decimal) {
	m.equity.WithLabelValues(accountID).Set(equity.InexactFloat64())
}

func (m *Metrics) MonitorTick(accountID string, d time.Duration, err error) {
	m.monitorTicks.WithLabelValues(accountID, result(err)).Inc()
	m.monitorDuration.WithLabelValues(accountID).Observe(d.Seconds())
	m.MonitorLatency.RecordDuration(d)
}

// GatewayCall records one venue request; it matches the bybit client's
// OnCall hook.
func (m *Metrics) GatewayCall(op string, d time.Duration, err error) {
	m.gatewayLatency.WithLabelValues(op, result(err)).Observe(d.Seconds())
	m.GatewayLatency.RecordDuration(d)
}

// Signal counts one webhook request by outcome (accepted, rejected, unauthorized).
func (m *Metrics) Signal(outcome string) {
	m.signals.WithLabelValues(outcome).Inc()
}

// JournalFlush records a batch of n rows written in d.
func (m *Metrics) JournalFlush(n int, d time.Duration, err error) {
	m.journalWrites.WithLabelValues(result(err)).Add(float64(n))
	m.JournalLatency.RecordDuration(d)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Snapshot is the point-in-time view served on /health.
type Snapshot struct {
	GatewayLatency LatencyStats `json:"gateway_latency_ms"`
	MonitorLatency LatencyStats `json:"monitor_latency_ms"`
	JournalLatency LatencyStats `json:"journal_latency_ms"`
	GoroutineCount int          `json:"goroutine_count"`
	HeapAlloc      uint64       `json:"heap_alloc_bytes"`
	Timestamp      time.Time    `json:"timestamp"`
}

// GetSnapshot returns a point-in-time metrics snapshot.
func (m *Metrics) GetSnapshot() Snapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	return Snapshot{
		GatewayLatency: m.GatewayLatency.Stats(),
		MonitorLatency: m.MonitorLatency.Stats(),
		JournalLatency: m.JournalLatency.Stats(),
		GoroutineCount: runtime.NumGoroutine(),
		HeapAlloc:      memStats.HeapAlloc,
		Timestamp:      time.Now(),
	}
}

// LatencyHistogram tracks latency samples in a sliding window.
// Stats are computed lazily and cached until the next sample.
type LatencyHistogram struct {
	mu          sync.Mutex
	samples     []float64
	maxSize     int
	dirty       bool
	cachedStats LatencyStats
}

// NewLatencyHistogram creates a sliding window histogram.
func NewLatencyHistogram(size int) *LatencyHistogram {
	if size <= 0 {
		size = 1000
	}
	return &LatencyHistogram{
		samples: make([]float64, 0, size),
		maxSize: size,
		dirty:   true,
	}
}

// Record adds a latency sample in milliseconds.
func (h *LatencyHistogram) Record(latencyMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) >= h.maxSize {
		h.samples = h.samples[1:]
	}
	h.samples = append(h.samples, latencyMs)
	h.dirty = true
}

// RecordDuration converts d to ms and records it.
func (h *LatencyHistogram) RecordDuration(d time.Duration) {
	h.Record(float64(d.Nanoseconds()) / 1e6)
}

// Stats returns min, max, avg, p50, p95, p99.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty && h.cachedStats.Count > 0 {
		return h.cachedStats
	}
	n := len(h.samples)
	if n == 0 {
		return LatencyStats{}
	}

	sorted := make([]float64, n)
	copy(sorted, h.samples)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	h.cachedStats = LatencyStats{
		Min:   sorted[0],
		Max:   sorted[n-1],
		Avg:   sum / float64(n),
		P50:   sorted[n/2],
		P95:   sorted[int(float64(n)*0.95)],
		P99:   sorted[int(float64(n)*0.99)],
		Count: n,
	}
	h.dirty = false
	return h.cachedStats
}

// LatencyStats holds computed latency statistics in milliseconds.
type LatencyStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}
