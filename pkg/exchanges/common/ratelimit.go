package common

import (
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RateLimiter tracks the per-endpoint request budget the venue reports back in
// response headers.
type RateLimiter struct {
	remaining int
	limit     int
	resetAt   time.Time
	log       *zap.SugaredLogger
	mu        sync.RWMutex
}

// NewRateLimiter creates a new rate limiter. log may be nil.
func NewRateLimiter(log *zap.SugaredLogger) *RateLimiter {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &RateLimiter{log: log}
}

// UpdateFromHeaders records the remaining/limit/reset header values of a response.
func (rl *RateLimiter) UpdateFromHeaders(remaining, limit, resetMs string) {
	if remaining == "" || limit == "" {
		return
	}
	rem, err := strconv.Atoi(remaining)
	if err != nil {
		return
	}
	lim, err := strconv.Atoi(limit)
	if err != nil || lim <= 0 {
		return
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.remaining = rem
	rl.limit = lim
	if ms, err := strconv.ParseInt(resetMs, 10, 64); err == nil {
		rl.resetAt = time.UnixMilli(ms)
	}

	used := float64(lim-rem) / float64(lim) * 100
	if used >= 95 {
		rl.log.Warnw("rate limit critical", "remaining", rem, "limit", lim, "used_pct", used)
	} else if used >= 80 {
		rl.log.Infow("rate limit warning", "remaining", rem, "limit", lim, "used_pct", used)
	}
}

// GetUsage returns current usage information.
func (rl *RateLimiter) GetUsage() (remaining int, limit int, percentage float64) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	if rl.limit == 0 || (!rl.resetAt.IsZero() && time.Now().After(rl.resetAt)) {
		return rl.limit, rl.limit, 0
	}
	return rl.remaining, rl.limit, float64(rl.limit-rl.remaining) / float64(rl.limit) * 100
}

// ShouldDelay returns true if we should delay the next request.
func (rl *RateLimiter) ShouldDelay() bool {
	_, _, pct := rl.GetUsage()
	return pct >= 90
}

// ResetIn is the time until the venue refills the budget.
func (rl *RateLimiter) ResetIn() time.Duration {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	if rl.resetAt.IsZero() {
		return 0
	}
	if d := time.Until(rl.resetAt); d > 0 {
		return d
	}
	return 0
}
