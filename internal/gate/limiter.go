/*
Package gate throttles all outbound calls to the note store and to
content-generation providers.

Two layers cooperate:

  - Limiter: in-process token buckets at second/minute/hour granularity
    (continuous refill, golang.org/x/time/rate) plus an independent 1s
    sliding burst window and a concurrency semaphore.
  - Tracker: persisted per-provider counters keyed by UTC date and hour,
    shared across processes through a file lock. These reset hard at UTC
    date rollover.

Gate combines both into a single admission decision per call type.
*/
package gate

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Limiter enforces short-term request pacing inside one process.
type Limiter struct {
	mu sync.Mutex

	second *rate.Limiter
	minute *rate.Limiter
	hour   *rate.Limiter

	// window holds timestamps of recent consumptions for the 1s burst cap.
	window     []time.Time
	burstLimit int

	sem           *semaphore.Weighted
	maxConcurrent int

	// now is injectable for tests.
	now func() time.Time

	// pollInterval is how often a blocked Acquire rechecks.
	pollInterval time.Duration
}

// LimiterConfig sizes the in-process buckets.
type LimiterConfig struct {
	RequestsPerSecond  float64
	BurstLimit         int
	RequestsPerMinute  int
	RequestsPerHour    int
	ConcurrentRequests int
}

// NewLimiter builds a limiter. Buckets start full so the first burst of a
// fresh process is not penalized.
func NewLimiter(cfg LimiterConfig) *Limiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.BurstLimit <= 0 {
		cfg.BurstLimit = 2
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 10
	}
	if cfg.RequestsPerHour <= 0 {
		cfg.RequestsPerHour = 500
	}
	if cfg.ConcurrentRequests <= 0 {
		cfg.ConcurrentRequests = 3
	}

	return &Limiter{
		second:        rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstLimit),
		minute:        rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.RequestsPerMinute),
		hour:          rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerHour)/3600.0), cfg.RequestsPerHour),
		burstLimit:    cfg.BurstLimit,
		sem:           semaphore.NewWeighted(int64(cfg.ConcurrentRequests)),
		maxConcurrent: cfg.ConcurrentRequests,
		now:           time.Now,
		pollInterval:  100 * time.Millisecond,
	}
}

// tryAcquire consumes one token from every bucket if all of them (and the
// burst window) currently allow it.
func (l *Limiter) tryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.trimWindow(now)

	if len(l.window) >= l.burstLimit {
		return false
	}
	if l.second.TokensAt(now) < 1 || l.minute.TokensAt(now) < 1 || l.hour.TokensAt(now) < 1 {
		return false
	}

	// All three have capacity; consume atomically under our own mutex.
	l.second.AllowN(now, 1)
	l.minute.AllowN(now, 1)
	l.hour.AllowN(now, 1)
	l.window = append(l.window, now)
	return true
}

func (l *Limiter) trimWindow(now time.Time) {
	cutoff := now.Add(-time.Second)
	i := 0
	for ; i < len(l.window); i++ {
		if l.window[i].After(cutoff) {
			break
		}
	}
	l.window = l.window[i:]
}

// Acquire blocks until a rate token is available or the timeout elapses.
// Returns false on timeout or context cancellation.
func (l *Limiter) Acquire(ctx context.Context, timeout time.Duration) bool {
	deadline := l.now().Add(timeout)
	for {
		if l.tryAcquire() {
			return true
		}
		if !l.now().Before(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(l.pollInterval):
		}
	}
}

// AcquireWithConcurrency takes a rate token, then a concurrency slot. On
// success the caller must call Release exactly once.
func (l *Limiter) AcquireWithConcurrency(ctx context.Context, timeout time.Duration) bool {
	if !l.Acquire(ctx, timeout) {
		return false
	}

	semCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := l.sem.Acquire(semCtx, 1); err != nil {
		// Rate token already consumed; acceptable, the pace was respected.
		return false
	}
	return true
}

// Release returns a concurrency slot taken by AcquireWithConcurrency.
func (l *Limiter) Release() {
	l.sem.Release(1)
}

// Status is a point-in-time view of the limiter for monitoring.
type Status struct {
	SecondTokens   float64 `json:"second_tokens"`
	MinuteTokens   float64 `json:"minute_tokens"`
	HourTokens     float64 `json:"hour_tokens"`
	BurstLimit     int     `json:"burst_limit"`
	RecentRequests int     `json:"recent_requests_1s"`
	MaxConcurrent  int     `json:"max_concurrent"`
}

// Status reports current token levels.
func (l *Limiter) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.trimWindow(now)
	return Status{
		SecondTokens:   l.second.TokensAt(now),
		MinuteTokens:   l.minute.TokensAt(now),
		HourTokens:     l.hour.TokensAt(now),
		BurstLimit:     l.burstLimit,
		RecentRequests: len(l.window),
		MaxConcurrent:  l.maxConcurrent,
	}
}
