package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hoangvle/recall-cycle/internal/config"
	"github.com/hoangvle/recall-cycle/internal/logging"
)

// CallType classifies an outbound request for admission purposes.
type CallType string

const (
	// CallGeneration is a content-generation request. Fully gated: rate
	// buckets, concurrency slot, and all persisted budgets apply.
	CallGeneration CallType = "generation"
	// CallKeyCheck verifies provider credentials. Relaxed windows.
	CallKeyCheck CallType = "key_check"
	// CallPrereqCheck probes provider readiness before a run. Relaxed windows.
	CallPrereqCheck CallType = "prereq_check"
	// CallTest is exercised by diagnostics. Never blocked, always counted.
	CallTest CallType = "test"
)

// ErrBlocked marks a call the gate refused. Callers treat it as a soft
// skip rather than a run failure.
var ErrBlocked = errors.New("gate: call blocked")

// acquireTimeout bounds how long a generation call waits for rate tokens.
const acquireTimeout = 300 * time.Second

// Gate is the single admission point for upstream calls.
type Gate struct {
	cfg     config.RateLimitConfig
	limiter *Limiter
	tracker *Tracker
	logger  *logging.Logger
}

// New builds a gate from the rate-limit config, persisting usage counters
// at usagePath.
func New(cfg config.RateLimitConfig, usagePath string, logger *logging.Logger) *Gate {
	if logger == nil {
		logger = logging.Discard()
	}
	// The limiter paces generation only, so a generation override's minute
	// limit sizes the minute bucket.
	rpm := cfg.RequestsPerMinute
	if override, ok := cfg.CallTypes[string(CallGeneration)]; ok && override.RequestsPerMinute > 0 {
		rpm = override.RequestsPerMinute
	}
	return &Gate{
		cfg: cfg,
		limiter: NewLimiter(LimiterConfig{
			RequestsPerSecond:  cfg.RequestsPerSecond,
			BurstLimit:         cfg.BurstLimit,
			RequestsPerMinute:  rpm,
			RequestsPerHour:    cfg.RequestsPerHour,
			ConcurrentRequests: cfg.ConcurrentRequests,
		}),
		tracker: NewTracker(usagePath),
		logger:  logger,
	}
}

// limitsFor resolves the persisted-window limits for one call type. Config
// overrides win; otherwise generation inherits the global daily budget and
// the relaxed types get generous defaults.
func (g *Gate) limitsFor(ct CallType) Limits {
	if override, ok := g.cfg.CallTypes[string(ct)]; ok {
		return Limits{PerHour: override.RequestsPerHour, PerDay: override.RequestsPerDay}
	}
	switch ct {
	case CallGeneration:
		return Limits{PerHour: g.cfg.RequestsPerHour, PerDay: g.cfg.RequestsPerDay}
	case CallKeyCheck, CallPrereqCheck:
		return Limits{PerHour: 100, PerDay: 200}
	case CallTest:
		return Limits{}
	default:
		return Limits{PerHour: g.cfg.RequestsPerHour, PerDay: g.cfg.RequestsPerDay}
	}
}

// Admit reports whether one more call of ct to provider fits the persisted
// budgets. It does not consume anything.
func (g *Gate) Admit(ct CallType, provider string) (bool, string, error) {
	if ct == CallTest {
		return true, "", nil
	}
	return g.tracker.CanAcquire(string(ct), provider, g.limitsFor(ct), g.cfg.ProviderDailyLimits[provider])
}

// Call runs fn under the gate. Blocked calls return ErrBlocked without
// invoking fn. Successful calls debit the persisted budgets; failed calls
// do not.
func (g *Gate) Call(ctx context.Context, ct CallType, provider string, fn func(context.Context) error) error {
	ok, reason, err := g.Admit(ct, provider)
	if err != nil {
		return err
	}
	if !ok {
		g.logger.Warn("call blocked by usage budget",
			"call_type", string(ct), "provider", provider, "reason", reason)
		return fmt.Errorf("%w: %s", ErrBlocked, reason)
	}

	if g.cfg.Enabled && ct == CallGeneration {
		if !g.limiter.AcquireWithConcurrency(ctx, acquireTimeout) {
			g.logger.Warn("call blocked waiting for rate tokens",
				"call_type", string(ct), "provider", provider)
			return fmt.Errorf("%w: rate token wait timed out", ErrBlocked)
		}
		defer g.limiter.Release()
	}

	callErr := fn(ctx)
	if recErr := g.tracker.Record(string(ct), provider, callErr == nil); recErr != nil {
		g.logger.Warn("recording usage failed", "error", recErr)
	}
	return callErr
}

// LimiterStatus exposes the in-process token levels.
func (g *Gate) LimiterStatus() Status {
	return g.limiter.Status()
}

// Usage exposes today's persisted counters for provider.
func (g *Gate) Usage(provider string) (Snapshot, error) {
	return g.tracker.Usage(provider)
}

// Warnings lists approaching-limit notices for provider.
func (g *Gate) Warnings(provider string) ([]string, error) {
	snap, err := g.tracker.Usage(provider)
	if err != nil {
		return nil, err
	}
	return usageWarnings(snap, g.cfg, g.limitsFor(CallGeneration), g.cfg.ProviderDailyLimits[provider]), nil
}
