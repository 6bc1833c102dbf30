package gate

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hoangvle/recall-cycle/internal/config"
	"github.com/hoangvle/recall-cycle/internal/logging"
)

func newTestGate(t *testing.T, cfg config.RateLimitConfig) (*Gate, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	g := New(cfg, filepath.Join(t.TempDir(), "usage.json"), logging.Discard())
	g.limiter.now = clock.now
	g.tracker.now = clock.now
	return g, clock
}

func relaxedRateConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:            true,
		RequestsPerSecond:  100,
		BurstLimit:         100,
		RequestsPerMinute:  1000,
		RequestsPerHour:    10000,
		RequestsPerDay:     100000,
		ConcurrentRequests: 3,
	}
}

func TestGateBudgetConservation(t *testing.T) {
	cfg := relaxedRateConfig()
	cfg.CallTypes = map[string]config.CallTypeLimits{
		"generation": {RequestsPerDay: 3},
	}
	g, clock := newTestGate(t, cfg)
	ctx := context.Background()

	calls := 0
	for i := 0; i < 3; i++ {
		err := g.Call(ctx, CallGeneration, "groq", func(context.Context) error {
			calls++
			return nil
		})
		require.NoError(t, err)
		clock.advance(2 * time.Second) // keeps the burst window clear
	}
	require.Equal(t, 3, calls)

	err := g.Call(ctx, CallGeneration, "groq", func(context.Context) error {
		calls++
		return nil
	})
	require.ErrorIs(t, err, ErrBlocked)
	require.Equal(t, 3, calls, "blocked call must not run")
}

func TestGateGenerationMinuteOverridePacesLimiter(t *testing.T) {
	cfg := relaxedRateConfig()
	cfg.CallTypes = map[string]config.CallTypeLimits{
		"generation": {RequestsPerMinute: 2, RequestsPerDay: 100},
	}
	g, clock := newTestGate(t, cfg)

	for i := 0; i < 2; i++ {
		require.True(t, g.limiter.tryAcquire(), "request %d", i)
		clock.advance(1100 * time.Millisecond)
	}
	require.False(t, g.limiter.tryAcquire(), "minute bucket must follow the generation override")
}

func TestGateFailedCallsDoNotDebit(t *testing.T) {
	cfg := relaxedRateConfig()
	cfg.CallTypes = map[string]config.CallTypeLimits{
		"generation": {RequestsPerDay: 1},
	}
	g, clock := newTestGate(t, cfg)
	ctx := context.Background()

	upstream := errors.New("upstream boom")
	for i := 0; i < 3; i++ {
		err := g.Call(ctx, CallGeneration, "groq", func(context.Context) error {
			return upstream
		})
		require.ErrorIs(t, err, upstream)
		clock.advance(2 * time.Second)
	}

	// Budget of one is still intact after three failures.
	err := g.Call(ctx, CallGeneration, "groq", func(context.Context) error { return nil })
	require.NoError(t, err)
}

func TestGateTestCallsNeverBlockedButCounted(t *testing.T) {
	cfg := relaxedRateConfig()
	cfg.RequestsPerDay = 1
	g, _ := newTestGate(t, cfg)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := g.Call(ctx, CallTest, "groq", func(context.Context) error { return nil })
		require.NoError(t, err, "call %d", i)
	}

	snap, err := g.Usage("groq")
	require.NoError(t, err)
	require.Equal(t, 5, snap.ByType[string(CallTest)])
}

func TestGateDisabledSkipsRatePacing(t *testing.T) {
	cfg := relaxedRateConfig()
	cfg.Enabled = false
	cfg.BurstLimit = 1
	g, _ := newTestGate(t, cfg)
	ctx := context.Background()

	// With pacing off, back-to-back calls must not hit the burst window.
	for i := 0; i < 4; i++ {
		err := g.Call(ctx, CallGeneration, "groq", func(context.Context) error { return nil })
		require.NoError(t, err, "call %d", i)
	}
}

func TestGateBlockedReasonNamesWindow(t *testing.T) {
	cfg := relaxedRateConfig()
	cfg.ProviderDailyLimits = map[string]int{"groq": 1}
	g, _ := newTestGate(t, cfg)
	ctx := context.Background()

	require.NoError(t, g.Call(ctx, CallGeneration, "groq", func(context.Context) error { return nil }))

	err := g.Call(ctx, CallGeneration, "groq", func(context.Context) error { return nil })
	require.ErrorIs(t, err, ErrBlocked)
	require.Contains(t, err.Error(), "provider groq daily limit")
}

func TestGateWarnings(t *testing.T) {
	cfg := relaxedRateConfig()
	cfg.Enabled = false
	cfg.RequestsPerDay = 10
	g, _ := newTestGate(t, cfg)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		require.NoError(t, g.Call(ctx, CallGeneration, "groq", func(context.Context) error { return nil }))
	}

	warnings, err := g.Warnings("groq")
	require.NoError(t, err)
	require.NotEmpty(t, warnings)
	require.Contains(t, warnings[0], "daily")

	for i := 0; i < 1; i++ {
		require.NoError(t, g.Call(ctx, CallGeneration, "groq", func(context.Context) error { return nil }))
	}
	warnings, err = g.Warnings("groq")
	require.NoError(t, err)
	require.Contains(t, warnings[0], "CRITICAL")
}
