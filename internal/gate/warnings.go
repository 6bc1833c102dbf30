package gate

import (
	"fmt"

	"github.com/hoangvle/recall-cycle/internal/config"
)

// Warning thresholds as fractions of a window's budget.
const (
	warnThreshold     = 0.75
	criticalThreshold = 0.90
)

// usageWarnings reports which budgets are past their warning thresholds.
func usageWarnings(snap Snapshot, cfg config.RateLimitConfig, gen Limits, providerDaily int) []string {
	var out []string

	check := func(used, limit int, window string) {
		if limit <= 0 {
			return
		}
		frac := float64(used) / float64(limit)
		switch {
		case frac >= criticalThreshold:
			out = append(out, fmt.Sprintf("CRITICAL: %s usage at %d/%d (%.0f%%)", window, used, limit, frac*100))
		case frac >= warnThreshold:
			out = append(out, fmt.Sprintf("WARNING: %s usage at %d/%d (%.0f%%)", window, used, limit, frac*100))
		}
	}

	check(snap.DayTotal, cfg.RequestsPerDay, "daily")
	check(snap.HourTotal, cfg.RequestsPerHour, "hourly")
	check(snap.ByType[string(CallGeneration)], gen.PerDay, "generation daily")
	if providerDaily > 0 {
		check(snap.DayTotal, providerDaily, fmt.Sprintf("provider %s daily", snap.Provider))
	}
	return out
}
