/*
Package phase drives one cycle run through its ordered phases:

	lock, selfcheck_start, load, plan, generate_new, reconcile,
	select_today, apply_cycle, commit, selfcheck_end, unlock.

Failures propagate to a single classification point in the runner. Before
the start selfcheck has passed the run aborts outright; after it, the
safe-degrade path takes over. Unlock always runs and its own failure is
demoted to a log entry.
*/
package phase

import (
	"time"

	"github.com/hoangvle/recall-cycle/internal/cycle"
	"github.com/hoangvle/recall-cycle/internal/store"
)

// Run modes.
const (
	ModeDaily = "daily"
	// ModeBatch skips reconciliation and the post-reconcile snapshot
	// refresh for rapid successive runs.
	ModeBatch = "batch"
)

// RunContext is the mutable state threaded through all phases of one run.
type RunContext struct {
	RunID string
	Space string
	Mode  string

	// Today and Yesterday are local calendar dates; the dated cycle tags
	// derive from them.
	Today        string
	TodayTag     string
	YesterdayTag string

	Items  []store.Item
	Ledger []store.LedgerEntry
	Queue  []store.Source

	Snapshot *cycle.Snapshot

	TodayIDs        []int64
	NewSourceIDs    []string
	FailedSourceIDs []string
	NewGenerated    int

	SelfcheckPassed bool
	Degraded        bool
	DegradedReason  string

	StartedAt time.Time
}
