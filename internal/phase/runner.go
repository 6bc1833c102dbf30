package phase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hoangvle/recall-cycle/internal/config"
	"github.com/hoangvle/recall-cycle/internal/cycle"
	"github.com/hoangvle/recall-cycle/internal/degrade"
	"github.com/hoangvle/recall-cycle/internal/errs"
	"github.com/hoangvle/recall-cycle/internal/gate"
	"github.com/hoangvle/recall-cycle/internal/generate"
	"github.com/hoangvle/recall-cycle/internal/lock"
	"github.com/hoangvle/recall-cycle/internal/logging"
	"github.com/hoangvle/recall-cycle/internal/notestore"
	"github.com/hoangvle/recall-cycle/internal/reconcile"
	"github.com/hoangvle/recall-cycle/internal/runlog"
	"github.com/hoangvle/recall-cycle/internal/store"
)

// Runner executes cycle runs.
type Runner struct {
	cfg    *config.Config
	client notestore.Client
	gen    generate.Generator
	gate   *gate.Gate
	runs   *runlog.Store
	logger *logging.Logger

	// now is injectable so tests can pin the cycle date.
	now func() time.Time
}

// New wires a runner. gen may be nil when generation is not configured;
// runs may be nil to skip run history.
func New(cfg *config.Config, client notestore.Client, gen generate.Generator,
	g *gate.Gate, runs *runlog.Store, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{
		cfg:    cfg,
		client: client,
		gen:    gen,
		gate:   g,
		runs:   runs,
		logger: logger,
		now:    time.Now,
	}
}

func (r *Runner) baseQuery() string {
	return notestore.BaseQuery(r.cfg.NoteStore.Deck, r.cfg.NoteStore.NoteType)
}

// phaseError pins a failure to the phase that raised it.
type phaseError struct {
	phase string
	err   error
}

func (e *phaseError) Error() string { return fmt.Sprintf("phase %s: %v", e.phase, e.err) }
func (e *phaseError) Unwrap() error { return e.err }

// executePhase runs one phase with timing and logging.
func (r *Runner) executePhase(rc *RunContext, name string, fn func() error) error {
	start := r.now()
	r.logger.Info("phase start", "phase", name, "run_id", rc.RunID)
	if err := fn(); err != nil {
		r.logger.Error("phase failed", "phase", name, "run_id", rc.RunID,
			"elapsed", time.Since(start).String(), "error", err)
		return &phaseError{phase: name, err: err}
	}
	r.logger.Info("phase done", "phase", name, "run_id", rc.RunID,
		"elapsed", time.Since(start).String())
	return nil
}

// Run executes one full cycle in the given mode and reports its record.
// The returned error is the primary run failure, nil on success or on a
// successfully applied degraded cycle.
func (r *Runner) Run(ctx context.Context, mode string) (*runlog.RunRecord, error) {
	if mode == "" {
		mode = ModeDaily
	}
	now := r.now()
	rc := &RunContext{
		RunID:        runlog.NewRunID(),
		Space:        r.cfg.Space,
		Mode:         mode,
		Today:        now.Format("2006-01-02"),
		TodayTag:     notestore.CycleTag(now.Format("2006-01-02")),
		YesterdayTag: notestore.CycleTag(now.AddDate(0, 0, -1).Format("2006-01-02")),
		StartedAt:    now,
	}
	r.logger.Info("run starting", "run_id", rc.RunID, "space", rc.Space, "mode", rc.Mode)

	locked := false
	lockErr := r.executePhase(rc, "lock", func() error {
		stale := time.Duration(r.cfg.Lock.StaleSeconds) * time.Second
		if err := lock.Acquire(r.cfg.LockPath(), stale); err != nil {
			return err
		}
		locked = true
		return nil
	})
	defer func() {
		// Unlock is unconditional once held; its failure never masks the
		// primary outcome.
		if !locked {
			return
		}
		if err := r.executePhase(rc, "unlock", func() error {
			return lock.Release(r.cfg.LockPath())
		}); err != nil {
			r.logger.Error("unlock failed", "run_id", rc.RunID, "error", err)
		}
	}()

	runErr := lockErr
	if runErr == nil {
		runErr = r.executePhases(ctx, rc)
	}

	if runErr != nil {
		runErr = r.handleFailure(ctx, rc, runErr)
	}

	rec := r.finishRun(rc, runErr)
	if runErr == nil {
		r.logger.Info("run completed", "run_id", rc.RunID,
			"today_count", rec.TodayCount, "new_accepted", rec.NewAccepted, "degraded", rec.Degraded)
	}
	return rec, runErr
}

// executePhases runs phases 1 through 9 in strict order.
func (r *Runner) executePhases(ctx context.Context, rc *RunContext) error {
	if err := r.executePhase(rc, "selfcheck_start", func() error {
		return r.selfcheckStart(ctx)
	}); err != nil {
		return err
	}
	rc.SelfcheckPassed = true

	if err := r.executePhase(rc, "load", func() error { return r.load(ctx, rc) }); err != nil {
		return err
	}
	if err := r.executePhase(rc, "plan", func() error { return r.plan(rc) }); err != nil {
		return err
	}
	if err := r.executePhase(rc, "generate_new", func() error { return r.generateNew(ctx, rc) }); err != nil {
		return err
	}
	if rc.Mode != ModeBatch {
		if err := r.executePhase(rc, "reconcile", func() error { return r.reconcileItems(ctx, rc) }); err != nil {
			return err
		}
	}
	if err := r.executePhase(rc, "select_today", func() error { return r.selectToday(rc) }); err != nil {
		return err
	}
	if err := r.executePhase(rc, "apply_cycle", func() error { return r.applyCycle(ctx, rc) }); err != nil {
		return err
	}
	if err := r.executePhase(rc, "commit", func() error { return r.commit(ctx, rc) }); err != nil {
		return err
	}
	return r.executePhase(rc, "selfcheck_end", func() error { return r.selfcheckEnd(ctx, rc) })
}

// load reads the item, ledger and queue files plus the base snapshot.
func (r *Runner) load(ctx context.Context, rc *RunContext) error {
	items, err := store.ReadItems(r.cfg.ItemsPath())
	if err != nil {
		return err
	}
	ledger, err := store.ReadLedger(r.cfg.LedgerPath())
	if err != nil {
		return err
	}
	queue, err := store.ReadQueue(r.cfg.QueuePath())
	if err != nil {
		return err
	}
	snap, err := cycle.FetchSnapshot(ctx, r.client, r.baseQuery())
	if err != nil {
		return err
	}
	rc.Items = items
	rc.Ledger = ledger
	rc.Queue = queue
	rc.Snapshot = snap
	return nil
}

// plan validates the loaded state is sufficient to compose a selection.
func (r *Runner) plan(rc *RunContext) error {
	if rc.Snapshot == nil {
		return errs.Data("no base snapshot loaded")
	}
	p := r.cfg.Params
	if p.RewardCap > p.Total || p.MaintainTotal+p.NewTotal > p.Total {
		return errs.Config("selection quotas exceed total: maintain %d + new %d > total %d",
			p.MaintainTotal, p.NewTotal, p.Total)
	}
	return nil
}

// generateNew drains the source queue into new items, bounded by the new
// quota. A blocked gate skips generation; per-source failures skip only
// that source.
func (r *Runner) generateNew(ctx context.Context, rc *RunContext) error {
	if r.gen == nil {
		r.logger.Debug("generation not configured, skipping")
		return nil
	}

	provider := r.cfg.LLM.Provider
	if r.gate != nil {
		ok, reason, err := r.gate.Admit(gate.CallGeneration, provider)
		if err != nil {
			return err
		}
		if !ok {
			r.logger.Warn("generation skipped by usage budget", "reason", reason, "run_id", rc.RunID)
			return nil
		}
	}

	used := store.UsedSourceIDs(rc.Ledger)
	p := r.cfg.Params
	for _, src := range rc.Queue {
		if len(rc.NewSourceIDs) >= p.NewTotal {
			break
		}
		if used[src.SourceID] {
			continue
		}
		if n := len(src.Excerpt); n < p.ExcerptMin || n > p.ExcerptMax {
			continue
		}

		item, err := r.gen.Generate(ctx, src)
		if errors.Is(err, gate.ErrBlocked) {
			r.logger.Warn("generation stopped, gate blocked", "source_id", src.SourceID, "run_id", rc.RunID)
			break
		}
		if err != nil {
			rc.FailedSourceIDs = append(rc.FailedSourceIDs, src.SourceID)
			r.logger.Error("generation failed for source", "source_id", src.SourceID, "error", err)
			continue
		}
		rc.NewGenerated++
		if item == nil {
			rc.FailedSourceIDs = append(rc.FailedSourceIDs, src.SourceID)
			continue
		}
		rc.Items = append(rc.Items, *item)
		rc.NewSourceIDs = append(rc.NewSourceIDs, src.SourceID)
	}

	r.logger.Info("generation finished", "run_id", rc.RunID,
		"attempted", rc.NewGenerated, "accepted", len(rc.NewSourceIDs), "failed", len(rc.FailedSourceIDs))
	return nil
}

// reconcileItems pushes items into the store, then refreshes the snapshot
// so selection sees the notes it just created.
func (r *Runner) reconcileItems(ctx context.Context, rc *RunContext) error {
	rec := reconcile.New(r.client, r.cfg.NoteStore.Deck, r.cfg.NoteStore.NoteType, r.logger)
	if _, err := rec.Run(ctx, rc.Items); err != nil {
		return err
	}
	snap, err := cycle.FetchSnapshot(ctx, r.client, r.baseQuery())
	if err != nil {
		return err
	}
	rc.Snapshot = snap
	return nil
}

func (r *Runner) selectToday(rc *RunContext) error {
	rc.TodayIDs = cycle.SelectToday(cycle.Inputs{
		Notes:        rc.Snapshot.Notes,
		Cards:        rc.Snapshot.Cards,
		Items:        rc.Items,
		Params:       r.cfg.Params,
		YesterdayTag: rc.YesterdayTag,
	})
	return nil
}

func (r *Runner) applyCycle(ctx context.Context, rc *RunContext) error {
	var baseIDs []int64
	for _, n := range rc.Snapshot.Notes {
		baseIDs = append(baseIDs, n.ID)
	}
	if err := cycle.CleanupCycleTags(ctx, r.client, baseIDs); err != nil {
		return err
	}
	return cycle.ApplyTodayTags(ctx, r.client, rc.TodayIDs, rc.TodayTag)
}

// commit persists items and ledger entries. The remote sync is best-effort
// and skipped in batch mode.
func (r *Runner) commit(ctx context.Context, rc *RunContext) error {
	if err := store.WriteItems(r.cfg.ItemsPath(), rc.Items); err != nil {
		return err
	}
	for _, sourceID := range rc.NewSourceIDs {
		entry := store.LedgerEntry{SourceID: sourceID, UsedAt: rc.Today, RunID: rc.RunID}
		if err := store.AppendLedger(r.cfg.LedgerPath(), entry); err != nil {
			return err
		}
	}
	if rc.Mode != ModeBatch {
		if err := r.client.Sync(ctx); err != nil {
			r.logger.Warn("remote sync failed after commit", "error", err, "run_id", rc.RunID)
		}
	}
	return nil
}

// selfcheckEnd re-fetches the base and verifies today's tag count. On
// mismatch it strips all cycle tags and fails the run; a half-tagged day
// is worse than an untagged one.
func (r *Runner) selfcheckEnd(ctx context.Context, rc *RunContext) error {
	baseIDs, err := r.client.FindNotes(ctx, r.baseQuery())
	if err != nil {
		return errs.Store("selfcheck refetch failed: %v", err)
	}
	notes, err := r.client.NotesInfo(ctx, baseIDs)
	if err != nil {
		return errs.Store("selfcheck notes info failed: %v", err)
	}

	// Activeness must match what selection used, retired items included,
	// or a correct short run reads as a mismatch.
	active := len(cycle.ActiveNotes(notes, rc.Items))
	tagged := 0
	for _, n := range notes {
		if n.HasTag(rc.TodayTag) {
			tagged++
		}
	}
	expected := r.cfg.Params.Total
	if active < expected {
		expected = active
	}
	if len(rc.TodayIDs) != expected || tagged != expected {
		if cleanupErr := cycle.CleanupCycleTags(ctx, r.client, baseIDs); cleanupErr != nil {
			r.logger.Error("tag cleanup after count mismatch failed", "error", cleanupErr)
		}
		return errs.Data("today count mismatch: expected %d, selected %d, tagged %d",
			expected, len(rc.TodayIDs), tagged).WithCode("TODAY_COUNT_MISMATCH")
	}
	return nil
}

// handleFailure is the single classification point. Pre-selfcheck failures
// abort; classified post-selfcheck failures fall back to the degraded cycle,
// while unclassified ones propagate untouched (unlock still runs). A degrade
// that applies cleanly resolves the run.
func (r *Runner) handleFailure(ctx context.Context, rc *RunContext, runErr error) error {
	if !rc.SelfcheckPassed {
		r.logger.Error("selfcheck failed, aborting without mutation",
			"run_id", rc.RunID, "error", runErr)
		return runErr
	}
	if _, ok := errs.KindOf(runErr); !ok {
		r.logger.Error("unclassified failure after selfcheck, propagating",
			"run_id", rc.RunID, "error", runErr)
		return runErr
	}

	rc.Degraded = true
	rc.DegradedReason = runErr.Error()
	r.logger.Error("run failed after selfcheck, entering safe-degrade",
		"run_id", rc.RunID, "error", runErr)
	h := degrade.New(r.client, r.logger)
	count, derr := h.Run(ctx, degrade.Params{
		BaseQuery: r.baseQuery(),
		Total:     r.cfg.Params.Total,
		MinNotes:  r.cfg.Params.DegradeMinNotes,
		TodayTag:  rc.TodayTag,
		Reason:    rc.DegradedReason,
	})
	if derr != nil {
		return derr
	}
	rc.TodayIDs = make([]int64, count)
	return nil
}

// finishRun assembles and persists the run record.
func (r *Runner) finishRun(rc *RunContext, runErr error) *runlog.RunRecord {
	rec := &runlog.RunRecord{
		RunID:          rc.RunID,
		Space:          rc.Space,
		Mode:           rc.Mode,
		Degraded:       rc.Degraded,
		DegradedReason: rc.DegradedReason,
		TodayCount:     len(rc.TodayIDs),
		NewGenerated:   rc.NewGenerated,
		NewAccepted:    len(rc.NewSourceIDs),
		StartedAt:      rc.StartedAt,
		FinishedAt:     r.now(),
	}
	if runErr != nil {
		rec.ErrorCode = errs.CodeOf(runErr)
		var pe *phaseError
		if errors.As(runErr, &pe) {
			rec.ErrorPhase = pe.phase
		}
	}
	if r.runs != nil {
		if err := r.runs.RecordRun(*rec); err != nil {
			r.logger.Warn("recording run failed", "run_id", rc.RunID, "error", err)
		}
	}
	return rec
}
