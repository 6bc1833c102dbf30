/*
Package degrade runs the safe fallback cycle when the normal pipeline fails
after selfcheck. It skips generation and reconciliation entirely and applies
a minimal deterministic Today set so the daily review never silently stops.
*/
package degrade

import (
	"context"

	"github.com/hoangvle/recall-cycle/internal/cycle"
	"github.com/hoangvle/recall-cycle/internal/errs"
	"github.com/hoangvle/recall-cycle/internal/logging"
	"github.com/hoangvle/recall-cycle/internal/notestore"
)

// Handler applies the degraded cycle.
type Handler struct {
	client notestore.Client
	logger *logging.Logger
}

// New builds a degrade handler.
func New(client notestore.Client, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handler{client: client, logger: logger}
}

// Params bounds the degraded cycle.
type Params struct {
	BaseQuery string
	Total     int
	MinNotes  int
	TodayTag  string
	Reason    string
}

// Run checks minimal viability, then replaces all cycle tags with today's
// tag on the first Total active notes. Cleanup always precedes apply so a
// failure between the two leaves no day with two cycles.
func (h *Handler) Run(ctx context.Context, p Params) (int, error) {
	h.logger.Warn("safe-degrade mode activated", "reason", p.Reason)

	baseIDs, notes, err := h.checkMinimal(ctx, p)
	if err != nil {
		return 0, err
	}

	var today []int64
	for _, n := range notes {
		if n.HasTag(notestore.TagRetired) {
			continue
		}
		today = append(today, n.ID)
		if len(today) == p.Total {
			break
		}
	}
	if len(today) < p.Total {
		return 0, errs.Degrade("insufficient notes for degraded cycle: %d/%d", len(today), p.Total).
			WithCode("DEGRADE_INSUFFICIENT_NOTES")
	}

	if err := cycle.CleanupCycleTags(ctx, h.client, baseIDs); err != nil {
		return 0, errs.Degrade("degraded cleanup failed: %v", err).WithCode("DEGRADE_CYCLE_FAILED")
	}
	if err := cycle.ApplyTodayTags(ctx, h.client, today, p.TodayTag); err != nil {
		return 0, errs.Degrade("degraded apply failed: %v", err).WithCode("DEGRADE_CYCLE_FAILED")
	}

	h.logger.Info("degraded cycle applied", "today_count", len(today))
	return len(today), nil
}

// checkMinimal verifies the store can sustain any cycle at all: the base
// query answers, is non-empty, and holds at least MinNotes active notes.
func (h *Handler) checkMinimal(ctx context.Context, p Params) ([]int64, []notestore.Note, error) {
	baseIDs, err := h.client.FindNotes(ctx, p.BaseQuery)
	if err != nil {
		return nil, nil, errs.Degrade("base fetch failed in degrade: %v", err).
			WithCode("DEGRADE_CYCLE_FAILED")
	}
	if len(baseIDs) == 0 {
		return nil, nil, errs.Degrade("base is empty").WithCode("DEGRADE_CYCLE_FAILED")
	}

	notes, err := h.client.NotesInfo(ctx, baseIDs)
	if err != nil {
		return nil, nil, errs.Degrade("retired check failed in degrade: %v", err).
			WithCode("DEGRADE_CYCLE_FAILED")
	}
	active := 0
	for _, n := range notes {
		if !n.HasTag(notestore.TagRetired) {
			active++
		}
	}
	if active < p.MinNotes {
		return nil, nil, errs.Degrade("active notes below minimum: %d < %d", active, p.MinNotes).
			WithCode("DEGRADE_CYCLE_FAILED")
	}
	return baseIDs, notes, nil
}
