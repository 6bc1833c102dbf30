package cycle

import (
	"context"

	"github.com/hoangvle/recall-cycle/internal/errs"
	"github.com/hoangvle/recall-cycle/internal/notestore"
)

// CleanupCycleTags strips every cycle tag from the given notes. The store
// matches the bare group name against the tag prefix, so all dated cycle
// tags go at once.
func CleanupCycleTags(ctx context.Context, client notestore.Client, noteIDs []int64) error {
	if len(noteIDs) == 0 {
		return nil
	}
	if err := client.RemoveTags(ctx, noteIDs, notestore.TagCycleGroup); err != nil {
		return errs.Store("cycle cleanup failed for %d notes: %v", len(noteIDs), err)
	}
	return nil
}

// ApplyTodayTags marks the Today set with the dated cycle tag.
func ApplyTodayTags(ctx context.Context, client notestore.Client, todayIDs []int64, todayTag string) error {
	if len(todayIDs) == 0 {
		return nil
	}
	if err := client.AddTags(ctx, todayIDs, todayTag); err != nil {
		return errs.Store("applying %s to %d notes: %v", todayTag, len(todayIDs), err)
	}
	return nil
}
