/*
Package reconcile pushes the item file into the note store.

The item file is the source of truth: every item maps to exactly one note,
found through its id tag. Missing notes are added, existing ones are fully
overwritten, and base notes no item claims get marked orphan. A best-effort
remote sync closes each pass.
*/
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hoangvle/recall-cycle/internal/errs"
	"github.com/hoangvle/recall-cycle/internal/logging"
	"github.com/hoangvle/recall-cycle/internal/notestore"
	"github.com/hoangvle/recall-cycle/internal/store"
)

// Reconciler syncs items into one deck of the note store.
type Reconciler struct {
	client   notestore.Client
	deck     string
	noteType string
	logger   *logging.Logger
}

// Result tallies what one pass changed.
type Result struct {
	Added    int
	Updated  int
	Orphaned int
}

// New builds a reconciler targeting deck with the given note type.
func New(client notestore.Client, deck, noteType string, logger *logging.Logger) *Reconciler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Reconciler{client: client, deck: deck, noteType: noteType, logger: logger}
}

// Run reconciles items against the base query. Notes in the base that no
// item touched are tagged orphan rather than deleted.
func (r *Reconciler) Run(ctx context.Context, items []store.Item) (Result, error) {
	var res Result

	baseQuery := notestore.BaseQuery(r.deck, r.noteType)
	baseIDs, err := r.client.FindNotes(ctx, baseQuery)
	if err != nil {
		return res, errs.Store("reconcile base fetch: %v", err)
	}
	baseSet := make(map[int64]bool, len(baseIDs))
	for _, id := range baseIDs {
		baseSet[id] = true
	}

	processed := make(map[int64]bool, len(items))
	for _, item := range items {
		noteID, added, err := r.upsert(ctx, item)
		if err != nil {
			return res, err
		}
		processed[noteID] = true
		if added {
			res.Added++
		} else {
			res.Updated++
		}
	}

	var orphans []int64
	for id := range baseSet {
		if !processed[id] {
			orphans = append(orphans, id)
		}
	}
	if len(orphans) > 0 {
		if err := r.client.AddTags(ctx, orphans, notestore.TagOrphan); err != nil {
			return res, errs.Store("marking %d orphan notes: %v", len(orphans), err)
		}
		res.Orphaned = len(orphans)
	}

	r.logger.Info("reconcile pass complete",
		"added", res.Added, "updated", res.Updated, "orphaned", res.Orphaned)

	// Remote sync protects the data but must not fail the run.
	if err := r.client.Sync(ctx); err != nil {
		r.logger.Warn("remote sync after reconcile failed", "error", err)
	}
	return res, nil
}

// upsert creates or fully overwrites the note for one item. Returns the
// note id and whether it was newly added.
func (r *Reconciler) upsert(ctx context.Context, item store.Item) (int64, bool, error) {
	ids, err := r.client.FindNotes(ctx, fmt.Sprintf("tag:%s%s", notestore.TagPrefixID, item.ID))
	if err != nil {
		return 0, false, errs.Store("finding note for item %s: %v", item.ID, err)
	}

	fields := buildFields(item)
	tags := buildTags(item)

	if len(ids) == 0 {
		noteID, err := r.client.AddNote(ctx, notestore.NewNote{
			Deck:   r.deck,
			Model:  r.noteType,
			Fields: fields,
			Tags:   tags,
		})
		if err != nil {
			return 0, false, errs.Store("adding note for item %s: %v", item.ID, err)
		}
		return noteID, true, nil
	}

	noteID := ids[0]
	if err := r.client.UpdateNoteFields(ctx, noteID, fields); err != nil {
		return 0, false, errs.Store("updating note %d for item %s: %v", noteID, item.ID, err)
	}
	if err := r.replaceTags(ctx, noteID, tags); err != nil {
		return 0, false, err
	}
	return noteID, false, nil
}

// replaceTags strips every current tag from the note and applies the fresh
// set, so stale cycle or status tags cannot linger on updated notes.
func (r *Reconciler) replaceTags(ctx context.Context, noteID int64, tags []string) error {
	infos, err := r.client.NotesInfo(ctx, []int64{noteID})
	if err != nil {
		return errs.Store("reading tags of note %d: %v", noteID, err)
	}
	if len(infos) > 0 {
		for _, tag := range infos[0].Tags {
			if err := r.client.RemoveTags(ctx, []int64{noteID}, tag); err != nil {
				return errs.Store("removing tag %s from note %d: %v", tag, noteID, err)
			}
		}
	}
	for _, tag := range tags {
		if err := r.client.AddTags(ctx, []int64{noteID}, tag); err != nil {
			return errs.Store("adding tag %s to note %d: %v", tag, noteID, err)
		}
	}
	return nil
}

// buildFields flattens an item into note fields. Meta always serializes to
// valid JSON so the field round-trips.
func buildFields(item store.Item) map[string]string {
	metaJSON := "{}"
	if len(item.Meta) > 0 {
		if raw, err := json.Marshal(item.Meta); err == nil {
			metaJSON = string(raw)
		}
	}
	choice := func(i int) string {
		if i < len(item.Choices) {
			return item.Choices[i]
		}
		return ""
	}
	return map[string]string{
		"ID":               item.ID,
		"Question":         item.Question,
		"ChoiceA":          choice(0),
		"ChoiceB":          choice(1),
		"ChoiceC":          choice(2),
		"ChoiceD":          choice(3),
		"Answer":           item.Answer,
		"RationaleQuote":   item.Rationale.Quote,
		"RationaleExplain": item.Rationale.Explain,
		"SourceTitle":      item.Source.Title,
		"SourceLocator":    item.Source.Locator,
		"SourceURL":        item.Source.URL,
		"DomainPath":       item.DomainPath,
		"MetaJSON":         metaJSON,
	}
}

// buildTags derives the canonical tag set for an item.
func buildTags(item store.Item) []string {
	tags := []string{
		notestore.TagPrefixID + item.ID,
		notestore.TagPrefixDomain + strings.ReplaceAll(item.DomainPath, "/", "::"),
		"type::" + item.Format,
		fmt.Sprintf("depth::%d", item.Depth),
		notestore.TagGenerated,
	}
	if item.Retired {
		tags = append(tags, notestore.TagRetired)
	}
	return tags
}
