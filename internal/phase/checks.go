package phase

import (
	"context"
	"strings"

	"github.com/hoangvle/recall-cycle/internal/errs"
	"github.com/hoangvle/recall-cycle/internal/store"
)

// requiredNoteFields must all exist on the configured note type. They match
// the field set reconciliation writes.
var requiredNoteFields = []string{
	"ID", "Question", "ChoiceA", "ChoiceB", "ChoiceC", "ChoiceD", "Answer",
	"RationaleQuote", "RationaleExplain", "SourceTitle", "SourceLocator", "SourceURL",
	"DomainPath", "MetaJSON",
}

// cardSampleSize bounds the one-card-per-note probe.
const cardSampleSize = 10

// selfcheckStart is the must-pass battery gating all mutating phases.
func (r *Runner) selfcheckStart(ctx context.Context) error {
	if err := r.checkConnectivity(ctx); err != nil {
		return err
	}
	baseIDs, err := r.checkBaseFetch(ctx)
	if err != nil {
		return err
	}
	if err := r.checkNoteTypeFields(ctx); err != nil {
		return err
	}
	if err := r.checkOneCardPerNote(ctx, baseIDs); err != nil {
		return err
	}
	if err := r.checkIDUniqueness(ctx, baseIDs); err != nil {
		return err
	}
	if err := r.checkItemsParse(); err != nil {
		return err
	}
	return r.checkPaths()
}

func (r *Runner) checkConnectivity(ctx context.Context) error {
	version, err := r.client.Version(ctx)
	if err != nil {
		return errs.Store("note store unavailable: %v", err).WithCode("STORE_UNAVAILABLE")
	}
	r.logger.Debug("note store reachable", "version", version)
	return nil
}

func (r *Runner) checkBaseFetch(ctx context.Context) ([]int64, error) {
	query := r.baseQuery()
	ids, err := r.client.FindNotes(ctx, query)
	if err != nil {
		return nil, errs.Store("base fetch failed for %q: %v", query, err).WithCode("BASE_FETCH_FAILED")
	}
	return ids, nil
}

func (r *Runner) checkNoteTypeFields(ctx context.Context) error {
	noteType := r.cfg.NoteStore.NoteType
	models, err := r.client.ModelNames(ctx)
	if err != nil {
		return errs.Store("listing note models: %v", err)
	}
	found := false
	for _, m := range models {
		if m == noteType {
			found = true
			break
		}
	}
	if !found {
		return errs.Store("note type not found: %s", noteType).WithCode("NOTE_TYPE_MISSING")
	}

	fields, err := r.client.ModelFieldNames(ctx, noteType)
	if err != nil {
		return errs.Store("listing fields of %s: %v", noteType, err)
	}
	have := make(map[string]bool, len(fields))
	for _, f := range fields {
		have[f] = true
	}
	var missing []string
	for _, f := range requiredNoteFields {
		if !have[f] {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return errs.Store("note type %s missing fields: %s", noteType, strings.Join(missing, ", ")).
			WithCode("NOTE_FIELDS_MISSING")
	}
	return nil
}

func (r *Runner) checkOneCardPerNote(ctx context.Context, baseIDs []int64) error {
	if len(baseIDs) == 0 {
		return nil
	}
	sample := baseIDs
	if len(sample) > cardSampleSize {
		sample = sample[:cardSampleSize]
	}
	notes, err := r.client.NotesInfo(ctx, sample)
	if err != nil {
		return errs.Store("card count probe failed: %v", err)
	}
	for _, n := range notes {
		if len(n.Cards) != 1 {
			return errs.Store("note %d has %d cards, expected 1", n.ID, len(n.Cards)).
				WithCode("CARD_COUNT_VIOLATION")
		}
	}
	return nil
}

func (r *Runner) checkIDUniqueness(ctx context.Context, baseIDs []int64) error {
	if len(baseIDs) == 0 {
		return nil
	}
	notes, err := r.client.NotesInfo(ctx, baseIDs)
	if err != nil {
		return errs.Store("id uniqueness probe failed: %v", err)
	}
	owners := map[string][]int64{}
	for _, n := range notes {
		if id := n.ItemID(); id != "" {
			owners[id] = append(owners[id], n.ID)
		}
	}
	for itemID, noteIDs := range owners {
		if len(noteIDs) > 1 {
			return errs.Store("item id %s claimed by %d notes", itemID, len(noteIDs)).
				WithCode("ID_TAG_DUPLICATE")
		}
	}
	return nil
}

// checkItemsParse verifies the item file parses and satisfies the schema.
// A missing file passes; the first run has nothing yet.
func (r *Runner) checkItemsParse() error {
	path := r.cfg.ItemsPath()
	if _, err := store.ReadItems(path); err != nil {
		return err
	}
	return store.ValidateItemsFile(path)
}

func (r *Runner) checkPaths() error {
	if r.cfg.Space == "" {
		return errs.Config("space is empty").WithCode("SPACE_UNRESOLVED")
	}
	if r.cfg.DataDir == "" {
		return errs.Config("data dir is empty").WithCode("PATHS_UNRESOLVED")
	}
	if r.cfg.NoteStore.Deck == "" || r.cfg.NoteStore.NoteType == "" {
		return errs.Config("deck or note type unresolved").WithCode("DECK_UNRESOLVED")
	}
	return nil
}
