package cycle

import (
	"context"

	"github.com/hoangvle/recall-cycle/internal/errs"
	"github.com/hoangvle/recall-cycle/internal/notestore"
)

// Snapshot is one consistent read of the base collection.
type Snapshot struct {
	Notes []notestore.Note
	// Cards maps note id to its single card.
	Cards map[int64]notestore.Card
}

// FetchSnapshot reads every base note and its card telemetry. Notes without
// cards stay in the snapshot; the pools simply skip them.
func FetchSnapshot(ctx context.Context, client notestore.Client, baseQuery string) (*Snapshot, error) {
	ids, err := client.FindNotes(ctx, baseQuery)
	if err != nil {
		return nil, errs.Store("base fetch failed for query %q: %v", baseQuery, err)
	}
	if len(ids) == 0 {
		return &Snapshot{Cards: map[int64]notestore.Card{}}, nil
	}

	notes, err := client.NotesInfo(ctx, ids)
	if err != nil {
		return nil, errs.Store("base notes info failed: %v", err)
	}

	var cardIDs []int64
	for _, n := range notes {
		cardIDs = append(cardIDs, n.Cards...)
	}
	cards, err := client.CardsInfo(ctx, cardIDs)
	if err != nil {
		return nil, errs.Store("base cards info failed: %v", err)
	}

	byNote := make(map[int64]notestore.Card, len(cards))
	for _, c := range cards {
		byNote[c.Note] = c
	}
	return &Snapshot{Notes: notes, Cards: byNote}, nil
}
