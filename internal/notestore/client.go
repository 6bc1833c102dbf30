/*
Package notestore is the adapter for the external spaced-repetition note
store.

The store speaks a JSON action protocol over HTTP: every request is a POST
of {"action", "version", "params"} and every response is
{"result", "error"}. This package exposes a typed Client interface so the
rest of the system never constructs protocol payloads, and so tests can
substitute an in-memory implementation.

Notes and cards are owned by the external store. This system only reads
card scheduling telemetry (due/lapses/interval/reps) as selection signals
and mutates notes through fields and tags.
*/
package notestore

import "context"

// Note is an externally owned note referenced by numeric id.
type Note struct {
	ID     int64            `json:"noteId"`
	Tags   []string         `json:"tags"`
	Fields map[string]Field `json:"fields"`
	Cards  []int64          `json:"cards"`
}

// Field is a single note field value.
type Field struct {
	Value string `json:"value"`
	Order int    `json:"order"`
}

// Card carries scheduling telemetry for one card of a note. The values are
// selection signals only; this system never writes them.
type Card struct {
	ID       int64 `json:"cardId"`
	Note     int64 `json:"note"`
	Due      int64 `json:"due"`
	Lapses   int   `json:"lapses"`
	Interval int   `json:"interval"`
	Reps     int   `json:"reps"`
}

// NewNote is the payload for creating a note.
type NewNote struct {
	Deck   string            `json:"deckName"`
	Model  string            `json:"modelName"`
	Fields map[string]string `json:"fields"`
	Tags   []string          `json:"tags"`
}

// Client is the note-store adapter contract.
type Client interface {
	// Version checks connectivity and returns the protocol version.
	Version(ctx context.Context) (int, error)

	// FindNotes returns note ids matching a store query string.
	FindNotes(ctx context.Context, query string) ([]int64, error)

	// NotesInfo fetches full note data for the given ids.
	NotesInfo(ctx context.Context, ids []int64) ([]Note, error)

	// CardsInfo fetches card telemetry for the given card ids.
	CardsInfo(ctx context.Context, ids []int64) ([]Card, error)

	// AddNote creates a note and returns its id.
	AddNote(ctx context.Context, note NewNote) (int64, error)

	// UpdateNoteFields overwrites all fields of an existing note.
	UpdateNoteFields(ctx context.Context, id int64, fields map[string]string) error

	// AddTags adds a tag to every listed note.
	AddTags(ctx context.Context, ids []int64, tag string) error

	// RemoveTags removes a tag (or tag prefix group) from every listed note.
	RemoveTags(ctx context.Context, ids []int64, tag string) error

	// ModelNames lists note models known to the store.
	ModelNames(ctx context.Context) ([]string, error)

	// ModelFieldNames lists the field names of a note model.
	ModelFieldNames(ctx context.Context, model string) ([]string, error)

	// Sync triggers the store's own remote synchronization.
	Sync(ctx context.Context) error
}
