/*
Package store implements the authoritative item store and its companion
ledger and queue files.

Layout under the space data directory:
  - items.json  : the full item list, rewritten atomically at commit
  - ledger.jsonl: append-only record of consumed sources
  - queue.jsonl : append-only ingest queue, read-only for runs

items.json is the source of truth; the external note store is reconciled
to it, never the other way around.
*/
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hoangvle/recall-cycle/internal/errs"
)

// Item is the authoritative study-unit record. Items are appended by
// generation, persisted at commit, and retired by flag, never deleted.
type Item struct {
	// ID is derived deterministically from SourceID; regenerating from the
	// same source can never create a duplicate.
	ID       string `json:"id"`
	SourceID string `json:"source_id"`

	// DomainPath is the hierarchical topic classifier ("a/b/c").
	DomainPath string `json:"domain_path"`

	// Format is the question format code; Depth the cognitive depth (1-3).
	Format string `json:"format"`
	Depth  int    `json:"depth"`

	Question  string    `json:"question"`
	Choices   []string  `json:"choices"`
	Answer    string    `json:"answer"`
	Rationale Rationale `json:"rationale"`
	Source    SourceRef `json:"source"`

	// Meta is free-form generation metadata.
	Meta map[string]any `json:"meta"`

	Retired bool `json:"retired"`
}

// Rationale backs the correct answer with a quote from the excerpt.
type Rationale struct {
	Quote   string `json:"quote"`
	Explain string `json:"explain"`
}

// SourceRef locates the excerpt an item was generated from.
type SourceRef struct {
	Title   string `json:"title"`
	Locator string `json:"locator"`
	URL     string `json:"url,omitempty"`
}

// ReadItems loads items.json. A missing file is an empty item list.
func ReadItems(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Item{}, nil
		}
		return nil, errs.Infra("read items: %s", path).Wrap(err)
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, errs.Data("items file malformed: %s", path).Wrap(err)
	}
	return items, nil
}

// WriteItems persists the item list atomically (write temp, rename).
func WriteItems(path string, items []Item) error {
	if items == nil {
		items = []Item{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return errs.Data("encode items").Wrap(err)
	}
	return atomicWrite(path, data)
}

// atomicWrite writes data to path via a temp file and rename so readers
// never observe a partial file.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Infra("create dir: %s", dir).Wrap(err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return errs.Infra("create temp file in %s", dir).Wrap(err)
	}
	tmpName := tmp.Name()

	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmpName)
		return errs.Infra("write temp file: %s", tmpName).Wrap(fmt.Errorf("write: %v, close: %v", werr, cerr))
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errs.Infra("rename %s -> %s", tmpName, path).Wrap(err)
	}
	return nil
}
