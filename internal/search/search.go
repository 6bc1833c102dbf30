/*
Package search maintains a full-text index over the item store.

The index is rebuilt from items.json rather than updated incrementally;
the item store is small and authoritative, so reindexing on demand is
simpler than keeping two stores consistent.
*/
package search

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/index/scorch"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/hoangvle/recall-cycle/internal/errs"
	"github.com/hoangvle/recall-cycle/internal/store"
)

// Indexer wraps a bleve index of items.
type Indexer struct {
	mu    sync.RWMutex
	index bleve.Index
}

// NewMemOnly creates an in-memory index, rebuilt per invocation. The CLI
// search command uses this; indexing a few hundred items is fast enough
// that persistence buys nothing.
func NewMemOnly() (*Indexer, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, errs.Infra("create search index").Wrap(err)
	}
	return &Indexer{index: index}, nil
}

// NewWithPath opens or creates a persistent scorch index at path.
func NewWithPath(path string) (*Indexer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errs.Infra("create index dir: %s", filepath.Dir(path)).Wrap(err)
	}
	index, err := bleve.NewUsing(path, buildIndexMapping(), scorch.Name, scorch.Name, nil)
	if err != nil {
		index, err = bleve.Open(path)
		if err != nil {
			return nil, errs.Infra("open search index: %s", path).Wrap(err)
		}
	}
	return &Indexer{index: index}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	itemMapping := bleve.NewDocumentMapping()

	itemMapping.AddFieldMappingsAt("question", bleve.NewTextFieldMapping())
	itemMapping.AddFieldMappingsAt("domain", bleve.NewTextFieldMapping())
	itemMapping.AddFieldMappingsAt("source_title", bleve.NewTextFieldMapping())

	locatorMapping := bleve.NewTextFieldMapping()
	locatorMapping.Index = false
	locatorMapping.IncludeInAll = false
	itemMapping.AddFieldMappingsAt("locator", locatorMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", itemMapping)
	return indexMapping
}

// IndexItems (re)indexes the given items. Retired items are indexed too;
// finding a retired question is exactly what dedup review needs.
func (ix *Indexer) IndexItems(items []store.Item) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	batch := ix.index.NewBatch()
	for _, item := range items {
		doc := map[string]any{
			"question":     item.Question,
			"domain":       item.DomainPath,
			"source_title": item.Source.Title,
			"locator":      item.Source.Locator,
		}
		if err := batch.Index(item.ID, doc); err != nil {
			return errs.Infra("index item %s", item.ID).Wrap(err)
		}
	}
	if err := ix.index.Batch(batch); err != nil {
		return errs.Infra("flush index batch").Wrap(err)
	}
	return nil
}

// Result is one search hit.
type Result struct {
	ItemID      string
	Question    string
	DomainPath  string
	SourceTitle string
	Locator     string
	Score       float64
}

// Search runs a fuzzy match over question, domain and source title.
func (ix *Indexer) Search(queryText string, limit int) ([]Result, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(queryText), limit, 0, false)
	req.Fields = []string{"question", "domain", "source_title", "locator"}

	res, err := ix.index.Search(req)
	if err != nil {
		return nil, errs.Infra("search failed").Wrap(err)
	}
	return convertHits(res), nil
}

// SearchDomain scopes a search to one domain subtree.
func (ix *Indexer) SearchDomain(queryText, domain string, limit int) ([]Result, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	match := bleve.NewMatchQuery(queryText)
	domainQuery := bleve.NewMatchPhraseQuery(domain)
	domainQuery.SetField("domain")
	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(match, domainQuery), limit, 0, false)
	req.Fields = []string{"question", "domain", "source_title", "locator"}

	res, err := ix.index.Search(req)
	if err != nil {
		return nil, errs.Infra("search failed").Wrap(err)
	}
	return convertHits(res), nil
}

func convertHits(res *bleve.SearchResult) []Result {
	out := make([]Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		question, _ := hit.Fields["question"].(string)
		domain, _ := hit.Fields["domain"].(string)
		title, _ := hit.Fields["source_title"].(string)
		locator, _ := hit.Fields["locator"].(string)
		out = append(out, Result{
			ItemID:      hit.ID,
			Question:    question,
			DomainPath:  domain,
			SourceTitle: title,
			Locator:     locator,
			Score:       hit.Score,
		})
	}
	return out
}

// Close releases the underlying index.
func (ix *Indexer) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.index.Close()
}
