package store

import "encoding/json"

// Source is one ingested text excerpt waiting for generation.
type Source struct {
	SourceID   string `json:"source_id"`
	Title      string `json:"title"`
	Locator    string `json:"locator"`
	URL        string `json:"url,omitempty"`
	DomainPath string `json:"domain_path"`
	Excerpt    string `json:"excerpt"`
}

// ReadQueue loads queue.jsonl. The queue is immutable from a run's point
// of view; only ingest appends to it.
func ReadQueue(path string) ([]Source, error) {
	var sources []Source
	err := readJSONL(path, func(line []byte) error {
		var s Source
		if err := json.Unmarshal(line, &s); err != nil {
			return err
		}
		sources = append(sources, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sources, nil
}

// AppendQueue appends sources that are not already queued, returning the
// ones actually written. Dedupe is by source id.
func AppendQueue(path string, sources []Source) ([]Source, error) {
	existing, err := ReadQueue(path)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(existing))
	for _, s := range existing {
		seen[s.SourceID] = true
	}

	var added []Source
	for _, s := range sources {
		if seen[s.SourceID] {
			continue
		}
		if err := appendJSONL(path, s); err != nil {
			return added, err
		}
		seen[s.SourceID] = true
		added = append(added, s)
	}
	return added, nil
}

// AppendQuarantine records sources rejected during refinement. Quarantined
// sources never enter the queue; the file exists for manual review.
func AppendQuarantine(path string, sources []Source) error {
	for _, s := range sources {
		if err := appendJSONL(path, s); err != nil {
			return err
		}
	}
	return nil
}
