/*
Package ingest turns text excerpts into queue sources.

Files are read whole, refined (normalization, length windowing, stable
source ids) and appended to queue.jsonl. The queue dedupes by source id,
so ingesting the same content twice queues nothing new. Sources that fail
refinement land in quarantine.jsonl for manual review instead of being
dropped silently.
*/
package ingest

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/hoangvle/recall-cycle/internal/config"
	"github.com/hoangvle/recall-cycle/internal/errs"
	"github.com/hoangvle/recall-cycle/internal/logging"
	"github.com/hoangvle/recall-cycle/internal/store"
)

// Ingestor feeds the source queue of one space.
type Ingestor struct {
	cfg    *config.Config
	logger *logging.Logger
}

func New(cfg *config.Config, logger *logging.Logger) *Ingestor {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Ingestor{cfg: cfg, logger: logger}
}

// Result summarizes one ingest operation.
type Result struct {
	// Queued is the number of new sources appended to the queue.
	Queued int

	// Duplicate counts refined sources already present in the queue.
	Duplicate int

	// Quarantined counts sources that failed refinement.
	Quarantined int
}

// File ingests one text file. An empty title defaults to the file name
// without extension; an empty domainPath is recorded as unknown.
func (in *Ingestor) File(path, title, domainPath string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, errs.Infra("read ingest file: %s", path).Wrap(err)
	}
	if title == "" {
		base := filepath.Base(path)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	raw := RawSource{
		Title:      title,
		Locator:    "file:" + filepath.Base(path),
		DomainPath: domainPath,
		Excerpt:    string(data),
	}
	return in.ingest(raw)
}

func (in *Ingestor) ingest(raw RawSource) (Result, error) {
	p := in.cfg.Params
	accepted, rejected := Refine(raw, p.ExcerptMin, p.ExcerptMax)

	var res Result
	if len(rejected) > 0 {
		if err := store.AppendQuarantine(in.cfg.QuarantinePath(), rejected); err != nil {
			return res, err
		}
		res.Quarantined = len(rejected)
		in.logger.Warn("sources quarantined", "locator", raw.Locator, "count", len(rejected))
	}

	added, err := store.AppendQueue(in.cfg.QueuePath(), accepted)
	if err != nil {
		return res, err
	}
	res.Queued = len(added)
	res.Duplicate = len(accepted) - len(added)
	in.logger.Info("ingest finished", "locator", raw.Locator,
		"queued", res.Queued, "duplicate", res.Duplicate, "quarantined", res.Quarantined)
	return res, nil
}
