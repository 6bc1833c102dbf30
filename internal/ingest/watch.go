package ingest

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/hoangvle/recall-cycle/internal/errs"
)

// Watch ingests text files dropped into dir until ctx is cancelled.
// Editors fire several events per save; the queue dedupes by source id,
// so reprocessing a file queues nothing new.
func (in *Ingestor) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Infra("create watcher").Wrap(err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return errs.Infra("watch dir: %s", dir).Wrap(err)
	}
	in.logger.Info("watching for ingest files", "dir", dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) {
				continue
			}
			if !ingestible(ev.Name) {
				continue
			}
			res, err := in.File(ev.Name, "", "")
			if err != nil {
				in.logger.Error("ingest of watched file failed", "path", ev.Name, "error", err)
				continue
			}
			if res.Queued > 0 {
				in.logger.Info("watched file ingested", "path", ev.Name, "queued", res.Queued)
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			in.logger.Warn("watcher error", "error", werr)
		}
	}
}

func ingestible(path string) bool {
	switch filepath.Ext(path) {
	case ".txt", ".md":
		return true
	}
	return false
}
