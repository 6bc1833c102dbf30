package store

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/hoangvle/recall-cycle/internal/errs"
)

// LedgerEntry records that a source has been consumed by a run. The ledger
// is append-only; a source id appearing here is never generated again.
type LedgerEntry struct {
	SourceID string `json:"source_id"`
	UsedAt   string `json:"used_at"`
	RunID    string `json:"run_id"`
}

// ReadLedger loads all ledger entries. A missing file is an empty ledger.
func ReadLedger(path string) ([]LedgerEntry, error) {
	var entries []LedgerEntry
	err := readJSONL(path, func(line []byte) error {
		var e LedgerEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// AppendLedger appends one entry. The write is a single O_APPEND line, so
// concurrent appenders cannot interleave partial records.
func AppendLedger(path string, entry LedgerEntry) error {
	return appendJSONL(path, entry)
}

// UsedSourceIDs returns the set of source ids already consumed.
func UsedSourceIDs(entries []LedgerEntry) map[string]bool {
	used := make(map[string]bool, len(entries))
	for _, e := range entries {
		used[e.SourceID] = true
	}
	return used
}

func readJSONL(path string, each func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errs.Infra("open %s", path).Wrap(err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := each(line); err != nil {
			return errs.Data("malformed record at %s:%d", path, lineNo).Wrap(err)
		}
	}
	if err := scanner.Err(); err != nil {
		return errs.Infra("read %s", path).Wrap(err)
	}
	return nil
}

func appendJSONL(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.Infra("create dir for %s", path).Wrap(err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return errs.Data("encode record").Wrap(err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errs.Infra("open %s for append", path).Wrap(err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return errs.Infra("append to %s", path).Wrap(err)
	}
	return nil
}
