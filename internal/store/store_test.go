package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hoangvle/recall-cycle/internal/errs"
)

func testItem(id, sourceID string) Item {
	return Item{
		ID:         id,
		SourceID:   sourceID,
		DomainPath: "med/cardio/valves",
		Format:     "F",
		Depth:      1,
		Question:   "Which valve separates the left atrium and ventricle?",
		Choices:    []string{"Mitral", "Tricuspid", "Aortic", "Pulmonary"},
		Answer:     "A",
		Rationale:  Rationale{Quote: "the mitral valve lies between them", Explain: "anatomy"},
		Source:     SourceRef{Title: "Cardiology Notes", Locator: "ch3"},
		Meta:       map[string]any{},
	}
}

func TestReadItemsMissingFile(t *testing.T) {
	items, err := ReadItems(filepath.Join(t.TempDir(), "items.json"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected empty list, got %d", len(items))
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	want := []Item{testItem("item-1", "src-1"), testItem("item-2", "src-2")}

	if err := WriteItems(path, want); err != nil {
		t.Fatalf("WriteItems failed: %v", err)
	}
	got, err := ReadItems(path)
	if err != nil {
		t.Fatalf("ReadItems failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "item-1" || got[1].Question != want[1].Question {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestWriteItemsLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "items.json")
	if err := WriteItems(path, []Item{testItem("a", "s")}); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestReadItemsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	os.WriteFile(path, []byte("{not json"), 0o644)

	_, err := ReadItems(path)
	if err == nil {
		t.Fatal("expected error")
	}
	if kind, _ := errs.KindOf(err); kind != errs.KindData {
		t.Errorf("expected KindData, got %v", kind)
	}
}

func TestLedgerAppendRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")

	for _, id := range []string{"src-1", "src-2"} {
		if err := AppendLedger(path, LedgerEntry{SourceID: id, UsedAt: "2026-08-26", RunID: "r1"}); err != nil {
			t.Fatalf("AppendLedger failed: %v", err)
		}
	}

	entries, err := ReadLedger(path)
	if err != nil {
		t.Fatalf("ReadLedger failed: %v", err)
	}
	if len(entries) != 2 || entries[1].SourceID != "src-2" {
		t.Errorf("unexpected entries: %+v", entries)
	}

	used := UsedSourceIDs(entries)
	if !used["src-1"] || used["src-3"] {
		t.Errorf("unexpected used set: %v", used)
	}
}

func TestQueueDedupe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.jsonl")

	first, err := AppendQueue(path, []Source{
		{SourceID: "s1", Title: "A", Excerpt: "x"},
		{SourceID: "s2", Title: "B", Excerpt: "y"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 2 {
		t.Errorf("expected 2 added, got %d", len(first))
	}

	second, err := AppendQueue(path, []Source{
		{SourceID: "s2", Title: "B", Excerpt: "y"},
		{SourceID: "s3", Title: "C", Excerpt: "z"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 1 || second[0].SourceID != "s3" {
		t.Errorf("dedupe failed: %+v", second)
	}

	all, err := ReadQueue(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("queue length = %d, want 3", len(all))
	}
}
