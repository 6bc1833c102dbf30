package store

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/hoangvle/recall-cycle/internal/errs"
)

func TestValidateItemsFileGoodAndMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "items.json")

	// Missing file passes: an empty store is valid.
	if err := ValidateItemsFile(path); err != nil {
		t.Fatalf("missing file should pass: %v", err)
	}

	if err := WriteItems(path, []Item{testItem("item-1", "src-1")}); err != nil {
		t.Fatal(err)
	}
	if err := ValidateItemsFile(path); err != nil {
		t.Fatalf("valid file should pass: %v", err)
	}
}

func TestValidateItemsFileSchemaViolations(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Item)
	}{
		{"bad answer", func(i *Item) { i.Answer = "E" }},
		{"bad format", func(i *Item) { i.Format = "X" }},
		{"bad depth", func(i *Item) { i.Depth = 5 }},
		{"three choices", func(i *Item) { i.Choices = i.Choices[:3] }},
		{"long quote", func(i *Item) { i.Rationale.Quote = strings.Repeat("q", 101) }},
		{"empty question", func(i *Item) { i.Question = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "items.json")
			item := testItem("item-1", "src-1")
			tc.mutate(&item)
			if err := WriteItems(path, []Item{item}); err != nil {
				t.Fatal(err)
			}

			err := ValidateItemsFile(path)
			if err == nil {
				t.Fatal("expected schema violation")
			}
			if kind, _ := errs.KindOf(err); kind != errs.KindData {
				t.Errorf("expected KindData, got %v", kind)
			}
		})
	}
}

func TestValidateItemsUniqueness(t *testing.T) {
	dupID := []Item{testItem("item-1", "src-1"), testItem("item-1", "src-2")}
	if err := ValidateItems(dupID); err == nil {
		t.Error("duplicate id should fail")
	}

	dupSource := []Item{testItem("item-1", "src-1"), testItem("item-2", "src-1")}
	if err := ValidateItems(dupSource); err == nil {
		t.Error("duplicate source should fail")
	}

	ok := []Item{testItem("item-1", "src-1"), testItem("item-2", "src-2")}
	if err := ValidateItems(ok); err != nil {
		t.Errorf("valid items should pass: %v", err)
	}
}
