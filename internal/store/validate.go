package store

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/hoangvle/recall-cycle/internal/errs"
)

// itemsSchema is the JSON Schema items.json must satisfy. Structural
// checks that the schema cannot express (quote length relative to source,
// id/source linkage) live in ValidateItems.
const itemsSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "source_id", "domain_path", "format", "depth",
                 "question", "choices", "answer", "rationale", "source", "retired"],
    "properties": {
      "id": {"type": "string", "minLength": 1},
      "source_id": {"type": "string", "minLength": 1},
      "domain_path": {"type": "string", "minLength": 1},
      "format": {"enum": ["F", "W", "A"]},
      "depth": {"type": "integer", "minimum": 1, "maximum": 3},
      "question": {"type": "string", "minLength": 1},
      "choices": {
        "type": "array",
        "items": {"type": "string"},
        "minItems": 4,
        "maxItems": 4
      },
      "answer": {"enum": ["A", "B", "C", "D"]},
      "rationale": {
        "type": "object",
        "required": ["quote", "explain"],
        "properties": {
          "quote": {"type": "string", "maxLength": 100},
          "explain": {"type": "string"}
        }
      },
      "source": {
        "type": "object",
        "required": ["title", "locator"],
        "properties": {
          "title": {"type": "string"},
          "locator": {"type": "string"},
          "url": {"type": "string"}
        }
      },
      "retired": {"type": "boolean"}
    }
  }
}`

var compiledItemsSchema = mustCompileItemsSchema()

func mustCompileItemsSchema() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(itemsSchema))
	if err != nil {
		panic(fmt.Sprintf("items schema is not valid JSON: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("items.schema.json", doc); err != nil {
		panic(fmt.Sprintf("add items schema resource: %v", err))
	}
	sch, err := compiler.Compile("items.schema.json")
	if err != nil {
		panic(fmt.Sprintf("compile items schema: %v", err))
	}
	return sch
}

// ValidateItemsFile checks items.json on disk against the schema. A
// missing file passes (empty store).
func ValidateItemsFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errs.Infra("read items: %s", path).Wrap(err)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return errs.Data("items file is not valid JSON: %s", path).Wrap(err)
	}
	if err := compiledItemsSchema.Validate(doc); err != nil {
		return errs.Data("items file violates schema: %s", path).Wrap(err)
	}
	return nil
}

// ValidateItems enforces the constraints the schema cannot: id uniqueness
// and one item per source.
func ValidateItems(items []Item) error {
	seenID := make(map[string]int, len(items))
	seenSource := make(map[string]int, len(items))

	for i, item := range items {
		if item.ID == "" {
			return errs.Data("item[%d] has empty id", i)
		}
		if prev, dup := seenID[item.ID]; dup {
			return errs.Data("duplicate item id %q at [%d] and [%d]", item.ID, prev, i)
		}
		seenID[item.ID] = i

		if item.SourceID == "" {
			return errs.Data("item[%d] has empty source_id", i)
		}
		if prev, dup := seenSource[item.SourceID]; dup {
			return errs.Data("source %q produced items at [%d] and [%d]", item.SourceID, prev, i)
		}
		seenSource[item.SourceID] = i

		if len(item.Choices) != 4 {
			return errs.Data("item %s has %d choices, want 4", item.ID, len(item.Choices))
		}
		if item.Answer < "A" || item.Answer > "D" || len(item.Answer) != 1 {
			return errs.Data("item %s has invalid answer %q", item.ID, item.Answer)
		}
	}
	return nil
}
