package generate

import (
	"fmt"
	"strings"
)

// maxQuoteLen bounds the rationale quote so it stays a verifiable snippet.
const maxQuoteLen = 100

// candidate is the model's raw answer to the build stage.
type candidate struct {
	Question  string   `json:"question"`
	Choices   []string `json:"choices"`
	Answer    string   `json:"answer"`
	Rationale struct {
		Quote   string `json:"quote"`
		Explain string `json:"explain"`
	} `json:"rationale"`
	Format string `json:"format"`
	Depth  int    `json:"depth"`
}

// hardGate decides whether a candidate is usable at all. Failures here drop
// the candidate without writing anything.
func hardGate(c candidate, excerpt string) (bool, string) {
	switch c.Answer {
	case "A", "B", "C", "D":
	default:
		return false, fmt.Sprintf("invalid or missing answer: %q", c.Answer)
	}
	if len(c.Choices) != 4 {
		return false, fmt.Sprintf("invalid choices count: %d", len(c.Choices))
	}
	if c.Question == "" {
		return false, "missing question"
	}
	if c.Rationale.Quote == "" {
		return false, "missing rationale quote"
	}
	if c.Rationale.Explain == "" {
		return false, "missing rationale explanation"
	}
	if len(c.Rationale.Quote) > maxQuoteLen {
		return false, fmt.Sprintf("rationale quote too long: %d chars", len(c.Rationale.Quote))
	}
	if !strings.Contains(excerpt, c.Rationale.Quote) {
		return false, "rationale quote not found in excerpt"
	}
	return true, ""
}

// softGate checks classification sanity. Failing it keeps the item but
// flags it for review.
func softGate(c candidate) bool {
	switch c.Format {
	case "F", "W", "A":
	default:
		return false
	}
	return c.Depth >= 1 && c.Depth <= 3
}
