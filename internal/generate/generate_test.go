package generate

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hoangvle/recall-cycle/internal/config"
	"github.com/hoangvle/recall-cycle/internal/gate"
	"github.com/hoangvle/recall-cycle/internal/logging"
	"github.com/hoangvle/recall-cycle/internal/store"
)

const testExcerpt = "The context package defines the Context type, which carries deadlines, " +
	"cancellation signals, and other request-scoped values across API boundaries."

func validCandidate() candidate {
	var c candidate
	c.Question = "What does the Context type carry across API boundaries?"
	c.Choices = []string{"A. Goroutines", "B. Deadlines and cancellation signals", "C. File handles", "D. Mutexes"}
	c.Answer = "B"
	c.Rationale.Quote = "carries deadlines, cancellation signals"
	c.Rationale.Explain = "The excerpt states this directly."
	c.Format = "F"
	c.Depth = 1
	return c
}

func TestHardGate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*candidate)
		reason string
	}{
		{"missing answer", func(c *candidate) { c.Answer = "" }, "answer"},
		{"answer out of range", func(c *candidate) { c.Answer = "E" }, "answer"},
		{"three choices", func(c *candidate) { c.Choices = c.Choices[:3] }, "choices"},
		{"missing question", func(c *candidate) { c.Question = "" }, "question"},
		{"missing quote", func(c *candidate) { c.Rationale.Quote = "" }, "quote"},
		{"missing explanation", func(c *candidate) { c.Rationale.Explain = "" }, "explanation"},
		{"quote too long", func(c *candidate) { c.Rationale.Quote = strings.Repeat("x", 101) }, "too long"},
		{"quote not in excerpt", func(c *candidate) { c.Rationale.Quote = "fabricated claim" }, "not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCandidate()
			tt.mutate(&c)
			ok, reason := hardGate(c, testExcerpt)
			require.False(t, ok)
			require.Contains(t, reason, tt.reason)
		})
	}

	ok, reason := hardGate(validCandidate(), testExcerpt)
	require.True(t, ok, reason)
}

func TestSoftGate(t *testing.T) {
	c := validCandidate()
	require.True(t, softGate(c))

	c.Format = "X"
	require.False(t, softGate(c))

	c = validCandidate()
	c.Depth = 4
	require.False(t, softGate(c))
}

func TestItemIDDeterministic(t *testing.T) {
	a := ItemID("src-001")
	b := ItemID("src-001")
	require.Equal(t, a, b)
	require.NotEqual(t, a, ItemID("src-002"))
}

func TestExtractJSON(t *testing.T) {
	want := `{"answer": "B"}`
	tests := []struct {
		name string
		raw  string
	}{
		{"bare", `{"answer": "B"}`},
		{"fenced", "```json\n{\"answer\": \"B\"}\n```"},
		{"fenced no lang", "```\n{\"answer\": \"B\"}\n```"},
		{"prose around", "Here is the result:\n{\"answer\": \"B\"}\nHope that helps."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.JSONEq(t, want, string(extractJSON(tt.raw)))
		})
	}
}

func testGate(t *testing.T, cfg config.RateLimitConfig) *gate.Gate {
	t.Helper()
	return gate.New(cfg, filepath.Join(t.TempDir(), "usage.json"), logging.Discard())
}

func openGateConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		RequestsPerSecond: 100, BurstLimit: 100,
		RequestsPerMinute: 1000, RequestsPerHour: 10000, RequestsPerDay: 100000,
	}
}

// stubGenerator wires canned stage responses through the real pipeline.
func stubGenerator(t *testing.T, g *gate.Gate, responses []string, errs []error) *LLMGenerator {
	t.Helper()
	call := 0
	return &LLMGenerator{
		provider: "groq",
		gate:     g,
		logger:   logging.Discard(),
		chat: func(ctx context.Context, system, user string) (string, error) {
			defer func() { call++ }()
			if errs != nil && errs[call] != nil {
				return "", errs[call]
			}
			return responses[call], nil
		},
	}
}

func testSource() store.Source {
	return store.Source{
		SourceID:   "src-001",
		Title:      "context docs",
		Locator:    "pkg/context",
		DomainPath: "go/context/basics",
		Excerpt:    testExcerpt,
	}
}

const extractResponse = `{"facts": [{"id": "f1", "text": "Context carries deadlines", "support_quote": "carries deadlines"}], "relations": []}`

const buildResponse = `{
  "question": "What does the Context type carry across API boundaries?",
  "choices": ["A. Goroutines", "B. Deadlines and cancellation signals", "C. File handles", "D. Mutexes"],
  "answer": "B",
  "rationale": {"quote": "carries deadlines, cancellation signals", "explain": "Stated directly."},
  "format": "F",
  "depth": 2
}`

func TestGeneratePipeline(t *testing.T) {
	g := stubGenerator(t, testGate(t, openGateConfig()), []string{extractResponse, buildResponse}, nil)

	item, err := g.Generate(context.Background(), testSource())
	require.NoError(t, err)
	require.NotNil(t, item)
	require.Equal(t, ItemID("src-001"), item.ID)
	require.Equal(t, "src-001", item.SourceID)
	require.Equal(t, "B", item.Answer)
	require.Equal(t, "F", item.Format)
	require.Equal(t, 2, item.Depth)
	require.Equal(t, "go/context/basics", item.DomainPath)
	require.NotContains(t, item.Meta, "qc")
}

func TestGenerateEmptyExtractionRejects(t *testing.T) {
	g := stubGenerator(t, testGate(t, openGateConfig()),
		[]string{`{"facts": [], "relations": []}`, ""}, nil)

	item, err := g.Generate(context.Background(), testSource())
	require.NoError(t, err)
	require.Nil(t, item)
}

func TestGenerateHardGateRejects(t *testing.T) {
	bad := strings.Replace(buildResponse, `"answer": "B"`, `"answer": ""`, 1)
	g := stubGenerator(t, testGate(t, openGateConfig()), []string{extractResponse, bad}, nil)

	item, err := g.Generate(context.Background(), testSource())
	require.NoError(t, err)
	require.Nil(t, item)
}

func TestGenerateSoftFailMarked(t *testing.T) {
	odd := strings.Replace(buildResponse, `"depth": 2`, `"depth": 7`, 1)
	g := stubGenerator(t, testGate(t, openGateConfig()), []string{extractResponse, odd}, nil)

	item, err := g.Generate(context.Background(), testSource())
	require.NoError(t, err)
	require.NotNil(t, item)
	require.Equal(t, "soft_fail", item.Meta["qc"])
}

func TestGenerateBlockedGateSurfaces(t *testing.T) {
	cfg := openGateConfig()
	cfg.ProviderDailyLimits = map[string]int{"groq": 1}
	gt := testGate(t, cfg)

	// Burn the single budgeted call.
	require.NoError(t, gt.Call(context.Background(), gate.CallGeneration, "groq",
		func(context.Context) error { return nil }))

	g := stubGenerator(t, gt, []string{extractResponse, buildResponse}, nil)
	_, err := g.Generate(context.Background(), testSource())
	require.ErrorIs(t, err, gate.ErrBlocked)
}

func TestGenerateUpstreamErrorPropagates(t *testing.T) {
	boom := errors.New("provider 500")
	g := stubGenerator(t, testGate(t, openGateConfig()), []string{"", ""}, []error{boom, nil})

	_, err := g.Generate(context.Background(), testSource())
	require.Error(t, err)
	require.Contains(t, err.Error(), "extract stage failed")
}
