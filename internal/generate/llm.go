package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hoangvle/recall-cycle/internal/config"
	"github.com/hoangvle/recall-cycle/internal/errs"
	"github.com/hoangvle/recall-cycle/internal/gate"
	"github.com/hoangvle/recall-cycle/internal/logging"
	"github.com/hoangvle/recall-cycle/internal/store"
)

const (
	extractSystem = "You extract verifiable facts and relations from study material. " +
		"Every fact must carry a support quote copied verbatim from the excerpt. Answer in JSON only."
	buildSystem = "You write one four-choice recall question from supplied facts. " +
		"Distractors reuse vocabulary from the excerpt. Answer in JSON only."
)

// extraction is the model's answer to the extract stage.
type extraction struct {
	Facts []struct {
		ID           string `json:"id"`
		Text         string `json:"text"`
		SupportQuote string `json:"support_quote"`
	} `json:"facts"`
	Relations []struct {
		ID           string `json:"id"`
		Text         string `json:"text"`
		SupportQuote string `json:"support_quote"`
	} `json:"relations"`
}

// chatFn performs one chat completion. Swappable for tests.
type chatFn func(ctx context.Context, system, user string) (string, error)

// LLMGenerator drives an OpenAI-compatible endpoint through the rate gate.
type LLMGenerator struct {
	provider string
	gate     *gate.Gate
	logger   *logging.Logger
	chat     chatFn
}

// NewLLM builds a generator from the provider config. The API key comes
// from the environment, never from the config file.
func NewLLM(cfg config.LLMConfig, g *gate.Gate, logger *logging.Logger) (*LLMGenerator, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, errs.Config("environment variable %s is empty; cannot reach provider %s",
			cfg.APIKeyEnv, cfg.Provider).WithCode("LLM_KEY_MISSING")
	}
	oc := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(oc)
	if logger == nil {
		logger = logging.Discard()
	}

	return &LLMGenerator{
		provider: cfg.Provider,
		gate:     g,
		logger:   logger,
		chat: func(ctx context.Context, system, user string) (string, error) {
			resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model: cfg.Model,
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleSystem, Content: system},
					{Role: openai.ChatMessageRoleUser, Content: user},
				},
			})
			if err != nil {
				return "", err
			}
			if len(resp.Choices) == 0 {
				return "", errs.Infra("provider returned no choices")
			}
			return resp.Choices[0].Message.Content, nil
		},
	}, nil
}

// Generate runs both stages for one source. Rejections (empty extraction,
// hard-gate failure) return nil, nil; gate blocks bubble up as ErrBlocked.
func (g *LLMGenerator) Generate(ctx context.Context, src store.Source) (*store.Item, error) {
	ext, err := g.extract(ctx, src.Excerpt)
	if err != nil {
		return nil, err
	}
	if len(ext.Facts) == 0 && len(ext.Relations) == 0 {
		g.logger.Debug("source yielded no facts", "source_id", src.SourceID)
		return nil, nil
	}

	cand, err := g.build(ctx, ext, src.Excerpt)
	if err != nil {
		return nil, err
	}
	if ok, reason := hardGate(cand, src.Excerpt); !ok {
		g.logger.Info("candidate rejected by hard gate", "source_id", src.SourceID, "reason", reason)
		return nil, nil
	}

	item := buildItem(src, cand, ext)
	if !softGate(cand) {
		item.Meta["qc"] = "soft_fail"
	}
	return item, nil
}

func (g *LLMGenerator) extract(ctx context.Context, excerpt string) (extraction, error) {
	prompt := fmt.Sprintf(`Extract facts and relations from the following excerpt.
Each fact and relation must carry a support_quote that is a substring of the excerpt.

Excerpt:
%s

Return JSON:
{
  "facts": [{"id": "f1", "text": "...", "support_quote": "..."}],
  "relations": [{"id": "r1", "text": "...", "support_quote": "..."}]
}`, excerpt)

	var ext extraction
	err := g.gate.Call(ctx, gate.CallGeneration, g.provider, func(ctx context.Context) error {
		raw, err := g.chat(ctx, extractSystem, prompt)
		if err != nil {
			return errs.Infra("extract stage failed: %v", err)
		}
		if err := json.Unmarshal(extractJSON(raw), &ext); err != nil {
			return errs.Data("extract stage returned invalid JSON: %v", err)
		}
		return nil
	})
	return ext, err
}

func (g *LLMGenerator) build(ctx context.Context, ext extraction, excerpt string) (candidate, error) {
	var facts, relations strings.Builder
	for _, f := range ext.Facts {
		fmt.Fprintf(&facts, "- %s: %s\n", f.ID, f.Text)
	}
	for _, r := range ext.Relations {
		fmt.Fprintf(&relations, "- %s: %s\n", r.ID, r.Text)
	}

	prompt := fmt.Sprintf(`Create a four-choice question using only these facts and relations.
Distractors must use vocabulary from the excerpt.
The rationale quote must be at most 100 characters and a substring of the excerpt.

Facts:
%s
Relations:
%s
Excerpt:
%s

Return JSON:
{
  "question": "...",
  "choices": ["A. ...", "B. ...", "C. ...", "D. ..."],
  "answer": "A|B|C|D",
  "rationale": {"quote": "...", "explain": "..."},
  "format": "F|W|A",
  "depth": 1
}`, facts.String(), relations.String(), excerpt)

	var cand candidate
	err := g.gate.Call(ctx, gate.CallGeneration, g.provider, func(ctx context.Context) error {
		raw, err := g.chat(ctx, buildSystem, prompt)
		if err != nil {
			return errs.Infra("build stage failed: %v", err)
		}
		if err := json.Unmarshal(extractJSON(raw), &cand); err != nil {
			return errs.Data("build stage returned invalid JSON: %v", err)
		}
		return nil
	})
	return cand, err
}

// buildItem assembles the persisted item from a gated candidate.
func buildItem(src store.Source, cand candidate, ext extraction) *store.Item {
	var factIDs, relationIDs []string
	for _, f := range ext.Facts {
		factIDs = append(factIDs, f.ID)
	}
	for _, r := range ext.Relations {
		relationIDs = append(relationIDs, r.ID)
	}
	format := cand.Format
	if format == "" {
		format = "F"
	}
	depth := cand.Depth
	if depth == 0 {
		depth = 1
	}
	return &store.Item{
		ID:         ItemID(src.SourceID),
		SourceID:   src.SourceID,
		DomainPath: src.DomainPath,
		Format:     format,
		Depth:      depth,
		Question:   cand.Question,
		Choices:    cand.Choices,
		Answer:     cand.Answer,
		Rationale: store.Rationale{
			Quote:   cand.Rationale.Quote,
			Explain: cand.Rationale.Explain,
		},
		Source: store.SourceRef{
			Title:   src.Title,
			Locator: src.Locator,
			URL:     src.URL,
		},
		Meta: map[string]any{
			"facts_used":     factIDs,
			"relations_used": relationIDs,
		},
	}
}

// extractJSON tolerates code fences and prose around the model's JSON body.
func extractJSON(raw string) []byte {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return []byte(strings.TrimSpace(s))
}
