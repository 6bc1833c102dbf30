/*
Package config handles loading, validating, and saving recall-cycle
configuration.

Configuration lives in ~/.recall-cycle/config.yaml. All knobs have
defaults, so a missing file yields a working configuration pointed at a
local note store on the standard port.

Schema (YAML):

	space: default
	data_dir: ~/.recall-cycle/data
	note_store:
	  url: http://127.0.0.1:8765
	  version: 6
	  deck: Bank
	  note_type: RecallMCQ
	params:
	  total: 30
	  maintain_total: 20
	  new_total: 10
	  reward_cap: 3
	  domain_cap_steps: [6, 7, 8, 9999]
	  degrade_min_notes: 30
	  excerpt_min: 200
	  excerpt_max: 650
	lock:
	  stale_seconds: 3600
	rate_limit:
	  enabled: true
	  requests_per_second: 1.0
	  burst_limit: 2
	  requests_per_minute: 10
	  requests_per_hour: 500
	  requests_per_day: 1400
	  concurrent_requests: 3
	llm:
	  provider: groq
	  base_url: https://api.groq.com/openai/v1
	  api_key_env: RECALL_CYCLE_API_KEY
	  model: llama-3.3-70b-versatile
	api:
	  addr: 127.0.0.1:8337
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	// Space names the collection this instance curates.
	Space string `yaml:"space"`

	// DataDir is the root for items/ledger/queue/lock/usage/runlog files.
	DataDir string `yaml:"data_dir"`

	NoteStore NoteStoreConfig `yaml:"note_store"`
	Params    Params          `yaml:"params"`
	Lock      LockConfig      `yaml:"lock"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	LLM       LLMConfig       `yaml:"llm"`
	API       APIConfig       `yaml:"api"`
	Log       LogConfig       `yaml:"log"`
}

// NoteStoreConfig points at the external spaced-repetition note store.
type NoteStoreConfig struct {
	// URL is the action-protocol endpoint.
	URL string `yaml:"url"`

	// Version is the protocol version sent with every action.
	Version int `yaml:"version"`

	// Deck is the collection (deck) holding this space's notes.
	Deck string `yaml:"deck"`

	// NoteType is the note model name all items reconcile into.
	NoteType string `yaml:"note_type"`
}

// Params are the daily selection quotas and generation bounds.
type Params struct {
	// Total is the size of the Today set.
	Total int `yaml:"total"`

	// MaintainTotal is the maintain quota inside Total.
	MaintainTotal int `yaml:"maintain_total"`

	// NewTotal is the new-item quota inside Total.
	NewTotal int `yaml:"new_total"`

	// RewardCap bounds yesterday's reward pool.
	RewardCap int `yaml:"reward_cap"`

	// DomainCapSteps are the increasing per-domain caps for step relaxation.
	DomainCapSteps []int `yaml:"domain_cap_steps"`

	// DegradeMinNotes is the minimum active notes required for a degraded cycle.
	DegradeMinNotes int `yaml:"degrade_min_notes"`

	// ExcerptMin/ExcerptMax bound source excerpt length for generation.
	ExcerptMin int `yaml:"excerpt_min"`
	ExcerptMax int `yaml:"excerpt_max"`
}

// LockConfig controls run lock staleness.
type LockConfig struct {
	// StaleSeconds is the age beyond which an existing lock is reclaimed.
	StaleSeconds int `yaml:"stale_seconds"`
}

// RateLimitConfig configures the outbound call gate.
type RateLimitConfig struct {
	Enabled            bool    `yaml:"enabled"`
	RequestsPerSecond  float64 `yaml:"requests_per_second"`
	BurstLimit         int     `yaml:"burst_limit"`
	RequestsPerMinute  int     `yaml:"requests_per_minute"`
	RequestsPerHour    int     `yaml:"requests_per_hour"`
	RequestsPerDay     int     `yaml:"requests_per_day"`
	ConcurrentRequests int     `yaml:"concurrent_requests"`

	// CallTypes overrides limits per call type ("generation", "key_check", ...).
	CallTypes map[string]CallTypeLimits `yaml:"call_types,omitempty"`

	// ProviderDailyLimits caps specific providers per UTC day.
	ProviderDailyLimits map[string]int `yaml:"provider_daily_limits,omitempty"`
}

// CallTypeLimits are per-call-type window limits. Zero means unlimited.
type CallTypeLimits struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	RequestsPerHour   int `yaml:"requests_per_hour"`
	RequestsPerDay    int `yaml:"requests_per_day"`
}

// LLMConfig selects the content-generation provider.
type LLMConfig struct {
	// Provider is the budget key used by the usage tracker.
	Provider string `yaml:"provider"`

	// BaseURL is an OpenAI-compatible endpoint.
	BaseURL string `yaml:"base_url"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env"`

	// Model is the chat model identifier.
	Model string `yaml:"model"`
}

// APIConfig configures the REST front end.
type APIConfig struct {
	// Addr is the listen address for `recall-cycle serve`.
	Addr string `yaml:"addr"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Space:   "default",
		DataDir: filepath.Join(home, ".recall-cycle", "data"),
		NoteStore: NoteStoreConfig{
			URL:      "http://127.0.0.1:8765",
			Version:  6,
			Deck:     "Bank",
			NoteType: "RecallMCQ",
		},
		Params: Params{
			Total:           30,
			MaintainTotal:   20,
			NewTotal:        10,
			RewardCap:       3,
			DomainCapSteps:  []int{6, 7, 8, 9999},
			DegradeMinNotes: 30,
			ExcerptMin:      200,
			ExcerptMax:      650,
		},
		Lock: LockConfig{StaleSeconds: 3600},
		RateLimit: RateLimitConfig{
			Enabled:            true,
			RequestsPerSecond:  1.0,
			BurstLimit:         2,
			RequestsPerMinute:  10,
			RequestsPerHour:    500,
			RequestsPerDay:     1400,
			ConcurrentRequests: 3,
		},
		LLM: LLMConfig{
			Provider:  "groq",
			BaseURL:   "https://api.groq.com/openai/v1",
			APIKeyEnv: "RECALL_CYCLE_API_KEY",
			Model:     "llama-3.3-70b-versatile",
		},
		API: APIConfig{Addr: "127.0.0.1:8337"},
		Log: LogConfig{Level: "info"},
	}
}

// DefaultPath returns ~/.recall-cycle/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".recall-cycle", "config.yaml")
}

// Load reads configuration from path, layered over defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path if it exists, otherwise returns defaults.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Save writes cfg to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks structural constraints. Quota arithmetic is intentionally
// loose (total need not equal the sum of sub-quotas; the selector tops up).
func (c *Config) Validate() error {
	if c.Space == "" {
		return fmt.Errorf("space must not be empty")
	}
	if c.NoteStore.URL == "" {
		return fmt.Errorf("note_store.url must not be empty")
	}
	if c.NoteStore.Deck == "" {
		return fmt.Errorf("note_store.deck must not be empty")
	}
	p := c.Params
	if p.Total <= 0 {
		return fmt.Errorf("params.total must be positive, got %d", p.Total)
	}
	if p.MaintainTotal < 0 || p.NewTotal < 0 || p.RewardCap < 0 {
		return fmt.Errorf("params quotas must not be negative")
	}
	if len(p.DomainCapSteps) == 0 {
		return fmt.Errorf("params.domain_cap_steps must not be empty")
	}
	for i := 1; i < len(p.DomainCapSteps); i++ {
		if p.DomainCapSteps[i] < p.DomainCapSteps[i-1] {
			return fmt.Errorf("params.domain_cap_steps must be non-decreasing")
		}
	}
	if p.ExcerptMin > p.ExcerptMax {
		return fmt.Errorf("params.excerpt_min exceeds excerpt_max")
	}
	if c.Lock.StaleSeconds <= 0 {
		return fmt.Errorf("lock.stale_seconds must be positive")
	}
	return nil
}

// Paths derived from DataDir. Kept as methods so callers never concatenate
// path fragments themselves.

// ItemsPath is the authoritative items file.
func (c *Config) ItemsPath() string { return filepath.Join(c.DataDir, c.Space, "items.json") }

// LedgerPath is the append-only source-usage ledger.
func (c *Config) LedgerPath() string { return filepath.Join(c.DataDir, c.Space, "ledger.jsonl") }

// QueuePath is the read-only ingest queue.
func (c *Config) QueuePath() string { return filepath.Join(c.DataDir, c.Space, "queue.jsonl") }

// QuarantinePath holds ingested sources rejected during refinement.
func (c *Config) QuarantinePath() string {
	return filepath.Join(c.DataDir, c.Space, "quarantine.jsonl")
}

// LockPath is the run mutual-exclusion lock file.
func (c *Config) LockPath() string { return filepath.Join(c.DataDir, c.Space, ".run.lock") }

// UsagePath is the persisted cross-process usage counter file.
func (c *Config) UsagePath() string { return filepath.Join(c.DataDir, "usage.json") }

// RunlogPath is the SQLite run-record database.
func (c *Config) RunlogPath() string { return filepath.Join(c.DataDir, "runlog.db") }

// IndexPath is the bleve item search index directory.
func (c *Config) IndexPath() string { return filepath.Join(c.DataDir, c.Space, "search.bleve") }
