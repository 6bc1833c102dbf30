package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadLayersOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
space: med
params:
  total: 40
  reward_cap: 5
note_store:
  deck: Medicine
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Space != "med" {
		t.Errorf("space = %q, want med", cfg.Space)
	}
	if cfg.Params.Total != 40 {
		t.Errorf("total = %d, want 40", cfg.Params.Total)
	}
	if cfg.Params.RewardCap != 5 {
		t.Errorf("reward_cap = %d, want 5", cfg.Params.RewardCap)
	}
	// Untouched keys keep defaults.
	if cfg.Params.MaintainTotal != 20 {
		t.Errorf("maintain_total = %d, want default 20", cfg.Params.MaintainTotal)
	}
	if cfg.NoteStore.URL != "http://127.0.0.1:8765" {
		t.Errorf("note_store.url lost its default: %q", cfg.NoteStore.URL)
	}
	if cfg.NoteStore.Deck != "Medicine" {
		t.Errorf("deck = %q, want Medicine", cfg.NoteStore.Deck)
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault failed: %v", err)
	}
	if cfg.Space != "default" {
		t.Errorf("expected defaults, got space %q", cfg.Space)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := Default()
	cfg.Space = "lang"
	cfg.Params.Total = 25

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Space != "lang" || loaded.Params.Total != 25 {
		t.Errorf("round trip lost values: %+v", loaded.Params)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty space", func(c *Config) { c.Space = "" }},
		{"empty url", func(c *Config) { c.NoteStore.URL = "" }},
		{"zero total", func(c *Config) { c.Params.Total = 0 }},
		{"negative quota", func(c *Config) { c.Params.NewTotal = -1 }},
		{"empty cap steps", func(c *Config) { c.Params.DomainCapSteps = nil }},
		{"decreasing cap steps", func(c *Config) { c.Params.DomainCapSteps = []int{8, 6} }},
		{"inverted excerpt bounds", func(c *Config) { c.Params.ExcerptMin = 700 }},
		{"zero stale seconds", func(c *Config) { c.Lock.StaleSeconds = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestPathsUnderDataDir(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/tmp/rc"
	cfg.Space = "med"

	if got := cfg.ItemsPath(); got != "/tmp/rc/med/items.json" {
		t.Errorf("ItemsPath = %q", got)
	}
	if got := cfg.UsagePath(); got != "/tmp/rc/usage.json" {
		t.Errorf("UsagePath = %q", got)
	}
}
