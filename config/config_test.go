package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AGENTS_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Site.BaseURL != "https://www.sothebysrealty.com" {
		t.Fatalf("unexpected base URL %s", cfg.Site.BaseURL)
	}
	if cfg.Scraper.Concurrency != 2 {
		t.Fatalf("expected default concurrency 2, got %d", cfg.Scraper.Concurrency)
	}
	if cfg.Scraper.NavRetries != 3 {
		t.Fatalf("expected default retries 3, got %d", cfg.Scraper.NavRetries)
	}
	if cfg.Scraper.WaitTimeout != 20*time.Second {
		t.Fatalf("expected default wait timeout 20s, got %s", cfg.Scraper.WaitTimeout)
	}
	if len(cfg.Agents) != 0 {
		t.Fatalf("missing roster must yield an empty roster, got %d agents", len(cfg.Agents))
	}
}

func TestConcurrencyClamped(t *testing.T) {
	t.Setenv("AGENTS_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("SCRAPE_CONCURRENCY", "50")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Scraper.Concurrency != 5 {
		t.Fatalf("expected concurrency clamped to 5, got %d", cfg.Scraper.Concurrency)
	}

	t.Setenv("SCRAPE_CONCURRENCY", "0")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Scraper.Concurrency != 1 {
		t.Fatalf("expected concurrency clamped to 1, got %d", cfg.Scraper.Concurrency)
	}
}

func TestLoadRoster(t *testing.T) {
	dir := t.TempDir()
	roster := filepath.Join(dir, "agents.yaml")
	data := `site:
  base_url: https://www.sothebysrealty.com
  locale_path: /caymanislandssir/eng
  index_path: /sales/int
agents:
  - id: 180-a-735-4031226
  - id: 212-b-101-5550001
`
	if err := os.WriteFile(roster, []byte(data), 0644); err != nil {
		t.Fatalf("write roster failed: %v", err)
	}
	t.Setenv("AGENTS_FILE", roster)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(cfg.Agents) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(cfg.Agents))
	}
	if cfg.Site.LocalePath != "/caymanislandssir/eng" {
		t.Fatalf("roster site override not applied: %s", cfg.Site.LocalePath)
	}

	want := "https://www.sothebysrealty.com/caymanislandssir/eng/sales/int/180-a-735-4031226"
	if got := cfg.AgentIndexURL("180-a-735-4031226"); got != want {
		t.Fatalf("AgentIndexURL = %s, want %s", got, want)
	}
}
