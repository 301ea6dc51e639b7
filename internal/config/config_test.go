package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BOARDCRAWLER_CONFIG", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Addr() != "127.0.0.1:5000" {
		t.Fatalf("unexpected addr %q", cfg.HTTP.Addr())
	}
	if cfg.Crawler.ListingWorkers != 5 || cfg.Crawler.ArticleWorkers != 5 {
		t.Fatalf("unexpected worker counts %+v", cfg.Crawler)
	}
	if cfg.Fetch.Timeout != 30*time.Second || cfg.Fetch.IndexTimeout != 3*time.Second {
		t.Fatalf("unexpected fetch timeouts %+v", cfg.Fetch)
	}
	if cfg.Locator.EarlyExit {
		t.Fatalf("early exit should default to false")
	}
	if !cfg.Stream.EmitItemErrors {
		t.Fatalf("item errors should be emitted by default")
	}
	if cfg.StorageType != "none" {
		t.Fatalf("unexpected storage type %q", cfg.StorageType)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BOARDCRAWLER_CONFIG", "")
	t.Setenv("HTTP_PORT", "6001")
	t.Setenv("CRAWLER_ARTICLE_WORKERS", "12")
	t.Setenv("LOCATOR_EARLY_EXIT", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Port != 6001 {
		t.Fatalf("expected port override, got %d", cfg.HTTP.Port)
	}
	if cfg.Crawler.ArticleWorkers != 12 {
		t.Fatalf("expected article worker override, got %d", cfg.Crawler.ArticleWorkers)
	}
	if !cfg.Locator.EarlyExit {
		t.Fatalf("expected early exit override")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "boardcrawler.yaml")
	raw := `
log_level: debug
crawler:
  listing_workers: 2
fetch:
  timeout_seconds: 7
storage_type: bbolt
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.Crawler.ListingWorkers != 2 || cfg.StorageType != "bbolt" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Fetch.Timeout != 7*time.Second {
		t.Fatalf("expected 7s fetch timeout, got %v", cfg.Fetch.Timeout)
	}
}

func TestLoadRejectsInvalidWorkers(t *testing.T) {
	t.Setenv("BOARDCRAWLER_CONFIG", "")
	t.Setenv("CRAWLER_LISTING_WORKERS", "0")

	if _, err := Load(""); err == nil {
		t.Fatalf("expected validation error for zero listing workers")
	}
}
