package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
patterns:
  positive_path: "./pos.txt"
  negative_path: "./neg.txt"
match:
  controls: 3
  min_similarity: 0.35
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true")
	}
	if cfg.Match.Controls != 3 {
		t.Errorf("controls = %d, want 3", cfg.Match.Controls)
	}
	if cfg.Match.MinSimilarity != 0.35 {
		t.Errorf("min_similarity = %f, want 0.35", cfg.Match.MinSimilarity)
	}
	// Unset values take defaults.
	if cfg.Match.Workers != 6 {
		t.Errorf("workers = %d, want default 6", cfg.Match.Workers)
	}
	if cfg.Match.MaxPosts != 100 {
		t.Errorf("max_posts = %d, want default 100", cfg.Match.MaxPosts)
	}
	// "./" paths expand relative to the config directory.
	if want := filepath.Join(dir, "pos.txt"); cfg.Patterns.PositivePath != want {
		t.Errorf("positive_path = %s, want %s", cfg.Patterns.PositivePath, want)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config")
	}
}

func TestLoad_invalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("match: ["), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid yaml")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Match.Controls != 7 {
		t.Errorf("controls = %d, want 7", cfg.Match.Controls)
	}
	if cfg.Match.MinSimilarity != 0.2 {
		t.Errorf("min_similarity = %f, want 0.2", cfg.Match.MinSimilarity)
	}
	if cfg.Match.MinAcceptable != 5 {
		t.Errorf("min_acceptable = %d, want 5", cfg.Match.MinAcceptable)
	}
	if cfg.Fetch.PageSize != 200 {
		t.Errorf("page_size = %d, want 200", cfg.Fetch.PageSize)
	}
	if cfg.Debug {
		t.Error("debug should default to false")
	}
}
