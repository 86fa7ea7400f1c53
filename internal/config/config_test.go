package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_NoFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ThresholdKB != 0 {
		t.Fatalf("expected zero threshold, got %v", cfg.ThresholdKB)
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	dir := t.TempDir()
	content := `api_url: https://github.example.com/api/v3
threshold_kb: 500
max_files_per_repo: 20
concurrency: 4
format: csv
timeout: 10m
`
	if err := os.WriteFile(filepath.Join(dir, ".gitweight.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIURL != "https://github.example.com/api/v3" {
		t.Fatalf("unexpected api_url %q", cfg.APIURL)
	}
	if cfg.ThresholdKB != 500 {
		t.Fatalf("expected threshold_kb 500, got %v", cfg.ThresholdKB)
	}
	if cfg.MaxFilesPerRepo != 20 {
		t.Fatalf("expected max_files_per_repo 20, got %d", cfg.MaxFilesPerRepo)
	}
	if cfg.Concurrency != 4 {
		t.Fatalf("expected concurrency 4, got %d", cfg.Concurrency)
	}
	if cfg.Format != "csv" {
		t.Fatalf("expected format csv, got %q", cfg.Format)
	}
	if cfg.TimeoutDuration() != 10*time.Minute {
		t.Fatalf("expected 10m timeout, got %v", cfg.TimeoutDuration())
	}
}

func TestLoad_AlternateExtension(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".gitweight.yml"), []byte("format: json\n"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Format != "json" {
		t.Fatalf("expected format json, got %q", cfg.Format)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".gitweight.yaml"), []byte("threshold_kb: [oops\n"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestTimeoutDuration_Unparseable(t *testing.T) {
	cfg := Config{Timeout: "soon"}
	if cfg.TimeoutDuration() != time.Duration(0) {
		t.Fatalf("expected 0 for unparseable timeout, got %v", cfg.TimeoutDuration())
	}
}
