package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Lllllllleong/resumeflow/internal/config"
	"github.com/Lllllllleong/resumeflow/internal/services"
)

func TestParseFlags(t *testing.T) {
	opts, paths, err := parseFlags([]string{"-parallel", "2", "-json", "-router", "legacy", "a.pdf", "b.docx"})
	if err != nil {
		t.Fatal(err)
	}
	if opts.parallel != 2 || !opts.jsonOutput || opts.router != "legacy" {
		t.Errorf("unexpected options %+v", opts)
	}
	if len(paths) != 2 || paths[0] != "a.pdf" {
		t.Errorf("paths = %v", paths)
	}
}

func TestParseFlagsErrors(t *testing.T) {
	if _, _, err := parseFlags(nil); err == nil {
		t.Error("expected error without files")
	}
	if _, _, err := parseFlags([]string{"-checkpoints", "sqlite", "a.pdf"}); err == nil {
		t.Error("expected error for unknown checkpoint store")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := loadConfig(options{parallel: 8, router: "legacy", maxExtractions: 2})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Parallelism != 8 || cfg.Router != "legacy" || cfg.MaxExtractions != 2 {
		t.Errorf("overrides not applied: %+v", cfg)
	}

	if _, err := loadConfig(options{router: "strict"}); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestBuildBatchRedisNeedsURL(t *testing.T) {
	cfg := config.Default()
	cfg.RedisURL = ""
	if _, _, err := buildBatch(cfg, options{checkpoints: "redis"}, nil, nil); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestJSONSummary(t *testing.T) {
	var buf bytes.Buffer
	err := jsonSummary(&buf, services.FileResult{
		Path:    "jane.pdf",
		RunID:   "run-1",
		Outcome: &services.Outcome{Approved: true, Attempts: 2, Extraction: "{}"},
	})
	if err != nil {
		t.Fatal(err)
	}
	var s fileSummary
	if err := json.Unmarshal(buf.Bytes(), &s); err != nil {
		t.Fatal(err)
	}
	if s.Status != "success" || !s.Approved || s.Attempts != 2 {
		t.Errorf("unexpected summary %+v", s)
	}

	buf.Reset()
	jsonSummary(&buf, services.FileResult{Path: "x.txt", Err: errors.New("unsupported file type: .txt")})
	if err := json.Unmarshal(buf.Bytes(), &s); err != nil || s.Status != "error" || s.Error == "" {
		t.Errorf("unexpected error summary %+v (%v)", s, err)
	}
}
