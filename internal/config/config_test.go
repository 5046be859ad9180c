package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resumeflow.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxExtractions != 3 || cfg.Parallelism != 4 || cfg.MaxFileSize != 5*1024*1024 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.Router != "validator" || cfg.RunsCollection != "runs" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeFile(t, `
provider: vertex
project_id: from-file
model: gemini-1.5-flash
max_extractions: 5
router: legacy
checkpoint_ttl: 2h
`)
	t.Setenv("PROJECT_ID", "from-env")
	t.Setenv("MAX_FILE_SIZE", "1024")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider != ProviderVertex || cfg.Model != "gemini-1.5-flash" || cfg.Router != "legacy" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.MaxExtractions != 5 || cfg.CheckpointTTL != 2*time.Hour {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.ProjectID != "from-env" || cfg.MaxFileSize != 1024 {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(writeFile(t, "max_extractions: [")); err == nil {
		t.Error("expected error for malformed yaml")
	}
	t.Setenv("MAX_EXTRACTIONS", "three")
	if _, err := Load(""); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.OpenAIAPIKey = "sk-test"

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid openai", func(c *Config) {}, true},
		{"missing key", func(c *Config) { c.OpenAIAPIKey = "" }, false},
		{"vertex needs project", func(c *Config) { c.Provider = ProviderVertex }, false},
		{"unknown provider", func(c *Config) { c.Provider = "bedrock" }, false},
		{"zero ceiling", func(c *Config) { c.MaxExtractions = 0 }, false},
		{"unknown router", func(c *Config) { c.Router = "strict" }, false},
		{"zero parallelism", func(c *Config) { c.Parallelism = 0 }, false},
		{"temperature too high", func(c *Config) { c.Temperature = 3 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestValidateCloud(t *testing.T) {
	cfg := Default()
	cfg.OpenAIAPIKey = "sk-test"
	if err := cfg.ValidateCloud(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected missing project error, got %v", err)
	}
	cfg.ProjectID = "p"
	if err := cfg.ValidateCloud(); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("RESUMEFLOW_TEST_VALUE", "set")
	if got := GetEnv("RESUMEFLOW_TEST_VALUE", "fallback"); got != "set" {
		t.Errorf("GetEnv = %q", got)
	}
	if got := GetEnv("RESUMEFLOW_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("GetEnv = %q", got)
	}
}
