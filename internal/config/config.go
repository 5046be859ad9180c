// Package config loads resumeflow settings from defaults, an optional YAML
// file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Lllllllleong/resumeflow/internal/loader"
	"github.com/Lllllllleong/resumeflow/internal/pipeline"
)

const (
	ProviderVertex = "vertex"
	ProviderOpenAI = "openai"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Provider      string  `yaml:"provider"`
	Model         string  `yaml:"model"`
	Temperature   float32 `yaml:"temperature"`
	ProjectID     string  `yaml:"project_id"`
	VertexRegion  string  `yaml:"vertex_region"`
	OpenAIAPIKey  string  `yaml:"openai_api_key"`
	OpenAIBaseURL string  `yaml:"openai_base_url"`

	MaxExtractions int    `yaml:"max_extractions"`
	Router         string `yaml:"router"`
	MaxFileSize    int64  `yaml:"max_file_size"`
	Parallelism    int    `yaml:"parallelism"`

	FirestoreDatabase string `yaml:"firestore_database"`
	RunsCollection    string `yaml:"runs_collection"`
	ResultsBucket     string `yaml:"results_bucket"`
	WorkflowID        string `yaml:"workflow_id"`
	WorkflowLocation  string `yaml:"workflow_location"`

	RedisURL      string        `yaml:"redis_url"`
	RedisPrefix   string        `yaml:"redis_prefix"`
	CheckpointTTL time.Duration `yaml:"checkpoint_ttl"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Provider:         ProviderOpenAI,
		VertexRegion:     "us-central1",
		MaxExtractions:   pipeline.DefaultMaxExtractions,
		Router:           "validator",
		MaxFileSize:      loader.DefaultMaxFileSize,
		Parallelism:      4,
		RunsCollection:   "runs",
		WorkflowLocation: "us-central1",
		RedisPrefix:      "resumeflow",
		CheckpointTTL:    24 * time.Hour,
	}
}

// GetEnv retrieves an environment variable or returns a fallback value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// Load builds a Config. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Provider = GetEnv("LLM_PROVIDER", c.Provider)
	c.Model = GetEnv("LLM_MODEL", c.Model)
	c.ProjectID = GetEnv("PROJECT_ID", c.ProjectID)
	c.VertexRegion = GetEnv("VERTEX_AI_REGION", c.VertexRegion)
	c.OpenAIAPIKey = GetEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIBaseURL = GetEnv("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.Router = GetEnv("PIPELINE_ROUTER", c.Router)
	c.FirestoreDatabase = GetEnv("FIRESTORE_DATABASE", c.FirestoreDatabase)
	c.RunsCollection = GetEnv("FIRESTORE_COLLECTION", c.RunsCollection)
	c.ResultsBucket = GetEnv("RESULTS_BUCKET", c.ResultsBucket)
	c.WorkflowID = GetEnv("WORKFLOW_ID", c.WorkflowID)
	c.WorkflowLocation = GetEnv("WORKFLOW_LOCATION", c.WorkflowLocation)
	c.RedisURL = GetEnv("REDIS_URL", c.RedisURL)

	if v, ok := os.LookupEnv("MAX_EXTRACTIONS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: MAX_EXTRACTIONS: %v", ErrInvalidConfig, err)
		}
		c.MaxExtractions = n
	}
	if v, ok := os.LookupEnv("MAX_FILE_SIZE"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: MAX_FILE_SIZE: %v", ErrInvalidConfig, err)
		}
		c.MaxFileSize = n
	}
	if v, ok := os.LookupEnv("LLM_TEMPERATURE"); ok {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return fmt.Errorf("%w: LLM_TEMPERATURE: %v", ErrInvalidConfig, err)
		}
		c.Temperature = float32(f)
	}
	if v, ok := os.LookupEnv("CHECKPOINT_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: CHECKPOINT_TTL: %v", ErrInvalidConfig, err)
		}
		c.CheckpointTTL = d
	}
	return nil
}

// Validate checks the settings every entrypoint needs.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderVertex:
		if c.ProjectID == "" {
			return fmt.Errorf("%w: project_id is required for the vertex provider", ErrInvalidConfig)
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: openai_api_key is required for the openai provider", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, c.Provider)
	}
	if c.MaxExtractions < 1 {
		return fmt.Errorf("%w: max_extractions must be at least 1", ErrInvalidConfig)
	}
	if _, err := pipeline.RouterByName(c.Router); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Parallelism < 1 {
		return fmt.Errorf("%w: parallelism must be at least 1", ErrInvalidConfig)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: temperature must be between 0 and 2", ErrInvalidConfig)
	}
	return nil
}

// ValidateCloud additionally checks the settings used by the Cloud Functions.
func (c Config) ValidateCloud() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ProjectID == "" {
		return fmt.Errorf("%w: project_id is required", ErrInvalidConfig)
	}
	if c.RunsCollection == "" {
		return fmt.Errorf("%w: runs_collection is required", ErrInvalidConfig)
	}
	return nil
}
