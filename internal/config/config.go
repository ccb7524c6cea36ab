// Package config holds all parley configuration.
// Config is loaded from YAML with environment variable overrides. The
// classification/memory thresholds live here because they are empirical
// starting points, not proven constants; keeping them in config means they
// can be tuned without a rebuild.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all parley configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Embedding provider configuration
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Classification thresholds
	Classify ClassifyConfig `yaml:"classify"`

	// Memory configuration
	Memory MemoryConfig `yaml:"memory"`

	// Router configuration
	Routing RoutingConfig `yaml:"routing"`

	// Session lifecycle
	Session SessionConfig `yaml:"session"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // ollama, genai, hash
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
	GenAIAPIKey    string `yaml:"genai_api_key"`
	GenAIModel     string `yaml:"genai_model"`

	// Timeout bounds a single embed call; on expiry the matcher degrades to
	// score 0 instead of blocking the turn.
	Timeout string `yaml:"timeout"`

	// CacheSize caps the exact-string embedding cache (0 = unbounded).
	CacheSize int `yaml:"cache_size"`
}

// ClassifyConfig configures the staged intent classifier.
type ClassifyConfig struct {
	// PatternBaseline is the confidence assigned to an exact grammar match.
	PatternBaseline float64 `yaml:"pattern_baseline"`

	// MissingSlotPenalty multiplies confidence per unfilled required slot.
	MissingSlotPenalty float64 `yaml:"missing_slot_penalty"`

	// SemanticTrigger: run the semantic stage when pattern confidence is
	// below this value.
	SemanticTrigger float64 `yaml:"semantic_trigger"`

	// SemanticThreshold is the minimum similarity for a semantic match.
	SemanticThreshold float64 `yaml:"semantic_threshold"`

	// ContextBoost is added when the prior turn shares the candidate
	// category (capped at 1.0).
	ContextBoost float64 `yaml:"context_boost"`

	// FallbackFloor: below this the classifier returns unknown/0.
	FallbackFloor float64 `yaml:"fallback_floor"`

	// LearnedBoost is added to learned example similarity scores.
	LearnedBoost float64 `yaml:"learned_boost"`

	// BankPath optionally points at a YAML example bank; empty uses the
	// built-in bank. A file bank is watched and hot-reloaded.
	BankPath string `yaml:"bank_path"`
}

// MemoryConfig configures contextual memory.
type MemoryConfig struct {
	// ShortTermCapacity is the turn buffer size N.
	ShortTermCapacity int `yaml:"short_term_capacity"`

	// PromotionThreshold is the observation count at which a learned
	// preference becomes active.
	PromotionThreshold int `yaml:"promotion_threshold"`

	// LongTermTopK is the default number of long-term entries surfaced in
	// adaptive context.
	LongTermTopK int `yaml:"long_term_top_k"`

	// DatabasePath locates the SQLite backend ("" = in-memory only).
	DatabasePath string `yaml:"database_path"`
}

// RoutingConfig configures the handler chain.
type RoutingConfig struct {
	// ClarificationCutoff: intents below this confidence short-circuit to
	// the clarification handler.
	ClarificationCutoff float64 `yaml:"clarification_cutoff"`
}

// SessionConfig configures session lifecycle.
type SessionConfig struct {
	IdleTimeout   string `yaml:"idle_timeout"`
	SweepInterval string `yaml:"sweep_interval"`
}

// LoggingConfig configures the logging subsystem.
type LoggingConfig struct {
	Level      string          `yaml:"level"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "parley",
		Version: "0.3.0",
		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
			Timeout:        "5s",
			CacheSize:      4096,
		},
		Classify: ClassifyConfig{
			PatternBaseline:    0.9,
			MissingSlotPenalty: 0.9,
			SemanticTrigger:    0.6,
			SemanticThreshold:  0.5,
			ContextBoost:       0.1,
			FallbackFloor:      0.3,
			LearnedBoost:       0.1,
		},
		Memory: MemoryConfig{
			ShortTermCapacity:  10,
			PromotionThreshold: 3,
			LongTermTopK:       5,
		},
		Routing: RoutingConfig{
			ClarificationCutoff: 0.6,
		},
		Session: SessionConfig{
			IdleTimeout:   "30m",
			SweepInterval: "1m",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file, falling back to defaults if the
// file does not exist. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PARLEY_EMBEDDING_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("PARLEY_OLLAMA_ENDPOINT"); v != "" {
		c.Embedding.OllamaEndpoint = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Embedding.GenAIAPIKey = v
	}
	if v := os.Getenv("PARLEY_DB"); v != "" {
		c.Memory.DatabasePath = v
	}
	if v := os.Getenv("PARLEY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PARLEY_PROMOTION_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Memory.PromotionThreshold = n
		}
	}
}

// GetEmbeddingTimeout returns the embed call timeout as a duration.
func (c *Config) GetEmbeddingTimeout() time.Duration {
	d, err := time.ParseDuration(c.Embedding.Timeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetIdleTimeout returns the session idle timeout as a duration.
func (c *Config) GetIdleTimeout() time.Duration {
	d, err := time.ParseDuration(c.Session.IdleTimeout)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// GetSweepInterval returns the session sweep interval as a duration.
func (c *Config) GetSweepInterval() time.Duration {
	d, err := time.ParseDuration(c.Session.SweepInterval)
	if err != nil {
		return time.Minute
	}
	return d
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Memory.ShortTermCapacity <= 0 {
		return fmt.Errorf("memory.short_term_capacity must be positive, got %d", c.Memory.ShortTermCapacity)
	}
	if c.Memory.PromotionThreshold <= 0 {
		return fmt.Errorf("memory.promotion_threshold must be positive, got %d", c.Memory.PromotionThreshold)
	}
	for name, v := range map[string]float64{
		"classify.pattern_baseline":     c.Classify.PatternBaseline,
		"classify.missing_slot_penalty": c.Classify.MissingSlotPenalty,
		"classify.semantic_trigger":     c.Classify.SemanticTrigger,
		"classify.semantic_threshold":   c.Classify.SemanticThreshold,
		"classify.fallback_floor":       c.Classify.FallbackFloor,
		"routing.clarification_cutoff":  c.Routing.ClarificationCutoff,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0,1], got %f", name, v)
		}
	}
	if c.Classify.ContextBoost < 0 || c.Classify.ContextBoost > 1 {
		return fmt.Errorf("classify.context_boost must be in [0,1], got %f", c.Classify.ContextBoost)
	}
	return nil
}
