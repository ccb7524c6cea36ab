package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Memory.PromotionThreshold != 3 {
		t.Errorf("expected promotion threshold 3, got %d", cfg.Memory.PromotionThreshold)
	}
	if cfg.Routing.ClarificationCutoff != 0.6 {
		t.Errorf("expected clarification cutoff 0.6, got %f", cfg.Routing.ClarificationCutoff)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Embedding.Provider != "ollama" {
		t.Errorf("expected default provider, got %s", cfg.Embedding.Provider)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parley.yaml")

	cfg := DefaultConfig()
	cfg.Memory.ShortTermCapacity = 7
	cfg.Classify.FallbackFloor = 0.25
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 7, loaded.Memory.ShortTermCapacity)
	require.Equal(t, 0.25, loaded.Classify.FallbackFloor)
}

func TestEnvOverrides(t *testing.T) {
	os.Setenv("PARLEY_DB", "/tmp/parley-test.db")
	os.Setenv("PARLEY_PROMOTION_THRESHOLD", "5")
	defer os.Unsetenv("PARLEY_DB")
	defer os.Unsetenv("PARLEY_PROMOTION_THRESHOLD")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Memory.DatabasePath != "/tmp/parley-test.db" {
		t.Errorf("PARLEY_DB override not applied: %s", cfg.Memory.DatabasePath)
	}
	if cfg.Memory.PromotionThreshold != 5 {
		t.Errorf("PARLEY_PROMOTION_THRESHOLD override not applied: %d", cfg.Memory.PromotionThreshold)
	}
}

func TestDurationFallbacks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Embedding.Timeout = "garbage"
	if got := cfg.GetEmbeddingTimeout(); got != 5*time.Second {
		t.Errorf("expected 5s fallback, got %v", got)
	}
	cfg.Session.IdleTimeout = "45m"
	if got := cfg.GetIdleTimeout(); got != 45*time.Minute {
		t.Errorf("expected 45m, got %v", got)
	}
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Classify.FallbackFloor = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for out-of-range fallback floor")
	}

	cfg = DefaultConfig()
	cfg.Memory.ShortTermCapacity = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero capacity")
	}
}
