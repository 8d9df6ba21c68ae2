package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("EMBEDDING_DIM", "")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "")
	t.Setenv("MATCH_THRESHOLD", "")
	t.Setenv("MAX_ATTEMPTS", "")

	cfg := Load()

	if cfg.Embedding.Dim != 512 {
		t.Errorf("expected default embedding dim 512, got %d", cfg.Embedding.Dim)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("expected default max open conns 25, got %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Pipeline.MatchThreshold != 0.70 {
		t.Errorf("expected default match threshold 0.70, got %f", cfg.Pipeline.MatchThreshold)
	}
	if cfg.Pipeline.MaxAttempts != 3 {
		t.Errorf("expected default max attempts 3, got %d", cfg.Pipeline.MaxAttempts)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("EMBEDDING_DIM", "768")
	t.Setenv("MATCH_THRESHOLD", "0.82")
	t.Setenv("MAX_ATTEMPTS", "5")
	t.Setenv("WORKER_COUNT", "8")

	cfg := Load()

	if cfg.Embedding.Dim != 768 {
		t.Errorf("expected embedding dim 768, got %d", cfg.Embedding.Dim)
	}
	if cfg.Pipeline.MatchThreshold != 0.82 {
		t.Errorf("expected match threshold 0.82, got %f", cfg.Pipeline.MatchThreshold)
	}
	if cfg.Pipeline.MaxAttempts != 5 {
		t.Errorf("expected max attempts 5, got %d", cfg.Pipeline.MaxAttempts)
	}
	if cfg.Pipeline.WorkerCount != 8 {
		t.Errorf("expected worker count 8, got %d", cfg.Pipeline.WorkerCount)
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("EMBEDDING_DIM", "not-a-number")
	t.Setenv("MATCH_THRESHOLD", "1.5") // out of (0, 1]
	t.Setenv("MAX_ATTEMPTS", "-2")

	cfg := Load()

	if cfg.Embedding.Dim != 512 {
		t.Errorf("expected fallback embedding dim 512, got %d", cfg.Embedding.Dim)
	}
	if cfg.Pipeline.MatchThreshold != 0.70 {
		t.Errorf("expected fallback match threshold 0.70, got %f", cfg.Pipeline.MatchThreshold)
	}
	if cfg.Pipeline.MaxAttempts != 3 {
		t.Errorf("expected fallback max attempts 3, got %d", cfg.Pipeline.MaxAttempts)
	}
}

func TestGetModelPricing(t *testing.T) {
	cfg := Load()

	pricing := cfg.GetModelPricing("gemini-2.5-flash")
	if pricing.Standard.Input <= 0 {
		t.Error("expected non-zero input pricing for gemini-2.5-flash")
	}

	unknown := cfg.GetModelPricing("does-not-exist")
	if unknown.Standard.Input != 0 || unknown.Image != 0 {
		t.Error("expected zero pricing for unknown model")
	}
}

func TestEmbeddedPricesHaveImageModels(t *testing.T) {
	cfg := Load()

	for _, model := range []string{"gemini-2.5-flash-image-preview", "gpt-image-1"} {
		if cfg.GetModelPricing(model).Image <= 0 {
			t.Errorf("expected per-image pricing for %s", model)
		}
	}
}
