package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/tomashavel/faceforge/internal/constants"
)

//go:embed prices.yaml
var pricesYAML []byte

type Config struct {
	Embedding EmbeddingConfig
	Gemini    GeminiConfig
	OpenAI    OpenAIConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Pipeline  PipelineConfig
	Prices    PricesConfig
}

type EmbeddingConfig struct {
	URL string // face embedding service base URL, defaults to http://localhost:8000
	Dim int    // embedding dimensionality, defaults to 512
}

type GeminiConfig struct {
	APIKey string
}

type OpenAIConfig struct {
	Token string
}

type StorageConfig struct {
	Bucket    string // S3 bucket for generated artifacts and face crops
	Prefix    string // optional key prefix inside the bucket
	PublicURL string // public base URL for uploaded objects (e.g. https://cdn.example.com)
	Endpoint  string // optional custom S3 endpoint (MinIO, localstack)
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

// PipelineConfig externalizes the thresholds that drive clustering and the
// generate/validate loop. Values are used as defaults; job payloads may
// override them per job.
type PipelineConfig struct {
	MatchThreshold      float64 // minimum cosine similarity for identity matching
	ValidationThreshold float64 // minimum fidelity score to accept an output
	MaxAttempts         int     // generation attempt cap per job
	WorkerCount         int     // queue worker pool size
	AnalyzeConcurrency  int     // max in-flight reference image analyses per job
	Provider            string  // generation provider: "gemini" (default) or "openai"
}

type PricesConfig struct {
	Models map[string]ModelPricing `yaml:"models"`
}

type ModelPricing struct {
	Standard RequestPricing `yaml:"standard"`
	Image    float64        `yaml:"image"` // flat price per generated image
}

type RequestPricing struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float in (0, 1].
// Returns the default value if the env var is unset, empty, or out of range.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}

func Load() *Config {
	var prices PricesConfig
	if err := yaml.Unmarshal(pricesYAML, &prices); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded prices.yaml: " + err.Error())
	}

	return &Config{
		Embedding: EmbeddingConfig{
			URL: os.Getenv("EMBEDDING_URL"),
			Dim: envInt("EMBEDDING_DIM", 512),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
		},
		OpenAI: OpenAIConfig{
			Token: os.Getenv("OPENAI_TOKEN"),
		},
		Storage: StorageConfig{
			Bucket:    os.Getenv("STORAGE_BUCKET"),
			Prefix:    os.Getenv("STORAGE_PREFIX"),
			PublicURL: os.Getenv("STORAGE_PUBLIC_URL"),
			Endpoint:  os.Getenv("STORAGE_ENDPOINT"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Pipeline: PipelineConfig{
			MatchThreshold:      envFloat("MATCH_THRESHOLD", constants.DefaultMatchThreshold),
			ValidationThreshold: envFloat("VALIDATION_THRESHOLD", constants.DefaultValidationThreshold),
			MaxAttempts:         envInt("MAX_ATTEMPTS", constants.DefaultMaxAttempts),
			WorkerCount:         envInt("WORKER_COUNT", constants.DefaultWorkerCount),
			AnalyzeConcurrency:  envInt("ANALYZE_CONCURRENCY", constants.DefaultAnalyzeConcurrency),
			Provider:            os.Getenv("GENERATION_PROVIDER"),
		},
		Prices: prices,
	}
}

// GetModelPricing returns pricing for a specific model, with fallback defaults
func (c *Config) GetModelPricing(modelName string) ModelPricing {
	if pricing, ok := c.Prices.Models[modelName]; ok {
		return pricing
	}
	// Return zero pricing if model not found
	return ModelPricing{}
}
