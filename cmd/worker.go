package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/tomashavel/faceforge/internal/config"
	"github.com/tomashavel/faceforge/internal/database"
	"github.com/tomashavel/faceforge/internal/database/postgres"
	"github.com/tomashavel/faceforge/internal/embedding"
	"github.com/tomashavel/faceforge/internal/generation"
	"github.com/tomashavel/faceforge/internal/queue"
	"github.com/tomashavel/faceforge/internal/storage"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the queue worker pool",
	Long: `Start the FaceForge worker pool.
Workers claim queued jobs from PostgreSQL and run them to completion:
clustering jobs call the embedding service and merge detections into
identities, generation jobs drive the generate/validate loop and upload
accepted outputs to object storage.`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)

	workerCmd.Flags().Int("workers", 0, "Worker pool size (defaults to WORKER_COUNT)")
}

// newBlobStore builds the S3-backed artifact store. A custom endpoint
// switches the client to path-style addressing for MinIO compatibility.
func newBlobStore(ctx context.Context, cfg *config.StorageConfig) (*storage.Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = &cfg.Endpoint
			o.UsePathStyle = true
		}
	})

	return storage.NewStore(client, cfg.Bucket, cfg.Prefix, cfg.PublicURL), nil
}

// newGenerationBackends wires the analyzer, generator and validator for the
// configured provider. Gemini always handles analysis and validation; the
// generator is swappable.
func newGenerationBackends(ctx context.Context, cfg *config.Config) (generation.Analyzer, generation.Generator, generation.Validator, error) {
	gemini, err := generation.NewGeminiClient(ctx, cfg.Gemini.APIKey,
		cfg.GetModelPricing(generation.GeminiTextModel).Standard,
		cfg.GetModelPricing(generation.GeminiImageModel))
	if err != nil {
		return nil, nil, nil, err
	}

	switch cfg.Pipeline.Provider {
	case "", "gemini":
		return gemini, gemini, gemini, nil
	case "openai":
		if cfg.OpenAI.Token == "" {
			return nil, nil, nil, errors.New("OPENAI_TOKEN environment variable is required for the openai provider")
		}
		gen := generation.NewOpenAIGenerator(cfg.OpenAI.Token, cfg.GetModelPricing(generation.OpenAIImageModel))
		return gemini, gen, gemini, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown generation provider %q", cfg.Pipeline.Provider)
	}
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	if cfg.Gemini.APIKey == "" {
		return errors.New("GEMINI_API_KEY environment variable is required")
	}
	if cfg.Storage.Bucket == "" {
		return errors.New("STORAGE_BUCKET environment variable is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Printf("Connecting to PostgreSQL database...\n")
	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()
	store := postgres.NewStore(pool)

	embeddingURL := cfg.Embedding.URL
	if embeddingURL == "" {
		embeddingURL = "http://localhost:8000"
	}
	detector := embedding.NewClient(embeddingURL)

	analyzer, generator, validator, err := newGenerationBackends(ctx, cfg)
	if err != nil {
		return err
	}

	blobs, err := newBlobStore(ctx, &cfg.Storage)
	if err != nil {
		return err
	}
	orchestrator := generation.NewOrchestrator(generator, validator, blobs)

	fmt.Printf("Building identity index...\n")
	index := database.NewIdentityIndex()
	identities, err := store.ListIdentities(ctx)
	if err != nil {
		return fmt.Errorf("failed to list identities: %w", err)
	}
	if err := index.Build(identities); err != nil {
		return fmt.Errorf("failed to build identity index: %w", err)
	}
	fmt.Printf("Identity index ready with %d identities\n", index.Len())

	worker := queue.NewWorker(store, detector, analyzer, orchestrator, &queue.HTTPFetcher{}, index, queue.WorkerConfig{
		MatchThreshold:      cfg.Pipeline.MatchThreshold,
		ValidationThreshold: cfg.Pipeline.ValidationThreshold,
		MaxAttempts:         cfg.Pipeline.MaxAttempts,
		AnalyzeConcurrency:  cfg.Pipeline.AnalyzeConcurrency,
	})

	size := mustGetInt(cmd, "workers")
	if size <= 0 {
		size = cfg.Pipeline.WorkerCount
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down, waiting for in-flight jobs...")
		cancel()
	}()

	fmt.Printf("Starting %d workers (provider: %s)\n", size, generator.Name())
	fmt.Println("Press Ctrl+C to stop")

	queue.NewPool(worker, store, size).Run(ctx)
	fmt.Println("All workers stopped")
	return nil
}
