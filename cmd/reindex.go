package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/tomashavel/faceforge/internal/config"
	"github.com/tomashavel/faceforge/internal/database"
	"github.com/tomashavel/faceforge/internal/database/postgres"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Recompute identity centroids from stored detections",
	Long: `Recompute every identity centroid from its assigned detections.
Centroids drift when detections are reassigned or deleted out of band;
reindex restores them to the exact mean of the surviving embeddings.`,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	fmt.Printf("Connecting to PostgreSQL database...\n")
	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()
	store := postgres.NewStore(pool)

	ctx := context.Background()
	identities, err := store.ListIdentities(ctx)
	if err != nil {
		return fmt.Errorf("failed to list identities: %w", err)
	}
	if len(identities) == 0 {
		fmt.Println("No identities to reindex")
		return nil
	}
	total, err := store.CountDetections(ctx)
	if err != nil {
		return fmt.Errorf("failed to count detections: %w", err)
	}
	fmt.Printf("Reindexing %d identities over %d stored detections\n", len(identities), total)

	bar := progressbar.NewOptions(len(identities),
		progressbar.OptionSetDescription("Recomputing centroids"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("identities"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var updated, skipped int
	for i := range identities {
		identity := &identities[i]
		if err := reindexIdentity(ctx, store, identity); err != nil {
			_ = bar.Add(1)
			fmt.Printf("\nWarning: identity %d (%s): %v\n", identity.ID, identity.Name, err)
			skipped++
			continue
		}
		updated++
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	fmt.Printf("\nReindex complete: %d updated, %d skipped\n", updated, skipped)
	return nil
}

// reindexIdentity replaces the centroid with the mean of the identity's
// current detection embeddings.
func reindexIdentity(ctx context.Context, store *postgres.Store, identity *database.StoredIdentity) error {
	detections, err := store.GetDetectionsByIdentity(ctx, identity.ID)
	if err != nil {
		return fmt.Errorf("failed to load detections: %w", err)
	}

	var embeddings [][]float32
	for i := range detections {
		if detections[i].HasEmbedding() {
			embeddings = append(embeddings, detections[i].Embedding)
		}
	}
	if len(embeddings) == 0 {
		return errors.New("no detections with embeddings")
	}

	identity.Centroid = database.MeanVector(embeddings)
	identity.ImageCount = len(embeddings)
	return store.UpdateIdentity(ctx, identity)
}
