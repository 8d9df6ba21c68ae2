package postgres

import (
	"context"
	"fmt"
)

// Migrate creates the schema. Statements are idempotent so the command can
// run on every startup. embeddingDim fixes the pgvector column width.
func (p *Pool) Migrate(ctx context.Context, embeddingDim int) error {
	if _, err := p.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	statements := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS identities (
				id           BIGSERIAL PRIMARY KEY,
				name         VARCHAR(255) NOT NULL DEFAULT '',
				name_norm    VARCHAR(255) NOT NULL DEFAULT '',
				centroid     vector(%d),
				coverage     JSONB NOT NULL DEFAULT '{}',
				image_count  INTEGER NOT NULL DEFAULT 0,
				angle_count  INTEGER NOT NULL DEFAULT 0,
				confidence   DOUBLE PRECISION NOT NULL DEFAULT 0,
				mesh_url     TEXT NOT NULL DEFAULT '',
				source_batch VARCHAR(255) NOT NULL DEFAULT '',
				version      BIGINT NOT NULL DEFAULT 1,
				created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
			)`, embeddingDim),
		`CREATE INDEX IF NOT EXISTS identities_name_norm_idx ON identities (name_norm)`,
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS detections (
				id          BIGSERIAL PRIMARY KEY,
				image_url   TEXT NOT NULL,
				batch_ref   VARCHAR(255) NOT NULL DEFAULT '',
				face_index  INTEGER NOT NULL DEFAULT 0,
				embedding   vector(%d),
				bbox        DOUBLE PRECISION[],
				det_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
				quality     DOUBLE PRECISION NOT NULL DEFAULT 0,
				angle       VARCHAR(16) NOT NULL DEFAULT 'unknown',
				euler       JSONB,
				crop_url    TEXT NOT NULL DEFAULT '',
				identity_id BIGINT NOT NULL DEFAULT 0,
				dim         INTEGER NOT NULL DEFAULT 0,
				created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
			)`, embeddingDim),
		`CREATE INDEX IF NOT EXISTS detections_identity_idx ON detections (identity_id)`,
		`CREATE INDEX IF NOT EXISTS detections_batch_idx ON detections (batch_ref)`,
		`
			CREATE TABLE IF NOT EXISTS profiles (
				identity_id  BIGINT PRIMARY KEY,
				data         JSONB NOT NULL,
				sample_count INTEGER NOT NULL DEFAULT 0,
				confidence   DOUBLE PRECISION NOT NULL DEFAULT 0,
				created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
		`
			CREATE TABLE IF NOT EXISTS jobs (
				id           UUID PRIMARY KEY,
				kind         VARCHAR(64) NOT NULL,
				payload      JSONB NOT NULL,
				status       VARCHAR(16) NOT NULL DEFAULT 'pending',
				progress     INTEGER NOT NULL DEFAULT 0,
				attempts     INTEGER NOT NULL DEFAULT 0,
				cost         DOUBLE PRECISION NOT NULL DEFAULT 0,
				feedback     TEXT[] NOT NULL DEFAULT '{}',
				best_effort  BOOLEAN NOT NULL DEFAULT FALSE,
				output_urls  TEXT[] NOT NULL DEFAULT '{}',
				failed_items TEXT[] NOT NULL DEFAULT '{}',
				error        TEXT NOT NULL DEFAULT '',
				created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
				claimed_at   TIMESTAMPTZ,
				completed_at TIMESTAMPTZ
			)`,
		`CREATE INDEX IF NOT EXISTS jobs_status_created_idx ON jobs (status, created_at)`,
	}

	for _, stmt := range statements {
		if _, err := p.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
