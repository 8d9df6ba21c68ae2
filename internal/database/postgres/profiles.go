package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tomashavel/faceforge/internal/database"
)

// ProfileRepository persists aggregated identity profiles.
type ProfileRepository struct {
	pool *Pool
}

// NewProfileRepository creates a new PostgreSQL profile repository.
func NewProfileRepository(pool *Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// SaveProfile replaces the stored profile for an identity wholesale.
func (r *ProfileRepository) SaveProfile(ctx context.Context, profile *database.StoredProfile) error {
	query := `
		INSERT INTO profiles (identity_id, data, sample_count, confidence, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (identity_id)
		DO UPDATE SET data = EXCLUDED.data, sample_count = EXCLUDED.sample_count,
		              confidence = EXCLUDED.confidence, created_at = now()
	`
	if _, err := r.pool.Exec(ctx, query,
		profile.IdentityID, profile.Data, profile.SampleCount, profile.Confidence); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// GetProfile retrieves the stored profile for an identity.
func (r *ProfileRepository) GetProfile(ctx context.Context, identityID int64) (*database.StoredProfile, error) {
	query := `
		SELECT identity_id, data, sample_count, confidence, created_at
		FROM profiles
		WHERE identity_id = $1
	`
	var p database.StoredProfile
	err := r.pool.QueryRow(ctx, query, identityID).Scan(
		&p.IdentityID, &p.Data, &p.SampleCount, &p.Confidence, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}
