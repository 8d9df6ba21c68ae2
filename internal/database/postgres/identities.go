package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/tomashavel/faceforge/internal/database"
)

// IdentityRepository provides PostgreSQL-backed identity storage.
// Updates are guarded by a version column: concurrent merges use
// read-modify-write with a version check instead of a global lock.
type IdentityRepository struct {
	pool *Pool
}

// NewIdentityRepository creates a new PostgreSQL identity repository.
func NewIdentityRepository(pool *Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

const identityColumns = `
	id, name, centroid, coverage, image_count, angle_count, confidence,
	mesh_url, source_batch, version, created_at, updated_at`

// CreateIdentity stores a new identity and returns its ID.
func (r *IdentityRepository) CreateIdentity(ctx context.Context, identity *database.StoredIdentity) (int64, error) {
	coverage, err := marshalCoverage(identity.Coverage)
	if err != nil {
		return 0, err
	}

	var centroid any
	if len(identity.Centroid) > 0 {
		centroid = pgvector.NewVector(identity.Centroid)
	}

	query := `
		INSERT INTO identities
			(name, name_norm, centroid, coverage, image_count, angle_count,
			 confidence, mesh_url, source_batch)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	var id int64
	err = r.pool.QueryRow(ctx, query,
		identity.Name, database.NormalizeIdentityName(identity.Name), centroid,
		coverage, identity.ImageCount, identity.AngleCount, identity.Confidence,
		identity.MeshURL, identity.SourceBatch,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert identity: %w", err)
	}
	return id, nil
}

// GetIdentity retrieves an identity by ID.
func (r *IdentityRepository) GetIdentity(ctx context.Context, id int64) (*database.StoredIdentity, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+identityColumns+" FROM identities WHERE id = $1", id)
	return scanIdentity(row)
}

// GetIdentityByName retrieves an identity by normalized name.
func (r *IdentityRepository) GetIdentityByName(ctx context.Context, name string) (*database.StoredIdentity, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+identityColumns+" FROM identities WHERE name_norm = $1 ORDER BY id LIMIT 1",
		database.NormalizeIdentityName(name))
	return scanIdentity(row)
}

// ListIdentities returns all identities ordered by creation time.
func (r *IdentityRepository) ListIdentities(ctx context.Context) ([]database.StoredIdentity, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+identityColumns+" FROM identities ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	var identities []database.StoredIdentity
	for rows.Next() {
		identity, err := scanIdentityRow(rows)
		if err != nil {
			return nil, err
		}
		identities = append(identities, *identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return identities, nil
}

// UpdateIdentity writes centroid, coverage and counters, guarded by the
// version recorded on the passed identity. On success the version on the
// struct is advanced to match the stored row.
func (r *IdentityRepository) UpdateIdentity(ctx context.Context, identity *database.StoredIdentity) error {
	coverage, err := marshalCoverage(identity.Coverage)
	if err != nil {
		return err
	}

	var centroid any
	if len(identity.Centroid) > 0 {
		centroid = pgvector.NewVector(identity.Centroid)
	}

	query := `
		UPDATE identities
		SET name = $2, name_norm = $3, centroid = $4, coverage = $5,
		    image_count = $6, angle_count = $7, confidence = $8, mesh_url = $9,
		    version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $10
	`

	result, err := r.pool.Exec(ctx, query,
		identity.ID, identity.Name, database.NormalizeIdentityName(identity.Name),
		centroid, coverage, identity.ImageCount, identity.AngleCount,
		identity.Confidence, identity.MeshURL, identity.Version,
	)
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update identity rows affected: %w", err)
	}
	if affected == 0 {
		return database.ErrVersionConflict
	}
	identity.Version++
	return nil
}

func marshalCoverage(coverage map[database.Angle]database.AngleSample) ([]byte, error) {
	if coverage == nil {
		coverage = map[database.Angle]database.AngleSample{}
	}
	data, err := json.Marshal(coverage)
	if err != nil {
		return nil, fmt.Errorf("marshal coverage: %w", err)
	}
	return data, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentityRow(row rowScanner) (*database.StoredIdentity, error) {
	var identity database.StoredIdentity
	var centroid *pgvector.Vector
	var coverage []byte

	err := row.Scan(&identity.ID, &identity.Name, &centroid, &coverage,
		&identity.ImageCount, &identity.AngleCount, &identity.Confidence,
		&identity.MeshURL, &identity.SourceBatch, &identity.Version,
		&identity.CreatedAt, &identity.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan identity: %w", err)
	}

	if centroid != nil {
		identity.Centroid = centroid.Slice()
	}
	identity.Coverage = map[database.Angle]database.AngleSample{}
	if len(coverage) > 0 {
		if err := json.Unmarshal(coverage, &identity.Coverage); err != nil {
			return nil, fmt.Errorf("unmarshal coverage: %w", err)
		}
	}
	return &identity, nil
}

func scanIdentity(row *sql.Row) (*database.StoredIdentity, error) {
	identity, err := scanIdentityRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	return identity, nil
}
