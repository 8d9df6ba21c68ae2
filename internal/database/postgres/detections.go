package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/tomashavel/faceforge/internal/database"
)

// DetectionRepository provides PostgreSQL-backed detection storage.
type DetectionRepository struct {
	pool *Pool
}

// NewDetectionRepository creates a new PostgreSQL detection repository.
func NewDetectionRepository(pool *Pool) *DetectionRepository {
	return &DetectionRepository{pool: pool}
}

// SaveDetections stores a batch of detections and returns their IDs.
func (r *DetectionRepository) SaveDetections(ctx context.Context, detections []database.StoredDetection) ([]int64, error) {
	query := `
		INSERT INTO detections
			(image_url, batch_ref, face_index, embedding, bbox, det_score, quality,
			 angle, euler, crop_url, identity_id, dim)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`

	ids := make([]int64, 0, len(detections))
	for i := range detections {
		d := &detections[i]

		var embedding any
		if d.HasEmbedding() {
			embedding = pgvector.NewVector(d.Embedding)
		}
		var euler []byte
		if d.Euler != nil {
			var err error
			euler, err = json.Marshal(d.Euler)
			if err != nil {
				return nil, fmt.Errorf("marshal euler angles: %w", err)
			}
		}

		var id int64
		err := r.pool.QueryRow(ctx, query,
			d.ImageURL, d.BatchRef, d.FaceIndex, embedding, pq.Array(d.BBox),
			d.DetScore, d.Quality, string(d.Angle), euler, d.CropURL,
			d.IdentityID, d.Dim,
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("insert detection: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// GetDetectionsByIdentity retrieves all detections assigned to an identity.
func (r *DetectionRepository) GetDetectionsByIdentity(ctx context.Context, identityID int64) ([]database.StoredDetection, error) {
	query := `
		SELECT id, image_url, batch_ref, face_index, embedding, bbox, det_score,
		       quality, angle, euler, crop_url, identity_id, dim, created_at
		FROM detections
		WHERE identity_id = $1
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, identityID)
	if err != nil {
		return nil, fmt.Errorf("query detections: %w", err)
	}
	defer rows.Close()

	return scanDetections(rows)
}

// CountDetections returns the total number of detections stored.
func (r *DetectionRepository) CountDetections(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM detections").Scan(&count); err != nil {
		return 0, fmt.Errorf("count detections: %w", err)
	}
	return count, nil
}

func scanDetections(rows *sql.Rows) ([]database.StoredDetection, error) {
	var detections []database.StoredDetection
	for rows.Next() {
		var d database.StoredDetection
		var embedding *pgvector.Vector
		var bbox pq.Float64Array
		var angle string
		var euler []byte

		err := rows.Scan(&d.ID, &d.ImageURL, &d.BatchRef, &d.FaceIndex, &embedding,
			&bbox, &d.DetScore, &d.Quality, &angle, &euler, &d.CropURL,
			&d.IdentityID, &d.Dim, &d.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan detection: %w", err)
		}

		if embedding != nil {
			d.Embedding = embedding.Slice()
		}
		d.BBox = bbox
		d.Angle = database.Angle(angle)
		if len(euler) > 0 {
			var e database.EulerAngles
			if err := json.Unmarshal(euler, &e); err != nil {
				return nil, fmt.Errorf("unmarshal euler angles: %w", err)
			}
			d.Euler = &e
		}
		detections = append(detections, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate detections: %w", err)
	}
	return detections, nil
}
