package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/tomashavel/faceforge/internal/database"
)

// JobRepository is the durable work queue backed by PostgreSQL.
// Claiming uses FOR UPDATE SKIP LOCKED so that concurrent workers never
// take the same job.
type JobRepository struct {
	pool *Pool
}

// NewJobRepository creates a new PostgreSQL job repository.
func NewJobRepository(pool *Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

const jobColumns = `
	id, kind, payload, status, progress, attempts, cost, feedback, best_effort,
	output_urls, failed_items, error, created_at, claimed_at, completed_at`

// Enqueue stores a validated pending job.
func (r *JobRepository) Enqueue(ctx context.Context, job *database.StoredJob) error {
	query := `
		INSERT INTO jobs (id, kind, payload, status)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.pool.Exec(ctx, query, job.ID, job.Kind, job.Payload,
		string(database.JobStatusPending)); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	job.Status = database.JobStatusPending
	return nil
}

// GetJob retrieves a job by ID.
func (r *JobRepository) GetJob(ctx context.Context, id string) (*database.StoredJob, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = $1", id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// Claim atomically claims the oldest pending job and marks it processing.
func (r *JobRepository) Claim(ctx context.Context) (*database.StoredJob, error) {
	query := `
		UPDATE jobs
		SET status = 'processing', claimed_at = now()
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = 'pending'
			ORDER BY created_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns

	job, err := scanJob(r.pool.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrNoJobs
		}
		return nil, err
	}
	return job, nil
}

// CancelJob cancels a job that has not been claimed yet. Once a worker owns
// the job, cancellation happens cooperatively inside the worker instead.
func (r *JobRepository) CancelJob(ctx context.Context, id string) error {
	query := `
		UPDATE jobs
		SET status = 'cancelled', completed_at = now()
		WHERE id = $1 AND status = 'pending'
	`
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("cancel job rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing job from one that is already running.
		if _, err := r.GetJob(ctx, id); err != nil {
			return err
		}
		return database.ErrNotCancellable
	}
	return nil
}

// UpdateProgress updates the externally observable progress indicator.
func (r *JobRepository) UpdateProgress(ctx context.Context, id string, progress int) error {
	if _, err := r.pool.Exec(ctx,
		"UPDATE jobs SET progress = $2 WHERE id = $1", id, progress); err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

// CompleteJob records the terminal result of a job.
func (r *JobRepository) CompleteJob(ctx context.Context, job *database.StoredJob) error {
	query := `
		UPDATE jobs
		SET status = $2, progress = GREATEST(progress, $3), attempts = $4, cost = $5, feedback = $6,
		    best_effort = $7, output_urls = $8, failed_items = $9, error = $10,
		    completed_at = now()
		WHERE id = $1
	`
	if _, err := r.pool.Exec(ctx, query,
		job.ID, string(job.Status), job.Progress, job.Attempts, job.Cost,
		pq.Array(job.Feedback), job.BestEffort, pq.Array(job.OutputURLs),
		pq.Array(job.FailedItems), job.Error); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

func scanJob(row *sql.Row) (*database.StoredJob, error) {
	var job database.StoredJob
	var status string
	var feedback, outputs, failed pq.StringArray

	err := row.Scan(&job.ID, &job.Kind, &job.Payload, &status, &job.Progress,
		&job.Attempts, &job.Cost, &feedback, &job.BestEffort, &outputs, &failed,
		&job.Error, &job.CreatedAt, &job.ClaimedAt, &job.CompletedAt)
	if err != nil {
		return nil, err
	}

	job.Status = database.JobStatus(status)
	job.Feedback = feedback
	job.OutputURLs = outputs
	job.FailedItems = failed
	return &job, nil
}
