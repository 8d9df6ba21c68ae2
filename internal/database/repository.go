package database

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrVersionConflict is returned by identity merges when the stored version
// changed between read and write. Callers retry the merge.
var ErrVersionConflict = errors.New("identity version conflict")

// ErrNoJobs is returned by Claim when no pending job is available.
var ErrNoJobs = errors.New("no pending jobs")

// ErrNotCancellable is returned when cancelling a job that has already been
// claimed or finished.
var ErrNotCancellable = errors.New("job is not pending")

// DetectionStore provides access to stored face detections.
type DetectionStore interface {
	// SaveDetections stores a batch of detections and returns their IDs.
	SaveDetections(ctx context.Context, detections []StoredDetection) ([]int64, error)
	// GetDetectionsByIdentity retrieves all detections assigned to an identity.
	GetDetectionsByIdentity(ctx context.Context, identityID int64) ([]StoredDetection, error)
	// CountDetections returns the total number of detections stored.
	CountDetections(ctx context.Context) (int, error)
}

// IdentityStore provides access to stored identities.
type IdentityStore interface {
	// CreateIdentity stores a new identity and returns its ID.
	CreateIdentity(ctx context.Context, identity *StoredIdentity) (int64, error)
	// GetIdentity retrieves an identity by ID. Returns ErrNotFound if missing.
	GetIdentity(ctx context.Context, id int64) (*StoredIdentity, error)
	// GetIdentityByName retrieves an identity by normalized name.
	GetIdentityByName(ctx context.Context, name string) (*StoredIdentity, error)
	// ListIdentities returns all identities ordered by creation time.
	ListIdentities(ctx context.Context) ([]StoredIdentity, error)
	// UpdateIdentity writes centroid, coverage and counters, guarded by the
	// version recorded on the passed identity. Returns ErrVersionConflict if
	// a concurrent writer got there first.
	UpdateIdentity(ctx context.Context, identity *StoredIdentity) error
}

// ProfileStore persists aggregated identity profiles. A profile is replaced
// wholesale whenever the analyzed image set changes.
type ProfileStore interface {
	SaveProfile(ctx context.Context, profile *StoredProfile) error
	GetProfile(ctx context.Context, identityID int64) (*StoredProfile, error)
}

// JobStore is the durable work queue.
type JobStore interface {
	// Enqueue stores a validated pending job.
	Enqueue(ctx context.Context, job *StoredJob) error
	// GetJob retrieves a job by ID. Returns ErrNotFound if missing.
	GetJob(ctx context.Context, id string) (*StoredJob, error)
	// Claim atomically claims the oldest pending job and marks it
	// processing. Returns ErrNoJobs when the queue is empty.
	Claim(ctx context.Context) (*StoredJob, error)
	// CancelJob cancels a job that has not been claimed yet.
	// Returns ErrNotCancellable if a worker already owns it.
	CancelJob(ctx context.Context, id string) error
	// UpdateProgress updates the externally observable progress indicator.
	UpdateProgress(ctx context.Context, id string, progress int) error
	// CompleteJob records the terminal result of a job.
	CompleteJob(ctx context.Context, job *StoredJob) error
}

// Store bundles all repositories a worker needs.
type Store interface {
	DetectionStore
	IdentityStore
	ProfileStore
	JobStore
}
