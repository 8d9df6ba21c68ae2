// Package mock provides an in-memory database.Store used by worker and
// handler tests. Semantics mirror the PostgreSQL implementation, including
// optimistic identity versioning and pending-only cancellation.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomashavel/faceforge/internal/database"
)

// Store is an in-memory implementation of database.Store.
type Store struct {
	mu         sync.Mutex
	nextDetID  int64
	nextIdenID int64
	detections map[int64]database.StoredDetection
	identities map[int64]*database.StoredIdentity
	profiles   map[int64]database.StoredProfile
	jobs       map[string]*database.StoredJob
	jobOrder   []string
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		detections: make(map[int64]database.StoredDetection),
		identities: make(map[int64]*database.StoredIdentity),
		profiles:   make(map[int64]database.StoredProfile),
		jobs:       make(map[string]*database.StoredJob),
	}
}

func (s *Store) SaveDetections(_ context.Context, detections []database.StoredDetection) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(detections))
	for _, d := range detections {
		s.nextDetID++
		d.ID = s.nextDetID
		d.CreatedAt = time.Now()
		s.detections[d.ID] = d
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (s *Store) GetDetectionsByIdentity(_ context.Context, identityID int64) ([]database.StoredDetection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []database.StoredDetection
	for _, d := range s.detections {
		if d.IdentityID == identityID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CountDetections(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.detections), nil
}

func (s *Store) CreateIdentity(_ context.Context, identity *database.StoredIdentity) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextIdenID++
	stored := *identity
	stored.ID = s.nextIdenID
	stored.Version = 1
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	if stored.Coverage == nil {
		stored.Coverage = map[database.Angle]database.AngleSample{}
	}
	s.identities[stored.ID] = &stored
	return stored.ID, nil
}

func (s *Store) GetIdentity(_ context.Context, id int64) (*database.StoredIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := cloneIdentity(identity)
	return &copied, nil
}

func (s *Store) GetIdentityByName(_ context.Context, name string) (*database.StoredIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	norm := database.NormalizeIdentityName(name)
	var best *database.StoredIdentity
	for _, identity := range s.identities {
		if database.NormalizeIdentityName(identity.Name) == norm {
			if best == nil || identity.ID < best.ID {
				best = identity
			}
		}
	}
	if best == nil {
		return nil, database.ErrNotFound
	}
	copied := cloneIdentity(best)
	return &copied, nil
}

func (s *Store) ListIdentities(_ context.Context) ([]database.StoredIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]database.StoredIdentity, 0, len(s.identities))
	for _, identity := range s.identities {
		out = append(out, cloneIdentity(identity))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UpdateIdentity(_ context.Context, identity *database.StoredIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.identities[identity.ID]
	if !ok {
		return database.ErrNotFound
	}
	if stored.Version != identity.Version {
		return database.ErrVersionConflict
	}
	updated := cloneIdentity(identity)
	updated.Version = stored.Version + 1
	updated.CreatedAt = stored.CreatedAt
	updated.UpdatedAt = time.Now()
	s.identities[identity.ID] = &updated
	identity.Version = updated.Version
	return nil
}

func (s *Store) SaveProfile(_ context.Context, profile *database.StoredProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *profile
	stored.CreatedAt = time.Now()
	s.profiles[profile.IdentityID] = stored
	return nil
}

func (s *Store) GetProfile(_ context.Context, identityID int64) (*database.StoredProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[identityID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &profile, nil
}

func (s *Store) Enqueue(_ context.Context, job *database.StoredJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *job
	stored.Status = database.JobStatusPending
	stored.CreatedAt = time.Now()
	s.jobs[stored.ID] = &stored
	s.jobOrder = append(s.jobOrder, stored.ID)
	job.Status = database.JobStatusPending
	return nil
}

func (s *Store) GetJob(_ context.Context, id string) (*database.StoredJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (s *Store) Claim(_ context.Context) (*database.StoredJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.jobOrder {
		job := s.jobs[id]
		if job.Status != database.JobStatusPending {
			continue
		}
		now := time.Now()
		job.Status = database.JobStatusProcessing
		job.ClaimedAt = &now
		copied := *job
		return &copied, nil
	}
	return nil, database.ErrNoJobs
}

func (s *Store) CancelJob(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return database.ErrNotFound
	}
	if job.Status != database.JobStatusPending {
		return database.ErrNotCancellable
	}
	now := time.Now()
	job.Status = database.JobStatusCancelled
	job.CompletedAt = &now
	return nil
}

func (s *Store) UpdateProgress(_ context.Context, id string, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return database.ErrNotFound
	}
	job.Progress = progress
	return nil
}

func (s *Store) CompleteJob(_ context.Context, job *database.StoredJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.jobs[job.ID]
	if !ok {
		return database.ErrNotFound
	}
	now := time.Now()
	stored.Status = job.Status
	if job.Progress > stored.Progress {
		stored.Progress = job.Progress
	}
	stored.Attempts = job.Attempts
	stored.Cost = job.Cost
	stored.Feedback = append([]string(nil), job.Feedback...)
	stored.BestEffort = job.BestEffort
	stored.OutputURLs = append([]string(nil), job.OutputURLs...)
	stored.FailedItems = append([]string(nil), job.FailedItems...)
	stored.Error = job.Error
	stored.CompletedAt = &now
	return nil
}

func cloneIdentity(identity *database.StoredIdentity) database.StoredIdentity {
	copied := *identity
	copied.Centroid = append([]float32(nil), identity.Centroid...)
	copied.Coverage = make(map[database.Angle]database.AngleSample, len(identity.Coverage))
	for k, v := range identity.Coverage {
		copied.Coverage[k] = v
	}
	return copied
}
