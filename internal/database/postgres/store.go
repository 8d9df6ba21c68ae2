package postgres

// Store bundles all PostgreSQL repositories behind the database.Store
// interface consumed by workers and handlers.
type Store struct {
	*DetectionRepository
	*IdentityRepository
	*ProfileRepository
	*JobRepository
}

// NewStore creates the repository bundle for a connection pool.
func NewStore(pool *Pool) *Store {
	return &Store{
		DetectionRepository: NewDetectionRepository(pool),
		IdentityRepository:  NewIdentityRepository(pool),
		ProfileRepository:   NewProfileRepository(pool),
		JobRepository:       NewJobRepository(pool),
	}
}
