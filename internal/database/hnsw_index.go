package database

import (
	"errors"
	"sync"

	"github.com/coder/hnsw"

	"github.com/tomashavel/faceforge/internal/constants"
)

// IdentityIndex wraps an HNSW graph over identity centroids for fast
// nearest-identity lookup during clustering. The index is advisory: the
// clusterer re-checks exact cosine similarity on the candidates it returns.
type IdentityIndex struct {
	graph *hnsw.Graph[int64]
	names map[int64]string
	mu    sync.RWMutex
}

// NewIdentityIndex creates a new empty identity index.
func NewIdentityIndex() *IdentityIndex {
	return &IdentityIndex{names: make(map[int64]string)}
}

func newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = constants.HNSWMaxNeighbors
	g.Ml = 1.0 / float64(constants.HNSWMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance
	return g
}

// Build replaces the index contents with the given identities.
// Identities without centroids are skipped.
func (idx *IdentityIndex) Build(identities []StoredIdentity) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if len(identities) == 0 {
		idx.graph = nil
		idx.names = make(map[int64]string)
		return nil
	}

	g := newGraph()
	names := make(map[int64]string, len(identities))
	for i := range identities {
		id := &identities[i]
		if len(id.Centroid) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(id.ID, id.Centroid))
		names[id.ID] = id.Name
	}

	idx.graph = g
	idx.names = names
	return nil
}

// Add inserts or updates a single identity centroid.
func (idx *IdentityIndex) Add(identity *StoredIdentity) error {
	if len(identity.Centroid) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.graph == nil {
		idx.graph = newGraph()
	}
	idx.graph.Add(hnsw.MakeNode(identity.ID, identity.Centroid))
	idx.names[identity.ID] = identity.Name
	return nil
}

// Search finds the k nearest identity centroids to the query embedding.
// Returns identity IDs and cosine similarities, nearest first.
func (idx *IdentityIndex) Search(query []float32, k int) ([]int64, []float64, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.graph == nil {
		return nil, nil, errors.New("index not initialized")
	}

	neighbors := idx.graph.Search(query, k)
	ids := make([]int64, len(neighbors))
	similarities := make([]float64, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.Key
		// Compute the exact similarity from the node's stored vector so the
		// caller can apply an inclusive threshold without approximation.
		similarities[i] = CosineSimilarity(query, n.Value)
	}
	return ids, similarities, nil
}

// Name returns the stored name for an identity ID.
func (idx *IdentityIndex) Name(id int64) string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.names[id]
}

// Len returns the number of indexed identities.
func (idx *IdentityIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.names)
}
