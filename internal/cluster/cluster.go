// Package cluster groups a batch of face detections into identity clusters.
// Each detection is matched either to an existing stored identity or to a
// cluster formed earlier in the same batch; detections that match nothing
// start a new cluster. The pass is single-sweep and greedy rather than
// globally optimal: near-boundary detections left behind in one batch get
// absorbed in later batches as identity centroids shift.
package cluster

import (
	"sort"

	"github.com/tomashavel/faceforge/internal/database"
)

// Match describes the existing identity a cluster resolved to.
type Match struct {
	IdentityID int64
	Name       string
	Similarity float64
}

// Cluster is a batch-scoped grouping of detections. Matched is nil for
// clusters that did not resolve to any stored identity.
type Cluster struct {
	Members []database.StoredDetection
	Matched *Match

	sum []float64
}

// Centroid returns the mean embedding of the cluster members.
func (c *Cluster) Centroid() []float32 {
	if len(c.Members) == 0 || len(c.sum) == 0 {
		return nil
	}
	centroid := make([]float32, len(c.sum))
	n := float64(len(c.Members))
	for i, v := range c.sum {
		centroid[i] = float32(v / n)
	}
	return centroid
}

func (c *Cluster) add(det database.StoredDetection) {
	if c.sum == nil {
		c.sum = make([]float64, len(det.Embedding))
	}
	for i, v := range det.Embedding {
		if i < len(c.sum) {
			c.sum[i] += float64(v)
		}
	}
	c.Members = append(c.Members, det)
}

// Result is the outcome of one clustering pass. Unclustered holds the
// detections that carried no embedding; clustered plus unclustered always
// accounts for the whole input batch.
type Result struct {
	Clusters    []*Cluster
	Unclustered []database.StoredDetection
}

// ClusteredCount returns the number of detections assigned to clusters.
func (r *Result) ClusteredCount() int {
	n := 0
	for _, c := range r.Clusters {
		n += len(c.Members)
	}
	return n
}

// identityRef orders candidate identities oldest-first so that ties between
// equally similar identities resolve deterministically.
type identityRef struct {
	identity *database.StoredIdentity
}

// Assign runs one greedy clustering pass over the batch. Each detection with
// an embedding is compared against every known identity centroid and every
// cluster already formed in this batch; it joins the best match at or above
// the threshold, preferring stored identities over in-batch clusters, then
// higher similarity, then the earliest-created candidate. Detections without
// embeddings are reported unclustered and never compared.
func Assign(batch []database.StoredDetection, identities []*database.StoredIdentity, threshold float64) *Result {
	result := &Result{}

	refs := make([]identityRef, 0, len(identities))
	for _, id := range identities {
		if len(id.Centroid) > 0 {
			refs = append(refs, identityRef{identity: id})
		}
	}
	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].identity.CreatedAt.Before(refs[j].identity.CreatedAt)
	})

	// One cluster per matched identity; later detections in the batch join
	// the same cluster instead of opening a second one.
	byIdentity := make(map[int64]*Cluster)

	for _, det := range batch {
		if !det.HasEmbedding() {
			result.Unclustered = append(result.Unclustered, det)
			continue
		}

		bestIdentity := -1
		bestIdentitySim := -1.0
		for i, ref := range refs {
			sim := database.CosineSimilarity(det.Embedding, ref.identity.Centroid)
			if sim > bestIdentitySim {
				bestIdentitySim = sim
				bestIdentity = i
			}
		}

		bestCluster := -1
		bestClusterSim := -1.0
		for i, c := range result.Clusters {
			sim := database.CosineSimilarity(det.Embedding, c.Centroid())
			if sim > bestClusterSim {
				bestClusterSim = sim
				bestCluster = i
			}
		}

		switch {
		case bestIdentity >= 0 && bestIdentitySim >= threshold && bestIdentitySim >= bestClusterSim:
			// Stored identity wins ties against in-batch clusters.
			id := refs[bestIdentity].identity
			c, ok := byIdentity[id.ID]
			if !ok {
				c = &Cluster{Matched: &Match{
					IdentityID: id.ID,
					Name:       id.Name,
					Similarity: bestIdentitySim,
				}}
				byIdentity[id.ID] = c
				result.Clusters = append(result.Clusters, c)
			} else if bestIdentitySim > c.Matched.Similarity {
				c.Matched.Similarity = bestIdentitySim
			}
			c.add(det)

		case bestCluster >= 0 && bestClusterSim >= threshold:
			result.Clusters[bestCluster].add(det)

		default:
			c := &Cluster{}
			c.add(det)
			result.Clusters = append(result.Clusters, c)
		}
	}

	return result
}
