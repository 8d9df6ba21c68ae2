package database

import "math"

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical direction.
// Mismatched or zero vectors yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}
	return similarity
}

// CosineDistance computes the cosine distance between two vectors.
// Returns a value between 0 (identical) and 2 (opposite).
// Invalid input yields the maximum distance.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0
	}
	var normA, normB float64
	for i := range a {
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 2.0
	}
	return 1 - CosineSimilarity(a, b)
}

// MeanVector computes the element-wise mean of the given vectors.
// Returns nil for an empty input or mismatched dimensions.
func MeanVector(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	sum := make([]float64, dim)
	for _, v := range vectors {
		if len(v) != dim {
			return nil
		}
		for i := range v {
			sum[i] += float64(v[i])
		}
	}
	mean := make([]float32, dim)
	for i := range sum {
		mean[i] = float32(sum[i] / float64(len(vectors)))
	}
	return mean
}

// MergeCentroid folds new member embeddings into an existing centroid,
// weighting the old centroid by its member count. Used by identity merges
// so that each detection contributes equally regardless of batch order.
func MergeCentroid(old []float32, oldCount int, added [][]float32) []float32 {
	if len(added) == 0 {
		return old
	}
	if len(old) == 0 || oldCount <= 0 {
		return MeanVector(added)
	}
	dim := len(old)
	sum := make([]float64, dim)
	for i := range old {
		sum[i] = float64(old[i]) * float64(oldCount)
	}
	n := oldCount
	for _, v := range added {
		if len(v) != dim {
			continue
		}
		for i := range v {
			sum[i] += float64(v[i])
		}
		n++
	}
	merged := make([]float32, dim)
	for i := range sum {
		merged[i] = float32(sum[i] / float64(n))
	}
	return merged
}
