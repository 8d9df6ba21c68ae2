package database

import (
	"math"
	"testing"
)

func TestCosineSimilarityIdentical(t *testing.T) {
	a := []float32{1, 2, 3}
	if sim := CosineSimilarity(a, a); math.Abs(sim-1.0) > 1e-9 {
		t.Errorf("expected similarity 1.0 for identical vectors, got %f", sim)
	}
}

func TestCosineSimilarityOrthogonal(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	if sim := CosineSimilarity(a, b); math.Abs(sim) > 1e-9 {
		t.Errorf("expected similarity 0 for orthogonal vectors, got %f", sim)
	}
}

func TestCosineSimilarityOpposite(t *testing.T) {
	a := []float32{1, 1}
	b := []float32{-1, -1}
	if sim := CosineSimilarity(a, b); math.Abs(sim+1.0) > 1e-9 {
		t.Errorf("expected similarity -1 for opposite vectors, got %f", sim)
	}
}

func TestCosineSimilarityInvalidInput(t *testing.T) {
	if sim := CosineSimilarity([]float32{1, 2}, []float32{1}); sim != 0 {
		t.Errorf("expected 0 for mismatched dimensions, got %f", sim)
	}
	if sim := CosineSimilarity(nil, nil); sim != 0 {
		t.Errorf("expected 0 for empty vectors, got %f", sim)
	}
	if sim := CosineSimilarity([]float32{0, 0}, []float32{1, 1}); sim != 0 {
		t.Errorf("expected 0 for zero vector, got %f", sim)
	}
}

func TestCosineDistance(t *testing.T) {
	a := []float32{1, 0}
	if d := CosineDistance(a, a); math.Abs(d) > 1e-9 {
		t.Errorf("expected distance 0 for identical vectors, got %f", d)
	}
	if d := CosineDistance(nil, nil); d != 2.0 {
		t.Errorf("expected max distance 2.0 for invalid input, got %f", d)
	}
}

func TestMeanVector(t *testing.T) {
	mean := MeanVector([][]float32{{0, 2}, {2, 0}})
	if mean[0] != 1 || mean[1] != 1 {
		t.Errorf("expected mean [1 1], got %v", mean)
	}

	if MeanVector(nil) != nil {
		t.Error("expected nil for empty input")
	}
	if MeanVector([][]float32{{1, 2}, {1}}) != nil {
		t.Error("expected nil for mismatched dimensions")
	}
}

func TestMergeCentroid(t *testing.T) {
	// Old centroid [1, 1] from 2 members, add [4, 4].
	merged := MergeCentroid([]float32{1, 1}, 2, [][]float32{{4, 4}})
	if math.Abs(float64(merged[0])-2.0) > 1e-6 {
		t.Errorf("expected merged centroid [2 2], got %v", merged)
	}

	// No prior members falls back to the mean of added vectors.
	merged = MergeCentroid(nil, 0, [][]float32{{2, 4}, {4, 2}})
	if merged[0] != 3 || merged[1] != 3 {
		t.Errorf("expected mean [3 3], got %v", merged)
	}

	// Nothing added leaves the centroid untouched.
	old := []float32{1, 2}
	if got := MergeCentroid(old, 3, nil); &got[0] != &old[0] {
		t.Error("expected unchanged centroid when nothing is added")
	}
}

func TestMergeCentroidOrderIndependence(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	c := []float32{1, 1}

	// Fold in one batch of three vs two batches.
	all := MergeCentroid(nil, 0, [][]float32{a, b, c})
	first := MergeCentroid(nil, 0, [][]float32{a})
	incremental := MergeCentroid(first, 1, [][]float32{b, c})

	for i := range all {
		if math.Abs(float64(all[i]-incremental[i])) > 1e-6 {
			t.Fatalf("batched and incremental merges differ: %v vs %v", all, incremental)
		}
	}
}
