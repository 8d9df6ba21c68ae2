package database

import (
	"testing"
	"time"
)

func testIdentity(id int64, name string, centroid []float32) StoredIdentity {
	return StoredIdentity{
		ID:        id,
		Name:      name,
		Centroid:  centroid,
		CreatedAt: time.Now(),
	}
}

func TestIdentityIndexBuildAndSearch(t *testing.T) {
	idx := NewIdentityIndex()
	identities := []StoredIdentity{
		testIdentity(1, "ada", []float32{1, 0, 0}),
		testIdentity(2, "ben", []float32{0, 1, 0}),
		testIdentity(3, "eva", []float32{0, 0, 1}),
	}

	if err := idx.Build(identities); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if idx.Len() != 3 {
		t.Fatalf("expected 3 indexed identities, got %d", idx.Len())
	}

	ids, sims, err := idx.Search([]float32{0.9, 0.1, 0}, 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("expected nearest identity 1, got %v", ids)
	}
	if sims[0] <= 0.9 {
		t.Errorf("expected high similarity for near-parallel vectors, got %f", sims[0])
	}
	if idx.Name(1) != "ada" {
		t.Errorf("expected name 'ada', got %q", idx.Name(1))
	}
}

func TestIdentityIndexSkipsEmptyCentroids(t *testing.T) {
	idx := NewIdentityIndex()
	identities := []StoredIdentity{
		testIdentity(1, "ada", []float32{1, 0}),
		testIdentity(2, "ghost", nil),
	}

	if err := idx.Build(identities); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if idx.Len() != 1 {
		t.Errorf("expected 1 indexed identity, got %d", idx.Len())
	}
}

func TestIdentityIndexSearchUninitialized(t *testing.T) {
	idx := NewIdentityIndex()
	if _, _, err := idx.Search([]float32{1, 0}, 1); err == nil {
		t.Error("expected error searching an empty index")
	}
}

func TestIdentityIndexAdd(t *testing.T) {
	idx := NewIdentityIndex()
	id := testIdentity(7, "nora", []float32{0.5, 0.5})
	if err := idx.Add(&id); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	ids, _, err := idx.Search([]float32{0.5, 0.5}, 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != 7 {
		t.Fatalf("expected identity 7, got %v", ids)
	}
}
