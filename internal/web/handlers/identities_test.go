package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/tomashavel/faceforge/internal/database"
	"github.com/tomashavel/faceforge/internal/database/mock"
)

func newIdentityRouter(store database.Store) *chi.Mux {
	h := NewIdentityHandler(store, store, store)
	r := chi.NewRouter()
	r.Get("/api/identities", h.List)
	r.Get("/api/identities/by-name/{name}", h.GetByName)
	r.Get("/api/identities/{identityId}", h.Get)
	r.Get("/api/identities/{identityId}/coverage", h.Coverage)
	r.Get("/api/identities/{identityId}/detections", h.Detections)
	r.Get("/api/identities/{identityId}/profile", h.Profile)
	return r
}

func TestListIdentities(t *testing.T) {
	store := mock.NewStore()
	for _, name := range []string{"alice", "bob"} {
		if _, err := store.CreateIdentity(context.Background(), &database.StoredIdentity{
			Name:     name,
			Centroid: []float32{1, 0},
		}); err != nil {
			t.Fatalf("CreateIdentity failed: %v", err)
		}
	}
	router := newIdentityRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/api/identities", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Identities []identityResponse `json:"identities"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Identities) != 2 {
		t.Errorf("expected 2 identities, got %d", len(resp.Identities))
	}
}

func TestGetIdentityNotFound(t *testing.T) {
	router := newIdentityRouter(mock.NewStore())

	req := httptest.NewRequest(http.MethodGet, "/api/identities/42", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/identities/notanumber", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid ID, got %d", rec.Code)
	}
}

func TestGetIdentityByName(t *testing.T) {
	store := mock.NewStore()
	if _, err := store.CreateIdentity(context.Background(), &database.StoredIdentity{
		Name:     "Alice Smith",
		Centroid: []float32{1, 0},
	}); err != nil {
		t.Fatalf("CreateIdentity failed: %v", err)
	}
	router := newIdentityRouter(store)

	// Lookup is normalized: case and spacing variants resolve.
	req := httptest.NewRequest(http.MethodGet, "/api/identities/by-name/alice%20smith", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp identityResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Name != "Alice Smith" {
		t.Errorf("unexpected identity: %+v", resp)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/identities/by-name/nobody", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown name, got %d", rec.Code)
	}
}

func TestIdentityProfile(t *testing.T) {
	store := mock.NewStore()
	id, err := store.CreateIdentity(context.Background(), &database.StoredIdentity{
		Name:     "alice",
		Centroid: []float32{1, 0},
	})
	if err != nil {
		t.Fatalf("CreateIdentity failed: %v", err)
	}
	if err := store.SaveProfile(context.Background(), &database.StoredProfile{
		IdentityID:  id,
		Data:        []byte(`{"face":{"face_shape":"oval"}}`),
		SampleCount: 3,
		Confidence:  0.82,
	}); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}
	router := newIdentityRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/api/identities/1/profile", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		IdentityID  int64           `json:"identity_id"`
		SampleCount int             `json:"sample_count"`
		Confidence  float64         `json:"confidence"`
		Profile     json.RawMessage `json:"profile"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.IdentityID != id || resp.SampleCount != 3 {
		t.Errorf("unexpected profile envelope: %+v", resp)
	}
	var doc struct {
		Face struct {
			FaceShape string `json:"face_shape"`
		} `json:"face"`
	}
	if err := json.Unmarshal(resp.Profile, &doc); err != nil {
		t.Fatalf("profile document not passed through: %v", err)
	}
	if doc.Face.FaceShape != "oval" {
		t.Errorf("profile document lost content: %s", resp.Profile)
	}
}

func TestIdentityProfileNotFound(t *testing.T) {
	store := mock.NewStore()
	if _, err := store.CreateIdentity(context.Background(), &database.StoredIdentity{
		Name:     "alice",
		Centroid: []float32{1, 0},
	}); err != nil {
		t.Fatalf("CreateIdentity failed: %v", err)
	}
	router := newIdentityRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/api/identities/1/profile", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without a stored profile, got %d", rec.Code)
	}
}

func TestIdentityCoverage(t *testing.T) {
	store := mock.NewStore()
	id, err := store.CreateIdentity(context.Background(), &database.StoredIdentity{
		Name:     "alice",
		Centroid: []float32{1, 0},
		Coverage: map[database.Angle]database.AngleSample{
			database.AngleFront: {Quality: 0.9, ImageURL: "https://img/f.jpg"},
			database.AngleLeft:  {Quality: 0.8, ImageURL: "https://img/l.jpg"},
			database.AngleRight: {Quality: 0.7, ImageURL: "https://img/r.jpg"},
		},
	})
	if err != nil {
		t.Fatalf("CreateIdentity failed: %v", err)
	}
	router := newIdentityRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/api/identities/1/coverage", nil)
	_ = id
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Present   []string `json:"present"`
		Missing   []string `json:"missing"`
		Priority  string   `json:"priority"`
		MeshReady bool     `json:"mesh_ready"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Present) != 3 || len(resp.Missing) != 2 {
		t.Errorf("unexpected coverage: %+v", resp)
	}
	if !resp.MeshReady {
		t.Error("expected mesh ready with 3 angles")
	}
	if resp.Priority != "medium" {
		t.Errorf("expected medium priority, got %s", resp.Priority)
	}
}

func TestIdentityDetections(t *testing.T) {
	store := mock.NewStore()
	id, err := store.CreateIdentity(context.Background(), &database.StoredIdentity{
		Name:     "alice",
		Centroid: []float32{1, 0},
	})
	if err != nil {
		t.Fatalf("CreateIdentity failed: %v", err)
	}
	if _, err := store.SaveDetections(context.Background(), []database.StoredDetection{
		{ImageURL: "https://img/a.jpg", IdentityID: id, Quality: 0.8, Angle: database.AngleFront},
		{ImageURL: "https://img/b.jpg", IdentityID: id + 1, Quality: 0.5},
	}); err != nil {
		t.Fatalf("SaveDetections failed: %v", err)
	}
	router := newIdentityRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/api/identities/1/detections", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Detections []struct {
			ImageURL string `json:"image_url"`
			Angle    string `json:"angle"`
		} `json:"detections"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Detections) != 1 || resp.Detections[0].ImageURL != "https://img/a.jpg" {
		t.Errorf("unexpected detections: %+v", resp.Detections)
	}
}
