package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomashavel/faceforge/internal/constants"
	"github.com/tomashavel/faceforge/internal/coverage"
	"github.com/tomashavel/faceforge/internal/database"
)

// IdentityHandler serves identity records, their angle coverage and the
// aggregated appearance profile.
type IdentityHandler struct {
	identities database.IdentityStore
	detections database.DetectionStore
	profiles   database.ProfileStore
}

func NewIdentityHandler(identities database.IdentityStore, detections database.DetectionStore, profiles database.ProfileStore) *IdentityHandler {
	return &IdentityHandler{
		identities: identities,
		detections: detections,
		profiles:   profiles,
	}
}

type identityResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	ImageCount  int     `json:"image_count"`
	AngleCount  int     `json:"angle_count"`
	Confidence  float64 `json:"confidence,omitempty"`
	MeshURL     string  `json:"mesh_url,omitempty"`
	SourceBatch string  `json:"source_batch,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

func toIdentityResponse(identity *database.StoredIdentity) identityResponse {
	return identityResponse{
		ID:          identity.ID,
		Name:        identity.Name,
		ImageCount:  identity.ImageCount,
		AngleCount:  identity.AngleCount,
		Confidence:  identity.Confidence,
		MeshURL:     identity.MeshURL,
		SourceBatch: identity.SourceBatch,
		CreatedAt:   identity.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   identity.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// List returns all identities, oldest first.
// GET /api/identities
func (h *IdentityHandler) List(w http.ResponseWriter, r *http.Request) {
	identities, err := h.identities.ListIdentities(r.Context())
	if err != nil {
		log.Printf("failed to list identities: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list identities")
		return
	}

	out := make([]identityResponse, 0, len(identities))
	for i := range identities {
		out = append(out, toIdentityResponse(&identities[i]))
	}
	respondJSON(w, http.StatusOK, map[string]any{"identities": out})
}

// Get returns one identity.
// GET /api/identities/{identityId}
func (h *IdentityHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.loadIdentity(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, toIdentityResponse(identity))
}

// GetByName returns one identity looked up by its normalized name.
// GET /api/identities/by-name/{name}
func (h *IdentityHandler) GetByName(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	identity, err := h.identities.GetIdentityByName(r.Context(), name)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "identity not found")
			return
		}
		log.Printf("failed to load identity %q: %v", sanitizeForLog(name), err)
		respondError(w, http.StatusInternalServerError, "failed to load identity")
		return
	}
	respondJSON(w, http.StatusOK, toIdentityResponse(identity))
}

// Profile returns the stored aggregated profile for an identity.
// GET /api/identities/{identityId}/profile
func (h *IdentityHandler) Profile(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.loadIdentity(w, r)
	if !ok {
		return
	}

	stored, err := h.profiles.GetProfile(r.Context(), identity.ID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "no profile for identity")
			return
		}
		log.Printf("failed to load profile for identity %d: %v", identity.ID, err)
		respondError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"identity_id":  stored.IdentityID,
		"sample_count": stored.SampleCount,
		"confidence":   stored.Confidence,
		"created_at":   stored.CreatedAt.UTC().Format(time.RFC3339),
		"profile":      json.RawMessage(stored.Data),
	})
}

// Coverage reports the identity's angle coverage and mesh readiness.
// GET /api/identities/{identityId}/coverage
func (h *IdentityHandler) Coverage(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.loadIdentity(w, r)
	if !ok {
		return
	}

	report := coverage.Assess(identity.Coverage, constants.MinDetectionQuality)
	respondJSON(w, http.StatusOK, report)
}

// Detections lists the detections assigned to an identity.
// GET /api/identities/{identityId}/detections
func (h *IdentityHandler) Detections(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.loadIdentity(w, r)
	if !ok {
		return
	}

	detections, err := h.detections.GetDetectionsByIdentity(r.Context(), identity.ID)
	if err != nil {
		log.Printf("failed to list detections for identity %d: %v", identity.ID, err)
		respondError(w, http.StatusInternalServerError, "failed to list detections")
		return
	}

	type detectionResponse struct {
		ID       int64   `json:"id"`
		ImageURL string  `json:"image_url"`
		Quality  float64 `json:"quality"`
		Angle    string  `json:"angle"`
		CropURL  string  `json:"crop_url,omitempty"`
	}
	out := make([]detectionResponse, 0, len(detections))
	for _, d := range detections {
		out = append(out, detectionResponse{
			ID:       d.ID,
			ImageURL: d.ImageURL,
			Quality:  d.Quality,
			Angle:    string(d.Angle),
			CropURL:  d.CropURL,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"detections": out})
}

func (h *IdentityHandler) loadIdentity(w http.ResponseWriter, r *http.Request) (*database.StoredIdentity, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "identityId"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid identity ID")
		return nil, false
	}

	identity, err := h.identities.GetIdentity(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "identity not found")
			return nil, false
		}
		log.Printf("failed to load identity %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to load identity")
		return nil, false
	}
	return identity, true
}
