package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tomashavel/faceforge/internal/database"
	"github.com/tomashavel/faceforge/internal/queue"
)

// JobHandler exposes the durable queue over HTTP.
type JobHandler struct {
	store database.JobStore

	// pollInterval drives the SSE refresh loop; lowered in tests.
	pollInterval time.Duration
}

func NewJobHandler(store database.JobStore) *JobHandler {
	return &JobHandler{
		store:        store,
		pollInterval: time.Second,
	}
}

// jobResponse is the external job representation. Internal state beyond the
// terminal status and reason string stays behind the queue boundary.
type jobResponse struct {
	ID          string   `json:"id"`
	Kind        string   `json:"kind"`
	Status      string   `json:"status"`
	Progress    int      `json:"progress"`
	Attempts    int      `json:"attempts,omitempty"`
	Cost        float64  `json:"cost,omitempty"`
	BestEffort  bool     `json:"best_effort,omitempty"`
	Feedback    []string `json:"feedback,omitempty"`
	OutputURLs  []string `json:"output_urls,omitempty"`
	FailedItems []string `json:"failed_items,omitempty"`
	Error       string   `json:"error,omitempty"`
	CreatedAt   string   `json:"created_at"`
}

func toJobResponse(job *database.StoredJob) jobResponse {
	return jobResponse{
		ID:          job.ID,
		Kind:        job.Kind,
		Status:      string(job.Status),
		Progress:    job.Progress,
		Attempts:    job.Attempts,
		Cost:        job.Cost,
		BestEffort:  job.BestEffort,
		Feedback:    job.Feedback,
		OutputURLs:  job.OutputURLs,
		FailedItems: job.FailedItems,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Create validates the payload and enqueues a new job.
// POST /api/jobs
func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload queue.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	data, err := payload.Encode()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	job := &database.StoredJob{
		ID:      uuid.NewString(),
		Kind:    payload.Kind,
		Payload: data,
		Status:  database.JobStatusPending,
	}
	if err := h.store.Enqueue(r.Context(), job); err != nil {
		log.Printf("failed to enqueue job: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to enqueue job")
		return
	}

	log.Printf("enqueued job %s (%s)", job.ID, sanitizeForLog(job.Kind))
	respondJSON(w, http.StatusAccepted, toJobResponse(job))
}

// Get returns the current state of one job.
// GET /api/jobs/{jobId}
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")

	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "job not found")
			return
		}
		log.Printf("failed to load job %s: %v", sanitizeForLog(jobID), err)
		respondError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	respondJSON(w, http.StatusOK, toJobResponse(job))
}

// Cancel removes a pending job from the queue. A claimed job cannot be
// cancelled; the worker finishes it cooperatively.
// DELETE /api/jobs/{jobId}
func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")

	err := h.store.CancelJob(r.Context(), jobID)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
	case errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, database.ErrNotCancellable):
		respondError(w, http.StatusConflict, "job already claimed by a worker")
	default:
		log.Printf("failed to cancel job %s: %v", sanitizeForLog(jobID), err)
		respondError(w, http.StatusInternalServerError, "failed to cancel job")
	}
}

// Events streams job progress as server-sent events until the job reaches a
// terminal state or the client disconnects.
// GET /api/jobs/{jobId}/events
func (h *JobHandler) Events(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")

	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "job not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load job")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sendSSEEvent(w, flusher, "status", toJobResponse(job))
	if job.Status.Terminal() {
		return
	}

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	last := job.Progress
	lastStatus := job.Status
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			job, err = h.store.GetJob(r.Context(), jobID)
			if err != nil {
				return
			}
			if job.Progress != last || job.Status != lastStatus {
				last = job.Progress
				lastStatus = job.Status
				sendSSEEvent(w, flusher, "status", toJobResponse(job))
			}
			if job.Status.Terminal() {
				return
			}
		}
	}
}

// sendSSEEvent writes one SSE frame and flushes it.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload)
	flusher.Flush()
}
