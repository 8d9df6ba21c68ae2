// Package embedding provides the HTTP client for the face embedding service.
// The service detects faces in source images and returns per-face bounding
// boxes, quality scores, pose estimates and fixed-length embedding vectors.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "http://localhost:8000"
	defaultTimeout = 2 * time.Minute
)

// Client talks to the embedding server.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new embedding client.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

// Detection represents a single detected face in one image.
type Detection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"` // empty if extraction failed
	BBox      []float64 `json:"bbox"`      // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
	Quality   float64   `json:"quality"`
	Yaw       float64   `json:"yaw"`
	Pitch     float64   `json:"pitch"`
	Roll      float64   `json:"roll"`
	Angle     string    `json:"angle,omitempty"` // canonical angle if the service classified it
}

// ImageResult groups the detections found in one source image.
// Error is set for per-image failures; the batch itself still succeeds.
type ImageResult struct {
	ImageURL string      `json:"image_url"`
	Faces    []Detection `json:"faces"`
	Error    string      `json:"error,omitempty"`
}

// DetectResponse is the response for a batch detection request.
type DetectResponse struct {
	FacesCount int           `json:"faces_count"`
	ByImage    []ImageResult `json:"by_image"`
	Model      string        `json:"model"`
}

type detectRequest struct {
	Images []string `json:"images"`
}

// Detect runs face detection on a batch of image URLs. Images with no faces
// produce an empty Faces slice, never an error; only transport or service
// failures are returned as errors.
func (c *Client) Detect(ctx context.Context, imageURLs []string) (*DetectResponse, error) {
	if len(imageURLs) == 0 {
		return &DetectResponse{}, nil
	}

	reqBody, err := json.Marshal(detectRequest{Images: imageURLs})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect/faces", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var detectResp DetectResponse
	if err := json.Unmarshal(body, &detectResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &detectResp, nil
}
