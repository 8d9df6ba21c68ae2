package database

import (
	"time"
)

// Angle is a canonical pose angle for a detected face.
type Angle string

const (
	AngleFront   Angle = "front"
	AngleLeft    Angle = "left"
	AngleRight   Angle = "right"
	AngleUp      Angle = "up"
	AngleDown    Angle = "down"
	AngleUnknown Angle = "unknown"
)

// CanonicalAngles returns the fixed set of pose angles tracked for coverage,
// in a stable order.
func CanonicalAngles() []Angle {
	return []Angle{AngleFront, AngleLeft, AngleRight, AngleUp, AngleDown}
}

// Valid reports whether a is one of the canonical angles.
func (a Angle) Valid() bool {
	switch a {
	case AngleFront, AngleLeft, AngleRight, AngleUp, AngleDown:
		return true
	}
	return false
}

// EulerAngles holds the raw pose estimate for a detection.
type EulerAngles struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

// StoredDetection represents one face found in one source image.
// Immutable once stored; referenced by at most one identity at a time.
type StoredDetection struct {
	ID         int64
	ImageURL   string
	BatchRef   string // upload batch that produced this detection
	FaceIndex  int
	Embedding  []float32 // empty if embedding extraction failed
	BBox       []float64 // [x1, y1, x2, y2] in raw pixel coordinates
	DetScore   float64
	Quality    float64 // [0, 1]
	Angle      Angle
	Euler      *EulerAngles
	CropURL    string // optional cropped-face blob reference
	IdentityID int64  // 0 while unassigned
	Dim        int
	CreatedAt  time.Time
}

// HasEmbedding reports whether the detection carries an embedding vector.
// Detections without embeddings are excluded from clustering.
func (d *StoredDetection) HasEmbedding() bool {
	return len(d.Embedding) > 0
}

// AngleSample records the best detection covering a canonical angle.
type AngleSample struct {
	DetectionID int64   `json:"detection_id"`
	Quality     float64 `json:"quality"`
	ImageURL    string  `json:"image_url"`
}

// StoredIdentity is a persisted person-level entity accumulating detections
// over time. The centroid is the running mean of member embeddings.
// Identities are never merged with each other implicitly.
type StoredIdentity struct {
	ID          int64
	Name        string
	Centroid    []float32
	Coverage    map[Angle]AngleSample
	ImageCount  int
	AngleCount  int
	Confidence  float64
	MeshURL     string // derived asset, produced by downstream processing
	SourceBatch string // upload batch that created this identity
	Version     int64  // optimistic concurrency control for merges
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// JobStatus represents the lifecycle state of a pipeline job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusReady      JobStatus = "ready"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == JobStatusReady || s == JobStatusFailed || s == JobStatusCancelled
}

// StoredJob is a durable queue entry. Payload is the JSON-encoded tagged
// union validated at enqueue time; result fields are written by the worker.
type StoredJob struct {
	ID          string // uuid
	Kind        string
	Payload     []byte
	Status      JobStatus
	Progress    int // 0-100
	Attempts    int // generation calls actually made
	Cost        float64
	Feedback    []string // last validator hints
	BestEffort  bool     // output accepted below threshold on the final attempt
	OutputURLs  []string
	FailedItems []string // failed subset of a multi-item job
	Error       string
	CreatedAt   time.Time
	ClaimedAt   *time.Time
	CompletedAt *time.Time
}

// StoredProfile persists the aggregated identity profile as an opaque JSON
// document. Profiles are pure functions of their inputs and are replaced
// wholesale, never partially updated.
type StoredProfile struct {
	IdentityID  int64
	Data        []byte
	SampleCount int
	Confidence  float64
	CreatedAt   time.Time
}
