// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Identity matching constants
const (
	// DefaultMatchThreshold is the minimum cosine similarity required to
	// assign a detection to an existing identity or in-batch cluster.
	// The threshold is inclusive: a similarity exactly at the threshold matches.
	DefaultMatchThreshold = 0.70

	// MinDetectionQuality is the minimum quality score for a detection
	// to contribute to angle coverage.
	MinDetectionQuality = 0.35

	// MinAnalysisQuality is the minimum per-image quality score for an
	// analysis to be included in profile aggregation.
	MinAnalysisQuality = 0.40
)

// Generation constants
const (
	// DefaultValidationThreshold is the minimum identity fidelity score
	// for a generated output to be accepted without retry.
	DefaultValidationThreshold = 0.75

	// DefaultMaxAttempts caps the generate/validate loop per job.
	DefaultMaxAttempts = 3

	// MaxReferenceImageSize is the maximum dimension (width or height)
	// for reference images sent to generation providers.
	MaxReferenceImageSize = 1024

	// MergeRetries bounds the optimistic identity merge loop under
	// concurrent writers.
	MergeRetries = 5
)

// Worker constants
const (
	// DefaultWorkerCount is the number of parallel queue workers.
	DefaultWorkerCount = 4

	// DefaultAnalyzeConcurrency caps in-flight reference image analyses
	// within a single job to respect provider rate limits.
	DefaultAnalyzeConcurrency = 3
)

// Angle coverage constants
const (
	// MeshMinAngles is the minimum number of covered canonical angles
	// (including front) required for downstream mesh processing.
	MeshMinAngles = 3

	// CoverageHighPriorityMissing marks coverage as high priority when at
	// least this many canonical angles are missing.
	CoverageHighPriorityMissing = 3
)

// HNSW index parameters for identity centroid search
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	HNSWMaxNeighbors = 16

	// HNSWCandidates is the number of nearest identities fetched per
	// detection before threshold filtering.
	HNSWCandidates = 8
)
