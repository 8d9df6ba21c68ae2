// Package generation drives identity-constrained image generation: prompt
// construction from an aggregated profile, provider calls, validator scoring
// and the bounded retry loop with cost accounting.
package generation

import (
	"context"

	"github.com/tomashavel/faceforge/internal/profile"
)

// ReferenceImage is one identity reference handed to the generator.
type ReferenceImage struct {
	URL    string  `json:"url"`
	Type   string  `json:"type"`   // "face", "body", "style"
	Weight float64 `json:"weight"` // relative influence, (0,1]
	Data   []byte  `json:"-"`      // fetched bytes, populated by the caller
}

// GenerateRequest describes one generation attempt.
type GenerateRequest struct {
	Prompt      string
	References  []ReferenceImage
	AspectRatio string // e.g. "1:1", "3:4"
	Resolution  string // e.g. "1024x1024"
}

// GenerateResult is the raw artifact produced by one attempt.
type GenerateResult struct {
	ImageBytes []byte
	MIMEType   string
}

// ScoreResult is the validator's judgement of one candidate output.
type ScoreResult struct {
	OverallScore      float64  `json:"overall_score"`
	IsValid           bool     `json:"is_valid"`
	RegenerationHints []string `json:"regeneration_hints"`
}

// Generator produces an image from a prompt and reference set. GetUsage
// returns the client's lifetime usage ledger; callers snapshot it around
// their calls to attribute cost.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error)
	GetUsage() *Usage
}

// Analyzer extracts an appearance analysis from a single reference image.
type Analyzer interface {
	Name() string
	AnalyzeImage(ctx context.Context, imageData []byte, imageURL string) (*profile.Analysis, error)
	GetUsage() *Usage
}

// Validator scores a candidate output against the identity profile.
type Validator interface {
	Score(ctx context.Context, candidate []byte, p *profile.AggregatedProfile, threshold float64) (*ScoreResult, error)
	GetUsage() *Usage
}

// BlobStore persists generated artifacts. Narrower than the storage
// package's full client so tests can fake it trivially.
type BlobStore interface {
	Upload(ctx context.Context, path string, data []byte, mimeType string) (string, error)
}

// Usage tracks token/image usage and calculates cost.
type Usage struct {
	InputTokens  int
	OutputTokens int
	Images       int
	TotalCost    float64 // in USD
}

// Add folds another usage snapshot into this one.
func (u *Usage) Add(other *Usage) {
	if other == nil {
		return
	}
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.Images += other.Images
	u.TotalCost += other.TotalCost
}
