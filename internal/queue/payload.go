// Package queue defines the durable job contract and the worker pool that
// consumes it. Jobs arrive as a JSON tagged union validated at enqueue time;
// a worker processes each job end-to-end with no internal parallelism beyond
// a capped analysis fan-out.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tomashavel/faceforge/internal/constants"
)

// Job kinds.
const (
	KindIdentityCluster     = "identity_cluster"
	KindConstrainedGenerate = "constrained_generate"
)

// ErrInvalidPayload rejects malformed payloads before they are enqueued.
var ErrInvalidPayload = errors.New("invalid job payload")

// ClusterPayload describes an identity-clustering job: detect faces in the
// source images and fold them into new or existing identities.
type ClusterPayload struct {
	SourceRefs     []string `json:"source_refs"`
	BatchRef       string   `json:"batch_ref"`
	MatchThreshold float64  `json:"match_threshold,omitempty"` // 0 means configured default
}

// GeneratePayload describes a constrained-generation job for one identity.
type GeneratePayload struct {
	IdentityID          int64       `json:"identity_id"`
	PromptTemplate      string      `json:"prompt_template"`
	References          []Reference `json:"references,omitempty"` // defaults to the identity's best references
	AspectRatio         string      `json:"aspect_ratio,omitempty"`
	Resolution          string      `json:"resolution,omitempty"`
	Variants            int         `json:"variants,omitempty"` // 0 means 1
	ValidationThreshold float64     `json:"validation_threshold,omitempty"`
	MaxAttempts         int         `json:"max_attempts,omitempty"`
}

// Reference is one weighted reference image in a generate payload.
type Reference struct {
	URL    string  `json:"url"`
	Type   string  `json:"type"`
	Weight float64 `json:"weight"`
}

// Payload is the tagged union carried by every queued job.
type Payload struct {
	Kind     string           `json:"kind"`
	Cluster  *ClusterPayload  `json:"cluster,omitempty"`
	Generate *GeneratePayload `json:"generate,omitempty"`
}

// Validate checks the payload before enqueueing. Input errors are terminal:
// a payload rejected here is never retried.
func (p *Payload) Validate() error {
	switch p.Kind {
	case KindIdentityCluster:
		if p.Cluster == nil {
			return fmt.Errorf("%w: missing cluster body", ErrInvalidPayload)
		}
		if len(p.Cluster.SourceRefs) == 0 {
			return fmt.Errorf("%w: empty image set", ErrInvalidPayload)
		}
		if p.Cluster.BatchRef == "" {
			return fmt.Errorf("%w: missing batch reference", ErrInvalidPayload)
		}
		if t := p.Cluster.MatchThreshold; t < 0 || t > 1 {
			return fmt.Errorf("%w: match threshold %v out of range", ErrInvalidPayload, t)
		}
	case KindConstrainedGenerate:
		if p.Generate == nil {
			return fmt.Errorf("%w: missing generate body", ErrInvalidPayload)
		}
		if p.Generate.IdentityID <= 0 {
			return fmt.Errorf("%w: missing identity", ErrInvalidPayload)
		}
		if p.Generate.PromptTemplate == "" {
			return fmt.Errorf("%w: missing prompt template", ErrInvalidPayload)
		}
		if t := p.Generate.ValidationThreshold; t < 0 || t > 1 {
			return fmt.Errorf("%w: validation threshold %v out of range", ErrInvalidPayload, t)
		}
		if p.Generate.MaxAttempts < 0 || p.Generate.MaxAttempts > 10 {
			return fmt.Errorf("%w: max attempts %d out of range", ErrInvalidPayload, p.Generate.MaxAttempts)
		}
		if p.Generate.Variants < 0 || p.Generate.Variants > 16 {
			return fmt.Errorf("%w: variants %d out of range", ErrInvalidPayload, p.Generate.Variants)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidPayload, p.Kind)
	}
	return nil
}

// Encode serializes the payload for storage.
func (p *Payload) Encode() ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(p)
}

// DecodePayload parses and validates a stored payload.
func DecodePayload(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// EffectiveMatchThreshold resolves the per-job threshold override.
func (p *ClusterPayload) EffectiveMatchThreshold(configured float64) float64 {
	if p.MatchThreshold > 0 {
		return p.MatchThreshold
	}
	if configured > 0 {
		return configured
	}
	return constants.DefaultMatchThreshold
}

// EffectiveOptions resolves defaults for a generate payload.
func (p *GeneratePayload) EffectiveOptions(configuredThreshold float64, configuredAttempts int) (threshold float64, attempts, variants int) {
	threshold = p.ValidationThreshold
	if threshold == 0 {
		threshold = configuredThreshold
	}
	if threshold == 0 {
		threshold = constants.DefaultValidationThreshold
	}

	attempts = p.MaxAttempts
	if attempts == 0 {
		attempts = configuredAttempts
	}
	if attempts == 0 {
		attempts = constants.DefaultMaxAttempts
	}

	variants = p.Variants
	if variants == 0 {
		variants = 1
	}
	return threshold, attempts, variants
}
