package generation

import (
	"context"
	"fmt"
	"log"

	"github.com/tomashavel/faceforge/internal/profile"
)

// RunRequest is one constrained-generation task for the orchestrator.
type RunRequest struct {
	PromptTemplate      string
	Profile             *profile.AggregatedProfile // nil skips validation
	References          []ReferenceImage
	AspectRatio         string
	Resolution          string
	ValidationThreshold float64
	MaxAttempts         int
	OutputPath          string // blob path, without extension
}

// RunResult is the terminal record of one completed task.
type RunResult struct {
	OutputURL  string
	Score      float64
	Attempts   int // generation calls actually made
	Cost       float64
	BestEffort bool
	Hints      []string // last validator feedback, empty on clean accept
}

// Orchestrator owns the generate/validate/retry loop for a single job.
// Attempts are strictly sequential: hint accumulation stays deterministic
// and cost cannot be double-counted.
type Orchestrator struct {
	generator Generator
	validator Validator
	blobs     BlobStore
}

func NewOrchestrator(generator Generator, validator Validator, blobs BlobStore) *Orchestrator {
	return &Orchestrator{
		generator: generator,
		validator: validator,
		blobs:     blobs,
	}
}

// Run executes the bounded generate/validate loop. It returns an error only
// for permanent failures (the owning job transitions to failed); transient
// provider errors consume attempts and retry without hints, validation
// rejections retry with hints, and the final attempt is always persisted
// even below threshold.
func (o *Orchestrator) Run(ctx context.Context, req *RunRequest) (*RunResult, error) {
	if req.MaxAttempts < 1 {
		return nil, fmt.Errorf("max attempts must be positive, got %d", req.MaxAttempts)
	}

	costStart := o.usageSnapshot()
	prompt := BuildPrompt(req.PromptTemplate, req.Profile)

	var result *RunResult
	var candidate *GenerateResult
	var lastScore float64
	var lastHints []string
	calls := 0

	for attempt := 1; attempt <= req.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("generation cancelled: %w", err)
		}

		generated, err := o.generator.Generate(ctx, &GenerateRequest{
			Prompt:      prompt,
			References:  req.References,
			AspectRatio: req.AspectRatio,
			Resolution:  req.Resolution,
		})
		calls++
		if err != nil {
			if IsTransient(err) {
				if attempt < req.MaxAttempts {
					// Transient failures consume attempts like validation
					// retries do, but carry no hints into the next prompt.
					log.Printf("generation attempt %d/%d failed transiently: %v", attempt, req.MaxAttempts, err)
					continue
				}
				if candidate != nil {
					// The final regeneration was lost to a flaky provider;
					// keep the previous candidate instead of losing the run.
					log.Printf("final attempt failed transiently, keeping prior candidate: %v", err)
					result = &RunResult{Score: lastScore, BestEffort: true, Hints: lastHints}
					break
				}
			}
			return nil, fmt.Errorf("generation failed on attempt %d: %w", attempt, err)
		}
		candidate = generated

		var score *ScoreResult
		if req.Profile != nil {
			score, err = o.validator.Score(ctx, generated.ImageBytes, req.Profile, req.ValidationThreshold)
			if err != nil {
				if IsTransient(err) {
					if attempt < req.MaxAttempts {
						log.Printf("validation attempt %d/%d failed transiently: %v", attempt, req.MaxAttempts, err)
						continue
					}
					log.Printf("final validation failed transiently, keeping unscored candidate: %v", err)
					result = &RunResult{Score: lastScore, BestEffort: true, Hints: lastHints}
					break
				}
				return nil, fmt.Errorf("validation failed on attempt %d: %w", attempt, err)
			}
		}

		decision := Decide(score, attempt, req.MaxAttempts, req.ValidationThreshold)
		if decision.Kind == DecisionRetry {
			lastScore, lastHints = decision.Score, decision.Hints
			prompt = AppendHints(prompt, decision.Hints)
			continue
		}

		result = &RunResult{
			Score:      decision.Score,
			BestEffort: decision.Kind == DecisionBestEffort,
			Hints:      decision.Hints,
		}
		break
	}

	if result == nil || candidate == nil {
		return nil, fmt.Errorf("no candidate produced after %d attempts", calls)
	}

	url, err := o.blobs.Upload(ctx, req.OutputPath+extensionFor(candidate.MIMEType), candidate.ImageBytes, candidate.MIMEType)
	if err != nil {
		return nil, fmt.Errorf("failed to store output: %w", err)
	}
	result.OutputURL = url
	result.Attempts = calls
	result.Cost = o.usageSnapshot() - costStart
	return result, nil
}

// VariantFailure records one failed cell of a multi-variant job.
type VariantFailure struct {
	Index  int
	Reason string
}

// BatchResult aggregates a multi-variant run.
type BatchResult struct {
	Results  []*RunResult
	Failures []VariantFailure
	Cost     float64
}

// RunBatch generates variants sequentially, tolerating per-variant failure:
// one bad cell never aborts the rest of the batch. It errors only when every
// variant failed.
func (o *Orchestrator) RunBatch(ctx context.Context, req *RunRequest, variants int) (*BatchResult, error) {
	if variants < 1 {
		variants = 1
	}

	batch := &BatchResult{}
	for i := 0; i < variants; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("batch cancelled: %w", err)
		}

		variantReq := *req
		variantReq.OutputPath = fmt.Sprintf("%s-%d", req.OutputPath, i)

		before := o.usageSnapshot()
		result, err := o.Run(ctx, &variantReq)
		if err != nil {
			log.Printf("variant %d/%d failed: %v", i+1, variants, err)
			batch.Failures = append(batch.Failures, VariantFailure{Index: i, Reason: err.Error()})
			batch.Cost += o.usageSnapshot() - before
			continue
		}
		batch.Results = append(batch.Results, result)
		batch.Cost += result.Cost
	}

	if len(batch.Results) == 0 {
		return nil, fmt.Errorf("all %d variants failed", variants)
	}
	return batch, nil
}

// usageSnapshot reads the accumulated provider cost. The generator and
// validator may be the same client sharing one Usage struct, so the
// validator only counts when it tracks usage separately.
func (o *Orchestrator) usageSnapshot() float64 {
	total := o.generator.GetUsage().TotalCost
	if o.validator != nil && o.validator.GetUsage() != o.generator.GetUsage() {
		total += o.validator.GetUsage().TotalCost
	}
	return total
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
