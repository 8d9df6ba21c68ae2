package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/tomashavel/faceforge/internal/cluster"
	"github.com/tomashavel/faceforge/internal/constants"
	"github.com/tomashavel/faceforge/internal/coverage"
	"github.com/tomashavel/faceforge/internal/database"
	"github.com/tomashavel/faceforge/internal/embedding"
	"github.com/tomashavel/faceforge/internal/generation"
	"github.com/tomashavel/faceforge/internal/profile"
)

// Detector is the face detection surface the worker needs.
// *embedding.Client satisfies it.
type Detector interface {
	Detect(ctx context.Context, imageURLs []string) (*embedding.DetectResponse, error)
}

// ImageFetcher retrieves reference image bytes.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher fetches images over plain HTTP.
type HTTPFetcher struct {
	Client *http.Client
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: time.Minute}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// WorkerConfig carries the tunables a worker resolves payload defaults
// against.
type WorkerConfig struct {
	MatchThreshold      float64
	ValidationThreshold float64
	MaxAttempts         int
	AnalyzeConcurrency  int
}

// Worker processes one claimed job end-to-end.
type Worker struct {
	store        database.Store
	detector     Detector
	analyzer     generation.Analyzer
	orchestrator *generation.Orchestrator
	fetcher      ImageFetcher
	index        *database.IdentityIndex
	cfg          WorkerConfig
}

func NewWorker(store database.Store, detector Detector, analyzer generation.Analyzer, orchestrator *generation.Orchestrator, fetcher ImageFetcher, index *database.IdentityIndex, cfg WorkerConfig) *Worker {
	if cfg.AnalyzeConcurrency <= 0 {
		cfg.AnalyzeConcurrency = constants.DefaultAnalyzeConcurrency
	}
	return &Worker{
		store:        store,
		detector:     detector,
		analyzer:     analyzer,
		orchestrator: orchestrator,
		fetcher:      fetcher,
		index:        index,
		cfg:          cfg,
	}
}

// Process runs a claimed job to its terminal state. The returned error is
// informational; the terminal status and reason are already recorded on the
// job by the time Process returns.
func (w *Worker) Process(ctx context.Context, job *database.StoredJob) error {
	payload, err := DecodePayload(job.Payload)
	if err != nil {
		return w.fail(ctx, job, fmt.Errorf("failed to decode payload: %w", err))
	}

	switch payload.Kind {
	case KindIdentityCluster:
		err = w.processCluster(ctx, job, payload.Cluster)
	case KindConstrainedGenerate:
		err = w.processGenerate(ctx, job, payload.Generate)
	default:
		err = fmt.Errorf("%w: kind %q", ErrInvalidPayload, payload.Kind)
	}
	if err != nil {
		return w.fail(ctx, job, err)
	}
	return nil
}

func (w *Worker) fail(ctx context.Context, job *database.StoredJob, cause error) error {
	job.Status = database.JobStatusFailed
	if errors.Is(cause, context.Canceled) {
		job.Status = database.JobStatusCancelled
	}
	job.Error = cause.Error()
	if err := w.store.CompleteJob(ctx, job); err != nil {
		log.Printf("job %s: failed to record terminal state: %v", job.ID, err)
	}
	return cause
}

// processCluster detects faces in the source images and folds them into new
// or existing identities. Per-image detection failures are tolerated: the
// failed subset is enumerated on the job, the rest of the batch proceeds.
func (w *Worker) processCluster(ctx context.Context, job *database.StoredJob, payload *ClusterPayload) error {
	threshold := payload.EffectiveMatchThreshold(w.cfg.MatchThreshold)

	resp, err := w.detector.Detect(ctx, payload.SourceRefs)
	if err != nil {
		return fmt.Errorf("face detection failed: %w", err)
	}
	_ = w.store.UpdateProgress(ctx, job.ID, 25)

	var batch []database.StoredDetection
	for _, img := range resp.ByImage {
		if img.Error != "" {
			job.FailedItems = append(job.FailedItems, fmt.Sprintf("%s: %s", img.ImageURL, img.Error))
			continue
		}
		for _, face := range img.Faces {
			batch = append(batch, database.StoredDetection{
				ImageURL:  img.ImageURL,
				BatchRef:  payload.BatchRef,
				FaceIndex: face.FaceIndex,
				Embedding: face.Embedding,
				BBox:      face.BBox,
				DetScore:  face.DetScore,
				Quality:   face.Quality,
				Angle:     embedding.AngleForDetection(face),
				Euler:     &database.EulerAngles{Yaw: face.Yaw, Pitch: face.Pitch, Roll: face.Roll},
				Dim:       face.Dim,
			})
		}
	}
	if len(batch) == 0 && len(job.FailedItems) == len(payload.SourceRefs) {
		return fmt.Errorf("all %d source images failed detection", len(payload.SourceRefs))
	}

	identities, err := w.candidateIdentities(ctx, batch)
	if err != nil {
		return err
	}

	result := cluster.Assign(batch, identities, threshold)
	_ = w.store.UpdateProgress(ctx, job.ID, 50)

	for i, c := range result.Clusters {
		var identityID int64
		if c.Matched != nil {
			identityID = c.Matched.IdentityID
		} else {
			identityID, err = w.createIdentity(ctx, payload.BatchRef, i)
			if err != nil {
				return err
			}
		}

		// Detections are saved before the identity merge so the coverage
		// samples can reference their assigned IDs.
		members := append([]database.StoredDetection(nil), c.Members...)
		for j := range members {
			members[j].IdentityID = identityID
		}
		ids, err := w.store.SaveDetections(ctx, members)
		if err != nil {
			return fmt.Errorf("failed to save detections: %w", err)
		}
		for j := range members {
			if j < len(ids) {
				members[j].ID = ids[j]
			}
		}

		if err := w.mergeIntoIdentity(ctx, identityID, members); err != nil {
			return err
		}
	}
	if len(result.Unclustered) > 0 {
		if _, err := w.store.SaveDetections(ctx, result.Unclustered); err != nil {
			return fmt.Errorf("failed to save detections: %w", err)
		}
	}
	_ = w.store.UpdateProgress(ctx, job.ID, 80)

	job.Status = database.JobStatusReady
	job.BestEffort = len(job.FailedItems) > 0
	job.Progress = 100
	if err := w.store.CompleteJob(ctx, job); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	log.Printf("job %s: clustered %d detections into %d identities (%d unclustered, %d failed images)",
		job.ID, result.ClusteredCount(), len(result.Clusters), len(result.Unclustered), len(job.FailedItems))
	return nil
}

// candidateIdentities loads the stored identities a batch should be matched
// against. Small identity sets are returned whole; once the index holds more
// identities than the per-detection candidate count, the list is narrowed to
// the union of each detection's nearest neighbors. Index failures fall back
// to the full scan.
func (w *Worker) candidateIdentities(ctx context.Context, batch []database.StoredDetection) ([]*database.StoredIdentity, error) {
	stored, err := w.store.ListIdentities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}
	identities := make([]*database.StoredIdentity, len(stored))
	for i := range stored {
		identities[i] = &stored[i]
	}
	if w.index == nil || w.index.Len() <= constants.HNSWCandidates {
		return identities, nil
	}

	wanted := make(map[int64]bool)
	for i := range batch {
		if !batch[i].HasEmbedding() {
			continue
		}
		ids, _, err := w.index.Search(batch[i].Embedding, constants.HNSWCandidates)
		if err != nil {
			log.Printf("identity index search failed, falling back to full scan: %v", err)
			return identities, nil
		}
		for _, id := range ids {
			wanted[id] = true
		}
	}

	candidates := make([]*database.StoredIdentity, 0, len(wanted))
	for _, identity := range identities {
		if wanted[identity.ID] {
			candidates = append(candidates, identity)
		}
	}
	return candidates, nil
}

// mergeIntoIdentity folds saved cluster members into their identity with a
// bounded optimistic retry: read, merge, version-checked write. Concurrent
// batches merging into the same identity are independent idempotent folds,
// so losing the race just means re-reading and folding again. Members must
// already carry their assigned detection IDs so coverage samples reference
// real rows. Newly created identities start empty and get their centroid
// from the same fold.
func (w *Worker) mergeIntoIdentity(ctx context.Context, identityID int64, members []database.StoredDetection) error {
	for attempt := 0; attempt < constants.MergeRetries; attempt++ {
		identity, err := w.store.GetIdentity(ctx, identityID)
		if err != nil {
			return fmt.Errorf("failed to load identity %d: %w", identityID, err)
		}

		added := make([][]float32, 0, len(members))
		for _, det := range members {
			added = append(added, det.Embedding)
		}
		identity.Centroid = database.MergeCentroid(identity.Centroid, identity.ImageCount, added)
		identity.ImageCount += len(members)

		if identity.Coverage == nil {
			identity.Coverage = make(map[database.Angle]database.AngleSample)
		}
		for _, det := range members {
			coverage.MergeSample(identity.Coverage, det.Angle, database.AngleSample{
				DetectionID: det.ID,
				Quality:     det.Quality,
				ImageURL:    det.ImageURL,
			})
		}
		identity.AngleCount = len(identity.Coverage)

		err = w.store.UpdateIdentity(ctx, identity)
		if err == nil {
			if w.index != nil {
				if err := w.index.Add(identity); err != nil {
					log.Printf("identity %d: index update failed: %v", identity.ID, err)
				}
			}
			return nil
		}
		if !errors.Is(err, database.ErrVersionConflict) {
			return fmt.Errorf("failed to update identity %d: %w", identity.ID, err)
		}
	}
	return fmt.Errorf("identity %d: merge contention exceeded %d retries", identityID, constants.MergeRetries)
}

// createIdentity writes an empty identity shell; centroid, counts and
// coverage arrive through the follow-up merge.
func (w *Worker) createIdentity(ctx context.Context, batchRef string, ordinal int) (int64, error) {
	identity := &database.StoredIdentity{
		Name:        fmt.Sprintf("person-%s-%d", batchRef, ordinal),
		Coverage:    make(map[database.Angle]database.AngleSample),
		SourceBatch: batchRef,
	}
	id, err := w.store.CreateIdentity(ctx, identity)
	if err != nil {
		return 0, fmt.Errorf("failed to create identity: %w", err)
	}
	return id, nil
}

// processGenerate runs the constrained-generation pipeline for one identity:
// fetch references, analyze, aggregate, then drive the generate/validate
// loop. Reference analysis is fanned out with capped concurrency to respect
// provider rate limits; everything after it is strictly sequential.
func (w *Worker) processGenerate(ctx context.Context, job *database.StoredJob, payload *GeneratePayload) error {
	threshold, maxAttempts, variants := payload.EffectiveOptions(w.cfg.ValidationThreshold, w.cfg.MaxAttempts)

	identity, err := w.store.GetIdentity(ctx, payload.IdentityID)
	if err != nil {
		return fmt.Errorf("failed to load identity %d: %w", payload.IdentityID, err)
	}

	refs := referenceSet(payload, identity)
	fetched, fetchFailed := w.fetchReferences(ctx, refs)
	job.FailedItems = append(job.FailedItems, fetchFailed...)
	_ = w.store.UpdateProgress(ctx, job.ID, 20)

	var aggregated *profile.AggregatedProfile
	analysisStart := w.analyzer.GetUsage().TotalCost
	if len(refs) > 0 {
		analyses, analyzeFailed := w.analyzeReferences(ctx, fetched)
		job.FailedItems = append(job.FailedItems, analyzeFailed...)

		aggregated, err = profile.Aggregate(analyses, constants.MinAnalysisQuality)
		if err != nil {
			if errors.Is(err, profile.ErrNoValidAnalyses) {
				return fmt.Errorf("no valid images for identity %d: %w", identity.ID, err)
			}
			return fmt.Errorf("profile aggregation failed: %w", err)
		}

		if err := w.saveProfile(ctx, identity.ID, aggregated); err != nil {
			log.Printf("identity %d: failed to persist profile: %v", identity.ID, err)
		}
	}
	analysisCost := w.analyzer.GetUsage().TotalCost - analysisStart
	_ = w.store.UpdateProgress(ctx, job.ID, 40)

	req := &generation.RunRequest{
		PromptTemplate:      payload.PromptTemplate,
		Profile:             aggregated,
		References:          fetched,
		AspectRatio:         payload.AspectRatio,
		Resolution:          payload.Resolution,
		ValidationThreshold: threshold,
		MaxAttempts:         maxAttempts,
		OutputPath:          fmt.Sprintf("outputs/%d/%s", identity.ID, job.ID),
	}

	batch, err := w.orchestrator.RunBatch(ctx, req, variants)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}
	_ = w.store.UpdateProgress(ctx, job.ID, 90)

	for _, r := range batch.Results {
		job.OutputURLs = append(job.OutputURLs, r.OutputURL)
		job.Attempts += r.Attempts
		if r.BestEffort {
			job.BestEffort = true
			job.Feedback = r.Hints
		}
	}
	for _, f := range batch.Failures {
		job.FailedItems = append(job.FailedItems, fmt.Sprintf("variant %d: %s", f.Index, f.Reason))
	}
	job.Cost += batch.Cost + analysisCost
	job.Status = database.JobStatusReady
	job.Progress = 100

	if err := w.store.CompleteJob(ctx, job); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	log.Printf("job %s: generated %d/%d variants for identity %d (cost $%.4f, best effort: %v)",
		job.ID, len(batch.Results), variants, identity.ID, job.Cost, job.BestEffort)
	return nil
}

// referenceSet resolves the reference images for a generate job: explicit
// payload references win, otherwise the identity's best per-angle samples.
func referenceSet(payload *GeneratePayload, identity *database.StoredIdentity) []generation.ReferenceImage {
	if len(payload.References) > 0 {
		refs := make([]generation.ReferenceImage, 0, len(payload.References))
		for _, r := range payload.References {
			weight := r.Weight
			if weight <= 0 || weight > 1 {
				weight = 1
			}
			refType := r.Type
			if refType == "" {
				refType = "face"
			}
			refs = append(refs, generation.ReferenceImage{URL: r.URL, Type: refType, Weight: weight})
		}
		return refs
	}

	var refs []generation.ReferenceImage
	for _, angle := range database.CanonicalAngles() {
		sample, ok := identity.Coverage[angle]
		if !ok || sample.ImageURL == "" {
			continue
		}
		refs = append(refs, generation.ReferenceImage{URL: sample.ImageURL, Type: "face", Weight: 1})
	}
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].URL < refs[j].URL })
	return refs
}

// fetchReferences downloads reference bytes with capped concurrency.
// References that fail to fetch are dropped and enumerated, not fatal.
func (w *Worker) fetchReferences(ctx context.Context, refs []generation.ReferenceImage) ([]generation.ReferenceImage, []string) {
	type fetchResult struct {
		index int
		data  []byte
		err   error
	}

	sem := make(chan struct{}, w.cfg.AnalyzeConcurrency)
	results := make([]fetchResult, len(refs))
	var wg sync.WaitGroup

	for i, ref := range refs {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			data, err := w.fetcher.Fetch(ctx, url)
			results[i] = fetchResult{index: i, data: data, err: err}
		}(i, ref.URL)
	}
	wg.Wait()

	var fetched []generation.ReferenceImage
	var failed []string
	for i, r := range results {
		if r.err != nil {
			failed = append(failed, fmt.Sprintf("%s: fetch failed: %v", refs[i].URL, r.err))
			continue
		}
		ref := refs[i]
		ref.Data = r.data
		fetched = append(fetched, ref)
	}
	return fetched, failed
}

// analyzeReferences runs the vision analyzer over the fetched references
// with capped concurrency. Per-image failures are tolerated; aggregation
// decides whether enough evidence survived.
func (w *Worker) analyzeReferences(ctx context.Context, refs []generation.ReferenceImage) ([]profile.Analysis, []string) {
	sem := make(chan struct{}, w.cfg.AnalyzeConcurrency)
	analyses := make([]*profile.Analysis, len(refs))
	errs := make([]error, len(refs))
	var wg sync.WaitGroup

	for i, ref := range refs {
		wg.Add(1)
		go func(i int, ref generation.ReferenceImage) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			analysis, err := w.analyzer.AnalyzeImage(ctx, ref.Data, ref.URL)
			analyses[i], errs[i] = analysis, err
		}(i, ref)
	}
	wg.Wait()

	var valid []profile.Analysis
	var failed []string
	for i := range refs {
		if errs[i] != nil {
			failed = append(failed, fmt.Sprintf("%s: analysis failed: %v", refs[i].URL, errs[i]))
			continue
		}
		valid = append(valid, *analyses[i])
	}
	return valid, failed
}

func (w *Worker) saveProfile(ctx context.Context, identityID int64, p *profile.AggregatedProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	return w.store.SaveProfile(ctx, &database.StoredProfile{
		IdentityID:  identityID,
		Data:        data,
		SampleCount: p.SampleCount,
		Confidence:  p.Overall,
	})
}
