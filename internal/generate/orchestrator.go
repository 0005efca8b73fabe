// Package generate drives one job through its fan-out: resolve the adapter
// once, run count sub-requests concurrently, aggregate all-or-nothing, and
// persist the resulting set atomically.
package generate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"mediaforge/internal/catalog"
	"mediaforge/internal/domain"
	"mediaforge/internal/pipeline"
	"mediaforge/internal/providers"
)

// maxFanOutParallel caps concurrent sub-requests within one job so a large
// count cannot open unbounded connections against a backend.
const maxFanOutParallel = 4

// Resolver maps a model id to an adapter.
type Resolver interface {
	Resolve(modelID string) (providers.Adapter, error)
}

// ArtifactPipeline persists one successful payload.
type ArtifactPipeline interface {
	Process(ctx context.Context, req domain.GenerationRequest, res domain.GenerationResult, setType domain.SetType) (*pipeline.Artifact, error)
}

// Orchestrator owns the per-job generation flow.
type Orchestrator struct {
	resolver Resolver
	pipeline ArtifactPipeline
	sets     domain.SetRepository
	logger   zerolog.Logger
}

// New wires the orchestrator.
func New(resolver Resolver, artifacts ArtifactPipeline, sets domain.SetRepository, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{resolver: resolver, pipeline: artifacts, sets: sets, logger: logger}
}

// RunOne performs a single sub-request: one adapter call, then the artifact
// pipeline. Pipeline failures come back as canonical failed results so no
// partial artifact is ever referenced by a set.
func (o *Orchestrator) RunOne(ctx context.Context, req domain.GenerationRequest, adapter providers.Adapter, setType domain.SetType) domain.GenerationResult {
	res := adapter.Generate(ctx, req)
	if res.Failed() {
		return res
	}
	artifact, err := o.pipeline.Process(ctx, req, res, setType)
	if err != nil {
		code := domain.CodeStorageError
		if errors.Is(err, domain.ErrDecode) {
			code = domain.CodeDecodeError
		}
		return domain.FailedResult(code, err.Error())
	}
	res.ArtifactID = artifact.ID
	res.ByteSize = artifact.ByteSize
	res.Palette = artifact.Palette
	res.Payload = "" // media now lives on the blob store
	return res
}

// RunJob fans the job out into count concurrent sub-requests sharing one
// request body and one adapter instance, waits for all of them, and applies
// the all-or-nothing policy. On full success it returns the id of the
// persisted set.
func (o *Orchestrator) RunJob(ctx context.Context, job *domain.Job) (string, error) {
	adapter, err := o.resolver.Resolve(job.Request.ModelID)
	if err != nil {
		return "", err
	}

	count := job.Request.Count
	if count < 1 {
		count = 1
	}
	results := make([]domain.GenerationResult, count)

	g, gctx := errgroup.WithContext(ctx)
	limit := count
	if limit > maxFanOutParallel {
		limit = maxFanOutParallel
	}
	g.SetLimit(limit)
	for i := 0; i < count; i++ {
		i := i
		g.Go(func() error {
			results[i] = o.RunOne(gctx, job.Request, adapter, job.SetType)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	// All-or-nothing: the first failure speaks for the whole group, even
	// when siblings already produced billable artifacts.
	succeeded := 0
	for _, res := range results {
		if !res.Failed() && res.ArtifactID != "" {
			succeeded++
		}
	}
	for _, res := range results {
		if res.Failed() || res.ArtifactID == "" {
			if succeeded > 0 {
				o.logger.Debug().
					Str("job_id", job.ID).
					Int("discarded", succeeded).
					Msg("generate: discarding sibling successes for failed fan-out")
			}
			code := res.ErrorCode
			if code == "" {
				code = domain.CodeGeneratorError
			}
			msg := res.ErrorMessage
			if msg == "" {
				msg = "sub-request produced no artifact"
			}
			return "", &domain.GenerationError{Code: code, Message: msg}
		}
	}

	set := &domain.GenerationSet{
		ID:         uuid.NewString(),
		SetType:    job.SetType,
		Prompt:     job.Request.Prompt,
		Style:      job.Request.Style,
		Dimensions: job.Request.Dimensions,
		CreatedAt:  time.Now().UTC(),
	}
	generations := make([]domain.Generation, 0, len(results))
	for _, res := range results {
		generations = append(generations, domain.Generation{
			ID:            res.ArtifactID,
			SetID:         set.ID,
			ModelID:       job.Request.ModelID,
			Prompt:        job.Request.Prompt,
			RevisedPrompt: res.RevisedPrompt,
			Dimensions:    job.Request.Dimensions,
			ByteSize:      res.ByteSize,
			Cost:          res.Cost,
			CostUnit:      string(catalog.CostUnit(adapter.Model().Code)),
			Status:        string(domain.ResultGenerated),
			Palette:       res.Palette,
			CreatedAt:     time.Now().UTC(),
		})
	}
	if err := o.sets.CreateWithGenerations(ctx, set, generations); err != nil {
		return "", fmt.Errorf("persist set: %w: %v", domain.ErrStorage, err)
	}
	o.logger.Info().
		Str("job_id", job.ID).
		Str("set_id", set.ID).
		Int("generations", len(generations)).
		Msg("generate: set persisted")
	return set.ID, nil
}
