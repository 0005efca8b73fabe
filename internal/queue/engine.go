// Package queue owns the durable job list. The engine serializes job
// execution (one fan-out group active at a time), persists status
// transitions, resumes in-flight jobs after restart, and reclaims stale
// failures on a timer.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"mediaforge/internal/catalog"
	"mediaforge/internal/domain"
)

const (
	defaultIdleInterval = 2 * time.Second
	defaultSweepSpec    = "@every 60s"
	defaultRetention    = 5 * time.Minute
)

// Runner executes one job's fan-out and returns the persisted set id.
type Runner interface {
	RunJob(ctx context.Context, job *domain.Job) (string, error)
}

// Options tunes the engine.
type Options struct {
	// IdleInterval is how long the loop sleeps when the queue is empty.
	IdleInterval time.Duration
	// SweepSpec is the cron schedule of the stale-failure reclaimer.
	SweepSpec string
	// Retention is how long failed jobs are kept before the sweep deletes
	// them.
	Retention time.Duration
	// Sets, when present, lets the loop reclaim a generation set whose job
	// was deleted while the fan-out was finishing.
	Sets domain.SetRepository
}

// Engine processes jobs strictly one at a time in submission order. All job
// mutations flow through its repository methods, keeping a single-writer
// discipline between the processing loop, user deletions and the sweep.
type Engine struct {
	jobs      domain.JobRepository
	sets      domain.SetRepository
	runner    Runner
	logger    zerolog.Logger
	idle      time.Duration
	retention time.Duration
	sweepSpec string

	wake chan struct{}

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// New builds an engine.
func New(jobs domain.JobRepository, runner Runner, logger zerolog.Logger, opts Options) *Engine {
	idle := opts.IdleInterval
	if idle <= 0 {
		idle = defaultIdleInterval
	}
	retention := opts.Retention
	if retention <= 0 {
		retention = defaultRetention
	}
	sweepSpec := opts.SweepSpec
	if sweepSpec == "" {
		sweepSpec = defaultSweepSpec
	}
	return &Engine{
		jobs:      jobs,
		sets:      opts.Sets,
		runner:    runner,
		logger:    logger,
		idle:      idle,
		retention: retention,
		sweepSpec: sweepSpec,
		wake:      make(chan struct{}, 1),
		active:    map[string]context.CancelFunc{},
	}
}

// Enqueue validates the model, persists a new in_progress job and wakes the
// loop. Unknown models fail here, before any network activity.
func (e *Engine) Enqueue(ctx context.Context, req domain.GenerationRequest) (*domain.Job, error) {
	desc, err := catalog.Lookup(req.ModelID)
	if err != nil {
		return nil, err
	}
	if !desc.Active {
		return nil, fmt.Errorf("model %q is inactive: %w", req.ModelID, domain.ErrUnknownModel)
	}
	now := time.Now().UTC()
	job := &domain.Job{
		ID:        uuid.NewString(),
		Request:   req,
		SetType:   desc.SetType,
		Status:    domain.JobStatusInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	e.logger.Info().Str("job_id", job.ID).Str("model", req.ModelID).Int("count", req.Count).Msg("queue: job enqueued")
	select {
	case e.wake <- struct{}{}:
	default:
	}
	return job, nil
}

// Cancel removes a job. An in-flight fan-out is cooperatively cancelled,
// including any active poll loop, so no background work outlives the record.
// A fan-out running in another engine process over the same table stops too,
// via its deletion watcher.
func (e *Engine) Cancel(ctx context.Context, jobID string) error {
	e.mu.Lock()
	if cancel, ok := e.active[jobID]; ok {
		cancel()
	}
	e.mu.Unlock()
	if err := e.jobs.Delete(ctx, jobID); err != nil {
		return err
	}
	e.logger.Info().Str("job_id", jobID).Msg("queue: job removed")
	return nil
}

// Start runs the processing loop until ctx is cancelled. Jobs persisted as
// in_progress by a previous process re-enter the loop automatically because
// the claim query only looks at status.
func (e *Engine) Start(ctx context.Context) error {
	sweeper := cron.New()
	if _, err := sweeper.AddFunc(e.sweepSpec, func() { e.sweep(ctx) }); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	e.logger.Info().Msg("queue: engine started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		job, err := e.jobs.NextInProgress(ctx)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			e.waitForWork(ctx)
			continue
		case err != nil:
			e.logger.Error().Err(err).Msg("queue: claim failed")
			e.waitForWork(ctx)
			continue
		}

		e.process(ctx, job)
	}
}

func (e *Engine) waitForWork(ctx context.Context) {
	timer := time.NewTimer(e.idle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-e.wake:
	case <-timer.C:
	}
}

// process fully awaits one job's fan-out before the loop claims the next
// one. A job failure is recorded on the job and never crashes the loop.
func (e *Engine) process(ctx context.Context, job *domain.Job) {
	e.logger.Info().Str("job_id", job.ID).Str("model", job.Request.ModelID).Msg("queue: picked job")

	jobCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.active[job.ID] = cancel
	e.mu.Unlock()
	defer func() {
		cancel()
		e.mu.Lock()
		delete(e.active, job.ID)
		e.mu.Unlock()
	}()

	// Deletions can come from another process sharing the job table, so the
	// in-memory cancel func alone is not enough. A watcher polls the record
	// and cancels the fan-out once it disappears.
	go e.watchDeletion(jobCtx, job.ID, cancel)

	setID, err := e.runner.RunJob(jobCtx, job)
	if err != nil {
		if jobCtx.Err() != nil && ctx.Err() == nil {
			// Cancelled by deletion; the record is already gone.
			e.logger.Info().Str("job_id", job.ID).Msg("queue: job cancelled mid-flight")
			return
		}
		e.logger.Error().Err(err).Str("job_id", job.ID).Msg("queue: job failed")
		if uerr := e.jobs.UpdateStatus(ctx, job.ID, domain.JobStatusFailed, err.Error(), ""); uerr != nil && !errors.Is(uerr, domain.ErrNotFound) {
			e.logger.Error().Err(uerr).Str("job_id", job.ID).Msg("queue: record failure failed")
		}
		return
	}

	if err := e.jobs.UpdateStatus(ctx, job.ID, domain.JobStatusSuccessful, "", setID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// The record was deleted while the fan-out finished. The set
			// belongs to no job now, so drop it instead of orphaning it.
			if e.sets != nil {
				if derr := e.sets.DeleteSet(ctx, setID); derr != nil {
					e.logger.Error().Err(derr).Str("set_id", setID).Msg("queue: reclaim orphan set failed")
				}
			}
			e.logger.Info().Str("job_id", job.ID).Msg("queue: job cancelled mid-flight")
			return
		}
		e.logger.Error().Err(err).Str("job_id", job.ID).Msg("queue: record success failed")
		return
	}
	e.logger.Info().Str("job_id", job.ID).Str("set_id", setID).Msg("queue: job succeeded")
}

// watchDeletion cancels an in-flight fan-out when its job record vanishes
// from the table. Repository errors other than ErrNotFound are ignored here;
// the processing loop surfaces them.
func (e *Engine) watchDeletion(ctx context.Context, jobID string, cancel context.CancelFunc) {
	ticker := time.NewTicker(e.idle)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.jobs.GetByID(ctx, jobID); errors.Is(err, domain.ErrNotFound) {
				cancel()
				return
			}
		}
	}
}

// sweep reclaims failed jobs older than the retention window.
func (e *Engine) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-e.retention)
	removed, err := e.jobs.DeleteFailedBefore(ctx, cutoff)
	if err != nil {
		e.logger.Error().Err(err).Msg("queue: sweep failed")
		return
	}
	if removed > 0 {
		e.logger.Info().Int64("removed", removed).Msg("queue: reclaimed stale failures")
	}
}

// Sweep runs one reclaim pass immediately. It exists for hosts and tests
// that need deterministic cleanup outside the cron schedule.
func (e *Engine) Sweep(ctx context.Context) {
	e.sweep(ctx)
}
