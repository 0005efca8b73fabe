package domain

import (
	"context"
	"time"
)

// JobRepository defines persistence for job entities. The queue engine is the
// only writer.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	UpdateStatus(ctx context.Context, jobID string, status JobStatus, errMsg string, setID string) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
	// NextInProgress returns the oldest in_progress job, or ErrNotFound.
	NextInProgress(ctx context.Context) (*Job, error)
	List(ctx context.Context) ([]Job, error)
	// Delete removes the job, or reports ErrNotFound for a missing id.
	Delete(ctx context.Context, jobID string) error
	// DeleteFailedBefore removes failed jobs last updated before cutoff and
	// reports how many rows were reclaimed.
	DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SetRepository persists generation sets and their artifacts.
type SetRepository interface {
	// CreateWithGenerations inserts the set and all generations in one
	// transaction; a partial insert never becomes visible.
	CreateWithGenerations(ctx context.Context, set *GenerationSet, generations []Generation) error
	ListSets(ctx context.Context, limit int) ([]GenerationSet, error)
	ListGenerations(ctx context.Context, setID string) ([]Generation, error)
	DeleteSet(ctx context.Context, setID string) error
}
