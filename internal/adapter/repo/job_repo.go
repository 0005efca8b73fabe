package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mediaforge/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// Create inserts a new job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	request, err := json.Marshal(job.Request)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	query := `
INSERT INTO jobs (id, request_json, set_type, status, set_id, error_message, created_at, updated_at)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8);
`
	_, err = r.pool.Exec(ctx, query,
		job.ID,
		request,
		job.SetType,
		job.Status,
		job.SetID,
		job.ErrorMessage,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

// UpdateStatus moves a job into a terminal state, recording the error
// message or the produced set id.
func (r *JobRepositoryPG) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, errMsg string, setID string) error {
	query := `
UPDATE jobs
SET status = $2,
    error_message = $3,
    set_id = NULLIF($4, '')::uuid,
    updated_at = NOW()
WHERE id = $1;
`
	tag, err := r.pool.Exec(ctx, query, jobID, status, errMsg, setID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	query := jobSelect + ` WHERE id = $1;`
	return r.scanJob(r.pool.QueryRow(ctx, query, jobID))
}

// NextInProgress returns the oldest in_progress job, giving the engine
// deterministic FIFO processing.
func (r *JobRepositoryPG) NextInProgress(ctx context.Context) (*domain.Job, error) {
	query := jobSelect + ` WHERE status = $1 ORDER BY created_at ASC LIMIT 1;`
	return r.scanJob(r.pool.QueryRow(ctx, query, domain.JobStatusInProgress))
}

// List returns all jobs, newest first.
func (r *JobRepositoryPG) List(ctx context.Context) ([]domain.Job, error) {
	query := jobSelect + ` ORDER BY created_at DESC;`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJobFrom(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// Delete removes a job record. Missing ids report domain.ErrNotFound.
func (r *JobRepositoryPG) Delete(ctx context.Context, jobID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1;`, jobID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteFailedBefore reclaims failed jobs last updated before cutoff.
func (r *JobRepositoryPG) DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM jobs WHERE status = $1 AND updated_at < $2;`,
		domain.JobStatusFailed, cutoff,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const jobSelect = `
SELECT id, request_json, set_type, status, COALESCE(set_id::text, ''), error_message, created_at, updated_at
FROM jobs`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *JobRepositoryPG) scanJob(row pgx.Row) (*domain.Job, error) {
	job, err := scanJobFrom(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

func scanJobFrom(row rowScanner) (*domain.Job, error) {
	var job domain.Job
	var request []byte
	if err := row.Scan(
		&job.ID,
		&request,
		&job.SetType,
		&job.Status,
		&job.SetID,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(request, &job.Request); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return &job, nil
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
