package domain

import "time"

// JobStatus enumerates job lifecycle states. Transitions are monotonic:
// in_progress moves to successful or failed, and terminal jobs only leave the
// system by deletion.
type JobStatus string

const (
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusSuccessful JobStatus = "successful"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status is a terminal state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSuccessful || s == JobStatusFailed
}

// Job tracks one user-submitted generation request through its lifecycle.
// The queue engine exclusively owns job mutation.
type Job struct {
	ID           string
	Request      GenerationRequest
	SetType      SetType
	Status       JobStatus
	SetID        string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
