// Package queue provides the durable download queue: the job store,
// the retry scheduler and the worker pool that drives jobs through
// their lifecycle.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the current state of a download job
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsValidStatus returns true if the status string is a valid JobStatus
func IsValidStatus(s string) bool {
	switch JobStatus(s) {
	case JobStatusQueued, JobStatusInProgress, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status permits no further automatic transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job represents one submitted URL and its tracked processing lifecycle.
//
// Lifecycle: created queued by the admission path, claimed in_progress by
// the worker, then completed on success, re-queued with a not_before delay
// on retryable failure, or failed once retries are exhausted. Rows are
// mutated only through Store operations so that state, attempt_count and
// not_before always change atomically.
type Job struct {
	ID           string     `json:"id"`
	SourceURL    string     `json:"source_url"`
	Owner        string     `json:"owner"`
	Status       JobStatus  `json:"status"`
	AttemptCount int        `json:"attempt_count"`
	NotBefore    time.Time  `json:"not_before"`
	LastError    string     `json:"last_error,omitempty"`
	ResultPath   string     `json:"result_path,omitempty"`
	ResultSize   int64      `json:"result_size,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// NewJob creates a new queued job for the given URL and owner.
// The job is immediately eligible for claiming (not_before = now).
func NewJob(sourceURL, owner string) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		SourceURL: sourceURL,
		Owner:     owner,
		Status:    JobStatusQueued,
		NotBefore: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Result holds the outcome of a successful fetch, recorded on completion.
type Result struct {
	Path string
	Size int64
}
