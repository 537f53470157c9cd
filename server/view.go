package server

import (
	"time"

	"github.com/vidsaver/vidsaver/queue"
)

// JobView is the API representation of a download job. Internal statuses
// are projected onto the public vocabulary: in_progress is reported as
// "downloading" so the attempt machinery stays an implementation detail.
type JobView struct {
	ID           string     `json:"id"`
	SourceURL    string     `json:"source_url"`
	Owner        string     `json:"owner"`
	Status       string     `json:"status"`
	AttemptCount int        `json:"attempt_count"`
	NotBefore    *time.Time `json:"not_before,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	ResultPath   string     `json:"result_path,omitempty"`
	ResultSize   int64      `json:"result_size,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// publicStatus maps internal job statuses to the API vocabulary
func publicStatus(status queue.JobStatus) string {
	if status == queue.JobStatusInProgress {
		return "downloading"
	}
	return string(status)
}

// internalStatus maps an API status filter back to the internal value.
// Unknown strings pass through and simply match nothing.
func internalStatus(status string) queue.JobStatus {
	if status == "downloading" {
		return queue.JobStatusInProgress
	}
	return queue.JobStatus(status)
}

// newJobView projects a job into its API representation
func newJobView(job *queue.Job) JobView {
	view := JobView{
		ID:           job.ID,
		SourceURL:    job.SourceURL,
		Owner:        job.Owner,
		Status:       publicStatus(job.Status),
		AttemptCount: job.AttemptCount,
		LastError:    job.LastError,
		ResultPath:   job.ResultPath,
		ResultSize:   job.ResultSize,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
		StartedAt:    job.StartedAt,
		FinishedAt:   job.FinishedAt,
	}
	// not_before only means something while the job is waiting its turn.
	if job.Status == queue.JobStatusQueued {
		nb := job.NotBefore
		view.NotBefore = &nb
	}
	return view
}

// newJobViews projects a slice of jobs
func newJobViews(jobs []*queue.Job) []JobView {
	views := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, newJobView(job))
	}
	return views
}
