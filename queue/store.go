package queue

import (
	"database/sql"
	"sync"
	"time"

	"github.com/vidsaver/vidsaver/errors"
)

const (
	// MaxListLimit caps how many rows a single list query may return
	MaxListLimit = 1000
	// SubscriberChannelBufferSize is the buffer size for subscriber channels
	SubscriberChannelBufferSize = 100
)

// Store handles persistence of download jobs. It is the single source of
// truth for job state: every mutation goes through one of its operations,
// and each operation commits state, attempt_count and not_before together
// so a crash can never leave a row half-transitioned.
type Store struct {
	db      *sql.DB
	timeNow func() time.Time // Injectable for testing

	mu          sync.Mutex
	subscribers []chan *Job // Channels notified of job updates
}

// NewStore creates a new download job store
func NewStore(db *sql.DB) *Store {
	return NewStoreWithClock(db, time.Now)
}

// NewStoreWithClock creates a store with an injectable clock (for testing)
func NewStoreWithClock(db *sql.DB, timeNow func() time.Time) *Store {
	return &Store{db: db, timeNow: timeNow}
}

// CreateJob inserts a new job row. The insert is committed before this
// returns, which is what lets the transport acknowledge a submission
// without risking loss on crash.
func (s *Store) CreateJob(job *Job) error {
	query := `
		INSERT INTO download_jobs (
			id, source_url, owner, status,
			attempt_count, not_before,
			last_error, result_path, result_size,
			created_at, updated_at, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	lastError := sql.NullString{String: job.LastError, Valid: job.LastError != ""}
	resultPath := sql.NullString{String: job.ResultPath, Valid: job.ResultPath != ""}
	resultSize := sql.NullInt64{Int64: job.ResultSize, Valid: job.ResultSize > 0}

	_, err := s.db.Exec(query,
		job.ID,
		job.SourceURL,
		job.Owner,
		job.Status,
		job.AttemptCount,
		job.NotBefore,
		lastError,
		resultPath,
		resultSize,
		job.CreatedAt,
		job.UpdatedAt,
		job.StartedAt,
		job.FinishedAt,
	)
	if err != nil {
		err = errors.Wrap(err, "failed to create job")
		err = errors.WithDetailf(err, "Job ID: %s", job.ID)
		err = errors.WithDetailf(err, "Owner: %s", job.Owner)
		return err
	}

	s.notifySubscribers(job)
	return nil
}

// ClaimNext atomically claims up to capacity eligible jobs for processing.
// A job is eligible iff status is queued and not_before has elapsed; among
// eligible rows the oldest created_at wins (FIFO, no priorities). Each
// claim flips the row to in_progress, sets started_at and increments
// attempt_count in the same transaction, guarded by a conditional update
// so concurrent callers can never claim the same row twice.
func (s *Store) ClaimNext(capacity int) ([]*Job, error) {
	if capacity <= 0 {
		return nil, nil
	}

	now := s.timeNow()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin claim transaction")
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT id FROM download_jobs
		WHERE status = ? AND not_before <= ?
		ORDER BY created_at ASC
		LIMIT ?`,
		JobStatusQueued, now, capacity)
	if err != nil {
		return nil, errors.Wrap(err, "failed to select eligible jobs")
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "failed to scan eligible job id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, errors.Wrap(err, "error iterating eligible jobs")
	}
	rows.Close()

	var claimed []*Job
	for _, id := range ids {
		// Conditional update: only a row still queued can be claimed.
		res, err := tx.Exec(`
			UPDATE download_jobs
			SET status = ?, attempt_count = attempt_count + 1,
			    started_at = ?, updated_at = ?
			WHERE id = ? AND status = ?`,
			JobStatusInProgress, now, now, id, JobStatusQueued)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to claim job %s", id)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to check claim of job %s", id)
		}
		if affected == 0 {
			continue // Lost the race to another claimer
		}

		var job Job
		row := tx.QueryRow(`SELECT `+jobSelectColumns+` FROM download_jobs WHERE id = ?`, id)
		if err := scanJobFromRow(row, &job); err != nil {
			return nil, errors.Wrapf(err, "failed to read claimed job %s", id)
		}
		claimed = append(claimed, &job)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit claim transaction")
	}

	for _, job := range claimed {
		s.notifySubscribers(job)
	}
	return claimed, nil
}

// RecordSuccess transitions an in_progress job to completed, populating the
// result fields and clearing any error left over from earlier attempts.
func (s *Store) RecordSuccess(id string, result Result) error {
	now := s.timeNow()

	res, err := s.db.Exec(`
		UPDATE download_jobs
		SET status = ?, result_path = ?, result_size = ?,
		    last_error = NULL, finished_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		JobStatusCompleted, result.Path, result.Size, now, now,
		id, JobStatusInProgress)
	if err != nil {
		err = errors.Wrap(err, "failed to record success")
		err = errors.WithDetailf(err, "Job ID: %s", id)
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check success update")
	}
	if affected == 0 {
		return errors.Newf("job %s is not in progress, cannot complete", id)
	}

	s.notifyJobByID(id)
	return nil
}

// RecordFailure transitions an in_progress job after a failed attempt.
// Terminal failures (non-retryable error class, or retries exhausted per
// the policy) move the job to failed; otherwise the job is re-queued with
// not_before pushed out by the policy's delay for this attempt. Returns
// the status the job ended up in.
func (s *Store) RecordFailure(id string, failure error, policy Policy, terminal bool) (JobStatus, error) {
	if failure == nil {
		return "", errors.New("failure error is required")
	}
	now := s.timeNow()

	tx, err := s.db.Begin()
	if err != nil {
		return "", errors.Wrap(err, "failed to begin failure transaction")
	}
	defer tx.Rollback()

	var attemptCount int
	err = tx.QueryRow(`
		SELECT attempt_count FROM download_jobs
		WHERE id = ? AND status = ?`,
		id, JobStatusInProgress).Scan(&attemptCount)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errors.Newf("job %s is not in progress, cannot record failure", id)
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to read attempt count for job %s", id)
	}

	next := JobStatusFailed
	delay, retryable := policy.NextDelay(attemptCount)
	if retryable && !terminal {
		next = JobStatusQueued
	}

	if next == JobStatusQueued {
		_, err = tx.Exec(`
			UPDATE download_jobs
			SET status = ?, not_before = ?, last_error = ?, updated_at = ?
			WHERE id = ?`,
			JobStatusQueued, now.Add(delay), failure.Error(), now, id)
	} else {
		_, err = tx.Exec(`
			UPDATE download_jobs
			SET status = ?, last_error = ?, finished_at = ?, updated_at = ?
			WHERE id = ?`,
			JobStatusFailed, failure.Error(), now, now, id)
	}
	if err != nil {
		err = errors.Wrap(err, "failed to record failure")
		err = errors.WithDetailf(err, "Job ID: %s", id)
		err = errors.WithDetailf(err, "Next status: %s", next)
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", errors.Wrap(err, "failed to commit failure transaction")
	}

	s.notifyJobByID(id)
	return next, nil
}

// GetJob retrieves a job by ID
func (s *Store) GetJob(id string) (*Job, error) {
	var job Job
	row := s.db.QueryRow(`SELECT `+jobSelectColumns+` FROM download_jobs WHERE id = ?`, id)
	err := scanJobFromRow(row, &job)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("job not found: %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get job")
	}
	return &job, nil
}

// ListFilter narrows ListJobs results. Zero values mean "no filter".
type ListFilter struct {
	Owner  string
	Status JobStatus
	Limit  int
}

// ListJobs returns jobs newest-first, filtered by owner and/or status.
func (s *Store) ListJobs(filter ListFilter) ([]*Job, error) {
	limit := filter.Limit
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}

	query := `SELECT ` + jobSelectColumns + ` FROM download_jobs WHERE 1=1`
	var args []interface{}
	if filter.Owner != "" {
		query += ` AND owner = ?`
		args = append(args, filter.Owner)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs")
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		var job Job
		if err := scanJobFromRows(rows, &job); err != nil {
			return nil, errors.Wrap(err, "failed to scan job")
		}
		jobs = append(jobs, &job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating jobs")
	}
	return jobs, nil
}

// ResetStuckJobs is the crash-recovery procedure: every in_progress row is
// forced back to queued with immediate eligibility. The in-flight attempt
// is treated as never having happened, so attempt_count is left alone; the
// fetcher's side effects are not tied to the store, and redoing work is
// safer than losing it. Idempotent: with no worker activity in between,
// running it twice equals running it once.
func (s *Store) ResetStuckJobs() (int, error) {
	now := s.timeNow()

	res, err := s.db.Exec(`
		UPDATE download_jobs
		SET status = ?, not_before = ?, updated_at = ?
		WHERE status = ?`,
		JobStatusQueued, now, now, JobStatusInProgress)
	if err != nil {
		return 0, errors.Wrap(err, "failed to reset stuck jobs")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to count reset jobs")
	}
	return int(affected), nil
}

// Stats holds per-status job counts.
type Stats struct {
	Queued     int `json:"queued"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

// GetStats returns queue statistics
func (s *Store) GetStats() (*Stats, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM download_jobs GROUP BY status`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count jobs")
	}
	defer rows.Close()

	stats := &Stats{}
	for rows.Next() {
		var status JobStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, errors.Wrap(err, "failed to scan job count")
		}
		switch status {
		case JobStatusQueued:
			stats.Queued = count
		case JobStatusInProgress:
			stats.InProgress = count
		case JobStatusCompleted:
			stats.Completed = count
		case JobStatusFailed:
			stats.Failed = count
		}
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating job counts")
	}
	return stats, nil
}

// RequeueFailed resets a terminally failed job back to queued with a fresh
// attempt budget. This is the manual-retry path exposed by the API; it is
// the one transition out of a terminal state, and only ever user-initiated.
func (s *Store) RequeueFailed(id string) error {
	now := s.timeNow()

	res, err := s.db.Exec(`
		UPDATE download_jobs
		SET status = ?, attempt_count = 0, not_before = ?,
		    finished_at = NULL, updated_at = ?
		WHERE id = ? AND status = ?`,
		JobStatusQueued, now, now, id, JobStatusFailed)
	if err != nil {
		err = errors.Wrap(err, "failed to requeue job")
		err = errors.WithDetailf(err, "Job ID: %s", id)
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check requeue update")
	}
	if affected == 0 {
		// Distinguish missing from wrong-state for the API layer.
		if _, err := s.GetJob(id); err != nil {
			return err
		}
		return errors.NewInvalidRequestError("only failed jobs can be retried")
	}

	s.notifyJobByID(id)
	return nil
}

// Subscribe returns a channel that receives job updates.
// The caller is responsible for calling Unsubscribe when done.
// The returned channel is buffered to prevent blocking the notifier.
func (s *Store) Subscribe() chan *Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan *Job, SubscriberChannelBufferSize)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber channel from the store.
// The channel is NOT closed by this method - callers should close it
// themselves after unsubscribing if needed.
func (s *Store) Unsubscribe(ch chan *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.subscribers {
		if sub == ch {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			return
		}
	}
}

// notifySubscribers sends job updates to all subscribers.
// Uses non-blocking send to avoid stalling if a subscriber is slow.
func (s *Store) notifySubscribers(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.subscribers {
		select {
		case ch <- job:
		default:
			// Channel full, skip
		}
	}
}

// notifyJobByID re-reads a job and notifies subscribers. Notification is
// best-effort; a read failure here never fails the mutation that triggered it.
func (s *Store) notifyJobByID(id string) {
	s.mu.Lock()
	hasSubscribers := len(s.subscribers) > 0
	s.mu.Unlock()
	if !hasSubscribers {
		return
	}

	job, err := s.GetJob(id)
	if err != nil {
		return
	}
	s.notifySubscribers(job)
}
