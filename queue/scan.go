package queue

import (
	"database/sql"
)

// jobSelectColumns is the standard column list for job SELECT queries,
// in the order expected by the scan helpers below.
const jobSelectColumns = `id, source_url, owner, status,
	attempt_count, not_before,
	last_error, result_path, result_size,
	created_at, updated_at, started_at, finished_at`

// jobScanArgs holds the nullable intermediates needed when scanning a job row.
type jobScanArgs struct {
	LastError  sql.NullString
	ResultPath sql.NullString
	ResultSize sql.NullInt64
	StartedAt  sql.NullTime
	FinishedAt sql.NullTime
}

// jobScanTargets returns scan destinations for the job and its nullable
// columns, matching jobSelectColumns order.
func jobScanTargets(job *Job, args *jobScanArgs) []interface{} {
	return []interface{}{
		&job.ID,
		&job.SourceURL,
		&job.Owner,
		&job.Status,
		&job.AttemptCount,
		&job.NotBefore,
		&args.LastError,
		&args.ResultPath,
		&args.ResultSize,
		&job.CreatedAt,
		&job.UpdatedAt,
		&args.StartedAt,
		&args.FinishedAt,
	}
}

// applyJobScanArgs moves scanned nullable values onto the job struct.
func applyJobScanArgs(job *Job, args *jobScanArgs) {
	if args.LastError.Valid {
		job.LastError = args.LastError.String
	}
	if args.ResultPath.Valid {
		job.ResultPath = args.ResultPath.String
	}
	if args.ResultSize.Valid {
		job.ResultSize = args.ResultSize.Int64
	}
	if args.StartedAt.Valid {
		job.StartedAt = &args.StartedAt.Time
	}
	if args.FinishedAt.Valid {
		job.FinishedAt = &args.FinishedAt.Time
	}
}

// scanJobFromRow scans a single job from a sql.Row
func scanJobFromRow(row *sql.Row, job *Job) error {
	args := &jobScanArgs{}
	if err := row.Scan(jobScanTargets(job, args)...); err != nil {
		return err
	}
	applyJobScanArgs(job, args)
	return nil
}

// scanJobFromRows scans a single job from sql.Rows (for use in loops)
func scanJobFromRows(rows *sql.Rows, job *Job) error {
	args := &jobScanArgs{}
	if err := rows.Scan(jobScanTargets(job, args)...); err != nil {
		return err
	}
	applyJobScanArgs(job, args)
	return nil
}
