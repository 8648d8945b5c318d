package async

import (
	"database/sql"
)

// jobScanArgs holds the nullable columns scanned from an ingest_jobs row.
type jobScanArgs struct {
	Payload     sql.NullString
	StartedAt   sql.NullTime
	CompletedAt sql.NullTime
}

// jobScanTargets returns scan destinations for the job and its nullable
// columns, in the order produced by jobSelectColumns.
func jobScanTargets(job *Job, args *jobScanArgs) []interface{} {
	return []interface{}{
		&job.ID,
		&job.HandlerName,
		&job.Source,
		&job.Status,
		&job.Progress.Current,
		&job.Progress.Total,
		&args.Payload,
		&job.Error,
		&job.RetryCount,
		&job.CreatedAt,
		&args.StartedAt,
		&args.CompletedAt,
		&job.UpdatedAt,
	}
}

// applyJobScanArgs copies scanned nullable columns onto the job.
func applyJobScanArgs(job *Job, args *jobScanArgs) {
	if args.Payload.Valid {
		job.Payload = []byte(args.Payload.String)
	}
	if args.StartedAt.Valid {
		job.StartedAt = &args.StartedAt.Time
	}
	if args.CompletedAt.Valid {
		job.CompletedAt = &args.CompletedAt.Time
	}
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

// jobSelectColumns returns the standard column list for job SELECT queries
func jobSelectColumns() string {
	return `id, handler_name, source, status,
		progress_current, progress_total,
		payload, error, retry_count,
		created_at, started_at, completed_at, updated_at`
}
