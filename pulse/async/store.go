package async

import (
	"database/sql"
	"time"

	"github.com/teranos/curio/errors"
)

// Store handles persistence of ingest jobs
type Store struct {
	db *sql.DB
}

// NewStore creates a new ingest job store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateJob inserts a new job into the database
func (s *Store) CreateJob(job *Job) error {
	query := `
		INSERT INTO ingest_jobs (
			id, handler_name, source, status,
			progress_current, progress_total,
			payload, error, retry_count,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	payload := sql.NullString{String: string(job.Payload), Valid: len(job.Payload) > 0}

	_, err := s.db.Exec(query,
		job.ID,
		job.HandlerName,
		job.Source,
		job.Status,
		job.Progress.Current,
		job.Progress.Total,
		payload,
		job.Error,
		job.RetryCount,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create job")
	}
	return nil
}

// GetJob retrieves a job by ID
func (s *Store) GetJob(id string) (*Job, error) {
	query := `SELECT ` + jobSelectColumns() + ` FROM ingest_jobs WHERE id = ?`

	var job Job
	args := &jobScanArgs{}
	err := s.db.QueryRow(query, id).Scan(jobScanTargets(&job, args)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrNotFound, "job %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get job")
	}
	applyJobScanArgs(&job, args)
	return &job, nil
}

// UpdateJob updates an existing job in the database
func (s *Store) UpdateJob(job *Job) error {
	query := `
		UPDATE ingest_jobs
		SET handler_name = ?,
		    payload = ?,
		    status = ?,
		    progress_current = ?,
		    progress_total = ?,
		    error = ?,
		    retry_count = ?,
		    started_at = ?,
		    completed_at = ?,
		    updated_at = ?
		WHERE id = ?
	`

	payload := sql.NullString{String: string(job.Payload), Valid: len(job.Payload) > 0}

	_, err := s.db.Exec(query,
		job.HandlerName,
		payload,
		job.Status,
		job.Progress.Current,
		job.Progress.Total,
		job.Error,
		job.RetryCount,
		job.StartedAt,
		job.CompletedAt,
		job.UpdatedAt,
		job.ID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update job")
	}
	return nil
}

// ListJobs returns jobs, optionally filtered by status, newest first
func (s *Store) ListJobs(status *JobStatus, limit int) ([]*Job, error) {
	var query string
	var args []interface{}

	baseQuery := `SELECT ` + jobSelectColumns() + ` FROM ingest_jobs`
	if status != nil {
		query = baseQuery + ` WHERE status = ? ORDER BY created_at DESC LIMIT ?`
		args = []interface{}{*status, limit}
	} else {
		query = baseQuery + ` ORDER BY created_at DESC LIMIT ?`
		args = []interface{}{limit}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs")
	}
	defer rows.Close()

	return scanJobs(rows)
}

// ListActiveJobs returns all jobs that are currently queued, running or paused
func (s *Store) ListActiveJobs(limit int) ([]*Job, error) {
	query := `SELECT ` + jobSelectColumns() + `
		FROM ingest_jobs
		WHERE status IN ('queued', 'running', 'paused')
		ORDER BY created_at DESC
		LIMIT ?`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list active jobs")
	}
	defer rows.Close()

	return scanJobs(rows)
}

// NextQueuedJob returns the oldest queued job, or nil when the queue is
// drained.
func (s *Store) NextQueuedJob() (*Job, error) {
	query := `SELECT ` + jobSelectColumns() + `
		FROM ingest_jobs
		WHERE status = 'queued'
		ORDER BY created_at ASC
		LIMIT 1`

	var job Job
	args := &jobScanArgs{}
	err := s.db.QueryRow(query).Scan(jobScanTargets(&job, args)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get next queued job")
	}
	applyJobScanArgs(&job, args)
	return &job, nil
}

// scanJobs is a helper that scans multiple jobs from query rows
func scanJobs(rows *sql.Rows) ([]*Job, error) {
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

// DeleteJob removes a job from the database
func (s *Store) DeleteJob(id string) error {
	result, err := s.db.Exec(`DELETE FROM ingest_jobs WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete job")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.Wrapf(errors.ErrNotFound, "job %s", id)
	}
	return nil
}

// CleanupOldJobs removes completed/failed jobs older than the specified duration
func (s *Store) CleanupOldJobs(olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)

	result, err := s.db.Exec(`
		DELETE FROM ingest_jobs
		WHERE status IN ('completed', 'failed')
		  AND updated_at < ?`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "failed to cleanup old jobs")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}
	return int(rows), nil
}

// FindActiveJobBySourceAndHandler finds an active (queued, running, or paused)
// job for a source and handler. Returns nil if none, enabling enqueue-time
// deduplication of repeated scrapes.
func (s *Store) FindActiveJobBySourceAndHandler(source string, handlerName string) (*Job, error) {
	query := `SELECT ` + jobSelectColumns() + `
		FROM ingest_jobs
		WHERE source = ?
		  AND handler_name = ?
		  AND status IN ('queued', 'running', 'paused')
		ORDER BY created_at DESC
		LIMIT 1`

	var job Job
	args := &jobScanArgs{}
	err := s.db.QueryRow(query, source, handlerName).Scan(jobScanTargets(&job, args)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find active job")
	}
	applyJobScanArgs(&job, args)
	return &job, nil
}
