// Package async provides the SQLite-backed ingest job pipeline: a durable
// queue of raw listing batches drained by a worker pool under pulse control.
package async

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/curio/errors"
)

// JobStatus represents the current state of a job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusPaused    JobStatus = "paused"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsValidStatus returns true if the status string is a valid JobStatus
func IsValidStatus(s string) bool {
	switch JobStatus(s) {
	case JobStatusQueued, JobStatusRunning, JobStatusPaused,
		JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// Progress represents job progress information
type Progress struct {
	Current int `json:"current,omitempty"` // Listings processed
	Total   int `json:"total,omitempty"`   // Listings in the batch
}

// Percentage calculates progress as a percentage (0-100)
func (p Progress) Percentage() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Current) / float64(p.Total) * 100
}

// Job represents one async ingest operation, typically a batch of raw
// listings from a single source.
//
// The pipeline itself is domain-agnostic: HandlerName identifies which
// registered handler executes the job, and Payload carries handler-specific
// data the infrastructure never interprets.
type Job struct {
	ID          string          `json:"id"`
	HandlerName string          `json:"handler_name"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Source      string          `json:"source"` // For deduplication and logging
	Status      JobStatus       `json:"status"`
	Progress    Progress        `json:"progress,omitempty"`
	Error       string          `json:"error,omitempty"`
	RetryCount  int             `json:"retry_count,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewJob creates a queued job with a typed payload.
//
// Example:
//
//	payload, _ := json.Marshal(BatchPayload{Listings: listings})
//	job, _ := async.NewJob("ingest.batch", "craigslist", payload, len(listings))
func NewJob(handlerName string, source string, payload json.RawMessage, totalOps int) (*Job, error) {
	if handlerName == "" {
		return nil, errors.New("handlerName cannot be empty")
	}

	now := time.Now()
	return &Job{
		ID:          uuid.NewString(),
		HandlerName: handlerName,
		Payload:     payload,
		Source:      source,
		Status:      JobStatusQueued,
		Progress:    Progress{Current: 0, Total: totalOps},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Start marks the job as running
func (j *Job) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.UpdatedAt = now
}

// Pause marks the job as paused
func (j *Job) Pause(reason string) {
	j.Status = JobStatusPaused
	j.Error = reason
	j.UpdatedAt = time.Now()
}

// Resume marks the job as running again
func (j *Job) Resume() {
	j.Status = JobStatusRunning
	j.Error = ""
	j.UpdatedAt = time.Now()
}

// Complete marks the job as completed
func (j *Job) Complete() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// Fail marks the job as failed with an error message
func (j *Job) Fail(err error) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.Error = err.Error()
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// Cancel marks the job as cancelled with a reason
func (j *Job) Cancel(reason string) {
	now := time.Now()
	j.Status = JobStatusCancelled
	j.Error = reason
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// Requeue puts a failed attempt back in the queue for another try
func (j *Job) Requeue() {
	j.Status = JobStatusQueued
	j.RetryCount++
	j.StartedAt = nil
	j.UpdatedAt = time.Now()
}

// UpdateProgress updates the job's progress
func (j *Job) UpdateProgress(current int) {
	j.Progress.Current = current
	j.UpdatedAt = time.Now()
}
