package async

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/teranos/curio/errors"
)

const (
	// MaxJobsLimit is the maximum number of jobs that can be queued
	MaxJobsLimit = 10000
	// SubscriberChannelBufferSize is the buffer size for subscriber channels
	SubscriberChannelBufferSize = 100
)

// Queue is the durable job queue. All state lives in SQLite; the mutex
// only serializes in-process access and the subscriber list.
type Queue struct {
	store       *Store
	mu          sync.RWMutex
	subscribers []chan *Job // Channels to notify of job updates
}

// NewQueue creates a new job queue
func NewQueue(db *sql.DB) *Queue {
	return &Queue{
		store:       NewStore(db),
		subscribers: make([]chan *Job, 0),
	}
}

// Enqueue adds a new job to the queue
func (q *Queue) Enqueue(job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.store.CreateJob(job); err != nil {
		err = errors.Wrap(err, "failed to enqueue job")
		err = errors.WithDetail(err, fmt.Sprintf("Job ID: %s", job.ID))
		err = errors.WithDetail(err, fmt.Sprintf("Handler: %s", job.HandlerName))
		err = errors.WithDetail(err, fmt.Sprintf("Source: %s", job.Source))
		return err
	}

	q.notifySubscribers(job)
	return nil
}

// Dequeue gets the next queued job and marks it as running
func (q *Queue) Dequeue() (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	// Get the oldest queued job
	job, err := q.store.NextQueuedJob()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get queued jobs")
	}
	if job == nil {
		return nil, nil // No jobs available
	}

	job.Start()

	if err := q.store.UpdateJob(job); err != nil {
		err = errors.Wrap(err, "failed to mark job as running")
		err = errors.WithDetail(err, fmt.Sprintf("Job ID: %s", job.ID))
		return nil, err
	}

	q.notifySubscribers(job)
	return job, nil
}

// GetJob retrieves a job by ID
func (q *Queue) GetJob(id string) (*Job, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.store.GetJob(id)
}

// UpdateJob updates a job's state
func (q *Queue) UpdateJob(job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.store.UpdateJob(job); err != nil {
		err = errors.Wrap(err, "failed to update job")
		err = errors.WithDetail(err, fmt.Sprintf("Job ID: %s", job.ID))
		err = errors.WithDetail(err, fmt.Sprintf("Status: %s", job.Status))
		return err
	}

	q.notifySubscribers(job)
	return nil
}

// PauseJob pauses a running job
func (q *Queue) PauseJob(id string, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, err := q.store.GetJob(id)
	if err != nil {
		return errors.Wrapf(err, "failed to pause job %s", id)
	}

	if job.Status != JobStatusRunning {
		return errors.Newf("job %s is not running (status: %s)", id, job.Status)
	}

	job.Pause(reason)

	if err := q.store.UpdateJob(job); err != nil {
		err = errors.Wrap(err, "failed to pause job")
		err = errors.WithDetail(err, fmt.Sprintf("Job ID: %s", job.ID))
		err = errors.WithDetail(err, fmt.Sprintf("Pause reason: %s", reason))
		return err
	}

	q.notifySubscribers(job)
	return nil
}

// ResumeJob resumes a paused job
func (q *Queue) ResumeJob(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, err := q.store.GetJob(id)
	if err != nil {
		return errors.Wrapf(err, "failed to resume job %s", id)
	}

	if job.Status != JobStatusPaused {
		return errors.Newf("job %s is not paused (status: %s)", id, job.Status)
	}

	job.Resume()

	if err := q.store.UpdateJob(job); err != nil {
		err = errors.Wrap(err, "failed to resume job")
		err = errors.WithDetail(err, fmt.Sprintf("Job ID: %s", job.ID))
		return err
	}

	q.notifySubscribers(job)
	return nil
}

// CompleteJob marks a job as completed
func (q *Queue) CompleteJob(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, err := q.store.GetJob(id)
	if err != nil {
		return errors.Wrapf(err, "failed to complete job %s", id)
	}

	job.Complete()

	if err := q.store.UpdateJob(job); err != nil {
		err = errors.Wrap(err, "failed to complete job")
		err = errors.WithDetail(err, fmt.Sprintf("Job ID: %s", job.ID))
		return err
	}

	q.notifySubscribers(job)
	return nil
}

// FailJob marks a job as failed with an error
func (q *Queue) FailJob(id string, jobErr error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, err := q.store.GetJob(id)
	if err != nil {
		return errors.Wrapf(err, "failed to mark job %s as failed", id)
	}

	job.Fail(jobErr)

	if err := q.store.UpdateJob(job); err != nil {
		err = errors.Wrap(err, "failed to mark job as failed")
		err = errors.WithDetail(err, fmt.Sprintf("Job ID: %s", job.ID))
		err = errors.WithDetail(err, fmt.Sprintf("Job error: %s", jobErr.Error()))
		return err
	}

	q.notifySubscribers(job)
	return nil
}

// RequeueJob puts a job back in the queue for a retry attempt
func (q *Queue) RequeueJob(job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job.Requeue()

	if err := q.store.UpdateJob(job); err != nil {
		err = errors.Wrap(err, "failed to requeue job")
		err = errors.WithDetail(err, fmt.Sprintf("Job ID: %s", job.ID))
		err = errors.WithDetail(err, fmt.Sprintf("Retry count: %d", job.RetryCount))
		return err
	}

	q.notifySubscribers(job)
	return nil
}

// DeleteJob removes a job from the queue
func (q *Queue) DeleteJob(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.store.DeleteJob(id)
}

// ListJobs returns jobs, optionally filtered by status
func (q *Queue) ListJobs(status *JobStatus, limit int) ([]*Job, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.store.ListJobs(status, limit)
}

// ListActiveJobs returns all active (queued, running, paused) jobs
func (q *Queue) ListActiveJobs(limit int) ([]*Job, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.store.ListActiveJobs(limit)
}

// FindActiveJobBySourceAndHandler finds an active job for a source and
// handler, or nil.
func (q *Queue) FindActiveJobBySourceAndHandler(source string, handlerName string) (*Job, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.store.FindActiveJobBySourceAndHandler(source, handlerName)
}

// Cleanup removes old completed/failed jobs
func (q *Queue) Cleanup(olderThan time.Duration) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.store.CleanupOldJobs(olderThan)
}

// Subscribe returns a channel that receives job updates.
// The caller is responsible for calling Unsubscribe when done.
// The returned channel is buffered to prevent blocking the notifier.
func (q *Queue) Subscribe() chan *Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	ch := make(chan *Job, SubscriberChannelBufferSize)
	q.subscribers = append(q.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber channel from the queue.
// The channel is NOT closed by this method - callers should close it
// themselves after unsubscribing if needed.
func (q *Queue) Unsubscribe(ch chan *Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, sub := range q.subscribers {
		if sub == ch {
			q.subscribers = append(q.subscribers[:i], q.subscribers[i+1:]...)
			return
		}
	}
}

// notifySubscribers sends job updates to all subscribers.
// REQUIRES: q.mu must be held by caller.
// Uses non-blocking send to avoid stalling if a subscriber is slow.
func (q *Queue) notifySubscribers(job *Job) {
	for _, ch := range q.subscribers {
		select {
		case ch <- job:
		default:
			// Channel full, skip
		}
	}
}

// QueueStats returns statistics about the queue
type QueueStats struct {
	Queued    int `json:"queued"`
	Running   int `json:"running"`
	Paused    int `json:"paused"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

// GetStats returns queue statistics
func (q *Queue) GetStats() (*QueueStats, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	stats := &QueueStats{}
	for _, status := range []JobStatus{JobStatusQueued, JobStatusRunning, JobStatusPaused, JobStatusCompleted, JobStatusFailed} {
		jobs, err := q.store.ListJobs(&status, MaxJobsLimit)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to count %s jobs", status)
		}

		count := len(jobs)
		switch status {
		case JobStatusQueued:
			stats.Queued = count
		case JobStatusRunning:
			stats.Running = count
		case JobStatusPaused:
			stats.Paused = count
		case JobStatusCompleted:
			stats.Completed = count
		case JobStatusFailed:
			stats.Failed = count
		}
		stats.Total += count
	}
	return stats, nil
}

// GetJobCounts returns quick counts of queued and running jobs (for system metrics)
func (q *Queue) GetJobCounts() (queued int, running int, err error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	queuedStatus := JobStatusQueued
	runningStatus := JobStatusRunning

	queuedJobs, err := q.store.ListJobs(&queuedStatus, MaxJobsLimit)
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to count queued jobs")
	}
	runningJobs, err := q.store.ListJobs(&runningStatus, MaxJobsLimit)
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to count running jobs")
	}
	return len(queuedJobs), len(runningJobs), nil
}
