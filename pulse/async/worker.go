package async

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/curio/db"
	"github.com/teranos/curio/errors"
	"github.com/teranos/curio/sym"
)

const (
	// MaxOrphanedJobsToRecover limits how many orphaned jobs we'll attempt
	// to recover on startup to prevent overwhelming the system after a crash
	MaxOrphanedJobsToRecover = 1000

	// MaxRetries is the maximum number of retry attempts for failed jobs
	MaxRetries = 2
)

// pulseLogger wraps zap.SugaredLogger with methods for pulse lifecycle
// events. Opening events log at DEBUG, closing events at WARN, so the two
// phases read differently in the console.
type pulseLogger struct {
	*zap.SugaredLogger
}

// Starting logs an opening event
func (l pulseLogger) Starting(msg string, keysAndValues ...interface{}) {
	l.Debugw(sym.PulseOpen+" "+msg, keysAndValues...)
}

// Closing logs a closing event
func (l pulseLogger) Closing(msg string, keysAndValues ...interface{}) {
	l.Warnw(sym.PulseClose+" "+msg, keysAndValues...)
}

// Pulse logs general worker/daemon operations
func (l pulseLogger) Pulse(msg string, keysAndValues ...interface{}) {
	l.Infow(msg, keysAndValues...)
}

// WorkerPool manages a pool of workers that drain the ingest job queue.
type WorkerPool struct {
	queue         *Queue
	rateLimiter   *rate.Limiter // Source politeness gate (optional - can be nil)
	poolConfig    WorkerPoolConfig
	workers       int
	parentCtx     context.Context // Parent context from which worker context is derived
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	executor      JobExecutor
	activeWorkers int // Workers currently executing jobs
	startTime     time.Time
	logger        pulseLogger
	mu            sync.Mutex
}

// WorkerPoolConfig contains configuration for the worker pool
type WorkerPoolConfig struct {
	Workers          int           `json:"workers"`            // Number of concurrent workers
	PollInterval     time.Duration `json:"poll_interval"`      // How often to check for new jobs
	RatePerSecond    float64       `json:"rate_per_second"`    // Job starts per second (0 disables)
	RecoveryInterval time.Duration `json:"recovery_interval"`  // Delay between orphan requeues
	StopTimeout      time.Duration `json:"stop_timeout"`       // Grace period for Stop()
}

// DefaultWorkerPoolConfig returns sensible defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		Workers:          2,
		PollInterval:     5 * time.Second,
		RatePerSecond:    1,
		RecoveryInterval: time.Second,
		StopTimeout:      30 * time.Second,
	}
}

// NewWorkerPool creates a worker pool over the primary database's job
// queue. Callers must register handlers on the registry before Start().
//
// The parent context enables shutdown coordination: when the server
// cancels its root context, workers detect cancellation via ctx.Done(),
// checkpoint progress and exit cleanly.
func NewWorkerPool(ctx context.Context, database *sql.DB, poolCfg WorkerPoolConfig, registry *HandlerRegistry, logger *zap.SugaredLogger) *WorkerPool {
	workerCtx, cancel := context.WithCancel(ctx)

	var limiter *rate.Limiter
	if poolCfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(poolCfg.RatePerSecond), 1)
	}

	return &WorkerPool{
		queue:       NewQueue(database),
		rateLimiter: limiter,
		poolConfig:  poolCfg,
		workers:     poolCfg.Workers,
		parentCtx:   ctx,
		ctx:         workerCtx,
		cancel:      cancel,
		executor:    NewRegistryExecutor(registry),
		logger:      pulseLogger{logger.Named("pulse")},
	}
}

// Start begins processing jobs with the worker pool.
// Orphaned jobs from a previous crash are recovered before workers spawn.
func (wp *WorkerPool) Start() {
	wp.mu.Lock()

	// Recreate the context if Stop() already cancelled it. Must happen
	// before spawning workers to avoid races.
	select {
	case <-wp.ctx.Done():
		wp.ctx, wp.cancel = context.WithCancel(wp.parentCtx)
		wp.logger.Starting("Recreated worker context after previous shutdown")
	default:
	}

	wp.startTime = time.Now()
	wp.mu.Unlock()

	if err := wp.recoverOrphanedJobs(); err != nil {
		wp.logger.SugaredLogger.Warnw("Failed to recover orphaned jobs", "error", err)
		// Continue starting workers even if recovery fails
	}

	if warning := wp.checkMemoryPressure(); warning != "" {
		wp.logger.SugaredLogger.Warnw("Memory pressure warning", "warning", warning, "workers", wp.workers)
	}

	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// recoverOrphanedJobs finds jobs stuck in "running" state and re-queues
// them. This handles ungraceful shutdowns (crash, kill -9, power loss).
// The first job is recovered immediately; the rest are staggered in the
// background so a crash with a deep running set doesn't stampede the
// stores on restart.
func (wp *WorkerPool) recoverOrphanedJobs() error {
	runningStatus := JobStatusRunning
	orphanedJobs, err := wp.queue.ListJobs(&runningStatus, MaxOrphanedJobsToRecover)
	if err != nil {
		return errors.Wrap(err, "failed to list running jobs")
	}

	if len(orphanedJobs) == 0 {
		return nil
	}

	wp.logger.Starting("Found orphaned jobs from previous crash", "count", len(orphanedJobs))

	if err := wp.requeueOrphanedJob(orphanedJobs[0]); err != nil {
		wp.logger.SugaredLogger.Warnw("Failed to recover orphaned job", "job_id", orphanedJobs[0].ID, "error", err)
	}

	if len(orphanedJobs) > 1 {
		wp.logger.Starting("Will gradually recover remaining jobs", "count", len(orphanedJobs)-1)
		go wp.gradualRecovery(orphanedJobs[1:])
	}

	return nil
}

// requeueOrphanedJob re-queues a single orphaned job
func (wp *WorkerPool) requeueOrphanedJob(job *Job) error {
	job.Status = JobStatusQueued
	job.Error = "" // Clear any stale error message

	if err := wp.queue.UpdateJob(job); err != nil {
		return errors.Wrapf(err, "failed to update recovered job %s", job.ID)
	}

	wp.logger.Starting("Recovered orphaned job", "job_id", job.ID, "handler", job.HandlerName)
	return nil
}

// gradualRecovery re-queues orphaned jobs with a delay between each
func (wp *WorkerPool) gradualRecovery(jobs []*Job) {
	interval := wp.poolConfig.RecoveryInterval
	if interval <= 0 {
		interval = time.Second
	}

	recovered := 0
	for i, job := range jobs {
		select {
		case <-wp.ctx.Done():
			wp.logger.Closing("Gradual recovery cancelled", "recovered", recovered, "total", len(jobs))
			return
		default:
		}

		if err := wp.requeueOrphanedJob(job); err != nil {
			wp.logger.SugaredLogger.Warnw("Failed to recover job", "job_id", job.ID, "error", err)
			continue
		}
		recovered++

		if i < len(jobs)-1 {
			time.Sleep(interval)
		}
	}
	wp.logger.Starting("Gradual recovery complete", "recovered", recovered, "total", len(jobs))
}

// Stop gracefully stops the worker pool. Workers checkpoint and exit on
// context cancellation, bounded by the configured stop timeout so shutdown
// never blocks indefinitely.
func (wp *WorkerPool) Stop() {
	wp.cancel()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	timeout := wp.poolConfig.StopTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	select {
	case <-done:
		wp.logger.Pulse(sym.PulseClose + " WorkerPool stopped - all workers exited cleanly")
	case <-time.After(timeout):
		wp.logger.Closing("WorkerPool stop timeout - workers may still be checkpointing", "timeout", timeout)
	}
}

// worker polls the queue and processes jobs until the context is cancelled
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	interval := wp.poolConfig.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Error backoff state
	errorCount := 0
	const maxConsecutiveErrors = 5
	backoffDuration := time.Second
	const maxBackoff = 30 * time.Second

	for {
		select {
		case <-wp.ctx.Done():
			return
		case <-ticker.C:
			if err := wp.processNextJob(); err != nil {
				select {
				case <-wp.ctx.Done():
					// Context cancelled - exit silently
					return
				default:
					if errors.Is(err, sql.ErrConnDone) || db.IsDatabaseClosed(err) {
						// Database closed during shutdown - exit silently
						return
					}
					errorCount++
					wp.logger.SugaredLogger.Errorw("Worker error processing job",
						"worker_id", id,
						"error", err,
						"consecutive_errors", errorCount)

					if errorCount >= maxConsecutiveErrors {
						wp.logger.SugaredLogger.Warnw("Worker backing off due to consecutive errors",
							"worker_id", id,
							"backoff", backoffDuration,
							"consecutive_errors", errorCount)
						time.Sleep(backoffDuration)
						backoffDuration = min(backoffDuration*2, maxBackoff)
					}
				}
			} else {
				if errorCount > 0 {
					wp.logger.SugaredLogger.Infow("Worker recovered from errors",
						"worker_id", id,
						"previous_error_count", errorCount)
				}
				errorCount = 0
				backoffDuration = time.Second
			}
		}
	}
}

// processNextJob gets the next job from the queue and processes it
func (wp *WorkerPool) processNextJob() error {
	select {
	case <-wp.ctx.Done():
		return nil // Graceful shutdown - don't process new jobs
	default:
	}

	job, err := wp.queue.Dequeue()
	if err != nil {
		return errors.Wrap(err, "failed to dequeue job")
	}
	if job == nil {
		return nil // No jobs available
	}

	// Politeness gate: pace job starts so a burst of enqueued batches
	// doesn't hammer the source stores all at once.
	if wp.rateLimiter != nil {
		if err := wp.rateLimiter.Wait(wp.ctx); err != nil {
			// Cancelled while waiting - requeue untouched
			job.Status = JobStatusQueued
			return wp.queue.UpdateJob(job)
		}
	}

	wp.mu.Lock()
	wp.activeWorkers++
	wp.mu.Unlock()
	defer func() {
		wp.mu.Lock()
		wp.activeWorkers--
		wp.mu.Unlock()
	}()

	if err := wp.executor.Execute(wp.ctx, job); err != nil {
		select {
		case <-wp.ctx.Done():
			// Context was cancelled - requeue with checkpointed progress
			// intact instead of failing the job.
			wp.logger.Closing("Job cancelled during execution, re-queuing with checkpoint", "job_id", job.ID)
			job.Status = JobStatusQueued
			if updateErr := wp.queue.UpdateJob(job); updateErr != nil {
				wp.logger.SugaredLogger.Errorw("Failed to re-queue cancelled job", "job_id", job.ID, "error", updateErr)
			}
			return nil
		default:
		}

		if job.RetryCount < MaxRetries {
			wp.logger.SugaredLogger.Warnw(sym.Pulse+" Job failed, retrying",
				"job_id", job.ID,
				"retry_count", job.RetryCount+1,
				"max_retries", MaxRetries,
				"error", err)
			return wp.queue.RequeueJob(job)
		}
		return wp.queue.FailJob(job.ID, err)
	}

	return wp.queue.CompleteJob(job.ID)
}

// GetQueue returns the job queue (useful for enqueuing jobs)
func (wp *WorkerPool) GetQueue() *Queue {
	return wp.queue
}

// Workers returns the number of concurrent workers configured for this pool
func (wp *WorkerPool) Workers() int {
	return wp.workers
}
