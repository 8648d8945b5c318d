package server

// Broadcast plumbing: job progress from the queue subscription and a
// periodic pipeline status summary over the two stores, both pushed to
// every connected WebSocket client.

import (
	"fmt"
	"time"

	"github.com/teranos/curio/pulse/async"
)

// startJobUpdateBroadcaster subscribes to job queue updates and broadcasts them to WebSocket clients
func (s *CurioServer) startJobUpdateBroadcaster() {
	jobChan := s.daemon.GetQueue().Subscribe()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			// Unsubscribe first (removes from list), then close.
			// Order matters: closing while still subscribed could panic on send
			s.daemon.GetQueue().Unsubscribe(jobChan)
			close(jobChan)
		}()

		for {
			select {
			case <-s.ctx.Done():
				s.logger.Debugw("Job update broadcaster stopping due to context cancellation")
				return
			case job := <-jobChan:
				s.broadcastJobUpdate(job)
			}
		}
	}()

	s.logger.Infow("Job update broadcaster started")
}

// startStatusBroadcaster periodically broadcasts pipeline status to WebSocket clients.
// Uses adaptive polling: fast updates when busy, slow updates when idle.
func (s *CurioServer) startStatusBroadcaster() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		currentState := PipelineIdle
		interval := s.getIntervalForPipelineState(currentState)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				s.logger.Debugw("Status broadcaster stopping due to context cancellation")
				return
			case <-ticker.C:
				s.mu.RLock()
				hasClients := len(s.clients) > 0
				s.mu.RUnlock()

				if !hasClients {
					continue
				}

				newState := s.detectPipelineState()
				if newState != currentState {
					currentState = newState
					interval = s.getIntervalForPipelineState(currentState)
					ticker.Reset(interval)

					s.logger.Debugw("Pipeline activity state changed, adjusted poll interval",
						"state", currentState,
						"interval", interval,
					)
				}

				s.broadcastPipelineStatus()
			}
		}
	}()

	s.logger.Infow("Adaptive status broadcaster started")
}

// broadcastJobUpdate sends a job update to all connected clients
func (s *CurioServer) broadcastJobUpdate(job *async.Job) {
	msg := JobUpdateMessage{
		Type: "job_update",
		Job:  job,
		Metadata: map[string]interface{}{
			"timestamp": time.Now().Unix(),
		},
	}

	sent := s.broadcastMessage(msg)

	s.logger.Debugw("Broadcasted job update",
		"job_id", shortID(job.ID),
		"status", job.Status,
		"progress", fmt.Sprintf("%d/%d", job.Progress.Current, job.Progress.Total),
		"clients", sent,
	)
}

// broadcastPipelineStatus sends queue depth and store counts to all connected clients
func (s *CurioServer) broadcastPipelineStatus() {
	stats, err := s.daemon.GetQueue().GetStats()
	if err != nil {
		s.logger.Debugw("Failed to get queue stats", "error", err)
		return
	}

	itemCount, _, err := s.items.Stats(s.ctx)
	if err != nil {
		s.logger.Debugw("Failed to get item stats", "error", err)
		return
	}

	deadCount, err := s.deadLetters.Count(s.ctx)
	if err != nil {
		s.logger.Debugw("Failed to get dead letter count", "error", err)
		return
	}

	activeJobs := stats.Running + stats.Queued

	// Skip broadcast if nothing changed (with lock for lastStatus access)
	s.mu.Lock()
	if !s.statusHasChangedLocked(activeJobs, stats.Queued, itemCount, deadCount) {
		s.mu.Unlock()
		return
	}
	s.lastStatus = &cachedPipelineStatus{
		activeJobs:  activeJobs,
		queuedJobs:  stats.Queued,
		items:       itemCount,
		deadLetters: deadCount,
	}
	s.mu.Unlock()

	msg := PipelineStatusMessage{
		Type:        "pipeline_status",
		Running:     true,
		ActiveJobs:  activeJobs,
		QueuedJobs:  stats.Queued,
		Items:       itemCount,
		DeadLetters: deadCount,
		ServerState: stateString(s.getState()),
		Timestamp:   time.Now().Unix(),
	}

	sent := s.broadcastMessage(msg)

	s.logger.Debugw("Broadcasted pipeline status",
		"active_jobs", msg.ActiveJobs,
		"queued_jobs", msg.QueuedJobs,
		"items", msg.Items,
		"clients", sent,
	)
}

// detectPipelineState determines the current activity level for adaptive polling
func (s *CurioServer) detectPipelineState() PipelineState {
	stats, err := s.daemon.GetQueue().GetStats()
	if err != nil {
		return PipelineIdle
	}

	if stats.Queued > 5 || stats.Running > 2 {
		return PipelineBusy
	}
	if stats.Running > 0 || stats.Queued > 0 {
		return PipelineActive
	}
	return PipelineIdle
}

// getIntervalForPipelineState returns the polling interval for a given activity state
func (s *CurioServer) getIntervalForPipelineState(state PipelineState) time.Duration {
	switch state {
	case PipelineBusy:
		return 1 * time.Second
	case PipelineActive:
		return 5 * time.Second
	case PipelineIdle:
		return 30 * time.Second
	default:
		return 10 * time.Second
	}
}

// statusHasChangedLocked checks if the pipeline status has changed since last broadcast.
// REQUIRES: s.mu must be held by caller.
func (s *CurioServer) statusHasChangedLocked(activeJobs, queuedJobs, items, deadLetters int) bool {
	if s.lastStatus == nil {
		return true // first broadcast always sends
	}
	return s.lastStatus.activeJobs != activeJobs ||
		s.lastStatus.queuedJobs != queuedJobs ||
		s.lastStatus.items != items ||
		s.lastStatus.deadLetters != deadLetters
}
