package server

import (
	"time"

	"github.com/teranos/curio/pulse/async"
)

const (
	// MaxClients is the maximum number of concurrent WebSocket clients
	MaxClients = 100
	// ClientQueueSize is the size of per-client message queues
	ClientQueueSize = 256
	// ShutdownTimeout is how long to wait for graceful shutdown. Generous
	// because WorkerPool.Stop may wait for a batch checkpoint to land.
	ShutdownTimeout = 60 * time.Second
)

// PipelineState represents the activity level of the ingest pipeline for
// adaptive status polling.
type PipelineState int

const (
	PipelineIdle   PipelineState = iota // no jobs, no recent activity
	PipelineActive                      // jobs running or queued
	PipelineBusy                        // high load
)

// ServerState represents the server lifecycle state
type ServerState int

const (
	ServerStateRunning  ServerState = iota // normal operation
	ServerStateDraining                    // graceful shutdown in progress
	ServerStateStopped                     // shutdown complete
)

// cachedPipelineStatus tracks the last broadcast status to detect changes
type cachedPipelineStatus struct {
	activeJobs  int
	queuedJobs  int
	items       int
	deadLetters int
}

// ClientMessage represents a message from a WebSocket client
type ClientMessage struct {
	Type   string `json:"type"`   // "job_control", "ping"
	Action string `json:"action"` // for job_control: "pause", "resume", "details"
	JobID  string `json:"job_id"` // for job_control
	Reason string `json:"reason"` // for job_control pause: optional operator note
}

// JobUpdateMessage carries async ingest job progress to clients
type JobUpdateMessage struct {
	Type     string                 `json:"type"` // "job_update" or "job_details"
	Job      *async.Job             `json:"job"`
	Metadata map[string]interface{} `json:"metadata"`
}

// PipelineStatusMessage summarizes queue depth and store counts for clients
type PipelineStatusMessage struct {
	Type        string `json:"type"` // "pipeline_status"
	Running     bool   `json:"running"`
	ActiveJobs  int    `json:"active_jobs"`
	QueuedJobs  int    `json:"queued_jobs"`
	Items       int    `json:"items"`
	DeadLetters int    `json:"dead_letters"`
	ServerState string `json:"server_state"`
	Timestamp   int64  `json:"timestamp"`
}
