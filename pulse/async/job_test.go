package async

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/curio/errors"
)

func TestNewJob(t *testing.T) {
	job, err := NewJob(HandlerNameBatch, "craigslist", []byte(`{"listings":[]}`), 10)
	require.NoError(t, err)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, HandlerNameBatch, job.HandlerName)
	assert.Equal(t, "craigslist", job.Source)
	assert.Equal(t, JobStatusQueued, job.Status)
	assert.Equal(t, 0, job.Progress.Current)
	assert.Equal(t, 10, job.Progress.Total)
	assert.False(t, job.CreatedAt.IsZero())
}

func TestNewJobRequiresHandlerName(t *testing.T) {
	_, err := NewJob("", "craigslist", nil, 0)
	assert.Error(t, err)
}

func TestJobLifecycle(t *testing.T) {
	job, err := NewJob(HandlerNameBatch, "craigslist", nil, 5)
	require.NoError(t, err)

	job.Start()
	assert.Equal(t, JobStatusRunning, job.Status)
	require.NotNil(t, job.StartedAt)

	job.UpdateProgress(3)
	assert.Equal(t, 3, job.Progress.Current)
	assert.InDelta(t, 60.0, job.Progress.Percentage(), 0.01)

	job.Pause("rate_limited")
	assert.Equal(t, JobStatusPaused, job.Status)
	assert.Equal(t, "rate_limited", job.Error)

	job.Resume()
	assert.Equal(t, JobStatusRunning, job.Status)
	assert.Empty(t, job.Error)

	job.Complete()
	assert.Equal(t, JobStatusCompleted, job.Status)
	require.NotNil(t, job.CompletedAt)
}

func TestJobRequeueIncrementsRetries(t *testing.T) {
	job, err := NewJob(HandlerNameBatch, "craigslist", nil, 5)
	require.NoError(t, err)

	job.Start()
	job.Requeue()

	assert.Equal(t, JobStatusQueued, job.Status)
	assert.Equal(t, 1, job.RetryCount)
	assert.Nil(t, job.StartedAt)
}

func TestJobFail(t *testing.T) {
	job, err := NewJob(HandlerNameBatch, "craigslist", nil, 5)
	require.NoError(t, err)

	job.Start()
	job.Fail(errors.New("store unavailable"))

	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "store unavailable", job.Error)
	require.NotNil(t, job.CompletedAt)
}

func TestIsValidStatus(t *testing.T) {
	for _, valid := range []string{"queued", "running", "paused", "completed", "failed", "cancelled"} {
		assert.True(t, IsValidStatus(valid), valid)
	}
	assert.False(t, IsValidStatus("pending"))
	assert.False(t, IsValidStatus(""))
}

func TestProgressPercentageZeroTotal(t *testing.T) {
	assert.Zero(t, Progress{Current: 5, Total: 0}.Percentage())
}
