package materialize

import (
	"context"
	"time"

	"github.com/teranos/curio/db"
	"github.com/teranos/curio/errors"
	"github.com/teranos/curio/item"
)

// RetryPolicy bounds the per-sink write loop. Backoff doubles after each
// transient failure, capped at MaxBackoff.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy matches the worker pool's error backoff shape on a
// shorter horizon: writes are per-item, not per-process.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
	}
}

// isTransient reports whether a sink error is worth retrying. Busy
// SQLite handles and unavailable/timeout conditions are transient;
// everything else is fatal for this delivery.
func isTransient(err error) bool {
	return db.IsBusy(err) ||
		errors.Is(err, errors.ErrUnavailable) ||
		errors.Is(err, errors.ErrTimeout)
}

// applyWithRetry drives one sink to a terminal Result for one item.
func applyWithRetry(ctx context.Context, m Materializer, it *item.Item, policy RetryPolicy) Result {
	result := Result{Sink: m.Name()}
	backoff := policy.InitialBackoff

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		result.Attempts = attempt

		applied, err := m.Apply(ctx, it)
		if err == nil {
			if applied {
				result.Outcome = OutcomeApplied
			} else {
				result.Outcome = OutcomeSkipped
			}
			return result
		}

		result.Err = err
		if !isTransient(err) {
			result.Outcome = OutcomeFailed
			result.Fatal = true
			result.Err = errors.Wrapf(err, "%s sink fatal", m.Name())
			return result
		}
		if attempt == policy.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			result.Outcome = OutcomeFailed
			result.Err = errors.Wrapf(ctx.Err(), "%s sink canceled", m.Name())
			return result
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, policy.MaxBackoff)
	}

	result.Outcome = OutcomeFailed
	result.Err = errors.Wrapf(result.Err, "%s sink exhausted %d attempts", m.Name(), policy.MaxAttempts)
	return result
}
