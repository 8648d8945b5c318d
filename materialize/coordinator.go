package materialize

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/teranos/curio/ingest"
	"github.com/teranos/curio/store"
	"github.com/teranos/curio/sym"
)

// Coordinator applies item events to every configured sink. Sinks are
// written concurrently and independently: a failure in one never blocks
// or rolls back another, because the version-conditional writes let any
// lagging sink catch up on the next delivery.
type Coordinator struct {
	sinks       []Materializer
	deadLetters *store.DeadLetterStore
	policy      RetryPolicy
	logger      *zap.SugaredLogger
}

// NewCoordinator wires sinks behind a shared retry policy. deadLetters
// may be nil, in which case terminal failures are only logged.
func NewCoordinator(sinks []Materializer, deadLetters *store.DeadLetterStore, policy RetryPolicy, logger *zap.SugaredLogger) *Coordinator {
	return &Coordinator{
		sinks:       sinks,
		deadLetters: deadLetters,
		policy:      policy,
		logger:      logger,
	}
}

// Accept materializes one normalized event. Unchanged events are dropped
// before any store contact; Created and Updated events fan out to all
// sinks. The returned results carry one entry per sink, in sink order.
// Accept returns an error only when recording a dead letter fails; sink
// failures are reported in the results, not as an error.
func (c *Coordinator) Accept(ctx context.Context, event *ingest.ItemEvent) ([]Result, error) {
	if event.Classification == ingest.Unchanged {
		c.logger.Debugw(sym.Skipped+" event unchanged, skipping materialization",
			"item_id", event.ItemID)
		return nil, nil
	}

	results := make([]Result, len(c.sinks))
	var wg sync.WaitGroup
	for i, sink := range c.sinks {
		wg.Add(1)
		go func(i int, m Materializer) {
			defer wg.Done()
			results[i] = applyWithRetry(ctx, m, event.Candidate, c.policy)
		}(i, sink)
	}
	wg.Wait()

	for _, result := range results {
		switch result.Outcome {
		case OutcomeApplied:
			c.logger.Debugw(sym.Applied+" materialized",
				"item_id", event.ItemID,
				"sink", result.Sink,
				"classification", event.Classification,
				"version", event.Candidate.Version.String())
		case OutcomeSkipped:
			c.logger.Debugw(sym.Skipped+" sink already current",
				"item_id", event.ItemID,
				"sink", result.Sink)
		case OutcomeFailed:
			c.logger.Errorw(sym.Failed+" materialization failed",
				"item_id", event.ItemID,
				"sink", result.Sink,
				"attempts", result.Attempts,
				"error", result.Err)
			if err := c.deadLetter(ctx, event, result); err != nil {
				return results, err
			}
		}
	}
	return results, nil
}

func (c *Coordinator) deadLetter(ctx context.Context, event *ingest.ItemEvent, result Result) error {
	if c.deadLetters == nil {
		return nil
	}

	reason := store.ReasonRetriesExhausted
	if result.Fatal {
		reason = store.ReasonFatal
	}

	payload, err := json.Marshal(event.Candidate)
	if err != nil {
		payload = []byte(`{}`)
	}

	_, err = c.deadLetters.Add(ctx, &store.DeadLetter{
		ItemID:   event.ItemID,
		Reason:   reason,
		Detail:   result.Sink + ": " + result.Err.Error(),
		Payload:  string(payload),
		Attempts: result.Attempts,
	})
	return err
}
