package async

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/teranos/curio/errors"
	"github.com/teranos/curio/ingest"
	"github.com/teranos/curio/item"
	"github.com/teranos/curio/materialize"
	"github.com/teranos/curio/store"
	"github.com/teranos/curio/sym"
)

// HandlerNameBatch is the handler name for raw listing batch jobs.
const HandlerNameBatch = "ingest.batch"

// BatchPayload is the payload for a HandlerNameBatch job: one batch of
// raw listings, usually from a single scrape of one source.
type BatchPayload struct {
	Listings []ingest.RawListing `json:"listings"`
}

// NewBatchJob wraps a batch of raw listings into a queued job.
func NewBatchJob(source string, listings []ingest.RawListing) (*Job, error) {
	payload, err := json.Marshal(BatchPayload{Listings: listings})
	if err != nil {
		return nil, errors.Wrap(err, "marshal batch payload")
	}
	return NewJob(HandlerNameBatch, source, payload, len(listings))
}

// BatchHandler executes batch ingest jobs: normalize each raw listing
// against last-known state, then hand the event to the materialization
// coordinator. Progress is checkpointed to the job row, so a cancelled or
// crashed batch resumes at the listing it stopped on. Thanks to the
// stores' conditional writes a listing replayed across attempts is a
// harmless skip.
type BatchHandler struct {
	items       *store.ItemStore
	deadLetters *store.DeadLetterStore
	coordinator *materialize.Coordinator
	queue       *Queue
	log         *zap.SugaredLogger
}

// NewBatchHandler wires the batch handler. queue is used to persist
// progress checkpoints; deadLetters may be nil.
func NewBatchHandler(items *store.ItemStore, deadLetters *store.DeadLetterStore, coordinator *materialize.Coordinator, queue *Queue, logger *zap.SugaredLogger) *BatchHandler {
	return &BatchHandler{
		items:       items,
		deadLetters: deadLetters,
		coordinator: coordinator,
		queue:       queue,
		log:         logger,
	}
}

func (h *BatchHandler) Name() string { return HandlerNameBatch }

// Execute implements JobHandler.
func (h *BatchHandler) Execute(ctx context.Context, job *Job) error {
	var payload BatchPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return errors.Wrap(err, "decode batch payload")
	}

	log := h.log.With("job_id", job.ID, "source", job.Source)

	// Resume from the checkpoint; listings before Progress.Current were
	// processed by a previous attempt.
	start := job.Progress.Current
	if start > len(payload.Listings) {
		start = len(payload.Listings)
	}

	for i := start; i < len(payload.Listings); i++ {
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "batch cancelled")
		default:
		}

		if err := h.processListing(ctx, payload.Listings[i], log); err != nil {
			return err
		}

		job.UpdateProgress(i + 1)
		if err := h.queue.UpdateJob(job); err != nil {
			log.Warnw("Failed to checkpoint batch progress", "listing", i+1, "error", err)
		}
	}

	log.Infow(sym.IX+" Batch ingested",
		"listings", len(payload.Listings),
		"skipped_checkpoint", start)
	return nil
}

// processListing runs one raw listing through normalize and materialize.
// Validation failures dead-letter the payload and are not errors: one
// malformed listing must not fail the batch.
func (h *BatchHandler) processListing(ctx context.Context, raw ingest.RawListing, log *zap.SugaredLogger) error {
	prior, err := h.lookupPrior(ctx, raw)
	if err != nil {
		return err
	}

	event, err := ingest.Normalize(raw, prior)
	if err != nil {
		if ingest.IsValidationError(err) {
			log.Warnw(sym.Failed+" Listing failed validation",
				"external_id", raw.ExternalID,
				"error", err)
			return h.deadLetterValidation(ctx, raw, err)
		}
		return errors.Wrap(err, "normalize listing")
	}

	if _, err := h.coordinator.Accept(ctx, event); err != nil {
		return errors.Wrap(err, "materialize listing")
	}
	return nil
}

func (h *BatchHandler) lookupPrior(ctx context.Context, raw ingest.RawListing) (*item.Item, error) {
	id := item.ComputeID(raw.Source, raw.ExternalID)
	prior, err := h.items.Get(ctx, id)
	if errors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "lookup prior item")
	}
	return prior, nil
}

func (h *BatchHandler) deadLetterValidation(ctx context.Context, raw ingest.RawListing, cause error) error {
	if h.deadLetters == nil {
		return nil
	}

	payload, err := json.Marshal(raw)
	if err != nil {
		payload = []byte(`{}`)
	}

	_, err = h.deadLetters.Add(ctx, &store.DeadLetter{
		Reason:   store.ReasonValidation,
		Detail:   cause.Error(),
		Payload:  string(payload),
		Attempts: 1,
	})
	if err != nil {
		return errors.Wrap(err, "record validation dead letter")
	}
	return nil
}
