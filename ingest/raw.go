// Package ingest converts raw scraped listing payloads into canonical
// items and classifies each against last-known state. Normalization is
// pure: it reads the prior item it is handed and writes to no store.
package ingest

import (
	"fmt"
	"time"

	"github.com/teranos/curio/errors"
	"github.com/teranos/curio/item"
)

// RawListing is the inbound payload produced by a scraping collaborator.
// RawFields carries the scraped attributes as loosely-typed values; the
// normalizer is the single place that interprets them.
type RawListing struct {
	Source     string         `json:"source"`
	ExternalID string         `json:"external_id"`
	RawFields  map[string]any `json:"raw_fields"`
	ObservedAt time.Time      `json:"observed_at"`
}

// Classification says how a normalized candidate relates to last-known state.
type Classification string

const (
	Created   Classification = "created"
	Updated   Classification = "updated"
	Unchanged Classification = "unchanged" // identical content, or a stale replay
)

// PriceChange classifies the price movement an Updated candidate carries,
// for the notification path. It never affects versioning or materialization.
type PriceChange string

const (
	PriceNone       PriceChange = ""
	PriceDiscovered PriceChange = "discovered" // prior had no price, candidate does
	PriceDropped    PriceChange = "dropped"
	PriceIncreased  PriceChange = "increased"
)

// ItemEvent is the unit passed from the normalizer to the write
// coordinator. It is created once per normalization call and not mutated
// afterward.
type ItemEvent struct {
	ItemID         item.ID
	Candidate      *item.Item
	Classification Classification
	PriceChange    PriceChange
}

// ValidationError reports a malformed inbound payload. It is not retried;
// callers dead-letter the payload without reprocessing.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid listing payload: field %q %s", e.Field, e.Reason)
}

// IsValidationError reports whether err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
