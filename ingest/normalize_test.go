package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/curio/errors"
	"github.com/teranos/curio/item"
)

func rawBike(price float64, observedAt time.Time) RawListing {
	return RawListing{
		Source:     "acme",
		ExternalID: "123",
		ObservedAt: observedAt,
		RawFields: map[string]any{
			"title": "Bike",
			"price": price,
		},
	}
}

func TestNormalizeCreated(t *testing.T) {
	at := time.Unix(1000, 0)
	event, err := Normalize(rawBike(100, at), nil)
	require.NoError(t, err)

	assert.Equal(t, Created, event.Classification)
	assert.Equal(t, item.ComputeID("acme", "123"), event.ItemID)
	assert.Equal(t, item.StateActive, event.Candidate.State)
	require.NotNil(t, event.Candidate.Price)
	assert.Equal(t, int64(10000), event.Candidate.Price.Amount, "major units convert to cents")
	assert.Equal(t, "EUR", event.Candidate.Price.Currency)
	assert.Equal(t, at, event.Candidate.FirstSeenAt)
	assert.Equal(t, at, event.Candidate.LastSeenAt)
	assert.False(t, event.Candidate.Version.IsZero())
}

func TestNormalizeUpdatedOnPriceChange(t *testing.T) {
	prior, err := Normalize(rawBike(100, time.Unix(1000, 0)), nil)
	require.NoError(t, err)

	event, err := Normalize(rawBike(90, time.Unix(2000, 0)), prior.Candidate)
	require.NoError(t, err)

	assert.Equal(t, Updated, event.Classification)
	assert.Equal(t, PriceDropped, event.PriceChange)
	assert.Equal(t, item.StateUpdated, event.Candidate.State)
	assert.True(t, event.Candidate.Version.NewerThan(prior.Candidate.Version))
	assert.Equal(t, prior.Candidate.FirstSeenAt, event.Candidate.FirstSeenAt)
}

func TestNormalizeUnchangedOnIdenticalContent(t *testing.T) {
	prior, err := Normalize(rawBike(100, time.Unix(1000, 0)), nil)
	require.NoError(t, err)

	// Same attributes, later observation: content hash matches, no-op.
	event, err := Normalize(rawBike(100, time.Unix(2000, 0)), prior.Candidate)
	require.NoError(t, err)

	assert.Equal(t, Unchanged, event.Classification)
	assert.Equal(t, prior.Candidate.Version.Hash, event.Candidate.Version.Hash)
}

func TestNormalizeStaleReplayIsUnchanged(t *testing.T) {
	v1, err := Normalize(rawBike(100, time.Unix(1000, 0)), nil)
	require.NoError(t, err)
	v2, err := Normalize(rawBike(90, time.Unix(2000, 0)), v1.Candidate)
	require.NoError(t, err)

	// The original payload replays after the price drop. It is not an
	// error, just Unchanged: out-of-order delivery is expected.
	replay, err := Normalize(rawBike(100, time.Unix(1000, 0)), v2.Candidate)
	require.NoError(t, err)
	assert.Equal(t, Unchanged, replay.Classification)
}

func TestNormalizeRemovalAndReactivation(t *testing.T) {
	created, err := Normalize(rawBike(100, time.Unix(1000, 0)), nil)
	require.NoError(t, err)

	removedRaw := rawBike(100, time.Unix(2000, 0))
	removedRaw.RawFields["removed"] = true
	removed, err := Normalize(removedRaw, created.Candidate)
	require.NoError(t, err)
	assert.Equal(t, Updated, removed.Classification)
	assert.Equal(t, item.StateRemoved, removed.Candidate.State)

	// A strictly newer non-removed candidate re-lists the item.
	relisted, err := Normalize(rawBike(95, time.Unix(3000, 0)), removed.Candidate)
	require.NoError(t, err)
	assert.Equal(t, Updated, relisted.Classification)
	assert.Equal(t, item.StateActive, relisted.Candidate.State)
}

func TestNormalizePriceDiscovered(t *testing.T) {
	noPrice := RawListing{
		Source:     "acme",
		ExternalID: "123",
		ObservedAt: time.Unix(1000, 0),
		RawFields:  map[string]any{"title": "Bike"},
	}
	created, err := Normalize(noPrice, nil)
	require.NoError(t, err)
	require.Nil(t, created.Candidate.Price)

	event, err := Normalize(rawBike(100, time.Unix(2000, 0)), created.Candidate)
	require.NoError(t, err)
	assert.Equal(t, PriceDiscovered, event.PriceChange)
}

func TestNormalizeValidationErrors(t *testing.T) {
	at := time.Unix(1000, 0)

	tests := []struct {
		name  string
		raw   RawListing
		field string
	}{
		{"missing source", RawListing{ExternalID: "1", ObservedAt: at}, "source"},
		{"missing external id", RawListing{Source: "acme", ObservedAt: at}, "external_id"},
		{"missing observed_at", RawListing{Source: "acme", ExternalID: "1"}, "observed_at"},
		{
			"missing title",
			RawListing{Source: "acme", ExternalID: "1", ObservedAt: at, RawFields: map[string]any{}},
			"title",
		},
		{
			"unparseable price",
			RawListing{Source: "acme", ExternalID: "1", ObservedAt: at,
				RawFields: map[string]any{"title": "Bike", "price": "a lot"}},
			"price",
		},
		{
			"negative price",
			RawListing{Source: "acme", ExternalID: "1", ObservedAt: at,
				RawFields: map[string]any{"title": "Bike", "price": -5.0}},
			"price",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.raw, nil)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestIsValidationErrorSeesWrappedErrors(t *testing.T) {
	_, err := Normalize(RawListing{ExternalID: "1"}, nil)
	require.Error(t, err)

	assert.True(t, IsValidationError(errors.Wrap(err, "normalize batch entry 3")))
	assert.False(t, IsValidationError(errors.New("database is locked")))
	assert.False(t, IsValidationError(nil))
}

func TestNormalizeStringPriceAndFlags(t *testing.T) {
	raw := RawListing{
		Source:     "acme",
		ExternalID: "9",
		ObservedAt: time.Unix(1000, 0),
		RawFields: map[string]any{
			"title":    "Helmet",
			"price":    "49.99",
			"currency": "USD",
			"flags":    []any{"featured"},
			"images":   []any{"https://img/1.jpg", "https://img/2.jpg"},
		},
	}
	event, err := Normalize(raw, nil)
	require.NoError(t, err)

	require.NotNil(t, event.Candidate.Price)
	assert.Equal(t, int64(4999), event.Candidate.Price.Amount)
	assert.Equal(t, "USD", event.Candidate.Price.Currency)
	assert.Equal(t, []string{"featured"}, event.Candidate.ListingFlags)
	assert.Len(t, event.Candidate.Images, 2)
}
