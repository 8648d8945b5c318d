package ingest

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/teranos/curio/item"
)

// Normalize maps a raw scraped payload into a canonical item candidate and
// classifies it against the last-known item for the same id (nil when the
// id has never been seen). It returns a ValidationError when required
// fields are absent or malformed.
//
// A candidate whose version compares Older than the prior is classified
// Unchanged, not failed: stale replays are expected under out-of-order
// delivery and must not resurrect old state downstream.
func Normalize(raw RawListing, prior *item.Item) (*ItemEvent, error) {
	if raw.Source == "" {
		return nil, &ValidationError{Field: "source", Reason: "is required"}
	}
	if raw.ExternalID == "" {
		return nil, &ValidationError{Field: "external_id", Reason: "is required"}
	}
	if raw.ObservedAt.IsZero() {
		return nil, &ValidationError{Field: "observed_at", Reason: "is required"}
	}

	candidate, err := mapFields(raw)
	if err != nil {
		return nil, err
	}

	candidate.ID = item.ComputeID(raw.Source, raw.ExternalID)
	candidate.Version = item.ComputeVersion(raw.ObservedAt, candidate)

	event := &ItemEvent{
		ItemID:    candidate.ID,
		Candidate: candidate,
	}

	if prior == nil {
		event.Classification = Created
		candidate.State = item.StateActive
		if candidate.Removed() {
			candidate.State = item.StateRemoved
		}
		candidate.FirstSeenAt = raw.ObservedAt
		candidate.LastSeenAt = raw.ObservedAt
		return event, nil
	}

	switch candidate.Version.Compare(prior.Version) {
	case item.Equal, item.Older:
		event.Classification = Unchanged
		return event, nil
	}

	event.Classification = Updated
	event.PriceChange = classifyPrice(prior.Price, candidate.Price)

	switch {
	case candidate.Removed():
		candidate.State = item.StateRemoved
	case prior.State == item.StateRemoved:
		// Strictly newer non-removed candidate re-lists a removed item.
		candidate.State = item.StateActive
	default:
		candidate.State = item.StateUpdated
	}

	candidate.FirstSeenAt = prior.FirstSeenAt
	candidate.LastSeenAt = raw.ObservedAt
	if prior.LastSeenAt.After(candidate.LastSeenAt) {
		candidate.LastSeenAt = prior.LastSeenAt
	}

	return event, nil
}

// mapFields interprets the loosely-typed scraped attributes.
func mapFields(raw RawListing) (*item.Item, error) {
	it := &item.Item{
		Source:     raw.Source,
		ExternalID: raw.ExternalID,
	}

	title, ok := stringField(raw.RawFields, "title")
	if !ok || title == "" {
		return nil, &ValidationError{Field: "title", Reason: "is required"}
	}
	it.Title = title

	if desc, ok := stringField(raw.RawFields, "description"); ok {
		it.Description = desc
	}
	if loc, ok := stringField(raw.RawFields, "location"); ok {
		it.Location = loc
	}
	if cat, ok := stringField(raw.RawFields, "category"); ok {
		it.Category = cat
	}
	if imgs, ok := stringSliceField(raw.RawFields, "images"); ok {
		it.Images = imgs
	}
	if flags, ok := stringSliceField(raw.RawFields, "flags"); ok {
		it.ListingFlags = flags
	}
	if removed, ok := raw.RawFields["removed"].(bool); ok && removed && !it.Removed() {
		it.ListingFlags = append(it.ListingFlags, item.FlagRemoved)
	}

	if v, present := raw.RawFields["price"]; present {
		amount, err := parsePrice(v)
		if err != nil {
			return nil, err
		}
		currency := "EUR"
		if c, ok := stringField(raw.RawFields, "currency"); ok && c != "" {
			currency = c
		}
		it.Price = &item.Price{Amount: amount, Currency: currency}
	}

	return it, nil
}

// parsePrice accepts the price forms scrapers produce: JSON numbers,
// numeric strings, and json.Number. Values are major units and are
// converted to minor units (cents).
func parsePrice(v any) (int64, error) {
	switch n := v.(type) {
	case float64:
		return toMinorUnits(n)
	case int:
		return int64(n) * 100, nil
	case int64:
		return n * 100, nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, &ValidationError{Field: "price", Reason: "is not a number"}
		}
		return toMinorUnits(f)
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, &ValidationError{Field: "price", Reason: "is not parseable"}
		}
		return toMinorUnits(f)
	default:
		return 0, &ValidationError{Field: "price", Reason: "has unsupported type"}
	}
}

func toMinorUnits(major float64) (int64, error) {
	if math.IsNaN(major) || math.IsInf(major, 0) || major < 0 {
		return 0, &ValidationError{Field: "price", Reason: "is not a valid amount"}
	}
	return int64(math.Round(major * 100)), nil
}

func classifyPrice(prior, candidate *item.Price) PriceChange {
	switch {
	case candidate == nil:
		return PriceNone
	case prior == nil:
		return PriceDiscovered
	case candidate.Amount > prior.Amount:
		return PriceIncreased
	case candidate.Amount < prior.Amount:
		return PriceDropped
	default:
		return PriceNone
	}
}

func stringField(fields map[string]any, key string) (string, bool) {
	v, present := fields[key]
	if !present {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func stringSliceField(fields map[string]any, key string) ([]string, bool) {
	v, present := fields[key]
	if !present {
		return nil, false
	}
	switch vv := v.(type) {
	case []string:
		return vv, true
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}
