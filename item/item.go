// Package item defines the canonical marketplace listing entity and its
// identity and version computation. Everything in this package is pure:
// no I/O, no clocks, no stores.
package item

import (
	"time"
)

// State is the lifecycle state of an item.
type State string

const (
	StateActive  State = "active"  // first materialized, or re-listed after removal
	StateUpdated State = "updated" // an accepted newer candidate changed its attributes
	StateRemoved State = "removed" // delisted; terminal unless a strictly newer candidate re-lists
)

// IsValidState returns true if s is a recognized lifecycle state.
func IsValidState(s string) bool {
	switch State(s) {
	case StateActive, StateUpdated, StateRemoved:
		return true
	default:
		return false
	}
}

// FlagRemoved is the listing-status flag a scraper sets when the source
// page reports the listing as gone. The normalizer maps it to StateRemoved.
const FlagRemoved = "removed"

// Price is a monetary amount in minor units (cents) with its ISO currency.
type Price struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Item is the canonical representation of one scraped listing.
//
// ID is immutable for the life of the listing and is the join key across
// the primary store and the search index. Version is the sole arbiter of
// whether a candidate is newer than stored state.
type Item struct {
	ID         ID     `json:"item_id"`
	Source     string `json:"source"`
	ExternalID string `json:"external_id"`

	// Mutable attributes, covered by the version content hash.
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Price        *Price   `json:"price,omitempty"`
	Location     string   `json:"location,omitempty"`
	Category     string   `json:"category,omitempty"`
	Images       []string `json:"images,omitempty"`
	ListingFlags []string `json:"listing_flags,omitempty"`

	State   State   `json:"state"`
	Version Version `json:"version"`

	// Arrival-order timestamps; not wall-clock authoritative.
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// HasFlag reports whether the item carries the given listing-status flag.
func (it *Item) HasFlag(flag string) bool {
	for _, f := range it.ListingFlags {
		if f == flag {
			return true
		}
	}
	return false
}

// Removed reports whether the listing-status flags mark the item delisted.
func (it *Item) Removed() bool {
	return it.HasFlag(FlagRemoved)
}
