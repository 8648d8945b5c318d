package item

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Version is the monotonic token ordering all writes for one item.
//
// Hash is a deterministic SHA-256 digest of the mutable attributes; two
// candidates with identical attributes carry the same hash regardless of
// when they were observed, which is what makes no-ops detectable.
// ObservedAt orders candidates whose content differs. Two candidates for
// the same item observed at the same instant with differing content are
// tie-broken by lexicographic hash comparison, so every materializer
// resolves the race identically.
type Version struct {
	ObservedAt int64  `json:"observed_at"` // unix nanoseconds
	Hash       string `json:"hash"`        // hex sha256 of mutable attributes
}

// Ordering is the result of comparing two versions.
type Ordering int

const (
	Older Ordering = -1
	Equal Ordering = 0
	Newer Ordering = 1
)

func (o Ordering) String() string {
	switch o {
	case Older:
		return "older"
	case Newer:
		return "newer"
	default:
		return "equal"
	}
}

// IsZero reports whether v is the absent version.
func (v Version) IsZero() bool {
	return v.Hash == "" && v.ObservedAt == 0
}

// Compare orders v against other. Content equality wins over timestamps:
// identical hashes compare Equal even when observed at different times,
// so a re-scrape of unchanged content never looks like an update.
func (v Version) Compare(other Version) Ordering {
	if v.Hash == other.Hash {
		return Equal
	}
	if v.ObservedAt != other.ObservedAt {
		if v.ObservedAt < other.ObservedAt {
			return Older
		}
		return Newer
	}
	// Same instant, different content: deterministic hash tie-break.
	if v.Hash < other.Hash {
		return Older
	}
	return Newer
}

// NewerThan reports whether v is strictly newer than other. An absent
// other always loses.
func (v Version) NewerThan(other Version) bool {
	if other.IsZero() {
		return true
	}
	return v.Compare(other) == Newer
}

// String renders the version as a compact sortable token.
func (v Version) String() string {
	return strconv.FormatInt(v.ObservedAt, 10) + "-" + v.Hash[:min(12, len(v.Hash))]
}

// ComputeVersion derives the version for a candidate item observed at the
// given time. The hash covers exactly the mutable attribute set: title,
// description, price, location, category, image references, and the
// listing-status flags. Identity fields and timestamps are excluded so the
// hash is a pure function of listing content.
func ComputeVersion(observedAt time.Time, it *Item) Version {
	h := sha256.New()

	// Each field gets a domain separator to prevent cross-field collisions.
	h.Write([]byte("t:"))
	h.Write([]byte(it.Title))
	h.Write([]byte("\nd:"))
	h.Write([]byte(it.Description))
	h.Write([]byte("\np:"))
	if it.Price != nil {
		var amt [8]byte
		binary.BigEndian.PutUint64(amt[:], uint64(it.Price.Amount))
		h.Write(amt[:])
		h.Write([]byte(it.Price.Currency))
	}
	h.Write([]byte("\nl:"))
	h.Write([]byte(it.Location))
	h.Write([]byte("\nc:"))
	h.Write([]byte(it.Category))
	h.Write([]byte("\ni:"))
	h.Write([]byte(strings.Join(it.Images, "\x00")))
	h.Write([]byte("\nf:"))
	h.Write(canonical(it.ListingFlags))

	return Version{
		ObservedAt: observedAt.UnixNano(),
		Hash:       hex.EncodeToString(h.Sum(nil)),
	}
}

// canonical sorts a string slice and joins elements with null bytes.
// The sort ensures determinism regardless of scraper emission order.
// A copy is made to avoid mutating the input.
func canonical(ss []string) []byte {
	sorted := make([]string, len(ss))
	copy(sorted, ss)
	sort.Strings(sorted)
	return []byte(strings.Join(sorted, "\x00"))
}
