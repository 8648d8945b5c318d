package item

import (
	"crypto/sha256"

	"github.com/mr-tron/base58"
)

// ID is the stable item identifier, derived deterministically from
// (source, external_id). It never changes for the life of the listing.
type ID string

// ComputeID derives the canonical item id from the listing's source and its
// id within that source. The derivation is a SHA-256 over the normalized
// tuple with a null-byte domain separator (so ("ab","c") and ("a","bc")
// cannot collide), truncated to 16 bytes and rendered base58 for compact,
// URL-safe keys.
//
// Same inputs always produce the same id; different inputs differ with
// overwhelming probability.
func ComputeID(source, externalID string) ID {
	h := sha256.New()
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write([]byte(externalID))
	sum := h.Sum(nil)
	return ID(base58.Encode(sum[:16]))
}

// String returns the id as a plain string.
func (id ID) String() string {
	return string(id)
}
