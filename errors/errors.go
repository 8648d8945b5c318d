// Package errors provides error handling for curio.
//
// It re-exports github.com/cockroachdb/errors so the rest of the codebase
// gets stack traces, wrapping, and user-facing hints/details from a single
// import path:
//
//	if err := store.Upsert(ctx, write); err != nil {
//	    return errors.Wrap(err, "materialize to primary store")
//	}
//
//	return errors.WithHint(err, "check that the database file is writable")
//
// Sentinel errors for cross-package checks live at the bottom of this file;
// match them with errors.Is().
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Error creation and wrapping.
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details.
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection.
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Assertions.
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Sentinel errors shared across curio packages.
// Wrap these with errors.Wrap() to add context while preserving identity.
var (
	// ErrNotFound indicates the requested item or record does not exist.
	ErrNotFound = New("not found")

	// ErrStale indicates a candidate write lost to an equal-or-newer stored
	// version. Callers treat this as successful convergence, not failure.
	ErrStale = New("stale version")

	// ErrConflict indicates a resource conflict (e.g. duplicate key).
	ErrConflict = New("resource conflict")

	// ErrTimeout indicates an operation timed out.
	ErrTimeout = New("operation timed out")

	// ErrUnavailable indicates a required backing store is not reachable.
	ErrUnavailable = New("store unavailable")
)

// IsNotFound checks whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return Is(err, ErrNotFound)
}

// IsStale checks whether err is or wraps ErrStale.
func IsStale(err error) bool {
	return Is(err, ErrStale)
}
