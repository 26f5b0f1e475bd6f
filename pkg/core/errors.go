package core

import "errors"

// Common errors.
var (
	// ErrAuthRequired means there is no signed-in user. Sessions treat it as an empty result.
	ErrAuthRequired = errors.New("authentication required")
	// ErrQueryConstraint means the filters cannot be expressed as a store query.
	ErrQueryConstraint = errors.New("invalid query constraint")
	// ErrRemoteUnavailable wraps failures reported by a live subscription.
	ErrRemoteUnavailable = errors.New("note store unavailable")
	// ErrWriteFailure wraps a create, update or delete rejected by the store.
	ErrWriteFailure = errors.New("note write failed")

	ErrNotFound         = errors.New("note not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrReadOnly         = errors.New("store is in read-only mode")
	ErrClosed           = errors.New("closed")
)
