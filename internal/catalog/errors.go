package catalog

import "errors"

var (
	// ErrNotFound is returned when a listing or image does not exist
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when a requester is not the owner of the
	// listing it tries to change
	ErrForbidden = errors.New("forbidden: requester is not the owner")

	// ErrNoIdentity is returned when an operation that attributes
	// ownership is attempted without a resolvable principal
	ErrNoIdentity = errors.New("no identity declared")
)

// ValidationError rejects bad input before any side effect (non-image
// upload, oversized payload, missing required field on manual create).
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// PersistenceError wraps a storage-layer failure; no partial writes
// remain when it is returned.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return "persistence failed: " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
