// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across client/controller layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates a missing, expired or rejected credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller lacks rights for the action
	// (distinct from a transport failure).
	ErrForbidden = errors.New("forbidden")

	// ErrBusy indicates an operation of the same kind is already in
	// flight for the same resource.
	ErrBusy = errors.New("operation already in flight")

	// ErrUnavailable indicates a retryable fetch/transport failure.
	ErrUnavailable = errors.New("service unavailable")
)
