// Package common defines shared constants and sentinel errors used across
// client and server layers of WetMap. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")

	// Input errors. Wrapped with the offending field, never retried.
	ErrValidation = errors.New("validation error")

	// Auth errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Remote store could not be reached (timeout, refused connection, 5xx).
	ErrUnavailable = errors.New("server unavailable")

	// Device-local durable store failed; the operation did not persist.
	ErrStorage = errors.New("storage failure")

	ErrInternal = errors.New("internal error")

	// A reconciliation pass is already running.
	ErrSyncInProgress = errors.New("sync already in progress")
)
