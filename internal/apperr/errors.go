// Package apperr defines sentinel errors shared across service layers.
package apperr

import "errors"

var (
	// ErrNotFound is returned when a requested index record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned for requests failing token auth.
	ErrUnauthorized = errors.New("unauthorized")
)
