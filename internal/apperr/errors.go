// Package apperr holds the sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrAlreadyExists  = errors.New("already exists")
	ErrMalformedInput = errors.New("malformed notebook input")
	ErrInvalidPath    = errors.New("invalid notebook path")
	ErrTooLarge       = errors.New("notebook too large")
)
