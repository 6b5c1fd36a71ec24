// Package apperr defines the sentinel errors shared across Othala layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidTarget marks a link target that cannot be resolved to a
	// vault path. It is recorded as a broken link, never propagated.
	ErrInvalidTarget = errors.New("invalid link target")
)
