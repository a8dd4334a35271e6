// Package apperr holds the sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrUnavailable   = errors.New("corpus unavailable")
	ErrInvalidQuery  = errors.New("invalid query")
	ErrInvalidPath   = errors.New("invalid note path")
)
