// Package apperr holds the error categories surfaced to command callers.
package apperr

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAccessDenied      = errors.New("access denied")
	ErrNotDirectory      = errors.New("not a directory")
	ErrInvalidInput      = errors.New("invalid input")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInvalidMetadata   = errors.New("invalid metadata")
	ErrCompilation       = errors.New("compilation failed")
	ErrEngineUnavailable = errors.New("compilation engine unavailable")
)
