package db

import (
	"errors"

	"cobble/internal/base"
)

var (
	ErrKeyNotFound = errors.New("cobble: key not found")
	ErrClosed      = errors.New("cobble: database closed")
	ErrLocked      = errors.New("cobble: database directory is locked by another instance")

	// ErrNotWritable is returned by Set for keys that cannot be stored: empty
	// keys and keys containing ", " or a line break.
	ErrNotWritable = base.ErrNotWritable
)

// DecodeError is returned by Get when a stored value is not valid JSON.
type DecodeError = base.DecodeError
