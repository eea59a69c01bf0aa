package memtable

import "errors"

var (
	ErrFull            = errors.New("memtable is full")
	ErrInvalidCapacity = errors.New("memtable capacity must be positive")
)
