package pkg

import "io"

type ReadWriterCloser interface {
	Reader
	Writer
	io.Closer
}

type Reader interface {
	// Get decodes the value for the given key into value. It returns
	// db.ErrKeyNotFound if the key has never been written, and a
	// *db.DecodeError if the stored value cannot be decoded.
	Get(key string, value any) error
}

type Writer interface {
	// Set encodes value as JSON and stores it for the given key, overwriting
	// any previous value for that key.
	Set(key string, value any) error

	// Clear erases every key, buffered and persisted.
	Clear() error
}
