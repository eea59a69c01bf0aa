package pkg

import (
	"cobble/pkg/config"
	"cobble/pkg/db"
)

var _ ReadWriterCloser = (*db.DB)(nil)

// Open opens the database whose files reside in the given directory.
func Open(directory string, options ...db.Option) (*db.DB, error) {
	return db.Open(directory, options...)
}

// OpenConfig opens the database described by cfg.
func OpenConfig(cfg config.Config) (*db.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	options, err := cfg.Options(nil)
	if err != nil {
		return nil, err
	}
	return db.Open(cfg.Dir, options...)
}
