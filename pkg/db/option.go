package db

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"cobble/internal/compare"
	"cobble/pkg/wal"
)

// DefaultCapacity is the memtable capacity, in records, used when none is
// configured.
const DefaultCapacity = 1024

type options struct {
	capacity   int
	sync       wal.SyncMode
	directIO   bool
	compare    compare.Compare
	logger     *zap.Logger
	registerer prometheus.Registerer
}

func defaultOptions() options {
	return options{
		capacity: DefaultCapacity,
		sync:     wal.SyncAlways,
		logger:   zap.NewNop(),
	}
}

type Option interface {
	apply(*options)
}

type OptionFunc func(*options)

func (f OptionFunc) apply(o *options) {
	f(o)
}

// WithCapacity sets the maximum number of records buffered in the memtable
// before it is flushed.
func WithCapacity(capacity int) Option {
	return OptionFunc(func(o *options) {
		o.capacity = capacity
	})
}

// WithSyncMode sets when memtable log appends are synced. The default syncs
// every write.
func WithSyncMode(mode wal.SyncMode) Option {
	return OptionFunc(func(o *options) {
		o.sync = mode
	})
}

// WithDirectIO loads the log and table files with direct I/O reads.
func WithDirectIO(enabled bool) Option {
	return OptionFunc(func(o *options) {
		o.directIO = enabled
	})
}

// Compare orders two keys. See compare.Compare.
type Compare = compare.Compare

// WithCompare sets the key order of the memtable and the table. The same
// order must be used every time a directory is opened, since the table file
// is loaded without sorting. The default is lexicographic.
func WithCompare(cmp Compare) Option {
	return OptionFunc(func(o *options) {
		o.compare = cmp
	})
}

func WithLogger(logger *zap.Logger) Option {
	return OptionFunc(func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	})
}

// WithRegisterer registers the database metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return OptionFunc(func(o *options) {
		o.registerer = reg
	})
}
