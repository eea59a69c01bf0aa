package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"cobble/internal/base"
	"cobble/pkg/memtable"
	"cobble/pkg/metrics"
	"cobble/pkg/sstable"
)

const LockFileName = "db.lock"

type DB struct {
	// mu serializes all operations. The engine is single writer; the mutex
	// only keeps accidental concurrent use from corrupting state.
	mu     sync.Mutex
	dir    string
	closed bool

	// memtable buffers every write until it reaches capacity, at which point
	// it is merged into the table and reset. It always holds the freshest
	// value of a key that has not been flushed yet.
	memtable *memtable.MemTable

	// table holds every flushed record in a single sorted file that is
	// rewritten on each flush.
	table *sstable.SSTable

	lockFile *os.File
	logger   *zap.Logger
	metrics  *metrics.Metrics
	openedAt time.Time
}

// Stats describes the current state of the database.
type Stats struct {
	MemtableLen int
	Capacity    int
	TableLen    int
}

// Open opens the database in the given directory, creating it if needed. An
// exclusive lock is held on the directory until the database is closed; a
// second Open of the same directory fails with ErrLocked.
func Open(directory string, opts ...Option) (db *DB, err error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(&o)
	}

	if err = os.MkdirAll(directory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Create lockfile for the directory
	lockFile, err := os.OpenFile(
		filepath.Join(directory, LockFileName),
		os.O_CREATE|os.O_RDWR,
		0644,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}
	defer func() {
		if db == nil {
			_ = lockFile.Close()
		}
	}()
	if err = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, directory)
		}
		return nil, fmt.Errorf("failed to lock directory: %w", err)
	}

	mem, err := memtable.Open(directory, o.capacity, memtable.Options{
		Sync:     o.sync,
		DirectIO: o.directIO,
		Compare:  o.compare,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open memtable: %w", err)
	}
	defer func() {
		if db == nil {
			_ = mem.Close()
		}
	}()

	table, err := sstable.Open(directory, sstable.Options{
		DirectIO: o.directIO,
		Compare:  o.compare,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open table: %w", err)
	}

	m, err := metrics.New(o.registerer)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	db = &DB{
		dir:      directory,
		memtable: mem,
		table:    table,
		lockFile: lockFile,
		logger:   o.logger.With(zap.String("dir", directory)),
		metrics:  m,
		openedAt: time.Now(),
	}
	db.observe()

	db.logger.Info("opened database",
		zap.Int("capacity", mem.Cap()),
		zap.Int("memtable_records", mem.Len()),
		zap.Int("table_records", table.Len()),
	)
	return db, nil
}

// Get decodes the most recent value for key into value. It returns
// ErrKeyNotFound if the key was never written, and a *DecodeError if the
// stored value is not valid JSON.
func (db *DB) Get(key string, value any) error {
	rec, err := db.get(key)
	if err != nil {
		return err
	}
	return rec.Value(value)
}

// GetRaw returns the most recent encoded value for key.
func (db *DB) GetRaw(key string) (json.RawMessage, error) {
	rec, err := db.get(key)
	if err != nil {
		return nil, err
	}
	return rec.RawValue(), nil
}

func (db *DB) get(key string) (base.Record, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return base.Record{}, ErrClosed
	}

	// The memtable supersedes the table for any key it holds
	if rec, ok := db.memtable.Get(key); ok {
		db.metrics.Gets.WithLabelValues(metrics.SourceMemtable).Inc()
		return rec, nil
	}
	if rec, ok := db.table.Get(key); ok {
		db.metrics.Gets.WithLabelValues(metrics.SourceTable).Inc()
		return rec, nil
	}
	db.metrics.Gets.WithLabelValues(metrics.SourceMiss).Inc()
	return base.Record{}, ErrKeyNotFound
}

// Set encodes value as JSON and writes it for key. When the memtable is full
// it is flushed into the table first and the write is applied to the emptied
// memtable.
func (db *DB) Set(key string, value any) error {
	rec, err := base.FromKeyValue(key, value)
	if err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrClosed
	}

	err = db.memtable.Set(rec)
	if errors.Is(err, memtable.ErrFull) {
		if err = db.flush(); err != nil {
			return err
		}
		err = db.memtable.Set(rec)
	}
	if err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}

	db.metrics.Sets.Inc()
	db.observe()
	return nil
}

// Flush merges the memtable into the table and resets it. Flushing an empty
// memtable does nothing.
func (db *DB) Flush() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrClosed
	}
	return db.flush()
}

func (db *DB) flush() error {
	if db.memtable.Empty() {
		return nil
	}

	start := time.Now()
	records := db.memtable.Len()
	if err := db.table.Merge(db.memtable.Block()); err != nil {
		return fmt.Errorf("failed to flush memtable: %w", err)
	}
	// A failed reset leaves records in both the memtable and the table.
	// The memtable wins on reads, and the next flush merges the same
	// records again and retries the reset.
	if err := db.memtable.Reset(); err != nil {
		return fmt.Errorf("failed to reset memtable: %w", err)
	}

	elapsed := time.Since(start)
	db.metrics.Flushes.Inc()
	db.metrics.FlushDuration.Observe(elapsed.Seconds())
	db.observe()

	db.logger.Debug("flushed memtable",
		zap.Int("records", records),
		zap.Int("table_records", db.table.Len()),
		zap.Duration("duration", elapsed),
	)
	return nil
}

// Clear erases all data, buffered and persisted.
func (db *DB) Clear() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrClosed
	}

	if err := db.memtable.Reset(); err != nil {
		return fmt.Errorf("failed to reset memtable: %w", err)
	}
	if err := db.table.Clear(); err != nil {
		return err
	}

	db.metrics.Clears.Inc()
	db.observe()
	db.logger.Info("cleared database")
	return nil
}

// Dir returns the storage directory.
func (db *DB) Dir() string {
	return db.dir
}

// Stats returns the current record counts.
func (db *DB) Stats() Stats {
	db.mu.Lock()
	defer db.mu.Unlock()

	return Stats{
		MemtableLen: db.memtable.Len(),
		Capacity:    db.memtable.Cap(),
		TableLen:    db.table.Len(),
	}
}

func (db *DB) observe() {
	db.metrics.MemtableRecords.Set(float64(db.memtable.Len()))
	db.metrics.TableRecords.Set(float64(db.table.Len()))
}

// Close releases the memtable log and the directory lock. Buffered records
// stay in the log and are replayed on the next Open.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrClosed
	}
	db.closed = true

	var result *multierror.Error
	if err := db.memtable.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to close memtable: %w", err))
	}
	if err := syscall.Flock(int(db.lockFile.Fd()), syscall.LOCK_UN); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to unlock directory: %w", err))
	}
	if err := db.lockFile.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to close lock file: %w", err))
	}

	db.logger.Info("closed database", zap.Duration("uptime", time.Since(db.openedAt)))
	return result.ErrorOrNil()
}
