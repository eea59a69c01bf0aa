package memtable

import (
	"fmt"
	"os"
	"path/filepath"

	"cobble/internal/base"
	"cobble/internal/block"
	"cobble/internal/compare"
	"cobble/internal/storage"
	"cobble/pkg/wal"
)

// LogFileName is the name of the memtable log inside the storage directory.
const LogFileName = "storage.txt"

// Options configures a memtable.
type Options struct {
	// Sync controls when log appends are flushed to stable storage.
	Sync wal.SyncMode
	// DirectIO replays the log with direct I/O reads.
	DirectIO bool
	Compare  compare.Compare
}

// MemTable is a capacity bounded block of records that accepts all new
// writes. Every write is committed to the log before it is added to the
// block, and the log is replayed into the block when the memtable is opened.
type MemTable struct {
	capacity int
	block    *block.Block

	// wal (write-ahead log) holds every record in the block, in write order.
	// It is truncated whenever the memtable is reset after a flush.
	wal *wal.WAL
}

// Open creates dir if needed, replays its log into a new memtable and opens
// the log for appending. capacity is the maximum number of records held.
func Open(dir string, capacity int, opts Options) (*MemTable, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create memtable directory: %w", err)
	}

	path := filepath.Join(dir, LogFileName)
	if err := storage.Touch(path); err != nil {
		return nil, err
	}
	blk, err := replay(path, opts)
	if err != nil {
		return nil, err
	}

	log, err := wal.Open(path, opts.Sync)
	if err != nil {
		return nil, err
	}

	return &MemTable{
		capacity: capacity,
		block:    blk,
		wal:      log,
	}, nil
}

// replay loads the log. Log lines are in write order, not key order.
func replay(path string, opts Options) (*block.Block, error) {
	r, err := storage.NewReader(path, opts.DirectIO)
	if err != nil {
		return nil, fmt.Errorf("failed to open log for replay: %w", err)
	}
	defer r.Close()

	blk, err := block.LoadUnsorted(r, opts.Compare)
	if err != nil {
		return nil, fmt.Errorf("failed to replay log %s: %w", path, err)
	}
	return blk, nil
}

// Set logs rec and inserts it. ErrFull is returned once the memtable holds
// capacity records; nothing is written in that case.
func (m *MemTable) Set(rec base.Record) error {
	if m.Full() {
		return ErrFull
	}
	if err := m.wal.Append(rec); err != nil {
		return err
	}
	m.block.Insert(rec)
	return nil
}

// Get returns the most recent record for key.
func (m *MemTable) Get(key string) (base.Record, bool) {
	return m.block.Get(key)
}

// Len returns the number of records held, counting repeated writes of a key.
func (m *MemTable) Len() int {
	return m.block.Len()
}

// Cap returns the configured capacity.
func (m *MemTable) Cap() int {
	return m.capacity
}

// Full reports whether the next Set would be rejected.
func (m *MemTable) Full() bool {
	return m.block.Len() >= m.capacity
}

// Empty reports whether the memtable holds no records.
func (m *MemTable) Empty() bool {
	return m.block.Len() == 0
}

// Block returns the active block. It is only valid until the next Set or
// Reset.
func (m *MemTable) Block() *block.Block {
	return m.block
}

// Reset truncates the log and drops every record.
func (m *MemTable) Reset() error {
	if err := m.wal.Reset(); err != nil {
		return err
	}
	m.block.Reset()
	return nil
}

// LogSize returns the size of the log in bytes.
func (m *MemTable) LogSize() int64 {
	return m.wal.Size()
}

// Close releases the log file handle.
func (m *MemTable) Close() error {
	return m.wal.Close()
}
