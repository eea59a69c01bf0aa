package wal

import (
	"errors"
	"fmt"
	"os"

	"cobble/internal/base"
)

var ErrClosed = errors.New("wal: log is closed")

// SyncMode determines when appended records reach stable storage.
type SyncMode int

const (
	// SyncAlways fsyncs after every append. Each write is durable once Append
	// returns.
	SyncAlways SyncMode = iota
	// SyncNone leaves flushing to the operating system.
	SyncNone
)

// WAL (write-ahead log) is the append-only record log backing a memtable. It
// holds the serialized form of every record written to the memtable since
// the last reset, in write order.
type WAL struct {
	path string
	// logfile is nil after a failed Reset until the next Append or Reset
	// reopens it.
	logfile *os.File
	sync    SyncMode
	size    int64
	closed  bool
}

// Open opens the log at path for appending, creating it if needed.
func Open(path string, sync SyncMode) (*WAL, error) {
	w := &WAL{path: path, sync: sync}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *WAL) open() error {
	logfile, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log %s: %w", w.path, err)
	}
	info, err := logfile.Stat()
	if err != nil {
		_ = logfile.Close()
		return fmt.Errorf("failed to stat log %s: %w", w.path, err)
	}
	w.logfile = logfile
	w.size = info.Size()
	return nil
}

// Append writes rec as a single line.
func (w *WAL) Append(rec base.Record) error {
	if w.closed {
		return ErrClosed
	}
	if w.logfile == nil {
		if err := w.open(); err != nil {
			return err
		}
	}

	n, err := w.logfile.Write(rec.Serialize())
	w.size += int64(n)
	if err != nil {
		return fmt.Errorf("failed to append to log: %w", err)
	}
	if w.sync == SyncAlways {
		if err = w.logfile.Sync(); err != nil {
			return fmt.Errorf("failed to sync log: %w", err)
		}
	}
	return nil
}

// Reset closes the log, truncates it to zero length and reopens it for
// appending. The truncate is as atomic as the filesystem makes it. A Reset
// that fails part way can be retried.
func (w *WAL) Reset() error {
	if w.closed {
		return ErrClosed
	}
	if w.logfile != nil {
		err := w.logfile.Close()
		w.logfile = nil
		if err != nil {
			return fmt.Errorf("failed to close log: %w", err)
		}
	}
	if err := os.Truncate(w.path, 0); err != nil {
		return fmt.Errorf("failed to truncate log: %w", err)
	}
	return w.open()
}

// Size returns the current log size in bytes.
func (w *WAL) Size() int64 {
	return w.size
}

func (w *WAL) Path() string {
	return w.path
}

// Close releases the log file handle. Closing twice is a no-op.
func (w *WAL) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.logfile == nil {
		return nil
	}
	err := w.logfile.Close()
	w.logfile = nil
	return err
}
