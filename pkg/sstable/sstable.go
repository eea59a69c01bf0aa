package sstable

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cobble/internal/base"
	"cobble/internal/block"
	"cobble/internal/compare"
	"cobble/internal/storage"
)

const (
	DirectoryName = "read_files"
	FileName      = "read.txt"
)

// Options configures a table.
type Options struct {
	// DirectIO loads the table file with direct I/O reads.
	DirectIO bool
	Compare  compare.Compare
}

// SSTable holds every flushed record in a single sorted file. The file is
// only ever written by Merge and Clear, which rewrite it in full, so it is
// always in key order and is loaded without sorting.
type SSTable struct {
	path  string
	block *block.Block
}

// Open loads the table file under dir, creating an empty one if absent.
func Open(dir string, opts Options) (*SSTable, error) {
	tableDir := filepath.Join(dir, DirectoryName)
	if err := os.MkdirAll(tableDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create table directory: %w", err)
	}

	path := filepath.Join(tableDir, FileName)
	if err := storage.Touch(path); err != nil {
		return nil, err
	}

	r, err := storage.NewReader(path, opts.DirectIO)
	if err != nil {
		return nil, fmt.Errorf("failed to open table file: %w", err)
	}
	defer r.Close()

	blk, err := block.LoadSorted(r, opts.Compare)
	if err != nil {
		return nil, fmt.Errorf("failed to load table %s: %w", path, err)
	}

	return &SSTable{
		path:  path,
		block: blk,
	}, nil
}

// Get returns the record for key.
func (s *SSTable) Get(key string) (base.Record, bool) {
	return s.block.Get(key)
}

// Len returns the number of records in the table.
func (s *SSTable) Len() int {
	return s.block.Len()
}

func (s *SSTable) Path() string {
	return s.path
}

// Merge folds incoming into the table, incoming records winning over
// existing ones for the same key, and rewrites the file with the result. The
// table is left unchanged if the rewrite fails.
func (s *SSTable) Merge(incoming *block.Block) error {
	merged := s.block.Clone()
	merged.Merge(incoming)

	err := storage.Rewrite(s.path, func(w io.Writer) error {
		_, err := merged.WriteTo(w)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to rewrite table: %w", err)
	}

	s.block = merged
	return nil
}

// Clear empties the table and its file.
func (s *SSTable) Clear() error {
	if err := storage.Rewrite(s.path, nil); err != nil {
		return fmt.Errorf("failed to clear table: %w", err)
	}
	s.block.Reset()
	return nil
}
