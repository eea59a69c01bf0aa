package storage

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Note, direct I/O is only used for reading. Record files are line oriented
// text and cannot carry the block padding that direct writes need, so writes
// go through the standard library.

// Rewrite replaces the contents of name with whatever fill writes. The new
// contents are written to a temporary file in the same directory, synced,
// and renamed over name, so readers see either the old or the new file. A nil
// fill leaves the file empty.
func Rewrite(name string, fill func(w io.Writer) error) (err error) {
	dir := filepath.Dir(name)
	tmp, err := os.CreateTemp(dir, filepath.Base(name)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	// CreateTemp opens with 0600; match the mode of every other data file
	if err = tmp.Chmod(FileMode); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", tmp.Name(), err)
	}
	if fill != nil {
		w := bufio.NewWriter(tmp)
		if err = fill(w); err != nil {
			return err
		}
		if err = w.Flush(); err != nil {
			return fmt.Errorf("failed to write %s: %w", tmp.Name(), err)
		}
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), name); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return SyncDir(dir)
}

// SyncDir flushes directory entries so a rename survives a crash.
func SyncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("failed to open directory %s: %w", dir, err)
	}
	defer d.Close()
	if err = d.Sync(); err != nil {
		return fmt.Errorf("failed to sync directory %s: %w", dir, err)
	}
	return nil
}

// FileMode is the permission of data files created by the store.
const FileMode os.FileMode = 0644

// Touch creates name if it does not exist and leaves it untouched otherwise.
func Touch(name string) error {
	f, err := os.OpenFile(name, os.O_CREATE|os.O_RDONLY, FileMode)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	return f.Close()
}
