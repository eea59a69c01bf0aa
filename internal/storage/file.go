package storage

import (
	"errors"
	"io"
	"os"
	"syscall"

	"github.com/ncw/directio"
)

// OpenFile opens name for reading. When direct is set the file is opened with
// direct I/O, bypassing the page cache. Filesystems that reject direct I/O
// (tmpfs, some overlay mounts) fall back to a regular open.
func OpenFile(name string, direct bool) (*os.File, error) {
	if direct {
		file, err := directio.OpenFile(name, os.O_RDONLY, 0)
		if err == nil {
			return file, nil
		}
		if !errors.Is(err, syscall.EINVAL) {
			return nil, err
		}
	}
	return os.Open(name)
}

// Reader reads a file in disk block sized chunks through a block aligned
// buffer. Aligned reads are required by direct I/O and are harmless for
// regular files.
type Reader struct {
	name   string
	direct bool
	file   *os.File
	block  []byte
	pos    int64
	off    int
	n      int
	err    error
}

// NewReader opens name for block aligned reading.
func NewReader(name string, direct bool) (*Reader, error) {
	file, err := OpenFile(name, direct)
	if err != nil {
		return nil, err
	}
	return &Reader{
		name:   name,
		direct: direct,
		file:   file,
		block:  directio.AlignedBlock(directio.BlockSize),
	}, nil
}

var _ io.ReadCloser = (*Reader)(nil)

func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for r.off == r.n {
		if r.err != nil {
			return 0, r.err
		}
		r.fill()
	}
	n := copy(p, r.block[r.off:r.n])
	r.off += n
	return n, nil
}

func (r *Reader) fill() {
	n, err := r.file.Read(r.block)
	if err != nil && r.direct && errors.Is(err, syscall.EINVAL) {
		// Some filesystems accept O_DIRECT on open and only reject the read.
		if err = r.reopen(); err == nil {
			n, err = r.file.Read(r.block)
		}
	}
	r.pos += int64(n)
	r.off, r.n, r.err = 0, n, err
}

func (r *Reader) reopen() error {
	file, err := os.Open(r.name)
	if err != nil {
		return err
	}
	if _, err = file.Seek(r.pos, io.SeekStart); err != nil {
		_ = file.Close()
		return err
	}
	_ = r.file.Close()
	r.file = file
	r.direct = false
	return nil
}

func (r *Reader) Close() error {
	return r.file.Close()
}
