package block

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"

	"cobble/internal/base"
	"cobble/internal/compare"
)

var ErrIndexOutOfRange = errors.New("block: index out of range")

// Block is an in-memory sequence of records ordered by key.
//
// Insert never replaces an existing record. A record inserted for a key that
// is already present is placed after it and shadows it, so lookups and merges
// always resolve a key to the most recently inserted record. Merge output is
// free of duplicate keys.
type Block struct {
	cmp     compare.Compare
	records []base.Record
}

// New returns an empty block ordered by cmp. A nil cmp orders lexicographically.
func New(cmp compare.Compare) *Block {
	return &Block{cmp: compare.OrDefault(cmp)}
}

func (b *Block) Len() int {
	return len(b.records)
}

// At returns the record at index i.
func (b *Block) At(i int) (base.Record, error) {
	if i < 0 || i >= len(b.records) {
		return base.Record{}, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, len(b.records))
	}
	return b.records[i], nil
}

// upperBound returns the index of the first record whose key sorts after key.
func (b *Block) upperBound(key string) int {
	return sort.Search(len(b.records), func(i int) bool {
		return b.cmp(b.records[i].Key(), key) > 0
	})
}

// Get returns the most recent record for key.
func (b *Block) Get(key string) (base.Record, bool) {
	i := b.upperBound(key) - 1
	if i < 0 || b.cmp(b.records[i].Key(), key) != 0 {
		return base.Record{}, false
	}
	return b.records[i], true
}

// Insert places rec after every record with a key less than or equal to its
// key.
func (b *Block) Insert(rec base.Record) {
	b.records = slices.Insert(b.records, b.upperBound(rec.Key()), rec)
}

// Merge combines other into b. When both hold a key, the record from other
// wins. Runs of a repeated key within either input collapse to their last
// record first.
func (b *Block) Merge(other *Block) {
	left := collapse(b.records, b.cmp)
	right := collapse(other.records, b.cmp)

	merged := make([]base.Record, 0, len(left)+len(right))
	i, j := 0, 0
	for i < len(left) && j < len(right) {
		switch c := b.cmp(left[i].Key(), right[j].Key()); {
		case c < 0:
			merged = append(merged, left[i])
			i++
		case c > 0:
			merged = append(merged, right[j])
			j++
		default:
			merged = append(merged, right[j])
			i++
			j++
		}
	}
	merged = append(merged, left[i:]...)
	merged = append(merged, right[j:]...)

	b.records = merged
}

// collapse keeps the last record of every run of equal keys. The input is
// returned as is when it has no duplicates.
func collapse(records []base.Record, cmp compare.Compare) []base.Record {
	dup := false
	for i := 1; i < len(records); i++ {
		if cmp(records[i-1].Key(), records[i].Key()) == 0 {
			dup = true
			break
		}
	}
	if !dup {
		return records
	}

	out := make([]base.Record, 0, len(records))
	for i, rec := range records {
		if i+1 < len(records) && cmp(rec.Key(), records[i+1].Key()) == 0 {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Clone returns a copy of b that shares no record slice with it.
func (b *Block) Clone() *Block {
	return &Block{cmp: b.cmp, records: slices.Clone(b.records)}
}

// Reset drops every record.
func (b *Block) Reset() {
	b.records = nil
}

var _ io.WriterTo = (*Block)(nil)

// WriteTo serializes every record in order, one line each.
func (b *Block) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	var line []byte
	for _, rec := range b.records {
		line = rec.AppendTo(line[:0])
		m, err := bw.Write(line)
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

// LoadSorted reads records from a source known to be in key order. The order
// is trusted and not checked.
func LoadSorted(r io.Reader, cmp compare.Compare) (*Block, error) {
	b := New(cmp)
	if err := b.read(r); err != nil {
		return nil, err
	}
	return b, nil
}

// LoadUnsorted reads records in any order and sorts them by key. The sort is
// stable, so for a repeated key the record read last stays last and wins.
func LoadUnsorted(r io.Reader, cmp compare.Compare) (*Block, error) {
	b := New(cmp)
	if err := b.read(r); err != nil {
		return nil, err
	}
	slices.SortStableFunc(b.records, func(x, y base.Record) int {
		return b.cmp(x.Key(), y.Key())
	})
	return b, nil
}

func (b *Block) read(r io.Reader) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 && !isBlank(line) {
			b.records = append(b.records, base.ParseRecord(line))
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read records: %w", err)
		}
	}
}

func isBlank(line []byte) bool {
	for _, c := range line {
		if c != '\n' && c != '\r' {
			return false
		}
	}
	return true
}
