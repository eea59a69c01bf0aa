package block

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cobble/internal/base"
)

func record(key, value string) base.Record {
	rec, err := base.FromKeyValue(key, value)
	if err != nil {
		panic(err)
	}
	return rec
}

func fromPairs(pairs ...string) *Block {
	b := New(nil)
	for i := 0; i+1 < len(pairs); i += 2 {
		b.Insert(record(pairs[i], pairs[i+1]))
	}
	return b
}

// dump renders the block as key=value pairs in order.
func dump(t *testing.T, b *Block) []string {
	t.Helper()
	out := make([]string, 0, b.Len())
	for i := 0; i < b.Len(); i++ {
		rec, err := b.At(i)
		require.NoError(t, err)
		var v string
		require.NoError(t, rec.Value(&v))
		out = append(out, rec.Key()+"="+v)
	}
	return out
}

func value(t *testing.T, b *Block, key string) (string, bool) {
	t.Helper()
	rec, ok := b.Get(key)
	if !ok {
		return "", false
	}
	var v string
	require.NoError(t, rec.Value(&v))
	return v, true
}

func TestBlock_InsertKeepsOrder(t *testing.T) {
	b := fromPairs("c", "3", "a", "1", "b", "2", "aa", "11")
	assert.Equal(t, []string{"a=1", "aa=11", "b=2", "c=3"}, dump(t, b))
	assert.Equal(t, 4, b.Len())
}

func TestBlock_Get(t *testing.T) {
	b := fromPairs("b", "2", "a", "1")

	v, ok := value(t, b, "a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	_, ok = value(t, b, "z")
	assert.False(t, ok)
	_, ok = value(t, b, "0")
	assert.False(t, ok)
	_, ok = value(t, b, "ab")
	assert.False(t, ok)

	_, ok = New(nil).Get("a")
	assert.False(t, ok)
}

func TestBlock_InsertDuplicateShadows(t *testing.T) {
	b := fromPairs("name", "shashikant", "a", "x", "name", "sk")

	// Both records are kept, the later one after the earlier one
	assert.Equal(t, []string{"a=x", "name=shashikant", "name=sk"}, dump(t, b))

	v, ok := value(t, b, "name")
	assert.True(t, ok)
	assert.Equal(t, "sk", v)
}

func TestBlock_AtOutOfRange(t *testing.T) {
	b := fromPairs("a", "1")

	_, err := b.At(1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = b.At(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestBlock_Merge(t *testing.T) {
	b := fromPairs("a", "x", "b", "y", "c", "z")
	incoming := fromPairs("a", "x1", "aa", "xa")

	b.Merge(incoming)

	assert.Equal(t, []string{"a=x1", "aa=xa", "b=y", "c=z"}, dump(t, b))
	// The incoming block is not modified
	assert.Equal(t, []string{"a=x1", "aa=xa"}, dump(t, incoming))
}

func TestBlock_MergeEmpty(t *testing.T) {
	b := fromPairs("a", "1")
	b.Merge(New(nil))
	assert.Equal(t, []string{"a=1"}, dump(t, b))

	empty := New(nil)
	empty.Merge(b)
	assert.Equal(t, []string{"a=1"}, dump(t, empty))
}

func TestBlock_MergeDistinctKeyCount(t *testing.T) {
	b := New(nil)
	incoming := New(nil)
	want := map[string]string{}
	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("k%03d", i)
		if i%2 == 0 {
			b.Insert(record(key, "old"))
			want[key] = "old"
		}
		if i%3 == 0 {
			incoming.Insert(record(key, "new"))
			want[key] = "new"
		}
	}

	b.Merge(incoming)

	require.Equal(t, len(want), b.Len())
	for i := 1; i < b.Len(); i++ {
		prev, _ := b.At(i - 1)
		cur, _ := b.At(i)
		assert.Less(t, prev.Key(), cur.Key())
	}
	for key, v := range want {
		got, ok := value(t, b, key)
		assert.True(t, ok)
		assert.Equal(t, v, got, key)
	}
}

func TestBlock_MergeCollapsesDuplicates(t *testing.T) {
	b := fromPairs("a", "1", "b", "2", "b", "3")
	incoming := fromPairs("c", "4", "a", "5", "a", "6")

	b.Merge(incoming)

	assert.Equal(t, []string{"a=6", "b=3", "c=4"}, dump(t, b))
}

func TestBlock_CloneIsIndependent(t *testing.T) {
	b := fromPairs("a", "1")
	c := b.Clone()
	c.Insert(record("b", "2"))
	c.Merge(fromPairs("a", "9"))

	assert.Equal(t, []string{"a=1"}, dump(t, b))
	assert.Equal(t, []string{"a=9", "b=2"}, dump(t, c))
}

func TestBlock_Reset(t *testing.T) {
	b := fromPairs("a", "1", "b", "2")
	b.Reset()
	assert.Equal(t, 0, b.Len())
	_, ok := b.Get("a")
	assert.False(t, ok)
}

func TestBlock_WriteTo(t *testing.T) {
	b := fromPairs("b", "y", "a", "x")

	var buf bytes.Buffer
	n, err := b.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Equal(t, "a, \"x\"\nb, \"y\"\n", buf.String())
}

func TestLoadSorted(t *testing.T) {
	b := fromPairs("c", "3", "a", "1", "b", "2")
	var buf bytes.Buffer
	_, err := b.WriteTo(&buf)
	require.NoError(t, err)

	loaded, err := LoadSorted(&buf, nil)
	require.NoError(t, err)
	assert.Equal(t, dump(t, b), dump(t, loaded))
}

func TestLoadSorted_TrustsOrder(t *testing.T) {
	loaded, err := LoadSorted(strings.NewReader("b, \"2\"\na, \"1\"\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"b=2", "a=1"}, dump(t, loaded))
}

func TestLoadUnsorted(t *testing.T) {
	log := "c, \"3\"\na, \"1\"\n\nb, \"2\"\n"
	loaded, err := LoadUnsorted(strings.NewReader(log), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a=1", "b=2", "c=3"}, dump(t, loaded))
}

func TestLoadUnsorted_LaterLineWins(t *testing.T) {
	var log strings.Builder
	// Enough repeats of the same key that an unstable sort would reorder them
	for i := 0; i < 100; i++ {
		fmt.Fprintf(&log, "k, \"%d\"\n", i)
		fmt.Fprintf(&log, "other%d, \"x\"\n", i)
	}

	loaded, err := LoadUnsorted(strings.NewReader(log.String()), nil)
	require.NoError(t, err)

	v, ok := value(t, loaded, "k")
	require.True(t, ok)
	assert.Equal(t, "99", v)

	flushed := New(nil)
	flushed.Merge(loaded)
	assert.Equal(t, 101, flushed.Len())
	v, ok = value(t, flushed, "k")
	require.True(t, ok)
	assert.Equal(t, "99", v)
}

func TestLoad_TornLastLine(t *testing.T) {
	loaded, err := LoadUnsorted(strings.NewReader("a, \"1\"\nb, \"tor"), nil)
	require.NoError(t, err)
	require.Equal(t, 2, loaded.Len())

	rec, ok := loaded.Get("b")
	require.True(t, ok)
	var v string
	assert.Error(t, rec.Value(&v))
}

func TestBlock_CustomCompare(t *testing.T) {
	reverse := func(a, b string) int { return strings.Compare(b, a) }
	b := New(reverse)
	for _, k := range []string{"a", "c", "b"} {
		b.Insert(record(k, k))
	}
	assert.Equal(t, []string{"c=c", "b=b", "a=a"}, dump(t, b))

	v, ok := value(t, b, "b")
	assert.True(t, ok)
	assert.Equal(t, "b", v)
}
