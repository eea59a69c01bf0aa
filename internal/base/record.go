package base

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Separator splits the key from the encoded value in a serialized record.
const Separator = ", "

var (
	// ErrNotWritable is returned for keys that cannot be framed on disk
	// without ambiguity: empty keys, keys containing the separator, and keys
	// containing a line break.
	ErrNotWritable = errors.New("base: key is not writable")
)

// DecodeError is returned when the stored value of a record is not valid
// JSON. Stores load such records without complaint; the error only surfaces
// when the value is read.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("base: failed to decode value for key %q: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Record is a single key-value pair. The value is kept in its encoded form
// and is only decoded on access.
//
// Two records are equal when their keys are equal, values are ignored for
// both equality and ordering.
type Record struct {
	key   string
	value json.RawMessage
}

// FromKeyValue encodes value as JSON and returns the record for key.
func FromKeyValue(key string, value any) (Record, error) {
	if err := ValidateKey(key); err != nil {
		return Record{}, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return Record{}, fmt.Errorf("failed to encode value for key %q: %w", key, err)
	}

	// Encode terminates the document with a newline
	return MakeRecord(key, bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// MakeRecord builds a record from an already encoded value. The value is not
// validated.
func MakeRecord(key string, value []byte) Record {
	return Record{key: key, value: value}
}

// ValidateKey reports whether key can be written and parsed back unchanged.
func ValidateKey(key string) error {
	switch {
	case key == "":
		return fmt.Errorf("%w: empty key", ErrNotWritable)
	case strings.Contains(key, Separator):
		return fmt.Errorf("%w: key %q contains separator %q", ErrNotWritable, key, Separator)
	case strings.ContainsAny(key, "\n"):
		return fmt.Errorf("%w: key %q contains a line break", ErrNotWritable, key)
	}
	return nil
}

func (r Record) Key() string {
	return r.key
}

// RawValue returns the encoded value. The caller must not modify it.
func (r Record) RawValue() json.RawMessage {
	return r.value
}

// Value decodes the stored value into v. A nil or non-pointer v is a caller
// error and is returned as is rather than as a *DecodeError.
func (r Record) Value(v any) error {
	err := json.Unmarshal(r.value, v)
	if err == nil {
		return nil
	}
	var invalid *json.InvalidUnmarshalError
	if errors.As(err, &invalid) {
		return err
	}
	return &DecodeError{Key: r.key, Err: err}
}

// AppendTo appends the serialized line to buf.
func (r Record) AppendTo(buf []byte) []byte {
	buf = append(buf, r.key...)
	buf = append(buf, Separator...)
	buf = append(buf, r.value...)
	return append(buf, '\n')
}

// Serialize returns the record as a single terminated line.
func (r Record) Serialize() []byte {
	return r.AppendTo(make([]byte, 0, len(r.key)+len(Separator)+len(r.value)+1))
}

// ParseRecord parses a serialized line. Everything before the first
// separator is the key, everything after it up to the terminator is the
// encoded value. A line without a separator yields a record with an empty
// value, which fails to decode on access.
func ParseRecord(line []byte) Record {
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))

	key, value, found := bytes.Cut(line, []byte(Separator))
	if !found {
		return Record{key: string(line)}
	}

	v := make([]byte, len(value))
	copy(v, value)
	return Record{key: string(key), value: v}
}

// Compare orders records by key.
func Compare(a, b Record) int {
	return strings.Compare(a.key, b.key)
}

// Equal reports whether a and b have the same key.
func Equal(a, b Record) bool {
	return a.key == b.key
}
