package compare

import "strings"

// Compare orders two keys, returning a negative number when a sorts before
// b, zero when they are equal and a positive number otherwise.
type Compare func(a, b string) int

// Lexicographic orders keys byte-wise. This is the order used on disk.
var Lexicographic Compare = strings.Compare

// OrDefault returns cmp, or Lexicographic when cmp is nil.
func OrDefault(cmp Compare) Compare {
	if cmp == nil {
		return Lexicographic
	}
	return cmp
}
