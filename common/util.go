package common

import "strings"

// SaveString returns a copy of `s` that does not share memory with its
// source.  Strings handed to a plugin or interned in the symbol table are
// often slices of mapped input files which may be unmapped later.
func SaveString(s string) string {
	return strings.Clone(s)
}

// RemoveIf removes all elements of `s` satisfying `pred` in place and returns
// the shortened slice.  The relative order of the remaining elements is kept.
func RemoveIf[T any](s []T, pred func(T) bool) []T {
	n := 0
	for _, v := range s {
		if !pred(v) {
			s[n] = v
			n++
		}
	}

	// clear the tail so evicted elements can be collected
	var zero T
	for i := n; i < len(s); i++ {
		s[i] = zero
	}

	return s[:n]
}
