// Package iterator provides the merge/iterator algebra the engine scans
// with: per-source forward iterators are composed with a k-way heap merge,
// a two-way merge that prefers one side on key ties, an upper-bound
// filter, a tombstone filter, and a fused wrapper that forbids misuse once
// a scan is exhausted.
//
// All iteration here is forward-only: the engine never needs Prev, since
// scans are always ascending ranges.
package iterator

// Iterator walks a sorted sequence of (key, value) pairs.
type Iterator interface {
	// Valid reports whether the iterator is positioned at an entry.
	Valid() bool
	// Key returns the current entry's key. Only valid when Valid is true.
	Key() []byte
	// Value returns the current entry's value. Only valid when Valid is
	// true. An empty value denotes a tombstone.
	Value() []byte
	// Next advances to the next entry.
	Next()
	// Error returns any error encountered while positioning the iterator.
	Error() error
}
