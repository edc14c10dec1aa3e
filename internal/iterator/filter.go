package iterator

// SkipTombstones wraps an iterator, silently advancing past entries whose
// value is empty (a delete marker) so callers never observe tombstones in
// a scan.
type SkipTombstones struct {
	inner Iterator
}

// NewSkipTombstones wraps inner, immediately skipping past any leading
// tombstone.
func NewSkipTombstones(inner Iterator) *SkipTombstones {
	f := &SkipTombstones{inner: inner}
	f.skip()
	return f
}

func (f *SkipTombstones) skip() {
	for f.inner.Valid() && len(f.inner.Value()) == 0 {
		f.inner.Next()
	}
}

// Valid reports whether the iterator is on a non-tombstone entry.
func (f *SkipTombstones) Valid() bool { return f.inner.Valid() }

// Key returns the current key.
func (f *SkipTombstones) Key() []byte { return f.inner.Key() }

// Value returns the current value, always non-empty.
func (f *SkipTombstones) Value() []byte { return f.inner.Value() }

// Error returns the wrapped iterator's error.
func (f *SkipTombstones) Error() error { return f.inner.Error() }

// Next advances past the current entry and any tombstones that follow.
func (f *SkipTombstones) Next() {
	f.inner.Next()
	f.skip()
}
