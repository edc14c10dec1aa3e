package iterator

import "bytes"

// Bounded wraps an iterator with an exclusive upper bound: once the
// wrapped iterator's key reaches or passes upper, Bounded reports
// invalid. A nil upper bound means unbounded.
type Bounded struct {
	inner Iterator
	upper []byte
}

// NewBounded wraps inner with exclusive upper bound upper (nil for none).
// inner must already be positioned.
func NewBounded(inner Iterator, upper []byte) *Bounded {
	return &Bounded{inner: inner, upper: upper}
}

// Valid reports whether inner holds an entry before upper.
func (b *Bounded) Valid() bool {
	if !b.inner.Valid() {
		return false
	}
	return b.upper == nil || bytes.Compare(b.inner.Key(), b.upper) < 0
}

// Key returns the current key.
func (b *Bounded) Key() []byte { return b.inner.Key() }

// Value returns the current value.
func (b *Bounded) Value() []byte { return b.inner.Value() }

// Error returns the wrapped iterator's error.
func (b *Bounded) Error() error { return b.inner.Error() }

// Next advances the wrapped iterator.
func (b *Bounded) Next() {
	if b.Valid() {
		b.inner.Next()
	}
}
