package iterator

// Fused wraps an iterator so that once it becomes invalid (EOF or error),
// every subsequent Next is a silent no-op instead of undefined behavior.
// This is the type a scan hands to callers: it makes "call Next after
// Valid is false" safe to do by accident.
type Fused struct {
	inner   Iterator
	invalid bool
}

// NewFused wraps inner.
func NewFused(inner Iterator) *Fused {
	return &Fused{inner: inner}
}

// Valid reports whether the iterator is positioned at an entry.
func (f *Fused) Valid() bool {
	return !f.invalid && f.inner.Valid()
}

// Key returns the current key.
func (f *Fused) Key() []byte {
	if !f.Valid() {
		return nil
	}
	return f.inner.Key()
}

// Value returns the current value.
func (f *Fused) Value() []byte {
	if !f.Valid() {
		return nil
	}
	return f.inner.Value()
}

// Error returns the wrapped iterator's error, once latched.
func (f *Fused) Error() error {
	return f.inner.Error()
}

// Next advances the iterator, latching it invalid forever once it runs
// out of entries or hits an error.
func (f *Fused) Next() {
	if f.invalid {
		return
	}
	if f.inner.Error() != nil {
		f.invalid = true
		return
	}
	if !f.inner.Valid() {
		f.invalid = true
		return
	}
	f.inner.Next()
	if f.inner.Error() != nil || !f.inner.Valid() {
		f.invalid = true
	}
}
