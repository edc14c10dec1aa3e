package iterator

import "bytes"

// TwoMergeIterator merges two sorted iterators of possibly different
// concrete types into one, preferring a's entry when both hold the same
// key (b's duplicate is skipped). This is how memtable scans (a) are
// merged with SST scans (b): a newer memtable entry always shadows an
// older on-disk one.
type TwoMergeIterator struct {
	a, b    Iterator
	chooseA bool
}

// NewTwoMergeIterator builds a two-way merge over a and b, which must
// already be positioned.
func NewTwoMergeIterator(a, b Iterator) *TwoMergeIterator {
	m := &TwoMergeIterator{a: a, b: b}
	m.skipBDuplicates()
	m.chooseA = m.preferA()
	return m
}

func (m *TwoMergeIterator) preferA() bool {
	if !m.b.Valid() {
		return true
	}
	return m.a.Valid() && bytes.Compare(m.a.Key(), m.b.Key()) <= 0
}

func (m *TwoMergeIterator) skipBDuplicates() {
	if !m.a.Valid() {
		return
	}
	for m.b.Valid() && bytes.Equal(m.b.Key(), m.a.Key()) {
		m.b.Next()
	}
}

// Valid reports whether either side still has entries.
func (m *TwoMergeIterator) Valid() bool {
	return m.a.Valid() || m.b.Valid()
}

// Key returns the current winning side's key.
func (m *TwoMergeIterator) Key() []byte {
	if m.chooseA {
		return m.a.Key()
	}
	return m.b.Key()
}

// Value returns the current winning side's value.
func (m *TwoMergeIterator) Value() []byte {
	if m.chooseA {
		return m.a.Value()
	}
	return m.b.Value()
}

// Error returns whichever side is currently winning's error.
func (m *TwoMergeIterator) Error() error {
	if m.chooseA {
		return m.a.Error()
	}
	return m.b.Error()
}

// Next advances the winning side, then re-skips any b duplicate of a's
// new key and re-evaluates which side wins.
func (m *TwoMergeIterator) Next() {
	if m.chooseA {
		m.a.Next()
	} else {
		m.b.Next()
	}
	m.skipBDuplicates()
	m.chooseA = m.preferA()
}
