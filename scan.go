package ridgedb

import (
	"fmt"

	"github.com/aalhour/ridgedb/internal/iterator"
	"github.com/aalhour/ridgedb/internal/level"
	"github.com/aalhour/ridgedb/internal/table"
)

// Scanner is a bounded forward iterator over a Storage's contents at the
// time Scan was called, merging every memtable and overlapping SST in
// newest-wins order and filtering out tombstones. Callers must call
// Close when done scanning to release the SSTs it holds open.
type Scanner struct {
	fused  *iterator.Fused
	tables []*table.Table
}

// Valid reports whether the scanner is positioned at an entry.
func (sc *Scanner) Valid() bool { return sc.fused.Valid() }

// Key returns the current entry's key.
func (sc *Scanner) Key() []byte { return sc.fused.Key() }

// Value returns the current entry's value, never empty (tombstones are
// filtered out).
func (sc *Scanner) Value() []byte { return sc.fused.Value() }

// Error returns any error encountered while positioning the scanner.
func (sc *Scanner) Error() error { return sc.fused.Error() }

// Next advances to the next entry.
func (sc *Scanner) Next() { sc.fused.Next() }

// Close releases every SST the scanner acquired a reference to. Safe to
// call more than once.
func (sc *Scanner) Close() {
	for _, t := range sc.tables {
		t.Release()
	}
	sc.tables = nil
}

// Scan returns a Scanner over [lo, hi) (hi exclusive; pass nil for
// either bound to leave it unbounded), merging the current memtables and
// every overlapping on-disk SST.
func (s *Storage) Scan(lo, hi []byte) (*Scanner, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	view := s.memtables.View() // oldest-first, active last
	mtChildren := make([]iterator.Iterator, len(view))
	for i, mt := range view {
		it := mt.NewIterator()
		if lo != nil {
			it.Seek(lo)
		} else {
			it.SeekToFirst()
		}
		// Active memtable (last in view) gets index 0 so it outranks
		// older immutables on a duplicate key.
		mtChildren[len(view)-1-i] = it
	}
	mtMerge := iterator.NewMergingIterator(mtChildren)

	sstTables := s.levels.LevelTablesSorted(level.Bound{Key: lo}, level.Bound{Key: hi})
	sstChildren := make([]iterator.Iterator, 0, len(sstTables))
	acquired := make([]*table.Table, 0, len(sstTables))
	for _, t := range sstTables {
		var it *table.Iterator
		var err error
		if lo != nil {
			it, err = table.NewIteratorSeekToKey(t, lo)
		} else {
			it, err = table.NewIteratorSeekToFirst(t)
		}
		if err != nil {
			for _, a := range acquired {
				a.Release()
			}
			return nil, fmt.Errorf("ridgedb: seek table %d for scan: %w", t.ID(), err)
		}
		t.Acquire()
		acquired = append(acquired, t)
		sstChildren = append(sstChildren, it)
	}
	sstMerge := iterator.NewMergingIterator(sstChildren)

	combined := iterator.NewTwoMergeIterator(mtMerge, sstMerge)
	bounded := iterator.NewBounded(combined, hi)
	filtered := iterator.NewSkipTombstones(bounded)
	fused := iterator.NewFused(filtered)

	return &Scanner{fused: fused, tables: acquired}, nil
}
