package level

import (
	"bytes"
	"sort"

	"github.com/aalhour/ridgedb/internal/table"
)

// Get performs a point lookup starting at L0 (the storage facade already
// consults memtables before calling this): L0 tables are scanned
// newest-first; L1+ use a binary search to the rightmost table whose
// SmallestKey <= key, consulting its bloom filter first. found is true
// and value is empty for a tombstone.
func (c *Controller) Get(key []byte) (value []byte, found bool, err error) {
	l0 := c.levels[0].snapshot()
	for i := len(l0) - 1; i >= 0; i-- {
		t := l0[i].Acquire()
		v, ok, lookErr := lookupTable(t, key)
		t.Release()
		if lookErr != nil {
			return nil, false, lookErr
		}
		if ok {
			return v, true, nil
		}
	}

	for lv := 1; lv < c.opts.NumLevels; lv++ {
		tables := c.levels[lv].snapshot()
		idx := findTable(tables, key)
		if idx < 0 {
			continue
		}
		t := tables[idx]
		if !t.MayContain(key) {
			continue
		}
		t = t.Acquire()
		v, ok, lookErr := lookupTable(t, key)
		t.Release()
		if lookErr != nil {
			return nil, false, lookErr
		}
		if ok {
			return v, true, nil
		}
	}

	return nil, false, nil
}

// findTable returns the index of the rightmost table in a sorted,
// non-overlapping level list whose SmallestKey <= key, or -1 if key is
// smaller than every table's SmallestKey or greater than that table's
// BiggestKey.
func findTable(tables []*table.Table, key []byte) int {
	n := sort.Search(len(tables), func(i int) bool {
		return bytes.Compare(tables[i].SmallestKey(), key) > 0
	})
	if n == 0 {
		return -1
	}
	idx := n - 1
	if bytes.Compare(key, tables[idx].BiggestKey()) > 0 {
		return -1
	}
	return idx
}

// lookupTable seeks an iterator at key within t and reports whether the
// resulting entry is exactly key.
func lookupTable(t *table.Table, key []byte) (value []byte, found bool, err error) {
	it, err := table.NewIteratorSeekToKey(t, key)
	if err != nil {
		return nil, false, err
	}
	if !it.Valid() {
		return nil, false, it.Error()
	}
	if !bytes.Equal(it.Key(), key) {
		return nil, false, nil
	}
	return it.Value(), true, nil
}

// Bound is a scan endpoint: inclusive as a lower bound, exclusive as an
// upper bound (see LevelTablesSorted). A nil Key means unbounded in that
// direction.
type Bound struct {
	Key []byte
}

// Unbounded is the zero-value Bound, matching either end of a scan.
var Unbounded = Bound{}

func overlaps(smallest, biggest, lo, hi []byte) bool {
	if lo != nil && bytes.Compare(biggest, lo) < 0 {
		return false
	}
	if hi != nil && bytes.Compare(smallest, hi) >= 0 {
		return false
	}
	return true
}

// LevelTablesSorted returns every table whose key range overlaps [lo, hi)
// (hi exclusive, nil meaning unbounded on either side), ordered L0
// newest-first followed by each level L>=1 in ascending key order — the
// same priority order Get uses, so a caller merging these iterators with
// memtables preferring smaller indices reproduces newest-wins semantics.
func (c *Controller) LevelTablesSorted(lo, hi Bound) []*table.Table {
	var out []*table.Table

	l0 := c.levels[0].snapshot()
	for i := len(l0) - 1; i >= 0; i-- {
		t := l0[i]
		if overlaps(t.SmallestKey(), t.BiggestKey(), lo.Key, hi.Key) {
			out = append(out, t)
		}
	}

	for lv := 1; lv < c.opts.NumLevels; lv++ {
		for _, t := range c.levels[lv].snapshot() {
			if overlaps(t.SmallestKey(), t.BiggestKey(), lo.Key, hi.Key) {
				out = append(out, t)
			}
		}
	}

	return out
}
