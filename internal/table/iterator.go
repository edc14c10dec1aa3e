package table

import "github.com/aalhour/ridgedb/internal/block"

// Iterator walks an SST's entries in key order, crossing block
// boundaries as needed, reading blocks through the table's cache.
type Iterator struct {
	table *Table
	idx   int
	block *block.Iterator
	err   error
}

// NewIteratorSeekToFirst builds an iterator positioned at the table's
// first entry.
func NewIteratorSeekToFirst(t *Table) (*Iterator, error) {
	it := &Iterator{table: t}
	if err := it.loadBlock(0, nil); err != nil {
		return nil, err
	}
	return it, nil
}

// NewIteratorSeekToKey builds an iterator positioned at the first entry
// with key >= target.
func NewIteratorSeekToKey(t *Table, target []byte) (*Iterator, error) {
	it := &Iterator{table: t}
	idx := t.FindBlockIdx(target)
	if err := it.loadBlock(idx, target); err != nil {
		return nil, err
	}
	if !it.block.Valid() && idx+1 < t.NumBlocks() {
		if err := it.loadBlock(idx+1, nil); err != nil {
			return nil, err
		}
	}
	return it, nil
}

// loadBlock reads block idx and positions the block iterator: at target
// if non-nil, at the first entry otherwise.
func (it *Iterator) loadBlock(idx int, target []byte) error {
	blk, err := it.table.ReadBlock(idx)
	if err != nil {
		it.err = err
		return err
	}
	bi := block.NewIterator(blk)
	if target != nil {
		bi.Seek(target)
	} else {
		bi.SeekToFirst()
	}
	it.idx = idx
	it.block = bi
	return nil
}

// Valid reports whether the iterator is positioned at an entry.
func (it *Iterator) Valid() bool {
	return it.err == nil && it.block != nil && it.block.Valid()
}

// Key returns the current entry's key.
func (it *Iterator) Key() []byte {
	return it.block.Key()
}

// Value returns the current entry's value.
func (it *Iterator) Value() []byte {
	return it.block.Value()
}

// Error returns any error encountered while reading blocks.
func (it *Iterator) Error() error {
	return it.err
}

// Next advances to the next entry, crossing into the following block
// when the current one is exhausted.
func (it *Iterator) Next() {
	if it.err != nil || it.block == nil {
		return
	}
	it.block.Next()
	if !it.block.Valid() && it.idx+1 < it.table.NumBlocks() {
		it.loadBlock(it.idx+1, nil)
	}
}
