package block

import "bytes"

// Iterator walks the entries of a decoded Block in order.
type Iterator struct {
	block *Block
	idx   int
	key   []byte
	value []byte
}

// NewIterator creates an iterator over block, positioned before the first
// entry.
func NewIterator(b *Block) *Iterator {
	return &Iterator{block: b, idx: -1}
}

// SeekToFirst positions the iterator at the first entry.
func (it *Iterator) SeekToFirst() {
	it.idx = 0
	it.load()
}

// Seek positions the iterator at the first entry with key >= target, using
// binary search since entries are sorted.
func (it *Iterator) Seek(target []byte) {
	n := it.block.NumEntries()
	i, j := 0, n
	for i < j {
		mid := (i + j) / 2
		k, _, ok := it.block.EntryAt(mid)
		if !ok {
			break
		}
		if bytes.Compare(k, target) < 0 {
			i = mid + 1
		} else {
			j = mid
		}
	}
	it.idx = i
	it.load()
}

// Next advances to the next entry.
func (it *Iterator) Next() {
	if it.idx < 0 {
		return
	}
	it.idx++
	it.load()
}

func (it *Iterator) load() {
	k, v, ok := it.block.EntryAt(it.idx)
	if !ok {
		it.key, it.value = nil, nil
		return
	}
	it.key, it.value = k, v
}

// Valid reports whether the iterator is positioned at an entry.
func (it *Iterator) Valid() bool {
	return it.idx >= 0 && it.idx < it.block.NumEntries()
}

// Key returns the current entry's key. Only valid when Valid returns true.
func (it *Iterator) Key() []byte {
	return it.key
}

// Value returns the current entry's value. Only valid when Valid returns
// true.
func (it *Iterator) Value() []byte {
	return it.value
}

// Error always returns nil. Decode checks the block's checksum and offset
// table but not each entry's framing, and an entry that fails to decode
// is not reported here.
func (it *Iterator) Error() error {
	return nil
}
