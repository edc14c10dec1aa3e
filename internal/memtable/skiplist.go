// Package memtable implements the versioned, concurrent skiplist that backs
// each memtable, plus the memtable and memtable-set abstractions built on
// top of it.
//
// Reads are lock-free: a reader walks forward pointers loaded atomically
// and never blocks a concurrent insert. Writes still require external
// synchronization between writers (the memtable serializes them), but
// never block a reader.
package memtable

import (
	"bytes"
	"math/rand"
	"sync/atomic"
)

const (
	// DefaultMaxHeight is the default maximum height for skip list nodes.
	DefaultMaxHeight = 12

	// DefaultBranchingFactor is the default branching factor. On average,
	// 1/branchingFactor nodes are promoted to the next level.
	DefaultBranchingFactor = 4
)

// Comparator orders two keys, returning <0, 0, or >0 as a < b, a == b, or
// a > b.
type Comparator func(a, b []byte) int

// BytewiseComparator is the default comparator, plain lexicographic order.
func BytewiseComparator(a, b []byte) int {
	return bytes.Compare(a, b)
}

// skipNode is one entry in the list: a key, its current value and
// version, and a forward-pointer array.
type skipNode struct {
	key     []byte
	value   atomic.Pointer[[]byte]
	version atomic.Uint64
	next    []atomic.Pointer[skipNode]
}

func newSkipNode(key, value []byte, version uint64, height int) *skipNode {
	n := &skipNode{key: key, next: make([]atomic.Pointer[skipNode], height)}
	n.value.Store(&value)
	n.version.Store(version)
	return n
}

func (n *skipNode) getNext(level int) *skipNode {
	return n.next[level].Load()
}

func (n *skipNode) setNext(level int, next *skipNode) {
	n.next[level].Store(next)
}

// SkipList is a skip list with versioned, compare-insert semantics: an
// insert only takes effect if no entry for the key exists yet, or the
// existing entry's version is lower than the one being installed.
type SkipList struct {
	head      *skipNode
	maxHeight atomic.Int32
	compare   Comparator
	rng       *rand.Rand

	maxHeightCap int
	scaledInvB   uint32

	count atomic.Int64
}

// NewSkipList creates a skip list using cmp (BytewiseComparator if nil)
// and the default height/branching parameters.
func NewSkipList(cmp Comparator) *SkipList {
	return NewSkipListWithParams(cmp, DefaultMaxHeight, DefaultBranchingFactor)
}

// NewSkipListWithParams creates a skip list with a custom max height and
// branching factor; see Options.SkiplistMaxHeight/SkiplistBranching.
func NewSkipListWithParams(cmp Comparator, maxHeight, branchingFactor int) *SkipList {
	if cmp == nil {
		cmp = BytewiseComparator
	}
	if maxHeight <= 0 {
		maxHeight = DefaultMaxHeight
	}
	if branchingFactor <= 0 {
		branchingFactor = DefaultBranchingFactor
	}

	sl := &SkipList{
		head:         newSkipNode(nil, nil, 0, maxHeight),
		compare:      cmp,
		rng:          rand.New(rand.NewSource(0xDEADBEEF)),
		maxHeightCap: maxHeight,
		scaledInvB:   uint32(0xFFFFFFFF) / uint32(branchingFactor),
	}
	sl.maxHeight.Store(1)
	return sl
}

// Upsert installs (key, value) at version if no entry for key exists yet
// or the existing entry's version is lower. It reports whether the
// install happened and the byte-length delta to apply to a size counter:
// (newLen - oldLen) when replacing, or +newLen when inserting.
//
// REQUIRES: external synchronization between concurrent Upsert calls.
func (sl *SkipList) Upsert(key, value []byte, version uint64) (installed bool, sizeDelta int) {
	prev := make([]*skipNode, sl.maxHeightCap)
	x := sl.findGreaterOrEqual(key, prev)

	if x != nil && sl.compare(key, x.key) == 0 {
		oldVersion := x.version.Load()
		if oldVersion >= version {
			return false, 0
		}
		oldValue := x.value.Load()
		oldLen := 0
		if oldValue != nil {
			oldLen = len(*oldValue)
		}
		x.value.Store(&value)
		x.version.Store(version)
		return true, len(value) - oldLen
	}

	height := sl.randomHeight()
	maxH := int(sl.maxHeight.Load())
	if height > maxH {
		for i := maxH; i < height; i++ {
			prev[i] = sl.head
		}
		sl.maxHeight.Store(int32(height))
	}

	node := newSkipNode(key, value, version, height)
	for i := range height {
		node.setNext(i, prev[i].getNext(i))
		prev[i].setNext(i, node)
	}

	sl.count.Add(1)
	return true, len(key) + len(value)
}

// Get returns the value and version stored for key, if present.
func (sl *SkipList) Get(key []byte) (value []byte, version uint64, found bool) {
	x := sl.findGreaterOrEqual(key, nil)
	if x == nil || sl.compare(key, x.key) != 0 {
		return nil, 0, false
	}
	v := x.value.Load()
	if v == nil {
		return nil, x.version.Load(), true
	}
	return *v, x.version.Load(), true
}

// Count returns the number of distinct keys currently stored.
func (sl *SkipList) Count() int64 {
	return sl.count.Load()
}

// findGreaterOrEqual finds the first node with key >= target. If prev is
// non-nil, prev[level] is filled with the predecessor at each level.
func (sl *SkipList) findGreaterOrEqual(key []byte, prev []*skipNode) *skipNode {
	x := sl.head
	level := int(sl.maxHeight.Load()) - 1

	for {
		next := x.getNext(level)
		if next != nil && sl.compare(key, next.key) > 0 {
			x = next
		} else {
			if prev != nil {
				prev[level] = x
			}
			if level == 0 {
				return next
			}
			level--
		}
	}
}

func (sl *SkipList) findLast() *skipNode {
	x := sl.head
	level := int(sl.maxHeight.Load()) - 1

	for {
		next := x.getNext(level)
		if next != nil {
			x = next
		} else {
			if level == 0 {
				if x == sl.head {
					return nil
				}
				return x
			}
			level--
		}
	}
}

func (sl *SkipList) randomHeight() int {
	height := 1
	for height < sl.maxHeightCap {
		if sl.rng.Uint32() < sl.scaledInvB {
			height++
		} else {
			break
		}
	}
	return height
}

// Iterator walks the list in ascending key order.
type Iterator struct {
	list *SkipList
	node *skipNode
}

// NewIterator returns an iterator, unpositioned until Seek/SeekToFirst is
// called.
func (sl *SkipList) NewIterator() *Iterator {
	return &Iterator{list: sl}
}

// Valid reports whether the iterator is on an entry.
func (it *Iterator) Valid() bool {
	return it.node != nil
}

// Key returns the current entry's key.
func (it *Iterator) Key() []byte {
	if it.node == nil {
		return nil
	}
	return it.node.key
}

// Value returns the current entry's value.
func (it *Iterator) Value() []byte {
	if it.node == nil {
		return nil
	}
	v := it.node.value.Load()
	if v == nil {
		return nil
	}
	return *v
}

// Version returns the current entry's version.
func (it *Iterator) Version() uint64 {
	if it.node == nil {
		return 0
	}
	return it.node.version.Load()
}

// Error always returns nil: a skiplist walk cannot fail.
func (it *Iterator) Error() error {
	return nil
}

// Next advances to the next entry.
func (it *Iterator) Next() {
	if it.node == nil {
		return
	}
	it.node = it.node.getNext(0)
}

// Seek positions the iterator at the first entry with key >= target.
func (it *Iterator) Seek(target []byte) {
	it.node = it.list.findGreaterOrEqual(target, nil)
}

// SeekToFirst positions the iterator at the first entry.
func (it *Iterator) SeekToFirst() {
	it.node = it.list.head.getNext(0)
}

// SeekToLast positions the iterator at the last entry.
func (it *Iterator) SeekToLast() {
	it.node = it.list.findLast()
}
