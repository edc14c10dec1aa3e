package iterator

import (
	"bytes"
	"container/heap"
)

// MergingIterator merges any number of sorted iterators into one, using a
// min-heap keyed on (key ascending, source-index ascending). When two
// sources hold the same key, the one registered at the smaller index
// wins: callers order children newest-source-first so the merge prefers
// the newest write on a duplicate key.
type MergingIterator struct {
	h *iterHeap
}

// NewMergingIterator builds a merge over children. Children already
// positioned (SeekToFirst/Seek called) and invalid ones are dropped.
func NewMergingIterator(children []Iterator) *MergingIterator {
	h := &iterHeap{}
	for i, it := range children {
		if it.Valid() {
			*h = append(*h, heapItem{index: i, iter: it})
		}
	}
	heap.Init(h)
	return &MergingIterator{h: h}
}

// Valid reports whether any child iterator still has entries.
func (m *MergingIterator) Valid() bool {
	return m.h.Len() > 0
}

// Key returns the smallest current key among the children.
func (m *MergingIterator) Key() []byte {
	return (*m.h)[0].iter.Key()
}

// Value returns the value associated with Key.
func (m *MergingIterator) Value() []byte {
	return (*m.h)[0].iter.Value()
}

// Error returns the winning child's error, if any.
func (m *MergingIterator) Error() error {
	if m.h.Len() == 0 {
		return nil
	}
	return (*m.h)[0].iter.Error()
}

// Next advances every child currently positioned on Key, so a duplicate
// key across sources is consumed once and the merge moves on to the next
// distinct key.
func (m *MergingIterator) Next() {
	if m.h.Len() == 0 {
		return
	}
	key := append([]byte(nil), m.Key()...)

	for m.h.Len() > 0 && bytes.Equal((*m.h)[0].iter.Key(), key) {
		top := (*m.h)[0]
		top.iter.Next()
		if !top.iter.Valid() || top.iter.Error() != nil {
			heap.Pop(m.h)
		} else {
			heap.Fix(m.h, 0)
		}
	}
}

type heapItem struct {
	index int
	iter  Iterator
}

type iterHeap []heapItem

func (h iterHeap) Len() int { return len(h) }

func (h iterHeap) Less(i, j int) bool {
	c := bytes.Compare(h[i].iter.Key(), h[j].iter.Key())
	if c != 0 {
		return c < 0
	}
	return h[i].index < h[j].index
}

func (h iterHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *iterHeap) Push(x any) {
	*h = append(*h, x.(heapItem))
}

func (h *iterHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
