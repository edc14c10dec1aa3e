package memtable

import (
	"fmt"
	"sync"
)

// Set holds the active memtable plus a FIFO queue of immutable memtables
// awaiting flush, and assigns monotonically increasing memtable ids.
//
// Producers (put, get, scan) hold the read lock. A read-locked caller that
// observes the active memtable over memtableSize attempts a write-lock
// upgrade via TryLock rather than blocking; whichever goroutine wins
// re-checks the size under the write lock (to avoid double-rotating) and
// then rotates: a new memtable is created with the next id, and the old
// active memtable is pushed onto the immutable queue.
type Set struct {
	mu sync.RWMutex

	dir          string
	memtableSize int64
	nextID       uint64

	skiplistMaxHeight int
	skiplistBranching int

	active    *Memtable
	immutable []*Memtable // oldest first
}

// Open creates a memtable set rooted at dir, recovering any existing
// memtables named in ids (oldest first, active last) and otherwise
// starting a fresh active memtable with id 0. maxHeight and
// branchingFactor tune every memtable's skiplist (see
// Options.SkiplistMaxHeight/SkiplistBranching); pass 0 for either to use
// the package defaults.
func Open(dir string, memtableSize int64, ids []uint64, maxHeight, branchingFactor int) (*Set, error) {
	s := &Set{
		dir:               dir,
		memtableSize:      memtableSize,
		skiplistMaxHeight: maxHeight,
		skiplistBranching: branchingFactor,
	}

	if len(ids) == 0 {
		mt, err := New(dir, 0, maxHeight, branchingFactor)
		if err != nil {
			return nil, err
		}
		s.active = mt
		s.nextID = 1
		return s, nil
	}

	for _, id := range ids[:len(ids)-1] {
		mt, err := Recover(dir, id, maxHeight, branchingFactor)
		if err != nil {
			return nil, fmt.Errorf("memtable set: recover %d: %w", id, err)
		}
		s.immutable = append(s.immutable, mt)
	}

	lastID := ids[len(ids)-1]
	mt, err := Recover(dir, lastID, maxHeight, branchingFactor)
	if err != nil {
		return nil, fmt.Errorf("memtable set: recover active %d: %w", lastID, err)
	}
	s.active = mt
	s.nextID = lastID + 1
	return s, nil
}

// Put writes key, value into the active memtable and rotates if that
// pushed it over the size threshold.
func (s *Set) Put(key, value []byte) error {
	s.mu.RLock()
	active := s.active
	err := active.Put(key, value)
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	s.maybeRotate(active)
	return nil
}

// Delete records a tombstone for key, same durability and rotation
// behavior as Put.
func (s *Set) Delete(key []byte) error {
	return s.Put(key, nil)
}

// PutBatch writes entries into the active memtable as one WAL append and
// rotates if that pushed it over the size threshold.
func (s *Set) PutBatch(entries []BatchEntry) error {
	s.mu.RLock()
	active := s.active
	err := active.PutBatch(entries)
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	s.maybeRotate(active)
	return nil
}

// maybeRotate attempts a write-lock upgrade to rotate observed over size.
// It never blocks: if the write lock is contended, some other goroutine is
// already rotating (or about to), and this caller simply moves on.
func (s *Set) maybeRotate(observed *Memtable) {
	if observed.Size() <= s.memtableSize {
		return
	}
	if !s.mu.TryLock() {
		return
	}
	defer s.mu.Unlock()

	if s.active != observed || s.active.Size() <= s.memtableSize {
		return
	}

	next, err := New(s.dir, s.nextID, s.skiplistMaxHeight, s.skiplistBranching)
	if err != nil {
		// Rotation failure just means the active memtable keeps growing;
		// the next Put will retry.
		return
	}
	s.nextID++
	s.immutable = append(s.immutable, s.active)
	s.active = next
}

// Get looks up key across every memtable newest-first (active, then the
// immutable queue from newest to oldest), returning the first hit. A
// found entry with a nil value is a tombstone.
func (s *Set) Get(key []byte) (value []byte, found bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.active.Get(key); ok {
		return v, true
	}
	for i := len(s.immutable) - 1; i >= 0; i-- {
		if v, ok := s.immutable[i].Get(key); ok {
			return v, true
		}
	}
	return nil, false
}

// View returns the memtables to consult for a read, oldest-immutable-first
// and active last; callers scan in reverse (newest-first).
func (s *Set) View() []*Memtable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	view := make([]*Memtable, 0, len(s.immutable)+1)
	view = append(view, s.immutable...)
	view = append(view, s.active)
	return view
}

// ImmutableCount returns the number of memtables waiting on flush.
func (s *Set) ImmutableCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.immutable)
}

// PeekImmutable returns (without removing) the n oldest immutable
// memtables, for a flush attempt that must not advance the queue until
// the derived SST is durably installed: on failure the next tick simply
// peeks the same memtables again.
func (s *Set) PeekImmutable(n int) []*Memtable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n > len(s.immutable) {
		n = len(s.immutable)
	}
	return append([]*Memtable(nil), s.immutable[:n]...)
}

// RemoveFlushed removes the n oldest immutable memtables from the queue
// once their derived SST has been installed.
func (s *Set) RemoveFlushed(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.immutable) {
		n = len(s.immutable)
	}
	s.immutable = s.immutable[n:]
}

// Sync rotates the active memtable to immutable and returns every
// memtable now queued, for the caller to merge into a single L0 SST and
// install before shutdown.
func (s *Set) Sync() []*Memtable {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := New(s.dir, s.nextID, s.skiplistMaxHeight, s.skiplistBranching)
	if err == nil {
		s.nextID++
		s.immutable = append(s.immutable, s.active)
		s.active = next
	}

	all := s.immutable
	s.immutable = nil
	return all
}
