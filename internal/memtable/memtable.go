package memtable

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/aalhour/ridgedb/internal/block"
	"github.com/aalhour/ridgedb/internal/wal"
)

// Memtable is an in-memory, WAL-backed ordered map of recent writes. A
// put first appends to the WAL to obtain a version, then compare-inserts
// into the skiplist so that concurrent writers racing on the same key
// settle in WAL append order.
type Memtable struct {
	id       uint64
	skiplist *SkipList
	wal      *wal.Wal
	walPath  string

	// writeMu serializes Upsert calls into skiplist, which requires
	// external synchronization between writers; reads stay lock-free.
	writeMu sync.Mutex
	size    atomic.Int64
}

// New creates memtable id with a fresh WAL file under dir. maxHeight and
// branchingFactor tune the skiplist's node height distribution; pass 0
// for either to use the package defaults.
func New(dir string, id uint64, maxHeight, branchingFactor int) (*Memtable, error) {
	path := filepath.Join(dir, wal.FileName(id))
	w, err := wal.Create(path)
	if err != nil {
		return nil, fmt.Errorf("memtable: create wal for %d: %w", id, err)
	}
	sl := NewSkipListWithParams(nil, maxHeight, branchingFactor)
	return &Memtable{id: id, skiplist: sl, wal: w, walPath: path}, nil
}

// Recover rebuilds memtable id from an existing WAL file under dir,
// replaying every record into the skiplist and reopening the WAL for
// further appends at the next sequence number. maxHeight and
// branchingFactor tune the skiplist the same way New does.
func Recover(dir string, id uint64, maxHeight, branchingFactor int) (*Memtable, error) {
	path := filepath.Join(dir, wal.FileName(id))
	records, lastSeq, err := wal.Replay(path)
	if err != nil {
		return nil, fmt.Errorf("memtable: replay %d: %w", id, err)
	}

	sl := NewSkipListWithParams(nil, maxHeight, branchingFactor)
	var size int64
	for _, r := range records {
		_, delta := sl.Upsert(r.Key, r.Value, r.Seq)
		size += int64(delta)
	}

	w, err := wal.Reopen(path, lastSeq)
	if err != nil {
		return nil, fmt.Errorf("memtable: reopen wal for %d: %w", id, err)
	}

	mt := &Memtable{id: id, skiplist: sl, wal: w, walPath: path}
	mt.size.Store(size)
	return mt, nil
}

// ID returns the memtable's identifier, also its WAL's file id.
func (m *Memtable) ID() uint64 {
	return m.id
}

// Size returns the current approximate memory footprint in bytes: the sum
// of stored key and value lengths.
func (m *Memtable) Size() int64 {
	return m.size.Load()
}

// Put writes key, value durably: the WAL append flushes before Put
// returns, and only a successful append is reflected in the skiplist.
// An empty value records a tombstone (see Delete).
func (m *Memtable) Put(key, value []byte) error {
	seq, err := m.wal.Append(key, value)
	if err != nil {
		return fmt.Errorf("memtable: put: %w", err)
	}
	m.writeMu.Lock()
	_, delta := m.skiplist.Upsert(key, value, seq)
	m.writeMu.Unlock()
	m.size.Add(int64(delta))
	return nil
}

// Delete records a tombstone for key: an empty value, durable and
// ordered the same way Put is.
func (m *Memtable) Delete(key []byte) error {
	return m.Put(key, nil)
}

// BatchEntry is one key-value pair in a PutBatch call.
type BatchEntry struct {
	Key   []byte
	Value []byte
}

// PutBatch writes every entry as a single WAL append (one flush, one
// assigned version) and then compare-inserts each into the skiplist under
// that shared version. The inserts happen one entry at a time, so a
// concurrent reader can observe part of the batch.
func (m *Memtable) PutBatch(entries []BatchEntry) error {
	if len(entries) == 0 {
		return nil
	}
	records := make([]block.Entry, len(entries))
	for i, e := range entries {
		records[i] = block.Entry{Key: e.Key, Value: e.Value}
	}

	seq, err := m.wal.AppendBatch(records)
	if err != nil {
		return fmt.Errorf("memtable: put batch: %w", err)
	}
	m.writeMu.Lock()
	var total int64
	for _, e := range entries {
		_, delta := m.skiplist.Upsert(e.Key, e.Value, seq)
		total += int64(delta)
	}
	m.writeMu.Unlock()
	m.size.Add(total)
	return nil
}

// Get returns the value stored for key and whether it was found. A found
// entry with a nil value is a tombstone, not a miss: callers distinguish
// "deleted" from "absent" by the found flag together with value being
// nil, matching the point-lookup semantics described for the engine as a
// whole.
func (m *Memtable) Get(key []byte) (value []byte, found bool) {
	v, _, ok := m.skiplist.Get(key)
	return v, ok
}

// NewIterator returns an iterator over the memtable's contents in key
// order.
func (m *Memtable) NewIterator() *Iterator {
	return m.skiplist.NewIterator()
}

// Close closes the memtable's WAL handle without deleting the file.
func (m *Memtable) Close() error {
	return m.wal.Close()
}

// Discard closes and removes the memtable's WAL file. Called once the
// memtable has been flushed to an installed L0 SST and its contents no
// longer need to be replayed on recovery.
func (m *Memtable) Discard() error {
	return m.wal.Remove(m.walPath)
}
