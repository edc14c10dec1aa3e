// Package wal implements the per-memtable write-ahead log: a flat,
// append-only file of concatenated entries replayed on open to rebuild a
// memtable's contents after a crash.
//
// Record format, repeated until EOF:
//
//	u16 klen | key | u16 vlen | value
//
// A batch_put is written as one write syscall covering all of its records.
// Replay decodes record by record, so if a crash tears that write, the
// batch's complete leading records are recovered and the rest dropped.
package wal

import (
	"fmt"
	"os"
	"sync"

	"github.com/aalhour/ridgedb/internal/block"
)

// FileName returns the WAL file name for memtable id, e.g. "00042.mem".
func FileName(id uint64) string {
	return fmt.Sprintf("%05d.mem", id)
}

// Wal is an append-only log for a single memtable. Appends are serialized by
// mu and flushed to stable storage before returning, so a successful Append
// is durable once it returns.
type Wal struct {
	mu   sync.Mutex
	file *os.File
	seq  uint64
}

// Create creates a new, empty WAL file at path. It fails if the file
// already exists.
func Create(path string) (*Wal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wal: create %s: %w", path, err)
	}
	return &Wal{file: f}, nil
}

// Reopen opens an existing WAL file for further appends, continuing the
// sequence numbering from lastSeq (as returned by Replay).
func Reopen(path string, lastSeq uint64) (*Wal, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s: %w", path, err)
	}
	return &Wal{file: f, seq: lastSeq}, nil
}

// Append writes a single (key, value) record and flushes before returning.
// It reports the sequence number assigned to the record, which the caller
// uses as the memtable version for its compare-insert.
func (w *Wal) Append(key, value []byte) (uint64, error) {
	return w.AppendBatch([]block.Entry{{Key: key, Value: value}})
}

// AppendBatch writes every entry as a single record group with one flush
// and one assigned sequence number, which the memtable uses as the shared
// version of every entry in the batch.
func (w *Wal) AppendBatch(entries []block.Entry) (uint64, error) {
	if len(entries) == 0 {
		return 0, ErrEmptyBatch
	}

	size := 0
	for _, e := range entries {
		size += e.EncodedLen()
	}
	buf := make([]byte, 0, size)
	for _, e := range entries {
		buf = block.Encode(buf, e.Key, e.Value)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Write(buf); err != nil {
		return 0, fmt.Errorf("wal: write: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return 0, fmt.Errorf("wal: fsync: %w", err)
	}

	w.seq++
	return w.seq, nil
}

// Close closes the underlying file without removing it.
func (w *Wal) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// Remove closes and deletes the WAL file, called once the memtable's
// contents are durably reflected in an installed L0 SST.
func (w *Wal) Remove(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Close(); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("wal: remove %s: %w", path, err)
	}
	return nil
}
