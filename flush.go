package ridgedb

import (
	"fmt"
	"time"

	"github.com/aalhour/ridgedb/internal/iterator"
	"github.com/aalhour/ridgedb/internal/logging"
	"github.com/aalhour/ridgedb/internal/memtable"
	"github.com/aalhour/ridgedb/internal/table"
)

// Flush worker tick periods from spec.md §4.9: a normal tick only flushes
// once the immutable queue reaches MinMemtableToMerge; an emergency tick
// flushes once it reaches MaxMemtableNum-1, regardless of the minimum.
const (
	normalFlushInterval    = 50 * time.Millisecond
	emergencyFlushInterval = 5 * time.Millisecond
)

func (s *Storage) flushLoop() {
	normal := time.NewTicker(normalFlushInterval)
	emergency := time.NewTicker(emergencyFlushInterval)
	defer normal.Stop()
	defer emergency.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-normal.C:
			s.maybeFlush(false)
		case <-emergency.C:
			s.maybeFlush(true)
		}
	}
}

func (s *Storage) maybeFlush(emergency bool) {
	threshold := s.opts.MinMemtableToMerge
	if emergency {
		threshold = s.opts.MaxMemtableNum - 1
	}
	if s.memtables.ImmutableCount() < threshold {
		return
	}

	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	n := s.memtables.ImmutableCount()
	if n < threshold {
		return // another worker already flushed since the check above
	}
	pending := s.memtables.PeekImmutable(n)
	if len(pending) == 0 {
		return
	}

	if err := s.flushMemtables(pending); err != nil {
		s.logger.Errorf(logging.NSFlush+"flush of %d memtables failed: %v", len(pending), err)
		return
	}
	s.memtables.RemoveFlushed(len(pending))
	for _, mt := range pending {
		if err := mt.Discard(); err != nil {
			s.logger.Warnf(logging.NSFlush+"discard wal for memtable %d: %v", mt.ID(), err)
		}
	}
}

// flushMemtables k-way merges the given memtables (newest-first priority,
// since pending is oldest-first) into a single L0 SST and installs it
// through the level controller. It does not mutate the memtable set;
// callers advance the queue only after this returns successfully.
func (s *Storage) flushMemtables(pending []*memtable.Memtable) error {
	builder := table.NewBuilder(s.opts.BlockSize, s.opts.CompressOption, s.opts.FalsePositiveRate)

	children := make([]iterator.Iterator, len(pending))
	for i, mt := range pending {
		it := mt.NewIterator()
		it.SeekToFirst()
		// Newest memtable (last in pending) gets the smallest index so
		// MergingIterator prefers it on a duplicate key.
		children[len(pending)-1-i] = it
	}
	merged := iterator.NewMergingIterator(children)

	for merged.Valid() {
		if err := merged.Error(); err != nil {
			return err
		}
		if err := builder.Add(merged.Key(), merged.Value()); err != nil {
			return fmt.Errorf("ridgedb: add to flush builder: %w", err)
		}
		merged.Next()
	}
	if err := merged.Error(); err != nil {
		return err
	}

	if builder.IsEmpty() {
		return nil
	}
	_, err := s.levels.PushL0(builder)
	return err
}

// syncLocked is Sync's body, assumed called with flushMu held.
func (s *Storage) syncLocked() error {
	pending := s.memtables.Sync()
	if len(pending) == 0 {
		return nil
	}
	if err := s.flushMemtables(pending); err != nil {
		return fmt.Errorf("ridgedb: sync flush: %w", err)
	}
	for _, mt := range pending {
		if err := mt.Discard(); err != nil {
			return fmt.Errorf("ridgedb: discard wal for memtable %d: %w", mt.ID(), err)
		}
	}
	return nil
}
