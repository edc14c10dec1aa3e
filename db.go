package ridgedb

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/aalhour/ridgedb/internal/coalescer"
	"github.com/aalhour/ridgedb/internal/level"
	"github.com/aalhour/ridgedb/internal/logging"
	"github.com/aalhour/ridgedb/internal/manifest"
	"github.com/aalhour/ridgedb/internal/memtable"
	"github.com/aalhour/ridgedb/internal/table"
)

// Entry is one key-value pair, used by BatchPut and PutToChannel.
type Entry struct {
	Key   []byte
	Value []byte
}

// Storage is an open handle on a database directory. Create one with
// Open and release it with Close.
type Storage struct {
	dir    string
	opts   Options
	logger logging.Logger

	manifest  *manifest.Manifest
	cache     *table.Cache
	memtables *memtable.Set
	levels    *level.Controller
	coalescer *coalescer.Coalescer

	flushMu sync.Mutex

	stop   chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool
}

// Open opens (creating if absent) a database directory under opts,
// replaying its MANIFEST and WAL files, and starts the flush and
// compaction background workers (and the write coalescer, when
// Options.WaitEntryNum > 0).
func Open(dir string, opts Options) (*Storage, error) {
	if opts.Logger == nil {
		opts = withDefaultLogger(opts)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ridgedb: mkdir %s: %w", dir, err)
	}

	logger := logging.OrDefault(opts.Logger)

	mf, l0IDs, err := manifest.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("ridgedb: open manifest: %w", err)
	}

	cache := table.NewCache(opts.BlockCacheSize)

	levels, err := level.Open(dir, level.Options{
		NumLevels:                  opts.NumLevels,
		MaxBytesForLevelBase:       opts.MaxBytesForLevelBase,
		MaxBytesForLevelMultiplier: opts.MaxBytesForLevelMultiplier,
		TargetFileSizeBase:         opts.TargetFileSizeBase,
		BlockSize:                  opts.BlockSize,
		Compression:                opts.CompressOption,
		FalsePositiveRate:          opts.FalsePositiveRate,
		ODirect:                    opts.ODirect,
		SubcompactorNum:            opts.SubcompactorNum,
	}, mf, cache, logger, l0IDs)
	if err != nil {
		return nil, fmt.Errorf("ridgedb: open level controller: %w", err)
	}

	memIDs, err := discoverMemtableIDs(dir)
	if err != nil {
		return nil, err
	}
	mts, err := memtable.Open(dir, opts.MemtableSize, memIDs, opts.SkiplistMaxHeight, opts.SkiplistBranching)
	if err != nil {
		return nil, fmt.Errorf("ridgedb: recover memtables: %w", err)
	}

	s := &Storage{
		dir:       dir,
		opts:      opts,
		logger:    logger,
		manifest:  mf,
		cache:     cache,
		memtables: mts,
		levels:    levels,
		stop:      make(chan struct{}),
	}

	if opts.WaitEntryNum > 0 {
		s.coalescer = coalescer.New(opts.WaitEntryNum, func(entries []coalescer.Entry) error {
			return s.applyBatch(toMemtableEntries(entries))
		})
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.flushLoop()
	}()

	for i := 0; i < opts.CompactorNum; i++ {
		i := i
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.levels.RunWorker(i, s.stop)
		}()
	}

	return s, nil
}

func withDefaultLogger(opts Options) Options {
	opts.Logger = logging.NewDefaultLogger(logging.LevelWarn)
	return opts
}

// discoverMemtableIDs lists the *.mem WAL files under dir and returns
// their ids in ascending order (oldest first, as memtable.Open expects).
func discoverMemtableIDs(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ridgedb: read dir %s: %w", dir, err)
	}
	var ids []uint64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if filepath.Ext(name) != ".mem" {
			continue
		}
		base := name[:len(name)-len(".mem")]
		var id uint64
		if _, err := fmt.Sscanf(base, "%d", &id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	return ids, nil
}

// Get returns the value stored for key, or found=false if it is absent
// or was deleted. It consults memtables newest-first, then the level
// controller.
func (s *Storage) Get(key []byte) (value []byte, found bool, err error) {
	if s.closed.Load() {
		return nil, false, ErrClosed
	}
	if len(key) == 0 {
		return nil, false, ErrEmptyKey
	}
	if v, ok := s.memtables.Get(key); ok {
		return v, len(v) > 0, nil
	}
	v, ok, err := s.levels.Get(key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return v, len(v) > 0, nil
}

// Put writes key, value durably: the call returns only after the
// underlying WAL append has flushed. An empty value is rejected; use
// Delete to write a tombstone.
func (s *Storage) Put(key, value []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if len(key) == 0 {
		return ErrEmptyKey
	}
	if len(value) == 0 {
		return ErrEmptyValue
	}
	return s.memtables.Put(key, value)
}

// Delete writes a tombstone for key, shadowing any older value without
// immediately reclaiming space (reclamation happens at compaction).
func (s *Storage) Delete(key []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if len(key) == 0 {
		return ErrEmptyKey
	}
	return s.memtables.Delete(key)
}

// BatchPut writes every entry as a single WAL append and a single
// memtable version. Entries become visible one at a time, so a concurrent
// reader can observe part of the batch. An empty key or an empty value
// rejects the whole batch before anything is written.
func (s *Storage) BatchPut(entries []Entry) error {
	if s.closed.Load() {
		return ErrClosed
	}
	for _, e := range entries {
		if len(e.Key) == 0 {
			return ErrEmptyKey
		}
		if len(e.Value) == 0 {
			return ErrEmptyValue
		}
	}
	return s.applyBatch(entries)
}

func (s *Storage) applyBatch(entries []Entry) error {
	batch := make([]memtable.BatchEntry, len(entries))
	for i, e := range entries {
		batch[i] = memtable.BatchEntry{Key: e.Key, Value: e.Value}
	}
	return s.memtables.PutBatch(batch)
}

// PutToChannel enqueues entries on the write coalescer and returns a
// receiver that yields the shared batch's error once applied. It fails
// immediately if Options.WaitEntryNum was 0 at Open (the coalescer is
// disabled).
func (s *Storage) PutToChannel(entries []Entry) (<-chan error, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if s.coalescer == nil {
		return nil, fmt.Errorf("ridgedb: write coalescer disabled: %w", coalescer.ErrClosed)
	}
	for _, e := range entries {
		if len(e.Key) == 0 {
			return nil, ErrEmptyKey
		}
	}
	ce := make([]coalescer.Entry, len(entries))
	for i, e := range entries {
		ce[i] = coalescer.Entry{Key: e.Key, Value: e.Value}
	}
	return s.coalescer.Submit(ce), nil
}

func toMemtableEntries(entries []coalescer.Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = Entry{Key: e.Key, Value: e.Value}
	}
	return out
}

// Sync rotates the active memtable to immutable, merges every queued
// memtable into a single L0 SST, and installs it — used on shutdown so
// no writes are left only in a WAL.
func (s *Storage) Sync() error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()
	return s.syncLocked()
}

// Close stops the background workers, flushes any remaining memtables,
// and keeps every live SST file on disk (mark_save semantics).
func (s *Storage) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	close(s.stop)
	s.wg.Wait()

	if s.coalescer != nil {
		s.coalescer.Close()
	}

	if err := s.Sync(); err != nil {
		// A sync failure on shutdown must not silently lose data: the
		// caller needs to know durability was not achieved.
		panic(fmt.Sprintf("ridgedb: sync on close failed: %v", err))
	}

	if err := s.levels.Close(); err != nil {
		return err
	}
	return s.manifest.Close()
}
