// Package ridgedb is an embeddable, leveled-LSM ordered key-value storage
// engine: byte-string keys and values, durable writes via a WAL-backed
// skiplist memtable, background flush to level-0 SSTs, and leveled
// compaction bounding read amplification as the tree grows.
//
// A single process owns a database directory at a time (see Open); there
// is no cross-process coordination. Within that directory, Storage
// serves concurrent Get/Put/Delete/BatchPut/Scan calls while flush and
// compaction run on background goroutines.
package ridgedb

import (
	"fmt"

	"github.com/aalhour/ridgedb/internal/compression"
	"github.com/aalhour/ridgedb/internal/logging"
)

// Options configures a Storage instance. Every field corresponds to a
// knob in spec.md §6; DefaultOptions fills in the same defaults the
// original engine shipped with.
type Options struct {
	// BlockSize is the target size, in bytes, of a single SST data
	// block.
	BlockSize int
	// BlockCacheSize bounds the shared decoded-block cache, in bytes.
	BlockCacheSize int64
	// MemtableSize is the rotation threshold on the active memtable, in
	// bytes.
	MemtableSize int64
	// MaxMemtableNum is the immutable-queue length that triggers an
	// emergency flush regardless of MinMemtableToMerge.
	MaxMemtableNum int
	// MinMemtableToMerge is the immutable-queue length a normal flush
	// tick requires before it drains anything.
	MinMemtableToMerge int
	// CompactorNum is the number of background compaction workers.
	CompactorNum int
	// SubcompactorNum is the number of parallel sub-ranges a compaction
	// task is split into.
	SubcompactorNum int
	// NumLevels is the number of levels, including L0; must be >= 2.
	NumLevels int
	// MaxBytesForLevelBase is the base of the per-level byte capacity:
	// capacity(L) = MaxBytesForLevelBase * MaxBytesForLevelMultiplier^L,
	// so L0's capacity is the base itself and L1's is base * multiplier.
	MaxBytesForLevelBase int64
	// MaxBytesForLevelMultiplier is the geometric growth factor applied
	// per level.
	MaxBytesForLevelMultiplier float64
	// TargetFileSizeBase derives each level's file-count cap
	// (capacity(L) / TargetFileSizeBase, never below 4).
	TargetFileSizeBase int64
	// CompressOption selects the block codec: Uncompressed, Snappy, or
	// LZ4.
	CompressOption compression.Tag
	// FalsePositiveRate enables a bloom filter on every built SST when
	// strictly between 0 and 1; 0 disables bloom filters entirely.
	FalsePositiveRate float64
	// WaitEntryNum enables the write coalescer and sets its drain
	// threshold when > 0; 0 disables it, and PutToChannel then fails
	// with an error wrapping coalescer.ErrClosed.
	WaitEntryNum int
	// ODirect writes SST files with O_DIRECT|O_SYNC where the platform
	// supports it (see internal/vfs), instead of a plain fsync.
	ODirect bool
	// SkiplistMaxHeight and SkiplistBranching tune the memtable
	// skiplist's node height distribution; the zero value lets
	// memtable.NewSkipList pick its own defaults.
	SkiplistMaxHeight int
	SkiplistBranching int
	// Logger receives structured, namespaced log lines from every
	// subsystem. A nil Logger installs a WARN-level logger writing to
	// stderr.
	Logger logging.Logger
}

// DefaultOptions returns the engine's default configuration.
func DefaultOptions() Options {
	return Options{
		BlockSize:                  4 * 1024,
		BlockCacheSize:             64 * 1024 * 1024,
		MemtableSize:               256 * 1024 * 1024,
		MaxMemtableNum:             8,
		MinMemtableToMerge:         2,
		CompactorNum:               2,
		SubcompactorNum:            4,
		NumLevels:                  6,
		MaxBytesForLevelBase:       256 * 1024 * 1024,
		MaxBytesForLevelMultiplier: 10,
		TargetFileSizeBase:         64 * 1024 * 1024,
		CompressOption:             compression.TagSnappy,
		FalsePositiveRate:          0.1,
		WaitEntryNum:               0,
		ODirect:                    false,
		Logger:                     logging.NewDefaultLogger(logging.LevelWarn),
	}
}

// Validate rejects option combinations that would make the engine
// misbehave rather than simply under-perform.
func (o Options) Validate() error {
	if o.BlockSize <= 0 {
		return fmt.Errorf("%w: block size must be positive", ErrValidation)
	}
	if o.MemtableSize <= 0 {
		return fmt.Errorf("%w: memtable size must be positive", ErrValidation)
	}
	if o.NumLevels < 2 {
		return fmt.Errorf("%w: num levels must be >= 2, got %d", ErrValidation, o.NumLevels)
	}
	if o.MaxMemtableNum < 1 {
		return fmt.Errorf("%w: max memtable num must be >= 1", ErrValidation)
	}
	if o.MinMemtableToMerge < 1 {
		return fmt.Errorf("%w: min memtable to merge must be >= 1", ErrValidation)
	}
	if o.CompactorNum < 1 {
		return fmt.Errorf("%w: compactor num must be >= 1", ErrValidation)
	}
	if o.SubcompactorNum < 1 {
		return fmt.Errorf("%w: subcompactor num must be >= 1", ErrValidation)
	}
	if o.MaxBytesForLevelMultiplier <= 1 {
		return fmt.Errorf("%w: max bytes for level multiplier must be > 1", ErrValidation)
	}
	if o.FalsePositiveRate < 0 || o.FalsePositiveRate >= 1 {
		return fmt.Errorf("%w: false positive rate must be in [0,1)", ErrValidation)
	}
	switch o.CompressOption {
	case compression.TagUncompressed, compression.TagSnappy, compression.TagLZ4:
	default:
		return fmt.Errorf("%w: unknown compress option %d", ErrValidation, uint8(o.CompressOption))
	}
	return nil
}
