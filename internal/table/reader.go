package table

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"sync/atomic"

	"github.com/aalhour/ridgedb/internal/block"
	"github.com/aalhour/ridgedb/internal/checksum"
	"github.com/aalhour/ridgedb/internal/filter"
)

// Table is a read-only handle on an on-disk SST file.
//
// Ownership is reference counted rather than garbage collected: a table
// starts life with one reference, held by whichever level list it is
// placed on. Any caller that keeps a Table past the scope of a single
// call (an in-flight scan, a reservation that outlives a single tick)
// must Acquire a reference and Release it when done. A compaction that
// supersedes a table calls MarkForDeletion, which drops the level
// list's reference; the file is only closed and removed once the count
// reaches zero, so a reader already part-way through that file is never
// invalidated out from under it.
type Table struct {
	id   uint64
	file *os.File
	path string
	size int64

	metas      []blockMeta
	metaOffset uint32
	bloom      *filter.Reader

	smallest, biggest []byte

	cache *Cache

	refs          atomic.Int32
	pendingDelete atomic.Bool
}

// Open opens the SST file at path, verifies its trailing checksum, and
// parses its block-meta index and optional bloom filter.
func Open(path string, id uint64, cache *Cache) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("table: open %s: %w", path, err)
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("table: stat %s: %w", path, err)
	}
	size := st.Size()

	data := make([]byte, size)
	if _, err := f.ReadAt(data, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("table: read %s: %w", path, err)
	}

	t, err := parse(data, id)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("table: parse %s: %w", path, err)
	}
	t.file = f
	t.path = path
	t.size = size
	t.cache = cache
	t.refs.Store(1)

	if err := t.initKeyRange(); err != nil {
		f.Close()
		return nil, err
	}
	return t, nil
}

// parse decodes the footer of an SST file: the trailing file_crc32, the
// block-meta index, and the optional bloom filter that sits between the
// block_meta_offset field and the footer.
//
// The word right before file_crc32 (the "tail" word, at eof-8 relative to
// the whole file) means two different things depending on whether a
// bloom filter was built: with a filter it is bloom_offset (the byte
// position where the filter begins); without one, the builder writes
// meta_offset+4 in that same slot (§4.2/§6). The word immediately before
// tail is meta_offset itself exactly when no filter was built, since the
// two fields then sit back to back with nothing in between — so
// tail == candidate+4 deterministically detects absence.
func parse(data []byte, id uint64) (*Table, error) {
	if len(data) < 4 {
		return nil, ErrTruncated
	}
	body, crcBytes := data[:len(data)-4], data[len(data)-4:]
	if checksum.CRC32(body) != binary.BigEndian.Uint32(crcBytes) {
		return nil, ErrChecksumMismatch
	}
	if len(body) < 8 {
		return nil, ErrTruncated
	}

	tail := binary.BigEndian.Uint32(body[len(body)-4:])

	candidate := binary.BigEndian.Uint32(body[len(body)-8 : len(body)-4])
	if tail == candidate+4 {
		metas, metaOffset, ok := decodeMetaRange(body, candidate, uint32(len(body))-8)
		if ok {
			return &Table{id: id, metas: metas, metaOffset: metaOffset}, nil
		}
	}

	if tail < 4 || int(tail) > len(body)-4 {
		return nil, ErrTruncated
	}
	metaEnd := tail - 4
	metaOffset := binary.BigEndian.Uint32(body[metaEnd : metaEnd+4])
	metas, _, ok := decodeMetaRange(body, metaOffset, metaEnd)
	if !ok {
		return nil, ErrTruncated
	}
	return &Table{
		id:         id,
		metas:      metas,
		metaOffset: metaOffset,
		bloom:      filter.NewReader(body[tail : len(body)-4]),
	}, nil
}

// decodeMetaRange decodes the block-meta index from body[metaOffset:metaEnd].
func decodeMetaRange(body []byte, metaOffset, metaEnd uint32) (metas []blockMeta, off uint32, ok bool) {
	if metaOffset > metaEnd || int(metaEnd) > len(body) {
		return nil, 0, false
	}
	metas, err := decodeBlockMeta(body[metaOffset:metaEnd])
	if err != nil || len(metas) == 0 {
		return nil, 0, false
	}
	return metas, metaOffset, true
}

func decodeBlockMeta(data []byte) ([]blockMeta, error) {
	var metas []blockMeta
	for len(data) > 0 {
		if len(data) < 6 {
			return nil, ErrTruncated
		}
		offset := binary.BigEndian.Uint32(data)
		data = data[4:]
		klen := int(binary.BigEndian.Uint16(data))
		data = data[2:]
		if len(data) < klen {
			return nil, ErrTruncated
		}
		key := data[:klen]
		data = data[klen:]
		metas = append(metas, blockMeta{offset: offset, firstKey: append([]byte(nil), key...)})
	}
	return metas, nil
}

func (t *Table) initKeyRange() error {
	t.smallest = t.metas[0].firstKey

	last, err := t.readBlock(len(t.metas) - 1)
	if err != nil {
		return err
	}

	var key []byte
	it := block.NewIterator(last)
	for it.SeekToFirst(); it.Valid(); it.Next() {
		key = it.Key()
	}
	if key == nil {
		return ErrTruncated
	}
	t.biggest = append([]byte(nil), key...)
	return nil
}

// ID returns the table's numeric identifier.
func (t *Table) ID() uint64 { return t.id }

// Size returns the file size in bytes.
func (t *Table) Size() int64 { return t.size }

// SmallestKey and BiggestKey report the table's key range, inclusive.
func (t *Table) SmallestKey() []byte { return t.smallest }
func (t *Table) BiggestKey() []byte  { return t.biggest }

// NumBlocks returns the number of data blocks in the table.
func (t *Table) NumBlocks() int { return len(t.metas) }

// MayContain reports whether key might be present, consulting the bloom
// filter if one was built; absent a filter, it always returns true.
func (t *Table) MayContain(key []byte) bool {
	return t.bloom.MayContain(key)
}

// FindBlockIdx returns the index of the block that may contain key: the
// rightmost block whose first key is <= key, clamped to 0.
func (t *Table) FindBlockIdx(key []byte) int {
	n := sort.Search(len(t.metas), func(i int) bool {
		return bytes.Compare(t.metas[i].firstKey, key) > 0
	})
	if n == 0 {
		return 0
	}
	return n - 1
}

// OverlapSize estimates the byte span of the table covered by [lo, hi], by
// the offset gap between the blocks FindBlockIdx locates for each bound.
func (t *Table) OverlapSize(lo, hi []byte) int {
	loOff := t.blockOffset(t.FindBlockIdx(lo))
	roOff := t.blockOffset(t.FindBlockIdx(hi))
	if roOff < loOff {
		return 0
	}
	return int(roOff - loOff)
}

func (t *Table) blockOffset(idx int) uint32 {
	if idx < 0 || idx >= len(t.metas) {
		return t.metaOffset
	}
	return t.metas[idx].offset
}

func (t *Table) blockEnd(idx int) uint32 {
	if idx+1 < len(t.metas) {
		return t.metas[idx+1].offset
	}
	return t.metaOffset
}

func (t *Table) readBlock(idx int) (*block.Block, error) {
	start := t.blockOffset(idx)
	end := t.blockEnd(idx)
	if end < start {
		return nil, ErrTruncated
	}
	buf := make([]byte, end-start)
	if _, err := t.file.ReadAt(buf, int64(start)); err != nil {
		return nil, fmt.Errorf("table: read block %d of %d: %w", idx, t.id, err)
	}
	return block.Decode(buf)
}

// ReadBlock returns the decoded block at idx, through the shared cache
// when one is configured.
func (t *Table) ReadBlock(idx int) (*block.Block, error) {
	if t.cache == nil {
		return t.readBlock(idx)
	}
	return t.cache.Get(t.id, idx, func() (*block.Block, error) {
		return t.readBlock(idx)
	})
}

// Acquire records an additional reference to t, returning t for chaining.
// Pair with a matching Release once the caller is done (e.g. when an
// in-flight iterator built over t completes or errors out).
func (t *Table) Acquire() *Table {
	t.refs.Add(1)
	return t
}

// Release drops a reference acquired via Acquire or implicitly held by a
// level list. When the count reaches zero and the table has been marked
// for deletion, the file is closed and removed; otherwise only the last
// reference (normally the level list's own, dropped on shutdown) closes
// the handle without removing the file.
func (t *Table) Release() {
	if t.refs.Add(-1) != 0 {
		return
	}
	if t.pendingDelete.Load() {
		t.purge()
		return
	}
	t.file.Close()
}

// MarkForDeletion records that the table has been superseded by
// compaction and releases the level list's reference. The physical file
// is removed once every other holder (an in-flight iterator, say) has
// also released its reference; if none remain right now, it happens
// immediately.
func (t *Table) MarkForDeletion() {
	t.pendingDelete.Store(true)
	t.Release()
}

func (t *Table) purge() {
	t.file.Close()
	if t.path != "" {
		os.Remove(t.path)
	}
	if t.cache != nil {
		t.cache.EvictTable(t.id)
	}
}

// Close closes the underlying file handle without removing it from disk,
// used on a clean shutdown where every live table is kept.
func (t *Table) Close() error {
	return t.file.Close()
}
