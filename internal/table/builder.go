// Package table builds and reads SST files: a sequence of block
// envelopes, a block-meta index, an optional bloom filter, and a
// trailing file checksum.
package table

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/aalhour/ridgedb/internal/block"
	"github.com/aalhour/ridgedb/internal/checksum"
	"github.com/aalhour/ridgedb/internal/compression"
	"github.com/aalhour/ridgedb/internal/filter"
)

// Capacity is the target maximum size of a single SST file. A builder
// reporting ReachedCapacity signals its caller to seal the file and start
// a new one.
const Capacity = 64 * 1024 * 1024

type blockMeta struct {
	offset   uint32
	firstKey []byte
}

// Builder streams sorted key-value pairs into data blocks and, on
// Finish, assembles the full SST file layout.
type Builder struct {
	meta      []blockMeta
	data      []byte
	block     *block.Builder
	baseKey   []byte
	blockSize int
	compress  compression.Tag
	bloom     *filter.Builder

	smallest, biggest []byte
}

// NewBuilder creates a builder targeting blockSize-byte data blocks,
// compressing each with compress. If falsePositiveRate is > 0, a bloom
// filter is built over every added key.
func NewBuilder(blockSize int, compress compression.Tag, falsePositiveRate float64) *Builder {
	b := &Builder{
		block:     block.NewBuilder(blockSize),
		blockSize: blockSize,
		compress:  compress,
	}
	if falsePositiveRate > 0 {
		b.bloom = filter.NewBuilder(falsePositiveRate)
	}
	return b
}

// Add appends a key-value pair. Keys must arrive in ascending sorted
// order; the caller (flush or compaction) is responsible for that.
func (b *Builder) Add(key, value []byte) error {
	if b.bloom != nil {
		b.bloom.AddKey(key)
	}
	if b.smallest == nil || bytes.Compare(key, b.smallest) < 0 {
		b.smallest = append([]byte(nil), key...)
	}
	if b.biggest == nil || bytes.Compare(key, b.biggest) > 0 {
		b.biggest = append([]byte(nil), key...)
	}

	if len(b.baseKey) == 0 {
		b.baseKey = append([]byte(nil), key...)
	}
	if b.block.Add(key, value) {
		return nil
	}

	if err := b.flushBlock(); err != nil {
		return err
	}
	b.baseKey = append([]byte(nil), key...)
	if !b.block.Add(key, value) {
		return fmt.Errorf("table: entry for key %q does not fit in a %d-byte block", key, b.blockSize)
	}
	return nil
}

func (b *Builder) flushBlock() error {
	if b.block.IsEmpty() {
		return nil
	}
	blk := b.block.Build()
	firstKey := b.baseKey
	b.baseKey = nil
	b.block = block.NewBuilder(b.blockSize)

	encoded, err := blk.Encode(b.compress)
	if err != nil {
		return err
	}
	b.meta = append(b.meta, blockMeta{offset: uint32(len(b.data)), firstKey: firstKey})
	b.data = append(b.data, encoded...)
	return nil
}

// IsEmpty reports whether any entries have been added.
func (b *Builder) IsEmpty() bool {
	return len(b.meta) == 0 && b.block.IsEmpty()
}

// EstimatedSize is a cheap running estimate of the file size so far.
func (b *Builder) EstimatedSize() int {
	return len(b.data) + len(b.meta)*2
}

// ReachedCapacity reports whether the builder should be sealed.
func (b *Builder) ReachedCapacity() bool {
	return b.EstimatedSize() >= Capacity
}

// SmallestKey and BiggestKey report the key range seen so far.
func (b *Builder) SmallestKey() []byte { return b.smallest }
func (b *Builder) BiggestKey() []byte  { return b.biggest }

// Finish flushes any pending block and assembles the complete SST file
// contents: blocks, block meta, block-meta offset, optional bloom filter
// and its offset, and a trailing file checksum.
func (b *Builder) Finish() ([]byte, error) {
	if err := b.flushBlock(); err != nil {
		return nil, err
	}

	metaOffset := uint32(len(b.data))
	buf := append([]byte(nil), b.data...)

	for _, m := range b.meta {
		var hdr [4]byte
		binary.BigEndian.PutUint32(hdr[:], m.offset)
		buf = append(buf, hdr[:]...)

		var klen [2]byte
		binary.BigEndian.PutUint16(klen[:], uint16(len(m.firstKey)))
		buf = append(buf, klen[:]...)
		buf = append(buf, m.firstKey...)
	}

	var offBuf [4]byte
	binary.BigEndian.PutUint32(offBuf[:], metaOffset)
	buf = append(buf, offBuf[:]...)

	var bloomBytes []byte
	if b.bloom != nil {
		bloomBytes = b.bloom.Finish()
	}
	if bloomBytes != nil {
		bloomOffset := uint32(len(buf))
		buf = append(buf, bloomBytes...)
		binary.BigEndian.PutUint32(offBuf[:], bloomOffset)
		buf = append(buf, offBuf[:]...)
	} else {
		// No bloom: the bloom-offset slot, at eof-8, is filled with
		// meta_offset+4, the sentinel parse uses to detect absence (the
		// u32 immediately before it, at eof-12, is meta_offset itself).
		binary.BigEndian.PutUint32(offBuf[:], metaOffset+4)
		buf = append(buf, offBuf[:]...)
	}

	var crcBuf [4]byte
	binary.BigEndian.PutUint32(crcBuf[:], checksum.CRC32(buf))
	buf = append(buf, crcBuf[:]...)

	return buf, nil
}
