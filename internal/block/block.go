// Package block implements the smallest read/cache unit in the tree: a
// self-contained, sorted page of key-value entries.
//
// On-disk layout (before codec framing):
//
//	u16 count | count * u16 offset | raw entries | u32 crc32
//
// The CRC32 covers every byte before it. The whole thing is then wrapped
// in a codec envelope (internal/compression) before being written to an
// SST file.
package block

import (
	"encoding/binary"
	"errors"

	"github.com/aalhour/ridgedb/internal/checksum"
	"github.com/aalhour/ridgedb/internal/compression"
)

// Block holds the raw entry bytes plus their offsets, decoded from disk or
// produced by a Builder.
type Block struct {
	data    []byte
	offsets []uint16
}

// UncompressedSize returns the size of the block before codec framing.
func (b *Block) UncompressedSize() int {
	return sizeofU16 + sizeofU16*len(b.offsets) + len(b.data) + 4
}

// Encode serializes the block and compresses it under tag, returning bytes
// ready to be written to an SST file.
func (b *Block) Encode(tag compression.Tag) ([]byte, error) {
	buf := make([]byte, 0, b.UncompressedSize())

	var hdr [sizeofU16]byte
	binary.BigEndian.PutUint16(hdr[:], uint16(len(b.offsets)))
	buf = append(buf, hdr[:]...)

	for _, off := range b.offsets {
		binary.BigEndian.PutUint16(hdr[:], off)
		buf = append(buf, hdr[:]...)
	}
	buf = append(buf, b.data...)

	var crcBuf [4]byte
	binary.BigEndian.PutUint32(crcBuf[:], checksum.CRC32(buf))
	buf = append(buf, crcBuf[:]...)

	return compression.Encode(buf, tag)
}

// Decode reverses Encode: it strips codec framing, verifies the CRC, and
// parses the count/offsets/payload.
func Decode(payload []byte) (*Block, error) {
	buf, err := compression.Decode(payload)
	if err != nil {
		if errors.Is(err, compression.ErrUnknownCodec) {
			return nil, ErrUnknownCodec
		}
		return nil, err
	}
	if len(buf) < sizeofU16+4 {
		return nil, ErrTruncated
	}

	body, crcBytes := buf[:len(buf)-4], buf[len(buf)-4:]
	want := binary.BigEndian.Uint32(crcBytes)
	if checksum.CRC32(body) != want {
		return nil, ErrChecksumMismatch
	}

	count := int(binary.BigEndian.Uint16(body))
	body = body[sizeofU16:]
	if len(body) < count*sizeofU16 {
		return nil, ErrTruncated
	}

	offsets := make([]uint16, count)
	for i := range offsets {
		offsets[i] = binary.BigEndian.Uint16(body)
		body = body[sizeofU16:]
	}

	return &Block{data: body, offsets: offsets}, nil
}

// NumEntries returns the number of key-value pairs in the block.
func (b *Block) NumEntries() int {
	return len(b.offsets)
}

// EntryAt decodes the i-th entry.
func (b *Block) EntryAt(i int) (key, value []byte, ok bool) {
	if i < 0 || i >= len(b.offsets) {
		return nil, nil, false
	}
	key, value, _, ok = DecodeEntry(b.data[b.offsets[i]:])
	return key, value, ok
}
