// Package compression implements the block codec framing used by the SST
// block writer and reader: each block's payload is followed by a single
// trailing tag byte identifying how it was compressed.
//
// Reference: original_source/src/block/compress.rs (CompressOptions).
package compression

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/golang/snappy"
	"github.com/pierrec/lz4/v4"
)

var (
	// ErrUnknownCodec is returned when Encode or Decode is given a tag
	// byte outside the recognized set.
	ErrUnknownCodec = errors.New("compression: unknown codec tag")
	// ErrCodecFailed is returned when a recognized codec refuses its
	// input (e.g. a compressor's internal buffer size limits).
	ErrCodecFailed = errors.New("compression: codec refused input")
)

// Tag identifies the compression codec used for a block's payload. It is
// the last byte of the encoded block data, after the CRC32.
type Tag uint8

const (
	// TagUnknown never appears on disk; Decode rejects it as corruption.
	TagUnknown Tag = 0x00
	// TagUncompressed stores the payload verbatim.
	TagUncompressed Tag = 0x01
	// TagSnappy stores the payload Snappy-compressed.
	TagSnappy Tag = 0x02
	// TagLZ4 stores the payload LZ4-block-compressed, prefixed with a
	// 4-byte little-endian uncompressed length.
	TagLZ4 Tag = 0x03
)

func (t Tag) String() string {
	switch t {
	case TagUncompressed:
		return "Uncompressed"
	case TagSnappy:
		return "Snappy"
	case TagLZ4:
		return "LZ4"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

// Encode compresses data under the given tag and appends the tag byte,
// returning a payload ready to be written to disk.
func Encode(data []byte, tag Tag) ([]byte, error) {
	switch tag {
	case TagUncompressed:
		out := make([]byte, len(data)+1)
		copy(out, data)
		out[len(data)] = byte(TagUncompressed)
		return out, nil

	case TagSnappy:
		out := snappy.Encode(nil, data)
		return append(out, byte(TagSnappy)), nil

	case TagLZ4:
		bound := lz4.CompressBlockBound(len(data))
		out := make([]byte, 4+bound)
		binary.LittleEndian.PutUint32(out[:4], uint32(len(data)))
		var ht [1 << 16]int
		n, err := lz4.CompressBlock(data, out[4:], ht[:])
		if err != nil {
			return nil, fmt.Errorf("%w: lz4 compress block: %v", ErrCodecFailed, err)
		}
		if n == 0 {
			// Incompressible: fall back to storing it raw under the lz4 tag
			// with n == len(data) signalled via the prefix, decode handles it.
			copy(out[4:], data)
			n = len(data)
		}
		out = append(out[:4+n], byte(TagLZ4))
		return out, nil

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, uint8(tag))
	}
}

// Decode reads the trailing tag byte off payload and decompresses the
// remainder.
func Decode(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("compression: empty payload")
	}
	tag := Tag(payload[len(payload)-1])
	body := payload[:len(payload)-1]

	switch tag {
	case TagUncompressed:
		return body, nil

	case TagSnappy:
		return snappy.Decode(nil, body)

	case TagLZ4:
		if len(body) < 4 {
			return nil, fmt.Errorf("compression: lz4 payload too short")
		}
		size := binary.LittleEndian.Uint32(body[:4])
		compressed := body[4:]
		if int(size) == len(compressed) {
			// Stored raw because it didn't compress.
			out := make([]byte, size)
			copy(out, compressed)
			return out, nil
		}
		dst := make([]byte, size)
		n, err := lz4.UncompressBlock(compressed, dst)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4 uncompress block: %v", ErrCodecFailed, err)
		}
		return dst[:n], nil

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, uint8(tag))
	}
}
