// Package checksum provides the two digest families used on disk: a plain
// IEEE CRC32 for block and footer integrity, and XXH3-64 for the bloom
// filter's hash family.
package checksum

import (
	"hash/crc32"

	"github.com/zeebo/xxh3"
)

// ieeeTable is the standard IEEE polynomial table; block and footer CRCs
// use plain IEEE CRC32, not Castagnoli.
var ieeeTable = crc32.MakeTable(crc32.IEEE)

// CRC32 computes the IEEE CRC32 of data.
func CRC32(data []byte) uint32 {
	return crc32.Checksum(data, ieeeTable)
}

// Verify reports whether data's IEEE CRC32 equals want.
func Verify(data []byte, want uint32) bool {
	return CRC32(data) == want
}

// Hash64 computes the XXH3-64 digest of data, used by the bloom filter's
// probe sequence.
func Hash64(data []byte) uint64 {
	return xxh3.Hash(data)
}
