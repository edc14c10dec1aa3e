// Package filter implements the bloom filter attached to each SST's block
// meta index.
//
// Filter layout (bytes):
//
//	data[0:len-1]  = bit array, LSB-first within each byte
//	data[len-1]    = k, the number of hash probes per key
//
// Probing uses double hashing from a single XXH3-64 digest per key: the
// first probe position is h mod limit, and each subsequent probe advances
// by delta = (h>>34)|(h<<30), matching the reference bloom filter this
// format was ported from rather than RocksDB's cache-line FastLocalBloom.
package filter

import (
	"math"

	"github.com/aalhour/ridgedb/internal/checksum"
)

// delta computes the probe advance for double hashing.
func delta(h uint64) uint64 {
	return (h >> 34) | (h << 30)
}

// Builder accumulates key hashes and builds a bloom filter sized for a
// target false-positive rate.
type Builder struct {
	fpp    float64
	hashes []uint64
}

// NewBuilder creates a builder targeting the given false-positive
// probability (0 < fpp < 1).
func NewBuilder(fpp float64) *Builder {
	if fpp <= 0 || fpp >= 1 {
		fpp = 0.1
	}
	return &Builder{fpp: fpp, hashes: make([]uint64, 0, 256)}
}

// AddKey hashes key with XXH3-64 and records it for the filter.
func (b *Builder) AddKey(key []byte) {
	b.hashes = append(b.hashes, checksum.Hash64(key))
}

// NumKeys returns the number of keys added so far.
func (b *Builder) NumKeys() int {
	return len(b.hashes)
}

// Finish builds the filter bytes. Returns nil if no keys were added — an
// absent filter is treated as "always maybe contains" by the reader.
func (b *Builder) Finish() []byte {
	n := len(b.hashes)
	if n == 0 {
		return nil
	}

	nf := float64(n)
	m := -(nf * math.Log(b.fpp)) / (math.Ln2 * math.Ln2)
	k := m / nf * math.Ln2 * math.Ln2
	numProbes := int(math.Ceil(k))
	if numProbes < 1 {
		numProbes = 1
	}
	if numProbes > 15 {
		numProbes = 15
	}

	filter := make([]byte, (int(math.Ceil(m))+7)/8+1)
	filter[len(filter)-1] = byte(numProbes)

	limit := uint64(len(filter)-1) * 8
	for _, h := range b.hashes {
		d := delta(h)
		for i := 0; i < numProbes; i++ {
			bitSet(filter, h%limit)
			h += d
		}
	}
	return filter
}

// Reset clears accumulated keys so the builder can be reused.
func (b *Builder) Reset() {
	b.hashes = b.hashes[:0]
}

func bitSet(filter []byte, idx uint64) {
	filter[idx/8] |= 1 << (idx % 8)
}

func bitGet(filter []byte, idx uint64) bool {
	return filter[idx/8]&(1<<(idx%8)) != 0
}

// Reader answers membership queries against an encoded filter.
type Reader struct {
	data  []byte
	limit uint64
	k     int
}

// NewReader wraps encoded filter bytes. A nil or empty data yields a
// reader whose MayContain always returns true.
func NewReader(data []byte) *Reader {
	if len(data) < 2 {
		return &Reader{}
	}
	return &Reader{
		data:  data,
		limit: uint64(len(data)-1) * 8,
		k:     int(data[len(data)-1]),
	}
}

// MayContain reports whether key might be present. False means key is
// definitely absent; true may be a false positive.
func (r *Reader) MayContain(key []byte) bool {
	if r == nil || r.data == nil || r.k == 0 {
		return true
	}
	h := checksum.Hash64(key)
	d := delta(h)
	for i := 0; i < r.k; i++ {
		if !bitGet(r.data, h%r.limit) {
			return false
		}
		h += d
	}
	return true
}
