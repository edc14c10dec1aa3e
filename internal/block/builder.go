package block

// Builder accumulates sorted, non-prefix-compressed entries into a single
// block up to a target size.
type Builder struct {
	targetSize int
	data       []byte
	offsets    []uint16
	size       int
}

// NewBuilder creates a builder targeting the given block size in bytes.
func NewBuilder(targetSize int) *Builder {
	return &Builder{targetSize: targetSize}
}

// Add appends a key-value pair to the block. It returns false without
// modifying the block when adding the entry would exceed the target size,
// signaling the caller to finish this block and start a new one.
func (b *Builder) Add(key, value []byte) bool {
	if len(key) == 0 {
		panic(ErrEmptyKey)
	}

	entry := Entry{Key: key, Value: value}
	encodedLen := entry.EncodedLen()
	if b.size+encodedLen+sizeofU16 > b.targetSize {
		return false
	}

	b.data = Encode(b.data, key, value)
	b.offsets = append(b.offsets, uint16(b.size))
	b.size += encodedLen

	return true
}

// IsEmpty reports whether no entry has been added yet.
func (b *Builder) IsEmpty() bool {
	return b.size == 0
}

// Build finalizes the block. It panics if the block is empty; callers are
// expected to check IsEmpty first.
func (b *Builder) Build() *Block {
	if b.IsEmpty() {
		panic(ErrEmptyBlock)
	}
	return &Block{data: b.data, offsets: b.offsets}
}
