package block

import "errors"

var (
	// ErrEmptyKey is the value Builder.Add panics with when given an empty
	// key.
	ErrEmptyKey = errors.New("block: key must not be empty")
	// ErrEmptyBlock is the value Build panics with when no entry was added.
	ErrEmptyBlock = errors.New("block: block must not be empty")
	// ErrTruncated is returned when Decode receives data shorter than its
	// declared header or payload.
	ErrTruncated = errors.New("block: truncated data")
	// ErrChecksumMismatch is returned when Decode's CRC32 check fails.
	ErrChecksumMismatch = errors.New("block: checksum mismatch")
	// ErrUnknownCodec is returned when Decode encounters an unrecognized
	// compression tag.
	ErrUnknownCodec = errors.New("block: unknown compression codec")
)
