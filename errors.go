package ridgedb

import (
	"errors"

	"github.com/aalhour/ridgedb/internal/block"
	"github.com/aalhour/ridgedb/internal/coalescer"
	"github.com/aalhour/ridgedb/internal/compression"
	"github.com/aalhour/ridgedb/internal/manifest"
	"github.com/aalhour/ridgedb/internal/table"
	"github.com/aalhour/ridgedb/internal/wal"
)

// Sentinel errors for the facade's own validation and state checks.
// Subsystem-specific errors (table.ErrChecksumMismatch,
// manifest.ErrUnknownID, wal.ErrEmptyBatch, ...) are defined in their own
// packages and wrapped with fmt.Errorf("%w") as they surface; Kind
// classifies any of them into the coarse taxonomy below.
var (
	// ErrValidation covers empty keys/values and invalid option
	// combinations.
	ErrValidation = errors.New("ridgedb: validation error")
	// ErrClosed is returned by any operation called after Close.
	ErrClosed = errors.New("ridgedb: storage closed")
	// ErrEmptyKey is returned by Get/Put/Delete/BatchPut for a
	// zero-length key.
	ErrEmptyKey = errors.New("ridgedb: key must not be empty")
	// ErrEmptyValue is returned by Put/BatchPut for a zero-length value
	// (use Delete to write a tombstone).
	ErrEmptyValue = errors.New("ridgedb: value must not be empty")
)

// ErrorKind classifies an error into the taxonomy of spec.md §7, for
// callers that want coarse dispatch (retry, alert, surface to a user)
// without depending on every subsystem's sentinels directly.
type ErrorKind int

const (
	// KindUnknown is returned for a nil error. Any non-nil error that
	// Kind does not recognize is classified as KindIO.
	KindUnknown ErrorKind = iota
	// KindValidation: empty key, empty value on put, invalid bounds,
	// unknown option value.
	KindValidation
	// KindIO: underlying file/directory operations failed.
	KindIO
	// KindCorruption: checksum mismatch, unknown codec tag, malformed
	// MANIFEST record, truncated data.
	KindCorruption
	// KindCompression: codec refused input.
	KindCompression
	// KindState: write-through on a reader-only handle, reserved-table
	// conflict, rejected MANIFEST change set.
	KindState
	// KindChannelClosed: the write coalescer is unavailable.
	KindChannelClosed
)

// Kind classifies err into the coarse error taxonomy of spec.md §7.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrValidation), errors.Is(err, ErrEmptyKey), errors.Is(err, ErrEmptyValue):
		return KindValidation
	case errors.Is(err, ErrClosed):
		return KindState
	case errors.Is(err, coalescer.ErrClosed):
		return KindChannelClosed
	case errors.Is(err, table.ErrChecksumMismatch),
		errors.Is(err, table.ErrTruncated),
		errors.Is(err, block.ErrChecksumMismatch),
		errors.Is(err, block.ErrTruncated),
		errors.Is(err, block.ErrUnknownCodec),
		errors.Is(err, manifest.ErrUnknownOp),
		errors.Is(err, manifest.ErrTruncatedRecord):
		return KindCorruption
	case errors.Is(err, compression.ErrCodecFailed):
		return KindCompression
	case errors.Is(err, manifest.ErrDuplicateID), errors.Is(err, manifest.ErrUnknownID):
		return KindState
	case errors.Is(err, wal.ErrEmptyBatch):
		return KindValidation
	case errors.Is(err, block.ErrEmptyKey), errors.Is(err, block.ErrEmptyBlock):
		return KindValidation
	default:
		return KindIO
	}
}
