package table

import "errors"

var (
	// ErrTruncated is returned when an SST file is too short to hold its
	// own footer.
	ErrTruncated = errors.New("table: truncated file")
	// ErrChecksumMismatch is returned when the trailing file_crc32 does
	// not match the file's contents.
	ErrChecksumMismatch = errors.New("table: checksum mismatch")
)
