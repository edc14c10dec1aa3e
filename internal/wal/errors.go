package wal

import "errors"

// ErrEmptyBatch is returned by AppendBatch when called with no entries.
var ErrEmptyBatch = errors.New("wal: empty batch")
