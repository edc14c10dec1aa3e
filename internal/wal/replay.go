package wal

import (
	"fmt"
	"os"

	"github.com/aalhour/ridgedb/internal/block"
)

// Record is one (key, value) pair recovered from a WAL, tagged with its
// 1-based position in the file. Records written by one AppendBatch shared
// a single sequence number when written but get consecutive numbers here.
type Record struct {
	Key   []byte
	Value []byte
	Seq   uint64
}

// Replay reads the WAL file at path and decodes every complete record in
// order, assigning each the next sequence number starting at 1. If the
// file ends mid-record, the partial tail is discarded and replay returns
// the records and last sequence number seen before it, with no error: a
// torn tail is an expected artifact of a crash between writes, not
// corruption.
//
// A missing file replays as zero records with lastSeq 0.
func Replay(path string) (records []Record, lastSeq uint64, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("wal: read %s: %w", path, err)
	}

	var seq uint64
	for len(data) > 0 {
		key, value, rest, ok := block.DecodeEntry(data)
		if !ok {
			break
		}
		seq++
		records = append(records, Record{
			Key:   append([]byte(nil), key...),
			Value: append([]byte(nil), value...),
			Seq:   seq,
		})
		data = rest
	}

	return records, seq, nil
}
