// Package manifest implements the append-only MANIFEST log that records
// which SST ids exist and which level each lives on.
//
// Record format, one per change:
//
//	CREATE: u8 0x00 | u64 id | u8 level
//	DELETE: u8 0x01 | u64 id
//
// The file is opened in append mode; Open replays every record to
// reconstruct the live id -> level map, then returns an append-only handle
// for subsequent writes. All writes are serialized by a single mutex and
// followed by an fsync, matching the durability story of the rest of the
// engine (see internal/wal).
package manifest

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// FileName is the manifest's fixed name within a database directory.
const FileName = "MANIFEST"

const (
	opCreate = 0x00
	opDelete = 0x01
)

var (
	// ErrUnknownOp is returned by Open when a record has an unrecognized
	// opcode, indicating a corrupted MANIFEST.
	ErrUnknownOp = errors.New("manifest: unknown opcode")
	// ErrTruncatedRecord is returned by Open when the file ends mid-record.
	ErrTruncatedRecord = errors.New("manifest: truncated record")
	// ErrDuplicateID is returned when a CREATE names an id already live.
	ErrDuplicateID = errors.New("manifest: duplicate table id")
	// ErrUnknownID is returned when a DELETE names an id that isn't live.
	ErrUnknownID = errors.New("manifest: unknown table id")
)

// Op identifies the kind of change a Change represents.
type Op uint8

const (
	// Create records that an SST id now lives at a level.
	Create Op = opCreate
	// Delete records that an SST id no longer exists.
	Delete Op = opDelete
)

// Change is one entry in a ChangeSet.
type Change struct {
	Op    Op
	ID    uint64
	Level int
}

// CreateChange builds a Change recording id's arrival at level.
func CreateChange(id uint64, level int) Change {
	return Change{Op: Create, ID: id, Level: level}
}

// DeleteChange builds a Change recording id's removal.
func DeleteChange(id uint64) Change {
	return Change{Op: Delete, ID: id}
}

// ChangeSet groups changes that must be applied atomically with a single
// fsync, e.g. everything a compaction needs to commit.
type ChangeSet struct {
	Changes []Change
}

// Manifest is the append-only log plus its in-memory id -> level index.
type Manifest struct {
	mu    sync.Mutex
	file  *os.File
	level map[uint64]int
}

// Open opens (creating if absent) the MANIFEST file under dir, replays it,
// and returns the handle plus the ids currently recorded at level 0, in
// the order they were created (the order the level-0 controller should
// treat as its initial table list).
func Open(dir string) (*Manifest, []uint64, error) {
	path := filepath.Join(dir, FileName)

	level := make(map[uint64]int)
	var l0 []uint64

	if data, err := os.ReadFile(path); err == nil {
		l0, err = replay(data, level)
		if err != nil {
			return nil, nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("manifest: open %s: %w", path, err)
	}

	return &Manifest{file: f, level: level}, l0, nil
}

func replay(data []byte, level map[uint64]int) ([]uint64, error) {
	var l0 []uint64
	r := bufio.NewReader(bytes.NewReader(data))

	for {
		op, err := r.ReadByte()
		if err != nil {
			break
		}
		var idBuf [8]byte
		if _, err := io.ReadFull(r, idBuf[:]); err != nil {
			return nil, ErrTruncatedRecord
		}
		id := binary.BigEndian.Uint64(idBuf[:])

		switch op {
		case opCreate:
			lv, err := r.ReadByte()
			if err != nil {
				return nil, ErrTruncatedRecord
			}
			level[id] = int(lv)
			if lv == 0 {
				l0 = append(l0, id)
			}
		case opDelete:
			delete(level, id)
			for i, l0id := range l0 {
				if l0id == id {
					l0 = append(l0[:i], l0[i+1:]...)
					break
				}
			}
		default:
			return nil, ErrUnknownOp
		}
	}
	return l0, nil
}

// LevelOf returns the level id currently lives at and whether it is live.
func (m *Manifest) LevelOf(id uint64) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lv, ok := m.level[id]
	return lv, ok
}

// Snapshot returns a copy of the current id -> level map.
func (m *Manifest) Snapshot() map[uint64]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uint64]int, len(m.level))
	for id, lv := range m.level {
		out[id] = lv
	}
	return out
}

// Apply appends a single change and fsyncs.
func (m *Manifest) Apply(c Change) error {
	return m.ApplyChangeSet(ChangeSet{Changes: []Change{c}})
}

// ApplyChangeSet appends every change in cs as one batch followed by a
// single fsync, then updates the in-memory index. If any change is
// rejected (duplicate create, unknown delete), no bytes are written and no
// in-memory state changes.
func (m *Manifest) ApplyChangeSet(cs ChangeSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range cs.Changes {
		switch c.Op {
		case Create:
			if _, exists := m.level[c.ID]; exists {
				return fmt.Errorf("manifest: create id=%d: %w", c.ID, ErrDuplicateID)
			}
		case Delete:
			if _, exists := m.level[c.ID]; !exists {
				return fmt.Errorf("manifest: delete id=%d: %w", c.ID, ErrUnknownID)
			}
		default:
			return fmt.Errorf("manifest: change id=%d: %w", c.ID, ErrUnknownOp)
		}
	}

	buf := make([]byte, 0, len(cs.Changes)*10)
	for _, c := range cs.Changes {
		var idBuf [8]byte
		binary.BigEndian.PutUint64(idBuf[:], c.ID)
		switch c.Op {
		case Create:
			buf = append(buf, opCreate)
			buf = append(buf, idBuf[:]...)
			buf = append(buf, byte(c.Level))
		case Delete:
			buf = append(buf, opDelete)
			buf = append(buf, idBuf[:]...)
		}
	}

	if _, err := m.file.Write(buf); err != nil {
		return fmt.Errorf("manifest: write: %w", err)
	}
	if err := m.file.Sync(); err != nil {
		return fmt.Errorf("manifest: fsync: %w", err)
	}

	for _, c := range cs.Changes {
		switch c.Op {
		case Create:
			m.level[c.ID] = c.Level
		case Delete:
			delete(m.level, c.ID)
		}
	}
	return nil
}

// Close closes the underlying file.
func (m *Manifest) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.file.Close()
}
