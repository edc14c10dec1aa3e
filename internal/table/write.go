package table

import (
	"fmt"
	"os"

	"github.com/aalhour/ridgedb/internal/vfs"
)

// WriteFile creates a new SST file at path holding data, the bytes
// produced by Builder.Finish. On the plain path the file is created
// fresh (it must not already exist) and fsync'd before returning, so the
// table is durable once WriteFile returns nil. When oDirect is set and
// the platform supports it, the file is instead opened with
// O_DIRECT|O_SYNC (truncating any existing file) and not fsync'd
// separately.
func WriteFile(path string, data []byte, oDirect bool) error {
	if oDirect && vfs.Supported {
		f, err := vfs.CreateDirect(path)
		if err != nil {
			return fmt.Errorf("table: create %s: %w", path, err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return fmt.Errorf("table: write %s: %w", path, err)
		}
		return f.Close()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("table: create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("table: write %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("table: fsync %s: %w", path, err)
	}
	return f.Close()
}
