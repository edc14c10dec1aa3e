//go:build !linux

// Package vfs provides a fallback for platforms without O_DIRECT (e.g.
// darwin, windows): files are opened normally and fsync'd explicitly by
// the caller instead.
package vfs

import "os"

// Supported reports whether O_DIRECT is available on this platform.
const Supported = false

// CreateDirect falls back to a normal create; Options.ODirect callers still
// get durability via an explicit Sync after write, just not the bypassed
// page cache.
func CreateDirect(name string) (*os.File, error) {
	return os.Create(name)
}
