// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package layout

import "os"

// FS abstracts the filesystem operations the ingest and playback layers perform
// on asset folders, so tests can observe or refuse them.
type FS interface {
	// Stat returns FileInfo for the named file.
	Stat(name string) (os.FileInfo, error)

	// Rename atomically moves oldpath to newpath.
	Rename(oldpath, newpath string) error

	// RemoveAll removes path and any children it contains.
	RemoveAll(path string) error

	// Remove removes a single file.
	Remove(name string) error
}

// OSFS uses actual os operations.
type OSFS struct{}

func (OSFS) Stat(name string) (os.FileInfo, error) { return os.Stat(name) }

func (OSFS) Rename(oldpath, newpath string) error { return os.Rename(oldpath, newpath) }

func (OSFS) RemoveAll(path string) error { return os.RemoveAll(path) }

func (OSFS) Remove(name string) error { return os.Remove(name) }
