// Package storage defines the vault file-system abstraction. It is the
// sole I/O boundary of the core; caching and graph state live elsewhere.
package storage

import (
	"time"

	"github.com/starford/othala/internal/models"
)

// FileInfo describes a vault file.
type FileInfo struct {
	Size     int64
	Created  time.Time
	Modified time.Time
}

// Provider is the interface for vault file operations. All paths are
// relative to the vault root.
type Provider interface {
	// Exists reports whether a file exists at path.
	Exists(path string) bool
	// Stat returns size and timestamps for the file at path.
	Stat(path string) (FileInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// ReadLines calls fn for each line of the file at path, without
	// buffering the whole file. fn returning an error stops the scan.
	ReadLines(path string, fn func(line string, n int) error) error
	// Write atomically writes content to path, creating parent
	// directories as needed.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
	// List returns metadata for every .md file under dir, sorted by
	// path. Dotfile-prefixed and trash directories are excluded.
	List(dir string) ([]models.NoteMetadata, error)
	// Abs resolves a vault-relative path to an absolute one, rejecting
	// traversal outside the root.
	Abs(path string) (string, error)
}
