// Package storage defines the vault file-system abstraction.
package storage

import "time"

// FileInfo describes one markdown file in the vault.
type FileInfo struct {
	Path      string
	Checksum  string
	UpdatedAt time.Time
}

// Provider is the interface for vault file operations. All paths are
// relative to the vault root and use forward slashes.
type Provider interface {
	// List returns metadata for every .md file under dir.
	List(dir string) ([]FileInfo, error)
	// Exists reports whether a file or folder is present at path.
	Exists(path string) (bool, error)
	// MkdirAll creates dir and any missing parents. Existing folders are not an error.
	MkdirAll(dir string) error
	// Create writes a new file and fails with apperr.ErrAlreadyExists if path is taken.
	Create(path string, content []byte) error
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces (or creates) the file at path.
	Write(path string, content []byte) error
}
