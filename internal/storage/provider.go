// Package storage is the vault: a directory of Markdown notes on disk.
package storage

import "github.com/starford/notesearch/internal/models"

// Provider is the interface for vault file operations. Paths are relative
// to the vault root and use forward slashes.
type Provider interface {
	// List returns metadata for every .md file under dir.
	List(dir string) ([]models.NoteMetadata, error)
	// Read returns the raw bytes of the file at path. A missing file yields
	// an error wrapping fs.ErrNotExist.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath, creating parent directories. It fails
	// when newPath already exists.
	Move(oldPath, newPath string) error
	// Exists reports whether a regular file exists at path.
	Exists(path string) (bool, error)
}
