// Package storage defines the knowledge-tree file-system abstraction.
package storage

import "time"

// FileInfo is lightweight metadata for one tracked markdown file.
type FileInfo struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Provider is the interface for knowledge-tree file operations. All paths
// are relative to the knowledge root. The staleness detector depends only
// on this interface, so tests can swap in an in-memory implementation.
type Provider interface {
	// List returns metadata for every .md file under dir.
	List(dir string) ([]FileInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath within the root.
	Move(oldPath, newPath string) error
}
