// Package storage defines the workspace file-system abstraction for notebook files.
package storage

import "github.com/starford/nbserde/internal/models"

// Provider is the interface for workspace notebook file operations.
// All paths are relative to the workspace root.
type Provider interface {
	// List returns info for every .ipynb file under dir.
	List(dir string) ([]models.FileInfo, error)
	// Read returns the raw bytes of the notebook at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the notebook at path with content.
	Write(path string, content []byte) error
	// Delete removes the notebook at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
	// Root returns the absolute workspace directory.
	Root() string
}
