// Package storage defines the sandboxed project file-system abstraction.
package storage

import "github.com/starford/incipit/internal/models"

// Provider is the interface for file operations confined to one root directory.
// All paths are slash-separated and relative to the root.
type Provider interface {
	// Root returns the canonical absolute path of the root directory.
	Root() string
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Exists reports whether path exists inside the root.
	Exists(path string) bool
	// Abs resolves path to its canonical absolute form. The path may not exist yet.
	Abs(path string) (string, error)
	// Tree returns the file tree rooted at the root directory.
	Tree() (*models.FileNode, error)
}
