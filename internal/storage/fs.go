package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/starford/incipit/internal/apperr"
	"github.com/starford/incipit/internal/sandbox"
)

// FS implements Provider backed by the local file system.
type FS struct {
	root   string // canonical path of the project directory
	logger *slog.Logger
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	canon, err := sandbox.Root(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(canon)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", apperr.ErrNotDirectory, root)
	}
	return &FS{root: canon, logger: slog.Default()}, nil
}

// WithLogger returns f with logger attached for diagnostics.
func (f *FS) WithLogger(logger *slog.Logger) *FS {
	if logger != nil {
		f.logger = logger
	}
	return f
}

// Root returns the canonical project directory.
func (f *FS) Root() string {
	return f.root
}

// Abs resolves path against the root without requiring it to exist.
func (f *FS) Abs(path string) (string, error) {
	return sandbox.ResolveForWrite(f.root, path)
}

// Exists reports whether path exists inside the root.
func (f *FS) Exists(path string) bool {
	_, err := sandbox.Resolve(f.root, path)
	return err == nil
}

// Read returns the raw bytes of a project file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := sandbox.Resolve(f.root, path)
	if err != nil {
		return nil, err
	}
	if err := notDir(abs, path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(path string, content []byte) error {
	abs, err := sandbox.ResolveForWrite(f.root, path)
	if err != nil {
		return err
	}
	if err := notDir(abs, path); err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".incipit-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	// Keep the permissions of a file being replaced.
	if info, statErr := os.Stat(abs); statErr == nil {
		_ = os.Chmod(tmpName, info.Mode().Perm())
	} else {
		_ = os.Chmod(tmpName, 0o644)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: write %s: %w", path, err)
	}
	success = true
	return nil
}

// notDir rejects an existing directory where a file is expected.
func notDir(abs, path string) error {
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", apperr.ErrInvalidInput, path)
	}
	return nil
}

var _ Provider = (*FS)(nil)
