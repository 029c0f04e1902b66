// Package sandbox confines file access to a project root.
//
// Both the root and the candidate are canonicalized (absolute, symlinks
// evaluated) before the containment test, so symlinks pointing outside the
// project are rejected just like "../" traversal.
package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/incipit/internal/apperr"
)

// Root returns the canonical form of a project root. The root must exist.
func Root(root string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("%w: project path is required", apperr.ErrInvalidInput)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("sandbox: resolve root: %w", err)
	}
	canon, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: invalid project path %s", apperr.ErrNotFound, root)
		}
		return "", fmt.Errorf("sandbox: invalid project path %s: %w", root, err)
	}
	return canon, nil
}

// Resolve returns the canonical path of rel inside root. rel must exist.
func Resolve(root, rel string) (string, error) {
	canonRoot, err := Root(root)
	if err != nil {
		return "", err
	}
	canon, err := filepath.EvalSymlinks(join(canonRoot, rel))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: invalid file path %s", apperr.ErrNotFound, rel)
		}
		return "", fmt.Errorf("sandbox: invalid file path %s: %w", rel, err)
	}
	if !Contains(canonRoot, canon) {
		return "", denied(rel)
	}
	return canon, nil
}

// ResolveForWrite is like Resolve but accepts paths that do not exist yet.
// The containment test then runs against the nearest existing ancestor and
// the missing components are appended to its canonical form.
func ResolveForWrite(root, rel string) (string, error) {
	canonRoot, err := Root(root)
	if err != nil {
		return "", err
	}

	existing := join(canonRoot, rel)
	var missing []string
	for {
		_, statErr := os.Lstat(existing)
		if statErr == nil {
			break
		}
		if !errors.Is(statErr, fs.ErrNotExist) {
			return "", fmt.Errorf("sandbox: stat %s: %w", existing, statErr)
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return "", fmt.Errorf("%w: invalid file path %s", apperr.ErrNotFound, rel)
		}
		missing = append([]string{filepath.Base(existing)}, missing...)
		existing = parent
	}

	canon, err := filepath.EvalSymlinks(existing)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: invalid file path %s", apperr.ErrNotFound, rel)
		}
		return "", fmt.Errorf("sandbox: invalid file path %s: %w", rel, err)
	}
	if !Contains(canonRoot, canon) {
		return "", denied(rel)
	}

	target := filepath.Join(append([]string{canon}, missing...)...)
	if target == canonRoot {
		return "", fmt.Errorf("%w: file path is required", apperr.ErrInvalidInput)
	}
	return target, nil
}

// Contains reports whether path is root or lies below it. Both arguments
// must already be canonical.
func Contains(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// join interprets rel as a slash-separated path relative to root. Absolute
// paths are kept as given and left to the containment test.
func join(root, rel string) string {
	rel = filepath.FromSlash(rel)
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(root, rel)
}

func denied(rel string) error {
	return fmt.Errorf("%w: %s is outside project directory", apperr.ErrAccessDenied, rel)
}
