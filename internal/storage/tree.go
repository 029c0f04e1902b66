package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/starford/incipit/internal/models"
)

// Tree builds the file tree of the project. It is rebuilt on every call.
func (f *FS) Tree() (*models.FileNode, error) {
	children, err := f.readDir(f.root, "")
	if err != nil {
		return nil, fmt.Errorf("storage: read directory %s: %w", f.root, err)
	}
	return &models.FileNode{
		Name:     filepath.Base(f.root),
		Path:     "",
		IsDir:    true,
		Children: children,
	}, nil
}

// readDir lists dir (rel is its slash path relative to the root). Subtrees
// that cannot be read are dropped instead of failing the whole tree.
func (f *FS) readDir(dir, rel string) ([]*models.FileNode, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	nodes := make([]*models.FileNode, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if hidden(name) {
			continue
		}
		childRel := name
		if rel != "" {
			childRel = rel + "/" + name
		}
		node := &models.FileNode{Name: name, Path: childRel, IsDir: e.IsDir()}
		if node.IsDir {
			children, err := f.readDir(filepath.Join(dir, name), childRel)
			if err != nil {
				f.logger.Debug("storage: skipping unreadable directory",
					slog.String("path", childRel),
					slog.String("error", err.Error()))
				continue
			}
			node.Children = children
		}
		nodes = append(nodes, node)
	}

	SortNodes(nodes)
	return nodes, nil
}

// SortNodes orders siblings: directories first, then case-insensitive name.
func SortNodes(nodes []*models.FileNode) {
	slices.SortStableFunc(nodes, func(a, b *models.FileNode) int {
		if a.IsDir != b.IsDir {
			if a.IsDir {
				return -1
			}
			return 1
		}
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".") || name == models.ProjectMetaFile
}
