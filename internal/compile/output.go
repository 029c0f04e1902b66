package compile

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/starford/incipit/internal/apperr"
	"github.com/starford/incipit/internal/storage"
)

func outputCandidates(input, outDir string) []string {
	name := strings.TrimSuffix(path.Base(input), path.Ext(input)) + ".pdf"
	candidates := []string{path.Join(outDir, name), name}
	if dir := path.Dir(input); dir != "." {
		candidates = append(candidates, path.Join(dir, name))
	}
	return candidates
}

// LocateOutput returns the slash path of the PDF produced for input. It looks
// in outDir first, then the root, then the directory of input. When nothing
// exists the first candidate is returned with ok false.
func LocateOutput(store storage.Provider, input, outDir string) (string, bool) {
	candidates := outputCandidates(input, outDir)
	for _, c := range candidates {
		if store.Exists(c) {
			return c, true
		}
	}
	return candidates[0], false
}

// OutputSnapshot records the output candidates present before a compile.
type OutputSnapshot map[string]os.FileInfo

// SnapshotOutput stats every output candidate of input.
func SnapshotOutput(store storage.Provider, input, outDir string) OutputSnapshot {
	snap := OutputSnapshot{}
	for _, c := range outputCandidates(input, outDir) {
		if info, ok := statOutput(store, c); ok {
			snap[c] = info
		}
	}
	return snap
}

func statOutput(store storage.Provider, rel string) (os.FileInfo, bool) {
	if !store.Exists(rel) {
		return nil, false
	}
	abs, err := store.Abs(rel)
	if err != nil {
		return nil, false
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return nil, false
	}
	return info, true
}

// fresh reports whether info differs from what the snapshot saw at rel.
func (s OutputSnapshot) fresh(rel string, info os.FileInfo) bool {
	prev, ok := s[rel]
	if !ok {
		return true
	}
	return !prev.ModTime().Equal(info.ModTime()) || prev.Size() != info.Size()
}

// ReadOutput loads the PDF produced for input. An empty file counts as a
// failed compilation.
func ReadOutput(store storage.Provider, input, outDir string) ([]byte, error) {
	return ReadFreshOutput(store, input, outDir, nil)
}

// ReadFreshOutput is ReadOutput restricted to candidates written or replaced
// since before was taken. A PDF left over from an earlier compile is not
// output.
func ReadFreshOutput(store storage.Provider, input, outDir string, before OutputSnapshot) ([]byte, error) {
	candidates := outputCandidates(input, outDir)
	rel := ""
	for _, c := range candidates {
		info, ok := statOutput(store, c)
		if ok && before.fresh(c, info) {
			rel = c
			break
		}
	}
	if rel == "" {
		return nil, fmt.Errorf("%w: PDF not found at: %s", apperr.ErrNotFound, filepath.Join(store.Root(), filepath.FromSlash(candidates[0])))
	}
	data, err := store.Read(rel)
	if err != nil {
		return nil, fmt.Errorf("compile: failed to read PDF: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: compilation produced no output", apperr.ErrCompilation)
	}
	return data, nil
}

// InputPath validates file against the project sandbox and returns it as a
// clean slash path relative to the root.
func InputPath(store storage.Provider, file string) (string, error) {
	if file == "" {
		return "", fmt.Errorf("%w: file path is required", apperr.ErrInvalidInput)
	}
	abs, err := store.Abs(file)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(store.Root(), abs)
	if err != nil {
		return "", fmt.Errorf("compile: relative input path: %w", err)
	}
	return filepath.ToSlash(rel), nil
}
