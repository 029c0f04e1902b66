// Package testutil provides shared test helpers for projects, fake engines, and databases.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/starford/incipit/internal/history"
	"github.com/starford/incipit/internal/storage"
)

// MinimalDocument is a complete one-line LaTeX document.
const MinimalDocument = "\\documentclass{article}\\begin{document}Hello\\end{document}\n"

// Fake engine scripts. Each is invoked as: <script> --outdir <dir> <input>.
const (
	// CopyEngine "compiles" by copying the input into <outdir>/<stem>.pdf.
	CopyEngine = `outdir="$2"; input="$3"
mkdir -p "$outdir"
stem=$(basename "$input" .tex)
cp "$input" "$outdir/$stem.pdf"
`
	// FailingEngine reports a LaTeX error and exits non-zero.
	FailingEngine = `echo "! Undefined control sequence." >&2
echo "l.3 \\foo" >&2
exit 1
`
	// SilentEngine succeeds without producing anything.
	SilentEngine = `exit 0
`
	// RootOutputEngine writes the PDF into the working directory instead of outdir.
	RootOutputEngine = `input="$3"
stem=$(basename "$input" .tex)
cp "$input" "$stem.pdf"
`
	// SlowEngine sleeps briefly, then behaves like CopyEngine.
	SlowEngine = `sleep 0.3
outdir="$2"; input="$3"
mkdir -p "$outdir"
stem=$(basename "$input" .tex)
cp "$input" "$outdir/$stem.pdf"
`
)

// EngineArgs matches the argument order the fake engines expect.
var EngineArgs = []string{"--outdir", "{outdir}", "{input}"}

// FakeEngine writes a POSIX shell script with body into a temp dir and
// returns its path. The test is skipped on Windows.
func FakeEngine(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake engines are shell scripts")
	}
	p := filepath.Join(t.TempDir(), "fake-engine")
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return p
}

// TestProject creates a temporary project directory populated with files
// (slash paths relative to the root) and returns its storage provider.
func TestProject(t *testing.T, files map[string]string) *storage.FS {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return store
}

// TestHistory creates a temporary compile history database that is automatically cleaned up.
func TestHistory(t *testing.T) *history.DB {
	t.Helper()
	db, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
