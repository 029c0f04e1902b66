// Package compile dispatches LaTeX compilations to an external engine.
//
// The engine always runs as a subprocess. Each compile executes on its own
// goroutine; a started compile is never aborted, callers can only stop
// waiting for it.
package compile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/starford/incipit/internal/apperr"
)

// Argument placeholders expanded by Subprocess.
const (
	InputPlaceholder  = "{input}"
	OutDirPlaceholder = "{outdir}"
)

// maxDiagnostic bounds how much engine output is kept in an error.
const maxDiagnostic = 64 << 10

// DefaultBinary is the engine looked up when none is configured.
const DefaultBinary = "tectonic"

// DefaultArgs invokes the tectonic command line.
var DefaultArgs = []string{"--outdir", OutDirPlaceholder, InputPlaceholder}

// Engine runs the external LaTeX-to-PDF toolchain.
type Engine interface {
	// Run compiles input, relative to workDir, writing its output into
	// outDir (also relative to workDir). It blocks until the engine exits.
	Run(workDir, input, outDir string) error
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(workDir, input, outDir string) error

// Run calls f.
func (f EngineFunc) Run(workDir, input, outDir string) error {
	return f(workDir, input, outDir)
}

// Subprocess runs the engine binary as a child process.
type Subprocess struct {
	Binary      string
	Args        []string
	SearchPaths []string
}

// NewSubprocess creates a subprocess engine. Empty args fall back to DefaultArgs.
func NewSubprocess(binary string, args, searchPaths []string) *Subprocess {
	if len(args) == 0 {
		args = DefaultArgs
	}
	return &Subprocess{Binary: binary, Args: args, SearchPaths: searchPaths}
}

// Discover locates the engine binary: an explicit path, then PATH, then the
// configured search paths, then common install locations.
func (s *Subprocess) Discover() (string, error) {
	if s.Binary == "" {
		return "", fmt.Errorf("%w: no engine binary configured", apperr.ErrEngineUnavailable)
	}
	if strings.ContainsRune(s.Binary, filepath.Separator) || strings.ContainsRune(s.Binary, '/') {
		if executable(s.Binary) {
			return s.Binary, nil
		}
		return "", fmt.Errorf("%w: %s is not an executable file", apperr.ErrEngineUnavailable, s.Binary)
	}
	if p, err := exec.LookPath(s.Binary); err == nil {
		return p, nil
	}
	name := s.Binary
	if runtime.GOOS == "windows" && filepath.Ext(name) == "" {
		name += ".exe"
	}
	dirs := append(append([]string{}, s.SearchPaths...), wellKnownDirs()...)
	for _, dir := range dirs {
		candidate := filepath.Join(dir, name)
		if executable(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %q not found in PATH or %s",
		apperr.ErrEngineUnavailable, s.Binary, strings.Join(dirs, string(os.PathListSeparator)))
}

// Run executes the engine in workDir and reports its diagnostics on failure.
func (s *Subprocess) Run(workDir, input, outDir string) error {
	bin, err := s.Discover()
	if err != nil {
		return err
	}

	args := make([]string, len(s.Args))
	for i, a := range s.Args {
		a = strings.ReplaceAll(a, InputPlaceholder, filepath.FromSlash(input))
		args[i] = strings.ReplaceAll(a, OutDirPlaceholder, filepath.FromSlash(outDir))
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(bin, args...)
	cmd.Dir = workDir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return fmt.Errorf("%w: failed to start %s: %v", apperr.ErrEngineUnavailable, bin, err)
		}
		diag := diagnostic(stderr.Bytes(), stdout.Bytes())
		if diag == "" {
			diag = exitErr.Error()
		}
		return fmt.Errorf("%w: LaTeX compilation failed: %s", apperr.ErrCompilation, diag)
	}
	return nil
}

// diagnostic prefers stderr, falls back to stdout, and keeps the tail.
func diagnostic(stderr, stdout []byte) string {
	out := bytes.TrimSpace(stderr)
	if len(out) == 0 {
		out = bytes.TrimSpace(stdout)
	}
	if len(out) > maxDiagnostic {
		out = out[len(out)-maxDiagnostic:]
	}
	return string(out)
}

func executable(p string) bool {
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return false
	}
	return runtime.GOOS == "windows" || info.Mode().Perm()&0o111 != 0
}

func wellKnownDirs() []string {
	var dirs []string
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".cargo", "bin"), filepath.Join(home, ".local", "bin"))
	}
	switch runtime.GOOS {
	case "darwin":
		dirs = append(dirs, "/opt/homebrew/bin", "/usr/local/bin", "/Library/TeX/texbin")
	case "windows":
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			dirs = append(dirs, filepath.Join(local, "Programs", "tectonic"))
		}
	default:
		dirs = append(dirs, "/usr/local/bin", "/usr/bin", "/snap/bin")
	}
	return dirs
}
