package watch

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	roots []string
}

func (r *recorder) cb(root string) {
	r.mu.Lock()
	r.roots = append(r.roots, root)
	r.mu.Unlock()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.roots)
}

func (r *recorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.roots) == 0 {
		return ""
	}
	return r.roots[len(r.roots)-1]
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func newManager(t *testing.T, rec *recorder) *Manager {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	m := NewManager(30*time.Millisecond, rec.cb, logger)
	t.Cleanup(m.Close)
	return m
}

func TestWatch_NewFileReported(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	m := newManager(t, rec)
	if err := m.Watch(root); err != nil {
		t.Fatal(err)
	}
	if m.Root() != root {
		t.Fatalf("Root() = %q", m.Root())
	}

	_ = os.WriteFile(filepath.Join(root, "main.tex"), []byte("x"), 0o644)

	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool {
		return rec.count() > 0
	}, "change not reported")
	if rec.last() != root {
		t.Errorf("callback root = %q, want %q", rec.last(), root)
	}
}

func TestWatch_BurstDebounced(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	m := newManager(t, rec)
	if err := m.Watch(root); err != nil {
		t.Fatal(err)
	}

	for i := range 5 {
		_ = os.WriteFile(filepath.Join(root, "f.tex"), []byte{byte('a' + i)}, 0o644)
	}

	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool {
		return rec.count() > 0
	}, "change not reported")
	time.Sleep(150 * time.Millisecond)
	if n := rec.count(); n != 1 {
		t.Errorf("callbacks = %d, want 1", n)
	}
}

func TestWatch_NewDirectoryFollowed(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	m := newManager(t, rec)
	if err := m.Watch(root); err != nil {
		t.Fatal(err)
	}

	sub := filepath.Join(root, "chapters")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool {
		return rec.count() > 0
	}, "new dir not reported")

	before := rec.count()
	time.Sleep(50 * time.Millisecond)
	_ = os.WriteFile(filepath.Join(sub, "intro.tex"), []byte("x"), 0o644)
	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool {
		return rec.count() > before
	}, "file in new dir not reported")
}

func TestWatch_HiddenIgnored(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	m := newManager(t, rec)
	if err := m.Watch(root); err != nil {
		t.Fatal(err)
	}

	_ = os.WriteFile(filepath.Join(root, ".incipit"), []byte("{}"), 0o644)
	time.Sleep(200 * time.Millisecond)
	if n := rec.count(); n != 0 {
		t.Errorf("hidden file change reported %d times", n)
	}
}

func TestWatch_SwitchRoot(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	rec := &recorder{}
	m := newManager(t, rec)
	if err := m.Watch(first); err != nil {
		t.Fatal(err)
	}
	if err := m.Watch(second); err != nil {
		t.Fatal(err)
	}

	_ = os.WriteFile(filepath.Join(first, "a.tex"), []byte("x"), 0o644)
	time.Sleep(200 * time.Millisecond)
	if n := rec.count(); n != 0 {
		t.Fatalf("old root still watched: %d callbacks", n)
	}

	_ = os.WriteFile(filepath.Join(second, "b.tex"), []byte("x"), 0o644)
	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool {
		return rec.last() == second
	}, "new root not watched")
}

func TestWatch_MissingRoot(t *testing.T) {
	m := newManager(t, &recorder{})
	if err := m.Watch(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing root")
	}
	if m.Root() != "" {
		t.Errorf("Root() = %q after failure", m.Root())
	}
}

func TestHidden(t *testing.T) {
	root := filepath.FromSlash("/p")
	cases := map[string]bool{
		"/p/main.tex":         false,
		"/p/.incipit":         true,
		"/p/.git/HEAD":        true,
		"/p/build/main.pdf":   false,
		"/p/a/.tmp/x":         true,
		"/p/.incipit-tmp-123": true,
	}
	for p, want := range cases {
		if got := hidden(root, filepath.FromSlash(p)); got != want {
			t.Errorf("hidden(%q) = %v, want %v", p, got, want)
		}
	}
}
