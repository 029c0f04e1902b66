// Package watch follows the file tree of the open project and reports changes.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a burst of events is reported.
const DefaultDebounce = 250 * time.Millisecond

// Callback is called with the project root after its tree changed.
type Callback func(root string)

// Manager watches at most one project root at a time. Calling Watch with a
// new root replaces the previous watch.
type Manager struct {
	logger   *slog.Logger
	debounce time.Duration
	cb       Callback

	mu     sync.Mutex
	root   string
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a Manager. cb may be nil.
func NewManager(debounce time.Duration, cb Callback, logger *slog.Logger) *Manager {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger, debounce: debounce, cb: cb}
}

// Root returns the currently watched root, or "" when idle.
func (m *Manager) Root() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.root
}

// Watch starts watching root and every visible directory beneath it.
// Watching the root that is already watched is a no-op.
func (m *Manager) Watch(root string) error {
	m.mu.Lock()
	if m.root == root && m.cancel != nil {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := addDirsRecursive(w, root); err != nil {
		_ = w.Close()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.mu.Lock()
	prevCancel, prevDone := m.cancel, m.done
	m.root, m.cancel, m.done = root, cancel, done
	m.mu.Unlock()

	stop(prevCancel, prevDone)

	go func() {
		defer close(done)
		m.loop(ctx, w, root)
	}()

	m.logger.Info("watch: started", slog.String("root", root))
	return nil
}

// Close stops the current watch, if any.
func (m *Manager) Close() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.root, m.cancel, m.done = "", nil, nil
	m.mu.Unlock()

	stop(cancel, done)
}

func stop(cancel context.CancelFunc, done chan struct{}) {
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *Manager) loop(ctx context.Context, w *fsnotify.Watcher, root string) {
	defer w.Close()

	var timer *time.Timer
	var fire <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(m.debounce)
			fire = timer.C
		} else {
			timer.Reset(m.debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			m.logger.Info("watch: stopped", slog.String("root", root))
			return

		case <-fire:
			if m.cb != nil {
				m.cb(root)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if hidden(root, ev.Name) {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addDirsRecursive(w, ev.Name); err != nil {
						m.logger.Warn("watch: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", err.Error()))
					}
				}
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			schedule()

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			m.logger.Error("watch: error", slog.String("error", err.Error()))
		}
	}
}

// hidden reports whether any component of path below root is dot-prefixed.
func hidden(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}

// addDirsRecursive adds root and all its visible subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
