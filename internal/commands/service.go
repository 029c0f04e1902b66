// Package commands implements the operations the editor front end calls:
// compiling, project files, metadata, settings, and compiled output.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"unicode/utf8"

	"github.com/starford/incipit/internal/apperr"
	"github.com/starford/incipit/internal/compile"
	"github.com/starford/incipit/internal/history"
	"github.com/starford/incipit/internal/meta"
	"github.com/starford/incipit/internal/models"
	"github.com/starford/incipit/internal/sandbox"
	"github.com/starford/incipit/internal/storage"
)

// Watcher follows the file tree of the opened project.
type Watcher interface {
	Watch(root string) error
}

// Option configures a Service.
type Option func(*Service)

// WithHistory records compiles in h and serves CompileHistory from it.
func WithHistory(h history.Store) Option {
	return func(s *Service) {
		s.history = h
	}
}

// WithWatcher starts watching every project passed to OpenProject.
func WithWatcher(w Watcher) Option {
	return func(s *Service) {
		s.watcher = w
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Service coordinates the sandboxed project storage, metadata stores, and
// the compile dispatcher.
type Service struct {
	compiler *compile.Dispatcher
	settings *meta.SettingsStore
	history  history.Store
	watcher  Watcher
	logger   *slog.Logger
}

// NewService creates a command service.
func NewService(compiler *compile.Dispatcher, settings *meta.SettingsStore, opts ...Option) *Service {
	s := &Service{
		compiler: compiler,
		settings: settings,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CompileStandalone compiles a single document held in memory.
func (s *Service) CompileStandalone(ctx context.Context, source string) ([]byte, error) {
	return s.compiler.CompileStandalone(ctx, source)
}

// CompileProject saves source to file inside the project and compiles it there.
func (s *Service) CompileProject(ctx context.Context, root, file, source string) ([]byte, error) {
	return s.compiler.CompileProject(ctx, root, file, source)
}

// OpenProject builds the file tree of the project at path and starts
// watching it when a watcher is configured.
func (s *Service) OpenProject(_ context.Context, path string) (*models.FileNode, error) {
	store, err := s.project(path)
	if err != nil {
		return nil, err
	}
	tree, err := store.Tree()
	if err != nil {
		return nil, err
	}
	if s.watcher != nil {
		if err := s.watcher.Watch(store.Root()); err != nil {
			s.logger.Warn("commands: watch project failed",
				slog.String("root", store.Root()),
				slog.String("error", err.Error()))
		}
	}
	s.logger.Info("commands: project opened", slog.String("root", store.Root()))
	return tree, nil
}

// ReadFile returns the text of a project file. The content must be UTF-8.
func (s *Service) ReadFile(_ context.Context, root, file string) (string, error) {
	if file == "" {
		return "", fmt.Errorf("%w: file path is required", apperr.ErrInvalidInput)
	}
	store, err := s.project(root)
	if err != nil {
		return "", err
	}
	data, err := store.Read(file)
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", file, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: file %s is not valid UTF-8 text", apperr.ErrInvalidInput, file)
	}
	return string(data), nil
}

// WriteFile replaces the content of a project file, creating it and its
// parent directories when needed.
func (s *Service) WriteFile(_ context.Context, root, file, content string) error {
	if file == "" {
		return fmt.Errorf("%w: file path is required", apperr.ErrInvalidInput)
	}
	store, err := s.project(root)
	if err != nil {
		return err
	}
	if err := store.Write(file, []byte(content)); err != nil {
		return fmt.Errorf("failed to write file %s: %w", file, err)
	}
	return nil
}

// LoadProjectMeta returns the project's metadata, or defaults when none exist.
func (s *Service) LoadProjectMeta(_ context.Context, root string) (*models.ProjectMeta, error) {
	store, err := s.project(root)
	if err != nil {
		return nil, err
	}
	return meta.LoadProject(store)
}

// SaveProjectMeta overwrites the project's metadata file.
func (s *Service) SaveProjectMeta(_ context.Context, root string, m *models.ProjectMeta) error {
	store, err := s.project(root)
	if err != nil {
		return err
	}
	return meta.SaveProject(store, m)
}

// LoadGlobalSettings returns the per-user settings, or defaults.
func (s *Service) LoadGlobalSettings(_ context.Context) (*models.GlobalSettings, error) {
	return s.settings.Load()
}

// SaveGlobalSettings overwrites the per-user settings file.
func (s *Service) SaveGlobalSettings(_ context.Context, settings *models.GlobalSettings) error {
	return s.settings.Save(settings)
}

// PDFExists reports whether compiled output exists for the source file and
// where it is.
func (s *Service) PDFExists(_ context.Context, root, file string) (*models.PDFLocation, error) {
	store, input, err := s.input(root, file)
	if err != nil {
		return nil, err
	}
	rel, ok := compile.LocateOutput(store, input, s.compiler.OutputDir())
	if !ok {
		return &models.PDFLocation{}, nil
	}
	return &models.PDFLocation{
		Exists: true,
		Path:   filepath.Join(store.Root(), filepath.FromSlash(rel)),
	}, nil
}

// LoadPDF returns the compiled output of the source file.
func (s *Service) LoadPDF(_ context.Context, root, file string) ([]byte, error) {
	store, input, err := s.input(root, file)
	if err != nil {
		return nil, err
	}
	return compile.ReadOutput(store, input, s.compiler.OutputDir())
}

// CompileHistory returns the most recent compiles, newest first. An empty
// root lists compiles of every project.
func (s *Service) CompileHistory(_ context.Context, root string, limit int) ([]models.CompileRecord, error) {
	if s.history == nil {
		return []models.CompileRecord{}, nil
	}
	project := ""
	if root != "" {
		canonical, err := sandbox.Root(root)
		if err != nil {
			return nil, err
		}
		project = canonical
	}
	return s.history.Recent(project, limit)
}

func (s *Service) project(root string) (*storage.FS, error) {
	store, err := storage.NewFS(root)
	if err != nil {
		return nil, err
	}
	return store.WithLogger(s.logger), nil
}

func (s *Service) input(root, file string) (*storage.FS, string, error) {
	store, err := s.project(root)
	if err != nil {
		return nil, "", err
	}
	input, err := compile.InputPath(store, file)
	if err != nil {
		return nil, "", err
	}
	return store, input, nil
}
