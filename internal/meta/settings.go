package meta

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/starford/incipit/internal/apperr"
	"github.com/starford/incipit/internal/models"
	"github.com/starford/incipit/internal/storage"
)

// AppDirName is the directory created under the OS user config directory.
const AppDirName = "incipit"

// SettingsFile is the global settings file name inside the settings directory.
const SettingsFile = "settings.json"

// DefaultSettingsDir returns <user config dir>/incipit.
func DefaultSettingsDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("meta: failed to determine config directory: %w", err)
	}
	return filepath.Join(base, AppDirName), nil
}

// SettingsStore reads and writes the per-user GlobalSettings file.
type SettingsStore struct {
	dir string
}

// NewSettingsStore creates a store for the settings file in dir.
// The directory is created on first use.
func NewSettingsStore(dir string) *SettingsStore {
	return &SettingsStore{dir: dir}
}

// Dir returns the directory holding the settings file.
func (s *SettingsStore) Dir() string {
	return s.dir
}

// Path returns the absolute location of the settings file.
func (s *SettingsStore) Path() string {
	return filepath.Join(s.dir, SettingsFile)
}

func (s *SettingsStore) open() (*storage.FS, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("meta: failed to create config directory: %w", err)
	}
	return storage.NewFS(s.dir)
}

// Load returns the stored settings, or defaults when none were saved yet.
func (s *SettingsStore) Load() (*models.GlobalSettings, error) {
	fs, err := s.open()
	if err != nil {
		return nil, err
	}
	settings := models.NewGlobalSettings()
	if !fs.Exists(SettingsFile) {
		return settings, nil
	}
	data, err := fs.Read(SettingsFile)
	if err != nil {
		return nil, fmt.Errorf("meta: read settings: %w", err)
	}
	if err := decode(data, settings); err != nil {
		return nil, fmt.Errorf("%w: failed to parse settings: %v", apperr.ErrInvalidMetadata, err)
	}
	if settings.RecentProjects == nil {
		settings.RecentProjects = []string{}
	}
	settings.EditorSettings = normalize(settings.EditorSettings)
	return settings, nil
}

// Save overwrites the settings file with settings.
func (s *SettingsStore) Save(settings *models.GlobalSettings) error {
	if settings == nil {
		return fmt.Errorf("%w: settings are required", apperr.ErrInvalidInput)
	}
	if err := jsonValue(settings.EditorSettings); err != nil {
		return fmt.Errorf("%w: editor_settings: %v", apperr.ErrInvalidInput, err)
	}
	fs, err := s.open()
	if err != nil {
		return err
	}
	out := *settings
	if out.RecentProjects == nil {
		out.RecentProjects = []string{}
	}
	out.EditorSettings = normalize(out.EditorSettings)
	data, err := encode(&out)
	if err != nil {
		return fmt.Errorf("meta: serialize settings: %w", err)
	}
	if err := fs.Write(SettingsFile, data); err != nil {
		return fmt.Errorf("meta: write settings: %w", err)
	}
	return nil
}
