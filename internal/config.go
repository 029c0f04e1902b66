package internal

import (
	"fmt"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/incipit/internal/compile"
	"github.com/starford/incipit/internal/history"
	"github.com/starford/incipit/internal/meta"
	"github.com/starford/incipit/internal/watch"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Engine   EngineConfig      `yaml:"engine"`
	Settings SettingsConfig    `yaml:"settings"`
	History  HistoryConfig     `yaml:"history"`
	Watch    WatchConfig       `yaml:"watch"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if err := c.History.Validate(); err != nil {
		return err
	}
	if err := c.Watch.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// EngineConfig configures the external LaTeX engine.
//
// Args may use the {input} and {outdir} placeholders. Binary is either a
// command name looked up on PATH and SearchPaths or a path to an executable.
type EngineConfig struct {
	Binary      string   `yaml:"binary"`
	Args        []string `yaml:"args"`
	SearchPaths []string `yaml:"search_paths"`
	MaxParallel int      `yaml:"max_parallel"`
	OutputDir   string   `yaml:"output_dir"`
}

// Validate validates the engine configuration.
func (c *EngineConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Binary, validation.Required),
		validation.Field(&c.MaxParallel, validation.Min(0)),
		validation.Field(&c.OutputDir, validation.Required, validation.By(relativeDir)),
	)
}

func relativeDir(value any) error {
	dir, _ := value.(string)
	if filepath.IsAbs(dir) {
		return fmt.Errorf("must be relative to the project")
	}
	clean := filepath.ToSlash(filepath.Clean(dir))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("must stay inside the project")
	}
	return nil
}

// SettingsConfig locates the per-user settings directory.
// An empty Dir means <user config dir>/incipit.
type SettingsConfig struct {
	Dir string `yaml:"dir"`
}

// ResolveDir returns the configured directory or the platform default.
func (c *SettingsConfig) ResolveDir() (string, error) {
	if c.Dir != "" {
		return c.Dir, nil
	}
	return meta.DefaultSettingsDir()
}

// HistoryConfig configures the compile history database.
// An empty Path puts history.db in the settings directory.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Keep    int    `yaml:"keep"`
}

// Validate validates the history configuration.
func (c *HistoryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Keep, validation.Min(0)),
	)
}

// ResolvePath returns the database path for the given settings directory.
func (c *HistoryConfig) ResolvePath(settingsDir string) string {
	if c.Path != "" {
		return c.Path
	}
	return filepath.Join(settingsDir, history.DefaultFile)
}

// WatchConfig configures the project file watcher.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for a local editor.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Host: "127.0.0.1",
				Port: 4785,
			},
		},
		Engine: EngineConfig{
			Binary:      compile.DefaultBinary,
			Args:        append([]string(nil), compile.DefaultArgs...),
			MaxParallel: 2,
			OutputDir:   compile.DefaultOutputDir,
		},
		History: HistoryConfig{
			Enabled: true,
			Keep:    500,
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: watch.DefaultDebounce,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
