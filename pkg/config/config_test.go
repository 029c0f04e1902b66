package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	valid bool
}

func (s *sample) Validate() error {
	s.valid = true
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("INCIPIT_TEST_NAME", "thesis")
	p := writeFile(t, "name: ${INCIPIT_TEST_NAME}\nport: 9000\n")

	cfg := sample{}
	if err := Load(p, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "thesis" || cfg.Port != 9000 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	p := writeFile(t, "name: only-name\n")
	cfg := sample{Port: 4785}
	if err := Load(p, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 4785 {
		t.Errorf("default port lost: %d", cfg.Port)
	}
}

func TestLoad_Errors(t *testing.T) {
	cfg := sample{}
	if err := Load(filepath.Join(t.TempDir(), "missing.yaml"), &cfg); err == nil {
		t.Error("expected error for missing file")
	}

	p := writeFile(t, "port: [\n")
	if err := Load(p, &cfg); err == nil || !strings.Contains(err.Error(), "failed to parse") {
		t.Errorf("parse err = %v", err)
	}

	p = writeFile(t, "port: 0\n")
	if err := Load(p, &cfg); err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("validation err = %v", err)
	}
}

func TestLoadOptional_MissingFileKeepsDefaults(t *testing.T) {
	cfg := sample{Name: "default", Port: 1}
	found, err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"), &cfg)
	if err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if found {
		t.Error("found = true for a missing file")
	}
	if cfg.Name != "default" || !cfg.valid {
		t.Errorf("cfg = %+v, want defaults validated", cfg)
	}
}

func TestLoadOptional_ExistingFile(t *testing.T) {
	p := writeFile(t, "port: 80\n")
	cfg := sample{Port: 1}
	found, err := LoadOptional(p, &cfg)
	if err != nil || !found {
		t.Fatalf("LoadOptional: found=%v err=%v", found, err)
	}
	if cfg.Port != 80 {
		t.Errorf("port = %d", cfg.Port)
	}
}
