// Package meta persists per-project metadata and per-user settings as JSON.
//
// Both stores read and write whole files; a save replaces the previous file
// entirely and nothing is merged.
package meta

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/incipit/internal/apperr"
	"github.com/starford/incipit/internal/models"
	"github.com/starford/incipit/internal/storage"
)

// LoadProject reads the project metadata file. A missing file yields defaults.
func LoadProject(store storage.Provider) (*models.ProjectMeta, error) {
	m := models.NewProjectMeta()
	if !store.Exists(models.ProjectMetaFile) {
		return m, nil
	}
	data, err := store.Read(models.ProjectMetaFile)
	if err != nil {
		return nil, fmt.Errorf("meta: read project metadata: %w", err)
	}
	if err := decode(data, m); err != nil {
		return nil, fmt.Errorf("%w: failed to parse project metadata: %v", apperr.ErrInvalidMetadata, err)
	}
	if m.RootFile == "" {
		m.RootFile = models.DefaultRootFile
	}
	m.ProjectSettings = normalize(m.ProjectSettings)
	return m, nil
}

// SaveProject validates m and overwrites the project metadata file with it.
func SaveProject(store storage.Provider, m *models.ProjectMeta) error {
	if m == nil {
		return fmt.Errorf("%w: project metadata is required", apperr.ErrInvalidInput)
	}
	if err := ValidateProject(m); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	out := *m
	out.ProjectSettings = normalize(out.ProjectSettings)
	data, err := encode(&out)
	if err != nil {
		return fmt.Errorf("meta: serialize project metadata: %w", err)
	}
	if err := store.Write(models.ProjectMetaFile, data); err != nil {
		return fmt.Errorf("meta: write project metadata: %w", err)
	}
	return nil
}

// ValidateProject checks that m names a root file inside the project.
func ValidateProject(m *models.ProjectMeta) error {
	return validation.ValidateStruct(m,
		validation.Field(&m.RootFile, validation.Required, validation.By(relativePath)),
		validation.Field(&m.LastOpenedFile, validation.NilOrNotEmpty, validation.By(relativePath)),
		validation.Field(&m.ProjectSettings, validation.By(jsonValue)),
	)
}

func relativePath(value any) error {
	var p string
	switch v := value.(type) {
	case string:
		p = v
	case *string:
		if v == nil {
			return nil
		}
		p = *v
	}
	if p == "" {
		return nil
	}
	p = strings.ReplaceAll(p, "\\", "/")
	if path.IsAbs(p) {
		return errors.New("must be relative to the project")
	}
	if c := path.Clean(p); c == ".." || strings.HasPrefix(c, "../") {
		return errors.New("must not leave the project")
	}
	return nil
}

func jsonValue(value any) error {
	raw, _ := value.(json.RawMessage)
	if len(raw) == 0 || json.Valid(raw) {
		return nil
	}
	return errors.New("must be valid JSON")
}

// decode unmarshals data over the defaults already present in target.
func decode(data []byte, target any) error {
	return json.Unmarshal(data, target)
}

func encode(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// normalize turns an absent or null settings value into an empty object.
func normalize(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage(`{}`)
	}
	return raw
}
