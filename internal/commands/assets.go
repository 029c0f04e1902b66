package commands

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/starford/incipit/internal/apperr"
	"github.com/starford/incipit/internal/models"
)

const (
	// MaxAssetSize caps imported assets.
	MaxAssetSize = 10 << 20
	// DefaultAssetDir is where assets go when no directory is given.
	DefaultAssetDir = "figures"
)

// assetTypes maps the extensions graphicx can include to their sniffed MIME type.
var assetTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".pdf":  "application/pdf",
}

var unsafeNameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// AssetExtension returns the file extension for a MIME type, or "".
func AssetExtension(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "application/pdf":
		return ".pdf"
	}
	return ""
}

// ImportAsset stores data as name inside dir of the project and returns an
// \includegraphics line for it. Existing files are never overwritten.
func (s *Service) ImportAsset(_ context.Context, root, dir, name string, data []byte) (*models.Asset, error) {
	name = SanitizeAssetName(name)
	if name == "" {
		return nil, fmt.Errorf("%w: asset file name is required", apperr.ErrInvalidInput)
	}
	ext := strings.ToLower(filepath.Ext(name))
	want, ok := assetTypes[ext]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported asset type %q (allowed: png, jpg, jpeg, pdf)", apperr.ErrInvalidInput, ext)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: asset is empty", apperr.ErrInvalidInput)
	}
	if len(data) > MaxAssetSize {
		return nil, fmt.Errorf("%w: asset too large: %d bytes (max %d)", apperr.ErrInvalidInput, len(data), MaxAssetSize)
	}
	if got := strings.Split(http.DetectContentType(data), ";")[0]; got != want {
		return nil, fmt.Errorf("%w: content does not match extension %s (detected: %s)", apperr.ErrInvalidInput, ext, got)
	}

	if dir == "" {
		dir = DefaultAssetDir
	}
	rel := path.Join(filepath.ToSlash(dir), name)

	store, err := s.project(root)
	if err != nil {
		return nil, err
	}
	if store.Exists(rel) {
		return nil, fmt.Errorf("%w: %s", apperr.ErrAlreadyExists, rel)
	}
	if err := store.Write(rel, data); err != nil {
		return nil, fmt.Errorf("failed to save asset %s: %w", rel, err)
	}

	return &models.Asset{
		Path:    rel,
		Size:    len(data),
		Include: fmt.Sprintf(`\includegraphics{%s}`, strings.TrimSuffix(rel, ext)),
	}, nil
}

// SanitizeAssetName strips directories and characters LaTeX paths choke on.
func SanitizeAssetName(name string) string {
	name = filepath.Base(filepath.FromSlash(name))
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return unsafeNameRe.ReplaceAllString(name, "_")
}
