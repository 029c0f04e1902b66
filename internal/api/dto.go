package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/incipit/internal/models"
)

// CompileRequest is the request body for compiling a standalone document.
type CompileRequest struct {
	Source string `json:"source" example:"\\documentclass{article}..." validate:"required"`
}

// Validate implements validation.Validatable.
func (r *CompileRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Source, validation.Required),
	)
}

// CompileProjectRequest is the request body for compiling a project file.
type CompileProjectRequest struct {
	ProjectPath string `json:"project_path" example:"/home/me/thesis" validate:"required"`
	FilePath    string `json:"file_path" example:"main.tex" validate:"required"`
	Source      string `json:"source" validate:"required"`
}

// Validate implements validation.Validatable.
func (r *CompileProjectRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ProjectPath, validation.Required),
		validation.Field(&r.FilePath, validation.Required),
	)
}

// OpenProjectRequest is the request body for opening a project directory.
type OpenProjectRequest struct {
	Path string `json:"path" example:"/home/me/thesis" validate:"required"`
}

// Validate implements validation.Validatable.
func (r *OpenProjectRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Path, validation.Required),
	)
}

// WriteFileRequest is the request body for saving a project file.
type WriteFileRequest struct {
	ProjectPath string `json:"project_path" validate:"required"`
	FilePath    string `json:"file_path" example:"chapters/intro.tex" validate:"required"`
	Content     string `json:"content"`
}

// Validate implements validation.Validatable.
func (r *WriteFileRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ProjectPath, validation.Required),
		validation.Field(&r.FilePath, validation.Required),
	)
}

// SaveProjectMetaRequest is the request body for saving project metadata.
type SaveProjectMetaRequest struct {
	ProjectPath string              `json:"project_path" validate:"required"`
	Meta        *models.ProjectMeta `json:"meta" validate:"required"`
}

// Validate implements validation.Validatable. The metadata itself is
// validated by the store.
func (r *SaveProjectMetaRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ProjectPath, validation.Required),
		validation.Field(&r.Meta, validation.NotNil),
	)
}

// FileContentResponse carries the text of a project file.
type FileContentResponse struct {
	Content string `json:"content" validate:"required"`
}

// CompileHistoryResponse wraps recent compile records.
type CompileHistoryResponse struct {
	Compiles []models.CompileRecord `json:"compiles" validate:"required"`
}

// FileNode is the project tree response type (aliased from the domain layer).
type FileNode = models.FileNode

// PDFLocation is the check-pdf-exists response type.
type PDFLocation = models.PDFLocation

// AssetResponse is returned after a successful asset upload.
type AssetResponse = models.Asset
