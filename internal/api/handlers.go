package api

import (
	"net/http"
	"strconv"

	"github.com/starford/incipit/internal/commands"
	"github.com/starford/incipit/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	svc *commands.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *commands.Service) *Handler {
	return &Handler{svc: svc}
}

// Compile handles POST /api/compile.
//
//	@Summary		Compile a standalone document
//	@Tags			compile
//	@Accept			json
//	@Produce		application/pdf
//	@Param			body	body		CompileRequest	true	"Document source"
//	@Success		200		{file}		binary
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/compile [post]
func (h *Handler) Compile(w http.ResponseWriter, r *http.Request) {
	var req CompileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	pdf, err := h.svc.CompileStandalone(r.Context(), req.Source)
	if err != nil {
		writeError(w, "compile standalone", err)
		return
	}
	writePDF(w, r, pdf)
}

// CompileProject handles POST /api/projects/compile.
//
//	@Summary		Save and compile a project file
//	@Tags			compile
//	@Accept			json
//	@Produce		application/pdf
//	@Param			body	body		CompileProjectRequest	true	"Project, file and editor buffer"
//	@Success		200		{file}		binary
//	@Failure		400		{object}	errResponse
//	@Failure		403		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/compile [post]
func (h *Handler) CompileProject(w http.ResponseWriter, r *http.Request) {
	var req CompileProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	pdf, err := h.svc.CompileProject(r.Context(), req.ProjectPath, req.FilePath, req.Source)
	if err != nil {
		writeError(w, "compile project", err)
		return
	}
	writePDF(w, r, pdf)
}

// OpenProject handles POST /api/projects/open.
//
//	@Summary		Open a project directory and return its file tree
//	@Tags			projects
//	@Accept			json
//	@Produce		json
//	@Param			body	body		OpenProjectRequest	true	"Project directory"
//	@Success		200		{object}	FileNode
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/open [post]
func (h *Handler) OpenProject(w http.ResponseWriter, r *http.Request) {
	var req OpenProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tree, err := h.svc.OpenProject(r.Context(), req.Path)
	if err != nil {
		writeError(w, "open project", err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

// ReadFile handles GET /api/projects/file.
//
//	@Summary		Read a project file
//	@Tags			projects
//	@Produce		json
//	@Param			project	query		string	true	"Project directory"
//	@Param			path	query		string	true	"File path relative to the project"
//	@Success		200		{object}	FileContentResponse
//	@Failure		403		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/file [get]
func (h *Handler) ReadFile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	content, err := h.svc.ReadFile(r.Context(), q.Get("project"), q.Get("path"))
	if err != nil {
		writeError(w, "read file", err)
		return
	}
	writeJSON(w, http.StatusOK, FileContentResponse{Content: content})
}

// WriteFile handles PUT /api/projects/file.
//
//	@Summary		Save a project file
//	@Tags			projects
//	@Accept			json
//	@Param			body	body	WriteFileRequest	true	"File content"
//	@Success		204		"File saved"
//	@Failure		400		{object}	errResponse
//	@Failure		403		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/file [put]
func (h *Handler) WriteFile(w http.ResponseWriter, r *http.Request) {
	var req WriteFileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.WriteFile(r.Context(), req.ProjectPath, req.FilePath, req.Content); err != nil {
		writeError(w, "write file", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LoadProjectMeta handles GET /api/projects/meta.
//
//	@Summary		Load project metadata
//	@Tags			projects
//	@Produce		json
//	@Param			project	query		string	true	"Project directory"
//	@Success		200		{object}	models.ProjectMeta
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/meta [get]
func (h *Handler) LoadProjectMeta(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.LoadProjectMeta(r.Context(), r.URL.Query().Get("project"))
	if err != nil {
		writeError(w, "load project meta", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// SaveProjectMeta handles PUT /api/projects/meta.
//
//	@Summary		Save project metadata
//	@Tags			projects
//	@Accept			json
//	@Param			body	body	SaveProjectMetaRequest	true	"Project metadata"
//	@Success		204		"Metadata saved"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/meta [put]
func (h *Handler) SaveProjectMeta(w http.ResponseWriter, r *http.Request) {
	var req SaveProjectMetaRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.SaveProjectMeta(r.Context(), req.ProjectPath, req.Meta); err != nil {
		writeError(w, "save project meta", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LoadSettings handles GET /api/settings.
//
//	@Summary		Load global settings
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	models.GlobalSettings
//	@Failure		422	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/settings [get]
func (h *Handler) LoadSettings(w http.ResponseWriter, r *http.Request) {
	gs, err := h.svc.LoadGlobalSettings(r.Context())
	if err != nil {
		writeError(w, "load settings", err)
		return
	}
	writeJSON(w, http.StatusOK, gs)
}

// SaveSettings handles PUT /api/settings.
//
//	@Summary		Save global settings
//	@Tags			settings
//	@Accept			json
//	@Param			body	body	models.GlobalSettings	true	"Settings"
//	@Success		204		"Settings saved"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/settings [put]
func (h *Handler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	gs := models.NewGlobalSettings()
	if !decodeBody(w, r, gs) {
		return
	}
	if err := h.svc.SaveGlobalSettings(r.Context(), gs); err != nil {
		writeError(w, "save settings", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PDFExists handles GET /api/projects/pdf/exists.
//
//	@Summary		Check whether compiled output exists for a source file
//	@Tags			compile
//	@Produce		json
//	@Param			project	query		string	true	"Project directory"
//	@Param			path	query		string	true	"Source file path"
//	@Success		200		{object}	PDFLocation
//	@Failure		403		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/pdf/exists [get]
func (h *Handler) PDFExists(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc, err := h.svc.PDFExists(r.Context(), q.Get("project"), q.Get("path"))
	if err != nil {
		writeError(w, "check pdf", err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// LoadPDF handles GET /api/projects/pdf.
//
//	@Summary		Load the compiled output of a source file
//	@Tags			compile
//	@Produce		application/pdf
//	@Param			project			query		string	true	"Project directory"
//	@Param			path			query		string	true	"Source file path"
//	@Param			If-None-Match	header		string	false	"ETag from a previous response"
//	@Success		200				{file}		binary
//	@Success		304				"Not modified"
//	@Failure		404				{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/pdf [get]
func (h *Handler) LoadPDF(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pdf, err := h.svc.LoadPDF(r.Context(), q.Get("project"), q.Get("path"))
	if err != nil {
		writeError(w, "load pdf", err)
		return
	}
	writePDF(w, r, pdf)
}

// CompileHistory handles GET /api/compiles.
//
//	@Summary		List recent compiles
//	@Tags			compile
//	@Produce		json
//	@Param			project	query		string	false	"Project directory (empty for all)"
//	@Param			limit	query		int		false	"Max records"
//	@Success		200		{object}	CompileHistoryResponse
//	@Security		BearerAuth
//	@Router			/compiles [get]
func (h *Handler) CompileHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	recs, err := h.svc.CompileHistory(r.Context(), q.Get("project"), limit)
	if err != nil {
		writeError(w, "compile history", err)
		return
	}
	writeJSON(w, http.StatusOK, CompileHistoryResponse{Compiles: recs})
}
