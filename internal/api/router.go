package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/incipit/internal/commands"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *commands.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Compilation.
	r.Post("/compile", h.Compile)
	r.Post("/projects/compile", h.CompileProject)
	r.Get("/projects/pdf", h.LoadPDF)
	r.Get("/projects/pdf/exists", h.PDFExists)
	r.Get("/compiles", h.CompileHistory)

	// Project files and metadata.
	r.Post("/projects/open", h.OpenProject)
	r.Get("/projects/file", h.ReadFile)
	r.Put("/projects/file", h.WriteFile)
	r.Get("/projects/meta", h.LoadProjectMeta)
	r.Put("/projects/meta", h.SaveProjectMeta)
	r.Post("/projects/assets", h.UploadAsset)

	// Global settings.
	r.Get("/settings", h.LoadSettings)
	r.Put("/settings", h.SaveSettings)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
