package api

import (
	"io"
	"net/http"

	"github.com/starford/incipit/internal/commands"
)

// maxUploadBytes leaves room for multipart framing around the largest asset.
const maxUploadBytes = commands.MaxAssetSize + 1<<20

// UploadAsset handles POST /api/projects/assets.
//
//	@Summary		Import a figure into a project
//	@Tags			projects
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			project	formData	string	true	"Project directory"
//	@Param			dir		formData	string	false	"Target directory (default figures)"
//	@Param			file	formData	file	true	"Image or PDF"
//	@Success		201		{object}	AssetResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/assets [post]
func (h *Handler) UploadAsset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, commands.MaxAssetSize+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read upload"))
		return
	}

	asset, err := h.svc.ImportAsset(r.Context(), r.FormValue("project"), r.FormValue("dir"), header.Filename, data)
	if err != nil {
		writeError(w, "upload asset", err)
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}
