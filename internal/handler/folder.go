package handler

import (
	"log/slog"
	"net/http"

	libSvc "librarian/internal/domain/services/library"
	"librarian/internal/httputil"
)

// FolderHandler handles folder HTTP requests
type FolderHandler struct {
	folderService libSvc.FolderService
	logger        *slog.Logger
}

// NewFolderHandler creates a new folder handler
func NewFolderHandler(folderService libSvc.FolderService, logger *slog.Logger) *FolderHandler {
	return &FolderHandler{
		folderService: folderService,
		logger:        logger,
	}
}

// GetFolder retrieves a folder by ID
// GET /api/folders/{id}
func (h *FolderHandler) GetFolder(w http.ResponseWriter, r *http.Request) {
	folder, err := h.folderService.GetFolder(r.Context(), httputil.GetIdentity(r), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, folder)
}

// UpdateFolder renames a folder or changes its description
// PATCH /api/folders/{id}
func (h *FolderHandler) UpdateFolder(w http.ResponseWriter, r *http.Request) {
	var req libSvc.UpdateFolderRequest
	if isFormRequest(r) {
		if err := parseForm(r); err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "Invalid form body")
			return
		}
		req.Name = formString(r, "name")
		req.Description = formString(r, "description")
	} else if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	folder, err := h.folderService.UpdateFolder(r.Context(), httputil.GetIdentity(r), r.PathValue("id"), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, folder)
}

// DeleteFolder marks a folder deleted, or restores it with undelete=true
// DELETE /api/folders/{id}
func (h *FolderHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	undelete, err := undeleteFlag(w, r)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	folder, err := h.folderService.DeleteFolder(r.Context(), httputil.GetIdentity(r), r.PathValue("id"), undelete)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, folder)
}
