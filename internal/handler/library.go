package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	libSvc "librarian/internal/domain/services/library"
	"librarian/internal/httputil"
)

// LibraryHandler handles library HTTP requests
type LibraryHandler struct {
	libraryService libSvc.LibraryService
	logger         *slog.Logger
}

// NewLibraryHandler creates a new library handler
func NewLibraryHandler(libraryService libSvc.LibraryService, logger *slog.Logger) *LibraryHandler {
	return &LibraryHandler{
		libraryService: libraryService,
		logger:         logger,
	}
}

// ListLibraries lists the libraries the caller can access
// GET /api/libraries?deleted=true
func (h *LibraryHandler) ListLibraries(w http.ResponseWriter, r *http.Request) {
	libraries, err := h.libraryService.ListLibraries(r.Context(), httputil.GetIdentity(r), queryBool(r, "deleted"))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, libraries)
}

// CreateLibrary creates a library with its root folder (admin only)
// POST /api/libraries
func (h *LibraryHandler) CreateLibrary(w http.ResponseWriter, r *http.Request) {
	var req libSvc.CreateLibraryRequest
	if isFormRequest(r) {
		if err := parseForm(r); err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "Invalid form body")
			return
		}
		req.Name = r.PostForm.Get("name")
		req.Description = r.PostForm.Get("description")
		req.Synopsis = r.PostForm.Get("synopsis")
	} else if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	library, err := h.libraryService.CreateLibrary(r.Context(), httputil.GetIdentity(r), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, library)
}

// GetLibrary retrieves a library by ID
// GET /api/libraries/{id}
func (h *LibraryHandler) GetLibrary(w http.ResponseWriter, r *http.Request) {
	library, err := h.libraryService.GetLibrary(r.Context(), httputil.GetIdentity(r), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, library)
}

// UpdateLibrary applies a partial update (admin only)
// PATCH /api/libraries/{id}
func (h *LibraryHandler) UpdateLibrary(w http.ResponseWriter, r *http.Request) {
	var req libSvc.UpdateLibraryRequest
	if isFormRequest(r) {
		if err := parseForm(r); err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "Invalid form body")
			return
		}
		req.Name = formString(r, "name")
		req.Description = formString(r, "description")
		req.Synopsis = formString(r, "synopsis")
	} else if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	library, err := h.libraryService.UpdateLibrary(r.Context(), httputil.GetIdentity(r), r.PathValue("id"), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, library)
}

// DeleteLibrary marks a library deleted, or restores it with undelete=true (admin only)
// DELETE /api/libraries/{id}
func (h *LibraryHandler) DeleteLibrary(w http.ResponseWriter, r *http.Request) {
	undelete, err := undeleteFlag(w, r)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	library, err := h.libraryService.DeleteLibrary(r.Context(), httputil.GetIdentity(r), r.PathValue("id"), undelete)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, library)
}

// GetPermissions lists the roles granted on a library (manage)
// GET /api/libraries/{id}/permissions
func (h *LibraryHandler) GetPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.libraryService.GetPermissions(r.Context(), httputil.GetIdentity(r), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, perms)
}

// SetPermissions replaces the role lists that are present in the request (manage)
// POST /api/libraries/{id}/permissions
func (h *LibraryHandler) SetPermissions(w http.ResponseWriter, r *http.Request) {
	var req libSvc.SetPermissionsRequest
	if isFormRequest(r) {
		if err := parseForm(r); err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "Invalid form body")
			return
		}
		req.AccessRoleIDs = formList(r, "access_ids")
		req.ModifyRoleIDs = formList(r, "modify_ids")
		req.ManageRoleIDs = formList(r, "manage_ids")
	} else if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	perms, err := h.libraryService.SetPermissions(r.Context(), httputil.GetIdentity(r), r.PathValue("id"), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, perms)
}

// undeleteFlag reads undelete from the query string, a form or a JSON body.
// An empty body means false.
func undeleteFlag(w http.ResponseWriter, r *http.Request) (bool, error) {
	if queryBool(r, "undelete") {
		return true, nil
	}
	if isFormRequest(r) {
		if err := parseForm(r); err != nil {
			return false, err
		}
		v, _ := strconv.ParseBool(r.PostForm.Get("undelete"))
		return v, nil
	}

	var body struct {
		Undelete flexBool `json:"undelete"`
	}
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	return bool(body.Undelete), nil
}

// flexBool accepts true, "true" and other strconv.ParseBool spellings
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "null" || s == "" {
		*b = false
		return nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*b = flexBool(v)
	return nil
}
