package handler

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"librarian/internal/domain"
	"librarian/internal/httputil"
)

// maxFormMemory is how much of a multipart body is kept in memory before
// net/http spools the rest to disk.
const maxFormMemory = 32 << 20

// handleError converts domain errors to HTTP responses
func handleError(w http.ResponseWriter, err error) {
	var (
		conflictErr  *domain.ConflictError
		transientErr *domain.TransientStateError
		ingestionErr *domain.IngestionError
	)

	switch {
	case errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		httputil.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		httputil.RespondError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &transientErr):
		httputil.RespondErrorWithExtras(w, http.StatusConflict, transientErr.Error(), map[string]interface{}{
			"dataset_id": transientErr.DatasetID,
			"state":      transientErr.State,
		})
	case errors.As(err, &ingestionErr):
		httputil.RespondErrorWithExtras(w, http.StatusUnprocessableEntity, ingestionErr.Error(), map[string]interface{}{
			"dataset_id": ingestionErr.DatasetID,
			"error":      ingestionErr.Detail,
		})
	case errors.As(err, &conflictErr):
		httputil.RespondError(w, http.StatusConflict, conflictErr.Error())
	default:
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// queryBool reads a boolean query parameter; anything unparsable is false
func queryBool(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}

// isFormRequest reports whether the body is a urlencoded or multipart form
func isFormRequest(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data"
}

// parseForm parses either form encoding
func parseForm(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		return r.ParseMultipartForm(maxFormMemory)
	}
	return r.ParseForm()
}

// formString returns a pointer to the form value, nil when the key is absent
func formString(r *http.Request, key string) *string {
	values, ok := r.PostForm[key]
	if !ok || len(values) == 0 {
		return nil
	}
	return &values[0]
}

// formList collects "key" and "key[]" values, also splitting comma lists.
// Returns nil when neither key is present.
func formList(r *http.Request, key string) []string {
	raw, ok := r.PostForm[key]
	if more, found := r.PostForm[key+"[]"]; found {
		raw = append(raw, more...)
		ok = true
	}
	if !ok {
		return nil
	}
	out := []string{}
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// HealthCheck reports liveness
// GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
