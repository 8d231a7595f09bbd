package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"librarian/internal/datatypes"
	libSvc "librarian/internal/domain/services/library"
	"librarian/internal/httputil"
)

// Upload form fields
const (
	fieldFileData = "files_0|file_data"
	fieldURLPaste = "files_0|url_paste"
)

// ContentHandler handles library contents: folders and datasets addressed
// through their library.
type ContentHandler struct {
	folderService  libSvc.FolderService
	contentService libSvc.ContentService
	registry       *datatypes.Registry
	maxBodyBytes   int64
	logger         *slog.Logger
}

// formOverhead is the room left for form fields and part headers on top
// of the largest accepted upload
const formOverhead = 1 << 20

// NewContentHandler creates a new content handler
func NewContentHandler(folderService libSvc.FolderService, contentService libSvc.ContentService, registry *datatypes.Registry, maxUploadBytes int64, logger *slog.Logger) *ContentHandler {
	return &ContentHandler{
		folderService:  folderService,
		contentService: contentService,
		registry:       registry,
		maxBodyBytes:   maxUploadBytes + formOverhead,
		logger:         logger,
	}
}

// contentSummary is one element of the create response
type contentSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	State string `json:"state,omitempty"`
}

// createContentRequest is the JSON form of a create request
type createContentRequest struct {
	CreateType  string `json:"create_type"`
	FolderID    string `json:"folder_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	FileType    string `json:"file_type"`
	Content     string `json:"content"`
}

// ListContents lists a folder of the library, the root by default
// GET /api/libraries/{id}/contents?folder_id=&deleted=true
func (h *ContentHandler) ListContents(w http.ResponseWriter, r *http.Request) {
	contents, err := h.folderService.ListContents(r.Context(), httputil.GetIdentity(r),
		r.PathValue("id"), r.URL.Query().Get("folder_id"), queryBool(r, "deleted"))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, contents)
}

// CreateContent creates a folder (create_type=folder) or uploads a dataset
// (create_type=file). Responds with a one-element list.
// POST /api/libraries/{id}/contents
func (h *ContentHandler) CreateContent(w http.ResponseWriter, r *http.Request) {
	var (
		req    createContentRequest
		source io.Reader
	)

	if isFormRequest(r) {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
		if err := parseForm(r); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				httputil.RespondError(w, http.StatusRequestEntityTooLarge,
					fmt.Sprintf("upload exceeds %s", humanize.Bytes(uint64(tooLarge.Limit-formOverhead))))
				return
			}
			httputil.RespondError(w, http.StatusBadRequest, "Invalid form body")
			return
		}
		if r.MultipartForm != nil {
			defer r.MultipartForm.RemoveAll()
		}
		req = createContentRequest{
			CreateType:  r.PostForm.Get("create_type"),
			FolderID:    r.PostForm.Get("folder_id"),
			Name:        r.PostForm.Get("name"),
			Description: r.PostForm.Get("description"),
			FileType:    r.PostForm.Get("file_type"),
			Content:     r.PostForm.Get(fieldURLPaste),
		}

		file, header, err := formFile(r)
		if err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "Invalid upload")
			return
		}
		if file != nil {
			defer file.Close()
			source = file
			if req.Name == "" {
				req.Name = header.Filename
			}
		}
	} else if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.CreateType == "" {
		req.CreateType = "file"
	}

	switch req.CreateType {
	case "folder":
		h.createFolder(w, r, &req)
	case "file":
		if source == nil {
			if req.Content == "" {
				httputil.RespondError(w, http.StatusBadRequest, "no file data or pasted content in request")
				return
			}
			source = strings.NewReader(req.Content)
		}
		h.createDataset(w, r, &req, source)
	default:
		httputil.RespondError(w, http.StatusBadRequest, "create_type must be folder or file")
	}
}

func (h *ContentHandler) createFolder(w http.ResponseWriter, r *http.Request, req *createContentRequest) {
	folder, err := h.folderService.CreateFolder(r.Context(), httputil.GetIdentity(r), &libSvc.CreateFolderRequest{
		LibraryID:      r.PathValue("id"),
		ParentFolderID: req.FolderID,
		Name:           req.Name,
		Description:    req.Description,
	})
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, []contentSummary{{ID: folder.ID, Name: folder.Name, Type: "folder"}})
}

func (h *ContentHandler) createDataset(w http.ResponseWriter, r *http.Request, req *createContentRequest, source io.Reader) {
	dataset, err := h.contentService.CreateContent(r.Context(), httputil.GetIdentity(r), &libSvc.CreateContentRequest{
		LibraryID: r.PathValue("id"),
		FolderID:  req.FolderID,
		Name:      req.Name,
		FileExt:   req.FileType,
		Source:    source,
	})
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, []contentSummary{{
		ID:    dataset.ID,
		Name:  dataset.Name,
		Type:  "file",
		State: string(dataset.State),
	}})
}

// GetContent returns a dataset with its ingestion state
// GET /api/libraries/{id}/contents/{content_id}
func (h *ContentHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	dataset, err := h.contentService.GetContent(r.Context(), httputil.GetIdentity(r), r.PathValue("id"), r.PathValue("content_id"))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, dataset)
}

// DownloadContent streams the stored bytes of a dataset in state ok
// GET /api/libraries/{id}/contents/{content_id}/download
func (h *ContentHandler) DownloadContent(w http.ResponseWriter, r *http.Request) {
	dataset, rc, err := h.contentService.OpenContent(r.Context(), httputil.GetIdentity(r), r.PathValue("id"), r.PathValue("content_id"))
	if err != nil {
		handleError(w, err)
		return
	}
	defer rc.Close()

	contentType := "application/octet-stream"
	if dt, ok := h.registry.Lookup(dataset.FileExt); ok {
		contentType = dt.ContentType()
	}
	filename := dataset.Name
	if filename == "" {
		filename = dataset.ID
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.FormatInt(dataset.FileSize, 10))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("download interrupted", "dataset_id", dataset.ID, "error", err)
	}
}

// DeleteContent marks a dataset deleted, or restores it with undelete=true
// DELETE /api/libraries/{id}/contents/{content_id}
func (h *ContentHandler) DeleteContent(w http.ResponseWriter, r *http.Request) {
	undelete, err := undeleteFlag(w, r)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	dataset, err := h.contentService.DeleteContent(r.Context(), httputil.GetIdentity(r), r.PathValue("id"), r.PathValue("content_id"), undelete)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, dataset)
}

// formFile returns the uploaded file part, or nil when the form has none
func formFile(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	if r.MultipartForm == nil {
		return nil, nil, nil
	}
	headers := r.MultipartForm.File[fieldFileData]
	if len(headers) == 0 {
		return nil, nil, nil
	}
	f, err := headers[0].Open()
	if err != nil {
		return nil, nil, err
	}
	return f, headers[0], nil
}
