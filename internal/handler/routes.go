package handler

import "net/http"

// Handlers groups every HTTP handler of the service
type Handlers struct {
	Libraries *LibraryHandler
	Folders   *FolderHandler
	Contents  *ContentHandler
}

// RegisterRoutes mounts the API on mux (Go 1.22+ method patterns)
func RegisterRoutes(mux *http.ServeMux, h Handlers) {
	mux.HandleFunc("GET /health", HealthCheck)

	// Library routes
	mux.HandleFunc("GET /api/libraries", h.Libraries.ListLibraries)
	mux.HandleFunc("POST /api/libraries", h.Libraries.CreateLibrary)
	mux.HandleFunc("GET /api/libraries/{id}", h.Libraries.GetLibrary)
	mux.HandleFunc("PATCH /api/libraries/{id}", h.Libraries.UpdateLibrary)
	mux.HandleFunc("DELETE /api/libraries/{id}", h.Libraries.DeleteLibrary)

	// Permission routes
	mux.HandleFunc("GET /api/libraries/{id}/permissions", h.Libraries.GetPermissions)
	mux.HandleFunc("POST /api/libraries/{id}/permissions", h.Libraries.SetPermissions)

	// Content routes
	mux.HandleFunc("GET /api/libraries/{id}/contents", h.Contents.ListContents)
	mux.HandleFunc("POST /api/libraries/{id}/contents", h.Contents.CreateContent)
	mux.HandleFunc("GET /api/libraries/{id}/contents/{content_id}", h.Contents.GetContent)
	mux.HandleFunc("GET /api/libraries/{id}/contents/{content_id}/download", h.Contents.DownloadContent)
	mux.HandleFunc("DELETE /api/libraries/{id}/contents/{content_id}", h.Contents.DeleteContent)

	// Folder routes
	mux.HandleFunc("GET /api/folders/{id}", h.Folders.GetFolder)
	mux.HandleFunc("PATCH /api/folders/{id}", h.Folders.UpdateFolder)
	mux.HandleFunc("DELETE /api/folders/{id}", h.Folders.DeleteFolder)
}
