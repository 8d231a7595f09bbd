package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"librarian/internal/datatypes"
	"librarian/internal/domain"
	"librarian/internal/domain/models"
	"librarian/internal/httputil"
	"librarian/internal/repository/memory"
	"librarian/internal/service/ingest"
	svcLibrary "librarian/internal/service/library"
	"librarian/internal/storage/blob"
)

var (
	adminUser = models.NewUserIdentity("admin", "admin@example.org", nil, true)
	plainUser = models.NewUserIdentity("user-1", "user@example.org", nil, false)
	otherUser = models.NewUserIdentity("user-2", "other@example.org", nil, false)
	anonUser  = models.Anonymous()
)

type testServer struct {
	mux *http.ServeMux
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := memory.NewStore()
	libs := memory.NewLibraryRepository(store)
	folders := memory.NewFolderRepository(store)
	datasets := memory.NewDatasetRepository(store)
	perms := memory.NewPermissionRepository(store)
	txm := memory.NewTransactionManager(store, logger)

	registry, err := datatypes.NewRegistry()
	if err != nil {
		t.Fatal(err)
	}
	blobs, err := blob.NewStore(t.TempDir(), logger)
	if err != nil {
		t.Fatal(err)
	}

	runner := ingest.NewRunner(ingest.RunnerConfig{Workers: 2, QueueSize: 8, JobTimeout: 5 * time.Second},
		ingest.NewStoredContentAnalyzer(blobs, registry), logger)
	pipeline := ingest.NewPipeline(libs, folders, datasets, blobs, runner, registry,
		ingest.PipelineConfig{SpoolDir: t.TempDir(), MaxUploadBytes: 64 << 10}, logger)
	runner.Start(pipeline)
	t.Cleanup(func() {
		pipeline.Wait()
		runner.Stop()
	})

	checker := svcLibrary.NewPermissionChecker(folders, datasets, perms, logger)
	libraryService := svcLibrary.NewLibraryService(libs, folders, perms, checker, txm, logger)
	folderService := svcLibrary.NewFolderService(libs, folders, datasets, checker, logger)
	contentService := svcLibrary.NewContentService(libs, folders, datasets, pipeline, blobs, checker, logger)

	mux := http.NewServeMux()
	RegisterRoutes(mux, Handlers{
		Libraries: NewLibraryHandler(libraryService, logger),
		Folders:   NewFolderHandler(folderService, logger),
		Contents:  NewContentHandler(folderService, contentService, registry, 64<<10, logger),
	})
	return &testServer{mux: mux}
}

func (s *testServer) do(identity models.Identity, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, httputil.WithIdentity(req, identity))
	return rec
}

func (s *testServer) form(identity models.Identity, method, path string, values url.Values) *httptest.ResponseRecorder {
	return s.do(identity, method, path, strings.NewReader(values.Encode()), "application/x-www-form-urlencoded")
}

func (s *testServer) json(identity models.Identity, method, path string, body interface{}) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	return s.do(identity, method, path, bytes.NewReader(payload), "application/json")
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d: %s", rec.Code, want, rec.Body.String())
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

func (s *testServer) newLibrary(t *testing.T, name string) map[string]interface{} {
	t.Helper()
	rec := s.form(adminUser, http.MethodPost, "/api/libraries", url.Values{"name": {name}})
	assertStatus(t, rec, http.StatusOK)
	return decode[map[string]interface{}](t, rec)
}

func TestCreateLibrary(t *testing.T) {
	s := newTestServer(t)

	library := s.newLibrary(t, "CreateTestLibrary")
	if library["name"] != "CreateTestLibrary" || library["deleted"] != false {
		t.Errorf("unexpected library: %v", library)
	}
	if root, _ := library["root_folder_id"].(string); root == "" {
		t.Errorf("missing root_folder_id: %v", library)
	}

	rec := s.json(adminUser, http.MethodPost, "/api/libraries", map[string]string{"name": ""})
	assertStatus(t, rec, http.StatusBadRequest)
}

func TestDeleteLibrary(t *testing.T) {
	s := newTestServer(t)
	library := s.newLibrary(t, "DeleteTestLibrary")
	path := "/api/libraries/" + library["id"].(string)

	rec := s.do(adminUser, http.MethodDelete, path, nil, "")
	assertStatus(t, rec, http.StatusOK)
	if got := decode[map[string]interface{}](t, rec); got["deleted"] != true {
		t.Errorf("expected deleted, got %v", got)
	}

	rec = s.form(adminUser, http.MethodDelete, path, url.Values{"undelete": {"true"}})
	assertStatus(t, rec, http.StatusOK)
	if got := decode[map[string]interface{}](t, rec); got["deleted"] != false {
		t.Errorf("expected undeleted, got %v", got)
	}

	// JSON body and query string spellings
	assertStatus(t, s.do(adminUser, http.MethodDelete, path, nil, ""), http.StatusOK)
	rec = s.json(adminUser, http.MethodDelete, path, map[string]interface{}{"undelete": true})
	assertStatus(t, rec, http.StatusOK)
	assertStatus(t, s.do(adminUser, http.MethodDelete, path, nil, ""), http.StatusOK)
	rec = s.do(adminUser, http.MethodDelete, path+"?undelete=true", nil, "")
	if got := decode[map[string]interface{}](t, rec); got["deleted"] != false {
		t.Errorf("expected undeleted via query, got %v", got)
	}
}

func TestNonAdmin(t *testing.T) {
	s := newTestServer(t)

	rec := s.form(anonUser, http.MethodPost, "/api/libraries", url.Values{"name": {"CreateTestLibrary"}})
	assertStatus(t, rec, http.StatusForbidden)

	library := s.newLibrary(t, "AnonDeleteTestLibrary")
	path := "/api/libraries/" + library["id"].(string)
	assertStatus(t, s.do(anonUser, http.MethodDelete, path, nil, ""), http.StatusForbidden)

	rec = s.form(anonUser, http.MethodPatch, path, url.Values{
		"name":        {"ChangedName"},
		"description": {"ChangedDescription"},
		"synopsis":    {"ChangedSynopsis"},
	})
	assertStatus(t, rec, http.StatusForbidden)

	// Reading a public library is fine
	assertStatus(t, s.do(anonUser, http.MethodGet, path, nil, ""), http.StatusOK)
}

func TestUpdateLibrary(t *testing.T) {
	s := newTestServer(t)
	library := s.newLibrary(t, "UpdateTestLibrary")
	path := "/api/libraries/" + library["id"].(string)

	rec := s.form(adminUser, http.MethodPatch, path, url.Values{
		"name":        {"ChangedName"},
		"description": {"ChangedDescription"},
		"synopsis":    {"ChangedSynopsis"},
	})
	assertStatus(t, rec, http.StatusOK)
	got := decode[map[string]interface{}](t, rec)
	if got["name"] != "ChangedName" || got["description"] != "ChangedDescription" || got["synopsis"] != "ChangedSynopsis" {
		t.Errorf("unexpected update: %v", got)
	}

	rec = s.json(adminUser, http.MethodPatch, path, map[string]string{"synopsis": "only this"})
	assertStatus(t, rec, http.StatusOK)
	got = decode[map[string]interface{}](t, rec)
	if got["name"] != "ChangedName" || got["synopsis"] != "only this" {
		t.Errorf("partial update lost fields: %v", got)
	}

	assertStatus(t, s.json(adminUser, http.MethodPatch, "/api/libraries/missing", map[string]string{"name": "x"}), http.StatusNotFound)
}

func TestPrivateLibraryPermissions(t *testing.T) {
	s := newTestServer(t)
	library := s.newLibrary(t, "PermissionTestLibrary")
	libraryID := library["id"].(string)
	roleID := models.PrivateRoleID(plainUser.UserID)

	rec := s.form(adminUser, http.MethodPost, "/api/libraries/"+libraryID+"/permissions", url.Values{
		"access_ids[]": {roleID},
		"modify_ids[]": {roleID},
		"manage_ids[]": {roleID},
	})
	assertStatus(t, rec, http.StatusOK)
	perms := decode[map[string][]string](t, rec)
	if len(perms["access_library_role_list"]) != 1 || perms["modify_library_role_list"][0] != roleID {
		t.Errorf("unexpected permissions: %v", perms)
	}

	folderForm := url.Values{
		"folder_id":   {library["root_folder_id"].(string)},
		"create_type": {"folder"},
		"name":        {"New Folder"},
	}
	rec = s.form(plainUser, http.MethodPost, "/api/libraries/"+libraryID+"/contents", folderForm)
	assertStatus(t, rec, http.StatusOK)
	created := decode[[]map[string]interface{}](t, rec)
	if len(created) != 1 || created[0]["name"] != "New Folder" {
		t.Errorf("unexpected create response: %v", created)
	}

	rec = s.form(otherUser, http.MethodPost, "/api/libraries/"+libraryID+"/contents", folderForm)
	assertStatus(t, rec, http.StatusForbidden)

	// The private library is invisible to others
	assertStatus(t, s.do(otherUser, http.MethodGet, "/api/libraries/"+libraryID, nil, ""), http.StatusForbidden)
	rec = s.do(otherUser, http.MethodGet, "/api/libraries", nil, "")
	assertStatus(t, rec, http.StatusOK)
	if list := decode[[]map[string]interface{}](t, rec); len(list) != 0 {
		t.Errorf("other user lists %v", list)
	}

	// Manager can read the permissions, others cannot
	assertStatus(t, s.do(plainUser, http.MethodGet, "/api/libraries/"+libraryID+"/permissions", nil, ""), http.StatusOK)
	assertStatus(t, s.do(otherUser, http.MethodGet, "/api/libraries/"+libraryID+"/permissions", nil, ""), http.StatusForbidden)
}

func uploadRequest(t *testing.T, folderID, fileType, contents string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{
		"folder_id":   folderID,
		"create_type": "file",
		"file_type":   fileType,
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	part, err := mw.CreateFormFile(fieldFileData, "test.txt")
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte(contents))
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func waitOnState(t *testing.T, show func() *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec := show()
		assertStatus(t, rec, http.StatusOK)
		ds := decode[map[string]interface{}](t, rec)
		switch ds["state"] {
		case "ok", "error":
			return ds
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("dataset never reached a terminal state")
	return nil
}

func TestCreateDataset(t *testing.T) {
	s := newTestServer(t)
	library := s.newLibrary(t, "ForCreateDatasets")
	libraryID := library["id"].(string)

	body, contentType := uploadRequest(t, library["root_folder_id"].(string), "txt", "create_test")
	rec := s.do(adminUser, http.MethodPost, "/api/libraries/"+libraryID+"/contents", body, contentType)
	assertStatus(t, rec, http.StatusOK)
	created := decode[[]map[string]interface{}](t, rec)
	if len(created) != 1 {
		t.Fatalf("expected one dataset, got %v", created)
	}
	datasetPath := fmt.Sprintf("/api/libraries/%s/contents/%s", libraryID, created[0]["id"])

	ds := waitOnState(t, func() *httptest.ResponseRecorder {
		return s.do(adminUser, http.MethodGet, datasetPath, nil, "")
	})
	if ds["state"] != "ok" {
		t.Fatalf("dataset failed: %v", ds)
	}
	if peek, _ := ds["peek"].(string); !strings.Contains(peek, "create_test") {
		t.Errorf("peek = %q", peek)
	}
	if ds["file_ext"] != "txt" || ds["data_type"] == "" {
		t.Errorf("unexpected dataset: %v", ds)
	}

	rec = s.do(anonUser, http.MethodGet, datasetPath+"/download", nil, "")
	assertStatus(t, rec, http.StatusOK)
	if rec.Body.String() != "create_test" || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("download = %q (%s)", rec.Body.String(), rec.Header().Get("Content-Type"))
	}

	rec = s.do(adminUser, http.MethodGet, "/api/libraries/"+libraryID+"/contents", nil, "")
	assertStatus(t, rec, http.StatusOK)
	listing := decode[map[string]json.RawMessage](t, rec)
	var datasets []map[string]interface{}
	json.Unmarshal(listing["datasets"], &datasets)
	if len(datasets) != 1 {
		t.Errorf("listing has %d datasets", len(datasets))
	}

	assertStatus(t, s.do(adminUser, http.MethodDelete, datasetPath, nil, ""), http.StatusOK)
	assertStatus(t, s.do(plainUser, http.MethodGet, datasetPath, nil, ""), http.StatusNotFound)
}

func TestCreateDataset_Rejected(t *testing.T) {
	s := newTestServer(t)
	library := s.newLibrary(t, "Rejects")
	path := "/api/libraries/" + library["id"].(string) + "/contents"
	root := library["root_folder_id"].(string)

	body, contentType := uploadRequest(t, root, "nonsense", "x")
	assertStatus(t, s.do(adminUser, http.MethodPost, path, body, contentType), http.StatusBadRequest)

	body, contentType = uploadRequest(t, root, "txt", strings.Repeat("x", 70<<10))
	assertStatus(t, s.do(adminUser, http.MethodPost, path, body, contentType), http.StatusBadRequest)

	rec := s.form(adminUser, http.MethodPost, path, url.Values{"create_type": {"file"}, "folder_id": {root}})
	assertStatus(t, rec, http.StatusBadRequest)

	rec = s.form(adminUser, http.MethodPost, path, url.Values{"create_type": {"link"}})
	assertStatus(t, rec, http.StatusBadRequest)

	// Pasted content is accepted without a file part
	rec = s.form(adminUser, http.MethodPost, path, url.Values{
		"create_type": {"file"},
		"file_type":   {"txt"},
		fieldURLPaste: {"pasted"},
	})
	assertStatus(t, rec, http.StatusOK)
}

func TestFolderRoutes(t *testing.T) {
	s := newTestServer(t)
	library := s.newLibrary(t, "Folders")
	libraryID := library["id"].(string)

	rec := s.json(adminUser, http.MethodPost, "/api/libraries/"+libraryID+"/contents", map[string]string{
		"create_type": "folder",
		"name":        "Data",
	})
	assertStatus(t, rec, http.StatusOK)
	folderID := decode[[]map[string]interface{}](t, rec)[0]["id"].(string)

	rec = s.json(adminUser, http.MethodPatch, "/api/folders/"+folderID, map[string]string{"description": "raw reads"})
	assertStatus(t, rec, http.StatusOK)
	got := decode[map[string]interface{}](t, rec)
	if got["name"] != "Data" || got["description"] != "raw reads" {
		t.Errorf("unexpected folder: %v", got)
	}

	assertStatus(t, s.do(plainUser, http.MethodDelete, "/api/folders/"+folderID, nil, ""), http.StatusForbidden)
	assertStatus(t, s.do(adminUser, http.MethodDelete, "/api/folders/"+folderID, nil, ""), http.StatusOK)
	assertStatus(t, s.do(plainUser, http.MethodGet, "/api/folders/"+folderID, nil, ""), http.StatusNotFound)
	assertStatus(t, s.do(adminUser, http.MethodDelete, "/api/folders/"+library["root_folder_id"].(string), nil, ""), http.StatusBadRequest)
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantExtra  string
	}{
		{"validation", &domain.ValidationError{Message: "bad"}, http.StatusBadRequest, ""},
		{"not found", fmt.Errorf("wrapped: %w", domain.ErrNotFound), http.StatusNotFound, ""},
		{"forbidden", domain.Forbidden("modify", "folder", "f1"), http.StatusForbidden, ""},
		{"unauthorized", &domain.UnauthorizedError{Message: "no"}, http.StatusUnauthorized, ""},
		{"transient", &domain.TransientStateError{DatasetID: "d1", State: "processing"}, http.StatusConflict, "state"},
		{"ingestion", &domain.IngestionError{DatasetID: "d1", Detail: "boom"}, http.StatusUnprocessableEntity, "error"},
		{"conflict", &domain.ConflictError{Message: "dup"}, http.StatusConflict, ""},
		{"unknown", io.ErrUnexpectedEOF, http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleError(rec, tt.err)
			assertStatus(t, rec, tt.wantStatus)
			if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
				t.Errorf("content type = %s", ct)
			}
			if tt.wantExtra != "" {
				body := decode[map[string]interface{}](t, rec)
				if _, ok := body[tt.wantExtra]; !ok {
					t.Errorf("missing %q in %v", tt.wantExtra, body)
				}
			}
		})
	}
}
