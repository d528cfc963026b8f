package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bitfantasy/procurement/internal/document/repository"
	"github.com/bitfantasy/procurement/internal/document/service"
	"github.com/bitfantasy/procurement/internal/shared/blob"
	"github.com/bitfantasy/procurement/internal/testutil"
	"github.com/gin-gonic/gin"
)

func setupDocumentTest(t *testing.T) *gin.Engine {
	t.Helper()
	db := testutil.SetupTestDB(t)
	svc := service.NewServices(db, repository.NewRepositories(db), blob.NewLocalStore(t.TempDir()), 1<<20, nil)

	router := testutil.SetupRouter()
	NewHandlers(svc, nil).RegisterRoutes(testutil.AuthGroup(router, "/api/v1"), testutil.Authorizer())
	return router
}

func uploadFile(t *testing.T, router *gin.Engine, token, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	io.Copy(part, strings.NewReader(content))
	writer.Close()

	req, _ := http.NewRequest("POST", "/api/v1/files", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUploadAndDownload(t *testing.T) {
	router := setupDocumentTest(t)
	token := testutil.DefaultTestToken()

	w := uploadFile(t, router, token, "cahier des charges.txt", "article 1")
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var meta map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &meta)
	if meta["originalName"] != "cahier des charges.txt" || meta["extension"] != "txt" {
		t.Errorf("Unexpected metadata: %v", meta)
	}
	if meta["uploadedBy"] != "admin" {
		t.Errorf("Expected uploader admin, got %v", meta["uploadedBy"])
	}
	if _, ok := meta["path"]; ok {
		t.Errorf("Storage path must not be exposed: %v", meta)
	}
	id := testutil.ID(meta)

	w = testutil.DoRequest(router, "GET", fmt.Sprintf("/api/v1/files/%d/content", id), nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != "article 1" {
		t.Errorf("Unexpected content %q", w.Body.String())
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "cahier%20des%20charges.txt") {
		t.Errorf("Unexpected Content-Disposition %q", cd)
	}

	w = testutil.DoRequest(router, "POST", "/api/v1/files", map[string]string{"originalName": "x"}, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without multipart file, got %d", w.Code)
	}

	w = testutil.DoRequest(router, "DELETE", fmt.Sprintf("/api/v1/files/%d", id), nil, token)
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", w.Code)
	}
	w = testutil.DoRequest(router, "GET", fmt.Sprintf("/api/v1/files/%d/content", id), nil, token)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", w.Code)
	}
}

func TestDocumentTypesByScope(t *testing.T) {
	router := setupDocumentTest(t)
	token := testutil.DefaultTestToken()

	for _, dt := range []map[string]interface{}{
		{"designationFr": "Facture", "scope": 1},
		{"designationFr": "Bon de livraison", "scope": 1},
		{"designationFr": "Facture", "scope": 2},
	} {
		w := testutil.DoRequest(router, "POST", "/api/v1/document-types", dt, token)
		if w.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
		}
	}

	w := testutil.DoRequest(router, "GET", "/api/v1/document-types/scope/1", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var rows []map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &rows)
	if len(rows) != 2 {
		t.Errorf("Expected 2 types in scope 1, got %v", rows)
	}

	w = testutil.DoRequest(router, "GET", "/api/v1/document-types/scope/-1", nil, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a negative scope, got %d", w.Code)
	}
}
