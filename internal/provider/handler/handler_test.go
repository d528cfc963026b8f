package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"testing"

	"github.com/bitfantasy/procurement/internal/provider/repository"
	"github.com/bitfantasy/procurement/internal/provider/service"
	refentity "github.com/bitfantasy/procurement/internal/reference/entity"
	refrepo "github.com/bitfantasy/procurement/internal/reference/repository"
	"github.com/bitfantasy/procurement/internal/shared/model"
	"github.com/bitfantasy/procurement/internal/shared/report"
	"github.com/bitfantasy/procurement/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

func setupProviderTest(t *testing.T) *gin.Engine {
	t.Helper()
	db := testutil.SetupTestDB(t)
	testutil.Seed(t, db,
		&refentity.EconomicDomain{Lookup: model.Lookup{Designation: model.Designation{DesignationFr: "Bâtiment"}}},
	)
	svc := service.NewServices(db, repository.NewRepositories(db), refrepo.NewRepositories(db))

	router := testutil.SetupRouter()
	NewHandlers(svc, nil).RegisterRoutes(testutil.AuthGroup(router, "/api/v1"), testutil.Authorizer())
	return router
}

func createProvider(t *testing.T, router *gin.Engine, token, name string) int64 {
	t.Helper()
	w := testutil.DoRequest(router, "POST", "/api/v1/providers", map[string]interface{}{
		"designationFr":     name,
		"acronym":           "BS",
		"economicDomainIds": []int64{1},
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	return testutil.ID(testutil.ParseResponse(w))
}

func TestProviderExclusionRoutes(t *testing.T) {
	router := setupProviderTest(t)
	token := testutil.DefaultTestToken()
	id := createProvider(t, router, token, "SARL Bati Sud")

	w := testutil.DoRequest(router, "POST", "/api/v1/provider-exclusions", map[string]interface{}{
		"providerId": id,
		"reason":     "Retard d'exécution",
		"startDate":  "2024-03-01T00:00:00Z",
		"endDate":    "2024-03-31T00:00:00Z",
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(router, "GET", fmt.Sprintf("/api/v1/providers/%d/excluded?at=2024-03-31", id), nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if st := testutil.ParseResponse(w); st["excluded"] != true || st["at"] != "2024-03-31" {
		t.Errorf("Expected provider excluded on the last day, got %v", st)
	}

	w = testutil.DoRequest(router, "GET", fmt.Sprintf("/api/v1/providers/%d/excluded?at=2024-04-01", id), nil, token)
	if st := testutil.ParseResponse(w); st["excluded"] != false {
		t.Errorf("Expected provider cleared after the period, got %v", st)
	}

	w = testutil.DoRequest(router, "GET", fmt.Sprintf("/api/v1/providers/%d/excluded?at=31/03/2024", id), nil, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a malformed date, got %d", w.Code)
	}

	w = testutil.DoRequest(router, "GET", fmt.Sprintf("/api/v1/providers/%d/exclusions", id), nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	w = testutil.DoRequest(router, "DELETE", fmt.Sprintf("/api/v1/providers/%d", id), nil, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected provider delete to be refused while exclusions exist, got %d", w.Code)
	}
	if body := testutil.ParseResponse(w); body["errorCode"] != "DEPENDENTS_EXIST" {
		t.Errorf("Expected DEPENDENTS_EXIST, got %v", body["errorCode"])
	}
}

func TestProviderExport(t *testing.T) {
	router := setupProviderTest(t)
	token := testutil.DefaultTestToken()
	createProvider(t, router, token, "SARL Bati Sud")

	w := testutil.DoRequest(router, "GET", "/api/v1/providers/export", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != report.ContentType {
		t.Errorf("Unexpected Content-Type %q", ct)
	}

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("Failed to open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Fournisseurs")
	if err != nil {
		t.Fatalf("Failed to read rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected header and one provider, got %d rows", len(rows))
	}
	if rows[1][1] != "SARL Bati Sud" || rows[1][5] != "Bâtiment" {
		t.Errorf("Unexpected provider row: %v", rows[1])
	}
}
