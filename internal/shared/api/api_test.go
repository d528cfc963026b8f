package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bitfantasy/procurement/internal/shared/apperr"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(t *testing.T, method, target, body string, h gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	r := gin.New()
	r.Handle(method, "/test/:id", h)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var out ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   apperr.Kind
	}{
		{"not found", apperr.NotFound("Currency", 9), http.StatusNotFound, apperr.KindNotFound},
		{"conflict", apperr.Conflict("Currency", "code", "EUR"), http.StatusBadRequest, apperr.KindConflict},
		{"wrapped", fmt.Errorf("update: %w", apperr.DependentsExist("Plan", 1, "planned items", 2)), http.StatusBadRequest, apperr.KindDependentsExist},
		{"unauthorized", apperr.Unauthorized("token expired"), http.StatusUnauthorized, apperr.KindUnauthorized},
		{"forbidden", apperr.Forbidden("permission denied"), http.StatusForbidden, apperr.KindForbidden},
		{"foreign", errors.New("pq: connection reset"), http.StatusInternalServerError, apperr.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, http.MethodGet, "/test/1", "", func(c *gin.Context) { RespondError(c, tt.err) })
			assert.Equal(t, tt.status, w.Code)
			body := decode(t, w)
			assert.Equal(t, string(tt.code), body.ErrorCode)
			assert.Equal(t, "/test/1", body.Path)
			assert.Len(t, body.Timestamp, len(TimestampLayout))
		})
	}
}

func TestRespondErrorDetails(t *testing.T) {
	w := serve(t, http.MethodGet, "/test/1", "", func(c *gin.Context) {
		RespondError(c, apperr.Conflict("Currency", "code", "EUR"))
	})
	body := decode(t, w)
	assert.Equal(t, "Currency", body.Details["entity"])
	assert.Equal(t, "code", body.Details["field"])
	assert.Equal(t, "EUR", body.Details["value"])

	w = serve(t, http.MethodGet, "/test/1", "", func(c *gin.Context) {
		RespondError(c, errors.New("secret database detail"))
	})
	assert.NotContains(t, w.Body.String(), "secret database detail")
}

func TestParseID(t *testing.T) {
	for _, target := range []string{"/test/abc", "/test/0", "/test/-4"} {
		w := serve(t, http.MethodGet, target, "", func(c *gin.Context) {
			if _, err := ParseID(c, "id"); err != nil {
				RespondError(c, err)
				return
			}
			c.Status(http.StatusOK)
		})
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
		assert.Contains(t, decode(t, w).Details["fieldErrors"], "id")
	}
}

func TestGetPageable(t *testing.T) {
	var got struct {
		Page, Size      int
		SortBy, SortDir string
		Relations       bool
	}
	serve(t, http.MethodGet, "/test/1?page=2&size=500&sortBy=designationFr&sortDir=DESC&withRelations=true", "", func(c *gin.Context) {
		p := GetPageable(c)
		got.Page, got.Size, got.SortBy, got.SortDir = p.Page, p.Size, p.SortBy, p.SortDir
		got.Relations = WantRelations(c)
	})
	assert.Equal(t, 2, got.Page)
	assert.Equal(t, 100, got.Size)
	assert.Equal(t, "designationFr", got.SortBy)
	assert.Equal(t, "desc", got.SortDir)
	assert.True(t, got.Relations)
}

func TestBindJSONUsesJSONFieldNames(t *testing.T) {
	type request struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
		Username     string `json:"username" binding:"max=3"`
	}
	w := serve(t, http.MethodPost, "/test/1", `{"username":"toolong"}`, func(c *gin.Context) {
		var req request
		if err := BindJSON(c, &req); err != nil {
			RespondError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	fields, _ := decode(t, w).Details["fieldErrors"].(map[string]any)
	assert.Equal(t, "refreshToken is required", fields["refreshToken"])
	assert.Equal(t, "username must be at most 3 characters", fields["username"])

	w = serve(t, http.MethodPost, "/test/1", `{"refreshToken":12}`, func(c *gin.Context) {
		var req request
		RespondError(c, BindJSON(c, &req))
	})
	fields, _ = decode(t, w).Details["fieldErrors"].(map[string]any)
	assert.Contains(t, fields, "refreshToken")
}

func TestNilAuthorizerPassesThrough(t *testing.T) {
	var authz Authorizer
	w := serve(t, http.MethodGet, "/test/1", "", func(c *gin.Context) {
		authz.Require("contract:read")(c)
		if !c.IsAborted() {
			c.Status(http.StatusNoContent)
		}
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
}
