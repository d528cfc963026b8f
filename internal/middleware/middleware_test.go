package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bitfantasy/procurement/internal/shared/api"
	"github.com/bitfantasy/procurement/internal/shared/audit"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "middleware-test-secret"

func signToken(t *testing.T, claims JWTClaims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func accessClaims(perms ...string) JWTClaims {
	now := time.Now()
	return JWTClaims{
		UserID:      7,
		Roles:       []string{"BUYER"},
		Permissions: perms,
		Type:        TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	return r
}

func do(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.ErrorCode
}

func TestPermissionMatches(t *testing.T) {
	cases := []struct {
		granted, required string
		want              bool
	}{
		{"contract:read", "contract:read", true},
		{"*", "contract:delete", true},
		{"*:*", "provider:update", true},
		{"contract:*", "contract:update", true},
		{"*:read", "plan:read", true},
		{"contract:*", "provider:read", false},
		{"contract:read", "contract:update", false},
		{"contract", "contract:read", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, PermissionMatches(tc.granted, tc.required), "%s vs %s", tc.granted, tc.required)
	}
}

func TestJWTAuth(t *testing.T) {
	r := newRouter(JWTAuth(testSecret))
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user":  api.GetUsername(c),
			"id":    api.GetUserID(c),
			"actor": audit.ActorFromContext(c.Request.Context()),
		})
	})

	t.Run("missing token", func(t *testing.T) {
		w := do(r, http.MethodGet, "/me", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "UNAUTHORIZED", errorCode(t, w))
	})

	t.Run("wrong secret", func(t *testing.T) {
		w := do(r, http.MethodGet, "/me", signToken(t, accessClaims(), "other"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("expired", func(t *testing.T) {
		claims := accessClaims()
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		w := do(r, http.MethodGet, "/me", signToken(t, claims, testSecret))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("refresh token rejected", func(t *testing.T) {
		claims := accessClaims()
		claims.Type = TokenTypeRefresh
		w := do(r, http.MethodGet, "/me", signToken(t, claims, testSecret))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid", func(t *testing.T) {
		w := do(r, http.MethodGet, "/me", signToken(t, accessClaims(), testSecret))
		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "alice", body["user"])
		assert.EqualValues(t, 7, body["id"])
		assert.Equal(t, "alice", body["actor"])
	})
}

func TestRequirePermission(t *testing.T) {
	r := newRouter(JWTAuth(testSecret))
	r.DELETE("/contracts/1", RequirePermission("contract:delete"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := do(r, http.MethodDelete, "/contracts/1", signToken(t, accessClaims("contract:read"), testSecret))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, w))

	w = do(r, http.MethodDelete, "/contracts/1", signToken(t, accessClaims("contract:*"), testSecret))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequireRole(t *testing.T) {
	r := newRouter(JWTAuth(testSecret))
	r.GET("/admin", RequireRole("AUDITOR"), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := do(r, http.MethodGet, "/admin", signToken(t, accessClaims(), testSecret))
	assert.Equal(t, http.StatusForbidden, w.Code)

	claims := accessClaims()
	claims.Roles = []string{AdminRole}
	w = do(r, http.MethodGet, "/admin", signToken(t, claims, testSecret))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireSelfOrPermission(t *testing.T) {
	r := newRouter(JWTAuth(testSecret))
	r.GET("/users/:id", RequireSelfOrPermission("id", "user:read"), func(c *gin.Context) { c.Status(http.StatusOK) })

	token := signToken(t, accessClaims(), testSecret)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/users/7", token).Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/users/8", token).Code)

	token = signToken(t, accessClaims("user:read"), testSecret)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/users/8", token).Code)
}

func TestRequestID(t *testing.T) {
	r := newRouter(RequestID())
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, audit.RequestIDFromContext(c.Request.Context()))
	})

	w := do(r, http.MethodGet, "/ping", "")
	generated := w.Header().Get("X-Request-ID")
	assert.NotEmpty(t, generated)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "abc-123", w.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter(CORS())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := do(r, http.MethodOptions, "/x", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	r := newRouter(RateLimit(0.001, 2))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/x", "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/x", "").Code)
	w := do(r, http.MethodGet, "/x", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", errorCode(t, w))
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}
