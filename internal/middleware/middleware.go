package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bitfantasy/procurement/internal/shared/api"
	"github.com/bitfantasy/procurement/internal/shared/apperr"
	"github.com/bitfantasy/procurement/internal/shared/audit"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Token types carried in the "type" claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// AdminRole bypasses role checks.
const AdminRole = "ADMIN"

// Logger request logging middleware
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.String("user-agent", c.Request.UserAgent()),
			zap.Duration("latency", latency),
			zap.String("request_id", c.GetString(api.KeyRequestID)),
		}

		if username := c.GetString(api.KeyUsername); username != "" {
			fields = append(fields, zap.String("user", username))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		if status >= 500 {
			logger.Error("Server error", fields...)
		} else if status >= 400 {
			logger.Warn("Client error", fields...)
		} else {
			logger.Info("Request", fields...)
		}
	}
}

// CORS cross-origin middleware
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, Accept, Origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, Content-Disposition")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestID assigns every request an id, echoed in X-Request-ID and carried in the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.Request.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(api.KeyRequestID, requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)
		c.Request = c.Request.WithContext(audit.WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

// JWTClaims access and refresh token claims; the subject is the username.
type JWTClaims struct {
	UserID      int64    `json:"uid"`
	Name        string   `json:"name,omitempty"`
	Email       string   `json:"email,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"perms,omitempty"`
	Type        string   `json:"type"`
	jwt.RegisteredClaims
}

// ParseToken verifies signature and expiry of tokenString and returns its claims.
func ParseToken(tokenString, secret string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// JWTAuth bearer access token authentication
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenString string
		if parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			tokenString = strings.TrimSpace(parts[1])
		}

		if tokenString == "" {
			api.Abort(c, http.StatusUnauthorized, apperr.KindUnauthorized, "authorization is required", nil)
			return
		}

		claims, err := ParseToken(tokenString, secret)
		if err != nil {
			api.Abort(c, http.StatusUnauthorized, apperr.KindUnauthorized, "invalid or expired token", nil)
			return
		}
		if claims.Type != TokenTypeAccess {
			api.Abort(c, http.StatusUnauthorized, apperr.KindUnauthorized, "access token required", nil)
			return
		}

		c.Set(api.KeyUserID, claims.UserID)
		c.Set(api.KeyUsername, claims.Subject)
		c.Set(api.KeyRoles, claims.Roles)
		c.Set(api.KeyPermissions, claims.Permissions)
		c.Set("claims", claims)
		c.Request = c.Request.WithContext(audit.WithActor(c.Request.Context(), claims.Subject))
		c.Next()
	}
}

// PermissionMatches reports whether granted covers required. Granted may be
// "*", "*:*" or "resource:*".
func PermissionMatches(granted, required string) bool {
	if granted == required || granted == "*" || granted == "*:*" {
		return true
	}
	gRes, gAct, ok := strings.Cut(granted, ":")
	if !ok {
		return false
	}
	rRes, rAct, ok := strings.Cut(required, ":")
	if !ok {
		return false
	}
	return (gRes == "*" || gRes == rRes) && (gAct == "*" || gAct == rAct)
}

// HasPermission reports whether any of perms covers required.
func HasPermission(perms []string, required string) bool {
	for _, p := range perms {
		if PermissionMatches(p, required) {
			return true
		}
	}
	return false
}

// RequirePermission permission check middleware
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		perms := c.GetStringSlice(api.KeyPermissions)
		if !HasPermission(perms, permission) {
			api.Abort(c, http.StatusForbidden, apperr.KindForbidden, "permission denied: "+permission, nil)
			return
		}
		c.Next()
	}
}

// RequireRole role check middleware; ADMIN passes every role check.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, r := range c.GetStringSlice(api.KeyRoles) {
			if r == role || r == AdminRole {
				c.Next()
				return
			}
		}
		api.Abort(c, http.StatusForbidden, apperr.KindForbidden, "role required: "+role, nil)
	}
}

// RequireSelfOrPermission lets a user act on their own record (path parameter
// param equal to their id) and everyone else only with permission.
func RequireSelfOrPermission(param, permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, err := strconv.ParseInt(c.Param(param), 10, 64); err == nil && id == c.GetInt64(api.KeyUserID) && id > 0 {
			c.Next()
			return
		}
		if HasPermission(c.GetStringSlice(api.KeyPermissions), permission) {
			c.Next()
			return
		}
		api.Abort(c, http.StatusForbidden, apperr.KindForbidden, "permission denied: "+permission, nil)
	}
}
