// Package api holds the HTTP boundary shared by every module: envelopes,
// request parsing, error translation and the generic CRUD handler.
package api

import (
	"net/http"
	"time"

	"github.com/bitfantasy/procurement/internal/shared/apperr"
	"github.com/gin-gonic/gin"
)

// TimestampLayout is the fixed pattern used for timestamps in error envelopes.
const TimestampLayout = "2006-01-02T15:04:05"

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	ErrorCode string         `json:"errorCode"`
	Message   string         `json:"message"`
	Path      string         `json:"path"`
	Timestamp string         `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// RespondError is the single place translating errors into HTTP responses.
// Internal errors are attached to the gin context for the request logger and
// answered with a generic message.
func RespondError(c *gin.Context, err error) {
	e, ok := apperr.As(err)
	if !ok || e.Kind == apperr.KindInternal {
		_ = c.Error(err)
		Abort(c, http.StatusInternalServerError, apperr.KindInternal, "an unexpected error occurred", nil)
		return
	}
	_ = c.Error(err).SetType(gin.ErrorTypePublic)
	Abort(c, apperr.Status(err), e.Kind, e.Message, details(e))
}

func details(e *apperr.Error) map[string]any {
	if len(e.Fields) > 0 {
		return map[string]any{"fieldErrors": e.Fields}
	}
	if e.Field == "" && e.Entity == "" {
		return nil
	}
	d := map[string]any{}
	if e.Entity != "" {
		d["entity"] = e.Entity
	}
	if e.Field != "" {
		d["field"] = e.Field
	}
	if e.Value != nil {
		d["value"] = e.Value
	}
	return d
}

// Abort writes an error envelope and stops the handler chain.
func Abort(c *gin.Context, status int, kind apperr.Kind, message string, details map[string]any) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		ErrorCode: string(kind),
		Message:   message,
		Path:      c.Request.URL.Path,
		Timestamp: time.Now().Format(TimestampLayout),
		Details:   details,
	})
}
