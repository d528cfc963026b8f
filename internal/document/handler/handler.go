package handler

import (
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bitfantasy/procurement/internal/document/service"
	"github.com/bitfantasy/procurement/internal/shared/api"
	"github.com/bitfantasy/procurement/internal/shared/apperr"
	"github.com/bitfantasy/procurement/internal/shared/audit"
	"github.com/gin-gonic/gin"
)

// Handlers document routes
type Handlers struct {
	svc *service.Services
	rec *audit.Recorder
}

func NewHandlers(svc *service.Services, rec *audit.Recorder) *Handlers {
	return &Handlers{svc: svc, rec: rec}
}

// RegisterRoutes mounts document types, files and mails on g.
func (h *Handlers) RegisterRoutes(g *gin.RouterGroup, authz api.Authorizer) {
	types := api.RegisterCRUD(g, "/document-types",
		audit.Wrap[service.DocumentTypeDTO](h.svc.DocumentType, "DocumentType", h.rec), authz, "document_type")
	types.GET("/scope/:scope", authz.Require("document_type:read"), h.TypesByScope)

	files := api.NewCRUDHandler(audit.Wrap[service.FileDTO](h.svc.File, "File", h.rec))
	fg := g.Group("/files")
	fg.POST("", authz.Require("file:create"), h.Upload)
	fg.GET("", authz.Require("file:read"), files.List)
	fg.GET("/search", authz.Require("file:read"), files.Search)
	fg.GET("/:id", authz.Require("file:read"), files.Get)
	fg.GET("/:id/content", authz.Require("file:read"), h.Content)
	fg.PUT("/:id", authz.Require("file:update"), files.Update)
	fg.PATCH("/:id", authz.Require("file:update"), files.Patch)
	fg.DELETE("/:id", authz.Require("file:delete"), files.Delete)

	api.RegisterCRUD(g, "/mails", audit.Wrap[service.MailDTO](h.svc.Mail, "Mail", h.rec), authz, "mail")
}

// TypesByScope GET /document-types/scope/:scope
func (h *Handlers) TypesByScope(c *gin.Context) {
	scope, err := strconv.Atoi(c.Param("scope"))
	if err != nil || scope < 0 {
		api.RespondError(c, apperr.Validation(map[string]string{"scope": "scope must be a non-negative integer"}))
		return
	}
	out, err := h.svc.DocumentType.ByScope(c.Request.Context(), scope)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	api.Success(c, out)
}

// Upload POST /files (multipart field "file")
func (h *Handlers) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		api.RespondError(c, apperr.Validation(map[string]string{"file": "multipart field file is required"}))
		return
	}
	start := time.Now()
	out, err := h.upload(c, fh)
	h.rec.Record(c.Request.Context(), audit.Entry{
		EntityName: "File",
		Action:     audit.ActionUpload,
		Method:     "Upload",
		Parameters: map[string]any{"name": fh.Filename, "size": fh.Size},
		After:      out,
	}, start, err)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	api.Created(c, out)
}

func (h *Handlers) upload(c *gin.Context, fh *multipart.FileHeader) (*service.FileDTO, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return h.svc.File.Upload(c.Request.Context(), service.Upload{
		Name:        fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Content:     f,
	})
}

// Content GET /files/:id/content
func (h *Handlers) Content(c *gin.Context) {
	id, err := api.ParseID(c, "id")
	if err != nil {
		api.RespondError(c, err)
		return
	}
	meta, rc, err := h.svc.File.Open(c.Request.Context(), id)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(meta.OriginalName))
	c.Header("Content-Type", meta.FileType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		_ = c.Error(err)
	}
}
