package handler

import (
	"strings"
	"time"

	"github.com/bitfantasy/procurement/internal/middleware"
	"github.com/bitfantasy/procurement/internal/security/service"
	"github.com/bitfantasy/procurement/internal/shared/api"
	"github.com/bitfantasy/procurement/internal/shared/apperr"
	"github.com/bitfantasy/procurement/internal/shared/audit"
	"github.com/gin-gonic/gin"
)

// Handlers security routes
type Handlers struct {
	svc *service.Services
	rec *audit.Recorder
}

func NewHandlers(svc *service.Services, rec *audit.Recorder) *Handlers {
	return &Handlers{svc: svc, rec: rec}
}

// RegisterPublic mounts the unauthenticated token endpoints.
func (h *Handlers) RegisterPublic(g *gin.RouterGroup) {
	auth := g.Group("/auth")
	auth.POST("/login", h.Login)
	auth.POST("/refresh", h.Refresh)
}

// RegisterRoutes mounts account administration and the audit trail on g.
func (h *Handlers) RegisterRoutes(g *gin.RouterGroup, authz api.Authorizer) {
	g.GET("/auth/me", h.Me)

	api.RegisterCRUD(g, "/authorities",
		audit.Wrap[service.AuthorityDTO](h.svc.Authority, "Authority", h.rec), authz, "authority")
	api.RegisterCRUD(g, "/permissions",
		audit.Wrap[service.PermissionDTO](h.svc.Permission, "Permission", h.rec), authz, "permission")
	api.RegisterCRUD(g, "/roles",
		audit.Wrap[service.RoleDTO](h.svc.Role, "Role", h.rec), authz, "role")
	api.RegisterCRUD(g, "/groups",
		audit.Wrap[service.GroupDTO](h.svc.Group, "Group", h.rec), authz, "group")

	users := api.RegisterCRUD(g, "/users",
		audit.Wrap[service.UserDTO](h.svc.User, "User", h.rec, audit.Redact("password")), authz, "user")
	users.GET("/:id/permissions", selfOr(authz, "user:read"), h.UserPermissions)
	users.PUT("/:id/password", selfOr(authz, "user:update"), h.ChangePassword)

	logs := g.Group("/audit-logs")
	logs.GET("", authz.Require("audit:read"), h.AuditLogs)
	logs.GET("/search", authz.Require("audit:read"), h.SearchAuditLogs)
	logs.GET("/:id", authz.Require("audit:read"), h.AuditLog)
	logs.GET("/entity/:name/:id", authz.Require("audit:read"), h.EntityHistory)
	logs.GET("/actor/:actor", authz.Require("audit:read"), h.ActorHistory)
}

// selfOr lets users reach their own :id route; others need permission.
func selfOr(authz api.Authorizer, permission string) gin.HandlerFunc {
	if authz == nil {
		return authz.Require(permission)
	}
	return middleware.RequireSelfOrPermission("id", permission)
}

// Login POST /auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := api.BindJSON(c, &req); err != nil {
		api.RespondError(c, err)
		return
	}
	out, err := h.svc.Auth.Login(c.Request.Context(), &req)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	api.Success(c, out)
}

// Refresh POST /auth/refresh
func (h *Handlers) Refresh(c *gin.Context) {
	var req service.RefreshRequest
	if err := api.BindJSON(c, &req); err != nil {
		api.RespondError(c, err)
		return
	}
	out, err := h.svc.Auth.Refresh(c.Request.Context(), &req)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	api.Success(c, out)
}

// Me GET /auth/me
func (h *Handlers) Me(c *gin.Context) {
	userID := api.GetUserID(c)
	if userID == 0 {
		api.RespondError(c, apperr.Unauthorized("authentication required"))
		return
	}
	out, err := h.svc.Auth.Me(c.Request.Context(), userID)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	api.Success(c, out)
}

// UserPermissions GET /users/:id/permissions
func (h *Handlers) UserPermissions(c *gin.Context) {
	id, err := api.ParseID(c, "id")
	if err != nil {
		api.RespondError(c, err)
		return
	}
	out, err := h.svc.User.EffectivePermissions(c.Request.Context(), id)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	api.Success(c, out)
}

// ChangePassword PUT /users/:id/password. Users changing their own password
// must confirm the current one.
func (h *Handlers) ChangePassword(c *gin.Context) {
	id, err := api.ParseID(c, "id")
	if err != nil {
		api.RespondError(c, err)
		return
	}
	var req service.PasswordChange
	if err := api.BindJSON(c, &req); err != nil {
		api.RespondError(c, err)
		return
	}
	self := id == api.GetUserID(c)
	start := time.Now()
	err = h.svc.User.ChangePassword(c.Request.Context(), id, &req, self)
	h.rec.Record(c.Request.Context(), audit.Entry{
		EntityName: "User",
		EntityID:   &id,
		Action:     audit.ActionPassword,
		Method:     "ChangePassword",
		Parameters: map[string]any{"self": self},
	}, start, err)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	api.NoContent(c)
}

// AuditLogs GET /audit-logs, newest first unless sortBy is given
func (h *Handlers) AuditLogs(c *gin.Context) {
	p := api.GetPageable(c)
	if strings.TrimSpace(c.Query("sortBy")) == "" {
		p.SortDir = "desc"
	}
	out, err := h.svc.Audit.List(c.Request.Context(), p)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	api.Success(c, out)
}

// SearchAuditLogs GET /audit-logs/search?query=
func (h *Handlers) SearchAuditLogs(c *gin.Context) {
	out, err := h.svc.Audit.Search(c.Request.Context(), c.Query("query"), api.GetPageable(c))
	if err != nil {
		api.RespondError(c, err)
		return
	}
	api.Success(c, out)
}

// AuditLog GET /audit-logs/:id
func (h *Handlers) AuditLog(c *gin.Context) {
	id, err := api.ParseID(c, "id")
	if err != nil {
		api.RespondError(c, err)
		return
	}
	out, err := h.svc.Audit.Get(c.Request.Context(), id)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	api.Success(c, out)
}

// EntityHistory GET /audit-logs/entity/:name/:id
func (h *Handlers) EntityHistory(c *gin.Context) {
	id, err := api.ParseID(c, "id")
	if err != nil {
		api.RespondError(c, err)
		return
	}
	out, err := h.svc.Audit.ByEntity(c.Request.Context(), c.Param("name"), id, api.GetPageable(c))
	if err != nil {
		api.RespondError(c, err)
		return
	}
	api.Success(c, out)
}

// ActorHistory GET /audit-logs/actor/:actor
func (h *Handlers) ActorHistory(c *gin.Context) {
	out, err := h.svc.Audit.ByActor(c.Request.Context(), c.Param("actor"), api.GetPageable(c))
	if err != nil {
		api.RespondError(c, err)
		return
	}
	api.Success(c, out)
}
