package api

import (
	"github.com/bitfantasy/procurement/internal/shared/crud"
	"github.com/gin-gonic/gin"
)

// Authorizer builds the middleware guarding a permission, e.g. "contract:read".
type Authorizer func(permission string) gin.HandlerFunc

// Require returns the guard for permission, or a pass-through when authz is nil.
func (authz Authorizer) Require(permission string) gin.HandlerFunc {
	if authz == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return authz(permission)
}

// CRUDHandler exposes a crud.Service over HTTP.
type CRUDHandler[D any] struct {
	svc crud.Service[D]
}

func NewCRUDHandler[D any](svc crud.Service[D]) *CRUDHandler[D] {
	return &CRUDHandler[D]{svc: svc}
}

// Create POST /resource
func (h *CRUDHandler[D]) Create(c *gin.Context) {
	var dto D
	if err := BindJSON(c, &dto); err != nil {
		RespondError(c, err)
		return
	}
	out, err := h.svc.Create(c.Request.Context(), &dto)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, out)
}

// Get GET /resource/:id
func (h *CRUDHandler[D]) Get(c *gin.Context) {
	id, err := ParseID(c, "id")
	if err != nil {
		RespondError(c, err)
		return
	}
	var out *D
	if WantRelations(c) {
		out, err = h.svc.GetWithRelations(c.Request.Context(), id)
	} else {
		out, err = h.svc.Get(c.Request.Context(), id)
	}
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, out)
}

// List GET /resource
func (h *CRUDHandler[D]) List(c *gin.Context) {
	page, err := h.svc.List(c.Request.Context(), GetPageable(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, page)
}

// Search GET /resource/search?query=
func (h *CRUDHandler[D]) Search(c *gin.Context) {
	page, err := h.svc.Search(c.Request.Context(), c.Query("query"), GetPageable(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, page)
}

// Update PUT /resource/:id
func (h *CRUDHandler[D]) Update(c *gin.Context) {
	id, err := ParseID(c, "id")
	if err != nil {
		RespondError(c, err)
		return
	}
	var dto D
	if err := BindJSON(c, &dto); err != nil {
		RespondError(c, err)
		return
	}
	out, err := h.svc.Update(c.Request.Context(), id, &dto)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, out)
}

// Patch PATCH /resource/:id
func (h *CRUDHandler[D]) Patch(c *gin.Context) {
	id, err := ParseID(c, "id")
	if err != nil {
		RespondError(c, err)
		return
	}
	raw, err := c.GetRawData()
	if err != nil {
		RespondError(c, bindingError(err))
		return
	}
	out, err := h.svc.Patch(c.Request.Context(), id, raw)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, out)
}

// Delete DELETE /resource/:id
func (h *CRUDHandler[D]) Delete(c *gin.Context) {
	id, err := ParseID(c, "id")
	if err != nil {
		RespondError(c, err)
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		RespondError(c, err)
		return
	}
	NoContent(c)
}

// RegisterCRUD mounts the standard surface of resource under path and returns
// the group so callers can add resource specific routes.
func RegisterCRUD[D any](g *gin.RouterGroup, path string, svc crud.Service[D], authz Authorizer, resource string) *gin.RouterGroup {
	h := NewCRUDHandler(svc)
	rg := g.Group(path)
	rg.POST("", authz.Require(resource+":create"), h.Create)
	rg.GET("", authz.Require(resource+":read"), h.List)
	rg.GET("/search", authz.Require(resource+":read"), h.Search)
	rg.GET("/:id", authz.Require(resource+":read"), h.Get)
	rg.PUT("/:id", authz.Require(resource+":update"), h.Update)
	rg.PATCH("/:id", authz.Require(resource+":update"), h.Patch)
	rg.DELETE("/:id", authz.Require(resource+":delete"), h.Delete)
	return rg
}
