package api

import (
	"context"

	"github.com/bitfantasy/procurement/internal/shared/crud"
	"github.com/gin-gonic/gin"
)

// Categorizer is the keyword category surface of a lookup service.
type Categorizer interface {
	Categories(ctx context.Context) (map[string][]crud.LookupDTO, error)
	ByCategory(ctx context.Context, label string) ([]crud.LookupDTO, error)
}

// RegisterLookup mounts the CRUD surface of a lookup table plus
// GET /path/categories and GET /path/categories/:label.
func RegisterLookup(g *gin.RouterGroup, path string, svc crud.Service[crud.LookupDTO], cat Categorizer, authz Authorizer, resource string) *gin.RouterGroup {
	rg := RegisterCRUD(g, path, svc, authz, resource)
	rg.GET("/categories", authz.Require(resource+":read"), func(c *gin.Context) {
		out, err := cat.Categories(c.Request.Context())
		if err != nil {
			RespondError(c, err)
			return
		}
		Success(c, out)
	})
	rg.GET("/categories/:label", authz.Require(resource+":read"), func(c *gin.Context) {
		out, err := cat.ByCategory(c.Request.Context(), c.Param("label"))
		if err != nil {
			RespondError(c, err)
			return
		}
		Success(c, out)
	})
	return rg
}
