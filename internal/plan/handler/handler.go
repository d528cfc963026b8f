package handler

import (
	"github.com/bitfantasy/procurement/internal/plan/service"
	"github.com/bitfantasy/procurement/internal/shared/api"
	"github.com/bitfantasy/procurement/internal/shared/audit"
	"github.com/gin-gonic/gin"
)

// Handlers plan routes
type Handlers struct {
	svc *service.Services
	rec *audit.Recorder
}

func NewHandlers(svc *service.Services, rec *audit.Recorder) *Handlers {
	return &Handlers{svc: svc, rec: rec}
}

// RegisterRoutes mounts budgets, plans, planned items and distributions on g.
func (h *Handlers) RegisterRoutes(g *gin.RouterGroup, authz api.Authorizer) {
	api.RegisterCRUD(g, "/budgets", audit.Wrap[service.BudgetDTO](h.svc.Budget, "Budget", h.rec), authz, "budget")

	plans := api.RegisterCRUD(g, "/plans", audit.Wrap[service.PlanDTO](h.svc.Plan, "Plan", h.rec), authz, "plan")
	plans.GET("/:id/items", authz.Require("plan:read"), h.PlanItems)

	items := api.RegisterCRUD(g, "/planned-items",
		audit.Wrap[service.PlannedItemDTO](h.svc.PlannedItem, "PlannedItem", h.rec), authz, "planned_item")
	items.GET("/:id/distributions", authz.Require("planned_item:read"), h.ItemDistributions)
	items.GET("/:id/summary", authz.Require("planned_item:read"), h.ItemSummary)

	api.RegisterCRUD(g, "/item-distributions",
		audit.Wrap[service.DistributionDTO](h.svc.Distribution, "ItemDistribution", h.rec), authz, "item_distribution")
}

// PlanItems GET /plans/:id/items
func (h *Handlers) PlanItems(c *gin.Context) {
	id, err := api.ParseID(c, "id")
	if err != nil {
		api.RespondError(c, err)
		return
	}
	out, err := h.svc.Plan.Items(c.Request.Context(), id)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	api.Success(c, out)
}

// ItemDistributions GET /planned-items/:id/distributions
func (h *Handlers) ItemDistributions(c *gin.Context) {
	id, err := api.ParseID(c, "id")
	if err != nil {
		api.RespondError(c, err)
		return
	}
	out, err := h.svc.PlannedItem.Distributions(c.Request.Context(), id)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	api.Success(c, out)
}

// ItemSummary GET /planned-items/:id/summary
func (h *Handlers) ItemSummary(c *gin.Context) {
	id, err := api.ParseID(c, "id")
	if err != nil {
		api.RespondError(c, err)
		return
	}
	out, err := h.svc.PlannedItem.Summary(c.Request.Context(), id)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	api.Success(c, out)
}
