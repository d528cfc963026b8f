package handler

import (
	"strings"
	"time"

	"github.com/bitfantasy/procurement/internal/provider/service"
	"github.com/bitfantasy/procurement/internal/shared/api"
	"github.com/bitfantasy/procurement/internal/shared/apperr"
	"github.com/bitfantasy/procurement/internal/shared/audit"
	"github.com/bitfantasy/procurement/internal/shared/report"
	"github.com/gin-gonic/gin"
)

// Handlers provider routes
type Handlers struct {
	svc *service.Services
	rec *audit.Recorder
}

func NewHandlers(svc *service.Services, rec *audit.Recorder) *Handlers {
	return &Handlers{svc: svc, rec: rec}
}

// RegisterRoutes mounts providers and their owned children on g.
func (h *Handlers) RegisterRoutes(g *gin.RouterGroup, authz api.Authorizer) {
	providers := api.RegisterCRUD(g, "/providers",
		audit.Wrap[service.ProviderDTO](h.svc.Provider, "Provider", h.rec), authz, "provider")
	providers.GET("/export", authz.Require("provider:read"), h.Export)
	providers.GET("/:id/exclusions", authz.Require("provider:read"), h.Exclusions)
	providers.GET("/:id/representators", authz.Require("provider:read"), h.Representators)
	providers.GET("/:id/clearances", authz.Require("provider:read"), h.Clearances)
	providers.GET("/:id/excluded", authz.Require("provider:read"), h.Excluded)

	api.RegisterCRUD(g, "/provider-exclusions",
		audit.Wrap[service.ExclusionDTO](h.svc.Exclusion, "ProviderExclusion", h.rec), authz, "provider_exclusion")
	api.RegisterCRUD(g, "/provider-representators",
		audit.Wrap[service.RepresentatorDTO](h.svc.Representator, "ProviderRepresentator", h.rec), authz, "provider_representator")
	api.RegisterCRUD(g, "/clearances",
		audit.Wrap[service.ClearanceDTO](h.svc.Clearance, "Clearance", h.rec), authz, "clearance")
}

// Exclusions GET /providers/:id/exclusions
func (h *Handlers) Exclusions(c *gin.Context) {
	id, err := api.ParseID(c, "id")
	if err != nil {
		api.RespondError(c, err)
		return
	}
	out, err := h.svc.Provider.Exclusions(c.Request.Context(), id)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	api.Success(c, out)
}

// Representators GET /providers/:id/representators
func (h *Handlers) Representators(c *gin.Context) {
	id, err := api.ParseID(c, "id")
	if err != nil {
		api.RespondError(c, err)
		return
	}
	out, err := h.svc.Provider.Representators(c.Request.Context(), id)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	api.Success(c, out)
}

// Clearances GET /providers/:id/clearances
func (h *Handlers) Clearances(c *gin.Context) {
	id, err := api.ParseID(c, "id")
	if err != nil {
		api.RespondError(c, err)
		return
	}
	out, err := h.svc.Provider.Clearances(c.Request.Context(), id)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	api.Success(c, out)
}

// Excluded GET /providers/:id/excluded?at=2024-01-31 (defaults to today)
func (h *Handlers) Excluded(c *gin.Context) {
	id, err := api.ParseID(c, "id")
	if err != nil {
		api.RespondError(c, err)
		return
	}
	at := time.Now()
	if raw := strings.TrimSpace(c.Query("at")); raw != "" {
		at, err = time.Parse(service.DateLayout, raw)
		if err != nil {
			api.RespondError(c, apperr.Validation(map[string]string{"at": "at must be a date formatted YYYY-MM-DD"}))
			return
		}
	}
	out, err := h.svc.Provider.ExclusionAt(c.Request.Context(), id, at)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	api.Success(c, out)
}

// Export GET /providers/export
func (h *Handlers) Export(c *gin.Context) {
	items, err := h.svc.Provider.ListForExport(c.Request.Context())
	if err != nil {
		api.RespondError(c, err)
		return
	}

	columns := []report.Column{
		{Header: "ID", Width: 8},
		{Header: "Désignation (FR)", Width: 36},
		{Header: "Designation (EN)", Width: 30},
		{Header: "Sigle", Width: 12},
		{Header: "Pays", Width: 18},
		{Header: "Domaines", Width: 40},
		{Header: "Téléphone"},
		{Header: "Email", Width: 28},
		{Header: "Site web", Width: 28},
	}
	rows := make([][]any, 0, len(items))
	for _, p := range items {
		country := ""
		if p.Country != nil {
			country = p.Country.DesignationFr
		}
		domains := make([]string, 0, len(p.EconomicDomains))
		for _, d := range p.EconomicDomains {
			domains = append(domains, d.DesignationFr)
		}
		rows = append(rows, []any{
			p.ID, p.DesignationFr, p.DesignationEn, p.Acronym, country,
			strings.Join(domains, ", "), p.Phone, p.Email, p.Website,
		})
	}

	f, err := report.Build("Fournisseurs", columns, rows)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	if err := report.Send(c, "providers_"+time.Now().Format("20060102")+".xlsx", f); err != nil {
		_ = c.Error(err)
	}
}
