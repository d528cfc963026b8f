package handler

import (
	"github.com/bitfantasy/procurement/internal/reference/service"
	"github.com/bitfantasy/procurement/internal/shared/api"
	"github.com/bitfantasy/procurement/internal/shared/audit"
	"github.com/bitfantasy/procurement/internal/shared/crud"
	"github.com/gin-gonic/gin"
)

// Handlers reference data routes
type Handlers struct {
	svc *service.Services
	rec *audit.Recorder
}

func NewHandlers(svc *service.Services, rec *audit.Recorder) *Handlers {
	return &Handlers{svc: svc, rec: rec}
}

// RegisterRoutes mounts every reference resource on g.
func (h *Handlers) RegisterRoutes(g *gin.RouterGroup, authz api.Authorizer) {
	currencies := api.RegisterCRUD(g, "/currencies",
		audit.Wrap[service.CurrencyDTO](h.svc.Currency, "Currency", h.rec), authz, "currency")
	currencies.GET("/code/:code", authz.Require("currency:read"), h.currencyByCode)

	countries := api.RegisterCRUD(g, "/countries",
		audit.Wrap[service.CountryDTO](h.svc.Country, "Country", h.rec), authz, "country")
	countries.GET("/code/:code", authz.Require("country:read"), h.countryByCode)

	h.lookup(g, "/approval-statuses", h.svc.ApprovalStatus, h.svc.ApprovalStatus, "ApprovalStatus", authz, "approval_status")
	h.lookup(g, "/realization-statuses", h.svc.RealizationStatus, h.svc.RealizationStatus, "RealizationStatus", authz, "realization_status")
	h.lookup(g, "/economic-domains", h.svc.EconomicDomain, h.svc.EconomicDomain, "EconomicDomain", authz, "economic_domain")
	h.lookup(g, "/procurement-natures", h.svc.ProcurementNature, h.svc.ProcurementNature, "ProcurementNature", authz, "procurement_nature")
	h.lookup(g, "/contract-types", h.svc.ContractType, h.svc.ContractType, "ContractType", authz, "contract_type")
}

func (h *Handlers) lookup(g *gin.RouterGroup, path string, svc crud.Service[crud.LookupDTO], cat api.Categorizer,
	entity string, authz api.Authorizer, resource string) {
	api.RegisterLookup(g, path, audit.Wrap(svc, entity, h.rec), cat, authz, resource)
}

// currencyByCode GET /currencies/code/:code
func (h *Handlers) currencyByCode(c *gin.Context) {
	out, err := h.svc.Currency.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		api.RespondError(c, err)
		return
	}
	api.Success(c, out)
}

// countryByCode GET /countries/code/:code
func (h *Handlers) countryByCode(c *gin.Context) {
	out, err := h.svc.Country.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		api.RespondError(c, err)
		return
	}
	api.Success(c, out)
}
