package handler

import (
	"time"

	"github.com/bitfantasy/procurement/internal/contract/service"
	"github.com/bitfantasy/procurement/internal/shared/api"
	"github.com/bitfantasy/procurement/internal/shared/audit"
	"github.com/bitfantasy/procurement/internal/shared/crud"
	"github.com/bitfantasy/procurement/internal/shared/report"
	"github.com/gin-gonic/gin"
)

// Handlers contract routes
type Handlers struct {
	svc *service.Services
	rec *audit.Recorder
}

func NewHandlers(svc *service.Services, rec *audit.Recorder) *Handlers {
	return &Handlers{svc: svc, rec: rec}
}

// RegisterRoutes mounts amendment lookups, consultations, submissions,
// contracts and amendments on g.
func (h *Handlers) RegisterRoutes(g *gin.RouterGroup, authz api.Authorizer) {
	api.RegisterLookup(g, "/amendment-types",
		audit.Wrap[crud.LookupDTO](h.svc.AmendmentType, "AmendmentType", h.rec), h.svc.AmendmentType, authz, "amendment_type")
	phases := api.RegisterLookup(g, "/amendment-phases",
		audit.Wrap[crud.LookupDTO](h.svc.AmendmentPhase, "AmendmentPhase", h.rec), h.svc.AmendmentPhase, authz, "amendment_phase")
	phases.GET("/:id/steps", authz.Require("amendment_phase:read"), h.PhaseSteps)

	api.RegisterCRUD(g, "/amendment-steps",
		audit.Wrap[service.AmendmentStepDTO](h.svc.AmendmentStep, "AmendmentStep", h.rec), authz, "amendment_step")

	consultations := api.RegisterCRUD(g, "/consultations",
		audit.Wrap[service.ConsultationDTO](h.svc.Consultation, "Consultation", h.rec), authz, "consultation")
	consultations.GET("/:id/submissions", authz.Require("consultation:read"), h.ConsultationSubmissions)

	api.RegisterCRUD(g, "/submissions",
		audit.Wrap[service.SubmissionDTO](h.svc.Submission, "Submission", h.rec), authz, "submission")

	contracts := api.RegisterCRUD(g, "/contracts",
		audit.Wrap[service.ContractDTO](h.svc.Contract, "Contract", h.rec), authz, "contract")
	contracts.GET("/export", authz.Require("contract:read"), h.Export)
	contracts.GET("/:id/amendments", authz.Require("contract:read"), h.ContractAmendments)
	contracts.GET("/:id/summary", authz.Require("contract:read"), h.ContractSummary)

	api.RegisterCRUD(g, "/amendments",
		audit.Wrap[service.AmendmentDTO](h.svc.Amendment, "Amendment", h.rec), authz, "amendment")
}

// PhaseSteps GET /amendment-phases/:id/steps
func (h *Handlers) PhaseSteps(c *gin.Context) {
	id, err := api.ParseID(c, "id")
	if err != nil {
		api.RespondError(c, err)
		return
	}
	out, err := h.svc.AmendmentStep.ByPhase(c.Request.Context(), id)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	api.Success(c, out)
}

// ConsultationSubmissions GET /consultations/:id/submissions
func (h *Handlers) ConsultationSubmissions(c *gin.Context) {
	id, err := api.ParseID(c, "id")
	if err != nil {
		api.RespondError(c, err)
		return
	}
	out, err := h.svc.Consultation.Submissions(c.Request.Context(), id)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	api.Success(c, out)
}

// ContractAmendments GET /contracts/:id/amendments
func (h *Handlers) ContractAmendments(c *gin.Context) {
	id, err := api.ParseID(c, "id")
	if err != nil {
		api.RespondError(c, err)
		return
	}
	out, err := h.svc.Contract.Amendments(c.Request.Context(), id)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	api.Success(c, out)
}

// ContractSummary GET /contracts/:id/summary
func (h *Handlers) ContractSummary(c *gin.Context) {
	id, err := api.ParseID(c, "id")
	if err != nil {
		api.RespondError(c, err)
		return
	}
	out, err := h.svc.Contract.Summary(c.Request.Context(), id)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	api.Success(c, out)
}

// Export GET /contracts/export
func (h *Handlers) Export(c *gin.Context) {
	items, err := h.svc.Contract.ListForExport(c.Request.Context())
	if err != nil {
		api.RespondError(c, err)
		return
	}

	columns := []report.Column{
		{Header: "ID", Width: 8},
		{Header: "Référence", Width: 20},
		{Header: "Objet", Width: 48},
		{Header: "Fournisseur", Width: 32},
		{Header: "Type", Width: 20},
		{Header: "Montant", Width: 16},
		{Header: "Devise", Width: 8},
		{Header: "Statut", Width: 18},
		{Header: "Date de signature", Width: 16},
		{Header: "Début"},
		{Header: "Fin"},
	}
	rows := make([][]any, 0, len(items))
	for _, ct := range items {
		var provider, kind, currency, status string
		if ct.Provider != nil {
			provider = ct.Provider.DesignationFr
		}
		if ct.ContractType != nil {
			kind = ct.ContractType.DesignationFr
		}
		if ct.Currency != nil {
			currency = ct.Currency.Code
		}
		if ct.RealizationStatus != nil {
			status = ct.RealizationStatus.DesignationFr
		}
		rows = append(rows, []any{
			ct.ID, ct.Reference, ct.Object, provider, kind, ct.Amount, currency, status,
			day(ct.SignatureDate), day(ct.StartDate), day(ct.EndDate),
		})
	}

	f, err := report.Build("Contrats", columns, rows)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	if err := report.Send(c, "contracts_"+time.Now().Format("20060102")+".xlsx", f); err != nil {
		_ = c.Error(err)
	}
}

func day(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
