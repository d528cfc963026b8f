package service

import "github.com/bitfantasy/procurement/internal/shared/classify"

// Default keyword rules per lookup. Configuration may replace them under
// classifiers.<key>.
var (
	ApprovalStatusRules = []classify.Rule{
		{Label: "APPROVED", Keywords: []string{"approuv", "valid", "accept"}},
		{Label: "PENDING", Keywords: []string{"attente", "soumis", "instruction"}},
		{Label: "REJECTED", Keywords: []string{"rejet", "refus", "annul"}},
	}

	RealizationStatusRules = []classify.Rule{
		{Label: "PLANNING", Keywords: []string{"planification", "prevu", "programm"}},
		{Label: "IN_PROGRESS", Keywords: []string{"en cours", "execution", "realisation"}},
		{Label: "COMPLETED", Keywords: []string{"achev", "termin", "clotur", "receptionn"}},
		{Label: "SUSPENDED", Keywords: []string{"suspen", "arret"}},
	}

	EconomicDomainRules = []classify.Rule{
		{Label: "CONSTRUCTION", Keywords: []string{"batiment", "btp", "construction", "genie civil"}},
		{Label: "INDUSTRY", Keywords: []string{"industri", "fabrication", "manufactur"}},
		{Label: "TRADE", Keywords: []string{"commerce", "distribution", "negoce"}},
		{Label: "DIGITAL", Keywords: []string{"informatique", "numerique", "telecom"}},
		{Label: "SERVICES", Keywords: []string{"service", "conseil"}},
	}

	ProcurementNatureRules = []classify.Rule{
		{Label: "INFRASTRUCTURE", Keywords: []string{"infrastructure", "travaux", "construction"}},
		{Label: "SUPPLIES", Keywords: []string{"fourniture", "equipement", "materiel"}},
		{Label: "STUDIES", Keywords: []string{"etude", "assistance", "conseil"}},
		{Label: "SERVICES", Keywords: []string{"service", "prestation", "maintenance"}},
	}

	ContractTypeRules = []classify.Rule{
		{Label: "FRAMEWORK", Keywords: []string{"cadre"}},
		{Label: "ORDER", Keywords: []string{"bon de commande", "commande"}},
		{Label: "AGREEMENT", Keywords: []string{"convention", "accord"}},
		{Label: "MARKET", Keywords: []string{"marche"}},
	}
)

// Classifier keys used in configuration.
const (
	KeyApprovalStatuses    = "approval_statuses"
	KeyRealizationStatuses = "realization_statuses"
	KeyEconomicDomains     = "economic_domains"
	KeyProcurementNatures  = "procurement_natures"
	KeyContractTypes       = "contract_types"
)

// Overrides returns the configured keyword overrides of a lookup, or nil.
type Overrides func(key string) map[string][]string

func (o Overrides) Classifier(key string, rules []classify.Rule) *classify.Classifier {
	c := classify.New(rules...)
	if o == nil {
		return c
	}
	return c.WithOverrides(o(key))
}
