package repository

import (
	"context"

	"github.com/bitfantasy/procurement/internal/contract/entity"
	"github.com/bitfantasy/procurement/internal/shared/crud"
	"gorm.io/gorm"
)

// Repositories contract repositories
type Repositories struct {
	AmendmentType  *crud.Repository[entity.AmendmentType]
	AmendmentPhase *crud.Repository[entity.AmendmentPhase]
	AmendmentStep  *crud.Repository[entity.AmendmentStep]
	Consultation   *crud.Repository[entity.Consultation]
	Submission     *crud.Repository[entity.Submission]
	Contract       *ContractRepository
	Amendment      *AmendmentRepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	dated := map[string]string{
		"reference": "reference",
		"amount":    "amount",
		"createdAt": "created_at",
	}
	with := func(extra map[string]string) map[string]string {
		out := make(map[string]string, len(dated)+len(extra))
		for k, v := range dated {
			out[k] = v
		}
		for k, v := range extra {
			out[k] = v
		}
		return out
	}

	return &Repositories{
		AmendmentType:  crud.NewRepository[entity.AmendmentType](db, crud.LookupOptions("AmendmentType")),
		AmendmentPhase: crud.NewRepository[entity.AmendmentPhase](db, crud.LookupOptions("AmendmentPhase")),
		AmendmentStep: crud.NewRepository[entity.AmendmentStep](db, crud.Options{
			Name:          "AmendmentStep",
			SearchColumns: []string{"designation_fr", "designation_en", "designation_ar"},
			SortColumns:   map[string]string{"designationFr": "designation_fr", "designationEn": "designation_en", "phaseId": "phase_id"},
			DefaultSort:   "designation_fr",
			Preloads:      []string{"Phase"},
		}),
		Consultation: crud.NewRepository[entity.Consultation](db, crud.Options{
			Name:          "Consultation",
			SearchColumns: []string{"reference", "object"},
			SortColumns: map[string]string{
				"reference":       "reference",
				"estimatedAmount": "estimated_amount",
				"publicationDate": "publication_date",
				"deadlineDate":    "deadline_date",
				"createdAt":       "created_at",
			},
			DefaultSort: "reference",
			Preloads:    []string{"ProcurementNature", "ApprovalStatus", "Plan"},
		}),
		Submission: crud.NewRepository[entity.Submission](db, crud.Options{
			Name:          "Submission",
			SearchColumns: []string{"CAST(amount AS TEXT)"},
			SortColumns:   map[string]string{"amount": "amount", "submissionDate": "submission_date"},
			DefaultSort:   "submission_date",
			Preloads:      []string{"Consultation", "Provider", "Currency"},
		}),
		Contract: &ContractRepository{Repository: crud.NewRepository[entity.Contract](db, crud.Options{
			Name:          "Contract",
			SearchColumns: []string{"reference", "object"},
			SortColumns:   with(map[string]string{"signatureDate": "signature_date", "startDate": "start_date", "endDate": "end_date"}),
			DefaultSort:   "reference",
			Preloads: []string{
				"Provider", "Consultation", "ContractType", "ProcurementNature",
				"Currency", "RealizationStatus", "ApprovalStatus",
			},
		})},
		Amendment: &AmendmentRepository{Repository: crud.NewRepository[entity.Amendment](db, crud.Options{
			Name:          "Amendment",
			SearchColumns: []string{"reference", "object"},
			SortColumns:   with(map[string]string{"signatureDate": "signature_date"}),
			DefaultSort:   "reference",
			Preloads: []string{
				"Contract", "AmendmentType", "RealizationStatus",
				"AmendmentStep", "ApprovalStatus", "Currency",
			},
		})},
	}
}

// ContractRepository contracts
type ContractRepository struct {
	*crud.Repository[entity.Contract]
}

// ListForExport loads every contract with the relations shown in exports.
func (r *ContractRepository) ListForExport(ctx context.Context) ([]entity.Contract, error) {
	var items []entity.Contract
	err := r.Conn(ctx).
		Preload("Provider").
		Preload("ContractType").
		Preload("Currency").
		Preload("RealizationStatus").
		Order("reference ASC").
		Find(&items).Error
	return items, err
}

// AmendmentRepository amendments
type AmendmentRepository struct {
	*crud.Repository[entity.Amendment]
}

// AmendmentTotals count and amount sum of the amendments of one contract
type AmendmentTotals struct {
	Count  int64
	Amount float64
}

// TotalsByContract aggregates the amendments of contract id.
func (r *AmendmentRepository) TotalsByContract(ctx context.Context, contractID int64) (*AmendmentTotals, error) {
	var t AmendmentTotals
	err := r.Conn(ctx).
		Model(&entity.Amendment{}).
		Select("COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Where("contract_id = ?", contractID).
		Scan(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}
