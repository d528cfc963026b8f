package repository

import (
	"context"
	"strings"

	"github.com/bitfantasy/procurement/internal/reference/entity"
	"github.com/bitfantasy/procurement/internal/shared/crud"
	"gorm.io/gorm"
)

// Repositories reference data repositories
type Repositories struct {
	Currency          *CodedRepository[entity.Currency]
	Country           *CodedRepository[entity.Country]
	ApprovalStatus    *crud.Repository[entity.ApprovalStatus]
	RealizationStatus *crud.Repository[entity.RealizationStatus]
	EconomicDomain    *crud.Repository[entity.EconomicDomain]
	ProcurementNature *crud.Repository[entity.ProcurementNature]
	ContractType      *crud.Repository[entity.ContractType]
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Currency:          newCodedRepository[entity.Currency](db, "Currency"),
		Country:           newCodedRepository[entity.Country](db, "Country"),
		ApprovalStatus:    crud.NewRepository[entity.ApprovalStatus](db, crud.LookupOptions("ApprovalStatus")),
		RealizationStatus: crud.NewRepository[entity.RealizationStatus](db, crud.LookupOptions("RealizationStatus")),
		EconomicDomain:    crud.NewRepository[entity.EconomicDomain](db, crud.LookupOptions("EconomicDomain")),
		ProcurementNature: crud.NewRepository[entity.ProcurementNature](db, crud.LookupOptions("ProcurementNature")),
		ContractType:      crud.NewRepository[entity.ContractType](db, crud.LookupOptions("ContractType")),
	}
}

// CodedRepository designation table with a unique ISO code
type CodedRepository[E any] struct {
	*crud.Repository[E]
}

func newCodedRepository[E any](db *gorm.DB, name string) *CodedRepository[E] {
	opts := crud.LookupOptions(name)
	opts.SearchColumns = append(opts.SearchColumns, "code")
	opts.SortColumns["code"] = "code"
	return &CodedRepository[E]{Repository: crud.NewRepository[E](db, opts)}
}

// FindByCode looks a row up by its code, case-insensitively.
func (r *CodedRepository[E]) FindByCode(ctx context.Context, code string) (*E, error) {
	return r.FindOneBy(ctx, "code", strings.ToUpper(strings.TrimSpace(code)))
}
