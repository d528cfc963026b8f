package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bitfantasy/procurement/internal/plan/entity"
	"github.com/bitfantasy/procurement/internal/plan/repository"
	refentity "github.com/bitfantasy/procurement/internal/reference/entity"
	refrepo "github.com/bitfantasy/procurement/internal/reference/repository"
	refservice "github.com/bitfantasy/procurement/internal/reference/service"
	"github.com/bitfantasy/procurement/internal/shared/apperr"
	"github.com/bitfantasy/procurement/internal/shared/crud"
	"github.com/bitfantasy/procurement/internal/shared/model"
	"github.com/bitfantasy/procurement/internal/shared/validation"
	"gorm.io/gorm"
)

// Services plan services
type Services struct {
	Budget       *BudgetService
	Plan         *PlanService
	PlannedItem  *PlannedItemService
	Distribution *DistributionService
}

func NewServices(db *gorm.DB, repos *repository.Repositories, refs *refrepo.Repositories) *Services {
	return &Services{
		Budget:       NewBudgetService(db, repos, refs),
		Plan:         NewPlanService(db, repos),
		PlannedItem:  NewPlannedItemService(db, repos, refs),
		Distribution: NewDistributionService(db, repos),
	}
}

// BudgetDTO funding line for a fiscal year.
type BudgetDTO struct {
	ID int64 `json:"id,omitempty"`
	model.Designation
	FinancialYear int                     `json:"financialYear"`
	Amount        float64                 `json:"amount"`
	CurrencyID    int64                   `json:"currencyId"`
	Currency      *refservice.CurrencyDTO `json:"currency,omitempty"`
}

func BudgetToDTO(e *entity.Budget) BudgetDTO {
	return BudgetDTO{
		ID:            e.ID,
		Designation:   e.Designation,
		FinancialYear: e.FinancialYear,
		Amount:        e.Amount,
		CurrencyID:    e.CurrencyID,
	}
}

func budgetWithRelations(e *entity.Budget) BudgetDTO {
	dto := BudgetToDTO(e)
	if e.Currency != nil {
		c := refservice.CurrencyToDTO(e.Currency)
		dto.Currency = &c
	}
	return dto
}

// BudgetService yearly budgets
type BudgetService struct {
	crud.Base[entity.Budget, BudgetDTO]
	currencies *crud.Repository[refentity.Currency]
}

func NewBudgetService(db *gorm.DB, repos *repository.Repositories, refs *refrepo.Repositories) *BudgetService {
	return &BudgetService{
		Base: crud.Base[entity.Budget, BudgetDTO]{
			DB:                 db,
			Repo:               repos.Budget,
			ToDTO:              BudgetToDTO,
			ToDTOWithRelations: budgetWithRelations,
		},
		currencies: refs.Currency.Repository,
	}
}

func (s *BudgetService) normalize(dto *BudgetDTO) error {
	dto.Designation = dto.Designation.Trimmed()
	v := validation.New()
	dto.Designation.Validate(v)
	v.Range("financialYear", dto.FinancialYear, 1900, 2100)
	v.NonNegative("amount", dto.Amount)
	v.RequiredID("currencyId", dto.CurrencyID)
	return v.Err()
}

func (s *BudgetService) apply(dto *BudgetDTO, e *entity.Budget) {
	e.Designation = dto.Designation
	e.FinancialYear = dto.FinancialYear
	e.Amount = dto.Amount
	e.CurrencyID = dto.CurrencyID
}

func (s *BudgetService) Create(ctx context.Context, dto *BudgetDTO) (*BudgetDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out BudgetDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		if err := uniqueDesignation(ctx, s.Repo, dto.DesignationFr, 0); err != nil {
			return err
		}
		if _, err := crud.Resolve(ctx, s.currencies, "currencyId", dto.CurrencyID); err != nil {
			return err
		}
		e := &entity.Budget{}
		s.apply(dto, e)
		if err := s.Repo.Create(ctx, e); err != nil {
			return err
		}
		out = BudgetToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *BudgetService) Update(ctx context.Context, id int64, dto *BudgetDTO) (*BudgetDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out BudgetDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		e, err := s.Repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := uniqueDesignation(ctx, s.Repo, dto.DesignationFr, id); err != nil {
			return err
		}
		if e.CurrencyID != dto.CurrencyID {
			if _, err := crud.Resolve(ctx, s.currencies, "currencyId", dto.CurrencyID); err != nil {
				return err
			}
		}
		s.apply(dto, e)
		if err := s.Repo.Save(ctx, e); err != nil {
			return err
		}
		out = BudgetToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *BudgetService) Patch(ctx context.Context, id int64, patch json.RawMessage) (*BudgetDTO, error) {
	return s.PatchWith(ctx, id, patch, s.Update)
}

func (s *BudgetService) Delete(ctx context.Context, id int64) error {
	return s.Tx(ctx, func(ctx context.Context) error {
		if _, err := s.Repo.FindByID(ctx, id); err != nil {
			return err
		}
		if err := crud.CheckGuards(ctx, s.DB, "Budget", id,
			crud.Guard{Table: "pln_plans", Column: "budget_id", Label: "plans"},
		); err != nil {
			return err
		}
		return s.Repo.Delete(ctx, id)
	})
}

// PlanDTO yearly procurement plan.
type PlanDTO struct {
	ID int64 `json:"id,omitempty"`
	model.Designation
	Year      int        `json:"year"`
	BudgetID  *int64     `json:"budgetId,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	Budget    *BudgetDTO `json:"budget,omitempty"`
}

func PlanToDTO(e *entity.Plan) PlanDTO {
	return PlanDTO{
		ID:          e.ID,
		Designation: e.Designation,
		Year:        e.Year,
		BudgetID:    e.BudgetID,
		CreatedAt:   timePtr(e.CreatedAt),
		UpdatedAt:   timePtr(e.UpdatedAt),
	}
}

func planWithRelations(e *entity.Plan) PlanDTO {
	dto := PlanToDTO(e)
	if e.Budget != nil {
		b := BudgetToDTO(e.Budget)
		dto.Budget = &b
	}
	return dto
}

// PlanService procurement plans
type PlanService struct {
	crud.Base[entity.Plan, PlanDTO]
	repos *repository.Repositories
}

func NewPlanService(db *gorm.DB, repos *repository.Repositories) *PlanService {
	return &PlanService{
		Base: crud.Base[entity.Plan, PlanDTO]{
			DB:                 db,
			Repo:               repos.Plan,
			ToDTO:              PlanToDTO,
			ToDTOWithRelations: planWithRelations,
		},
		repos: repos,
	}
}

func (s *PlanService) normalize(dto *PlanDTO) error {
	dto.Designation = dto.Designation.Trimmed()
	v := validation.New()
	dto.Designation.Validate(v)
	if dto.Year == 0 {
		v.Add("year", "year is required")
	}
	v.Range("year", dto.Year, 1900, 2100)
	v.OptionalID("budgetId", dto.BudgetID)
	return v.Err()
}

func (s *PlanService) apply(dto *PlanDTO, e *entity.Plan) {
	e.Designation = dto.Designation
	e.Year = dto.Year
	e.BudgetID = dto.BudgetID
}

func (s *PlanService) Create(ctx context.Context, dto *PlanDTO) (*PlanDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out PlanDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		if err := uniqueDesignation(ctx, s.Repo, dto.DesignationFr, 0); err != nil {
			return err
		}
		if _, err := crud.ResolveOptional(ctx, s.repos.Budget, "budgetId", dto.BudgetID); err != nil {
			return err
		}
		e := &entity.Plan{}
		s.apply(dto, e)
		if err := s.Repo.Create(ctx, e); err != nil {
			return err
		}
		out = PlanToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *PlanService) Update(ctx context.Context, id int64, dto *PlanDTO) (*PlanDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out PlanDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		e, err := s.Repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := uniqueDesignation(ctx, s.Repo, dto.DesignationFr, id); err != nil {
			return err
		}
		if crud.Changed(e.BudgetID, dto.BudgetID) {
			if _, err := crud.ResolveOptional(ctx, s.repos.Budget, "budgetId", dto.BudgetID); err != nil {
				return err
			}
		}
		s.apply(dto, e)
		if err := s.Repo.Save(ctx, e); err != nil {
			return err
		}
		out = PlanToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *PlanService) Patch(ctx context.Context, id int64, patch json.RawMessage) (*PlanDTO, error) {
	return s.PatchWith(ctx, id, patch, s.Update)
}

func (s *PlanService) Delete(ctx context.Context, id int64) error {
	return s.Tx(ctx, func(ctx context.Context) error {
		if _, err := s.Repo.FindByID(ctx, id); err != nil {
			return err
		}
		if err := crud.CheckGuards(ctx, s.DB, "Plan", id,
			crud.Guard{Table: "pln_planned_items", Column: "plan_id", Label: "planned items"},
			crud.Guard{Table: "ctr_consultations", Column: "plan_id", Label: "consultations"},
		); err != nil {
			return err
		}
		return s.Repo.Delete(ctx, id)
	})
}

// Items GET /plans/:id/items
func (s *PlanService) Items(ctx context.Context, id int64) ([]PlannedItemDTO, error) {
	if _, err := s.Repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	items, err := s.repos.PlannedItem.FindBy(ctx, "plan_id", id)
	if err != nil {
		return nil, err
	}
	out := make([]PlannedItemDTO, 0, len(items))
	for i := range items {
		out = append(out, PlannedItemToDTO(&items[i]))
	}
	return out, nil
}

func uniqueDesignation[E any](ctx context.Context, repo *crud.Repository[E], designationFr string, excludeID int64) error {
	exists, err := repo.ExistsExcluding(ctx, "designation_fr", designationFr, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return apperr.Conflict(repo.Name(), "designationFr", designationFr)
	}
	return nil
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
