package service

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"github.com/bitfantasy/procurement/internal/plan/entity"
	"github.com/bitfantasy/procurement/internal/plan/repository"
	refentity "github.com/bitfantasy/procurement/internal/reference/entity"
	refrepo "github.com/bitfantasy/procurement/internal/reference/repository"
	"github.com/bitfantasy/procurement/internal/shared/apperr"
	"github.com/bitfantasy/procurement/internal/shared/crud"
	"github.com/bitfantasy/procurement/internal/shared/model"
	"github.com/bitfantasy/procurement/internal/shared/validation"
	"gorm.io/gorm"
)

// PlannedItemDTO operation planned within a plan with its estimated amount.
type PlannedItemDTO struct {
	ID int64 `json:"id,omitempty"`
	model.Designation
	PlanID              int64   `json:"planId"`
	ProcurementNatureID int64   `json:"procurementNatureId"`
	EstimatedAmount     float64 `json:"estimatedAmount"`

	Plan              *PlanDTO          `json:"plan,omitempty"`
	ProcurementNature *crud.LookupDTO   `json:"procurementNature,omitempty"`
	Distributions     []DistributionDTO `json:"distributions,omitempty"`
}

func PlannedItemToDTO(e *entity.PlannedItem) PlannedItemDTO {
	return PlannedItemDTO{
		ID:                  e.ID,
		Designation:         e.Designation,
		PlanID:              e.PlanID,
		ProcurementNatureID: e.ProcurementNatureID,
		EstimatedAmount:     e.EstimatedAmount,
	}
}

func plannedItemWithRelations(e *entity.PlannedItem) PlannedItemDTO {
	dto := PlannedItemToDTO(e)
	if e.Plan != nil {
		p := PlanToDTO(e.Plan)
		dto.Plan = &p
	}
	if e.ProcurementNature != nil {
		dto.ProcurementNature = &crud.LookupDTO{ID: e.ProcurementNature.ID, Designation: e.ProcurementNature.Designation}
	}
	for i := range e.Distributions {
		dto.Distributions = append(dto.Distributions, DistributionToDTO(&e.Distributions[i]))
	}
	return dto
}

// PlannedItemService plan lines; designationFr is unique within a plan.
type PlannedItemService struct {
	crud.Base[entity.PlannedItem, PlannedItemDTO]
	repos   *repository.Repositories
	natures *crud.Repository[refentity.ProcurementNature]
}

func NewPlannedItemService(db *gorm.DB, repos *repository.Repositories, refs *refrepo.Repositories) *PlannedItemService {
	return &PlannedItemService{
		Base: crud.Base[entity.PlannedItem, PlannedItemDTO]{
			DB:                 db,
			Repo:               repos.PlannedItem,
			ToDTO:              PlannedItemToDTO,
			ToDTOWithRelations: plannedItemWithRelations,
		},
		repos:   repos,
		natures: refs.ProcurementNature,
	}
}

func (s *PlannedItemService) normalize(dto *PlannedItemDTO) error {
	dto.Designation = dto.Designation.Trimmed()
	v := validation.New()
	dto.Designation.Validate(v)
	v.RequiredID("planId", dto.PlanID)
	v.RequiredID("procurementNatureId", dto.ProcurementNatureID)
	v.NonNegative("estimatedAmount", dto.EstimatedAmount)
	return v.Err()
}

func (s *PlannedItemService) unique(ctx context.Context, dto *PlannedItemDTO, excludeID int64) error {
	exists, err := s.Repo.ExistsWhere(ctx, "plan_id = ? AND designation_fr = ? AND id <> ?",
		dto.PlanID, dto.DesignationFr, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return apperr.Conflict("PlannedItem", "designationFr", dto.DesignationFr)
	}
	return nil
}

func (s *PlannedItemService) apply(dto *PlannedItemDTO, e *entity.PlannedItem) {
	e.Designation = dto.Designation
	e.PlanID = dto.PlanID
	e.ProcurementNatureID = dto.ProcurementNatureID
	e.EstimatedAmount = dto.EstimatedAmount
}

func (s *PlannedItemService) Create(ctx context.Context, dto *PlannedItemDTO) (*PlannedItemDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out PlannedItemDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		if _, err := crud.Resolve(ctx, s.repos.Plan, "planId", dto.PlanID); err != nil {
			return err
		}
		if err := s.unique(ctx, dto, 0); err != nil {
			return err
		}
		if _, err := crud.Resolve(ctx, s.natures, "procurementNatureId", dto.ProcurementNatureID); err != nil {
			return err
		}
		e := &entity.PlannedItem{}
		s.apply(dto, e)
		if err := s.Repo.Create(ctx, e); err != nil {
			return err
		}
		out = PlannedItemToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *PlannedItemService) Update(ctx context.Context, id int64, dto *PlannedItemDTO) (*PlannedItemDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out PlannedItemDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		e, err := s.Repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if e.PlanID != dto.PlanID {
			if _, err := crud.Resolve(ctx, s.repos.Plan, "planId", dto.PlanID); err != nil {
				return err
			}
		}
		if err := s.unique(ctx, dto, id); err != nil {
			return err
		}
		if e.ProcurementNatureID != dto.ProcurementNatureID {
			if _, err := crud.Resolve(ctx, s.natures, "procurementNatureId", dto.ProcurementNatureID); err != nil {
				return err
			}
		}
		s.apply(dto, e)
		if err := s.Repo.Save(ctx, e); err != nil {
			return err
		}
		out = PlannedItemToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *PlannedItemService) Patch(ctx context.Context, id int64, patch json.RawMessage) (*PlannedItemDTO, error) {
	return s.PatchWith(ctx, id, patch, s.Update)
}

// Delete removes the item together with its distributions.
func (s *PlannedItemService) Delete(ctx context.Context, id int64) error {
	return s.Tx(ctx, func(ctx context.Context) error {
		if _, err := s.Repo.FindByID(ctx, id); err != nil {
			return err
		}
		if err := s.repos.Distribution.DeleteBy(ctx, "planned_item_id", id); err != nil {
			return err
		}
		return s.Repo.Delete(ctx, id)
	})
}

// Distributions GET /planned-items/:id/distributions
func (s *PlannedItemService) Distributions(ctx context.Context, id int64) ([]DistributionDTO, error) {
	if _, err := s.Repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	items, err := s.repos.Distribution.FindBy(ctx, "planned_item_id", id)
	if err != nil {
		return nil, err
	}
	out := make([]DistributionDTO, 0, len(items))
	for i := range items {
		out = append(out, DistributionToDTO(&items[i]))
	}
	return out, nil
}

// ItemSummary distributed amounts against the estimate of a planned item
type ItemSummary struct {
	PlannedItemID       int64   `json:"plannedItemId"`
	EstimatedAmount     float64 `json:"estimatedAmount"`
	DistributionCount   int64   `json:"distributionCount"`
	DistributedQuantity float64 `json:"distributedQuantity"`
	DistributedAmount   float64 `json:"distributedAmount"`
	RemainingAmount     float64 `json:"remainingAmount"`
	OverDistributed     bool    `json:"overDistributed"`
}

// Summary GET /planned-items/:id/summary
func (s *PlannedItemService) Summary(ctx context.Context, id int64) (*ItemSummary, error) {
	e, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	t, err := s.repos.Distribution.TotalsByItem(ctx, id)
	if err != nil {
		return nil, err
	}
	remaining := round2(e.EstimatedAmount - t.Amount)
	return &ItemSummary{
		PlannedItemID:       id,
		EstimatedAmount:     e.EstimatedAmount,
		DistributionCount:   t.Count,
		DistributedQuantity: t.Quantity,
		DistributedAmount:   round2(t.Amount),
		RemainingAmount:     remaining,
		OverDistributed:     remaining < 0,
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// DistributionDTO share of a planned item assigned to a structure.
type DistributionDTO struct {
	ID            int64   `json:"id,omitempty"`
	PlannedItemID int64   `json:"plannedItemId"`
	Structure     string  `json:"structure"`
	Quantity      float64 `json:"quantity"`
	Amount        float64 `json:"amount"`
}

func DistributionToDTO(e *entity.ItemDistribution) DistributionDTO {
	return DistributionDTO{
		ID:            e.ID,
		PlannedItemID: e.PlannedItemID,
		Structure:     e.Structure,
		Quantity:      e.Quantity,
		Amount:        e.Amount,
	}
}

// DistributionService item distributions; structure is unique within an item.
type DistributionService struct {
	crud.Base[entity.ItemDistribution, DistributionDTO]
	items *crud.Repository[entity.PlannedItem]
}

func NewDistributionService(db *gorm.DB, repos *repository.Repositories) *DistributionService {
	return &DistributionService{
		Base:  crud.Base[entity.ItemDistribution, DistributionDTO]{DB: db, Repo: repos.Distribution.Repository, ToDTO: DistributionToDTO},
		items: repos.PlannedItem,
	}
}

func (s *DistributionService) normalize(dto *DistributionDTO) error {
	dto.Structure = strings.TrimSpace(dto.Structure)
	v := validation.New()
	v.RequiredID("plannedItemId", dto.PlannedItemID)
	v.Required("structure", dto.Structure)
	v.MaxLen("structure", dto.Structure, 200)
	v.Positive("quantity", dto.Quantity)
	v.NonNegative("amount", dto.Amount)
	return v.Err()
}

func (s *DistributionService) unique(ctx context.Context, dto *DistributionDTO, excludeID int64) error {
	exists, err := s.Repo.ExistsWhere(ctx, "planned_item_id = ? AND structure = ? AND id <> ?",
		dto.PlannedItemID, dto.Structure, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return apperr.Conflict("ItemDistribution", "structure", dto.Structure)
	}
	return nil
}

func (s *DistributionService) apply(dto *DistributionDTO, e *entity.ItemDistribution) {
	e.PlannedItemID = dto.PlannedItemID
	e.Structure = dto.Structure
	e.Quantity = dto.Quantity
	e.Amount = dto.Amount
}

func (s *DistributionService) Create(ctx context.Context, dto *DistributionDTO) (*DistributionDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out DistributionDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		if _, err := crud.Resolve(ctx, s.items, "plannedItemId", dto.PlannedItemID); err != nil {
			return err
		}
		if err := s.unique(ctx, dto, 0); err != nil {
			return err
		}
		e := &entity.ItemDistribution{}
		s.apply(dto, e)
		if err := s.Repo.Create(ctx, e); err != nil {
			return err
		}
		out = DistributionToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *DistributionService) Update(ctx context.Context, id int64, dto *DistributionDTO) (*DistributionDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out DistributionDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		e, err := s.Repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if e.PlannedItemID != dto.PlannedItemID {
			if _, err := crud.Resolve(ctx, s.items, "plannedItemId", dto.PlannedItemID); err != nil {
				return err
			}
		}
		if err := s.unique(ctx, dto, id); err != nil {
			return err
		}
		s.apply(dto, e)
		if err := s.Repo.Save(ctx, e); err != nil {
			return err
		}
		out = DistributionToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *DistributionService) Patch(ctx context.Context, id int64, patch json.RawMessage) (*DistributionDTO, error) {
	return s.PatchWith(ctx, id, patch, s.Update)
}

func (s *DistributionService) Delete(ctx context.Context, id int64) error {
	return s.Tx(ctx, func(ctx context.Context) error {
		if _, err := s.Repo.FindByID(ctx, id); err != nil {
			return err
		}
		return s.Repo.Delete(ctx, id)
	})
}
