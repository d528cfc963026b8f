package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bitfantasy/procurement/internal/contract/entity"
	"github.com/bitfantasy/procurement/internal/contract/repository"
	prventity "github.com/bitfantasy/procurement/internal/provider/entity"
	prvservice "github.com/bitfantasy/procurement/internal/provider/service"
	refentity "github.com/bitfantasy/procurement/internal/reference/entity"
	refservice "github.com/bitfantasy/procurement/internal/reference/service"
	"github.com/bitfantasy/procurement/internal/shared/crud"
	"github.com/bitfantasy/procurement/internal/shared/validation"
	"gorm.io/gorm"
)

// ContractDTO awarded contract with its initial amount and dates.
type ContractDTO struct {
	ID                  int64      `json:"id,omitempty"`
	Reference           string     `json:"reference"`
	Object              string     `json:"object"`
	ProviderID          int64      `json:"providerId"`
	ConsultationID      *int64     `json:"consultationId,omitempty"`
	ContractTypeID      int64      `json:"contractTypeId"`
	ProcurementNatureID int64      `json:"procurementNatureId"`
	CurrencyID          int64      `json:"currencyId"`
	RealizationStatusID int64      `json:"realizationStatusId"`
	ApprovalStatusID    *int64     `json:"approvalStatusId,omitempty"`
	Amount              float64    `json:"amount"`
	SignatureDate       *time.Time `json:"signatureDate,omitempty"`
	StartDate           *time.Time `json:"startDate,omitempty"`
	EndDate             *time.Time `json:"endDate,omitempty"`
	CreatedAt           *time.Time `json:"createdAt,omitempty"`
	UpdatedAt           *time.Time `json:"updatedAt,omitempty"`

	Provider          *prvservice.ProviderDTO `json:"provider,omitempty"`
	Consultation      *ConsultationDTO        `json:"consultation,omitempty"`
	ContractType      *crud.LookupDTO         `json:"contractType,omitempty"`
	ProcurementNature *crud.LookupDTO         `json:"procurementNature,omitempty"`
	Currency          *refservice.CurrencyDTO `json:"currency,omitempty"`
	RealizationStatus *crud.LookupDTO         `json:"realizationStatus,omitempty"`
	ApprovalStatus    *crud.LookupDTO         `json:"approvalStatus,omitempty"`
}

func ContractToDTO(e *entity.Contract) ContractDTO {
	return ContractDTO{
		ID:                  e.ID,
		Reference:           e.Reference,
		Object:              e.Object,
		ProviderID:          e.ProviderID,
		ConsultationID:      e.ConsultationID,
		ContractTypeID:      e.ContractTypeID,
		ProcurementNatureID: e.ProcurementNatureID,
		CurrencyID:          e.CurrencyID,
		RealizationStatusID: e.RealizationStatusID,
		ApprovalStatusID:    e.ApprovalStatusID,
		Amount:              e.Amount,
		SignatureDate:       e.SignatureDate,
		StartDate:           e.StartDate,
		EndDate:             e.EndDate,
		CreatedAt:           timePtr(e.CreatedAt),
		UpdatedAt:           timePtr(e.UpdatedAt),
	}
}

func contractWithRelations(e *entity.Contract) ContractDTO {
	dto := ContractToDTO(e)
	dto.Provider = providerRef(e.Provider)
	if e.Consultation != nil {
		c := ConsultationToDTO(e.Consultation)
		dto.Consultation = &c
	}
	if e.ContractType != nil {
		dto.ContractType = lookupRef(e.ContractType.ID, e.ContractType.Designation)
	}
	if e.ProcurementNature != nil {
		dto.ProcurementNature = lookupRef(e.ProcurementNature.ID, e.ProcurementNature.Designation)
	}
	if e.Currency != nil {
		c := refservice.CurrencyToDTO(e.Currency)
		dto.Currency = &c
	}
	if e.RealizationStatus != nil {
		dto.RealizationStatus = lookupRef(e.RealizationStatus.ID, e.RealizationStatus.Designation)
	}
	if e.ApprovalStatus != nil {
		dto.ApprovalStatus = lookupRef(e.ApprovalStatus.ID, e.ApprovalStatus.Designation)
	}
	return dto
}

// ContractService awarded contracts; reference is the natural key.
type ContractService struct {
	crud.Base[entity.Contract, ContractDTO]
	repos        *repository.Repositories
	providers    *crud.Repository[prventity.Provider]
	types        *crud.Repository[refentity.ContractType]
	natures      *crud.Repository[refentity.ProcurementNature]
	currencies   *crud.Repository[refentity.Currency]
	realizations *crud.Repository[refentity.RealizationStatus]
	approvals    *crud.Repository[refentity.ApprovalStatus]
}

func NewContractService(db *gorm.DB, repos *repository.Repositories, deps Deps) *ContractService {
	return &ContractService{
		Base: crud.Base[entity.Contract, ContractDTO]{
			DB:                 db,
			Repo:               repos.Contract.Repository,
			ToDTO:              ContractToDTO,
			ToDTOWithRelations: contractWithRelations,
		},
		repos:        repos,
		providers:    deps.Providers.Provider.Repository,
		types:        deps.Refs.ContractType,
		natures:      deps.Refs.ProcurementNature,
		currencies:   deps.Refs.Currency.Repository,
		realizations: deps.Refs.RealizationStatus,
		approvals:    deps.Refs.ApprovalStatus,
	}
}

func (s *ContractService) normalize(dto *ContractDTO) error {
	dto.Reference = strings.TrimSpace(dto.Reference)
	dto.Object = strings.TrimSpace(dto.Object)
	v := validation.New()
	v.Required("reference", dto.Reference)
	v.MaxLen("reference", dto.Reference, 100)
	v.Required("object", dto.Object)
	v.MaxLen("object", dto.Object, 1000)
	v.RequiredID("providerId", dto.ProviderID)
	v.OptionalID("consultationId", dto.ConsultationID)
	v.RequiredID("contractTypeId", dto.ContractTypeID)
	v.RequiredID("procurementNatureId", dto.ProcurementNatureID)
	v.RequiredID("currencyId", dto.CurrencyID)
	v.RequiredID("realizationStatusId", dto.RealizationStatusID)
	v.OptionalID("approvalStatusId", dto.ApprovalStatusID)
	v.NonNegative("amount", dto.Amount)
	v.NotBefore("endDate", dto.EndDate, dto.StartDate)
	return v.Err()
}

func (s *ContractService) resolve(ctx context.Context, stored *entity.Contract, dto *ContractDTO) error {
	fresh := stored == nil
	if fresh || stored.ProviderID != dto.ProviderID {
		if _, err := crud.Resolve(ctx, s.providers, "providerId", dto.ProviderID); err != nil {
			return err
		}
	}
	if fresh || crud.Changed(stored.ConsultationID, dto.ConsultationID) {
		if _, err := crud.ResolveOptional(ctx, s.repos.Consultation, "consultationId", dto.ConsultationID); err != nil {
			return err
		}
	}
	if fresh || stored.ContractTypeID != dto.ContractTypeID {
		if _, err := crud.Resolve(ctx, s.types, "contractTypeId", dto.ContractTypeID); err != nil {
			return err
		}
	}
	if fresh || stored.ProcurementNatureID != dto.ProcurementNatureID {
		if _, err := crud.Resolve(ctx, s.natures, "procurementNatureId", dto.ProcurementNatureID); err != nil {
			return err
		}
	}
	if fresh || stored.CurrencyID != dto.CurrencyID {
		if _, err := crud.Resolve(ctx, s.currencies, "currencyId", dto.CurrencyID); err != nil {
			return err
		}
	}
	if fresh || stored.RealizationStatusID != dto.RealizationStatusID {
		if _, err := crud.Resolve(ctx, s.realizations, "realizationStatusId", dto.RealizationStatusID); err != nil {
			return err
		}
	}
	if fresh || crud.Changed(stored.ApprovalStatusID, dto.ApprovalStatusID) {
		if _, err := crud.ResolveOptional(ctx, s.approvals, "approvalStatusId", dto.ApprovalStatusID); err != nil {
			return err
		}
	}
	return nil
}

func (s *ContractService) apply(dto *ContractDTO, e *entity.Contract) {
	e.Reference = dto.Reference
	e.Object = dto.Object
	e.ProviderID = dto.ProviderID
	e.ConsultationID = dto.ConsultationID
	e.ContractTypeID = dto.ContractTypeID
	e.ProcurementNatureID = dto.ProcurementNatureID
	e.CurrencyID = dto.CurrencyID
	e.RealizationStatusID = dto.RealizationStatusID
	e.ApprovalStatusID = dto.ApprovalStatusID
	e.Amount = dto.Amount
	e.SignatureDate = dto.SignatureDate
	e.StartDate = dto.StartDate
	e.EndDate = dto.EndDate
}

func (s *ContractService) Create(ctx context.Context, dto *ContractDTO) (*ContractDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out ContractDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		if err := uniqueColumn(ctx, s.Repo, "reference", "reference", dto.Reference, 0); err != nil {
			return err
		}
		if err := s.resolve(ctx, nil, dto); err != nil {
			return err
		}
		e := &entity.Contract{}
		s.apply(dto, e)
		if err := s.Repo.Create(ctx, e); err != nil {
			return err
		}
		out = ContractToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ContractService) Update(ctx context.Context, id int64, dto *ContractDTO) (*ContractDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out ContractDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		e, err := s.Repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := uniqueColumn(ctx, s.Repo, "reference", "reference", dto.Reference, id); err != nil {
			return err
		}
		if err := s.resolve(ctx, e, dto); err != nil {
			return err
		}
		s.apply(dto, e)
		if err := s.Repo.Save(ctx, e); err != nil {
			return err
		}
		out = ContractToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ContractService) Patch(ctx context.Context, id int64, patch json.RawMessage) (*ContractDTO, error) {
	return s.PatchWith(ctx, id, patch, s.Update)
}

func (s *ContractService) Delete(ctx context.Context, id int64) error {
	return s.Tx(ctx, func(ctx context.Context) error {
		if _, err := s.Repo.FindByID(ctx, id); err != nil {
			return err
		}
		if err := crud.CheckGuards(ctx, s.DB, "Contract", id,
			crud.Guard{Table: "ctr_amendments", Column: "contract_id", Label: "amendments"},
		); err != nil {
			return err
		}
		return s.Repo.Delete(ctx, id)
	})
}

// Amendments GET /contracts/:id/amendments
func (s *ContractService) Amendments(ctx context.Context, id int64) ([]AmendmentDTO, error) {
	if _, err := s.Repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	items, err := s.repos.Amendment.FindBy(ctx, "contract_id", id)
	if err != nil {
		return nil, err
	}
	out := make([]AmendmentDTO, 0, len(items))
	for i := range items {
		out = append(out, AmendmentToDTO(&items[i]))
	}
	return out, nil
}

// ContractSummary a contract with the totals of its amendments
type ContractSummary struct {
	Contract        ContractDTO `json:"contract"`
	AmendmentCount  int64       `json:"amendmentCount"`
	AmendmentsTotal float64     `json:"amendmentsTotal"`
	TotalAmount     float64     `json:"totalAmount"`
}

// Summary GET /contracts/:id/summary
func (s *ContractService) Summary(ctx context.Context, id int64) (*ContractSummary, error) {
	e, err := s.Repo.FindByIDWithRelations(ctx, id)
	if err != nil {
		return nil, err
	}
	t, err := s.repos.Amendment.TotalsByContract(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ContractSummary{
		Contract:        contractWithRelations(e),
		AmendmentCount:  t.Count,
		AmendmentsTotal: t.Amount,
		TotalAmount:     e.Amount + t.Amount,
	}, nil
}

// ListForExport every contract with provider, type, currency and status loaded.
func (s *ContractService) ListForExport(ctx context.Context) ([]ContractDTO, error) {
	items, err := s.repos.Contract.ListForExport(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ContractDTO, 0, len(items))
	for i := range items {
		out = append(out, contractWithRelations(&items[i]))
	}
	return out, nil
}

// AmendmentDTO change to a contract; Amount is signed.
type AmendmentDTO struct {
	ID                  int64      `json:"id,omitempty"`
	Reference           string     `json:"reference"`
	Object              string     `json:"object"`
	ContractID          int64      `json:"contractId"`
	AmendmentTypeID     int64      `json:"amendmentTypeId"`
	RealizationStatusID int64      `json:"realizationStatusId"`
	AmendmentStepID     int64      `json:"amendmentStepId"`
	ApprovalStatusID    *int64     `json:"approvalStatusId,omitempty"`
	CurrencyID          int64      `json:"currencyId"`
	Amount              float64    `json:"amount"`
	SignatureDate       *time.Time `json:"signatureDate,omitempty"`
	CreatedAt           *time.Time `json:"createdAt,omitempty"`
	UpdatedAt           *time.Time `json:"updatedAt,omitempty"`

	Contract          *ContractDTO            `json:"contract,omitempty"`
	AmendmentType     *crud.LookupDTO         `json:"amendmentType,omitempty"`
	RealizationStatus *crud.LookupDTO         `json:"realizationStatus,omitempty"`
	AmendmentStep     *AmendmentStepDTO       `json:"amendmentStep,omitempty"`
	ApprovalStatus    *crud.LookupDTO         `json:"approvalStatus,omitempty"`
	Currency          *refservice.CurrencyDTO `json:"currency,omitempty"`
}

func AmendmentToDTO(e *entity.Amendment) AmendmentDTO {
	return AmendmentDTO{
		ID:                  e.ID,
		Reference:           e.Reference,
		Object:              e.Object,
		ContractID:          e.ContractID,
		AmendmentTypeID:     e.AmendmentTypeID,
		RealizationStatusID: e.RealizationStatusID,
		AmendmentStepID:     e.AmendmentStepID,
		ApprovalStatusID:    e.ApprovalStatusID,
		CurrencyID:          e.CurrencyID,
		Amount:              e.Amount,
		SignatureDate:       e.SignatureDate,
		CreatedAt:           timePtr(e.CreatedAt),
		UpdatedAt:           timePtr(e.UpdatedAt),
	}
}

func amendmentWithRelations(e *entity.Amendment) AmendmentDTO {
	dto := AmendmentToDTO(e)
	if e.Contract != nil {
		c := ContractToDTO(e.Contract)
		dto.Contract = &c
	}
	if e.AmendmentType != nil {
		dto.AmendmentType = lookupRef(e.AmendmentType.ID, e.AmendmentType.Designation)
	}
	if e.RealizationStatus != nil {
		dto.RealizationStatus = lookupRef(e.RealizationStatus.ID, e.RealizationStatus.Designation)
	}
	if e.AmendmentStep != nil {
		st := AmendmentStepToDTO(e.AmendmentStep)
		dto.AmendmentStep = &st
	}
	if e.ApprovalStatus != nil {
		dto.ApprovalStatus = lookupRef(e.ApprovalStatus.ID, e.ApprovalStatus.Designation)
	}
	if e.Currency != nil {
		c := refservice.CurrencyToDTO(e.Currency)
		dto.Currency = &c
	}
	return dto
}

// AmendmentService contract amendments; reference is the natural key.
type AmendmentService struct {
	crud.Base[entity.Amendment, AmendmentDTO]
	repos        *repository.Repositories
	realizations *crud.Repository[refentity.RealizationStatus]
	approvals    *crud.Repository[refentity.ApprovalStatus]
	currencies   *crud.Repository[refentity.Currency]
}

func NewAmendmentService(db *gorm.DB, repos *repository.Repositories, deps Deps) *AmendmentService {
	return &AmendmentService{
		Base: crud.Base[entity.Amendment, AmendmentDTO]{
			DB:                 db,
			Repo:               repos.Amendment.Repository,
			ToDTO:              AmendmentToDTO,
			ToDTOWithRelations: amendmentWithRelations,
		},
		repos:        repos,
		realizations: deps.Refs.RealizationStatus,
		approvals:    deps.Refs.ApprovalStatus,
		currencies:   deps.Refs.Currency.Repository,
	}
}

func (s *AmendmentService) normalize(dto *AmendmentDTO) error {
	dto.Reference = strings.TrimSpace(dto.Reference)
	dto.Object = strings.TrimSpace(dto.Object)
	v := validation.New()
	v.Required("reference", dto.Reference)
	v.MaxLen("reference", dto.Reference, 100)
	v.Required("object", dto.Object)
	v.MaxLen("object", dto.Object, 1000)
	v.RequiredID("contractId", dto.ContractID)
	v.RequiredID("amendmentTypeId", dto.AmendmentTypeID)
	v.RequiredID("realizationStatusId", dto.RealizationStatusID)
	v.RequiredID("amendmentStepId", dto.AmendmentStepID)
	v.OptionalID("approvalStatusId", dto.ApprovalStatusID)
	v.RequiredID("currencyId", dto.CurrencyID)
	return v.Err()
}

func (s *AmendmentService) resolve(ctx context.Context, stored *entity.Amendment, dto *AmendmentDTO) error {
	fresh := stored == nil
	if fresh || stored.ContractID != dto.ContractID {
		if _, err := crud.Resolve(ctx, s.repos.Contract.Repository, "contractId", dto.ContractID); err != nil {
			return err
		}
	}
	if fresh || stored.AmendmentTypeID != dto.AmendmentTypeID {
		if _, err := crud.Resolve(ctx, s.repos.AmendmentType, "amendmentTypeId", dto.AmendmentTypeID); err != nil {
			return err
		}
	}
	if fresh || stored.RealizationStatusID != dto.RealizationStatusID {
		if _, err := crud.Resolve(ctx, s.realizations, "realizationStatusId", dto.RealizationStatusID); err != nil {
			return err
		}
	}
	if fresh || stored.AmendmentStepID != dto.AmendmentStepID {
		if _, err := crud.Resolve(ctx, s.repos.AmendmentStep, "amendmentStepId", dto.AmendmentStepID); err != nil {
			return err
		}
	}
	if fresh || crud.Changed(stored.ApprovalStatusID, dto.ApprovalStatusID) {
		if _, err := crud.ResolveOptional(ctx, s.approvals, "approvalStatusId", dto.ApprovalStatusID); err != nil {
			return err
		}
	}
	if fresh || stored.CurrencyID != dto.CurrencyID {
		if _, err := crud.Resolve(ctx, s.currencies, "currencyId", dto.CurrencyID); err != nil {
			return err
		}
	}
	return nil
}

func (s *AmendmentService) apply(dto *AmendmentDTO, e *entity.Amendment) {
	e.Reference = dto.Reference
	e.Object = dto.Object
	e.ContractID = dto.ContractID
	e.AmendmentTypeID = dto.AmendmentTypeID
	e.RealizationStatusID = dto.RealizationStatusID
	e.AmendmentStepID = dto.AmendmentStepID
	e.ApprovalStatusID = dto.ApprovalStatusID
	e.CurrencyID = dto.CurrencyID
	e.Amount = dto.Amount
	e.SignatureDate = dto.SignatureDate
}

func (s *AmendmentService) Create(ctx context.Context, dto *AmendmentDTO) (*AmendmentDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out AmendmentDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		if err := uniqueColumn(ctx, s.Repo, "reference", "reference", dto.Reference, 0); err != nil {
			return err
		}
		if err := s.resolve(ctx, nil, dto); err != nil {
			return err
		}
		e := &entity.Amendment{}
		s.apply(dto, e)
		if err := s.Repo.Create(ctx, e); err != nil {
			return err
		}
		out = AmendmentToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AmendmentService) Update(ctx context.Context, id int64, dto *AmendmentDTO) (*AmendmentDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out AmendmentDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		e, err := s.Repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := uniqueColumn(ctx, s.Repo, "reference", "reference", dto.Reference, id); err != nil {
			return err
		}
		if err := s.resolve(ctx, e, dto); err != nil {
			return err
		}
		s.apply(dto, e)
		if err := s.Repo.Save(ctx, e); err != nil {
			return err
		}
		out = AmendmentToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AmendmentService) Patch(ctx context.Context, id int64, patch json.RawMessage) (*AmendmentDTO, error) {
	return s.PatchWith(ctx, id, patch, s.Update)
}

func (s *AmendmentService) Delete(ctx context.Context, id int64) error {
	return s.Tx(ctx, func(ctx context.Context) error {
		if _, err := s.Repo.FindByID(ctx, id); err != nil {
			return err
		}
		return s.Repo.Delete(ctx, id)
	})
}
