package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bitfantasy/procurement/internal/provider/entity"
	"github.com/bitfantasy/procurement/internal/provider/repository"
	"github.com/bitfantasy/procurement/internal/shared/apperr"
	"github.com/bitfantasy/procurement/internal/shared/crud"
	"github.com/bitfantasy/procurement/internal/shared/validation"
	"gorm.io/gorm"
)

// ExclusionDTO period during which a provider may not take part in consultations.
type ExclusionDTO struct {
	ID         int64        `json:"id,omitempty"`
	ProviderID int64        `json:"providerId"`
	Reason     string       `json:"reason"`
	StartDate  *time.Time   `json:"startDate,omitempty"`
	EndDate    *time.Time   `json:"endDate,omitempty"`
	Provider   *ProviderDTO `json:"provider,omitempty"`
}

func ExclusionToDTO(e *entity.ProviderExclusion) ExclusionDTO {
	return ExclusionDTO{
		ID:         e.ID,
		ProviderID: e.ProviderID,
		Reason:     e.Reason,
		StartDate:  timePtr(e.StartDate),
		EndDate:    e.EndDate,
	}
}

func exclusionWithRelations(e *entity.ProviderExclusion) ExclusionDTO {
	dto := ExclusionToDTO(e)
	dto.Provider = providerRef(e.Provider)
	return dto
}

func providerRef(p *entity.Provider) *ProviderDTO {
	if p == nil {
		return nil
	}
	dto := ProviderToDTO(p)
	return &dto
}

// ExclusionService provider exclusion periods
type ExclusionService struct {
	crud.Base[entity.ProviderExclusion, ExclusionDTO]
	providers *repository.ProviderRepository
}

func NewExclusionService(db *gorm.DB, repos *repository.Repositories) *ExclusionService {
	return &ExclusionService{
		Base: crud.Base[entity.ProviderExclusion, ExclusionDTO]{
			DB:                 db,
			Repo:               repos.Exclusion,
			ToDTO:              ExclusionToDTO,
			ToDTOWithRelations: exclusionWithRelations,
		},
		providers: repos.Provider,
	}
}

func (s *ExclusionService) normalize(dto *ExclusionDTO) error {
	dto.Reason = strings.TrimSpace(dto.Reason)
	v := validation.New()
	v.RequiredID("providerId", dto.ProviderID)
	v.Required("reason", dto.Reason)
	v.MaxLen("reason", dto.Reason, 500)
	v.RequiredTime("startDate", dto.StartDate)
	v.NotBefore("endDate", dto.EndDate, dto.StartDate)
	return v.Err()
}

func (s *ExclusionService) apply(dto *ExclusionDTO, e *entity.ProviderExclusion) {
	e.ProviderID = dto.ProviderID
	e.Reason = dto.Reason
	e.StartDate = *dto.StartDate
	e.EndDate = dto.EndDate
}

func (s *ExclusionService) Create(ctx context.Context, dto *ExclusionDTO) (*ExclusionDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out ExclusionDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		if _, err := crud.Resolve(ctx, s.providers.Repository, "providerId", dto.ProviderID); err != nil {
			return err
		}
		e := &entity.ProviderExclusion{}
		s.apply(dto, e)
		if err := s.Repo.Create(ctx, e); err != nil {
			return err
		}
		out = ExclusionToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ExclusionService) Update(ctx context.Context, id int64, dto *ExclusionDTO) (*ExclusionDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out ExclusionDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		e, err := s.Repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if e.ProviderID != dto.ProviderID {
			if _, err := crud.Resolve(ctx, s.providers.Repository, "providerId", dto.ProviderID); err != nil {
				return err
			}
		}
		s.apply(dto, e)
		if err := s.Repo.Save(ctx, e); err != nil {
			return err
		}
		out = ExclusionToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ExclusionService) Patch(ctx context.Context, id int64, patch json.RawMessage) (*ExclusionDTO, error) {
	return s.PatchWith(ctx, id, patch, s.Update)
}

func (s *ExclusionService) Delete(ctx context.Context, id int64) error {
	return s.Tx(ctx, func(ctx context.Context) error {
		if _, err := s.Repo.FindByID(ctx, id); err != nil {
			return err
		}
		return s.Repo.Delete(ctx, id)
	})
}

// RepresentatorDTO contact person acting for a provider.
type RepresentatorDTO struct {
	ID         int64        `json:"id,omitempty"`
	ProviderID int64        `json:"providerId"`
	FirstName  string       `json:"firstName,omitempty"`
	LastName   string       `json:"lastName"`
	Function   string       `json:"function,omitempty"`
	Phone      string       `json:"phone,omitempty"`
	Email      string       `json:"email,omitempty"`
	Provider   *ProviderDTO `json:"provider,omitempty"`
}

func RepresentatorToDTO(e *entity.ProviderRepresentator) RepresentatorDTO {
	return RepresentatorDTO{
		ID:         e.ID,
		ProviderID: e.ProviderID,
		FirstName:  e.FirstName,
		LastName:   e.LastName,
		Function:   e.Function,
		Phone:      e.Phone,
		Email:      e.Email,
	}
}

// RepresentatorService provider contact persons
type RepresentatorService struct {
	crud.Base[entity.ProviderRepresentator, RepresentatorDTO]
	providers *repository.ProviderRepository
}

func NewRepresentatorService(db *gorm.DB, repos *repository.Repositories) *RepresentatorService {
	return &RepresentatorService{
		Base: crud.Base[entity.ProviderRepresentator, RepresentatorDTO]{
			DB:    db,
			Repo:  repos.Representator,
			ToDTO: RepresentatorToDTO,
			ToDTOWithRelations: func(e *entity.ProviderRepresentator) RepresentatorDTO {
				dto := RepresentatorToDTO(e)
				dto.Provider = providerRef(e.Provider)
				return dto
			},
		},
		providers: repos.Provider,
	}
}

func (s *RepresentatorService) normalize(dto *RepresentatorDTO) error {
	dto.FirstName = strings.TrimSpace(dto.FirstName)
	dto.LastName = strings.TrimSpace(dto.LastName)
	dto.Email = strings.TrimSpace(dto.Email)
	v := validation.New()
	v.RequiredID("providerId", dto.ProviderID)
	v.Required("lastName", dto.LastName)
	v.MaxLen("lastName", dto.LastName, 100)
	v.MaxLen("firstName", dto.FirstName, 100)
	v.MaxLen("function", dto.Function, 100)
	v.MaxLen("phone", dto.Phone, 30)
	v.Email("email", dto.Email)
	return v.Err()
}

func (s *RepresentatorService) apply(dto *RepresentatorDTO, e *entity.ProviderRepresentator) {
	e.ProviderID = dto.ProviderID
	e.FirstName = dto.FirstName
	e.LastName = dto.LastName
	e.Function = dto.Function
	e.Phone = dto.Phone
	e.Email = dto.Email
}

func (s *RepresentatorService) Create(ctx context.Context, dto *RepresentatorDTO) (*RepresentatorDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out RepresentatorDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		if _, err := crud.Resolve(ctx, s.providers.Repository, "providerId", dto.ProviderID); err != nil {
			return err
		}
		e := &entity.ProviderRepresentator{}
		s.apply(dto, e)
		if err := s.Repo.Create(ctx, e); err != nil {
			return err
		}
		out = RepresentatorToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *RepresentatorService) Update(ctx context.Context, id int64, dto *RepresentatorDTO) (*RepresentatorDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out RepresentatorDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		e, err := s.Repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if e.ProviderID != dto.ProviderID {
			if _, err := crud.Resolve(ctx, s.providers.Repository, "providerId", dto.ProviderID); err != nil {
				return err
			}
		}
		s.apply(dto, e)
		if err := s.Repo.Save(ctx, e); err != nil {
			return err
		}
		out = RepresentatorToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *RepresentatorService) Patch(ctx context.Context, id int64, patch json.RawMessage) (*RepresentatorDTO, error) {
	return s.PatchWith(ctx, id, patch, s.Update)
}

func (s *RepresentatorService) Delete(ctx context.Context, id int64) error {
	return s.Tx(ctx, func(ctx context.Context) error {
		if _, err := s.Repo.FindByID(ctx, id); err != nil {
			return err
		}
		return s.Repo.Delete(ctx, id)
	})
}

// ClearanceDTO tax or social clearance certificate held by a provider.
type ClearanceDTO struct {
	ID         int64        `json:"id,omitempty"`
	ProviderID int64        `json:"providerId"`
	Reference  string       `json:"reference"`
	Issuer     string       `json:"issuer,omitempty"`
	IssueDate  *time.Time   `json:"issueDate,omitempty"`
	ExpiryDate *time.Time   `json:"expiryDate,omitempty"`
	Provider   *ProviderDTO `json:"provider,omitempty"`
}

func ClearanceToDTO(e *entity.Clearance) ClearanceDTO {
	return ClearanceDTO{
		ID:         e.ID,
		ProviderID: e.ProviderID,
		Reference:  e.Reference,
		Issuer:     e.Issuer,
		IssueDate:  timePtr(e.IssueDate),
		ExpiryDate: e.ExpiryDate,
	}
}

// ClearanceService clearance certificates; reference is unique.
type ClearanceService struct {
	crud.Base[entity.Clearance, ClearanceDTO]
	providers *repository.ProviderRepository
}

func NewClearanceService(db *gorm.DB, repos *repository.Repositories) *ClearanceService {
	return &ClearanceService{
		Base: crud.Base[entity.Clearance, ClearanceDTO]{
			DB:    db,
			Repo:  repos.Clearance,
			ToDTO: ClearanceToDTO,
			ToDTOWithRelations: func(e *entity.Clearance) ClearanceDTO {
				dto := ClearanceToDTO(e)
				dto.Provider = providerRef(e.Provider)
				return dto
			},
		},
		providers: repos.Provider,
	}
}

func (s *ClearanceService) normalize(dto *ClearanceDTO) error {
	dto.Reference = strings.TrimSpace(dto.Reference)
	dto.Issuer = strings.TrimSpace(dto.Issuer)
	v := validation.New()
	v.RequiredID("providerId", dto.ProviderID)
	v.Required("reference", dto.Reference)
	v.MaxLen("reference", dto.Reference, 100)
	v.MaxLen("issuer", dto.Issuer, 200)
	v.RequiredTime("issueDate", dto.IssueDate)
	v.NotBefore("expiryDate", dto.ExpiryDate, dto.IssueDate)
	return v.Err()
}

func (s *ClearanceService) unique(ctx context.Context, reference string, excludeID int64) error {
	exists, err := s.Repo.ExistsExcluding(ctx, "reference", reference, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return apperr.Conflict("Clearance", "reference", reference)
	}
	return nil
}

func (s *ClearanceService) apply(dto *ClearanceDTO, e *entity.Clearance) {
	e.ProviderID = dto.ProviderID
	e.Reference = dto.Reference
	e.Issuer = dto.Issuer
	e.IssueDate = *dto.IssueDate
	e.ExpiryDate = dto.ExpiryDate
}

func (s *ClearanceService) Create(ctx context.Context, dto *ClearanceDTO) (*ClearanceDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out ClearanceDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		if err := s.unique(ctx, dto.Reference, 0); err != nil {
			return err
		}
		if _, err := crud.Resolve(ctx, s.providers.Repository, "providerId", dto.ProviderID); err != nil {
			return err
		}
		e := &entity.Clearance{}
		s.apply(dto, e)
		if err := s.Repo.Create(ctx, e); err != nil {
			return err
		}
		out = ClearanceToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ClearanceService) Update(ctx context.Context, id int64, dto *ClearanceDTO) (*ClearanceDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out ClearanceDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		e, err := s.Repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.unique(ctx, dto.Reference, id); err != nil {
			return err
		}
		if e.ProviderID != dto.ProviderID {
			if _, err := crud.Resolve(ctx, s.providers.Repository, "providerId", dto.ProviderID); err != nil {
				return err
			}
		}
		s.apply(dto, e)
		if err := s.Repo.Save(ctx, e); err != nil {
			return err
		}
		out = ClearanceToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ClearanceService) Patch(ctx context.Context, id int64, patch json.RawMessage) (*ClearanceDTO, error) {
	return s.PatchWith(ctx, id, patch, s.Update)
}

func (s *ClearanceService) Delete(ctx context.Context, id int64) error {
	return s.Tx(ctx, func(ctx context.Context) error {
		if _, err := s.Repo.FindByID(ctx, id); err != nil {
			return err
		}
		return s.Repo.Delete(ctx, id)
	})
}
