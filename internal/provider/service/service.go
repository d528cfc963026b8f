package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bitfantasy/procurement/internal/provider/entity"
	"github.com/bitfantasy/procurement/internal/provider/repository"
	refentity "github.com/bitfantasy/procurement/internal/reference/entity"
	refrepo "github.com/bitfantasy/procurement/internal/reference/repository"
	refservice "github.com/bitfantasy/procurement/internal/reference/service"
	"github.com/bitfantasy/procurement/internal/shared/apperr"
	"github.com/bitfantasy/procurement/internal/shared/crud"
	"github.com/bitfantasy/procurement/internal/shared/model"
	"github.com/bitfantasy/procurement/internal/shared/validation"
	"gorm.io/gorm"
)

// Services provider services
type Services struct {
	Provider      *ProviderService
	Exclusion     *ExclusionService
	Representator *RepresentatorService
	Clearance     *ClearanceService
}

func NewServices(db *gorm.DB, repos *repository.Repositories, refs *refrepo.Repositories) *Services {
	return &Services{
		Provider:      NewProviderService(db, repos, refs),
		Exclusion:     NewExclusionService(db, repos),
		Representator: NewRepresentatorService(db, repos),
		Clearance:     NewClearanceService(db, repos),
	}
}

// ProviderDTO company bidding for and holding contracts.
type ProviderDTO struct {
	ID int64 `json:"id,omitempty"`
	model.Designation
	Acronym           string     `json:"acronym,omitempty"`
	Address           string     `json:"address,omitempty"`
	Phone             string     `json:"phone,omitempty"`
	Fax               string     `json:"fax,omitempty"`
	Email             string     `json:"email,omitempty"`
	Website           string     `json:"website,omitempty"`
	CountryID         *int64     `json:"countryId,omitempty"`
	EconomicDomainIDs []int64    `json:"economicDomainIds,omitempty"`
	CreatedAt         *time.Time `json:"createdAt,omitempty"`
	UpdatedAt         *time.Time `json:"updatedAt,omitempty"`

	Country         *refservice.CountryDTO `json:"country,omitempty"`
	EconomicDomains []crud.LookupDTO       `json:"economicDomains,omitempty"`
}

func ProviderToDTO(e *entity.Provider) ProviderDTO {
	dto := ProviderDTO{
		ID:          e.ID,
		Designation: e.Designation,
		Acronym:     e.Acronym,
		Address:     e.Address,
		Phone:       e.Phone,
		Fax:         e.Fax,
		Email:       e.Email,
		Website:     e.Website,
		CountryID:   e.CountryID,
		CreatedAt:   timePtr(e.CreatedAt),
		UpdatedAt:   timePtr(e.UpdatedAt),
	}
	for _, d := range e.EconomicDomains {
		dto.EconomicDomainIDs = append(dto.EconomicDomainIDs, d.ID)
	}
	return dto
}

// ProviderToDTOWithRelations nests country and economic domains.
func ProviderToDTOWithRelations(e *entity.Provider) ProviderDTO {
	dto := ProviderToDTO(e)
	if e.Country != nil {
		c := refservice.CountryToDTO(e.Country)
		dto.Country = &c
	}
	for _, d := range e.EconomicDomains {
		dto.EconomicDomains = append(dto.EconomicDomains, crud.LookupDTO{ID: d.ID, Designation: d.Designation})
	}
	return dto
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// ProviderService providers; designationFr is the natural key.
type ProviderService struct {
	crud.Base[entity.Provider, ProviderDTO]
	repos   *repository.Repositories
	country *crud.Repository[refentity.Country]
	domains *crud.Repository[refentity.EconomicDomain]
}

func NewProviderService(db *gorm.DB, repos *repository.Repositories, refs *refrepo.Repositories) *ProviderService {
	return &ProviderService{
		Base: crud.Base[entity.Provider, ProviderDTO]{
			DB:                 db,
			Repo:               repos.Provider.Repository,
			ToDTO:              ProviderToDTO,
			ToDTOWithRelations: ProviderToDTOWithRelations,
		},
		repos:   repos,
		country: refs.Country.Repository,
		domains: refs.EconomicDomain,
	}
}

func (s *ProviderService) normalize(dto *ProviderDTO) error {
	dto.Designation = dto.Designation.Trimmed()
	dto.Acronym = strings.TrimSpace(dto.Acronym)
	dto.Email = strings.TrimSpace(dto.Email)
	dto.EconomicDomainIDs = crud.Distinct(dto.EconomicDomainIDs)

	v := validation.New()
	dto.Designation.Validate(v)
	v.MaxLen("acronym", dto.Acronym, 50)
	v.MaxLen("address", dto.Address, 500)
	v.MaxLen("phone", dto.Phone, 30)
	v.MaxLen("fax", dto.Fax, 30)
	v.Email("email", dto.Email)
	v.MaxLen("website", dto.Website, 200)
	v.OptionalID("countryId", dto.CountryID)
	return v.Err()
}

func (s *ProviderService) apply(dto *ProviderDTO, e *entity.Provider) {
	e.Designation = dto.Designation
	e.Acronym = dto.Acronym
	e.Address = dto.Address
	e.Phone = dto.Phone
	e.Fax = dto.Fax
	e.Email = dto.Email
	e.Website = dto.Website
	e.CountryID = dto.CountryID
}

func (s *ProviderService) Create(ctx context.Context, dto *ProviderDTO) (*ProviderDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out *ProviderDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		if err := s.unique(ctx, dto.DesignationFr, 0); err != nil {
			return err
		}
		if _, err := crud.ResolveOptional(ctx, s.country, "countryId", dto.CountryID); err != nil {
			return err
		}
		domains, err := crud.ResolveAll(ctx, s.domains, "economicDomainIds", dto.EconomicDomainIDs)
		if err != nil {
			return err
		}
		e := &entity.Provider{}
		s.apply(dto, e)
		if err := s.Repo.Create(ctx, e); err != nil {
			return err
		}
		if err := s.Repo.ReplaceAssociation(ctx, e, "EconomicDomains", domains); err != nil {
			return err
		}
		out, err = s.Get(ctx, e.ID)
		return err
	})
	return out, err
}

func (s *ProviderService) Update(ctx context.Context, id int64, dto *ProviderDTO) (*ProviderDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out *ProviderDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		e, err := s.Repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.unique(ctx, dto.DesignationFr, id); err != nil {
			return err
		}
		if crud.Changed(e.CountryID, dto.CountryID) {
			if _, err := crud.ResolveOptional(ctx, s.country, "countryId", dto.CountryID); err != nil {
				return err
			}
		}
		domains, err := crud.ResolveAll(ctx, s.domains, "economicDomainIds", dto.EconomicDomainIDs)
		if err != nil {
			return err
		}
		s.apply(dto, e)
		if err := s.Repo.Save(ctx, e); err != nil {
			return err
		}
		if err := s.Repo.ReplaceAssociation(ctx, e, "EconomicDomains", domains); err != nil {
			return err
		}
		out, err = s.Get(ctx, id)
		return err
	})
	return out, err
}

func (s *ProviderService) Patch(ctx context.Context, id int64, patch json.RawMessage) (*ProviderDTO, error) {
	return s.PatchWith(ctx, id, patch, s.Update)
}

func (s *ProviderService) Delete(ctx context.Context, id int64) error {
	return s.Tx(ctx, func(ctx context.Context) error {
		e, err := s.Repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := crud.CheckGuards(ctx, s.DB, "Provider", id,
			crud.Guard{Table: "prv_provider_exclusions", Column: "provider_id", Label: "exclusions"},
			crud.Guard{Table: "prv_provider_representators", Column: "provider_id", Label: "representators"},
			crud.Guard{Table: "prv_clearances", Column: "provider_id", Label: "clearances"},
			crud.Guard{Table: "ctr_submissions", Column: "provider_id", Label: "submissions"},
			crud.Guard{Table: "ctr_contracts", Column: "provider_id", Label: "contracts"},
		); err != nil {
			return err
		}
		if err := s.Repo.ClearAssociation(ctx, e, "EconomicDomains"); err != nil {
			return err
		}
		return s.Repo.Delete(ctx, id)
	})
}

func (s *ProviderService) unique(ctx context.Context, designationFr string, excludeID int64) error {
	exists, err := s.Repo.ExistsExcluding(ctx, "designation_fr", designationFr, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return apperr.Conflict("Provider", "designationFr", designationFr)
	}
	return nil
}

// Exclusions lists the exclusions of provider id.
func (s *ProviderService) Exclusions(ctx context.Context, id int64) ([]ExclusionDTO, error) {
	if _, err := s.Repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	items, err := s.repos.Exclusion.FindBy(ctx, "provider_id", id)
	if err != nil {
		return nil, err
	}
	return mapSlice(items, ExclusionToDTO), nil
}

// Representators lists the representators of provider id.
func (s *ProviderService) Representators(ctx context.Context, id int64) ([]RepresentatorDTO, error) {
	if _, err := s.Repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	items, err := s.repos.Representator.FindBy(ctx, "provider_id", id)
	if err != nil {
		return nil, err
	}
	return mapSlice(items, RepresentatorToDTO), nil
}

// Clearances lists the clearances of provider id.
func (s *ProviderService) Clearances(ctx context.Context, id int64) ([]ClearanceDTO, error) {
	if _, err := s.Repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	items, err := s.repos.Clearance.FindBy(ctx, "provider_id", id)
	if err != nil {
		return nil, err
	}
	return mapSlice(items, ClearanceToDTO), nil
}

// ExclusionStatus answer of the exclusion check
type ExclusionStatus struct {
	ProviderID int64         `json:"providerId"`
	At         string        `json:"at"`
	Excluded   bool          `json:"excluded"`
	Exclusion  *ExclusionDTO `json:"exclusion,omitempty"`
}

// ExclusionAt reports whether provider id is excluded on the day of at.
func (s *ProviderService) ExclusionAt(ctx context.Context, id int64, at time.Time) (*ExclusionStatus, error) {
	if _, err := s.Repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	active, err := s.activeExclusion(ctx, id, at)
	if err != nil {
		return nil, err
	}
	st := &ExclusionStatus{ProviderID: id, At: at.Format(DateLayout)}
	if active != nil {
		dto := ExclusionToDTO(active)
		st.Excluded, st.Exclusion = true, &dto
	}
	return st, nil
}

// IsExcluded implements the check used when recording submissions.
func (s *ProviderService) IsExcluded(ctx context.Context, providerID int64, at time.Time) (bool, error) {
	active, err := s.activeExclusion(ctx, providerID, at)
	return active != nil, err
}

func (s *ProviderService) activeExclusion(ctx context.Context, providerID int64, at time.Time) (*entity.ProviderExclusion, error) {
	items, err := s.repos.Exclusion.FindBy(ctx, "provider_id", providerID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ActiveAt(at) {
			return &items[i], nil
		}
	}
	return nil, nil
}

// ListForExport returns every provider with its relations.
func (s *ProviderService) ListForExport(ctx context.Context) ([]ProviderDTO, error) {
	items, err := s.repos.Provider.ListForExport(ctx)
	if err != nil {
		return nil, err
	}
	return mapSlice(items, ProviderToDTOWithRelations), nil
}

// DateLayout is the calendar date format accepted by query parameters.
const DateLayout = "2006-01-02"

func mapSlice[E any, D any](items []E, fn func(*E) D) []D {
	out := make([]D, 0, len(items))
	for i := range items {
		out = append(out, fn(&items[i]))
	}
	return out
}
