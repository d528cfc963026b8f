package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bitfantasy/procurement/internal/reference/entity"
	"github.com/bitfantasy/procurement/internal/reference/repository"
	"github.com/bitfantasy/procurement/internal/shared/apperr"
	"github.com/bitfantasy/procurement/internal/shared/crud"
	"github.com/bitfantasy/procurement/internal/shared/model"
	"github.com/bitfantasy/procurement/internal/shared/validation"
	"gorm.io/gorm"
)

// Services reference data services
type Services struct {
	Currency          *CurrencyService
	Country           *CountryService
	ApprovalStatus    *crud.LookupService[entity.ApprovalStatus, *entity.ApprovalStatus]
	RealizationStatus *crud.LookupService[entity.RealizationStatus, *entity.RealizationStatus]
	EconomicDomain    *crud.LookupService[entity.EconomicDomain, *entity.EconomicDomain]
	ProcurementNature *crud.LookupService[entity.ProcurementNature, *entity.ProcurementNature]
	ContractType      *crud.LookupService[entity.ContractType, *entity.ContractType]
}

// NewServices wires the reference services. Delete guards name the tables of
// the modules pointing at reference rows.
func NewServices(db *gorm.DB, repos *repository.Repositories, overrides Overrides) *Services {
	return &Services{
		Currency: NewCurrencyService(db, repos.Currency),
		Country:  NewCountryService(db, repos.Country),
		ApprovalStatus: crud.NewLookupService[entity.ApprovalStatus](db, repos.ApprovalStatus,
			overrides.Classifier(KeyApprovalStatuses, ApprovalStatusRules),
			crud.Guard{Table: "ctr_consultations", Column: "approval_status_id", Label: "consultations"},
			crud.Guard{Table: "ctr_contracts", Column: "approval_status_id", Label: "contracts"},
			crud.Guard{Table: "ctr_amendments", Column: "approval_status_id", Label: "amendments"},
		),
		RealizationStatus: crud.NewLookupService[entity.RealizationStatus](db, repos.RealizationStatus,
			overrides.Classifier(KeyRealizationStatuses, RealizationStatusRules),
			crud.Guard{Table: "ctr_contracts", Column: "realization_status_id", Label: "contracts"},
			crud.Guard{Table: "ctr_amendments", Column: "realization_status_id", Label: "amendments"},
		),
		EconomicDomain: crud.NewLookupService[entity.EconomicDomain](db, repos.EconomicDomain,
			overrides.Classifier(KeyEconomicDomains, EconomicDomainRules),
			crud.Guard{Table: "prv_provider_economic_domains", Column: "economic_domain_id", Label: "providers"},
		),
		ProcurementNature: crud.NewLookupService[entity.ProcurementNature](db, repos.ProcurementNature,
			overrides.Classifier(KeyProcurementNatures, ProcurementNatureRules),
			crud.Guard{Table: "ctr_consultations", Column: "procurement_nature_id", Label: "consultations"},
			crud.Guard{Table: "ctr_contracts", Column: "procurement_nature_id", Label: "contracts"},
			crud.Guard{Table: "pln_planned_items", Column: "procurement_nature_id", Label: "planned items"},
		),
		ContractType: crud.NewLookupService[entity.ContractType](db, repos.ContractType,
			overrides.Classifier(KeyContractTypes, ContractTypeRules),
			crud.Guard{Table: "ctr_contracts", Column: "contract_type_id", Label: "contracts"},
		),
	}
}

// CurrencyDTO currency with its ISO code.
type CurrencyDTO struct {
	ID int64 `json:"id,omitempty"`
	model.Designation
	Code   string `json:"code"`
	Symbol string `json:"symbol,omitempty"`
}

func CurrencyToDTO(e *entity.Currency) CurrencyDTO {
	return CurrencyDTO{ID: e.ID, Designation: e.Designation, Code: e.Code, Symbol: e.Symbol}
}

// CurrencyService currencies; code and designationFr are both unique.
type CurrencyService struct {
	crud.Base[entity.Currency, CurrencyDTO]
	repo *repository.CodedRepository[entity.Currency]
}

func NewCurrencyService(db *gorm.DB, repo *repository.CodedRepository[entity.Currency]) *CurrencyService {
	return &CurrencyService{
		Base: crud.Base[entity.Currency, CurrencyDTO]{DB: db, Repo: repo.Repository, ToDTO: CurrencyToDTO},
		repo: repo,
	}
}

func (s *CurrencyService) normalize(dto *CurrencyDTO) error {
	dto.Designation = dto.Designation.Trimmed()
	dto.Code = strings.ToUpper(strings.TrimSpace(dto.Code))
	dto.Symbol = strings.TrimSpace(dto.Symbol)

	v := validation.New()
	dto.Designation.Validate(v)
	v.Required("code", dto.Code)
	if dto.Code != "" && len(dto.Code) != 3 {
		v.Add("code", "code must be 3 letters")
	}
	v.MaxLen("symbol", dto.Symbol, 10)
	return v.Err()
}

func (s *CurrencyService) Create(ctx context.Context, dto *CurrencyDTO) (*CurrencyDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out CurrencyDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		if err := uniqueCoded(ctx, s.repo.Repository, dto.Code, dto.DesignationFr, 0); err != nil {
			return err
		}
		e := &entity.Currency{Designation: dto.Designation, Code: dto.Code, Symbol: dto.Symbol}
		if err := s.repo.Create(ctx, e); err != nil {
			return err
		}
		out = CurrencyToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *CurrencyService) Update(ctx context.Context, id int64, dto *CurrencyDTO) (*CurrencyDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out CurrencyDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		e, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := uniqueCoded(ctx, s.repo.Repository, dto.Code, dto.DesignationFr, id); err != nil {
			return err
		}
		e.Designation, e.Code, e.Symbol = dto.Designation, dto.Code, dto.Symbol
		if err := s.repo.Save(ctx, e); err != nil {
			return err
		}
		out = CurrencyToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *CurrencyService) Patch(ctx context.Context, id int64, patch json.RawMessage) (*CurrencyDTO, error) {
	return s.PatchWith(ctx, id, patch, s.Update)
}

func (s *CurrencyService) Delete(ctx context.Context, id int64) error {
	return s.Tx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.FindByID(ctx, id); err != nil {
			return err
		}
		if err := crud.CheckGuards(ctx, s.DB, "Currency", id,
			crud.Guard{Table: "ctr_submissions", Column: "currency_id", Label: "submissions"},
			crud.Guard{Table: "ctr_contracts", Column: "currency_id", Label: "contracts"},
			crud.Guard{Table: "ctr_amendments", Column: "currency_id", Label: "amendments"},
			crud.Guard{Table: "pln_budgets", Column: "currency_id", Label: "budgets"},
		); err != nil {
			return err
		}
		return s.repo.Delete(ctx, id)
	})
}

// GetByCode GET /currencies/code/:code
func (s *CurrencyService) GetByCode(ctx context.Context, code string) (*CurrencyDTO, error) {
	e, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	out := CurrencyToDTO(e)
	return &out, nil
}

// CountryDTO country with its ISO code.
type CountryDTO struct {
	ID int64 `json:"id,omitempty"`
	model.Designation
	Code string `json:"code"`
}

func CountryToDTO(e *entity.Country) CountryDTO {
	return CountryDTO{ID: e.ID, Designation: e.Designation, Code: e.Code}
}

// CountryService countries; code and designationFr are both unique.
type CountryService struct {
	crud.Base[entity.Country, CountryDTO]
	repo *repository.CodedRepository[entity.Country]
}

func NewCountryService(db *gorm.DB, repo *repository.CodedRepository[entity.Country]) *CountryService {
	return &CountryService{
		Base: crud.Base[entity.Country, CountryDTO]{DB: db, Repo: repo.Repository, ToDTO: CountryToDTO},
		repo: repo,
	}
}

func (s *CountryService) normalize(dto *CountryDTO) error {
	dto.Designation = dto.Designation.Trimmed()
	dto.Code = strings.ToUpper(strings.TrimSpace(dto.Code))

	v := validation.New()
	dto.Designation.Validate(v)
	v.Required("code", dto.Code)
	if n := len(dto.Code); n > 0 && (n < 2 || n > 3) {
		v.Add("code", "code must be 2 or 3 letters")
	}
	return v.Err()
}

func (s *CountryService) Create(ctx context.Context, dto *CountryDTO) (*CountryDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out CountryDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		if err := uniqueCoded(ctx, s.repo.Repository, dto.Code, dto.DesignationFr, 0); err != nil {
			return err
		}
		e := &entity.Country{Designation: dto.Designation, Code: dto.Code}
		if err := s.repo.Create(ctx, e); err != nil {
			return err
		}
		out = CountryToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *CountryService) Update(ctx context.Context, id int64, dto *CountryDTO) (*CountryDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out CountryDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		e, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := uniqueCoded(ctx, s.repo.Repository, dto.Code, dto.DesignationFr, id); err != nil {
			return err
		}
		e.Designation, e.Code = dto.Designation, dto.Code
		if err := s.repo.Save(ctx, e); err != nil {
			return err
		}
		out = CountryToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *CountryService) Patch(ctx context.Context, id int64, patch json.RawMessage) (*CountryDTO, error) {
	return s.PatchWith(ctx, id, patch, s.Update)
}

func (s *CountryService) Delete(ctx context.Context, id int64) error {
	return s.Tx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.FindByID(ctx, id); err != nil {
			return err
		}
		if err := crud.CheckGuards(ctx, s.DB, "Country", id,
			crud.Guard{Table: "prv_providers", Column: "country_id", Label: "providers"},
		); err != nil {
			return err
		}
		return s.repo.Delete(ctx, id)
	})
}

// GetByCode GET /countries/code/:code
func (s *CountryService) GetByCode(ctx context.Context, code string) (*CountryDTO, error) {
	e, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	out := CountryToDTO(e)
	return &out, nil
}

// uniqueCoded checks both natural keys of a coded table; excludeID is 0 on create.
func uniqueCoded[E any](ctx context.Context, repo *crud.Repository[E], code, designationFr string, excludeID int64) error {
	checks := []struct {
		column, field, value string
	}{
		{"code", "code", code},
		{"designation_fr", "designationFr", designationFr},
	}
	for _, c := range checks {
		exists, err := repo.ExistsExcluding(ctx, c.column, c.value, excludeID)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict(repo.Name(), c.field, c.value)
		}
	}
	return nil
}
