package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bitfantasy/procurement/internal/contract/entity"
	"github.com/bitfantasy/procurement/internal/contract/repository"
	planentity "github.com/bitfantasy/procurement/internal/plan/entity"
	planservice "github.com/bitfantasy/procurement/internal/plan/service"
	prventity "github.com/bitfantasy/procurement/internal/provider/entity"
	prvservice "github.com/bitfantasy/procurement/internal/provider/service"
	refentity "github.com/bitfantasy/procurement/internal/reference/entity"
	refservice "github.com/bitfantasy/procurement/internal/reference/service"
	"github.com/bitfantasy/procurement/internal/shared/apperr"
	"github.com/bitfantasy/procurement/internal/shared/crud"
	"github.com/bitfantasy/procurement/internal/shared/validation"
	"gorm.io/gorm"
)

// ConsultationDTO call for tenders open until its deadline.
type ConsultationDTO struct {
	ID                  int64      `json:"id,omitempty"`
	Reference           string     `json:"reference"`
	Object              string     `json:"object"`
	ProcurementNatureID int64      `json:"procurementNatureId"`
	ApprovalStatusID    *int64     `json:"approvalStatusId,omitempty"`
	PlanID              *int64     `json:"planId,omitempty"`
	EstimatedAmount     float64    `json:"estimatedAmount"`
	PublicationDate     *time.Time `json:"publicationDate,omitempty"`
	DeadlineDate        *time.Time `json:"deadlineDate,omitempty"`
	CreatedAt           *time.Time `json:"createdAt,omitempty"`
	UpdatedAt           *time.Time `json:"updatedAt,omitempty"`

	ProcurementNature *crud.LookupDTO      `json:"procurementNature,omitempty"`
	ApprovalStatus    *crud.LookupDTO      `json:"approvalStatus,omitempty"`
	Plan              *planservice.PlanDTO `json:"plan,omitempty"`
}

func ConsultationToDTO(e *entity.Consultation) ConsultationDTO {
	return ConsultationDTO{
		ID:                  e.ID,
		Reference:           e.Reference,
		Object:              e.Object,
		ProcurementNatureID: e.ProcurementNatureID,
		ApprovalStatusID:    e.ApprovalStatusID,
		PlanID:              e.PlanID,
		EstimatedAmount:     e.EstimatedAmount,
		PublicationDate:     e.PublicationDate,
		DeadlineDate:        e.DeadlineDate,
		CreatedAt:           timePtr(e.CreatedAt),
		UpdatedAt:           timePtr(e.UpdatedAt),
	}
}

func consultationWithRelations(e *entity.Consultation) ConsultationDTO {
	dto := ConsultationToDTO(e)
	if e.ProcurementNature != nil {
		dto.ProcurementNature = lookupRef(e.ProcurementNature.ID, e.ProcurementNature.Designation)
	}
	if e.ApprovalStatus != nil {
		dto.ApprovalStatus = lookupRef(e.ApprovalStatus.ID, e.ApprovalStatus.Designation)
	}
	if e.Plan != nil {
		p := planservice.PlanToDTO(e.Plan)
		dto.Plan = &p
	}
	return dto
}

// ConsultationService calls for tenders; reference is the natural key.
type ConsultationService struct {
	crud.Base[entity.Consultation, ConsultationDTO]
	repos     *repository.Repositories
	natures   *crud.Repository[refentity.ProcurementNature]
	approvals *crud.Repository[refentity.ApprovalStatus]
	plans     *crud.Repository[planentity.Plan]
}

func NewConsultationService(db *gorm.DB, repos *repository.Repositories, deps Deps) *ConsultationService {
	return &ConsultationService{
		Base: crud.Base[entity.Consultation, ConsultationDTO]{
			DB:                 db,
			Repo:               repos.Consultation,
			ToDTO:              ConsultationToDTO,
			ToDTOWithRelations: consultationWithRelations,
		},
		repos:     repos,
		natures:   deps.Refs.ProcurementNature,
		approvals: deps.Refs.ApprovalStatus,
		plans:     deps.Plans.Plan,
	}
}

func (s *ConsultationService) normalize(dto *ConsultationDTO) error {
	dto.Reference = strings.TrimSpace(dto.Reference)
	dto.Object = strings.TrimSpace(dto.Object)
	v := validation.New()
	v.Required("reference", dto.Reference)
	v.MaxLen("reference", dto.Reference, 100)
	v.Required("object", dto.Object)
	v.MaxLen("object", dto.Object, 1000)
	v.RequiredID("procurementNatureId", dto.ProcurementNatureID)
	v.OptionalID("approvalStatusId", dto.ApprovalStatusID)
	v.OptionalID("planId", dto.PlanID)
	v.NonNegative("estimatedAmount", dto.EstimatedAmount)
	v.NotBefore("deadlineDate", dto.DeadlineDate, dto.PublicationDate)
	return v.Err()
}

func (s *ConsultationService) resolve(ctx context.Context, stored *entity.Consultation, dto *ConsultationDTO) error {
	if stored == nil || stored.ProcurementNatureID != dto.ProcurementNatureID {
		if _, err := crud.Resolve(ctx, s.natures, "procurementNatureId", dto.ProcurementNatureID); err != nil {
			return err
		}
	}
	if stored == nil || crud.Changed(stored.ApprovalStatusID, dto.ApprovalStatusID) {
		if _, err := crud.ResolveOptional(ctx, s.approvals, "approvalStatusId", dto.ApprovalStatusID); err != nil {
			return err
		}
	}
	if stored == nil || crud.Changed(stored.PlanID, dto.PlanID) {
		if _, err := crud.ResolveOptional(ctx, s.plans, "planId", dto.PlanID); err != nil {
			return err
		}
	}
	return nil
}

func (s *ConsultationService) apply(dto *ConsultationDTO, e *entity.Consultation) {
	e.Reference = dto.Reference
	e.Object = dto.Object
	e.ProcurementNatureID = dto.ProcurementNatureID
	e.ApprovalStatusID = dto.ApprovalStatusID
	e.PlanID = dto.PlanID
	e.EstimatedAmount = dto.EstimatedAmount
	e.PublicationDate = dto.PublicationDate
	e.DeadlineDate = dto.DeadlineDate
}

func (s *ConsultationService) Create(ctx context.Context, dto *ConsultationDTO) (*ConsultationDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out ConsultationDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		if err := uniqueColumn(ctx, s.Repo, "reference", "reference", dto.Reference, 0); err != nil {
			return err
		}
		if err := s.resolve(ctx, nil, dto); err != nil {
			return err
		}
		e := &entity.Consultation{}
		s.apply(dto, e)
		if err := s.Repo.Create(ctx, e); err != nil {
			return err
		}
		out = ConsultationToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ConsultationService) Update(ctx context.Context, id int64, dto *ConsultationDTO) (*ConsultationDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out ConsultationDTO
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
		out = ConsultationToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ConsultationService) Patch(ctx context.Context, id int64, patch json.RawMessage) (*ConsultationDTO, error) {
	return s.PatchWith(ctx, id, patch, s.Update)
}

func (s *ConsultationService) Delete(ctx context.Context, id int64) error {
	return s.Tx(ctx, func(ctx context.Context) error {
		if _, err := s.Repo.FindByID(ctx, id); err != nil {
			return err
		}
		if err := crud.CheckGuards(ctx, s.DB, "Consultation", id,
			crud.Guard{Table: "ctr_submissions", Column: "consultation_id", Label: "submissions"},
			crud.Guard{Table: "ctr_contracts", Column: "consultation_id", Label: "contracts"},
		); err != nil {
			return err
		}
		return s.Repo.Delete(ctx, id)
	})
}

// Submissions GET /consultations/:id/submissions
func (s *ConsultationService) Submissions(ctx context.Context, id int64) ([]SubmissionDTO, error) {
	if _, err := s.Repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	items, err := s.repos.Submission.FindBy(ctx, "consultation_id", id)
	if err != nil {
		return nil, err
	}
	out := make([]SubmissionDTO, 0, len(items))
	for i := range items {
		out = append(out, SubmissionToDTO(&items[i]))
	}
	return out, nil
}

// SubmissionDTO offer of one provider to a consultation.
type SubmissionDTO struct {
	ID             int64      `json:"id,omitempty"`
	ConsultationID int64      `json:"consultationId"`
	ProviderID     int64      `json:"providerId"`
	CurrencyID     int64      `json:"currencyId"`
	Amount         float64    `json:"amount"`
	SubmissionDate *time.Time `json:"submissionDate,omitempty"`
	CreatedAt      *time.Time `json:"createdAt,omitempty"`

	Consultation *ConsultationDTO        `json:"consultation,omitempty"`
	Provider     *prvservice.ProviderDTO `json:"provider,omitempty"`
	Currency     *refservice.CurrencyDTO `json:"currency,omitempty"`
}

func SubmissionToDTO(e *entity.Submission) SubmissionDTO {
	return SubmissionDTO{
		ID:             e.ID,
		ConsultationID: e.ConsultationID,
		ProviderID:     e.ProviderID,
		CurrencyID:     e.CurrencyID,
		Amount:         e.Amount,
		SubmissionDate: timePtr(e.SubmissionDate),
		CreatedAt:      timePtr(e.CreatedAt),
	}
}

func submissionWithRelations(e *entity.Submission) SubmissionDTO {
	dto := SubmissionToDTO(e)
	if e.Consultation != nil {
		c := ConsultationToDTO(e.Consultation)
		dto.Consultation = &c
	}
	dto.Provider = providerRef(e.Provider)
	if e.Currency != nil {
		c := refservice.CurrencyToDTO(e.Currency)
		dto.Currency = &c
	}
	return dto
}

func providerRef(p *prventity.Provider) *prvservice.ProviderDTO {
	if p == nil {
		return nil
	}
	dto := prvservice.ProviderToDTO(p)
	return &dto
}

// SubmissionService provider bids; one submission per provider and consultation.
// Excluded providers cannot submit.
type SubmissionService struct {
	crud.Base[entity.Submission, SubmissionDTO]
	consultations *crud.Repository[entity.Consultation]
	providers     *crud.Repository[prventity.Provider]
	currencies    *crud.Repository[refentity.Currency]
	exclusions    ExclusionChecker
}

func NewSubmissionService(db *gorm.DB, repos *repository.Repositories, deps Deps) *SubmissionService {
	return &SubmissionService{
		Base: crud.Base[entity.Submission, SubmissionDTO]{
			DB:                 db,
			Repo:               repos.Submission,
			ToDTO:              SubmissionToDTO,
			ToDTOWithRelations: submissionWithRelations,
		},
		consultations: repos.Consultation,
		providers:     deps.Providers.Provider.Repository,
		currencies:    deps.Refs.Currency.Repository,
		exclusions:    deps.Exclusions,
	}
}

func (s *SubmissionService) normalize(dto *SubmissionDTO) error {
	v := validation.New()
	v.RequiredID("consultationId", dto.ConsultationID)
	v.RequiredID("providerId", dto.ProviderID)
	v.RequiredID("currencyId", dto.CurrencyID)
	v.NonNegative("amount", dto.Amount)
	v.RequiredTime("submissionDate", dto.SubmissionDate)
	return v.Err()
}

func (s *SubmissionService) check(ctx context.Context, stored *entity.Submission, dto *SubmissionDTO, excludeID int64) error {
	if stored == nil || stored.ConsultationID != dto.ConsultationID {
		if _, err := crud.Resolve(ctx, s.consultations, "consultationId", dto.ConsultationID); err != nil {
			return err
		}
	}
	if stored == nil || stored.ProviderID != dto.ProviderID {
		if _, err := crud.Resolve(ctx, s.providers, "providerId", dto.ProviderID); err != nil {
			return err
		}
	}
	if stored == nil || stored.CurrencyID != dto.CurrencyID {
		if _, err := crud.Resolve(ctx, s.currencies, "currencyId", dto.CurrencyID); err != nil {
			return err
		}
	}
	exists, err := s.Repo.ExistsWhere(ctx, "consultation_id = ? AND provider_id = ? AND id <> ?",
		dto.ConsultationID, dto.ProviderID, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return apperr.Conflict("Submission", "providerId", dto.ProviderID)
	}
	if s.exclusions != nil {
		excluded, err := s.exclusions.IsExcluded(ctx, dto.ProviderID, *dto.SubmissionDate)
		if err != nil {
			return err
		}
		if excluded {
			return apperr.BusinessRule("provider %d is excluded on %s", dto.ProviderID,
				dto.SubmissionDate.Format(prvservice.DateLayout))
		}
	}
	return nil
}

func (s *SubmissionService) apply(dto *SubmissionDTO, e *entity.Submission) {
	e.ConsultationID = dto.ConsultationID
	e.ProviderID = dto.ProviderID
	e.CurrencyID = dto.CurrencyID
	e.Amount = dto.Amount
	e.SubmissionDate = *dto.SubmissionDate
}

func (s *SubmissionService) Create(ctx context.Context, dto *SubmissionDTO) (*SubmissionDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out SubmissionDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		if err := s.check(ctx, nil, dto, 0); err != nil {
			return err
		}
		e := &entity.Submission{}
		s.apply(dto, e)
		if err := s.Repo.Create(ctx, e); err != nil {
			return err
		}
		out = SubmissionToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *SubmissionService) Update(ctx context.Context, id int64, dto *SubmissionDTO) (*SubmissionDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out SubmissionDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		e, err := s.Repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.check(ctx, e, dto, id); err != nil {
			return err
		}
		s.apply(dto, e)
		if err := s.Repo.Save(ctx, e); err != nil {
			return err
		}
		out = SubmissionToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *SubmissionService) Patch(ctx context.Context, id int64, patch json.RawMessage) (*SubmissionDTO, error) {
	return s.PatchWith(ctx, id, patch, s.Update)
}

func (s *SubmissionService) Delete(ctx context.Context, id int64) error {
	return s.Tx(ctx, func(ctx context.Context) error {
		if _, err := s.Repo.FindByID(ctx, id); err != nil {
			return err
		}
		return s.Repo.Delete(ctx, id)
	})
}
