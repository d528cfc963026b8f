package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bitfantasy/procurement/internal/contract/entity"
	"github.com/bitfantasy/procurement/internal/contract/repository"
	planrepo "github.com/bitfantasy/procurement/internal/plan/repository"
	prvrepo "github.com/bitfantasy/procurement/internal/provider/repository"
	refrepo "github.com/bitfantasy/procurement/internal/reference/repository"
	refservice "github.com/bitfantasy/procurement/internal/reference/service"
	"github.com/bitfantasy/procurement/internal/shared/apperr"
	"github.com/bitfantasy/procurement/internal/shared/classify"
	"github.com/bitfantasy/procurement/internal/shared/crud"
	"github.com/bitfantasy/procurement/internal/shared/model"
	"github.com/bitfantasy/procurement/internal/shared/validation"
	"gorm.io/gorm"
)

// Classifier keys used in configuration.
const (
	KeyAmendmentTypes  = "amendment_types"
	KeyAmendmentPhases = "amendment_phases"
)

var (
	AmendmentTypeRules = []classify.Rule{
		{Label: "FINANCIAL", Keywords: []string{"montant", "prix", "financ", "augmentation", "diminution"}},
		{Label: "DEADLINE", Keywords: []string{"delai", "prolongation", "prorogation"}},
		{Label: "SCOPE", Keywords: []string{"objet", "prestation", "quantite", "travaux supplementaires"}},
		{Label: "ADMINISTRATIVE", Keywords: []string{"administratif", "domiciliation", "cession", "denomination"}},
	}

	AmendmentPhaseRules = []classify.Rule{
		{Label: "PREPARATION", Keywords: []string{"preparation", "elaboration", "redaction"}},
		{Label: "REVIEW", Keywords: []string{"examen", "controle", "commission", "visa"}},
		{Label: "APPROVAL", Keywords: []string{"approbation", "signature"}},
		{Label: "EXECUTION", Keywords: []string{"notification", "execution"}},
	}
)

// ExclusionChecker reports whether a provider is excluded on a given day.
type ExclusionChecker interface {
	IsExcluded(ctx context.Context, providerID int64, at time.Time) (bool, error)
}

// Deps are the repositories of the modules contracts point at.
type Deps struct {
	Refs       *refrepo.Repositories
	Providers  *prvrepo.Repositories
	Plans      *planrepo.Repositories
	Exclusions ExclusionChecker
}

// Services contract services
type Services struct {
	AmendmentType  *crud.LookupService[entity.AmendmentType, *entity.AmendmentType]
	AmendmentPhase *crud.LookupService[entity.AmendmentPhase, *entity.AmendmentPhase]
	AmendmentStep  *AmendmentStepService
	Consultation   *ConsultationService
	Submission     *SubmissionService
	Contract       *ContractService
	Amendment      *AmendmentService
}

func NewServices(db *gorm.DB, repos *repository.Repositories, deps Deps, overrides refservice.Overrides) *Services {
	return &Services{
		AmendmentType: crud.NewLookupService[entity.AmendmentType](db, repos.AmendmentType,
			overrides.Classifier(KeyAmendmentTypes, AmendmentTypeRules),
			crud.Guard{Table: "ctr_amendments", Column: "amendment_type_id", Label: "amendments"},
		),
		AmendmentPhase: crud.NewLookupService[entity.AmendmentPhase](db, repos.AmendmentPhase,
			overrides.Classifier(KeyAmendmentPhases, AmendmentPhaseRules),
			crud.Guard{Table: "ctr_amendment_steps", Column: "phase_id", Label: "amendment steps"},
		),
		AmendmentStep: NewAmendmentStepService(db, repos),
		Consultation:  NewConsultationService(db, repos, deps),
		Submission:    NewSubmissionService(db, repos, deps),
		Contract:      NewContractService(db, repos, deps),
		Amendment:     NewAmendmentService(db, repos, deps),
	}
}

// AmendmentStepDTO ordered step inside an amendment phase.
type AmendmentStepDTO struct {
	ID int64 `json:"id,omitempty"`
	model.Designation
	PhaseID int64           `json:"phaseId"`
	Phase   *crud.LookupDTO `json:"phase,omitempty"`
}

func AmendmentStepToDTO(e *entity.AmendmentStep) AmendmentStepDTO {
	return AmendmentStepDTO{ID: e.ID, Designation: e.Designation, PhaseID: e.PhaseID}
}

func amendmentStepWithRelations(e *entity.AmendmentStep) AmendmentStepDTO {
	dto := AmendmentStepToDTO(e)
	if e.Phase != nil {
		dto.Phase = &crud.LookupDTO{ID: e.Phase.ID, Designation: e.Phase.Designation}
	}
	return dto
}

// AmendmentStepService steps of amendment phases
type AmendmentStepService struct {
	crud.Base[entity.AmendmentStep, AmendmentStepDTO]
	phases *crud.Repository[entity.AmendmentPhase]
}

func NewAmendmentStepService(db *gorm.DB, repos *repository.Repositories) *AmendmentStepService {
	return &AmendmentStepService{
		Base: crud.Base[entity.AmendmentStep, AmendmentStepDTO]{
			DB:                 db,
			Repo:               repos.AmendmentStep,
			ToDTO:              AmendmentStepToDTO,
			ToDTOWithRelations: amendmentStepWithRelations,
		},
		phases: repos.AmendmentPhase,
	}
}

func (s *AmendmentStepService) normalize(dto *AmendmentStepDTO) error {
	dto.Designation = dto.Designation.Trimmed()
	v := validation.New()
	dto.Designation.Validate(v)
	v.RequiredID("phaseId", dto.PhaseID)
	return v.Err()
}

func (s *AmendmentStepService) Create(ctx context.Context, dto *AmendmentStepDTO) (*AmendmentStepDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out AmendmentStepDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		if err := uniqueColumn(ctx, s.Repo, "designation_fr", "designationFr", dto.DesignationFr, 0); err != nil {
			return err
		}
		if _, err := crud.Resolve(ctx, s.phases, "phaseId", dto.PhaseID); err != nil {
			return err
		}
		e := &entity.AmendmentStep{Designation: dto.Designation, PhaseID: dto.PhaseID}
		if err := s.Repo.Create(ctx, e); err != nil {
			return err
		}
		out = AmendmentStepToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AmendmentStepService) Update(ctx context.Context, id int64, dto *AmendmentStepDTO) (*AmendmentStepDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out AmendmentStepDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		e, err := s.Repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := uniqueColumn(ctx, s.Repo, "designation_fr", "designationFr", dto.DesignationFr, id); err != nil {
			return err
		}
		if e.PhaseID != dto.PhaseID {
			if _, err := crud.Resolve(ctx, s.phases, "phaseId", dto.PhaseID); err != nil {
				return err
			}
		}
		e.Designation = dto.Designation
		e.PhaseID = dto.PhaseID
		if err := s.Repo.Save(ctx, e); err != nil {
			return err
		}
		out = AmendmentStepToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AmendmentStepService) Patch(ctx context.Context, id int64, patch json.RawMessage) (*AmendmentStepDTO, error) {
	return s.PatchWith(ctx, id, patch, s.Update)
}

func (s *AmendmentStepService) Delete(ctx context.Context, id int64) error {
	return s.Tx(ctx, func(ctx context.Context) error {
		if _, err := s.Repo.FindByID(ctx, id); err != nil {
			return err
		}
		if err := crud.CheckGuards(ctx, s.DB, "AmendmentStep", id,
			crud.Guard{Table: "ctr_amendments", Column: "amendment_step_id", Label: "amendments"},
		); err != nil {
			return err
		}
		return s.Repo.Delete(ctx, id)
	})
}

// ByPhase GET /amendment-phases/:id/steps
func (s *AmendmentStepService) ByPhase(ctx context.Context, phaseID int64) ([]AmendmentStepDTO, error) {
	if _, err := s.phases.FindByID(ctx, phaseID); err != nil {
		return nil, err
	}
	return s.ListBy(ctx, "phase_id", phaseID)
}

func uniqueColumn[E any](ctx context.Context, repo *crud.Repository[E], column, field, value string, excludeID int64) error {
	exists, err := repo.ExistsExcluding(ctx, column, value, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return apperr.Conflict(repo.Name(), field, value)
	}
	return nil
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func lookupRef(id int64, d model.Designation) *crud.LookupDTO {
	return &crud.LookupDTO{ID: id, Designation: d}
}
