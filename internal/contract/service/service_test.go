package service

import (
	"context"
	"testing"
	"time"

	"github.com/bitfantasy/procurement/internal/contract/entity"
	"github.com/bitfantasy/procurement/internal/contract/repository"
	planrepo "github.com/bitfantasy/procurement/internal/plan/repository"
	prventity "github.com/bitfantasy/procurement/internal/provider/entity"
	prvrepo "github.com/bitfantasy/procurement/internal/provider/repository"
	prvservice "github.com/bitfantasy/procurement/internal/provider/service"
	refentity "github.com/bitfantasy/procurement/internal/reference/entity"
	refrepo "github.com/bitfantasy/procurement/internal/reference/repository"
	"github.com/bitfantasy/procurement/internal/shared/apperr"
	"github.com/bitfantasy/procurement/internal/shared/model"
	"github.com/bitfantasy/procurement/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	svc      *Services
	provider *prventity.Provider
	currency *refentity.Currency
	nature   *refentity.ProcurementNature
	ctype    *refentity.ContractType
	status   *refentity.RealizationStatus
	atype    *entity.AmendmentType
	phase    *entity.AmendmentPhase
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	refs := refrepo.NewRepositories(db)
	providers := prvrepo.NewRepositories(db)
	f := &fixture{
		db:       db,
		provider: &prventity.Provider{Designation: fr("SARL Bati Sud")},
		currency: &refentity.Currency{Designation: fr("Dinar algérien"), Code: "DZD"},
		nature:   &refentity.ProcurementNature{Lookup: model.Lookup{Designation: fr("Travaux")}},
		ctype:    &refentity.ContractType{Lookup: model.Lookup{Designation: fr("Marché")}},
		status:   &refentity.RealizationStatus{Lookup: model.Lookup{Designation: fr("En cours")}},
		atype:    &entity.AmendmentType{Lookup: model.Lookup{Designation: fr("Augmentation du montant")}},
		phase:    &entity.AmendmentPhase{Lookup: model.Lookup{Designation: fr("Approbation")}},
	}
	testutil.Seed(t, db, f.provider, f.currency, f.nature, f.ctype, f.status, f.atype, f.phase)

	exclusions := prvservice.NewServices(db, providers, refs).Provider
	f.svc = NewServices(db, repository.NewRepositories(db), Deps{
		Refs:       refs,
		Providers:  providers,
		Plans:      planrepo.NewRepositories(db),
		Exclusions: exclusions,
	}, nil)
	return f
}

func fr(label string) model.Designation {
	return model.Designation{DesignationFr: label}
}

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func (f *fixture) consultation(t *testing.T, ref string) *ConsultationDTO {
	t.Helper()
	c, err := f.svc.Consultation.Create(context.Background(), &ConsultationDTO{
		Reference:           ref,
		Object:              "Réfection de la toiture",
		ProcurementNatureID: f.nature.ID,
		EstimatedAmount:     1000000,
		PublicationDate:     day(2024, 2, 1),
		DeadlineDate:        day(2024, 3, 15),
	})
	require.NoError(t, err)
	return c
}

func (f *fixture) contract(t *testing.T, ref string, amount float64) *ContractDTO {
	t.Helper()
	c, err := f.svc.Contract.Create(context.Background(), &ContractDTO{
		Reference:           ref,
		Object:              "Travaux de toiture",
		ProviderID:          f.provider.ID,
		ContractTypeID:      f.ctype.ID,
		ProcurementNatureID: f.nature.ID,
		CurrencyID:          f.currency.ID,
		RealizationStatusID: f.status.ID,
		Amount:              amount,
		StartDate:           day(2024, 4, 1),
		EndDate:             day(2024, 12, 31),
	})
	require.NoError(t, err)
	return c
}

func requireKind(t *testing.T, err error, kind apperr.Kind) *apperr.Error {
	t.Helper()
	e, ok := apperr.As(err)
	require.True(t, ok, "expected apperr, got %v", err)
	require.Equal(t, kind, e.Kind)
	return e
}

func TestAmendmentStepsByPhase(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	step, err := f.svc.AmendmentStep.Create(ctx, &AmendmentStepDTO{Designation: fr("Visa du contrôleur"), PhaseID: f.phase.ID})
	require.NoError(t, err)

	steps, err := f.svc.AmendmentStep.ByPhase(ctx, f.phase.ID)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, step.ID, steps[0].ID)

	_, err = f.svc.AmendmentStep.ByPhase(ctx, 999)
	requireKind(t, err, apperr.KindNotFound)

	_, err = f.svc.AmendmentStep.Create(ctx, &AmendmentStepDTO{Designation: fr("Signature"), PhaseID: 999})
	e := requireKind(t, err, apperr.KindRelationMissing)
	assert.Equal(t, "phaseId", e.Field)

	err = f.svc.AmendmentPhase.Delete(ctx, f.phase.ID)
	requireKind(t, err, apperr.KindDependentsExist)

	require.NoError(t, f.svc.AmendmentStep.Delete(ctx, step.ID))
	require.NoError(t, f.svc.AmendmentPhase.Delete(ctx, f.phase.ID))
}

func TestConsultationDatesAndReference(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.Consultation.Create(ctx, &ConsultationDTO{
		Reference:           "AO-2024-01",
		Object:              "Fournitures",
		ProcurementNatureID: f.nature.ID,
		PublicationDate:     day(2024, 3, 1),
		DeadlineDate:        day(2024, 2, 1),
	})
	e := requireKind(t, err, apperr.KindValidation)
	assert.Contains(t, e.Fields, "deadlineDate")

	f.consultation(t, "AO-2024-01")

	_, err = f.svc.Consultation.Create(ctx, &ConsultationDTO{
		Reference:           "  AO-2024-01 ",
		Object:              "Autre objet",
		ProcurementNatureID: f.nature.ID,
	})
	e = requireKind(t, err, apperr.KindConflict)
	assert.Equal(t, "reference", e.Field)

	planID := int64(42)
	_, err = f.svc.Consultation.Create(ctx, &ConsultationDTO{
		Reference:           "AO-2024-02",
		Object:              "Autre objet",
		ProcurementNatureID: f.nature.ID,
		PlanID:              &planID,
	})
	e = requireKind(t, err, apperr.KindRelationMissing)
	assert.Equal(t, "planId", e.Field)
}

func TestSubmissionOnePerProvider(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	c := f.consultation(t, "AO-2024-03")

	sub := &SubmissionDTO{
		ConsultationID: c.ID,
		ProviderID:     f.provider.ID,
		CurrencyID:     f.currency.ID,
		Amount:         950000,
		SubmissionDate: day(2024, 3, 10),
	}
	created, err := f.svc.Submission.Create(ctx, sub)
	require.NoError(t, err)

	dup := *sub
	_, err = f.svc.Submission.Create(ctx, &dup)
	e := requireKind(t, err, apperr.KindConflict)
	assert.Equal(t, "providerId", e.Field)

	// updating the same submission is not a conflict with itself
	sub.Amount = 900000
	updated, err := f.svc.Submission.Update(ctx, created.ID, sub)
	require.NoError(t, err)
	assert.Equal(t, 900000.0, updated.Amount)

	subs, err := f.svc.Consultation.Submissions(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	err = f.svc.Consultation.Delete(ctx, c.ID)
	e = requireKind(t, err, apperr.KindDependentsExist)
	assert.Equal(t, "submissions", e.Field)

	require.NoError(t, f.svc.Submission.Delete(ctx, created.ID))
	require.NoError(t, f.svc.Consultation.Delete(ctx, c.ID))
}

func TestSubmissionRefusedForExcludedProvider(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	c := f.consultation(t, "AO-2024-04")
	testutil.Seed(t, f.db, &prventity.ProviderExclusion{
		ProviderID: f.provider.ID,
		Reason:     "Défaillance sur le marché 12/2023",
		StartDate:  *day(2024, 3, 1),
		EndDate:    day(2024, 3, 31),
	})

	_, err := f.svc.Submission.Create(ctx, &SubmissionDTO{
		ConsultationID: c.ID,
		ProviderID:     f.provider.ID,
		CurrencyID:     f.currency.ID,
		Amount:         100,
		SubmissionDate: day(2024, 3, 31),
	})
	requireKind(t, err, apperr.KindBusinessRule)

	_, err = f.svc.Submission.Create(ctx, &SubmissionDTO{
		ConsultationID: c.ID,
		ProviderID:     f.provider.ID,
		CurrencyID:     f.currency.ID,
		Amount:         100,
		SubmissionDate: day(2024, 4, 1),
	})
	require.NoError(t, err)
}

func TestContractSummary(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	c := f.contract(t, "M-2024-001", 1000000)

	step, err := f.svc.AmendmentStep.Create(ctx, &AmendmentStepDTO{Designation: fr("Signature"), PhaseID: f.phase.ID})
	require.NoError(t, err)

	for i, amount := range []float64{150000, -25000} {
		_, err := f.svc.Amendment.Create(ctx, &AmendmentDTO{
			Reference:           []string{"AV-01", "AV-02"}[i],
			Object:              "Ajustement",
			ContractID:          c.ID,
			AmendmentTypeID:     f.atype.ID,
			RealizationStatusID: f.status.ID,
			AmendmentStepID:     step.ID,
			CurrencyID:          f.currency.ID,
			Amount:              amount,
		})
		require.NoError(t, err)
	}

	sum, err := f.svc.Contract.Summary(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), sum.AmendmentCount)
	assert.InDelta(t, 125000, sum.AmendmentsTotal, 0.001)
	assert.InDelta(t, 1125000, sum.TotalAmount, 0.001)
	require.NotNil(t, sum.Contract.Provider)

	amendments, err := f.svc.Contract.Amendments(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, amendments, 2)

	err = f.svc.Contract.Delete(ctx, c.ID)
	requireKind(t, err, apperr.KindDependentsExist)
}

func TestContractValidation(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.Contract.Create(ctx, &ContractDTO{
		Reference: "M-1",
		Object:    "x",
		Amount:    -5,
		StartDate: day(2024, 5, 1),
		EndDate:   day(2024, 4, 1),
	})
	e := requireKind(t, err, apperr.KindValidation)
	for _, field := range []string{"providerId", "contractTypeId", "currencyId", "amount", "endDate"} {
		assert.Contains(t, e.Fields, field)
	}

	f.contract(t, "M-2024-002", 10)
	_, err = f.svc.Contract.Create(ctx, &ContractDTO{
		Reference:           "M-2024-003",
		Object:              "x",
		ProviderID:          999,
		ContractTypeID:      f.ctype.ID,
		ProcurementNatureID: f.nature.ID,
		CurrencyID:          f.currency.ID,
		RealizationStatusID: f.status.ID,
	})
	e = requireKind(t, err, apperr.KindRelationMissing)
	assert.Equal(t, "providerId", e.Field)

	all, err := f.svc.Contract.ListForExport(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.NotNil(t, all[0].Currency)
}
