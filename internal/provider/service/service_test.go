package service

import (
	"context"
	"testing"
	"time"

	"github.com/bitfantasy/procurement/internal/provider/repository"
	refentity "github.com/bitfantasy/procurement/internal/reference/entity"
	refrepo "github.com/bitfantasy/procurement/internal/reference/repository"
	"github.com/bitfantasy/procurement/internal/shared/apperr"
	"github.com/bitfantasy/procurement/internal/shared/model"
	"github.com/bitfantasy/procurement/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*gorm.DB, *Services) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return db, NewServices(db, repository.NewRepositories(db), refrepo.NewRepositories(db))
}

func day(s string) *time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func newProvider(t *testing.T, svc *Services, name string) *ProviderDTO {
	t.Helper()
	p, err := svc.Provider.Create(context.Background(), &ProviderDTO{Designation: model.Designation{DesignationFr: name}})
	require.NoError(t, err)
	return p
}

func TestProviderEconomicDomains(t *testing.T) {
	ctx := context.Background()
	db, svc := setup(t)

	btp := &refentity.EconomicDomain{Lookup: model.Lookup{Designation: model.Designation{DesignationFr: "BTP"}}}
	it := &refentity.EconomicDomain{Lookup: model.Lookup{Designation: model.Designation{DesignationFr: "Informatique"}}}
	dz := &refentity.Country{Designation: model.Designation{DesignationFr: "Algérie"}, Code: "DZ"}
	testutil.Seed(t, db, btp, it, dz)

	p, err := svc.Provider.Create(ctx, &ProviderDTO{
		Designation:       model.Designation{DesignationFr: "Cosider"},
		Email:             "contact@cosider.dz",
		CountryID:         &dz.ID,
		EconomicDomainIDs: []int64{btp.ID, btp.ID, it.ID},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{btp.ID, it.ID}, p.EconomicDomainIDs)

	full, err := svc.Provider.GetWithRelations(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, full.Country)
	assert.Equal(t, "DZ", full.Country.Code)
	assert.Len(t, full.EconomicDomains, 2)

	p.EconomicDomainIDs = []int64{it.ID}
	updated, err := svc.Provider.Update(ctx, p.ID, p)
	require.NoError(t, err)
	assert.Equal(t, []int64{it.ID}, updated.EconomicDomainIDs)

	var links int64
	require.NoError(t, db.Table("prv_provider_economic_domains").Where("provider_id = ?", p.ID).Count(&links).Error)
	assert.Equal(t, int64(1), links)
}

func TestProviderRejectsUnknownRelations(t *testing.T) {
	_, svc := setup(t)
	missing := int64(404)

	_, err := svc.Provider.Create(context.Background(), &ProviderDTO{
		Designation: model.Designation{DesignationFr: "Fantôme"},
		CountryID:   &missing,
	})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindRelationMissing, e.Kind)
	assert.Equal(t, "countryId", e.Field)

	_, err = svc.Provider.Create(context.Background(), &ProviderDTO{
		Designation:       model.Designation{DesignationFr: "Fantôme"},
		EconomicDomainIDs: []int64{missing},
	})
	assert.Equal(t, apperr.KindRelationMissing, apperr.KindOf(err))
}

func TestProviderValidationAndConflict(t *testing.T) {
	ctx := context.Background()
	_, svc := setup(t)
	newProvider(t, svc, "Sonatrach")

	_, err := svc.Provider.Create(ctx, &ProviderDTO{Designation: model.Designation{DesignationFr: " Sonatrach "}})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = svc.Provider.Create(ctx, &ProviderDTO{Designation: model.Designation{DesignationFr: "Autre"}, Email: "not-an-email"})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, e.Kind)
	assert.Contains(t, e.Fields, "email")
}

func TestProviderDeleteGuardedByChildren(t *testing.T) {
	ctx := context.Background()
	_, svc := setup(t)
	p := newProvider(t, svc, "Guarded")

	rep, err := svc.Representator.Create(ctx, &RepresentatorDTO{ProviderID: p.ID, LastName: "Benali"})
	require.NoError(t, err)

	err = svc.Provider.Delete(ctx, p.ID)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindDependentsExist, e.Kind)
	assert.Equal(t, "representators", e.Field)

	require.NoError(t, svc.Representator.Delete(ctx, rep.ID))
	require.NoError(t, svc.Provider.Delete(ctx, p.ID))
}

func TestExclusionPeriods(t *testing.T) {
	ctx := context.Background()
	_, svc := setup(t)
	p := newProvider(t, svc, "Excluded")

	_, err := svc.Exclusion.Create(ctx, &ExclusionDTO{
		ProviderID: p.ID, Reason: "Fraude", StartDate: day("2024-03-10"), EndDate: day("2024-03-01"),
	})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Contains(t, e.Fields, "endDate")

	_, err = svc.Exclusion.Create(ctx, &ExclusionDTO{
		ProviderID: p.ID, Reason: "Fraude", StartDate: day("2024-03-01"), EndDate: day("2024-03-31"),
	})
	require.NoError(t, err)

	cases := []struct {
		at       string
		excluded bool
	}{
		{"2024-02-29", false},
		{"2024-03-01", true},
		{"2024-03-31", true},
		{"2024-04-01", false},
	}
	for _, c := range cases {
		got, err := svc.Provider.IsExcluded(ctx, p.ID, *day(c.at))
		require.NoError(t, err)
		assert.Equal(t, c.excluded, got, c.at)
	}

	// an open-ended exclusion never expires
	_, err = svc.Exclusion.Create(ctx, &ExclusionDTO{ProviderID: p.ID, Reason: "Liquidation", StartDate: day("2025-01-01")})
	require.NoError(t, err)
	status, err := svc.Provider.ExclusionAt(ctx, p.ID, *day("2030-06-15"))
	require.NoError(t, err)
	assert.True(t, status.Excluded)
	assert.Equal(t, "2030-06-15", status.At)
	require.NotNil(t, status.Exclusion)
	assert.Equal(t, "Liquidation", status.Exclusion.Reason)

	list, err := svc.Provider.Exclusions(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestClearanceReferenceUnique(t *testing.T) {
	ctx := context.Background()
	_, svc := setup(t)
	p := newProvider(t, svc, "Certified")

	first, err := svc.Clearance.Create(ctx, &ClearanceDTO{ProviderID: p.ID, Reference: "CNAS-001", IssueDate: day("2024-01-15")})
	require.NoError(t, err)

	_, err = svc.Clearance.Create(ctx, &ClearanceDTO{ProviderID: p.ID, Reference: "CNAS-001", IssueDate: day("2024-02-15")})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	first.Issuer = "CNAS Alger"
	updated, err := svc.Clearance.Update(ctx, first.ID, first)
	require.NoError(t, err)
	assert.Equal(t, "CNAS Alger", updated.Issuer)

	withProvider, err := svc.Clearance.GetWithRelations(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, withProvider.Provider)
	assert.Equal(t, "Certified", withProvider.Provider.DesignationFr)
}
