package service

import (
	"context"
	"encoding/json"
	"testing"

	plnentity "github.com/bitfantasy/procurement/internal/plan/entity"
	"github.com/bitfantasy/procurement/internal/reference/repository"
	"github.com/bitfantasy/procurement/internal/shared/apperr"
	"github.com/bitfantasy/procurement/internal/shared/crud"
	"github.com/bitfantasy/procurement/internal/shared/model"
	"github.com/bitfantasy/procurement/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setup(t *testing.T, overrides Overrides) (*gorm.DB, *Services) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return db, NewServices(db, repository.NewRepositories(db), overrides)
}

func fr(label string) model.Designation {
	return model.Designation{DesignationFr: label}
}

func TestCurrencyNormalizesAndRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	_, svc := setup(t, nil)

	dzd, err := svc.Currency.Create(ctx, &CurrencyDTO{Designation: fr("  Dinar algérien "), Code: "dzd", Symbol: "DA"})
	require.NoError(t, err)
	assert.Equal(t, "DZD", dzd.Code)
	assert.Equal(t, "Dinar algérien", dzd.DesignationFr)

	_, err = svc.Currency.Create(ctx, &CurrencyDTO{Designation: fr("Autre dinar"), Code: "DZD"})
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindConflict, e.Kind)
	assert.Equal(t, "code", e.Field)

	_, err = svc.Currency.Create(ctx, &CurrencyDTO{Designation: fr("Dinar algérien"), Code: "EUR"})
	e, _ = apperr.As(err)
	require.NotNil(t, e)
	assert.Equal(t, "designationFr", e.Field)

	// updating a row to its own keys is not a conflict
	dzd.Symbol = "DZ"
	updated, err := svc.Currency.Update(ctx, dzd.ID, dzd)
	require.NoError(t, err)
	assert.Equal(t, "DZ", updated.Symbol)

	byCode, err := svc.Currency.GetByCode(ctx, " dzd")
	require.NoError(t, err)
	assert.Equal(t, dzd.ID, byCode.ID)
}

func TestCurrencyValidation(t *testing.T) {
	_, svc := setup(t, nil)

	_, err := svc.Currency.Create(context.Background(), &CurrencyDTO{Code: "DZ"})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, e.Kind)
	assert.Contains(t, e.Fields, "designationFr")
	assert.Contains(t, e.Fields, "code")
}

func TestCurrencyDeleteGuardedByBudgets(t *testing.T) {
	ctx := context.Background()
	db, svc := setup(t, nil)

	eur, err := svc.Currency.Create(ctx, &CurrencyDTO{Designation: fr("Euro"), Code: "EUR"})
	require.NoError(t, err)
	budget := &plnentity.Budget{Designation: fr("Budget 2024"), FinancialYear: 2024, Amount: 1000, CurrencyID: eur.ID}
	testutil.Seed(t, db, budget)

	err = svc.Currency.Delete(ctx, eur.ID)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindDependentsExist, e.Kind)

	require.NoError(t, db.Delete(budget).Error)
	require.NoError(t, svc.Currency.Delete(ctx, eur.ID))
	_, err = svc.Currency.Get(ctx, eur.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestCountryCodeLength(t *testing.T) {
	ctx := context.Background()
	_, svc := setup(t, nil)

	dz, err := svc.Country.Create(ctx, &CountryDTO{Designation: fr("Algérie"), Code: "dz"})
	require.NoError(t, err)
	assert.Equal(t, "DZ", dz.Code)

	_, err = svc.Country.Create(ctx, &CountryDTO{Designation: fr("Nulle part"), Code: "ABCD"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	patched, err := svc.Country.Patch(ctx, dz.ID, json.RawMessage(`{"designationEn":"Algeria"}`))
	require.NoError(t, err)
	assert.Equal(t, "Algeria", patched.DesignationEn)
	assert.Equal(t, "Algérie", patched.DesignationFr)
	assert.Equal(t, "DZ", patched.Code)
}

func TestLookupCategories(t *testing.T) {
	ctx := context.Background()
	_, svc := setup(t, nil)

	for _, label := range []string{"En cours d'exécution", "Achevé", "Suspendu", "Inconnu"} {
		_, err := svc.RealizationStatus.Create(ctx, &crud.LookupDTO{Designation: fr(label)})
		require.NoError(t, err)
	}

	cats, err := svc.RealizationStatus.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, cats["IN_PROGRESS"], 1)
	assert.Equal(t, "En cours d'exécution", cats["IN_PROGRESS"][0].DesignationFr)
	assert.Len(t, cats["COMPLETED"], 1)
	assert.Len(t, cats["SUSPENDED"], 1)
	assert.Empty(t, cats["PLANNING"])

	_, err = svc.RealizationStatus.ByCategory(ctx, "ARCHIVED")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestLookupCategoryOverrides(t *testing.T) {
	ctx := context.Background()
	overrides := Overrides(func(key string) map[string][]string {
		if key == KeyContractTypes {
			return map[string][]string{"FRAMEWORK": {"pluriannuel"}, "SUBCONTRACT": {"sous-traitance"}}
		}
		return nil
	})
	_, svc := setup(t, overrides)

	multi, err := svc.ContractType.Create(ctx, &crud.LookupDTO{Designation: fr("Contrat pluriannuel")})
	require.NoError(t, err)
	assert.Equal(t, "FRAMEWORK", multi.Category)

	sub, err := svc.ContractType.Create(ctx, &crud.LookupDTO{Designation: fr("Sous-traitance")})
	require.NoError(t, err)
	assert.Equal(t, "SUBCONTRACT", sub.Category)

	// default keywords of an overridden label no longer apply
	cadre, err := svc.ContractType.Create(ctx, &crud.LookupDTO{Designation: fr("Accord cadre")})
	require.NoError(t, err)
	assert.Equal(t, "AGREEMENT", cadre.Category)
}

func TestSearchFallsBackToListing(t *testing.T) {
	ctx := context.Background()
	_, svc := setup(t, nil)

	for _, c := range []CurrencyDTO{
		{Designation: fr("Euro"), Code: "EUR"},
		{Designation: fr("Dollar américain"), Code: "USD"},
	} {
		c := c
		_, err := svc.Currency.Create(ctx, &c)
		require.NoError(t, err)
	}

	page, err := svc.Currency.Search(ctx, "usd", crud.Pageable{})
	require.NoError(t, err)
	require.Len(t, page.Content, 1)
	assert.Equal(t, "USD", page.Content[0].Code)

	all, err := svc.Currency.Search(ctx, "  ", crud.Pageable{})
	require.NoError(t, err)
	assert.Len(t, all.Content, 2)
	assert.Equal(t, int64(2), all.TotalElements)
}
