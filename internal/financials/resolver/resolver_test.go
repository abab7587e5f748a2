package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	companymodels "github.com/desmedtandreas/companions-app-backend/internal/companies/models"
	companystore "github.com/desmedtandreas/companions-app-backend/internal/companies/store"
	finstore "github.com/desmedtandreas/companions-app-backend/internal/financials/store"
	"github.com/desmedtandreas/companions-app-backend/pkg/vat"
)

func seedCompany(t *testing.T, companies companystore.Store, number vat.Number, name string) *companymodels.Company {
	t.Helper()
	company := &companymodels.Company{EnterpriseNumber: number, Name: name}
	require.NoError(t, companies.UpsertBatch(context.Background(), []*companymodels.Company{company}))
	stored, err := companies.FindByNumber(context.Background(), number)
	require.NoError(t, err)
	return stored
}

func TestBuildPopulatesKnownCompaniesOnly(t *testing.T) {
	ctx := context.Background()
	companies := companystore.NewMemory()
	filings := finstore.NewMemory()

	known := seedCompany(t, companies, "0123456789", "Acme NV")

	cache := New(companies, filings)
	require.NoError(t, cache.Build(ctx, []vat.Number{"0123456789", "0999999999", "0123456789", ""}))

	got, ok := cache.Company("0123456789")
	require.True(t, ok)
	assert.Equal(t, known.ID, got.ID)

	_, ok = cache.Company("0999999999")
	assert.False(t, ok, "unknown number must not be resolvable")
}

func TestCompanyNeverCreates(t *testing.T) {
	ctx := context.Background()
	companies := companystore.NewMemory()
	cache := New(companies, finstore.NewMemory())

	require.NoError(t, cache.Build(ctx, []vat.Number{"0111111111"}))
	_, ok := cache.Company("0111111111")
	assert.False(t, ok)

	all, err := companies.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestResolveOrCreatePerson(t *testing.T) {
	ctx := context.Background()
	filings := finstore.NewMemory()
	cache := New(companystore.NewMemory(), filings)

	first, err := cache.ResolveOrCreatePerson(ctx, "  Jan ", "Peeters")
	require.NoError(t, err)
	assert.Equal(t, "Jan", first.FirstName)
	assert.Equal(t, "Peeters", first.LastName)

	again, err := cache.ResolveOrCreatePerson(ctx, "Jan", " Peeters ")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID, "same trimmed name pair resolves to one row")

	other, err := cache.ResolveOrCreatePerson(ctx, "An", "Peeters")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestResolveOrCreatePersonRejectsEmptyPair(t *testing.T) {
	cache := New(companystore.NewMemory(), finstore.NewMemory())
	_, err := cache.ResolveOrCreatePerson(context.Background(), "  ", "")
	assert.Error(t, err)
}

func TestPartialNameIsAccepted(t *testing.T) {
	cache := New(companystore.NewMemory(), finstore.NewMemory())
	person, err := cache.ResolveOrCreatePerson(context.Background(), "", "Vermeulen")
	require.NoError(t, err)
	assert.Equal(t, "Vermeulen", person.LastName)
}
