package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desmedtandreas/companions-app-backend/internal/financials/models"
	"github.com/desmedtandreas/companions-app-backend/pkg/platform/sentinel"
)

func account(companyID uuid.UUID, reference string, year int) *models.AnnualAccount {
	end := time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC)
	return &models.AnnualAccount{CompanyID: companyID, Reference: reference, EndFiscalYear: &end}
}

func TestCreateAccountsRejectsDuplicateReference(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	companyID := uuid.New()

	require.NoError(t, m.CreateAccounts(ctx, []*models.AnnualAccount{account(companyID, "A1", 2024)}))
	err := m.CreateAccounts(ctx, []*models.AnnualAccount{account(uuid.New(), "A1", 2023)})
	assert.ErrorIs(t, err, sentinel.ErrConflict, "references are globally unique")
}

func TestExistingReferencesIsGlobal(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.CreateAccounts(ctx, []*models.AnnualAccount{account(uuid.New(), "A1", 2024)}))

	existing, err := m.ExistingReferences(ctx, []string{"A1", "A2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"A1": true}, existing)
}

func TestListByCompanyNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	companyID := uuid.New()
	require.NoError(t, m.CreateAccounts(ctx, []*models.AnnualAccount{
		account(companyID, "A1", 2022),
		account(companyID, "A2", 2024),
		{CompanyID: companyID, Reference: "A3"},
		account(uuid.New(), "B1", 2025),
	}))

	accounts, err := m.ListByCompany(ctx, companyID)
	require.NoError(t, err)
	require.Len(t, accounts, 3)
	assert.Equal(t, "A2", accounts[0].Reference)
	assert.Equal(t, "A1", accounts[1].Reference)
	assert.Equal(t, "A3", accounts[2].Reference, "missing fiscal year sorts last")
}

func TestDeleteByCompanyCascades(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	companyID := uuid.New()
	require.NoError(t, m.CreateAccounts(ctx, []*models.AnnualAccount{account(companyID, "A1", 2024)}))
	stored, err := m.ByReferences(ctx, []string{"A1"})
	require.NoError(t, err)
	accountID := stored["A1"].ID

	require.NoError(t, m.CreateRubrics(ctx, []*models.FinancialRubric{
		{AnnualAccountID: accountID, Code: "9900", Value: decimal.NewFromInt(1)},
	}))
	require.NoError(t, m.CreateParticipations(ctx, []*models.Participation{
		{AnnualAccountID: accountID, HeldCompanyID: uuid.New(), Percentage: decimal.NewFromInt(50), StockCount: 10},
	}))

	require.NoError(t, m.DeleteByCompany(ctx, companyID))

	count, err := m.CountByCompany(ctx, companyID)
	require.NoError(t, err)
	assert.Zero(t, count)

	rubrics, err := m.RubricsByAccount(ctx, accountID)
	require.NoError(t, err)
	assert.Empty(t, rubrics)

	parts, err := m.ParticipationsByAccount(ctx, accountID)
	require.NoError(t, err)
	assert.Empty(t, parts)
}

func TestGetOrCreateIsStable(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	first, err := m.GetOrCreate(ctx, "Jan", "Peeters")
	require.NoError(t, err)
	again, err := m.GetOrCreate(ctx, "Jan", "Peeters")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	other, err := m.GetOrCreate(ctx, "Jan", "Peeters-Janssens")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestCreateAdministratorEnforcesInvariant(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	err := m.CreateAdministrator(ctx, &models.Administrator{AnnualAccountID: uuid.New()})
	assert.Error(t, err, "neither company nor representatives")

	companyID := uuid.New()
	assert.NoError(t, m.CreateAdministrator(ctx, &models.Administrator{
		AnnualAccountID:        uuid.New(),
		AdministeringCompanyID: &companyID,
	}))
}
