//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	companymodels "github.com/desmedtandreas/companions-app-backend/internal/companies/models"
	companystore "github.com/desmedtandreas/companions-app-backend/internal/companies/store"
	"github.com/desmedtandreas/companions-app-backend/internal/financials/models"
	"github.com/desmedtandreas/companions-app-backend/internal/financials/store"
	"github.com/desmedtandreas/companions-app-backend/pkg/testutil/containers"
	"github.com/desmedtandreas/companions-app-backend/pkg/vat"
)

type PostgresGatewaySuite struct {
	suite.Suite
	postgres  *containers.PostgresContainer
	companies *companystore.Postgres
	store     *store.Postgres
	runner    *store.SQLTxRunner
}

func TestPostgresGatewaySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresGatewaySuite))
}

func (s *PostgresGatewaySuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.companies = companystore.NewPostgres(s.postgres.DB)
	s.store = store.NewPostgres(s.postgres.DB)
	s.runner = store.NewSQLTxRunner(s.postgres.DB)
}

func (s *PostgresGatewaySuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
}

func (s *PostgresGatewaySuite) company(number vat.Number) uuid.UUID {
	ctx := context.Background()
	s.Require().NoError(s.companies.UpsertBatch(ctx, []*companymodels.Company{
		{EnterpriseNumber: number, Name: "Company " + number.String()},
	}))
	company, err := s.companies.FindByNumber(ctx, number)
	s.Require().NoError(err)
	return company.ID
}

func (s *PostgresGatewaySuite) account(companyID uuid.UUID, reference string) *models.AnnualAccount {
	ctx := context.Background()
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	s.Require().NoError(s.store.CreateAccounts(ctx, []*models.AnnualAccount{
		{CompanyID: companyID, Reference: reference, EndFiscalYear: &end},
	}))
	stored, err := s.store.ByReferences(ctx, []string{reference})
	s.Require().NoError(err)
	s.Require().Contains(stored, reference)
	return stored[reference]
}

func (s *PostgresGatewaySuite) TestReferenceUniquenessAcrossCompanies() {
	ctx := context.Background()
	first := s.company("0123456789")
	second := s.company("0222222222")

	s.account(first, "A1")
	err := s.store.CreateAccounts(ctx, []*models.AnnualAccount{
		{CompanyID: second, Reference: "A1"},
	})
	s.Error(err, "reference is a global natural key")

	existing, err := s.store.ExistingReferences(ctx, []string{"A1", "A2"})
	s.Require().NoError(err)
	s.Equal(map[string]bool{"A1": true}, existing)
}

func (s *PostgresGatewaySuite) TestRubricRoundTrip() {
	ctx := context.Background()
	account := s.account(s.company("0123456789"), "A1")

	s.Require().NoError(s.store.CreateRubrics(ctx, []*models.FinancialRubric{
		{AnnualAccountID: account.ID, Code: "10/15", Value: decimal.RequireFromString("1000.50")},
		{AnnualAccountID: account.ID, Code: "9900", Value: decimal.NewFromInt(-42)},
	}))

	rubrics, err := s.store.RubricsByAccount(ctx, account.ID)
	s.Require().NoError(err)
	s.Require().Len(rubrics, 2)
	s.Equal("10/15", rubrics[0].Code)
	s.True(rubrics[0].Value.Equal(decimal.RequireFromString("1000.50")))
}

func (s *PostgresGatewaySuite) TestPersonGetOrCreate() {
	ctx := context.Background()

	first, err := s.store.GetOrCreate(ctx, "Jan", "Peeters")
	s.Require().NoError(err)
	again, err := s.store.GetOrCreate(ctx, "Jan", "Peeters")
	s.Require().NoError(err)
	s.Equal(first.ID, again.ID)

	other, err := s.store.GetOrCreate(ctx, "An", "Peeters")
	s.Require().NoError(err)
	s.NotEqual(first.ID, other.ID)
}

func (s *PostgresGatewaySuite) TestAdministratorWithRepresentatives() {
	ctx := context.Background()
	account := s.account(s.company("0123456789"), "A1")
	administering := s.company("0222222222")

	person, err := s.store.GetOrCreate(ctx, "Jan", "Peeters")
	s.Require().NoError(err)

	s.Require().NoError(s.store.CreateAdministrator(ctx, &models.Administrator{
		AnnualAccountID:        account.ID,
		AdministeringCompanyID: &administering,
		Mandate:                "Bestuurder",
		Representatives:        []*models.Person{person},
	}))

	admins, err := s.store.AdministratorsByAccount(ctx, account.ID)
	s.Require().NoError(err)
	s.Require().Len(admins, 1)
	s.Equal("Bestuurder", admins[0].Mandate)
	s.Require().NotNil(admins[0].AdministeringCompanyID)
	s.Equal(administering, *admins[0].AdministeringCompanyID)
	s.Require().Len(admins[0].Representatives, 1)
	s.Equal("Jan", admins[0].Representatives[0].FirstName)
}

func (s *PostgresGatewaySuite) TestParticipationRoundTrip() {
	ctx := context.Background()
	account := s.account(s.company("0123456789"), "A1")
	held := s.company("0222222222")

	s.Require().NoError(s.store.CreateParticipations(ctx, []*models.Participation{
		{AnnualAccountID: account.ID, HeldCompanyID: held, Percentage: decimal.RequireFromString("25.50"), StockCount: 1200},
	}))

	parts, err := s.store.ParticipationsByAccount(ctx, account.ID)
	s.Require().NoError(err)
	s.Require().Len(parts, 1)
	s.Equal(held, parts[0].HeldCompanyID)
	s.True(parts[0].Percentage.Equal(decimal.RequireFromString("25.50")))
	s.Equal(int64(1200), parts[0].StockCount)
}

func (s *PostgresGatewaySuite) TestDeleteByCompanyCascades() {
	ctx := context.Background()
	companyID := s.company("0123456789")
	account := s.account(companyID, "A1")

	s.Require().NoError(s.store.CreateRubrics(ctx, []*models.FinancialRubric{
		{AnnualAccountID: account.ID, Code: "9900", Value: decimal.NewFromInt(1)},
	}))

	s.Require().NoError(s.store.DeleteByCompany(ctx, companyID))

	count, err := s.store.CountByCompany(ctx, companyID)
	s.Require().NoError(err)
	s.Zero(count)

	rubrics, err := s.store.RubricsByAccount(ctx, account.ID)
	s.Require().NoError(err)
	s.Empty(rubrics)
}

func (s *PostgresGatewaySuite) TestTxRunnerRollsBackOnError() {
	ctx := context.Background()
	companyID := s.company("0123456789")

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.CreateAccounts(ctx, []*models.AnnualAccount{
			{CompanyID: companyID, Reference: "A1"},
		}); err != nil {
			return err
		}
		// Duplicate reference forces the whole transaction to roll back.
		return s.store.CreateAccounts(ctx, []*models.AnnualAccount{
			{CompanyID: companyID, Reference: "A1"},
		})
	})
	s.Error(err)

	count, err := s.store.CountByCompany(ctx, companyID)
	s.Require().NoError(err)
	s.Zero(count, "nothing from the failed transaction is visible")
}
