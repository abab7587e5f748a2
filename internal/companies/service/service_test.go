package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desmedtandreas/companions-app-backend/internal/companies/models"
	companystore "github.com/desmedtandreas/companions-app-backend/internal/companies/store"
	"github.com/desmedtandreas/companions-app-backend/internal/financials/importer"
	finmodels "github.com/desmedtandreas/companions-app-backend/internal/financials/models"
	finstore "github.com/desmedtandreas/companions-app-backend/internal/financials/store"
	"github.com/desmedtandreas/companions-app-backend/pkg/vat"
)

type inlineImporter struct {
	filings *finstore.Memory
	target  *models.Company
	err     error
	runs    int
}

func (f *inlineImporter) Run(ctx context.Context, _ string) (*importer.Result, error) {
	f.runs++
	if f.err != nil {
		return nil, f.err
	}
	err := f.filings.CreateAccounts(ctx, []*finmodels.AnnualAccount{
		{CompanyID: f.target.ID, Reference: "A1"},
	})
	return &importer.Result{Imported: 1, Status: importer.StatusCompleted}, err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seed(t *testing.T, companies *companystore.Memory, c *models.Company) *models.Company {
	t.Helper()
	require.NoError(t, companies.UpsertBatch(context.Background(), []*models.Company{c}))
	stored, err := companies.FindByNumber(context.Background(), c.EnterpriseNumber)
	require.NoError(t, err)
	return stored
}

func TestFullTriggersInlineImportOnce(t *testing.T) {
	ctx := context.Background()
	companies := companystore.NewMemory()
	filings := finstore.NewMemory()
	company := seed(t, companies, &models.Company{EnterpriseNumber: "0123456789", Name: "Acme NV"})

	imp := &inlineImporter{filings: filings, target: company}
	svc := New(companies, filings, imp, nil, discard())

	detail, err := svc.Full(ctx, "0123456789")
	require.NoError(t, err)
	assert.Equal(t, 1, imp.runs)
	require.Len(t, detail.Accounts, 1)
	assert.Equal(t, "A1", detail.Accounts[0].Account.Reference)

	// Second call sees stored accounts and does not reimport.
	_, err = svc.Full(ctx, "0123456789")
	require.NoError(t, err)
	assert.Equal(t, 1, imp.runs)
}

func TestFullDegradesWhenImportFails(t *testing.T) {
	companies := companystore.NewMemory()
	filings := finstore.NewMemory()
	company := seed(t, companies, &models.Company{EnterpriseNumber: "0123456789", Name: "Acme NV"})

	imp := &inlineImporter{filings: filings, target: company, err: errors.New("registry down")}
	svc := New(companies, filings, imp, nil, discard())

	detail, err := svc.Full(context.Background(), "0123456789")
	require.NoError(t, err, "import failure must not fail the view")
	assert.Equal(t, "Acme NV", detail.Company.Name)
	assert.Empty(t, detail.Accounts)
}

func TestFullResolvesLegalFormLabel(t *testing.T) {
	ctx := context.Background()
	companies := companystore.NewMemory()
	seed(t, companies, &models.Company{EnterpriseNumber: "0123456789", Name: "Acme NV", LegalFormCode: "014"})
	require.NoError(t, companies.UpsertLabels(ctx, []*models.CodeLabel{
		{Category: "legal_form", Code: "014", Name: "Naamloze vennootschap"},
	}))

	svc := New(companies, finstore.NewMemory(), nil, nil, discard())
	detail, err := svc.Full(ctx, "0123456789")
	require.NoError(t, err)
	assert.Equal(t, "Naamloze vennootschap", detail.LegalFormLabel)
}

func TestFullFallsBackToRawCode(t *testing.T) {
	companies := companystore.NewMemory()
	seed(t, companies, &models.Company{EnterpriseNumber: "0123456789", LegalFormCode: "014"})

	svc := New(companies, finstore.NewMemory(), nil, nil, discard())
	detail, err := svc.Full(context.Background(), "0123456789")
	require.NoError(t, err)
	assert.Equal(t, "014", detail.LegalFormLabel)
}

func TestSearchClampsLimit(t *testing.T) {
	ctx := context.Background()
	companies := companystore.NewMemory()
	for i := 0; i < 30; i++ {
		seed(t, companies, &models.Company{
			EnterpriseNumber: vat.Number(fmt.Sprintf("%010d", i)),
			Name:             "Company",
		})
	}

	svc := New(companies, finstore.NewMemory(), nil, nil, discard())
	results, err := svc.Search(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, results, defaultSearchLimit)
}
