package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	companymodels "github.com/desmedtandreas/companions-app-backend/internal/companies/models"
	companystore "github.com/desmedtandreas/companions-app-backend/internal/companies/store"
	"github.com/desmedtandreas/companions-app-backend/internal/financials/importer"
	finmodels "github.com/desmedtandreas/companions-app-backend/internal/financials/models"
	finstore "github.com/desmedtandreas/companions-app-backend/internal/financials/store"
	"github.com/desmedtandreas/companions-app-backend/internal/platform/kafka"
)

type fakeRunner struct {
	mu   sync.Mutex
	runs []string
	err  error
}

func (f *fakeRunner) Run(_ context.Context, raw string) (*importer.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, raw)
	if f.err != nil {
		return nil, f.err
	}
	return &importer.Result{Status: importer.StatusCompleted}, nil
}

type denyLocker struct{}

func (denyLocker) Acquire(context.Context, string, time.Duration) (bool, error) { return false, nil }
func (denyLocker) Release(context.Context, string)                              {}

type recordingLocker struct {
	acquired []string
	released []string
}

func (l *recordingLocker) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	l.acquired = append(l.acquired, key)
	return true, nil
}

func (l *recordingLocker) Release(_ context.Context, key string) {
	l.released = append(l.released, key)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func message(value string) *kafka.Message {
	return &kafka.Message{Topic: "financials.import.jobs", Value: []byte(value)}
}

func seedCompany(t *testing.T, companies *companystore.Memory) *companymodels.Company {
	t.Helper()
	require.NoError(t, companies.UpsertBatch(context.Background(), []*companymodels.Company{
		{EnterpriseNumber: "0123456789", Name: "Acme NV"},
	}))
	company, err := companies.FindByNumber(context.Background(), "0123456789")
	require.NoError(t, err)
	return company
}

func TestHandleRunsImportForFreshCompany(t *testing.T) {
	companies := companystore.NewMemory()
	seedCompany(t, companies)
	runner := &fakeRunner{}
	locker := &recordingLocker{}
	handler := NewHandler(runner, companies, finstore.NewMemory(), locker, 0, time.Minute, discard())

	err := handler.Handle(context.Background(), message(`{"enterprise_number":"0123456789"}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"0123456789"}, runner.runs)
	assert.Equal(t, []string{"reconcile:0123456789"}, locker.acquired)
	assert.Equal(t, []string{"reconcile:0123456789"}, locker.released)
}

func TestHandleDropsMalformedPayload(t *testing.T) {
	runner := &fakeRunner{}
	handler := NewHandler(runner, companystore.NewMemory(), finstore.NewMemory(), nil, 0, time.Minute, discard())

	require.NoError(t, handler.Handle(context.Background(), message(`{not json`)))
	require.NoError(t, handler.Handle(context.Background(), message(`{"enterprise_number":"garbage"}`)))
	assert.Empty(t, runner.runs, "poison messages must not reach the importer")
}

func TestHandleDropsUnknownCompany(t *testing.T) {
	runner := &fakeRunner{}
	handler := NewHandler(runner, companystore.NewMemory(), finstore.NewMemory(), nil, 0, time.Minute, discard())

	require.NoError(t, handler.Handle(context.Background(), message(`{"enterprise_number":"0123456789"}`)))
	assert.Empty(t, runner.runs)
}

func TestHandleSkipsWhenLeaseHeld(t *testing.T) {
	companies := companystore.NewMemory()
	seedCompany(t, companies)
	runner := &fakeRunner{}
	handler := NewHandler(runner, companies, finstore.NewMemory(), denyLocker{}, 0, time.Minute, discard())

	require.NoError(t, handler.Handle(context.Background(), message(`{"enterprise_number":"0123456789"}`)))
	assert.Empty(t, runner.runs)
}

func TestHandleSkipsCompanyWithAccounts(t *testing.T) {
	companies := companystore.NewMemory()
	company := seedCompany(t, companies)
	filings := finstore.NewMemory()
	require.NoError(t, filings.CreateAccounts(context.Background(), []*finmodels.AnnualAccount{
		{CompanyID: company.ID, Reference: "A1"},
	}))

	runner := &fakeRunner{}
	handler := NewHandler(runner, companies, filings, nil, 0, time.Minute, discard())
	require.NoError(t, handler.Handle(context.Background(), message(`{"enterprise_number":"0123456789"}`)))
	assert.Empty(t, runner.runs, "lazy import only fires for companies without accounts")
}

func TestHandleCommitsAwayFailedRuns(t *testing.T) {
	companies := companystore.NewMemory()
	seedCompany(t, companies)
	runner := &fakeRunner{err: errors.New("upstream down")}
	handler := NewHandler(runner, companies, finstore.NewMemory(), nil, 0, time.Minute, discard())

	assert.NoError(t, handler.Handle(context.Background(), message(`{"enterprise_number":"0123456789"}`)),
		"failed runs are logged, not redelivered")
}

func TestHandleNormalizesNotation(t *testing.T) {
	companies := companystore.NewMemory()
	seedCompany(t, companies)
	runner := &fakeRunner{}
	handler := NewHandler(runner, companies, finstore.NewMemory(), nil, 0, time.Minute, discard())

	require.NoError(t, handler.Handle(context.Background(), message(`{"enterprise_number":"BE 0123.456.789"}`)))
	assert.Equal(t, []string{"0123456789"}, runner.runs)
}
