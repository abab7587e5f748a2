// Package store is the persistence gateway for filing data: batched creates
// and natural-key lookups for annual accounts and their children. Batch
// operations are commutative within one call so implementations are free to
// order rows as they like, but parents must always be committed before
// children (the importer guarantees the call order).
package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/desmedtandreas/companions-app-backend/internal/financials/models"
	txcontext "github.com/desmedtandreas/companions-app-backend/pkg/platform/tx"
)

type AccountStore interface {
	// ExistingReferences reports which of the given reference numbers are
	// already stored. The check is global: references are unique across
	// companies, not per company.
	ExistingReferences(ctx context.Context, references []string) (map[string]bool, error)
	CreateAccounts(ctx context.Context, accounts []*models.AnnualAccount) error
	// ByReferences re-reads created rows so child writes can attach to
	// their parent.
	ByReferences(ctx context.Context, references []string) (map[string]*models.AnnualAccount, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.AnnualAccount, error)
	CountByCompany(ctx context.Context, companyID uuid.UUID) (int, error)
	// DeleteByCompany supports the wipe-then-rebuild policy; children go
	// with their parents.
	DeleteByCompany(ctx context.Context, companyID uuid.UUID) error
}

type RubricStore interface {
	CreateRubrics(ctx context.Context, rubrics []*models.FinancialRubric) error
	RubricsByAccount(ctx context.Context, accountID uuid.UUID) ([]*models.FinancialRubric, error)
}

type PersonStore interface {
	// GetOrCreate resolves the unique (first, last) pair, creating the row
	// on first sight. Names must already be normalized by the caller.
	GetOrCreate(ctx context.Context, firstName, lastName string) (*models.Person, error)
}

type AdministratorStore interface {
	// CreateAdministrator persists the role and attaches its
	// representative set.
	CreateAdministrator(ctx context.Context, administrator *models.Administrator) error
	AdministratorsByAccount(ctx context.Context, accountID uuid.UUID) ([]*models.Administrator, error)
}

type ParticipationStore interface {
	CreateParticipations(ctx context.Context, participations []*models.Participation) error
	ParticipationsByAccount(ctx context.Context, accountID uuid.UUID) ([]*models.Participation, error)
}

// Store is the full gateway, implemented by Memory and Postgres.
type Store interface {
	AccountStore
	RubricStore
	PersonStore
	AdministratorStore
	ParticipationStore
}

// TxRunner wraps a unit of work in one transaction scope. Stores observe the
// transaction through the context.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SQLTxRunner runs the unit of work in a database transaction.
type SQLTxRunner struct {
	db *sql.DB
}

func NewSQLTxRunner(db *sql.DB) *SQLTxRunner {
	return &SQLTxRunner{db: db}
}

func (r *SQLTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(txcontext.WithTx(ctx, sqlTx)); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	return sqlTx.Commit()
}

// NoopTxRunner runs the unit of work directly; memory stores have no
// rollback, so tests asserting abort semantics use the SQL runner.
type NoopTxRunner struct{}

func (NoopTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
