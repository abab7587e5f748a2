package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/desmedtandreas/companions-app-backend/internal/financials/models"
	txcontext "github.com/desmedtandreas/companions-app-backend/pkg/platform/tx"
)

// Postgres persists filing data in PostgreSQL. All writes of one
// reconciliation run share the transaction carried in the context.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (p *Postgres) conn(ctx context.Context) dbConn {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return p.db
}

func inPlaceholders(count, offset int) string {
	parts := make([]string, count)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", offset+i+1)
	}
	return strings.Join(parts, ", ")
}

func (p *Postgres) ExistingReferences(ctx context.Context, references []string) (map[string]bool, error) {
	out := make(map[string]bool, len(references))
	if len(references) == 0 {
		return out, nil
	}
	args := make([]any, len(references))
	for i, ref := range references {
		args[i] = ref
	}
	rows, err := p.conn(ctx).QueryContext(ctx,
		`SELECT reference FROM annual_accounts WHERE reference IN (`+inPlaceholders(len(references), 0)+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("existing references: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		out[ref] = true
	}
	return out, rows.Err()
}

func (p *Postgres) CreateAccounts(ctx context.Context, accounts []*models.AnnualAccount) error {
	if len(accounts) == 0 {
		return nil
	}
	var (
		values []string
		args   []any
	)
	for i, a := range accounts {
		id := a.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		base := i * 4
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4))
		args = append(args, id, a.CompanyID, a.Reference, a.EndFiscalYear)
	}
	query := `
		INSERT INTO annual_accounts (id, company_id, reference, end_fiscal_year)
		VALUES ` + strings.Join(values, ", ")
	if _, err := p.conn(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create annual accounts: %w", err)
	}
	return nil
}

const accountColumns = `id, company_id, reference, end_fiscal_year, created_at`

func (p *Postgres) ByReferences(ctx context.Context, references []string) (map[string]*models.AnnualAccount, error) {
	out := make(map[string]*models.AnnualAccount, len(references))
	if len(references) == 0 {
		return out, nil
	}
	args := make([]any, len(references))
	for i, ref := range references {
		args[i] = ref
	}
	rows, err := p.conn(ctx).QueryContext(ctx,
		`SELECT `+accountColumns+` FROM annual_accounts WHERE reference IN (`+inPlaceholders(len(references), 0)+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("accounts by references: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a models.AnnualAccount
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.Reference, &a.EndFiscalYear, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan annual account: %w", err)
		}
		out[a.Reference] = &a
	}
	return out, rows.Err()
}

func (p *Postgres) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.AnnualAccount, error) {
	rows, err := p.conn(ctx).QueryContext(ctx,
		`SELECT `+accountColumns+` FROM annual_accounts
		 WHERE company_id = $1
		 ORDER BY end_fiscal_year DESC NULLS LAST`, companyID)
	if err != nil {
		return nil, fmt.Errorf("accounts by company: %w", err)
	}
	defer rows.Close()
	var out []*models.AnnualAccount
	for rows.Next() {
		var a models.AnnualAccount
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.Reference, &a.EndFiscalYear, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan annual account: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (p *Postgres) CountByCompany(ctx context.Context, companyID uuid.UUID) (int, error) {
	var count int
	err := p.conn(ctx).QueryRowContext(ctx,
		`SELECT count(*) FROM annual_accounts WHERE company_id = $1`, companyID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return count, nil
}

func (p *Postgres) DeleteByCompany(ctx context.Context, companyID uuid.UUID) error {
	if _, err := p.conn(ctx).ExecContext(ctx,
		`DELETE FROM annual_accounts WHERE company_id = $1`, companyID); err != nil {
		return fmt.Errorf("delete accounts: %w", err)
	}
	return nil
}

func (p *Postgres) CreateRubrics(ctx context.Context, rubrics []*models.FinancialRubric) error {
	if len(rubrics) == 0 {
		return nil
	}
	var (
		values []string
		args   []any
	)
	for i, r := range rubrics {
		id := r.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		base := i * 4
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4))
		args = append(args, id, r.AnnualAccountID, r.Code, r.Value)
	}
	query := `
		INSERT INTO financial_rubrics (id, annual_account_id, code, value)
		VALUES ` + strings.Join(values, ", ")
	if _, err := p.conn(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create rubrics: %w", err)
	}
	return nil
}

func (p *Postgres) RubricsByAccount(ctx context.Context, accountID uuid.UUID) ([]*models.FinancialRubric, error) {
	rows, err := p.conn(ctx).QueryContext(ctx,
		`SELECT id, annual_account_id, code, value FROM financial_rubrics WHERE annual_account_id = $1 ORDER BY code`,
		accountID)
	if err != nil {
		return nil, fmt.Errorf("rubrics by account: %w", err)
	}
	defer rows.Close()
	var out []*models.FinancialRubric
	for rows.Next() {
		var r models.FinancialRubric
		if err := rows.Scan(&r.ID, &r.AnnualAccountID, &r.Code, &r.Value); err != nil {
			return nil, fmt.Errorf("scan rubric: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (p *Postgres) GetOrCreate(ctx context.Context, firstName, lastName string) (*models.Person, error) {
	// Insert-first keeps this a single round trip in the common case while
	// the ON CONFLICT upsert makes concurrent runs converge on one row.
	var person models.Person
	err := p.conn(ctx).QueryRowContext(ctx, `
		INSERT INTO persons (id, first_name, last_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (first_name, last_name) DO UPDATE SET first_name = EXCLUDED.first_name
		RETURNING id, first_name, last_name`,
		uuid.New(), firstName, lastName).Scan(&person.ID, &person.FirstName, &person.LastName)
	if err != nil {
		return nil, fmt.Errorf("get or create person: %w", err)
	}
	return &person, nil
}

func (p *Postgres) CreateAdministrator(ctx context.Context, administrator *models.Administrator) error {
	if !administrator.Valid() {
		return fmt.Errorf("administrator without company or representatives")
	}
	id := administrator.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err := p.conn(ctx).ExecContext(ctx, `
		INSERT INTO administrators (id, annual_account_id, administering_company_id, mandate)
		VALUES ($1, $2, $3, $4)`,
		id, administrator.AnnualAccountID, administrator.AdministeringCompanyID, administrator.Mandate)
	if err != nil {
		return fmt.Errorf("create administrator: %w", err)
	}
	for _, rep := range administrator.Representatives {
		_, err := p.conn(ctx).ExecContext(ctx, `
			INSERT INTO administrator_representatives (administrator_id, person_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, id, rep.ID)
		if err != nil {
			return fmt.Errorf("attach representative: %w", err)
		}
	}
	return nil
}

func (p *Postgres) AdministratorsByAccount(ctx context.Context, accountID uuid.UUID) ([]*models.Administrator, error) {
	rows, err := p.conn(ctx).QueryContext(ctx, `
		SELECT id, annual_account_id, administering_company_id, mandate
		FROM administrators WHERE annual_account_id = $1`, accountID)
	if err != nil {
		return nil, fmt.Errorf("administrators by account: %w", err)
	}
	defer rows.Close()
	var out []*models.Administrator
	for rows.Next() {
		var a models.Administrator
		if err := rows.Scan(&a.ID, &a.AnnualAccountID, &a.AdministeringCompanyID, &a.Mandate); err != nil {
			return nil, fmt.Errorf("scan administrator: %w", err)
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, a := range out {
		reps, err := p.representatives(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		a.Representatives = reps
	}
	return out, nil
}

func (p *Postgres) representatives(ctx context.Context, administratorID uuid.UUID) ([]*models.Person, error) {
	rows, err := p.conn(ctx).QueryContext(ctx, `
		SELECT p.id, p.first_name, p.last_name
		FROM administrator_representatives ar
		JOIN persons p ON p.id = ar.person_id
		WHERE ar.administrator_id = $1
		ORDER BY p.last_name, p.first_name`, administratorID)
	if err != nil {
		return nil, fmt.Errorf("representatives: %w", err)
	}
	defer rows.Close()
	var out []*models.Person
	for rows.Next() {
		var person models.Person
		if err := rows.Scan(&person.ID, &person.FirstName, &person.LastName); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		out = append(out, &person)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateParticipations(ctx context.Context, participations []*models.Participation) error {
	if len(participations) == 0 {
		return nil
	}
	var (
		values []string
		args   []any
	)
	for i, part := range participations {
		id := part.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		base := i * 5
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5))
		args = append(args, id, part.AnnualAccountID, part.HeldCompanyID, part.Percentage, part.StockCount)
	}
	query := `
		INSERT INTO participations (id, annual_account_id, held_company_id, percentage, stock_count)
		VALUES ` + strings.Join(values, ", ")
	if _, err := p.conn(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create participations: %w", err)
	}
	return nil
}

func (p *Postgres) ParticipationsByAccount(ctx context.Context, accountID uuid.UUID) ([]*models.Participation, error) {
	rows, err := p.conn(ctx).QueryContext(ctx, `
		SELECT id, annual_account_id, held_company_id, percentage, stock_count
		FROM participations WHERE annual_account_id = $1`, accountID)
	if err != nil {
		return nil, fmt.Errorf("participations by account: %w", err)
	}
	defer rows.Close()
	var out []*models.Participation
	for rows.Next() {
		var part models.Participation
		if err := rows.Scan(&part.ID, &part.AnnualAccountID, &part.HeldCompanyID, &part.Percentage, &part.StockCount); err != nil {
			return nil, fmt.Errorf("scan participation: %w", err)
		}
		out = append(out, &part)
	}
	return out, rows.Err()
}
