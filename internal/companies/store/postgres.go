package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/desmedtandreas/companions-app-backend/internal/companies/models"
	"github.com/desmedtandreas/companions-app-backend/pkg/platform/sentinel"
	txcontext "github.com/desmedtandreas/companions-app-backend/pkg/platform/tx"
	"github.com/desmedtandreas/companions-app-backend/pkg/vat"
)

// Postgres persists companies in PostgreSQL. Writes join an enclosing
// transaction when one is carried in the context.
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

const companyColumns = `id, enterprise_number, name, status_code, legal_form_code, start_date, last_synced_at, created_at, updated_at`

func scanCompany(row interface{ Scan(...any) error }) (*models.Company, error) {
	var c models.Company
	var number string
	err := row.Scan(&c.ID, &number, &c.Name, &c.StatusCode, &c.LegalFormCode,
		&c.StartDate, &c.LastSyncedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.EnterpriseNumber = vat.Number(number)
	return &c, nil
}

func (p *Postgres) FindByNumber(ctx context.Context, number vat.Number) (*models.Company, error) {
	row := p.conn(ctx).QueryRowContext(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE enterprise_number = $1`, number.String())
	c, err := scanCompany(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find company by number: %w", err)
	}
	return c, nil
}

func (p *Postgres) FindByNumbers(ctx context.Context, numbers []vat.Number) (map[vat.Number]*models.Company, error) {
	out := make(map[vat.Number]*models.Company, len(numbers))
	if len(numbers) == 0 {
		return out, nil
	}
	placeholders := make([]string, len(numbers))
	args := make([]any, len(numbers))
	for i, n := range numbers {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = n.String()
	}
	rows, err := p.conn(ctx).QueryContext(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE enterprise_number IN (`+strings.Join(placeholders, ", ")+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("find companies by numbers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		out[c.EnterpriseNumber] = c
	}
	return out, rows.Err()
}

func (p *Postgres) Search(ctx context.Context, query string, limit int) ([]*models.Company, error) {
	query = strings.TrimSpace(query)
	rows, err := p.conn(ctx).QueryContext(ctx,
		`SELECT `+companyColumns+` FROM companies
		 WHERE $1 = '' OR name ILIKE '%' || $1 || '%' OR enterprise_number LIKE '%' || $1 || '%'
		 ORDER BY name
		 LIMIT $2`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search companies: %w", err)
	}
	defer rows.Close()
	return collectCompanies(rows)
}

func (p *Postgres) ListAll(ctx context.Context) ([]*models.Company, error) {
	rows, err := p.conn(ctx).QueryContext(ctx,
		`SELECT `+companyColumns+` FROM companies ORDER BY enterprise_number`)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()
	return collectCompanies(rows)
}

func collectCompanies(rows *sql.Rows) ([]*models.Company, error) {
	var out []*models.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) UpsertBatch(ctx context.Context, companies []*models.Company) error {
	if len(companies) == 0 {
		return nil
	}
	var (
		values []string
		args   []any
	)
	for i, c := range companies {
		id := c.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		base := i * 6
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6))
		args = append(args, id, c.EnterpriseNumber.String(), c.Name, c.StatusCode, c.LegalFormCode, c.StartDate)
	}
	query := `
		INSERT INTO companies (id, enterprise_number, name, status_code, legal_form_code, start_date)
		VALUES ` + strings.Join(values, ", ") + `
		ON CONFLICT (enterprise_number) DO UPDATE SET
			status_code = EXCLUDED.status_code,
			legal_form_code = EXCLUDED.legal_form_code,
			start_date = COALESCE(EXCLUDED.start_date, companies.start_date),
			name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE companies.name END,
			updated_at = now()`
	if _, err := p.conn(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert companies: %w", err)
	}
	return nil
}

func (p *Postgres) RenameBatch(ctx context.Context, names map[vat.Number]string) error {
	for n, name := range names {
		_, err := p.conn(ctx).ExecContext(ctx,
			`UPDATE companies SET name = $2, updated_at = now() WHERE enterprise_number = $1`,
			n.String(), name)
		if err != nil {
			return fmt.Errorf("rename company %s: %w", n, err)
		}
	}
	return nil
}

func (p *Postgres) Deactivate(ctx context.Context, number vat.Number) error {
	res, err := p.conn(ctx).ExecContext(ctx,
		`UPDATE companies SET status_code = '0', updated_at = now() WHERE enterprise_number = $1`,
		number.String())
	if err != nil {
		return fmt.Errorf("deactivate company: %w", err)
	}
	return requireRow(res)
}

func (p *Postgres) UpdateNumber(ctx context.Context, id uuid.UUID, number vat.Number) error {
	res, err := p.conn(ctx).ExecContext(ctx,
		`UPDATE companies SET enterprise_number = $2, updated_at = now() WHERE id = $1`,
		id, number.String())
	if err != nil {
		return fmt.Errorf("update enterprise number: %w", err)
	}
	return requireRow(res)
}

func (p *Postgres) SetLastSynced(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := p.conn(ctx).ExecContext(ctx,
		`UPDATE companies SET last_synced_at = $2, updated_at = now() WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("set last synced: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (p *Postgres) UpsertAddress(ctx context.Context, address *models.Address) error {
	id := address.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err := p.conn(ctx).ExecContext(ctx, `
		INSERT INTO addresses (id, company_id, type, street, house_number, postal_code, city, country)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (company_id, type) DO UPDATE SET
			street = EXCLUDED.street,
			house_number = EXCLUDED.house_number,
			postal_code = EXCLUDED.postal_code,
			city = EXCLUDED.city,
			country = EXCLUDED.country`,
		id, address.CompanyID, address.Type, address.Street, address.HouseNumber,
		address.PostalCode, address.City, address.Country)
	if err != nil {
		return fmt.Errorf("upsert address: %w", err)
	}
	return nil
}

func (p *Postgres) AddressesByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.Address, error) {
	rows, err := p.conn(ctx).QueryContext(ctx, `
		SELECT id, company_id, type, street, house_number, postal_code, city, country
		FROM addresses WHERE company_id = $1 ORDER BY type`, companyID)
	if err != nil {
		return nil, fmt.Errorf("addresses by company: %w", err)
	}
	defer rows.Close()
	var out []*models.Address
	for rows.Next() {
		var a models.Address
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.Type, &a.Street, &a.HouseNumber,
			&a.PostalCode, &a.City, &a.Country); err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (p *Postgres) ResolveLabel(ctx context.Context, category, code string) (string, error) {
	var name string
	err := p.conn(ctx).QueryRowContext(ctx,
		`SELECT name FROM code_labels WHERE category = $1 AND code = $2`, category, code).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve label: %w", err)
	}
	return name, nil
}

func (p *Postgres) UpsertLabels(ctx context.Context, labels []*models.CodeLabel) error {
	if len(labels) == 0 {
		return nil
	}
	var (
		values []string
		args   []any
	)
	for i, l := range labels {
		base := i * 3
		values = append(values, fmt.Sprintf("($%d, $%d, $%d)", base+1, base+2, base+3))
		args = append(args, l.Category, l.Code, l.Name)
	}
	query := `
		INSERT INTO code_labels (category, code, name)
		VALUES ` + strings.Join(values, ", ") + `
		ON CONFLICT (category, code) DO UPDATE SET name = EXCLUDED.name`
	if _, err := p.conn(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert code labels: %w", err)
	}
	return nil
}
