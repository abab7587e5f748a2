// Package store persists companies, their addresses and registry code
// labels. Interfaces are split per concern so services and the financial
// importer declare only what they touch; the memory and postgres types
// implement all of them.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/desmedtandreas/companions-app-backend/internal/companies/models"
	"github.com/desmedtandreas/companions-app-backend/pkg/vat"
)

type CompanyStore interface {
	FindByNumber(ctx context.Context, number vat.Number) (*models.Company, error)
	// FindByNumbers is the bulk lookup feeding the per-run resolver cache;
	// numbers absent from the store are simply missing from the result.
	FindByNumbers(ctx context.Context, numbers []vat.Number) (map[vat.Number]*models.Company, error)
	Search(ctx context.Context, query string, limit int) ([]*models.Company, error)
	ListAll(ctx context.Context) ([]*models.Company, error)

	// UpsertBatch creates or updates companies keyed by enterprise number.
	UpsertBatch(ctx context.Context, companies []*models.Company) error
	RenameBatch(ctx context.Context, names map[vat.Number]string) error
	Deactivate(ctx context.Context, number vat.Number) error
	UpdateNumber(ctx context.Context, id uuid.UUID, number vat.Number) error
	SetLastSynced(ctx context.Context, id uuid.UUID, at time.Time) error
}

type AddressStore interface {
	UpsertAddress(ctx context.Context, address *models.Address) error
	AddressesByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.Address, error)
}

type CodeLabelStore interface {
	// ResolveLabel returns sentinel.ErrNotFound for unknown codes; callers
	// fall back to the raw code or a domain default.
	ResolveLabel(ctx context.Context, category, code string) (string, error)
	UpsertLabels(ctx context.Context, labels []*models.CodeLabel) error
}

// Store is the full surface, implemented by Memory and Postgres.
type Store interface {
	CompanyStore
	AddressStore
	CodeLabelStore
}
