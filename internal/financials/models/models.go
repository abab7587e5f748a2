package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AnnualAccount is one fiscal-period filing. The external reference number is
// a global natural key: reconciliation must never create a second row for a
// reference it has already stored, regardless of which company owns it.
type AnnualAccount struct {
	ID            uuid.UUID
	CompanyID     uuid.UUID
	Reference     string
	EndFiscalYear *time.Time
	CreatedAt     time.Time
}

// FinancialRubric is a coded monetary line item of one filing. Only
// current-period rubrics are kept; prior-period duplicates in the same
// payload are discarded before rows are built.
type FinancialRubric struct {
	ID              uuid.UUID
	AnnualAccountID uuid.UUID
	Code            string
	Value           decimal.Decimal
}

// Person is a natural person keyed by the trimmed (first, last) name pair and
// shared across all administrator roles system-wide.
type Person struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
}

// Administrator is one governance role on a filing. Either an administering
// company is set, or the role is held by its representatives; a row with
// neither is invalid and must not be created.
type Administrator struct {
	ID                     uuid.UUID
	AnnualAccountID        uuid.UUID
	AdministeringCompanyID *uuid.UUID
	Mandate                string
	Representatives        []*Person
}

// Valid reports whether the invariant above holds.
func (a *Administrator) Valid() bool {
	return a.AdministeringCompanyID != nil || len(a.Representatives) > 0
}

// Participation is a directed shareholding edge scoped to one filing.
type Participation struct {
	ID              uuid.UUID
	AnnualAccountID uuid.UUID
	HeldCompanyID   uuid.UUID
	Percentage      decimal.Decimal
	StockCount      int64
}

// AdministratorSource is the tagged origin of an administrator entry: a legal
// entity carrying its raw upstream identifier, or a natural person. It
// unifies downstream handling of the two upstream administrator shapes; the
// identifier is kept raw so unresolvable entities still travel through the
// drop path instead of failing construction.
type AdministratorSource struct {
	companyIdentifier *string
}

func LegalEntity(identifier string) AdministratorSource {
	return AdministratorSource{companyIdentifier: &identifier}
}

func NaturalPerson() AdministratorSource {
	return AdministratorSource{}
}

// CompanyIdentifier returns the raw upstream identifier when the source is a
// legal entity.
func (s AdministratorSource) CompanyIdentifier() (string, bool) {
	if s.companyIdentifier == nil {
		return "", false
	}
	return *s.companyIdentifier, true
}
