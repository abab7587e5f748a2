// Package resolver caches company and person lookups for the lifetime of one
// reconciliation run. Companies are pre-populated in bulk before filings are
// decomposed; persons are created lazily on first sight.
package resolver

import (
	"context"
	"fmt"
	"strings"

	companymodels "github.com/desmedtandreas/companions-app-backend/internal/companies/models"
	companystore "github.com/desmedtandreas/companions-app-backend/internal/companies/store"
	"github.com/desmedtandreas/companions-app-backend/internal/financials/models"
	"github.com/desmedtandreas/companions-app-backend/internal/financials/store"
	"github.com/desmedtandreas/companions-app-backend/pkg/vat"
)

// Cache is scoped to a single run and is not safe for concurrent use. Runs
// execute inside one transaction, so the cache never outlives the data it
// mirrors.
type Cache struct {
	companies companystore.CompanyStore
	persons   store.PersonStore

	companyByNumber map[vat.Number]*companymodels.Company
	personByName    map[string]*models.Person
}

func New(companies companystore.CompanyStore, persons store.PersonStore) *Cache {
	return &Cache{
		companies:       companies,
		persons:         persons,
		companyByNumber: make(map[vat.Number]*companymodels.Company),
		personByName:    make(map[string]*models.Person),
	}
}

// Build pre-populates the company side of the cache with one bulk lookup.
// Unknown numbers are simply absent afterwards; they never trigger creation.
func (c *Cache) Build(ctx context.Context, numbers []vat.Number) error {
	seen := make(map[vat.Number]bool, len(numbers))
	distinct := make([]vat.Number, 0, len(numbers))
	for _, n := range numbers {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		distinct = append(distinct, n)
	}
	if len(distinct) == 0 {
		return nil
	}
	found, err := c.companies.FindByNumbers(ctx, distinct)
	if err != nil {
		return fmt.Errorf("resolver build: %w", err)
	}
	for number, company := range found {
		c.companyByNumber[number] = company
	}
	return nil
}

// Company returns the cached company for a number, or false when the number
// is unknown. It never reaches the store after Build.
func (c *Cache) Company(number vat.Number) (*companymodels.Company, bool) {
	company, ok := c.companyByNumber[number]
	return company, ok
}

// ResolveOrCreatePerson trims both names, rejects an entry with neither, and
// returns the one persisted row for the pair, creating it on first sight.
func (c *Cache) ResolveOrCreatePerson(ctx context.Context, firstName, lastName string) (*models.Person, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if firstName == "" && lastName == "" {
		return nil, fmt.Errorf("person with empty name pair")
	}

	key := firstName + "\x00" + lastName
	if person, ok := c.personByName[key]; ok {
		return person, nil
	}
	person, err := c.persons.GetOrCreate(ctx, firstName, lastName)
	if err != nil {
		return nil, fmt.Errorf("resolve person: %w", err)
	}
	c.personByName[key] = person
	return person, nil
}
