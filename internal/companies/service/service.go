// Package service exposes company lookups and ties them to the financial
// data: a detail request for a company that was never reconciled triggers an
// import, synchronously for the blocking detail view and through the job
// queue for the listing endpoint.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/desmedtandreas/companions-app-backend/internal/companies/models"
	"github.com/desmedtandreas/companions-app-backend/internal/companies/store"
	"github.com/desmedtandreas/companions-app-backend/internal/financials/importer"
	finmodels "github.com/desmedtandreas/companions-app-backend/internal/financials/models"
	finstore "github.com/desmedtandreas/companions-app-backend/internal/financials/store"
	"github.com/desmedtandreas/companions-app-backend/pkg/platform/sentinel"
	"github.com/desmedtandreas/companions-app-backend/pkg/vat"
)

const (
	defaultSearchLimit = 25
	maxSearchLimit     = 100

	legalFormCategory = "legal_form"
)

// Importer runs a blocking reconciliation for one company.
type Importer interface {
	Run(ctx context.Context, raw string) (*importer.Result, error)
}

// Enqueuer schedules a reconciliation without blocking the request.
type Enqueuer interface {
	Enqueue(ctx context.Context, number vat.Number) error
}

// AccountDetail is one filing with all its children, ready for rendering.
type AccountDetail struct {
	Account        *finmodels.AnnualAccount
	Rubrics        []*finmodels.FinancialRubric
	Administrators []*finmodels.Administrator
	Participations []*finmodels.Participation
}

// CompanyDetail is the full company view.
type CompanyDetail struct {
	Company        *models.Company
	LegalFormLabel string
	Addresses      []*models.Address
	Accounts       []*AccountDetail
}

type Service struct {
	companies store.Store
	filings   finstore.Store
	importer  Importer
	enqueuer  Enqueuer
	logger    *slog.Logger
}

// New builds the service. Importer and enqueuer are optional; without them
// lookups still work but never trigger reconciliation.
func New(companies store.Store, filings finstore.Store, imp Importer, enq Enqueuer, logger *slog.Logger) *Service {
	return &Service{
		companies: companies,
		filings:   filings,
		importer:  imp,
		enqueuer:  enq,
		logger:    logger,
	}
}

// Search matches companies by name fragment or enterprise number fragment.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]*models.Company, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	return s.companies.Search(ctx, query, limit)
}

// Get returns one company by its enterprise number in any accepted notation.
func (s *Service) Get(ctx context.Context, raw string) (*models.Company, error) {
	number, err := vat.Parse(raw)
	if err != nil {
		return nil, err
	}
	return s.companies.FindByNumber(ctx, number)
}

// Full returns the company with addresses and all filing data. A company
// that has no accounts yet is reconciled first, blocking the request; a
// failed reconciliation degrades to whatever is stored instead of failing
// the view.
func (s *Service) Full(ctx context.Context, raw string) (*CompanyDetail, error) {
	company, err := s.Get(ctx, raw)
	if err != nil {
		return nil, err
	}

	if s.importer != nil {
		count, err := s.filings.CountByCompany(ctx, company.ID)
		if err != nil {
			return nil, err
		}
		if count == 0 {
			if _, err := s.importer.Run(ctx, company.EnterpriseNumber.String()); err != nil {
				s.logger.WarnContext(ctx, "inline reconciliation failed, serving stored data",
					slog.String("enterprise_number", company.EnterpriseNumber.String()),
					slog.Any("error", err))
			} else if refreshed, err := s.companies.FindByNumber(ctx, company.EnterpriseNumber); err == nil {
				company = refreshed
			}
		}
	}

	detail := &CompanyDetail{Company: company, LegalFormLabel: s.legalFormLabel(ctx, company)}
	detail.Addresses, err = s.companies.AddressesByCompany(ctx, company.ID)
	if err != nil {
		return nil, fmt.Errorf("addresses: %w", err)
	}

	accounts, err := s.filings.ListByCompany(ctx, company.ID)
	if err != nil {
		return nil, fmt.Errorf("accounts: %w", err)
	}
	for _, account := range accounts {
		entry := &AccountDetail{Account: account}
		if entry.Rubrics, err = s.filings.RubricsByAccount(ctx, account.ID); err != nil {
			return nil, fmt.Errorf("rubrics of %s: %w", account.Reference, err)
		}
		if entry.Administrators, err = s.filings.AdministratorsByAccount(ctx, account.ID); err != nil {
			return nil, fmt.Errorf("administrators of %s: %w", account.Reference, err)
		}
		if entry.Participations, err = s.filings.ParticipationsByAccount(ctx, account.ID); err != nil {
			return nil, fmt.Errorf("participations of %s: %w", account.Reference, err)
		}
		detail.Accounts = append(detail.Accounts, entry)
	}
	return detail, nil
}

// AnnualAccounts lists a company's filings. When none are stored yet a
// reconciliation job is enqueued and the caller is told to poll again.
func (s *Service) AnnualAccounts(ctx context.Context, raw string) ([]*finmodels.AnnualAccount, bool, error) {
	company, err := s.Get(ctx, raw)
	if err != nil {
		return nil, false, err
	}
	accounts, err := s.filings.ListByCompany(ctx, company.ID)
	if err != nil {
		return nil, false, err
	}
	if len(accounts) > 0 || s.enqueuer == nil {
		return accounts, false, nil
	}
	if err := s.enqueuer.Enqueue(ctx, company.EnterpriseNumber); err != nil {
		s.logger.ErrorContext(ctx, "enqueue reconciliation failed",
			slog.String("enterprise_number", company.EnterpriseNumber.String()),
			slog.Any("error", err))
		return accounts, false, nil
	}
	return accounts, true, nil
}

func (s *Service) legalFormLabel(ctx context.Context, company *models.Company) string {
	if company.LegalFormCode == "" {
		return ""
	}
	label, err := s.companies.ResolveLabel(ctx, legalFormCategory, company.LegalFormCode)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "legal form lookup failed", slog.Any("error", err))
		}
		return company.LegalFormCode
	}
	return label
}
