// Package importer reconciles a company's locally stored annual accounts
// with the registry. One run is additive: it lists the upstream references,
// imports only the ones the store does not have yet, and commits everything
// in a single transaction so a company never ends up half-imported.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	companymodels "github.com/desmedtandreas/companions-app-backend/internal/companies/models"
	companystore "github.com/desmedtandreas/companions-app-backend/internal/companies/store"
	"github.com/desmedtandreas/companions-app-backend/internal/financials/metrics"
	"github.com/desmedtandreas/companions-app-backend/internal/financials/models"
	"github.com/desmedtandreas/companions-app-backend/internal/financials/nbb"
	"github.com/desmedtandreas/companions-app-backend/internal/financials/resolver"
	"github.com/desmedtandreas/companions-app-backend/internal/financials/store"
	"github.com/desmedtandreas/companions-app-backend/pkg/platform/sentinel"
	"github.com/desmedtandreas/companions-app-backend/pkg/requestcontext"
	"github.com/desmedtandreas/companions-app-backend/pkg/vat"
)

// ErrInvalidIdentifier reports that the raw input could not be normalized
// into an enterprise number. Nothing was attempted.
var ErrInvalidIdentifier = errors.New("importer: invalid enterprise identifier")

// ErrUnknownCompany reports that the normalized number has no local company
// row. Import never creates the target company.
var ErrUnknownCompany = errors.New("importer: unknown company")

const (
	StatusCompleted = "completed"
	StatusAborted   = "aborted"

	// Mandate label applied when the registry code has no stored label.
	defaultMandate = "Bestuurder"

	mandateCategory = "mandate"

	// Rubric period marking the current exercise; prior-period restatements
	// in the same payload are discarded.
	currentPeriod = "N"

	participationShares = "shares"
)

// Result reports what one run did. Skipped lists reference numbers whose
// detail fetch failed, in listing order; the run still completes around them.
type Result struct {
	Imported int
	Skipped  []string
	Status   string
}

// Registry is the upstream read surface the engine needs.
type Registry interface {
	ListReferences(ctx context.Context, number vat.Number) ([]nbb.Reference, error)
	FetchFiling(ctx context.Context, reference string) (*nbb.Filing, error)
}

type Importer struct {
	companies companystore.Store
	filings   store.Store
	registry  Registry
	runner    store.TxRunner
	metrics   *metrics.Metrics
	logger    *slog.Logger
	rebuild   bool
}

func New(companies companystore.Store, filings store.Store, registry Registry, runner store.TxRunner, m *metrics.Metrics, logger *slog.Logger, rebuild bool) *Importer {
	return &Importer{
		companies: companies,
		filings:   filings,
		registry:  registry,
		runner:    runner,
		metrics:   m,
		logger:    logger,
		rebuild:   rebuild,
	}
}

// Run reconciles one company identified by raw input in any accepted
// notation. It returns ErrInvalidIdentifier or ErrUnknownCompany before
// touching the registry; an upstream failure on the reference listing aborts
// the run and rolls back everything, including the last-sync stamp.
func (i *Importer) Run(ctx context.Context, raw string) (*Result, error) {
	number, err := vat.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIdentifier, err)
	}

	started := requestcontext.Now(ctx)
	var result *Result
	err = i.runner.RunInTx(ctx, func(ctx context.Context) error {
		var runErr error
		result, runErr = i.run(ctx, number)
		return runErr
	})
	i.metrics.ObserveRunLatency(time.Since(started))
	if err != nil {
		i.metrics.IncrementRun(StatusAborted)
		return nil, err
	}
	i.metrics.IncrementRun(StatusCompleted)
	i.metrics.AddAccountsImported(result.Imported)
	return result, nil
}

func (i *Importer) run(ctx context.Context, number vat.Number) (*Result, error) {
	company, err := i.companies.FindByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCompany, number)
		}
		return nil, fmt.Errorf("find company: %w", err)
	}

	if i.rebuild {
		if err := i.filings.DeleteByCompany(ctx, company.ID); err != nil {
			return nil, fmt.Errorf("rebuild wipe: %w", err)
		}
	}

	references, err := i.registry.ListReferences(ctx, number)
	if err != nil {
		if errors.Is(err, nbb.ErrNotFound) {
			references = nil
		} else {
			return nil, fmt.Errorf("list references: %w", err)
		}
	}

	result := &Result{Status: StatusCompleted}

	pending, err := i.pendingReferences(ctx, references)
	if err != nil {
		return nil, err
	}

	filings := make(map[string]*nbb.Filing, len(pending))
	var fetched []nbb.Reference
	for _, ref := range pending {
		filing, err := i.registry.FetchFiling(ctx, ref.Number)
		if err != nil {
			reason := "upstream"
			if errors.Is(err, nbb.ErrNotFound) {
				reason = "not_found"
			}
			i.metrics.IncrementSkipped(reason)
			i.logger.WarnContext(ctx, "skipping filing",
				slog.String("reference", ref.Number),
				slog.String("reason", reason),
				slog.Any("error", err))
			result.Skipped = append(result.Skipped, ref.Number)
			continue
		}
		filings[ref.Number] = filing
		fetched = append(fetched, ref)
	}

	if len(fetched) > 0 {
		if err := i.importFilings(ctx, company.ID, fetched, filings); err != nil {
			return nil, err
		}
		result.Imported = len(fetched)
	}

	// The stamp marks the reconciliation attempt, not the presence of new
	// filings, so it is written even on an empty or fully skipped run.
	if err := i.companies.SetLastSynced(ctx, company.ID, requestcontext.Now(ctx)); err != nil {
		return nil, fmt.Errorf("stamp last sync: %w", err)
	}

	i.logger.InfoContext(ctx, "reconciliation finished",
		slog.String("enterprise_number", number.String()),
		slog.Int("imported", result.Imported),
		slog.Int("skipped", len(result.Skipped)))
	return result, nil
}

// pendingReferences diffs the upstream listing against stored references.
// The check is global across companies, so a reference imported under an old
// company row is never imported twice.
func (i *Importer) pendingReferences(ctx context.Context, references []nbb.Reference) ([]nbb.Reference, error) {
	if len(references) == 0 {
		return nil, nil
	}
	numbers := make([]string, len(references))
	for idx, ref := range references {
		numbers[idx] = ref.Number
	}
	existing, err := i.filings.ExistingReferences(ctx, numbers)
	if err != nil {
		return nil, fmt.Errorf("diff references: %w", err)
	}
	var pending []nbb.Reference
	for _, ref := range references {
		if !existing[ref.Number] {
			pending = append(pending, ref)
		}
	}
	return pending, nil
}

// importFilings writes the fetched filings and their children. Accounts go
// first so rubric, administrator and participation rows can attach to a
// persisted parent; company references are resolved through a per-run cache
// built with one bulk lookup.
func (i *Importer) importFilings(ctx context.Context, companyID uuid.UUID, fetched []nbb.Reference, filings map[string]*nbb.Filing) error {
	accounts := make([]*models.AnnualAccount, 0, len(fetched))
	referenceNumbers := make([]string, 0, len(fetched))
	for _, ref := range fetched {
		accounts = append(accounts, &models.AnnualAccount{
			CompanyID:     companyID,
			Reference:     ref.Number,
			EndFiscalYear: ref.PeriodEnd,
		})
		referenceNumbers = append(referenceNumbers, ref.Number)
	}
	if err := i.filings.CreateAccounts(ctx, accounts); err != nil {
		return fmt.Errorf("create accounts: %w", err)
	}
	stored, err := i.filings.ByReferences(ctx, referenceNumbers)
	if err != nil {
		return fmt.Errorf("reread accounts: %w", err)
	}

	cache := resolver.New(i.companies, i.filings)
	if err := cache.Build(ctx, referencedCompanies(filings)); err != nil {
		return err
	}

	for _, ref := range fetched {
		account, ok := stored[ref.Number]
		if !ok {
			return fmt.Errorf("account %s missing after create", ref.Number)
		}
		if err := i.decompose(ctx, cache, account, filings[ref.Number]); err != nil {
			return fmt.Errorf("decompose %s: %w", ref.Number, err)
		}
	}
	return nil
}

// referencedCompanies collects every parseable enterprise number the filings
// mention. Unparseable identifiers are left out here and surface later as
// dropped edges.
func referencedCompanies(filings map[string]*nbb.Filing) []vat.Number {
	var numbers []vat.Number
	for _, filing := range filings {
		for _, admin := range filing.LegalAdministrators {
			if number, err := vat.Parse(admin.CompanyIdentifier); err == nil {
				numbers = append(numbers, number)
			}
		}
		for _, part := range filing.Participations {
			if number, err := vat.Parse(part.CompanyIdentifier); err == nil {
				numbers = append(numbers, number)
			}
		}
	}
	return numbers
}

// administratorEntry is one governance role in a shape shared by both
// upstream administrator kinds; the tagged source decides whether a company
// must be resolved.
type administratorEntry struct {
	source      models.AdministratorSource
	mandateCode string
	people      []nbb.Representative
}

func administratorEntries(filing *nbb.Filing) []administratorEntry {
	entries := make([]administratorEntry, 0, len(filing.LegalAdministrators)+len(filing.NaturalAdministrators))
	for _, legal := range filing.LegalAdministrators {
		entries = append(entries, administratorEntry{
			source:      models.LegalEntity(legal.CompanyIdentifier),
			mandateCode: legal.MandateCode,
			people:      legal.Representatives,
		})
	}
	for _, natural := range filing.NaturalAdministrators {
		entries = append(entries, administratorEntry{
			source:      models.NaturalPerson(),
			mandateCode: natural.MandateCode,
			people:      []nbb.Representative{natural.Person},
		})
	}
	return entries
}

func (i *Importer) decompose(ctx context.Context, cache *resolver.Cache, account *models.AnnualAccount, filing *nbb.Filing) error {
	var rubrics []*models.FinancialRubric
	for _, rubric := range filing.Rubrics {
		if rubric.Period != currentPeriod {
			continue
		}
		rubrics = append(rubrics, &models.FinancialRubric{
			AnnualAccountID: account.ID,
			Code:            rubric.Code,
			Value:           rubric.Value,
		})
	}
	if err := i.filings.CreateRubrics(ctx, rubrics); err != nil {
		return fmt.Errorf("create rubrics: %w", err)
	}

	for _, entry := range administratorEntries(filing) {
		administrator := &models.Administrator{
			AnnualAccountID: account.ID,
			Mandate:         i.mandateLabel(ctx, entry.mandateCode),
		}
		if identifier, ok := entry.source.CompanyIdentifier(); ok {
			administering, resolved := i.resolveCompany(ctx, cache, identifier, "administrator")
			if !resolved {
				continue
			}
			administrator.AdministeringCompanyID = &administering.ID
		}
		for _, name := range entry.people {
			person, err := cache.ResolveOrCreatePerson(ctx, name.FirstName, name.LastName)
			if err != nil {
				i.logger.DebugContext(ctx, "dropping representative",
					slog.String("reference", account.Reference),
					slog.Any("error", err))
				continue
			}
			administrator.Representatives = append(administrator.Representatives, person)
		}
		// A natural-person role whose only name was unusable has no company
		// and no representatives left; such a row is never written.
		if !administrator.Valid() {
			continue
		}
		if err := i.filings.CreateAdministrator(ctx, administrator); err != nil {
			return fmt.Errorf("create administrator: %w", err)
		}
	}

	var participations []*models.Participation
	for _, entry := range filing.Participations {
		if entry.Nature != participationShares || entry.Percentage == nil || entry.StockCount == nil {
			continue
		}
		held, ok := i.resolveCompany(ctx, cache, entry.CompanyIdentifier, "participation")
		if !ok {
			continue
		}
		participations = append(participations, &models.Participation{
			AnnualAccountID: account.ID,
			HeldCompanyID:   held.ID,
			Percentage:      *entry.Percentage,
			StockCount:      *entry.StockCount,
		})
	}
	if err := i.filings.CreateParticipations(ctx, participations); err != nil {
		return fmt.Errorf("create participations: %w", err)
	}
	return nil
}

// resolveCompany maps a raw upstream identifier onto a known local company.
// Edges pointing at unparseable or unknown companies are dropped, counted
// and logged; they never create companies and never fail the run.
func (i *Importer) resolveCompany(ctx context.Context, cache *resolver.Cache, identifier, kind string) (*companymodels.Company, bool) {
	number, err := vat.Parse(identifier)
	if err == nil {
		if company, ok := cache.Company(number); ok {
			return company, true
		}
	}
	i.metrics.IncrementEdgeDropped(kind)
	i.logger.DebugContext(ctx, "dropping edge to unresolvable company",
		slog.String("kind", kind),
		slog.String("identifier", identifier))
	return nil, false
}

func (i *Importer) mandateLabel(ctx context.Context, code string) string {
	if code == "" {
		return defaultMandate
	}
	label, err := i.companies.ResolveLabel(ctx, mandateCategory, code)
	if err != nil {
		return defaultMandate
	}
	return label
}
