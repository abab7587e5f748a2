package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/desmedtandreas/companions-app-backend/internal/financials/models"
	"github.com/desmedtandreas/companions-app-backend/pkg/platform/sentinel"
)

// Memory implements the gateway with maps behind one mutex.
type Memory struct {
	mu             sync.RWMutex
	accounts       map[string]*models.AnnualAccount // by reference
	rubrics        map[uuid.UUID][]*models.FinancialRubric
	administrators map[uuid.UUID][]*models.Administrator
	participations map[uuid.UUID][]*models.Participation
	persons        map[string]*models.Person // by "first\x00last"
}

func NewMemory() *Memory {
	return &Memory{
		accounts:       make(map[string]*models.AnnualAccount),
		rubrics:        make(map[uuid.UUID][]*models.FinancialRubric),
		administrators: make(map[uuid.UUID][]*models.Administrator),
		participations: make(map[uuid.UUID][]*models.Participation),
		persons:        make(map[string]*models.Person),
	}
}

func (m *Memory) ExistingReferences(_ context.Context, references []string) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]bool, len(references))
	for _, ref := range references {
		if _, ok := m.accounts[ref]; ok {
			out[ref] = true
		}
	}
	return out, nil
}

func (m *Memory) CreateAccounts(_ context.Context, accounts []*models.AnnualAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range accounts {
		if _, ok := m.accounts[a.Reference]; ok {
			return fmt.Errorf("reference %s: %w", a.Reference, sentinel.ErrConflict)
		}
	}
	for _, a := range accounts {
		copied := *a
		if copied.ID == uuid.Nil {
			copied.ID = uuid.New()
		}
		if copied.CreatedAt.IsZero() {
			copied.CreatedAt = time.Now()
		}
		m.accounts[a.Reference] = &copied
	}
	return nil
}

func (m *Memory) ByReferences(_ context.Context, references []string) (map[string]*models.AnnualAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*models.AnnualAccount, len(references))
	for _, ref := range references {
		if a, ok := m.accounts[ref]; ok {
			copied := *a
			out[ref] = &copied
		}
	}
	return out, nil
}

func (m *Memory) ListByCompany(_ context.Context, companyID uuid.UUID) ([]*models.AnnualAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.AnnualAccount
	for _, a := range m.accounts {
		if a.CompanyID == companyID {
			copied := *a
			out = append(out, &copied)
		}
	}
	// Newest fiscal year first, like the original listing.
	sort.Slice(out, func(i, j int) bool {
		iEnd, jEnd := out[i].EndFiscalYear, out[j].EndFiscalYear
		switch {
		case iEnd == nil:
			return false
		case jEnd == nil:
			return true
		default:
			return iEnd.After(*jEnd)
		}
	})
	return out, nil
}

func (m *Memory) CountByCompany(_ context.Context, companyID uuid.UUID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, a := range m.accounts {
		if a.CompanyID == companyID {
			count++
		}
	}
	return count, nil
}

func (m *Memory) DeleteByCompany(_ context.Context, companyID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ref, a := range m.accounts {
		if a.CompanyID != companyID {
			continue
		}
		delete(m.rubrics, a.ID)
		delete(m.administrators, a.ID)
		delete(m.participations, a.ID)
		delete(m.accounts, ref)
	}
	return nil
}

func (m *Memory) CreateRubrics(_ context.Context, rubrics []*models.FinancialRubric) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rubrics {
		copied := *r
		if copied.ID == uuid.Nil {
			copied.ID = uuid.New()
		}
		m.rubrics[r.AnnualAccountID] = append(m.rubrics[r.AnnualAccountID], &copied)
	}
	return nil
}

func (m *Memory) RubricsByAccount(_ context.Context, accountID uuid.UUID) ([]*models.FinancialRubric, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.rubrics[accountID]
	out := make([]*models.FinancialRubric, 0, len(list))
	for _, r := range list {
		copied := *r
		out = append(out, &copied)
	}
	return out, nil
}

func (m *Memory) GetOrCreate(_ context.Context, firstName, lastName string) (*models.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := firstName + "\x00" + lastName
	if p, ok := m.persons[key]; ok {
		copied := *p
		return &copied, nil
	}
	p := &models.Person{ID: uuid.New(), FirstName: firstName, LastName: lastName}
	m.persons[key] = p
	copied := *p
	return &copied, nil
}

func (m *Memory) CreateAdministrator(_ context.Context, administrator *models.Administrator) error {
	if !administrator.Valid() {
		return fmt.Errorf("administrator without company or representatives: %w", sentinel.ErrConflict)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *administrator
	if copied.ID == uuid.Nil {
		copied.ID = uuid.New()
	}
	copied.Representatives = append([]*models.Person(nil), administrator.Representatives...)
	m.administrators[administrator.AnnualAccountID] = append(m.administrators[administrator.AnnualAccountID], &copied)
	return nil
}

func (m *Memory) AdministratorsByAccount(_ context.Context, accountID uuid.UUID) ([]*models.Administrator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.administrators[accountID]
	out := make([]*models.Administrator, 0, len(list))
	for _, a := range list {
		copied := *a
		copied.Representatives = append([]*models.Person(nil), a.Representatives...)
		out = append(out, &copied)
	}
	return out, nil
}

func (m *Memory) CreateParticipations(_ context.Context, participations []*models.Participation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range participations {
		copied := *p
		if copied.ID == uuid.Nil {
			copied.ID = uuid.New()
		}
		m.participations[p.AnnualAccountID] = append(m.participations[p.AnnualAccountID], &copied)
	}
	return nil
}

func (m *Memory) ParticipationsByAccount(_ context.Context, accountID uuid.UUID) ([]*models.Participation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.participations[accountID]
	out := make([]*models.Participation, 0, len(list))
	for _, p := range list {
		copied := *p
		out = append(out, &copied)
	}
	return out, nil
}
