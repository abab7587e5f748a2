package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/desmedtandreas/companions-app-backend/internal/companies/models"
	"github.com/desmedtandreas/companions-app-backend/pkg/platform/sentinel"
	"github.com/desmedtandreas/companions-app-backend/pkg/vat"
)

// Memory keeps everything in maps guarded by one mutex. It backs unit tests
// and intentionally favors clarity over performance.
type Memory struct {
	mu        sync.RWMutex
	companies map[vat.Number]*models.Company
	addresses map[uuid.UUID][]*models.Address
	labels    map[string]string // category + "/" + code
}

func NewMemory() *Memory {
	return &Memory{
		companies: make(map[vat.Number]*models.Company),
		addresses: make(map[uuid.UUID][]*models.Address),
		labels:    make(map[string]string),
	}
}

func (m *Memory) FindByNumber(_ context.Context, number vat.Number) (*models.Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.companies[number]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, sentinel.ErrNotFound
}

func (m *Memory) FindByNumbers(_ context.Context, numbers []vat.Number) (map[vat.Number]*models.Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[vat.Number]*models.Company, len(numbers))
	for _, n := range numbers {
		if c, ok := m.companies[n]; ok {
			copied := *c
			out[n] = &copied
		}
	}
	return out, nil
}

func (m *Memory) Search(_ context.Context, query string, limit int) ([]*models.Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	query = strings.ToLower(strings.TrimSpace(query))
	var out []*models.Company
	for _, c := range m.companies {
		if query == "" ||
			strings.Contains(strings.ToLower(c.Name), query) ||
			strings.Contains(c.EnterpriseNumber.String(), query) {
			copied := *c
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) ListAll(_ context.Context) ([]*models.Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Company, 0, len(m.companies))
	for _, c := range m.companies {
		copied := *c
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnterpriseNumber < out[j].EnterpriseNumber })
	return out, nil
}

func (m *Memory) UpsertBatch(_ context.Context, companies []*models.Company) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, c := range companies {
		existing, ok := m.companies[c.EnterpriseNumber]
		if !ok {
			copied := *c
			if copied.ID == uuid.Nil {
				copied.ID = uuid.New()
			}
			copied.CreatedAt = now
			copied.UpdatedAt = now
			m.companies[c.EnterpriseNumber] = &copied
			continue
		}
		existing.StatusCode = c.StatusCode
		existing.LegalFormCode = c.LegalFormCode
		if c.StartDate != nil {
			existing.StartDate = c.StartDate
		}
		if c.Name != "" {
			existing.Name = c.Name
		}
		existing.UpdatedAt = now
	}
	return nil
}

func (m *Memory) RenameBatch(_ context.Context, names map[vat.Number]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for n, name := range names {
		if c, ok := m.companies[n]; ok {
			c.Name = name
			c.UpdatedAt = time.Now()
		}
	}
	return nil
}

func (m *Memory) Deactivate(_ context.Context, number vat.Number) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.companies[number]
	if !ok {
		return sentinel.ErrNotFound
	}
	c.StatusCode = "0"
	c.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) UpdateNumber(_ context.Context, id uuid.UUID, number vat.Number) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for old, c := range m.companies {
		if c.ID == id {
			delete(m.companies, old)
			c.EnterpriseNumber = number
			c.UpdatedAt = time.Now()
			m.companies[number] = c
			return nil
		}
	}
	return sentinel.ErrNotFound
}

func (m *Memory) SetLastSynced(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.companies {
		if c.ID == id {
			stamped := at
			c.LastSyncedAt = &stamped
			c.UpdatedAt = time.Now()
			return nil
		}
	}
	return sentinel.ErrNotFound
}

func (m *Memory) UpsertAddress(_ context.Context, address *models.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.addresses[address.CompanyID]
	for _, a := range list {
		if a.Type == address.Type {
			a.Street = address.Street
			a.HouseNumber = address.HouseNumber
			a.PostalCode = address.PostalCode
			a.City = address.City
			a.Country = address.Country
			return nil
		}
	}
	copied := *address
	if copied.ID == uuid.Nil {
		copied.ID = uuid.New()
	}
	m.addresses[address.CompanyID] = append(list, &copied)
	return nil
}

func (m *Memory) AddressesByCompany(_ context.Context, companyID uuid.UUID) ([]*models.Address, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.addresses[companyID]
	out := make([]*models.Address, 0, len(list))
	for _, a := range list {
		copied := *a
		out = append(out, &copied)
	}
	return out, nil
}

func (m *Memory) ResolveLabel(_ context.Context, category, code string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if name, ok := m.labels[category+"/"+code]; ok {
		return name, nil
	}
	return "", sentinel.ErrNotFound
}

func (m *Memory) UpsertLabels(_ context.Context, labels []*models.CodeLabel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range labels {
		m.labels[l.Category+"/"+l.Code] = l.Name
	}
	return nil
}
