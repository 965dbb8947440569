package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStorage is an in-memory Storage implementation, useful for tests and
// simple single-process deployments.
type MemoryStorage struct {
	mu        sync.RWMutex
	tariffs   map[tariffKey]TariffRecord
	customers map[string]Customer
	bills     map[string]BillRecord
	settings  map[string]string
	users     map[string]User
	tokens    map[string]Token
	rules     []CasbinRule
	jobs      map[string]ScheduledJob
	nextID    uint
}

type tariffKey struct {
	customerType string
	year         int
}

// NewMemory returns an empty MemoryStorage.
func NewMemory() *MemoryStorage {
	return &MemoryStorage{
		tariffs:   make(map[tariffKey]TariffRecord),
		customers: make(map[string]Customer),
		bills:     make(map[string]BillRecord),
		settings:  make(map[string]string),
		users:     make(map[string]User),
		tokens:    make(map[string]Token),
		jobs:      make(map[string]ScheduledJob),
	}
}

func (m *MemoryStorage) Close() error { return nil }

func (m *MemoryStorage) Ping(ctx context.Context) error { return nil }

// Tariffs

func (m *MemoryStorage) GetTariff(ctx context.Context, customerType string, year int) (*TariffRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tariffs[tariffKey{customerType, year}]
	if !ok {
		return nil, nil
	}
	cp := t
	return &cp, nil
}

func (m *MemoryStorage) ListTariffs(ctx context.Context) ([]TariffRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]TariffRecord, 0, len(m.tariffs))
	for _, t := range m.tariffs {
		out = append(out, t)
	}
	return out, nil
}

func (m *MemoryStorage) UpsertTariff(ctx context.Context, t TariffRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tariffKey{t.CustomerType, t.Year}
	if existing, ok := m.tariffs[key]; ok {
		t.ID = existing.ID
	} else {
		m.nextID++
		t.ID = m.nextID
	}
	t.UpdatedAt = time.Now()
	m.tariffs[key] = t
	return nil
}

// Customers

func (m *MemoryStorage) ListCustomers(ctx context.Context) ([]Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Customer, 0, len(m.customers))
	for _, c := range m.customers {
		out = append(out, c)
	}
	return out, nil
}

func (m *MemoryStorage) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, nil
	}
	cp := c
	return &cp, nil
}

func (m *MemoryStorage) UpsertCustomer(ctx context.Context, c Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.UpdatedAt = time.Now()
	m.customers[c.ID] = c
	return nil
}

// Bills

func (m *MemoryStorage) SaveBill(ctx context.Context, b BillRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	m.bills[b.ID] = b
	return nil
}

func (m *MemoryStorage) GetBill(ctx context.Context, id string) (*BillRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bills[id]
	if !ok {
		return nil, nil
	}
	cp := b
	return &cp, nil
}

func (m *MemoryStorage) GetBillForCustomerMonth(ctx context.Context, customerID, billingMonth string) (*BillRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *BillRecord
	for _, b := range m.bills {
		if b.CustomerID != customerID || b.BillingMonth != billingMonth {
			continue
		}
		if latest == nil || b.CreatedAt.After(latest.CreatedAt) {
			cp := b
			latest = &cp
		}
	}
	return latest, nil
}

func (m *MemoryStorage) ListBillsForMonth(ctx context.Context, billingMonth string) ([]BillRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []BillRecord
	for _, b := range m.bills {
		if b.BillingMonth == billingMonth {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *MemoryStorage) UpdateBillPaymentStatus(ctx context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bills[id]
	if !ok {
		return nil
	}
	b.PaymentStatus = status
	m.bills[id] = b
	return nil
}

// Settings

func (m *MemoryStorage) GetSetting(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings[key], nil
}

func (m *MemoryStorage) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

// Users

func (m *MemoryStorage) CreateUser(ctx context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *MemoryStorage) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := u
	return &cp, nil
}

func (m *MemoryStorage) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			cp := u
			return &cp, nil
		}
	}
	return nil, nil
}

// Tokens

func (m *MemoryStorage) CreateToken(ctx context.Context, t Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[t.ID] = t
	return nil
}

func (m *MemoryStorage) GetTokenByHash(ctx context.Context, hash string) (*Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tokens {
		if t.TokenHash == hash {
			cp := t
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) UpdateTokenLastUsed(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[id]
	if !ok {
		return nil
	}
	now := time.Now()
	t.LastUsedAt = &now
	m.tokens[id] = t
	return nil
}

// Casbin rules

func (m *MemoryStorage) LoadCasbinRules(ctx context.Context) ([]CasbinRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]CasbinRule, len(m.rules))
	copy(out, m.rules)
	return out, nil
}

func (m *MemoryStorage) AddCasbinRule(ctx context.Context, rule CasbinRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule)
	return nil
}

func (m *MemoryStorage) RemoveCasbinRule(ctx context.Context, rule CasbinRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.rules[:0]
	for _, r := range m.rules {
		if r.PType == rule.PType && r.V0 == rule.V0 && r.V1 == rule.V1 && r.V2 == rule.V2 {
			continue
		}
		out = append(out, r)
	}
	m.rules = out
	return nil
}

// Scheduled jobs

func (m *MemoryStorage) UpdateScheduledJob(ctx context.Context, job ScheduledJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.Name] = job
	return nil
}
