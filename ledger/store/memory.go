// Package store provides Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/slnfs/station-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	customers    map[int64]ledger.Customer
	transactions map[int64]ledger.Transaction
	nozzles      map[int64]ledger.Nozzle
	readings     map[readingKey]ledger.SalesReading
	expenses     map[int64]ledger.Expense
	nextID       int64
	now          func() time.Time
}

type readingKey struct {
	Date     string
	NozzleID int64
}

// NewMemory returns an empty store seeded with the default nozzles.
func NewMemory() *Memory {
	m := &Memory{
		customers:    make(map[int64]ledger.Customer),
		transactions: make(map[int64]ledger.Transaction),
		nozzles:      make(map[int64]ledger.Nozzle),
		readings:     make(map[readingKey]ledger.SalesReading),
		expenses:     make(map[int64]ledger.Expense),
		now:          time.Now,
	}
	for _, n := range ledger.DefaultNozzles() {
		m.nozzles[n.ID] = n
	}
	return m
}

func (m *Memory) id() int64 {
	m.nextID++
	return m.nextID
}

// stamp returns a strictly increasing created_at so DESC ordering is stable.
func (m *Memory) stamp() time.Time {
	return m.now().UTC().Add(time.Duration(m.nextID) * time.Microsecond)
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (m *Memory) ListCustomers(ctx context.Context) ([]ledger.Customer, error) {
	return m.SearchCustomers(ctx, "")
}

func (m *Memory) SearchCustomers(_ context.Context, query string) ([]ledger.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]ledger.Customer, 0, len(m.customers))
	for _, c := range m.customers {
		if q == "" ||
			strings.Contains(strings.ToLower(c.Name), q) ||
			strings.Contains(strings.ToLower(c.Phone), q) ||
			strings.Contains(strings.ToLower(c.Email), q) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) GetCustomer(_ context.Context, id int64) (ledger.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.customers[id]
	if !ok {
		return ledger.Customer{}, fmt.Errorf("customer %d: %w", id, ledger.ErrCustomerNotFound)
	}
	return c, nil
}

func (m *Memory) CreateCustomer(_ context.Context, c ledger.Customer) (ledger.Customer, error) {
	if err := c.Validate(); err != nil {
		return ledger.Customer{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.id()
	c.CreatedAt = m.stamp()
	m.customers[c.ID] = c
	return c, nil
}

func (m *Memory) UpdateCustomer(_ context.Context, c ledger.Customer) error {
	if err := c.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.customers[c.ID]
	if !ok {
		return fmt.Errorf("customer %d: %w", c.ID, ledger.ErrCustomerNotFound)
	}
	c.CreatedAt = existing.CreatedAt
	m.customers[c.ID] = c
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (m *Memory) ListTransactions(_ context.Context, filter ledger.TransactionFilter) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.Transaction
	for _, tx := range m.transactions {
		if filter.CustomerID != nil && tx.CustomerID != *filter.CustomerID {
			continue
		}
		if !filter.Period.Contains(tx.Date) {
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Date.Compare(out[j].Date); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) AddTransaction(_ context.Context, tx ledger.Transaction) (ledger.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return ledger.Transaction{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.customers[tx.CustomerID]; !ok {
		return ledger.Transaction{}, fmt.Errorf("customer %d: %w", tx.CustomerID, ledger.ErrCustomerNotFound)
	}
	tx.ID = m.id()
	tx.CreatedAt = m.stamp()
	m.transactions[tx.ID] = tx
	return tx, nil
}

func (m *Memory) DeleteTransaction(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.transactions[id]; !ok {
		return fmt.Errorf("transaction %d: %w", id, ledger.ErrTransactionNotFound)
	}
	delete(m.transactions, id)
	return nil
}

// =============================================================================
// NOZZLES
// =============================================================================

func (m *Memory) ListNozzles(_ context.Context) ([]ledger.Nozzle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.Nozzle, 0, len(m.nozzles))
	for _, n := range m.nozzles {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetNozzle(_ context.Context, id int64) (ledger.Nozzle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nozzles[id]
	if !ok {
		return ledger.Nozzle{}, fmt.Errorf("nozzle %d: %w", id, ledger.ErrNozzleNotFound)
	}
	return n, nil
}

func (m *Memory) UpsertNozzle(_ context.Context, n ledger.Nozzle) error {
	if err := n.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nozzles[n.ID] = n
	return nil
}

// =============================================================================
// SALES READINGS
// =============================================================================

func (m *Memory) ListSalesReadings(_ context.Context, filter ledger.SalesFilter) ([]ledger.SalesReading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.SalesReading
	for _, r := range m.readings {
		if filter.NozzleID != nil && r.NozzleID != *filter.NozzleID {
			continue
		}
		if !filter.Period.Contains(r.Date) {
			continue
		}
		out = append(out, r)
	}
	sortReadings(out)
	return out, nil
}

// UpsertSalesReadings checks every row before writing any, so a bad row
// leaves the store untouched.
func (m *Memory) UpsertSalesReadings(_ context.Context, date ledger.Date, rows []ledger.SalesReading) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range rows {
		if !r.Date.Equal(date) {
			return fmt.Errorf("reading for nozzle %d dated %s in batch for %s", r.NozzleID, r.Date, date)
		}
		if _, ok := m.nozzles[r.NozzleID]; !ok {
			return fmt.Errorf("nozzle %d: %w", r.NozzleID, ledger.ErrNozzleNotFound)
		}
	}

	for _, r := range rows {
		k := readingKey{Date: date.String(), NozzleID: r.NozzleID}
		// Replace, not merge: a fresh id and timestamp like REPLACE INTO.
		r.ID = m.id()
		r.CreatedAt = m.stamp()
		m.readings[k] = r
	}
	return nil
}

func (m *Memory) LatestReadingsBefore(_ context.Context, date ledger.Date) (map[int64]ledger.SalesReading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[int64]ledger.SalesReading)
	for _, r := range m.readings {
		if !r.Date.Before(date) {
			continue
		}
		if cur, ok := out[r.NozzleID]; !ok || r.Date.After(cur.Date) {
			out[r.NozzleID] = r
		}
	}
	return out, nil
}

func sortReadings(rs []ledger.SalesReading) {
	sort.Slice(rs, func(i, j int) bool {
		if c := rs[i].Date.Compare(rs[j].Date); c != 0 {
			return c < 0
		}
		return rs[i].NozzleID < rs[j].NozzleID
	})
}

// =============================================================================
// EXPENSES
// =============================================================================

func (m *Memory) ListExpenses(_ context.Context, period ledger.Period) ([]ledger.Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.Expense
	for _, e := range m.expenses {
		if period.Contains(e.Date) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if c := a.Date.Compare(b.Date); c != 0 {
			return c > 0
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return out, nil
}

func (m *Memory) GetExpense(_ context.Context, id int64) (ledger.Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.expenses[id]
	if !ok {
		return ledger.Expense{}, fmt.Errorf("expense %d: %w", id, ledger.ErrExpenseNotFound)
	}
	return e, nil
}

func (m *Memory) InsertExpense(_ context.Context, e ledger.Expense) (ledger.Expense, error) {
	if err := e.Validate(); err != nil {
		return ledger.Expense{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.id()
	e.CreatedAt = m.stamp()
	m.expenses[e.ID] = e
	return e, nil
}

func (m *Memory) UpdateExpense(_ context.Context, e ledger.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.expenses[e.ID]
	if !ok {
		return fmt.Errorf("expense %d: %w", e.ID, ledger.ErrExpenseNotFound)
	}
	e.CreatedAt = existing.CreatedAt
	m.expenses[e.ID] = e
	return nil
}

func (m *Memory) DeleteExpense(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.expenses[id]; !ok {
		return fmt.Errorf("expense %d: %w", id, ledger.ErrExpenseNotFound)
	}
	delete(m.expenses, id)
	return nil
}

var _ ledger.Store = (*Memory)(nil)
