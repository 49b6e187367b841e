/*
store.go - Persistence interface for the station ledger

PURPOSE:
  Defines the contract between the engine and the database. The engine
  only reads; sales reconciliation and the API write through the same
  interface.

KEY INTERFACES:
  CustomerStore:    Customer accounts
  TransactionStore: Credit/payment entries, filterable by customer and period
  NozzleStore:      Fixed dispenser set and live prices
  SalesStore:       Daily readings, atomic per-date batch upsert
  ExpenseStore:     Daily expenses
  Store:            All of the above

ORDERING CONTRACT:
  ListCustomers:      name ASC, id ASC
  ListTransactions:   date ASC, id ASC
  ListNozzles:        id ASC
  ListSalesReadings:  date ASC, nozzle_id ASC
  ListExpenses:       date DESC, created_at DESC, id DESC

ATOMIC BATCHES:
  UpsertSalesReadings() replaces every row for the given date and
  nozzle ids inside one transaction. Either the whole sheet lands or
  nothing changes.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite file store
  - ledger/store/memory.go: In-memory for tests

SEE ALSO:
  - balance.go, aggregate.go: Read paths
  - sales/reconcile.go: Write path for readings
*/
package ledger

import "context"

// TransactionFilter narrows ListTransactions. Zero value lists everything.
type TransactionFilter struct {
	CustomerID *int64
	Period     Period
}

// SalesFilter narrows ListSalesReadings. Zero value lists everything.
type SalesFilter struct {
	Period   Period
	NozzleID *int64
}

// =============================================================================
// STORE INTERFACES
// =============================================================================

type CustomerStore interface {
	ListCustomers(ctx context.Context) ([]Customer, error)

	// SearchCustomers matches name, phone or email, case insensitive.
	// An empty query lists everything.
	SearchCustomers(ctx context.Context, query string) ([]Customer, error)

	// GetCustomer returns ErrCustomerNotFound for unknown ids.
	GetCustomer(ctx context.Context, id int64) (Customer, error)

	CreateCustomer(ctx context.Context, c Customer) (Customer, error)
	UpdateCustomer(ctx context.Context, c Customer) error
}

type TransactionStore interface {
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)

	// AddTransaction returns ErrCustomerNotFound if the owner is missing.
	AddTransaction(ctx context.Context, tx Transaction) (Transaction, error)

	// DeleteTransaction is a hard delete. Balances are derived on read.
	DeleteTransaction(ctx context.Context, id int64) error
}

type NozzleStore interface {
	ListNozzles(ctx context.Context) ([]Nozzle, error)
	GetNozzle(ctx context.Context, id int64) (Nozzle, error)
	UpsertNozzle(ctx context.Context, n Nozzle) error
}

type SalesStore interface {
	ListSalesReadings(ctx context.Context, filter SalesFilter) ([]SalesReading, error)

	// UpsertSalesReadings replaces rows keyed by (date, nozzle_id) atomically.
	// Every row must carry the given date.
	UpsertSalesReadings(ctx context.Context, date Date, rows []SalesReading) error

	// LatestReadingsBefore returns, per nozzle, the reading with the
	// greatest date strictly before date.
	LatestReadingsBefore(ctx context.Context, date Date) (map[int64]SalesReading, error)
}

type ExpenseStore interface {
	ListExpenses(ctx context.Context, period Period) ([]Expense, error)
	GetExpense(ctx context.Context, id int64) (Expense, error)
	InsertExpense(ctx context.Context, e Expense) (Expense, error)
	UpdateExpense(ctx context.Context, e Expense) error
	DeleteExpense(ctx context.Context, id int64) error
}

// Store is the full ledger store.
type Store interface {
	CustomerStore
	TransactionStore
	NozzleStore
	SalesStore
	ExpenseStore
}
