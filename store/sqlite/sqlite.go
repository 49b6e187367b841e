/*
Package sqlite provides a SQLite-backed implementation of ledger.Store.

PURPOSE:
  The single local database file behind the desktop app. Schema and
  column types stay compatible with files written by earlier releases,
  so an existing slnfs_crm.db opens in place.

INTERFACES IMPLEMENTED:
  ledger.Store: customers, transactions, nozzles, sales readings, expenses

KEY TABLES:
  customers:      Credit account holders
  transactions:   Credit/payment entries (amount > 0, sign from type)
  nozzles:        Fixed dispenser set, seeded 1..8 on first run
  sales_readings: One row per (date, nozzle_id), replaced on save
  expenses:       Daily outgoings

INDEXES:
  - idx_transactions_customer_date: Balance queries per customer
  - idx_sales_readings_date:        Period scans for reports/dashboard
  - idx_expenses_date:              Period scans for reports/dashboard

PRICE SNAPSHOT:
  sales_readings.petrol_price / diesel_price are the two price slots.
  Petrol and others use petrol_price, diesel uses diesel_price. Before
  any read or write that depends on them, the columns are checked with
  PRAGMA table_info; a missing column is a SchemaDriftError and nothing
  is written.

QUERIES:
  Optional filters (period bounds, nozzle, customer) are assembled with
  squirrel. Dates are TEXT 'YYYY-MM-DD', so range filters are plain
  string comparisons and both bounds are inclusive.

NUMBERS:
  Money and litres are REAL columns (kept for file compatibility).
  They are read into decimal.Decimal via NewFromFloat, which yields the
  shortest representation, and NULLs read as 0.

CONCURRENCY:
  sync.RWMutex plus a single pooled connection. One process, one user.

USAGE:
  store, err := sqlite.New("./slnfs_crm.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := ledger.NewEngine(store)

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/slnfs/station-ledger/ledger"
	"github.com/slnfs/station-ledger/logger"
)

// Tables lists every ledger table, in backup metadata order.
var Tables = []string{"customers", "transactions", "nozzles", "sales_readings", "expenses"}

// priceColumns are required on sales_readings before readings are written.
var priceColumns = []string{"petrol_price", "diesel_price"}

// timestampLayout matches SQLite's datetime('now').
const timestampLayout = "2006-01-02 15:04:05"

// Store implements ledger.Store using SQLite.
type Store struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string
	sb   squirrel.StatementBuilderType
	log  *logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for migrations and writes.
func WithLogger(l *logger.Logger) Option {
	return func(s *Store) { s.log = l.WithComponent("sqlite") }
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: ":memory:" databases are per connection, and the
	// app has a single writer anyway.
	db.SetMaxOpenConns(1)

	store := &Store{
		db:   db,
		path: dbPath,
		sb:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		log:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(store)
	}

	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// =============================================================================
// SCHEMA
// =============================================================================

const schema = `
	CREATE TABLE IF NOT EXISTS customers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		phone TEXT,
		email TEXT,
		notes TEXT,
		created_at TEXT DEFAULT (datetime('now'))
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_id INTEGER NOT NULL,
		amount REAL NOT NULL,
		type TEXT CHECK(type IN ('credit','payment')) NOT NULL,
		date TEXT NOT NULL,
		note TEXT,
		created_at TEXT DEFAULT (datetime('now')),
		FOREIGN KEY(customer_id) REFERENCES customers(id)
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_customer_date
		ON transactions(customer_id, date);

	CREATE TABLE IF NOT EXISTS nozzles (
		id INTEGER PRIMARY KEY,
		label TEXT NOT NULL,
		fuel_type TEXT CHECK(fuel_type IN ('petrol','diesel','others')) NOT NULL,
		price_per_litre REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS sales_readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		nozzle_id INTEGER NOT NULL,
		opening REAL NOT NULL,
		closing REAL NOT NULL,
		sales_litres REAL NOT NULL,
		sales_value REAL NOT NULL,
		petrol_price REAL NOT NULL DEFAULT 0,
		diesel_price REAL NOT NULL DEFAULT 0,
		created_at TEXT DEFAULT (datetime('now')),
		UNIQUE(date, nozzle_id)
	);

	CREATE INDEX IF NOT EXISTS idx_sales_readings_date
		ON sales_readings(date);

	CREATE TABLE IF NOT EXISTS expenses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		description TEXT NOT NULL,
		amount REAL NOT NULL,
		created_at TEXT DEFAULT (datetime('now'))
	);
`

// migrate creates the schema and upgrades files from older releases.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	if err := s.dropExpenseCategory(ctx); err != nil {
		return fmt.Errorf("migrate expenses: %w", err)
	}
	// Runs after the rebuild above, which would otherwise drop it.
	if _, err := s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_expenses_date ON expenses(date)`); err != nil {
		return err
	}
	if err := s.addPriceColumns(ctx); err != nil {
		return fmt.Errorf("migrate sales_readings: %w", err)
	}
	return s.seedNozzles(ctx)
}

// dropExpenseCategory removes the category column older files carry.
func (s *Store) dropExpenseCategory(ctx context.Context) error {
	cols, err := s.columns(ctx, "expenses")
	if err != nil {
		return err
	}
	if !cols["category"] {
		return nil
	}
	s.log.Infow("dropping legacy expenses.category column")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE expenses_new (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL,
			description TEXT NOT NULL,
			amount REAL NOT NULL,
			created_at TEXT DEFAULT (datetime('now'))
		)`,
		`INSERT INTO expenses_new (id, date, description, amount, created_at)
			SELECT id, date, description, amount, created_at FROM expenses`,
		`DROP TABLE expenses`,
		`ALTER TABLE expenses_new RENAME TO expenses`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// addPriceColumns upgrades sales_readings tables created before price snapshots.
func (s *Store) addPriceColumns(ctx context.Context) error {
	cols, err := s.columns(ctx, "sales_readings")
	if err != nil {
		return err
	}
	for _, col := range priceColumns {
		if cols[col] {
			continue
		}
		s.log.Infow("adding missing price column", "table", "sales_readings", "column", col)
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE sales_readings ADD COLUMN %s REAL NOT NULL DEFAULT 0", col)); err != nil {
			return err
		}
	}
	return nil
}

// seedNozzles inserts the default dispenser set into an empty table and
// makes sure an "others" nozzle exists.
func (s *Store) seedNozzles(ctx context.Context) error {
	var count, others int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1), COALESCE(SUM(CASE WHEN fuel_type = 'others' THEN 1 ELSE 0 END), 0) FROM nozzles`,
	).Scan(&count, &others); err != nil {
		return err
	}

	defaults := ledger.DefaultNozzles()
	if count > 0 {
		if others > 0 {
			return nil
		}
		defaults = defaults[len(defaults)-1:]
	}

	q := s.sb.Insert("nozzles").Options("OR IGNORE").Columns("id", "label", "fuel_type", "price_per_litre")
	for _, n := range defaults {
		q = q.Values(n.ID, n.Label, string(n.FuelType), n.PricePerLitre.InexactFloat64())
	}
	query, args, err := q.ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

// columns returns the column names of a table via PRAGMA table_info.
func (s *Store) columns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := map[string]bool{}
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// CheckSalesSchema verifies the price snapshot columns exist.
func (s *Store) CheckSalesSchema(ctx context.Context) error {
	cols, err := s.columns(ctx, "sales_readings")
	if err != nil {
		return fmt.Errorf("inspect sales_readings: %w", err)
	}
	var missing []string
	for _, col := range priceColumns {
		if !cols[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &ledger.SchemaDriftError{Table: "sales_readings", Missing: missing}
	}
	return nil
}

// =============================================================================
// CUSTOMERS (ledger.CustomerStore)
// =============================================================================

var customerColumns = []string{"id", "name", "phone", "email", "notes", "created_at"}

func (s *Store) ListCustomers(ctx context.Context) ([]ledger.Customer, error) {
	return s.SearchCustomers(ctx, "")
}

// SearchCustomers uses LIKE, which SQLite matches case-insensitively for ASCII.
func (s *Store) SearchCustomers(ctx context.Context, query string) ([]ledger.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := s.sb.Select(customerColumns...).From("customers").OrderBy("name", "id")
	if term := strings.TrimSpace(query); term != "" {
		pattern := "%" + term + "%"
		q = q.Where(squirrel.Or{
			squirrel.Like{"name": pattern},
			squirrel.Like{"phone": pattern},
			squirrel.Like{"email": pattern},
		})
	}
	return s.queryCustomers(ctx, q)
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (ledger.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers, err := s.queryCustomers(ctx, s.sb.Select(customerColumns...).From("customers").Where(squirrel.Eq{"id": id}))
	if err != nil {
		return ledger.Customer{}, err
	}
	if len(customers) == 0 {
		return ledger.Customer{}, fmt.Errorf("customer %d: %w", id, ledger.ErrCustomerNotFound)
	}
	return customers[0], nil
}

func (s *Store) CreateCustomer(ctx context.Context, c ledger.Customer) (ledger.Customer, error) {
	if err := c.Validate(); err != nil {
		return ledger.Customer{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO customers (name, phone, email, notes) VALUES (?, ?, ?, ?)`,
		strings.TrimSpace(c.Name), nullString(c.Phone), nullString(c.Email), nullString(c.Notes))
	if err != nil {
		return ledger.Customer{}, fmt.Errorf("failed to create customer: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return ledger.Customer{}, err
	}

	customers, err := s.queryCustomers(ctx, s.sb.Select(customerColumns...).From("customers").Where(squirrel.Eq{"id": id}))
	if err != nil || len(customers) == 0 {
		return ledger.Customer{}, fmt.Errorf("failed to reload customer %d: %w", id, err)
	}
	return customers[0], nil
}

func (s *Store) UpdateCustomer(ctx context.Context, c ledger.Customer) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE customers SET name = ?, phone = ?, email = ?, notes = ? WHERE id = ?`,
		strings.TrimSpace(c.Name), nullString(c.Phone), nullString(c.Email), nullString(c.Notes), c.ID)
	if err != nil {
		return fmt.Errorf("failed to update customer: %w", err)
	}
	return expectAffected(res, fmt.Errorf("customer %d: %w", c.ID, ledger.ErrCustomerNotFound))
}

func (s *Store) queryCustomers(ctx context.Context, q squirrel.SelectBuilder) ([]ledger.Customer, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	var out []ledger.Customer
	for rows.Next() {
		var (
			c                         ledger.Customer
			phone, email, notes, crAt sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &phone, &email, &notes, &crAt); err != nil {
			return nil, err
		}
		c.Phone, c.Email, c.Notes = phone.String, email.String, notes.String
		c.CreatedAt = parseTimestamp(crAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

// =============================================================================
// TRANSACTIONS (ledger.TransactionStore)
// =============================================================================

func (s *Store) ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := s.sb.Select("id", "customer_id", "amount", "type", "date", "note", "created_at").
		From("transactions").
		OrderBy("date ASC", "id ASC")
	if filter.CustomerID != nil {
		q = q.Where(squirrel.Eq{"customer_id": *filter.CustomerID})
	}
	q = withPeriod(q, "date", filter.Period)

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out []ledger.Transaction
	for rows.Next() {
		var (
			tx              ledger.Transaction
			amount          sql.NullFloat64
			typ, date       string
			note, createdAt sql.NullString
		)
		if err := rows.Scan(&tx.ID, &tx.CustomerID, &amount, &typ, &date, &note, &createdAt); err != nil {
			return nil, err
		}
		d, err := ledger.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", tx.ID, err)
		}
		tx.Amount = decimalOf(amount)
		tx.Type = ledger.TxType(typ)
		tx.Date = d
		tx.Note = note.String
		tx.CreatedAt = parseTimestamp(createdAt)
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *Store) AddTransaction(ctx context.Context, tx ledger.Transaction) (ledger.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return ledger.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM customers WHERE id = ?`, tx.CustomerID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Transaction{}, fmt.Errorf("customer %d: %w", tx.CustomerID, ledger.ErrCustomerNotFound)
	}
	if err != nil {
		return ledger.Transaction{}, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (customer_id, amount, type, date, note) VALUES (?, ?, ?, ?, ?)`,
		tx.CustomerID, tx.Amount.InexactFloat64(), string(tx.Type), tx.Date.String(), nullString(tx.Note))
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("failed to add transaction: %w", err)
	}
	if tx.ID, err = res.LastInsertId(); err != nil {
		return ledger.Transaction{}, err
	}
	tx.CreatedAt = time.Now().UTC().Truncate(time.Second)
	return tx, nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return expectAffected(res, fmt.Errorf("transaction %d: %w", id, ledger.ErrTransactionNotFound))
}

// =============================================================================
// NOZZLES (ledger.NozzleStore)
// =============================================================================

func (s *Store) ListNozzles(ctx context.Context) ([]ledger.Nozzle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryNozzles(ctx, s.db, s.sb.Select("id", "label", "fuel_type", "price_per_litre").From("nozzles").OrderBy("id"))
}

func (s *Store) GetNozzle(ctx context.Context, id int64) (ledger.Nozzle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nozzles, err := s.queryNozzles(ctx, s.db, s.sb.Select("id", "label", "fuel_type", "price_per_litre").
		From("nozzles").Where(squirrel.Eq{"id": id}))
	if err != nil {
		return ledger.Nozzle{}, err
	}
	if len(nozzles) == 0 {
		return ledger.Nozzle{}, fmt.Errorf("nozzle %d: %w", id, ledger.ErrNozzleNotFound)
	}
	return nozzles[0], nil
}

func (s *Store) UpsertNozzle(ctx context.Context, n ledger.Nozzle) error {
	if err := n.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO nozzles (id, label, fuel_type, price_per_litre)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			label = excluded.label,
			fuel_type = excluded.fuel_type,
			price_per_litre = excluded.price_per_litre
	`, n.ID, n.Label, string(n.FuelType), n.PricePerLitre.InexactFloat64())
	if err != nil {
		return fmt.Errorf("failed to save nozzle: %w", err)
	}
	return nil
}

func (s *Store) queryNozzles(ctx context.Context, db queryer, q squirrel.SelectBuilder) ([]ledger.Nozzle, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query nozzles: %w", err)
	}
	defer rows.Close()

	var out []ledger.Nozzle
	for rows.Next() {
		var (
			n     ledger.Nozzle
			fuel  string
			price sql.NullFloat64
		)
		if err := rows.Scan(&n.ID, &n.Label, &fuel, &price); err != nil {
			return nil, err
		}
		n.FuelType = ledger.FuelType(fuel)
		n.PricePerLitre = decimalOf(price)
		out = append(out, n)
	}
	return out, rows.Err()
}

// =============================================================================
// SALES READINGS (ledger.SalesStore)
// =============================================================================

var readingColumns = []string{
	"id", "date", "nozzle_id", "opening", "closing",
	"sales_litres", "sales_value", "petrol_price", "diesel_price", "created_at",
}

func (s *Store) ListSalesReadings(ctx context.Context, filter ledger.SalesFilter) ([]ledger.SalesReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := s.sb.Select(readingColumns...).From("sales_readings").OrderBy("date ASC", "nozzle_id ASC")
	if filter.NozzleID != nil {
		q = q.Where(squirrel.Eq{"nozzle_id": *filter.NozzleID})
	}
	q = withPeriod(q, "date", filter.Period)
	return s.queryReadings(ctx, q)
}

// UpsertSalesReadings replaces the (date, nozzle_id) rows in one transaction.
func (s *Store) UpsertSalesReadings(ctx context.Context, date ledger.Date, rows []ledger.SalesReading) error {
	if err := s.CheckSalesSchema(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	nozzles, err := s.queryNozzles(ctx, sqlTx, s.sb.Select("id", "label", "fuel_type", "price_per_litre").From("nozzles"))
	if err != nil {
		return err
	}
	known := make(map[int64]bool, len(nozzles))
	for _, n := range nozzles {
		known[n.ID] = true
	}

	for _, r := range rows {
		if !r.Date.Equal(date) {
			return fmt.Errorf("reading for nozzle %d dated %s in batch for %s", r.NozzleID, r.Date, date)
		}
		if !known[r.NozzleID] {
			return fmt.Errorf("nozzle %d: %w", r.NozzleID, ledger.ErrNozzleNotFound)
		}

		query, args, err := s.sb.Replace("sales_readings").
			Columns("date", "nozzle_id", "opening", "closing", "sales_litres", "sales_value", "petrol_price", "diesel_price").
			Values(
				date.String(), r.NozzleID,
				r.Opening.InexactFloat64(), r.Closing.InexactFloat64(),
				r.SalesLitres.InexactFloat64(), r.SalesValue.InexactFloat64(),
				r.Prices.Primary.InexactFloat64(), r.Prices.Secondary.InexactFloat64(),
			).ToSql()
		if err != nil {
			return err
		}
		if _, err := sqlTx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to save reading for nozzle %d: %w", r.NozzleID, err)
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit readings: %w", err)
	}
	s.log.Infow("sales readings saved", "date", date.String(), "rows", len(rows))
	return nil
}

// LatestReadingsBefore picks, per nozzle, the row at MAX(date) < date.
func (s *Store) LatestReadingsBefore(ctx context.Context, date ledger.Date) (map[int64]ledger.SalesReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := s.sb.Select("nozzle_id", "MAX(date) AS max_date").
		From("sales_readings").
		Where(squirrel.Lt{"date": date.String()}).
		GroupBy("nozzle_id")

	q := s.sb.Select(prefixed("sr", readingColumns)...).
		From("sales_readings sr").
		JoinClause(latest.Prefix("JOIN (").Suffix(") latest ON sr.nozzle_id = latest.nozzle_id AND sr.date = latest.max_date")).
		OrderBy("sr.nozzle_id")

	readings, err := s.queryReadings(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]ledger.SalesReading, len(readings))
	for _, r := range readings {
		out[r.NozzleID] = r
	}
	return out, nil
}

func (s *Store) queryReadings(ctx context.Context, q squirrel.SelectBuilder) ([]ledger.SalesReading, error) {
	if err := s.CheckSalesSchema(ctx); err != nil {
		return nil, err
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales readings: %w", err)
	}
	defer rows.Close()

	var out []ledger.SalesReading
	for rows.Next() {
		var (
			r                               ledger.SalesReading
			date                            string
			opening, closing, litres, value sql.NullFloat64
			petrolPrice, dieselPrice        sql.NullFloat64
			createdAt                       sql.NullString
		)
		if err := rows.Scan(&r.ID, &date, &r.NozzleID, &opening, &closing,
			&litres, &value, &petrolPrice, &dieselPrice, &createdAt); err != nil {
			return nil, err
		}
		d, err := ledger.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("sales reading %d: %w", r.ID, err)
		}
		r.Date = d
		r.Opening = decimalOf(opening)
		r.Closing = decimalOf(closing)
		r.SalesLitres = decimalOf(litres)
		r.SalesValue = decimalOf(value)
		r.Prices = ledger.PriceSnapshot{Primary: decimalOf(petrolPrice), Secondary: decimalOf(dieselPrice)}
		r.CreatedAt = parseTimestamp(createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// EXPENSES (ledger.ExpenseStore)
// =============================================================================

var expenseColumns = []string{"id", "date", "description", "amount", "created_at"}

func (s *Store) ListExpenses(ctx context.Context, period ledger.Period) ([]ledger.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := s.sb.Select(expenseColumns...).From("expenses").OrderBy("date DESC", "created_at DESC", "id DESC")
	return s.queryExpenses(ctx, withPeriod(q, "date", period))
}

func (s *Store) GetExpense(ctx context.Context, id int64) (ledger.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expenses, err := s.queryExpenses(ctx, s.sb.Select(expenseColumns...).From("expenses").Where(squirrel.Eq{"id": id}))
	if err != nil {
		return ledger.Expense{}, err
	}
	if len(expenses) == 0 {
		return ledger.Expense{}, fmt.Errorf("expense %d: %w", id, ledger.ErrExpenseNotFound)
	}
	return expenses[0], nil
}

func (s *Store) InsertExpense(ctx context.Context, e ledger.Expense) (ledger.Expense, error) {
	if err := e.Validate(); err != nil {
		return ledger.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO expenses (date, description, amount) VALUES (?, ?, ?)`,
		e.Date.String(), strings.TrimSpace(e.Description), e.Amount.InexactFloat64())
	if err != nil {
		return ledger.Expense{}, fmt.Errorf("failed to insert expense: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return ledger.Expense{}, err
	}
	e.Description = strings.TrimSpace(e.Description)
	e.CreatedAt = time.Now().UTC().Truncate(time.Second)
	return e, nil
}

func (s *Store) UpdateExpense(ctx context.Context, e ledger.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE expenses SET date = ?, description = ?, amount = ? WHERE id = ?`,
		e.Date.String(), strings.TrimSpace(e.Description), e.Amount.InexactFloat64(), e.ID)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	return expectAffected(res, fmt.Errorf("expense %d: %w", e.ID, ledger.ErrExpenseNotFound))
}

func (s *Store) DeleteExpense(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return expectAffected(res, fmt.Errorf("expense %d: %w", id, ledger.ErrExpenseNotFound))
}

func (s *Store) queryExpenses(ctx context.Context, q squirrel.SelectBuilder) ([]ledger.Expense, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	var out []ledger.Expense
	for rows.Next() {
		var (
			e         ledger.Expense
			date      string
			amount    sql.NullFloat64
			createdAt sql.NullString
		)
		if err := rows.Scan(&e.ID, &date, &e.Description, &amount, &createdAt); err != nil {
			return nil, err
		}
		d, err := ledger.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("expense %d: %w", e.ID, err)
		}
		e.Date = d
		e.Amount = decimalOf(amount)
		e.CreatedAt = parseTimestamp(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// MAINTENANCE (backup support)
// =============================================================================

// CountRows returns the row count of every ledger table.
func (s *Store) CountRows(ctx context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64, len(Tables))
	for _, table := range Tables {
		var n int64
		if err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(1) FROM %s", table)).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

// Checkpoint flushes the WAL into the main file so a file copy is complete.
func (s *Store) Checkpoint(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`)
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// withPeriod adds inclusive bounds; nil bounds add nothing.
func withPeriod(q squirrel.SelectBuilder, column string, p ledger.Period) squirrel.SelectBuilder {
	if p.Start != nil {
		q = q.Where(squirrel.GtOrEq{column: p.Start.String()})
	}
	if p.End != nil {
		q = q.Where(squirrel.LtOrEq{column: p.End.String()})
	}
	return q
}

func prefixed(alias string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + c
	}
	return out
}

func decimalOf(f sql.NullFloat64) decimal.Decimal {
	if !f.Valid {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f.Float64)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func parseTimestamp(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	t, err := time.Parse(timestampLayout, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

func expectAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

var _ ledger.Store = (*Store)(nil)
