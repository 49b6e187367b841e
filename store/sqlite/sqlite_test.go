package sqlite_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slnfs/station-ledger/ledger"
	"github.com/slnfs/station-ledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func d(s string) ledger.Date { return ledger.MustDate(s) }

func dp(s string) *ledger.Date {
	v := ledger.MustDate(s)
	return &v
}

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func row(date string, nozzleID int64, opening, closing, price float64, fuel ledger.FuelType) ledger.SalesReading {
	litres := dec(closing).Sub(dec(opening))
	return ledger.SalesReading{
		Date:        d(date),
		NozzleID:    nozzleID,
		Opening:     dec(opening),
		Closing:     dec(closing),
		SalesLitres: litres,
		SalesValue:  litres.Mul(dec(price)),
		Prices:      ledger.SnapshotFor(fuel, dec(price)),
	}
}

// =============================================================================
// SCHEMA AND SEEDING
// =============================================================================

func TestNew_SeedsDefaultNozzles(t *testing.T) {
	store := newTestStore(t)

	nozzles, err := store.ListNozzles(context.Background())
	require.NoError(t, err)
	require.Len(t, nozzles, 8)

	assert.Equal(t, ledger.FuelPetrol, nozzles[0].FuelType)
	assert.Equal(t, ledger.FuelPetrol, nozzles[2].FuelType)
	assert.Equal(t, ledger.FuelDiesel, nozzles[3].FuelType)
	assert.Equal(t, ledger.FuelDiesel, nozzles[6].FuelType)
	assert.Equal(t, "Others", nozzles[7].Label)
	assert.Equal(t, ledger.FuelOthers, nozzles[7].FuelType)
	assert.True(t, nozzles[0].PricePerLitre.IsZero())
}

func TestNew_ReopenKeepsDataAndDoesNotReseed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	store, err := sqlite.New(path)
	require.NoError(t, err)
	n, err := store.GetNozzle(ctx, 1)
	require.NoError(t, err)
	n.Label = "Front Petrol"
	n.PricePerLitre = dec(102.5)
	require.NoError(t, store.UpsertNozzle(ctx, n))
	require.NoError(t, store.Close())

	store, err = sqlite.New(path)
	require.NoError(t, err)
	defer store.Close()

	n, err = store.GetNozzle(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Front Petrol", n.Label)
	assert.Equal(t, "102.5", n.PricePerLitre.String())
}

func TestNew_MigratesLegacyFile(t *testing.T) {
	// GIVEN: A file from an older release: expenses has a category column
	// and sales_readings has no price columns
	path := filepath.Join(t.TempDir(), "legacy.db")
	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = raw.Exec(`
		CREATE TABLE expenses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL,
			description TEXT NOT NULL,
			category TEXT,
			amount REAL NOT NULL,
			created_at TEXT DEFAULT (datetime('now'))
		);
		INSERT INTO expenses (date, description, category, amount) VALUES ('2024-01-01', 'Tea', 'misc', 20);
		CREATE TABLE sales_readings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL,
			nozzle_id INTEGER NOT NULL,
			opening REAL NOT NULL,
			closing REAL NOT NULL,
			sales_litres REAL NOT NULL,
			sales_value REAL NOT NULL,
			created_at TEXT DEFAULT (datetime('now')),
			UNIQUE(date, nozzle_id)
		);
		INSERT INTO sales_readings (date, nozzle_id, opening, closing, sales_litres, sales_value)
			VALUES ('2024-01-01', 1, 10, 20, 10, 1000);
	`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	// WHEN: Opening it
	store, err := sqlite.New(path)
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	// THEN: Old rows survive and price columns read as zero
	expenses, err := store.ListExpenses(ctx, ledger.AllTime())
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.Equal(t, "Tea", expenses[0].Description)

	readings, err := store.ListSalesReadings(ctx, ledger.SalesFilter{})
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.True(t, readings[0].Prices.Primary.IsZero())
	assert.NoError(t, store.CheckSalesSchema(ctx))
}

func TestUpsertSalesReadings_SchemaDriftLeavesStoreUntouched(t *testing.T) {
	// GIVEN: A file store with one reading
	path := filepath.Join(t.TempDir(), "drift.db")
	store, err := sqlite.New(path)
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()
	require.NoError(t, store.UpsertSalesReadings(ctx, d("2024-03-01"), []ledger.SalesReading{
		row("2024-03-01", 1, 100, 150, 100, ledger.FuelPetrol),
	}))

	// AND: Something else dropped a price column from the file
	raw, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	require.NoError(t, err)
	_, err = raw.Exec(`ALTER TABLE sales_readings DROP COLUMN diesel_price`)
	require.NoError(t, err)

	// WHEN: Saving a day
	err = store.UpsertSalesReadings(ctx, d("2024-03-02"), []ledger.SalesReading{
		row("2024-03-02", 1, 150, 170, 100, ledger.FuelPetrol),
		row("2024-03-02", 4, 10, 20, 90, ledger.FuelDiesel),
	})

	// THEN: The drift is named with its remediation
	var drift *ledger.SchemaDriftError
	require.True(t, errors.As(err, &drift), "got %v", err)
	assert.True(t, errors.Is(err, ledger.ErrSchemaDrift))
	assert.Equal(t, "sales_readings", drift.Table)
	assert.Equal(t, []string{"diesel_price"}, drift.Missing)
	assert.Contains(t, err.Error(), "restart the application so migrations can add them")

	// AND: Nothing was written
	counts, err := store.CountRows(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["sales_readings"])
	var value float64
	require.NoError(t, raw.QueryRow(`SELECT sales_value FROM sales_readings WHERE date = '2024-03-01'`).Scan(&value))
	assert.Equal(t, 5000.0, value)
	require.NoError(t, raw.Close())
}

// =============================================================================
// CUSTOMERS AND TRANSACTIONS
// =============================================================================

func TestCustomers_CRUDAndSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ravi, err := store.CreateCustomer(ctx, ledger.Customer{Name: "Ravi", Phone: "98480", Email: "ravi@example.com"})
	require.NoError(t, err)
	_, err = store.CreateCustomer(ctx, ledger.Customer{Name: "Anil", Notes: "Lorry owner"})
	require.NoError(t, err)

	_, err = store.CreateCustomer(ctx, ledger.Customer{Name: "   "})
	assert.True(t, errors.Is(err, ledger.ErrValidation))

	all, err := store.ListCustomers(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Anil", all[0].Name, "ordered by name")

	found, err := store.SearchCustomers(ctx, "RAVI")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, ravi.ID, found[0].ID)

	found, err = store.SearchCustomers(ctx, "9848")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	ravi.Notes = "Pays monthly"
	require.NoError(t, store.UpdateCustomer(ctx, ravi))
	got, err := store.GetCustomer(ctx, ravi.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pays monthly", got.Notes)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = store.GetCustomer(ctx, 404)
	assert.True(t, errors.Is(err, ledger.ErrCustomerNotFound))
	assert.True(t, errors.Is(store.UpdateCustomer(ctx, ledger.Customer{ID: 404, Name: "x"}), ledger.ErrCustomerNotFound))
}

func TestTransactions_FilterAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, err := store.CreateCustomer(ctx, ledger.Customer{Name: "A"})
	require.NoError(t, err)
	b, err := store.CreateCustomer(ctx, ledger.Customer{Name: "B"})
	require.NoError(t, err)

	add := func(c ledger.Customer, typ ledger.TxType, amount float64, date string) ledger.Transaction {
		tx, err := store.AddTransaction(ctx, ledger.Transaction{CustomerID: c.ID, Type: typ, Amount: dec(amount), Date: d(date), Note: "n"})
		require.NoError(t, err)
		return tx
	}
	add(a, ledger.TxCredit, 1000, "2024-01-05")
	pay := add(a, ledger.TxPayment, 400, "2024-01-20")
	add(b, ledger.TxCredit, 50, "2024-01-10")

	_, err = store.AddTransaction(ctx, ledger.Transaction{CustomerID: 999, Type: ledger.TxCredit, Amount: dec(1), Date: d("2024-01-01")})
	assert.True(t, errors.Is(err, ledger.ErrCustomerNotFound))

	_, err = store.AddTransaction(ctx, ledger.Transaction{CustomerID: a.ID, Type: ledger.TxCredit, Amount: dec(-5), Date: d("2024-01-01")})
	assert.True(t, errors.Is(err, ledger.ErrValidation))

	txs, err := store.ListTransactions(ctx, ledger.TransactionFilter{
		CustomerID: &a.ID,
		Period:     ledger.Between(dp("2024-01-10"), dp("2024-01-31")),
	})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, pay.ID, txs[0].ID)
	assert.Equal(t, "400", txs[0].Amount.String())
	assert.Equal(t, ledger.TxPayment, txs[0].Type)

	all, err := store.ListTransactions(ctx, ledger.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "2024-01-05", all[0].Date.String(), "ordered by date")

	require.NoError(t, store.DeleteTransaction(ctx, pay.ID))
	assert.True(t, errors.Is(store.DeleteTransaction(ctx, pay.ID), ledger.ErrTransactionNotFound))
}

func TestEngineOverSQLite_RangeScenario(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	engine := ledger.NewEngine(store)

	a, err := store.CreateCustomer(ctx, ledger.Customer{Name: "A"})
	require.NoError(t, err)
	_, err = store.AddTransaction(ctx, ledger.Transaction{CustomerID: a.ID, Type: ledger.TxCredit, Amount: dec(1000), Date: d("2024-01-05")})
	require.NoError(t, err)
	_, err = store.AddTransaction(ctx, ledger.Transaction{CustomerID: a.ID, Type: ledger.TxPayment, Amount: dec(400), Date: d("2024-01-20")})
	require.NoError(t, err)

	st, err := engine.CustomerStatement(ctx, a.ID, ledger.Between(dp("2024-01-10"), dp("2024-01-31")))
	require.NoError(t, err)
	assert.Equal(t, "1000", st.Balance.Opening.String())
	assert.Equal(t, "0", st.Balance.PeriodCredit.String())
	assert.Equal(t, "400", st.Balance.PeriodPayment.String())
	assert.Equal(t, "600", st.Balance.Closing().String())
	assert.Equal(t, "600", st.Totals.TotalDue().String())
}

// =============================================================================
// SALES READINGS
// =============================================================================

func TestUpsertSalesReadings_ReplaceNotAppend(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	date := d("2024-03-01")

	r := row("2024-03-01", 1, 100, 150, 95.5, ledger.FuelPetrol)
	require.NoError(t, store.UpsertSalesReadings(ctx, date, []ledger.SalesReading{r}))
	require.NoError(t, store.UpsertSalesReadings(ctx, date, []ledger.SalesReading{r}))

	readings, err := store.ListSalesReadings(ctx, ledger.SalesFilter{})
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, "50", readings[0].SalesLitres.String())
	assert.Equal(t, "4775", readings[0].SalesValue.String())
	assert.Equal(t, "95.5", readings[0].Prices.Primary.String())
	assert.True(t, readings[0].Prices.Secondary.IsZero())

	// Overwrite wholesale with different values
	r2 := row("2024-03-01", 1, 100, 120, 90, ledger.FuelPetrol)
	require.NoError(t, store.UpsertSalesReadings(ctx, date, []ledger.SalesReading{r2}))
	readings, err = store.ListSalesReadings(ctx, ledger.SalesFilter{})
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, "1800", readings[0].SalesValue.String())
}

func TestUpsertSalesReadings_AtomicOnUnknownNozzle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	date := d("2024-03-01")

	err := store.UpsertSalesReadings(ctx, date, []ledger.SalesReading{
		row("2024-03-01", 1, 0, 10, 100, ledger.FuelPetrol),
		row("2024-03-01", 99, 0, 10, 100, ledger.FuelPetrol),
	})
	assert.True(t, errors.Is(err, ledger.ErrNozzleNotFound))

	readings, err := store.ListSalesReadings(ctx, ledger.SalesFilter{})
	require.NoError(t, err)
	assert.Empty(t, readings, "no partial write")
}

func TestListSalesReadings_Filters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for _, date := range []string{"2024-02-29", "2024-03-01", "2024-03-31"} {
		require.NoError(t, store.UpsertSalesReadings(ctx, d(date), []ledger.SalesReading{
			row(date, 1, 0, 1, 100, ledger.FuelPetrol),
			row(date, 4, 0, 1, 90, ledger.FuelDiesel),
		}))
	}

	march, err := ledger.MonthPeriod("2024-03")
	require.NoError(t, err)
	readings, err := store.ListSalesReadings(ctx, ledger.SalesFilter{Period: march})
	require.NoError(t, err)
	assert.Len(t, readings, 4)

	nozzle := int64(4)
	readings, err = store.ListSalesReadings(ctx, ledger.SalesFilter{Period: march, NozzleID: &nozzle})
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, "90", readings[0].Prices.Secondary.String())
}

func TestLatestReadingsBefore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertSalesReadings(ctx, d("2024-03-01"), []ledger.SalesReading{
		row("2024-03-01", 1, 0, 100, 1, ledger.FuelPetrol),
		row("2024-03-01", 2, 0, 200, 1, ledger.FuelPetrol),
	}))
	require.NoError(t, store.UpsertSalesReadings(ctx, d("2024-03-04"), []ledger.SalesReading{
		row("2024-03-04", 1, 100, 150, 1, ledger.FuelPetrol),
	}))
	require.NoError(t, store.UpsertSalesReadings(ctx, d("2024-03-05"), []ledger.SalesReading{
		row("2024-03-05", 1, 150, 170, 1, ledger.FuelPetrol),
	}))

	latest, err := store.LatestReadingsBefore(ctx, d("2024-03-05"))
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "2024-03-04", latest[1].Date.String())
	assert.Equal(t, "150", latest[1].Closing.String())
	assert.Equal(t, "2024-03-01", latest[2].Date.String())
	assert.Equal(t, "200", latest[2].Closing.String())
}

// =============================================================================
// EXPENSES
// =============================================================================

func TestExpenses_CRUDAndOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.InsertExpense(ctx, ledger.Expense{Date: d("2024-05-01"), Description: "Tea", Amount: dec(20)})
	require.NoError(t, err)
	_, err = store.InsertExpense(ctx, ledger.Expense{Date: d("2024-05-02"), Description: "Salary", Amount: dec(1500)})
	require.NoError(t, err)

	_, err = store.InsertExpense(ctx, ledger.Expense{Date: d("2024-05-02"), Description: "Bad", Amount: dec(0)})
	assert.True(t, errors.Is(err, ledger.ErrValidation))

	list, err := store.ListExpenses(ctx, ledger.AllTime())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Salary", list[0].Description, "newest date first")

	first.Amount = dec(25)
	require.NoError(t, store.UpdateExpense(ctx, first))
	got, err := store.GetExpense(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "25", got.Amount.String())

	require.NoError(t, store.DeleteExpense(ctx, first.ID))
	_, err = store.GetExpense(ctx, first.ID)
	assert.True(t, errors.Is(err, ledger.ErrExpenseNotFound))
	assert.True(t, errors.Is(store.DeleteExpense(ctx, first.ID), ledger.ErrExpenseNotFound))
}

// =============================================================================
// MAINTENANCE
// =============================================================================

func TestCountRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, err := store.CreateCustomer(ctx, ledger.Customer{Name: "A"})
	require.NoError(t, err)

	counts, err := store.CountRows(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["customers"])
	assert.Equal(t, int64(8), counts["nozzles"])
	assert.Equal(t, int64(0), counts["sales_readings"])
	assert.Len(t, counts, len(sqlite.Tables))
}
