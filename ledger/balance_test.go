package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slnfs/station-ledger/ledger"
	"github.com/slnfs/station-ledger/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestEngine(t *testing.T) (*ledger.Engine, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return ledger.NewEngine(mem), mem
}

func addCustomer(t *testing.T, s ledger.Store, name string) ledger.Customer {
	t.Helper()
	c, err := s.CreateCustomer(context.Background(), ledger.Customer{Name: name})
	require.NoError(t, err)
	return c
}

func addTx(t *testing.T, s ledger.Store, customerID int64, typ ledger.TxType, amount float64, date string) ledger.Transaction {
	t.Helper()
	tx, err := s.AddTransaction(context.Background(), ledger.Transaction{
		CustomerID: customerID,
		Amount:     decimal.NewFromFloat(amount),
		Type:       typ,
		Date:       ledger.MustDate(date),
	})
	require.NoError(t, err)
	return tx
}

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func assertDecimal(t *testing.T, want float64, got decimal.Decimal, msg string) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "%s: want %v, got %s", msg, want, got)
}

// =============================================================================
// SINGLE CUSTOMER
// =============================================================================

func TestCustomerStatement_RangeScenario(t *testing.T) {
	// GIVEN: Customer A has a credit of 1000 on Jan 5 and a payment of 400 on Jan 20
	engine, mem := newTestEngine(t)
	a := addCustomer(t, mem, "A")
	addTx(t, mem, a.ID, ledger.TxCredit, 1000, "2024-01-05")
	addTx(t, mem, a.ID, ledger.TxPayment, 400, "2024-01-20")

	// WHEN: Querying Jan 10 .. Jan 31
	period := ledger.Between(datePtr("2024-01-10"), datePtr("2024-01-31"))
	st, err := engine.CustomerStatement(context.Background(), a.ID, period)
	require.NoError(t, err)

	// THEN: The credit is opening balance, the payment is in-period
	assertDecimal(t, 1000, st.Balance.Opening, "opening")
	assertDecimal(t, 0, st.Balance.PeriodCredit, "period credit")
	assertDecimal(t, 400, st.Balance.PeriodPayment, "period payment")
	assertDecimal(t, 600, st.Balance.Closing(), "closing")
	require.Len(t, st.Transactions, 1)
	assert.Equal(t, ledger.TxPayment, st.Transactions[0].Type)

	// AND: All-time due ignores the period
	assertDecimal(t, 600, st.Totals.TotalDue(), "total due")
}

func TestCustomerStatement_NoTransactionsIsZero(t *testing.T) {
	engine, mem := newTestEngine(t)
	c := addCustomer(t, mem, "Empty")

	for _, p := range []ledger.Period{ledger.AllTime(), ledger.Between(datePtr("2024-01-01"), nil)} {
		st, err := engine.CustomerStatement(context.Background(), c.ID, p)
		require.NoError(t, err)
		assert.True(t, st.Balance.Opening.IsZero())
		assert.True(t, st.Balance.Closing().IsZero())
		assert.True(t, st.Totals.TotalCredit.IsZero())
		assert.True(t, st.Totals.TotalPayment.IsZero())
		assert.True(t, st.Totals.TotalDue().IsZero())
		assert.Empty(t, st.Transactions)
	}

	totals, err := engine.CustomerTotals(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, "0", totals.TotalDue().String())
}

func TestCustomerStatement_UnknownCustomer(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.CustomerStatement(context.Background(), 999, ledger.AllTime())
	assert.True(t, errors.Is(err, ledger.ErrCustomerNotFound))
	assert.True(t, ledger.IsNotFound(err))
}

func TestCustomerStatement_BoundaryDatesIncluded(t *testing.T) {
	engine, mem := newTestEngine(t)
	c := addCustomer(t, mem, "Edge")
	addTx(t, mem, c.ID, ledger.TxCredit, 10, "2024-01-09")
	addTx(t, mem, c.ID, ledger.TxCredit, 20, "2024-01-10")
	addTx(t, mem, c.ID, ledger.TxCredit, 30, "2024-01-31")
	addTx(t, mem, c.ID, ledger.TxCredit, 40, "2024-02-01")

	st, err := engine.CustomerStatement(context.Background(), c.ID,
		ledger.Between(datePtr("2024-01-10"), datePtr("2024-01-31")))
	require.NoError(t, err)

	assertDecimal(t, 10, st.Balance.Opening, "opening")
	assertDecimal(t, 50, st.Balance.PeriodCredit, "period credit")
	assertDecimal(t, 60, st.Balance.Closing(), "closing excludes rows after end")
	assertDecimal(t, 100, st.Totals.TotalDue(), "total due is all time")
}

func TestCustomerStatement_ContinuityAcrossAdjacentPeriods(t *testing.T) {
	engine, mem := newTestEngine(t)
	c := addCustomer(t, mem, "Continuity")
	addTx(t, mem, c.ID, ledger.TxCredit, 500, "2024-01-03")
	addTx(t, mem, c.ID, ledger.TxPayment, 125.5, "2024-01-31")
	addTx(t, mem, c.ID, ledger.TxCredit, 300, "2024-02-01")
	addTx(t, mem, c.ID, ledger.TxPayment, 74.5, "2024-02-29")
	addTx(t, mem, c.ID, ledger.TxCredit, 90, "2024-03-15")

	ctx := context.Background()
	for _, month := range []string{"2024-01", "2024-02", "2024-03"} {
		p, err := ledger.MonthPeriod(month)
		require.NoError(t, err)

		st, err := engine.CustomerStatement(ctx, c.ID, p)
		require.NoError(t, err)

		prev, err := engine.CustomerStatement(ctx, c.ID, *p.Preceding())
		require.NoError(t, err)

		assert.True(t, st.Balance.Opening.Equal(prev.Balance.Closing()),
			"%s: opening %s != previous closing %s", month, st.Balance.Opening, prev.Balance.Closing())
		assert.True(t, st.Balance.Closing().Equal(
			st.Balance.Opening.Add(st.Balance.PeriodCredit).Sub(st.Balance.PeriodPayment)))
	}
}

// =============================================================================
// ALL CUSTOMERS
// =============================================================================

func TestCustomersSummary_NoLeakBetweenCustomers(t *testing.T) {
	// GIVEN: Two customers with interleaved transactions
	engine, mem := newTestEngine(t)
	bravo := addCustomer(t, mem, "Bravo")
	alpha := addCustomer(t, mem, "Alpha")
	idle := addCustomer(t, mem, "Charlie")

	addTx(t, mem, alpha.ID, ledger.TxCredit, 100, "2024-01-01")
	addTx(t, mem, bravo.ID, ledger.TxCredit, 1000, "2024-01-02")
	addTx(t, mem, alpha.ID, ledger.TxCredit, 50, "2024-02-05")
	addTx(t, mem, bravo.ID, ledger.TxPayment, 200, "2024-02-06")
	addTx(t, mem, alpha.ID, ledger.TxPayment, 30, "2024-03-01")

	// WHEN: Summarizing February
	p, err := ledger.MonthPeriod("2024-02")
	require.NoError(t, err)
	rows, err := engine.CustomersSummary(context.Background(), p)
	require.NoError(t, err)

	// THEN: Rows are ordered by name and figures are per customer
	require.Len(t, rows, 3)
	assert.Equal(t, "Alpha", rows[0].Customer.Name)
	assert.Equal(t, "Bravo", rows[1].Customer.Name)
	assert.Equal(t, idle.ID, rows[2].Customer.ID)

	assertDecimal(t, 100, rows[0].Balance.Opening, "alpha opening")
	assertDecimal(t, 50, rows[0].Balance.PeriodCredit, "alpha credit")
	assertDecimal(t, 0, rows[0].Balance.PeriodPayment, "alpha payment")
	assertDecimal(t, 150, rows[0].Balance.Closing(), "alpha closing")

	assertDecimal(t, 1000, rows[1].Balance.Opening, "bravo opening")
	assertDecimal(t, 200, rows[1].Balance.PeriodPayment, "bravo payment")
	assertDecimal(t, 800, rows[1].Balance.Closing(), "bravo closing")

	assert.True(t, rows[2].Balance.Closing().IsZero())
}

func TestCustomersSummary_MatchesSingleCustomerStatements(t *testing.T) {
	engine, mem := newTestEngine(t)
	ids := []int64{
		addCustomer(t, mem, "One").ID,
		addCustomer(t, mem, "Two").ID,
	}
	addTx(t, mem, ids[0], ledger.TxCredit, 12.25, "2023-12-31")
	addTx(t, mem, ids[1], ledger.TxCredit, 80, "2024-01-15")
	addTx(t, mem, ids[0], ledger.TxPayment, 2.25, "2024-01-15")
	addTx(t, mem, ids[1], ledger.TxPayment, 81, "2024-01-16")

	p := ledger.Between(datePtr("2024-01-01"), datePtr("2024-01-15"))
	rows, err := engine.CustomersSummary(context.Background(), p)
	require.NoError(t, err)

	for _, row := range rows {
		st, err := engine.CustomerStatement(context.Background(), row.Customer.ID, p)
		require.NoError(t, err)
		assert.True(t, row.Balance.Opening.Equal(st.Balance.Opening))
		assert.True(t, row.Balance.Closing().Equal(st.Balance.Closing()))
	}
}

func TestMovementTotalsAndTotalDue(t *testing.T) {
	engine, mem := newTestEngine(t)
	a := addCustomer(t, mem, "A")
	b := addCustomer(t, mem, "B")
	addTx(t, mem, a.ID, ledger.TxCredit, 500, "2024-04-30")
	addTx(t, mem, a.ID, ledger.TxCredit, 250, "2024-05-02")
	addTx(t, mem, b.ID, ledger.TxPayment, 100, "2024-05-20")
	addTx(t, mem, b.ID, ledger.TxCredit, 300, "2024-06-01")

	p, err := ledger.MonthPeriod("2024-05")
	require.NoError(t, err)

	m, err := engine.MovementTotals(context.Background(), p)
	require.NoError(t, err)
	assertDecimal(t, 250, m.PeriodCredit, "month credit")
	assertDecimal(t, 100, m.PeriodPayment, "month payment")
	assertDecimal(t, 150, m.Net(), "month net")
	assert.True(t, m.Opening.IsZero())

	due, err := engine.TotalDue(context.Background())
	require.NoError(t, err)
	assertDecimal(t, 950, due, "total due is not month scoped")
}

func TestComputeBalance_Pure(t *testing.T) {
	txs := []ledger.Transaction{
		{Amount: dec(10), Type: ledger.TxCredit, Date: ledger.MustDate("2024-01-01")},
		{Amount: dec(3), Type: ledger.TxPayment, Date: ledger.MustDate("2024-01-02")},
	}
	b := ledger.ComputeBalance(txs, ledger.AllTime())
	assert.True(t, b.Opening.IsZero(), "no start bound means no opening")
	assertDecimal(t, 7, b.Closing(), "closing")
	assertDecimal(t, -3, txs[1].Signed(), "payment is negative when signed")
}
