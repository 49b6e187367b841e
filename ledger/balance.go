/*
balance.go - Customer balance calculation over a period

PURPOSE:
  Computes opening balance, in-period movement and closing balance for
  one customer or for every customer, plus the all-time "current due".
  Balances are never stored; they are derived from transactions on read.

BALANCE COMPONENTS:
  Opening:       Σ signed amounts dated strictly before Start (0 if no Start)
  PeriodCredit:  Σ credit amounts inside [Start, End]
  PeriodPayment: Σ payment amounts inside [Start, End]
  Closing:       Opening + PeriodCredit - PeriodPayment

  Continuity: Opening(p) == Closing(everything up to Start-1).

ALL-TIME TOTALS:
  TotalCredit, TotalPayment and TotalDue ignore the period entirely.
  TotalDue is what the customer owes right now.

EXAMPLE:
  Credit 1000 on 2024-01-05, payment 400 on 2024-01-20,
  period 2024-01-10..2024-01-31:

    Opening 1000, PeriodCredit 0, PeriodPayment 400, Closing 600
    TotalDue (all time) 600

BATCHING:
  CustomersSummary loads transactions once and folds them per customer.
  Each customer's figures only ever see that customer's rows.

SEE ALSO:
  - period.go: Period bounds
  - aggregate.go: Sales and expense roll-ups
*/
package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BALANCE - Computed for a PERIOD
// =============================================================================

// Balance is a customer's position over a period.
type Balance struct {
	Opening       decimal.Decimal
	PeriodCredit  decimal.Decimal
	PeriodPayment decimal.Decimal
}

// Closing = Opening + PeriodCredit - PeriodPayment.
func (b Balance) Closing() decimal.Decimal {
	return b.Opening.Add(b.PeriodCredit).Sub(b.PeriodPayment)
}

// Net is the in-period movement.
func (b Balance) Net() decimal.Decimal {
	return b.PeriodCredit.Sub(b.PeriodPayment)
}

// Totals are all-time figures for a customer.
type Totals struct {
	TotalCredit  decimal.Decimal
	TotalPayment decimal.Decimal
}

// TotalDue = TotalCredit - TotalPayment.
func (t Totals) TotalDue() decimal.Decimal {
	return t.TotalCredit.Sub(t.TotalPayment)
}

// ComputeBalance folds transactions into a Balance for the period.
// Rows after End are ignored.
func ComputeBalance(txs []Transaction, period Period) Balance {
	b := Balance{Opening: decimal.Zero, PeriodCredit: decimal.Zero, PeriodPayment: decimal.Zero}
	for _, tx := range txs {
		switch {
		case period.BeforeStart(tx.Date):
			b.Opening = b.Opening.Add(tx.Signed())
		case period.Contains(tx.Date):
			if tx.Type == TxCredit {
				b.PeriodCredit = b.PeriodCredit.Add(tx.Amount)
			} else {
				b.PeriodPayment = b.PeriodPayment.Add(tx.Amount)
			}
		}
	}
	return b
}

// ComputeTotals folds every transaction regardless of date.
func ComputeTotals(txs []Transaction) Totals {
	t := Totals{TotalCredit: decimal.Zero, TotalPayment: decimal.Zero}
	for _, tx := range txs {
		if tx.Type == TxCredit {
			t.TotalCredit = t.TotalCredit.Add(tx.Amount)
		} else {
			t.TotalPayment = t.TotalPayment.Add(tx.Amount)
		}
	}
	return t
}

// InPeriod returns the transactions inside the window, order kept.
func InPeriod(txs []Transaction, period Period) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		if period.Contains(tx.Date) {
			out = append(out, tx)
		}
	}
	return out
}

// =============================================================================
// ENGINE - Reads the store and produces report-ready aggregates
// =============================================================================

// Engine is the balance and aggregation engine. Read only.
type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// CustomerStatement is everything a single-customer report needs.
type CustomerStatement struct {
	Customer     Customer
	Period       Period
	Transactions []Transaction // in period, date ASC
	Balance      Balance
	Totals       Totals // all time
}

// CustomerStatement computes the period view of one customer.
// Returns ErrCustomerNotFound for an unknown id.
func (e *Engine) CustomerStatement(ctx context.Context, customerID int64, period Period) (*CustomerStatement, error) {
	customer, err := e.store.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	// Totals are all time, so load the full history once and derive both views.
	txs, err := e.store.ListTransactions(ctx, TransactionFilter{CustomerID: &customerID})
	if err != nil {
		return nil, fmt.Errorf("load transactions for customer %d: %w", customerID, err)
	}

	return &CustomerStatement{
		Customer:     customer,
		Period:       period,
		Transactions: InPeriod(txs, period),
		Balance:      ComputeBalance(txs, period),
		Totals:       ComputeTotals(txs),
	}, nil
}

// CustomerTotals returns all-time credit, payment and due for one customer.
func (e *Engine) CustomerTotals(ctx context.Context, customerID int64) (Totals, error) {
	if _, err := e.store.GetCustomer(ctx, customerID); err != nil {
		return Totals{}, err
	}
	txs, err := e.store.ListTransactions(ctx, TransactionFilter{CustomerID: &customerID})
	if err != nil {
		return Totals{}, fmt.Errorf("load transactions for customer %d: %w", customerID, err)
	}
	return ComputeTotals(txs), nil
}

// SummaryRow is one line of the all-customers summary.
type SummaryRow struct {
	Customer Customer
	Balance  Balance
}

// CustomersSummary computes every customer's balance for the period in one
// pass over the transactions. Rows are ordered by customer name.
func (e *Engine) CustomersSummary(ctx context.Context, period Period) ([]SummaryRow, error) {
	customers, err := e.store.ListCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}

	// Nothing after End can affect opening or movement.
	txs, err := e.store.ListTransactions(ctx, TransactionFilter{Period: Period{End: period.End}})
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	byCustomer := make(map[int64][]Transaction, len(customers))
	for _, tx := range txs {
		byCustomer[tx.CustomerID] = append(byCustomer[tx.CustomerID], tx)
	}

	rows := make([]SummaryRow, 0, len(customers))
	for _, c := range customers {
		rows = append(rows, SummaryRow{
			Customer: c,
			Balance:  ComputeBalance(byCustomer[c.ID], period),
		})
	}
	return rows, nil
}

// MovementTotals sums credit and payment inside the period across all customers.
func (e *Engine) MovementTotals(ctx context.Context, period Period) (Balance, error) {
	txs, err := e.store.ListTransactions(ctx, TransactionFilter{Period: period})
	if err != nil {
		return Balance{}, fmt.Errorf("load transactions: %w", err)
	}
	// Only in-period rows were loaded, so Opening stays zero.
	return ComputeBalance(txs, period), nil
}

// TotalDue is the all-time outstanding amount across every customer.
func (e *Engine) TotalDue(ctx context.Context) (decimal.Decimal, error) {
	txs, err := e.store.ListTransactions(ctx, TransactionFilter{})
	if err != nil {
		return decimal.Zero, fmt.Errorf("load transactions: %w", err)
	}
	return ComputeTotals(txs).TotalDue(), nil
}
