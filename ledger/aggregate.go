/*
aggregate.go - Sales and expense roll-ups over a period

PURPOSE:
  Produces the report-ready view of sales readings and expenses for a
  resolved period: per-row lines, per-group totals and grand totals.

SALES:
  Lines are readings joined with their nozzle (label, fuel type) and the
  unit price read from the stored snapshot slot for that fuel type.
  Ordered date DESC, label ASC.

  ByFuel has one entry per fuel type (diesel, others, petrol).
  TotalValue is the sum of line values. ByFuel is built from the same
  lines, so Σ ByFuel[*].Value == TotalValue always holds. A reading whose
  nozzle no longer exists is dropped from both.

EXPENSES:
  ByCategory groups on description (the informal category), ordered by
  total DESC then description ASC. Total and Count cover every row.

SEE ALSO:
  - balance.go: Engine type
  - dashboard/dashboard.go: Daily series built from SalesLine
*/
package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SALES
// =============================================================================

// SalesLine is a reading joined with its nozzle.
type SalesLine struct {
	Date      Date
	NozzleID  int64
	Label     string
	FuelType  FuelType
	Opening   decimal.Decimal
	Closing   decimal.Decimal
	Litres    decimal.Decimal
	Value     decimal.Decimal
	UnitPrice decimal.Decimal
}

// FuelTotal is the roll-up for one fuel type.
type FuelTotal struct {
	FuelType FuelType
	Litres   decimal.Decimal
	Value    decimal.Decimal
	Readings int
}

// SalesSummary is the period view of sales.
type SalesSummary struct {
	Period      Period
	Lines       []SalesLine
	ByFuel      []FuelTotal
	TotalLitres decimal.Decimal
	TotalValue  decimal.Decimal
}

// Fuel returns the total for one fuel type (zero if absent).
func (s SalesSummary) Fuel(f FuelType) FuelTotal {
	for _, ft := range s.ByFuel {
		if ft.FuelType == f {
			return ft
		}
	}
	return FuelTotal{FuelType: f, Litres: decimal.Zero, Value: decimal.Zero}
}

// SummarizeSales joins readings to nozzles and rolls them up. Readings
// outside the period or for unknown nozzles are skipped.
func SummarizeSales(readings []SalesReading, nozzles []Nozzle, period Period) SalesSummary {
	byID := make(map[int64]Nozzle, len(nozzles))
	for _, n := range nozzles {
		byID[n.ID] = n
	}

	summary := SalesSummary{
		Period:      period,
		Lines:       make([]SalesLine, 0, len(readings)),
		TotalLitres: decimal.Zero,
		TotalValue:  decimal.Zero,
	}
	totals := make(map[FuelType]*FuelTotal, len(FuelTypes))
	for _, f := range FuelTypes {
		totals[f] = &FuelTotal{FuelType: f, Litres: decimal.Zero, Value: decimal.Zero}
	}

	for _, r := range readings {
		if !period.Contains(r.Date) {
			continue
		}
		n, ok := byID[r.NozzleID]
		if !ok {
			continue
		}
		line := SalesLine{
			Date:      r.Date,
			NozzleID:  r.NozzleID,
			Label:     n.Label,
			FuelType:  n.FuelType,
			Opening:   r.Opening,
			Closing:   r.Closing,
			Litres:    r.SalesLitres,
			Value:     r.SalesValue,
			UnitPrice: r.Prices.For(n.FuelType),
		}
		summary.Lines = append(summary.Lines, line)
		summary.TotalLitres = summary.TotalLitres.Add(line.Litres)
		summary.TotalValue = summary.TotalValue.Add(line.Value)

		ft, ok := totals[n.FuelType]
		if !ok {
			ft = &FuelTotal{FuelType: n.FuelType, Litres: decimal.Zero, Value: decimal.Zero}
			totals[n.FuelType] = ft
		}
		ft.Litres = ft.Litres.Add(line.Litres)
		ft.Value = ft.Value.Add(line.Value)
		ft.Readings++
	}

	sort.SliceStable(summary.Lines, func(i, j int) bool {
		a, b := summary.Lines[i], summary.Lines[j]
		if c := a.Date.Compare(b.Date); c != 0 {
			return c > 0
		}
		if a.Label != b.Label {
			return a.Label < b.Label
		}
		return a.NozzleID < b.NozzleID
	})

	for _, ft := range totals {
		summary.ByFuel = append(summary.ByFuel, *ft)
	}
	sort.Slice(summary.ByFuel, func(i, j int) bool {
		return summary.ByFuel[i].FuelType < summary.ByFuel[j].FuelType
	})
	return summary
}

// SalesSummary loads and summarizes readings for the period.
func (e *Engine) SalesSummary(ctx context.Context, period Period) (*SalesSummary, error) {
	nozzles, err := e.store.ListNozzles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list nozzles: %w", err)
	}
	readings, err := e.store.ListSalesReadings(ctx, SalesFilter{Period: period})
	if err != nil {
		return nil, fmt.Errorf("list sales readings: %w", err)
	}
	s := SummarizeSales(readings, nozzles, period)
	return &s, nil
}

// =============================================================================
// EXPENSES
// =============================================================================

// CategoryTotal groups expenses sharing a description.
type CategoryTotal struct {
	Description string
	Total       decimal.Decimal
	Count       int
}

// ExpenseSummary is the period view of expenses.
type ExpenseSummary struct {
	Period     Period
	Expenses   []Expense // date DESC, created_at DESC
	ByCategory []CategoryTotal
	Total      decimal.Decimal
	Count      int
}

// SummarizeExpenses rolls up expenses inside the period. Input order is kept
// for the row list.
func SummarizeExpenses(expenses []Expense, period Period) ExpenseSummary {
	summary := ExpenseSummary{
		Period:   period,
		Expenses: make([]Expense, 0, len(expenses)),
		Total:    decimal.Zero,
	}
	index := map[string]int{}
	for _, e := range expenses {
		if !period.Contains(e.Date) {
			continue
		}
		summary.Expenses = append(summary.Expenses, e)
		summary.Total = summary.Total.Add(e.Amount)
		summary.Count++

		i, ok := index[e.Description]
		if !ok {
			i = len(summary.ByCategory)
			index[e.Description] = i
			summary.ByCategory = append(summary.ByCategory, CategoryTotal{Description: e.Description, Total: decimal.Zero})
		}
		summary.ByCategory[i].Total = summary.ByCategory[i].Total.Add(e.Amount)
		summary.ByCategory[i].Count++
	}

	sort.SliceStable(summary.ByCategory, func(i, j int) bool {
		a, b := summary.ByCategory[i], summary.ByCategory[j]
		if c := a.Total.Cmp(b.Total); c != 0 {
			return c > 0
		}
		return a.Description < b.Description
	})
	return summary
}

// ExpenseSummary loads and summarizes expenses for the period.
func (e *Engine) ExpenseSummary(ctx context.Context, period Period) (*ExpenseSummary, error) {
	expenses, err := e.store.ListExpenses(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	s := SummarizeExpenses(expenses, period)
	return &s, nil
}
