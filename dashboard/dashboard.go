/*
Package dashboard composes the month view shown on the home screen.

COMPOSITION (for month M):
  sales     total value, totals by fuel, daily series, daily average by fuel
  expenses  total, daily series
  credits   M's credit, payment and net across all customers, plus the
            all-time total due (deliberately not month scoped)

DAILY SERIES:
  Only dates with rows appear, ascending. Padding to calendar days is
  left to the chart.

DAILY AVERAGE:
  totalsByFuel[f] / max(1, days on which f sold anything in M)
  A fuel with no sale days averages 0.

SEE ALSO:
  - ledger/aggregate.go: Sales and expense roll-ups
  - ledger/balance.go: Movement totals and total due
*/
package dashboard

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/slnfs/station-ledger/ledger"
)

// DailySales is one point of the sales chart.
type DailySales struct {
	Date   ledger.Date
	Petrol decimal.Decimal
	Diesel decimal.Decimal
	Others decimal.Decimal
	Total  decimal.Decimal
}

func (d *DailySales) add(f ledger.FuelType, v decimal.Decimal) {
	switch f {
	case ledger.FuelPetrol:
		d.Petrol = d.Petrol.Add(v)
	case ledger.FuelDiesel:
		d.Diesel = d.Diesel.Add(v)
	case ledger.FuelOthers:
		d.Others = d.Others.Add(v)
	}
	d.Total = d.Total.Add(v)
}

// DailyAmount is one point of the expense chart.
type DailyAmount struct {
	Date   ledger.Date
	Amount decimal.Decimal
}

type Sales struct {
	TotalSales         decimal.Decimal
	TotalsByFuel       map[ledger.FuelType]decimal.Decimal
	DailySeries        []DailySales
	DailyAverageByFuel map[ledger.FuelType]decimal.Decimal
}

type Expenses struct {
	Total       decimal.Decimal
	DailySeries []DailyAmount
}

type Credits struct {
	MonthCredit  decimal.Decimal
	MonthPayment decimal.Decimal
	MonthNet     decimal.Decimal
	TotalDue     decimal.Decimal
}

// Metrics is the full dashboard payload for one month.
type Metrics struct {
	Month    string
	Sales    Sales
	Expenses Expenses
	Credits  Credits
}

// Composer builds Metrics from the engine.
type Composer struct {
	engine *ledger.Engine
	now    func() time.Time
}

func NewComposer(engine *ledger.Engine) *Composer {
	return &Composer{engine: engine, now: time.Now}
}

// WithClock returns a copy using now for the default month.
func (c *Composer) WithClock(now func() time.Time) *Composer {
	cp := *c
	cp.now = now
	return &cp
}

// Metrics composes the dashboard for month (YYYY-MM). An empty month
// means the current one; a malformed month is ledger.ErrInvalidMonth.
func (c *Composer) Metrics(ctx context.Context, month string) (*Metrics, error) {
	if month == "" {
		month = c.now().Format("2006-01")
	}
	period, err := ledger.MonthPeriod(month)
	if err != nil {
		return nil, err
	}

	salesSummary, err := c.engine.SalesSummary(ctx, period)
	if err != nil {
		return nil, err
	}
	expenseSummary, err := c.engine.ExpenseSummary(ctx, period)
	if err != nil {
		return nil, err
	}
	movement, err := c.engine.MovementTotals(ctx, period)
	if err != nil {
		return nil, err
	}
	totalDue, err := c.engine.TotalDue(ctx)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		Month:    period.Month,
		Sales:    composeSales(salesSummary),
		Expenses: composeExpenses(expenseSummary),
		Credits: Credits{
			MonthCredit:  movement.PeriodCredit,
			MonthPayment: movement.PeriodPayment,
			MonthNet:     movement.Net(),
			TotalDue:     totalDue,
		},
	}, nil
}

func composeSales(s *ledger.SalesSummary) Sales {
	out := Sales{
		TotalSales:         s.TotalValue,
		TotalsByFuel:       make(map[ledger.FuelType]decimal.Decimal, len(ledger.FuelTypes)),
		DailyAverageByFuel: make(map[ledger.FuelType]decimal.Decimal, len(ledger.FuelTypes)),
	}

	days := map[string]*DailySales{}
	saleDays := make(map[ledger.FuelType]map[string]bool, len(ledger.FuelTypes))
	for _, f := range ledger.FuelTypes {
		saleDays[f] = map[string]bool{}
	}

	for _, line := range s.Lines {
		key := line.Date.String()
		day, ok := days[key]
		if !ok {
			day = &DailySales{Date: line.Date, Petrol: decimal.Zero, Diesel: decimal.Zero, Others: decimal.Zero, Total: decimal.Zero}
			days[key] = day
		}
		day.add(line.FuelType, line.Value)
		if !line.Litres.IsZero() || !line.Value.IsZero() {
			if set, ok := saleDays[line.FuelType]; ok {
				set[key] = true
			}
		}
	}

	for _, day := range days {
		out.DailySeries = append(out.DailySeries, *day)
	}
	sort.Slice(out.DailySeries, func(i, j int) bool {
		return out.DailySeries[i].Date.Before(out.DailySeries[j].Date)
	})

	for _, f := range ledger.FuelTypes {
		total := s.Fuel(f).Value
		out.TotalsByFuel[f] = total
		out.DailyAverageByFuel[f] = DailyAverage(total, len(saleDays[f]))
	}
	return out
}

func composeExpenses(s *ledger.ExpenseSummary) Expenses {
	out := Expenses{Total: s.Total}
	index := map[string]int{}
	for _, e := range s.Expenses {
		key := e.Date.String()
		i, ok := index[key]
		if !ok {
			i = len(out.DailySeries)
			index[key] = i
			out.DailySeries = append(out.DailySeries, DailyAmount{Date: e.Date, Amount: decimal.Zero})
		}
		out.DailySeries[i].Amount = out.DailySeries[i].Amount.Add(e.Amount)
	}
	sort.Slice(out.DailySeries, func(i, j int) bool {
		return out.DailySeries[i].Date.Before(out.DailySeries[j].Date)
	})
	return out
}

// DailyAverage divides by max(1, days) so a fuel with no sale days is 0.
func DailyAverage(total decimal.Decimal, days int) decimal.Decimal {
	if days < 1 {
		days = 1
	}
	return total.Div(decimal.NewFromInt(int64(days)))
}
