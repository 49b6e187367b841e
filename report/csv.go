package report

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/slnfs/station-ledger/ledger"
)

// CSV layout: title lines, period label, generated line, blank, then the
// report's blocks separated by blank lines. Lines are joined with "\n"
// and the file has no trailing newline. Free-text fields are always
// quoted with internal quotes doubled; numbers and dates are not.

// lines accumulates CSV lines.
type lines []string

func (l *lines) add(s string)         { *l = append(*l, s) }
func (l *lines) row(fields ...string) { l.add(strings.Join(fields, ",")) }
func (l lines) String() string        { return strings.Join(l, "\n") }

// esc quotes a text field.
func esc(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// num renders a number in its shortest form (100, 95.5, -12.25).
func num(d decimal.Decimal) string { return d.String() }

// fixed2 renders a number with two decimals.
func fixed2(d decimal.Decimal) string { return d.StringFixed(2) }

func upper(f ledger.FuelType) string { return strings.ToUpper(string(f)) }

// RenderCSV renders any report kind.
func RenderCSV(data *Data) string {
	switch data.Kind {
	case KindCustomer:
		return customerCSV(data.Header, data.Customer)
	case KindCustomersSummary:
		return customersSummaryCSV(data.Header, data.Customers)
	case KindSales:
		return salesCSV(data.Header, data.Sales)
	default:
		return expensesCSV(data.Header, data.Expenses)
	}
}

func header(h Header) lines {
	var l lines
	l.add(h.Station)
	l.add(h.Title)
	l.add(h.Period.Label())
	l.add(h.GeneratedLine())
	l.add("")
	return l
}

func customerCSV(h Header, st *ledger.CustomerStatement) string {
	l := header(h)
	c := st.Customer
	l.add("Customer Name,Phone,Email,Notes")
	l.row(esc(c.Name), esc(c.Phone), esc(c.Email), esc(c.Notes))
	l.add("")

	b := st.Balance
	l.add("Opening Balance,Period Credit,Period Payment,Closing Balance")
	l.row(num(b.Opening), num(b.PeriodCredit), num(b.PeriodPayment), num(b.Closing()))
	l.add("")

	l.add("Type,Date,Amount,Note")
	for _, tx := range st.Transactions {
		l.row(string(tx.Type), tx.Date.String(), num(tx.Amount), esc(tx.Note))
	}
	l.add("")

	t := st.Totals
	l.add("Total Credit,Total Payment,Total Due")
	l.row(num(t.TotalCredit), num(t.TotalPayment), num(t.TotalDue()))
	return l.String()
}

func customersSummaryCSV(h Header, rows []ledger.SummaryRow) string {
	l := header(h)
	l.add("Customer ID,Name,Phone,Email,Opening,Billing Period Credit,Billing Period Payment,Closing")
	for _, r := range rows {
		c, b := r.Customer, r.Balance
		l.row(
			strconv.FormatInt(c.ID, 10),
			esc(c.Name), esc(c.Phone), esc(c.Email),
			num(b.Opening), num(b.PeriodCredit), num(b.PeriodPayment), num(b.Closing()),
		)
	}
	return l.String()
}

func salesCSV(h Header, s *ledger.SalesSummary) string {
	l := header(h)
	l.add("Summary:")
	l.add("Fuel Type,Total Litres,Total Value (Rs)")
	for _, ft := range s.ByFuel {
		if ft.Readings == 0 {
			continue
		}
		l.row(upper(ft.FuelType), fixed2(ft.Litres), fixed2(ft.Value))
	}
	l.row("TOTAL", fixed2(s.TotalLitres), fixed2(s.TotalValue))
	l.add("")

	l.add("Date,Label,Fuel Type,Opening (L),Closing (L),Sales (L),Sales Value (Rs),Unit Price (Rs/L)")
	for _, line := range s.Lines {
		l.row(
			line.Date.String(), esc(line.Label), upper(line.FuelType),
			num(line.Opening), num(line.Closing), num(line.Litres), num(line.Value),
			num(line.UnitPrice),
		)
	}
	return l.String()
}

func expensesCSV(h Header, s *ledger.ExpenseSummary) string {
	l := header(h)
	l.add("Summary:")
	l.add("Description,Total Amount (Rs),Count")
	for _, ct := range s.ByCategory {
		l.row(esc(ct.Description), fixed2(ct.Total), strconv.Itoa(ct.Count))
	}
	l.row("TOTAL", fixed2(s.Total), strconv.Itoa(s.Count))
	l.add("")

	l.add("Date,Description,Amount (Rs)")
	for _, e := range s.Expenses {
		l.row(e.Date.String(), esc(e.Description), num(e.Amount))
	}
	return l.String()
}
