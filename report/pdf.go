package report

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf/v2"
	"github.com/shopspring/decimal"

	"github.com/slnfs/station-ledger/ledger"
)

// =============================================================================
// DOCUMENT WRITER
// =============================================================================

const (
	pdfMargin    = 10.0
	pdfRowHeight = 7.0
)

// pdfDoc wraps gofpdf with the header-on-every-page and table helpers
// all four reports share.
type pdfDoc struct {
	pdf   *gofpdf.Fpdf
	tr    func(string) string
	width float64
	h     Header
}

func newPDF(orientation string, h Header) *pdfDoc {
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin+5)
	pdf.SetCreationDate(h.Generated)
	pdf.SetTitle(h.Title, true)

	pageW, _ := pdf.GetPageSize()
	d := &pdfDoc{
		pdf:   pdf,
		tr:    pdf.UnicodeTranslatorFromDescriptor(""),
		width: pageW - 2*pdfMargin,
		h:     h,
	}
	pdf.SetHeaderFunc(d.drawHeader)
	pdf.AddPage()
	return d
}

func (d *pdfDoc) drawHeader() {
	pdf := d.pdf
	pdf.SetTextColor(17, 17, 17)
	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(d.width, 9, d.tr(d.h.Station), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 14)
	pdf.CellFormat(d.width, 7, d.tr(d.h.Title), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(102, 102, 102)
	pdf.CellFormat(d.width, 5, d.tr(d.h.GeneratedLine()), "", 1, "C", false, 0, "")
	pdf.CellFormat(d.width, 5, d.tr(d.h.Period.Label()), "", 1, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(2)
	y := pdf.GetY()
	pdf.SetDrawColor(221, 221, 221)
	pdf.Line(pdfMargin, y, pdfMargin+d.width, y)
	pdf.Ln(4)
}

func (d *pdfDoc) section(title string) {
	d.pdf.SetFont("Arial", "BU", 12)
	d.pdf.CellFormat(d.width, 8, d.tr(title), "", 1, "L", false, 0, "")
	d.pdf.Ln(1)
}

func (d *pdfDoc) line(text string, bold bool) {
	style := ""
	if bold {
		style = "B"
	}
	d.pdf.SetFont("Arial", style, 10)
	d.pdf.CellFormat(d.width, 6, d.tr(text), "", 1, "L", false, 0, "")
}

// column describes one table column. Widths are relative and scaled to
// the printable width.
type column struct {
	title string
	width float64
	align string
}

// table draws a zebra striped table. The header row is repeated after
// every page break.
func (d *pdfDoc) table(cols []column, rows [][]string) {
	pdf := d.pdf
	total := 0.0
	for _, c := range cols {
		total += c.width
	}
	widths := make([]float64, len(cols))
	for i, c := range cols {
		widths[i] = c.width * d.width / total
	}

	drawHead := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(240, 240, 240)
		pdf.SetDrawColor(224, 224, 224)
		for i, c := range cols {
			pdf.CellFormat(widths[i], pdfRowHeight, d.tr(c.title), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}

	_, pageH := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()

	drawHead()
	pdf.SetFont("Arial", "", 9)
	for n, row := range rows {
		if pdf.GetY()+pdfRowHeight > pageH-bottom {
			pdf.AddPage()
			drawHead()
			pdf.SetFont("Arial", "", 9)
		}
		fill := n%2 == 0
		pdf.SetFillColor(250, 250, 250)
		pdf.SetDrawColor(238, 238, 238)
		for i, v := range row {
			pdf.CellFormat(widths[i], pdfRowHeight, d.tr(v), "1", 0, cols[i].align, fill, 0, "")
		}
		pdf.Ln(-1)
	}
}

func (d *pdfDoc) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func currency(v decimal.Decimal) string {
	return "Rs " + v.StringFixed(2)
}

// =============================================================================
// REPORTS
// =============================================================================

// RenderPDF renders any report kind.
func RenderPDF(data *Data) ([]byte, error) {
	switch data.Kind {
	case KindCustomer:
		return customerPDF(data.Header, data.Customer)
	case KindCustomersSummary:
		return customersSummaryPDF(data.Header, data.Customers)
	case KindSales:
		return salesPDF(data.Header, data.Sales)
	default:
		return expensesPDF(data.Header, data.Expenses)
	}
}

func customerPDF(h Header, st *ledger.CustomerStatement) ([]byte, error) {
	d := newPDF("P", h)
	c := st.Customer

	d.section("Customer Details")
	d.line("Name: "+c.Name, false)
	if c.Phone != "" {
		d.line("Phone: "+c.Phone, false)
	}
	if c.Email != "" {
		d.line("Email: "+c.Email, false)
	}
	if c.Notes != "" {
		d.line("Notes: "+c.Notes, false)
	}
	d.pdf.Ln(3)

	b := st.Balance
	d.section("Balance")
	d.line("Opening Balance: "+currency(b.Opening), false)
	d.line("Credits in Period: "+currency(b.PeriodCredit), false)
	d.line("Payments in Period: "+currency(b.PeriodPayment), false)
	d.line("Closing Balance: "+currency(b.Closing()), true)
	d.pdf.Ln(3)

	d.section("Transactions")
	rows := make([][]string, 0, len(st.Transactions))
	for _, tx := range st.Transactions {
		rows = append(rows, []string{strings.ToUpper(string(tx.Type)), tx.Date.String(), currency(tx.Amount), tx.Note})
	}
	d.table([]column{
		{"Type", 20, "C"},
		{"Date", 25, "C"},
		{"Amount", 25, "R"},
		{"Note", 70, "L"},
	}, rows)
	d.pdf.Ln(4)

	d.line("Total Due (all time): "+currency(st.Totals.TotalDue()), true)
	return d.bytes()
}

func customersSummaryPDF(h Header, summary []ledger.SummaryRow) ([]byte, error) {
	d := newPDF("L", h)

	total := ledger.Balance{Opening: decimal.Zero, PeriodCredit: decimal.Zero, PeriodPayment: decimal.Zero}
	rows := make([][]string, 0, len(summary)+1)
	for _, r := range summary {
		c, b := r.Customer, r.Balance
		rows = append(rows, []string{
			strconv.FormatInt(c.ID, 10), c.Name, c.Phone, c.Email,
			currency(b.Opening), currency(b.PeriodCredit), currency(b.PeriodPayment), currency(b.Closing()),
		})
		total.Opening = total.Opening.Add(b.Opening)
		total.PeriodCredit = total.PeriodCredit.Add(b.PeriodCredit)
		total.PeriodPayment = total.PeriodPayment.Add(b.PeriodPayment)
	}
	rows = append(rows, []string{
		"", "TOTAL", "", "",
		currency(total.Opening), currency(total.PeriodCredit), currency(total.PeriodPayment), currency(total.Closing()),
	})

	d.table([]column{
		{"ID", 10, "C"},
		{"Name", 45, "L"},
		{"Phone", 30, "L"},
		{"Email", 45, "L"},
		{"Opening", 30, "R"},
		{"Credit", 30, "R"},
		{"Payment", 30, "R"},
		{"Closing", 30, "R"},
	}, rows)
	return d.bytes()
}

func salesPDF(h Header, s *ledger.SalesSummary) ([]byte, error) {
	d := newPDF("L", h)

	d.section("Summary by Fuel Type")
	for _, ft := range s.ByFuel {
		if ft.Readings == 0 {
			continue
		}
		d.line(fmt.Sprintf("%s: %s L, %s", strings.ToUpper(string(ft.FuelType)), ft.Litres.StringFixed(2), currency(ft.Value)), false)
	}
	d.pdf.Ln(2)
	d.line("TOTAL SALES VALUE: "+currency(s.TotalValue), true)
	d.pdf.Ln(4)

	d.section("Daily Sales Details")
	rows := make([][]string, 0, len(s.Lines))
	for _, l := range s.Lines {
		rows = append(rows, []string{
			l.Date.String(), l.Label, strings.ToUpper(string(l.FuelType)),
			l.Opening.StringFixed(2), l.Closing.StringFixed(2), l.Litres.StringFixed(2),
			currency(l.Value), currency(l.UnitPrice),
		})
	}
	d.table([]column{
		{"Date", 100, "C"},
		{"Label", 120, "L"},
		{"Fuel", 80, "C"},
		{"Opening", 90, "R"},
		{"Closing", 90, "R"},
		{"Sales(L)", 90, "R"},
		{"Value", 100, "R"},
		{"Unit Price (Rs/L)", 100, "R"},
	}, rows)
	return d.bytes()
}

func expensesPDF(h Header, s *ledger.ExpenseSummary) ([]byte, error) {
	d := newPDF("P", h)

	d.section("Summary by Description")
	for _, ct := range s.ByCategory {
		d.line(fmt.Sprintf("%s: %s (%d)", ct.Description, currency(ct.Total), ct.Count), false)
	}
	d.pdf.Ln(2)
	d.line(fmt.Sprintf("TOTAL EXPENSES: %s (%d entries)", currency(s.Total), s.Count), true)
	d.pdf.Ln(4)

	d.section("Expense Details")
	rows := make([][]string, 0, len(s.Expenses))
	for _, e := range s.Expenses {
		rows = append(rows, []string{e.Date.String(), e.Description, currency(e.Amount)})
	}
	d.table([]column{
		{"Date", 30, "C"},
		{"Description", 110, "L"},
		{"Amount", 40, "R"},
	}, rows)
	return d.bytes()
}
