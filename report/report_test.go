package report_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slnfs/station-ledger/ledger"
	"github.com/slnfs/station-ledger/ledger/store"
	"github.com/slnfs/station-ledger/report"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var generated = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func datePtr(s string) *ledger.Date {
	d := ledger.MustDate(s)
	return &d
}

type fixture struct {
	mem     *store.Memory
	reports *report.Service
	ravi    ledger.Customer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()

	ravi, err := mem.CreateCustomer(ctx, ledger.Customer{Name: `Ravi "RK" Kumar`, Phone: "98480", Email: "ravi@example.com", Notes: "Lorry, 2 axle"})
	require.NoError(t, err)
	_, err = mem.CreateCustomer(ctx, ledger.Customer{Name: "Anil"})
	require.NoError(t, err)

	for _, tx := range []ledger.Transaction{
		{CustomerID: ravi.ID, Type: ledger.TxCredit, Amount: dec(1000), Date: ledger.MustDate("2024-01-05"), Note: "diesel"},
		{CustomerID: ravi.ID, Type: ledger.TxPayment, Amount: dec(400), Date: ledger.MustDate("2024-01-20"), Note: `cash "part"`},
		{CustomerID: ravi.ID, Type: ledger.TxCredit, Amount: dec(250.5), Date: ledger.MustDate("2024-02-02")},
	} {
		_, err := mem.AddTransaction(ctx, tx)
		require.NoError(t, err)
	}

	nozzle1, _ := mem.GetNozzle(ctx, 1)
	nozzle4, _ := mem.GetNozzle(ctx, 4)
	require.NoError(t, mem.UpsertSalesReadings(ctx, ledger.MustDate("2024-01-10"), []ledger.SalesReading{
		{Date: ledger.MustDate("2024-01-10"), NozzleID: nozzle1.ID, Opening: dec(100), Closing: dec(150), SalesLitres: dec(50), SalesValue: dec(4775), Prices: ledger.SnapshotFor(ledger.FuelPetrol, dec(95.5))},
		{Date: ledger.MustDate("2024-01-10"), NozzleID: nozzle4.ID, Opening: dec(10), Closing: dec(20), SalesLitres: dec(10), SalesValue: dec(890), Prices: ledger.SnapshotFor(ledger.FuelDiesel, dec(89))},
	}))

	for _, e := range []ledger.Expense{
		{Date: ledger.MustDate("2024-01-03"), Description: "Tea", Amount: dec(20)},
		{Date: ledger.MustDate("2024-01-04"), Description: "Salary", Amount: dec(1500)},
		{Date: ledger.MustDate("2024-01-05"), Description: "Tea", Amount: dec(25)},
	} {
		_, err := mem.InsertExpense(ctx, e)
		require.NoError(t, err)
	}

	reports := report.NewService(ledger.NewEngine(mem), report.WithClock(func() time.Time { return generated }))
	return &fixture{mem: mem, reports: reports, ravi: ravi}
}

func render(t *testing.T, f *fixture, req report.Request) string {
	t.Helper()
	doc, err := f.reports.Render(context.Background(), req)
	require.NoError(t, err)
	return string(doc.Body)
}

// =============================================================================
// CSV
// =============================================================================

func TestCustomerCSV_RangeScenario(t *testing.T) {
	f := newFixture(t)

	got := render(t, f, report.Request{
		Kind:       report.KindCustomer,
		Format:     report.FormatCSV,
		CustomerID: f.ravi.ID,
		Period:     ledger.Between(datePtr("2024-01-10"), datePtr("2024-01-31")),
	})

	want := strings.Join([]string{
		"Sri Lakshmi Narayana Filling station",
		"Customer Credit Report",
		"Period: 2024-01-10 to 2024-01-31",
		"Generated: 2024-03-15 10:30:00",
		"",
		"Customer Name,Phone,Email,Notes",
		`"Ravi ""RK"" Kumar","98480","ravi@example.com","Lorry, 2 axle"`,
		"",
		"Opening Balance,Period Credit,Period Payment,Closing Balance",
		"1000,0,400,600",
		"",
		"Type,Date,Amount,Note",
		`payment,2024-01-20,400,"cash ""part"""`,
		"",
		"Total Credit,Total Payment,Total Due",
		"1250.5,400,850.5",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestCustomersSummaryCSV_Month(t *testing.T) {
	f := newFixture(t)
	feb, err := ledger.MonthPeriod("2024-02")
	require.NoError(t, err)

	got := render(t, f, report.Request{Kind: report.KindCustomersSummary, Format: report.FormatCSV, Period: feb})

	lines := strings.Split(got, "\n")
	require.Len(t, lines, 8)
	assert.Equal(t, "Customers Summary Report", lines[1])
	assert.Equal(t, "Period: 2024-02", lines[2])
	assert.Equal(t, "Customer ID,Name,Phone,Email,Opening,Billing Period Credit,Billing Period Payment,Closing", lines[5])
	assert.Equal(t, `2,"Anil","","",0,0,0,0`, lines[6])
	assert.Equal(t, `1,"Ravi ""RK"" Kumar","98480","ravi@example.com",600,250.5,0,850.5`, lines[7])
}

func TestSalesCSV_Layout(t *testing.T) {
	f := newFixture(t)

	got := render(t, f, report.Request{Kind: report.KindSales, Format: report.FormatCSV, Period: ledger.AllTime()})

	want := strings.Join([]string{
		"Sri Lakshmi Narayana Filling station",
		"Sales Report",
		"Period: All Time",
		"Generated: 2024-03-15 10:30:00",
		"",
		"Summary:",
		"Fuel Type,Total Litres,Total Value (Rs)",
		"DIESEL,10.00,890.00",
		"PETROL,50.00,4775.00",
		"TOTAL,60.00,5665.00",
		"",
		"Date,Label,Fuel Type,Opening (L),Closing (L),Sales (L),Sales Value (Rs),Unit Price (Rs/L)",
		`2024-01-10,"Nozzle 1",PETROL,100,150,50,4775,95.5`,
		`2024-01-10,"Nozzle 4",DIESEL,10,20,10,890,89`,
	}, "\n")
	assert.Equal(t, want, got)
}

func TestExpensesCSV_Layout(t *testing.T) {
	f := newFixture(t)
	jan, err := ledger.MonthPeriod("2024-01")
	require.NoError(t, err)

	got := render(t, f, report.Request{Kind: report.KindExpenses, Format: report.FormatCSV, Period: jan})

	want := strings.Join([]string{
		"Sri Lakshmi Narayana Filling station",
		"Expenses Report",
		"Period: 2024-01",
		"Generated: 2024-03-15 10:30:00",
		"",
		"Summary:",
		"Description,Total Amount (Rs),Count",
		`"Salary",1500.00,1`,
		`"Tea",45.00,2`,
		"TOTAL,1545.00,3",
		"",
		"Date,Description,Amount (Rs)",
		`2024-01-05,"Tea",25`,
		`2024-01-04,"Salary",1500`,
		`2024-01-03,"Tea",20`,
	}, "\n")
	assert.Equal(t, want, got)
}

func TestMalformedMonthRendersAllTime(t *testing.T) {
	f := newFixture(t)
	period := ledger.Resolve(ledger.PeriodRequest{Mode: ledger.ModeMonth, Month: "2024-xx"})

	got := render(t, f, report.Request{Kind: report.KindExpenses, Format: report.FormatCSV, Period: period})
	assert.Contains(t, got, "\nPeriod: All Time\n")
	assert.Contains(t, got, "TOTAL,1545.00,3")
}

// =============================================================================
// PDF
// =============================================================================

func TestRenderPDF_AllKinds(t *testing.T) {
	f := newFixture(t)
	open := ledger.Between(datePtr("2024-01-01"), nil)

	for _, kind := range []report.Kind{report.KindCustomer, report.KindCustomersSummary, report.KindSales, report.KindExpenses} {
		t.Run(string(kind), func(t *testing.T) {
			doc, err := f.reports.Render(context.Background(), report.Request{
				Kind: kind, Format: report.FormatPDF, Period: open, CustomerID: f.ravi.ID,
			})
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(doc.Body, []byte("%PDF-")))
			assert.Equal(t, "application/pdf", doc.ContentType)
			assert.True(t, strings.HasSuffix(doc.Filename, ".pdf"))
		})
	}
}

func TestRenderPDF_ManyRowsPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 120; i++ {
		_, err := f.mem.InsertExpense(ctx, ledger.Expense{Date: ledger.MustDate("2024-02-01"), Description: "Misc", Amount: dec(1)})
		require.NoError(t, err)
	}

	doc, err := f.reports.Render(ctx, report.Request{Kind: report.KindExpenses, Format: report.FormatPDF, Period: ledger.AllTime()})
	require.NoError(t, err)
	m := regexp.MustCompile(`/Count (\d+)`).FindSubmatch(doc.Body)
	require.NotNil(t, m)
	pages, err := strconv.Atoi(string(m[1]))
	require.NoError(t, err)
	assert.Greater(t, pages, 1)
}

// =============================================================================
// EXPORT
// =============================================================================

func TestExport_WritesFile(t *testing.T) {
	f := newFixture(t)
	exporter := report.NewExporter(f.reports, nil)
	path := filepath.Join(t.TempDir(), "ravi.csv")

	res, err := exporter.Export(context.Background(), report.Request{
		Kind: report.KindCustomer, Format: report.FormatCSV, CustomerID: f.ravi.ID, Period: ledger.AllTime(),
	}, report.Path(path))
	require.NoError(t, err)
	assert.False(t, res.Cancelled)
	assert.Equal(t, path, res.FilePath)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "Sri Lakshmi Narayana Filling station\nCustomer Credit Report\n"))
	assert.False(t, strings.HasSuffix(string(body), "\n"))
}

func TestExport_DirUsesSuggestedName(t *testing.T) {
	f := newFixture(t)
	exporter := report.NewExporter(f.reports, nil)
	dir := t.TempDir()

	res, err := exporter.Export(context.Background(), report.Request{
		Kind: report.KindCustomer, Format: report.FormatPDF, CustomerID: f.ravi.ID, Period: ledger.AllTime(),
	}, report.Dir(dir))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Customer_Ravi_RK_Kumar_report.pdf"), res.FilePath)
}

func TestExport_CancelledOutcomes(t *testing.T) {
	f := newFixture(t)
	exporter := report.NewExporter(f.reports, nil)
	dir := t.TempDir()

	// Unknown customer is a cancelled export, not an error
	res, err := exporter.Export(context.Background(), report.Request{
		Kind: report.KindCustomer, Format: report.FormatCSV, CustomerID: 999,
	}, report.Path(filepath.Join(dir, "x.csv")))
	require.NoError(t, err)
	assert.True(t, res.Cancelled)

	// Empty destination is a dismissed dialog
	res, err = exporter.Export(context.Background(), report.Request{
		Kind: report.KindSales, Format: report.FormatCSV,
	}, report.Path(""))
	require.NoError(t, err)
	assert.True(t, res.Cancelled)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExport_WriteFailureIsError(t *testing.T) {
	f := newFixture(t)
	exporter := report.NewExporter(f.reports, nil)
	path := filepath.Join(t.TempDir(), "missing", "dir", "sales.csv")

	res, err := exporter.Export(context.Background(), report.Request{
		Kind: report.KindSales, Format: report.FormatCSV,
	}, report.Path(path))
	require.Error(t, err)
	assert.False(t, res.Cancelled)
	_, statErr := os.Stat(path)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestRequestValidate(t *testing.T) {
	err := report.Request{Kind: "ledger", Format: "xls"}.Validate()
	var verr *ledger.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Problems, 2)

	err = report.Request{Kind: report.KindCustomer, Format: report.FormatCSV}.Validate()
	assert.True(t, errors.Is(err, ledger.ErrValidation))
}
