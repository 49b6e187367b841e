/*
report.go - Report kinds, request shape and data loading

PURPOSE:
  Every report (customer, customers summary, sales, expenses) is built
  from one engine call for the resolved period, then rendered to CSV or
  PDF. Both formats read the same Data value, so a CSV and a PDF for the
  same request always agree.

KINDS:
  customer           One customer: header, opening/closing, in-period
                     transactions, all-time totals
  customers_summary  One row per customer for the period
  sales              Fuel totals plus reading rows
  expenses           Category totals plus expense rows

SEE ALSO:
  - csv.go, pdf.go: Renderers
  - export.go: Writing to a chosen destination
  - ledger/balance.go, ledger/aggregate.go: Engine
*/
package report

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/slnfs/station-ledger/config"
	"github.com/slnfs/station-ledger/ledger"
)

// Kind selects the report.
type Kind string

const (
	KindCustomer         Kind = "customer"
	KindCustomersSummary Kind = "customers_summary"
	KindSales            Kind = "sales"
	KindExpenses         Kind = "expenses"
)

func (k Kind) Valid() bool {
	switch k {
	case KindCustomer, KindCustomersSummary, KindSales, KindExpenses:
		return true
	}
	return false
}

// Format selects the output encoding.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

func (f Format) Valid() bool { return f == FormatCSV || f == FormatPDF }

// ContentType is the MIME type for downloads.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "text/csv; charset=utf-8"
}

// Request describes one report.
type Request struct {
	Kind       Kind
	Format     Format
	Period     ledger.Period
	CustomerID int64 // KindCustomer only
}

// Validate checks kind, format and customer id.
func (r Request) Validate() error {
	verr := &ledger.ValidationError{}
	if !r.Kind.Valid() {
		verr.Add(ledger.Problem{Field: "kind", Message: fmt.Sprintf("unknown report kind %q", r.Kind)})
	}
	if !r.Format.Valid() {
		verr.Add(ledger.Problem{Field: "format", Message: fmt.Sprintf("unknown report format %q", r.Format)})
	}
	if r.Kind == KindCustomer && r.CustomerID <= 0 {
		verr.Add(ledger.Problem{Field: "customer_id", Message: "customer_id is required for a customer report"})
	}
	return verr.OrNil()
}

// Header is the title block shared by every report.
type Header struct {
	Station   string
	Title     string
	Period    ledger.Period
	Generated time.Time
}

// GeneratedLine renders the "Generated:" line.
func (h Header) GeneratedLine() string {
	return "Generated: " + h.Generated.Format("2006-01-02 15:04:05")
}

// Data is the engine output a renderer consumes. Exactly one of the
// pointer fields is set, matching Kind.
type Data struct {
	Kind      Kind
	Header    Header
	Customer  *ledger.CustomerStatement
	Customers []ledger.SummaryRow
	Sales     *ledger.SalesSummary
	Expenses  *ledger.ExpenseSummary
}

var titles = map[Kind]string{
	KindCustomer:         "Customer Credit Report",
	KindCustomersSummary: "Customers Summary Report",
	KindSales:            "Sales Report",
	KindExpenses:         "Expenses Report",
}

// =============================================================================
// SERVICE
// =============================================================================

// Service loads report data and renders documents.
type Service struct {
	engine  *ledger.Engine
	station string
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithStation overrides the station name printed on every report.
func WithStation(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.station = name
		}
	}
}

// WithClock overrides the clock used for the "Generated:" line.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(engine *ledger.Engine, opts ...Option) *Service {
	s := &Service{engine: engine, station: config.DefaultStationName, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load runs the engine for the request. An unknown customer returns
// ledger.ErrCustomerNotFound.
func (s *Service) Load(ctx context.Context, req Request) (*Data, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	data := &Data{
		Kind: req.Kind,
		Header: Header{
			Station:   s.station,
			Title:     titles[req.Kind],
			Period:    req.Period,
			Generated: s.now(),
		},
	}

	var err error
	switch req.Kind {
	case KindCustomer:
		data.Customer, err = s.engine.CustomerStatement(ctx, req.CustomerID, req.Period)
	case KindCustomersSummary:
		data.Customers, err = s.engine.CustomersSummary(ctx, req.Period)
	case KindSales:
		data.Sales, err = s.engine.SalesSummary(ctx, req.Period)
	case KindExpenses:
		data.Expenses, err = s.engine.ExpenseSummary(ctx, req.Period)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Document is a rendered report.
type Document struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Render loads and renders a report in memory.
func (s *Service) Render(ctx context.Context, req Request) (*Document, error) {
	data, err := s.Load(ctx, req)
	if err != nil {
		return nil, err
	}
	return Encode(data, req.Format)
}

// Encode renders already loaded data.
func Encode(data *Data, format Format) (*Document, error) {
	var (
		body []byte
		err  error
	)
	switch format {
	case FormatCSV:
		body = []byte(RenderCSV(data))
	case FormatPDF:
		body, err = RenderPDF(data)
	default:
		return nil, ledger.NewValidationError(fmt.Sprintf("unknown report format %q", format))
	}
	if err != nil {
		return nil, err
	}
	return &Document{
		Filename:    Filename(data, format),
		ContentType: format.ContentType(),
		Body:        body,
	}, nil
}

var nonWord = regexp.MustCompile(`\W+`)

// Filename is the suggested file name for the save dialog.
func Filename(data *Data, format Format) string {
	ext := "." + string(format)
	switch data.Kind {
	case KindCustomer:
		name := nonWord.ReplaceAllString(data.Customer.Customer.Name, "_")
		if name == "" {
			name = fmt.Sprintf("customer_%d", data.Customer.Customer.ID)
		}
		return "Customer_" + name + "_report" + ext
	case KindCustomersSummary:
		return "Customers_Summary" + ext
	case KindSales:
		return "Sales_Report" + ext
	default:
		return "Expenses_Report" + ext
	}
}
