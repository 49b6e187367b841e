/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

CONVENTIONS:
  - Dates are "YYYY-MM-DD" strings, months "YYYY-MM"
  - Money and litres are decimals. They are written as JSON strings and
    accepted as strings or numbers.

VALIDATION:
  Validation is done by the ledger types and services, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/slnfs/station-ledger/dashboard"
	"github.com/slnfs/station-ledger/ledger"
	"github.com/slnfs/station-ledger/sales"
)

// =============================================================================
// ERRORS AND AUTH
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error    string   `json:"error"`
	Details  string   `json:"details,omitempty"`
	Problems []string `json:"problems,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthCheckDTO struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
}

// =============================================================================
// CUSTOMERS AND TRANSACTIONS
// =============================================================================

type CustomerDTO struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Notes     string `json:"notes"`
	CreatedAt string `json:"created_at,omitempty"`
}

type CustomerRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
	Notes string `json:"notes"`
}

type TransactionDTO struct {
	ID         int64           `json:"id"`
	CustomerID int64           `json:"customer_id"`
	Type       string          `json:"type"`
	Amount     decimal.Decimal `json:"amount"`
	Date       string          `json:"date"`
	Note       string          `json:"note"`
	CreatedAt  string          `json:"created_at,omitempty"`
}

type TransactionRequest struct {
	CustomerID int64           `json:"customer_id"`
	Type       string          `json:"type"`
	Amount     decimal.Decimal `json:"amount"`
	Date       string          `json:"date"`
	Note       string          `json:"note"`
}

// TotalsDTO is a customer's all-time position.
type TotalsDTO struct {
	TotalCredit  decimal.Decimal `json:"total_credit"`
	TotalPayment decimal.Decimal `json:"total_payment"`
	TotalDue     decimal.Decimal `json:"total_due"`
}

// BalanceDTO is a position over a period.
type BalanceDTO struct {
	Opening       decimal.Decimal `json:"opening"`
	PeriodCredit  decimal.Decimal `json:"period_credit"`
	PeriodPayment decimal.Decimal `json:"period_payment"`
	Closing       decimal.Decimal `json:"closing"`
}

type StatementDTO struct {
	Customer     CustomerDTO      `json:"customer"`
	Period       string           `json:"period"`
	Transactions []TransactionDTO `json:"transactions"`
	Balance      BalanceDTO       `json:"balance"`
	Totals       TotalsDTO        `json:"totals"`
}

type SummaryRowDTO struct {
	Customer CustomerDTO `json:"customer"`
	Balance  BalanceDTO  `json:"balance"`
}

// =============================================================================
// NOZZLES AND SALES
// =============================================================================

type NozzleDTO struct {
	ID            int64           `json:"id"`
	Label         string          `json:"label"`
	FuelType      string          `json:"fuel_type"`
	PricePerLitre decimal.Decimal `json:"price_per_litre"`
}

type NozzlePriceRequest struct {
	PricePerLitre decimal.Decimal `json:"price_per_litre"`
}

type SalesLineDTO struct {
	Date      string          `json:"date"`
	NozzleID  int64           `json:"nozzle_id"`
	Label     string          `json:"label"`
	FuelType  string          `json:"fuel_type"`
	Opening   decimal.Decimal `json:"opening_reading"`
	Closing   decimal.Decimal `json:"closing_reading"`
	Litres    decimal.Decimal `json:"sales_litres"`
	Value     decimal.Decimal `json:"sales_value"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type LastReadingDTO struct {
	NozzleID int64           `json:"nozzle_id"`
	Closing  decimal.Decimal `json:"closing_reading"`
	Date     string          `json:"date"`
	Source   string          `json:"source"`
}

type FuelTotalDTO struct {
	FuelType string          `json:"fuel_type"`
	Litres   decimal.Decimal `json:"litres"`
	Value    decimal.Decimal `json:"value"`
	Readings int             `json:"readings"`
}

type CellDTO struct {
	NozzleID     int64           `json:"nozzle_id"`
	Label        string          `json:"label"`
	FuelType     string          `json:"fuel_type"`
	State        string          `json:"state"`
	Opening      decimal.Decimal `json:"opening_reading"`
	Closing      decimal.Decimal `json:"closing_reading"`
	Litres       decimal.Decimal `json:"sales_litres"`
	Value        decimal.Decimal `json:"sales_value"`
	AppliedPrice decimal.Decimal `json:"applied_price"`
	LivePrice    decimal.Decimal `json:"live_price"`
}

type SheetDTO struct {
	Date         string           `json:"date"`
	Historical   bool             `json:"historical"`
	Cells        []CellDTO        `json:"cells"`
	LastReadings []LastReadingDTO `json:"last_readings"`
	TotalLitres  decimal.Decimal  `json:"total_litres"`
	TotalValue   decimal.Decimal  `json:"total_value"`
	ByFuel       []FuelTotalDTO   `json:"by_fuel"`
}

// PricesDTO is the stored price pair of a historical row. Send it back
// unchanged (or edited) to keep a saved day's prices.
type PricesDTO struct {
	PetrolPrice decimal.Decimal `json:"petrol_price"`
	DieselPrice decimal.Decimal `json:"diesel_price"`
}

type SalesEntryRequest struct {
	NozzleID int64           `json:"nozzle_id"`
	Opening  decimal.Decimal `json:"opening_reading"`
	Closing  decimal.Decimal `json:"closing_reading"`
	Prices   *PricesDTO      `json:"prices,omitempty"`
}

type SaveSalesRequest struct {
	Date    string              `json:"date"`
	Entries []SalesEntryRequest `json:"entries"`
}

type SalesReadingDTO struct {
	Date     string          `json:"date"`
	NozzleID int64           `json:"nozzle_id"`
	Opening  decimal.Decimal `json:"opening_reading"`
	Closing  decimal.Decimal `json:"closing_reading"`
	Litres   decimal.Decimal `json:"sales_litres"`
	Value    decimal.Decimal `json:"sales_value"`
	Prices   PricesDTO       `json:"prices"`
}

// SavedSalesDTO answers a save: the rows written and the day's totals.
type SavedSalesDTO struct {
	Date        string            `json:"date"`
	Readings    []SalesReadingDTO `json:"readings"`
	TotalLitres decimal.Decimal   `json:"total_litres"`
	TotalValue  decimal.Decimal   `json:"total_value"`
	ByFuel      []FuelTotalDTO    `json:"by_fuel"`
}

type SalesSummaryDTO struct {
	Period      string          `json:"period"`
	Lines       []SalesLineDTO  `json:"lines"`
	ByFuel      []FuelTotalDTO  `json:"by_fuel"`
	TotalLitres decimal.Decimal `json:"total_litres"`
	TotalValue  decimal.Decimal `json:"total_value"`
}

// =============================================================================
// EXPENSES
// =============================================================================

type ExpenseDTO struct {
	ID          int64           `json:"id"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedAt   string          `json:"created_at,omitempty"`
}

type ExpenseRequest struct {
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

type CategoryTotalDTO struct {
	Description string          `json:"description"`
	Total       decimal.Decimal `json:"total"`
	Count       int             `json:"count"`
}

type ExpenseSummaryDTO struct {
	Period     string             `json:"period"`
	Expenses   []ExpenseDTO       `json:"expenses"`
	ByCategory []CategoryTotalDTO `json:"by_category"`
	Total      decimal.Decimal    `json:"total"`
	Count      int                `json:"count"`
}

// =============================================================================
// DASHBOARD
// =============================================================================

type DailySalesDTO struct {
	Date   string          `json:"date"`
	Petrol decimal.Decimal `json:"petrol"`
	Diesel decimal.Decimal `json:"diesel"`
	Others decimal.Decimal `json:"others"`
	Total  decimal.Decimal `json:"total"`
}

type DailyAmountDTO struct {
	Date   string          `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

type DashboardDTO struct {
	Month string `json:"month"`
	Sales struct {
		TotalSales         decimal.Decimal            `json:"total_sales"`
		TotalsByFuel       map[string]decimal.Decimal `json:"totals_by_fuel"`
		DailySeries        []DailySalesDTO            `json:"daily_series"`
		DailyAverageByFuel map[string]decimal.Decimal `json:"daily_average_by_fuel"`
	} `json:"sales"`
	Expenses struct {
		Total       decimal.Decimal  `json:"total"`
		DailySeries []DailyAmountDTO `json:"daily_series"`
	} `json:"expenses"`
	Credits struct {
		MonthCredit  decimal.Decimal `json:"month_credit"`
		MonthPayment decimal.Decimal `json:"month_payment"`
		MonthNet     decimal.Decimal `json:"month_net"`
		TotalDue     decimal.Decimal `json:"total_due"`
	} `json:"credits"`
}

// =============================================================================
// REPORTS
// =============================================================================

// PeriodParams is the period selector shared by summaries and reports.
type PeriodParams struct {
	Mode      string `json:"mode"`
	Month     string `json:"month"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// ExportRequest asks for a report file. An empty FilePath (and Dir) is a
// cancelled save dialog.
type ExportRequest struct {
	Kind       string `json:"kind"`
	Format     string `json:"format"`
	CustomerID int64  `json:"customer_id"`
	FilePath   string `json:"file_path"`
	Dir        string `json:"dir"`
	PeriodParams
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func toCustomerDTO(c ledger.Customer) CustomerDTO {
	return CustomerDTO{
		ID:        c.ID,
		Name:      c.Name,
		Phone:     c.Phone,
		Email:     c.Email,
		Notes:     c.Notes,
		CreatedAt: timestamp(c.CreatedAt),
	}
}

func toTransactionDTO(tx ledger.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:         tx.ID,
		CustomerID: tx.CustomerID,
		Type:       string(tx.Type),
		Amount:     tx.Amount,
		Date:       tx.Date.String(),
		Note:       tx.Note,
		CreatedAt:  timestamp(tx.CreatedAt),
	}
}

func toTransactionDTOs(txs []ledger.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	return dtos
}

func toTotalsDTO(t ledger.Totals) TotalsDTO {
	return TotalsDTO{TotalCredit: t.TotalCredit, TotalPayment: t.TotalPayment, TotalDue: t.TotalDue()}
}

func toBalanceDTO(b ledger.Balance) BalanceDTO {
	return BalanceDTO{
		Opening:       b.Opening,
		PeriodCredit:  b.PeriodCredit,
		PeriodPayment: b.PeriodPayment,
		Closing:       b.Closing(),
	}
}

func toNozzleDTO(n ledger.Nozzle) NozzleDTO {
	return NozzleDTO{ID: n.ID, Label: n.Label, FuelType: string(n.FuelType), PricePerLitre: n.PricePerLitre}
}

func toSalesLineDTOs(lines []ledger.SalesLine) []SalesLineDTO {
	dtos := make([]SalesLineDTO, len(lines))
	for i, l := range lines {
		dtos[i] = SalesLineDTO{
			Date:      l.Date.String(),
			NozzleID:  l.NozzleID,
			Label:     l.Label,
			FuelType:  string(l.FuelType),
			Opening:   l.Opening,
			Closing:   l.Closing,
			Litres:    l.Litres,
			Value:     l.Value,
			UnitPrice: l.UnitPrice,
		}
	}
	return dtos
}

func toFuelTotalDTOs(totals []ledger.FuelTotal) []FuelTotalDTO {
	dtos := make([]FuelTotalDTO, len(totals))
	for i, ft := range totals {
		dtos[i] = FuelTotalDTO{FuelType: string(ft.FuelType), Litres: ft.Litres, Value: ft.Value, Readings: ft.Readings}
	}
	return dtos
}

func toLastReadingDTOs(last map[int64]sales.LastReading) []LastReadingDTO {
	dtos := make([]LastReadingDTO, 0, len(last))
	for _, lr := range last {
		dtos = append(dtos, LastReadingDTO{
			NozzleID: lr.NozzleID,
			Closing:  lr.Closing,
			Date:     lr.Date.String(),
			Source:   string(lr.Source),
		})
	}
	sort.Slice(dtos, func(i, j int) bool { return dtos[i].NozzleID < dtos[j].NozzleID })
	return dtos
}

func toSheetDTO(s *sales.Sheet) SheetDTO {
	totals := s.Totals()
	dto := SheetDTO{
		Date:         s.Date.String(),
		Historical:   s.Historical,
		Cells:        make([]CellDTO, len(s.Cells)),
		LastReadings: toLastReadingDTOs(s.LastReadings),
		TotalLitres:  totals.Litres,
		TotalValue:   totals.Value,
		ByFuel:       toFuelTotalDTOs(totals.ByFuel),
	}
	for i, c := range s.Cells {
		dto.Cells[i] = CellDTO{
			NozzleID:     c.Nozzle.ID,
			Label:        c.Nozzle.Label,
			FuelType:     string(c.Nozzle.FuelType),
			State:        c.State().String(),
			Opening:      c.Opening(),
			Closing:      c.Closing(),
			Litres:       c.Litres(),
			Value:        c.Value(),
			AppliedPrice: c.AppliedPrice(),
			LivePrice:    c.Nozzle.PricePerLitre,
		}
	}
	return dto
}

func (r SalesEntryRequest) toEntry() sales.Entry {
	e := sales.Entry{NozzleID: r.NozzleID, Opening: r.Opening, Closing: r.Closing}
	if r.Prices != nil {
		e.Prices = &ledger.PriceSnapshot{Primary: r.Prices.PetrolPrice, Secondary: r.Prices.DieselPrice}
	}
	return e
}

func toSalesReadingDTOs(rows []ledger.SalesReading) []SalesReadingDTO {
	dtos := make([]SalesReadingDTO, len(rows))
	for i, r := range rows {
		dtos[i] = SalesReadingDTO{
			Date:     r.Date.String(),
			NozzleID: r.NozzleID,
			Opening:  r.Opening,
			Closing:  r.Closing,
			Litres:   r.SalesLitres,
			Value:    r.SalesValue,
			Prices:   PricesDTO{PetrolPrice: r.Prices.Primary, DieselPrice: r.Prices.Secondary},
		}
	}
	return dtos
}

func toSavedSalesDTO(date ledger.Date, saved *sales.Saved) SavedSalesDTO {
	return SavedSalesDTO{
		Date:        date.String(),
		Readings:    toSalesReadingDTOs(saved.Rows),
		TotalLitres: saved.Totals.Litres,
		TotalValue:  saved.Totals.Value,
		ByFuel:      toFuelTotalDTOs(saved.Totals.ByFuel),
	}
}

func toExpenseDTO(e ledger.Expense) ExpenseDTO {
	return ExpenseDTO{
		ID:          e.ID,
		Date:        e.Date.String(),
		Description: e.Description,
		Amount:      e.Amount,
		CreatedAt:   timestamp(e.CreatedAt),
	}
}

func toExpenseDTOs(expenses []ledger.Expense) []ExpenseDTO {
	dtos := make([]ExpenseDTO, len(expenses))
	for i, e := range expenses {
		dtos[i] = toExpenseDTO(e)
	}
	return dtos
}

func toExpenseSummaryDTO(s *ledger.ExpenseSummary) ExpenseSummaryDTO {
	dto := ExpenseSummaryDTO{
		Period:     s.Period.Label(),
		Expenses:   toExpenseDTOs(s.Expenses),
		ByCategory: make([]CategoryTotalDTO, len(s.ByCategory)),
		Total:      s.Total,
		Count:      s.Count,
	}
	for i, ct := range s.ByCategory {
		dto.ByCategory[i] = CategoryTotalDTO{Description: ct.Description, Total: ct.Total, Count: ct.Count}
	}
	return dto
}

func toDashboardDTO(m *dashboard.Metrics) DashboardDTO {
	var dto DashboardDTO
	dto.Month = m.Month

	dto.Sales.TotalSales = m.Sales.TotalSales
	dto.Sales.TotalsByFuel = make(map[string]decimal.Decimal, len(m.Sales.TotalsByFuel))
	for f, v := range m.Sales.TotalsByFuel {
		dto.Sales.TotalsByFuel[string(f)] = v
	}
	dto.Sales.DailyAverageByFuel = make(map[string]decimal.Decimal, len(m.Sales.DailyAverageByFuel))
	for f, v := range m.Sales.DailyAverageByFuel {
		dto.Sales.DailyAverageByFuel[string(f)] = v
	}
	dto.Sales.DailySeries = make([]DailySalesDTO, len(m.Sales.DailySeries))
	for i, d := range m.Sales.DailySeries {
		dto.Sales.DailySeries[i] = DailySalesDTO{
			Date: d.Date.String(), Petrol: d.Petrol, Diesel: d.Diesel, Others: d.Others, Total: d.Total,
		}
	}

	dto.Expenses.Total = m.Expenses.Total
	dto.Expenses.DailySeries = make([]DailyAmountDTO, len(m.Expenses.DailySeries))
	for i, d := range m.Expenses.DailySeries {
		dto.Expenses.DailySeries[i] = DailyAmountDTO{Date: d.Date.String(), Amount: d.Amount}
	}

	dto.Credits.MonthCredit = m.Credits.MonthCredit
	dto.Credits.MonthPayment = m.Credits.MonthPayment
	dto.Credits.MonthNet = m.Credits.MonthNet
	dto.Credits.TotalDue = m.Credits.TotalDue
	return dto
}
