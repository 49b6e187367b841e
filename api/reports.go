package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/slnfs/station-ledger/ledger"
	"github.com/slnfs/station-ledger/report"
)

// =============================================================================
// EXPENSE HANDLERS
// =============================================================================

// ListExpenses returns one day's expenses (?date=), newest first, or a
// period's when no date is given.
// GET /api/expenses
func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	var period ledger.Period
	if r.URL.Query().Get("date") != "" {
		date, err := dateParam(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		period = ledger.Between(&date, &date)
	} else {
		p, err := periodFromQuery(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		period = p
	}
	expenses, err := h.Store.ListExpenses(r.Context(), period)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseDTOs(expenses))
}

// CreateExpense records an expense.
// POST /api/expenses
func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var req ExpenseRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := ledger.ParseDate(req.Date)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	e, err := h.Store.InsertExpense(r.Context(), ledger.Expense{
		Date:        date,
		Description: strings.TrimSpace(req.Description),
		Amount:      req.Amount,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toExpenseDTO(e))
}

// UpdateExpense replaces an expense.
// PUT /api/expenses/{id}
func (h *Handler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req ExpenseRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := ledger.ParseDate(req.Date)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	e := ledger.Expense{ID: id, Date: date, Description: strings.TrimSpace(req.Description), Amount: req.Amount}
	if err := h.Store.UpdateExpense(r.Context(), e); err != nil {
		h.fail(w, r, err)
		return
	}
	updated, err := h.Store.GetExpense(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseDTO(updated))
}

// DeleteExpense removes an expense.
// DELETE /api/expenses/{id}
func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.Store.DeleteExpense(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetExpenseSummary groups a period's expenses by description.
// GET /api/expenses/summary
func (h *Handler) GetExpenseSummary(w http.ResponseWriter, r *http.Request) {
	period, err := periodFromQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	s, err := h.Engine.ExpenseSummary(r.Context(), period)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseSummaryDTO(s))
}

// =============================================================================
// DASHBOARD
// =============================================================================

// GetDashboard composes the month view. No month means the current one.
// GET /api/dashboard?month=YYYY-MM
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	m, err := h.Dashboard.Metrics(r.Context(), r.URL.Query().Get("month"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardDTO(m))
}

// =============================================================================
// REPORTS
// =============================================================================

func reportRequest(kind, format string, customerID int64, p PeriodParams) (report.Request, error) {
	period, err := resolvePeriod(p)
	if err != nil {
		return report.Request{}, err
	}
	req := report.Request{
		Kind:       report.Kind(strings.ToLower(kind)),
		Format:     report.Format(strings.ToLower(format)),
		Period:     period,
		CustomerID: customerID,
	}
	return req, req.Validate()
}

// ExportReport writes a report to the chosen path. An empty path is a
// cancelled dialog and answers {"cancelled":true}.
// POST /api/reports/export
func (h *Handler) ExportReport(w http.ResponseWriter, r *http.Request) {
	var body ExportRequest
	if !decode(w, r, &body) {
		return
	}
	req, err := reportRequest(body.Kind, body.Format, body.CustomerID, body.PeriodParams)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var dest report.Destination = report.Path(body.FilePath)
	if body.FilePath == "" && body.Dir != "" {
		dest = report.Dir(body.Dir)
	}
	res, err := h.Exporter.Export(r.Context(), req, dest)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// DownloadReport streams a rendered report with a suggested file name.
// GET /api/reports/download?kind=&format=&customer_id=&mode=...
func (h *Handler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var customerID int64
	if raw := q.Get("customer_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid customer_id %q", raw), nil)
			return
		}
		customerID = id
	}
	req, err := reportRequest(q.Get("kind"), q.Get("format"), customerID, PeriodParams{
		Mode:      q.Get("mode"),
		Month:     q.Get("month"),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	doc, err := h.Reports.Render(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Body)))
	w.WriteHeader(http.StatusOK)
	w.Write(doc.Body)
}

// =============================================================================
// BACKUP
// =============================================================================

// CreateBackup copies the store file into the backup directory.
// POST /api/backup
func (h *Handler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	if h.Backup == nil {
		writeError(w, http.StatusServiceUnavailable, "Backups are not available for this store", nil)
		return
	}
	// A backup runs to completion even if the client goes away.
	info, err := h.Backup.Create(context.WithoutCancel(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}
