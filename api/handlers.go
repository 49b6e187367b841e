/*
handlers.go - HTTP API handlers for the station ledger

PURPOSE:
  Exposes the ledger, sales, report, dashboard and backup services via a
  REST API. Handles HTTP request/response and JSON serialization, and
  delegates everything else to the services.

ENDPOINTS:
  Auth:
    POST   /api/auth/login                   Issue a session token
    GET    /api/auth/check                   Validate the current token

  Customers:
    GET    /api/customers?q=                 List / search
    POST   /api/customers                    Create
    GET    /api/customers/summary            Balances for a period
    GET    /api/customers/{id}               Details
    PUT    /api/customers/{id}               Update
    GET    /api/customers/{id}/transactions  History (optional period)
    GET    /api/customers/{id}/summary       All-time totals
    GET    /api/customers/{id}/statement     Period statement

  Transactions:
    POST   /api/transactions                 Record credit or payment
    DELETE /api/transactions/{id}            Hard delete

  Nozzles and sales: see sales.go
  Expenses, dashboard, reports, backup: see reports.go

PERIOD PARAMETERS:
  mode=all|month|range, month=YYYY-MM, start_date, end_date. A malformed
  month resolves to All Time; a malformed date is a 400.

ERROR HANDLING:
  Errors are returned as ErrorResponse JSON:
  - 400: Validation errors (every problem listed), invalid month/date
  - 401: Missing or invalid session
  - 404: Unknown customer, transaction, nozzle or expense
  - 409: Edit of a read-only sales cell
  - 500: Schema drift (message carries the remediation), internal errors
  - 507: Not enough disk space for a backup

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/slnfs/station-ledger/auth"
	"github.com/slnfs/station-ledger/backup"
	"github.com/slnfs/station-ledger/dashboard"
	"github.com/slnfs/station-ledger/ledger"
	"github.com/slnfs/station-ledger/logger"
	"github.com/slnfs/station-ledger/report"
	"github.com/slnfs/station-ledger/sales"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Services are the handler's dependencies. Only Store is required; the
// rest default to services built on Store. Backup and Auth stay
// disabled when nil.
type Services struct {
	Store     ledger.Store
	Sales     *sales.Service
	Reports   *report.Service
	Dashboard *dashboard.Composer
	Backup    *backup.Service
	Auth      *auth.Authenticator
	Logger    *logger.Logger
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     ledger.Store
	Engine    *ledger.Engine
	Sales     *sales.Service
	Reports   *report.Service
	Exporter  *report.Exporter
	Dashboard *dashboard.Composer
	Backup    *backup.Service
	Auth      *auth.Authenticator
	log       *logger.Logger
}

// NewHandler wires the handler from its services.
func NewHandler(s Services) *Handler {
	log := s.Logger
	if log == nil {
		log = logger.Nop()
	}
	engine := ledger.NewEngine(s.Store)
	h := &Handler{
		Store:     s.Store,
		Engine:    engine,
		Sales:     s.Sales,
		Reports:   s.Reports,
		Dashboard: s.Dashboard,
		Backup:    s.Backup,
		Auth:      s.Auth,
		log:       log.WithComponent("api"),
	}
	if h.Sales == nil {
		h.Sales = sales.NewService(s.Store, sales.WithLogger(log))
	}
	if h.Reports == nil {
		h.Reports = report.NewService(engine)
	}
	if h.Dashboard == nil {
		h.Dashboard = dashboard.NewComposer(engine)
	}
	h.Exporter = report.NewExporter(h.Reports, log)
	return h
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// Login checks credentials and returns a session.
// POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.Auth == nil {
		writeError(w, http.StatusNotFound, "Authentication is disabled", nil)
		return
	}
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}
	session, err := h.Auth.Login(req.Username, req.Password)
	if err != nil {
		h.log.WithContext(r.Context()).Infow("login rejected", "username", req.Username)
		writeError(w, http.StatusUnauthorized, "Invalid username or password", nil)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// CheckAuth reports the session behind the request. Only reachable with
// a valid token when auth is enabled.
// GET /api/auth/check
func (h *Handler) CheckAuth(w http.ResponseWriter, r *http.Request) {
	dto := AuthCheckDTO{Authenticated: true}
	if claims, ok := auth.FromContext(r.Context()); ok {
		dto.Username = claims.Username
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// ListCustomers lists customers, filtered by ?q= on name, phone or email.
// GET /api/customers
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.Store.SearchCustomers(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]CustomerDTO, len(customers))
	for i, c := range customers {
		dtos[i] = toCustomerDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCustomer returns one customer.
// GET /api/customers/{id}
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	c, err := h.Store.GetCustomer(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(c))
}

// CreateCustomer adds a customer.
// POST /api/customers
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CustomerRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.Store.CreateCustomer(r.Context(), ledger.Customer{
		Name:  strings.TrimSpace(req.Name),
		Phone: strings.TrimSpace(req.Phone),
		Email: strings.TrimSpace(req.Email),
		Notes: req.Notes,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerDTO(c))
}

// UpdateCustomer replaces a customer's details.
// PUT /api/customers/{id}
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req CustomerRequest
	if !decode(w, r, &req) {
		return
	}
	c := ledger.Customer{
		ID:    id,
		Name:  strings.TrimSpace(req.Name),
		Phone: strings.TrimSpace(req.Phone),
		Email: strings.TrimSpace(req.Email),
		Notes: req.Notes,
	}
	if err := h.Store.UpdateCustomer(r.Context(), c); err != nil {
		h.fail(w, r, err)
		return
	}
	updated, err := h.Store.GetCustomer(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(updated))
}

// GetCustomerTransactions lists a customer's transactions, optionally
// narrowed to a period.
// GET /api/customers/{id}/transactions
func (h *Handler) GetCustomerTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	period, err := periodFromQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.Store.GetCustomer(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	txs, err := h.Store.ListTransactions(r.Context(), ledger.TransactionFilter{CustomerID: &id, Period: period})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	// Stores list date ASC, id ASC; the ledger screen wants newest first.
	slices.Reverse(txs)
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// GetCustomerSummary returns all-time credit, payment and due.
// GET /api/customers/{id}/summary
func (h *Handler) GetCustomerSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	totals, err := h.Engine.CustomerTotals(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTotalsDTO(totals))
}

// GetCustomerStatement returns opening, movement and closing for a period.
// GET /api/customers/{id}/statement
func (h *Handler) GetCustomerStatement(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	period, err := periodFromQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	st, err := h.Engine.CustomerStatement(r.Context(), id, period)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatementDTO{
		Customer:     toCustomerDTO(st.Customer),
		Period:       st.Period.Label(),
		Transactions: toTransactionDTOs(st.Transactions),
		Balance:      toBalanceDTO(st.Balance),
		Totals:       toTotalsDTO(st.Totals),
	})
}

// GetCustomersSummary returns every customer's balance for a period.
// GET /api/customers/summary
func (h *Handler) GetCustomersSummary(w http.ResponseWriter, r *http.Request) {
	period, err := periodFromQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rows, err := h.Engine.CustomersSummary(r.Context(), period)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]SummaryRowDTO, len(rows))
	for i, row := range rows {
		dtos[i] = SummaryRowDTO{Customer: toCustomerDTO(row.Customer), Balance: toBalanceDTO(row.Balance)}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// CreateTransaction records a credit or payment.
// POST /api/transactions
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := ledger.ParseDate(req.Date)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	tx, err := h.Store.AddTransaction(r.Context(), ledger.Transaction{
		CustomerID: req.CustomerID,
		Type:       ledger.TxType(strings.ToLower(strings.TrimSpace(req.Type))),
		Amount:     req.Amount,
		Date:       date,
		Note:       req.Note,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// DeleteTransaction removes a transaction. Balances are derived on read.
// DELETE /api/transactions/{id}
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.Store.DeleteTransaction(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// fail maps a service error onto a status code.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ledger.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:    "Validation failed",
			Details:  verr.Error(),
			Problems: verr.Messages(),
		})
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, notFoundMessage(err), err)
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
	case errors.Is(err, sales.ErrReadOnly):
		writeError(w, http.StatusConflict, "Sales readings are read only", err)
	case errors.Is(err, backup.ErrInsufficientSpace):
		writeError(w, http.StatusInsufficientStorage, "Not enough disk space for a backup", err)
	case errors.Is(err, ledger.ErrSchemaDrift):
		h.log.WithContext(r.Context()).Errorw("schema drift", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error(), nil)
	default:
		h.log.WithContext(r.Context()).Errorw("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func notFoundMessage(err error) string {
	switch {
	case errors.Is(err, ledger.ErrCustomerNotFound):
		return "Customer not found"
	case errors.Is(err, ledger.ErrTransactionNotFound):
		return "Transaction not found"
	case errors.Is(err, ledger.ErrNozzleNotFound):
		return "Nozzle not found"
	default:
		return "Expense not found"
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid id %q", raw), nil)
		return 0, false
	}
	return id, true
}

// dateParam parses a required ?date=YYYY-MM-DD.
func dateParam(r *http.Request) (ledger.Date, error) {
	return ledger.ParseDate(r.URL.Query().Get("date"))
}

func periodFromQuery(r *http.Request) (ledger.Period, error) {
	q := r.URL.Query()
	return resolvePeriod(PeriodParams{
		Mode:      q.Get("mode"),
		Month:     q.Get("month"),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
	})
}

// resolvePeriod builds a Period. No mode means all time.
func resolvePeriod(p PeriodParams) (ledger.Period, error) {
	start, err := ledger.ParseOptionalDate(p.StartDate)
	if err != nil {
		return ledger.Period{}, err
	}
	end, err := ledger.ParseOptionalDate(p.EndDate)
	if err != nil {
		return ledger.Period{}, err
	}
	return ledger.Resolve(ledger.PeriodRequest{
		Mode:      ledger.Mode(strings.ToLower(p.Mode)),
		Month:     p.Month,
		StartDate: start,
		EndDate:   end,
	}), nil
}
