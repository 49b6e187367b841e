package api

import (
	"net/http"

	"github.com/slnfs/station-ledger/ledger"
	"github.com/slnfs/station-ledger/sales"
)

// =============================================================================
// NOZZLE HANDLERS
// =============================================================================

// ListNozzles returns every nozzle with its live price.
// GET /api/nozzles
func (h *Handler) ListNozzles(w http.ResponseWriter, r *http.Request) {
	nozzles, err := h.Store.ListNozzles(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]NozzleDTO, len(nozzles))
	for i, n := range nozzles {
		dtos[i] = toNozzleDTO(n)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpdateNozzlePrice sets the live price used by new readings.
// PUT /api/nozzles/{id}
func (h *Handler) UpdateNozzlePrice(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req NozzlePriceRequest
	if !decode(w, r, &req) {
		return
	}
	n, err := h.Sales.SetLivePrice(r.Context(), id, req.PricePerLitre)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toNozzleDTO(n))
}

// =============================================================================
// SALES HANDLERS
// =============================================================================

// GetSalesByDate returns the stored readings of one day by nozzle id.
// GET /api/sales?date=
func (h *Handler) GetSalesByDate(w http.ResponseWriter, r *http.Request) {
	date, err := dateParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	lines, err := h.Sales.ReadingsForDate(r.Context(), date)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSalesLineDTOs(lines))
}

// GetLastReadings returns each nozzle's latest closing before the date.
// GET /api/sales/last-readings?date=
func (h *Handler) GetLastReadings(w http.ResponseWriter, r *http.Request) {
	date, err := dateParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	last, err := h.Sales.LastReadings(r.Context(), date)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLastReadingDTOs(last))
}

// GetSalesSheet returns the day's entry grid. A day with stored rows
// comes back historical, with each cell's frozen price.
// GET /api/sales/sheet?date=
func (h *Handler) GetSalesSheet(w http.ResponseWriter, r *http.Request) {
	date, err := dateParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sheet, err := h.Sales.LoadSheet(r.Context(), date)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSheetDTO(sheet))
}

// SaveSales validates and stores a day's readings, replacing any rows
// already stored for the same nozzles. A stored row is only replaced
// when the entry carries its price snapshot (edit mode); otherwise 409.
// POST /api/sales
func (h *Handler) SaveSales(w http.ResponseWriter, r *http.Request) {
	var req SaveSalesRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := ledger.ParseDate(req.Date)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if len(req.Entries) == 0 {
		h.fail(w, r, ledger.NewValidationError("at least one reading is required"))
		return
	}

	entries := make([]sales.Entry, 0, len(req.Entries))
	for _, e := range req.Entries {
		entries = append(entries, e.toEntry())
	}
	saved, err := h.Sales.Save(r.Context(), date, entries)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSavedSalesDTO(date, saved))
}

// GetSalesSummary rolls sales up by fuel for a period.
// GET /api/sales/summary
func (h *Handler) GetSalesSummary(w http.ResponseWriter, r *http.Request) {
	period, err := periodFromQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	s, err := h.Engine.SalesSummary(r.Context(), period)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SalesSummaryDTO{
		Period:      s.Period.Label(),
		Lines:       toSalesLineDTOs(s.Lines),
		ByFuel:      toFuelTotalDTOs(s.ByFuel),
		TotalLitres: s.TotalLitres,
		TotalValue:  s.TotalValue,
	})
}
