/*
reconcile.go - Sales Reconciliation Service

PURPOSE:
  Loads the daily sheet and saves nozzle readings. On save every derived
  field is recomputed from the entry and the nozzle set; nothing derived
  is trusted from the caller.

SAVE:
  1. LoadSheet: stored rows are Historical cells
  2. Sheet.Apply: a stored row needs its price snapshot (edit mode),
     else ErrReadOnly; a fresh row must not carry one. Every problem
     is collected
  3. For each applied entry:
       litres = closing - opening
       price  = entry snapshot slot for the fuel (historical edit)
                or the nozzle's live price_per_litre
       value  = litres * price
       prices = SnapshotFor(fuel, price)  (other slot is 0)
  4. UpsertSalesReadings(date, rows): one atomic replace
  5. Totals come from the sheet, the same computation the UI shows

OPENING DEFAULTS:
  A date with no stored rows pre-fills each nozzle's opening with the
  last closing before that date. previous_day when it is the calendar
  day before, last_available otherwise. Advisory only.

SEE ALSO:
  - cell.go: Price provenance per cell
  - validate.go: Save rules
  - ledger/store.go: SalesStore contract
*/
package sales

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/slnfs/station-ledger/ledger"
	"github.com/slnfs/station-ledger/logger"
	"github.com/slnfs/station-ledger/metrics"
)

// Service is the sales reconciliation service.
type Service struct {
	store ledger.Store
	log   *logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.log = l.WithComponent("sales") }
}

func NewService(store ledger.Store, opts ...Option) *Service {
	s := &Service{store: store, log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// READ
// =============================================================================

// LastReadings returns, per nozzle, the latest closing strictly before date.
func (s *Service) LastReadings(ctx context.Context, date ledger.Date) (map[int64]LastReading, error) {
	latest, err := s.store.LatestReadingsBefore(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load last readings before %s: %w", date, err)
	}
	yesterday := date.AddDays(-1)
	out := make(map[int64]LastReading, len(latest))
	for id, r := range latest {
		source := SourceLastAvailable
		if r.Date.Equal(yesterday) {
			source = SourcePreviousDay
		}
		out[id] = LastReading{NozzleID: id, Closing: r.Closing, Date: r.Date, Source: source}
	}
	return out, nil
}

// LoadSheet builds the day's cells. Nozzles with a stored row are
// Historical; the rest are Empty with an advisory opening. The opening
// default only applies when the date has no stored rows at all.
func (s *Service) LoadSheet(ctx context.Context, date ledger.Date) (*Sheet, error) {
	nozzles, err := s.store.ListNozzles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list nozzles: %w", err)
	}
	readings, err := s.store.ListSalesReadings(ctx, ledger.SalesFilter{Period: ledger.Between(&date, &date)})
	if err != nil {
		return nil, fmt.Errorf("list readings for %s: %w", date, err)
	}
	last, err := s.LastReadings(ctx, date)
	if err != nil {
		return nil, err
	}

	stored := make(map[int64]ledger.SalesReading, len(readings))
	for _, r := range readings {
		stored[r.NozzleID] = r
	}

	sheet := &Sheet{Date: date, Historical: len(readings) > 0, LastReadings: last}
	for _, n := range nozzles {
		if r, ok := stored[n.ID]; ok {
			sheet.Cells = append(sheet.Cells, NewHistoricalCell(n, r))
			continue
		}
		opening := decimal.Zero
		if lr, ok := last[n.ID]; ok && !sheet.Historical {
			opening = lr.Closing
		}
		sheet.Cells = append(sheet.Cells, NewEmptyCell(n, opening))
	}
	return sheet, nil
}

// ReadingsForDate returns the day's readings joined with nozzles, by nozzle id.
func (s *Service) ReadingsForDate(ctx context.Context, date ledger.Date) ([]ledger.SalesLine, error) {
	nozzles, err := s.store.ListNozzles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list nozzles: %w", err)
	}
	period := ledger.Between(&date, &date)
	readings, err := s.store.ListSalesReadings(ctx, ledger.SalesFilter{Period: period})
	if err != nil {
		return nil, fmt.Errorf("list readings for %s: %w", date, err)
	}
	lines := ledger.SummarizeSales(readings, nozzles, period).Lines
	sort.Slice(lines, func(i, j int) bool { return lines[i].NozzleID < lines[j].NozzleID })
	return lines, nil
}

// =============================================================================
// WRITE
// =============================================================================

// SetLivePrice changes a nozzle's current price. Stored readings keep
// their own snapshot and are not affected.
func (s *Service) SetLivePrice(ctx context.Context, nozzleID int64, price decimal.Decimal) (ledger.Nozzle, error) {
	n, err := s.store.GetNozzle(ctx, nozzleID)
	if err != nil {
		return ledger.Nozzle{}, err
	}
	n.PricePerLitre = price
	if err := s.store.UpsertNozzle(ctx, n); err != nil {
		return ledger.Nozzle{}, err
	}
	return n, nil
}

// Saved is the outcome of a save: the rows written and the day's totals
// as now stored.
type Saved struct {
	Rows   []ledger.SalesReading
	Totals Totals
}

// Save applies entries to the day's sheet and persists the touched cells.
// On a validation or read-only error the store is not touched.
func (s *Service) Save(ctx context.Context, date ledger.Date, entries []Entry) (*Saved, error) {
	log := s.log.WithContext(ctx).With("date", date.String())

	sheet, err := s.LoadSheet(ctx, date)
	if err != nil {
		metrics.SalesSheetsSaved.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}

	applied, err := sheet.Apply(entries)
	if err != nil {
		metrics.SalesSheetsSaved.WithLabelValues(metrics.OutcomeInvalid).Inc()
		log.Infow("sales sheet rejected", "error", err)
		return nil, err
	}
	rows, err := Reconcile(date, applied, sheet.Nozzles())
	if err != nil {
		metrics.SalesSheetsSaved.WithLabelValues(metrics.OutcomeInvalid).Inc()
		log.Infow("sales sheet rejected", "error", err)
		return nil, err
	}

	if err := s.store.UpsertSalesReadings(ctx, date, rows); err != nil {
		metrics.SalesSheetsSaved.WithLabelValues(metrics.OutcomeError).Inc()
		if errors.Is(err, ledger.ErrSchemaDrift) {
			log.Errorw("sales sheet not saved: schema drift", "error", err)
		}
		return nil, fmt.Errorf("save readings for %s: %w", date, err)
	}

	metrics.SalesSheetsSaved.WithLabelValues(metrics.OutcomeOK).Inc()
	metrics.SalesRowsWritten.Add(float64(len(rows)))
	log.Infow("sales sheet saved", "rows", len(rows))
	return &Saved{Rows: rows, Totals: sheet.Totals()}, nil
}

// Reconcile validates entries and derives the rows to store.
func Reconcile(date ledger.Date, entries []Entry, nozzles []ledger.Nozzle) ([]ledger.SalesReading, error) {
	if err := Validate(entries, nozzles); err != nil {
		return nil, err
	}

	byID := make(map[int64]ledger.Nozzle, len(nozzles))
	for _, n := range nozzles {
		byID[n.ID] = n
	}

	rows := make([]ledger.SalesReading, 0, len(entries))
	for _, e := range entries {
		n := byID[e.NozzleID]
		price := appliedPrice(e, n)
		litres := e.Closing.Sub(e.Opening)
		rows = append(rows, ledger.SalesReading{
			Date:        date,
			NozzleID:    e.NozzleID,
			Opening:     e.Opening,
			Closing:     e.Closing,
			SalesLitres: litres,
			SalesValue:  Value(litres, price),
			Prices:      ledger.SnapshotFor(n.FuelType, price),
		})
	}
	return rows, nil
}
