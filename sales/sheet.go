package sales

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/slnfs/station-ledger/ledger"
)

// Source says where an advisory opening reading came from.
type Source string

const (
	SourcePreviousDay   Source = "previous_day"
	SourceLastAvailable Source = "last_available"
)

// LastReading is the most recent closing before a date for one nozzle.
type LastReading struct {
	NozzleID int64
	Closing  decimal.Decimal
	Date     ledger.Date
	Source   Source
}

// Sheet is one day of cells, one per nozzle in id order.
type Sheet struct {
	Date         ledger.Date
	Historical   bool
	Cells        []*Cell
	LastReadings map[int64]LastReading
}

// Cell returns the cell for a nozzle.
func (s *Sheet) Cell(nozzleID int64) (*Cell, bool) {
	for _, c := range s.Cells {
		if c.Nozzle.ID == nozzleID {
			return c, true
		}
	}
	return nil, false
}

// BeginEdit opens every historical cell for edits. Cells without a
// stored row keep using the live nozzle price.
func (s *Sheet) BeginEdit() error {
	if !s.Historical {
		return fmt.Errorf("sheet %s has no stored readings: %w", s.Date, ErrReadOnly)
	}
	for _, c := range s.Cells {
		if c.State() == StateHistorical {
			if err := c.BeginEdit(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Editing reports whether any cell is in edit mode.
func (s *Sheet) Editing() bool {
	for _, c := range s.Cells {
		if c.State() == StateEditing {
			return true
		}
	}
	return false
}

// Discard leaves edit mode on every cell without saving.
func (s *Sheet) Discard() {
	for _, c := range s.Cells {
		c.Discard()
	}
}

// Entries is the save payload for the whole sheet.
func (s *Sheet) Entries() []Entry {
	out := make([]Entry, 0, len(s.Cells))
	for _, c := range s.Cells {
		out = append(out, c.Entry())
	}
	return out
}

// Apply moves the cells named by entries into Fresh or Editing and
// returns the save payload rebuilt from those cells.
//
// A stored row is Historical: an entry for it must carry the row's price
// snapshot, which opens the cell for editing; without one the save is
// refused with ErrReadOnly. A price snapshot on a nozzle with no stored
// row is a validation problem, since fresh readings take the live price.
// Unknown and repeated nozzles pass through untouched for Validate to
// report.
func (s *Sheet) Apply(entries []Entry) ([]Entry, error) {
	verr := &ledger.ValidationError{}
	var readOnly []string
	applied := make([]Entry, 0, len(entries))
	seen := make(map[int64]bool, len(entries))

	for _, e := range entries {
		c, ok := s.Cell(e.NozzleID)
		if !ok || seen[e.NozzleID] {
			applied = append(applied, e)
			continue
		}
		seen[e.NozzleID] = true

		switch {
		case c.State() == StateHistorical && e.Prices == nil:
			readOnly = append(readOnly, c.Nozzle.Label)
			continue
		case c.State() == StateHistorical:
			if err := c.BeginEdit(); err != nil {
				return nil, err
			}
			if err := c.SetPrice(e.Prices.For(c.Nozzle.FuelType)); err != nil {
				return nil, err
			}
		case e.Prices != nil:
			verr.Add(ledger.Problem{NozzleID: c.Nozzle.ID, Field: "prices",
				Message: c.Nozzle.Label + ": Price snapshot only applies to a stored reading; set the nozzle price instead"})
			continue
		}
		if err := c.Enter(e.Opening, e.Closing); err != nil {
			return nil, err
		}
		applied = append(applied, c.Entry())
	}

	if len(readOnly) > 0 {
		return nil, fmt.Errorf("%s on %s: stored readings are read only, send their prices to edit them: %w",
			strings.Join(readOnly, ", "), s.Date, ErrReadOnly)
	}
	if err := Validate(applied, s.Nozzles()); err != nil {
		var more *ledger.ValidationError
		if !errors.As(err, &more) {
			return nil, err
		}
		for _, p := range more.Problems {
			verr.Add(p)
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return applied, nil
}

// Nozzles returns the sheet's nozzles in cell order.
func (s *Sheet) Nozzles() []ledger.Nozzle {
	out := make([]ledger.Nozzle, len(s.Cells))
	for i, c := range s.Cells {
		out[i] = c.Nozzle
	}
	return out
}

// Totals rolls the sheet up per fuel. Each cell resolves its own price,
// so read-only and edit mode share this one computation.
type Totals struct {
	Litres decimal.Decimal
	Value  decimal.Decimal
	ByFuel []ledger.FuelTotal
}

func (s *Sheet) Totals() Totals {
	t := Totals{Litres: decimal.Zero, Value: decimal.Zero}
	byFuel := make(map[ledger.FuelType]*ledger.FuelTotal, len(ledger.FuelTypes))
	for _, f := range ledger.FuelTypes {
		ft := ledger.FuelTotal{FuelType: f, Litres: decimal.Zero, Value: decimal.Zero}
		t.ByFuel = append(t.ByFuel, ft)
	}
	for i := range t.ByFuel {
		byFuel[t.ByFuel[i].FuelType] = &t.ByFuel[i]
	}

	for _, c := range s.Cells {
		litres, value := c.Litres(), c.Value()
		t.Litres = t.Litres.Add(litres)
		t.Value = t.Value.Add(value)
		if ft, ok := byFuel[c.Nozzle.FuelType]; ok {
			ft.Litres = ft.Litres.Add(litres)
			ft.Value = ft.Value.Add(value)
			if !litres.IsZero() {
				ft.Readings++
			}
		}
	}
	return t
}
