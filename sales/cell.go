/*
cell.go - Per (date, nozzle) reading cell

PURPOSE:
  Models one cell of the daily sales sheet as an explicit state machine
  so price provenance is decided in exactly one place.

STATES:
  Empty       No reading for this date/nozzle yet.
  Fresh       Readings typed for a date with no stored row. Price is the
              nozzle's live price_per_litre.
  Historical  A stored row exists. Read only. Price is the snapshot
              frozen into the row at save time.
  Editing     A Historical cell opened for edits. Price edits go to a
              pending snapshot, never to the live nozzle price.

TRANSITIONS:
  Empty      --Enter-->     Fresh
  Fresh      --Enter-->     Fresh
  Historical --BeginEdit--> Editing
  Editing    --Enter/SetPrice--> Editing
  Editing    --Discard-->   Historical (pending edits dropped)

  Service.Save loads the sheet and drives these transitions through
  Sheet.Apply, so a stored row cannot be rewritten without its own
  price snapshot. Reloading after a save yields Historical cells.

SEE ALSO:
  - sheet.go: A full day of cells
  - reconcile.go: Saving entries
*/
package sales

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/slnfs/station-ledger/ledger"
)

// State is the cell's place in the edit lifecycle.
type State int

const (
	StateEmpty State = iota
	StateFresh
	StateHistorical
	StateEditing
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateFresh:
		return "fresh"
	case StateHistorical:
		return "historical"
	case StateEditing:
		return "editing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrReadOnly is returned when a transition is not allowed in the current state.
var ErrReadOnly = errors.New("cell is read only")

// Entry is what a cell contributes to a save. Prices is set only for
// edited historical rows; otherwise the live nozzle price applies.
type Entry struct {
	NozzleID int64
	Opening  decimal.Decimal
	Closing  decimal.Decimal
	Prices   *ledger.PriceSnapshot
}

// Cell is one nozzle's reading for one date.
type Cell struct {
	Nozzle  ledger.Nozzle
	state   State
	opening decimal.Decimal
	closing decimal.Decimal

	// stored is the persisted row behind Historical and Editing cells.
	stored  *ledger.SalesReading
	pending ledger.PriceSnapshot
}

// NewEmptyCell starts a cell with no reading. opening is the advisory
// default carried from the last known closing (zero if none).
func NewEmptyCell(n ledger.Nozzle, opening decimal.Decimal) *Cell {
	return &Cell{Nozzle: n, state: StateEmpty, opening: opening, closing: decimal.Zero}
}

// NewHistoricalCell wraps a stored reading.
func NewHistoricalCell(n ledger.Nozzle, r ledger.SalesReading) *Cell {
	stored := r
	return &Cell{
		Nozzle:  n,
		state:   StateHistorical,
		opening: r.Opening,
		closing: r.Closing,
		stored:  &stored,
	}
}

func (c *Cell) State() State                 { return c.state }
func (c *Cell) Opening() decimal.Decimal     { return c.opening }
func (c *Cell) Closing() decimal.Decimal     { return c.closing }
func (c *Cell) Stored() *ledger.SalesReading { return c.stored }

// Enter sets both meter readings.
func (c *Cell) Enter(opening, closing decimal.Decimal) error {
	switch c.state {
	case StateEmpty, StateFresh:
		c.state = StateFresh
	case StateEditing:
	default:
		return fmt.Errorf("nozzle %d: enter readings while %s: %w", c.Nozzle.ID, c.state, ErrReadOnly)
	}
	c.opening, c.closing = opening, closing
	return nil
}

// BeginEdit opens a historical cell for edits.
func (c *Cell) BeginEdit() error {
	if c.state != StateHistorical {
		return fmt.Errorf("nozzle %d: begin edit while %s: %w", c.Nozzle.ID, c.state, ErrReadOnly)
	}
	c.state = StateEditing
	c.pending = c.stored.Prices
	return nil
}

// SetPrice changes the price applied to this cell. In Editing it writes
// the pending snapshot slot for the nozzle's fuel. In Empty/Fresh it
// changes the live nozzle price the caller is expected to persist.
func (c *Cell) SetPrice(price decimal.Decimal) error {
	switch c.state {
	case StateEditing:
		c.pending = ledger.SnapshotFor(c.Nozzle.FuelType, price)
	case StateEmpty, StateFresh:
		c.Nozzle.PricePerLitre = price
	default:
		return fmt.Errorf("nozzle %d: set price while %s: %w", c.Nozzle.ID, c.state, ErrReadOnly)
	}
	return nil
}

// Discard drops pending edits and returns to Historical. Persisted data
// is untouched. It is a no-op outside Editing.
func (c *Cell) Discard() {
	if c.state != StateEditing {
		return
	}
	c.state = StateHistorical
	c.opening, c.closing = c.stored.Opening, c.stored.Closing
	c.pending = ledger.PriceSnapshot{}
}

// AppliedPrice is the unit price the cell's value is computed with.
func (c *Cell) AppliedPrice() decimal.Decimal {
	switch c.state {
	case StateHistorical:
		return c.stored.Prices.For(c.Nozzle.FuelType)
	case StateEditing:
		return c.pending.For(c.Nozzle.FuelType)
	default:
		return c.Nozzle.PricePerLitre
	}
}

// Litres is closing - opening. An Empty cell has sold nothing, whatever
// its advisory opening.
func (c *Cell) Litres() decimal.Decimal {
	if c.state == StateEmpty {
		return decimal.Zero
	}
	return c.closing.Sub(c.opening)
}

// Value is litres at the applied price.
func (c *Cell) Value() decimal.Decimal {
	return Value(c.Litres(), c.AppliedPrice())
}

// Entry returns the save payload for this cell.
func (c *Cell) Entry() Entry {
	e := Entry{NozzleID: c.Nozzle.ID, Opening: c.opening, Closing: c.closing}
	if c.state == StateEditing {
		prices := ledger.SnapshotFor(c.Nozzle.FuelType, c.pending.For(c.Nozzle.FuelType))
		e.Prices = &prices
	}
	return e
}

// Value prices litres, treating a non-positive price as no sale value.
func Value(litres, price decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() {
		return decimal.Zero
	}
	return litres.Mul(price)
}
