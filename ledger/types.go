/*
types.go - Core entities of the filling station ledger

PURPOSE:
  Defines the persisted entities: customers, credit/payment transactions,
  nozzles, daily sales readings, and expenses. Entities hold ids only,
  never live references; relationships resolve at query time.

KEY CONCEPTS:
  Money and litres are decimal.Decimal. Amounts on transactions are
  always positive; the sign comes from the type.

  PriceSnapshot is the point-in-time price stored on a sales reading.
  It has two slots. Petrol and "others" share the primary slot, diesel
  uses the secondary slot. Historical values are never re-derived from
  the live nozzle price.

SEE ALSO:
  - period.go: Date windows
  - balance.go: Balances derived from transactions
  - aggregate.go: Sales and expense roll-ups
*/
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CUSTOMER
// =============================================================================

// Customer is a credit account holder. Never hard deleted.
type Customer struct {
	ID        int64
	Name      string
	Phone     string
	Email     string
	Notes     string
	CreatedAt time.Time
}

// Validate checks required fields.
func (c Customer) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return NewValidationError("customer name is required")
	}
	return nil
}

// =============================================================================
// TRANSACTION
// =============================================================================

// TxType is credit (customer owes more) or payment (customer owes less).
type TxType string

const (
	TxCredit  TxType = "credit"
	TxPayment TxType = "payment"
)

func (t TxType) Valid() bool { return t == TxCredit || t == TxPayment }

// Transaction is a single credit or payment on a customer account.
type Transaction struct {
	ID         int64
	CustomerID int64
	Amount     decimal.Decimal
	Type       TxType
	Date       Date
	Note       string
	CreatedAt  time.Time
}

// Signed returns +amount for credits and -amount for payments.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == TxPayment {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Validate checks amount, type and date.
func (t Transaction) Validate() error {
	verr := &ValidationError{}
	if t.CustomerID <= 0 {
		verr.Add(Problem{Field: "customer_id", Message: "customer is required"})
	}
	if !t.Amount.IsPositive() {
		verr.Add(Problem{Field: "amount", Message: "amount must be greater than zero"})
	}
	if !t.Type.Valid() {
		verr.Add(Problem{Field: "type", Message: fmt.Sprintf("type must be credit or payment, got %q", t.Type)})
	}
	if t.Date.IsZero() {
		verr.Add(Problem{Field: "date", Message: "date is required"})
	}
	return verr.OrNil()
}

// =============================================================================
// FUEL TYPES AND PRICE SLOTS
// =============================================================================

// FuelType is the product a nozzle dispenses.
type FuelType string

const (
	FuelPetrol FuelType = "petrol"
	FuelDiesel FuelType = "diesel"
	FuelOthers FuelType = "others"
)

// FuelTypes lists every fuel type in storage order (alphabetical).
var FuelTypes = []FuelType{FuelDiesel, FuelOthers, FuelPetrol}

func (f FuelType) Valid() bool {
	return f == FuelPetrol || f == FuelDiesel || f == FuelOthers
}

// ParseFuelType is case insensitive.
func ParseFuelType(s string) (FuelType, error) {
	f := FuelType(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", NewValidationError(fmt.Sprintf("unknown fuel type %q", s))
	}
	return f, nil
}

// PriceSlot indexes the two stored price columns.
type PriceSlot int

const (
	PrimaryRate   PriceSlot = iota // petrol_price column
	SecondaryRate                  // diesel_price column
)

// Slot returns the price column a fuel type reads and writes.
// "others" aliases the primary slot.
func (f FuelType) Slot() PriceSlot {
	if f == FuelDiesel {
		return SecondaryRate
	}
	return PrimaryRate
}

// PriceSnapshot is the pair of price columns stored on a reading.
type PriceSnapshot struct {
	Primary   decimal.Decimal
	Secondary decimal.Decimal
}

// SnapshotFor stores price in the slot used by the fuel type; the other slot is zero.
func SnapshotFor(fuel FuelType, price decimal.Decimal) PriceSnapshot {
	var s PriceSnapshot
	s.Set(fuel, price)
	return s
}

// For returns the applied price for the fuel type.
func (s PriceSnapshot) For(fuel FuelType) decimal.Decimal {
	if fuel.Slot() == SecondaryRate {
		return s.Secondary
	}
	return s.Primary
}

// Set writes price into the slot used by the fuel type.
func (s *PriceSnapshot) Set(fuel FuelType, price decimal.Decimal) {
	if fuel.Slot() == SecondaryRate {
		s.Secondary = price
		return
	}
	s.Primary = price
}

// =============================================================================
// NOZZLE
// =============================================================================

// Nozzle is a physical dispenser. PricePerLitre is today's price.
type Nozzle struct {
	ID            int64
	Label         string
	FuelType      FuelType
	PricePerLitre decimal.Decimal
}

func (n Nozzle) Validate() error {
	verr := &ValidationError{}
	if strings.TrimSpace(n.Label) == "" {
		verr.Add(Problem{NozzleID: n.ID, Field: "label", Message: "nozzle label is required"})
	}
	if !n.FuelType.Valid() {
		verr.Add(Problem{NozzleID: n.ID, Field: "fuel_type", Message: fmt.Sprintf("unknown fuel type %q", n.FuelType)})
	}
	if n.PricePerLitre.IsNegative() {
		verr.Add(Problem{NozzleID: n.ID, Field: "price_per_litre", Message: "price cannot be negative"})
	}
	return verr.OrNil()
}

// DefaultNozzles is the fixed dispenser set seeded into a new store.
func DefaultNozzles() []Nozzle {
	out := make([]Nozzle, 0, 8)
	for i := int64(1); i <= 8; i++ {
		n := Nozzle{ID: i, Label: fmt.Sprintf("Nozzle %d", i), PricePerLitre: decimal.Zero}
		switch {
		case i <= 3:
			n.FuelType = FuelPetrol
		case i <= 7:
			n.FuelType = FuelDiesel
		default:
			n.Label = "Others"
			n.FuelType = FuelOthers
		}
		out = append(out, n)
	}
	return out
}

// =============================================================================
// SALES READING
// =============================================================================

// SalesReading is one (date, nozzle) row. Litres, value and prices are
// derived at save time and overwrite any previous row for the key.
type SalesReading struct {
	ID          int64
	Date        Date
	NozzleID    int64
	Opening     decimal.Decimal
	Closing     decimal.Decimal
	SalesLitres decimal.Decimal
	SalesValue  decimal.Decimal
	Prices      PriceSnapshot
	CreatedAt   time.Time
}

// =============================================================================
// EXPENSE
// =============================================================================

// Expense is a daily outgoing. Description doubles as the category.
type Expense struct {
	ID          int64
	Date        Date
	Description string
	Amount      decimal.Decimal
	CreatedAt   time.Time
}

func (e Expense) Validate() error {
	verr := &ValidationError{}
	if e.Date.IsZero() {
		verr.Add(Problem{Field: "date", Message: "date is required"})
	}
	if strings.TrimSpace(e.Description) == "" {
		verr.Add(Problem{Field: "description", Message: "description is required"})
	}
	if !e.Amount.IsPositive() {
		verr.Add(Problem{Field: "amount", Message: "amount must be greater than zero"})
	}
	return verr.OrNil()
}
