package sales

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/slnfs/station-ledger/ledger"
)

// Validate checks a day's entries against the nozzle set. Every violation
// is collected; nothing is written when the result is non-nil.
//
// Zero means "not entered" for a meter reading, so opening=0 closing=0 is
// an empty cell and always valid.
func Validate(entries []Entry, nozzles []ledger.Nozzle) error {
	byID := make(map[int64]ledger.Nozzle, len(nozzles))
	for _, n := range nozzles {
		byID[n.ID] = n
	}

	verr := &ledger.ValidationError{}
	seen := make(map[int64]bool, len(entries))
	for _, e := range entries {
		n, ok := byID[e.NozzleID]
		if !ok {
			verr.Add(ledger.Problem{NozzleID: e.NozzleID, Field: "nozzle_id",
				Message: fmt.Sprintf("Nozzle %d: unknown nozzle", e.NozzleID)})
			continue
		}
		if seen[e.NozzleID] {
			verr.Add(ledger.Problem{NozzleID: e.NozzleID, Field: "nozzle_id",
				Message: fmt.Sprintf("%s: entered more than once", n.Label)})
			continue
		}
		seen[e.NozzleID] = true

		for _, p := range validateEntry(e, n) {
			verr.Add(p)
		}
	}
	return verr.OrNil()
}

func validateEntry(e Entry, n ledger.Nozzle) []ledger.Problem {
	var problems []ledger.Problem
	add := func(field, msg string) {
		problems = append(problems, ledger.Problem{NozzleID: n.ID, Field: field, Message: n.Label + ": " + msg})
	}

	if e.Opening.IsNegative() {
		add("opening", fmt.Sprintf("Opening reading (%s) cannot be negative", e.Opening))
	}
	if e.Closing.IsNegative() {
		add("closing", fmt.Sprintf("Closing reading (%s) cannot be negative", e.Closing))
	}

	if e.Opening.IsPositive() && e.Closing.IsZero() {
		add("closing", fmt.Sprintf("Closing reading is required when opening reading is %s", e.Opening))
	}
	if e.Opening.IsPositive() && e.Closing.IsPositive() && e.Closing.LessThan(e.Opening) {
		add("closing", fmt.Sprintf("Closing reading (%s) must be equal to or greater than opening reading (%s)", e.Closing, e.Opening))
	}

	hasReading := e.Opening.IsPositive() || e.Closing.IsPositive()
	if hasReading && !appliedPrice(e, n).IsPositive() {
		add("price", "Unit price is required when there are opening or closing readings")
	}
	return problems
}

// appliedPrice resolves the unit price for an entry: the entry's own
// snapshot when it carries one (historical edit), otherwise the nozzle's
// live price.
func appliedPrice(e Entry, n ledger.Nozzle) decimal.Decimal {
	if e.Prices != nil {
		return e.Prices.For(n.FuelType)
	}
	return n.PricePerLitre
}
