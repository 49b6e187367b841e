/*
errors.go - Centralized error types for the station ledger

PURPOSE:
  All error types in one place for consistency and discoverability.
  Service packages (sales, report, dashboard) wrap these with context.

ERROR CATEGORIES:
  1. Not-found errors - Lookups by id that miss
  2. Validation errors - Business rule violations, reported before any write
  3. Schema errors - Store is missing columns the engine depends on

USAGE:
    if errors.Is(err, ledger.ErrCustomerNotFound) {
        return report.Result{Cancelled: true}, nil
    }

    var verr *ledger.ValidationError
    if errors.As(err, &verr) {
        for _, p := range verr.Problems { ... }
    }

SEE ALSO:
  - store.go: Store contracts returning these errors
  - sales/validate.go: Builds ValidationError for nozzle readings
  - store/sqlite/sqlite.go: Builds SchemaDriftError
*/
package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrCustomerNotFound is returned when a referenced customer doesn't exist.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrTransactionNotFound is returned when deleting an unknown transaction.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrNozzleNotFound is returned when a referenced nozzle doesn't exist.
	ErrNozzleNotFound = errors.New("nozzle not found")

	// ErrExpenseNotFound is returned when a referenced expense doesn't exist.
	ErrExpenseNotFound = errors.New("expense not found")

	// ErrValidation is the parent of every ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidMonth is returned when a month string is not YYYY-MM.
	ErrInvalidMonth = errors.New("invalid month: expected YYYY-MM")

	// ErrInvalidDate is returned when a date string is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date: expected YYYY-MM-DD")

	// ErrSchemaDrift is returned when the store lacks columns a write depends on.
	ErrSchemaDrift = errors.New("schema drift detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// Problem is a single rule violation. Field is optional.
type Problem struct {
	NozzleID int64
	Field    string
	Message  string
}

// ValidationError reports every violation found in one pass.
type ValidationError struct {
	Problems []Problem
}

// NewValidationError builds a ValidationError from plain messages.
func NewValidationError(messages ...string) *ValidationError {
	e := &ValidationError{}
	for _, m := range messages {
		e.Problems = append(e.Problems, Problem{Message: m})
	}
	return e
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "validation failed: " + e.Problems[0].Message
	}
	return fmt.Sprintf("validation failed (%d problems): %s", len(e.Problems), strings.Join(e.Messages(), "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Messages returns the problem messages in order.
func (e *ValidationError) Messages() []string {
	out := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		out[i] = p.Message
	}
	return out
}

// Add appends a problem.
func (e *ValidationError) Add(p Problem) {
	e.Problems = append(e.Problems, p)
}

// OrNil returns nil when no problems were collected.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Problems) == 0 {
		return nil
	}
	return e
}

// SchemaDriftError names the columns the store is missing.
type SchemaDriftError struct {
	Table   string
	Missing []string
}

func (e *SchemaDriftError) Error() string {
	return fmt.Sprintf("schema drift: table %s is missing columns %s; restart the application so migrations can add them, or restore from a backup",
		e.Table, strings.Join(e.Missing, ", "))
}

func (e *SchemaDriftError) Unwrap() error {
	return ErrSchemaDrift
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidMonth) ||
		errors.Is(err, ErrInvalidDate)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrNozzleNotFound) ||
		errors.Is(err, ErrExpenseNotFound)
}
