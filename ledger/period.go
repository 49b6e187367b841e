/*
period.go - Period Resolver

PURPOSE:
  Turns a report request shape (all | month | range) into a concrete
  inclusive date window. Nil bounds are open ended. Every consumer
  (engine, dashboard, CSV, PDF) resolves through here so all outputs
  agree on which rows a period covers.

RESOLUTION:
  all   -> [nil, nil]
  month -> [first day, first day of next month - 1 day]
  range -> bounds passed through verbatim, either may be nil

  A malformed month never fails: it degrades to [nil, nil]. The label
  then reads "All Time" because that is what the rows cover.

LABELS:
  "Period: 2024-02"
  "Period: 2024-01-10 to —"
  "Period: All Time"

SEE ALSO:
  - time.go: Date and month arithmetic
  - balance.go: Opening/closing balance over a Period
*/
package ledger

import (
	"fmt"
	"strings"
)

// Mode selects how a PeriodRequest is resolved.
type Mode string

const (
	ModeAll   Mode = "all"
	ModeMonth Mode = "month"
	ModeRange Mode = "range"
)

// PeriodRequest is the shape a caller sends.
type PeriodRequest struct {
	Mode      Mode
	Month     string
	StartDate *Date
	EndDate   *Date
}

// Period is an inclusive date window. Month is set only when the window
// came from a well formed month request.
type Period struct {
	Start *Date
	End   *Date
	Month string
}

// AllTime is the unbounded period.
func AllTime() Period { return Period{} }

// MonthPeriod covers one calendar month.
func MonthPeriod(month string) (Period, error) {
	y, m, err := ParseMonth(month)
	if err != nil {
		return Period{}, err
	}
	start := StartOfMonth(y, m)
	end := EndOfMonth(y, m)
	return Period{Start: &start, End: &end, Month: start.MonthKey()}, nil
}

// Between covers [start, end]; nil means open ended on that side.
func Between(start, end *Date) Period {
	return Period{Start: copyDate(start), End: copyDate(end)}
}

// Resolve converts a request into a Period. It never fails.
func Resolve(req PeriodRequest) Period {
	switch req.Mode {
	case ModeMonth:
		p, err := MonthPeriod(req.Month)
		if err != nil {
			return AllTime()
		}
		return p
	case ModeRange:
		return Between(req.StartDate, req.EndDate)
	default:
		return AllTime()
	}
}

// Contains reports whether d falls inside the window. Both ends inclusive.
func (p Period) Contains(d Date) bool {
	if p.Start != nil && d.Before(*p.Start) {
		return false
	}
	if p.End != nil && d.After(*p.End) {
		return false
	}
	return true
}

// BeforeStart reports whether d counts toward the opening balance.
// With no start bound nothing precedes the period.
func (p Period) BeforeStart(d Date) bool {
	return p.Start != nil && d.Before(*p.Start)
}

// UpToEnd reports whether d is at or before the end bound.
func (p Period) UpToEnd(d Date) bool {
	return p.End == nil || !d.After(*p.End)
}

// IsUnbounded reports whether neither bound is set.
func (p Period) IsUnbounded() bool { return p.Start == nil && p.End == nil }

// Preceding returns the window that ends the day before p starts.
// For a period without a start bound it returns nil.
func (p Period) Preceding() *Period {
	if p.Start == nil {
		return nil
	}
	end := p.Start.AddDays(-1)
	return &Period{End: &end}
}

// Label renders the human readable header line.
func (p Period) Label() string {
	if p.Month != "" {
		return "Period: " + p.Month
	}
	if p.IsUnbounded() {
		return "Period: All Time"
	}
	return fmt.Sprintf("Period: %s to %s", boundString(p.Start), boundString(p.End))
}

// Slug is a filename friendly form of the period.
func (p Period) Slug() string {
	if p.Month != "" {
		return p.Month
	}
	if p.IsUnbounded() {
		return "all_time"
	}
	return strings.Trim(boundSlug(p.Start)+"_to_"+boundSlug(p.End), "_")
}

func boundString(d *Date) string {
	if d == nil {
		return "—"
	}
	return d.String()
}

func boundSlug(d *Date) string {
	if d == nil {
		return "open"
	}
	return d.String()
}

func copyDate(d *Date) *Date {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}
