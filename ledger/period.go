package ledger

import "fmt"

// =============================================================================
// PERIOD - Inclusive date range a report covers
// =============================================================================

// Period is an inclusive [Start, End] range of calendar days.
type Period struct {
	Start Date
	End   Date
}

// Contains returns true if the day is within the period [Start, End]
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Days returns all days in the period, oldest first.
func (p Period) Days() []Date {
	var days []Date
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// PeriodKind is the report period keyword.
type PeriodKind string

const (
	PeriodDaily   PeriodKind = "daily"   // the anchor day only
	PeriodWeekly  PeriodKind = "weekly"  // trailing 7 days ending on the anchor
	PeriodMonthly PeriodKind = "monthly" // month-to-date ending on the anchor
)

// ParsePeriodKind validates a period keyword.
func ParsePeriodKind(s string) (PeriodKind, error) {
	switch k := PeriodKind(s); k {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
}

// =============================================================================
// PERIOD RESOLVER
// =============================================================================

// Resolve maps a period keyword and anchor day to a concrete inclusive range.
//
// The weekly window is NOT an ISO week, and the monthly window stops at the
// anchor rather than the end of the calendar month.
func Resolve(kind PeriodKind, anchor Date) (Period, error) {
	switch kind {
	case PeriodDaily:
		return Period{Start: anchor, End: anchor}, nil

	case PeriodWeekly:
		return Period{Start: anchor.AddDays(-6), End: anchor}, nil

	case PeriodMonthly:
		return Period{Start: anchor.StartOfMonth(), End: anchor}, nil

	default:
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, string(kind))
	}
}
