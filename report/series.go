package report

import (
	"context"
	"fmt"

	"github.com/warp/sbu-ledger/ledger"
)

// SeriesPoint is one day of chart data.
type SeriesPoint struct {
	Date     ledger.Date
	Sales    int64
	Expenses int64 // variable costs only
}

// Series is day-by-day sales and expenses over a resolved period, with a
// point for every day including empty ones.
type Series struct {
	UnitID ledger.UnitID
	Period ledger.PeriodKind
	Range  ledger.Period
	Points []SeriesPoint
}

// Labels returns the YYYY-MM-DD label of each point.
func (s *Series) Labels() []string {
	labels := make([]string, len(s.Points))
	for i, p := range s.Points {
		labels[i] = p.Date.String()
	}
	return labels
}

// BuildSeries groups the unit's ledger rows by day over the resolved period.
func (e *Engine) BuildSeries(ctx context.Context, unitID ledger.UnitID, kind ledger.PeriodKind, anchor ledger.Date) (*Series, error) {
	period, err := ledger.Resolve(kind, anchor)
	if err != nil {
		return nil, err
	}
	if _, err := e.unit(ctx, unitID); err != nil {
		return nil, err
	}

	sales, err := e.src.ListSales(ctx, unitID, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	expenses, err := e.src.ListExpenses(ctx, unitID, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	days := period.Days()
	points := make([]SeriesPoint, len(days))
	for i, d := range days {
		points[i].Date = d
	}

	for _, s := range sales {
		points[ledger.DaysBetween(period.Start, s.Date)].Sales += s.Amount
	}
	for _, x := range expenses {
		if !x.Category.Valid() {
			continue
		}
		points[ledger.DaysBetween(period.Start, x.EffectiveDate)].Expenses += x.Amount
	}

	return &Series{UnitID: unitID, Period: kind, Range: period, Points: points}, nil
}
