package report

import (
	"context"
	"fmt"

	"github.com/warp/sbu-ledger/ledger"
)

// =============================================================================
// ATTRIBUTION - Who contributed what to a unit
// =============================================================================

// StaffContribution is one contributor's share of a unit's activity.
// Expenses here are variable only; fixed costs belong to the unit.
type StaffContribution struct {
	StaffID       ledger.StaffID // empty for the System row
	StaffName     string
	TotalSales    int64
	TotalExpenses int64
	NetProfit     int64
}

// UnitReport is the admin view: the unit report plus its staff breakdown
// over the same range.
type UnitReport struct {
	Report *Report
	Staff  []StaffContribution
}

// BuildStaffBreakdown attributes the unit's sales and expenses over the
// resolved period to its contributors.
//
// Rows:
//   - every staff member currently assigned to the unit, active or not,
//     including those with no activity, ordered by name;
//   - then one "System" row with an empty StaffID collecting rows whose
//     contributor is unset, deleted or now assigned elsewhere. It is only
//     present when non-zero.
//
// Because of the System row, the breakdown always sums to the report's
// total_sales and variable-cost total for the same period.
func (e *Engine) BuildStaffBreakdown(ctx context.Context, unitID ledger.UnitID, kind ledger.PeriodKind, anchor ledger.Date) ([]StaffContribution, error) {
	period, err := ledger.Resolve(kind, anchor)
	if err != nil {
		return nil, err
	}
	if _, err := e.unit(ctx, unitID); err != nil {
		return nil, err
	}
	return e.attribute(ctx, unitID, period)
}

// BuildUnitReport returns the report and breakdown for one period.
func (e *Engine) BuildUnitReport(ctx context.Context, unitID ledger.UnitID, kind ledger.PeriodKind, anchor ledger.Date) (*UnitReport, error) {
	period, err := ledger.Resolve(kind, anchor)
	if err != nil {
		return nil, err
	}

	unit, err := e.unit(ctx, unitID)
	if err != nil {
		return nil, err
	}

	rep, err := e.aggregate(ctx, unit, kind, period)
	if err != nil {
		return nil, err
	}

	staff, err := e.attribute(ctx, unitID, period)
	if err != nil {
		return nil, err
	}

	return &UnitReport{Report: rep, Staff: staff}, nil
}

func (e *Engine) attribute(ctx context.Context, unitID ledger.UnitID, period ledger.Period) ([]StaffContribution, error) {
	members, err := e.src.ListStaffByUnit(ctx, unitID)
	if err != nil {
		return nil, fmt.Errorf("list unit staff: %w", err)
	}

	sales, err := e.src.SumSalesByContributor(ctx, unitID, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("group sales: %w", err)
	}

	expenses, err := e.src.SumExpensesByContributor(ctx, unitID, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("group expenses: %w", err)
	}

	rows := make([]StaffContribution, len(members))
	index := make(map[ledger.StaffID]int, len(members))
	for i, m := range members {
		rows[i] = StaffContribution{StaffID: m.ID, StaffName: m.FullName}
		index[m.ID] = i
	}

	var system StaffContribution
	system.StaffName = ledger.SystemName

	for _, s := range sales {
		if i, ok := lookup(index, s.StaffID); ok {
			rows[i].TotalSales += s.Total
		} else {
			system.TotalSales += s.Total
		}
	}
	for _, x := range expenses {
		if i, ok := lookup(index, x.StaffID); ok {
			rows[i].TotalExpenses += x.Total
		} else {
			system.TotalExpenses += x.Total
		}
	}

	if system.TotalSales != 0 || system.TotalExpenses != 0 {
		rows = append(rows, system)
	}

	for i := range rows {
		rows[i].NetProfit = rows[i].TotalSales - rows[i].TotalExpenses
	}
	return rows, nil
}

func lookup(index map[ledger.StaffID]int, id *ledger.StaffID) (int, bool) {
	if id == nil {
		return 0, false
	}
	i, ok := index[*id]
	return i, ok
}
