package report

import (
	"context"

	"github.com/warp/sbu-ledger/ledger"
)

// Dashboard is a staff member's view of their own unit for one day.
type Dashboard struct {
	Unit   ledger.BusinessUnit
	Report *Report
}

// BuildDashboard returns the unit summary and its daily report for today.
func (e *Engine) BuildDashboard(ctx context.Context, unitID ledger.UnitID, today ledger.Date) (*Dashboard, error) {
	unit, err := e.unit(ctx, unitID)
	if err != nil {
		return nil, err
	}

	rep, err := e.aggregate(ctx, unit, ledger.PeriodDaily, ledger.Period{Start: today, End: today})
	if err != nil {
		return nil, err
	}
	return &Dashboard{Unit: *unit, Report: rep}, nil
}
