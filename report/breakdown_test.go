package report_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/sbu-ledger/ledger"
	"github.com/warp/sbu-ledger/report"
)

func TestBuildStaffBreakdown_PerStaffTotals(t *testing.T) {
	// GIVEN: Two staff on a unit, one with no activity
	// WHEN: Building the daily breakdown
	// THEN: Both are listed (sorted by name) with their own totals

	f := newFixture(t)
	u := f.unit(ledger.BusinessUnit{ID: "u", Name: "Pharmacy", DailyBudget: 1000})
	bola := f.staff("s-bola", "Bola", u)
	f.staff("s-ade", "Ade", u)

	f.sale(u, dayD, 700, bola)
	f.expense(u, ledger.CategoryConsumables, dayD, 120, bola)

	rows, err := f.engine.BuildStaffBreakdown(f.ctx, u, ledger.PeriodDaily, dayD)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, report.StaffContribution{StaffID: "s-ade", StaffName: "Ade"}, rows[0])
	assert.Equal(t, report.StaffContribution{
		StaffID: "s-bola", StaffName: "Bola",
		TotalSales: 700, TotalExpenses: 120, NetProfit: 580,
	}, rows[1])
}

func TestBuildStaffBreakdown_ScopedToPeriod(t *testing.T) {
	f := newFixture(t)
	u := f.unit(ledger.BusinessUnit{ID: "u", Name: "Pharmacy", DailyBudget: 1000})
	s := f.staff("s1", "Chidi", u)

	f.sale(u, dayD, 100, s)
	f.sale(u, dayD.AddDays(-3), 200, s)
	f.sale(u, dayD.AddDays(-30), 400, s)

	daily, err := f.engine.BuildStaffBreakdown(f.ctx, u, ledger.PeriodDaily, dayD)
	require.NoError(t, err)
	assert.Equal(t, int64(100), daily[0].TotalSales)

	weekly, err := f.engine.BuildStaffBreakdown(f.ctx, u, ledger.PeriodWeekly, dayD)
	require.NoError(t, err)
	assert.Equal(t, int64(300), weekly[0].TotalSales)
}

func TestBuildStaffBreakdown_UnattributedRowsGoToSystem(t *testing.T) {
	// GIVEN: A sale by a staff member later moved to another unit,
	//        and an expense with no contributor
	// THEN: Both land in a trailing "System" row

	f := newFixture(t)
	u := f.unit(ledger.BusinessUnit{ID: "u", Name: "Pharmacy", DailyBudget: 1000})
	other := f.unit(ledger.BusinessUnit{ID: "other", Name: "Lab", DailyBudget: 1000})
	mover := f.staff("s-move", "Mover", u)
	f.staff("s-stay", "Stayer", u)

	f.sale(u, dayD, 300, mover)
	f.expense(u, ledger.CategoryMiscellaneous, dayD, 40, nil)

	f.staff("s-move", "Mover", other)

	rows, err := f.engine.BuildStaffBreakdown(f.ctx, u, ledger.PeriodDaily, dayD)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, ledger.StaffID("s-stay"), rows[0].StaffID)
	assert.Equal(t, ledger.StaffID(""), rows[1].StaffID)
	assert.Equal(t, ledger.SystemName, rows[1].StaffName)
	assert.Equal(t, int64(300), rows[1].TotalSales)
	assert.Equal(t, int64(40), rows[1].TotalExpenses)
	assert.Equal(t, int64(260), rows[1].NetProfit)

	// The unit report still counts the mover's sale.
	rep, err := f.engine.BuildReport(f.ctx, u, ledger.PeriodDaily, dayD)
	require.NoError(t, err)
	assert.Equal(t, int64(300), rep.TotalSales)
}

func TestBuildStaffBreakdown_DeactivatedStaffStillListed(t *testing.T) {
	f := newFixture(t)
	u := f.unit(ledger.BusinessUnit{ID: "u", Name: "Pharmacy", DailyBudget: 1000})
	s := f.staff("s1", "Dayo", u)
	f.sale(u, dayD, 90, s)
	require.NoError(t, f.mem.SetStaffActive(f.ctx, "s1", false))

	rows, err := f.engine.BuildStaffBreakdown(f.ctx, u, ledger.PeriodDaily, dayD)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(90), rows[0].TotalSales)
}

func TestBuildStaffBreakdown_DeletedStaffResolvesToSystem(t *testing.T) {
	f := newFixture(t)
	u := f.unit(ledger.BusinessUnit{ID: "u", Name: "Pharmacy", DailyBudget: 1000})
	s := f.staff("s1", "Gone", u)
	f.sale(u, dayD, 55, s)
	require.NoError(t, f.mem.DeleteStaff(f.ctx, "s1"))

	rows, err := f.engine.BuildStaffBreakdown(f.ctx, u, ledger.PeriodDaily, dayD)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ledger.SystemName, rows[0].StaffName)
	assert.Equal(t, int64(55), rows[0].TotalSales)
}

func TestBuildUnitReport_BreakdownSumsToReport(t *testing.T) {
	for _, kind := range []ledger.PeriodKind{ledger.PeriodDaily, ledger.PeriodWeekly, ledger.PeriodMonthly} {
		f := newFixture(t)
		u := f.unit(ledger.BusinessUnit{ID: "u", Name: "Mall", DailyBudget: 800, PersonnelCost: 100, Rent: 100})
		a := f.staff("a", "Amaka", u)
		b := f.staff("b", "Bayo", u)

		for i := 0; i < 10; i++ {
			by := a
			if i%2 == 0 {
				by = b
			}
			if i%3 == 0 {
				by = nil
			}
			day := dayD.AddDays(-i)
			f.sale(u, day, int64(100+i), by)
			f.expense(u, ledger.Categories()[i%4], day, int64(10+i), by)
		}

		ur, err := f.engine.BuildUnitReport(f.ctx, u, kind, dayD)
		require.NoError(t, err)

		var sales, expenses int64
		for _, row := range ur.Staff {
			sales += row.TotalSales
			expenses += row.TotalExpenses
		}
		assert.Equal(t, ur.Report.TotalSales, sales, "sales for %s", kind)
		assert.Equal(t, ur.Report.VariableCosts.Total(), expenses, "expenses for %s", kind)
	}
}

func TestBuildStaffBreakdown_Errors(t *testing.T) {
	f := newFixture(t)
	f.unit(ledger.BusinessUnit{ID: "u", Name: "X", DailyBudget: 1})

	_, err := f.engine.BuildStaffBreakdown(f.ctx, "nope", ledger.PeriodDaily, dayD)
	assert.ErrorIs(t, err, ledger.ErrUnitNotFound)

	_, err = f.engine.BuildStaffBreakdown(f.ctx, "u", "fortnightly", dayD)
	assert.ErrorIs(t, err, ledger.ErrInvalidPeriod)
}
