package report_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/sbu-ledger/ledger"
	"github.com/warp/sbu-ledger/ledger/store"
	"github.com/warp/sbu-ledger/report"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	t      *testing.T
	ctx    context.Context
	mem    *store.Memory
	rec    *ledger.Recorder
	engine *report.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	return &fixture{
		t:      t,
		ctx:    context.Background(),
		mem:    mem,
		rec:    ledger.NewRecorder(mem),
		engine: report.NewEngine(mem, nil),
	}
}

func (f *fixture) unit(u ledger.BusinessUnit) ledger.UnitID {
	f.t.Helper()
	require.NoError(f.t, f.mem.SaveUnit(f.ctx, u))
	return u.ID
}

func (f *fixture) staff(id, name string, unit ledger.UnitID) *ledger.StaffID {
	f.t.Helper()
	u := unit
	require.NoError(f.t, f.mem.SaveStaff(f.ctx, ledger.StaffMember{
		ID:       ledger.StaffID(id),
		FullName: name,
		Username: id,
		Role:     ledger.RoleStaff,
		UnitID:   &u,
		Active:   true,
	}))
	sid := ledger.StaffID(id)
	return &sid
}

func (f *fixture) sale(unit ledger.UnitID, date ledger.Date, amount int64, by *ledger.StaffID) {
	f.t.Helper()
	_, err := f.rec.RecordSale(f.ctx, ledger.SaleSubmission{UnitID: unit, Date: date, Amount: amount, By: by})
	require.NoError(f.t, err)
}

func (f *fixture) expense(unit ledger.UnitID, c ledger.Category, date ledger.Date, amount int64, by *ledger.StaffID) {
	f.t.Helper()
	_, err := f.rec.RecordExpense(f.ctx, ledger.ExpenseSubmission{UnitID: unit, Category: c, Date: date, Amount: amount, By: by})
	require.NoError(f.t, err)
}

var dayD = ledger.NewDate(2025, time.April, 15)

// =============================================================================
// SCENARIOS
// =============================================================================

func TestBuildReport_DailyScenario(t *testing.T) {
	// GIVEN: Unit with budget 500, fixed 100+50+20
	//        On day D: sales 600, consumables 50, utilities 30
	// WHEN: Building the daily report for D
	// THEN: total_expenses 250, net_profit 350, 120% Excellent

	f := newFixture(t)
	u := f.unit(ledger.BusinessUnit{ID: "u", Name: "Gym", DailyBudget: 500, PersonnelCost: 100, Rent: 50, Electricity: 20})
	f.sale(u, dayD, 600, nil)
	f.expense(u, ledger.CategoryConsumables, dayD, 50, nil)
	f.expense(u, ledger.CategoryUtilities, dayD, 30, nil)

	rep, err := f.engine.BuildReport(f.ctx, u, ledger.PeriodDaily, dayD)
	require.NoError(t, err)

	assert.Equal(t, report.VariableCosts{Consumables: 50, GeneralExpenses: 0, Utilities: 30, Miscellaneous: 0}, rep.VariableCosts)
	assert.Equal(t, report.FixedCosts{PersonnelCost: 100, Rent: 50, Electricity: 20, TotalFixed: 170}, rep.FixedCosts)
	assert.Equal(t, int64(600), rep.TotalSales)
	assert.Equal(t, int64(250), rep.TotalExpenses)
	assert.Equal(t, int64(350), rep.NetProfit)
	assert.Equal(t, 120.0, rep.PerformancePercent)
	assert.Equal(t, report.StatusExcellent, rep.PerformanceStatus)
	assert.Equal(t, ledger.PeriodDaily, rep.Period)
	assert.True(t, rep.Range.Start.Equal(dayD))
}

func TestBuildReport_NetProfit(t *testing.T) {
	f := newFixture(t)
	u := f.unit(ledger.BusinessUnit{ID: "u", Name: "Lab", DailyBudget: 2000, PersonnelCost: 200, Rent: 200, Electricity: 100})
	f.sale(u, dayD, 1000, nil)
	f.expense(u, ledger.CategoryGeneralExpenses, dayD, 100, nil)
	f.expense(u, ledger.CategoryMiscellaneous, dayD, 200, nil)

	rep, err := f.engine.BuildReport(f.ctx, u, ledger.PeriodDaily, dayD)
	require.NoError(t, err)

	assert.Equal(t, int64(500), rep.FixedCosts.TotalFixed)
	assert.Equal(t, int64(300), rep.VariableCosts.Total())
	assert.Equal(t, int64(800), rep.TotalExpenses)
	assert.Equal(t, int64(200), rep.NetProfit)
}

func TestBuildReport_PerformanceThresholds(t *testing.T) {
	cases := []struct {
		sales   int64
		percent float64
		status  report.PerformanceStatus
	}{
		{sales: 800, percent: 80.0, status: report.StatusWarning},
		{sales: 1000, percent: 100.0, status: report.StatusExcellent},
		{sales: 799, percent: 79.9, status: report.StatusCritical},
		{sales: 1234, percent: 123.4, status: report.StatusExcellent},
	}

	for _, tc := range cases {
		f := newFixture(t)
		u := f.unit(ledger.BusinessUnit{ID: "u", Name: "Shop", DailyBudget: 1000})
		f.sale(u, dayD, tc.sales, nil)

		rep, err := f.engine.BuildReport(f.ctx, u, ledger.PeriodDaily, dayD)
		require.NoError(t, err)
		assert.Equal(t, tc.percent, rep.PerformancePercent, "sales=%d", tc.sales)
		assert.Equal(t, tc.status, rep.PerformanceStatus, "sales=%d", tc.sales)
	}
}

func TestBuildReport_ZeroBudget(t *testing.T) {
	f := newFixture(t)
	u := f.unit(ledger.BusinessUnit{ID: "u", Name: "New", DailyBudget: 0})
	f.sale(u, dayD, 5000, nil)

	rep, err := f.engine.BuildReport(f.ctx, u, ledger.PeriodDaily, dayD)
	require.NoError(t, err)
	assert.Equal(t, 0.0, rep.PerformancePercent)
	assert.Equal(t, report.StatusCritical, rep.PerformanceStatus)
}

func TestBuildReport_EmptyPeriodIsZeroNotError(t *testing.T) {
	f := newFixture(t)
	u := f.unit(ledger.BusinessUnit{ID: "u", Name: "Quiet", DailyBudget: 100, Rent: 30})

	rep, err := f.engine.BuildReport(f.ctx, u, ledger.PeriodMonthly, dayD)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rep.TotalSales)
	assert.Equal(t, report.VariableCosts{}, rep.VariableCosts)
	assert.Equal(t, int64(30), rep.TotalExpenses)
	assert.Equal(t, int64(-30), rep.NetProfit)
}

func TestBuildReport_WeeklyAndMonthlyWindows(t *testing.T) {
	// GIVEN: Sales on D-7, D-6, D-1 and D, where D is the 15th
	// THEN: weekly counts D-6..D, monthly counts 1st..D, fixed costs are flat

	f := newFixture(t)
	u := f.unit(ledger.BusinessUnit{ID: "u", Name: "Cafe", DailyBudget: 1000, PersonnelCost: 70})
	f.sale(u, dayD.AddDays(-7), 1, nil)
	f.sale(u, dayD.AddDays(-6), 10, nil)
	f.sale(u, dayD.AddDays(-1), 100, nil)
	f.sale(u, dayD, 1000, nil)
	f.sale(u, dayD.AddDays(1), 99999, nil) // after the anchor, never counted

	weekly, err := f.engine.BuildReport(f.ctx, u, ledger.PeriodWeekly, dayD)
	require.NoError(t, err)
	assert.Equal(t, int64(1110), weekly.TotalSales)

	monthly, err := f.engine.BuildReport(f.ctx, u, ledger.PeriodMonthly, dayD)
	require.NoError(t, err)
	assert.Equal(t, int64(1111), monthly.TotalSales)

	daily, err := f.engine.BuildReport(f.ctx, u, ledger.PeriodDaily, dayD)
	require.NoError(t, err)
	assert.Equal(t, daily.FixedCosts, monthly.FixedCosts, "fixed costs are not scaled by period length")
}

func TestBuildReport_IdempotentReads(t *testing.T) {
	f := newFixture(t)
	u := f.unit(ledger.BusinessUnit{ID: "u", Name: "Spa", DailyBudget: 300, Rent: 10})
	f.sale(u, dayD, 250, nil)
	f.expense(u, ledger.CategoryUtilities, dayD, 40, nil)

	first, err := f.engine.BuildReport(f.ctx, u, ledger.PeriodWeekly, dayD)
	require.NoError(t, err)
	second, err := f.engine.BuildReport(f.ctx, u, ledger.PeriodWeekly, dayD)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuildReport_OnlyCountsOwnUnit(t *testing.T) {
	f := newFixture(t)
	a := f.unit(ledger.BusinessUnit{ID: "a", Name: "A", DailyBudget: 100})
	b := f.unit(ledger.BusinessUnit{ID: "b", Name: "B", DailyBudget: 100})
	f.sale(a, dayD, 60, nil)
	f.sale(b, dayD, 70, nil)

	rep, err := f.engine.BuildReport(f.ctx, a, ledger.PeriodDaily, dayD)
	require.NoError(t, err)
	assert.Equal(t, int64(60), rep.TotalSales)
}

func TestBuildReport_IgnoresUnknownCategories(t *testing.T) {
	f := newFixture(t)
	u := f.unit(ledger.BusinessUnit{ID: "u", Name: "Legacy", DailyBudget: 100})
	require.NoError(t, f.mem.InsertExpense(f.ctx, ledger.Expense{ID: "x", UnitID: u, Category: "legacy_bucket", Amount: 999, EffectiveDate: dayD}))
	f.expense(u, ledger.CategoryConsumables, dayD, 5, nil)

	rep, err := f.engine.BuildReport(f.ctx, u, ledger.PeriodDaily, dayD)
	require.NoError(t, err)
	assert.Equal(t, int64(5), rep.VariableCosts.Total())
	assert.Equal(t, int64(5), rep.TotalExpenses)
}

func TestBuildReport_Errors(t *testing.T) {
	f := newFixture(t)
	f.unit(ledger.BusinessUnit{ID: "u", Name: "X", DailyBudget: 100})

	_, err := f.engine.BuildReport(f.ctx, "missing", ledger.PeriodDaily, dayD)
	assert.ErrorIs(t, err, ledger.ErrUnitNotFound)

	_, err = f.engine.BuildReport(f.ctx, "u", "yearly", dayD)
	assert.ErrorIs(t, err, ledger.ErrInvalidPeriod)
}

func TestPerformancePercent_Rounding(t *testing.T) {
	assert.Equal(t, 33.33, report.PerformancePercent(1, 3))
	assert.Equal(t, 66.67, report.PerformancePercent(2, 3))

	// Exact ties go to the even digit.
	assert.Equal(t, 80.12, report.PerformancePercent(641, 800))
	assert.Equal(t, 80.38, report.PerformancePercent(643, 800))
	assert.Equal(t, 0.0, report.PerformancePercent(100, 0))
	assert.Equal(t, 0.0, report.PerformancePercent(0, 100))
}

func TestVariableCosts_GetAndAdd(t *testing.T) {
	var v report.VariableCosts
	for i, c := range ledger.Categories() {
		assert.True(t, v.Add(c, int64(i+1)))
	}
	assert.False(t, v.Add("other", 100))

	assert.Equal(t, int64(1), v.Get(ledger.CategoryConsumables))
	assert.Equal(t, int64(4), v.Get(ledger.CategoryMiscellaneous))
	assert.Equal(t, int64(0), v.Get("other"))
	assert.Equal(t, int64(10), v.Total())
}

// =============================================================================
// DASHBOARD + SERIES
// =============================================================================

func TestBuildDashboard_IncludesVariableCosts(t *testing.T) {
	f := newFixture(t)
	u := f.unit(ledger.BusinessUnit{ID: "u", Name: "Clinic", DailyBudget: 400, Electricity: 15})
	f.sale(u, dayD, 200, nil)
	f.expense(u, ledger.CategoryConsumables, dayD, 25, nil)
	f.sale(u, dayD.AddDays(-1), 999, nil)

	dash, err := f.engine.BuildDashboard(f.ctx, u, dayD)
	require.NoError(t, err)
	assert.Equal(t, "Clinic", dash.Unit.Name)
	assert.Equal(t, int64(200), dash.Report.TotalSales)
	assert.Equal(t, int64(40), dash.Report.TotalExpenses)
	assert.Equal(t, 50.0, dash.Report.PerformancePercent)
}

func TestBuildSeries_OnePointPerDay(t *testing.T) {
	f := newFixture(t)
	u := f.unit(ledger.BusinessUnit{ID: "u", Name: "Kiosk", DailyBudget: 100})
	f.sale(u, dayD.AddDays(-6), 10, nil)
	f.sale(u, dayD, 30, nil)
	f.expense(u, ledger.CategoryUtilities, dayD.AddDays(-3), 7, nil)
	f.expense(u, ledger.CategoryConsumables, dayD.AddDays(-3), 3, nil)

	s, err := f.engine.BuildSeries(f.ctx, u, ledger.PeriodWeekly, dayD)
	require.NoError(t, err)
	require.Len(t, s.Points, 7)

	assert.Equal(t, "2025-04-09", s.Labels()[0])
	assert.Equal(t, "2025-04-15", s.Labels()[6])
	assert.Equal(t, int64(10), s.Points[0].Sales)
	assert.Equal(t, int64(10), s.Points[3].Expenses)
	assert.Equal(t, int64(30), s.Points[6].Sales)
	assert.Equal(t, int64(0), s.Points[1].Sales)
}
