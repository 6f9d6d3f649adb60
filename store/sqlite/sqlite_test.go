package sqlite

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/sbu-ledger/ledger"
	"github.com/warp/sbu-ledger/report"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedUnit(t *testing.T, s *Store, id ledger.UnitID) {
	t.Helper()
	require.NoError(t, s.SaveUnit(context.Background(), ledger.BusinessUnit{
		ID: id, Name: "Unit " + string(id), DailyBudget: 500,
		PersonnelCost: 100, Rent: 50, Electricity: 20,
	}))
}

func seedStaff(t *testing.T, s *Store, id ledger.StaffID, name string, unit ledger.UnitID) *ledger.StaffID {
	t.Helper()
	u := unit
	require.NoError(t, s.SaveStaff(context.Background(), ledger.StaffMember{
		ID: id, FullName: name, Username: string(id), PasswordHash: "x",
		Role: ledger.RoleStaff, UnitID: &u, Active: true,
	}))
	return &id
}

var day = ledger.NewDate(2025, time.March, 10)

func TestRecorder_SaleReplacesOnSQLite(t *testing.T) {
	// GIVEN: A unit
	// WHEN: Two sales are submitted for the same day
	// THEN: One row remains with the second amount

	s := newTestStore(t)
	ctx := context.Background()
	seedUnit(t, s, "u1")
	rec := ledger.NewRecorder(s)

	first, err := rec.RecordSale(ctx, ledger.SaleSubmission{UnitID: "u1", Date: day, Amount: 100, Note: "am"})
	require.NoError(t, err)
	second, err := rec.RecordSale(ctx, ledger.SaleSubmission{UnitID: "u1", Date: day, Amount: 150, Note: "pm"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	sales, err := s.ListSales(ctx, "u1", day, day)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, int64(150), sales[0].Amount)
	assert.Equal(t, "pm", sales[0].Note)
	assert.True(t, sales[0].Date.Equal(day))
}

func TestRecorder_ExpenseAccumulatesOnSQLite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUnit(t, s, "u1")
	rec := ledger.NewRecorder(s)

	_, err := rec.RecordExpense(ctx, ledger.ExpenseSubmission{UnitID: "u1", Category: ledger.CategoryUtilities, Date: day, Amount: 100})
	require.NoError(t, err)
	_, err = rec.RecordExpense(ctx, ledger.ExpenseSubmission{UnitID: "u1", Category: ledger.CategoryUtilities, Date: day, Amount: 50})
	require.NoError(t, err)

	found, err := s.FindExpense(ctx, "u1", ledger.CategoryUtilities, day)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, int64(150), found.Amount)

	audit, err := s.ListAudit(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, audit, 2)
}

func TestRecorder_ConcurrentExpensesOnSQLite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUnit(t, s, "u1")
	rec := ledger.NewRecorder(s)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := rec.RecordExpense(ctx, ledger.ExpenseSubmission{UnitID: "u1", Category: ledger.CategoryConsumables, Date: day, Amount: 7})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	sums, err := s.SumExpensesByCategory(ctx, "u1", day, day)
	require.NoError(t, err)
	assert.Equal(t, map[ledger.Category]int64{ledger.CategoryConsumables: 70}, sums)
}

func TestRecorder_ConcurrentSalesOnSQLite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUnit(t, s, "u1")
	rec := ledger.NewRecorder(s)

	var wg sync.WaitGroup
	for i := 1; i <= 10; i++ {
		amount := int64(i * 100)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := rec.RecordSale(ctx, ledger.SaleSubmission{UnitID: "u1", Date: day, Amount: amount})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	sales, err := s.ListSales(ctx, "u1", day, day)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Zero(t, sales[0].Amount%100)
	assert.True(t, sales[0].Amount >= 100 && sales[0].Amount <= 1000)
}

func TestInsertSale_DuplicateKeyIsConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUnit(t, s, "u1")

	require.NoError(t, s.InsertSale(ctx, ledger.Sale{ID: "a", UnitID: "u1", Amount: 1, Date: day}))
	err := s.InsertSale(ctx, ledger.Sale{ID: "b", UnitID: "u1", Amount: 2, Date: day})
	assert.ErrorIs(t, err, ledger.ErrConflict)
	assert.True(t, ledger.IsRetryable(err))

	// Another day is a different key.
	require.NoError(t, s.InsertSale(ctx, ledger.Sale{ID: "c", UnitID: "u1", Amount: 3, Date: day.AddDays(1)}))
}

func TestInsertExpense_DuplicateKeyIsConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUnit(t, s, "u1")

	require.NoError(t, s.InsertExpense(ctx, ledger.Expense{ID: "a", UnitID: "u1", Category: ledger.CategoryGeneralExpenses, Amount: 1, EffectiveDate: day}))
	err := s.InsertExpense(ctx, ledger.Expense{ID: "b", UnitID: "u1", Category: ledger.CategoryGeneralExpenses, Amount: 1, EffectiveDate: day})
	assert.ErrorIs(t, err, ledger.ErrConflict)
}

func TestInsertExpense_UnknownCategoryRejectedBySchema(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUnit(t, s, "u1")

	err := s.InsertExpense(ctx, ledger.Expense{ID: "a", UnitID: "u1", Category: "rent", Amount: 1, EffectiveDate: day})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUnit(t, s, "u1")

	err := s.WithTx(ctx, func(tx ledger.Tx) error {
		require.NoError(t, tx.InsertSale(ctx, ledger.Sale{ID: "a", UnitID: "u1", Amount: 5, Date: day}))
		return ledger.ErrConflict
	})
	assert.ErrorIs(t, err, ledger.ErrConflict)

	found, err := s.FindSale(ctx, "u1", day)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestSums_RangeAndContributors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUnit(t, s, "u1")
	seedUnit(t, s, "u2")
	a := seedStaff(t, s, "a", "Ada", "u1")
	rec := ledger.NewRecorder(s)

	for i, amount := range []int64{10, 20, 30} {
		_, err := rec.RecordSale(ctx, ledger.SaleSubmission{UnitID: "u1", Date: day.AddDays(-i), Amount: amount, By: a})
		require.NoError(t, err)
	}
	_, err := rec.RecordSale(ctx, ledger.SaleSubmission{UnitID: "u1", Date: day.AddDays(-3), Amount: 40})
	require.NoError(t, err)
	_, err = rec.RecordSale(ctx, ledger.SaleSubmission{UnitID: "u2", Date: day, Amount: 1000})
	require.NoError(t, err)

	total, err := s.SumSales(ctx, "u1", day.AddDays(-2), day)
	require.NoError(t, err)
	assert.Equal(t, int64(60), total)

	total, err = s.SumSales(ctx, "u1", day.AddDays(10), day.AddDays(20))
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	groups, err := s.SumSalesByContributor(ctx, "u1", day.AddDays(-3), day)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	require.NotNil(t, groups[0].StaffID)
	assert.Equal(t, ledger.StaffID("a"), *groups[0].StaffID)
	assert.Equal(t, int64(60), groups[0].Total)
	assert.Nil(t, groups[1].StaffID)
	assert.Equal(t, int64(40), groups[1].Total)
}

func TestStaff_RegistryOperations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUnit(t, s, "u1")
	seedStaff(t, s, "s2", "Zainab", "u1")
	seedStaff(t, s, "s1", "Bisi", "u1")

	listed, err := s.ListStaffByUnit(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "Bisi", listed[0].FullName)

	byName, err := s.GetStaffByUsername(ctx, "s2")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, ledger.StaffID("s2"), byName.ID)
	assert.True(t, byName.Active)

	err = s.SaveStaff(ctx, ledger.StaffMember{ID: "s3", FullName: "Dup", Username: "s1", PasswordHash: "x", Role: ledger.RoleStaff})
	assert.ErrorIs(t, err, ledger.ErrConflict)

	require.NoError(t, s.SetStaffActive(ctx, "s1", false))
	got, err := s.GetStaff(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, got.Active)

	require.NoError(t, s.DeleteStaff(ctx, "s1"))
	got, err = s.GetStaff(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.ErrorIs(t, s.DeleteStaff(ctx, "s1"), ledger.ErrStaffNotFound)
	assert.ErrorIs(t, s.SetStaffActive(ctx, "nope", true), ledger.ErrStaffNotFound)
}

func TestUnits_FixedCostsUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUnit(t, s, "u1")

	require.NoError(t, s.UpdateFixedCosts(ctx, "u1", ledger.FixedCosts{DailyBudget: 900, PersonnelCost: 1, Rent: 2, Electricity: 3}))
	u, err := s.GetUnit(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(900), u.DailyBudget)
	assert.Equal(t, int64(6), u.FixedTotal())

	assert.ErrorIs(t, s.UpdateFixedCosts(ctx, "missing", ledger.FixedCosts{}), ledger.ErrUnitNotFound)

	missing, err := s.GetUnit(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSnapshots_UpsertPerDay(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap := ledger.ReportSnapshot{UnitID: "u1", Date: day, TotalSales: 10, PerformanceStatus: "Critical"}
	require.NoError(t, s.SaveSnapshot(ctx, snap))
	snap.TotalSales = 20
	require.NoError(t, s.SaveSnapshot(ctx, snap))

	got, err := s.GetSnapshot(ctx, "u1", day)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(20), got.TotalSales)

	absent, err := s.GetSnapshot(ctx, "u1", day.AddDays(-1))
	require.NoError(t, err)
	assert.Nil(t, absent)
}

func TestPing_ClosedStore(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Ping(context.Background()))

	require.NoError(t, s.Close())
	assert.Error(t, s.Ping(context.Background()))
}

func TestReportEngine_OnSQLite(t *testing.T) {
	// GIVEN: Budget 500, fixed 170, sales 600, consumables 50, utilities 30
	// THEN: Same figures as the in-memory store

	s := newTestStore(t)
	ctx := context.Background()
	seedUnit(t, s, "u1")
	rec := ledger.NewRecorder(s)

	_, err := rec.RecordSale(ctx, ledger.SaleSubmission{UnitID: "u1", Date: day, Amount: 600})
	require.NoError(t, err)
	_, err = rec.RecordExpense(ctx, ledger.ExpenseSubmission{UnitID: "u1", Category: ledger.CategoryConsumables, Date: day, Amount: 50})
	require.NoError(t, err)
	_, err = rec.RecordExpense(ctx, ledger.ExpenseSubmission{UnitID: "u1", Category: ledger.CategoryUtilities, Date: day, Amount: 30})
	require.NoError(t, err)

	rep, err := report.NewEngine(s, nil).BuildReport(ctx, "u1", ledger.PeriodDaily, day)
	require.NoError(t, err)
	assert.Equal(t, int64(250), rep.TotalExpenses)
	assert.Equal(t, int64(350), rep.NetProfit)
	assert.Equal(t, 120.0, rep.PerformancePercent)
	assert.Equal(t, report.StatusExcellent, rep.PerformanceStatus)
}
