// Package store provides in-memory implementations of the ledger interfaces.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/sbu-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements ledger.Store. It enforces the same uniqueness keys as the
// SQLite schema so upsert behavior is identical in tests.
type Memory struct {
	mu sync.RWMutex

	units map[ledger.UnitID]ledger.BusinessUnit
	staff map[ledger.StaffID]ledger.StaffMember

	sales       map[ledger.RecordID]ledger.Sale
	saleKeys    map[saleKey]ledger.RecordID
	expenses    map[ledger.RecordID]ledger.Expense
	expenseKeys map[expenseKey]ledger.RecordID

	audit     []ledger.AuditEntry
	snapshots map[snapshotKey]ledger.ReportSnapshot
}

type saleKey struct {
	Unit ledger.UnitID
	Date ledger.Date
}

type expenseKey struct {
	Unit     ledger.UnitID
	Category ledger.Category
	Date     ledger.Date
}

type snapshotKey struct {
	Unit ledger.UnitID
	Date ledger.Date
}

var _ ledger.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		units:       make(map[ledger.UnitID]ledger.BusinessUnit),
		staff:       make(map[ledger.StaffID]ledger.StaffMember),
		sales:       make(map[ledger.RecordID]ledger.Sale),
		saleKeys:    make(map[saleKey]ledger.RecordID),
		expenses:    make(map[ledger.RecordID]ledger.Expense),
		expenseKeys: make(map[expenseKey]ledger.RecordID),
		snapshots:   make(map[snapshotKey]ledger.ReportSnapshot),
	}
}

// =============================================================================
// LEDGER READS
// =============================================================================

func (m *Memory) SumSales(_ context.Context, unit ledger.UnitID, from, to ledger.Date) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total int64
	for _, s := range m.sales {
		if s.UnitID == unit && inRange(s.Date, from, to) {
			total += s.Amount
		}
	}
	return total, nil
}

func (m *Memory) SumExpensesByCategory(_ context.Context, unit ledger.UnitID, from, to ledger.Date) (map[ledger.Category]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sums := make(map[ledger.Category]int64)
	for _, e := range m.expenses {
		if e.UnitID == unit && inRange(e.EffectiveDate, from, to) {
			sums[e.Category] += e.Amount
		}
	}
	return sums, nil
}

func (m *Memory) SumSalesByContributor(_ context.Context, unit ledger.UnitID, from, to ledger.Date) ([]ledger.ContributorSum, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g := newContributorGroups()
	for _, s := range m.sales {
		if s.UnitID == unit && inRange(s.Date, from, to) {
			g.add(s.CreatedBy, s.Amount)
		}
	}
	return g.rows(), nil
}

func (m *Memory) SumExpensesByContributor(_ context.Context, unit ledger.UnitID, from, to ledger.Date) ([]ledger.ContributorSum, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g := newContributorGroups()
	for _, e := range m.expenses {
		if e.UnitID == unit && inRange(e.EffectiveDate, from, to) {
			g.add(e.CreatedBy, e.Amount)
		}
	}
	return g.rows(), nil
}

func (m *Memory) ListSales(_ context.Context, unit ledger.UnitID, from, to ledger.Date) ([]ledger.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Sale
	for _, s := range m.sales {
		if s.UnitID == unit && inRange(s.Date, from, to) {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

func (m *Memory) ListExpenses(_ context.Context, unit ledger.UnitID, from, to ledger.Date) ([]ledger.Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Expense
	for _, e := range m.expenses {
		if e.UnitID == unit && inRange(e.EffectiveDate, from, to) {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].EffectiveDate.Equal(result[j].EffectiveDate) {
			return result[i].EffectiveDate.Before(result[j].EffectiveDate)
		}
		return result[i].Category < result[j].Category
	})
	return result, nil
}

// =============================================================================
// LEDGER WRITES
// =============================================================================

func (m *Memory) FindSale(_ context.Context, unit ledger.UnitID, date ledger.Date) (*ledger.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findSaleLocked(unit, date), nil
}

func (m *Memory) FindExpense(_ context.Context, unit ledger.UnitID, category ledger.Category, date ledger.Date) (*ledger.Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findExpenseLocked(unit, category, date), nil
}

func (m *Memory) InsertSale(_ context.Context, sale ledger.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertSaleLocked(sale)
}

func (m *Memory) UpdateSale(_ context.Context, sale ledger.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateSaleLocked(sale)
}

func (m *Memory) InsertExpense(_ context.Context, expense ledger.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertExpenseLocked(expense)
}

func (m *Memory) UpdateExpense(_ context.Context, expense ledger.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateExpenseLocked(expense)
}

func (m *Memory) findSaleLocked(unit ledger.UnitID, date ledger.Date) *ledger.Sale {
	id, ok := m.saleKeys[saleKey{Unit: unit, Date: date}]
	if !ok {
		return nil
	}
	s := m.sales[id]
	return &s
}

func (m *Memory) findExpenseLocked(unit ledger.UnitID, category ledger.Category, date ledger.Date) *ledger.Expense {
	id, ok := m.expenseKeys[expenseKey{Unit: unit, Category: category, Date: date}]
	if !ok {
		return nil
	}
	e := m.expenses[id]
	return &e
}

func (m *Memory) insertSaleLocked(sale ledger.Sale) error {
	k := saleKey{Unit: sale.UnitID, Date: sale.Date}
	if _, exists := m.saleKeys[k]; exists {
		return fmt.Errorf("%w: sale for %s on %s", ledger.ErrConflict, sale.UnitID, sale.Date)
	}
	m.sales[sale.ID] = sale
	m.saleKeys[k] = sale.ID
	return nil
}

func (m *Memory) updateSaleLocked(sale ledger.Sale) error {
	existing, ok := m.sales[sale.ID]
	if !ok {
		return fmt.Errorf("%w: sale %s", ledger.ErrRecordNotFound, sale.ID)
	}
	existing.Amount = sale.Amount
	existing.Note = sale.Note
	m.sales[sale.ID] = existing
	return nil
}

func (m *Memory) insertExpenseLocked(expense ledger.Expense) error {
	k := expenseKey{Unit: expense.UnitID, Category: expense.Category, Date: expense.EffectiveDate}
	if _, exists := m.expenseKeys[k]; exists {
		return fmt.Errorf("%w: %s expense for %s on %s", ledger.ErrConflict, expense.Category, expense.UnitID, expense.EffectiveDate)
	}
	m.expenses[expense.ID] = expense
	m.expenseKeys[k] = expense.ID
	return nil
}

func (m *Memory) updateExpenseLocked(expense ledger.Expense) error {
	existing, ok := m.expenses[expense.ID]
	if !ok {
		return fmt.Errorf("%w: expense %s", ledger.ErrRecordNotFound, expense.ID)
	}
	existing.Amount = expense.Amount
	existing.Note = expense.Note
	m.expenses[expense.ID] = existing
	return nil
}

// =============================================================================
// REGISTRY
// =============================================================================

func (m *Memory) GetUnit(_ context.Context, id ledger.UnitID) (*ledger.BusinessUnit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getUnitLocked(id), nil
}

func (m *Memory) getUnitLocked(id ledger.UnitID) *ledger.BusinessUnit {
	u, ok := m.units[id]
	if !ok {
		return nil
	}
	return &u
}

func (m *Memory) ListUnits(_ context.Context) ([]ledger.BusinessUnit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.BusinessUnit, 0, len(m.units))
	for _, u := range m.units {
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *Memory) SaveUnit(_ context.Context, unit ledger.BusinessUnit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units[unit.ID] = unit
	return nil
}

func (m *Memory) UpdateFixedCosts(_ context.Context, id ledger.UnitID, costs ledger.FixedCosts) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.units[id]
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrUnitNotFound, id)
	}
	u.DailyBudget = costs.DailyBudget
	u.PersonnelCost = costs.PersonnelCost
	u.Rent = costs.Rent
	u.Electricity = costs.Electricity
	m.units[id] = u
	return nil
}

func (m *Memory) GetStaff(_ context.Context, id ledger.StaffID) (*ledger.StaffMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.staff[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *Memory) GetStaffByUsername(_ context.Context, username string) (*ledger.StaffMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.staff {
		if s.Username == username {
			found := s
			return &found, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListStaff(_ context.Context) ([]ledger.StaffMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.StaffMember, 0, len(m.staff))
	for _, s := range m.staff {
		result = append(result, s)
	}
	sortStaff(result)
	return result, nil
}

func (m *Memory) ListStaffByUnit(_ context.Context, unit ledger.UnitID) ([]ledger.StaffMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.StaffMember
	for _, s := range m.staff {
		if s.UnitID != nil && *s.UnitID == unit {
			result = append(result, s)
		}
	}
	sortStaff(result)
	return result, nil
}

func (m *Memory) SaveStaff(_ context.Context, staff ledger.StaffMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.staff {
		if s.Username == staff.Username && id != staff.ID {
			return fmt.Errorf("%w: username %q already exists", ledger.ErrConflict, staff.Username)
		}
	}
	m.staff[staff.ID] = staff
	return nil
}

func (m *Memory) SetStaffActive(_ context.Context, id ledger.StaffID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.staff[id]
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrStaffNotFound, id)
	}
	s.Active = active
	m.staff[id] = s
	return nil
}

// DeleteStaff removes the account. Ledger rows keep their dangling CreatedBy.
func (m *Memory) DeleteStaff(_ context.Context, id ledger.StaffID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.staff[id]; !ok {
		return fmt.Errorf("%w: %s", ledger.ErrStaffNotFound, id)
	}
	delete(m.staff, id)
	return nil
}

// =============================================================================
// AUDIT + SNAPSHOTS
// =============================================================================

func (m *Memory) AppendAudit(_ context.Context, entry ledger.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, entry)
	return nil
}

func (m *Memory) ListAudit(_ context.Context, limit int) ([]ledger.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.AuditEntry, 0, len(m.audit))
	for i := len(m.audit) - 1; i >= 0; i-- {
		if limit > 0 && len(result) == limit {
			break
		}
		result = append(result, m.audit[i])
	}
	return result, nil
}

func (m *Memory) SaveSnapshot(_ context.Context, snap ledger.ReportSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snapshotKey{Unit: snap.UnitID, Date: snap.Date}] = snap
	return nil
}

func (m *Memory) GetSnapshot(_ context.Context, unit ledger.UnitID, date ledger.Date) (*ledger.ReportSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.snapshots[snapshotKey{Unit: unit, Date: date}]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

// ResetLedger drops all sales, expenses and snapshots.
func (m *Memory) ResetLedger(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sales = make(map[ledger.RecordID]ledger.Sale)
	m.saleKeys = make(map[saleKey]ledger.RecordID)
	m.expenses = make(map[ledger.RecordID]ledger.Expense)
	m.expenseKeys = make(map[expenseKey]ledger.RecordID)
	m.snapshots = make(map[snapshotKey]ledger.ReportSnapshot)
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// The write lock is held for the whole of fn, which serializes upserts.
func (m *Memory) WithTx(_ context.Context, fn func(ledger.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()

	if err := fn(&txView{parent: m}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	sales       map[ledger.RecordID]ledger.Sale
	saleKeys    map[saleKey]ledger.RecordID
	expenses    map[ledger.RecordID]ledger.Expense
	expenseKeys map[expenseKey]ledger.RecordID
	auditLen    int
}

func (m *Memory) snapshot() memorySnapshot {
	return memorySnapshot{
		sales:       copyMap(m.sales),
		saleKeys:    copyMap(m.saleKeys),
		expenses:    copyMap(m.expenses),
		expenseKeys: copyMap(m.expenseKeys),
		auditLen:    len(m.audit),
	}
}

func (m *Memory) restore(s memorySnapshot) {
	m.sales = s.sales
	m.saleKeys = s.saleKeys
	m.expenses = s.expenses
	m.expenseKeys = s.expenseKeys
	m.audit = m.audit[:s.auditLen]
}

// txView is the ledger.Tx handed to WithTx callbacks. The parent lock is
// already held, so it calls the *Locked helpers directly.
type txView struct {
	parent *Memory
}

func (tv *txView) FindSale(_ context.Context, unit ledger.UnitID, date ledger.Date) (*ledger.Sale, error) {
	return tv.parent.findSaleLocked(unit, date), nil
}

func (tv *txView) FindExpense(_ context.Context, unit ledger.UnitID, category ledger.Category, date ledger.Date) (*ledger.Expense, error) {
	return tv.parent.findExpenseLocked(unit, category, date), nil
}

func (tv *txView) InsertSale(_ context.Context, sale ledger.Sale) error {
	return tv.parent.insertSaleLocked(sale)
}

func (tv *txView) UpdateSale(_ context.Context, sale ledger.Sale) error {
	return tv.parent.updateSaleLocked(sale)
}

func (tv *txView) InsertExpense(_ context.Context, expense ledger.Expense) error {
	return tv.parent.insertExpenseLocked(expense)
}

func (tv *txView) UpdateExpense(_ context.Context, expense ledger.Expense) error {
	return tv.parent.updateExpenseLocked(expense)
}

func (tv *txView) GetUnit(_ context.Context, id ledger.UnitID) (*ledger.BusinessUnit, error) {
	return tv.parent.getUnitLocked(id), nil
}

func (tv *txView) AppendAudit(_ context.Context, entry ledger.AuditEntry) error {
	tv.parent.audit = append(tv.parent.audit, entry)
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func inRange(d, from, to ledger.Date) bool {
	return d.AfterOrEqual(from) && d.BeforeOrEqual(to)
}

func sortStaff(staff []ledger.StaffMember) {
	sort.Slice(staff, func(i, j int) bool {
		if staff[i].FullName != staff[j].FullName {
			return staff[i].FullName < staff[j].FullName
		}
		return staff[i].ID < staff[j].ID
	})
}

func copyMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// contributorGroups sums amounts per contributor, keeping nil separate.
type contributorGroups struct {
	byID   map[ledger.StaffID]int64
	order  []ledger.StaffID
	system int64
	hasSys bool
}

func newContributorGroups() *contributorGroups {
	return &contributorGroups{byID: make(map[ledger.StaffID]int64)}
}

func (g *contributorGroups) add(by *ledger.StaffID, amount int64) {
	if by == nil {
		g.system += amount
		g.hasSys = true
		return
	}
	if _, seen := g.byID[*by]; !seen {
		g.order = append(g.order, *by)
	}
	g.byID[*by] += amount
}

func (g *contributorGroups) rows() []ledger.ContributorSum {
	sort.Slice(g.order, func(i, j int) bool { return g.order[i] < g.order[j] })
	rows := make([]ledger.ContributorSum, 0, len(g.order)+1)
	for _, id := range g.order {
		id := id
		rows = append(rows, ledger.ContributorSum{StaffID: &id, Total: g.byID[id]})
	}
	if g.hasSys {
		rows = append(rows, ledger.ContributorSum{Total: g.system})
	}
	return rows
}
