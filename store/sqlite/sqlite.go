/*
Package sqlite provides a SQLite-backed implementation of the ledger storage
interfaces.

PURPOSE:
  Implements ledger.Store (ledger reads and writes, registry, audit log,
  transactions, report snapshots) on a single SQLite database. The same
  schema ports to PostgreSQL with minor dialect changes.

UNIQUENESS ENFORCEMENT:
  The upsert policy depends on the database refusing duplicates:
  - idx_sales_unit_date:             one sale per (unit, date)
  - idx_expenses_unit_category_date: one expense per (unit, category, date)
  A violation surfaces as ledger.ErrConflict, which the Recorder retries.

KEY TABLES:
  units:            Business units with budget and fixed costs
  staff:            Accounts, roles and unit assignment
  sales:            One row per unit per day
  expenses:         One row per unit, category and day
  audit_logs:       Append-only activity trail
  report_snapshots: Nightly daily-report digests

DATES:
  Calendar dates are stored as TEXT "YYYY-MM-DD" so range filters are plain
  string comparisons. Timestamps are RFC3339 UTC.

CONCURRENCY:
  The pool is limited to one connection: ":memory:" databases are
  per-connection, and SQLite has a single writer anyway. A sync.RWMutex keeps
  reads out while WithTx holds the write side.

USAGE:
  store, err := sqlite.New("./data/sbu.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  recorder := ledger.NewRecorder(store)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/sbu-ledger/ledger"
)

// Store implements ledger.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ ledger.Store = (*Store)(nil)

// querier is the subset of *sql.DB and *sql.Tx the helpers need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS units (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		department TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		daily_budget INTEGER NOT NULL DEFAULT 0,
		personnel_cost INTEGER NOT NULL DEFAULT 0,
		rent INTEGER NOT NULL DEFAULT 0,
		electricity INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS staff (
		id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('admin', 'staff')),
		unit_id TEXT REFERENCES units(id),
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_staff_unit ON staff(unit_id);

	-- created_by is not a foreign key: rows outlive deleted accounts and
	-- are attributed to "System" in reports.
	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		unit_id TEXT NOT NULL REFERENCES units(id),
		amount INTEGER NOT NULL CHECK (amount > 0),
		date TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_sales_unit_date
		ON sales(unit_id, date);

	CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		unit_id TEXT NOT NULL REFERENCES units(id),
		category TEXT NOT NULL CHECK (category IN ('consumables', 'general_expenses', 'utilities', 'miscellaneous')),
		amount INTEGER NOT NULL CHECK (amount > 0),
		effective_date TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_expenses_unit_category_date
		ON expenses(unit_id, category, effective_date);

	CREATE TABLE IF NOT EXISTS audit_logs (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		actor_id TEXT,
		action TEXT NOT NULL,
		entity TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS report_snapshots (
		unit_id TEXT NOT NULL,
		date TEXT NOT NULL,
		total_sales INTEGER NOT NULL,
		total_expenses INTEGER NOT NULL,
		net_profit INTEGER NOT NULL,
		performance_percent REAL NOT NULL,
		performance_status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (unit_id, date)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LEDGER READS (ledger.LedgerReader)
// =============================================================================

func (s *Store) SumSales(ctx context.Context, unit ledger.UnitID, from, to ledger.Date) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM sales WHERE unit_id = ? AND date BETWEEN ? AND ?",
		unit, from.String(), to.String(),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum sales: %w", err)
	}
	return total, nil
}

func (s *Store) SumExpensesByCategory(ctx context.Context, unit ledger.UnitID, from, to ledger.Date) (map[ledger.Category]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT category, SUM(amount) FROM expenses
		WHERE unit_id = ? AND effective_date BETWEEN ? AND ?
		GROUP BY category`,
		unit, from.String(), to.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("sum expenses: %w", err)
	}
	defer rows.Close()

	sums := make(map[ledger.Category]int64)
	for rows.Next() {
		var category string
		var total int64
		if err := rows.Scan(&category, &total); err != nil {
			return nil, err
		}
		sums[ledger.Category(category)] = total
	}
	return sums, rows.Err()
}

func (s *Store) SumSalesByContributor(ctx context.Context, unit ledger.UnitID, from, to ledger.Date) ([]ledger.ContributorSum, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.groupByContributor(ctx, `
		SELECT created_by, SUM(amount) FROM sales
		WHERE unit_id = ? AND date BETWEEN ? AND ?
		GROUP BY created_by
		ORDER BY created_by IS NULL, created_by`,
		unit, from, to,
	)
}

func (s *Store) SumExpensesByContributor(ctx context.Context, unit ledger.UnitID, from, to ledger.Date) ([]ledger.ContributorSum, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.groupByContributor(ctx, `
		SELECT created_by, SUM(amount) FROM expenses
		WHERE unit_id = ? AND effective_date BETWEEN ? AND ?
		GROUP BY created_by
		ORDER BY created_by IS NULL, created_by`,
		unit, from, to,
	)
}

func (s *Store) groupByContributor(ctx context.Context, query string, unit ledger.UnitID, from, to ledger.Date) ([]ledger.ContributorSum, error) {
	rows, err := s.db.QueryContext(ctx, query, unit, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("group by contributor: %w", err)
	}
	defer rows.Close()

	var result []ledger.ContributorSum
	for rows.Next() {
		var by sql.NullString
		var total int64
		if err := rows.Scan(&by, &total); err != nil {
			return nil, err
		}
		result = append(result, ledger.ContributorSum{StaffID: staffPtr(by), Total: total})
	}
	return result, rows.Err()
}

func (s *Store) ListSales(ctx context.Context, unit ledger.UnitID, from, to ledger.Date) ([]ledger.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+saleColumns+" FROM sales WHERE unit_id = ? AND date BETWEEN ? AND ? ORDER BY date",
		unit, from.String(), to.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	var result []ledger.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *sale)
	}
	return result, rows.Err()
}

func (s *Store) ListExpenses(ctx context.Context, unit ledger.UnitID, from, to ledger.Date) ([]ledger.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE unit_id = ? AND effective_date BETWEEN ? AND ? ORDER BY effective_date, category",
		unit, from.String(), to.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var result []ledger.Expense
	for rows.Next() {
		exp, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *exp)
	}
	return result, rows.Err()
}

// =============================================================================
// LEDGER WRITES (ledger.LedgerWriter)
// =============================================================================

const saleColumns = "id, unit_id, amount, date, note, created_by, created_at"

const expenseColumns = "id, unit_id, category, amount, effective_date, note, created_by, created_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanSale(row scanner) (*ledger.Sale, error) {
	var sale ledger.Sale
	var date, createdAt string
	var by sql.NullString
	if err := row.Scan(&sale.ID, &sale.UnitID, &sale.Amount, &date, &sale.Note, &by, &createdAt); err != nil {
		return nil, err
	}
	d, err := ledger.ParseDate(date)
	if err != nil {
		return nil, err
	}
	sale.Date = d
	sale.CreatedBy = staffPtr(by)
	sale.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &sale, nil
}

func scanExpense(row scanner) (*ledger.Expense, error) {
	var exp ledger.Expense
	var date, createdAt string
	var by sql.NullString
	if err := row.Scan(&exp.ID, &exp.UnitID, &exp.Category, &exp.Amount, &date, &exp.Note, &by, &createdAt); err != nil {
		return nil, err
	}
	d, err := ledger.ParseDate(date)
	if err != nil {
		return nil, err
	}
	exp.EffectiveDate = d
	exp.CreatedBy = staffPtr(by)
	exp.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &exp, nil
}

func (s *Store) FindSale(ctx context.Context, unit ledger.UnitID, date ledger.Date) (*ledger.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findSale(ctx, s.db, unit, date)
}

func (s *Store) FindExpense(ctx context.Context, unit ledger.UnitID, category ledger.Category, date ledger.Date) (*ledger.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findExpense(ctx, s.db, unit, category, date)
}

func (s *Store) InsertSale(ctx context.Context, sale ledger.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertSale(ctx, s.db, sale)
}

func (s *Store) UpdateSale(ctx context.Context, sale ledger.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateSale(ctx, s.db, sale)
}

func (s *Store) InsertExpense(ctx context.Context, expense ledger.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertExpense(ctx, s.db, expense)
}

func (s *Store) UpdateExpense(ctx context.Context, expense ledger.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateExpense(ctx, s.db, expense)
}

func findSale(ctx context.Context, q querier, unit ledger.UnitID, date ledger.Date) (*ledger.Sale, error) {
	sale, err := scanSale(q.QueryRowContext(ctx,
		"SELECT "+saleColumns+" FROM sales WHERE unit_id = ? AND date = ?",
		unit, date.String(),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find sale: %w", err)
	}
	return sale, nil
}

func findExpense(ctx context.Context, q querier, unit ledger.UnitID, category ledger.Category, date ledger.Date) (*ledger.Expense, error) {
	exp, err := scanExpense(q.QueryRowContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE unit_id = ? AND category = ? AND effective_date = ?",
		unit, category, date.String(),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find expense: %w", err)
	}
	return exp, nil
}

func insertSale(ctx context.Context, q querier, sale ledger.Sale) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO sales ("+saleColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		sale.ID, sale.UnitID, sale.Amount, sale.Date.String(), sale.Note,
		nullStaff(sale.CreatedBy), formatTime(sale.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: sale for %s on %s", ledger.ErrConflict, sale.UnitID, sale.Date)
		}
		return fmt.Errorf("failed to insert sale: %w", err)
	}
	return nil
}

func updateSale(ctx context.Context, q querier, sale ledger.Sale) error {
	res, err := q.ExecContext(ctx,
		"UPDATE sales SET amount = ?, note = ? WHERE id = ?",
		sale.Amount, sale.Note, sale.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update sale: %w", err)
	}
	return requireAffected(res, fmt.Errorf("%w: sale %s", ledger.ErrRecordNotFound, sale.ID))
}

func insertExpense(ctx context.Context, q querier, exp ledger.Expense) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO expenses ("+expenseColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		exp.ID, exp.UnitID, exp.Category, exp.Amount, exp.EffectiveDate.String(), exp.Note,
		nullStaff(exp.CreatedBy), formatTime(exp.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s expense for %s on %s", ledger.ErrConflict, exp.Category, exp.UnitID, exp.EffectiveDate)
		}
		if isCheckConstraintError(err) {
			return fmt.Errorf("%w: %v", ledger.ErrValidation, err)
		}
		return fmt.Errorf("failed to insert expense: %w", err)
	}
	return nil
}

func updateExpense(ctx context.Context, q querier, exp ledger.Expense) error {
	res, err := q.ExecContext(ctx,
		"UPDATE expenses SET amount = ?, note = ? WHERE id = ?",
		exp.Amount, exp.Note, exp.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	return requireAffected(res, fmt.Errorf("%w: expense %s", ledger.ErrRecordNotFound, exp.ID))
}

// =============================================================================
// UNITS (ledger.Registry)
// =============================================================================

const unitColumns = "id, name, department, description, daily_budget, personnel_cost, rent, electricity, created_at"

func scanUnit(row scanner) (*ledger.BusinessUnit, error) {
	var u ledger.BusinessUnit
	var createdAt string
	if err := row.Scan(&u.ID, &u.Name, &u.Department, &u.Description,
		&u.DailyBudget, &u.PersonnelCost, &u.Rent, &u.Electricity, &createdAt); err != nil {
		return nil, err
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &u, nil
}

// GetUnit retrieves a unit by ID.
func (s *Store) GetUnit(ctx context.Context, id ledger.UnitID) (*ledger.BusinessUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getUnit(ctx, s.db, id)
}

func getUnit(ctx context.Context, q querier, id ledger.UnitID) (*ledger.BusinessUnit, error) {
	u, err := scanUnit(q.QueryRowContext(ctx, "SELECT "+unitColumns+" FROM units WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get unit: %w", err)
	}
	return u, nil
}

// ListUnits returns all units ordered by name.
func (s *Store) ListUnits(ctx context.Context) ([]ledger.BusinessUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+unitColumns+" FROM units ORDER BY name, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []ledger.BusinessUnit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, *u)
	}
	return units, rows.Err()
}

// SaveUnit inserts or replaces a unit.
func (s *Store) SaveUnit(ctx context.Context, u ledger.BusinessUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO units (` + unitColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			department = excluded.department,
			description = excluded.description,
			daily_budget = excluded.daily_budget,
			personnel_cost = excluded.personnel_cost,
			rent = excluded.rent,
			electricity = excluded.electricity
	`
	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Name, u.Department, u.Description,
		u.DailyBudget, u.PersonnelCost, u.Rent, u.Electricity,
		formatTime(createdAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save unit: %w", err)
	}
	return nil
}

// UpdateFixedCosts overwrites the budget and fixed-cost fields of a unit.
func (s *Store) UpdateFixedCosts(ctx context.Context, id ledger.UnitID, c ledger.FixedCosts) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE units SET daily_budget = ?, personnel_cost = ?, rent = ?, electricity = ? WHERE id = ?",
		c.DailyBudget, c.PersonnelCost, c.Rent, c.Electricity, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update fixed costs: %w", err)
	}
	return requireAffected(res, fmt.Errorf("%w: %s", ledger.ErrUnitNotFound, id))
}

// =============================================================================
// STAFF (ledger.Registry)
// =============================================================================

const staffColumns = "id, full_name, username, password_hash, role, unit_id, active, created_at"

func scanStaff(row scanner) (*ledger.StaffMember, error) {
	var m ledger.StaffMember
	var unit sql.NullString
	var createdAt string
	if err := row.Scan(&m.ID, &m.FullName, &m.Username, &m.PasswordHash, &m.Role, &unit, &m.Active, &createdAt); err != nil {
		return nil, err
	}
	if unit.Valid {
		u := ledger.UnitID(unit.String)
		m.UnitID = &u
	}
	m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &m, nil
}

func (s *Store) queryStaff(ctx context.Context, query string, args ...any) ([]ledger.StaffMember, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ledger.StaffMember
	for rows.Next() {
		m, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *m)
	}
	return result, rows.Err()
}

func (s *Store) getStaffWhere(ctx context.Context, where string, arg any) (*ledger.StaffMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, err := scanStaff(s.db.QueryRowContext(ctx, "SELECT "+staffColumns+" FROM staff WHERE "+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get staff: %w", err)
	}
	return m, nil
}

// GetStaff retrieves a staff member by ID.
func (s *Store) GetStaff(ctx context.Context, id ledger.StaffID) (*ledger.StaffMember, error) {
	return s.getStaffWhere(ctx, "id = ?", id)
}

// GetStaffByUsername retrieves a staff member by login name.
func (s *Store) GetStaffByUsername(ctx context.Context, username string) (*ledger.StaffMember, error) {
	return s.getStaffWhere(ctx, "username = ?", username)
}

// ListStaff returns every account ordered by name.
func (s *Store) ListStaff(ctx context.Context) ([]ledger.StaffMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryStaff(ctx, "SELECT "+staffColumns+" FROM staff ORDER BY full_name, id")
}

// ListStaffByUnit returns the staff currently assigned to unit, active or not.
func (s *Store) ListStaffByUnit(ctx context.Context, unit ledger.UnitID) ([]ledger.StaffMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryStaff(ctx, "SELECT "+staffColumns+" FROM staff WHERE unit_id = ? ORDER BY full_name, id", unit)
}

// SaveStaff inserts or replaces a staff member. A username taken by another
// account is a conflict.
func (s *Store) SaveStaff(ctx context.Context, m ledger.StaffMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var unit sql.NullString
	if m.UnitID != nil {
		unit = sql.NullString{String: string(*m.UnitID), Valid: true}
	}

	query := `
		INSERT INTO staff (` + staffColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			full_name = excluded.full_name,
			username = excluded.username,
			password_hash = excluded.password_hash,
			role = excluded.role,
			unit_id = excluded.unit_id,
			active = excluded.active
	`
	_, err := s.db.ExecContext(ctx, query,
		m.ID, m.FullName, m.Username, m.PasswordHash, m.Role, unit, m.Active, formatTime(createdAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: username %q already exists", ledger.ErrConflict, m.Username)
		}
		if isForeignKeyError(err) {
			return fmt.Errorf("%w: %v", ledger.ErrUnitNotFound, *m.UnitID)
		}
		return fmt.Errorf("failed to save staff: %w", err)
	}
	return nil
}

// SetStaffActive toggles whether the account may log in and submit.
func (s *Store) SetStaffActive(ctx context.Context, id ledger.StaffID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "UPDATE staff SET active = ? WHERE id = ?", active, id)
	if err != nil {
		return fmt.Errorf("failed to update staff: %w", err)
	}
	return requireAffected(res, fmt.Errorf("%w: %s", ledger.ErrStaffNotFound, id))
}

// DeleteStaff removes the account. Ledger rows keep their created_by.
func (s *Store) DeleteStaff(ctx context.Context, id ledger.StaffID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM staff WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete staff: %w", err)
	}
	return requireAffected(res, fmt.Errorf("%w: %s", ledger.ErrStaffNotFound, id))
}

// =============================================================================
// AUDIT LOG + SNAPSHOTS
// =============================================================================

// AppendAudit adds an entry to the audit trail.
func (s *Store) AppendAudit(ctx context.Context, entry ledger.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendAudit(ctx, s.db, entry)
}

func appendAudit(ctx context.Context, q querier, entry ledger.AuditEntry) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO audit_logs (id, actor_id, action, entity, created_at) VALUES (?, ?, ?, ?, ?)",
		entry.ID, nullStaff(entry.ActorID), entry.Action, entry.Entity, formatTime(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// ListAudit returns up to limit entries, newest first. limit <= 0 means all.
func (s *Store) ListAudit(ctx context.Context, limit int) ([]ledger.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, actor_id, action, entity, created_at FROM audit_logs ORDER BY seq DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ledger.AuditEntry
	for rows.Next() {
		var e ledger.AuditEntry
		var actor sql.NullString
		var createdAt string
		if err := rows.Scan(&e.ID, &actor, &e.Action, &e.Entity, &createdAt); err != nil {
			return nil, err
		}
		e.ActorID = staffPtr(actor)
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		result = append(result, e)
	}
	return result, rows.Err()
}

// SaveSnapshot stores the daily digest for (unit, date), replacing any
// earlier run for the same day.
func (s *Store) SaveSnapshot(ctx context.Context, snap ledger.ReportSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO report_snapshots
		(unit_id, date, total_sales, total_expenses, net_profit, performance_percent, performance_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(unit_id, date) DO UPDATE SET
			total_sales = excluded.total_sales,
			total_expenses = excluded.total_expenses,
			net_profit = excluded.net_profit,
			performance_percent = excluded.performance_percent,
			performance_status = excluded.performance_status,
			created_at = excluded.created_at
	`
	_, err := s.db.ExecContext(ctx, query,
		snap.UnitID, snap.Date.String(), snap.TotalSales, snap.TotalExpenses, snap.NetProfit,
		snap.PerformancePercent, snap.PerformanceStatus, formatTime(snap.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// GetSnapshot returns the stored digest for (unit, date), or nil.
func (s *Store) GetSnapshot(ctx context.Context, unit ledger.UnitID, date ledger.Date) (*ledger.ReportSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snap ledger.ReportSnapshot
	var d, createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT unit_id, date, total_sales, total_expenses, net_profit, performance_percent, performance_status, created_at
		FROM report_snapshots WHERE unit_id = ? AND date = ?`,
		unit, date.String(),
	).Scan(&snap.UnitID, &d, &snap.TotalSales, &snap.TotalExpenses, &snap.NetProfit,
		&snap.PerformancePercent, &snap.PerformanceStatus, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	snap.Date, err = ledger.ParseDate(d)
	if err != nil {
		return nil, err
	}
	snap.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &snap, nil
}

// =============================================================================
// TRANSACTIONS (ledger.TxStore)
// =============================================================================

// WithTx executes a function within a database transaction. Every statement
// issued through the ledger.Tx runs on the same *sql.Tx.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore wraps a sql.Tx to implement ledger.Tx.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) FindSale(ctx context.Context, unit ledger.UnitID, date ledger.Date) (*ledger.Sale, error) {
	return findSale(ctx, ts.tx, unit, date)
}

func (ts *txStore) FindExpense(ctx context.Context, unit ledger.UnitID, category ledger.Category, date ledger.Date) (*ledger.Expense, error) {
	return findExpense(ctx, ts.tx, unit, category, date)
}

func (ts *txStore) InsertSale(ctx context.Context, sale ledger.Sale) error {
	return insertSale(ctx, ts.tx, sale)
}

func (ts *txStore) UpdateSale(ctx context.Context, sale ledger.Sale) error {
	return updateSale(ctx, ts.tx, sale)
}

func (ts *txStore) InsertExpense(ctx context.Context, expense ledger.Expense) error {
	return insertExpense(ctx, ts.tx, expense)
}

func (ts *txStore) UpdateExpense(ctx context.Context, expense ledger.Expense) error {
	return updateExpense(ctx, ts.tx, expense)
}

func (ts *txStore) GetUnit(ctx context.Context, id ledger.UnitID) (*ledger.BusinessUnit, error) {
	return getUnit(ctx, ts.tx, id)
}

func (ts *txStore) AppendAudit(ctx context.Context, entry ledger.AuditEntry) error {
	return appendAudit(ctx, ts.tx, entry)
}

// =============================================================================
// HELPERS
// =============================================================================

// ResetLedger deletes sales, expenses and snapshots. Units, staff and the
// audit trail are kept. Used by the demo scenario loader.
func (s *Store) ResetLedger(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"sales", "expenses", "report_snapshots"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func nullStaff(id *ledger.StaffID) sql.NullString {
	if id == nil || *id == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*id), Valid: true}
}

func staffPtr(s sql.NullString) *ledger.StaffID {
	if !s.Valid {
		return nil
	}
	id := ledger.StaffID(s.String)
	return &id
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

func isCheckConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintCheck
}

func isForeignKeyError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}
