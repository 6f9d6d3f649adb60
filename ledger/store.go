/*
store.go - Persistence interfaces for the ledger, registry and audit log

PURPOSE:
  Defines the boundary between the accounting core and the database. The core
  never touches SQL; it calls the primitives below, and each backend decides
  how to answer them.

KEY INTERFACES:
  LedgerReader:  Range sums and group-by sums used by reports (read-only)
  LedgerWriter:  Point lookups and writes used by the upsert policy
  Registry:      Units and staff (configuration, no computation)
  AuditLog:      Who did what when (append-only)
  TxStore:       Serializing read-modify-write transactions
  SnapshotStore: Persisted copies of computed daily reports

UNIQUENESS CONTRACT:
  Implementations MUST reject a second Sale for the same (unit, date) and a
  second Expense for the same (unit, category, date) with ErrConflict. The
  Recorder relies on this plus WithTx to keep at most one row per key under
  concurrent submissions.

LOOKUP CONVENTION:
  Find and Get methods return (nil, nil) when the row is absent. Mutations of
  a missing row return a wrapped ErrNotFound.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite with unique indexes
  - ledger/store/memory.go: In-memory for testing
*/
package ledger

import "context"

// =============================================================================
// LEDGER
// =============================================================================

// LedgerReader answers the aggregate queries reports are built from.
// All ranges are inclusive.
type LedgerReader interface {
	// SumSales returns the sum of sale amounts for the unit in range; 0 if none.
	SumSales(ctx context.Context, unit UnitID, from, to Date) (int64, error)

	// SumExpensesByCategory groups expense sums by category. Categories with no
	// rows are absent from the map.
	SumExpensesByCategory(ctx context.Context, unit UnitID, from, to Date) (map[Category]int64, error)

	// SumSalesByContributor groups sale sums by created_by.
	SumSalesByContributor(ctx context.Context, unit UnitID, from, to Date) ([]ContributorSum, error)

	// SumExpensesByContributor groups expense sums by created_by.
	SumExpensesByContributor(ctx context.Context, unit UnitID, from, to Date) ([]ContributorSum, error)

	// ListSales returns sale rows in range ordered by date.
	ListSales(ctx context.Context, unit UnitID, from, to Date) ([]Sale, error)

	// ListExpenses returns expense rows in range ordered by effective date.
	ListExpenses(ctx context.Context, unit UnitID, from, to Date) ([]Expense, error)
}

// LedgerWriter is the point-lookup and write surface of the ledger.
type LedgerWriter interface {
	FindSale(ctx context.Context, unit UnitID, date Date) (*Sale, error)
	FindExpense(ctx context.Context, unit UnitID, category Category, date Date) (*Expense, error)

	// InsertSale fails with ErrConflict if (unit, date) already exists.
	InsertSale(ctx context.Context, sale Sale) error

	// UpdateSale overwrites amount and note of the sale with sale.ID.
	UpdateSale(ctx context.Context, sale Sale) error

	// InsertExpense fails with ErrConflict if (unit, category, date) already exists.
	InsertExpense(ctx context.Context, expense Expense) error

	// UpdateExpense overwrites amount and note of the expense with expense.ID.
	UpdateExpense(ctx context.Context, expense Expense) error
}

// =============================================================================
// REGISTRY
// =============================================================================

// UnitReader resolves unit configuration.
type UnitReader interface {
	GetUnit(ctx context.Context, id UnitID) (*BusinessUnit, error)
}

// StaffReader resolves staff accounts.
type StaffReader interface {
	GetStaff(ctx context.Context, id StaffID) (*StaffMember, error)
	GetStaffByUsername(ctx context.Context, username string) (*StaffMember, error)

	// ListStaffByUnit returns every staff member currently assigned to unit,
	// active or not.
	ListStaffByUnit(ctx context.Context, unit UnitID) ([]StaffMember, error)
}

// Registry holds units and staff.
type Registry interface {
	UnitReader
	StaffReader

	ListUnits(ctx context.Context) ([]BusinessUnit, error)
	SaveUnit(ctx context.Context, unit BusinessUnit) error
	UpdateFixedCosts(ctx context.Context, id UnitID, costs FixedCosts) error

	ListStaff(ctx context.Context) ([]StaffMember, error)
	SaveStaff(ctx context.Context, staff StaffMember) error
	SetStaffActive(ctx context.Context, id StaffID, active bool) error
	DeleteStaff(ctx context.Context, id StaffID) error
}

// =============================================================================
// AUDIT LOG
// =============================================================================

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error

	// ListAudit returns the newest entries first.
	ListAudit(ctx context.Context, limit int) ([]AuditEntry, error)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// Tx is the view of the store available inside WithTx.
type Tx interface {
	LedgerWriter
	UnitReader
	AppendAudit(ctx context.Context, entry AuditEntry) error
}

// TxStore runs read-modify-write sequences atomically and serialized against
// other writers of the same keys.
type TxStore interface {
	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	WithTx(ctx context.Context, fn func(Tx) error) error
}

// SnapshotStore persists computed daily reports.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap ReportSnapshot) error
	// GetSnapshot returns (nil, nil) when no snapshot exists for (unit, date).
	GetSnapshot(ctx context.Context, unit UnitID, date Date) (*ReportSnapshot, error)
}

// Store is everything a full backend provides.
type Store interface {
	LedgerReader
	LedgerWriter
	Registry
	AuditLog
	TxStore
	SnapshotStore
}
