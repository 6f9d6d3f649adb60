/*
Package ledger provides the bookkeeping core for business units (SBUs).

PURPOSE:
  This package holds the data model shared by every other package: business
  units with their fixed-cost configuration, staff members, and the two kinds
  of ledger rows staff submit (daily sales and categorized expenses). It also
  owns the calendar Date type, the period resolver, the error taxonomy, the
  persistence contracts and the upsert policy (Recorder).

KEY CONCEPTS IN THIS FILE (types.go):
  - BusinessUnit: budget + fixed costs (personnel, rent, electricity)
  - StaffMember: who may submit, and for which unit
  - Sale: one row per (unit, date), replaced on resubmission
  - Expense: one row per (unit, category, date), accumulated on resubmission
  - Category: closed enumeration of variable-cost buckets

DESIGN PRINCIPLES:
  1. Arena-style references: records point at units and staff by ID, never
     by embedded objects. Relationships are resolved by lookup.
  2. Integer amounts: currency values are whole units, no fractions.
  3. Weak contributors: CreatedBy may dangle after a staff member is deleted.

SEE ALSO:
  - period.go: Period resolver (daily/weekly/monthly)
  - recorder.go: Upsert policy for submissions
  - store.go: Persistence interfaces
*/
package ledger

import (
	"fmt"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UnitID string
type StaffID string
type RecordID string

// =============================================================================
// BUSINESS UNIT
// =============================================================================

// BusinessUnit is a cost/profit-tracking entity with its own budget and
// standing fixed costs.
type BusinessUnit struct {
	ID          UnitID
	Name        string
	Department  string
	DailyBudget int64
	Description string

	// Fixed costs, admin-configured, applied once per report.
	PersonnelCost int64
	Rent          int64
	Electricity   int64

	CreatedAt time.Time
}

// FixedTotal returns personnel + rent + electricity.
func (u BusinessUnit) FixedTotal() int64 {
	return u.PersonnelCost + u.Rent + u.Electricity
}

// Validate checks the configuration invariants of a unit.
func (u BusinessUnit) Validate() error {
	if u.Name == "" {
		return fmt.Errorf("%w: unit name is required", ErrValidation)
	}
	if u.DailyBudget < 0 {
		return fmt.Errorf("%w: daily_budget must be >= 0", ErrValidation)
	}
	if u.PersonnelCost < 0 || u.Rent < 0 || u.Electricity < 0 {
		return fmt.Errorf("%w: fixed costs must be >= 0", ErrValidation)
	}
	return nil
}

// FixedCosts is an admin edit of a unit's standing configuration.
type FixedCosts struct {
	DailyBudget   int64
	PersonnelCost int64
	Rent          int64
	Electricity   int64
}

// =============================================================================
// STAFF
// =============================================================================

type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

// StaffMember is a login account. Staff accounts are bound to at most one unit.
type StaffMember struct {
	ID           StaffID
	FullName     string
	Username     string
	PasswordHash string
	Role         Role
	UnitID       *UnitID // nil = unassigned, cannot submit
	Active       bool
	CreatedAt    time.Time
}

// CanSubmitFor reports whether the member may record sales/expenses for unit.
func (s StaffMember) CanSubmitFor(unit UnitID) bool {
	return s.Role == RoleStaff && s.Active && s.UnitID != nil && *s.UnitID == unit
}

// SystemName is the display name used when a contributor cannot be resolved.
const SystemName = "System"

// =============================================================================
// CATEGORY - Variable-cost buckets
// =============================================================================

type Category string

const (
	CategoryConsumables     Category = "consumables"
	CategoryGeneralExpenses Category = "general_expenses"
	CategoryUtilities       Category = "utilities"
	CategoryMiscellaneous   Category = "miscellaneous"
)

// Categories returns the closed set of expense categories in display order.
func Categories() []Category {
	return []Category{
		CategoryConsumables,
		CategoryGeneralExpenses,
		CategoryUtilities,
		CategoryMiscellaneous,
	}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryConsumables, CategoryGeneralExpenses, CategoryUtilities, CategoryMiscellaneous:
		return true
	}
	return false
}

// ParseCategory converts a submitted string to a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
	return c, nil
}

// =============================================================================
// LEDGER ROWS
// =============================================================================

// Sale is a unit's sales total for one day.
type Sale struct {
	ID        RecordID
	UnitID    UnitID
	Amount    int64
	Date      Date
	Note      string
	CreatedBy *StaffID
	CreatedAt time.Time
}

// Expense is a unit's spending in one category on one day.
type Expense struct {
	ID            RecordID
	UnitID        UnitID
	Category      Category
	Amount        int64
	EffectiveDate Date
	Note          string
	CreatedBy     *StaffID
	CreatedAt     time.Time
}

// ContributorSum is one row of a group-by-contributor aggregate.
// StaffID is nil for rows entered without a contributor.
type ContributorSum struct {
	StaffID *StaffID
	Total   int64
}

// =============================================================================
// AUDIT
// =============================================================================

// AuditEntry records who did what when.
type AuditEntry struct {
	ID        string
	ActorID   *StaffID
	Action    string
	Entity    string
	CreatedAt time.Time
}

// ReportSnapshot is a persisted copy of a computed daily report.
type ReportSnapshot struct {
	UnitID             UnitID
	Date               Date
	TotalSales         int64
	TotalExpenses      int64
	NetProfit          int64
	PerformancePercent float64
	PerformanceStatus  string
	CreatedAt          time.Time
}
