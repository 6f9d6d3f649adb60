/*
Package report turns raw ledger rows into period-scoped financial summaries.

PURPOSE:
  The Engine is the computational heart of the service. For a unit, a period
  keyword and an anchor day it resolves the date range, sums sales and
  categorized expenses from the ledger, adds the unit's standing fixed costs,
  and scores the result against the unit's daily budget.

FORMULAS:
  total_fixed         = personnel_cost + rent + electricity   (not date-scoped)
  total_expenses      = total_fixed + sum(variable_costs)
  net_profit          = total_sales - total_expenses
  performance_percent = round(total_sales / daily_budget * 100, 2), 0 if budget is 0
  performance_status  = "Excellent" >= 100, "warning" >= 80, else "Critical"

  Fixed costs are reported once per report whatever the period length: a
  monthly report and a daily report carry the same fixed-cost total.

READ-ONLY:
  Nothing here writes. Two concurrent reports may see slightly different
  snapshots under concurrent submissions.

SEE ALSO:
  - breakdown.go: Per-staff attribution
  - series.go: Day-by-day chart data
  - ledger/period.go: Period resolver
*/
package report

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/sbu-ledger/ledger"
)

// Source is the read surface the engine needs from the store.
type Source interface {
	ledger.LedgerReader
	ledger.UnitReader
	ledger.StaffReader
}

// Engine builds reports from a Source.
type Engine struct {
	src    Source
	logger *zap.Logger
}

// NewEngine wires a report engine.
func NewEngine(src Source, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{src: src, logger: logger}
}

// =============================================================================
// REPORT TYPES
// =============================================================================

// FixedCosts is the unit's standing cost configuration at report time.
type FixedCosts struct {
	PersonnelCost int64
	Rent          int64
	Electricity   int64
	TotalFixed    int64
}

// VariableCosts is the expense breakdown over the closed category set.
type VariableCosts struct {
	Consumables     int64
	GeneralExpenses int64
	Utilities       int64
	Miscellaneous   int64
}

// Add credits amount to category. Unknown categories are ignored and
// reported as false.
func (v *VariableCosts) Add(c ledger.Category, amount int64) bool {
	switch c {
	case ledger.CategoryConsumables:
		v.Consumables += amount
	case ledger.CategoryGeneralExpenses:
		v.GeneralExpenses += amount
	case ledger.CategoryUtilities:
		v.Utilities += amount
	case ledger.CategoryMiscellaneous:
		v.Miscellaneous += amount
	default:
		return false
	}
	return true
}

// Get returns the amount for category, 0 for unknown ones.
func (v VariableCosts) Get(c ledger.Category) int64 {
	switch c {
	case ledger.CategoryConsumables:
		return v.Consumables
	case ledger.CategoryGeneralExpenses:
		return v.GeneralExpenses
	case ledger.CategoryUtilities:
		return v.Utilities
	case ledger.CategoryMiscellaneous:
		return v.Miscellaneous
	}
	return 0
}

func (v VariableCosts) Total() int64 {
	return v.Consumables + v.GeneralExpenses + v.Utilities + v.Miscellaneous
}

// PerformanceStatus is the qualitative score. Casing is part of the API.
type PerformanceStatus string

const (
	StatusExcellent PerformanceStatus = "Excellent"
	StatusWarning   PerformanceStatus = "warning"
	StatusCritical  PerformanceStatus = "Critical"
)

// Report is a unit's financial summary over a resolved period.
type Report struct {
	UnitID             ledger.UnitID
	Period             ledger.PeriodKind
	Range              ledger.Period
	TotalSales         int64
	FixedCosts         FixedCosts
	VariableCosts      VariableCosts
	TotalExpenses      int64
	NetProfit          int64
	PerformancePercent float64
	PerformanceStatus  PerformanceStatus
}

// =============================================================================
// FORMULAS
// =============================================================================

var hundred = decimal.NewFromInt(100)

// PerformancePercent returns sales as a percentage of budget rounded to two
// decimals, ties to even. A zero or negative budget yields 0.
func PerformancePercent(sales, budget int64) float64 {
	if budget <= 0 {
		return 0
	}
	pct := decimal.NewFromInt(sales).Mul(hundred).Div(decimal.NewFromInt(budget)).RoundBank(2)
	return pct.InexactFloat64()
}

// StatusFor scores an already-rounded performance percentage.
func StatusFor(percent float64) PerformanceStatus {
	switch {
	case percent >= 100:
		return StatusExcellent
	case percent >= 80:
		return StatusWarning
	default:
		return StatusCritical
	}
}

// =============================================================================
// AGGREGATION
// =============================================================================

// BuildReport computes the report for unit over the period resolved from
// kind and anchor.
func (e *Engine) BuildReport(ctx context.Context, unitID ledger.UnitID, kind ledger.PeriodKind, anchor ledger.Date) (*Report, error) {
	period, err := ledger.Resolve(kind, anchor)
	if err != nil {
		return nil, err
	}

	unit, err := e.unit(ctx, unitID)
	if err != nil {
		return nil, err
	}

	return e.aggregate(ctx, unit, kind, period)
}

func (e *Engine) aggregate(ctx context.Context, unit *ledger.BusinessUnit, kind ledger.PeriodKind, period ledger.Period) (*Report, error) {
	totalSales, err := e.src.SumSales(ctx, unit.ID, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("sum sales: %w", err)
	}

	byCategory, err := e.src.SumExpensesByCategory(ctx, unit.ID, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("sum expenses: %w", err)
	}

	var variable VariableCosts
	for category, amount := range byCategory {
		if !variable.Add(category, amount) {
			e.logger.Warn("ignoring expenses with unknown category",
				zap.String("unit_id", string(unit.ID)),
				zap.String("category", string(category)),
				zap.Int64("amount", amount))
		}
	}

	fixed := FixedCosts{
		PersonnelCost: unit.PersonnelCost,
		Rent:          unit.Rent,
		Electricity:   unit.Electricity,
		TotalFixed:    unit.FixedTotal(),
	}

	totalExpenses := fixed.TotalFixed + variable.Total()
	percent := PerformancePercent(totalSales, unit.DailyBudget)

	return &Report{
		UnitID:             unit.ID,
		Period:             kind,
		Range:              period,
		TotalSales:         totalSales,
		FixedCosts:         fixed,
		VariableCosts:      variable,
		TotalExpenses:      totalExpenses,
		NetProfit:          totalSales - totalExpenses,
		PerformancePercent: percent,
		PerformanceStatus:  StatusFor(percent),
	}, nil
}

func (e *Engine) unit(ctx context.Context, id ledger.UnitID) (*ledger.BusinessUnit, error) {
	unit, err := e.src.GetUnit(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load unit: %w", err)
	}
	if unit == nil {
		return nil, fmt.Errorf("%w: %s", ledger.ErrUnitNotFound, id)
	}
	return unit, nil
}
