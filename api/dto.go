/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger and report types from the external contract; the JSON field
  names below are what the web client reads.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Auth:     LoginRequest, LoginResponse
  Units:    UnitDTO, CreateUnitRequest, FixedCostsRequest
  Staff:    StaffDTO, CreateStaffRequest
  Ledger:   SaleRequest, ExpenseRequest, MessageResponse
  Reports:  ReportDTO, UnitReportDTO, DashboardDTO, ChartDTO
  Audit:    AuditLogDTO
  Demo:     ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Request bodies carry go-playground/validator tags and are checked in
  decodeAndValidate (validate.go) after the caller has been authorized.

SEE ALSO:
  - handlers.go: Uses these types
  - report/report.go: Report fields and formulas
*/
package api

import (
	"time"

	"github.com/warp/sbu-ledger/ledger"
	"github.com/warp/sbu-ledger/report"
)

// =============================================================================
// AUTH
// =============================================================================

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the bearer token.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"` // seconds
	Role        string `json:"role"`
	Username    string `json:"username"`
}

// =============================================================================
// UNITS + STAFF
// =============================================================================

// UnitDTO represents a business unit in API responses.
type UnitDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Department    string `json:"department"`
	Description   string `json:"description,omitempty"`
	DailyBudget   int64  `json:"daily_budget"`
	PersonnelCost int64  `json:"personnel_cost"`
	Rent          int64  `json:"rent"`
	Electricity   int64  `json:"electricity"`
}

// CreateUnitRequest is the body of POST /api/admin/sbus.
type CreateUnitRequest struct {
	Name          string `json:"name" validate:"required,max=120"`
	Department    string `json:"department" validate:"required,max=120"`
	DailyBudget   int64  `json:"daily_budget" validate:"gte=0"`
	Description   string `json:"description" validate:"max=500"`
	PersonnelCost int64  `json:"personnel_cost" validate:"gte=0"`
	Rent          int64  `json:"rent" validate:"gte=0"`
	Electricity   int64  `json:"electricity" validate:"gte=0"`
}

// FixedCostsRequest updates any subset of a unit's budget and fixed costs.
type FixedCostsRequest struct {
	DailyBudget   *int64 `json:"daily_budget" validate:"omitempty,gte=0"`
	PersonnelCost *int64 `json:"personnel_cost" validate:"omitempty,gte=0"`
	Rent          *int64 `json:"rent" validate:"omitempty,gte=0"`
	Electricity   *int64 `json:"electricity" validate:"omitempty,gte=0"`
}

// StaffDTO represents an account in API responses. The password hash is
// never exposed.
type StaffDTO struct {
	ID       string  `json:"id"`
	FullName string  `json:"full_name"`
	Username string  `json:"username"`
	Role     string  `json:"role"`
	UnitID   *string `json:"sbu_id"`
	IsActive bool    `json:"is_active"`
}

// CreateStaffRequest is the body of POST /api/admin/staff.
type CreateStaffRequest struct {
	FullName string `json:"full_name" validate:"required,max=120"`
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=6"`
	UnitID   string `json:"sbu_id" validate:"required"`
}

// =============================================================================
// LEDGER SUBMISSIONS
// =============================================================================

// SaleRequest is a staff member's daily sales entry.
type SaleRequest struct {
	Amount int64  `json:"amount" validate:"gt=0"`
	Date   string `json:"sale_date" validate:"required,ymd"`
	Notes  string `json:"notes" validate:"max=500"`
}

// ExpenseRequest is a staff member's expense entry.
type ExpenseRequest struct {
	Category string `json:"category" validate:"required,category"`
	Amount   int64  `json:"amount" validate:"gt=0"`
	Date     string `json:"date" validate:"required,ymd"`
	Notes    string `json:"notes" validate:"max=500"`
}

// MessageResponse is the body returned by write endpoints.
type MessageResponse struct {
	Message string `json:"message"`
}

// =============================================================================
// REPORTS
// =============================================================================

// DateRangeDTO is an inclusive period.
type DateRangeDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// FixedCostsDTO is the fixed-cost block of a report.
type FixedCostsDTO struct {
	PersonnelCost int64 `json:"personnel_cost"`
	Rent          int64 `json:"rent"`
	Electricity   int64 `json:"electricity"`
	TotalFixed    int64 `json:"total_fixed"`
}

// VariableCostsDTO always carries all four categories.
type VariableCostsDTO struct {
	Consumables     int64 `json:"consumables"`
	GeneralExpenses int64 `json:"general_expenses"`
	Utilities       int64 `json:"utilities"`
	Miscellaneous   int64 `json:"miscellaneous"`
}

// ReportDTO is the aggregated report for one unit and period.
type ReportDTO struct {
	UnitID             string           `json:"sbu_id"`
	Period             string           `json:"period"`
	DateRange          DateRangeDTO     `json:"date_range"`
	TotalSales         int64            `json:"total_sales"`
	FixedCosts         FixedCostsDTO    `json:"fixed_costs"`
	VariableCosts      VariableCostsDTO `json:"variable_costs"`
	TotalExpenses      int64            `json:"total_expenses"`
	NetProfit          int64            `json:"net_profit"`
	PerformancePercent float64          `json:"performance_percent"`
	PerformanceStatus  string           `json:"performance_status"`
}

// StaffContributionDTO is one row of the staff breakdown.
type StaffContributionDTO struct {
	StaffID       string `json:"staff_id"`
	StaffName     string `json:"staff_name"`
	TotalSales    int64  `json:"total_sales"`
	TotalExpenses int64  `json:"total_expenses"`
	NetProfit     int64  `json:"net_profit"`
}

// UnitReportDTO is the admin report: the unit report plus its breakdown.
type UnitReportDTO struct {
	ReportDTO
	StaffBreakdown []StaffContributionDTO `json:"staff_breakdown"`
}

// UnitSummaryDTO is the unit header of the staff dashboard.
type UnitSummaryDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DailyBudget int64  `json:"daily_budget"`
}

// DashboardDTO is the staff member's view of today.
type DashboardDTO struct {
	Unit               UnitSummaryDTO   `json:"sbu"`
	Date               string           `json:"date"`
	SalesToday         int64            `json:"sales_today"`
	FixedCosts         FixedCostsDTO    `json:"fixed_costs"`
	VariableCosts      VariableCostsDTO `json:"variable_costs"`
	TotalExpenses      int64            `json:"total_expenses"`
	NetProfit          int64            `json:"net_profit"`
	PerformancePercent float64          `json:"performance_percent"`
	PerformanceStatus  string           `json:"performance_status"`
}

// SnapshotDTO is a stored nightly digest.
type SnapshotDTO struct {
	UnitID             string    `json:"sbu_id"`
	Date               string    `json:"report_date"`
	TotalSales         int64     `json:"total_sales"`
	TotalExpenses      int64     `json:"total_expenses"`
	NetProfit          int64     `json:"net_profit"`
	PerformancePercent float64   `json:"performance_percent"`
	PerformanceStatus  string    `json:"performance_status"`
	CreatedAt          time.Time `json:"created_at"`
}

// ChartDTO is day-by-day chart data; the slices are index-aligned.
type ChartDTO struct {
	Labels   []string `json:"labels"`
	Sales    []int64  `json:"sales"`
	Expenses []int64  `json:"expenses"`
}

// =============================================================================
// AUDIT + DEMO
// =============================================================================

// AuditLogDTO is one audit entry. Staff is "System" when the actor is
// unknown or deleted.
type AuditLogDTO struct {
	Staff  string    `json:"staff"`
	Action string    `json:"action"`
	Entity string    `json:"entity"`
	Time   time.Time `json:"time"`
}

// ScenarioDTO describes a demo data set.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toUnitDTO(u ledger.BusinessUnit) UnitDTO {
	return UnitDTO{
		ID:            string(u.ID),
		Name:          u.Name,
		Department:    u.Department,
		Description:   u.Description,
		DailyBudget:   u.DailyBudget,
		PersonnelCost: u.PersonnelCost,
		Rent:          u.Rent,
		Electricity:   u.Electricity,
	}
}

func toStaffDTO(m ledger.StaffMember) StaffDTO {
	dto := StaffDTO{
		ID:       string(m.ID),
		FullName: m.FullName,
		Username: m.Username,
		Role:     string(m.Role),
		IsActive: m.Active,
	}
	if m.UnitID != nil {
		u := string(*m.UnitID)
		dto.UnitID = &u
	}
	return dto
}

func toFixedCostsDTO(f report.FixedCosts) FixedCostsDTO {
	return FixedCostsDTO{
		PersonnelCost: f.PersonnelCost,
		Rent:          f.Rent,
		Electricity:   f.Electricity,
		TotalFixed:    f.TotalFixed,
	}
}

func toVariableCostsDTO(v report.VariableCosts) VariableCostsDTO {
	return VariableCostsDTO{
		Consumables:     v.Get(ledger.CategoryConsumables),
		GeneralExpenses: v.Get(ledger.CategoryGeneralExpenses),
		Utilities:       v.Get(ledger.CategoryUtilities),
		Miscellaneous:   v.Get(ledger.CategoryMiscellaneous),
	}
}

func toReportDTO(r *report.Report) ReportDTO {
	return ReportDTO{
		UnitID:             string(r.UnitID),
		Period:             string(r.Period),
		DateRange:          DateRangeDTO{Start: r.Range.Start.String(), End: r.Range.End.String()},
		TotalSales:         r.TotalSales,
		FixedCosts:         toFixedCostsDTO(r.FixedCosts),
		VariableCosts:      toVariableCostsDTO(r.VariableCosts),
		TotalExpenses:      r.TotalExpenses,
		NetProfit:          r.NetProfit,
		PerformancePercent: r.PerformancePercent,
		PerformanceStatus:  string(r.PerformanceStatus),
	}
}

func toUnitReportDTO(ur *report.UnitReport) UnitReportDTO {
	rows := make([]StaffContributionDTO, len(ur.Staff))
	for i, s := range ur.Staff {
		rows[i] = StaffContributionDTO{
			StaffID:       string(s.StaffID),
			StaffName:     s.StaffName,
			TotalSales:    s.TotalSales,
			TotalExpenses: s.TotalExpenses,
			NetProfit:     s.NetProfit,
		}
	}
	return UnitReportDTO{ReportDTO: toReportDTO(ur.Report), StaffBreakdown: rows}
}

func toDashboardDTO(d *report.Dashboard) DashboardDTO {
	return DashboardDTO{
		Unit: UnitSummaryDTO{
			ID:          string(d.Unit.ID),
			Name:        d.Unit.Name,
			DailyBudget: d.Unit.DailyBudget,
		},
		Date:               d.Report.Range.End.String(),
		SalesToday:         d.Report.TotalSales,
		FixedCosts:         toFixedCostsDTO(d.Report.FixedCosts),
		VariableCosts:      toVariableCostsDTO(d.Report.VariableCosts),
		TotalExpenses:      d.Report.TotalExpenses,
		NetProfit:          d.Report.NetProfit,
		PerformancePercent: d.Report.PerformancePercent,
		PerformanceStatus:  string(d.Report.PerformanceStatus),
	}
}

func toSnapshotDTO(s *ledger.ReportSnapshot) SnapshotDTO {
	return SnapshotDTO{
		UnitID:             string(s.UnitID),
		Date:               s.Date.String(),
		TotalSales:         s.TotalSales,
		TotalExpenses:      s.TotalExpenses,
		NetProfit:          s.NetProfit,
		PerformancePercent: s.PerformancePercent,
		PerformanceStatus:  s.PerformanceStatus,
		CreatedAt:          s.CreatedAt,
	}
}

func toChartDTO(s *report.Series) ChartDTO {
	dto := ChartDTO{
		Labels:   s.Labels(),
		Sales:    make([]int64, len(s.Points)),
		Expenses: make([]int64, len(s.Points)),
	}
	for i, p := range s.Points {
		dto.Sales[i] = p.Sales
		dto.Expenses[i] = p.Expenses
	}
	return dto
}
