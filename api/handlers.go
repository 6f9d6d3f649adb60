/*
handlers.go - HTTP API handlers for the SBU ledger

PURPOSE:
  Exposes the ledger and the report engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to ledger.Recorder and
  report.Engine for all accounting.

ENDPOINTS:
  Auth:
    POST   /api/login                          Exchange credentials for a token

  Staff (role staff, own unit only):
    GET    /api/staff/my-sbu                   Today's dashboard
    POST   /api/staff/sales                    Record the day's sales (replaces)
    POST   /api/staff/expenses                 Record an expense (accumulates)
    GET    /api/staff/report                   Report for own unit

  Admin (role admin):
    GET    /api/admin/sbus                     List units
    POST   /api/admin/sbus                     Create unit
    PUT    /api/admin/sbus/{id}/fixed-costs    Update budget and fixed costs
    GET    /api/admin/sbus/{id}/chart          Day-by-day chart series
    GET    /api/admin/sbu-report               Report + staff breakdown
    GET    /api/admin/staff                    List staff accounts
    POST   /api/admin/staff                    Create staff account
    POST   /api/admin/staff/{id}/activate      Re-enable an account
    POST   /api/admin/staff/{id}/deactivate    Disable an account
    DELETE /api/admin/staff/{id}               Delete an account
    GET    /api/admin/audit-logs               Latest 100 audit entries

REQUEST FLOW:
  1. Authenticate + RequireRole middleware (middleware.go)
  2. Handler-level authorization (unit assignment)
  3. Parse and validate input
  4. Call Recorder / Engine / Registry
  5. Serialize response

ERROR HANDLING:
  Errors are mapped from the ledger sentinels by statusFor:
  - 400: ErrValidation (bad body, period, date, category, amount)
  - 401: ErrUnauthenticated
  - 403: ErrForbidden
  - 404: ErrNotFound
  - 409: ErrConflict
  - 500: anything else (logged, details withheld)

SEE ALSO:
  - dto.go: Request/response data structures
  - middleware.go: Bearer token authentication
  - scenarios.go: Demo data loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/sbu-ledger/auth"
	"github.com/warp/sbu-ledger/ledger"
	"github.com/warp/sbu-ledger/report"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    ledger.Store
	Recorder *ledger.Recorder
	Reports  *report.Engine
	Auth     *auth.Authenticator
	Tokens   *auth.TokenIssuer

	logger   *zap.Logger
	validate *validator.Validate
	now      func() time.Time
	today    func() ledger.Date
	newID    func() string

	// Track currently loaded demo scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler backed by store.
func NewHandler(store ledger.Store, tokens *auth.TokenIssuer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:    store,
		Recorder: ledger.NewRecorder(store),
		Reports:  report.NewEngine(store, logger.Named("report")),
		Auth:     auth.NewAuthenticator(store),
		Tokens:   tokens,
		logger:   logger,
		validate: newValidator(),
		now:      func() time.Time { return time.Now().UTC() },
		today:    ledger.Today,
		newID:    uuid.NewString,
	}
}

// =============================================================================
// AUTH
// =============================================================================

// Login exchanges credentials for a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := h.decodeAndValidate(w, r, &req); err != nil {
		h.fail(w, r, "Invalid request body", err)
		return
	}

	id, err := h.Auth.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(w, r, "Invalid credentials", err)
		return
	}

	token, err := h.Tokens.Issue(id)
	if err != nil {
		h.fail(w, r, "Failed to issue token", err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(h.Tokens.TTL().Seconds()),
		Role:        string(id.Role),
		Username:    id.Username,
	})
}

// pinger is implemented by stores backed by a connection.
type pinger interface {
	Ping(ctx context.Context) error
}

// Health reports liveness, and store reachability when the store can be pinged.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			h.logger.Error("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// STAFF HANDLERS
// =============================================================================

// ownUnit returns the caller's assigned unit or a NotFound error.
func ownUnit(member *ledger.StaffMember) (ledger.UnitID, error) {
	if member.UnitID == nil {
		return "", fmt.Errorf("%w: no business unit assigned", ledger.ErrUnitNotFound)
	}
	return *member.UnitID, nil
}

// submittingUnit authorizes a ledger submission for the caller's own unit.
func submittingUnit(member *ledger.StaffMember) (ledger.UnitID, error) {
	unit, err := ownUnit(member)
	if err != nil {
		return "", fmt.Errorf("%w: no business unit assigned", ledger.ErrForbidden)
	}
	if !member.CanSubmitFor(unit) {
		return "", fmt.Errorf("%w: cannot submit for this unit", ledger.ErrForbidden)
	}
	return unit, nil
}

// MyUnit returns today's dashboard for the caller's unit.
func (h *Handler) MyUnit(w http.ResponseWriter, r *http.Request) {
	unit, err := ownUnit(currentStaff(r.Context()))
	if err != nil {
		h.fail(w, r, "", err)
		return
	}

	dash, err := h.Reports.BuildDashboard(r.Context(), unit, h.today())
	if err != nil {
		h.fail(w, r, "Failed to build dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardDTO(dash))
}

// SubmitSale records the unit's sales for a day, replacing any earlier
// figure for that day.
func (h *Handler) SubmitSale(w http.ResponseWriter, r *http.Request) {
	member := currentStaff(r.Context())
	unit, err := submittingUnit(member)
	if err != nil {
		h.fail(w, r, "", err)
		return
	}

	var req SaleRequest
	if err := h.decodeAndValidate(w, r, &req); err != nil {
		h.fail(w, r, "Invalid sale", err)
		return
	}
	date, err := ledger.ParseDate(req.Date)
	if err != nil {
		h.fail(w, r, "Invalid sale_date", err)
		return
	}

	_, err = h.Recorder.RecordSale(r.Context(), ledger.SaleSubmission{
		UnitID: unit,
		Date:   date,
		Amount: req.Amount,
		Note:   req.Notes,
		By:     &member.ID,
	})
	if err != nil {
		h.fail(w, r, "Failed to save sale", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Sales saved successfully"})
}

// SubmitExpense adds an expense to the unit's running total for that
// category and day.
func (h *Handler) SubmitExpense(w http.ResponseWriter, r *http.Request) {
	member := currentStaff(r.Context())
	unit, err := submittingUnit(member)
	if err != nil {
		h.fail(w, r, "", err)
		return
	}

	var req ExpenseRequest
	if err := h.decodeAndValidate(w, r, &req); err != nil {
		h.fail(w, r, "Invalid expense", err)
		return
	}
	category, err := ledger.ParseCategory(req.Category)
	if err != nil {
		h.fail(w, r, "Invalid category", err)
		return
	}
	date, err := ledger.ParseDate(req.Date)
	if err != nil {
		h.fail(w, r, "Invalid date", err)
		return
	}

	_, err = h.Recorder.RecordExpense(r.Context(), ledger.ExpenseSubmission{
		UnitID:   unit,
		Category: category,
		Date:     date,
		Amount:   req.Amount,
		Note:     req.Notes,
		By:       &member.ID,
	})
	if err != nil {
		h.fail(w, r, "Failed to record expense", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Expense recorded"})
}

// StaffReport returns the report for the caller's own unit.
func (h *Handler) StaffReport(w http.ResponseWriter, r *http.Request) {
	unit, err := ownUnit(currentStaff(r.Context()))
	if err != nil {
		h.fail(w, r, "", err)
		return
	}

	kind, anchor, err := h.reportQuery(r, ledger.PeriodDaily)
	if err != nil {
		h.fail(w, r, "Invalid report query", err)
		return
	}

	rep, err := h.Reports.BuildReport(r.Context(), unit, kind, anchor)
	if err != nil {
		h.fail(w, r, "Failed to build report", err)
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(rep))
}

// =============================================================================
// ADMIN: UNITS
// =============================================================================

// ListUnits returns every unit.
func (h *Handler) ListUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.Store.ListUnits(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list units", err)
		return
	}

	dtos := make([]UnitDTO, len(units))
	for i, u := range units {
		dtos[i] = toUnitDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateUnit registers a new business unit.
func (h *Handler) CreateUnit(w http.ResponseWriter, r *http.Request) {
	var req CreateUnitRequest
	if err := h.decodeAndValidate(w, r, &req); err != nil {
		h.fail(w, r, "Invalid unit", err)
		return
	}

	unit := ledger.BusinessUnit{
		ID:            ledger.UnitID(h.newID()),
		Name:          req.Name,
		Department:    req.Department,
		Description:   req.Description,
		DailyBudget:   req.DailyBudget,
		PersonnelCost: req.PersonnelCost,
		Rent:          req.Rent,
		Electricity:   req.Electricity,
	}
	if err := unit.Validate(); err != nil {
		h.fail(w, r, "Invalid unit", err)
		return
	}
	if err := h.Store.SaveUnit(r.Context(), unit); err != nil {
		h.fail(w, r, "Failed to create unit", err)
		return
	}

	h.audit(r, fmt.Sprintf("Created SBU %s", unit.Name), "sbu")
	writeJSON(w, http.StatusCreated, toUnitDTO(unit))
}

// UpdateFixedCosts changes any of a unit's budget and fixed-cost fields.
// Past reports recompute with the new values.
func (h *Handler) UpdateFixedCosts(w http.ResponseWriter, r *http.Request) {
	id := ledger.UnitID(chi.URLParam(r, "id"))

	var req FixedCostsRequest
	if err := h.decodeAndValidate(w, r, &req); err != nil {
		h.fail(w, r, "Invalid fixed costs", err)
		return
	}

	unit, err := h.Store.GetUnit(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to load unit", err)
		return
	}
	if unit == nil {
		h.fail(w, r, "Unit not found", ledger.ErrUnitNotFound)
		return
	}

	costs := ledger.FixedCosts{
		DailyBudget:   valueOr(req.DailyBudget, unit.DailyBudget),
		PersonnelCost: valueOr(req.PersonnelCost, unit.PersonnelCost),
		Rent:          valueOr(req.Rent, unit.Rent),
		Electricity:   valueOr(req.Electricity, unit.Electricity),
	}
	if err := h.Store.UpdateFixedCosts(r.Context(), id, costs); err != nil {
		h.fail(w, r, "Failed to update fixed costs", err)
		return
	}

	unit.DailyBudget = costs.DailyBudget
	unit.PersonnelCost = costs.PersonnelCost
	unit.Rent = costs.Rent
	unit.Electricity = costs.Electricity

	h.audit(r, fmt.Sprintf("Updated fixed costs for %s", unit.Name), "sbu")
	writeJSON(w, http.StatusOK, toUnitDTO(*unit))
}

// UnitChart returns day-by-day sales and expenses for a unit.
func (h *Handler) UnitChart(w http.ResponseWriter, r *http.Request) {
	id := ledger.UnitID(chi.URLParam(r, "id"))

	kind, anchor, err := h.reportQuery(r, ledger.PeriodWeekly)
	if err != nil {
		h.fail(w, r, "Invalid chart query", err)
		return
	}

	series, err := h.Reports.BuildSeries(r.Context(), id, kind, anchor)
	if err != nil {
		h.fail(w, r, "Failed to build chart", err)
		return
	}
	writeJSON(w, http.StatusOK, toChartDTO(series))
}

// UnitSnapshot returns the nightly digest stored for a unit and day.
func (h *Handler) UnitSnapshot(w http.ResponseWriter, r *http.Request) {
	id := ledger.UnitID(chi.URLParam(r, "id"))

	date, err := ledger.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		h.fail(w, r, "Invalid date", err)
		return
	}

	snap, err := h.Store.GetSnapshot(r.Context(), id, date)
	if err != nil {
		h.fail(w, r, "Failed to load snapshot", err)
		return
	}
	if snap == nil {
		h.fail(w, r, "Snapshot not found", fmt.Errorf("%w: no snapshot for %s on %s", ledger.ErrNotFound, id, date))
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotDTO(snap))
}

// UnitReport returns a unit's report with its per-staff breakdown.
func (h *Handler) UnitReport(w http.ResponseWriter, r *http.Request) {
	id := ledger.UnitID(r.URL.Query().Get("sbu_id"))
	if id == "" {
		h.fail(w, r, "sbu_id is required", fmt.Errorf("%w: sbu_id is required", ledger.ErrValidation))
		return
	}

	kind, anchor, err := h.reportQuery(r, ledger.PeriodDaily)
	if err != nil {
		h.fail(w, r, "Invalid report query", err)
		return
	}

	ur, err := h.Reports.BuildUnitReport(r.Context(), id, kind, anchor)
	if err != nil {
		h.fail(w, r, "Failed to build report", err)
		return
	}
	writeJSON(w, http.StatusOK, toUnitReportDTO(ur))
}

// =============================================================================
// ADMIN: STAFF
// =============================================================================

// ListStaff returns all staff-role accounts.
func (h *Handler) ListStaff(w http.ResponseWriter, r *http.Request) {
	members, err := h.Store.ListStaff(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list staff", err)
		return
	}

	dtos := make([]StaffDTO, 0, len(members))
	for _, m := range members {
		if m.Role != ledger.RoleStaff {
			continue
		}
		dtos = append(dtos, toStaffDTO(m))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateStaff creates an active staff account assigned to a unit.
func (h *Handler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	var req CreateStaffRequest
	if err := h.decodeAndValidate(w, r, &req); err != nil {
		h.fail(w, r, "Invalid staff", err)
		return
	}
	ctx := r.Context()

	unitID := ledger.UnitID(req.UnitID)
	unit, err := h.Store.GetUnit(ctx, unitID)
	if err != nil {
		h.fail(w, r, "Failed to load unit", err)
		return
	}
	if unit == nil {
		h.fail(w, r, "Unit not found", ledger.ErrUnitNotFound)
		return
	}

	existing, err := h.Store.GetStaffByUsername(ctx, req.Username)
	if err != nil {
		h.fail(w, r, "Failed to check username", err)
		return
	}
	if existing != nil {
		h.fail(w, r, "User already exists", fmt.Errorf("%w: username %q is taken", ledger.ErrConflict, req.Username))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.fail(w, r, "Invalid password", err)
		return
	}

	member := ledger.StaffMember{
		ID:           ledger.StaffID(h.newID()),
		FullName:     req.FullName,
		Username:     req.Username,
		PasswordHash: hash,
		Role:         ledger.RoleStaff,
		UnitID:       &unitID,
		Active:       true,
	}
	if err := h.Store.SaveStaff(ctx, member); err != nil {
		h.fail(w, r, "Failed to create staff", err)
		return
	}

	h.audit(r, fmt.Sprintf("Created staff %s", member.Username), "staff")
	writeJSON(w, http.StatusCreated, toStaffDTO(member))
}

// ActivateStaff re-enables an account.
func (h *Handler) ActivateStaff(w http.ResponseWriter, r *http.Request) {
	h.setStaffActive(w, r, true)
}

// DeactivateStaff disables login and submissions for an account. Its ledger
// history is kept and still attributed to it.
func (h *Handler) DeactivateStaff(w http.ResponseWriter, r *http.Request) {
	h.setStaffActive(w, r, false)
}

func (h *Handler) setStaffActive(w http.ResponseWriter, r *http.Request, active bool) {
	id := ledger.StaffID(chi.URLParam(r, "id"))
	if !active && id == currentStaff(r.Context()).ID {
		h.fail(w, r, "Cannot deactivate your own account", fmt.Errorf("%w: cannot deactivate yourself", ledger.ErrValidation))
		return
	}

	if err := h.Store.SetStaffActive(r.Context(), id, active); err != nil {
		h.fail(w, r, "Failed to update staff", err)
		return
	}

	verb := "deactivated"
	if active {
		verb = "activated"
	}
	h.audit(r, fmt.Sprintf("Staff %s %s", id, verb), "staff")
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Staff " + verb})
}

// DeleteStaff removes an account. Rows it recorded are then attributed to
// "System" in staff breakdowns.
func (h *Handler) DeleteStaff(w http.ResponseWriter, r *http.Request) {
	id := ledger.StaffID(chi.URLParam(r, "id"))
	if id == currentStaff(r.Context()).ID {
		h.fail(w, r, "Cannot delete your own account", fmt.Errorf("%w: cannot delete yourself", ledger.ErrValidation))
		return
	}

	member, err := h.Store.GetStaff(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to load staff", err)
		return
	}
	if member == nil {
		h.fail(w, r, "Staff not found", ledger.ErrStaffNotFound)
		return
	}
	if member.Role != ledger.RoleStaff {
		h.fail(w, r, "Only staff accounts can be deleted", fmt.Errorf("%w: %s is not a staff account", ledger.ErrValidation, id))
		return
	}

	if err := h.Store.DeleteStaff(r.Context(), id); err != nil {
		h.fail(w, r, "Failed to delete staff", err)
		return
	}

	h.audit(r, fmt.Sprintf("Deleted staff %s", id), "staff")
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Staff deleted"})
}

// =============================================================================
// ADMIN: AUDIT LOG
// =============================================================================

const auditPageSize = 100

// AuditLogs returns the newest audit entries with actor names resolved.
func (h *Handler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entries, err := h.Store.ListAudit(ctx, auditPageSize)
	if err != nil {
		h.fail(w, r, "Failed to list audit logs", err)
		return
	}

	names := make(map[ledger.StaffID]string)
	dtos := make([]AuditLogDTO, len(entries))
	for i, e := range entries {
		name, err := h.actorName(ctx, e.ActorID, names)
		if err != nil {
			h.fail(w, r, "Failed to resolve audit actor", err)
			return
		}
		dtos[i] = AuditLogDTO{Staff: name, Action: e.Action, Entity: e.Entity, Time: e.CreatedAt}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) actorName(ctx context.Context, id *ledger.StaffID, cache map[ledger.StaffID]string) (string, error) {
	if id == nil {
		return ledger.SystemName, nil
	}
	if name, ok := cache[*id]; ok {
		return name, nil
	}

	member, err := h.Store.GetStaff(ctx, *id)
	if err != nil {
		return "", err
	}
	name := ledger.SystemName
	if member != nil {
		name = member.FullName
	}
	cache[*id] = name
	return name, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// reportQuery reads ?period= and ?report_date=. An empty period falls back
// to def and an empty date to today.
func (h *Handler) reportQuery(r *http.Request, def ledger.PeriodKind) (ledger.PeriodKind, ledger.Date, error) {
	q := r.URL.Query()

	kind := def
	if p := q.Get("period"); p != "" {
		parsed, err := ledger.ParsePeriodKind(p)
		if err != nil {
			return "", ledger.Date{}, err
		}
		kind = parsed
	}

	anchor := h.today()
	if d := q.Get("report_date"); d != "" {
		parsed, err := ledger.ParseDate(d)
		if err != nil {
			return "", ledger.Date{}, err
		}
		anchor = parsed
	}
	return kind, anchor, nil
}

// audit records an admin action. Failures are logged, not returned: the
// action itself has already succeeded.
func (h *Handler) audit(r *http.Request, action, entity string) {
	var actor *ledger.StaffID
	if m := currentStaff(r.Context()); m != nil {
		id := m.ID
		actor = &id
	}

	err := h.Store.AppendAudit(r.Context(), ledger.AuditEntry{
		ID:        h.newID(),
		ActorID:   actor,
		Action:    action,
		Entity:    entity,
		CreatedAt: h.now(),
	})
	if err != nil {
		h.logger.Warn("failed to append audit entry", zap.String("action", action), zap.Error(err))
	}
}

func valueOr(p *int64, fallback int64) int64 {
	if p == nil {
		return fallback
	}
	return *p
}

// statusFor maps ledger error categories to HTTP status codes.
func statusFor(err error) int {
	switch {
	case ledger.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ledger.ErrForbidden):
		return http.StatusForbidden
	case ledger.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// fail writes err with the status its category maps to. 500s are logged and
// their details withheld.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if message == "" {
		message = http.StatusText(status)
	}

	if status == http.StatusInternalServerError {
		h.logger.Error(message,
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, status, message, nil)
		return
	}

	var fe *fieldErrors
	if errors.As(err, &fe) {
		writeJSON(w, status, ErrorResponse{Error: message, Details: fe.fields})
		return
	}
	writeError(w, status, message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
