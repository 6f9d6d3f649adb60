/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built data sets that populate the store with realistic units,
  staff accounts and two weeks of sales and expenses, so dashboards and
  reports have something to show.

AVAILABLE SCENARIOS:
  single-unit:  One bakery unit, two staff, steady trading
  multi-unit:   Three units with different budgets; one under-performs and
                one has a deactivated staff member

HOW SCENARIOS WORK:
  1. Reset the ledger (sales, expenses, snapshots). Units, staff and the
     audit log are kept, so the admin account survives.
  2. Upsert demo units and staff with fixed IDs
  3. Record 14 days of activity through the Recorder, ending today

  Loading the same scenario twice yields the same data.

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "multi-unit"}

NOTE:
  Demo staff log in with password "demo1234". Only use in development/demo
  environments.

SEE ALSO:
  - handlers.go: Handler.currentScenario
  - ledger/recorder.go: Upsert policy used for activity
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/warp/sbu-ledger/auth"
	"github.com/warp/sbu-ledger/ledger"
)

const (
	demoPassword = "demo1234"
	demoDays     = 14
)

// LedgerResetter is implemented by stores that can drop ledger rows while
// keeping the registry.
type LedgerResetter interface {
	ResetLedger(ctx context.Context) error
}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type demoUnit struct {
	unit  ledger.BusinessUnit
	staff []demoStaff

	baseSales int64 // daily sales before the weekday swing
	inactive  string
}

type demoStaff struct {
	id       ledger.StaffID
	fullName string
	username string
}

type demoExpense struct {
	category ledger.Category
	amount   int64
}

type scenario struct {
	ScenarioDTO
	units []demoUnit
}

var bakery = demoUnit{
	unit: ledger.BusinessUnit{
		ID:            "demo-sbu-bakery",
		Name:          "Bakery",
		Department:    "Food Production",
		Description:   "Bread and pastries for the campus shop",
		DailyBudget:   500,
		PersonnelCost: 120,
		Rent:          60,
		Electricity:   40,
	},
	staff: []demoStaff{
		{id: "demo-staff-amina", fullName: "Amina Okafor", username: "amina"},
		{id: "demo-staff-bruno", fullName: "Bruno Silva", username: "bruno"},
	},
	baseSales: 520,
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "single-unit",
			Name:        "Single Unit",
			Description: "One bakery unit with two staff and two weeks of steady trading",
		},
		units: []demoUnit{bakery},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "multi-unit",
			Name:        "Multi Unit",
			Description: "Three units with different budgets, one under target and one deactivated staff member",
		},
		units: []demoUnit{
			bakery,
			{
				unit: ledger.BusinessUnit{
					ID:            "demo-sbu-print",
					Name:          "Print Shop",
					Department:    "Services",
					Description:   "Printing and binding",
					DailyBudget:   800,
					PersonnelCost: 200,
					Rent:          90,
					Electricity:   70,
				},
				staff: []demoStaff{
					{id: "demo-staff-chen", fullName: "Chen Wei", username: "chen"},
				},
				baseSales: 560,
			},
			{
				unit: ledger.BusinessUnit{
					ID:            "demo-sbu-farm",
					Name:          "Poultry Farm",
					Department:    "Agriculture",
					Description:   "Eggs and broilers",
					DailyBudget:   1000,
					PersonnelCost: 250,
					Rent:          0,
					Electricity:   110,
				},
				staff: []demoStaff{
					{id: "demo-staff-dami", fullName: "Dami Adeyemi", username: "dami"},
					{id: "demo-staff-eli", fullName: "Eli Mensah", username: "eli"},
				},
				baseSales: 1100,
				inactive:  "eli",
			},
		},
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	s, ok := findScenario(current)
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, s.ScenarioDTO)
}

// LoadScenario resets the ledger and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := h.decodeAndValidate(w, r, &req); err != nil {
		h.fail(w, r, "Invalid request body", err)
		return
	}

	s, ok := findScenario(req.ScenarioID)
	if !ok {
		h.fail(w, r, "Unknown scenario", fmt.Errorf("%w: unknown scenario %q", ledger.ErrValidation, req.ScenarioID))
		return
	}

	if err := h.loadScenario(r.Context(), s); err != nil {
		h.fail(w, r, "Failed to load scenario", err)
		return
	}

	h.audit(r, fmt.Sprintf("Loaded scenario %s", s.ID), "scenario")
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": s.ID})
}

// =============================================================================
// LOADER
// =============================================================================

func (h *Handler) loadScenario(ctx context.Context, s scenario) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	resetter, ok := h.Store.(LedgerResetter)
	if !ok {
		return fmt.Errorf("store %T cannot reset its ledger", h.Store)
	}
	if err := resetter.ResetLedger(ctx); err != nil {
		return fmt.Errorf("reset ledger: %w", err)
	}
	h.currentScenario = ""

	hash, err := auth.HashPassword(demoPassword)
	if err != nil {
		return err
	}

	today := h.today()
	for _, du := range s.units {
		if err := h.Store.SaveUnit(ctx, du.unit); err != nil {
			return fmt.Errorf("save unit %s: %w", du.unit.ID, err)
		}
		for _, ds := range du.staff {
			unitID := du.unit.ID
			member := ledger.StaffMember{
				ID:           ds.id,
				FullName:     ds.fullName,
				Username:     ds.username,
				PasswordHash: hash,
				Role:         ledger.RoleStaff,
				UnitID:       &unitID,
				Active:       ds.username != du.inactive,
			}
			if err := h.Store.SaveStaff(ctx, member); err != nil {
				return fmt.Errorf("save staff %s: %w", ds.username, err)
			}
		}
		if err := h.recordActivity(ctx, du, today); err != nil {
			return fmt.Errorf("record activity for %s: %w", du.unit.Name, err)
		}
	}

	h.currentScenario = s.ID
	h.logger.Info("scenario loaded", zap.String("scenario", s.ID), zap.Int("units", len(s.units)))
	return nil
}

// recordActivity writes demoDays of sales and expenses ending on today.
// Staff take turns by day; amounts vary by weekday but are deterministic.
func (h *Handler) recordActivity(ctx context.Context, du demoUnit, today ledger.Date) error {
	start := today.AddDays(-(demoDays - 1))
	for i := 0; i < demoDays; i++ {
		day := start.AddDays(i)
		by := du.staff[i%len(du.staff)].id
		swing := int64(day.Time().Weekday()) * du.baseSales / 20

		_, err := h.Recorder.RecordSale(ctx, ledger.SaleSubmission{
			UnitID: du.unit.ID,
			Date:   day,
			Amount: du.baseSales + swing,
			Note:   "Daily takings",
			By:     &by,
		})
		if err != nil {
			return err
		}

		expenses := []demoExpense{
			{ledger.CategoryConsumables, du.baseSales/5 + swing/2},
			{ledger.CategoryUtilities, du.baseSales / 25},
		}
		if i%3 == 0 {
			expenses = append(expenses, demoExpense{ledger.CategoryGeneralExpenses, du.baseSales / 10})
		}
		if i%7 == 6 {
			expenses = append(expenses, demoExpense{ledger.CategoryMiscellaneous, 35})
		}

		for _, e := range expenses {
			_, err := h.Recorder.RecordExpense(ctx, ledger.ExpenseSubmission{
				UnitID:   du.unit.ID,
				Category: e.category,
				Date:     day,
				Amount:   e.amount,
				By:       &by,
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}
