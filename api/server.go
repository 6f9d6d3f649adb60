/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the dashboard frontend

ROUTE GROUPS:
  /healthz              Liveness
  /api/login            Public, issues bearer tokens
  /api/staff/*          Authenticated, role staff
  /api/admin/*          Authenticated, role admin
  /api/scenarios/*      Authenticated, role admin (demo data)

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Authenticate, RequireRole
  - cmd/server/main.go: Server startup
*/
package api

import (
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/sbu-ledger/ledger"
)

// DefaultCORSOrigins are the local dashboard dev servers.
var DefaultCORSOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured. An empty
// corsOrigins means DefaultCORSOrigins. Credentials are only allowed for an
// explicit origin list, never with "*".
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	if len(corsOrigins) == 0 {
		corsOrigins = DefaultCORSOrigins
	}
	wildcard := slices.Contains(corsOrigins, "*")

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: !wildcard,
	}))

	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.Login)

		// Staff routes: own unit only
		r.Route("/staff", func(r chi.Router) {
			r.Use(h.Authenticate, h.RequireRole(ledger.RoleStaff))
			r.Get("/my-sbu", h.MyUnit)
			r.Post("/sales", h.SubmitSale)
			r.Post("/expenses", h.SubmitExpense)
			r.Get("/report", h.StaffReport)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(h.Authenticate, h.RequireRole(ledger.RoleAdmin))

			r.Route("/sbus", func(r chi.Router) {
				r.Get("/", h.ListUnits)
				r.Post("/", h.CreateUnit)
				r.Put("/{id}/fixed-costs", h.UpdateFixedCosts)
				r.Get("/{id}/chart", h.UnitChart)
				r.Get("/{id}/snapshots/{date}", h.UnitSnapshot)
			})
			r.Get("/sbu-report", h.UnitReport)

			r.Route("/staff", func(r chi.Router) {
				r.Get("/", h.ListStaff)
				r.Post("/", h.CreateStaff)
				r.Post("/{id}/activate", h.ActivateStaff)
				r.Post("/{id}/deactivate", h.DeactivateStaff)
				r.Delete("/{id}", h.DeleteStaff)
			})

			r.Get("/audit-logs", h.AuditLogs)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Use(h.Authenticate, h.RequireRole(ledger.RoleAdmin))
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
