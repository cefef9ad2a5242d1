/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Structured request logging (logrus)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/employees/*          Directory and per-employee balances
  /api/holidays/*           Holiday calendar
  /api/leave-types/*        Leave type configuration
  /api/balances/*           Initialization, accrual, credit, encashment
  /api/leave-requests/*     Submission and approval workflow
  /api/payroll/*            Committed leave for payroll
  /api/attendance/*         Clock events, capture, review, summaries
  /api/attendance-rules/*   Rule management

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Directory routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}/balances", h.ListEmployeeBalances)
		})

		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
			r.Delete("/{id}", h.DeleteHoliday)
		})

		// Leave configuration and balances
		r.Route("/leave-types", func(r chi.Router) {
			r.Get("/", h.ListLeaveTypes)
			r.Post("/", h.SaveLeaveType)
		})

		r.Route("/balances", func(r chi.Router) {
			r.Post("/initialize", h.InitializeBalances)
			r.Post("/accrue", h.AccrueBalances)
			r.Post("/credit", h.CreditBalance)
			r.Post("/encash", h.EncashBalance)
		})

		// Leave request workflow
		r.Route("/leave-requests", func(r chi.Router) {
			r.Get("/", h.ListLeaveRequests)
			r.Post("/", h.SubmitLeaveRequest)
			r.Get("/{id}", h.GetLeaveRequest)
			r.Post("/{id}/{action}", h.ActOnLeaveRequest)
		})

		r.Get("/payroll/leave-days", h.LeaveDays)

		// Attendance routes
		r.Route("/attendance", func(r chi.Router) {
			r.Post("/clock-in", h.ClockIn)
			r.Post("/clock-out", h.ClockOut)
			r.Post("/manual", h.ManualEntry)
			r.Post("/bulk", h.BulkEntry)
			r.Post("/import", h.ImportWorkbook)
			r.Get("/import/template", h.ImportTemplate)
			r.Get("/summary", h.Summary)

			r.Route("/records", func(r chi.Router) {
				r.Get("/", h.ListRecords)
				r.Post("/bulk-approve", h.BulkApprove)
				r.Get("/{id}", h.GetRecord)
				r.Post("/{id}/approve", h.ApproveRecord)
				r.Post("/{id}/reject", h.RejectRecord)
			})
		})

		r.Route("/attendance-rules", func(r chi.Router) {
			r.Get("/", h.ListRules)
			r.Post("/", h.CreateRule)
			r.Get("/{id}", h.GetRule)
			r.Put("/{id}", h.UpdateRule)
			r.Post("/{id}/default", h.SetDefaultRule)
		})
	})

	return r
}
