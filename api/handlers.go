/*
handlers.go - HTTP API handlers for the leave and attendance engines

PURPOSE:
  Exposes the leave ledger, approval workflow and attendance capture via
  REST. Handles HTTP request/response, JSON serialization and validation,
  and delegates to the domain services.

ENDPOINTS:
  Leave:       leave_handlers.go
  Attendance:  attendance_handlers.go
  Directory:
    GET    /api/employees          List employees
    POST   /api/employees          Create or update an employee
    GET    /api/holidays?year=     List holidays
    POST   /api/holidays           Create a holiday
    DELETE /api/holidays/{id}      Delete a holiday

REQUEST FLOW:
  1. Decode JSON body
  2. Validate struct tags
  3. Call the service
  4. Serialize response, or map the error kind to a status (errors.go)

SECURITY NOTE:
  No authentication or authorization. Actor ids are taken from the body.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/warp/leave-engine/attendance"
	"github.com/warp/leave-engine/core"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Directory is the master data the API manages directly.
type Directory interface {
	core.EmployeeDirectory
	SaveEmployee(ctx context.Context, e core.Employee) error
	ListEmployees(ctx context.Context) ([]core.Employee, error)
	SaveHoliday(ctx context.Context, h core.Holiday) error
	DeleteHoliday(ctx context.Context, id string) error
	ListHolidays(ctx context.Context, year int) ([]core.Holiday, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Leave      *leave.Service
	Attendance *attendance.Service
	Directory  Directory

	validate *validator.Validate
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewHandler(leaves *leave.Service, att *attendance.Service, dir Directory, log logrus.FieldLogger) *Handler {
	return &Handler{
		Leave:      leaves,
		Attendance: att,
		Directory:  dir,
		validate:   validator.New(),
		log:        log,
		now:        time.Now,
	}
}

// decode reads a JSON body into dst and runs its validation tags. On failure
// the response is written and false is returned.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeValidationError(w, err)
		return false
	}
	return true
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Directory.ListEmployees(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if !h.decode(w, r, &req) {
		return
	}
	emp := core.Employee{
		ID:        core.EmployeeID(req.ID),
		Name:      req.Name,
		BranchID:  req.BranchID,
		Active:    req.Active == nil || *req.Active,
		CreatedAt: h.now().UTC(),
	}
	if err := h.Directory.SaveEmployee(r.Context(), emp); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	year := 0
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = y
	}
	holidays, err := h.Directory.ListHolidays(r.Context(), year)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	dtos := make([]HolidayDTO, len(holidays))
	for i, hol := range holidays {
		dtos[i] = toHolidayDTO(hol)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req CreateHolidayRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	hol := core.Holiday{
		ID:        req.ID,
		BranchID:  req.BranchID,
		Date:      date,
		Name:      req.Name,
		Recurring: req.Recurring,
	}
	if hol.ID == "" {
		hol.ID = uuid.NewString()
	}
	if err := h.Directory.SaveHoliday(r.Context(), hol); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toHolidayDTO(hol))
}

func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	if err := h.Directory.DeleteHoliday(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// QUERY HELPERS
// =============================================================================

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := core.ParseDate(v)
	if err != nil {
		return time.Time{}, core.InvalidInput("%s: %v", name, err)
	}
	return t, nil
}

// queryPeriod parses required from/to dates.
func queryPeriod(r *http.Request) (time.Time, time.Time, error) {
	from, err := queryDate(r, "from")
	if err != nil {
		return from, from, err
	}
	to, err := queryDate(r, "to")
	if err != nil {
		return from, to, err
	}
	if from.IsZero() || to.IsZero() {
		return from, to, core.InvalidInput("from and to are required")
	}
	if to.Before(from) {
		return from, to, core.InvalidTimeRange("to %s is before from %s", core.FormatDate(to), core.FormatDate(from))
	}
	return from, to, nil
}
