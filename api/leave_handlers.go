package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/core"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// LEAVE TYPE HANDLERS
// =============================================================================

// ListLeaveTypes returns leave types. ?active=true filters inactive ones.
func (h *Handler) ListLeaveTypes(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	types, err := h.Leave.ListLeaveTypes(r.Context(), activeOnly)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	dtos := make([]LeaveTypeDTO, len(types))
	for i, lt := range types {
		dtos[i] = toLeaveTypeDTO(lt)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) SaveLeaveType(w http.ResponseWriter, r *http.Request) {
	var req SaveLeaveTypeRequest
	if !h.decode(w, r, &req) {
		return
	}
	lt, err := h.Leave.SaveLeaveType(r.Context(), req.toLeaveType())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveTypeDTO(*lt))
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

func (h *Handler) InitializeBalances(w http.ResponseWriter, r *http.Request) {
	var req InitializeBalancesRequest
	if !h.decode(w, r, &req) {
		return
	}
	balances, err := h.Leave.InitializeYearlyBalances(r.Context(), core.EmployeeID(req.EmployeeID), req.Year)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTOs(balances))
}

func (h *Handler) AccrueBalances(w http.ResponseWriter, r *http.Request) {
	var req AccrueRequest
	if !h.decode(w, r, &req) {
		return
	}
	balances, err := h.Leave.AccrueMonthly(r.Context(), core.EmployeeID(req.EmployeeID), req.Year, req.Month)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTOs(balances))
}

func (h *Handler) EncashBalance(w http.ResponseWriter, r *http.Request) {
	h.adjustBalance(w, r, h.Leave.Encash)
}

func (h *Handler) CreditBalance(w http.ResponseWriter, r *http.Request) {
	h.adjustBalance(w, r, h.Leave.Credit)
}

type balanceAdjustment func(ctx context.Context, key leave.BalanceKey, days decimal.Decimal, actorID core.EmployeeID) (*leave.Balance, error)

func (h *Handler) adjustBalance(w http.ResponseWriter, r *http.Request, op balanceAdjustment) {
	var req BalanceAdjustmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	key := leave.BalanceKey{
		EmployeeID:  core.EmployeeID(req.EmployeeID),
		LeaveTypeID: core.LeaveTypeID(req.LeaveTypeID),
		Year:        req.Year,
	}
	b, err := op(r.Context(), key, req.Days, core.EmployeeID(req.ActorID))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(*b))
}

// ListEmployeeBalances returns the employee's balances for ?year= (default
// the current year).
func (h *Handler) ListEmployeeBalances(w http.ResponseWriter, r *http.Request) {
	year := h.now().Year()
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = y
	}
	balances, err := h.Leave.ListBalances(r.Context(), core.EmployeeID(chi.URLParam(r, "id")), year)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTOs(balances))
}

// =============================================================================
// LEAVE REQUEST HANDLERS
// =============================================================================

func (h *Handler) SubmitLeaveRequest(w http.ResponseWriter, r *http.Request) {
	var req SubmitLeaveRequest
	if !h.decode(w, r, &req) {
		return
	}
	in := leave.SubmitInput{
		EmployeeID:  core.EmployeeID(req.EmployeeID),
		LeaveTypeID: core.LeaveTypeID(req.LeaveTypeID),
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		DayType:     leave.DayType(req.DayType),
		Reason:      req.Reason,
	}
	var err error
	if in.StartDate, err = core.ParseDate(req.StartDate); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if req.EndDate != "" {
		if in.EndDate, err = core.ParseDate(req.EndDate); err != nil {
			h.writeServiceError(w, r, err)
			return
		}
	}

	created, err := h.Leave.Submit(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeaveRequestDTO(*created))
}

// ListLeaveRequests filters by ?employee_id, ?leave_type_id, ?status, ?year.
func (h *Handler) ListLeaveRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := leave.RequestFilter{
		EmployeeID:  core.EmployeeID(q.Get("employee_id")),
		LeaveTypeID: core.LeaveTypeID(q.Get("leave_type_id")),
	}
	if v := q.Get("status"); v != "" {
		status, err := leave.ParseStatus(v)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		filter.Status = status
	}
	if v := q.Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		filter.Year = y
	}

	requests, err := h.Leave.ListRequests(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	dtos := make([]LeaveRequestDTO, len(requests))
	for i, req := range requests {
		dtos[i] = toLeaveRequestDTO(req)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetLeaveRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.Leave.GetRequest(r.Context(), core.RequestID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(*req))
}

// actionRoutes maps URL segments onto workflow actions.
var actionRoutes = map[string]leave.Action{
	"manager-approve": leave.ActionManagerApprove,
	"manager-reject":  leave.ActionManagerReject,
	"hr-approve":      leave.ActionHRApprove,
	"hr-reject":       leave.ActionHRReject,
	"approve":         leave.ActionApprove,
	"reject":          leave.ActionReject,
	"cancel":          leave.ActionCancel,
}

// ActOnLeaveRequest applies POST /api/leave-requests/{id}/{action}.
func (h *Handler) ActOnLeaveRequest(w http.ResponseWriter, r *http.Request) {
	action, ok := actionRoutes[chi.URLParam(r, "action")]
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown action", nil)
		return
	}
	var req LeaveActionRequest
	if !h.decode(w, r, &req) {
		return
	}
	updated, err := h.Leave.Act(r.Context(), core.RequestID(chi.URLParam(r, "id")), action,
		core.EmployeeID(req.ActorID), req.Remarks)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(*updated))
}

// =============================================================================
// PAYROLL
// =============================================================================

// LeaveDays returns approved leave days for ?employee_id in [from, to].
func (h *Handler) LeaveDays(w http.ResponseWriter, r *http.Request) {
	employeeID := r.URL.Query().Get("employee_id")
	if employeeID == "" {
		h.writeServiceError(w, r, core.InvalidInput("employee_id is required"))
		return
	}
	from, to, err := queryPeriod(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	days, err := h.Leave.ApprovedLeaveDays(r.Context(), core.EmployeeID(employeeID), from, to)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LeaveDaysDTO{
		EmployeeID: employeeID,
		From:       core.FormatDate(from),
		To:         core.FormatDate(to),
		Days:       days,
	})
}
