/*
dto.go - Data Transfer Objects for API requests and responses

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry validator/v10 struct tags; handlers run them before
  calling the services. Domain rules (balances, transitions, time ranges) are
  enforced by the services, not here.

WIRE FORMATS:
  - Dates are YYYY-MM-DD, times of day HH:MM, instants RFC 3339
  - Decimal amounts are JSON strings ("1.5") and accept numbers on input

SEE ALSO:
  - handlers.go, leave_handlers.go, attendance_handlers.go: Use these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/attendance"
	"github.com/warp/leave-engine/core"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// DIRECTORY
// =============================================================================

type EmployeeDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	BranchID  string `json:"branch_id,omitempty"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at,omitempty"`
}

type CreateEmployeeRequest struct {
	ID       string `json:"id" validate:"required"`
	Name     string `json:"name" validate:"required"`
	BranchID string `json:"branch_id"`
	// Active defaults to true.
	Active *bool `json:"active"`
}

type HolidayDTO struct {
	ID        string `json:"id"`
	BranchID  string `json:"branch_id,omitempty"`
	Date      string `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

type CreateHolidayRequest struct {
	ID        string `json:"id"`
	BranchID  string `json:"branch_id"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Name      string `json:"name" validate:"required"`
	Recurring bool   `json:"recurring"`
}

// =============================================================================
// LEAVE TYPES AND BALANCES
// =============================================================================

type LeaveTypeDTO struct {
	ID                  string              `json:"id"`
	Code                string              `json:"code"`
	Name                string              `json:"name"`
	AnnualEntitlement   decimal.Decimal     `json:"annual_entitlement"`
	Accrual             string              `json:"accrual"`
	CarryForwardAllowed bool                `json:"carry_forward_allowed"`
	MaxCarryForward     decimal.NullDecimal `json:"max_carry_forward"`
	EncashmentAllowed   bool                `json:"encashment_allowed"`
	HourlyAllowed       bool                `json:"hourly_allowed"`
	RequiresApproval    bool                `json:"requires_approval"`
	ApprovalFlow        string              `json:"approval_flow"`
	Active              bool                `json:"active"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

type SaveLeaveTypeRequest struct {
	ID                  string              `json:"id" validate:"required"`
	Code                string              `json:"code" validate:"required"`
	Name                string              `json:"name" validate:"required"`
	AnnualEntitlement   decimal.Decimal     `json:"annual_entitlement"`
	Accrual             string              `json:"accrual" validate:"required,oneof=MONTHLY ANNUALLY"`
	CarryForwardAllowed bool                `json:"carry_forward_allowed"`
	MaxCarryForward     decimal.NullDecimal `json:"max_carry_forward"`
	EncashmentAllowed   bool                `json:"encashment_allowed"`
	HourlyAllowed       bool                `json:"hourly_allowed"`
	// RequiresApproval and Active default to true.
	RequiresApproval *bool  `json:"requires_approval"`
	ApprovalFlow     string `json:"approval_flow" validate:"omitempty,oneof=MULTI_LEVEL SINGLE"`
	Active           *bool  `json:"active"`
}

type BalanceDTO struct {
	EmployeeID      string          `json:"employee_id"`
	LeaveTypeID     string          `json:"leave_type_id"`
	Year            int             `json:"year"`
	OpeningBalance  decimal.Decimal `json:"opening_balance"`
	Credited        decimal.Decimal `json:"credited"`
	CarryForward    decimal.Decimal `json:"carry_forward"`
	Pending         decimal.Decimal `json:"pending"`
	Used            decimal.Decimal `json:"used"`
	Lapsed          decimal.Decimal `json:"lapsed"`
	Encashed        decimal.Decimal `json:"encashed"`
	CarriedOut      decimal.Decimal `json:"carried_out"`
	Closed          bool            `json:"closed"`
	Available       decimal.Decimal `json:"available"`
	CreditedThrough int             `json:"credited_through"`
	Version         int64           `json:"version"`
}

type InitializeBalancesRequest struct {
	EmployeeID string `json:"employee_id" validate:"required"`
	Year       int    `json:"year" validate:"required,min=1900,max=9999"`
}

type AccrueRequest struct {
	EmployeeID string `json:"employee_id" validate:"required"`
	Year       int    `json:"year" validate:"required,min=1900,max=9999"`
	Month      int    `json:"month" validate:"required,min=1,max=12"`
}

// BalanceAdjustmentRequest is used by both encash and credit.
type BalanceAdjustmentRequest struct {
	EmployeeID  string          `json:"employee_id" validate:"required"`
	LeaveTypeID string          `json:"leave_type_id" validate:"required"`
	Year        int             `json:"year" validate:"required,min=1900,max=9999"`
	Days        decimal.Decimal `json:"days"`
	ActorID     string          `json:"actor_id" validate:"required"`
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

type SubmitLeaveRequest struct {
	EmployeeID  string          `json:"employee_id" validate:"required"`
	LeaveTypeID string          `json:"leave_type_id" validate:"required"`
	StartDate   string          `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate     string          `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	StartTime   *core.TimeOfDay `json:"start_time"`
	EndTime     *core.TimeOfDay `json:"end_time"`
	DayType     string          `json:"day_type" validate:"omitempty,oneof=FULL_DAY HALF_DAY_AM HALF_DAY_PM"`
	Reason      string          `json:"reason"`
}

type LeaveActionRequest struct {
	ActorID string `json:"actor_id" validate:"required"`
	Remarks string `json:"remarks"`
}

type StageDTO struct {
	Status  string     `json:"status"`
	ActorID string     `json:"actor_id,omitempty"`
	Remarks string     `json:"remarks,omitempty"`
	ActedAt *time.Time `json:"acted_at,omitempty"`
}

type LeaveRequestDTO struct {
	ID            string              `json:"id"`
	EmployeeID    string              `json:"employee_id"`
	LeaveTypeID   string              `json:"leave_type_id"`
	StartDate     string              `json:"start_date"`
	EndDate       string              `json:"end_date"`
	StartTime     *core.TimeOfDay     `json:"start_time,omitempty"`
	EndTime       *core.TimeOfDay     `json:"end_time,omitempty"`
	DayType       string              `json:"day_type"`
	TotalDays     decimal.Decimal     `json:"total_days"`
	TotalHours    decimal.NullDecimal `json:"total_hours"`
	Reason        string              `json:"reason,omitempty"`
	Status        string              `json:"status"`
	ApprovalFlow  string              `json:"approval_flow"`
	Manager       StageDTO            `json:"manager"`
	HR            StageDTO            `json:"hr"`
	CancelRemarks string              `json:"cancel_remarks,omitempty"`
	Version       int64               `json:"version"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

type LeaveDaysDTO struct {
	EmployeeID string          `json:"employee_id"`
	From       string          `json:"from"`
	To         string          `json:"to"`
	Days       decimal.Decimal `json:"days"`
}

// =============================================================================
// ATTENDANCE
// =============================================================================

type ClockRequest struct {
	EmployeeID string `json:"employee_id" validate:"required"`
	// At defaults to now; Date defaults to the calendar day of At.
	At   *time.Time `json:"at"`
	Date string     `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type EntryRequest struct {
	EmployeeID string          `json:"employee_id" validate:"required"`
	Date       string          `json:"date" validate:"required,datetime=2006-01-02"`
	ClockIn    *core.TimeOfDay `json:"clock_in"`
	ClockOut   *core.TimeOfDay `json:"clock_out"`
	Status     string          `json:"status" validate:"omitempty,oneof=PRESENT ABSENT ON_LEAVE HALF_DAY"`
	Remarks    string          `json:"remarks"`
	// SelfService entries wait for review; administrative ones are approved.
	SelfService bool `json:"self_service"`
}

type BulkEntryRequest struct {
	Entries []EntryRequest `json:"entries" validate:"required,min=1,dive"`
}

type ReviewRequest struct {
	ApproverID string `json:"approver_id" validate:"required"`
	Note       string `json:"note"`
}

type BulkApproveRequest struct {
	IDs        []string `json:"ids" validate:"required,min=1,dive,required"`
	ApproverID string   `json:"approver_id" validate:"required"`
	Note       string   `json:"note"`
}

type RecordDTO struct {
	ID             string          `json:"id"`
	EmployeeID     string          `json:"employee_id"`
	Date           string          `json:"date"`
	ClockIn        *time.Time      `json:"clock_in,omitempty"`
	ClockOut       *time.Time      `json:"clock_out,omitempty"`
	RegularHours   decimal.Decimal `json:"regular_hours"`
	OvertimeHours  decimal.Decimal `json:"overtime_hours"`
	BreakDuration  decimal.Decimal `json:"break_duration"`
	LateArrival    bool            `json:"late_arrival"`
	LateMinutes    int             `json:"late_minutes"`
	EarlyDeparture bool            `json:"early_departure"`
	EarlyMinutes   int             `json:"early_minutes"`
	Status         string          `json:"status"`
	CaptureMethod  string          `json:"capture_method"`
	ApprovalStatus string          `json:"approval_status"`
	ApproverID     string          `json:"approver_id,omitempty"`
	ApprovalNote   string          `json:"approval_note,omitempty"`
	ApprovedAt     *time.Time      `json:"approved_at,omitempty"`
	Remarks        string          `json:"remarks,omitempty"`
	Version        int64           `json:"version"`
}

// ItemResultDTO reports one item of a bulk operation.
type ItemResultDTO struct {
	Row        int        `json:"row,omitempty"`
	ID         string     `json:"id,omitempty"`
	EmployeeID string     `json:"employee_id,omitempty"`
	Date       string     `json:"date,omitempty"`
	Record     *RecordDTO `json:"record,omitempty"`
	Error      string     `json:"error,omitempty"`
}

type BulkResultDTO struct {
	Total     int             `json:"total"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Results   []ItemResultDTO `json:"results"`
}

type SummaryDTO struct {
	EmployeeID     string          `json:"employee_id"`
	From           string          `json:"from"`
	To             string          `json:"to"`
	DaysPresent    int             `json:"days_present"`
	DaysHalf       int             `json:"days_half"`
	DaysAbsent     int             `json:"days_absent"`
	DaysOnLeave    int             `json:"days_on_leave"`
	RegularHours   decimal.Decimal `json:"regular_hours"`
	OvertimeHours  decimal.Decimal `json:"overtime_hours"`
	LateCount      int             `json:"late_count"`
	LateMinutes    int             `json:"late_minutes"`
	EarlyCount     int             `json:"early_count"`
	EarlyMinutes   int             `json:"early_minutes"`
	RecordsCounted int             `json:"records_counted"`
}

type RuleDTO struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	StandardStart      core.TimeOfDay  `json:"standard_start"`
	StandardEnd        core.TimeOfDay  `json:"standard_end"`
	GraceMinutesIn     int             `json:"grace_minutes_in"`
	GraceMinutesOut    int             `json:"grace_minutes_out"`
	RegularHoursPerDay decimal.Decimal `json:"regular_hours_per_day"`
	AutoDeductBreak    bool            `json:"auto_deduct_break"`
	BreakMinutes       *int            `json:"break_minutes"`
	IsDefault          bool            `json:"is_default"`
	Version            int64           `json:"version"`
}

type RuleRequest struct {
	Name               string          `json:"name" validate:"required"`
	StandardStart      *core.TimeOfDay `json:"standard_start" validate:"required"`
	StandardEnd        *core.TimeOfDay `json:"standard_end" validate:"required"`
	GraceMinutesIn     int             `json:"grace_minutes_in" validate:"min=0"`
	GraceMinutesOut    int             `json:"grace_minutes_out" validate:"min=0"`
	RegularHoursPerDay decimal.Decimal `json:"regular_hours_per_day"`
	AutoDeductBreak    bool            `json:"auto_deduct_break"`
	BreakMinutes       *int            `json:"break_minutes" validate:"omitempty,min=0"`
	IsDefault          bool            `json:"is_default"`
	// Version guards updates; 0 means "whatever is stored".
	Version int64 `json:"version"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toEmployeeDTO(e core.Employee) EmployeeDTO {
	dto := EmployeeDTO{ID: string(e.ID), Name: e.Name, BranchID: e.BranchID, Active: e.Active}
	if !e.CreatedAt.IsZero() {
		dto.CreatedAt = e.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toHolidayDTO(h core.Holiday) HolidayDTO {
	return HolidayDTO{
		ID:        h.ID,
		BranchID:  h.BranchID,
		Date:      core.FormatDate(h.Date),
		Name:      h.Name,
		Recurring: h.Recurring,
	}
}

func toLeaveTypeDTO(lt leave.LeaveType) LeaveTypeDTO {
	return LeaveTypeDTO{
		ID:                  string(lt.ID),
		Code:                lt.Code,
		Name:                lt.Name,
		AnnualEntitlement:   lt.AnnualEntitlement,
		Accrual:             string(lt.Accrual),
		CarryForwardAllowed: lt.CarryForwardAllowed,
		MaxCarryForward:     lt.MaxCarryForward,
		EncashmentAllowed:   lt.EncashmentAllowed,
		HourlyAllowed:       lt.HourlyAllowed,
		RequiresApproval:    lt.RequiresApproval,
		ApprovalFlow:        string(lt.ApprovalFlow()),
		Active:              lt.Active,
		CreatedAt:           lt.CreatedAt,
		UpdatedAt:           lt.UpdatedAt,
	}
}

func (req SaveLeaveTypeRequest) toLeaveType() leave.LeaveType {
	lt := leave.LeaveType{
		ID:                  core.LeaveTypeID(req.ID),
		Code:                req.Code,
		Name:                req.Name,
		AnnualEntitlement:   req.AnnualEntitlement,
		Accrual:             leave.AccrualCadence(req.Accrual),
		CarryForwardAllowed: req.CarryForwardAllowed,
		MaxCarryForward:     req.MaxCarryForward,
		EncashmentAllowed:   req.EncashmentAllowed,
		HourlyAllowed:       req.HourlyAllowed,
		RequiresApproval:    true,
		Flow:                leave.ApprovalFlow(req.ApprovalFlow),
		Active:              true,
	}
	if req.RequiresApproval != nil {
		lt.RequiresApproval = *req.RequiresApproval
	}
	if req.Active != nil {
		lt.Active = *req.Active
	}
	return lt
}

func toBalanceDTO(b leave.Balance) BalanceDTO {
	return BalanceDTO{
		EmployeeID:      string(b.Key.EmployeeID),
		LeaveTypeID:     string(b.Key.LeaveTypeID),
		Year:            b.Key.Year,
		OpeningBalance:  b.OpeningBalance,
		Credited:        b.Credited,
		CarryForward:    b.CarryForward,
		Pending:         b.Pending,
		Used:            b.Used,
		Lapsed:          b.Lapsed,
		Encashed:        b.Encashed,
		CarriedOut:      b.CarriedOut,
		Closed:          b.Closed(),
		Available:       b.Available(),
		CreditedThrough: b.CreditedThrough,
		Version:         b.Version,
	}
}

func toBalanceDTOs(bs []leave.Balance) []BalanceDTO {
	dtos := make([]BalanceDTO, len(bs))
	for i, b := range bs {
		dtos[i] = toBalanceDTO(b)
	}
	return dtos
}

func toStageDTO(s leave.Stage) StageDTO {
	return StageDTO{Status: string(s.Status), ActorID: string(s.ActorID), Remarks: s.Remarks, ActedAt: s.ActedAt}
}

func toLeaveRequestDTO(r leave.Request) LeaveRequestDTO {
	return LeaveRequestDTO{
		ID:            string(r.ID),
		EmployeeID:    string(r.EmployeeID),
		LeaveTypeID:   string(r.LeaveTypeID),
		StartDate:     core.FormatDate(r.StartDate),
		EndDate:       core.FormatDate(r.EndDate),
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		DayType:       string(r.DayType),
		TotalDays:     r.TotalDays,
		TotalHours:    r.TotalHours,
		Reason:        r.Reason,
		Status:        string(r.Status),
		ApprovalFlow:  string(r.Flow),
		Manager:       toStageDTO(r.Manager),
		HR:            toStageDTO(r.HR),
		CancelRemarks: r.CancelRemarks,
		Version:       r.Version,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func toRecordDTO(r attendance.Record) RecordDTO {
	return RecordDTO{
		ID:             string(r.ID),
		EmployeeID:     string(r.EmployeeID),
		Date:           core.FormatDate(r.Date),
		ClockIn:        r.ClockIn,
		ClockOut:       r.ClockOut,
		RegularHours:   r.RegularHours,
		OvertimeHours:  r.OvertimeHours,
		BreakDuration:  r.BreakDuration,
		LateArrival:    r.LateArrival,
		LateMinutes:    r.LateMinutes,
		EarlyDeparture: r.EarlyDeparture,
		EarlyMinutes:   r.EarlyMinutes,
		Status:         string(r.Status),
		CaptureMethod:  string(r.CaptureMethod),
		ApprovalStatus: string(r.ApprovalStatus),
		ApproverID:     string(r.ApproverID),
		ApprovalNote:   r.ApprovalNote,
		ApprovedAt:     r.ApprovedAt,
		Remarks:        r.Remarks,
		Version:        r.Version,
	}
}

func toSummaryDTO(s attendance.Summary) SummaryDTO {
	return SummaryDTO{
		EmployeeID:     string(s.EmployeeID),
		From:           core.FormatDate(s.From),
		To:             core.FormatDate(s.To),
		DaysPresent:    s.DaysPresent,
		DaysHalf:       s.DaysHalf,
		DaysAbsent:     s.DaysAbsent,
		DaysOnLeave:    s.DaysOnLeave,
		RegularHours:   s.RegularHours,
		OvertimeHours:  s.OvertimeHours,
		LateCount:      s.LateCount,
		LateMinutes:    s.LateMinutes,
		EarlyCount:     s.EarlyCount,
		EarlyMinutes:   s.EarlyMinutes,
		RecordsCounted: s.RecordsCounted,
	}
}

func toRuleDTO(r attendance.Rule) RuleDTO {
	return RuleDTO{
		ID:                 string(r.ID),
		Name:               r.Name,
		StandardStart:      r.StandardStart,
		StandardEnd:        r.StandardEnd,
		GraceMinutesIn:     r.GraceMinutesIn,
		GraceMinutesOut:    r.GraceMinutesOut,
		RegularHoursPerDay: r.RegularHoursPerDay,
		AutoDeductBreak:    r.AutoDeductBreak,
		BreakMinutes:       r.BreakMinutes,
		IsDefault:          r.IsDefault,
		Version:            r.Version,
	}
}

func (req RuleRequest) toRule(id core.RuleID) attendance.Rule {
	return attendance.Rule{
		ID:                 id,
		Name:               req.Name,
		StandardStart:      *req.StandardStart,
		StandardEnd:        *req.StandardEnd,
		GraceMinutesIn:     req.GraceMinutesIn,
		GraceMinutesOut:    req.GraceMinutesOut,
		RegularHoursPerDay: req.RegularHoursPerDay,
		AutoDeductBreak:    req.AutoDeductBreak,
		BreakMinutes:       req.BreakMinutes,
		IsDefault:          req.IsDefault,
		Version:            req.Version,
	}
}
