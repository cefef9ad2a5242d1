/*
Package attendance derives worked hours from clock events and governs how an
attendance record reaches an approved state.

PURPOSE:
  A record exists per (employee, date). It is created by the first clock-in
  or manual entry and updated in place afterwards. Regular, overtime, late
  and early figures are derived from the clock times and whichever rule is
  the organization default at the time of computation; the rule itself is
  not bound to the record.

KEY CONCEPTS IN THIS FILE (types.go):
  - Rule: standard hours, grace windows, break deduction
  - Record: one employee-day with raw times, derived figures, approval
  - EntryInput: manual and bulk capture payload

SEE ALSO:
  - rules.go: Hour, lateness and early-departure computation
  - lifecycle.go: Capture and approval transitions
  - service.go: Transactional orchestration
  - excel.go: Workbook import/export
*/
package attendance

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/core"
)

// =============================================================================
// RULE
// =============================================================================

// Rule is an organizational attendance policy. At most one rule is the
// default at any time.
type Rule struct {
	ID                 core.RuleID
	Name               string
	StandardStart      core.TimeOfDay
	StandardEnd        core.TimeOfDay
	GraceMinutesIn     int
	GraceMinutesOut    int
	RegularHoursPerDay decimal.Decimal
	AutoDeductBreak    bool
	// BreakMinutes is nil when the rule does not define a break.
	BreakMinutes *int
	IsDefault    bool
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (r Rule) Validate() error {
	if r.Name == "" {
		return core.InvalidInput("rule name is required")
	}
	if r.StandardEnd <= r.StandardStart {
		return core.InvalidTimeRange("standard end %s must be after standard start %s", r.StandardEnd, r.StandardStart)
	}
	if r.GraceMinutesIn < 0 || r.GraceMinutesOut < 0 {
		return core.InvalidInput("grace minutes must not be negative")
	}
	if !r.RegularHoursPerDay.IsPositive() {
		return core.InvalidInput("regular hours per day must be positive")
	}
	if r.BreakMinutes != nil && *r.BreakMinutes < 0 {
		return core.InvalidInput("break minutes must not be negative")
	}
	return nil
}

// =============================================================================
// RECORD
// =============================================================================

type Status string

const (
	StatusPresent Status = "PRESENT"
	StatusAbsent  Status = "ABSENT"
	StatusOnLeave Status = "ON_LEAVE"
	StatusHalfDay Status = "HALF_DAY"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusOnLeave, StatusHalfDay:
		return true
	}
	return false
}

type CaptureMethod string

const (
	CaptureWeb         CaptureMethod = "WEB"
	CaptureManual      CaptureMethod = "MANUAL"
	CaptureExcelUpload CaptureMethod = "EXCEL_UPLOAD"
	CaptureEdited      CaptureMethod = "EDITED"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// Record is one employee-day. BreakDuration, RegularHours and OvertimeHours
// are in hours.
type Record struct {
	ID             core.RecordID
	EmployeeID     core.EmployeeID
	Date           time.Time
	ClockIn        *time.Time
	ClockOut       *time.Time
	RegularHours   decimal.Decimal
	OvertimeHours  decimal.Decimal
	BreakDuration  decimal.Decimal
	LateArrival    bool
	LateMinutes    int
	EarlyDeparture bool
	EarlyMinutes   int
	Status         Status
	CaptureMethod  CaptureMethod
	ApprovalStatus ApprovalStatus
	ApproverID     core.EmployeeID
	ApprovalNote   string
	ApprovedAt     *time.Time
	Remarks        string
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Open reports whether the employee clocked in and has not clocked out.
func (r Record) Open() bool { return r.ClockIn != nil && r.ClockOut == nil }

// In returns r with its clock times expressed in loc. Rule windows are
// evaluated on the wall clock of the clock times.
func (r Record) In(loc *time.Location) Record {
	if r.ClockIn != nil {
		t := r.ClockIn.In(loc)
		r.ClockIn = &t
	}
	if r.ClockOut != nil {
		t := r.ClockOut.In(loc)
		r.ClockOut = &t
	}
	return r
}

type RecordFilter struct {
	EmployeeID     core.EmployeeID
	From           time.Time
	To             time.Time
	ApprovalStatus ApprovalStatus
}

// =============================================================================
// CAPTURE INPUT
// =============================================================================

// EntrySource distinguishes trusted administrative input from an employee
// correcting their own record.
type EntrySource int

const (
	SourceAdmin EntrySource = iota
	SourceSelfService
)

// EntryInput is a manual or bulk record. Status defaults to PRESENT.
type EntryInput struct {
	EmployeeID core.EmployeeID
	Date       time.Time
	ClockIn    *time.Time
	ClockOut   *time.Time
	Status     Status
	Remarks    string
}

// EntryResult is the per-item outcome of a batch capture. Row is the 1-based
// spreadsheet row for workbook imports and the 1-based position otherwise.
type EntryResult struct {
	Row        int
	EmployeeID core.EmployeeID
	Date       time.Time
	Record     *Record
	Err        error
}

// ApprovalResult is the per-item outcome of a bulk approval.
type ApprovalResult struct {
	RecordID core.RecordID
	Record   *Record
	Err      error
}
