/*
Package leave implements the leave balance ledger and the request workflow.

PURPOSE:
  Each employee holds one balance account per leave type per year. Requests
  reserve balance when filed, move through an approval state machine, and on
  a terminal transition either commit the reservation into used days or
  release it. Year initialization derives carry-forward from the prior year.

KEY CONCEPTS IN THIS FILE (types.go):
  - LeaveType: the policy a balance is governed by
  - Balance / BalanceKey: the ledger account
  - Request: a filed leave request with per-stage approval data

DESIGN PRINCIPLES:
  1. Value-in/value-out: ledger and workflow functions return new values,
     the Service owns the read-modify-write cycle against the store
  2. Precision: decimal.Decimal everywhere, no floats
  3. Transition checks run before any ledger call

SEE ALSO:
  - ledger.go: Reserve/Commit/Release arithmetic
  - workflow.go: State machine
  - service.go: Transactional orchestration
*/
package leave

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/core"
)

// =============================================================================
// LEAVE TYPE - Policy
// =============================================================================

type AccrualCadence string

const (
	AccrualMonthly  AccrualCadence = "MONTHLY"
	AccrualAnnually AccrualCadence = "ANNUALLY"
)

type ApprovalFlow string

const (
	// FlowMultiLevel routes through manager then HR.
	FlowMultiLevel ApprovalFlow = "MULTI_LEVEL"
	// FlowSingle is one approve/reject step.
	FlowSingle ApprovalFlow = "SINGLE"
)

// LeaveType is immutable for the duration of a ledger year; edits apply to
// balances initialized afterwards.
type LeaveType struct {
	ID                  core.LeaveTypeID
	Code                string
	Name                string
	AnnualEntitlement   decimal.Decimal
	Accrual             AccrualCadence
	CarryForwardAllowed bool
	MaxCarryForward     decimal.NullDecimal
	EncashmentAllowed   bool
	HourlyAllowed       bool
	RequiresApproval    bool
	Flow                ApprovalFlow
	Active              bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ApprovalFlow returns the configured flow, defaulting to multi-level.
func (lt LeaveType) ApprovalFlow() ApprovalFlow {
	if lt.Flow == "" {
		return FlowMultiLevel
	}
	return lt.Flow
}

// Validate checks the policy fields for values the ledger cannot work with.
func (lt LeaveType) Validate() error {
	if lt.ID == "" {
		return core.InvalidInput("leave type id is required")
	}
	if lt.AnnualEntitlement.IsNegative() {
		return core.InvalidInput("annual entitlement must not be negative")
	}
	switch lt.Accrual {
	case AccrualMonthly, AccrualAnnually:
	default:
		return core.InvalidInput("unknown accrual cadence %q", lt.Accrual)
	}
	switch lt.Flow {
	case "", FlowMultiLevel, FlowSingle:
	default:
		return core.InvalidInput("unknown approval flow %q", lt.Flow)
	}
	if lt.MaxCarryForward.Valid && lt.MaxCarryForward.Decimal.IsNegative() {
		return core.InvalidInput("max carry-forward must not be negative")
	}
	return nil
}

// =============================================================================
// BALANCE - The ledger account
// =============================================================================

type BalanceKey struct {
	EmployeeID  core.EmployeeID
	LeaveTypeID core.LeaveTypeID
	Year        int
}

func (k BalanceKey) String() string {
	return fmt.Sprintf("%s:%s:%d", k.EmployeeID, k.LeaveTypeID, k.Year)
}

// Prior returns the key of the same account one year earlier.
func (k BalanceKey) Prior() BalanceKey {
	return BalanceKey{EmployeeID: k.EmployeeID, LeaveTypeID: k.LeaveTypeID, Year: k.Year - 1}
}

// Balance is one (employee, leave type, year) account. All amounts are days.
type Balance struct {
	Key            BalanceKey
	OpeningBalance decimal.Decimal
	Credited       decimal.Decimal
	CarryForward   decimal.Decimal
	Pending        decimal.Decimal
	Used           decimal.Decimal
	Lapsed         decimal.Decimal
	Encashed       decimal.Decimal
	// CarriedOut is what moved into the next year when this one closed.
	CarriedOut     decimal.Decimal

	// CreditedThrough is the last month (1-12) whose accrual was credited.
	CreditedThrough int
	// LapseRecorded is set once the year was closed: its lapse and carry-out
	// are booked and it accepts no new reservations, credits or encashments.
	LapseRecorded bool

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Available = opening + credited + carryForward − pending − used − lapsed − encashed − carriedOut.
func (b Balance) Available() decimal.Decimal {
	return b.OpeningBalance.
		Add(b.Credited).
		Add(b.CarryForward).
		Sub(b.Pending).
		Sub(b.Used).
		Sub(b.Lapsed).
		Sub(b.Encashed).
		Sub(b.CarriedOut)
}

// Closed reports whether the year has been closed by opening the next one.
func (b Balance) Closed() bool { return b.LapseRecorded }

// Remaining is the balance before in-flight reservations are deducted.
func (b Balance) Remaining() decimal.Decimal {
	return b.Available().Add(b.Pending)
}

// =============================================================================
// REQUEST - A filed leave request
// =============================================================================

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPendingHR Status = "PENDING_HR"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"

	// statusPendingManager is accepted on input but never stored.
	statusPendingManager = "PENDING_MANAGER"
)

// ParseStatus normalizes a stored or client-supplied status. PENDING_MANAGER
// is folded into PENDING.
func ParseStatus(s string) (Status, error) {
	switch up := strings.ToUpper(strings.TrimSpace(s)); up {
	case string(StatusPending), statusPendingManager:
		return StatusPending, nil
	case string(StatusPendingHR), string(StatusApproved), string(StatusRejected), string(StatusCancelled):
		return Status(up), nil
	default:
		return "", core.InvalidInput("unknown leave status %q", s)
	}
}

func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

type DayType string

const (
	FullDay   DayType = "FULL_DAY"
	HalfDayAM DayType = "HALF_DAY_AM"
	HalfDayPM DayType = "HALF_DAY_PM"
)

func (d DayType) IsHalfDay() bool { return d == HalfDayAM || d == HalfDayPM }

// StageStatus tracks one approval stage independently of the request status.
type StageStatus string

const (
	StagePending     StageStatus = "PENDING"
	StageApproved    StageStatus = "APPROVED"
	StageRejected    StageStatus = "REJECTED"
	StageNotRequired StageStatus = "NOT_REQUIRED"
)

// Stage is the decision recorded at one approval level.
type Stage struct {
	Status  StageStatus
	ActorID core.EmployeeID
	Remarks string
	ActedAt *time.Time
}

type Request struct {
	ID          core.RequestID
	EmployeeID  core.EmployeeID
	LeaveTypeID core.LeaveTypeID
	StartDate   time.Time
	EndDate     time.Time
	StartTime   *core.TimeOfDay
	EndTime     *core.TimeOfDay
	DayType     DayType
	TotalDays   decimal.Decimal
	TotalHours  decimal.NullDecimal
	Reason      string
	Status      Status
	// Flow is copied from the leave type at submit time.
	Flow    ApprovalFlow
	Manager Stage
	HR      Stage
	// CancelRemarks holds the employee's note when withdrawing.
	CancelRemarks string
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Hourly reports whether the request was filed as a time range.
func (r Request) Hourly() bool { return r.StartTime != nil && r.EndTime != nil }

// Year is the ledger year the request is charged against: the start year,
// even when the request crosses a year boundary.
func (r Request) Year() int { return r.StartDate.Year() }

func (r Request) BalanceKey() BalanceKey {
	return BalanceKey{EmployeeID: r.EmployeeID, LeaveTypeID: r.LeaveTypeID, Year: r.Year()}
}

// RequestFilter narrows ListRequests. Zero values match everything.
type RequestFilter struct {
	EmployeeID  core.EmployeeID
	LeaveTypeID core.LeaveTypeID
	Status      Status
	Year        int
}
