/*
Package core holds the types shared by the leave and attendance engines.

PURPOSE:
  Leave balances and attendance records are separate subsystems, but they
  agree on identifiers, calendar dates, error kinds and the narrow interfaces
  through which they reach the rest of the ERP (employee directory, holiday
  calendar, notification dispatch). Those shared pieces live here so neither
  domain package imports the other.

KEY CONCEPTS IN THIS FILE (types.go):
  - Type-safe identifiers (EmployeeID, LeaveTypeID, ...)
  - Employee: the slice of master data the engine needs
  - Event: an approval-state transition published to notifiers

SEE ALSO:
  - time.go: Date and TimeOfDay helpers
  - errors.go: Error kinds
  - collaborators.go: External interfaces
*/
package core

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type LeaveTypeID string
type RequestID string
type RecordID string
type RuleID string

// =============================================================================
// EMPLOYEE - Read-only view of master data
// =============================================================================

// Employee is what the engine needs to know about a person: where they work
// (for holiday lookup) and whether they may still file leave.
type Employee struct {
	ID        EmployeeID
	Name      string
	BranchID  string
	Active    bool
	CreatedAt time.Time
}

// =============================================================================
// EVENTS - Approval-state transitions
// =============================================================================

type EventKind string

const (
	EventLeaveSubmitted       EventKind = "leave.submitted"
	EventLeaveManagerApproved EventKind = "leave.manager_approved"
	EventLeaveApproved        EventKind = "leave.approved"
	EventLeaveRejected        EventKind = "leave.rejected"
	EventLeaveCancelled       EventKind = "leave.cancelled"
	EventAttendanceApproved   EventKind = "attendance.approved"
	EventAttendanceRejected   EventKind = "attendance.rejected"
)

// Event describes a state transition that downstream dispatch may alert on.
type Event struct {
	Kind       EventKind  `json:"kind"`
	SubjectID  string     `json:"subject_id"`
	EmployeeID EmployeeID `json:"employee_id"`
	ActorID    EmployeeID `json:"actor_id,omitempty"`
	From       string     `json:"from,omitempty"`
	To         string     `json:"to"`
	Remarks    string     `json:"remarks,omitempty"`
	At         time.Time  `json:"at"`
}
