/*
lifecycle.go - Capture and approval transitions on a single record

STATE:
  Implicit in which clock fields are set, plus ApprovalStatus.

    (none) ──clock-in──▶ open ──clock-out──▶ complete
      │                   │                     │
      └──── manual / bulk entry (upsert, any state) ────┘

  Clock-in on an open record:      AlreadyClockedIn
  Clock-in on a complete record:   AlreadyCompleted
  Clock-out with no clock-in:      NoClockInFound
  Clock-out on a complete record:  AlreadyClockedOut

APPROVAL:
  Self-reported time (clock events, self-service edits) is PENDING.
  Administrative manual and bulk entries are APPROVED directly.
  Approve/Reject act only on PENDING records.

All functions here are pure: existing may be nil, the result is the record
to persist.
*/
package attendance

import (
	"time"

	"github.com/warp/leave-engine/core"
)

func newRecord(employeeID core.EmployeeID, date, now time.Time) Record {
	return Record{
		EmployeeID:     employeeID,
		Date:           core.DateOf(date),
		Status:         StatusPresent,
		ApprovalStatus: ApprovalPending,
		CreatedAt:      now,
	}
}

// ApplyClockIn starts the day. A day record without clock times (for example
// an ABSENT placeholder) is reused.
func ApplyClockIn(existing *Record, employeeID core.EmployeeID, date, at, now time.Time) (Record, error) {
	rec := newRecord(employeeID, date, now)
	if existing != nil {
		switch {
		case existing.ClockOut != nil:
			return *existing, core.ErrAlreadyCompleted
		case existing.ClockIn != nil:
			return *existing, core.ErrAlreadyClockedIn
		}
		rec = *existing
	}

	clockIn := at
	rec.ClockIn = &clockIn
	rec.Status = StatusPresent
	rec.CaptureMethod = CaptureWeb
	rec.ApprovalStatus = ApprovalPending
	rec.UpdatedAt = now
	return rec, nil
}

// ApplyClockOut closes the day.
func ApplyClockOut(existing *Record, at, now time.Time) (Record, error) {
	if existing == nil || existing.ClockIn == nil {
		return Record{}, core.ErrNoClockInFound
	}
	if existing.ClockOut != nil {
		return *existing, core.ErrAlreadyClockedOut
	}
	if at.Before(*existing.ClockIn) {
		return *existing, core.InvalidTimeRange("clock-out %s is before clock-in %s",
			at.Format(time.RFC3339), existing.ClockIn.Format(time.RFC3339))
	}

	rec := *existing
	clockOut := at
	rec.ClockOut = &clockOut
	rec.ApprovalStatus = ApprovalPending
	rec.UpdatedAt = now
	return rec, nil
}

// ApplyEntry upserts a manual or bulk entry onto the day's record. method is
// the capture method for a new record; an update of an existing one by a
// manual entry is recorded as EDITED.
func ApplyEntry(existing *Record, in EntryInput, method CaptureMethod, approval ApprovalStatus, now time.Time) (Record, error) {
	if err := validateEntry(in); err != nil {
		return Record{}, err
	}

	rec := newRecord(in.EmployeeID, in.Date, now)
	if existing != nil {
		rec = *existing
		if method == CaptureManual {
			method = CaptureEdited
		}
	}

	rec.ClockIn = copyTime(in.ClockIn)
	rec.ClockOut = copyTime(in.ClockOut)
	rec.Status = in.Status
	if rec.Status == "" {
		rec.Status = StatusPresent
	}
	rec.Remarks = in.Remarks
	rec.CaptureMethod = method
	rec.ApprovalStatus = approval
	rec.ApproverID, rec.ApprovalNote, rec.ApprovedAt = "", "", nil
	rec.UpdatedAt = now
	return rec, nil
}

func validateEntry(in EntryInput) error {
	if in.EmployeeID == "" {
		return core.InvalidInput("employee id is required")
	}
	if in.Date.IsZero() {
		return core.InvalidInput("date is required")
	}
	if in.Status != "" && !in.Status.Valid() {
		return core.InvalidInput("unknown attendance status %q", in.Status)
	}
	if in.ClockIn == nil && in.ClockOut != nil {
		return core.ErrNoClockInFound
	}
	if in.ClockIn != nil && in.ClockOut != nil && !in.ClockOut.After(*in.ClockIn) {
		return core.InvalidTimeRange("clock-out must be after clock-in")
	}
	return nil
}

// Review records an approver's decision on a PENDING record.
func Review(rec Record, decision ApprovalStatus, approverID core.EmployeeID, note string, now time.Time) (Record, error) {
	if rec.ApprovalStatus != ApprovalPending {
		return rec, &core.TransitionError{
			Subject: "attendance record",
			From:    string(rec.ApprovalStatus),
			Action:  reviewAction(decision),
		}
	}
	switch decision {
	case ApprovalApproved, ApprovalRejected:
	default:
		return rec, core.InvalidInput("unknown approval decision %q", decision)
	}
	at := now
	rec.ApprovalStatus = decision
	rec.ApproverID = approverID
	rec.ApprovalNote = note
	rec.ApprovedAt = &at
	rec.UpdatedAt = now
	return rec, nil
}

func reviewAction(decision ApprovalStatus) string {
	if decision == ApprovalRejected {
		return "reject"
	}
	return "approve"
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
