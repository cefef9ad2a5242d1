package core

import (
	"context"
	"time"
)

// =============================================================================
// EXTERNAL COLLABORATORS - Narrow interfaces into the rest of the ERP
// =============================================================================

// EmployeeDirectory resolves master data. GetEmployee returns (nil, nil) when
// the employee does not exist.
type EmployeeDirectory interface {
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)
	ListActiveEmployees(ctx context.Context) ([]Employee, error)
}

// HolidayCalendar counts organizational holidays in [from, to] for a branch.
// Global holidays (empty branch) apply to every branch.
type HolidayCalendar interface {
	CountHolidays(ctx context.Context, branchID string, from, to time.Time) (int, error)
}

// Notifier receives approval-state transitions after they are committed.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) error { return nil }

// NoHolidays is a calendar with no holidays.
type NoHolidays struct{}

func (NoHolidays) CountHolidays(context.Context, string, time.Time, time.Time) (int, error) {
	return 0, nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// Holiday is an organizational day off. An empty BranchID applies to every
// branch. Recurring holidays repeat on the same month and day every year.
type Holiday struct {
	ID        string
	BranchID  string
	Date      time.Time
	Name      string
	Recurring bool
}

// Matches reports whether h falls on day for the given branch.
func (h Holiday) Matches(branchID string, day time.Time) bool {
	if h.BranchID != "" && h.BranchID != branchID {
		return false
	}
	if h.Recurring {
		return h.Date.Month() == day.Month() && h.Date.Day() == day.Day()
	}
	return DateOf(h.Date).Equal(DateOf(day))
}

// CountHolidayDates counts the distinct days in [from, to] covered by at
// least one holiday. A global and a branch holiday on the same day count once.
func CountHolidayDates(holidays []Holiday, branchID string, from, to time.Time) int {
	count := 0
	for day := DateOf(from); !day.After(DateOf(to)); day = day.AddDate(0, 0, 1) {
		for _, h := range holidays {
			if h.Matches(branchID, day) {
				count++
				break
			}
		}
	}
	return count
}
