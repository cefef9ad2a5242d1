package attendance

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/core"
)

// Summary is the payroll view of an employee's approved attendance.
type Summary struct {
	EmployeeID     core.EmployeeID
	From           time.Time
	To             time.Time
	DaysPresent    int
	DaysHalf       int
	DaysAbsent     int
	DaysOnLeave    int
	RegularHours   decimal.Decimal
	OvertimeHours  decimal.Decimal
	LateCount      int
	LateMinutes    int
	EarlyCount     int
	EarlyMinutes   int
	RecordsCounted int
}

// Summarize folds records into a Summary. Callers pass only the records they
// want counted.
func Summarize(employeeID core.EmployeeID, from, to time.Time, records []Record) Summary {
	sum := Summary{
		EmployeeID:    employeeID,
		From:          from,
		To:            to,
		RegularHours:  decimal.Zero,
		OvertimeHours: decimal.Zero,
	}
	for _, r := range records {
		sum.RecordsCounted++
		switch r.Status {
		case StatusPresent:
			sum.DaysPresent++
		case StatusHalfDay:
			sum.DaysHalf++
		case StatusAbsent:
			sum.DaysAbsent++
		case StatusOnLeave:
			sum.DaysOnLeave++
		}
		sum.RegularHours = sum.RegularHours.Add(r.RegularHours)
		sum.OvertimeHours = sum.OvertimeHours.Add(r.OvertimeHours)
		if r.LateArrival {
			sum.LateCount++
			sum.LateMinutes += r.LateMinutes
		}
		if r.EarlyDeparture {
			sum.EarlyCount++
			sum.EarlyMinutes += r.EarlyMinutes
		}
	}
	return sum
}
