package leave

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/core"
)

// =============================================================================
// DURATION - How many ledger days a request costs
// =============================================================================

const hoursPerDay = 8

var (
	half          = decimal.NewFromFloat(0.5)
	minutesPerDay = decimal.NewFromInt(60 * hoursPerDay)
	sixty         = decimal.NewFromInt(60)
	durationScale = int32(4)
)

// Duration is the cost of a request. Hours is set only for hourly leave.
type Duration struct {
	Days  decimal.Decimal
	Hours decimal.NullDecimal
}

// ComputeDuration prices a request.
//
// Day-based: inclusive calendar span, minus the branch's holidays in range,
// minus half a day for HALF_DAY_AM/PM.
// Hourly: minutes/60 hours, minutes/480 days, on a single date. Both are
// rounded to four places so the reserved amount is exactly what is later
// committed or released.
func ComputeDuration(ctx context.Context, in SubmitInput, branchID string, holidays core.HolidayCalendar) (Duration, error) {
	start, end := core.DateOf(in.StartDate), core.DateOf(in.EndDate)
	if in.EndDate.IsZero() {
		end = start
	}
	if in.StartDate.IsZero() {
		return Duration{}, core.InvalidInput("start date is required")
	}

	if in.IsHourly() {
		if !end.Equal(start) {
			return Duration{}, core.InvalidTimeRange("hourly leave must start and end on the same date")
		}
		minutes := int(*in.EndTime) - int(*in.StartTime)
		if minutes <= 0 {
			return Duration{}, core.InvalidTimeRange("end time %s is not after start time %s", in.EndTime, in.StartTime)
		}
		m := decimal.NewFromInt(int64(minutes))
		return Duration{
			Days:  m.Div(minutesPerDay).Round(durationScale),
			Hours: decimal.NewNullDecimal(m.Div(sixty).Round(durationScale)),
		}, nil
	}
	if in.StartTime != nil || in.EndTime != nil {
		return Duration{}, core.InvalidInput("hourly leave needs both start and end time")
	}

	if end.Before(start) {
		return Duration{}, core.InvalidTimeRange("end date %s is before start date %s",
			core.FormatDate(end), core.FormatDate(start))
	}

	span := core.DaysInclusive(start, end)
	excluded := 0
	if holidays != nil {
		n, err := holidays.CountHolidays(ctx, branchID, start, end)
		if err != nil {
			return Duration{}, fmt.Errorf("holiday lookup failed: %w", err)
		}
		excluded = n
	}

	days := decimal.NewFromInt(int64(span - excluded))
	if in.DayType.IsHalfDay() {
		days = days.Sub(half)
	}
	if !days.IsPositive() {
		return Duration{}, core.InvalidTimeRange("no working days between %s and %s",
			core.FormatDate(start), core.FormatDate(end))
	}
	return Duration{Days: days}, nil
}
