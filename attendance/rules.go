package attendance

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RULE ENGINE - Clock times + rule → derived figures
// =============================================================================

var minutesPerHour = decimal.NewFromInt(60)

type Hours struct {
	Regular       decimal.Decimal
	Overtime      decimal.Decimal
	BreakDeducted decimal.Decimal
}

type Deviation struct {
	Flagged bool
	Minutes int
}

// ComputeHours splits elapsed whole minutes into regular and overtime hours,
// after deducting the rule's break when auto-deduct is on.
func ComputeHours(clockIn, clockOut time.Time, rule Rule) Hours {
	worked := decimal.NewFromInt(int64(clockOut.Sub(clockIn) / time.Minute)).Div(minutesPerHour)

	h := Hours{Regular: decimal.Zero, Overtime: decimal.Zero, BreakDeducted: decimal.Zero}
	if rule.AutoDeductBreak && rule.BreakMinutes != nil {
		h.BreakDeducted = decimal.NewFromInt(int64(*rule.BreakMinutes)).Div(minutesPerHour)
		worked = worked.Sub(h.BreakDeducted)
	}

	if worked.GreaterThan(rule.RegularHoursPerDay) {
		h.Regular = rule.RegularHoursPerDay
		h.Overtime = worked.Sub(rule.RegularHoursPerDay)
		return h
	}
	h.Regular = decimal.Max(worked, decimal.Zero)
	return h
}

// ComputeLateness flags a clock-in after standard start plus grace.
func ComputeLateness(clockIn time.Time, rule Rule) Deviation {
	deadline := rule.StandardStart.AddMinutes(rule.GraceMinutesIn).On(clockIn)
	if !clockIn.After(deadline) {
		return Deviation{}
	}
	return Deviation{Flagged: true, Minutes: int(clockIn.Sub(deadline) / time.Minute)}
}

// ComputeEarlyDeparture flags a clock-out before standard end minus grace.
func ComputeEarlyDeparture(clockOut time.Time, rule Rule) Deviation {
	threshold := rule.StandardEnd.AddMinutes(-rule.GraceMinutesOut).On(clockOut)
	if !clockOut.Before(threshold) {
		return Deviation{}
	}
	return Deviation{Flagged: true, Minutes: int(threshold.Sub(clockOut) / time.Minute)}
}

// Derive recomputes every derived field of rec. With no rule only the raw
// clock times are kept.
func Derive(rec Record, rule *Rule) Record {
	rec.RegularHours = decimal.Zero
	rec.OvertimeHours = decimal.Zero
	rec.BreakDuration = decimal.Zero
	rec.LateArrival, rec.LateMinutes = false, 0
	rec.EarlyDeparture, rec.EarlyMinutes = false, 0

	if rule == nil || rec.ClockIn == nil {
		return rec
	}

	late := ComputeLateness(*rec.ClockIn, *rule)
	rec.LateArrival, rec.LateMinutes = late.Flagged, late.Minutes

	if rec.ClockOut == nil {
		return rec
	}
	hours := ComputeHours(*rec.ClockIn, *rec.ClockOut, *rule)
	rec.RegularHours = hours.Regular
	rec.OvertimeHours = hours.Overtime
	rec.BreakDuration = hours.BreakDeducted

	early := ComputeEarlyDeparture(*rec.ClockOut, *rule)
	rec.EarlyDeparture, rec.EarlyMinutes = early.Flagged, early.Minutes
	return rec
}
