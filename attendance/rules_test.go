package attendance_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/attendance"
	"github.com/warp/leave-engine/core"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func standardRule() attendance.Rule {
	breakMinutes := 60
	return attendance.Rule{
		ID:                 "rule-std",
		Name:               "Standard",
		StandardStart:      core.NewTimeOfDay(9, 0),
		StandardEnd:        core.NewTimeOfDay(17, 0),
		GraceMinutesIn:     10,
		GraceMinutesOut:    5,
		RegularHoursPerDay: d("8"),
		AutoDeductBreak:    true,
		BreakMinutes:       &breakMinutes,
		IsDefault:          true,
	}
}

func at(hour, minute int) time.Time {
	return time.Date(2025, time.March, 10, hour, minute, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func TestComputeHours(t *testing.T) {
	rule := standardRule()

	tests := []struct {
		name           string
		in, out        time.Time
		rule           attendance.Rule
		regular, extra string
	}{
		{"overtime after break", at(9, 0), at(18, 30), rule, "8", "0.5"},
		{"short day", at(9, 0), at(13, 0), rule, "3", "0"},
		{"shorter than break", at(9, 0), at(9, 30), rule, "0", "0"},
	}
	noBreak := rule
	noBreak.AutoDeductBreak = false
	tests = append(tests, struct {
		name           string
		in, out        time.Time
		rule           attendance.Rule
		regular, extra string
	}{"no deduction", at(9, 0), at(18, 0), noBreak, "8", "1"})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := attendance.ComputeHours(tt.in, tt.out, tt.rule)
			assert.True(t, h.Regular.Equal(d(tt.regular)), "regular: got %s", h.Regular)
			assert.True(t, h.Overtime.Equal(d(tt.extra)), "overtime: got %s", h.Overtime)
		})
	}
}

func TestComputeHours_IgnoresSeconds(t *testing.T) {
	in := at(9, 0)
	out := at(17, 0).Add(59 * time.Second)
	rule := standardRule()
	rule.AutoDeductBreak = false

	h := attendance.ComputeHours(in, out, rule)
	assert.True(t, h.Regular.Equal(d("8")))
	assert.True(t, h.Overtime.IsZero())
}

func TestComputeLateness(t *testing.T) {
	rule := standardRule()

	assert.Equal(t, attendance.Deviation{}, attendance.ComputeLateness(at(9, 10), rule), "within grace")
	assert.Equal(t, attendance.Deviation{Flagged: true, Minutes: 15}, attendance.ComputeLateness(at(9, 25), rule))
	assert.Equal(t, attendance.Deviation{Flagged: true, Minutes: 0},
		attendance.ComputeLateness(at(9, 10).Add(30*time.Second), rule), "partial minutes are floored")
}

func TestComputeEarlyDeparture(t *testing.T) {
	rule := standardRule()

	assert.Equal(t, attendance.Deviation{}, attendance.ComputeEarlyDeparture(at(16, 55), rule), "within grace")
	assert.Equal(t, attendance.Deviation{Flagged: true, Minutes: 15}, attendance.ComputeEarlyDeparture(at(16, 40), rule))
}

func TestDerive(t *testing.T) {
	rule := standardRule()

	open := attendance.Derive(attendance.Record{ClockIn: ptr(at(9, 25))}, &rule)
	assert.True(t, open.LateArrival)
	assert.Equal(t, 15, open.LateMinutes)
	assert.True(t, open.RegularHours.IsZero(), "no hours until clock-out")

	closed := attendance.Derive(attendance.Record{ClockIn: ptr(at(9, 25)), ClockOut: ptr(at(16, 40))}, &rule)
	assert.True(t, closed.EarlyDeparture)
	assert.Equal(t, 15, closed.EarlyMinutes)
	assert.True(t, closed.BreakDuration.Equal(d("1")))
	assert.True(t, closed.RegularHours.Equal(d("6.25")), "got %s", closed.RegularHours)

	raw := attendance.Derive(closed, nil)
	assert.False(t, raw.LateArrival)
	assert.False(t, raw.EarlyDeparture)
	assert.True(t, raw.RegularHours.IsZero())
	require.NotNil(t, raw.ClockIn)
	assert.True(t, raw.ClockIn.Equal(at(9, 25)), "raw times are kept")
}

func TestRuleValidate(t *testing.T) {
	require.NoError(t, standardRule().Validate())

	r := standardRule()
	r.StandardEnd = r.StandardStart
	assert.ErrorIs(t, r.Validate(), core.ErrInvalidTimeRange)

	r = standardRule()
	r.RegularHoursPerDay = decimal.Zero
	assert.ErrorIs(t, r.Validate(), core.ErrInvalidInput)

	r = standardRule()
	r.GraceMinutesIn = -1
	assert.ErrorIs(t, r.Validate(), core.ErrInvalidInput)

	r = standardRule()
	r.Name = ""
	assert.ErrorIs(t, r.Validate(), core.ErrInvalidInput)
}
