package sqlstore_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/attendance"
	"github.com/warp/leave-engine/core"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/sqlstore"
)

func openSQLite(t *testing.T) *sqlstore.DB {
	t.Helper()
	db, err := sqlstore.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	dir := db.Directory()
	require.NoError(t, dir.SaveEmployee(ctx, core.Employee{ID: "emp-1", Name: "Asha", BranchID: "br-1", Active: true}))
	require.NoError(t, dir.SaveEmployee(ctx, core.Employee{ID: "emp-2", Name: "Ravi", BranchID: "br-1", Active: false}))
	return db
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func sequence(prefix string) func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("%s-%d", prefix, n.Add(1)) }
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// =============================================================================
// DIRECTORY
// =============================================================================

func TestSQLite_Directory(t *testing.T) {
	ctx := context.Background()
	dir := openSQLite(t).Directory()

	emp, err := dir.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	require.NotNil(t, emp)
	assert.Equal(t, "br-1", emp.BranchID)

	active, err := dir.ListActiveEmployees(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)

	missing, err := dir.GetEmployee(ctx, "emp-9")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, dir.SaveHoliday(ctx, core.Holiday{ID: "h-1", Date: core.NewDate(2025, time.March, 14), Name: "Holi"}))
	require.NoError(t, dir.SaveHoliday(ctx, core.Holiday{ID: "h-2", BranchID: "br-1", Date: core.NewDate(2025, time.March, 14), Name: "Local"}))
	require.NoError(t, dir.SaveHoliday(ctx, core.Holiday{ID: "h-3", Date: core.NewDate(2019, time.March, 17), Name: "Founders", Recurring: true}))

	n, err := dir.CountHolidays(ctx, "br-1", core.NewDate(2025, time.March, 10), core.NewDate(2025, time.March, 20))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	listed, err := dir.ListHolidays(ctx, 2025)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, core.NewDate(2025, time.March, 17), listed[2].Date)

	require.NoError(t, dir.DeleteHoliday(ctx, "h-2"))
	assert.True(t, errors.Is(dir.DeleteHoliday(ctx, "h-2"), core.ErrNotFound))
}

// =============================================================================
// LEAVE
// =============================================================================

func TestSQLite_LeaveRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openSQLite(t).Leave()

	lt := leave.LeaveType{
		ID:                  "lt-el",
		Code:                "EL",
		Name:                "Earned Leave",
		AnnualEntitlement:   d("18"),
		Accrual:             leave.AccrualMonthly,
		CarryForwardAllowed: true,
		MaxCarryForward:     decimal.NewNullDecimal(d("5")),
		Flow:                leave.FlowSingle,
		RequiresApproval:    true,
		Active:              true,
	}
	require.NoError(t, store.SaveLeaveType(ctx, lt))

	got, err := store.GetLeaveType(ctx, "lt-el")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.AnnualEntitlement.Equal(d("18")))
	assert.True(t, got.MaxCarryForward.Valid)
	assert.True(t, got.MaxCarryForward.Decimal.Equal(d("5")))
	assert.Equal(t, leave.FlowSingle, got.Flow)

	err = store.SaveLeaveType(ctx, leave.LeaveType{ID: "lt-other", Code: "EL", Name: "Dup", AnnualEntitlement: d("1"), Accrual: leave.AccrualAnnually})
	assert.True(t, errors.Is(err, core.ErrInvalidInput))

	start, end := core.NewTimeOfDay(14, 0), core.NewTimeOfDay(16, 0)
	actedAt := time.Date(2025, time.March, 2, 10, 0, 0, 0, time.UTC)
	req := leave.Request{
		ID:          "req-1",
		EmployeeID:  "emp-1",
		LeaveTypeID: "lt-el",
		StartDate:   core.NewDate(2025, time.March, 3),
		EndDate:     core.NewDate(2025, time.March, 3),
		StartTime:   &start,
		EndTime:     &end,
		DayType:     leave.FullDay,
		TotalDays:   d("0.25"),
		TotalHours:  decimal.NewNullDecimal(d("2")),
		Status:      leave.StatusPending,
		Flow:        leave.FlowSingle,
		Manager:     leave.Stage{Status: leave.StagePending},
		HR:          leave.Stage{Status: leave.StagePending},
		CreatedAt:   actedAt,
		UpdatedAt:   actedAt,
	}
	require.NoError(t, store.InsertRequest(ctx, req))

	loaded, err := store.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.NotNil(t, loaded.StartTime)
	assert.Equal(t, "14:00", loaded.StartTime.String())
	assert.True(t, loaded.TotalHours.Decimal.Equal(d("2")))
	assert.Nil(t, loaded.Manager.ActedAt)
	assert.Equal(t, int64(1), loaded.Version)

	loaded.Status = leave.StatusApproved
	loaded.Manager = leave.Stage{Status: leave.StageApproved, ActorID: "mgr-1", Remarks: "ok", ActedAt: &actedAt}
	updated, err := store.UpdateRequest(ctx, *loaded)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)

	_, err = store.UpdateRequest(ctx, *loaded)
	assert.True(t, errors.Is(err, core.ErrConcurrentModification))

	reread, err := store.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, core.EmployeeID("mgr-1"), reread.Manager.ActorID)
	require.NotNil(t, reread.Manager.ActedAt)
	assert.True(t, reread.Manager.ActedAt.Equal(actedAt))

	listed, err := store.ListRequests(ctx, leave.RequestFilter{Year: 2025, Status: leave.StatusApproved})
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

// One full submit and approval cycle through SQLite.
func TestSQLite_LeaveService(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	dir := db.Directory()
	require.NoError(t, dir.SaveHoliday(ctx, core.Holiday{ID: "h-1", Date: core.NewDate(2025, time.March, 5), Name: "Festival"}))

	now := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	svc := leave.NewService(db.Leave(), dir, dir,
		leave.WithLogger(quietLogger()),
		leave.WithClock(func() time.Time { return now }),
		leave.WithIDGenerator(sequence("req")),
	)

	_, err := svc.SaveLeaveType(ctx, leave.LeaveType{
		ID: "lt-cl", Code: "CL", Name: "Casual Leave",
		AnnualEntitlement: d("12"), Accrual: leave.AccrualAnnually,
		RequiresApproval: true, Active: true,
	})
	require.NoError(t, err)

	_, err = svc.InitializeYearlyBalances(ctx, "emp-1", 2025)
	require.NoError(t, err)

	// 3-7 March with one holiday costs 4 days
	req, err := svc.Submit(ctx, leave.SubmitInput{
		EmployeeID:  "emp-1",
		LeaveTypeID: "lt-cl",
		StartDate:   core.NewDate(2025, time.March, 3),
		EndDate:     core.NewDate(2025, time.March, 7),
	})
	require.NoError(t, err)
	assert.True(t, req.TotalDays.Equal(d("4")))

	key := leave.BalanceKey{EmployeeID: "emp-1", LeaveTypeID: "lt-cl", Year: 2025}
	b, err := svc.GetBalance(ctx, key)
	require.NoError(t, err)
	assert.True(t, b.Pending.Equal(d("4")))

	_, err = svc.ManagerApprove(ctx, req.ID, "mgr-1", "")
	require.NoError(t, err)
	final, err := svc.HRApprove(ctx, req.ID, "hr-1", "")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, final.Status)

	b, err = svc.GetBalance(ctx, key)
	require.NoError(t, err)
	assert.True(t, b.Pending.IsZero())
	assert.True(t, b.Used.Equal(d("4")))
	assert.True(t, b.Available().Equal(d("8")))

	taken, err := svc.ApprovedLeaveDays(ctx, "emp-1", core.NewDate(2025, time.March, 1), core.NewDate(2025, time.March, 31))
	require.NoError(t, err)
	assert.True(t, taken.Equal(d("4")))
}

// Closing 2024 persists the carry-out and the closed flag.
func TestSQLite_YearClose(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	dir := db.Directory()
	now := time.Date(2025, time.January, 2, 9, 0, 0, 0, time.UTC)
	svc := leave.NewService(db.Leave(), dir, dir,
		leave.WithLogger(quietLogger()),
		leave.WithClock(func() time.Time { return now }),
		leave.WithIDGenerator(sequence("req")),
	)

	_, err := svc.SaveLeaveType(ctx, leave.LeaveType{
		ID: "lt-cl", Code: "CL", Name: "Casual Leave",
		AnnualEntitlement: d("12"), Accrual: leave.AccrualAnnually,
		CarryForwardAllowed: true, MaxCarryForward: decimal.NewNullDecimal(d("5")),
		RequiresApproval: true, Active: true,
	})
	require.NoError(t, err)
	_, err = svc.InitializeYearlyBalances(ctx, "emp-1", 2024)
	require.NoError(t, err)
	_, err = svc.InitializeYearlyBalances(ctx, "emp-1", 2025)
	require.NoError(t, err)

	prior, err := svc.GetBalance(ctx, leave.BalanceKey{EmployeeID: "emp-1", LeaveTypeID: "lt-cl", Year: 2024})
	require.NoError(t, err)
	assert.True(t, prior.Closed())
	assert.True(t, prior.CarriedOut.Equal(d("5")))
	assert.True(t, prior.Lapsed.Equal(d("7")))
	assert.True(t, prior.Available().IsZero())

	_, err = svc.Submit(ctx, leave.SubmitInput{
		EmployeeID:  "emp-1",
		LeaveTypeID: "lt-cl",
		StartDate:   core.NewDate(2024, time.December, 30),
	})
	assert.ErrorIs(t, err, core.ErrPolicyViolation)
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func TestSQLite_AttendanceService(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	now := time.Date(2025, time.March, 10, 20, 0, 0, 0, time.UTC)
	svc := attendance.NewService(db.Attendance(), db.Directory(),
		attendance.WithLogger(quietLogger()),
		attendance.WithClock(func() time.Time { return now }),
		attendance.WithIDGenerator(sequence("rec")),
	)

	breakMinutes := 30
	_, err := svc.CreateRule(ctx, attendance.Rule{
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
	})
	require.NoError(t, err)

	def, err := svc.DefaultRule(ctx)
	require.NoError(t, err)
	require.NotNil(t, def.BreakMinutes)
	assert.Equal(t, 30, *def.BreakMinutes)
	assert.Equal(t, "09:00", def.StandardStart.String())

	day := core.NewDate(2025, time.March, 10)
	in, err := svc.ClockIn(ctx, "emp-1", day, time.Date(2025, time.March, 10, 9, 25, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, in.LateArrival)
	assert.Equal(t, 15, in.LateMinutes)

	_, err = svc.ClockIn(ctx, "emp-1", day, time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC))
	assert.Error(t, err, "second clock-in on the same day")

	out, err := svc.ClockOut(ctx, "emp-1", day, time.Date(2025, time.March, 10, 18, 25, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, out.RegularHours.Equal(d("8")))
	assert.True(t, out.OvertimeHours.Equal(d("0.5")))
	assert.Equal(t, int64(2), out.Version)

	stored, err := svc.GetRecord(ctx, out.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ClockIn)
	assert.True(t, stored.ClockIn.Equal(*in.ClockIn))
	assert.Equal(t, attendance.ApprovalPending, stored.ApprovalStatus)

	_, err = svc.Approve(ctx, out.ID, "mgr-1", "fine")
	require.NoError(t, err)

	sum, err := svc.Summarize(ctx, "emp-1", core.NewDate(2025, time.March, 1), core.NewDate(2025, time.March, 31))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.DaysPresent)
	assert.True(t, sum.OvertimeHours.Equal(d("0.5")))
	assert.Equal(t, 15, sum.LateMinutes)
}
